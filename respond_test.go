package composer

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"explicit not-found kind", &ResourceError{Kind: KindNotFound, Message: "gone"}, KindNotFound},
		{"explicit server kind", &ResourceError{Kind: KindServer, Message: "boom"}, KindServer},
		{"enoent substring", errors.New("open /tmp/x: ENOENT"), KindNotFound},
		{"not found substring", errors.New("key /pages/x: not found"), KindNotFound},
		{"case sensitive", errors.New("Not Found in uppercase"), KindServer},
		{"anything else", errors.New("disk on fire"), KindServer},
		{"explicit server kind wins over substring", serverError("compose page", errors.New("key not found")), KindServer},
		{"wrapped explicit kind", fmt.Errorf("outer: %w", &ResourceError{Kind: KindNotFound, Message: "x"}), KindNotFound},
	}
	for _, tt := range tests {
		if got := classify(tt.err); got != tt.want {
			t.Errorf("%s: classify = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func invokeEnvelope(t *testing.T, accept string, compute func() (any, error)) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "http://example.com/pages/x", nil)
	if accept != "" {
		req.Header.Set(echo.HeaderAccept, accept)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := respondJSON(c, compute); err != nil {
		t.Fatalf("respondJSON returned error: %v", err)
	}
	return rec
}

func TestRespondJSONSuccess(t *testing.T) {
	rec := invokeEnvelope(t, "application/json", func() (any, error) {
		return json.RawMessage(`{"a":1}`), nil
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != `{"a":1}` {
		t.Errorf("body = %q, want {\"a\":1}", rec.Body.String())
	}
}

func TestNotFoundJSONBody(t *testing.T) {
	rec := invokeEnvelope(t, "application/json", func() (any, error) {
		return nil, &ResourceError{Kind: KindNotFound, Message: "key missing"}
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if body.Message != "Not Found" || body.Code != 404 {
		t.Errorf("body = %+v, want {Not Found 404}", body)
	}
}

func TestServerErrorJSONBody(t *testing.T) {
	rec := invokeEnvelope(t, "application/json", func() (any, error) {
		return nil, errors.New("disk on fire")
	})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if body.Message != "disk on fire" || body.Code != 500 {
		t.Errorf("body = %+v, want {disk on fire 500}", body)
	}
}

func TestServerErrorHTMLBody(t *testing.T) {
	rec := invokeEnvelope(t, "text/html", func() (any, error) {
		return nil, errors.New("disk on fire")
	})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "500 Server Error") {
		t.Errorf("body = %q, want the fixed 500 HTML body", rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "disk on fire") {
		t.Error("HTML body must not leak internal failure detail")
	}
}

func TestNotFoundHTMLBody(t *testing.T) {
	rec := invokeEnvelope(t, "text/html", func() (any, error) {
		return nil, errors.New("thing not found")
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "404 Not Found") {
		t.Errorf("body = %q, want the fixed 404 HTML body", rec.Body.String())
	}
}

func TestOtherAcceptGetsBareStatus(t *testing.T) {
	rec := invokeEnvelope(t, "text/plain", func() (any, error) {
		return nil, errors.New("boom")
	})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("body = %q, want empty body for unnegotiated type", rec.Body.String())
	}
}
