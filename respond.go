package composer

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
)

// ErrorKind classifies a handler failure for response rendering.
type ErrorKind int

const (
	// KindServer is any failure that is not explicitly a missing resource.
	KindServer ErrorKind = iota
	// KindNotFound is a missing resource key.
	KindNotFound
)

// ResourceError is a failure with an explicit kind. An explicit kind always
// wins over the message heuristics in classify, so a wrapped cause whose text
// happens to contain "not found" cannot downgrade a server error to a 404.
type ResourceError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ResourceError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ResourceError) Unwrap() error { return e.Err }

// serverError wraps err as an explicit server failure.
func serverError(msg string, err error) *ResourceError {
	return &ResourceError{Kind: KindServer, Message: msg, Err: err}
}

// classify decides whether a failure is a missing resource or a server
// error. An explicit ResourceError kind is authoritative; otherwise a
// failure is Not-Found iff its message contains "ENOENT" or "not found"
// (case-sensitive substrings).
func classify(err error) ErrorKind {
	var re *ResourceError
	if errors.As(err, &re) {
		return re.Kind
	}
	msg := err.Error()
	if strings.Contains(msg, "ENOENT") || strings.Contains(msg, "not found") {
		return KindNotFound
	}
	return KindServer
}

// errorBody is the JSON shape of a classified failure.
type errorBody struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// respondJSON runs compute and serializes its result as JSON, or classifies
// and renders the failure.
func respondJSON(c echo.Context, compute func() (any, error)) error {
	result, err := compute()
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// respondHTML runs compute and writes its result as an HTML body, or
// classifies and renders the failure.
func respondHTML(c echo.Context, compute func() ([]byte, error)) error {
	body, err := compute()
	if err != nil {
		return renderError(c, err)
	}
	return c.HTMLBlob(http.StatusOK, body)
}

// renderError classifies err and writes the content-negotiated failure
// response. Server errors are always logged with full detail before
// responding; the client only ever sees a short message and a code.
func renderError(c echo.Context, err error) error {
	code := http.StatusInternalServerError
	message := err.Error()
	if classify(err) == KindNotFound {
		code = http.StatusNotFound
		message = "Not Found"
	} else {
		c.Logger().Errorf("server error: %s %s: %v", c.Request().Method, c.Request().RequestURI, err)
	}

	accept := c.Request().Header.Get(echo.HeaderAccept)
	switch {
	case strings.Contains(accept, echo.MIMETextHTML):
		if code == http.StatusNotFound {
			return renderStatus(c, code, notFoundPage)
		}
		return renderStatus(c, code, serverErrorPage)
	case strings.Contains(accept, echo.MIMEApplicationJSON):
		return c.JSON(code, errorBody{Message: message, Code: code})
	default:
		return c.NoContent(code)
	}
}

// renderStatus writes a templ component with a specific HTTP status code.
func renderStatus(c echo.Context, code int, cmp templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	return cmp.Render(c.Request().Context(), c.Response().Writer)
}

var (
	notFoundPage    = statusPage("404 Not Found")
	serverErrorPage = statusPage("500 Server Error")
)

// statusPage is a fixed minimal HTML body for a failure status.
func statusPage(text string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, "<!doctype html><html><head><title>"+text+"</title></head><body><h1>"+text+"</h1></body></html>")
		return err
	})
}

// httpErrorHandler renders failures that escape the response envelope:
// unmatched routes, deliberate 501 stubs, and panics surfaced by the
// recover middleware.
func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		switch {
		case he.Code == http.StatusNotImplemented:
			// Unimplemented routes bypass the classifier entirely.
			_ = c.NoContent(http.StatusNotImplemented)
			return
		case he.Code == http.StatusNotFound:
			_ = renderError(c, &ResourceError{Kind: KindNotFound, Message: "Not Found"})
			return
		case he.Code < http.StatusInternalServerError:
			_ = c.NoContent(he.Code)
			return
		}
	}
	_ = renderError(c, err)
}
