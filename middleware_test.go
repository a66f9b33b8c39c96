package composer

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

// contextProbe runs one request through siteContext and returns what the
// downstream handler observed.
func contextProbe(t *testing.T, reg *Registry, host, target string) (slug, url string, edit bool) {
	t.Helper()
	e := echo.New()
	e.Use(siteContext(reg, host))
	e.GET("/*", func(c echo.Context) error {
		slug = SiteSlug(c)
		url = RequestURL(c)
		edit = EditMode(c)
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("probe request failed with status %d", rec.Code)
	}
	return slug, url, edit
}

func TestSiteContextSpecificityWins(t *testing.T) {
	reg := NewRegistry([]Site{
		{Slug: "root", Host: "example.com", Path: "/"},
		{Slug: "foo", Host: "example.com", Path: "/foo"},
	}, nil)

	slug, _, _ := contextProbe(t, reg, "example.com", "http://example.com/foo/bar")
	if slug != "foo" {
		t.Errorf("site slug = %q, want foo (deeper site wins)", slug)
	}

	slug, _, _ = contextProbe(t, reg, "example.com", "http://example.com/bar")
	if slug != "root" {
		t.Errorf("site slug = %q, want root", slug)
	}
}

func TestSiteContextRequestURL(t *testing.T) {
	reg := NewRegistry([]Site{{Slug: "main", Host: "example.com", Path: "/"}}, nil)

	_, url, _ := contextProbe(t, reg, "example.com", "http://example.com/components/foo?edit=true")
	if url != "http://example.com/components/foo" {
		t.Errorf("request url = %q, want http://example.com/components/foo", url)
	}
}

func TestSiteContextEditMode(t *testing.T) {
	reg := NewRegistry([]Site{{Slug: "main", Host: "example.com", Path: "/"}}, nil)

	tests := []struct {
		target string
		want   bool
	}{
		{"http://example.com/pages/x?edit=true", true},
		{"http://example.com/pages/x?edit=1", true},
		{"http://example.com/pages/x?edit=false", false},
		{"http://example.com/pages/x?edit=0", false},
		{"http://example.com/pages/x", false},
	}
	for _, tt := range tests {
		_, _, edit := contextProbe(t, reg, "example.com", tt.target)
		if edit != tt.want {
			t.Errorf("EditMode for %q = %v, want %v", tt.target, edit, tt.want)
		}
	}
}
