package composer

import (
	"net/http"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestHostMuxUnknownHost(t *testing.T) {
	_, h := newTestApp(t)

	rec := doRequest(h, http.MethodGet, "http://unknown.com/components/x", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown host status = %d, want 404", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("unknown host body = %q, want empty", rec.Body.String())
	}
}

func TestHostMuxIgnoresPort(t *testing.T) {
	_, h := newTestApp(t)

	rec := doRequest(h, http.MethodPut, "http://example.com:8080/components/x", `{"a":1}`)
	if rec.Code != http.StatusOK {
		t.Errorf("host with port status = %d, want 200", rec.Code)
	}
}

func TestHostRoutersBoundToAlias(t *testing.T) {
	reg := NewRegistry(
		[]Site{{Slug: "main", Host: "example.com", Path: "/"}},
		map[string]string{"example.com": "www.example.com"},
	)
	app := New(Config{DatabasePath: filepath.Join(t.TempDir(), "r.db")}, WithRegistry(reg))
	h, err := app.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer app.Close()

	rec := doRequest(h, http.MethodPut, "http://www.example.com/components/x", `{"a":1}`)
	if rec.Code != http.StatusOK {
		t.Errorf("alias host status = %d, want 200", rec.Code)
	}
	rec = doRequest(h, http.MethodGet, "http://example.com/components/x", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("configured host must not be bound when an alias exists, got %d", rec.Code)
	}
}

func TestBuildFailsOnMissingAlias(t *testing.T) {
	reg := NewRegistry(
		[]Site{
			{Slug: "a", Host: "one.com", Path: "/"},
			{Slug: "b", Host: "two.com", Path: "/"},
		},
		map[string]string{"one.com": "www.one.com"},
	)
	app := New(Config{DatabasePath: filepath.Join(t.TempDir(), "r.db")}, WithRegistry(reg))
	if _, err := app.Build(); err == nil {
		t.Error("expected fatal configuration error for host with no alias")
	}
}

func TestBuildFailsOnDuplicateMount(t *testing.T) {
	reg := NewRegistry([]Site{
		{Slug: "a", Host: "example.com", Path: "/"},
		{Slug: "b", Host: "example.com", Path: "/"},
	}, nil)
	app := New(Config{DatabasePath: filepath.Join(t.TempDir(), "r.db")}, WithRegistry(reg))
	if _, err := app.Build(); err == nil {
		t.Error("expected error for two sites mounting the same path on one host")
	}
}

func TestSiteExtensionRoutes(t *testing.T) {
	ext := func(r *SiteRouter, renderer Renderer) error {
		if renderer == nil {
			t.Error("extension should receive the rendering engine")
		}
		r.GET("/whoami", func(c echo.Context) error {
			return c.String(http.StatusOK, SiteSlug(c))
		})
		return nil
	}
	_, h := newTestApp(t, WithSiteExtension("foo", ext))

	rec := doRequest(h, http.MethodGet, "http://example.com/foo/whoami", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("extension route status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "foo" {
		t.Errorf("extension route body = %q, want foo", rec.Body.String())
	}
}
