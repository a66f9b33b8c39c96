package composer

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Context keys for per-request state stamped by siteContext.
const (
	ctxKeySite     = "composer.site"
	ctxKeyURL      = "composer.url"
	ctxKeyEditMode = "composer.edit"
)

// setupMiddleware wires the ambient middleware chain onto one host's router.
func setupMiddleware(e *echo.Echo) {
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			c.Logger().Infof("%s %s -> %d (%s)", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	e.Use(middleware.Recover())

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
	}))

	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}))
}

// siteContext stamps request-scoped state for downstream handlers and for
// rendering: the fully-reconstructed request URL, the slug of the site
// resolved by longest-prefix match, and the edit-mode flag. It never
// short-circuits the chain.
func siteContext(reg *Registry, host string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			c.Set(ctxKeyURL, c.Scheme()+"://"+req.Host+req.URL.Path)
			if site, ok := reg.Resolve(host, req.URL.Path); ok {
				c.Set(ctxKeySite, site)
			}
			c.Set(ctxKeyEditMode, truthy(c.QueryParam("edit")))
			return next(c)
		}
	}
}

// SiteSlug returns the slug of the site resolved for this request, or ""
// when no site matched.
func SiteSlug(c echo.Context) string {
	site, ok := c.Get(ctxKeySite).(Site)
	if !ok {
		return ""
	}
	return site.Slug
}

// resolvedSite returns the site resolved for this request.
func resolvedSite(c echo.Context) (Site, bool) {
	site, ok := c.Get(ctxKeySite).(Site)
	return site, ok
}

// RequestURL returns the fully-reconstructed URL (scheme + host + original
// path) recorded for this request.
func RequestURL(c echo.Context) string {
	u, _ := c.Get(ctxKeyURL).(string)
	return u
}

// EditMode reports whether the request carried a truthy edit query
// parameter. The flag never participates in storage lookup keys.
func EditMode(c echo.Context) bool {
	edit, _ := c.Get(ctxKeyEditMode).(bool)
	return edit
}

// truthy interprets a query parameter value as a boolean flag.
func truthy(v string) bool {
	switch strings.ToLower(v) {
	case "", "0", "false":
		return false
	}
	return true
}
