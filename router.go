package composer

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// HostMux serves one composed router per distinct host. Built once at
// startup, read-only afterwards.
type HostMux struct {
	hosts map[string]*echo.Echo
}

// ServeHTTP dispatches to the router bound to the request's host, ignoring
// any port. An unknown host gets a bare 404.
func (m *HostMux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	e, ok := m.hosts[host]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	e.ServeHTTP(w, r)
}

// Router returns the composed router bound to a host alias, or nil.
func (m *HostMux) Router(host string) *echo.Echo { return m.hosts[host] }

// SiteExtension augments one site's router with per-tenant custom routes.
// It runs once per site at startup and receives the rendering engine.
type SiteExtension func(r *SiteRouter, renderer Renderer) error

// SiteRouter is the builder handed to site extension modules. It registers
// routes inside the site's mount path and exposes site-level composition
// settings such as the default page layout.
type SiteRouter struct {
	site  Site
	group *echo.Group
	app   *App
}

// Site returns the site this router belongs to.
func (r *SiteRouter) Site() Site { return r.site }

// GET registers a custom GET route inside the site's mount path.
func (r *SiteRouter) GET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	r.group.GET(path, h, m...)
}

// POST registers a custom POST route inside the site's mount path.
func (r *SiteRouter) POST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	r.group.POST(path, h, m...)
}

// PUT registers a custom PUT route inside the site's mount path.
func (r *SiteRouter) PUT(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	r.group.PUT(path, h, m...)
}

// SetLayout sets the layout reference used when a page-creation request
// carries none.
func (r *SiteRouter) SetLayout(ref string) {
	r.app.layouts[r.site.Slug] = ref
}

// Layout returns the site's default layout reference, or "".
func (r *SiteRouter) Layout() string {
	return r.app.layouts[r.site.Slug]
}

// buildHostRouters composes one router per distinct host: ambient
// middleware, the site-context middleware, resource routes per site
// (registered shallow to deep), and any site extension modules.
func (a *App) buildHostRouters(reg *Registry) (*HostMux, error) {
	mux := &HostMux{hosts: make(map[string]*echo.Echo)}

	for _, host := range reg.Hosts() {
		alias, err := reg.Alias(host)
		if err != nil {
			return nil, err
		}

		e := echo.New()
		e.HideBanner = true
		e.HidePort = true
		e.HTTPErrorHandler = a.httpErrorHandler
		setupMiddleware(e)
		e.Use(siteContext(reg, host))
		a.registerAuthRoutes(e)

		mounted := make(map[string]string)
		for _, site := range reg.SitesForHost(host) {
			prefix := mountPrefix(site.Path)
			if other, dup := mounted[prefix]; dup {
				return nil, fmt.Errorf("composer: sites %q and %q both mount %s on host %s", other, site.Slug, site.Path, host)
			}
			mounted[prefix] = site.Slug

			g := e.Group(prefix)
			a.registerResourceRoutes(g, site)

			sr := &SiteRouter{site: site, group: g, app: a}
			for _, ext := range a.extensions[site.Slug] {
				if err := ext(sr, a.renderer); err != nil {
					return nil, fmt.Errorf("composer: site extension for %s: %w", site.Slug, err)
				}
			}
		}

		mux.hosts[alias] = e
	}

	return mux, nil
}

// mountPrefix turns a site mount path into an echo group prefix: the root
// mount contributes no prefix.
func mountPrefix(path string) string {
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		return ""
	}
	return path
}
