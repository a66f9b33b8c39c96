// Package composer is the HTTP front door of a multi-tenant, component-based
// content platform. It maps an incoming (host, path) pair to one of several
// independently configured sites, resolves requests against components,
// component instances, pages, uris and schemas, negotiates the response
// format from the URL extension, and assembles new composite pages from
// component defaults in a single atomic write.
//
// Storage, reference resolution and rendering are collaborators behind
// interfaces; composer ships a SQLite store, a storage-backed resolver and a
// minimal templ renderer as defaults, all replaceable through Options.
package composer

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/eringen/composer/storage"
)

// App is the composer application. It wires together the site registry, the
// per-host routers, the storage, resolver and renderer collaborators, and
// the optional write guard.
type App struct {
	Config Config

	registry   *Registry
	store      storage.Store
	resolver   Resolver
	renderer   Renderer
	mux        *HostMux
	extensions map[string][]SiteExtension
	layouts    map[string]string
	limiter    *loginLimiter
	ids        func() string
}

// New creates a composer App with the given configuration.
func New(cfg Config, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:     cfg,
		extensions: make(map[string][]SiteExtension),
		layouts:    make(map[string]string),
		ids:        newID,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Build initializes collaborators and composes one router per distinct
// host. The resulting handler dispatches by request host; routing tables
// are read-only after this call.
func (a *App) Build() (http.Handler, error) {
	if a.mux != nil {
		return a.mux, nil
	}
	if a.Config.EditorPassword != "" && a.Config.SessionSecret == "" {
		return nil, fmt.Errorf("composer: SessionSecret is required when EditorPassword is set")
	}

	if a.registry == nil {
		reg, err := LoadRegistry(a.Config.RegistryPath)
		if err != nil {
			return nil, err
		}
		a.registry = reg
	}
	if a.store == nil {
		store, err := storage.OpenSQLite(a.Config.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("composer: init store: %w", err)
		}
		a.store = store
	}
	if a.resolver == nil {
		a.resolver = NewResolver(a.store, a.Config.ComponentCacheTTL)
	}
	if a.renderer == nil {
		a.renderer = NewTemplRenderer(a.resolver)
	}
	a.limiter = newLoginLimiter(5, time.Minute)

	mux, err := a.buildHostRouters(a.registry)
	if err != nil {
		return nil, err
	}
	a.mux = mux
	return mux, nil
}

// Start builds the per-host routers and serves them from one listener.
func (a *App) Start() error {
	handler, err := a.Build()
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr:         a.Config.Addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close releases the store. Call when the app is shutting down.
func (a *App) Close() error {
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}
