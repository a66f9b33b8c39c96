package composer

import (
	"time"

	"github.com/eringen/composer/storage"
)

// Config holds all configuration for a composer instance.
type Config struct {
	RegistryPath string // TOML site registry (default "config/sites.toml")
	Addr         string // listen address (default ":3000")
	DatabasePath string // SQLite path for the default store (default "data/resources.db")

	EditorPassword string // optional: enables the write guard on PUT/POST
	SessionSecret  string // required when EditorPassword is set
	CookieSecure   bool   // set true for HTTPS

	ComponentCacheTTL time.Duration // component-default cache TTL (default 5min)
}

func (c *Config) setDefaults() {
	if c.RegistryPath == "" {
		c.RegistryPath = "config/sites.toml"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/resources.db"
	}
	if c.ComponentCacheTTL == 0 {
		c.ComponentCacheTTL = 5 * time.Minute
	}
}

// Option configures additional App behavior.
type Option func(*App)

// WithRegistry supplies an already-built site registry instead of loading
// one from Config.RegistryPath.
func WithRegistry(reg *Registry) Option {
	return func(a *App) { a.registry = reg }
}

// WithStore replaces the default SQLite store with another storage engine.
func WithStore(s storage.Store) Option {
	return func(a *App) { a.store = s }
}

// WithResolver replaces the default storage-backed reference resolver.
func WithResolver(r Resolver) Option {
	return func(a *App) { a.resolver = r }
}

// WithRenderer replaces the default rendering engine.
func WithRenderer(r Renderer) Option {
	return func(a *App) { a.renderer = r }
}

// WithSiteExtension registers a per-tenant extension module, invoked once
// for the named site at startup.
func WithSiteExtension(slug string, ext SiteExtension) Option {
	return func(a *App) {
		a.extensions[slug] = append(a.extensions[slug], ext)
	}
}

// WithIDGenerator replaces the identifier source. Generated identifiers
// must be time-ordered, globally unique and URL-safe.
func WithIDGenerator(ids func() string) Option {
	return func(a *App) { a.ids = ids }
}
