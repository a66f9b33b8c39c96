package composer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// Site is one tenant's configuration: a slug, the host it answers on, and
// the path it is mounted under. Immutable once loaded.
type Site struct {
	Slug string `toml:"slug"`
	Host string `toml:"host"`
	Path string `toml:"path"`
}

// Registry is the immutable set of configured sites, built once at startup
// and read-only for the lifetime of the process.
type Registry struct {
	sites   []Site
	byHost  map[string][]Site
	hosts   []string
	aliases map[string]string
}

// NewRegistry builds a Registry from sites and a per-environment host-alias
// table. Sites within a host are ordered ascending by path-segment depth;
// ties keep their original registry order.
func NewRegistry(sites []Site, aliases map[string]string) *Registry {
	r := &Registry{
		sites:   make([]Site, len(sites)),
		byHost:  make(map[string][]Site),
		aliases: aliases,
	}
	copy(r.sites, sites)
	for i := range r.sites {
		if r.sites[i].Path == "" {
			r.sites[i].Path = "/"
		}
	}
	for _, s := range r.sites {
		if _, seen := r.byHost[s.Host]; !seen {
			r.hosts = append(r.hosts, s.Host)
		}
		r.byHost[s.Host] = append(r.byHost[s.Host], s)
	}
	for host := range r.byHost {
		group := r.byHost[host]
		sort.SliceStable(group, func(i, j int) bool {
			return pathDepth(group[i].Path) < pathDepth(group[j].Path)
		})
	}
	return r
}

// registryFile is the on-disk TOML shape of a site registry.
type registryFile struct {
	Sites   []Site            `toml:"site"`
	Aliases map[string]string `toml:"aliases"`
}

// LoadRegistry reads a site registry from a TOML file with [[site]] blocks
// and an optional [aliases] table mapping configured hosts to the external
// host each environment binds them to.
func LoadRegistry(path string) (*Registry, error) {
	var file registryFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("composer: load registry %s: %w", path, err)
	}
	if len(file.Sites) == 0 {
		return nil, fmt.Errorf("composer: registry %s declares no sites", path)
	}
	return NewRegistry(file.Sites, file.Aliases), nil
}

// Sites returns every configured site in registry order.
func (r *Registry) Sites() []Site { return r.sites }

// Hosts returns the distinct configured hosts in first-seen order.
func (r *Registry) Hosts() []string { return r.hosts }

// SitesForHost returns the host's sites ordered shallow to deep.
func (r *Registry) SitesForHost(host string) []Site { return r.byHost[host] }

// Alias returns the external host alias for a configured host. A configured
// host with no alias is a fatal startup configuration error, surfaced here.
func (r *Registry) Alias(host string) (string, error) {
	if len(r.aliases) == 0 {
		return host, nil
	}
	alias, ok := r.aliases[host]
	if !ok {
		return "", fmt.Errorf("composer: no host alias configured for %s", host)
	}
	return alias, nil
}

// Resolve picks the site serving path on host by longest-prefix match over
// the host's mount paths, so the most specific site wins regardless of
// registration order.
func (r *Registry) Resolve(host, path string) (Site, bool) {
	var best Site
	found := false
	bestLen := -1
	for _, s := range r.byHost[host] {
		if !mountMatches(s.Path, path) {
			continue
		}
		if l := len(strings.TrimSuffix(s.Path, "/")); l > bestLen {
			best, bestLen, found = s, l, true
		}
	}
	return best, found
}

// mountMatches reports whether a request path falls under a mount path.
// Matching is segment-aligned: /foo matches /foo and /foo/bar, not /foobar.
func mountMatches(mount, path string) bool {
	mount = strings.TrimSuffix(mount, "/")
	if mount == "" {
		return true
	}
	if !strings.HasPrefix(path, mount) {
		return false
	}
	rest := path[len(mount):]
	return rest == "" || rest[0] == '/'
}

// pathDepth counts the segments of a mount path the way the routing table
// orders sites: by the length of its '/'-split form.
func pathDepth(p string) int {
	return len(strings.Split(p, "/"))
}
