package composer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/buger/jsonparser"

	"github.com/eringen/composer/storage"
)

// Resolver supplies component defaults and schemas to the dispatcher and
// the page-creation transaction. The default implementation reads from the
// storage collaborator through a TTL cache of component defaults.
type Resolver interface {
	GetComponentData(ctx context.Context, key string) (json.RawMessage, error)
	PutComponentData(ctx context.Context, key string, data json.RawMessage) error
	GetSchema(ctx context.Context, key string) (json.RawMessage, error)
	GetComponentName(ref string) string
}

// storeResolver is the storage-backed Resolver.
type storeResolver struct {
	store storage.Store
	cache *refCache
}

// NewResolver creates the default storage-backed Resolver. Component
// defaults are cached for ttl; a PutComponentData invalidates the cached
// entry for that component.
func NewResolver(store storage.Store, ttl time.Duration) Resolver {
	return &storeResolver{store: store, cache: newRefCache(ttl)}
}

func (r *storeResolver) GetComponentData(ctx context.Context, key string) (json.RawMessage, error) {
	if data, ok := r.cache.get(key); ok {
		return data, nil
	}
	data, err := r.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	r.cache.set(key, data)
	return data, nil
}

func (r *storeResolver) PutComponentData(ctx context.Context, key string, data json.RawMessage) error {
	if !json.Valid(data) {
		return fmt.Errorf("composer: component data for %s is not valid JSON", key)
	}
	if err := r.store.Put(ctx, key, data); err != nil {
		return err
	}
	r.cache.invalidate(key)
	return nil
}

// GetSchema returns the schema stored alongside a component, at
// <component key>/schema.
func (r *storeResolver) GetSchema(ctx context.Context, key string) (json.RawMessage, error) {
	return r.store.Get(ctx, key+"/schema")
}

// GetComponentName extracts the component name from a reference such as
// /components/article or /site/components/article/instances/abc.
func (r *storeResolver) GetComponentName(ref string) string {
	const marker = "/components/"
	i := strings.Index(ref, marker)
	if i < 0 {
		return ""
	}
	name := ref[i+len(marker):]
	if j := strings.IndexByte(name, '/'); j >= 0 {
		name = name[:j]
	}
	return name
}

// refValue extracts a component reference from a page-creation slot value,
// which is either a JSON string or an object carrying a _ref field.
func refValue(value []byte, dataType jsonparser.ValueType) (string, error) {
	switch dataType {
	case jsonparser.String:
		return jsonparser.ParseString(value)
	case jsonparser.Object:
		return jsonparser.GetString(value, "_ref")
	default:
		return "", fmt.Errorf("composer: slot value %s is neither a reference string nor an object with _ref", value)
	}
}

// refCache is an in-memory TTL cache of component default data.
type refCache struct {
	mu      sync.RWMutex
	entries map[string]refEntry
	ttl     time.Duration
}

type refEntry struct {
	data    json.RawMessage
	fetched time.Time
}

func newRefCache(ttl time.Duration) *refCache {
	return &refCache{entries: make(map[string]refEntry), ttl: ttl}
}

func (c *refCache) get(key string) (json.RawMessage, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || time.Since(e.fetched) >= c.ttl {
		return nil, false
	}
	return e.data, true
}

func (c *refCache) set(key string, data json.RawMessage) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = refEntry{data: data, fetched: time.Now()}
	c.mu.Unlock()
}

func (c *refCache) invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}
