package readcache

import (
	"context"
	"reflect"

	"github.com/goliatone/go-user-directory/cache"
	"github.com/puzpuzpuz/xsync/v3"
)

// Cache maps entity ids to read-model snapshots of type V. Values are stored
// as given, so V should be a plain value type.
type Cache[V any] struct {
	namespace     string
	cache         cache.CacheService
	keySerializer cache.KeySerializer
	keyRegistry   *xsync.MapOf[string, struct{}]
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	namespace string
}

// WithNamespace overrides the key namespace derived from the value type.
func WithNamespace(ns string) Option {
	return func(o *options) {
		o.namespace = ns
	}
}

// New creates a Cache over cacheService. Keys are namespaced with the
// snake_case name of V unless WithNamespace is given.
func New[V any](cacheService cache.CacheService, keySerializer cache.KeySerializer, opts ...Option) *Cache[V] {
	o := options{namespace: namespaceFor[V]()}
	for _, opt := range opts {
		opt(&o)
	}
	if keySerializer == nil {
		keySerializer = cache.NewDefaultKeySerializer()
	}

	return &Cache[V]{
		namespace:     o.namespace,
		cache:         cacheService,
		keySerializer: keySerializer,
		keyRegistry:   xsync.NewMapOf[string, struct{}](),
	}
}

// Namespace returns the key prefix owner of this cache.
func (c *Cache[V]) Namespace() string {
	return c.namespace
}

// Get returns the snapshot cached for id.
func (c *Cache[V]) Get(ctx context.Context, id int64) (V, bool) {
	return cache.Get[V](ctx, c.cache, c.key(id))
}

// Put stores v as the snapshot for id, replacing any previous entry.
func (c *Cache[V]) Put(ctx context.Context, id int64, v V) error {
	key := c.key(id)
	if err := c.cache.Set(ctx, key, v); err != nil {
		return err
	}
	c.trackKey(key)
	return nil
}

// Remove drops the snapshot for id. Removing a missing entry is not an error.
func (c *Cache[V]) Remove(ctx context.Context, id int64) error {
	key := c.key(id)
	c.keyRegistry.Delete(key)
	return c.cache.Delete(ctx, key)
}

// GetOrLoad returns the cached snapshot for id, or calls load and caches its
// result. A failed load is returned unchanged and nothing is cached.
func (c *Cache[V]) GetOrLoad(ctx context.Context, id int64, load cache.FetchFn[V]) (V, error) {
	key := c.key(id)
	v, err := cache.GetOrFetch(ctx, c.cache, key, load)
	if err == nil {
		c.trackKey(key)
	}
	return v, err
}

// InvalidateAll removes every entry this cache wrote.
func (c *Cache[V]) InvalidateAll(ctx context.Context) error {
	var keys []string
	c.keyRegistry.Range(func(key string, _ struct{}) bool {
		keys = append(keys, key)
		return true
	})
	if len(keys) == 0 {
		return nil
	}
	if err := c.cache.InvalidateKeys(ctx, keys); err != nil {
		return err
	}
	for _, key := range keys {
		c.keyRegistry.Delete(key)
	}
	return nil
}

// Len reports how many ids currently have a tracked entry. Entries evicted by
// the backend for capacity are still counted until removed or invalidated.
func (c *Cache[V]) Len() int {
	return c.keyRegistry.Size()
}

func (c *Cache[V]) key(id int64) string {
	return c.keySerializer.SerializeKey(c.namespace, id)
}

func (c *Cache[V]) trackKey(key string) {
	c.keyRegistry.Store(key, struct{}{})
}

func namespaceFor[V any]() string {
	t := reflect.TypeOf((*V)(nil)).Elem()
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if ns := toSnake(t.Name()); ns != "" {
		return ns
	}
	return "read_model"
}
