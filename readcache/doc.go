// Package readcache keeps read-model snapshots keyed by entity id on top of a
// cache.CacheService.
//
// # Overview
//
// A Cache[V] is the write-through companion of a store: services Put the
// snapshot after a successful write and Remove it after a successful delete.
// Reads go through Get, and a miss is resolved by the caller against the store.
//
//	svc, _ := cache.NewCacheService(cache.DefaultConfig())
//	users := readcache.New[model.UserResponse](svc, cache.NewDefaultKeySerializer())
//
//	_ = users.Put(ctx, resp.ID, resp)     // key "user_response::<id>"
//	snap, ok := users.Get(ctx, resp.ID)
//	_ = users.Remove(ctx, resp.ID)
//
// # Read-miss population
//
// GetOrLoad fills the cache from a loader on a miss. A loader that read the
// entity before a concurrent delete can store its snapshot after the delete
// removed the entry, so population on read should be enabled only where the
// cache TTL is an acceptable bound on that staleness.
//
// # Invalidation
//
// Every key written by a Cache is tracked in a concurrent registry so
// InvalidateAll can remove them without scanning the backend. Namespaces are
// derived from the value type name (UserResponse becomes "user_response") and
// can be overridden with WithNamespace when two caches share a value type.
package readcache
