// Package cache provides the key/value cache contract and key serialization the
// directory read-model caches are built on.
//
// # Overview
//
//   - CacheService: Get, Set, GetOrFetch and the invalidation operations
//   - KeySerializer: builds namespaced keys such as "user_response::42"
//   - Config / NewCacheService: the sturdyc backed implementation
//
// Typed access goes through the generic helpers:
//
//	svc, _ := cache.NewCacheService(cache.DefaultConfig())
//	key := cache.NewDefaultKeySerializer().SerializeKey("user_response", int64(42))
//	_ = svc.Set(ctx, key, resp)
//	resp, ok := cache.Get[model.UserResponse](ctx, svc, key)
//
// # Keys
//
// Segments are joined with KeySeparator. Integers, strings, booleans and
// fmt.Stringer values are written verbatim; slices are serialized element by
// element; maps and structs fall back to JSON. A segment longer than
// MaxSegmentLength, or one that contains the separator, is replaced by its
// xxhash digest so a key can never be confused with another namespace.
//
// Function and channel values serialize to their address and are only stable
// within one process.
package cache
