package readcache

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-user-directory/cache"
)

type snapshot struct {
	ID   int64
	Name string
}

// recordingCache is an in-memory cache.CacheService that records the calls it receives.
type recordingCache struct {
	mu      sync.Mutex
	entries map[string]any
	calls   []string
}

func newRecordingCache() *recordingCache {
	return &recordingCache{entries: make(map[string]any)}
}

func (m *recordingCache) recordCall(call string) {
	m.calls = append(m.calls, call)
}

func (m *recordingCache) getCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *recordingCache) Get(ctx context.Context, key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordCall("Get:" + key)
	v, ok := m.entries[key]
	return v, ok
}

func (m *recordingCache) Set(ctx context.Context, key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordCall("Set:" + key)
	m.entries[key] = value
	return nil
}

func (m *recordingCache) GetOrFetch(ctx context.Context, key string, fetchFn any) (any, error) {
	m.mu.Lock()
	m.recordCall("GetOrFetch:" + key)
	if v, ok := m.entries[key]; ok {
		m.mu.Unlock()
		return v, nil
	}
	m.mu.Unlock()

	v, err := fetchFn.(cache.FetchFn[snapshot])(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.entries[key] = v
	m.mu.Unlock()
	return v, nil
}

func (m *recordingCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordCall("Delete:" + key)
	delete(m.entries, key)
	return nil
}

func (m *recordingCache) DeleteByPrefix(ctx context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordCall("DeleteByPrefix:" + prefix)
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	return nil
}

func (m *recordingCache) InvalidateKeys(ctx context.Context, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	m.recordCall("InvalidateKeys:" + strings.Join(sorted, ","))
	for _, key := range keys {
		delete(m.entries, key)
	}
	return nil
}

func TestNew_DerivesNamespaceFromType(t *testing.T) {
	c := New[snapshot](newRecordingCache(), nil)
	if c.Namespace() != "snapshot" {
		t.Errorf("expected namespace 'snapshot', got %q", c.Namespace())
	}

	p := New[*snapshot](newRecordingCache(), nil)
	if p.Namespace() != "snapshot" {
		t.Errorf("expected pointer types to use the element name, got %q", p.Namespace())
	}

	custom := New[snapshot](newRecordingCache(), nil, WithNamespace("user_response"))
	if custom.Namespace() != "user_response" {
		t.Errorf("expected overridden namespace, got %q", custom.Namespace())
	}
}

func TestCache_PutGetRemove(t *testing.T) {
	ctx := context.Background()
	backend := newRecordingCache()
	c := New[snapshot](backend, cache.NewDefaultKeySerializer())

	if _, ok := c.Get(ctx, 1); ok {
		t.Fatal("expected miss before Put")
	}

	want := snapshot{ID: 1, Name: "Ada"}
	if err := c.Put(ctx, 1, want); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, ok := c.Get(ctx, 1)
	if !ok || got != want {
		t.Fatalf("expected %+v, got %+v (ok=%v)", want, got, ok)
	}
	if c.Len() != 1 {
		t.Errorf("expected one tracked key, got %d", c.Len())
	}

	if err := c.Remove(ctx, 1); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, ok := c.Get(ctx, 1); ok {
		t.Error("expected miss after Remove")
	}
	if c.Len() != 0 {
		t.Errorf("expected no tracked keys after Remove, got %d", c.Len())
	}

	calls := backend.getCalls()
	wantCalls := []string{
		"Get:snapshot::1",
		"Set:snapshot::1",
		"Get:snapshot::1",
		"Delete:snapshot::1",
		"Get:snapshot::1",
	}
	if strings.Join(calls, "|") != strings.Join(wantCalls, "|") {
		t.Errorf("unexpected call sequence:\n got %v\nwant %v", calls, wantCalls)
	}
}

func TestCache_StoresValueCopies(t *testing.T) {
	ctx := context.Background()
	c := New[snapshot](newRecordingCache(), nil)

	live := snapshot{ID: 2, Name: "before"}
	_ = c.Put(ctx, live.ID, live)
	live.Name = "after"

	got, _ := c.Get(ctx, 2)
	if got.Name != "before" {
		t.Errorf("expected cached snapshot to be unaffected by later mutation, got %q", got.Name)
	}
}

func TestCache_RemoveMissingIsNotAnError(t *testing.T) {
	c := New[snapshot](newRecordingCache(), nil)
	if err := c.Remove(context.Background(), 99); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestCache_GetOrLoad(t *testing.T) {
	ctx := context.Background()
	c := New[snapshot](newRecordingCache(), nil)

	loads := 0
	load := func(ctx context.Context) (snapshot, error) {
		loads++
		return snapshot{ID: 3, Name: "loaded"}, nil
	}

	for i := 0; i < 2; i++ {
		got, err := c.GetOrLoad(ctx, 3, load)
		if err != nil {
			t.Fatalf("GetOrLoad() error = %v", err)
		}
		if got.Name != "loaded" {
			t.Fatalf("expected loaded snapshot, got %+v", got)
		}
	}

	if loads != 1 {
		t.Errorf("expected loader to run once, ran %d times", loads)
	}
	if c.Len() != 1 {
		t.Errorf("expected loaded key to be tracked, got %d", c.Len())
	}
}

func TestCache_GetOrLoadErrorIsNotCached(t *testing.T) {
	ctx := context.Background()
	c := New[snapshot](newRecordingCache(), nil)
	loadErr := errors.New("not found")

	_, err := c.GetOrLoad(ctx, 4, func(ctx context.Context) (snapshot, error) {
		return snapshot{}, loadErr
	})
	if !errors.Is(err, loadErr) {
		t.Fatalf("expected load error, got %v", err)
	}
	if _, ok := c.Get(ctx, 4); ok {
		t.Error("expected failed load not to be cached")
	}
	if c.Len() != 0 {
		t.Errorf("expected no tracked keys, got %d", c.Len())
	}
}

func TestCache_InvalidateAll(t *testing.T) {
	ctx := context.Background()
	backend := newRecordingCache()
	users := New[snapshot](backend, nil, WithNamespace("user_response"))
	others := New[snapshot](backend, nil, WithNamespace("group_response"))

	_ = users.Put(ctx, 1, snapshot{ID: 1})
	_ = users.Put(ctx, 2, snapshot{ID: 2})
	_ = others.Put(ctx, 1, snapshot{ID: 1})

	if err := users.InvalidateAll(ctx); err != nil {
		t.Fatalf("InvalidateAll() error = %v", err)
	}

	if _, ok := users.Get(ctx, 1); ok {
		t.Error("expected user 1 to be invalidated")
	}
	if _, ok := users.Get(ctx, 2); ok {
		t.Error("expected user 2 to be invalidated")
	}
	if _, ok := others.Get(ctx, 1); !ok {
		t.Error("expected other namespace to be untouched")
	}

	found := false
	for _, call := range backend.getCalls() {
		if call == "InvalidateKeys:user_response::1,user_response::2" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a single InvalidateKeys call for the namespace, got %v", backend.getCalls())
	}

	if err := users.InvalidateAll(ctx); err != nil {
		t.Errorf("expected no error invalidating an empty cache, got %v", err)
	}
}

func TestCache_WithSturdycBackend(t *testing.T) {
	ctx := context.Background()
	cfg := cache.DefaultConfig()
	cfg.Capacity = 100
	cfg.NumShards = 2
	cfg.TTL = time.Minute

	svc, err := cache.NewCacheService(cfg)
	if err != nil {
		t.Fatalf("NewCacheService() error = %v", err)
	}
	c := New[snapshot](svc, cache.NewDefaultKeySerializer())

	_ = c.Put(ctx, 10, snapshot{ID: 10, Name: "x"})
	if got, ok := c.Get(ctx, 10); !ok || got.ID != 10 {
		t.Fatalf("expected snapshot 10, got %+v (ok=%v)", got, ok)
	}

	got, err := c.GetOrLoad(ctx, 11, func(ctx context.Context) (snapshot, error) {
		return snapshot{ID: 11}, nil
	})
	if err != nil || got.ID != 11 {
		t.Fatalf("expected loaded snapshot 11, got %+v (err=%v)", got, err)
	}
	if _, ok := c.Get(ctx, 11); !ok {
		t.Error("expected loaded snapshot to be cached")
	}
}

func TestToSnake(t *testing.T) {
	tests := map[string]string{
		"UserResponse":    "user_response",
		"HTTPServer":      "http_server",
		"Task2Response":   "task_2_response",
		"snapshot":        "snapshot",
		"Page[int64]":     "page_int_64",
		"":                "",
		"__Weird--Name__": "weird_name",
	}

	for in, want := range tests {
		if got := toSnake(in); got != want {
			t.Errorf("toSnake(%q) = %q, want %q", in, got, want)
		}
	}
}
