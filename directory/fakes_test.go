package directory

import (
	"context"
	"errors"
	"sync"

	"github.com/goliatone/go-user-directory/cache"
	"github.com/goliatone/go-user-directory/model"
	"github.com/goliatone/go-user-directory/store"
	"github.com/goliatone/go-user-directory/store/memstore"
)

// calls records collaborator calls by name, in order.
type calls struct {
	mu  sync.Mutex
	log []string
}

func (c *calls) add(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = append(c.log, name)
}

func (c *calls) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, l := range c.log {
		if l == name {
			n++
		}
	}
	return n
}

func (c *calls) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.log...)
}

func (c *calls) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = nil
}

// countingStore wraps a memstore and records user store calls, including
// those made through a transaction handle.
type countingStore struct {
	*memstore.Store
	calls *calls
}

func newCountingStore(c *calls) *countingStore {
	return &countingStore{Store: memstore.New(), calls: c}
}

func (s *countingStore) Users() store.UserStore {
	return countingUsers{UserStore: s.Store.Users(), calls: s.calls}
}

func (s *countingStore) RunInTx(ctx context.Context, fn store.TxFunc) error {
	s.calls.add("store.RunInTx")
	return s.Store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		return fn(ctx, &countingStore{Store: tx.(*memstore.Store), calls: s.calls})
	})
}

type countingUsers struct {
	store.UserStore
	calls *calls
}

func (u countingUsers) FindByID(ctx context.Context, id int64) (model.User, bool, error) {
	u.calls.add("store.FindByID")
	return u.UserStore.FindByID(ctx, id)
}

func (u countingUsers) Save(ctx context.Context, user model.User) (model.User, error) {
	u.calls.add("store.Save")
	return u.UserStore.Save(ctx, user)
}

func (u countingUsers) DeleteByID(ctx context.Context, id int64) error {
	u.calls.add("store.DeleteByID")
	return u.UserStore.DeleteByID(ctx, id)
}

// fakeCache is an in-memory UserCache that records every call.
type fakeCache struct {
	mu      sync.Mutex
	entries map[int64]model.UserResponse
	calls   *calls
	putErr  error
}

func newFakeCache(c *calls) *fakeCache {
	return &fakeCache{entries: map[int64]model.UserResponse{}, calls: c}
}

func (f *fakeCache) Get(_ context.Context, id int64) (model.UserResponse, bool) {
	f.calls.add("cache.Get")
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.entries[id]
	return v, ok
}

func (f *fakeCache) Put(_ context.Context, id int64, v model.UserResponse) error {
	f.calls.add("cache.Put")
	if f.putErr != nil {
		return f.putErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[id] = v
	return nil
}

func (f *fakeCache) Remove(_ context.Context, id int64) error {
	f.calls.add("cache.Remove")
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, id)
	return nil
}

func (f *fakeCache) has(id int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.entries[id]
	return ok
}

// loadingFakeCache adds GetOrLoad so the populate-on-read path can be observed.
type loadingFakeCache struct {
	*fakeCache
}

func (f loadingFakeCache) GetOrLoad(ctx context.Context, id int64, load cache.FetchFn[model.UserResponse]) (model.UserResponse, error) {
	f.calls.add("cache.GetOrLoad")
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	return v, f.Put(ctx, id, v)
}

// hookStore wraps a memstore and calls afterUserExists whenever a user
// existence check succeeds, including checks made through a tx handle.
type hookStore struct {
	*memstore.Store
	afterUserExists func(id int64)
}

func (s hookStore) Users() store.UserStore {
	return hookUsers{UserStore: s.Store.Users(), after: s.afterUserExists}
}

func (s hookStore) RunInTx(ctx context.Context, fn store.TxFunc) error {
	return s.Store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		return fn(ctx, hookStore{Store: tx.(*memstore.Store), afterUserExists: s.afterUserExists})
	})
}

type hookUsers struct {
	store.UserStore
	after func(id int64)
}

func (u hookUsers) ExistsByID(ctx context.Context, id int64) (bool, error) {
	ok, err := u.UserStore.ExistsByID(ctx, id)
	if ok && err == nil {
		u.after(id)
	}
	return ok, err
}

var errCacheDown = errors.New("cache down")
