// Package memstore is an in-process store.Store backed by concurrent maps.
//
// Single operations are safe for concurrent use. RunInTx serializes
// transaction bodies against each other but does not isolate them from
// writes made outside a transaction, and a failed body is not rolled back.
// It is meant for tests and ephemeral runs.
package memstore

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/goliatone/go-user-directory/model"
	"github.com/goliatone/go-user-directory/store"
	"github.com/puzpuzpuz/xsync/v3"
)

type edge struct {
	userID  int64
	groupID int64
}

type state struct {
	txMu    sync.Mutex
	writeMu sync.Mutex

	userSeq  atomic.Int64
	groupSeq atomic.Int64
	taskSeq  atomic.Int64

	users  *xsync.MapOf[int64, model.User]
	groups *xsync.MapOf[int64, model.Group]
	tasks  *xsync.MapOf[int64, model.Task]
	edges  *xsync.MapOf[edge, struct{}]

	emails     *xsync.MapOf[string, int64]
	phones     *xsync.MapOf[string, int64]
	groupNames *xsync.MapOf[string, int64]
}

// Store implements store.Store. The zero value is not usable; call New.
type Store struct {
	st   *state
	inTx bool
}

var _ store.Store = (*Store)(nil)

// New returns an empty Store. Ids start at 1.
func New() *Store {
	return &Store{st: &state{
		users:      xsync.NewMapOf[int64, model.User](),
		groups:     xsync.NewMapOf[int64, model.Group](),
		tasks:      xsync.NewMapOf[int64, model.Task](),
		edges:      xsync.NewMapOf[edge, struct{}](),
		emails:     xsync.NewMapOf[string, int64](),
		phones:     xsync.NewMapOf[string, int64](),
		groupNames: xsync.NewMapOf[string, int64](),
	}}
}

func (s *Store) Users() store.UserStore             { return userStore{s.st} }
func (s *Store) Groups() store.GroupStore           { return groupStore{s.st} }
func (s *Store) Tasks() store.TaskStore             { return taskStore{s.st} }
func (s *Store) Memberships() store.MembershipStore { return membershipStore{s.st} }

// RunInTx runs fn while holding the transaction lock. A nested call made with
// the tx handle runs inline.
func (s *Store) RunInTx(ctx context.Context, fn store.TxFunc) error {
	if s.inTx {
		return fn(ctx, s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.st.txMu.Lock()
	defer s.st.txMu.Unlock()

	return fn(ctx, &Store{st: s.st, inTx: true})
}

func (s *Store) Close() error { return nil }

func sortedValues[K comparable, V any](m *xsync.MapOf[K, V], keep func(V) bool, less func(a, b V) bool) []V {
	out := make([]V, 0, m.Size())
	m.Range(func(_ K, v V) bool {
		if keep == nil || keep(v) {
			out = append(out, v)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// claim points idx[value] at id unless another record holds it.
func claim(idx *xsync.MapOf[string, int64], value string, id int64) bool {
	owner, loaded := idx.LoadOrStore(value, id)
	return !loaded || owner == id
}

// release removes idx[value] when it still points at id.
func release(idx *xsync.MapOf[string, int64], value string, id int64) {
	idx.Compute(value, func(owner int64, loaded bool) (int64, bool) {
		return owner, !loaded || owner == id
	})
}

type userStore struct{ st *state }

func (u userStore) FindByID(ctx context.Context, id int64) (model.User, bool, error) {
	user, ok := u.st.users.Load(id)
	return user, ok, nil
}

func (u userStore) FindByEmail(ctx context.Context, email string) (model.User, bool, error) {
	id, ok := u.st.emails.Load(email)
	if !ok {
		return model.User{}, false, nil
	}
	return u.FindByID(ctx, id)
}

func (u userStore) FindAll(ctx context.Context) ([]model.User, error) {
	return sortedValues(u.st.users, nil, func(a, b model.User) bool { return a.ID < b.ID }), nil
}

func (u userStore) FindByGroupName(ctx context.Context, name string) ([]model.User, error) {
	groupID, ok := u.st.groupNames.Load(name)
	if !ok {
		return []model.User{}, nil
	}
	ids, _ := membershipStore{u.st}.UserIDsForGroup(ctx, groupID)
	users := make([]model.User, 0, len(ids))
	for _, id := range ids {
		if user, ok := u.st.users.Load(id); ok {
			users = append(users, user)
		}
	}
	return users, nil
}

func (u userStore) Save(ctx context.Context, user model.User) (model.User, error) {
	u.st.writeMu.Lock()
	defer u.st.writeMu.Unlock()

	var prev model.User
	if user.ID == 0 {
		user.ID = u.st.userSeq.Add(1)
	} else {
		var ok bool
		if prev, ok = u.st.users.Load(user.ID); !ok {
			return model.User{}, store.ErrNotFound
		}
	}

	if !claim(u.st.emails, user.Email, user.ID) {
		return model.User{}, store.ErrDuplicate
	}
	if !claim(u.st.phones, user.Phone, user.ID) {
		if prev.Email != user.Email {
			release(u.st.emails, user.Email, user.ID)
		}
		return model.User{}, store.ErrDuplicate
	}
	if prev.ID != 0 {
		if prev.Email != user.Email {
			release(u.st.emails, prev.Email, user.ID)
		}
		if prev.Phone != user.Phone {
			release(u.st.phones, prev.Phone, user.ID)
		}
	}

	u.st.users.Store(user.ID, user)
	return user, nil
}

func (u userStore) DeleteByID(ctx context.Context, id int64) error {
	u.st.writeMu.Lock()
	defer u.st.writeMu.Unlock()

	user, ok := u.st.users.LoadAndDelete(id)
	if !ok {
		return nil
	}
	release(u.st.emails, user.Email, id)
	release(u.st.phones, user.Phone, id)
	return nil
}

func (u userStore) ExistsByID(ctx context.Context, id int64) (bool, error) {
	_, ok := u.st.users.Load(id)
	return ok, nil
}

func (u userStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, ok := u.st.emails.Load(email)
	return ok, nil
}

func (u userStore) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	_, ok := u.st.phones.Load(phone)
	return ok, nil
}

type groupStore struct{ st *state }

func (g groupStore) FindByID(ctx context.Context, id int64) (model.Group, bool, error) {
	group, ok := g.st.groups.Load(id)
	return group, ok, nil
}

func (g groupStore) FindByName(ctx context.Context, name string) (model.Group, bool, error) {
	id, ok := g.st.groupNames.Load(name)
	if !ok {
		return model.Group{}, false, nil
	}
	return g.FindByID(ctx, id)
}

func (g groupStore) FindAll(ctx context.Context) ([]model.Group, error) {
	return sortedValues(g.st.groups, nil, func(a, b model.Group) bool { return a.ID < b.ID }), nil
}

func (g groupStore) FindByIDs(ctx context.Context, ids []int64) ([]model.Group, error) {
	wanted := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	return sortedValues(g.st.groups, func(group model.Group) bool {
		_, ok := wanted[group.ID]
		return ok
	}, func(a, b model.Group) bool { return a.ID < b.ID }), nil
}

func (g groupStore) Save(ctx context.Context, group model.Group) (model.Group, error) {
	g.st.writeMu.Lock()
	defer g.st.writeMu.Unlock()

	var prev model.Group
	if group.ID == 0 {
		group.ID = g.st.groupSeq.Add(1)
	} else {
		var ok bool
		if prev, ok = g.st.groups.Load(group.ID); !ok {
			return model.Group{}, store.ErrNotFound
		}
	}

	if !claim(g.st.groupNames, group.Name, group.ID) {
		return model.Group{}, store.ErrDuplicate
	}
	if prev.ID != 0 && prev.Name != group.Name {
		release(g.st.groupNames, prev.Name, group.ID)
	}

	g.st.groups.Store(group.ID, group)
	return group, nil
}

func (g groupStore) DeleteByID(ctx context.Context, id int64) error {
	g.st.writeMu.Lock()
	defer g.st.writeMu.Unlock()

	group, ok := g.st.groups.LoadAndDelete(id)
	if ok {
		release(g.st.groupNames, group.Name, id)
	}
	return nil
}

func (g groupStore) ExistsByID(ctx context.Context, id int64) (bool, error) {
	_, ok := g.st.groups.Load(id)
	return ok, nil
}

func (g groupStore) ExistsByName(ctx context.Context, name string) (bool, error) {
	_, ok := g.st.groupNames.Load(name)
	return ok, nil
}

type taskStore struct{ st *state }

func byTaskID(a, b model.Task) bool { return a.ID < b.ID }

func (t taskStore) FindByID(ctx context.Context, id int64) (model.Task, bool, error) {
	task, ok := t.st.tasks.Load(id)
	return task, ok, nil
}

func (t taskStore) FindAll(ctx context.Context) ([]model.Task, error) {
	return sortedValues(t.st.tasks, nil, byTaskID), nil
}

func (t taskStore) FindByUserID(ctx context.Context, userID int64) ([]model.Task, error) {
	return sortedValues(t.st.tasks, func(task model.Task) bool { return task.UserID == userID }, byTaskID), nil
}

func (t taskStore) Save(ctx context.Context, task model.Task) (model.Task, error) {
	if task.ID == 0 {
		task.ID = t.st.taskSeq.Add(1)
	} else if _, ok := t.st.tasks.Load(task.ID); !ok {
		return model.Task{}, store.ErrNotFound
	}
	t.st.tasks.Store(task.ID, task)
	return task, nil
}

func (t taskStore) DeleteByID(ctx context.Context, id int64) error {
	t.st.tasks.Delete(id)
	return nil
}

func (t taskStore) DeleteByUserID(ctx context.Context, userID int64) error {
	t.st.tasks.Range(func(id int64, task model.Task) bool {
		if task.UserID == userID {
			t.st.tasks.Delete(id)
		}
		return true
	})
	return nil
}

func (t taskStore) ExistsByID(ctx context.Context, id int64) (bool, error) {
	_, ok := t.st.tasks.Load(id)
	return ok, nil
}

type membershipStore struct{ st *state }

func (m membershipStore) Add(ctx context.Context, userID, groupID int64) error {
	m.st.edges.Store(edge{userID: userID, groupID: groupID}, struct{}{})
	return nil
}

func (m membershipStore) Remove(ctx context.Context, userID, groupID int64) error {
	m.st.edges.Delete(edge{userID: userID, groupID: groupID})
	return nil
}

func (m membershipStore) Exists(ctx context.Context, userID, groupID int64) (bool, error) {
	_, ok := m.st.edges.Load(edge{userID: userID, groupID: groupID})
	return ok, nil
}

func (m membershipStore) GroupIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	return m.collect(func(e edge) (int64, bool) { return e.groupID, e.userID == userID }), nil
}

func (m membershipStore) UserIDsForGroup(ctx context.Context, groupID int64) ([]int64, error) {
	return m.collect(func(e edge) (int64, bool) { return e.userID, e.groupID == groupID }), nil
}

func (m membershipStore) RemoveAllForUser(ctx context.Context, userID int64) error {
	m.removeWhere(func(e edge) bool { return e.userID == userID })
	return nil
}

func (m membershipStore) RemoveAllForGroup(ctx context.Context, groupID int64) error {
	m.removeWhere(func(e edge) bool { return e.groupID == groupID })
	return nil
}

func (m membershipStore) collect(pick func(edge) (int64, bool)) []int64 {
	ids := []int64{}
	m.st.edges.Range(func(e edge, _ struct{}) bool {
		if id, ok := pick(e); ok {
			ids = append(ids, id)
		}
		return true
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (m membershipStore) removeWhere(match func(edge) bool) {
	m.st.edges.Range(func(e edge, _ struct{}) bool {
		if match(e) {
			m.st.edges.Delete(e)
		}
		return true
	})
}
