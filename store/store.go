// Package store defines the persistence contract the directory services are
// written against. Implementations live in store/bunstore (SQL through bun)
// and store/memstore (in-process maps).
//
// Lookups that can miss return (value, found, error): a miss is not an error
// at this layer, the services turn it into a NotFound failure.
package store

import (
	"context"

	"github.com/goliatone/go-user-directory/model"
)

type UserStore interface {
	FindByID(ctx context.Context, id int64) (model.User, bool, error)
	FindByEmail(ctx context.Context, email string) (model.User, bool, error)
	FindAll(ctx context.Context) ([]model.User, error)
	// FindByGroupName returns the members of the named group, or an empty
	// slice when the group does not exist.
	FindByGroupName(ctx context.Context, name string) ([]model.User, error)
	// Save inserts u when u.ID is zero and updates it otherwise. The returned
	// user carries the assigned id.
	Save(ctx context.Context, u model.User) (model.User, error)
	DeleteByID(ctx context.Context, id int64) error
	ExistsByID(ctx context.Context, id int64) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByPhone(ctx context.Context, phone string) (bool, error)
}

type GroupStore interface {
	FindByID(ctx context.Context, id int64) (model.Group, bool, error)
	FindByName(ctx context.Context, name string) (model.Group, bool, error)
	FindAll(ctx context.Context) ([]model.Group, error)
	FindByIDs(ctx context.Context, ids []int64) ([]model.Group, error)
	Save(ctx context.Context, g model.Group) (model.Group, error)
	DeleteByID(ctx context.Context, id int64) error
	ExistsByID(ctx context.Context, id int64) (bool, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
}

type TaskStore interface {
	FindByID(ctx context.Context, id int64) (model.Task, bool, error)
	FindAll(ctx context.Context) ([]model.Task, error)
	FindByUserID(ctx context.Context, userID int64) ([]model.Task, error)
	Save(ctx context.Context, t model.Task) (model.Task, error)
	DeleteByID(ctx context.Context, id int64) error
	DeleteByUserID(ctx context.Context, userID int64) error
	ExistsByID(ctx context.Context, id int64) (bool, error)
}

// MembershipStore holds the user/group edge set. Add and Remove are idempotent.
type MembershipStore interface {
	Add(ctx context.Context, userID, groupID int64) error
	Remove(ctx context.Context, userID, groupID int64) error
	Exists(ctx context.Context, userID, groupID int64) (bool, error)
	GroupIDsForUser(ctx context.Context, userID int64) ([]int64, error)
	UserIDsForGroup(ctx context.Context, groupID int64) ([]int64, error)
	RemoveAllForUser(ctx context.Context, userID int64) error
	RemoveAllForGroup(ctx context.Context, groupID int64) error
}

// TxFunc is a unit of work run against a transaction scoped Store.
type TxFunc func(ctx context.Context, tx Store) error

// Store aggregates the entity stores.
type Store interface {
	Users() UserStore
	Groups() GroupStore
	Tasks() TaskStore
	Memberships() MembershipStore
	// RunInTx runs fn as one unit of work. If fn returns an error the work is
	// rolled back where the backend supports it and the error is returned.
	RunInTx(ctx context.Context, fn TxFunc) error
	Close() error
}
