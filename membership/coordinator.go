// Package membership owns the user/group relation.
//
// The relation is stored once, as (user id, group id) edges in the
// membership store. A user's groups and a group's members are two queries
// over the same rows, so the two directions cannot disagree: adding or
// removing a member is one edge write.
package membership

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/goliatone/go-user-directory/apperr"
	"github.com/goliatone/go-user-directory/internal/logging"
	"github.com/goliatone/go-user-directory/model"
	"github.com/goliatone/go-user-directory/store"
)

// Coordinator applies membership changes and the cascades that run before a
// user or group is deleted.
type Coordinator struct {
	store  store.Store
	logger *log.Logger
}

// NewCoordinator returns a Coordinator over s. A nil logger discards output.
func NewCoordinator(s store.Store, logger *log.Logger) *Coordinator {
	return &Coordinator{store: s, logger: logging.OrNop(logger)}
}

// WithStore returns a Coordinator bound to tx, typically the handle passed to
// a store.TxFunc, so cascades join the caller's transaction.
func (c *Coordinator) WithStore(tx store.Store) *Coordinator {
	return &Coordinator{store: tx, logger: c.logger}
}

// AddMembership links userID and groupID. Both ids must be positive and both
// records must exist; the group is checked first. The checks and the edge
// write share one transaction, so a concurrent delete cannot leave an edge to
// a missing record. Adding an existing edge is a no-op.
func (c *Coordinator) AddMembership(ctx context.Context, userID, groupID int64) error {
	err := c.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		if err := resolve(ctx, tx, userID, groupID); err != nil {
			return err
		}
		if err := tx.Memberships().Add(ctx, userID, groupID); err != nil {
			return apperr.Internal(err, "failed to add membership")
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.logger.Debug("membership added", "user_id", userID, "group_id", groupID)
	return nil
}

// RemoveMembership unlinks userID and groupID with the same lookup contract
// as AddMembership. Removing a missing edge is a no-op.
func (c *Coordinator) RemoveMembership(ctx context.Context, userID, groupID int64) error {
	err := c.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		if err := resolve(ctx, tx, userID, groupID); err != nil {
			return err
		}
		if err := tx.Memberships().Remove(ctx, userID, groupID); err != nil {
			return apperr.Internal(err, "failed to remove membership")
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.logger.Debug("membership removed", "user_id", userID, "group_id", groupID)
	return nil
}

// CascadeOnUserDelete removes user from every group. It must complete before
// the user record is deleted.
func (c *Coordinator) CascadeOnUserDelete(ctx context.Context, user model.User) error {
	if err := c.store.Memberships().RemoveAllForUser(ctx, user.ID); err != nil {
		return apperr.Internal(err, "failed to detach user from groups")
	}
	return nil
}

// CascadeOnGroupDelete removes every member from group. It must complete
// before the group record is deleted.
func (c *Coordinator) CascadeOnGroupDelete(ctx context.Context, group model.Group) error {
	if err := c.store.Memberships().RemoveAllForGroup(ctx, group.ID); err != nil {
		return apperr.Internal(err, "failed to detach members from group")
	}
	return nil
}

// GroupsOf returns the ids of the groups userID belongs to, ascending.
func (c *Coordinator) GroupsOf(ctx context.Context, userID int64) ([]int64, error) {
	ids, err := c.store.Memberships().GroupIDsForUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list user groups")
	}
	return ids, nil
}

// MembersOf returns the ids of the members of groupID, ascending.
func (c *Coordinator) MembersOf(ctx context.Context, groupID int64) ([]int64, error) {
	ids, err := c.store.Memberships().UserIDsForGroup(ctx, groupID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list group members")
	}
	return ids, nil
}

// IsMember reports whether the edge (userID, groupID) exists.
func (c *Coordinator) IsMember(ctx context.Context, userID, groupID int64) (bool, error) {
	ok, err := c.store.Memberships().Exists(ctx, userID, groupID)
	if err != nil {
		return false, apperr.Internal(err, "failed to check membership")
	}
	return ok, nil
}

func resolve(ctx context.Context, s store.Store, userID, groupID int64) error {
	if userID <= 0 {
		return apperr.InvalidInput("user id must be greater than 0")
	}
	if groupID <= 0 {
		return apperr.InvalidInput("group id must be greater than 0")
	}

	ok, err := s.Groups().ExistsByID(ctx, groupID)
	if err != nil {
		return apperr.Internal(err, "failed to load group")
	}
	if !ok {
		return apperr.NotFound("group with id %d not found", groupID)
	}

	ok, err = s.Users().ExistsByID(ctx, userID)
	if err != nil {
		return apperr.Internal(err, "failed to load user")
	}
	if !ok {
		return apperr.NotFound("user with id %d not found", userID)
	}
	return nil
}
