package directory

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"

	"github.com/goliatone/go-user-directory/apperr"
	"github.com/goliatone/go-user-directory/membership"
	"github.com/goliatone/go-user-directory/model"
	"github.com/goliatone/go-user-directory/store"
)

// GroupService manages groups. Member lists in its responses are read from
// the membership edges at call time.
type GroupService struct {
	store  store.Store
	coord  *membership.Coordinator
	logger *log.Logger
}

// NewGroupService creates a GroupService. coord must be built over s.
func NewGroupService(s store.Store, coord *membership.Coordinator, opts ...Option) *GroupService {
	o := newOptions(opts)
	return &GroupService{store: s, coord: coord, logger: o.logger}
}

// Get returns group id with its member ids.
func (s *GroupService) Get(ctx context.Context, id int64) (model.GroupResponse, error) {
	g, err := findGroup(ctx, s.store, id)
	if err != nil {
		return model.GroupResponse{}, apperr.Tag(ctx, err)
	}
	resp, err := groupResponse(ctx, s.coord, g)
	return resp, apperr.Tag(ctx, err)
}

// GetByName returns the group called name with its member ids.
func (s *GroupService) GetByName(ctx context.Context, name string) (model.GroupResponse, error) {
	g, ok, err := s.store.Groups().FindByName(ctx, name)
	if err != nil {
		return model.GroupResponse{}, apperr.Tag(ctx, apperr.Internal(err, "failed to load group"))
	}
	if !ok {
		return model.GroupResponse{}, apperr.Tag(ctx, apperr.NotFound("group with name %s not found", name))
	}
	resp, err := groupResponse(ctx, s.coord, g)
	return resp, apperr.Tag(ctx, err)
}

// List returns every group ordered by id.
func (s *GroupService) List(ctx context.Context) ([]model.GroupResponse, error) {
	groups, err := s.store.Groups().FindAll(ctx)
	if err != nil {
		return nil, apperr.Tag(ctx, apperr.Internal(err, "failed to list groups"))
	}
	out := make([]model.GroupResponse, 0, len(groups))
	for _, g := range groups {
		resp, err := groupResponse(ctx, s.coord, g)
		if err != nil {
			return nil, apperr.Tag(ctx, err)
		}
		out = append(out, resp)
	}
	return out, nil
}

// Create persists a new group. Name uniqueness is left to the store; a
// duplicate surfaces as AlreadyExists.
func (s *GroupService) Create(ctx context.Context, req model.CreateGroupRequest) (model.GroupResponse, error) {
	if err := apperr.Validate(req, "invalid group"); err != nil {
		return model.GroupResponse{}, apperr.Tag(ctx, err)
	}
	saved, err := s.store.Groups().Save(ctx, req.ToEntity())
	if err != nil {
		return model.GroupResponse{}, apperr.Tag(ctx, saveGroupError(err, req.Name))
	}
	s.logger.Info("group created", "group_id", saved.ID, "name", saved.Name)
	return model.NewGroupResponse(saved, nil), nil
}

// Update applies the name and description present in req.
func (s *GroupService) Update(ctx context.Context, id int64, req model.UpdateGroupRequest) (model.GroupResponse, error) {
	if err := apperr.Validate(req, "invalid group update"); err != nil {
		return model.GroupResponse{}, apperr.Tag(ctx, err)
	}
	g, err := findGroup(ctx, s.store, id)
	if err != nil {
		return model.GroupResponse{}, apperr.Tag(ctx, err)
	}

	req.ApplyTo(&g)
	saved, err := s.store.Groups().Save(ctx, g)
	if err != nil {
		return model.GroupResponse{}, apperr.Tag(ctx, saveGroupError(err, g.Name))
	}
	s.logger.Info("group updated", "group_id", id)

	resp, err := groupResponse(ctx, s.coord, saved)
	return resp, apperr.Tag(ctx, err)
}

// Delete detaches every member of group id and then removes it, in one
// transaction.
func (s *GroupService) Delete(ctx context.Context, id int64) error {
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		g, err := findGroup(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.coord.WithStore(tx).CascadeOnGroupDelete(ctx, g); err != nil {
			return err
		}
		if err := tx.Groups().DeleteByID(ctx, id); err != nil {
			return apperr.Internal(err, "failed to delete group")
		}
		return nil
	})
	if err != nil {
		return apperr.Tag(ctx, err)
	}
	s.logger.Info("group deleted", "group_id", id)
	return nil
}

func findGroup(ctx context.Context, s store.Store, id int64) (model.Group, error) {
	g, ok, err := s.Groups().FindByID(ctx, id)
	if err != nil {
		return model.Group{}, apperr.Internal(err, "failed to load group")
	}
	if !ok {
		return model.Group{}, apperr.NotFound("group with id %d not found", id)
	}
	return g, nil
}

func groupResponse(ctx context.Context, coord *membership.Coordinator, g model.Group) (model.GroupResponse, error) {
	ids, err := coord.MembersOf(ctx, g.ID)
	if err != nil {
		return model.GroupResponse{}, err
	}
	return model.NewGroupResponse(g, ids), nil
}

func saveGroupError(err error, name string) error {
	if errors.Is(err, store.ErrDuplicate) {
		return apperr.AlreadyExists("group with name %s already exists", name)
	}
	return apperr.Internal(err, "failed to save group")
}
