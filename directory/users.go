package directory

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/goliatone/go-user-directory/apperr"
	"github.com/goliatone/go-user-directory/membership"
	"github.com/goliatone/go-user-directory/model"
	"github.com/goliatone/go-user-directory/store"
)

const (
	msgUserExists = "user with the same email/phone already exists"
	lockStripes   = 64
)

// UserService manages users and keeps the user read-model cache in step with
// every write.
type UserService struct {
	store          store.Store
	cache          UserCache
	coord          *membership.Coordinator
	logger         *log.Logger
	populateOnRead bool

	// writes to one user id hold its stripe from the store write through the
	// cache write, so the cache ends with the snapshot of the last store write
	locks [lockStripes]sync.Mutex
}

// NewUserService creates a UserService. coord must be built over s.
func NewUserService(s store.Store, c UserCache, coord *membership.Coordinator, opts ...Option) *UserService {
	o := newOptions(opts)
	return &UserService{
		store:          s,
		cache:          c,
		coord:          coord,
		logger:         o.logger,
		populateOnRead: o.populateOnRead,
	}
}

// Get returns the user read-model, from the cache when present.
func (s *UserService) Get(ctx context.Context, id int64) (model.UserResponse, error) {
	if resp, ok := s.cache.Get(ctx, id); ok {
		s.logger.Debug("user cache hit", "user_id", id)
		return resp, nil
	}
	s.logger.Debug("user cache miss", "user_id", id)

	if lc, ok := s.cache.(loadingCache); ok && s.populateOnRead {
		resp, err := lc.GetOrLoad(ctx, id, func(ctx context.Context) (model.UserResponse, error) {
			return s.load(ctx, id)
		})
		return resp, apperr.Tag(ctx, err)
	}

	resp, err := s.load(ctx, id)
	return resp, apperr.Tag(ctx, err)
}

func (s *UserService) load(ctx context.Context, id int64) (model.UserResponse, error) {
	user, err := findUser(ctx, s.store, id)
	if err != nil {
		return model.UserResponse{}, err
	}
	return model.NewUserResponse(user), nil
}

// List returns every user ordered by id. It does not touch the cache.
func (s *UserService) List(ctx context.Context) ([]model.UserResponse, error) {
	users, err := s.store.Users().FindAll(ctx)
	if err != nil {
		return nil, apperr.Tag(ctx, apperr.Internal(err, "failed to list users"))
	}
	return toUserResponses(users), nil
}

// Create validates req, rejects a taken email or phone, persists the user and
// caches its read-model.
func (s *UserService) Create(ctx context.Context, req model.CreateUserRequest) (model.UserResponse, error) {
	if err := apperr.Validate(req, "invalid user"); err != nil {
		return model.UserResponse{}, apperr.Tag(ctx, err)
	}
	if err := checkUnique(ctx, s.store, req.Email, req.Phone); err != nil {
		return model.UserResponse{}, apperr.Tag(ctx, err)
	}

	saved, err := s.store.Users().Save(ctx, req.ToEntity())
	if err != nil {
		return model.UserResponse{}, apperr.Tag(ctx, saveUserError(err))
	}

	resp := model.NewUserResponse(saved)
	if err := s.refresh(ctx, resp); err != nil {
		return model.UserResponse{}, apperr.Tag(ctx, err)
	}
	s.logger.Info("user created", "user_id", saved.ID)
	return resp, nil
}

// CreateMany creates every user in reqs or none of them. All requests are
// validated and checked for uniqueness, against the store and against each
// other, before the first write.
func (s *UserService) CreateMany(ctx context.Context, reqs []model.CreateUserRequest) ([]model.UserResponse, error) {
	emails := make(map[string]struct{}, len(reqs))
	phones := make(map[string]struct{}, len(reqs))
	for i, req := range reqs {
		if err := apperr.Validate(req, "invalid user"); err != nil {
			return nil, apperr.Tag(ctx, err)
		}
		_, dupEmail := emails[req.Email]
		_, dupPhone := phones[req.Phone]
		if dupEmail || dupPhone {
			s.logger.Debug("duplicate in batch", "index", i)
			return nil, apperr.Tag(ctx, apperr.AlreadyExists(msgUserExists))
		}
		emails[req.Email] = struct{}{}
		phones[req.Phone] = struct{}{}

		if err := checkUnique(ctx, s.store, req.Email, req.Phone); err != nil {
			return nil, apperr.Tag(ctx, err)
		}
	}

	saved := make([]model.User, 0, len(reqs))
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		for _, req := range reqs {
			u, err := tx.Users().Save(ctx, req.ToEntity())
			if err != nil {
				return saveUserError(err)
			}
			saved = append(saved, u)
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Tag(ctx, err)
	}

	out := toUserResponses(saved)
	for _, resp := range out {
		if err := s.refresh(ctx, resp); err != nil {
			return nil, apperr.Tag(ctx, err)
		}
	}
	s.logger.Info("users created", "count", len(out))
	return out, nil
}

// Update applies the fields present in req to user id and refreshes its
// cache entry. A changed email or phone is checked for uniqueness first.
func (s *UserService) Update(ctx context.Context, id int64, req model.UpdateUserRequest) (model.UserResponse, error) {
	if err := apperr.Validate(req, "invalid user update"); err != nil {
		return model.UserResponse{}, apperr.Tag(ctx, err)
	}

	defer s.lock(id)()

	user, err := findUser(ctx, s.store, id)
	if err != nil {
		return model.UserResponse{}, apperr.Tag(ctx, err)
	}

	var email, phone string
	if v, ok := req.Email.Get(); ok && v != user.Email {
		email = v
	}
	if v, ok := req.Phone.Get(); ok && v != user.Phone {
		phone = v
	}
	if err := checkUnique(ctx, s.store, email, phone); err != nil {
		return model.UserResponse{}, apperr.Tag(ctx, err)
	}

	req.ApplyTo(&user)
	saved, err := s.store.Users().Save(ctx, user)
	if err != nil {
		return model.UserResponse{}, apperr.Tag(ctx, saveUserError(err))
	}

	resp := model.NewUserResponse(saved)
	if err := s.refresh(ctx, resp); err != nil {
		return model.UserResponse{}, apperr.Tag(ctx, err)
	}
	s.logger.Info("user updated", "user_id", id)
	return resp, nil
}

// Delete removes user id. Its memberships and tasks are removed in the same
// transaction, and the cache entry is evicted once that transaction commits.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	defer s.lock(id)()

	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		user, err := findUser(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.coord.WithStore(tx).CascadeOnUserDelete(ctx, user); err != nil {
			return err
		}
		if err := tx.Tasks().DeleteByUserID(ctx, id); err != nil {
			return apperr.Internal(err, "failed to delete user tasks")
		}
		if err := tx.Users().DeleteByID(ctx, id); err != nil {
			return apperr.Internal(err, "failed to delete user")
		}
		return nil
	})
	if err != nil {
		return apperr.Tag(ctx, err)
	}

	if err := s.cache.Remove(ctx, id); err != nil {
		return apperr.Tag(ctx, apperr.Internal(err, "failed to evict user from cache"))
	}
	s.logger.Info("user deleted", "user_id", id)
	return nil
}

// AddToGroup makes user userID a member of group groupID.
func (s *UserService) AddToGroup(ctx context.Context, userID, groupID int64) error {
	return apperr.Tag(ctx, s.coord.AddMembership(ctx, userID, groupID))
}

// RemoveFromGroup removes user userID from group groupID.
func (s *UserService) RemoveFromGroup(ctx context.Context, userID, groupID int64) error {
	return apperr.Tag(ctx, s.coord.RemoveMembership(ctx, userID, groupID))
}

// ListByGroup returns the members of the named group. An unknown group and a
// group without members both yield an empty slice.
func (s *UserService) ListByGroup(ctx context.Context, groupName string) ([]model.UserResponse, error) {
	users, err := s.store.Users().FindByGroupName(ctx, groupName)
	if err != nil {
		return nil, apperr.Tag(ctx, apperr.Internal(err, "failed to list group members"))
	}
	return toUserResponses(users), nil
}

// Groups returns the groups user userID belongs to.
func (s *UserService) Groups(ctx context.Context, userID int64) ([]model.GroupResponse, error) {
	ok, err := s.store.Users().ExistsByID(ctx, userID)
	if err != nil {
		return nil, apperr.Tag(ctx, apperr.Internal(err, "failed to load user"))
	}
	if !ok {
		return nil, apperr.Tag(ctx, apperr.NotFound("user with id %d not found", userID))
	}

	ids, err := s.coord.GroupsOf(ctx, userID)
	if err != nil {
		return nil, apperr.Tag(ctx, err)
	}
	groups, err := s.store.Groups().FindByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Tag(ctx, apperr.Internal(err, "failed to load groups"))
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

func (s *UserService) lock(id int64) func() {
	m := &s.locks[uint64(id)%lockStripes]
	m.Lock()
	return m.Unlock
}

// refresh writes resp to the cache. If the write fails the old entry is
// evicted instead so a stale snapshot is never left behind.
func (s *UserService) refresh(ctx context.Context, resp model.UserResponse) error {
	err := s.cache.Put(ctx, resp.ID, resp)
	if err == nil {
		return nil
	}
	s.logger.Warn("user cache put failed", "user_id", resp.ID, "err", err)
	if rerr := s.cache.Remove(ctx, resp.ID); rerr != nil {
		return apperr.Internal(rerr, "failed to evict user from cache")
	}
	return nil
}

func findUser(ctx context.Context, s store.Store, id int64) (model.User, error) {
	user, ok, err := s.Users().FindByID(ctx, id)
	if err != nil {
		return model.User{}, apperr.Internal(err, "failed to load user")
	}
	if !ok {
		return model.User{}, apperr.NotFound("user with id %d not found", id)
	}
	return user, nil
}

// checkUnique rejects an email or phone already held by a user. Empty values
// are skipped.
func checkUnique(ctx context.Context, s store.Store, email, phone string) error {
	if email != "" {
		taken, err := s.Users().ExistsByEmail(ctx, email)
		if err != nil {
			return apperr.Internal(err, "failed to check email")
		}
		if taken {
			return apperr.AlreadyExists(msgUserExists)
		}
	}
	if phone != "" {
		taken, err := s.Users().ExistsByPhone(ctx, phone)
		if err != nil {
			return apperr.Internal(err, "failed to check phone")
		}
		if taken {
			return apperr.AlreadyExists(msgUserExists)
		}
	}
	return nil
}

// saveUserError maps a store Save failure. A duplicate here means a
// concurrent writer took the email or phone after checkUnique ran.
func saveUserError(err error) error {
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return apperr.AlreadyExists(msgUserExists)
	default:
		return apperr.Internal(err, "failed to save user")
	}
}

func toUserResponses(users []model.User) []model.UserResponse {
	out := make([]model.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, model.NewUserResponse(u))
	}
	return out
}
