package directory

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/goliatone/go-user-directory/apperr"
	"github.com/goliatone/go-user-directory/model"
	"github.com/goliatone/go-user-directory/store"
)

// TaskService manages tasks. Every task belongs to exactly one user.
type TaskService struct {
	store  store.Store
	logger *log.Logger
}

// NewTaskService creates a TaskService over s.
func NewTaskService(s store.Store, opts ...Option) *TaskService {
	o := newOptions(opts)
	return &TaskService{store: s, logger: o.logger}
}

// Get returns task id or NotFound.
func (s *TaskService) Get(ctx context.Context, id int64) (model.TaskResponse, error) {
	t, err := s.find(ctx, id)
	if err != nil {
		return model.TaskResponse{}, apperr.Tag(ctx, err)
	}
	return model.NewTaskResponse(t), nil
}

// List returns every task ordered by id.
func (s *TaskService) List(ctx context.Context) ([]model.TaskResponse, error) {
	tasks, err := s.store.Tasks().FindAll(ctx)
	if err != nil {
		return nil, apperr.Tag(ctx, apperr.Internal(err, "failed to list tasks"))
	}
	return toTaskResponses(tasks), nil
}

// ListByUser returns the tasks owned by userID.
func (s *TaskService) ListByUser(ctx context.Context, userID int64) ([]model.TaskResponse, error) {
	if err := requireUser(ctx, s.store, userID); err != nil {
		return nil, apperr.Tag(ctx, err)
	}
	tasks, err := s.store.Tasks().FindByUserID(ctx, userID)
	if err != nil {
		return nil, apperr.Tag(ctx, apperr.Internal(err, "failed to list user tasks"))
	}
	return toTaskResponses(tasks), nil
}

// Create persists a task for req.UserID. The owner id is checked before the
// request fields, and the owner must exist. The owner check and the insert
// share one transaction so a concurrent user delete cannot orphan the task.
func (s *TaskService) Create(ctx context.Context, req model.CreateTaskRequest) (model.TaskResponse, error) {
	var saved model.Task
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		if err := requireUser(ctx, tx, req.UserID); err != nil {
			return err
		}
		if err := apperr.Validate(req, "invalid task"); err != nil {
			return err
		}

		var err error
		saved, err = tx.Tasks().Save(ctx, req.ToEntity())
		if err != nil {
			return apperr.Internal(err, "failed to save task")
		}
		return nil
	})
	if err != nil {
		return model.TaskResponse{}, apperr.Tag(ctx, err)
	}
	s.logger.Info("task created", "task_id", saved.ID, "user_id", saved.UserID)
	return model.NewTaskResponse(saved), nil
}

// Update applies the fields present in req to task id.
func (s *TaskService) Update(ctx context.Context, id int64, req model.UpdateTaskRequest) (model.TaskResponse, error) {
	if err := apperr.Validate(req, "invalid task update"); err != nil {
		return model.TaskResponse{}, apperr.Tag(ctx, err)
	}
	t, err := s.find(ctx, id)
	if err != nil {
		return model.TaskResponse{}, apperr.Tag(ctx, err)
	}

	req.ApplyTo(&t)
	saved, err := s.store.Tasks().Save(ctx, t)
	if err != nil {
		return model.TaskResponse{}, apperr.Tag(ctx, apperr.Internal(err, "failed to save task"))
	}
	s.logger.Info("task updated", "task_id", id)
	return model.NewTaskResponse(saved), nil
}

// Delete removes task id, or reports NotFound.
func (s *TaskService) Delete(ctx context.Context, id int64) error {
	ok, err := s.store.Tasks().ExistsByID(ctx, id)
	if err != nil {
		return apperr.Tag(ctx, apperr.Internal(err, "failed to load task"))
	}
	if !ok {
		return apperr.Tag(ctx, apperr.NotFound("task with id %d not found", id))
	}
	if err := s.store.Tasks().DeleteByID(ctx, id); err != nil {
		return apperr.Tag(ctx, apperr.Internal(err, "failed to delete task"))
	}
	s.logger.Info("task deleted", "task_id", id)
	return nil
}

func (s *TaskService) find(ctx context.Context, id int64) (model.Task, error) {
	t, ok, err := s.store.Tasks().FindByID(ctx, id)
	if err != nil {
		return model.Task{}, apperr.Internal(err, "failed to load task")
	}
	if !ok {
		return model.Task{}, apperr.NotFound("task with id %d not found", id)
	}
	return t, nil
}

func requireUser(ctx context.Context, s store.Store, userID int64) error {
	if userID <= 0 {
		return apperr.InvalidInput("user id must be greater than 0")
	}
	ok, err := s.Users().ExistsByID(ctx, userID)
	if err != nil {
		return apperr.Internal(err, "failed to load user")
	}
	if !ok {
		return apperr.NotFound("user with id %d not found", userID)
	}
	return nil
}

func toTaskResponses(tasks []model.Task) []model.TaskResponse {
	out := make([]model.TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, model.NewTaskResponse(t))
	}
	return out
}
