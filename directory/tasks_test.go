package directory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-user-directory/apperr"
	"github.com/goliatone/go-user-directory/membership"
	"github.com/goliatone/go-user-directory/model"
	"github.com/goliatone/go-user-directory/store/memstore"
)

func TestTaskService_Create(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	u := e.mustCreateUser(t, ada())

	deadline := time.Date(2025, 3, 14, 17, 30, 0, 0, time.UTC)
	got, err := e.tasks.Create(ctx, model.CreateTaskRequest{Title: "write", UserID: u.ID, Deadline: deadline, Important: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)
	assert.True(t, got.Important)
	assert.Equal(t, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), got.Deadline)
}

func TestTaskService_CreateOwnerChecks(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	_, err := e.tasks.Create(ctx, model.CreateTaskRequest{Title: "write", UserID: 0})
	assert.True(t, apperr.IsInvalidInput(err))
	assert.Contains(t, err.Error(), "user id must be greater than 0")

	_, err = e.tasks.Create(ctx, model.CreateTaskRequest{Title: "write", UserID: 1})
	assert.True(t, apperr.IsNotFound(err))
	assert.Contains(t, err.Error(), "user with id 1 not found")

	u := e.mustCreateUser(t, ada())
	_, err = e.tasks.Create(ctx, model.CreateTaskRequest{UserID: u.ID})
	assert.True(t, apperr.IsInvalidInput(err), "title is required")
}

func TestTaskService_PartialUpdate(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	u := e.mustCreateUser(t, ada())
	task, err := e.tasks.Create(ctx, model.CreateTaskRequest{Title: "Old Title", Content: "body", UserID: u.ID})
	require.NoError(t, err)

	got, err := e.tasks.Update(ctx, task.ID, model.UpdateTaskRequest{Title: model.Some("New Title"), Completed: model.Some(true)})
	require.NoError(t, err)
	assert.Equal(t, "New Title", got.Title)
	assert.Equal(t, "body", got.Content)
	assert.True(t, got.Completed)
	assert.False(t, got.Important)

	_, err = e.tasks.Update(ctx, 99, model.UpdateTaskRequest{Title: model.Some("x")})
	assert.True(t, apperr.IsNotFound(err))
	assert.Contains(t, err.Error(), "task with id 99 not found")
}

func TestTaskService_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a := e.mustCreateUser(t, ada())
	b := e.mustCreateUser(t, model.CreateUserRequest{FirstName: "Bob", LastName: "B", Email: "b@x.com", Phone: "+2"})

	for _, owner := range []int64{a.ID, a.ID, b.ID} {
		_, err := e.tasks.Create(ctx, model.CreateTaskRequest{Title: "t", UserID: owner})
		require.NoError(t, err)
	}

	owned, err := e.tasks.ListByUser(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, owned, 2)

	_, err = e.tasks.ListByUser(ctx, 42)
	assert.True(t, apperr.IsNotFound(err))

	require.NoError(t, e.tasks.Delete(ctx, owned[0].ID))
	err = e.tasks.Delete(ctx, owned[0].ID)
	assert.True(t, apperr.IsNotFound(err))

	_, err = e.tasks.Get(ctx, owned[0].ID)
	assert.True(t, apperr.IsNotFound(err))

	all, err := e.tasks.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestTaskService_CreateDuringOwnerDeleteLeavesNoOrphan(t *testing.T) {
	ctx := context.Background()
	base := memstore.New()
	owner, err := base.Users().Save(ctx, model.User{FirstName: "Ada", LastName: "Lovelace", Email: "a@x.com", Phone: "+1"})
	require.NoError(t, err)

	users := NewUserService(base, newFakeCache(&calls{}), membership.NewCoordinator(base, nil))
	deleted := make(chan error, 1)
	var once sync.Once
	hooked := hookStore{Store: base, afterUserExists: func(id int64) {
		once.Do(func() {
			go func() { deleted <- users.Delete(context.Background(), id) }()
			time.Sleep(50 * time.Millisecond)
		})
	}}

	_, err = NewTaskService(hooked).Create(ctx, model.CreateTaskRequest{Title: "write notes", UserID: owner.ID})
	require.NoError(t, <-deleted)
	if err != nil {
		assert.True(t, apperr.IsNotFound(err), "unexpected error %v", err)
	}

	exists, err := base.Users().ExistsByID(ctx, owner.ID)
	require.NoError(t, err)
	require.False(t, exists)

	tasks, err := base.Tasks().FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks, "task left behind for a deleted owner")
}

func TestTaskService_UpdateValidatesBeforeLookup(t *testing.T) {
	e := newEnv(t)
	_, err := e.tasks.Update(context.Background(), 42, model.UpdateTaskRequest{Title: model.Some("")})
	require.Error(t, err)
	assert.True(t, apperr.IsInvalidInput(err))
	assert.False(t, apperr.IsNotFound(err))
}
