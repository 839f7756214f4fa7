package model

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/uptrace/bun"
)

// Task is a to-do item exclusively owned by one user.
type Task struct {
	bun.BaseModel `bun:"table:tasks,alias:t" json:"-"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	Title     string    `bun:"title,notnull" json:"title"`
	Content   string    `bun:"content" json:"content"`
	Important bool      `bun:"is_important,notnull" json:"important"`
	Completed bool      `bun:"is_completed,notnull" json:"completed"`
	Deadline  time.Time `bun:"deadline_date,nullzero" json:"deadline"`
	UserID    int64     `bun:"user_id,notnull" json:"user_id"`
}

type TaskResponse struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Important bool      `json:"important"`
	Completed bool      `json:"completed"`
	Deadline  time.Time `json:"deadline"`
	UserID    int64     `json:"user_id"`
}

func NewTaskResponse(t Task) TaskResponse {
	return TaskResponse{
		ID:        t.ID,
		Title:     t.Title,
		Content:   t.Content,
		Important: t.Important,
		Completed: t.Completed,
		Deadline:  t.Deadline,
		UserID:    t.UserID,
	}
}

// CreateTaskRequest creates a task for UserID. The owner id is checked by the
// service before the remaining fields are validated.
type CreateTaskRequest struct {
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Important bool      `json:"important"`
	Completed bool      `json:"completed"`
	Deadline  time.Time `json:"deadline"`
	UserID    int64     `json:"user_id"`
}

func (r CreateTaskRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 256)),
		validation.Field(&r.Content, validation.Length(0, 4096)),
	)
}

func (r CreateTaskRequest) ToEntity() Task {
	return Task{
		Title:     r.Title,
		Content:   r.Content,
		Important: r.Important,
		Completed: r.Completed,
		Deadline:  DateOnly(r.Deadline),
		UserID:    r.UserID,
	}
}

type UpdateTaskRequest struct {
	Title     Optional[string]    `json:"title"`
	Content   Optional[string]    `json:"content"`
	Important Optional[bool]      `json:"important"`
	Completed Optional[bool]      `json:"completed"`
	Deadline  Optional[time.Time] `json:"deadline"`
}

func (r UpdateTaskRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.NilOrNotEmpty, validation.Length(1, 256)),
		validation.Field(&r.Content, validation.Length(0, 4096)),
	)
}

func (r UpdateTaskRequest) ApplyTo(t *Task) {
	r.Title.ApplyTo(&t.Title)
	r.Content.ApplyTo(&t.Content)
	r.Important.ApplyTo(&t.Important)
	r.Completed.ApplyTo(&t.Completed)
	if d, ok := r.Deadline.Get(); ok {
		t.Deadline = DateOnly(d)
	}
}

// DateOnly truncates t to midnight UTC; deadlines carry no time of day.
func DateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
