package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/goliatone/go-user-directory/model"
)

func taskFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "title", Usage: "Title"},
		&cli.StringFlag{Name: "content", Usage: "Content"},
		&cli.BoolFlag{Name: "important", Usage: "Mark as important"},
		&cli.BoolFlag{Name: "completed", Usage: "Mark as completed"},
		&cli.StringFlag{Name: "deadline", Usage: "Deadline as YYYY-MM-DD"},
	}
}

// taskCommand handles task operations
func taskCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "task",
		Usage:  "Task operations",
		Before: r.setup,
		After:  r.teardown,
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Show a task",
				ArgsUsage: "<id>",
				Action:    r.TaskGet,
			},
			{
				Name:  "list",
				Usage: "List tasks, optionally those of one user",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "user", Usage: "Owner user id"},
				},
				Action: r.TaskList,
			},
			{
				Name:  "create",
				Usage: "Create a task for a user",
				Flags: append(taskFlags(),
					&cli.Int64Flag{Name: "user", Usage: "Owner user id", Required: true},
				),
				Action: r.TaskCreate,
			},
			{
				Name:      "update",
				Usage:     "Update the given fields of a task",
				ArgsUsage: "<id>",
				Flags:     taskFlags(),
				Action:    r.TaskUpdate,
			},
			{
				Name:      "delete",
				Usage:     "Delete a task",
				ArgsUsage: "<id>",
				Action:    r.TaskDelete,
			},
		},
	}
}

func (r *Runner) TaskGet(ctx context.Context, cmd *cli.Command) error {
	id, err := argID(cmd, 0, "task id")
	if err != nil {
		return err
	}
	task, err := r.container.Tasks().Get(ctx, id)
	if err != nil {
		return err
	}
	return r.writeJSON(task)
}

func (r *Runner) TaskList(ctx context.Context, cmd *cli.Command) error {
	var (
		tasks []model.TaskResponse
		err   error
	)
	if cmd.IsSet("user") {
		tasks, err = r.container.Tasks().ListByUser(ctx, cmd.Int64("user"))
	} else {
		tasks, err = r.container.Tasks().List(ctx)
	}
	if err != nil {
		return err
	}
	return r.writeJSON(tasks)
}

func (r *Runner) TaskCreate(ctx context.Context, cmd *cli.Command) error {
	deadline, err := parseDate(cmd.String("deadline"))
	if err != nil {
		return err
	}
	task, err := r.container.Tasks().Create(ctx, model.CreateTaskRequest{
		Title:     cmd.String("title"),
		Content:   cmd.String("content"),
		Important: cmd.Bool("important"),
		Completed: cmd.Bool("completed"),
		Deadline:  deadline,
		UserID:    cmd.Int64("user"),
	})
	if err != nil {
		return err
	}
	return r.writeJSON(task)
}

func (r *Runner) TaskUpdate(ctx context.Context, cmd *cli.Command) error {
	id, err := argID(cmd, 0, "task id")
	if err != nil {
		return err
	}

	var req model.UpdateTaskRequest
	if cmd.IsSet("title") {
		req.Title = model.Some(cmd.String("title"))
	}
	if cmd.IsSet("content") {
		req.Content = model.Some(cmd.String("content"))
	}
	if cmd.IsSet("important") {
		req.Important = model.Some(cmd.Bool("important"))
	}
	if cmd.IsSet("completed") {
		req.Completed = model.Some(cmd.Bool("completed"))
	}
	if cmd.IsSet("deadline") {
		deadline, err := parseDate(cmd.String("deadline"))
		if err != nil {
			return err
		}
		req.Deadline = model.Some(deadline)
	}

	task, err := r.container.Tasks().Update(ctx, id, req)
	if err != nil {
		return err
	}
	return r.writeJSON(task)
}

func (r *Runner) TaskDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := argID(cmd, 0, "task id")
	if err != nil {
		return err
	}
	if err := r.container.Tasks().Delete(ctx, id); err != nil {
		return err
	}
	return r.writeJSON(deleted{Deleted: "task", ID: id})
}
