package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/goliatone/go-user-directory/apperr"
	"github.com/goliatone/go-user-directory/model"
)

func userFlags(required bool) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "first-name", Usage: "First name", Required: required},
		&cli.StringFlag{Name: "last-name", Usage: "Last name", Required: required},
		&cli.StringFlag{Name: "email", Usage: "Email address, unique", Required: required},
		&cli.StringFlag{Name: "phone", Usage: "Phone number, unique", Required: required},
	}
}

// userCommand handles user operations
func userCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "user",
		Usage:  "User operations",
		Before: r.setup,
		After:  r.teardown,
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Show a user",
				ArgsUsage: "<id>",
				Action:    r.UserGet,
			},
			{
				Name:  "list",
				Usage: "List users, optionally the members of a group",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "group", Usage: "Only members of the named group"},
				},
				Action: r.UserList,
			},
			{
				Name:   "create",
				Usage:  "Create a user",
				Flags:  userFlags(true),
				Action: r.UserCreate,
			},
			{
				Name:      "import",
				Usage:     "Create every user in a JSON array file, or none",
				ArgsUsage: "<file>",
				Action:    r.UserImport,
			},
			{
				Name:      "update",
				Usage:     "Update the given fields of a user",
				ArgsUsage: "<id>",
				Flags:     userFlags(false),
				Action:    r.UserUpdate,
			},
			{
				Name:      "delete",
				Usage:     "Delete a user with its tasks and memberships",
				ArgsUsage: "<id>",
				Action:    r.UserDelete,
			},
			{
				Name:      "groups",
				Usage:     "List the groups of a user",
				ArgsUsage: "<id>",
				Action:    r.UserGroups,
			},
		},
	}
}

func (r *Runner) UserGet(ctx context.Context, cmd *cli.Command) error {
	id, err := argID(cmd, 0, "user id")
	if err != nil {
		return err
	}
	user, err := r.container.Users().Get(ctx, id)
	if err != nil {
		return err
	}
	return r.writeJSON(user)
}

func (r *Runner) UserList(ctx context.Context, cmd *cli.Command) error {
	var (
		users []model.UserResponse
		err   error
	)
	if group := cmd.String("group"); group != "" {
		users, err = r.container.Users().ListByGroup(ctx, group)
	} else {
		users, err = r.container.Users().List(ctx)
	}
	if err != nil {
		return err
	}
	return r.writeJSON(users)
}

func (r *Runner) UserCreate(ctx context.Context, cmd *cli.Command) error {
	user, err := r.container.Users().Create(ctx, model.CreateUserRequest{
		FirstName: cmd.String("first-name"),
		LastName:  cmd.String("last-name"),
		Email:     cmd.String("email"),
		Phone:     cmd.String("phone"),
	})
	if err != nil {
		return err
	}
	return r.writeJSON(user)
}

func (r *Runner) UserImport(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return apperr.InvalidInput("missing file argument")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var reqs []model.CreateUserRequest
	if err := json.Unmarshal(data, &reqs); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	users, err := r.container.Users().CreateMany(ctx, reqs)
	if err != nil {
		return err
	}
	return r.writeJSON(users)
}

func (r *Runner) UserUpdate(ctx context.Context, cmd *cli.Command) error {
	id, err := argID(cmd, 0, "user id")
	if err != nil {
		return err
	}

	var req model.UpdateUserRequest
	if cmd.IsSet("first-name") {
		req.FirstName = model.Some(cmd.String("first-name"))
	}
	if cmd.IsSet("last-name") {
		req.LastName = model.Some(cmd.String("last-name"))
	}
	if cmd.IsSet("email") {
		req.Email = model.Some(cmd.String("email"))
	}
	if cmd.IsSet("phone") {
		req.Phone = model.Some(cmd.String("phone"))
	}

	user, err := r.container.Users().Update(ctx, id, req)
	if err != nil {
		return err
	}
	return r.writeJSON(user)
}

func (r *Runner) UserDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := argID(cmd, 0, "user id")
	if err != nil {
		return err
	}
	if err := r.container.Users().Delete(ctx, id); err != nil {
		return err
	}
	return r.writeJSON(deleted{Deleted: "user", ID: id})
}

func (r *Runner) UserGroups(ctx context.Context, cmd *cli.Command) error {
	id, err := argID(cmd, 0, "user id")
	if err != nil {
		return err
	}
	groups, err := r.container.Users().Groups(ctx, id)
	if err != nil {
		return err
	}
	return r.writeJSON(groups)
}
