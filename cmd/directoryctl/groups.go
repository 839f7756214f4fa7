package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/goliatone/go-user-directory/model"
)

// groupCommand handles group operations
func groupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "group",
		Usage:  "Group operations",
		Before: r.setup,
		After:  r.teardown,
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Show a group and its member ids",
				ArgsUsage: "<id>",
				Action:    r.GroupGet,
			},
			{
				Name:      "find",
				Usage:     "Show a group by name",
				ArgsUsage: "<name>",
				Action:    r.GroupFind,
			},
			{
				Name:   "list",
				Usage:  "List groups",
				Action: r.GroupList,
			},
			{
				Name:  "create",
				Usage: "Create a group",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "Group name, unique", Required: true},
					&cli.StringFlag{Name: "description", Usage: "Description"},
				},
				Action: r.GroupCreate,
			},
			{
				Name:      "update",
				Usage:     "Update the given fields of a group",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "Group name, unique"},
					&cli.StringFlag{Name: "description", Usage: "Description"},
				},
				Action: r.GroupUpdate,
			},
			{
				Name:      "delete",
				Usage:     "Delete a group after detaching its members",
				ArgsUsage: "<id>",
				Action:    r.GroupDelete,
			},
		},
	}
}

func (r *Runner) GroupGet(ctx context.Context, cmd *cli.Command) error {
	id, err := argID(cmd, 0, "group id")
	if err != nil {
		return err
	}
	group, err := r.container.Groups().Get(ctx, id)
	if err != nil {
		return err
	}
	return r.writeJSON(group)
}

func (r *Runner) GroupFind(ctx context.Context, cmd *cli.Command) error {
	group, err := r.container.Groups().GetByName(ctx, cmd.Args().First())
	if err != nil {
		return err
	}
	return r.writeJSON(group)
}

func (r *Runner) GroupList(ctx context.Context, cmd *cli.Command) error {
	groups, err := r.container.Groups().List(ctx)
	if err != nil {
		return err
	}
	return r.writeJSON(groups)
}

func (r *Runner) GroupCreate(ctx context.Context, cmd *cli.Command) error {
	group, err := r.container.Groups().Create(ctx, model.CreateGroupRequest{
		Name:        cmd.String("name"),
		Description: cmd.String("description"),
	})
	if err != nil {
		return err
	}
	return r.writeJSON(group)
}

func (r *Runner) GroupUpdate(ctx context.Context, cmd *cli.Command) error {
	id, err := argID(cmd, 0, "group id")
	if err != nil {
		return err
	}

	var req model.UpdateGroupRequest
	if cmd.IsSet("name") {
		req.Name = model.Some(cmd.String("name"))
	}
	if cmd.IsSet("description") {
		req.Description = model.Some(cmd.String("description"))
	}

	group, err := r.container.Groups().Update(ctx, id, req)
	if err != nil {
		return err
	}
	return r.writeJSON(group)
}

func (r *Runner) GroupDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := argID(cmd, 0, "group id")
	if err != nil {
		return err
	}
	if err := r.container.Groups().Delete(ctx, id); err != nil {
		return err
	}
	return r.writeJSON(deleted{Deleted: "group", ID: id})
}

// membershipCommand handles user/group membership
func membershipCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "membership",
		Aliases: []string{"member"},
		Usage:   "Add users to groups or remove them",
		Before:  r.setup,
		After:   r.teardown,
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Add a user to a group",
				ArgsUsage: "<user-id> <group-id>",
				Action:    r.MembershipAdd,
			},
			{
				Name:      "remove",
				Usage:     "Remove a user from a group",
				ArgsUsage: "<user-id> <group-id>",
				Action:    r.MembershipRemove,
			},
		},
	}
}

type membershipResult struct {
	UserID  int64 `json:"user_id"`
	GroupID int64 `json:"group_id"`
	Member  bool  `json:"member"`
}

func (r *Runner) MembershipAdd(ctx context.Context, cmd *cli.Command) error {
	return r.changeMembership(ctx, cmd, true)
}

func (r *Runner) MembershipRemove(ctx context.Context, cmd *cli.Command) error {
	return r.changeMembership(ctx, cmd, false)
}

func (r *Runner) changeMembership(ctx context.Context, cmd *cli.Command, add bool) error {
	userID, err := argID(cmd, 0, "user id")
	if err != nil {
		return err
	}
	groupID, err := argID(cmd, 1, "group id")
	if err != nil {
		return err
	}

	users := r.container.Users()
	if add {
		err = users.AddToGroup(ctx, userID, groupID)
	} else {
		err = users.RemoveFromGroup(ctx, userID, groupID)
	}
	if err != nil {
		return err
	}
	return r.writeJSON(membershipResult{UserID: userID, GroupID: groupID, Member: add})
}
