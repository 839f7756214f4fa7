package model

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/uptrace/bun"
)

// Group is a named set of users. Its members are membership edges.
type Group struct {
	bun.BaseModel `bun:"table:groups,alias:g" json:"-"`

	ID          int64  `bun:"id,pk,autoincrement" json:"id"`
	Name        string `bun:"name,notnull,unique" json:"name"`
	Description string `bun:"description" json:"description"`
}

// Membership is the edge stating that a user belongs to a group. It is the
// single source of truth for both directions of the relation.
type Membership struct {
	bun.BaseModel `bun:"table:user_groups,alias:ug" json:"-"`

	UserID  int64 `bun:"user_id,pk" json:"user_id"`
	GroupID int64 `bun:"group_id,pk" json:"group_id"`
}

// GroupResponse is the read-model of a Group. MemberIDs are read from the
// edge set when the response is built.
type GroupResponse struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	MemberIDs   []int64 `json:"member_ids"`
}

// NewGroupResponse projects g and its member ids into a read-model.
func NewGroupResponse(g Group, memberIDs []int64) GroupResponse {
	ids := make([]int64, len(memberIDs))
	copy(ids, memberIDs)
	return GroupResponse{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		MemberIDs:   ids,
	}
}

type CreateGroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (r CreateGroupRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 128)),
		validation.Field(&r.Description, validation.Length(0, 1024)),
	)
}

func (r CreateGroupRequest) ToEntity() Group {
	return Group{Name: r.Name, Description: r.Description}
}

// UpdateGroupRequest is a partial update of name and description.
type UpdateGroupRequest struct {
	Name        Optional[string] `json:"name"`
	Description Optional[string] `json:"description"`
}

func (r UpdateGroupRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.NilOrNotEmpty, validation.Length(1, 128)),
		validation.Field(&r.Description, validation.Length(0, 1024)),
	)
}

func (r UpdateGroupRequest) ApplyTo(g *Group) {
	r.Name.ApplyTo(&g.Name)
	r.Description.ApplyTo(&g.Description)
}
