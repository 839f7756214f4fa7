// Package model holds the directory entities, the request types the services
// accept and the read-models they return.
package model

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/uptrace/bun"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{1,15}$`)

// User is a directory member. Group memberships are edges in the membership
// store and tasks reference their owner, so the entity carries neither.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u" json:"-"`

	ID        int64  `bun:"id,pk,autoincrement" json:"id"`
	FirstName string `bun:"first_name,notnull" json:"first_name"`
	LastName  string `bun:"last_name,notnull" json:"last_name"`
	Email     string `bun:"email,notnull,unique" json:"email"`
	Phone     string `bun:"phone,notnull,unique" json:"phone"`
}

// UserResponse is the read-model snapshot of a User. It is a plain value so a
// cached copy never observes later changes to the entity it came from.
type UserResponse struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// NewUserResponse projects u into its read-model.
func NewUserResponse(u User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Phone:     u.Phone,
	}
}

// CreateUserRequest carries every field of a new user.
type CreateUserRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// Validate implements validation.Validatable.
func (r CreateUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 64)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 64)),
		validation.Field(&r.Email, validation.Required, is.EmailFormat),
		validation.Field(&r.Phone, validation.Required, validation.Match(phonePattern)),
	)
}

// ToEntity maps the request to a new, unsaved User.
func (r CreateUserRequest) ToEntity() User {
	return User{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email,
		Phone:     r.Phone,
	}
}

// UpdateUserRequest is a partial update: absent fields keep their stored value.
type UpdateUserRequest struct {
	FirstName Optional[string] `json:"first_name"`
	LastName  Optional[string] `json:"last_name"`
	Email     Optional[string] `json:"email"`
	Phone     Optional[string] `json:"phone"`
}

// Validate implements validation.Validatable.
func (r UpdateUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.NilOrNotEmpty, validation.Length(1, 64)),
		validation.Field(&r.LastName, validation.NilOrNotEmpty, validation.Length(1, 64)),
		validation.Field(&r.Email, validation.NilOrNotEmpty, is.EmailFormat),
		validation.Field(&r.Phone, validation.NilOrNotEmpty, validation.Match(phonePattern)),
	)
}

// ApplyTo copies the present fields into u.
func (r UpdateUserRequest) ApplyTo(u *User) {
	r.FirstName.ApplyTo(&u.FirstName)
	r.LastName.ApplyTo(&u.LastName)
	r.Email.ApplyTo(&u.Email)
	r.Phone.ApplyTo(&u.Phone)
}
