// Package model defines domain models and data structures.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User represents a user entity.
type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateUserParams represents parameters for creating a new user.
type CreateUserParams struct {
	Name  string  `json:"name"  validate:"required,min=2,max=255"`
	Email string  `json:"email" validate:"required,email,max=255"`
	Phone *string `json:"phone" validate:"omitempty,max=50"`
}

// Normalize trims whitespace and lower-cases the email.
func (p *CreateUserParams) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Email = normalizeEmail(p.Email)
	p.Phone = trimPtr(p.Phone)
}

// Validate validates the create user parameters.
func (p *CreateUserParams) Validate() error {
	return validateStruct(p)
}

// UpdateUserParams carries a partial update; nil fields keep their stored value.
type UpdateUserParams struct {
	Name  *string `json:"name"  validate:"omitnil,min=2,max=255"`
	Email *string `json:"email" validate:"omitnil,email,max=255"`
	Phone *string `json:"phone" validate:"omitempty,max=50"`
}

// Normalize trims whitespace and lower-cases the email.
func (p *UpdateUserParams) Normalize() {
	p.Name = trimPtr(p.Name)
	if p.Email != nil {
		e := normalizeEmail(*p.Email)
		p.Email = &e
	}
	p.Phone = trimPtr(p.Phone)
}

// Validate validates the update parameters. At least one field is required.
func (p *UpdateUserParams) Validate() error {
	if p.Empty() {
		return NewValidationError("body", "at least one of name, email, phone is required")
	}

	return validateStruct(p)
}

// Empty reports whether no field is set.
func (p *UpdateUserParams) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Phone == nil
}

// ListUsersParams paginates the user listing.
type ListUsersParams struct {
	Limit  uint64
	Offset uint64
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
