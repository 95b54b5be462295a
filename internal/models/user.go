package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/playsync/internal/shared"
)

// User is an account in the backend service.
type User struct {
	id           string
	sequence     int
	email        string
	passwordHash string
	createdAt    time.Time
	updatedAt    time.Time
	deletedAt    *time.Time
}

// NewUser creates a [User] with normalized email and fresh timestamps.
func NewUser(sequence int, email, passwordHash string) *User {
	now := time.Now().UTC()
	return &User{
		sequence:     sequence,
		email:        shared.NormalizeEmail(email),
		passwordHash: passwordHash,
		createdAt:    now,
		updatedAt:    now,
	}
}

func (u *User) ID() string                { return u.id }
func (u *User) Sequence() int             { return u.sequence }
func (u *User) Email() string             { return u.email }
func (u *User) PasswordHash() string      { return u.passwordHash }
func (u *User) CreatedAt() time.Time      { return u.createdAt }
func (u *User) UpdatedAt() time.Time      { return u.updatedAt }
func (u *User) DeletedAt() *time.Time     { return u.deletedAt }
func (u *User) SetID(id string)           { u.id = id }
func (u *User) SetSequence(seq int)       { u.sequence = seq }
func (u *User) SetPasswordHash(h string)  { u.passwordHash = h }
func (u *User) SetCreatedAt(t time.Time)  { u.createdAt = t }
func (u *User) SetUpdatedAt(t time.Time)  { u.updatedAt = t }
func (u *User) SetDeletedAt(t *time.Time) { u.deletedAt = t }

// Identity returns the public handle for this user.
func (u *User) Identity() Identity {
	return Identity{UserID: u.id, Email: u.email}
}

// Validate implements [Model].
func (u *User) Validate() error {
	if u.id == "" {
		return fmt.Errorf("%w: user id is required", shared.ErrInvalidInput)
	}
	if !strings.Contains(u.email, "@") {
		return fmt.Errorf("%w: invalid email %q", shared.ErrInvalidInput, u.email)
	}
	if u.passwordHash == "" {
		return fmt.Errorf("%w: password hash is required", shared.ErrInvalidInput)
	}
	return nil
}
