package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/playsync/internal/shared"
)

// Session is a bearer token issued to a user at sign-up or log-in.
//
// The token doubles as the ID.
type Session struct {
	token     string
	userID    string
	createdAt time.Time
	expiresAt time.Time
}

// NewSession creates a [Session] for userID valid for ttl.
func NewSession(token, userID string, ttl time.Duration) *Session {
	now := time.Now().UTC()
	return &Session{token: token, userID: userID, createdAt: now, expiresAt: now.Add(ttl)}
}

func (s *Session) ID() string               { return s.token }
func (s *Session) Token() string            { return s.token }
func (s *Session) UserID() string           { return s.userID }
func (s *Session) CreatedAt() time.Time     { return s.createdAt }
func (s *Session) UpdatedAt() time.Time     { return s.createdAt }
func (s *Session) ExpiresAt() time.Time     { return s.expiresAt }
func (s *Session) SetCreatedAt(t time.Time) { s.createdAt = t }
func (s *Session) SetExpiresAt(t time.Time) { s.expiresAt = t }

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.expiresAt)
}

// Validate implements [Model].
func (s *Session) Validate() error {
	if s.token == "" || s.userID == "" {
		return fmt.Errorf("%w: session requires token and user id", shared.ErrInvalidInput)
	}
	if !s.expiresAt.After(s.createdAt) {
		return fmt.Errorf("%w: session expires before it starts", shared.ErrInvalidInput)
	}
	return nil
}
