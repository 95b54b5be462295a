// package services defines the remote collaborators of the playlist sync engine
//
// Account service (sign-up, log-in, log-out) and playlist persistence keyed by identity.
package services

import (
	"context"
	"fmt"

	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/shared"
)

// PlaylistClient is the remote persistence API the sync engine writes through.
type PlaylistClient interface {
	// FetchPlaylist returns the stored tracks for identity in position order.
	// Returns an error wrapping [shared.ErrPlaylistNotFound] when the identity never saved a playlist.
	FetchPlaylist(ctx context.Context, identity models.Identity) ([]models.Track, error)

	// SavePlaylist replaces the stored playlist for identity with tracks (last write wins).
	SavePlaylist(ctx context.Context, identity models.Identity, tracks []models.Track) error
}

// AuthClient is the account service that issues identities.
type AuthClient interface {
	// SignUp registers a new account and returns its identity, already logged in.
	SignUp(ctx context.Context, email, password string) (models.Identity, error)

	// LogIn verifies credentials and returns the identity with a fresh token.
	LogIn(ctx context.Context, email, password string) (models.Identity, error)

	// LogOut revokes the identity's token.
	LogOut(ctx context.Context, identity models.Identity) error

	// CurrentIdentity resolves the identity the token belongs to.
	CurrentIdentity(ctx context.Context, token string) (models.Identity, error)
}

// Backend bundles both collaborators, as served by a single account service.
type Backend interface {
	PlaylistClient
	AuthClient
}

// SyncError reports a failed remote playlist operation (network failure, backend unavailable).
//
// It matches [shared.ErrSyncFailed] and its cause with errors.Is.
type SyncError struct {
	Op     string // "fetch" or "save"
	UserID string
	Err    error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("%s playlist for %s: %v", e.Op, e.UserID, e.Err)
}

func (e *SyncError) Unwrap() []error {
	return []error{shared.ErrSyncFailed, e.Err}
}

// AuthError reports a rejected or failed account operation (invalid credentials, duplicate email).
//
// It matches [shared.ErrAuthFailed] and its cause with errors.Is.
type AuthError struct {
	Op  string // "signup", "login", "logout" or "me"
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() []error {
	return []error{shared.ErrAuthFailed, e.Err}
}

// TrackPayload is the wire form of one playlist entry.
type TrackPayload struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Source   string `json:"source"`
	Position int    `json:"position"`
}

// PlaylistPayload is the wire form of a stored playlist.
type PlaylistPayload struct {
	UserID string         `json:"user_id,omitempty"`
	Tracks []TrackPayload `json:"tracks"`
}

// CredentialsPayload is the body of sign-up and log-in requests.
type CredentialsPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// IdentityPayload is the account service's answer to sign-up, log-in and me requests.
type IdentityPayload struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Token  string `json:"token,omitempty"`
}

// ErrorPayload is the body of every non-2xx response.
type ErrorPayload struct {
	Error string `json:"error"`
}

// ToPayload converts tracks to their wire form, positions following slice order.
func ToPayload(tracks []models.Track) []TrackPayload {
	out := make([]TrackPayload, len(tracks))
	for i, t := range tracks {
		out[i] = TrackPayload{ID: t.ID, Title: t.Title, Source: t.Source, Position: i}
	}
	return out
}

// FromPayload converts wire tracks back to [models.Track], positions following slice order.
func FromPayload(tracks []TrackPayload) []models.Track {
	out := make([]models.Track, len(tracks))
	for i, t := range tracks {
		out[i] = models.Track{ID: t.ID, Title: t.Title, Source: t.Source, Position: i}
	}
	return out
}

// Identity converts the payload to a [models.Identity].
func (p IdentityPayload) Identity() models.Identity {
	return models.Identity{UserID: p.UserID, Email: p.Email, Token: p.Token}
}
