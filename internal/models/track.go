package models

import (
	"fmt"
	"strings"

	"github.com/desertthunder/playsync/internal/shared"
)

// Track is a single playlist entry.
//
// ID and metadata are fixed once created; only Position changes as entries around it are added or removed.
type Track struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Source   string `json:"source"`   // Source reference (URL or file path) the player loads audio from
	Position int    `json:"position"` // Zero-based ordinal within the playlist
}

// Validate checks that the entry can be persisted.
func (t Track) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("%w: track id is required", shared.ErrInvalidInput)
	}
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("%w: track title is required", shared.ErrInvalidInput)
	}
	if t.Position < 0 {
		return fmt.Errorf("%w: negative position %d", shared.ErrInvalidInput, t.Position)
	}
	return nil
}

// Playlist is the ordered sequence of entries stored for one user.
type Playlist struct {
	UserID string  `json:"user_id"`
	Tracks []Track `json:"tracks"`
}

// Reindex returns a copy of tracks with positions rewritten to 0..n-1 in slice order.
func Reindex(tracks []Track) []Track {
	out := make([]Track, len(tracks))
	for i, t := range tracks {
		t.Position = i
		out[i] = t
	}
	return out
}

// Identity is the authenticated user handle issued by the account service.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Token  string `json:"token,omitempty"`
}

// IsZero reports whether the identity is the anonymous placeholder.
func (i Identity) IsZero() bool {
	return i.UserID == ""
}
