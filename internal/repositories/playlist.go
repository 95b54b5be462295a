package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/shared"
)

// PlaylistRepository stores one ordered playlist record per user.
//
// Saves replace the whole record in a transaction (last write wins) and bump its revision.
type PlaylistRepository struct {
	db *sql.DB
}

// NewPlaylistRepository creates a new [PlaylistRepository] with the given database connection
func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// Get returns the user's playlist in position order and its revision.
//
// Returns [shared.ErrPlaylistNotFound] when the user never saved one. A saved empty playlist is found.
func (r *PlaylistRepository) Get(userID string) (*models.Playlist, int, error) {
	var revision int
	err := r.db.QueryRow(`SELECT revision FROM playlists WHERE user_id = ?`, userID).Scan(&revision)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, userID)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query playlist: %w", err)
	}

	query := `
		SELECT track_id, title, source, position
		FROM playlist_entries
		WHERE user_id = ?
		ORDER BY position ASC
	`

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query playlist entries: %w", err)
	}
	defer rows.Close()

	playlist := &models.Playlist{UserID: userID, Tracks: []models.Track{}}
	for rows.Next() {
		var t models.Track
		if err := rows.Scan(&t.ID, &t.Title, &t.Source, &t.Position); err != nil {
			return nil, 0, fmt.Errorf("failed to scan playlist entry: %w", err)
		}
		playlist.Tracks = append(playlist.Tracks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("row iteration error: %w", err)
	}

	return playlist, revision, nil
}

// Save replaces the user's playlist with tracks and returns the new revision.
//
// Positions are rewritten to follow slice order. Every entry must pass [models.Track.Validate] and
// track IDs must be unique; otherwise nothing is written.
func (r *PlaylistRepository) Save(userID string, tracks []models.Track) (int, error) {
	tracks = models.Reindex(tracks)

	seen := make(map[string]struct{}, len(tracks))
	for _, t := range tracks {
		if err := t.Validate(); err != nil {
			return 0, fmt.Errorf("validation failed: %w", err)
		}
		if _, dup := seen[t.ID]; dup {
			return 0, fmt.Errorf("%w: %s", shared.ErrDuplicateTrack, t.ID)
		}
		seen[t.ID] = struct{}{}
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := formatTime(time.Now())
	upsert := `
		INSERT INTO playlists (user_id, revision, created_at, updated_at) VALUES (?, 1, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET revision = revision + 1, updated_at = excluded.updated_at
	`
	if _, err := tx.Exec(upsert, userID, now, now); err != nil {
		return 0, fmt.Errorf("failed to upsert playlist: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM playlist_entries WHERE user_id = ?`, userID); err != nil {
		return 0, fmt.Errorf("failed to clear playlist entries: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO playlist_entries (user_id, position, track_id, title, source) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare entry insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range tracks {
		if _, err := stmt.Exec(userID, t.Position, t.ID, t.Title, t.Source); err != nil {
			return 0, fmt.Errorf("failed to insert playlist entry %d: %w", t.Position, err)
		}
	}

	var revision int
	if err := tx.QueryRow(`SELECT revision FROM playlists WHERE user_id = ?`, userID).Scan(&revision); err != nil {
		return 0, fmt.Errorf("failed to read revision: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit playlist: %w", err)
	}

	return revision, nil
}

// Delete removes the user's playlist record and its entries.
func (r *PlaylistRepository) Delete(userID string) error {
	result, err := r.db.Exec(`DELETE FROM playlists WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}
	return rowsAffected(result, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, userID))
}
