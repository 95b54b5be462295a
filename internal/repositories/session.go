package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/shared"
)

var _ models.Repository[*models.Session] = (*SessionRepository)(nil)

// SessionRepository implements [models.Repository] for bearer [models.Session] persistence.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new [SessionRepository] with the given database connection
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session
func (r *SessionRepository) Create(session *models.Session) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `INSERT INTO sessions (token, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`

	_, err := r.db.Exec(query, session.Token(), session.UserID(),
		formatTime(session.CreatedAt()), session.ExpiresAt().Unix())
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// Get retrieves a session by token. Expired sessions are still returned; callers check [models.Session.Expired].
func (r *SessionRepository) Get(token string) (*models.Session, error) {
	query := `SELECT token, user_id, created_at, expires_at FROM sessions WHERE token = ?`

	session, err := scanSession(r.db.QueryRow(query, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	return session, nil
}

// Update extends a session's expiry
func (r *SessionRepository) Update(session *models.Session) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	result, err := r.db.Exec(`UPDATE sessions SET expires_at = ? WHERE token = ?`,
		session.ExpiresAt().Unix(), session.Token())
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return rowsAffected(result, shared.ErrNotAuthenticated)
}

// Delete revokes a session by token
func (r *SessionRepository) Delete(token string) error {
	result, err := r.db.Exec(`DELETE FROM sessions WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return rowsAffected(result, shared.ErrNotAuthenticated)
}

// List retrieves sessions, optionally filtered by "user_id", oldest first
func (r *SessionRepository) List(criteria map[string]any) ([]*models.Session, error) {
	query := `SELECT token, user_id, created_at, expires_at FROM sessions WHERE 1 = 1`
	args := []any{}

	if userID, ok := criteria["user_id"].(string); ok && userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}

	query += " ORDER BY created_at ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return sessions, nil
}

// PurgeExpired deletes every session that expired at or before now and returns how many were removed.
func (r *SessionRepository) PurgeExpired(now time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM sessions WHERE expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n, nil
}

func scanSession(row scanner) (*models.Session, error) {
	var (
		token     string
		userID    string
		createdAt string
		expiresAt int64
	)

	if err := row.Scan(&token, &userID, &createdAt, &expiresAt); err != nil {
		return nil, err
	}

	created, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}

	session := models.NewSession(token, userID, 0)
	session.SetCreatedAt(created)
	session.SetExpiresAt(time.Unix(expiresAt, 0).UTC())
	return session, nil
}
