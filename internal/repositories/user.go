package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/shared"
)

var _ models.Repository[*models.User] = (*UserRepository)(nil)

// UserRepository implements [models.Repository] for user [models.User] persistence.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, sequence, email, password_hash, created_at, updated_at, deleted_at`

// Create inserts a new user into the database with generated ID and sequence.
//
// Returns [shared.ErrDuplicateEmail] when the email is already registered.
func (r *UserRepository) Create(user *models.User) error {
	user.SetID(shared.GenerateID())
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "users")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	user.SetSequence(sequence)

	query := `
		INSERT INTO users (id, sequence, email, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query, user.ID(), sequence, user.Email(), user.PasswordHash(),
		formatTime(user.CreatedAt()), formatTime(user.UpdatedAt()))
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", shared.ErrDuplicateEmail, user.Email())
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// Get retrieves a user by ID, excluding soft-deleted users
func (r *UserRepository) Get(id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ? AND deleted_at IS NULL`

	user, err := scanUser(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrUserNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

// GetByEmail retrieves a user by (normalized) email, excluding soft-deleted users
func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ? AND deleted_at IS NULL`

	user, err := scanUser(r.db.QueryRow(query, shared.NormalizeEmail(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrUserNotFound, email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

// Update modifies an existing user's password hash
func (r *UserRepository) Update(user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	user.SetUpdatedAt(now)

	query := `
		UPDATE users
		SET password_hash = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, user.PasswordHash(), formatTime(now), user.ID())
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return rowsAffected(result, fmt.Errorf("%w: %s", shared.ErrUserNotFound, user.ID()))
}

// Delete soft-deletes a user by ID
func (r *UserRepository) Delete(id string) error {
	query := `
		UPDATE users
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return rowsAffected(result, fmt.Errorf("%w: %s", shared.ErrUserNotFound, id))
}

// List retrieves all users matching the given criteria, excluding soft-deleted users
func (r *UserRepository) List(criteria map[string]any) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE deleted_at IS NULL`
	args := []any{}

	if email, ok := criteria["email"].(string); ok && email != "" {
		query += " AND email = ?"
		args = append(args, shared.NormalizeEmail(email))
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return users, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*models.User, error) {
	var (
		id           string
		sequence     int
		email        string
		passwordHash string
		createdAt    string
		updatedAt    string
		deletedAt    sql.NullString
	)

	if err := row.Scan(&id, &sequence, &email, &passwordHash, &createdAt, &updatedAt, &deletedAt); err != nil {
		return nil, err
	}

	created, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	updated, err := parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	deleted, err := parseNullTime(deletedAt)
	if err != nil {
		return nil, err
	}

	user := models.NewUser(sequence, email, passwordHash)
	user.SetID(id)
	user.SetCreatedAt(created)
	user.SetUpdatedAt(updated)
	user.SetDeletedAt(deleted)
	return user, nil
}
