package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/tasktracker/tasktracker/internal/model"
)

// Common errors for user repository operations.
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrUsernameExists = errors.New("username already exists")
)

// CreateUser inserts a new user into the database.
// The users.username unique constraint is the source of truth for
// username uniqueness; a violation surfaces as ErrUsernameExists.
func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, username, password_hash, profile_image, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Username,
		user.PasswordHash,
		user.ProfileImage,
		user.CreatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrUsernameExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByID retrieves a user by their ID.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	query := `
		SELECT id, username, password_hash, profile_image, created_at
		FROM users
		WHERE id = $1
	`

	return r.scanUser(r.pool.QueryRow(ctx, query, id))
}

// GetUserByUsername retrieves a user by username (case-sensitive exact match).
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `
		SELECT id, username, password_hash, profile_image, created_at
		FROM users
		WHERE username = $1
	`

	return r.scanUser(r.pool.QueryRow(ctx, query, username))
}

// ListUsers retrieves users with offset/limit pagination.
func (r *Repository) ListUsers(ctx context.Context, offset, limit int) ([]*model.User, error) {
	query := `
		SELECT id, username, password_hash, profile_image, created_at
		FROM users
		ORDER BY created_at, id
		OFFSET $1 LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		var user model.User
		if err := rows.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.ProfileImage, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// UpdateUser applies non-nil fields to the stored user.
// The password hash passed here must already be hashed by the caller.
func (r *Repository) UpdateUser(ctx context.Context, id string, username, passwordHash, profileImage *string) (*model.User, error) {
	query := `
		UPDATE users
		SET username = COALESCE($2, username),
		    password_hash = COALESCE($3, password_hash),
		    profile_image = COALESCE($4, profile_image)
		WHERE id = $1
		RETURNING id, username, password_hash, profile_image, created_at
	`

	user, err := r.scanUser(r.pool.QueryRow(ctx, query, id, username, passwordHash, profileImage))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUsernameExists
		}
		return nil, err
	}

	return user, nil
}

// DeleteUser removes a user by ID. Returns ErrUserNotFound if no row matched.
func (r *Repository) DeleteUser(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

// scanUser scans a single user row.
func (r *Repository) scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.ProfileImage,
		&user.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	return &user, nil
}
