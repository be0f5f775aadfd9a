package org

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/mass-workshop/mass/internal/platform/database"
)

// UserStore handles user database operations. Users are global, so none of
// these queries depend on the organization session variable.
type UserStore struct{}

// NewUserStore creates a new user store.
func NewUserStore() *UserStore {
	return &UserStore{}
}

const userColumns = `id, email, COALESCE(display_name, ''), status, created_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.Status, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user.
func (s *UserStore) Create(ctx context.Context, q database.Querier, email, displayName string) (*User, error) {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}

	u, err := scanUser(q.QueryRow(ctx,
		`INSERT INTO users (email, display_name) VALUES ($1, NULLIF($2, ''))
		 RETURNING `+userColumns,
		email, displayName,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrEmailDuplicate, email)
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return u, nil
}

// GetByID retrieves a user by ID.
func (s *UserStore) GetByID(ctx context.Context, q database.Querier, id string) (*User, error) {
	u, err := scanUser(q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// GetByEmail retrieves a user by email address, case-insensitively.
func (s *UserStore) GetByEmail(ctx context.Context, q database.Querier, email string) (*User, error) {
	u, err := scanUser(q.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, NormalizeEmail(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return u, nil
}

// FindOrCreate returns the user with email, creating it when absent. An
// existing user keeps its display name and status.
func (s *UserStore) FindOrCreate(ctx context.Context, q database.Querier, email, displayName string) (*User, error) {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}

	// The no-op update makes RETURNING yield the existing row on conflict.
	u, err := scanUser(q.QueryRow(ctx,
		`INSERT INTO users (email, display_name) VALUES ($1, NULLIF($2, ''))
		 ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		 RETURNING `+userColumns,
		email, displayName,
	))
	if err != nil {
		return nil, fmt.Errorf("finding or creating user: %w", err)
	}
	return u, nil
}

// Deactivate marks a user deactivated. The guard then treats the user as
// unknown in every organization.
func (s *UserStore) Deactivate(ctx context.Context, q database.Querier, id string) error {
	tag, err := q.Exec(ctx,
		`UPDATE users SET status = $2 WHERE id = $1`, id, UserStatusDeactivated)
	if err != nil {
		return fmt.Errorf("deactivating user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
