package org

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mass-workshop/mass/internal/platform/database"
	"github.com/mass-workshop/mass/internal/rbac"
)

// Store handles organization database operations. Organizations are not
// row-level scoped; the store works on the pool directly.
type Store struct {
	pool        *pgxpool.Pool
	users       *UserStore
	assignments *AssignmentStore
}

// NewStore creates a new organization store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, users: NewUserStore(), assignments: NewAssignmentStore()}
}

const orgColumns = `id, name, slug, status, created_at, updated_at`

// Create inserts a new organization with the given name and slug.
func (s *Store) Create(ctx context.Context, name, slug string) (*Organization, error) {
	return createOrganization(ctx, s.pool, name, slug)
}

// GetByID retrieves an organization by its UUID.
func (s *Store) GetByID(ctx context.Context, id string) (*Organization, error) {
	var o Organization
	err := s.pool.QueryRow(ctx,
		`SELECT `+orgColumns+` FROM organizations WHERE id = $1`, id,
	).Scan(&o.ID, &o.Name, &o.Slug, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("getting organization: %w", err)
	}
	return &o, nil
}

// Bootstrap creates an organization and makes ownerEmail its admin in one
// transaction. The owner user is created if it does not exist yet.
func (s *Store) Bootstrap(ctx context.Context, name, slug, ownerEmail, displayName string) (*Organization, *Assignment, error) {
	ownerEmail = NormalizeEmail(ownerEmail)
	if err := ValidateEmail(ownerEmail); err != nil {
		return nil, nil, err
	}

	var (
		o *Organization
		a *Assignment
	)
	err := database.WithTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		if o, err = createOrganization(ctx, tx, name, slug); err != nil {
			return err
		}
		if err = database.SetTxOrg(ctx, tx, o.ID); err != nil {
			return err
		}
		owner, err := s.users.FindOrCreate(ctx, tx, ownerEmail, displayName)
		if err != nil {
			return err
		}
		a, err = s.assignments.Assign(ctx, tx, owner.ID, o.ID, rbac.RoleAdmin, "", nil)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return o, a, nil
}

func createOrganization(ctx context.Context, q database.Querier, name, slug string) (*Organization, error) {
	if name == "" {
		return nil, ErrNameRequired
	}
	if err := ValidateSlug(slug); err != nil {
		return nil, err
	}

	var o Organization
	err := q.QueryRow(ctx,
		`INSERT INTO organizations (name, slug) VALUES ($1, $2)
		 RETURNING `+orgColumns,
		name, slug,
	).Scan(&o.ID, &o.Name, &o.Slug, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrSlugTaken, slug)
		}
		return nil, fmt.Errorf("creating organization: %w", err)
	}
	return &o, nil
}
