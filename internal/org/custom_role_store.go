package org

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/mass-workshop/mass/internal/platform/database"
	"github.com/mass-workshop/mass/internal/rbac"
)

// CustomRoleStore handles custom role definitions within an organization.
// Every query is scoped by an explicit org_id; the table owner bypasses RLS.
type CustomRoleStore struct{}

// NewCustomRoleStore creates a new custom role store.
func NewCustomRoleStore() *CustomRoleStore {
	return &CustomRoleStore{}
}

const customRoleColumns = `id, org_id, name, permissions, created_at, updated_at`

func scanCustomRole(row pgx.Row) (*CustomRole, error) {
	var (
		r         CustomRole
		permBytes []byte
	)
	if err := row.Scan(&r.ID, &r.OrgID, &r.Name, &permBytes, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	perms, err := decodePermissions(permBytes)
	if err != nil {
		return nil, err
	}
	r.Permissions = perms
	return &r, nil
}

// Create inserts a new custom role in orgID.
func (s *CustomRoleStore) Create(ctx context.Context, q database.Querier, orgID, name string, perms []rbac.Permission) (*CustomRole, error) {
	if err := validateCustomRole(name, perms); err != nil {
		return nil, err
	}
	permJSON, err := encodePermissions(perms)
	if err != nil {
		return nil, err
	}

	r, err := scanCustomRole(q.QueryRow(ctx,
		`INSERT INTO custom_roles (org_id, name, permissions)
		 VALUES ($1, $2, $3)
		 RETURNING `+customRoleColumns,
		orgID, name, permJSON,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrCustomRoleDuplicate, name)
		}
		return nil, fmt.Errorf("creating custom role: %w", err)
	}
	return r, nil
}

// GetByID retrieves a custom role of orgID. Another organization's role is
// reported as ErrCustomRoleNotFound.
func (s *CustomRoleStore) GetByID(ctx context.Context, q database.Querier, orgID, id string) (*CustomRole, error) {
	r, err := scanCustomRole(q.QueryRow(ctx,
		`SELECT `+customRoleColumns+` FROM custom_roles WHERE id = $1 AND org_id = $2`,
		id, orgID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomRoleNotFound
		}
		return nil, fmt.Errorf("getting custom role: %w", err)
	}
	return r, nil
}

// List returns orgID's custom roles by name.
func (s *CustomRoleStore) List(ctx context.Context, q database.Querier, orgID string) ([]CustomRole, error) {
	rows, err := q.Query(ctx,
		`SELECT `+customRoleColumns+` FROM custom_roles WHERE org_id = $1 ORDER BY name`, orgID)
	if err != nil {
		return nil, fmt.Errorf("listing custom roles: %w", err)
	}
	defer rows.Close()

	var roles []CustomRole
	for rows.Next() {
		r, err := scanCustomRole(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning custom role: %w", err)
		}
		roles = append(roles, *r)
	}
	return roles, rows.Err()
}

// Update replaces a custom role's name and permissions.
func (s *CustomRoleStore) Update(ctx context.Context, q database.Querier, orgID, id, name string, perms []rbac.Permission) (*CustomRole, error) {
	if err := validateCustomRole(name, perms); err != nil {
		return nil, err
	}
	permJSON, err := encodePermissions(perms)
	if err != nil {
		return nil, err
	}

	r, err := scanCustomRole(q.QueryRow(ctx,
		`UPDATE custom_roles SET name = $3, permissions = $4, updated_at = now()
		 WHERE id = $1 AND org_id = $2
		 RETURNING `+customRoleColumns,
		id, orgID, name, permJSON,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomRoleNotFound
		}
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrCustomRoleDuplicate, name)
		}
		return nil, fmt.Errorf("updating custom role: %w", err)
	}
	return r, nil
}

// Delete removes a custom role. Roles still held by active members are
// refused with ErrCustomRoleInUse; inactive assignments lose the reference.
// Run it inside a transaction so the role row stays locked until commit.
func (s *CustomRoleStore) Delete(ctx context.Context, q database.Querier, orgID, id string) error {
	var locked string
	err := q.QueryRow(ctx,
		`SELECT id FROM custom_roles WHERE id = $1 AND org_id = $2 FOR UPDATE`,
		id, orgID,
	).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCustomRoleNotFound
		}
		return fmt.Errorf("locking custom role: %w", err)
	}

	var inUse int
	err = q.QueryRow(ctx,
		`SELECT COUNT(*) FROM user_org_roles
		 WHERE custom_role_id = $1 AND org_id = $2 AND active`,
		id, orgID,
	).Scan(&inUse)
	if err != nil {
		return fmt.Errorf("checking custom role usage: %w", err)
	}
	if inUse > 0 {
		return fmt.Errorf("%w: %d member(s)", ErrCustomRoleInUse, inUse)
	}

	tag, err := q.Exec(ctx, `DELETE FROM custom_roles WHERE id = $1 AND org_id = $2`, id, orgID)
	if err != nil {
		return fmt.Errorf("deleting custom role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCustomRoleNotFound
	}
	return nil
}

// lockCustomRole confirms id is a custom role of orgID and key-share locks
// it until the surrounding transaction ends.
func lockCustomRole(ctx context.Context, q database.Querier, orgID, id string) error {
	var locked string
	err := q.QueryRow(ctx,
		`SELECT id FROM custom_roles WHERE id = $1 AND org_id = $2 FOR KEY SHARE`,
		id, orgID,
	).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCustomRoleNotFound
		}
		return fmt.Errorf("locking custom role: %w", err)
	}
	return nil
}
