package org

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mass-workshop/mass/internal/platform/database"
	"github.com/mass-workshop/mass/internal/rbac"
)

// Directory serves the guard's lookups from Postgres.
type Directory struct {
	pool        *pgxpool.Pool
	users       *UserStore
	assignments *AssignmentStore
	customRoles *CustomRoleStore
}

var (
	_ rbac.UserLookup       = (*Directory)(nil)
	_ rbac.AssignmentLookup = (*Directory)(nil)
	_ rbac.CustomRoleLookup = (*Directory)(nil)
)

func NewDirectory(pool *pgxpool.Pool) *Directory {
	return &Directory{
		pool:        pool,
		users:       NewUserStore(),
		assignments: NewAssignmentStore(),
		customRoles: NewCustomRoleStore(),
	}
}

func (d *Directory) UserByEmail(ctx context.Context, email string) (*rbac.UserRecord, error) {
	u, err := d.users.GetByEmail(ctx, d.pool, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, rbac.ErrNotFound
		}
		return nil, err
	}
	return &rbac.UserRecord{ID: u.ID, Email: u.Email, Active: u.Active()}, nil
}

func (d *Directory) AssignmentFor(ctx context.Context, userID, orgID string) (*rbac.AssignmentRecord, error) {
	if !isUUID(userID) || !isUUID(orgID) {
		return nil, rbac.ErrNotFound
	}

	var a *Assignment
	err := database.WithOrgConnection(ctx, d.pool, orgID, func(ctx context.Context, q database.Querier) error {
		var getErr error
		a, getErr = d.assignments.Get(ctx, q, userID, orgID)
		return getErr
	})
	if err != nil {
		if errors.Is(err, ErrAssignmentNotFound) {
			return nil, rbac.ErrNotFound
		}
		return nil, err
	}
	return &rbac.AssignmentRecord{
		UserID:      a.UserID,
		OrgID:       a.OrgID,
		Role:        a.RBACRole(),
		Permissions: a.Permissions,
		Active:      a.Active,
	}, nil
}

func (d *Directory) CustomRoleByID(ctx context.Context, orgID, id string) (*rbac.CustomRoleRecord, error) {
	if !isUUID(orgID) || !isUUID(id) {
		return nil, rbac.ErrNotFound
	}

	var r *CustomRole
	err := database.WithOrgConnection(ctx, d.pool, orgID, func(ctx context.Context, q database.Querier) error {
		var getErr error
		r, getErr = d.customRoles.GetByID(ctx, q, orgID, id)
		return getErr
	})
	if err != nil {
		if errors.Is(err, ErrCustomRoleNotFound) {
			return nil, rbac.ErrNotFound
		}
		return nil, err
	}
	return &rbac.CustomRoleRecord{ID: r.ID, OrgID: r.OrgID, Name: r.Name, Permissions: r.Permissions}, nil
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
