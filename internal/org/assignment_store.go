package org

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/mass-workshop/mass/internal/platform/database"
	"github.com/mass-workshop/mass/internal/rbac"
)

var ErrAlreadyMember = errors.New("user is already an active member of the organization")

// AssignmentStore handles role assignments. Queries run under the
// organization's RLS scope; org IDs are still passed explicitly so a
// mis-scoped connection matches nothing instead of the wrong rows.
type AssignmentStore struct{}

// NewAssignmentStore creates a new assignment store.
func NewAssignmentStore() *AssignmentStore {
	return &AssignmentStore{}
}

const customRoleFK = "user_org_roles_custom_role_id_fkey"

const assignmentColumns = `id, user_id, org_id, role, custom_role_id, permissions, active, created_at, updated_at`

func scanAssignment(row pgx.Row) (*Assignment, error) {
	var (
		a            Assignment
		customRoleID *string
		permBytes    []byte
	)
	if err := row.Scan(&a.ID, &a.UserID, &a.OrgID, &a.Role, &customRoleID, &permBytes,
		&a.Active, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	if customRoleID != nil {
		a.CustomRoleID = *customRoleID
	}
	perms, err := decodePermissions(permBytes)
	if err != nil {
		return nil, err
	}
	a.Permissions = perms
	return &a, nil
}

// Assign makes userID a member of orgID. An inactive assignment is
// reactivated with the new role and overrides; an active one is left alone
// and ErrAlreadyMember is returned. A customRoleID outside orgID is
// ErrCustomRoleNotFound.
func (s *AssignmentStore) Assign(ctx context.Context, q database.Querier, userID, orgID string, role rbac.RoleName, customRoleID string, perms []rbac.Permission) (*Assignment, error) {
	if err := validateRole(role, customRoleID); err != nil {
		return nil, err
	}
	permJSON, err := encodePermissions(perms)
	if err != nil {
		return nil, err
	}
	if customRoleID != "" {
		if err := lockCustomRole(ctx, q, orgID, customRoleID); err != nil {
			return nil, err
		}
	}

	a, err := scanAssignment(q.QueryRow(ctx,
		`INSERT INTO user_org_roles (user_id, org_id, role, custom_role_id, permissions)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, org_id) DO UPDATE
		   SET role = EXCLUDED.role,
		       custom_role_id = EXCLUDED.custom_role_id,
		       permissions = EXCLUDED.permissions,
		       active = true,
		       updated_at = now()
		   WHERE user_org_roles.active = false
		 RETURNING `+assignmentColumns,
		userID, orgID, role, nullable(customRoleID), permJSON,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAlreadyMember
		}
		if isForeignKeyViolation(err, customRoleFK) {
			return nil, ErrCustomRoleNotFound
		}
		return nil, fmt.Errorf("assigning role: %w", err)
	}
	return a, nil
}

// Get returns the assignment of userID in orgID, active or not.
func (s *AssignmentStore) Get(ctx context.Context, q database.Querier, userID, orgID string) (*Assignment, error) {
	a, err := scanAssignment(q.QueryRow(ctx,
		`SELECT `+assignmentColumns+` FROM user_org_roles WHERE user_id = $1 AND org_id = $2`,
		userID, orgID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("getting assignment: %w", err)
	}
	return a, nil
}

// ListForOrg returns every member of orgID, including deactivated ones.
func (s *AssignmentStore) ListForOrg(ctx context.Context, q database.Querier, orgID string) ([]Member, error) {
	rows, err := q.Query(ctx,
		`SELECT a.id, a.user_id, a.org_id, a.role, a.custom_role_id, a.permissions, a.active,
		        a.created_at, a.updated_at, u.email, COALESCE(u.display_name, '')
		 FROM user_org_roles a
		 JOIN users u ON u.id = a.user_id
		 WHERE a.org_id = $1
		 ORDER BY a.created_at`,
		orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var (
			m            Member
			customRoleID *string
			permBytes    []byte
		)
		if err := rows.Scan(&m.ID, &m.UserID, &m.OrgID, &m.Role, &customRoleID, &permBytes,
			&m.Active, &m.CreatedAt, &m.UpdatedAt, &m.Email, &m.DisplayName); err != nil {
			return nil, fmt.Errorf("scanning member: %w", err)
		}
		if customRoleID != nil {
			m.CustomRoleID = *customRoleID
		}
		if m.Permissions, err = decodePermissions(permBytes); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// UpdateRole changes the role of an active assignment. Demoting the last
// active admin returns ErrLastAdmin. Run it inside a transaction so the admin rows
// stay locked until commit.
func (s *AssignmentStore) UpdateRole(ctx context.Context, q database.Querier, userID, orgID string, role rbac.RoleName, customRoleID string) (*Assignment, error) {
	if err := validateRole(role, customRoleID); err != nil {
		return nil, err
	}
	if customRoleID != "" {
		if err := lockCustomRole(ctx, q, orgID, customRoleID); err != nil {
			return nil, err
		}
	}
	if role != rbac.RoleAdmin {
		if err := s.ensureAnotherAdmin(ctx, q, userID, orgID); err != nil {
			return nil, err
		}
	}

	a, err := scanAssignment(q.QueryRow(ctx,
		`UPDATE user_org_roles
		 SET role = $3, custom_role_id = $4, updated_at = now()
		 WHERE user_id = $1 AND org_id = $2 AND active
		 RETURNING `+assignmentColumns,
		userID, orgID, role, nullable(customRoleID),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAssignmentNotFound
		}
		if isForeignKeyViolation(err, customRoleFK) {
			return nil, ErrCustomRoleNotFound
		}
		return nil, fmt.Errorf("updating role: %w", err)
	}
	return a, nil
}

// SetPermissions replaces the additive permission overrides of an active
// assignment.
func (s *AssignmentStore) SetPermissions(ctx context.Context, q database.Querier, userID, orgID string, perms []rbac.Permission) (*Assignment, error) {
	permJSON, err := encodePermissions(perms)
	if err != nil {
		return nil, err
	}

	a, err := scanAssignment(q.QueryRow(ctx,
		`UPDATE user_org_roles
		 SET permissions = $3, updated_at = now()
		 WHERE user_id = $1 AND org_id = $2 AND active
		 RETURNING `+assignmentColumns,
		userID, orgID, permJSON,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("setting permissions: %w", err)
	}
	return a, nil
}

// Deactivate removes a member from the organization without deleting the
// row. Deactivating the last active admin returns ErrLastAdmin.
func (s *AssignmentStore) Deactivate(ctx context.Context, q database.Querier, userID, orgID string) error {
	if err := s.ensureAnotherAdmin(ctx, q, userID, orgID); err != nil {
		return err
	}

	tag, err := q.Exec(ctx,
		`UPDATE user_org_roles SET active = false, updated_at = now()
		 WHERE user_id = $1 AND org_id = $2 AND active`,
		userID, orgID,
	)
	if err != nil {
		return fmt.Errorf("deactivating assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAssignmentNotFound
	}
	return nil
}

// ensureAnotherAdmin returns ErrLastAdmin when userID is an active admin of
// orgID and no other active admin exists. It locks the admin rows.
func (s *AssignmentStore) ensureAnotherAdmin(ctx context.Context, q database.Querier, userID, orgID string) error {
	rows, err := q.Query(ctx,
		`SELECT user_id FROM user_org_roles
		 WHERE org_id = $1 AND role = 'admin' AND active
		 FOR UPDATE`,
		orgID,
	)
	if err != nil {
		return fmt.Errorf("locking admins: %w", err)
	}
	admins, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return fmt.Errorf("scanning admins: %w", err)
	}

	isAdmin := false
	for _, id := range admins {
		if id == userID {
			isAdmin = true
		}
	}
	if isAdmin && len(admins) == 1 {
		return ErrLastAdmin
	}
	return nil
}

func encodePermissions(perms []rbac.Permission) ([]byte, error) {
	if perms == nil {
		perms = []rbac.Permission{}
	}
	b, err := json.Marshal(perms)
	if err != nil {
		return nil, fmt.Errorf("marshaling permissions: %w", err)
	}
	return b, nil
}

func decodePermissions(b []byte) ([]rbac.Permission, error) {
	perms := []rbac.Permission{}
	if len(b) == 0 {
		return perms, nil
	}
	if err := json.Unmarshal(b, &perms); err != nil {
		return nil, fmt.Errorf("unmarshaling permissions: %w", err)
	}
	if perms == nil {
		perms = []rbac.Permission{}
	}
	return perms, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
