package org

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mass-workshop/mass/internal/audit"
	"github.com/mass-workshop/mass/internal/platform/database"
	"github.com/mass-workshop/mass/internal/rbac"
)

// MemberHandler manages the members of the caller's organization.
type MemberHandler struct {
	pool        *pgxpool.Pool
	users       *UserStore
	assignments *AssignmentStore
	audit       audit.Logger
}

// NewMemberHandler creates a new member handler.
func NewMemberHandler(pool *pgxpool.Pool, users *UserStore, assignments *AssignmentStore, auditLog audit.Logger) *MemberHandler {
	if auditLog == nil {
		auditLog = audit.NopLogger{}
	}
	return &MemberHandler{
		pool:        pool,
		users:       users,
		assignments: assignments,
		audit:       auditLog,
	}
}

type roleRequest struct {
	Role         string `json:"role"`
	CustomRoleID string `json:"custom_role_id"`
}

// parse validates the role fields without touching the database.
func (rr roleRequest) parse() (rbac.RoleName, string, error) {
	role, err := rbac.ParseRoleName(rr.Role)
	if err != nil {
		return "", "", err
	}
	if err := validateRole(role, rr.CustomRoleID); err != nil {
		return "", "", err
	}
	if rr.CustomRoleID != "" && !isUUID(rr.CustomRoleID) {
		return "", "", ErrCustomRoleNotFound
	}
	return role, rr.CustomRoleID, nil
}

// HandleList returns every member of the organization.
// GET /api/v1/members
func (h *MemberHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	orgID := actorOrgID(r.Context())
	if orgID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "organization context required"})
		return
	}

	var members []Member
	err := database.WithOrgConnection(r.Context(), h.pool, orgID, func(ctx context.Context, q database.Querier) error {
		var listErr error
		members, listErr = h.assignments.ListForOrg(ctx, q, orgID)
		return listErr
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "listing members failed"})
		return
	}
	if members == nil {
		members = []Member{}
	}

	writeJSON(w, http.StatusOK, members)
}

// HandleAdd adds a user to the organization, creating the user when the
// email is new.
// POST /api/v1/members
func (h *MemberHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	orgID := actorOrgID(r.Context())
	if orgID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "organization context required"})
		return
	}

	var req struct {
		Email       string   `json:"email"`
		DisplayName string   `json:"display_name"`
		Permissions []string `json:"permissions"`
		roleRequest
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	email := NormalizeEmail(req.Email)
	if err := ValidateEmail(email); err != nil {
		writeMemberError(w, err, "adding member failed")
		return
	}
	role, customRoleID, err := req.roleRequest.parse()
	if err != nil {
		writeMemberError(w, err, "adding member failed")
		return
	}
	perms, err := rbac.ParsePermissions(req.Permissions)
	if err != nil {
		writeMemberError(w, err, "adding member failed")
		return
	}

	var member *Member
	err = database.WithOrgTx(r.Context(), h.pool, orgID, func(ctx context.Context, q database.Querier) error {
		u, err := h.users.FindOrCreate(ctx, q, email, req.DisplayName)
		if err != nil {
			return err
		}
		a, err := h.assignments.Assign(ctx, q, u.ID, orgID, role, customRoleID, perms)
		if err != nil {
			return err
		}
		member = &Member{Assignment: *a, Email: u.Email, DisplayName: u.DisplayName}
		return nil
	})
	if err != nil {
		writeMemberError(w, err, "adding member failed")
		return
	}

	h.audit.Log(r.Context(), event(r.Context(), audit.ActionMemberAdded, audit.ResourceMember, member.UserID, map[string]any{
		"email": member.Email,
		"role":  member.RBACRole().String(),
	}))

	writeJSON(w, http.StatusCreated, member)
}

// HandleUpdateRole changes a member's role.
// PUT /api/v1/members/{id}/role
func (h *MemberHandler) HandleUpdateRole(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	orgID, userID, ok := memberPath(w, r)
	if !ok {
		return
	}

	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	role, customRoleID, err := req.parse()
	if err != nil {
		writeMemberError(w, err, "role update failed")
		return
	}

	var (
		before  *Assignment
		updated *Assignment
	)
	err = database.WithOrgTx(r.Context(), h.pool, orgID, func(ctx context.Context, q database.Querier) error {
		var err error
		if before, err = h.assignments.Get(ctx, q, userID, orgID); err != nil {
			return err
		}
		updated, err = h.assignments.UpdateRole(ctx, q, userID, orgID, role, customRoleID)
		return err
	})
	if err != nil {
		writeMemberError(w, err, "role update failed")
		return
	}

	h.audit.Log(r.Context(), event(r.Context(), audit.ActionMemberRoleChanged, audit.ResourceMember, userID, map[string]any{
		"from": before.RBACRole().String(),
		"to":   updated.RBACRole().String(),
	}))

	writeJSON(w, http.StatusOK, updated)
}

// HandleSetPermissions replaces a member's additive permission overrides.
// PUT /api/v1/members/{id}/permissions
func (h *MemberHandler) HandleSetPermissions(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	orgID, userID, ok := memberPath(w, r)
	if !ok {
		return
	}

	var req struct {
		Permissions []string `json:"permissions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	perms, err := rbac.ParsePermissions(req.Permissions)
	if err != nil {
		writeMemberError(w, err, "permission update failed")
		return
	}

	var updated *Assignment
	err = database.WithOrgConnection(r.Context(), h.pool, orgID, func(ctx context.Context, q database.Querier) error {
		var setErr error
		updated, setErr = h.assignments.SetPermissions(ctx, q, userID, orgID, perms)
		return setErr
	})
	if err != nil {
		writeMemberError(w, err, "permission update failed")
		return
	}

	h.audit.Log(r.Context(), event(r.Context(), audit.ActionMemberPermissionsChanged, audit.ResourceMember, userID, map[string]any{
		"permissions": rbac.Strings(perms),
	}))

	writeJSON(w, http.StatusOK, updated)
}

// HandleRemove deactivates a member's assignment.
// DELETE /api/v1/members/{id}
func (h *MemberHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	orgID, userID, ok := memberPath(w, r)
	if !ok {
		return
	}

	err := database.WithOrgTx(r.Context(), h.pool, orgID, func(ctx context.Context, q database.Querier) error {
		return h.assignments.Deactivate(ctx, q, userID, orgID)
	})
	if err != nil {
		writeMemberError(w, err, "member removal failed")
		return
	}

	h.audit.Log(r.Context(), event(r.Context(), audit.ActionMemberRemoved, audit.ResourceMember, userID, nil))

	w.WriteHeader(http.StatusNoContent)
}

// memberPath extracts the organization and the member's user ID, writing
// the error response itself when either is unusable.
func memberPath(w http.ResponseWriter, r *http.Request) (orgID, userID string, ok bool) {
	orgID = actorOrgID(r.Context())
	if orgID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "organization context required"})
		return "", "", false
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": ErrAssignmentNotFound.Error()})
		return "", "", false
	}
	return orgID, id.String(), true
}

func writeMemberError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrEmailInvalid),
		errors.Is(err, rbac.ErrUnknownRole),
		errors.Is(err, rbac.ErrUnknownPermission),
		errors.Is(err, ErrCustomRoleRequired):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrAssignmentNotFound), errors.Is(err, ErrCustomRoleNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrAlreadyMember), errors.Is(err, ErrLastAdmin):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": fallback})
	}
}
