package org

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mass-workshop/mass/internal/audit"
	"github.com/mass-workshop/mass/internal/platform/database"
	"github.com/mass-workshop/mass/internal/rbac"
)

// RoleCacheInvalidator drops cached custom role definitions after a mutation.
type RoleCacheInvalidator interface {
	InvalidateCustomRole(orgID, id string)
}

// RoleHandler handles custom role endpoints within an organization.
type RoleHandler struct {
	pool        *pgxpool.Pool
	store       *CustomRoleStore
	invalidator RoleCacheInvalidator
	audit       audit.Logger
}

// NewRoleHandler creates a new role handler. invalidator may be nil.
func NewRoleHandler(pool *pgxpool.Pool, store *CustomRoleStore, invalidator RoleCacheInvalidator, auditLog audit.Logger) *RoleHandler {
	if auditLog == nil {
		auditLog = audit.NopLogger{}
	}
	return &RoleHandler{pool: pool, store: store, invalidator: invalidator, audit: auditLog}
}

type customRoleRequest struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

func decodeCustomRole(w http.ResponseWriter, r *http.Request) (string, []rbac.Permission, bool) {
	var req customRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return "", nil, false
	}
	perms, err := rbac.ParsePermissions(req.Permissions)
	if err == nil {
		err = validateCustomRole(req.Name, perms)
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return "", nil, false
	}
	return req.Name, perms, true
}

// HandleList returns the organization's custom roles.
// GET /api/v1/roles
func (h *RoleHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	orgID := actorOrgID(r.Context())
	if orgID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "organization context required"})
		return
	}

	var roles []CustomRole
	err := database.WithOrgConnection(r.Context(), h.pool, orgID, func(ctx context.Context, q database.Querier) error {
		var listErr error
		roles, listErr = h.store.List(ctx, q, orgID)
		return listErr
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "listing roles failed"})
		return
	}
	if roles == nil {
		roles = []CustomRole{}
	}

	writeJSON(w, http.StatusOK, roles)
}

// HandleCreate creates a custom role.
// POST /api/v1/roles
func (h *RoleHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	orgID := actorOrgID(r.Context())
	if orgID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "organization context required"})
		return
	}
	name, perms, ok := decodeCustomRole(w, r)
	if !ok {
		return
	}

	var role *CustomRole
	err := database.WithOrgConnection(r.Context(), h.pool, orgID, func(ctx context.Context, q database.Querier) error {
		var createErr error
		role, createErr = h.store.Create(ctx, q, orgID, name, perms)
		return createErr
	})
	if err != nil {
		writeRoleError(w, err, "role creation failed")
		return
	}

	h.audit.Log(r.Context(), event(r.Context(), audit.ActionCustomRoleCreated, audit.ResourceCustomRole, role.ID, map[string]any{
		"name":        role.Name,
		"permissions": rbac.Strings(role.Permissions),
	}))

	writeJSON(w, http.StatusCreated, role)
}

// HandleUpdate replaces a custom role's name and permissions.
// PUT /api/v1/roles/{id}
func (h *RoleHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	orgID, roleID, ok := rolePath(w, r)
	if !ok {
		return
	}
	name, perms, ok := decodeCustomRole(w, r)
	if !ok {
		return
	}

	var role *CustomRole
	err := database.WithOrgConnection(r.Context(), h.pool, orgID, func(ctx context.Context, q database.Querier) error {
		var updateErr error
		role, updateErr = h.store.Update(ctx, q, orgID, roleID, name, perms)
		return updateErr
	})
	if err != nil {
		writeRoleError(w, err, "role update failed")
		return
	}
	h.invalidate(orgID, roleID)

	h.audit.Log(r.Context(), event(r.Context(), audit.ActionCustomRoleUpdated, audit.ResourceCustomRole, role.ID, map[string]any{
		"name":        role.Name,
		"permissions": rbac.Strings(role.Permissions),
	}))

	writeJSON(w, http.StatusOK, role)
}

// HandleDelete deletes a custom role that no active member holds.
// DELETE /api/v1/roles/{id}
func (h *RoleHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	orgID, roleID, ok := rolePath(w, r)
	if !ok {
		return
	}

	err := database.WithOrgTx(r.Context(), h.pool, orgID, func(ctx context.Context, q database.Querier) error {
		return h.store.Delete(ctx, q, orgID, roleID)
	})
	if err != nil {
		writeRoleError(w, err, "role deletion failed")
		return
	}
	h.invalidate(orgID, roleID)

	h.audit.Log(r.Context(), event(r.Context(), audit.ActionCustomRoleDeleted, audit.ResourceCustomRole, roleID, nil))

	w.WriteHeader(http.StatusNoContent)
}

func (h *RoleHandler) invalidate(orgID, roleID string) {
	if h.invalidator != nil {
		h.invalidator.InvalidateCustomRole(orgID, roleID)
	}
}

func rolePath(w http.ResponseWriter, r *http.Request) (orgID, roleID string, ok bool) {
	orgID = actorOrgID(r.Context())
	if orgID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "organization context required"})
		return "", "", false
	}
	roleID = r.PathValue("id")
	if !isUUID(roleID) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": ErrCustomRoleNotFound.Error()})
		return "", "", false
	}
	return orgID, roleID, true
}

func writeRoleError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrCustomRoleNameEmpty), errors.Is(err, rbac.ErrUnknownPermission):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrCustomRoleNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrCustomRoleDuplicate), errors.Is(err, ErrCustomRoleInUse):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": fallback})
	}
}
