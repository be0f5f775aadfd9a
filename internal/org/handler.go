package org

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/mass-workshop/mass/internal/audit"
	"github.com/mass-workshop/mass/internal/auth"
	"github.com/mass-workshop/mass/internal/rbac"
)

const maxBodyBytes = 10 << 10

// Handler handles organization signup and lookup.
type Handler struct {
	store *Store
	audit audit.Logger
}

// NewHandler creates a new organization handler.
func NewHandler(store *Store, auditLog audit.Logger) *Handler {
	if auditLog == nil {
		auditLog = audit.NopLogger{}
	}
	return &Handler{store: store, audit: auditLog}
}

// HandleCreate creates an organization and makes the caller its admin.
// It only needs an authenticated identity: the caller has no assignment yet.
// POST /api/v1/organizations
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	identity := auth.GetIdentity(r.Context())
	if identity == nil || identity.Email == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	var req struct {
		Name        string `json:"name"`
		Slug        string `json:"slug"`
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" || req.Slug == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name and slug are required"})
		return
	}
	if err := ValidateSlug(req.Slug); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	displayName := req.DisplayName
	if displayName == "" {
		displayName = identity.DisplayName
	}

	o, owner, err := h.store.Bootstrap(r.Context(), req.Name, req.Slug, identity.Email, displayName)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidSlug), errors.Is(err, ErrNameRequired), errors.Is(err, ErrEmailInvalid):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, ErrSlugTaken):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "organization creation failed"})
		}
		return
	}

	orgID := uuid.MustParse(o.ID)
	ownerID := uuid.MustParse(owner.UserID)
	h.audit.Log(r.Context(), audit.Event{
		OrgID:        orgID,
		UserID:       &ownerID,
		Action:       audit.ActionOrganizationCreated,
		ResourceType: audit.ResourceOrganization,
		ResourceID:   &orgID,
		Metadata:     map[string]any{"slug": o.Slug},
		Source:       audit.SourceAPI,
	})

	writeJSON(w, http.StatusCreated, map[string]any{
		"organization": o,
		"membership":   owner,
	})
}

// HandleGet returns the caller's organization.
// GET /api/v1/organization
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	orgID := actorOrgID(r.Context())
	if orgID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "organization context required"})
		return
	}

	o, err := h.store.GetByID(r.Context(), orgID)
	if err != nil {
		if errors.Is(err, ErrOrganizationNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "fetching organization failed"})
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// actorOrgID returns the organization the guard resolved for this request.
func actorOrgID(ctx context.Context) string {
	if actor := rbac.ActorFromContext(ctx); actor != nil {
		return actor.OrgID
	}
	return ""
}

// event fills in the acting user and organization from ctx.
func event(ctx context.Context, action, resourceType string, resourceID string, metadata map[string]any) audit.Event {
	e := audit.Event{
		OrgID:        audit.OrgIDFromContext(ctx),
		UserID:       audit.ActorIDFromContext(ctx),
		Action:       action,
		ResourceType: resourceType,
		Metadata:     metadata,
		Source:       audit.SourceAPI,
	}
	if id, err := uuid.Parse(resourceID); err == nil {
		e.ResourceID = &id
	}
	return e
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
