package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mass-workshop/mass/internal/platform/database"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Handler serves audit query endpoints.
type Handler struct {
	pool  *pgxpool.Pool
	store *Store
}

// NewHandler creates an audit query handler.
func NewHandler(pool *pgxpool.Pool, store *Store) *Handler {
	if store == nil {
		store = NewStore()
	}
	return &Handler{pool: pool, store: store}
}

// HandleListEvents returns audit events for the caller's organization.
// GET /api/v1/audit/events?limit=50&action=&resource_type=&user_id=&source=&after=&before=
func (h *Handler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	orgID := OrgIDFromContext(r.Context())
	if orgID == uuid.Nil {
		writeAuditJSON(w, http.StatusBadRequest, map[string]string{"error": "organization context required"})
		return
	}

	params, err := parseListParams(r)
	if err != nil {
		writeAuditJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	params.OrgID = orgID

	if h.pool == nil {
		writeAuditJSON(w, http.StatusOK, map[string]any{"events": []Record{}, "count": 0})
		return
	}

	var records []Record
	err = database.WithOrgConnection(r.Context(), h.pool, orgID.String(), func(ctx context.Context, q database.Querier) error {
		var listErr error
		records, listErr = h.store.List(ctx, q, params)
		return listErr
	})
	if err != nil {
		writeAuditJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
		return
	}
	if records == nil {
		records = []Record{}
	}

	writeAuditJSON(w, http.StatusOK, map[string]any{"events": records, "count": len(records)})
}

type paramError string

func (e paramError) Error() string { return string(e) }

func parseListParams(r *http.Request) (ListEventsParams, error) {
	q := r.URL.Query()
	p := ListEventsParams{Limit: defaultListLimit}

	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= maxListLimit {
			p.Limit = n
		}
	}
	if v := q.Get("action"); v != "" {
		p.Action = &v
	}
	if v := q.Get("resource_type"); v != "" {
		p.ResourceType = &v
	}
	if v := q.Get("source"); v != "" {
		p.Source = &v
	}
	if raw := q.Get("user_id"); raw != "" {
		uid, err := uuid.Parse(raw)
		if err != nil {
			return p, paramError("invalid user_id")
		}
		p.UserID = &uid
	}
	for name, dst := range map[string]**time.Time{"after": &p.After, "before": &p.Before} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return p, paramError("invalid " + name + " timestamp, expected RFC 3339")
		}
		*dst = &ts
	}
	return p, nil
}

func writeAuditJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
