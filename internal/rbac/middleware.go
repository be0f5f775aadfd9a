package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
)

// AuditLogger is the audit interface for RBAC denial logging.
type AuditLogger interface {
	Log(ctx context.Context, event AuditEvent)
}

// AuditEvent captures an auditable authorization outcome.
type AuditEvent struct {
	OrgID    uuid.UUID
	UserID   *uuid.UUID
	Action   string
	Metadata map[string]any
	Source   string
}

const ActionAccessDenied = "access.denied"

// MiddlewareOption configures RBAC middleware behavior.
type MiddlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	audit AuditLogger
}

// WithAuditLogger attaches an audit logger to log RBAC denials.
func WithAuditLogger(logger AuditLogger) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.audit = logger
	}
}

// Require returns middleware that lets the request through only when the
// authenticated actor holds permission. The resolved actor is available to
// the next handler via ActorFromContext.
func (g *Guard) Require(permission Permission, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	return g.middleware(permission, opts)
}

// Authenticated returns middleware that resolves the actor without checking
// a specific permission.
func (g *Guard) Authenticated(opts ...MiddlewareOption) func(http.Handler) http.Handler {
	return g.middleware("", opts)
}

func (g *Guard) middleware(permission Permission, opts []MiddlewareOption) func(http.Handler) http.Handler {
	var mc middlewareConfig
	for _, opt := range opts {
		opt(&mc)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var (
				actor *Actor
				err   error
			)
			if permission == "" {
				actor, err = g.ResolveActor(r.Context())
			} else {
				actor, err = g.RequirePermission(r.Context(), permission)
			}

			switch {
			case err == nil:
				next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
			case errors.Is(err, ErrPermissionDenied):
				if mc.audit != nil {
					mc.audit.Log(r.Context(), deniedEvent(actor, permission))
				}
				writeJSON(w, http.StatusForbidden, map[string]string{
					"error":      "forbidden",
					"reason":     err.Error(),
					"permission": string(permission),
				})
			default:
				writeJSON(w, http.StatusUnauthorized, map[string]string{
					"error": "authentication required",
				})
			}
		})
	}
}

func deniedEvent(actor *Actor, permission Permission) AuditEvent {
	evt := AuditEvent{
		Action: ActionAccessDenied,
		Metadata: map[string]any{
			"permission": string(permission),
		},
		Source: "api",
	}
	if actor == nil {
		return evt
	}
	evt.Metadata["role"] = actor.Role.String()
	if oid, err := uuid.Parse(actor.OrgID); err == nil {
		evt.OrgID = oid
	}
	if uid, err := uuid.Parse(actor.UserID); err == nil {
		evt.UserID = &uid
	}
	return evt
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
