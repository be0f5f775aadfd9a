package audit

import (
	"context"

	"github.com/google/uuid"
	"github.com/mass-workshop/mass/internal/rbac"
)

// Event represents a single auditable action in the system.
type Event struct {
	OrgID        uuid.UUID
	UserID       *uuid.UUID // nil for system events
	Action       string     // e.g. "member.added", "access.denied"
	ResourceType string     // e.g. "member", "custom_role"
	ResourceID   *uuid.UUID
	Metadata     map[string]any
	Source       string // "api", "system"
}

const (
	ActionOrganizationCreated      = "organization.created"
	ActionMemberAdded              = "member.added"
	ActionMemberRoleChanged        = "member.role_changed"
	ActionMemberPermissionsChanged = "member.permissions_changed"
	ActionMemberRemoved            = "member.removed"
	ActionCustomRoleCreated        = "custom_role.created"
	ActionCustomRoleUpdated        = "custom_role.updated"
	ActionCustomRoleDeleted        = "custom_role.deleted"
	ActionAccessDenied             = rbac.ActionAccessDenied
)

const (
	ResourceOrganization = "organization"
	ResourceMember       = "member"
	ResourceCustomRole   = "custom_role"
)

const (
	SourceAPI    = "api"
	SourceSystem = "system"
)

// Logger is the audit logging interface. Log is fire-and-forget.
type Logger interface {
	Log(ctx context.Context, event Event)
	Close() error
}

// NopLogger is a no-op audit logger for testing and when audit is disabled.
type NopLogger struct{}

func (NopLogger) Log(context.Context, Event) {}
func (NopLogger) Close() error               { return nil }

// ActorIDFromContext returns the UUID of the actor the guard resolved for
// this request, or nil when there is none.
func ActorIDFromContext(ctx context.Context) *uuid.UUID {
	actor := rbac.ActorFromContext(ctx)
	if actor == nil {
		return nil
	}
	uid, err := uuid.Parse(actor.UserID)
	if err != nil {
		return nil
	}
	return &uid
}

// OrgIDFromContext returns the organization of the resolved actor, or
// uuid.Nil when there is none.
func OrgIDFromContext(ctx context.Context) uuid.UUID {
	actor := rbac.ActorFromContext(ctx)
	if actor == nil {
		return uuid.Nil
	}
	oid, err := uuid.Parse(actor.OrgID)
	if err != nil {
		return uuid.Nil
	}
	return oid
}

// RBACAdapter lets the rbac middleware write denials to an audit Logger.
type RBACAdapter struct {
	Logger Logger
}

func (a RBACAdapter) Log(ctx context.Context, e rbac.AuditEvent) {
	a.Logger.Log(ctx, Event{
		OrgID:    e.OrgID,
		UserID:   e.UserID,
		Action:   e.Action,
		Metadata: e.Metadata,
		Source:   e.Source,
	})
}
