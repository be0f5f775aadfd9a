package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mass-workshop/mass/internal/auth"
)

// ErrNotFound is returned by lookups when the requested record does not exist.
var ErrNotFound = errors.New("not found")

// UserRecord is the subset of a user the guard needs.
type UserRecord struct {
	ID     string
	Email  string
	Active bool
}

// AssignmentRecord is a user's role within one organization.
type AssignmentRecord struct {
	UserID      string
	OrgID       string
	Role        Role
	Permissions []Permission
	Active      bool
}

// CustomRoleRecord is a named, organization-scoped permission list.
type CustomRoleRecord struct {
	ID          string
	OrgID       string
	Name        string
	Permissions []Permission
}

// UserLookup resolves a verified identity to a user record.
type UserLookup interface {
	UserByEmail(ctx context.Context, email string) (*UserRecord, error)
}

// AssignmentLookup resolves a user's role assignment in an organization.
type AssignmentLookup interface {
	AssignmentFor(ctx context.Context, userID, orgID string) (*AssignmentRecord, error)
}

// CustomRoleLookup resolves a custom role definition by reference.
type CustomRoleLookup interface {
	CustomRoleByID(ctx context.Context, orgID, id string) (*CustomRoleRecord, error)
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithLogger sets the logger used for denials and lookup failures.
func WithLogger(logger *slog.Logger) GuardOption {
	return func(g *Guard) {
		g.logger = logger
	}
}

// WithCustomRoleCache caches custom role definitions for ttl. A zero or
// negative ttl leaves lookups uncached.
func WithCustomRoleCache(ttl time.Duration) GuardOption {
	return func(g *Guard) {
		g.cacheTTL = ttl
	}
}

// Guard enforces permissions on privileged server operations. It performs
// only read lookups and holds no per-request state.
type Guard struct {
	users       UserLookup
	assignments AssignmentLookup
	customRoles CustomRoleLookup
	cache       *customRoleCache
	cacheTTL    time.Duration
	logger      *slog.Logger
}

func NewGuard(users UserLookup, assignments AssignmentLookup, customRoles CustomRoleLookup, opts ...GuardOption) *Guard {
	g := &Guard{
		users:       users,
		assignments: assignments,
		customRoles: customRoles,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.cacheTTL > 0 && customRoles != nil {
		g.cache = newCustomRoleCache(customRoles, g.cacheTTL)
		g.customRoles = g.cache
	}
	return g
}

// InvalidateCustomRole drops a cached custom role definition. It is a no-op
// when caching is disabled.
func (g *Guard) InvalidateCustomRole(orgID, id string) {
	if g.cache != nil {
		g.cache.invalidate(orgID, id)
	}
}

// ResolveActor turns the request's authenticated identity into an Actor.
// Every failure, including store errors, is reported as ErrUnauthorized.
func (g *Guard) ResolveActor(ctx context.Context) (*Actor, error) {
	identity := auth.GetIdentity(ctx)
	if identity == nil || strings.TrimSpace(identity.Email) == "" {
		return nil, fmt.Errorf("%w: please login first", ErrUnauthorized)
	}

	user, err := g.users.UserByEmail(ctx, identity.Email)
	if err == nil && user == nil {
		err = ErrNotFound
	}
	if err != nil {
		return nil, g.lookupFailure(ctx, "user", err)
	}
	if !user.Active {
		return nil, fmt.Errorf("%w: user not found", ErrUnauthorized)
	}

	if identity.OrgID == "" {
		return nil, fmt.Errorf("%w: no organization scope", ErrUnauthorized)
	}

	assignment, err := g.assignments.AssignmentFor(ctx, user.ID, identity.OrgID)
	if err == nil && assignment == nil {
		err = ErrNotFound
	}
	if err != nil {
		return nil, g.lookupFailure(ctx, "role assignment", err)
	}
	if !assignment.Active {
		return nil, fmt.Errorf("%w: no role assigned", ErrUnauthorized)
	}

	actor := &Actor{
		UserID:            user.ID,
		OrgID:             identity.OrgID,
		Email:             user.Email,
		Role:              assignment.Role,
		CustomPermissions: assignment.Permissions,
	}

	if assignment.Role.IsCustom() && assignment.Role.CustomRoleID != "" && g.customRoles != nil {
		def, err := g.customRoles.CustomRoleByID(ctx, identity.OrgID, assignment.Role.CustomRoleID)
		switch {
		case errors.Is(err, ErrNotFound):
			// dangling reference: the actor keeps its overrides only
		case err != nil:
			return nil, g.lookupFailure(ctx, "custom role", err)
		case def != nil:
			actor.CustomRolePermissions = def.Permissions
		}
	}

	return actor, nil
}

// RequirePermission resolves the actor and checks it holds permission. It
// must run before the guarded operation mutates anything.
func (g *Guard) RequirePermission(ctx context.Context, permission Permission) (*Actor, error) {
	actor, err := g.ResolveActor(ctx)
	if err != nil {
		return nil, err
	}
	if !actor.Can(permission) {
		g.logger.WarnContext(ctx, "permission denied",
			"permission", string(permission),
			"user_id", actor.UserID,
			"org_id", actor.OrgID,
			"role", actor.Role.String(),
		)
		return actor, &PermissionDeniedError{Permission: permission}
	}
	return actor, nil
}

func (g *Guard) lookupFailure(ctx context.Context, what string, err error) error {
	if errors.Is(err, ErrNotFound) {
		if what == "role assignment" {
			return fmt.Errorf("%w: no role assigned", ErrUnauthorized)
		}
		return fmt.Errorf("%w: %s not found", ErrUnauthorized, what)
	}
	g.logger.WarnContext(ctx, "authorization lookup failed", "lookup", what, "error", err)
	return fmt.Errorf("%w: looking up %s: %w", ErrUnauthorized, what, err)
}

type actorContextKey struct{}

// WithActor stores a resolved actor in ctx.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the actor placed by the guard middleware, or nil.
func ActorFromContext(ctx context.Context) *Actor {
	actor, _ := ctx.Value(actorContextKey{}).(*Actor)
	return actor
}
