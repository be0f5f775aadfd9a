package rbac

// Snapshot is what a client receives to decide which controls to show.
// Grants holds the explicit permissions beyond the role default, already
// merged with the custom role definition.
type Snapshot struct {
	UserID       string       `json:"user_id"`
	OrgID        string       `json:"org_id"`
	Role         RoleName     `json:"role"`
	CustomRoleID string       `json:"custom_role_id,omitempty"`
	Grants       []Permission `json:"grants"`
	Effective    []Permission `json:"effective"`
}

// NewSnapshot captures the actor's permissions for client-side use.
func NewSnapshot(actor *Actor) *Snapshot {
	if actor == nil {
		return nil
	}
	s := &Snapshot{
		UserID:       actor.UserID,
		OrgID:        actor.OrgID,
		Role:         actor.Role.Name,
		CustomRoleID: actor.Role.CustomRoleID,
		Grants:       actor.Grants(),
		Effective:    actor.Effective(),
	}
	if s.Grants == nil {
		s.Grants = []Permission{}
	}
	if s.Effective == nil {
		s.Effective = []Permission{}
	}
	return s
}

// Visibility is the three-way outcome of an affordance check.
type Visibility int

const (
	// VisibilityPending means permission data is still loading; render nothing.
	VisibilityPending Visibility = iota
	// VisibilityGranted means render the guarded content.
	VisibilityGranted
	// VisibilityFallback means render the fallback, which defaults to nothing.
	VisibilityFallback
)

func (v Visibility) String() string {
	switch v {
	case VisibilityPending:
		return "pending"
	case VisibilityGranted:
		return "granted"
	case VisibilityFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Affordance decides how a permission-gated control renders. It is advisory
// only: the server guard is the binding check. A nil snapshot means the data
// has not loaded yet.
func Affordance(s *Snapshot, permission Permission) Visibility {
	if s == nil {
		return VisibilityPending
	}
	if HasPermission(s.Role, s.Grants, permission) {
		return VisibilityGranted
	}
	return VisibilityFallback
}
