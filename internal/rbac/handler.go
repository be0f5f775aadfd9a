package rbac

import "net/http"

// HandleSnapshot returns the calling actor's permission snapshot.
// GET /api/v1/me/permissions
func HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	actor := ActorFromContext(r.Context())
	if actor == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}
	writeJSON(w, http.StatusOK, NewSnapshot(actor))
}

// HandleCatalog returns the permission catalog grouped by resource area and
// the default grant table of the built-in roles.
// GET /api/v1/permissions
func HandleCatalog(w http.ResponseWriter, r *http.Request) {
	defaults := make(map[RoleName][]Permission, len(defaultRoles))
	for _, name := range BuiltinRoles() {
		defaults[name] = DefaultPermissions(name)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"permissions": PermissionsByResource(),
		"roles":       defaults,
	})
}
