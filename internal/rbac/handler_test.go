package rbac_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mass-workshop/mass/internal/rbac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleSnapshot(t *testing.T) {
	actor := &rbac.Actor{
		UserID: "u1",
		OrgID:  "org-1",
		Role:   rbac.BuiltinRole(rbac.RoleTechnician),
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/permissions", nil)
	req = req.WithContext(rbac.WithActor(req.Context(), actor))
	w := httptest.NewRecorder()

	rbac.HandleSnapshot(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var snap rbac.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, rbac.RoleTechnician, snap.Role)
	assert.Equal(t, rbac.DefaultPermissions(rbac.RoleTechnician), snap.Effective)
	assert.Empty(t, snap.Grants)
}

func TestHandleSnapshot_NoActor(t *testing.T) {
	w := httptest.NewRecorder()
	rbac.HandleSnapshot(w, httptest.NewRequest(http.MethodGet, "/api/v1/me/permissions", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandleCatalog(t *testing.T) {
	w := httptest.NewRecorder()
	rbac.HandleCatalog(w, httptest.NewRequest(http.MethodGet, "/api/v1/permissions", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Permissions map[string][]string `json:"permissions"`
		Roles       map[string][]string `json:"roles"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []string{"inventory.view", "inventory.manage"}, body.Permissions["inventory"])
	assert.Len(t, body.Roles["admin"], 17)
	assert.NotContains(t, body.Roles, "custom")
}
