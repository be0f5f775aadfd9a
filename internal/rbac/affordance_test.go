package rbac_test

import (
	"testing"

	"github.com/mass-workshop/mass/internal/rbac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAffordance_PendingWhileLoading(t *testing.T) {
	for _, p := range rbac.AllPermissions() {
		assert.Equal(t, rbac.VisibilityPending, rbac.Affordance(nil, p))
	}
}

func TestAffordance_MatchesEvaluator(t *testing.T) {
	snap := rbac.NewSnapshot(&rbac.Actor{
		UserID:            "u1",
		OrgID:             "org-1",
		Role:              rbac.BuiltinRole(rbac.RoleStaff),
		CustomPermissions: []rbac.Permission{rbac.SettingsManage},
	})
	require.NotNil(t, snap)

	assert.Equal(t, rbac.VisibilityGranted, rbac.Affordance(snap, rbac.SettingsManage))
	assert.Equal(t, rbac.VisibilityGranted, rbac.Affordance(snap, rbac.WorkOrdersCreate))
	assert.Equal(t, rbac.VisibilityFallback, rbac.Affordance(snap, rbac.UsersManage))
}

func TestAffordance_CustomRoleUsesMergedGrants(t *testing.T) {
	actor := &rbac.Actor{
		Role:                  rbac.CustomRole("r1"),
		CustomRolePermissions: []rbac.Permission{rbac.InventoryManage},
	}
	snap := rbac.NewSnapshot(actor)

	for _, p := range rbac.AllPermissions() {
		want := rbac.VisibilityFallback
		if actor.Can(p) {
			want = rbac.VisibilityGranted
		}
		assert.Equal(t, want, rbac.Affordance(snap, p), p)
	}
}

func TestNewSnapshot(t *testing.T) {
	assert.Nil(t, rbac.NewSnapshot(nil))

	snap := rbac.NewSnapshot(&rbac.Actor{UserID: "u1", OrgID: "o1", Role: rbac.CustomRole("")})
	assert.Equal(t, rbac.RoleCustom, snap.Role)
	assert.NotNil(t, snap.Grants)
	assert.NotNil(t, snap.Effective)
	assert.Empty(t, snap.Effective)
}

func TestVisibility_String(t *testing.T) {
	assert.Equal(t, "pending", rbac.VisibilityPending.String())
	assert.Equal(t, "granted", rbac.VisibilityGranted.String())
	assert.Equal(t, "fallback", rbac.VisibilityFallback.String())
}
