package rbac_test

import (
	"testing"

	"github.com/mass-workshop/mass/internal/rbac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_AllValid(t *testing.T) {
	all := rbac.AllPermissions()
	assert.Len(t, all, 17)
	for _, p := range all {
		assert.True(t, p.Valid(), p)
		assert.NotEmpty(t, p.Resource())
		assert.NotEmpty(t, p.Action())
	}
}

func TestCatalog_ReturnsCopy(t *testing.T) {
	all := rbac.AllPermissions()
	all[0] = "tampered.value"
	assert.Equal(t, rbac.WorkOrdersView, rbac.AllPermissions()[0])
}

func TestPermission_ResourceAndAction(t *testing.T) {
	assert.Equal(t, "inventory", rbac.InventoryManage.Resource())
	assert.Equal(t, "manage", rbac.InventoryManage.Action())
	assert.Equal(t, "work_orders", rbac.WorkOrdersDelete.Resource())
}

func TestPermissionsByResource(t *testing.T) {
	groups := rbac.PermissionsByResource()
	assert.Equal(t, []rbac.Permission{rbac.InventoryView, rbac.InventoryManage}, groups["inventory"])
	assert.Equal(t, []rbac.Permission{rbac.SettingsView, rbac.SettingsManage}, groups["settings"])
	assert.Equal(t, []rbac.Permission{rbac.UsersManage}, groups["users"])

	total := 0
	for _, perms := range groups {
		total += len(perms)
	}
	assert.Equal(t, len(rbac.AllPermissions()), total)
}

func TestParsePermission(t *testing.T) {
	p, err := rbac.ParsePermission("inventory.manage")
	require.NoError(t, err)
	assert.Equal(t, rbac.InventoryManage, p)

	_, err = rbac.ParsePermission("inventory.destroy")
	assert.ErrorIs(t, err, rbac.ErrUnknownPermission)

	_, err = rbac.ParsePermission("*")
	assert.ErrorIs(t, err, rbac.ErrUnknownPermission)
}

func TestParsePermissions_DedupesAndRejects(t *testing.T) {
	perms, err := rbac.ParsePermissions([]string{"settings.view", "users.manage", "settings.view"})
	require.NoError(t, err)
	assert.Equal(t, []rbac.Permission{rbac.SettingsView, rbac.UsersManage}, perms)

	empty, err := rbac.ParsePermissions(nil)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = rbac.ParsePermissions([]string{"settings.view", "bogus"})
	assert.ErrorIs(t, err, rbac.ErrUnknownPermission)
}

func TestParseRoleName(t *testing.T) {
	for _, s := range []string{"admin", "staff", "technician", "custom"} {
		r, err := rbac.ParseRoleName(s)
		require.NoError(t, err)
		assert.Equal(t, rbac.RoleName(s), r)
	}

	_, err := rbac.ParseRoleName("customer")
	assert.ErrorIs(t, err, rbac.ErrUnknownRole)
}

func TestRole_Variants(t *testing.T) {
	admin := rbac.BuiltinRole(rbac.RoleAdmin)
	assert.True(t, admin.IsBuiltin())
	assert.False(t, admin.IsCustom())
	assert.Equal(t, "admin", admin.String())

	custom := rbac.CustomRole("role-1")
	assert.True(t, custom.IsCustom())
	assert.False(t, custom.IsBuiltin())
	assert.Equal(t, "custom:role-1", custom.String())
}

func TestDefaultPermissions(t *testing.T) {
	assert.ElementsMatch(t, rbac.AllPermissions(), rbac.DefaultPermissions(rbac.RoleAdmin))
	assert.Len(t, rbac.DefaultPermissions(rbac.RoleStaff), 10)
	assert.ElementsMatch(t, []rbac.Permission{
		rbac.WorkOrdersView, rbac.WorkOrdersEdit, rbac.InventoryView, rbac.CustomersView,
	}, rbac.DefaultPermissions(rbac.RoleTechnician))
	assert.Nil(t, rbac.DefaultPermissions(rbac.RoleCustom))
}

func TestDefaultPermissions_ReturnsCopy(t *testing.T) {
	perms := rbac.DefaultPermissions(rbac.RoleTechnician)
	perms[0] = rbac.SettingsManage

	assert.False(t, rbac.HasPermission(rbac.RoleTechnician, nil, rbac.SettingsManage))
	assert.Equal(t, rbac.WorkOrdersView, rbac.DefaultPermissions(rbac.RoleTechnician)[0])
}

func TestDefaultRoles_Nested(t *testing.T) {
	admin := rbac.DefaultPermissions(rbac.RoleAdmin)
	staff := rbac.DefaultPermissions(rbac.RoleStaff)
	for _, p := range staff {
		assert.Contains(t, admin, p)
	}
	for _, p := range rbac.DefaultPermissions(rbac.RoleTechnician) {
		assert.Contains(t, staff, p)
	}
}
