package org_test

import (
	"context"
	"testing"
	"time"

	"github.com/mass-workshop/mass/internal/auth"
	"github.com/mass-workshop/mass/internal/org"
	"github.com/mass-workshop/mass/internal/platform/database"
	"github.com/mass-workshop/mass/internal/rbac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identityCtx(email, orgID string) context.Context {
	return auth.WithIdentity(context.Background(), &auth.Identity{Email: email, OrgID: orgID})
}

func TestDirectory_GuardEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	pool := setupTestDB(t)
	ctx := context.Background()

	orgA, _ := seedOrg(t, pool, "shop-a", "owner@a.com")
	orgB, _ := seedOrg(t, pool, "shop-b", "owner@b.com")

	var writer *org.CustomRole
	require.NoError(t, database.WithOrgConnection(ctx, pool, orgA, func(ctx context.Context, q database.Querier) error {
		var err error
		writer, err = org.NewCustomRoleStore().Create(ctx, q, orgA, "Service Writer", []rbac.Permission{rbac.EstimatesCreate})
		return err
	}))
	addMember(t, pool, orgA, "tech@a.com", rbac.RoleTechnician, "", rbac.InventoryManage)
	addMember(t, pool, orgA, "desk@a.com", rbac.RoleCustom, writer.ID, rbac.CustomersView)

	dir := org.NewDirectory(pool)
	guard := rbac.NewGuard(dir, dir, dir)

	t.Run("admin has everything", func(t *testing.T) {
		actor, err := guard.RequirePermission(identityCtx("owner@a.com", orgA), rbac.UsersManage)
		require.NoError(t, err)
		assert.Equal(t, rbac.RoleAdmin, actor.Role.Name)
	})

	t.Run("technician default and override", func(t *testing.T) {
		_, err := guard.RequirePermission(identityCtx("tech@a.com", orgA), rbac.WorkOrdersView)
		require.NoError(t, err)
		_, err = guard.RequirePermission(identityCtx("TECH@a.com", orgA), rbac.InventoryManage)
		require.NoError(t, err)
		_, err = guard.RequirePermission(identityCtx("tech@a.com", orgA), rbac.PaymentsProcess)
		assert.ErrorIs(t, err, rbac.ErrPermissionDenied)
	})

	t.Run("custom role merges definition and overrides", func(t *testing.T) {
		actor, err := guard.ResolveActor(identityCtx("desk@a.com", orgA))
		require.NoError(t, err)
		assert.True(t, actor.Can(rbac.EstimatesCreate))
		assert.True(t, actor.Can(rbac.CustomersView))
		assert.False(t, actor.Can(rbac.InvoicesView))
	})

	t.Run("member of another organization", func(t *testing.T) {
		_, err := guard.ResolveActor(identityCtx("tech@a.com", orgB))
		assert.ErrorIs(t, err, rbac.ErrUnauthorized)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := guard.ResolveActor(identityCtx("ghost@a.com", orgA))
		assert.ErrorIs(t, err, rbac.ErrUnauthorized)
	})

	t.Run("malformed organization", func(t *testing.T) {
		_, err := guard.ResolveActor(identityCtx("tech@a.com", "shop-a"))
		assert.ErrorIs(t, err, rbac.ErrUnauthorized)
	})

	t.Run("custom role is not visible across organizations", func(t *testing.T) {
		_, err := dir.CustomRoleByID(ctx, orgB, writer.ID)
		assert.ErrorIs(t, err, rbac.ErrNotFound)
	})
}

func TestDirectory_CachedCustomRoleInvalidation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	pool := setupTestDB(t)
	ctx := context.Background()

	orgID, _ := seedOrg(t, pool, "shop-c", "owner@c.com")
	roles := org.NewCustomRoleStore()

	var writer *org.CustomRole
	require.NoError(t, database.WithOrgConnection(ctx, pool, orgID, func(ctx context.Context, q database.Querier) error {
		var err error
		writer, err = roles.Create(ctx, q, orgID, "Writer", []rbac.Permission{rbac.EstimatesView})
		return err
	}))
	addMember(t, pool, orgID, "desk@c.com", rbac.RoleCustom, writer.ID)

	dir := org.NewDirectory(pool)
	guard := rbac.NewGuard(dir, dir, dir, rbac.WithCustomRoleCache(time.Hour))
	deskCtx := identityCtx("desk@c.com", orgID)

	_, err := guard.RequirePermission(deskCtx, rbac.EstimatesView)
	require.NoError(t, err)

	require.NoError(t, database.WithOrgConnection(ctx, pool, orgID, func(ctx context.Context, q database.Querier) error {
		_, err := roles.Update(ctx, q, orgID, writer.ID, "Writer", []rbac.Permission{rbac.InvoicesView})
		return err
	}))

	// Still served from cache until invalidated.
	_, err = guard.RequirePermission(deskCtx, rbac.EstimatesView)
	require.NoError(t, err)

	guard.InvalidateCustomRole(orgID, writer.ID)

	_, err = guard.RequirePermission(deskCtx, rbac.EstimatesView)
	assert.ErrorIs(t, err, rbac.ErrPermissionDenied)
	_, err = guard.RequirePermission(deskCtx, rbac.InvoicesView)
	assert.NoError(t, err)
}

func TestDirectory_DeactivatedUser(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	pool := setupTestDB(t)
	ctx := context.Background()

	orgID, _ := seedOrg(t, pool, "shop-d", "owner@d.com")
	techID := addMember(t, pool, orgID, "tech@d.com", rbac.RoleTechnician, "")

	dir := org.NewDirectory(pool)
	guard := rbac.NewGuard(dir, dir, dir)

	_, err := guard.ResolveActor(identityCtx("tech@d.com", orgID))
	require.NoError(t, err)

	require.NoError(t, org.NewUserStore().Deactivate(ctx, pool, techID))

	_, err = guard.ResolveActor(identityCtx("tech@d.com", orgID))
	assert.ErrorIs(t, err, rbac.ErrUnauthorized)
}
