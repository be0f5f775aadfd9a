package org_test

import (
	"context"
	"net/url"
	"testing"

	"github.com/mass-workshop/mass/internal/platform/database"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB starts Postgres, applies migrations as the owner and returns a
// pool for an unprivileged role so row-level security is enforced.
func setupTestDB(t *testing.T) *database.Pool {
	t.Helper()
	app, _ := setupTestDBWithOwner(t)
	return app
}

// setupTestDBWithOwner is setupTestDB that also returns a pool connected as
// the migration owner, which row-level security does not apply to.
func setupTestDBWithOwner(t *testing.T) (app, owner *database.Pool) {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("mass_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, database.RunMigrations(connStr, "file://../../migrations"))

	owner, err = database.Connect(ctx, connStr, 2)
	require.NoError(t, err)
	t.Cleanup(owner.Close)
	_, err = owner.Exec(ctx, `
		CREATE ROLE mass_app LOGIN PASSWORD 'mass_app';
		GRANT USAGE ON SCHEMA public TO mass_app;
		GRANT SELECT, INSERT, UPDATE, DELETE ON ALL TABLES IN SCHEMA public TO mass_app;
	`)
	require.NoError(t, err)

	u, err := url.Parse(connStr)
	require.NoError(t, err)
	u.User = url.UserPassword("mass_app", "mass_app")

	app, err = database.Connect(ctx, u.String(), 5)
	require.NoError(t, err)
	t.Cleanup(app.Close)

	return app, owner
}
