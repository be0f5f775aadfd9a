package database

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ApplicationName is reported to Postgres when the URL does not set one.
const ApplicationName = "mass"

const pingTimeout = 5 * time.Second

// Pool is a type alias for pgxpool.Pool for use in other packages.
type Pool = pgxpool.Pool

// Connect opens a pool for databaseURL and pings it. maxConns <= 0 keeps
// the pgx default.
func Connect(ctx context.Context, databaseURL string, maxConns int) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	if maxConns > 0 && maxConns <= math.MaxInt32 {
		config.MaxConns = int32(maxConns) // #nosec G115 -- bounds checked above
	}
	if config.ConnConfig.RuntimeParams["application_name"] == "" {
		config.ConnConfig.RuntimeParams["application_name"] = ApplicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// BypassesRLS reports whether the pool's login role skips the org_isolation
// policies: a superuser, a BYPASSRLS role, or the owner of the tenant
// tables. Before migrations have run it reports false.
func BypassesRLS(ctx context.Context, q Querier) (bool, error) {
	var bypass bool
	err := q.QueryRow(ctx,
		`SELECT r.rolsuper OR r.rolbypassrls OR c.relowner = r.oid
		 FROM pg_roles r
		 CROSS JOIN pg_class c
		 WHERE r.rolname = current_user
		   AND c.relname = 'custom_roles'
		   AND c.relkind = 'r'
		   AND c.relnamespace = 'public'::regnamespace`,
	).Scan(&bypass)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("checking row-level security role: %w", err)
	}
	return bypass, nil
}
