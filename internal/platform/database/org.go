package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OrgSetting is the Postgres session variable the row-level security
// policies read the current organization from.
const OrgSetting = "app.current_org_id"

// Querier abstracts pgx query methods so callers can work with both
// pool connections and transactions.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// WithOrgConnection acquires a dedicated connection from the pool,
// sets the organization session variable for RLS, then calls fn.
// The setting is reset before the connection is released back to the
// pool so a reused connection never carries another organization's scope.
func WithOrgConnection(ctx context.Context, pool *pgxpool.Pool, orgID string, fn func(ctx context.Context, q Querier) error) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connection: %w", err)
	}
	defer func() {
		// The request context may already be canceled here.
		_, _ = conn.Exec(context.Background(), "SELECT set_config($1, '', false)", OrgSetting)
		conn.Release()
	}()

	if _, err := conn.Exec(ctx, "SELECT set_config($1, $2, false)", OrgSetting, orgID); err != nil {
		return fmt.Errorf("setting org context: %w", err)
	}

	return fn(ctx, conn)
}

// WithOrgTx runs fn inside a transaction scoped to orgID. The setting is
// transaction-local, so nothing needs resetting afterwards. fn's error
// rolls the transaction back.
func WithOrgTx(ctx context.Context, pool *pgxpool.Pool, orgID string, fn func(ctx context.Context, q Querier) error) error {
	return WithTx(ctx, pool, func(ctx context.Context, tx pgx.Tx) error {
		if err := SetTxOrg(ctx, tx, orgID); err != nil {
			return err
		}
		return fn(ctx, tx)
	})
}

// WithTx runs fn inside a transaction, committing when fn returns nil.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// SetTxOrg scopes the remainder of tx to orgID.
func SetTxOrg(ctx context.Context, tx pgx.Tx, orgID string) error {
	if _, err := tx.Exec(ctx, "SELECT set_config($1, $2, true)", OrgSetting, orgID); err != nil {
		return fmt.Errorf("setting org context: %w", err)
	}
	return nil
}
