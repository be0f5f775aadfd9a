package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mass-workshop/mass/internal/audit"
	"github.com/mass-workshop/mass/internal/auth"
	"github.com/mass-workshop/mass/internal/org"
	"github.com/mass-workshop/mass/internal/platform/config"
	"github.com/mass-workshop/mass/internal/platform/database"
	"github.com/mass-workshop/mass/internal/platform/server"
	"github.com/mass-workshop/mass/internal/platform/telemetry"
	"github.com/mass-workshop/mass/internal/rbac"
	"golang.org/x/sync/errgroup"
)

const auditReportInterval = time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logging
	logger := telemetry.NewLogger(cfg.Log.Level, cfg.Log.Format)
	telemetry.SetDefault(logger)

	slog.Info("mass starting", "port", cfg.Server.Port)

	if cfg.Auth.JWT.SigningKey == "" && !cfg.Auth.DevMode {
		return fmt.Errorf("auth.jwt.signingkey is required outside dev mode")
	}

	// Connect to database (optional for startup, readiness reports it)
	ctx := context.Background()
	var pool *database.Pool

	if cfg.Database.URL != "" {
		slog.Info("connecting to database")
		p, err := database.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			slog.Warn("database connection failed, starting without DB", "error", err)
		} else {
			pool = p
			defer pool.Close()

			migrationsURL := fmt.Sprintf("file://%s", cfg.Database.MigrationsPath)
			if err := database.RunMigrations(cfg.Database.URL, migrationsURL); err != nil {
				return fmt.Errorf("running migrations: %w", err)
			}
			slog.Info("migrations complete")

			if bypass, err := database.BypassesRLS(ctx, pool); err != nil {
				slog.Warn("row-level security check failed", "error", err)
			} else if bypass {
				slog.Warn("database role bypasses row-level security; connect as a non-owner role in production")
			}
		}
	}

	// Auth
	tokenSvc := auth.NewTokenService(
		cfg.Auth.JWT.SigningKey,
		cfg.Auth.JWT.Issuer,
		cfg.Auth.JWT.ExpiryHours,
		cfg.Auth.JWT.RefreshExpiryHours,
	)
	authHandler := auth.NewHandler(tokenSvc)

	// Audit
	var auditLogger audit.Logger = audit.NopLogger{}
	var asyncAudit *audit.AsyncLogger
	var auditHandler *audit.Handler
	if pool != nil {
		auditStore := audit.NewStore()
		asyncAudit = audit.NewAsyncLogger(pool, auditStore, audit.LoggerConfig{
			BufferSize:    cfg.Audit.BufferSize,
			BatchSize:     cfg.Audit.BatchSize,
			FlushInterval: cfg.Audit.FlushInterval(),
			Logger:        logger,
		})
		auditLogger = asyncAudit
		defer asyncAudit.Close()
		auditHandler = audit.NewHandler(pool, auditStore)
		slog.Info("audit logger started")
	}

	// Permission guard and organization management
	var (
		guard         *rbac.Guard
		orgHandler    *org.Handler
		memberHandler *org.MemberHandler
		roleHandler   *org.RoleHandler
	)
	if pool != nil {
		dir := org.NewDirectory(pool)
		guard = rbac.NewGuard(dir, dir, dir,
			rbac.WithLogger(logger),
			rbac.WithCustomRoleCache(cfg.RBAC.CustomRoleCacheTTL()),
		)

		users := org.NewUserStore()
		assignments := org.NewAssignmentStore()
		orgHandler = org.NewHandler(org.NewStore(pool), auditLogger)
		memberHandler = org.NewMemberHandler(pool, users, assignments, auditLogger)
		roleHandler = org.NewRoleHandler(pool, org.NewCustomRoleStore(), guard, auditLogger)
	}

	// Dev mode identity
	var devIdentity *auth.Identity
	if cfg.Auth.DevMode {
		slog.Warn("running in dev mode: 'Bearer dev' authenticates as the dev identity")
		devIdentity = &auth.Identity{
			Subject:   "dev|" + cfg.Auth.DevEmail,
			Email:     cfg.Auth.DevEmail,
			OrgID:     cfg.Auth.DevOrgID,
			TokenType: "access",
		}
	}

	// Create and start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := server.New(addr, server.Dependencies{
		Pool:               pool,
		Auth:               tokenSvc,
		AuthHandler:        authHandler,
		Guard:              guard,
		OrgHandler:         orgHandler,
		MemberHandler:      memberHandler,
		RoleHandler:        roleHandler,
		AuditHandler:       auditHandler,
		RBACAuditLogger:    audit.RBACAdapter{Logger: auditLogger},
		DevMode:            cfg.Auth.DevMode,
		DevIdentity:        devIdentity,
		Logger:             logger,
		CORSAllowedOrigins: cfg.CORS.AllowedOrigins,
		ShutdownTimeout:    time.Duration(cfg.Server.ShutdownTimeoutSecs) * time.Second,
	})
	for _, route := range srv.Routes() {
		slog.Debug("route registered", "pattern", route.Pattern, "permission", string(route.Permission))
	}

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("server ready", "addr", addr, "dev_mode", cfg.Auth.DevMode)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(ctx)
	})
	if asyncAudit != nil {
		g.Go(func() error {
			reportAuditDrops(ctx, asyncAudit)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("mass stopped")
	return nil
}

// reportAuditDrops logs how many audit events were dropped since the last
// report, until ctx is done.
func reportAuditDrops(ctx context.Context, l *audit.AsyncLogger) {
	ticker := time.NewTicker(auditReportInterval)
	defer ticker.Stop()

	var last int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Dropped(); n > last {
				slog.Warn("audit events dropped", "count", n-last, "total", n)
				last = n
			}
		}
	}
}
