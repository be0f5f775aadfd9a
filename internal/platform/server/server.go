package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mass-workshop/mass/internal/audit"
	"github.com/mass-workshop/mass/internal/auth"
	"github.com/mass-workshop/mass/internal/org"
	"github.com/mass-workshop/mass/internal/platform/middleware"
	"github.com/mass-workshop/mass/internal/rbac"
)

const defaultShutdownTimeout = 10 * time.Second

// Dependencies holds all injected dependencies for the server.
type Dependencies struct {
	Pool               *pgxpool.Pool
	Auth               *auth.TokenService
	AuthHandler        *auth.Handler
	Guard              *rbac.Guard
	OrgHandler         *org.Handler
	MemberHandler      *org.MemberHandler
	RoleHandler        *org.RoleHandler
	AuditHandler       *audit.Handler
	RBACAuditLogger    rbac.AuditLogger
	DevMode            bool
	DevIdentity        *auth.Identity
	Logger             *slog.Logger
	CORSAllowedOrigins []string
	ShutdownTimeout    time.Duration
}

type Server struct {
	httpServer      *http.Server
	protectedMux    *http.ServeMux
	routes          *rbac.Mux
	pool            *pgxpool.Pool
	handler         http.Handler
	shutdownTimeout time.Duration
}

func New(addr string, deps Dependencies) *Server {
	// Protected routes mux, wrapped with auth middleware
	protectedMux := http.NewServeMux()

	var protectedHandler http.Handler = protectedMux
	if deps.Auth != nil {
		if deps.DevMode && deps.DevIdentity != nil {
			protectedHandler = auth.MiddlewareWithDevMode(deps.Auth, deps.DevIdentity)(protectedHandler)
		} else {
			protectedHandler = auth.Middleware(deps.Auth)(protectedHandler)
		}
	}

	// Top-level mux: public routes + protected catch-all
	topMux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		protectedMux:    protectedMux,
		pool:            deps.Pool,
		shutdownTimeout: deps.ShutdownTimeout,
	}
	if s.shutdownTimeout <= 0 {
		s.shutdownTimeout = defaultShutdownTimeout
	}

	// Public routes (no auth required)
	topMux.HandleFunc("GET /healthz", s.handleHealth)
	topMux.HandleFunc("GET /readyz", s.handleReadiness)
	// Dev-only login route (no auth required)
	if deps.DevMode && deps.AuthHandler != nil {
		deps.AuthHandler.RegisterDevRoutes(topMux)
	}

	// Signup: the caller has no assignment yet, so only the token is checked.
	if deps.OrgHandler != nil {
		protectedMux.HandleFunc("POST /api/v1/organizations", deps.OrgHandler.HandleCreate)
	}

	if deps.Guard != nil {
		var rbacOpts []rbac.MiddlewareOption
		if deps.RBACAuditLogger != nil {
			rbacOpts = append(rbacOpts, rbac.WithAuditLogger(deps.RBACAuditLogger))
		}
		s.routes = rbac.NewMux(protectedMux, deps.Guard, rbacOpts...)
		registerRoutes(s.routes, deps)
	}

	// All other routes go through auth middleware
	topMux.Handle("/", protectedHandler)

	// Wrap top-level mux with observability middleware
	var handler http.Handler = topMux
	if deps.Logger != nil {
		handler = middleware.Logging(deps.Logger)(handler)
	}
	handler = middleware.RequestID(handler)
	if len(deps.CORSAllowedOrigins) > 0 {
		handler = middleware.CORS(deps.CORSAllowedOrigins)(handler)
	}

	s.handler = handler
	s.httpServer.Handler = handler
	return s
}

func registerRoutes(m *rbac.Mux, deps Dependencies) {
	m.HandleAuthenticated("GET /api/v1/me/permissions", http.HandlerFunc(rbac.HandleSnapshot))
	m.HandleFunc("GET /api/v1/permissions", rbac.SettingsView, rbac.HandleCatalog)

	if deps.OrgHandler != nil {
		m.HandleFunc("GET /api/v1/organization", rbac.SettingsView, deps.OrgHandler.HandleGet)
	}

	if h := deps.MemberHandler; h != nil {
		m.HandleFunc("GET /api/v1/members", rbac.UsersManage, h.HandleList)
		m.HandleFunc("POST /api/v1/members", rbac.UsersManage, h.HandleAdd)
		m.HandleFunc("PUT /api/v1/members/{id}/role", rbac.UsersManage, h.HandleUpdateRole)
		m.HandleFunc("PUT /api/v1/members/{id}/permissions", rbac.UsersManage, h.HandleSetPermissions)
		m.HandleFunc("DELETE /api/v1/members/{id}", rbac.UsersManage, h.HandleRemove)
	}

	if h := deps.RoleHandler; h != nil {
		m.HandleFunc("GET /api/v1/roles", rbac.SettingsView, h.HandleList)
		m.HandleFunc("POST /api/v1/roles", rbac.UsersManage, h.HandleCreate)
		m.HandleFunc("PUT /api/v1/roles/{id}", rbac.UsersManage, h.HandleUpdate)
		m.HandleFunc("DELETE /api/v1/roles/{id}", rbac.UsersManage, h.HandleDelete)
	}

	if deps.AuditHandler != nil {
		m.HandleFunc("GET /api/v1/audit/events", rbac.SettingsManage, deps.AuditHandler.HandleListEvents)
	}
}

// Handler returns the full middleware-wrapped handler chain (for testing).
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ProtectedMux returns the mux for authenticated routes.
// Use this to register routes that require authentication.
func (s *Server) ProtectedMux() *http.ServeMux {
	return s.protectedMux
}

// Routes returns the permission-guarded route table, or nil when the
// server was built without a guard.
func (s *Server) Routes() []rbac.Route {
	if s.routes == nil {
		return nil
	}
	return s.routes.Routes()
}

func (s *Server) Start(ctx context.Context) error {
	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.httpServer.Addr, err)
	}

	slog.Info("server starting", "addr", listener.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.pool == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "database not connected",
		})
		return
	}

	if err := s.pool.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "database ping failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
