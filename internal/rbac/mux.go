package rbac

import (
	"fmt"
	"net/http"
	"slices"
	"sync"
)

// Route is one registration on a Mux. An empty Permission means the route
// only requires a resolved actor.
type Route struct {
	Pattern    string
	Permission Permission
}

// Mux registers privileged routes on an underlying ServeMux. There is no way
// to register a handler through it without the guard in front.
type Mux struct {
	mux   *http.ServeMux
	guard *Guard
	opts  []MiddlewareOption

	mu     sync.Mutex
	routes []Route
}

func NewMux(mux *http.ServeMux, guard *Guard, opts ...MiddlewareOption) *Mux {
	return &Mux{mux: mux, guard: guard, opts: opts}
}

// Handle registers h behind a check for permission. It panics when
// permission is not in the catalog.
func (m *Mux) Handle(pattern string, permission Permission, h http.Handler) {
	if !permission.Valid() {
		panic(fmt.Sprintf("rbac: route %q registered with unknown permission %q", pattern, string(permission)))
	}
	m.register(pattern, permission, m.guard.Require(permission, m.opts...)(h))
}

func (m *Mux) HandleFunc(pattern string, permission Permission, h http.HandlerFunc) {
	m.Handle(pattern, permission, h)
}

// HandleAuthenticated registers h for any actor with an active assignment.
func (m *Mux) HandleAuthenticated(pattern string, h http.Handler) {
	m.register(pattern, "", m.guard.Authenticated(m.opts...)(h))
}

func (m *Mux) register(pattern string, permission Permission, h http.Handler) {
	m.mux.Handle(pattern, h)
	m.mu.Lock()
	m.routes = append(m.routes, Route{Pattern: pattern, Permission: permission})
	m.mu.Unlock()
}

// Routes returns the registered route table in registration order.
func (m *Mux) Routes() []Route {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.routes)
}
