package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/heartbeat/internal/httpserver/deps"
	"github.com/MrSnakeDoc/heartbeat/internal/httpserver/mw"
)

type (
	// Registrar mounts a group of routes.
	Registrar func(r chi.Router, d deps.Deps)
	// Guard builds a middleware from the server dependencies, so groups can
	// be declared in init before the deps exist.
	Guard func(d deps.Deps) func(http.Handler) http.Handler
)

type entry struct {
	reg    Registrar
	guards []Guard
}

var registry []entry

// Register adds a route group. Guards wrap every route of the group.
func Register(reg Registrar, guards ...Guard) {
	registry = append(registry, entry{reg: reg, guards: guards})
}

// OperatorOnly limits a group to the configured operator CIDRs.
func OperatorOnly(d deps.Deps) func(http.Handler) http.Handler {
	return mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger.Named("allowlist"))
}

// RegisterAll mounts every registered group on r. Called once by the server.
func RegisterAll(r chi.Router, d deps.Deps) {
	for _, e := range registry {
		if len(e.guards) == 0 {
			e.reg(r, d)
			continue
		}
		mws := make([]func(http.Handler) http.Handler, len(e.guards))
		for i, g := range e.guards {
			mws[i] = g(d)
		}
		e.reg(r.With(mws...), d)
	}
}
