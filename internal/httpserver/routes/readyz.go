package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/heartbeat/internal/httpserver/deps"
	"github.com/MrSnakeDoc/heartbeat/internal/httpserver/handlers"
)

func init() {
	Register(registerHealth)
	Register(registerOperatorStatus, OperatorOnly)
}

func registerHealth(r chi.Router, d deps.Deps) {
	r.Get("/healthz", handlers.Healthz(d))
}

func registerOperatorStatus(r chi.Router, d deps.Deps) {
	r.Get("/readyz", handlers.Readyz(d))
	r.Get("/infra", handlers.Infra(d))
}
