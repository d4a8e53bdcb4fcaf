package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/heartbeat/internal/httpserver/deps"
	"github.com/MrSnakeDoc/heartbeat/internal/httpserver/handlers"
)

func init() {
	Register(registerService)
	Register(registerPoll, OperatorOnly)
}

func registerService(r chi.Router, d deps.Deps) {
	r.Get("/service", handlers.ListServices(d))
	r.Post("/service", handlers.AddService(d))
	r.Delete("/service", handlers.DeleteServices(d))
	r.Get("/service/checks", handlers.Checks(d))
}

func registerPoll(r chi.Router, d deps.Deps) {
	r.Post("/service/poll", handlers.Poll(d))
}
