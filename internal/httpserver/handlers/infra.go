package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/heartbeat/internal/httpserver/deps"
)

var errNotInitialized = errors.New("client not initialized")

type componentStatus struct {
	OK       bool   `json:"ok"`
	Mode     string `json:"mode,omitempty"`
	Impact   string `json:"impact,omitempty"`
	Error    string `json:"error,omitempty"`
	Services *int   `json:"services,omitempty"`
	Queued   *int   `json:"queued,omitempty"`
	Batch    *int   `json:"batch_size,omitempty"`
	LastTick string `json:"last_tick,omitempty"`
	Interval string `json:"interval,omitempty"`
	Running  *int   `json:"running,omitempty"`
}

type infraResponse struct {
	State      string                     `json:"state"`
	Components map[string]componentStatus `json:"components"`
}

// Infra reports the state of every component heartbeat depends on.
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		components := map[string]componentStatus{
			"database":  checkDatabase(r, d),
			"redis":     checkRedis(r, d),
			"scheduler": checkScheduler(d),
			"queue":     checkQueue(d),
		}

		response := infraResponse{
			State:      determineState(components),
			Components: components,
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

func determineState(components map[string]componentStatus) string {
	// Without the store nothing is recorded
	if db, exists := components["database"]; exists && !db.OK {
		return "critical"
	}
	if sched, exists := components["scheduler"]; exists && !sched.OK {
		return "critical"
	}

	// Redis is optional: only a configured but unreachable cache degrades
	if redis, exists := components["redis"]; exists && !redis.OK && redis.Mode != "disabled" {
		return "degraded"
	}

	return "operational"
}

func checkDatabase(r *http.Request, d deps.Deps) componentStatus {
	if err := ping(r.Context(), d.Database); err != nil {
		return componentStatus{OK: false, Mode: d.DatabaseKind, Error: err.Error()}
	}

	st := componentStatus{OK: true, Mode: d.DatabaseKind}
	if d.Registry != nil {
		if services, err := d.Registry.ListServices(r.Context()); err == nil {
			n := len(services)
			st.Services = &n
		}
	}
	return st
}

func checkRedis(r *http.Request, d deps.Deps) componentStatus {
	if d.Checks == nil {
		return componentStatus{
			OK:     false,
			Mode:   "disabled",
			Impact: "check-history-disabled",
		}
	}

	if err := ping(r.Context(), d.Checks); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   "degraded",
			Impact: "check-history-disabled",
			Error:  "timeout",
		}
	}

	return componentStatus{
		OK:     true,
		Mode:   "optimal",
		Impact: "check-history-enabled",
	}
}

func checkScheduler(d deps.Deps) componentStatus {
	if d.Poller == nil {
		return componentStatus{OK: false, Error: errNotInitialized.Error()}
	}

	running := d.Poller.Running()
	st := componentStatus{
		OK:       true,
		Interval: d.Poller.Interval().String(),
		Running:  &running,
		LastTick: "never",
	}
	if last := d.Poller.LastTick(); !last.StartedAt.IsZero() {
		st.LastTick = last.StartedAt.Format(time.RFC3339)
		n := last.Services
		st.Services = &n
		if last.Err != nil {
			st.Error = last.Err.Error()
		}
	}
	return st
}

func checkQueue(d deps.Deps) componentStatus {
	if d.Registry == nil {
		return componentStatus{OK: false, Error: errNotInitialized.Error()}
	}
	n, batch := d.Registry.QueueLen(), d.Registry.BatchSize()
	return componentStatus{OK: true, Mode: string(d.Registry.Mode()), Queued: &n, Batch: &batch}
}
