package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrSnakeDoc/heartbeat/internal/domain"
	"github.com/MrSnakeDoc/heartbeat/internal/httpserver/deps"
	"github.com/MrSnakeDoc/heartbeat/internal/logger"
	redisstore "github.com/MrSnakeDoc/heartbeat/internal/store/redis"
)

// Checks returns the latest cached probe observation per URL. With a url
// query parameter it returns the observation of that service alone.
func Checks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if url := r.URL.Query().Get("url"); url != "" {
			checkOne(w, r, d, url)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")

		checks := []domain.Check{}
		if d.Checks != nil {
			got, err := d.Checks.GetAllChecks(r.Context())
			if err != nil {
				d.Logger.Warn("failed to read cached checks", logger.Error(err))
			} else if got != nil {
				checks = got
			}
		}

		_ = json.NewEncoder(w).Encode(checks)
	}
}

func checkOne(w http.ResponseWriter, r *http.Request, d deps.Deps, url string) {
	if d.Checks == nil {
		writeText(w, http.StatusServiceUnavailable, "Check history is disabled.", d.Logger)
		return
	}

	check, err := d.Checks.GetCheck(r.Context(), url)
	switch {
	case errors.Is(err, redisstore.ErrCheckNotFound):
		writeText(w, http.StatusNotFound, "No check recorded for this URL.", d.Logger)
		return
	case err != nil:
		d.Logger.Warn("failed to read cached check",
			logger.String("url", url),
			logger.Error(err))
		writeText(w, http.StatusServiceUnavailable, "Check history is unavailable.", d.Logger)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(check)
}
