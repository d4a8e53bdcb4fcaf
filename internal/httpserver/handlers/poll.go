package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/heartbeat/internal/httpserver/deps"
	"github.com/MrSnakeDoc/heartbeat/internal/logger"
)

// Poll triggers an immediate tick of the poller.
func Poll(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.PollTrigger == nil {
			writeText(w, http.StatusServiceUnavailable, "❌ Polling is disabled\n", d.Logger)
			return
		}

		select {
		case d.PollTrigger <- struct{}{}:
			d.Logger.Info("manual poll triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			writeText(w, http.StatusAccepted, "✅ Poll triggered successfully\n", d.Logger)
		default:
			d.Logger.Warn("manual poll already pending",
				logger.String("remote_ip", r.RemoteAddr))
			writeText(w, http.StatusTooManyRequests, "⏳ Poll already pending, please wait\n", d.Logger)
		}
	}
}
