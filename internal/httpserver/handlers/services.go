package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/heartbeat/internal/domain"
	"github.com/MrSnakeDoc/heartbeat/internal/httpserver/deps"
	"github.com/MrSnakeDoc/heartbeat/internal/logger"
	"github.com/MrSnakeDoc/heartbeat/internal/postgres"
)

const (
	maxBodyBytes = 1 << 20

	msgAdded        = "Successfully added the service."
	msgAddFailed    = "Failed to add the service."
	msgDeleted      = "Successfully deleted the selected services."
	msgNoneDeleted  = "0 rows are deleted."
	msgDeleteFailed = "Failed to delete the service."
)

type registerRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ListServices returns the roster as a JSON array, or [] when the store
// cannot be read.
func ListServices(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")

		services, err := d.Registry.ListServices(r.Context())
		if err != nil {
			d.Logger.Error("failed to list services", logger.Error(err))
			services = nil
		}
		if services == nil {
			services = []domain.Service{}
		}

		_ = json.NewEncoder(w).Encode(services)
	}
}

// AddService validates and registers a service. Validation failures are
// answered with 200 and the plain-text reason.
func AddService(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := decodeBody(w, r, &req); err != nil {
			d.Logger.Debug("unreadable registration body", logger.Error(err))
		}

		if msg := domain.ValidateRegistration(req.Name, req.URL); msg != "" {
			writeText(w, http.StatusOK, msg, d.Logger)
			return
		}

		if err := d.Registry.RegisterService(r.Context(), strings.TrimSpace(req.Name), req.URL); err != nil {
			if postgres.IsConstraintViolation(err) {
				d.Logger.Info("service already registered", logger.String("url", req.URL))
			} else {
				d.Logger.Warn("failed to register service",
					logger.String("url", req.URL),
					logger.Error(err))
			}
			writeText(w, http.StatusInternalServerError, msgAddFailed, d.Logger)
			return
		}

		writeText(w, http.StatusOK, msgAdded, d.Logger)
	}
}

// DeleteServices removes every service whose URL is in the JSON array body.
func DeleteServices(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var urls []string
		if err := decodeBody(w, r, &urls); err != nil || len(urls) == 0 {
			writeText(w, http.StatusOK, domain.MsgInvalidServices, d.Logger)
			return
		}

		n, err := d.Registry.DeleteServices(r.Context(), urls)
		if err != nil {
			d.Logger.Warn("failed to delete services",
				logger.Strings("urls", urls),
				logger.Error(err))
			writeText(w, http.StatusInternalServerError, msgDeleteFailed, d.Logger)
			return
		}

		if d.Checks != nil {
			if err := d.Checks.DeleteChecks(r.Context(), urls); err != nil {
				d.Logger.Warn("failed to drop cached checks", logger.Error(err))
			}
		}

		if n > 0 {
			writeText(w, http.StatusOK, msgDeleted, d.Logger)
			return
		}
		writeText(w, http.StatusOK, msgNoneDeleted, d.Logger)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeText(w http.ResponseWriter, code int, msg string, log logger.Logger) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	if _, err := w.Write([]byte(msg)); err != nil {
		log.Debug("failed to write response", logger.Error(err))
	}
}
