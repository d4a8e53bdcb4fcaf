package mw

import (
	"net/http"

	"github.com/MrSnakeDoc/heartbeat/internal/logger"
	"github.com/MrSnakeDoc/heartbeat/internal/utils"
)

// AllowOnlyCIDRS restricts operator endpoints (/readyz, /infra,
// /service/poll) to the listed addresses and CIDRs. An allow-list with no
// usable rule leaves the endpoints open.
func AllowOnlyCIDRS(allowed []string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	m := utils.NewIPMatcher(allowed)
	if bad := m.Invalid(); len(bad) > 0 {
		log.Warn("ignoring unparsable allow-list entries", logger.Strings("entries", bad))
	}
	if m.Len() == 0 {
		log.Debug("operator allow-list empty, endpoints open")
		return func(next http.Handler) http.Handler { return next }
	}

	log.Debug("operator allow-list active",
		logger.Int("rules", m.Len()),
		logger.Bool("trust_proxy", trustProxy))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ClientIP(r, trustProxy)
			if !m.Allow(ip) {
				log.Warn("operator endpoint refused",
					logger.String("client_ip", ip),
					logger.String("path", r.URL.Path))
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
