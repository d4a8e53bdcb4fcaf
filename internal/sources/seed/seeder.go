package seed

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrSnakeDoc/heartbeat/internal/domain"
	"github.com/MrSnakeDoc/heartbeat/internal/logger"
	"github.com/MrSnakeDoc/heartbeat/internal/postgres"
)

// Registrar is the part of the registry the seeder needs.
type Registrar interface {
	RegisterService(ctx context.Context, name, url string) error
}

// Result counts what a seeding run did.
type Result struct {
	Registered int
	Existing   int
	Invalid    int
	Failed     int
}

// Seed registers entries one by one. Entries already registered are
// counted as existing, invalid ones are skipped. It only returns an error
// when nothing could be written at all.
func Seed(ctx context.Context, reg Registrar, entries []Entry, log logger.Logger) (Result, error) {
	var res Result
	seen := make(map[string]bool, len(entries))
	var lastErr error

	for _, e := range entries {
		name := strings.TrimSpace(e.Name)
		url := strings.TrimSpace(e.URL)

		if msg := domain.ValidateRegistration(name, url); msg != "" {
			log.Warn("skipping invalid seed entry",
				logger.String("name", name),
				logger.String("url", url),
				logger.String("reason", strings.TrimSpace(msg)))
			res.Invalid++
			continue
		}
		if seen[url] {
			res.Existing++
			continue
		}
		seen[url] = true

		err := reg.RegisterService(ctx, name, url)
		switch {
		case err == nil:
			res.Registered++
		case postgres.IsConstraintViolation(err):
			res.Existing++
		default:
			log.Error("failed to seed service",
				logger.String("url", url),
				logger.Error(err))
			res.Failed++
			lastErr = err
		}
	}

	log.Info("seeded services",
		logger.Int("registered", res.Registered),
		logger.Int("existing", res.Existing),
		logger.Int("invalid", res.Invalid),
		logger.Int("failed", res.Failed))

	if res.Failed > 0 && res.Registered == 0 && res.Existing == 0 {
		return res, fmt.Errorf("seed: no service could be registered: %w", lastErr)
	}
	return res, nil
}
