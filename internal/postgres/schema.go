package postgres

import (
	"context"
	"fmt"

	"github.com/MrSnakeDoc/heartbeat/internal/logger"
)

// schema is applied in order on every startup; each statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS service (
		name   VARCHAR(128) NOT NULL,
		url    VARCHAR(128) NOT NULL,
		status VARCHAR(16),
		date   TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS service_url_key ON service (url)`,
}

type writer interface {
	Write(ctx context.Context, query string, params ...any) (int64, error)
}

// Bootstrap creates the service table when it does not exist yet.
func Bootstrap(ctx context.Context, w writer, log logger.Logger) error {
	for i, stmt := range schema {
		if _, err := w.Write(ctx, stmt); err != nil {
			return fmt.Errorf("schema bootstrap: statement %d failed: %w", i+1, err)
		}
	}
	log.Info("completed db migrations", logger.Int("statements", len(schema)))
	return nil
}
