package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/MrSnakeDoc/heartbeat/internal/logger"
)

// sendBatchExecAll sends the batch, executes every queued command and sums
// their affected rows. A failure to close the results is logged and does not
// change the returned outcome.
func sendBatchExecAll(ctx context.Context, batch *pgx.Batch, send func(context.Context, *pgx.Batch) pgx.BatchResults, log logger.Logger) (int64, error) {
	if batch == nil || batch.Len() == 0 {
		return 0, nil
	}

	br := send(ctx, batch)
	defer func() {
		if err := br.Close(); err != nil {
			log.Warn("failed to close batch results",
				logger.Int("commands", batch.Len()),
				logger.Error(err))
		}
	}()

	var total int64
	for i := 0; i < batch.Len(); i++ {
		tag, err := br.Exec()
		if err != nil {
			return 0, fmt.Errorf("batch exec (command %d): %w", i, err)
		}
		total += tag.RowsAffected()
	}

	return total, nil
}
