package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/heartbeat/internal/domain"
	"github.com/MrSnakeDoc/heartbeat/internal/logger"
	"github.com/MrSnakeDoc/heartbeat/internal/postgres"
	"github.com/MrSnakeDoc/heartbeat/internal/statusqueue"
)

// Gateway is the persistence surface the registry needs. *postgres.Gateway
// satisfies it; tests substitute an in-memory fake.
type Gateway interface {
	Read(ctx context.Context, query string, params ...any) ([]postgres.Row, error)
	Write(ctx context.Context, query string, params ...any) (int64, error)
	BatchWrite(ctx context.Context, query string, params [][]any) (int64, error)
}

// Mode selects how UpdateStatus persists probe outcomes.
type Mode string

const (
	ModeImmediate Mode = "immediate" // one UPDATE per outcome
	ModeQueued    Mode = "queued"    // coalesced through the status queue
)

// DefaultFlushTimeout bounds a single batch flush triggered by an enqueue.
const DefaultFlushTimeout = 30 * time.Second

// Options tunes the registry.
type Options struct {
	Mode         Mode
	BatchSize    int
	FlushTimeout time.Duration
}

// Registry owns the set of monitored services and the status queue that
// feeds batched status writes back into the store.
type Registry struct {
	gw           Gateway
	queries      Queries
	queue        *statusqueue.Queue
	mode         Mode
	flushTimeout time.Duration
	logger       logger.Logger

	// chainMu orders batch cuts with their place in the write chain; each
	// batch write starts only after the previous one has finished.
	chainMu   sync.Mutex
	lastFlush <-chan struct{}
}

// New creates a registry on top of gw.
func New(gw Gateway, queries Queries, opts Options, log logger.Logger) *Registry {
	if opts.Mode != ModeQueued {
		opts.Mode = ModeImmediate
	}
	if opts.FlushTimeout <= 0 {
		opts.FlushTimeout = DefaultFlushTimeout
	}

	return &Registry{
		gw:           gw,
		queries:      queries,
		queue:        statusqueue.New(opts.BatchSize),
		mode:         opts.Mode,
		flushTimeout: opts.FlushTimeout,
		logger:       log,
	}
}

// Mode returns the configured status persistence mode.
func (r *Registry) Mode() Mode { return r.mode }

// BatchSize returns the queue length that triggers a flush.
func (r *Registry) BatchSize() int { return r.queue.BatchSize() }

// QueueLen returns the number of status updates waiting for a flush.
func (r *Registry) QueueLen() int { return r.queue.Len() }

// ListServices returns every registered service.
func (r *Registry) ListServices(ctx context.Context) ([]domain.Service, error) {
	rows, err := r.gw.Read(ctx, r.queries.SelectAll)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}

	services := make([]domain.Service, 0, len(rows))
	for _, row := range rows {
		services = append(services, rowToService(row))
	}
	return services, nil
}

// RegisterService inserts a service with status UNKNOWN. Duplicate URLs are
// rejected by the store's unique index and surface as a storage error.
func (r *Registry) RegisterService(ctx context.Context, name, url string) error {
	svc := domain.NewService(name, url)
	if _, err := r.gw.Write(ctx, r.queries.Insert, svc.Name, svc.URL, string(svc.Status)); err != nil {
		return fmt.Errorf("register service %s: %w", url, err)
	}
	r.logger.Info("service registered",
		logger.String("name", svc.Name),
		logger.String("url", svc.URL))
	return nil
}

// RecordStatus writes a single status update and returns once the store
// has acknowledged it.
func (r *Registry) RecordStatus(ctx context.Context, url string, status domain.Status) (int64, error) {
	n, err := r.gw.Write(ctx, r.queries.UpdateStatus, string(status), url)
	if err != nil {
		return 0, fmt.Errorf("record status for %s: %w", url, err)
	}
	return n, nil
}

// EnqueueStatus appends an update to the status queue without waiting for
// any I/O. If the append fills a batch, the batch is written in the
// background and the returned Pending resolves when that write completes.
// Batches reach the store in the order they were cut.
func (r *Registry) EnqueueStatus(ctx context.Context, url string, status domain.Status) *Pending {
	r.chainMu.Lock()
	batch := r.queue.Push(domain.StatusUpdate{URL: url, Status: status})
	if batch == nil {
		r.chainMu.Unlock()
		return resolvedPending()
	}
	p := newPending(true)
	prev := r.lastFlush
	r.lastFlush = p.done
	r.chainMu.Unlock()

	go func() {
		if prev != nil {
			<-prev
		}

		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.flushTimeout)
		defer cancel()

		p.resolve(r.writeBatch(flushCtx, batch))
	}()
	return p
}

// UpdateStatus persists a probe outcome through the configured path. In
// queued mode it never blocks and flush failures are logged by the
// registry.
func (r *Registry) UpdateStatus(ctx context.Context, url string, status domain.Status) error {
	if r.mode == ModeQueued {
		r.EnqueueStatus(ctx, url, status)
		return nil
	}
	_, err := r.RecordStatus(ctx, url, status)
	return err
}

// DeleteServices removes every service whose URL is listed and returns how
// many rows went away. Unknown URLs are not an error.
func (r *Registry) DeleteServices(ctx context.Context, urls []string) (int64, error) {
	params := make([][]any, 0, len(urls))
	for _, u := range urls {
		params = append(params, []any{u})
	}

	n, err := r.gw.BatchWrite(ctx, r.queries.Delete, params)
	if err != nil {
		return 0, fmt.Errorf("delete services: %w", err)
	}
	r.logger.Info("services deleted",
		logger.Int("requested", len(urls)),
		logger.Int64("deleted", n))
	return n, nil
}

// Flush writes whatever is left in the queue as one batch, after every
// batch already cut. Call it once producers have stopped (after
// Poller.Stop); updates enqueued during a Flush go to the next one.
func (r *Registry) Flush(ctx context.Context) error {
	r.chainMu.Lock()
	rest := r.queue.Drain()
	prev := r.lastFlush
	done := make(chan struct{})
	r.lastFlush = done
	r.chainMu.Unlock()

	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			// The chain stays ordered: done closes once prev has landed.
			go func() {
				<-prev
				close(done)
			}()
			if len(rest) > 0 {
				return fmt.Errorf("flush %d status updates: %w", len(rest), ctx.Err())
			}
			return ctx.Err()
		}
	}
	defer close(done)

	if len(rest) == 0 {
		return nil
	}
	_, err := r.writeBatch(ctx, rest)
	return err
}

func (r *Registry) writeBatch(ctx context.Context, batch []domain.StatusUpdate) (int64, error) {
	params := make([][]any, len(batch))
	for i, u := range batch {
		params[i] = []any{string(u.Status), u.URL}
	}

	start := time.Now()
	n, err := r.gw.BatchWrite(ctx, r.queries.UpdateStatus, params)
	if err != nil {
		r.logger.Error("status batch flush failed",
			logger.Int("entries", len(batch)),
			logger.Error(err))
		return 0, fmt.Errorf("flush %d status updates: %w", len(batch), err)
	}

	r.logger.Debug("status batch flushed",
		logger.Int("entries", len(batch)),
		logger.Int64("rows", n),
		logger.Duration("duration", time.Since(start)))
	return n, nil
}

func rowToService(row postgres.Row) domain.Service {
	svc := domain.Service{Status: domain.StatusUnknown}
	if v, ok := row["name"].(string); ok {
		svc.Name = v
	}
	if v, ok := row["url"].(string); ok {
		svc.URL = v
	}
	if v, ok := row["status"].(string); ok {
		svc.Status = domain.ParseStatus(v)
	}
	if v, ok := row["date"].(time.Time); ok {
		svc.Date = v
	}
	return svc
}
