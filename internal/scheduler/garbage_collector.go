package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/heartbeat/internal/domain"
	"github.com/MrSnakeDoc/heartbeat/internal/logger"
)

const (
	// DefaultGCInterval is the time between two collections
	DefaultGCInterval = time.Hour
	// DefaultGCThreshold is the age after which an observation is dropped
	// even if its service is still registered
	DefaultGCThreshold = 7 * 24 * time.Hour
)

// ServiceLister is the read side of the registry.
type ServiceLister interface {
	ListServices(ctx context.Context) ([]domain.Service, error)
}

// CheckStore is the observation cache the collector prunes.
type CheckStore interface {
	GetAllChecks(ctx context.Context) ([]domain.Check, error)
	DeleteChecks(ctx context.Context, urls []string) error
}

// GarbageCollector drops cached observations that belong to services no
// longer registered, or that are older than the threshold.
type GarbageCollector struct {
	registry  ServiceLister
	store     CheckStore
	logger    logger.Logger
	interval  time.Duration
	threshold time.Duration
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	now       func() time.Time
}

// NewGarbageCollector creates a new garbage collector
func NewGarbageCollector(
	reg ServiceLister,
	store CheckStore,
	log logger.Logger,
	interval time.Duration,
	threshold time.Duration,
) *GarbageCollector {
	if interval <= 0 {
		interval = DefaultGCInterval
	}
	if threshold <= 0 {
		threshold = DefaultGCThreshold
	}

	return &GarbageCollector{
		registry:  reg,
		store:     store,
		logger:    log,
		interval:  interval,
		threshold: threshold,
		stopCh:    make(chan struct{}),
		now:       time.Now,
	}
}

// Start begins the periodic garbage collection process
func (gc *GarbageCollector) Start(ctx context.Context) error {
	// Run immediately on start
	if _, err := gc.Collect(ctx); err != nil {
		gc.logger.Warn("initial garbage collection failed",
			logger.Error(err))
	}

	ticker := time.NewTicker(gc.interval)
	gc.wg.Add(1)
	go func() {
		defer gc.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := gc.Collect(ctx); err != nil {
					gc.logger.Error("garbage collection failed",
						logger.Error(err))
				}
			case <-gc.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the garbage collector
func (gc *GarbageCollector) Stop() {
	gc.stopOnce.Do(func() { close(gc.stopCh) })
	gc.wg.Wait()
}

// Collect removes orphaned and expired observations and returns how many
// were dropped.
func (gc *GarbageCollector) Collect(ctx context.Context) (int, error) {
	gc.logger.Debug("running garbage collection for cached checks")

	services, err := gc.registry.ListServices(ctx)
	if err != nil {
		return 0, fmt.Errorf("list services: %w", err)
	}
	checks, err := gc.store.GetAllChecks(ctx)
	if err != nil {
		return 0, fmt.Errorf("list checks: %w", err)
	}

	registered := make(map[string]bool, len(services))
	for _, svc := range services {
		registered[svc.URL] = true
	}

	now := gc.now()
	var stale []string
	for _, c := range checks {
		switch {
		case !registered[c.URL]:
			gc.logger.Debug("dropping check of unregistered service",
				logger.String("url", c.URL))
			stale = append(stale, c.URL)
		case !c.CheckedAt.IsZero() && now.Sub(c.CheckedAt) >= gc.threshold:
			gc.logger.Debug("dropping expired check",
				logger.String("url", c.URL),
				logger.Duration("age", now.Sub(c.CheckedAt)))
			stale = append(stale, c.URL)
		}
	}

	if len(stale) == 0 {
		gc.logger.Debug("no checks to garbage collect")
		return 0, nil
	}

	if err := gc.store.DeleteChecks(ctx, stale); err != nil {
		return 0, fmt.Errorf("delete checks: %w", err)
	}

	gc.logger.Info("garbage collection completed",
		logger.Int("checks_deleted", len(stale)))
	return len(stale), nil
}
