package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/heartbeat/internal/domain"
	"github.com/MrSnakeDoc/heartbeat/internal/logger"
	"github.com/MrSnakeDoc/heartbeat/internal/probe"
)

const (
	// DefaultPollInterval is the time between two scheduled ticks.
	DefaultPollInterval = 60 * time.Second
)

// Registry is the part of the service registry the poller drives.
type Registry interface {
	ListServices(ctx context.Context) ([]domain.Service, error)
	UpdateStatus(ctx context.Context, url string, status domain.Status) error
}

// Observer receives every probe observation. Implementations must not
// block for long; they run on the probe goroutine.
type Observer interface {
	Observe(ctx context.Context, check domain.Check)
}

// Options tunes the poller. The zero value allows unbounded fan-out and
// overlapping ticks.
type Options struct {
	MaxConcurrentProbes  int           // 0 = one goroutine per service
	SkipOverlappingTicks bool          // drop a tick while another is still running
	Observer             Observer      // optional
	ManualTrigger        chan struct{} // optional, one extra tick per receive
}

// TickResult summarizes one tick.
type TickResult struct {
	StartedAt   time.Time
	Duration    time.Duration
	Services    int
	OK          int // recorded as OK
	Fail        int // recorded as FAIL
	Cancelled   int // cut short by shutdown, nothing recorded
	WriteErrors int // probed, but the status write was rejected
	Skipped     bool
	Err         error
}

// Poller probes every registered service on a fixed interval and feeds the
// outcomes back into the registry.
//
// Ticks are independent: a tick whose probes are still in flight when the
// timer fires does not hold back the next one unless SkipOverlappingTicks is
// set.
type Poller struct {
	registry      Registry
	prober        probe.Prober
	observer      Observer
	logger        logger.Logger
	interval      time.Duration
	maxConcurrent int
	skipOverlap   bool
	manualTrigger chan struct{}

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	running  atomic.Int32
	ticks    atomic.Int64
	mu       sync.RWMutex
	lastTick TickResult
	now      func() time.Time
}

// NewPoller creates a poller. It does nothing until Start.
func NewPoller(reg Registry, prober probe.Prober, log logger.Logger, interval time.Duration, opts Options) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if opts.MaxConcurrentProbes < 0 {
		opts.MaxConcurrentProbes = 0
	}

	return &Poller{
		registry:      reg,
		prober:        prober,
		observer:      opts.Observer,
		logger:        log,
		interval:      interval,
		maxConcurrent: opts.MaxConcurrentProbes,
		skipOverlap:   opts.SkipOverlappingTicks,
		manualTrigger: opts.ManualTrigger,
		stopCh:        make(chan struct{}),
		now:           time.Now,
	}
}

// Start launches the periodic loop. The first tick fires one interval after
// Start.
func (p *Poller) Start(ctx context.Context) error {
	if p.registry == nil || p.prober == nil {
		return errors.New("poller: registry and prober are required")
	}

	ticker := time.NewTicker(p.interval)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.launch(ctx)
			case <-p.manualTrigger:
				p.logger.Info("manual poll triggered")
				p.launch(ctx)
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop ends the loop and waits for ticks that are still running.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
}

// Interval returns the configured tick interval.
func (p *Poller) Interval() time.Duration { return p.interval }

// Running returns the number of ticks currently in flight.
func (p *Poller) Running() int { return int(p.running.Load()) }

// Ticks returns how many ticks have completed or been skipped.
func (p *Poller) Ticks() int64 { return p.ticks.Load() }

// LastTick returns the summary of the most recent tick.
func (p *Poller) LastTick() TickResult {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastTick
}

func (p *Poller) launch(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.Tick(ctx)
	}()
}

// Tick runs one full polling round and waits for its probes. It never
// panics and never returns an error; failures are reported in the result.
func (p *Poller) Tick(ctx context.Context) TickResult {
	res := TickResult{StartedAt: p.now()}

	if p.skipOverlap {
		if !p.running.CompareAndSwap(0, 1) {
			p.logger.Warn("previous tick still running, skipping")
			res.Skipped = true
			return p.finish(res)
		}
	} else {
		p.running.Add(1)
	}
	defer p.running.Add(-1)

	p.logger.Debug("tick started")

	services, err := p.registry.ListServices(ctx)
	if err != nil {
		p.logger.Error("failed to list services, skipping tick", logger.Error(err))
		res.Skipped = true
		res.Err = err
		return p.finish(res)
	}
	res.Services = len(services)

	var ok, fail, cancelled, writeErrs atomic.Int64

	var g errgroup.Group
	if p.maxConcurrent > 0 {
		g.SetLimit(p.maxConcurrent)
	}
	for _, svc := range services {
		url := svc.URL
		g.Go(func() error {
			switch p.check(ctx, url) {
			case outcomeOK:
				ok.Add(1)
			case outcomeFail:
				fail.Add(1)
			case outcomeCancelled:
				cancelled.Add(1)
			case outcomeWriteError:
				writeErrs.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	res.OK = int(ok.Load())
	res.Fail = int(fail.Load())
	res.Cancelled = int(cancelled.Load())
	res.WriteErrors = int(writeErrs.Load())
	res = p.finish(res)

	p.logger.Info("tick completed",
		logger.Int("services", res.Services),
		logger.Int("ok", res.OK),
		logger.Int("fail", res.Fail),
		logger.Int("cancelled", res.Cancelled),
		logger.Int("write_errors", res.WriteErrors),
		logger.Duration("duration", res.Duration))

	return res
}

type outcome int

const (
	outcomeOK outcome = iota
	outcomeFail
	outcomeCancelled
	outcomeWriteError
)

// check probes url and persists the outcome.
func (p *Poller) check(ctx context.Context, url string) outcome {
	log := p.logger.With(logger.String("url", url))

	start := p.now()
	err := p.probe(ctx, url)

	status := domain.StatusOK
	if err != nil {
		if ctx.Err() != nil {
			// Shutting down: the failure says nothing about the target.
			log.Debug("probe cancelled", logger.Error(err))
			return outcomeCancelled
		}
		status = domain.StatusFail
		log.Debug("probe failed", logger.Error(err))
	}

	if p.observer != nil {
		p.observer.Observe(ctx, domain.NewCheck(url, status, start, p.now().Sub(start), err))
	}

	if werr := p.registry.UpdateStatus(ctx, url, status); werr != nil {
		log.Warn("failed to record status",
			logger.String("status", status.String()),
			logger.Error(werr))
		return outcomeWriteError
	}
	if status == domain.StatusFail {
		return outcomeFail
	}
	return outcomeOK
}

// probe runs the prober and turns a panic into a probe failure.
func (p *Poller) probe(ctx context.Context, url string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &probe.Failure{URL: url, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return p.prober.Probe(ctx, url)
}

func (p *Poller) finish(res TickResult) TickResult {
	res.Duration = p.now().Sub(res.StartedAt)
	p.ticks.Add(1)

	p.mu.Lock()
	p.lastTick = res
	p.mu.Unlock()

	return res
}
