package connect

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/heartbeat/internal/logger"
)

// Options defines how long and how often a backend is pinged before startup
// gives up on it.
type Options struct {
	Name          string        // backend label used in logs (ex: "postgres")
	Addr          string        // redacted address used in logs
	Timeout       time.Duration // total time allowed for connection attempts (ex: 30s)
	RetryInterval time.Duration // initial wait between retries, doubles each attempt
	MaxWait       time.Duration // cap on the wait between retries
	PingTimeout   time.Duration // timeout for each ping attempt
	WarnThreshold int           // attempts logged at warn before escalating to error
}

// PingFunc checks whether the backend answers.
type PingFunc func(ctx context.Context) error

// Validate ensures the retry policy is usable.
func (o Options) Validate() error {
	if o.Timeout <= 0 {
		return fmt.Errorf("%s: connect timeout must be > 0, got %v", o.Name, o.Timeout)
	}
	if o.RetryInterval <= 0 {
		return fmt.Errorf("%s: retry interval must be > 0, got %v", o.Name, o.RetryInterval)
	}
	if o.MaxWait <= 0 {
		return fmt.Errorf("%s: max wait must be > 0, got %v", o.Name, o.MaxWait)
	}
	if o.PingTimeout <= 0 {
		return fmt.Errorf("%s: ping timeout must be > 0, got %v", o.Name, o.PingTimeout)
	}
	if o.WarnThreshold < 0 {
		return fmt.Errorf("%s: warn threshold must be >= 0, got %d", o.Name, o.WarnThreshold)
	}
	return nil
}

// WithRetry pings until the backend answers or opts.Timeout elapses,
// backing off exponentially between attempts. It returns the number of
// attempts made.
func WithRetry(ctx context.Context, opts Options, ping PingFunc, log logger.Logger) (int, error) {
	if err := opts.Validate(); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	log.Info("connecting",
		logger.String("backend", opts.Name),
		logger.String("addr", opts.Addr),
		logger.Duration("timeout", opts.Timeout))

	start := time.Now()
	wait := opts.RetryInterval
	attempt := 0

	for {
		attempt++

		pingCtx, pingCancel := context.WithTimeout(ctx, opts.PingTimeout)
		err := ping(pingCtx)
		pingCancel()

		if err == nil {
			logSuccess(log, opts, attempt, time.Since(start))
			return attempt, nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Error("backend unavailable after timeout",
				logger.String("backend", opts.Name),
				logger.String("addr", opts.Addr),
				logger.Int("attempts", attempt),
				logger.Duration("timeout", opts.Timeout),
				logger.Error(err))
			return attempt, fmt.Errorf("%s unavailable at %s after %d attempts (timeout: %v): %w",
				opts.Name, opts.Addr, attempt, opts.Timeout, err)

		case <-timer.C:
			logRetry(log, opts, attempt, timeLeft(ctx), wait, err)
			wait *= 2
			if wait > opts.MaxWait {
				wait = opts.MaxWait
			}
		}
	}
}

func logSuccess(log logger.Logger, opts Options, attempts int, elapsed time.Duration) {
	if attempts > 1 {
		log.Warn("connected after retry",
			logger.String("backend", opts.Name),
			logger.String("addr", opts.Addr),
			logger.Int("attempts", attempts),
			logger.Duration("elapsed", elapsed))
		return
	}
	log.Info("connected",
		logger.String("backend", opts.Name),
		logger.String("addr", opts.Addr))
}

func logRetry(log logger.Logger, opts Options, attempt int, remaining, nextRetry time.Duration, err error) {
	switch {
	case remaining < 10*time.Second:
		log.Error("backend still down, timeout approaching",
			logger.String("backend", opts.Name),
			logger.Int("attempt", attempt),
			logger.Duration("remaining", remaining),
			logger.Duration("next_retry_in", nextRetry),
			logger.Error(err))
	case attempt <= opts.WarnThreshold:
		log.Warn("connection failed, retrying",
			logger.String("backend", opts.Name),
			logger.Int("attempt", attempt),
			logger.Duration("next_retry_in", nextRetry),
			logger.Error(err))
	default:
		log.Error("backend still unavailable",
			logger.String("backend", opts.Name),
			logger.Int("attempt", attempt),
			logger.Duration("next_retry_in", nextRetry),
			logger.Error(err))
	}
}

// timeLeft returns the remaining time before the context deadline.
func timeLeft(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0
	}
	return time.Until(deadline)
}
