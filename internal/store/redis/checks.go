package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/heartbeat/internal/domain"
	"github.com/MrSnakeDoc/heartbeat/internal/logger"
)

// DefaultCheckTTL is how long an observation survives without a newer probe.
const DefaultCheckTTL = 24 * time.Hour

// ErrCheckNotFound is returned when no observation exists for a URL.
var ErrCheckNotFound = errors.New("check not found")

// Store keeps the last probe observation per service URL.
type Store struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger logger.Logger
}

// NewStore creates a new Redis check store
func NewStore(client redis.UniversalClient, ttl time.Duration, log logger.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultCheckTTL
	}
	return &Store{
		client: client,
		ttl:    ttl,
		logger: log,
	}
}

// SaveCheck stores an observation and indexes its URL.
func (s *Store) SaveCheck(ctx context.Context, check domain.Check) error {
	data, err := encodeCheck(check)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, CheckKey(check.URL), data, s.ttl)
		pipe.SAdd(ctx, AllChecksKey(), check.URL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save check: %w", err)
	}
	return nil
}

// Observe records a probe observation. Failures are logged, never returned:
// the cache must not interfere with status persistence.
func (s *Store) Observe(ctx context.Context, check domain.Check) {
	if err := s.SaveCheck(ctx, check); err != nil {
		s.logger.Warn("failed to cache probe observation",
			logger.String("url", check.URL),
			logger.Error(err))
	}
}

// GetCheck retrieves the observation for url.
func (s *Store) GetCheck(ctx context.Context, url string) (*domain.Check, error) {
	data, err := s.client.Get(ctx, CheckKey(url)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrCheckNotFound, url)
		}
		return nil, fmt.Errorf("failed to get check: %w", err)
	}

	check, err := decodeCheck(data)
	if err != nil {
		return nil, err
	}
	return &check, nil
}

// GetAllChecks retrieves every live observation, ordered by URL. Index
// entries whose observation expired are pruned.
func (s *Store) GetAllChecks(ctx context.Context) ([]domain.Check, error) {
	urls, err := s.client.SMembers(ctx, AllChecksKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get check index: %w", err)
	}
	if len(urls) == 0 {
		return []domain.Check{}, nil
	}
	sort.Strings(urls)

	keys := make([]string, len(urls))
	for i, u := range urls {
		keys[i] = CheckKey(u)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get checks: %w", err)
	}

	checks, stale := collectChecks(urls, values)
	for _, u := range stale {
		s.logger.Debug("dropping expired check from index", logger.String("url", u))
	}
	if len(stale) > 0 {
		members := make([]interface{}, len(stale))
		for i, u := range stale {
			members[i] = u
		}
		if err := s.client.SRem(ctx, AllChecksKey(), members...).Err(); err != nil {
			s.logger.Warn("failed to prune check index", logger.Error(err))
		}
	}

	return checks, nil
}

// DeleteChecks removes the observations of urls.
func (s *Store) DeleteChecks(ctx context.Context, urls []string) error {
	if len(urls) == 0 {
		return nil
	}

	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		members := make([]interface{}, len(urls))
		for i, u := range urls {
			pipe.Del(ctx, CheckKey(u))
			members[i] = u
		}
		pipe.SRem(ctx, AllChecksKey(), members...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete checks: %w", err)
	}
	return nil
}

// Ping checks that Redis answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func encodeCheck(check domain.Check) ([]byte, error) {
	data, err := json.Marshal(check)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal check: %w", err)
	}
	return data, nil
}

func decodeCheck(data []byte) (domain.Check, error) {
	var check domain.Check
	if err := json.Unmarshal(data, &check); err != nil {
		return domain.Check{}, fmt.Errorf("failed to unmarshal check: %w", err)
	}
	check.Latency = time.Duration(check.LatencyMS) * time.Millisecond
	return check, nil
}

// collectChecks pairs MGET results with their URLs. Missing or undecodable
// values are reported as stale.
func collectChecks(urls []string, values []interface{}) ([]domain.Check, []string) {
	checks := make([]domain.Check, 0, len(values))
	var stale []string
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, urls[i])
			continue
		}
		check, err := decodeCheck([]byte(raw))
		if err != nil {
			stale = append(stale, urls[i])
			continue
		}
		checks = append(checks, check)
	}
	return checks, stale
}
