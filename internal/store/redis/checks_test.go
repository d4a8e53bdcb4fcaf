package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/heartbeat/internal/domain"
	"github.com/MrSnakeDoc/heartbeat/internal/logger"
)

func TestCheckKeys(t *testing.T) {
	key := CheckKey("https://example.com/health")
	if key != "heartbeat:check:https://example.com/health" {
		t.Errorf("CheckKey() = %q", key)
	}

	if AllChecksKey() != "heartbeat:checks:all" {
		t.Errorf("AllChecksKey() = %q", AllChecksKey())
	}
}

func TestEncodeDecodeRestoresLatency(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	in := domain.NewCheck("https://example.com", domain.StatusFail, at, 1500*time.Millisecond, errors.New("timeout"))

	data, err := encodeCheck(in)
	if err != nil {
		t.Fatalf("encodeCheck() error = %v", err)
	}
	out, err := decodeCheck(data)
	if err != nil {
		t.Fatalf("decodeCheck() error = %v", err)
	}

	if out.Latency != 1500*time.Millisecond || out.Error != "timeout" || !out.CheckedAt.Equal(at) {
		t.Errorf("decodeCheck() = %+v", out)
	}
}

func TestCollectChecks(t *testing.T) {
	good, _ := encodeCheck(domain.Check{URL: "https://a.example.com", Status: domain.StatusOK})

	checks, stale := collectChecks(
		[]string{"https://a.example.com", "https://b.example.com", "https://c.example.com"},
		[]interface{}{string(good), nil, "{not json"},
	)

	if len(checks) != 1 || checks[0].URL != "https://a.example.com" {
		t.Errorf("checks = %+v", checks)
	}
	if len(stale) != 2 || stale[0] != "https://b.example.com" || stale[1] != "https://c.example.com" {
		t.Errorf("stale = %v", stale)
	}
}

func TestStoreUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	s := NewStore(client, 0, logger.NewNop())
	if s.ttl != DefaultCheckTTL {
		t.Errorf("ttl = %v, want %v", s.ttl, DefaultCheckTTL)
	}

	ctx := context.Background()
	if err := s.SaveCheck(ctx, domain.Check{URL: "https://a.example.com"}); err == nil {
		t.Error("SaveCheck() against unreachable redis should fail")
	}
	if _, err := s.GetCheck(ctx, "https://a.example.com"); err == nil || errors.Is(err, ErrCheckNotFound) {
		t.Errorf("GetCheck() against unreachable redis = %v, want a connection error", err)
	}
	if _, err := s.GetAllChecks(ctx); err == nil {
		t.Error("GetAllChecks() against unreachable redis should fail")
	}
	if err := s.DeleteChecks(ctx, nil); err != nil {
		t.Errorf("DeleteChecks(nil) = %v, want nil", err)
	}

	// Observe swallows the error.
	s.Observe(ctx, domain.Check{URL: "https://a.example.com"})
}
