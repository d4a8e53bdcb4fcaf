package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/MrSnakeDoc/heartbeat/internal/domain"
)

type fakeCheckStore struct {
	mu      sync.Mutex
	checks  []domain.Check
	deleted []string
	err     error
}

func (f *fakeCheckStore) GetAllChecks(context.Context) ([]domain.Check, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.checks, nil
}

func (f *fakeCheckStore) DeleteChecks(_ context.Context, urls []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, urls...)
	return nil
}

func TestGarbageCollector_Collect(t *testing.T) {
	now := time.Now()
	reg := newFakeRegistry("https://active.example.com", "https://old.example.com")
	store := &fakeCheckStore{checks: []domain.Check{
		{URL: "https://active.example.com", CheckedAt: now.Add(-time.Minute)},
		{URL: "https://old.example.com", CheckedAt: now.Add(-10 * 24 * time.Hour)},
		{URL: "https://removed.example.com", CheckedAt: now},
	}}

	gc := NewGarbageCollector(reg, store, testLogger(), time.Hour, 7*24*time.Hour)
	gc.now = func() time.Time { return now }

	n, err := gc.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Collect() = %d, want 2", n)
	}

	sort.Strings(store.deleted)
	want := []string{"https://old.example.com", "https://removed.example.com"}
	if len(store.deleted) != 2 || store.deleted[0] != want[0] || store.deleted[1] != want[1] {
		t.Errorf("deleted = %v, want %v", store.deleted, want)
	}
}

func TestGarbageCollector_NothingToCollect(t *testing.T) {
	reg := newFakeRegistry("https://active.example.com")
	store := &fakeCheckStore{checks: []domain.Check{{URL: "https://active.example.com", CheckedAt: time.Now()}}}

	gc := NewGarbageCollector(reg, store, testLogger(), 0, 0)
	n, err := gc.Collect(context.Background())
	if err != nil || n != 0 || len(store.deleted) != 0 {
		t.Errorf("Collect() = %d, %v, deleted %v", n, err, store.deleted)
	}
	if gc.interval != DefaultGCInterval || gc.threshold != DefaultGCThreshold {
		t.Errorf("defaults not applied: %v %v", gc.interval, gc.threshold)
	}
}

func TestGarbageCollector_ListFailureDeletesNothing(t *testing.T) {
	reg := newFakeRegistry()
	reg.listErr = errListFailed
	store := &fakeCheckStore{checks: []domain.Check{{URL: "https://a.example.com"}}}

	gc := NewGarbageCollector(reg, store, testLogger(), time.Hour, time.Hour)
	if _, err := gc.Collect(context.Background()); !errors.Is(err, errListFailed) {
		t.Errorf("Collect() error = %v, want list failure", err)
	}
	if len(store.deleted) != 0 {
		t.Errorf("deleted %v after a failed listing", store.deleted)
	}
}

func TestGarbageCollector_StartStop(t *testing.T) {
	reg := newFakeRegistry()
	store := &fakeCheckStore{checks: []domain.Check{{URL: "https://gone.example.com"}}}

	gc := NewGarbageCollector(reg, store, testLogger(), time.Hour, time.Hour)
	if err := gc.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	gc.Stop()
	gc.Stop()

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.deleted) != 1 {
		t.Errorf("initial collection deleted %v, want the orphan", store.deleted)
	}
}
