package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/heartbeat/internal/domain"
	"github.com/MrSnakeDoc/heartbeat/internal/logger"
	"github.com/MrSnakeDoc/heartbeat/internal/postgres"
)

var errDown = errors.New("connection refused")

func newTestRegistry(t *testing.T, opts Options) (*Registry, *MemoryGateway) {
	t.Helper()
	gw := NewMemoryGateway(DefaultQueries())
	return New(gw, DefaultQueries(), opts, logger.NewNop()), gw
}

func TestRegisterThenList(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t, Options{})

	pairs := []struct{ name, url string }{
		{"Example", "http://example.com"},
		{"Kry", "https://www.kry.se"},
		{"Local", "http://127.0.0.1:8080/health"},
	}
	for _, p := range pairs {
		require.NoError(t, reg.RegisterService(ctx, p.name, p.url))
	}

	services, err := reg.ListServices(ctx)
	require.NoError(t, err)
	require.Len(t, services, len(pairs))
	for i, p := range pairs {
		assert.Equal(t, p.name, services[i].Name)
		assert.Equal(t, p.url, services[i].URL)
		assert.Equal(t, domain.StatusUnknown, services[i].Status)
		assert.False(t, services[i].Date.IsZero())
	}
}

func TestRegisterDuplicateURLIsStorageError(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t, Options{})

	require.NoError(t, reg.RegisterService(ctx, "Example", "http://example.com"))
	err := reg.RegisterService(ctx, "Again", "http://example.com")
	require.Error(t, err)

	var se *postgres.StorageError
	require.ErrorAs(t, err, &se)
	assert.True(t, se.Constraint())
}

func TestListServicesFailure(t *testing.T) {
	reg, gw := newTestRegistry(t, Options{})
	gw.SetFailure(errDown)

	services, err := reg.ListServices(context.Background())
	require.Error(t, err)
	assert.Nil(t, services)
	assert.ErrorAs(t, err, new(*postgres.StorageError))
	assert.ErrorIs(t, err, errDown)
}

func TestRecordStatus(t *testing.T) {
	ctx := context.Background()
	reg, gw := newTestRegistry(t, Options{})
	require.NoError(t, reg.RegisterService(ctx, "Example", "http://example.com"))

	n, err := reg.RecordStatus(ctx, "http://example.com", domain.StatusOK)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	services, err := reg.ListServices(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOK, services[0].Status)

	gw.SetFailure(errDown)
	_, err = reg.RecordStatus(ctx, "http://example.com", domain.StatusFail)
	assert.ErrorAs(t, err, new(*postgres.StorageError))
}

func TestDeleteServices(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t, Options{})
	require.NoError(t, reg.RegisterService(ctx, "A", "http://a.example.com"))
	require.NoError(t, reg.RegisterService(ctx, "B", "http://b.example.com"))

	n, err := reg.DeleteServices(ctx, []string{"http://a.example.com", "http://missing.example.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = reg.DeleteServices(ctx, []string{"http://nope.example.com"})
	require.NoError(t, err, "unknown urls are a zero-count success")
	assert.Zero(t, n)

	services, err := reg.ListServices(ctx)
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, "http://b.example.com", services[0].URL)
}

func TestDeleteServicesFailure(t *testing.T) {
	reg, gw := newTestRegistry(t, Options{})
	gw.SetFailure(errDown)

	_, err := reg.DeleteServices(context.Background(), []string{"http://a.example.com"})
	assert.ErrorAs(t, err, new(*postgres.StorageError))
}

func TestEnqueueStatus_FlushesAtThreshold(t *testing.T) {
	ctx := context.Background()
	reg, gw := newTestRegistry(t, Options{Mode: ModeQueued, BatchSize: 100})

	for i := 0; i < 100; i++ {
		require.NoError(t, reg.RegisterService(ctx, fmt.Sprintf("svc%d", i), fmt.Sprintf("http://svc%d.example.com", i)))
	}

	for i := 0; i < 99; i++ {
		p := reg.EnqueueStatus(ctx, fmt.Sprintf("http://svc%d.example.com", i), domain.StatusOK)
		select {
		case <-p.Done():
		default:
			t.Fatalf("enqueue %d should resolve immediately", i)
		}
		assert.False(t, p.Flushed())
		assert.NoError(t, p.Err())
	}
	assert.Empty(t, gw.Batches())
	assert.Equal(t, 99, reg.QueueLen())

	p := reg.EnqueueStatus(ctx, "http://svc99.example.com", domain.StatusFail)
	assert.True(t, p.Flushed())
	require.NoError(t, p.Wait(ctx))
	assert.Equal(t, int64(100), p.Rows())
	assert.Equal(t, 0, reg.QueueLen())

	batches := gw.Batches()
	require.Len(t, batches, 1)
	require.Len(t, batches[0].Params, 100)
	for i, params := range batches[0].Params {
		assert.Equal(t, fmt.Sprintf("http://svc%d.example.com", i), params[1], "entry %d out of order", i)
	}
	assert.Equal(t, string(domain.StatusFail), batches[0].Params[99][0])

	services, err := reg.ListServices(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOK, services[0].Status)
	assert.Equal(t, domain.StatusFail, services[99].Status)
}

func TestEnqueueStatus_FlushFailureResolvesWithError(t *testing.T) {
	ctx := context.Background()
	reg, gw := newTestRegistry(t, Options{Mode: ModeQueued, BatchSize: 2})
	gw.SetFailure(errDown)

	reg.EnqueueStatus(ctx, "http://a.example.com", domain.StatusOK)
	p := reg.EnqueueStatus(ctx, "http://b.example.com", domain.StatusOK)

	err := p.Wait(ctx)
	require.Error(t, err)
	assert.ErrorAs(t, err, new(*postgres.StorageError))
	assert.Equal(t, 0, reg.QueueLen(), "a failed batch is not re-queued")
}

func TestEnqueueStatus_SurvivesCallerCancellation(t *testing.T) {
	reg, gw := newTestRegistry(t, Options{Mode: ModeQueued, BatchSize: 1})
	require.NoError(t, reg.RegisterService(context.Background(), "A", "http://a.example.com"))

	ctx, cancel := context.WithCancel(context.Background())
	p := reg.EnqueueStatus(ctx, "http://a.example.com", domain.StatusOK)
	cancel()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	require.NoError(t, p.Wait(waitCtx))
	assert.Len(t, gw.Batches(), 1)
}

func TestEnqueueStatus_ConcurrentNeverDoubleFlushes(t *testing.T) {
	const (
		producers   = 10
		perProducer = 55
		batchSize   = 25
	)
	ctx := context.Background()
	reg, gw := newTestRegistry(t, Options{Mode: ModeQueued, BatchSize: batchSize})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		pending []*Pending
	)
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				res := reg.EnqueueStatus(ctx, fmt.Sprintf("http://p%d-%d.example.com", p, i), domain.StatusOK)
				mu.Lock()
				pending = append(pending, res)
				mu.Unlock()
			}
		}(p)
	}
	wg.Wait()

	for _, p := range pending {
		require.NoError(t, p.Wait(ctx))
	}

	total := producers * perProducer
	batches := gw.Batches()
	assert.Len(t, batches, total/batchSize)
	assert.Equal(t, total%batchSize, reg.QueueLen())

	seen := map[string]bool{}
	for _, b := range batches {
		require.Len(t, b.Params, batchSize)
		for _, params := range b.Params {
			url := params[1].(string)
			assert.False(t, seen[url], "%s flushed twice", url)
			seen[url] = true
		}
	}
}

func TestFlushDrainsRemainder(t *testing.T) {
	ctx := context.Background()
	reg, gw := newTestRegistry(t, Options{Mode: ModeQueued, BatchSize: 10})
	require.NoError(t, reg.RegisterService(ctx, "A", "http://a.example.com"))

	for i := 0; i < 3; i++ {
		reg.EnqueueStatus(ctx, "http://a.example.com", domain.StatusFail)
	}
	require.NoError(t, reg.Flush(ctx))
	assert.Equal(t, 0, reg.QueueLen())

	batches := gw.Batches()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0].Params, 3)

	require.NoError(t, reg.Flush(ctx), "flushing an empty queue is a no-op")
	assert.Len(t, gw.Batches(), 1)
}

func TestUpdateStatusRoutesByMode(t *testing.T) {
	ctx := context.Background()

	immediate, igw := newTestRegistry(t, Options{})
	require.NoError(t, immediate.RegisterService(ctx, "A", "http://a.example.com"))
	require.NoError(t, immediate.UpdateStatus(ctx, "http://a.example.com", domain.StatusOK))
	assert.Empty(t, igw.Batches())
	services, _ := immediate.ListServices(ctx)
	assert.Equal(t, domain.StatusOK, services[0].Status)

	queued, qgw := newTestRegistry(t, Options{Mode: ModeQueued, BatchSize: 5})
	require.NoError(t, queued.RegisterService(ctx, "A", "http://a.example.com"))
	require.NoError(t, queued.UpdateStatus(ctx, "http://a.example.com", domain.StatusOK))
	assert.Equal(t, 1, queued.QueueLen())
	assert.Empty(t, qgw.Batches())
	services, _ = queued.ListServices(ctx)
	assert.Equal(t, domain.StatusUnknown, services[0].Status)
}

func TestNewDefaults(t *testing.T) {
	reg, _ := newTestRegistry(t, Options{Mode: "bogus"})
	assert.Equal(t, ModeImmediate, reg.Mode())
	assert.Equal(t, DefaultFlushTimeout, reg.flushTimeout)
	assert.Equal(t, 100, reg.BatchSize())
}

// gatedGateway holds the first BatchWrite until release is closed.
type gatedGateway struct {
	*MemoryGateway
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedGateway() *gatedGateway {
	return &gatedGateway{
		MemoryGateway: NewMemoryGateway(DefaultQueries()),
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
}

func (g *gatedGateway) BatchWrite(ctx context.Context, query string, params [][]any) (int64, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.MemoryGateway.BatchWrite(ctx, query, params)
}

func TestEnqueueStatus_SlowBatchDoesNotOverwriteNewerStatus(t *testing.T) {
	ctx := context.Background()
	gw := newGatedGateway()
	reg := New(gw, DefaultQueries(), Options{Mode: ModeQueued, BatchSize: 1}, logger.NewNop())
	require.NoError(t, reg.RegisterService(ctx, "A", "http://a.example.com"))

	older := reg.EnqueueStatus(ctx, "http://a.example.com", domain.StatusOK)
	<-gw.entered
	newer := reg.EnqueueStatus(ctx, "http://a.example.com", domain.StatusFail)

	select {
	case <-newer.Done():
		t.Fatal("newer batch was written before the older one finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(gw.release)
	require.NoError(t, older.Wait(ctx))
	require.NoError(t, newer.Wait(ctx))

	services, err := reg.ListServices(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFail, services[0].Status)

	batches := gw.Batches()
	require.Len(t, batches, 2)
	assert.Equal(t, string(domain.StatusOK), batches[0].Params[0][0])
	assert.Equal(t, string(domain.StatusFail), batches[1].Params[0][0])
}

func TestFlushWaitsForBatchesInFlight(t *testing.T) {
	ctx := context.Background()
	gw := newGatedGateway()
	reg := New(gw, DefaultQueries(), Options{Mode: ModeQueued, BatchSize: 2}, logger.NewNop())
	require.NoError(t, reg.RegisterService(ctx, "A", "http://a.example.com"))

	reg.EnqueueStatus(ctx, "http://a.example.com", domain.StatusOK)
	reg.EnqueueStatus(ctx, "http://a.example.com", domain.StatusOK)
	<-gw.entered
	reg.EnqueueStatus(ctx, "http://a.example.com", domain.StatusFail)

	flushed := make(chan error, 1)
	go func() { flushed <- reg.Flush(ctx) }()

	select {
	case err := <-flushed:
		t.Fatalf("Flush returned before the batch in flight: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(gw.release)
	require.NoError(t, <-flushed)

	services, err := reg.ListServices(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFail, services[0].Status)
	assert.Len(t, gw.Batches(), 2)
}

func TestFlushDeadlineKeepsOrder(t *testing.T) {
	ctx := context.Background()
	gw := newGatedGateway()
	reg := New(gw, DefaultQueries(), Options{Mode: ModeQueued, BatchSize: 1}, logger.NewNop())
	require.NoError(t, reg.RegisterService(ctx, "A", "http://a.example.com"))

	older := reg.EnqueueStatus(ctx, "http://a.example.com", domain.StatusOK)
	<-gw.entered

	flushCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, reg.Flush(flushCtx), context.DeadlineExceeded)

	newer := reg.EnqueueStatus(ctx, "http://a.example.com", domain.StatusFail)
	close(gw.release)
	require.NoError(t, older.Wait(ctx))
	require.NoError(t, newer.Wait(ctx))

	services, err := reg.ListServices(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFail, services[0].Status)
}
