package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MrSnakeDoc/heartbeat/internal/domain"
	"github.com/MrSnakeDoc/heartbeat/internal/postgres"
)

var (
	errUnsupportedStatement = errors.New("statement not supported by memory gateway")
	errDuplicateURL         = errors.New("duplicate key value violates unique constraint \"service_url_key\"")
)

// Batch is one BatchWrite call observed by the memory gateway.
type Batch struct {
	Query  string
	Params [][]any
}

// MemoryGateway is an in-memory Gateway that understands the registry's
// named statements. It backs the service table when no database is
// configured and stands in for PostgreSQL in tests.
type MemoryGateway struct {
	mu       sync.RWMutex
	queries  Queries
	services []domain.Service
	batches  []Batch
	failure  error
	now      func() time.Time
}

// NewMemoryGateway returns an empty gateway answering to queries.
func NewMemoryGateway(queries Queries) *MemoryGateway {
	return &MemoryGateway{
		queries: queries,
		now:     time.Now,
	}
}

// SetFailure makes every subsequent call fail with a storage error wrapping
// err. A nil err restores normal operation.
func (m *MemoryGateway) SetFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failure = err
}

// Batches returns the batch writes seen so far.
func (m *MemoryGateway) Batches() []Batch {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Batch, len(m.batches))
	copy(out, m.batches)
	return out
}

// Read implements Gateway.
func (m *MemoryGateway) Read(_ context.Context, query string, _ ...any) ([]postgres.Row, error) {
	if strings.TrimSpace(query) == "" {
		return nil, postgres.ErrInvalidQuery
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.failure != nil {
		return nil, &postgres.StorageError{Op: "read", Err: m.failure}
	}
	if !sameStatement(query, m.queries.SelectAll) {
		return nil, &postgres.StorageError{Op: "read", Err: errUnsupportedStatement}
	}

	rows := make([]postgres.Row, 0, len(m.services))
	for _, s := range m.services {
		rows = append(rows, postgres.Row{
			"name":   s.Name,
			"url":    s.URL,
			"status": string(s.Status),
			"date":   s.Date,
		})
	}
	return rows, nil
}

// Write implements Gateway.
func (m *MemoryGateway) Write(_ context.Context, query string, params ...any) (int64, error) {
	if strings.TrimSpace(query) == "" {
		return 0, postgres.ErrInvalidQuery
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failure != nil {
		return 0, &postgres.StorageError{Op: "write", Err: m.failure}
	}
	n, err := m.execLocked(query, params)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// BatchWrite implements Gateway. Like a database batch it is all or
// nothing: a failing entry leaves the table untouched.
func (m *MemoryGateway) BatchWrite(_ context.Context, query string, params [][]any) (int64, error) {
	if strings.TrimSpace(query) == "" {
		return 0, postgres.ErrInvalidQuery
	}
	if len(params) == 0 {
		return 0, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failure != nil {
		return 0, &postgres.StorageError{Op: "batch", Err: m.failure}
	}

	snapshot := make([]domain.Service, len(m.services))
	copy(snapshot, m.services)

	var total int64
	for i, p := range params {
		n, err := m.execLocked(query, p)
		if err != nil {
			m.services = snapshot
			return 0, &postgres.StorageError{Op: "batch", Err: fmt.Errorf("batch exec (command %d): %w", i, err)}
		}
		total += n
	}

	recorded := make([][]any, len(params))
	copy(recorded, params)
	m.batches = append(m.batches, Batch{Query: query, Params: recorded})

	return total, nil
}

// Ping implements the readiness probe.
func (m *MemoryGateway) Ping(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failure != nil {
		return &postgres.StorageError{Op: "ping", Err: m.failure}
	}
	return nil
}

func (m *MemoryGateway) execLocked(query string, params []any) (int64, error) {
	switch {
	case sameStatement(query, m.queries.Insert):
		name, url, status, err := insertParams(params)
		if err != nil {
			return 0, err
		}
		for _, s := range m.services {
			if s.URL == url {
				return 0, &postgres.StorageError{Op: "write", Code: "23505", Err: errDuplicateURL}
			}
		}
		m.services = append(m.services, domain.Service{
			Name:   name,
			URL:    url,
			Status: domain.ParseStatus(status),
			Date:   m.now(),
		})
		return 1, nil

	case sameStatement(query, m.queries.UpdateStatus):
		if len(params) != 2 {
			return 0, &postgres.StorageError{Op: "write", Err: fmt.Errorf("update expects 2 params, got %d", len(params))}
		}
		status, url := fmt.Sprint(params[0]), fmt.Sprint(params[1])
		var n int64
		for i := range m.services {
			if m.services[i].URL == url {
				m.services[i].Status = domain.ParseStatus(status)
				n++
			}
		}
		return n, nil

	case sameStatement(query, m.queries.Delete):
		if len(params) != 1 {
			return 0, &postgres.StorageError{Op: "write", Err: fmt.Errorf("delete expects 1 param, got %d", len(params))}
		}
		url := fmt.Sprint(params[0])
		kept := m.services[:0]
		var n int64
		for _, s := range m.services {
			if s.URL == url {
				n++
				continue
			}
			kept = append(kept, s)
		}
		m.services = kept
		return n, nil

	default:
		return 0, &postgres.StorageError{Op: "write", Err: errUnsupportedStatement}
	}
}

func insertParams(params []any) (name, url, status string, err error) {
	if len(params) != 3 {
		return "", "", "", &postgres.StorageError{Op: "write", Err: fmt.Errorf("insert expects 3 params, got %d", len(params))}
	}
	return fmt.Sprint(params[0]), fmt.Sprint(params[1]), fmt.Sprint(params[2]), nil
}

// sameStatement compares statements ignoring surrounding whitespace and the
// optional terminator.
func sameStatement(a, b string) bool {
	trim := func(s string) string { return strings.TrimSuffix(strings.TrimSpace(s), ";") }
	return trim(a) == trim(b)
}
