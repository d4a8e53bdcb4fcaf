package postgres

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrSnakeDoc/heartbeat/internal/logger"
)

// Row is one result row keyed by column name.
type Row map[string]any

type dbPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
	Close()
}

// batchConn is a single pooled connection dedicated to one batch.
type batchConn interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Release()
}

// Gateway runs parameterized statements against the pool and converts every
// failure into ErrInvalidQuery or a *StorageError.
//
// Gateway is safe for concurrent use; the pool is shared by all callers.
type Gateway struct {
	db      dbPool
	acquire func(ctx context.Context) (batchConn, error)
	log     logger.Logger
}

// New wraps a pgx pool.
func New(pool *pgxpool.Pool, log logger.Logger) *Gateway {
	return newGateway(pool, func(ctx context.Context) (batchConn, error) {
		conn, err := pool.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}, log)
}

func newGateway(db dbPool, acquire func(ctx context.Context) (batchConn, error), log logger.Logger) *Gateway {
	return &Gateway{db: db, acquire: acquire, log: log}
}

// Read runs a query and returns every row.
func (g *Gateway) Read(ctx context.Context, query string, params ...any) ([]Row, error) {
	q, err := normalize(query)
	if err != nil {
		return nil, err
	}

	rows, err := g.db.Query(ctx, q, params...)
	if err != nil {
		return nil, storageError("read", err)
	}

	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, storageError("read", err)
	}

	out := make([]Row, len(maps))
	for i, m := range maps {
		out[i] = m
	}
	return out, nil
}

// Write runs one statement and returns the number of affected rows.
func (g *Gateway) Write(ctx context.Context, query string, params ...any) (int64, error) {
	q, err := normalize(query)
	if err != nil {
		return 0, err
	}

	tag, err := g.db.Exec(ctx, q, params...)
	if err != nil {
		return 0, storageError("write", err)
	}
	return tag.RowsAffected(), nil
}

// BatchWrite runs query once per params entry on a single connection and
// returns the summed affected rows. The connection is released whatever the
// outcome.
func (g *Gateway) BatchWrite(ctx context.Context, query string, params [][]any) (int64, error) {
	q, err := normalize(query)
	if err != nil {
		return 0, err
	}
	if len(params) == 0 {
		return 0, nil
	}

	conn, err := g.acquire(ctx)
	if err != nil {
		return 0, storageError("batch", err)
	}
	defer conn.Release()

	batch := &pgx.Batch{}
	for _, p := range params {
		batch.Queue(q, p...)
	}

	total, err := sendBatchExecAll(ctx, batch, conn.SendBatch, g.log)
	if err != nil {
		return 0, storageError("batch", err)
	}
	return total, nil
}

// Ping checks that a connection can be obtained.
func (g *Gateway) Ping(ctx context.Context) error {
	if err := g.db.Ping(ctx); err != nil {
		return storageError("ping", err)
	}
	return nil
}

// Close closes the pool.
func (g *Gateway) Close() {
	g.db.Close()
}

// normalize rejects empty statements and appends a missing terminator.
func normalize(query string) (string, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return "", ErrInvalidQuery
	}
	if !strings.HasSuffix(q, ";") {
		q += ";"
	}
	return q, nil
}
