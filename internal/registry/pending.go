package registry

import (
	"context"
	"sync"
)

// Pending is the eventual outcome of an enqueued status update. It resolves
// immediately when the enqueue did not trigger a flush, otherwise when the
// triggered batch write completes.
type Pending struct {
	done    chan struct{}
	once    sync.Once
	flushed bool
	rows    int64
	err     error
}

func newPending(flushed bool) *Pending {
	return &Pending{done: make(chan struct{}), flushed: flushed}
}

func resolvedPending() *Pending {
	p := newPending(false)
	p.resolve(0, nil)
	return p
}

func (p *Pending) resolve(rows int64, err error) {
	p.once.Do(func() {
		p.rows = rows
		p.err = err
		close(p.done)
	})
}

// Done is closed once the outcome is known.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the outcome is known or ctx ends.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flushed reports whether this enqueue triggered a batch write.
func (p *Pending) Flushed() bool { return p.flushed }

// Rows returns the rows updated by the triggered flush. Valid after Done.
func (p *Pending) Rows() int64 {
	<-p.done
	return p.rows
}

// Err returns the flush error. Valid after Done.
func (p *Pending) Err() error {
	<-p.done
	return p.err
}
