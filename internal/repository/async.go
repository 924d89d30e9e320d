package repository

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/istominvi/shaurmaniya/internal/cart"
	"github.com/istominvi/shaurmaniya/internal/entity"
)

// ErrPersisterClosed is returned by Save after Close.
var ErrPersisterClosed = errors.New("persister closed")

const asyncWriteTimeout = 5 * time.Second

// AsyncPersister makes saves fire-and-forget. Only the latest snapshot is
// kept while a write is pending, so a burst of mutations costs one write.
type AsyncPersister struct {
	next   cart.Persister
	logger *slog.Logger

	mu       sync.Mutex
	pending  *entity.Cart
	inflight *entity.Cart
	closed   bool

	wake chan struct{}
	done chan struct{}
}

// NewAsyncPersister starts a background writer in front of p.
func NewAsyncPersister(p cart.Persister, logger *slog.Logger) *AsyncPersister {
	if logger == nil {
		logger = slog.Default()
	}
	a := &AsyncPersister{
		next:   p,
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

// Load returns the newest unwritten snapshot if there is one.
func (a *AsyncPersister) Load(ctx context.Context) (*entity.Cart, error) {
	a.mu.Lock()
	latest := a.pending
	if latest == nil {
		latest = a.inflight
	}
	a.mu.Unlock()

	if latest != nil {
		c := *latest
		return &c, nil
	}
	return a.next.Load(ctx)
}

func (a *AsyncPersister) Save(_ context.Context, c entity.Cart) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrPersisterClosed
	}
	a.pending = &c
	select {
	case a.wake <- struct{}{}:
	default:
	}
	return nil
}

// Close flushes the pending snapshot and stops the writer.
func (a *AsyncPersister) Close(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.wake)
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *AsyncPersister) run() {
	defer close(a.done)
	for range a.wake {
		a.flush()
	}
}

func (a *AsyncPersister) flush() {
	a.mu.Lock()
	c := a.pending
	a.pending = nil
	a.inflight = c
	a.mu.Unlock()

	if c == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), asyncWriteTimeout)
	defer cancel()

	if err := a.next.Save(ctx, *c); err != nil {
		a.logger.Error("Failed to write cart snapshot", "err", err)
	}

	a.mu.Lock()
	a.inflight = nil
	a.mu.Unlock()
}
