package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/istominvi/shaurmaniya/internal/cart"
	"github.com/istominvi/shaurmaniya/internal/checkout"
	"github.com/istominvi/shaurmaniya/internal/repository"
)

// session owns the cart engine of one visitor. The engine is single-owner,
// so every access goes through mu, including the delayed post-checkout clear.
// Checkout takes mu only to read the cart, so the cart stays readable while an
// order is in flight.
type session struct {
	mu       sync.Mutex
	cart     *cart.Store
	checkout *checkout.Service
	async    *repository.AsyncPersister
	lastSeen time.Time
}

func (s *Storefront) session(ctx context.Context, id string) (*session, error) {
	if !repository.ValidSessionID(id) {
		return nil, ErrInvalidSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		sess.lastSeen = s.now()
		return sess, nil
	}

	logger := s.logger.With("session", id)
	sess := &session{lastSeen: s.now()}

	var persister cart.Persister = repository.Bind(s.repo, id)
	if s.opts.AsyncWrites {
		sess.async = repository.NewAsyncPersister(persister, logger)
		persister = sess.async
	}

	sess.cart = cart.Open(ctx,
		cart.WithPersister(persister),
		cart.WithDeliveryFee(s.opts.DeliveryFee),
		cart.WithLogger(logger),
	)
	sess.checkout = checkout.NewService(sess.cart, s.sink, checkout.Options{
		RequireAck: s.opts.RequireAck,
		ClearDelay: s.opts.ClearDelay,
		Schedule:   s.lockedSchedule(sess),
		CartLock:   &sess.mu,
		Logger:     logger,
	})

	s.sessions[id] = sess
	logger.Debug("Session opened", "items", sess.cart.Len())
	return sess, nil
}

func (s *Storefront) lockedSchedule(sess *session) func(time.Duration, func()) {
	return func(d time.Duration, fn func()) {
		s.opts.Schedule(d, func() {
			sess.mu.Lock()
			defer sess.mu.Unlock()
			fn()
		})
	}
}

func (s *Storefront) withSession(ctx context.Context, id string, fn func(*session) error) error {
	sess, err := s.session(ctx, id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return fn(sess)
}

// EvictIdle drops sessions untouched for longer than idle whose checkout is
// not in flight. Their carts stay in the repository and are rehydrated on the
// next request, except carts holding neither items nor a location, whose
// snapshots are deleted.
func (s *Storefront) EvictIdle(ctx context.Context, idle time.Duration) int {
	cutoff := s.now().Add(-idle)

	type evictedSession struct {
		id      string
		sess    *session
		discard bool
	}

	s.mu.Lock()
	var evicted []evictedSession
	for id, sess := range s.sessions {
		if !sess.mu.TryLock() {
			continue
		}
		if sess.lastSeen.Before(cutoff) && sess.checkout.State() == checkout.StateIdle {
			delete(s.sessions, id)
			discard := sess.cart.Len() == 0 && sess.cart.Location() == nil
			evicted = append(evicted, evictedSession{id: id, sess: sess, discard: discard})
		}
		sess.mu.Unlock()
	}
	s.mu.Unlock()

	for _, e := range evicted {
		e.sess.closePersister(ctx, s.logger)
		if !e.discard {
			continue
		}
		if err := s.repo.Delete(ctx, e.id); err != nil {
			s.logger.Error("Failed to delete empty cart", "session", e.id, "err", err)
		}
	}
	if len(evicted) > 0 {
		s.logger.Info("Evicted idle sessions", "count", len(evicted))
	}
	return len(evicted)
}

func (sess *session) closePersister(ctx context.Context, logger *slog.Logger) {
	if sess.async == nil {
		return
	}
	if err := sess.async.Close(ctx); err != nil {
		logger.Error("Failed to flush cart writes", "err", err)
	}
}
