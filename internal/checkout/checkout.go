// Package checkout turns the final cart state and the contact form into an
// order payload and hands it to an external order sink.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/istominvi/shaurmaniya/internal/entity"
)

// DefaultClearDelay is how long the confirmation is shown before the cart resets.
const DefaultClearDelay = 2 * time.Second

var validate = validator.New()

// Cart is the part of the cart store checkout needs.
type Cart interface {
	Snapshot() entity.Cart
	ClearCart()
}

// Receipt describes what the sink reported for a write. Opaque receipts carry
// no usable status: the write was attempted and nothing more is known.
type Receipt struct {
	StatusCode int
	Opaque     bool
}

// Sink is the outbound order channel.
type Sink interface {
	Send(ctx context.Context, payload entity.OrderPayload) (Receipt, error)
}

// State is the submission state shown to the customer.
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateSucceeded
)

func (s State) String() string {
	switch s {
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	default:
		return "idle"
	}
}

// Result describes an accepted submission.
type Result struct {
	Payload  entity.OrderPayload
	Receipt  Receipt
	ClearsAt time.Time
}

// Options configures a Service.
type Options struct {
	// RequireAck treats only 2xx receipts as success. When false any
	// completed write is a success, including opaque ones.
	RequireAck bool
	ClearDelay time.Duration
	// Schedule runs fn after d. It must serialize fn with every other user of
	// the cart. Defaults to time.AfterFunc.
	Schedule func(d time.Duration, fn func())
	// CartLock, when set, is held while the cart is read. It is never held
	// during the sink round-trip.
	CartLock sync.Locker
	Logger   *slog.Logger
}

// Service runs the checkout flow for one cart.
type Service struct {
	cart Cart
	sink Sink
	opts Options

	mu    sync.Mutex
	state State
}

// NewService creates a checkout Service.
func NewService(cart Cart, sink Sink, opts Options) *Service {
	if opts.ClearDelay <= 0 {
		opts.ClearDelay = DefaultClearDelay
	}
	if opts.Schedule == nil {
		opts.Schedule = func(d time.Duration, fn func()) { time.AfterFunc(d, fn) }
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{cart: cart, sink: sink, opts: opts}
}

// State returns the current submission state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Submit validates the form, dispatches the order and, on success, schedules
// the cart to be cleared after the confirmation delay. On a dispatch failure
// the state reverts to idle so the customer can resubmit.
func (s *Service) Submit(ctx context.Context, form Form) (*Result, error) {
	if !form.PolicyAccepted {
		return nil, ErrPolicyNotAccepted
	}
	form = form.normalized()
	if err := validate.Struct(form); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidForm, err)
	}

	snapshot := s.snapshot()

	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return nil, ErrSubmissionInProgress
	}
	if len(snapshot.Items) == 0 {
		s.mu.Unlock()
		return nil, ErrEmptyCart
	}
	s.state = StateSubmitting
	s.mu.Unlock()

	payload := BuildPayload(snapshot, form)
	logger := s.opts.Logger.With("total", payload.Total, "items", len(snapshot.Items))
	logger.Info("Submitting order")

	receipt, err := s.sink.Send(ctx, payload)
	if err == nil {
		err = s.checkReceipt(receipt)
	}
	if err != nil {
		s.setState(StateIdle)
		logger.Error("Checkout dispatch failed", "err", err)
		return nil, classify(err, receipt)
	}

	s.setState(StateSucceeded)
	clearsAt := time.Now().Add(s.opts.ClearDelay)
	s.opts.Schedule(s.opts.ClearDelay, s.finish)

	logger.Info("Order submitted", "status", receipt.StatusCode, "opaque", receipt.Opaque)
	return &Result{Payload: payload, Receipt: receipt, ClearsAt: clearsAt}, nil
}

func (s *Service) snapshot() entity.Cart {
	if s.opts.CartLock != nil {
		s.opts.CartLock.Lock()
		defer s.opts.CartLock.Unlock()
	}
	return s.cart.Snapshot()
}

func (s *Service) finish() {
	s.cart.ClearCart()
	s.setState(StateIdle)
}

func (s *Service) checkReceipt(r Receipt) error {
	if !s.opts.RequireAck {
		return nil
	}
	if r.Opaque {
		return fmt.Errorf("%w: sink returned no acknowledgement", ErrPermanent)
	}
	if r.StatusCode < 200 || r.StatusCode > 299 {
		return fmt.Errorf("sink responded with status %d", r.StatusCode)
	}
	return nil
}

func (s *Service) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func classify(err error, r Receipt) error {
	var de *DispatchError
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, ErrPermanent) {
		return &DispatchError{Retryable: false, StatusCode: r.StatusCode, Err: err}
	}
	if r.StatusCode != 0 && !r.Opaque {
		retryable := r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests
		return &DispatchError{Retryable: retryable, StatusCode: r.StatusCode, Err: err}
	}
	return &DispatchError{Retryable: true, Err: err}
}
