// Package ordersink delivers checkout payloads to the outside world.
package ordersink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/istominvi/shaurmaniya/internal/checkout"
	"github.com/istominvi/shaurmaniya/internal/entity"
	"github.com/sony/gobreaker/v2"
)

// ErrSinkUnavailable is returned while the circuit breaker is open.
var ErrSinkUnavailable = errors.New("order sink unavailable")

// HTTPConfig configures an HTTPSink.
type HTTPConfig struct {
	URL     string
	Timeout time.Duration
	// Ack makes the sink report the response status. Without it receipts are
	// opaque, like a fire-and-forget form post.
	Ack bool
	// FailureThreshold is the number of consecutive transport failures that
	// opens the breaker.
	FailureThreshold uint32
	CoolDown         time.Duration
	Client           *http.Client
	Logger           *slog.Logger
}

// HTTPSink posts order payloads as JSON to a form-processing endpoint.
type HTTPSink struct {
	url     string
	ack     bool
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[checkout.Receipt]
	logger  *slog.Logger
}

// NewHTTPSink creates an HTTPSink guarded by a circuit breaker.
func NewHTTPSink(cfg HTTPConfig) *HTTPSink {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.CoolDown <= 0 {
		cfg.CoolDown = 30 * time.Second
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	logger := cfg.Logger.With("sink", "http")
	threshold := cfg.FailureThreshold
	breaker := gobreaker.NewCircuitBreaker[checkout.Receipt](gobreaker.Settings{
		Name:        "order-sink",
		MaxRequests: 1,
		Timeout:     cfg.CoolDown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return &HTTPSink{
		url:     cfg.URL,
		ack:     cfg.Ack,
		client:  cfg.Client,
		breaker: breaker,
		logger:  logger,
	}
}

// Send posts the payload. Only transport failures trip the breaker; the
// response status is left for the caller to judge.
func (s *HTTPSink) Send(ctx context.Context, payload entity.OrderPayload) (checkout.Receipt, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return checkout.Receipt{}, &checkout.DispatchError{
			Retryable: false,
			Err:       fmt.Errorf("failed to marshal order payload: %w", err),
		}
	}

	receipt, err := s.breaker.Execute(func() (checkout.Receipt, error) {
		return s.post(ctx, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return checkout.Receipt{}, &checkout.DispatchError{
			Retryable: true,
			Err:       fmt.Errorf("%w: %v", ErrSinkUnavailable, err),
		}
	}
	if err != nil {
		return checkout.Receipt{}, &checkout.DispatchError{Retryable: true, Err: err}
	}
	return receipt, nil
}

func (s *HTTPSink) post(ctx context.Context, body []byte) (checkout.Receipt, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return checkout.Receipt{}, fmt.Errorf("failed to build order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return checkout.Receipt{}, fmt.Errorf("failed to post order: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	s.logger.Debug("Order sink responded", "status", resp.StatusCode)
	return checkout.Receipt{StatusCode: resp.StatusCode, Opaque: !s.ack}, nil
}
