package infra

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"
)

// ErrPermanent marks failures that retrying cannot fix (4xx responses,
// undecodable payloads).
var ErrPermanent = errors.New("permanent failure")

// CallPolicy configures retries and the circuit breaker for outbound API calls.
type CallPolicy struct {
	MaxAttempts      int
	InitialDelay     time.Duration
	Multiplier       float64
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// DefaultCallPolicy allows one retry and opens the breaker after five
// consecutive failures.
func DefaultCallPolicy() CallPolicy {
	return CallPolicy{
		MaxAttempts:      2,
		InitialDelay:     200 * time.Millisecond,
		Multiplier:       2.0,
		BreakerThreshold: 5,
		BreakerCooldown:  30 * time.Second,
	}
}

// Caller runs outbound calls through a circuit breaker and a bounded retry.
type Caller struct {
	breaker circuitbreaker.CircuitBreaker[struct{}]
	retrier retry.Retry[struct{}]
}

func NewCaller(p CallPolicy) *Caller {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	threshold := p.BreakerThreshold
	if threshold < 1 {
		threshold = 5
	}
	if p.BreakerCooldown <= 0 {
		p.BreakerCooldown = 30 * time.Second
	}

	return &Caller{
		breaker: circuitbreaker.New[struct{}](circuitbreaker.Config{
			MaxRequests: 1,
			Interval:    p.BreakerCooldown,
			Timeout:     p.BreakerCooldown,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(threshold) // #nosec G115 -- threshold is positive
			},
		}),
		retrier: retry.New[struct{}](retry.Config{
			MaxAttempts:        p.MaxAttempts,
			InitialDelay:       p.InitialDelay,
			BackoffPolicy:      retry.BackoffExponential,
			Multiplier:         p.Multiplier,
			NonRetryableErrors: []error{ErrPermanent, context.Canceled, context.DeadlineExceeded},
		}),
	}
}

func (c *Caller) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := c.breaker.Execute(ctx, func(ctx context.Context) (struct{}, error) {
		return c.retrier.Do(ctx, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, fn(ctx)
		})
	})
	return err
}

// BreakerState reports the circuit breaker state ("closed", "open", ...).
func (c *Caller) BreakerState() string {
	return c.breaker.State().String()
}

// IsRetryableHTTPStatus returns true if the HTTP status code is retryable
func IsRetryableHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusServiceUnavailable ||
		statusCode == http.StatusGatewayTimeout ||
		statusCode >= 500
}

// StatusError builds the error for a non-200 API response, marking it
// permanent unless the status is retryable.
func StatusError(api string, statusCode int, body []byte) error {
	if IsRetryableHTTPStatus(statusCode) {
		return fmt.Errorf("%s API error %d: %s (retryable)", api, statusCode, string(body))
	}
	return fmt.Errorf("%w: %s API error %d: %s", ErrPermanent, api, statusCode, string(body))
}
