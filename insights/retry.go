package insights

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// RetryConfig configures the provider retry policy.
type RetryConfig struct {
	MaxRetries    int           `json:"max_retries"`
	InitialDelay  time.Duration `json:"initial_delay"`
	MaxDelay      time.Duration `json:"max_delay"`
	BackoffFactor float64       `json:"backoff_factor"`
}

// DefaultRetryConfig returns the policy providers use unless overridden.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  1 * time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
	}
}

// Retrier runs provider operations with exponential backoff and jitter.
// Only errors classified as retryable are retried.
type Retrier struct {
	config RetryConfig
	rand   *rand.Rand
}

// NewRetrier creates a retrier with the given configuration.
func NewRetrier(config RetryConfig) *Retrier {
	return &Retrier{
		config: config,
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Operation is a retryable unit of work.
type Operation[T any] func(ctx context.Context, attempt int) (T, error)

// Execute runs operation until it succeeds, fails permanently, or the retry
// budget is exhausted.
func Execute[T any](r *Retrier, ctx context.Context, operation Operation[T]) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		result, err := operation(ctx, attempt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !r.shouldRetry(err, attempt) {
			if attempt >= r.config.MaxRetries {
				break
			}
			return zero, err
		}

		delay := r.calculateDelay(attempt, err)
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	return zero, fmt.Errorf("operation failed after %d attempts: %w", r.config.MaxRetries+1, lastErr)
}

func (r *Retrier) shouldRetry(err error, attempt int) bool {
	if attempt >= r.config.MaxRetries {
		return false
	}
	if pe, ok := AsProviderError(err); ok {
		return pe.IsRetryable()
	}
	return false
}

func (r *Retrier) calculateDelay(attempt int, err error) time.Duration {
	if pe, ok := AsProviderError(err); ok && pe.RetryAfter > 0 {
		return time.Duration(pe.RetryAfter) * time.Second
	}

	base := float64(r.config.InitialDelay)
	delay := base * math.Pow(r.config.BackoffFactor, float64(attempt))

	// +-25% jitter.
	jitter := 0.25 * delay * (r.rand.Float64()*2 - 1)
	delay += jitter

	if delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}
	if delay < float64(r.config.InitialDelay) {
		delay = float64(r.config.InitialDelay)
	}
	return time.Duration(delay)
}
