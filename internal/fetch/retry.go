package fetch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

// RetryConfig defines retry behavior for fetches
type RetryConfig struct {
	MaxAttempts   int           `yaml:"max_attempts" mapstructure:"max-attempts"`
	InitialDelay  time.Duration `yaml:"initial_delay" mapstructure:"initial-delay"`
	MaxDelay      time.Duration `yaml:"max_delay" mapstructure:"max-delay"`
	BackoffFactor float64       `yaml:"backoff_factor" mapstructure:"backoff-factor"`
	Jitter        bool          `yaml:"jitter" mapstructure:"jitter"`
}

// DefaultRetryConfig returns the retry configuration used by NewClient.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  200 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	}
}

// NoRetry performs every fetch exactly once.
func NoRetry() *RetryConfig {
	return &RetryConfig{MaxAttempts: 1}
}

// RetryableError marks an error as worth another attempt
type RetryableError struct {
	Err        error
	Retryable  bool
	RetryAfter time.Duration
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryableError checks if an error is retryable
func IsRetryableError(err error) bool {
	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}
	return false
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error, retryable bool) *RetryableError {
	return &RetryableError{
		Err:       err,
		Retryable: retryable,
	}
}

// NewRetryableErrorWithDelay creates a new retryable error with a delay
func NewRetryableErrorWithDelay(err error, retryable bool, retryAfter time.Duration) *RetryableError {
	return &RetryableError{
		Err:        err,
		Retryable:  retryable,
		RetryAfter: retryAfter,
	}
}

// Backoff computes the delay before the next attempt.
type Backoff struct {
	config *RetryConfig
}

// NextDelay calculates the delay for the next retry attempt
func (b *Backoff) NextDelay(attempt int, lastErr error) time.Duration {
	var retryableErr *RetryableError
	if errors.As(lastErr, &retryableErr) && retryableErr.RetryAfter > 0 {
		if b.config.MaxDelay > 0 && retryableErr.RetryAfter > b.config.MaxDelay {
			return b.config.MaxDelay
		}
		return retryableErr.RetryAfter
	}

	delay := time.Duration(float64(b.config.InitialDelay) * math.Pow(b.config.BackoffFactor, float64(attempt-1)))
	if b.config.MaxDelay > 0 && delay > b.config.MaxDelay {
		delay = b.config.MaxDelay
	}

	if b.config.Jitter {
		jitter := time.Duration(rand.Float64() * float64(delay) * 0.1) // #nosec G404 - jitter does not need crypto randomness
		delay += jitter
	}

	return delay
}

// ShouldRetry determines if another attempt should be made
func (b *Backoff) ShouldRetry(attempt int, err error) bool {
	return attempt < b.config.MaxAttempts && IsRetryableError(err)
}

// Retrier runs an operation until it succeeds, fails permanently or runs
// out of attempts.
type Retrier struct {
	backoff *Backoff
	config  *RetryConfig
}

// NewRetrier creates a new retrier
func NewRetrier(config *RetryConfig) *Retrier {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}

	return &Retrier{
		backoff: &Backoff{config: config},
		config:  config,
	}
}

// Execute executes an operation with retry logic. The error of the last
// attempt is returned as is when the retry budget runs out.
func (r *Retrier) Execute(ctx context.Context, operation func(attempt int) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := operation(attempt)
		if err == nil {
			if attempt > 1 {
				log.Info().
					Int("attempt", attempt).
					Int("total_attempts", r.config.MaxAttempts).
					Msg("Fetch succeeded after retries")
			}
			return nil
		}

		lastErr = err

		if !r.backoff.ShouldRetry(attempt, err) {
			break
		}

		delay := r.backoff.NextDelay(attempt, err)

		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", r.config.MaxAttempts).
			Dur("delay", delay).
			Msg("Fetch failed, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if r.config.MaxAttempts > 1 && IsRetryableError(lastErr) {
		return fmt.Errorf("giving up after %d attempts: %w", r.config.MaxAttempts, lastErr)
	}
	return lastErr
}
