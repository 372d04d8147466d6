package resilience

import (
	"context"
	stderrors "errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/CoReason-AI/omopcloudetl-core/errors"
)

// RetryConfig is an exponential backoff policy. Zero fields fall back to
// the values Retry documents.
type RetryConfig struct {
	// MaxAttempts counts the first call. Defaults to 3.
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts" validate:"gte=0"`
	// InitialBackoff is the base delay. Defaults to 100ms.
	InitialBackoff time.Duration `mapstructure:"initial_backoff" yaml:"initial_backoff"`
	// MinBackoff and MaxBackoff clamp every delay. MaxBackoff defaults to 10s.
	MinBackoff time.Duration `mapstructure:"min_backoff" yaml:"min_backoff"`
	MaxBackoff time.Duration `mapstructure:"max_backoff" yaml:"max_backoff"`
	// BackoffFactor defaults to 2.
	BackoffFactor float64 `mapstructure:"backoff_factor" yaml:"backoff_factor"`
	// Jitter spreads each delay by up to ±Jitter of itself.
	Jitter float64 `mapstructure:"jitter" yaml:"jitter"`

	RetryIf func(error) bool                                  `mapstructure:"-" yaml:"-"`
	OnRetry func(attempt int, err error, delay time.Duration) `mapstructure:"-" yaml:"-"`
}

// DefaultRetryConfig is the remote specification policy: three attempts,
// delays clamped to 4s..10s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MinBackoff:     4 * time.Second,
		MaxBackoff:     10 * time.Second,
		BackoffFactor:  2,
		RetryIf:        DefaultRetryIf,
	}
}

// DefaultRetryIf refuses context errors and AppErrors not marked retryable.
func DefaultRetryIf(err error) bool {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr.Retryable
	}
	return true
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 100 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 10 * time.Second
	}
	if c.BackoffFactor <= 0 {
		c.BackoffFactor = 2
	}
	if c.RetryIf == nil {
		c.RetryIf = DefaultRetryIf
	}
	return c
}

// delay returns the wait after the given failed attempt (1-based).
func (c RetryConfig) delay(attempt int) time.Duration {
	d := float64(c.InitialBackoff) * math.Pow(c.BackoffFactor, float64(attempt-1))
	if c.Jitter > 0 {
		d += d * c.Jitter * (2*rand.Float64() - 1)
	}
	d = math.Min(math.Max(d, float64(c.MinBackoff)), float64(c.MaxBackoff))
	if d <= 0 {
		return c.InitialBackoff
	}
	return time.Duration(d)
}

// Retry calls fn until it succeeds, RetryIf rejects its error, attempts run
// out or ctx ends. The last error from fn is returned on exhaustion.
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	cfg = cfg.withDefaults()

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if attempt >= cfg.MaxAttempts || !cfg.RetryIf(err) {
			return zero, err
		}

		wait := cfg.delay(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, wait)
		}
		if err := sleep(ctx, wait); err != nil {
			return zero, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
