// Package retry runs operations against remote collaborators (sentiment
// scorers, snapshot object stores) with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/rbaliyan/moodlog/store"
)

// Config configures retry behavior.
type Config struct {
	// MaxRetries is the number of retries after the first attempt (default: 3).
	// Zero executes once.
	MaxRetries int

	// InitialBackoff is the delay before the first retry (default: 100ms).
	InitialBackoff time.Duration

	// MaxBackoff caps the backoff duration (default: 10s).
	MaxBackoff time.Duration

	// Multiplier grows the backoff after each retry (default: 2.0).
	Multiplier float64

	// Jitter randomizes each delay by +/- this fraction (default: 0.1).
	Jitter float64

	// IsRetryable decides whether an error is worth another attempt.
	// Defaults to DefaultIsRetryable.
	IsRetryable func(error) bool

	// Logger receives a debug line per retry. Nil disables logging.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with the package defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
		Jitter:         0.1,
		IsRetryable:    DefaultIsRetryable,
	}
}

// Sentinel errors.
var (
	// ErrNotRetryable stops retrying when wrapped into an error.
	ErrNotRetryable = errors.New("retry: error is not retryable")

	// ErrMaxRetries is reported when all attempts failed.
	ErrMaxRetries = errors.New("retry: max retries exceeded")

	// ErrContextCanceled is reported when the context ended between attempts.
	ErrContextCanceled = errors.New("retry: context canceled")
)

// Func is an operation that can be retried.
type Func func(ctx context.Context) error

// Do runs fn until it succeeds, returns a non-retryable error, the
// attempts run out, or ctx ends.
func Do(ctx context.Context, cfg Config, fn Func) error {
	cfg = withDefaults(cfg)

	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				return err
			}
			return &Error{Cause: lastErr, Attempts: attempt, Err: ErrContextCanceled}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !cfg.IsRetryable(err) {
			return &Error{Cause: err, Attempts: attempt + 1, Err: ErrNotRetryable}
		}
		if attempt >= cfg.MaxRetries {
			return &Error{Cause: err, Attempts: attempt + 1, Err: ErrMaxRetries}
		}

		wait := Backoff(cfg, attempt)
		if cfg.Logger != nil {
			cfg.Logger.Debug("retrying", "attempt", attempt+1, "backoff", wait, "error", err)
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return &Error{Cause: lastErr, Attempts: attempt + 1, Err: ErrContextCanceled}
		case <-t.C:
		}
	}
}

// DoWithResult is Do for operations that produce a value.
func DoWithResult[T any](ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func(ctx context.Context) error {
		var fnErr error
		result, fnErr = fn(ctx)
		return fnErr
	})
	return result, err
}

// Error describes a failed retry loop.
type Error struct {
	// Cause is the last error returned by the operation.
	Cause error
	// Attempts is the number of times the operation ran.
	Attempts int
	// Err is ErrMaxRetries, ErrNotRetryable or ErrContextCanceled.
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("retry: gave up after %d attempts (%s): %s", e.Attempts, e.Err, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// Backoff returns the delay after the given zero-based attempt.
func Backoff(cfg Config, attempt int) time.Duration {
	cfg = withDefaults(cfg)

	d := float64(cfg.InitialBackoff) * math.Pow(cfg.Multiplier, float64(attempt))
	if d > float64(cfg.MaxBackoff) {
		d = float64(cfg.MaxBackoff)
	}
	if cfg.Jitter > 0 {
		spread := d * cfg.Jitter
		d += (rand.Float64()*2 - 1) * spread
	}
	return time.Duration(d)
}

func withDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = def.Multiplier
	}
	cfg.Jitter = min(max(cfg.Jitter, 0), 1)
	if cfg.IsRetryable == nil {
		cfg.IsRetryable = DefaultIsRetryable
	}
	return cfg
}

// DefaultIsRetryable treats errors as transient unless they are context
// errors, caller mistakes recognized by the store package, consistency
// violations, or errors marked with MarkPermanent.
func DefaultIsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var m interface{ Retryable() bool }
	if errors.As(err, &m) {
		return m.Retryable()
	}

	for _, permanent := range []error{
		ErrNotRetryable,
		context.Canceled,
		context.DeadlineExceeded,
		store.ErrNotFound,
		store.ErrInvalidID,
		store.ErrInvalidState,
		store.ErrDuplicateEntry,
		store.ErrConsistency,
	} {
		if errors.Is(err, permanent) {
			return false
		}
	}
	return true
}

// MarkPermanent wraps err so DefaultIsRetryable stops on it.
func MarkPermanent(err error) error {
	if err == nil {
		return nil
	}
	return &marked{cause: err, retryable: false}
}

// MarkTransient wraps err so DefaultIsRetryable retries it.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &marked{cause: err, retryable: true}
}

type marked struct {
	cause     error
	retryable bool
}

func (e *marked) Error() string   { return e.cause.Error() }
func (e *marked) Unwrap() error   { return e.cause }
func (e *marked) Retryable() bool { return e.retryable }
