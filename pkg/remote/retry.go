package remote

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig controls retries of idempotent metadata requests.
type RetryConfig struct {
	MaxAttempts int           // total attempts, 1 disables retries
	InitialWait time.Duration // wait before the second attempt
	MaxWait     time.Duration // cap on a single wait
	Multiplier  float64       // backoff multiplier
	Jitter      float64       // jitter factor (0-1)
}

// DefaultRetryConfig returns the retry policy used for metadata calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,                      //nolint:mnd // Three tries
		InitialWait: 100 * time.Millisecond, //nolint:mnd // Short first wait on a LAN
		MaxWait:     2 * time.Second,        //nolint:mnd // Keep listings responsive
		Multiplier:  2.0,                    //nolint:mnd // Doubling backoff
		Jitter:      0.1,                    //nolint:mnd // 10% jitter
	}
}

// retryableError marks a transport failure worth retrying.
type retryableError struct {
	err error
}

func (e retryableError) Error() string { return e.err.Error() }
func (e retryableError) Unwrap() error { return e.err }

func retryable(err error) error {
	if err == nil {
		return nil
	}

	return retryableError{err: err}
}

func isRetryable(err error) bool {
	var r retryableError
	return errors.As(err, &r)
}

// withRetry runs fn until it succeeds, returns a non-retryable error, or the
// attempts are used up. The retry marker is stripped from the returned error.
func withRetry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	var lastErr error

	attempts := max(cfg.MaxAttempts, 1)

	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if !isRetryable(err) || attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err() //nolint:wrapcheck // Caller sees cancellation as is
		case <-time.After(backoff(cfg, attempt)):
		}
	}

	var r retryableError
	if errors.As(lastErr, &r) {
		return r.err
	}

	return lastErr
}

func backoff(cfg RetryConfig, attempt int) time.Duration {
	wait := float64(cfg.InitialWait) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if wait > float64(cfg.MaxWait) {
		wait = float64(cfg.MaxWait)
	}

	if cfg.Jitter > 0 {
		wait += wait * cfg.Jitter * (rand.Float64()*2 - 1) //nolint:gosec,mnd // Jitter needs no crypto
	}

	return time.Duration(wait)
}
