package upload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Verdict tells a RetryPolicy what to do with a failed attempt.
type Verdict int

const (
	Retry Verdict = iota
	Terminal
)

// Classify is the default classifier: aborted attempts are terminal, anything
// else is worth another try.
func Classify(err error) Verdict {
	var ae *AbortError
	if errors.As(err, &ae) {
		return Terminal
	}
	return Retry
}

// RetryPolicy runs an operation up to Retries+1 times.
type RetryPolicy struct {
	Retries    int
	Classify   func(error) Verdict
	NewBackOff func() backoff.BackOff
	// OnRetry runs after a failed attempt that will be retried, before the backoff wait.
	OnRetry func(attempt int, err error)
}

// ExponentialBackOff returns a backoff factory with jitter and no elapsed time limit.
func ExponentialBackOff(initial, max time.Duration) func() backoff.BackOff {
	return func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = initial
		b.MaxInterval = max
		b.MaxElapsedTime = 0
		b.Reset()
		return b
	}
}

// Do calls fn until it succeeds, fails terminally or the retry budget is spent.
// A backoff returning backoff.Stop also ends the loop. Terminal errors are
// returned as is, exhaustion wraps ErrRetriesExhausted.
func (p *RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	classify := p.Classify
	if classify == nil {
		classify = Classify
	}
	var b backoff.BackOff = &backoff.ZeroBackOff{}
	if p.NewBackOff != nil {
		b = p.NewBackOff()
	}

	for n := 0; ; n++ {
		err := fn(ctx, n)
		if err == nil {
			return nil
		}
		if classify(err) == Terminal {
			return err
		}
		if n >= p.Retries {
			return &retryError{attempts: n + 1, err: err}
		}
		d := b.NextBackOff()
		if d == backoff.Stop {
			return &retryError{attempts: n + 1, err: err}
		}
		if p.OnRetry != nil {
			p.OnRetry(n, err)
		}
		wait(ctx, d)
	}
}

// wait sleeps for d unless ctx ends first. The caller's next attempt checks ctx.
func wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

type retryError struct {
	attempts int
	err      error
}

func (e *retryError) Error() string {
	return fmt.Sprintf("%s after %d attempt(s): %s", ErrRetriesExhausted, e.attempts, e.err)
}

func (e *retryError) Unwrap() []error {
	return []error{ErrRetriesExhausted, e.err}
}
