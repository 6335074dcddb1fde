package retry

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

var ErrTooManyAttempts = errors.New("too many retry attempts")

type Callable[T any] func(attempt int) (T, error)

type retryError struct {
	error
	attempt int
}

func (e *retryError) Unwrap() error {
	return e.error
}

// Error marks err as recoverable, any other error returned
// from a callable stops the retries immediately
func Error(err error, attempt int) error {
	if err == nil {
		return nil
	}
	return &retryError{error: err, attempt: attempt}
}

type Attempts interface {
	Next() (time.Duration, bool)
	Current() int
}

func Start[T any](ctx context.Context, a Attempts, cb Callable[T]) (T, error) {
	for {
		result, err := cb(a.Current())
		if err == nil {
			return result, nil
		}

		// callable encountered an unrecoverable error
		var rErr *retryError
		if !errors.As(err, &rErr) {
			return result, errors.Wrapf(err, "retry %d failed", a.Current())
		}

		next, stop := a.Next()
		if stop {
			return result, errors.Wrap(ErrTooManyAttempts, rErr.Error())
		}

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(next):
			continue
		}
	}
}

func Incremental[T any](ctx context.Context, step time.Duration, maxRetries int, cb Callable[T]) (T, error) {
	return Start(ctx, IncrementalAttempts(step, maxRetries), cb)
}

type incrementalAttempts struct {
	sync.RWMutex
	prev time.Duration
	step time.Duration
	max  int
	curr int
}

func (a *incrementalAttempts) Next() (time.Duration, bool) {
	a.Lock()
	defer a.Unlock()

	a.curr++
	if a.curr > a.max {
		return 0, true
	}

	next := a.prev + a.step
	a.prev = next

	return next, false
}

func (a *incrementalAttempts) Current() int {
	a.RLock()
	defer a.RUnlock()
	return a.curr
}

func IncrementalAttempts(step time.Duration, max int) Attempts {
	return &incrementalAttempts{
		prev: 0,
		step: step,
		max:  max,
		curr: 1,
	}
}
