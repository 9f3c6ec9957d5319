package export

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"hed/internal/export/interfaces"
	"hed/internal/structures"
)

const defaultRetryBaseDelay = time.Second

// Retrier wraps an I/O call with bounded exponential backoff.
type Retrier struct {
	maxRetries uint64
	baseDelay  time.Duration
}

func NewRetrier(conf *structures.Config) *Retrier {
	base := conf.Export.RetryBaseDelay
	if base <= 0 {
		base = defaultRetryBaseDelay
	}
	return &Retrier{maxRetries: conf.Export.Retries, baseDelay: base}
}

func (r *Retrier) backoff() retry.Backoff {
	b := retry.NewExponential(r.baseDelay)
	b = retry.WithJitterPercent(10, b)
	return retry.WithMaxRetries(r.maxRetries, b)
}

// Do runs fn until it succeeds, returns a permanent error, or the retry
// budget is spent. Schema conflicts, invalid rows, access faults and context
// errors are never retried.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil || !isRetryable(err) {
			return err
		}
		return retry.RetryableError(err)
	})
}

func isRetryable(err error) bool {
	switch {
	case errors.Is(err, interfaces.ErrAlreadyExists),
		errors.Is(err, interfaces.ErrInvalidRow),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return !IsConfigFault(err)
}
