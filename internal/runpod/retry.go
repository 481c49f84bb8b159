package runpod

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/dmorgan81/zimagebot/internal/log"
	"github.com/samber/lo"
)

// RetryPolicy controls retries of transport failures. The zero value
// disables them, so a single failed call surfaces immediately.
type RetryPolicy struct {
	// MaxTries counts the first attempt; values below 2 disable retries.
	MaxTries uint
	// Interval is the constant delay between attempts. Defaults to one second.
	Interval time.Duration
	// Submissions also retries /run and /runsync. The endpoint gives no
	// idempotency guarantee, so a retried submission may start a second job.
	Submissions bool
}

func (p RetryPolicy) applies(submission bool) bool {
	return p.MaxTries > 1 && (!submission || p.Submissions)
}

// send is call with the client's retry policy applied. A non-zero deadline
// bounds the retries: no attempt starts after it and no wait runs past it.
func (c *Client) send(ctx context.Context, op, method, path string, in, out any, submission bool, deadline time.Time) error {
	if !c.retry.applies(submission) {
		return c.call(ctx, op, method, path, in, out)
	}

	logger := log.FromContextOrDiscard(ctx).WithGroup("runpod").With("op", op)
	interval := lo.Ternary(c.retry.Interval > 0, c.retry.Interval, time.Second)
	opts := []backoff.RetryOption{
		backoff.WithBackOff(backoff.NewConstantBackOff(interval)),
		backoff.WithMaxTries(c.retry.MaxTries),
	}
	if !deadline.IsZero() {
		remaining := deadline.Sub(c.now())
		if remaining <= 0 {
			return c.call(ctx, op, method, path, in, out)
		}
		opts = append(opts, backoff.WithMaxElapsedTime(remaining))
	}

	attempt := 0
	var last error
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		if attempt > 1 && !deadline.IsZero() && c.now().After(deadline) {
			return struct{}{}, backoff.Permanent(last)
		}
		err := c.call(ctx, op, method, path, in, out)
		if err == nil {
			return struct{}{}, nil
		}
		last = err
		if !IsRetryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		logger.Warn("transport failure", "attempt", attempt, "error", err)
		return struct{}{}, err
	}, opts...)
	return err
}

// IsRetryable reports whether err is worth retrying. Only transport failures
// not caused by the caller's context are.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var te *TransportError
	return errors.As(err, &te)
}
