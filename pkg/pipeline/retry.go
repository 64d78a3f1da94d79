package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/doubletabai/askdb/pkg/errs"
)

// RetryPolicy bounds retries of external embedding and generation calls. Attempts
// counts the first call; 1 disables retries.
type RetryPolicy struct {
	Attempts        int
	InitialInterval time.Duration
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	retries := 0
	if p.Attempts > 1 {
		retries = p.Attempts - 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// retry runs fn until it succeeds, fails with a non-retryable kind, or attempts run out.
// The last error of fn is returned unchanged, also when ctx ends between attempts.
func (s *Service) retry(ctx context.Context, logger zerolog.Logger, op string, fn func() error) error {
	attempt := 0
	var last error
	err := backoff.RetryNotify(func() error {
		attempt++
		last = fn()
		if last != nil && !errs.Retryable(last) {
			return backoff.Permanent(last)
		}
		return last
	}, s.Retry.backOff(ctx), func(err error, wait time.Duration) {
		s.Metrics.recordRetry(op)
		logger.Warn().Err(err).Str("op", op).Int("attempt", attempt).Dur("backoff", wait).Msg("External call failed, retrying")
	})
	if err != nil && last != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return last
	}
	return err
}
