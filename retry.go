package saga

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"
)

// Retry defaults: a failing action is attempted 3 times in total, waiting
// 1s and then 2s between attempts.
const (
	DefaultMaxAttempts uint          = 3
	DefaultBaseDelay   time.Duration = time.Second
)

// Retrier executes a single fallible action up to a bounded number of
// attempts, waiting BaseDelay * 2^attemptIndex between attempts. No jitter
// and no circuit breaking; the waits are context-aware so a cancelled
// transaction does not sit out its backoff.
type Retrier struct {
	MaxAttempts uint
	BaseDelay   time.Duration

	logger *zap.Logger
}

// DefaultRetrier returns a Retrier with the default policy.
func DefaultRetrier() Retrier {
	return Retrier{MaxAttempts: DefaultMaxAttempts, BaseDelay: DefaultBaseDelay}
}

func (r Retrier) maxAttempts() uint {
	if r.MaxAttempts == 0 {
		return DefaultMaxAttempts
	}
	return r.MaxAttempts
}

func (r Retrier) baseDelay() time.Duration {
	if r.BaseDelay <= 0 {
		return DefaultBaseDelay
	}
	return r.BaseDelay
}

// Do runs action until it succeeds or the attempt bound is exhausted, in
// which case the last observed error is returned.
func (r Retrier) Do(ctx context.Context, action func() error) error {
	logger := r.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return retry.Do(
		action,
		retry.Attempts(r.maxAttempts()),
		retry.Delay(r.baseDelay()),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("retrying after failed attempt",
				zap.Uint("attempt", n+1),
				zap.Error(err))
		}),
	)
}
