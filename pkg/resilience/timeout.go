package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	qerrors "github.com/Adithya-Monish-Kumar-K/qryeval/pkg/errors"
)

// WithTimeout runs fn on the calling goroutine under a deadline of timeout,
// so fn has returned, and stopped touching its results, before WithTimeout
// does. fn must honour ctx.
//
// When the attempt's own deadline fires, the error wraps errors.ErrTimeout
// and is retryable. When ctx itself is done, the error wraps ctx.Err() and is
// not.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(attemptCtx)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return fmt.Errorf("%s: %w", name, ctx.Err())
	case errors.Is(attemptCtx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%s: %w after %v", name, qerrors.ErrTimeout, timeout)
	default:
		return err
	}
}
