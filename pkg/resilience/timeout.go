package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/cinematch/pkg/errors"
)

// TimeoutError reports that Op overran its own Limit. It matches both
// apperrors.ErrTimeout and context.DeadlineExceeded under errors.Is.
type TimeoutError struct {
	Op    string
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out after %v", e.Op, e.Limit)
}

func (e *TimeoutError) Is(target error) bool {
	return target == apperrors.ErrTimeout || target == context.DeadlineExceeded
}

// WithTimeout bounds one call of fn to limit. fn must return once its
// context is done. When the limit expires first the result is a
// *TimeoutError; cancellation of ctx itself is passed through untouched, so
// retry loops can tell a slow attempt from an abandoned request. A limit
// <= 0 runs fn under ctx alone.
func WithTimeout(ctx context.Context, limit time.Duration, op string, fn func(ctx context.Context) error) error {
	if limit <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	err := fn(attemptCtx)
	if err == nil || ctx.Err() != nil {
		return err
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Op: op, Limit: limit}
	}
	return err
}
