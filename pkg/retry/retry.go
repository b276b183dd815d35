package retry

import (
	"context"
	"fmt"
	"time"

	"TradeCore/pkg/logger"
)

// AttemptsError carries the final error together with the attempt count.
type AttemptsError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *AttemptsError) Error() string {
	return fmt.Sprintf("%s failed after %d attempt(s): %v", e.Op, e.Attempts, e.Err)
}

func (e *AttemptsError) Unwrap() error { return e.Err }

// Do runs fn under the policy: retryable errors are retried with backoff
// until MaxRetries or the wall-clock Timeout is exhausted, whichever comes
// first. Non-retryable errors propagate immediately. The logger may be nil;
// all logged messages pass through the redaction filter.
func Do(ctx context.Context, p Policy, op string, l *logger.Logger, fn func(context.Context) error) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	deadline := time.Now().Add(p.Timeout)
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return &AttemptsError{Op: op, Attempts: attempts, Err: err}
		}

		attempts++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return &AttemptsError{Op: op, Attempts: attempts, Err: err}
		}
		if attempt == p.MaxRetries {
			break
		}

		wait := p.Wait(attempt)
		if time.Now().Add(wait).After(deadline) {
			break
		}
		if l != nil {
			l.Warn("retrying operation",
				logger.String("op", op),
				logger.Int("attempt", attempts),
				logger.String("error", logger.Redact(err.Error())),
				logger.Duration("wait_ms", wait))
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return &AttemptsError{Op: op, Attempts: attempts, Err: ctx.Err()}
		case <-timer.C:
		}
	}

	return &AttemptsError{Op: op, Attempts: attempts, Err: lastErr}
}
