package retry

import (
	"fmt"
	"time"
)

// Policy is an explicit retry policy value object. There is no implicit
// global toggle and no silent fallback: an invalid policy is a configuration
// error raised before any I/O happens.
type Policy struct {
	// Timeout bounds the cumulative wall-clock time across all attempts.
	Timeout time.Duration
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// InitialWait is the sleep before the first retry.
	InitialWait time.Duration
	// MaxWait caps the backoff sleep.
	MaxWait time.Duration
	// ExponentialBackoff doubles the wait per attempt up to MaxWait;
	// otherwise a constant InitialWait is used.
	ExponentialBackoff bool
}

// Validate fails fast on invalid parameters. This is a zero-trust check, not
// a runtime retry condition.
func (p Policy) Validate() error {
	if p.Timeout <= 0 {
		return fmt.Errorf("retry policy: timeout must be > 0, got %v", p.Timeout)
	}
	if p.MaxRetries < 0 {
		return fmt.Errorf("retry policy: max_retries must be >= 0, got %d", p.MaxRetries)
	}
	if p.InitialWait < 0 {
		return fmt.Errorf("retry policy: initial_wait must be >= 0, got %v", p.InitialWait)
	}
	if p.MaxWait < p.InitialWait {
		return fmt.Errorf("retry policy: max_wait %v below initial_wait %v", p.MaxWait, p.InitialWait)
	}
	return nil
}

// Wait returns the sleep before retry number attempt (0-based).
func (p Policy) Wait(attempt int) time.Duration {
	if !p.ExponentialBackoff {
		return p.InitialWait
	}
	w := p.InitialWait
	for i := 0; i < attempt; i++ {
		w *= 2
		if w >= p.MaxWait {
			return p.MaxWait
		}
	}
	if w > p.MaxWait {
		return p.MaxWait
	}
	return w
}
