package webhook

import "time"

const (
	DefaultMaxAttempts = 5
	DefaultBackoffStep = 10 * time.Second
)

// RetryPolicy decides what happens to an event after a failed attempt.
// Backoff is linear: the n-th failure waits n*Step before the next try.
type RetryPolicy struct {
	MaxAttempts int
	Step        time.Duration
}

// DefaultRetryPolicy gives up after five attempts, waiting 10s, 20s, 30s, 40s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts, Step: DefaultBackoffStep}
}

// Decision is the outcome of RetryPolicy.Next.
type Decision struct {
	Attempts      int
	Exhausted     bool
	NextAttemptAt time.Time
}

// Next returns the state after one more failed attempt at time now, given
// the attempts already recorded.
func (p RetryPolicy) Next(previousAttempts int, now time.Time) Decision {
	attempts := previousAttempts + 1
	if attempts >= p.MaxAttempts {
		return Decision{Attempts: attempts, Exhausted: true}
	}
	return Decision{
		Attempts:      attempts,
		NextAttemptAt: now.Add(time.Duration(attempts) * p.Step),
	}
}
