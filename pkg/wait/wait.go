// Package wait polls page conditions until satisfied or a timeout elapses.
// Conditions are pure descriptions probed repeatedly; a timed-out wait always
// carries the last observed state so failures can be diagnosed from the report.
package wait

import (
	"context"
	"fmt"
	"time"
)

// DefaultInterval is the poll interval used when the caller does not set one.
const DefaultInterval = 100 * time.Millisecond

// Condition is a probe over page or element state.
type Condition interface {
	// Describe names the condition for logs and error messages.
	Describe() string
	// Probe evaluates the condition once, returning whether it holds and a
	// short description of the observed state. A non-nil error means the
	// probe itself failed (dead session, detached element) and the wait stops.
	Probe(ctx context.Context) (ok bool, observed string, err error)
}

// Result reports the outcome of a completed wait.
type Result struct {
	Satisfied bool
	Elapsed   time.Duration
	Observed  string // last observed state, satisfied or not
}

// TimeoutError reports a condition that never became true within its timeout,
// including the state seen on the final probe.
type TimeoutError struct {
	Condition string
	Timeout   time.Duration
	Observed  string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for %s (last observed: %s)", e.Timeout, e.Condition, e.Observed)
}

// Until polls cond until it holds, the timeout elapses or ctx is canceled.
// The condition is probed immediately, so a condition that already holds
// returns without waiting a poll interval. On timeout the returned error is a
// *TimeoutError carrying the last observed state; the Result is also populated
// for callers that prefer inspecting it.
func Until(ctx context.Context, cond Condition, timeout, interval time.Duration) (Result, error) {
	start := time.Now()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	// interval must stay below the timeout or fast-resolving conditions get missed
	if interval >= timeout {
		interval = timeout / 2
		if interval <= 0 {
			interval = time.Millisecond
		}
	}

	ok, observed, err := cond.Probe(ctx)
	if err != nil {
		return Result{Elapsed: time.Since(start), Observed: observed}, fmt.Errorf("probe %s: %w", cond.Describe(), err)
	}
	if ok {
		return Result{Satisfied: true, Elapsed: time.Since(start), Observed: observed}, nil
	}
	last := observed

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return Result{Elapsed: time.Since(start), Observed: last}, ctx.Err()
		case <-deadline.C:
			return Result{Elapsed: time.Since(start), Observed: last},
				&TimeoutError{Condition: cond.Describe(), Timeout: timeout, Observed: last}
		case <-ticker.C:
			ok, observed, err = cond.Probe(ctx)
			if err != nil {
				return Result{Elapsed: time.Since(start), Observed: observed}, fmt.Errorf("probe %s: %w", cond.Describe(), err)
			}
			if ok {
				return Result{Satisfied: true, Elapsed: time.Since(start), Observed: observed}, nil
			}
			last = observed
		}
	}
}
