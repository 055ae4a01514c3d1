// Package confirm implements the caller-side half of two-hop commands. A
// command accepted by the registry says nothing about the forwarded hop, so
// callers that need certainty poll observable state until it changes or the
// retry budget runs out; budget exhaustion is a terminal failure requiring
// manual reconciliation, never "still pending".
package confirm

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrExhausted is returned when the predicate never held within the attempt
// budget.
var ErrExhausted = errors.New("confirm: retry budget exhausted")

// Policy bounds a confirmation wait.
type Policy struct {
	// Attempts is the total number of predicate evaluations, including the
	// immediate first one.
	Attempts int
	// Interval separates consecutive evaluations.
	Interval time.Duration
	// Clock defaults to the wall clock; tests inject a fake.
	Clock clockwork.Clock
}

// DefaultPolicy polls once a second for half a minute.
func DefaultPolicy() Policy {
	return Policy{Attempts: 30, Interval: time.Second}
}

// Wait polls check until it reports true, the context is cancelled, or the
// attempt budget is exhausted. A check error aborts the wait immediately:
// confirmation probes must be side-effect free, so an error means the
// observation itself is broken, not that the state is still pending.
func Wait(ctx context.Context, p Policy, check func(ctx context.Context) (bool, error)) error {
	clock := p.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			timer := clock.NewTimer(p.Interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.Chan():
			}
		}
		ok, err := check(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return ErrExhausted
}
