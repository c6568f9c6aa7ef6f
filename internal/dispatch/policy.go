// Package dispatch runs the worker loops: it reads tasks from their streams,
// hands them to a handler, and settles each delivery by acking, scheduling a
// retry, or giving up.
package dispatch

import (
	"time"

	"instapilot/internal/queue"
)

// RetryPolicy bounds attempts and sets the per-kind retry delay. Event
// fan-out waits longer between attempts than the action kinds because its
// failures are usually database outages rather than flaky upstream calls.
type RetryPolicy struct {
	MaxAttempts int
	EventDelay  time.Duration
	ActionDelay time.Duration
}

func DefaultPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		EventDelay:  60 * time.Second,
		ActionDelay: 30 * time.Second,
	}
}

// DelayFor returns the wait before re-delivering a task of the given kind.
func (p RetryPolicy) DelayFor(kind queue.TaskKind) time.Duration {
	if kind == queue.TaskProcessEvent {
		return p.EventDelay
	}
	return p.ActionDelay
}

// Final reports whether the given attempt is the last one allowed.
func (p RetryPolicy) Final(attempt int) bool {
	return attempt >= p.MaxAttempts
}
