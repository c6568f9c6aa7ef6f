package dispatch

import (
	"context"
	"time"

	"instapilot/internal/executor"
	"instapilot/internal/queue"
	"instapilot/pkg/logger"
)

// HandlerFunc executes one task attempt. final is true when the attempt is
// the last one the retry policy allows.
type HandlerFunc func(ctx context.Context, t queue.Task, final bool) executor.Outcome

// TaskSource is the consumer surface the worker drains: fresh deliveries,
// stale pending deliveries left by crashed consumers, and acks.
type TaskSource interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Reclaim(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, id string) error
}

// RetryScheduler parks a task until its next attempt is due.
type RetryScheduler interface {
	Schedule(ctx context.Context, task queue.Task, readyAt time.Time) error
}

// reclaimEvery bounds how long a crashed consumer's deliveries wait before
// a live one claims them.
const reclaimEvery = 30 * time.Second

// Worker drains one stream and settles every delivery: success, skip, and
// give-up ack immediately; retry parks the task with an incremented attempt
// and then acks, so the stream never holds a task the scheduler also owns.
type Worker struct {
	source    TaskSource
	scheduler RetryScheduler
	policy    RetryPolicy
	handle    HandlerFunc
	log       *logger.Logger
}

func NewWorker(source TaskSource, scheduler RetryScheduler, policy RetryPolicy, handle HandlerFunc, log *logger.Logger) *Worker {
	return &Worker{
		source:    source,
		scheduler: scheduler,
		policy:    policy,
		handle:    handle,
		log:       log,
	}
}

// Run reads and processes tasks until the context is canceled. Each pass
// through the loop also periodically claims deliveries stranded in the
// group's pending list, so a consumer crash never loses a task.
func (w *Worker) Run(ctx context.Context) {
	nextReclaim := time.Now().Add(reclaimEvery)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if time.Now().After(nextReclaim) {
			w.reclaim(ctx)
			nextReclaim = time.Now().Add(reclaimEvery)
		}

		msgs, err := w.source.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.log.Errorf("reading tasks: %v", err)
			time.Sleep(time.Second)
			continue
		}

		for _, msg := range msgs {
			w.process(ctx, msg)
		}
	}
}

func (w *Worker) reclaim(ctx context.Context) {
	msgs, err := w.source.Reclaim(ctx)
	if err != nil {
		w.log.Errorf("reclaiming stale tasks: %v", err)
		return
	}
	for _, msg := range msgs {
		w.process(ctx, msg)
	}
}

func (w *Worker) process(ctx context.Context, msg queue.Message) {
	task := msg.Task
	final := w.policy.Final(task.Attempt)
	out := w.handle(ctx, task, final)

	if out.Disposition == executor.Retry {
		if final {
			// The handler should have given up on the final attempt; do not
			// let a misbehaving one loop forever.
			w.log.Errorf("%s task returned retry on final attempt, giving up: %s", task.Kind, out.Detail)
		} else {
			retry := task
			retry.Attempt++
			readyAt := time.Now().Add(w.policy.DelayFor(task.Kind))
			if err := w.scheduler.Schedule(ctx, retry, readyAt); err != nil {
				// Leave the delivery unacked; a later reclaim pass picks it
				// back up from the pending list.
				w.log.Errorf("scheduling retry for %s task: %v", task.Kind, err)
				return
			}
		}
	}

	if err := w.source.Ack(ctx, msg.ID); err != nil {
		w.log.Errorf("acking %s task %s: %v", task.Kind, msg.ID, err)
	}
}
