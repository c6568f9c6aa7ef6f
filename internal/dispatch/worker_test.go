package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"instapilot/internal/executor"
	"instapilot/internal/queue"
	"instapilot/pkg/logger"
)

type fakeSource struct {
	fresh   []queue.Message
	stale   []queue.Message
	acked   []string
	readErr error
}

func (f *fakeSource) Read(ctx context.Context) ([]queue.Message, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	msgs := f.fresh
	f.fresh = nil
	return msgs, nil
}

func (f *fakeSource) Reclaim(ctx context.Context) ([]queue.Message, error) {
	msgs := f.stale
	f.stale = nil
	return msgs, nil
}

func (f *fakeSource) Ack(ctx context.Context, id string) error {
	f.acked = append(f.acked, id)
	return nil
}

type fakeScheduler struct {
	scheduled []queue.Task
	err       error
}

func (f *fakeScheduler) Schedule(ctx context.Context, task queue.Task, readyAt time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.scheduled = append(f.scheduled, task)
	return nil
}

func workerFixture(handle HandlerFunc) (*Worker, *fakeSource, *fakeScheduler) {
	source := &fakeSource{}
	scheduler := &fakeScheduler{}
	w := NewWorker(source, scheduler, DefaultPolicy(), handle, logger.NewNop())
	return w, source, scheduler
}

func staleMessage(id string) queue.Message {
	return queue.Message{
		ID: id,
		Task: queue.Task{
			Kind:      queue.TaskSendDM,
			AccountID: "acct-1",
			TargetID:  "user_9",
			Text:      "hello",
			Attempt:   1,
		},
	}
}

func TestReclaimedTaskProcessedAndAcked(t *testing.T) {
	var handled []queue.Task
	w, source, _ := workerFixture(func(ctx context.Context, task queue.Task, final bool) executor.Outcome {
		handled = append(handled, task)
		return executor.Outcome{Disposition: executor.Success}
	})

	// A crashed consumer left this delivery pending; it arrives via Reclaim,
	// never via Read.
	source.stale = []queue.Message{staleMessage("1-0")}

	w.reclaim(context.Background())

	if len(handled) != 1 {
		t.Fatalf("handled = %d tasks", len(handled))
	}
	if len(source.acked) != 1 || source.acked[0] != "1-0" {
		t.Errorf("acked = %v", source.acked)
	}
}

func TestRetryScheduledWithIncrementedAttempt(t *testing.T) {
	w, source, scheduler := workerFixture(func(ctx context.Context, task queue.Task, final bool) executor.Outcome {
		return executor.Outcome{Disposition: executor.Retry, Detail: "graph 502"}
	})

	w.process(context.Background(), staleMessage("1-0"))

	if len(scheduler.scheduled) != 1 {
		t.Fatalf("scheduled = %d", len(scheduler.scheduled))
	}
	if scheduler.scheduled[0].Attempt != 2 {
		t.Errorf("attempt = %d", scheduler.scheduled[0].Attempt)
	}
	// Handed off to the scheduler, so the stream copy is settled.
	if len(source.acked) != 1 {
		t.Errorf("acked = %v", source.acked)
	}
}

func TestScheduleFailureRedeliveredViaReclaim(t *testing.T) {
	attempts := 0
	w, source, scheduler := workerFixture(func(ctx context.Context, task queue.Task, final bool) executor.Outcome {
		attempts++
		return executor.Outcome{Disposition: executor.Retry, Detail: "graph 502"}
	})
	scheduler.err = errors.New("redis down")

	msg := staleMessage("1-0")
	w.process(context.Background(), msg)

	// Parking the retry failed, so the delivery must stay unacked: the
	// pending list is now the only copy of the task.
	if len(source.acked) != 0 {
		t.Fatalf("acked = %v", source.acked)
	}

	// Redis recovers; the pending entry comes back through a reclaim pass
	// and this time the retry parks and the delivery settles.
	scheduler.err = nil
	source.stale = []queue.Message{msg}
	w.reclaim(context.Background())

	if attempts != 2 {
		t.Errorf("attempts = %d", attempts)
	}
	if len(scheduler.scheduled) != 1 {
		t.Errorf("scheduled = %v", scheduler.scheduled)
	}
	if len(source.acked) != 1 {
		t.Errorf("acked = %v", source.acked)
	}
}

func TestFinalAttemptRetryIsNotRescheduled(t *testing.T) {
	w, source, scheduler := workerFixture(func(ctx context.Context, task queue.Task, final bool) executor.Outcome {
		return executor.Outcome{Disposition: executor.Retry, Detail: "still failing"}
	})

	msg := staleMessage("1-0")
	msg.Task.Attempt = DefaultPolicy().MaxAttempts
	w.process(context.Background(), msg)

	if len(scheduler.scheduled) != 0 {
		t.Errorf("scheduled = %v", scheduler.scheduled)
	}
	if len(source.acked) != 1 {
		t.Errorf("acked = %v", source.acked)
	}
}
