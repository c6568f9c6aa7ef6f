package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"instapilot/internal/domain/actionlog"
	"instapilot/internal/domain/automation"
	"instapilot/internal/domain/event"
	"instapilot/internal/executor"
	"instapilot/internal/queue"
	"instapilot/internal/repository"
	pilot_errors "instapilot/pkg/errors"
	"instapilot/pkg/logger"

	"github.com/google/uuid"
)

// EventProcessor fans one inbound event out to the automations it triggers.
// It runs in the events worker rather than the webhook handler so the webhook
// response never waits on the database, and so a database outage retries with
// the event safely parked in the queue.
type EventProcessor struct {
	accounts    repository.AccountRepository
	automations repository.AutomationRepository
	logs        repository.ActionLogRepository
	producer    queue.Producer
	log         *logger.Logger
}

func NewEventProcessor(
	accounts repository.AccountRepository,
	automations repository.AutomationRepository,
	logs repository.ActionLogRepository,
	producer queue.Producer,
	log *logger.Logger,
) *EventProcessor {
	return &EventProcessor{
		accounts:    accounts,
		automations: automations,
		logs:        logs,
		producer:    producer,
		log:         log,
	}
}

// Process handles one process_event task attempt.
func (p *EventProcessor) Process(ctx context.Context, t queue.Task, final bool) executor.Outcome {
	ev := t.Event
	if ev == nil {
		return executor.Outcome{Disposition: executor.GiveUp, Detail: "task carries no event"}
	}

	acct, err := p.accounts.GetByExternalID(ctx, ev.ExternalAccountID)
	if errors.Is(err, pilot_errors.ErrNotFound) {
		// Webhooks arrive for every account subscribed to the app, including
		// ones never connected here.
		p.log.DebugfCtx(ctx, "event for unknown account %s, dropping", ev.ExternalAccountID)
		return executor.Outcome{Disposition: executor.Skip, Detail: "unknown account"}
	}
	if err != nil {
		return p.settle(ctx, t, final, fmt.Sprintf("resolve account: %v", err))
	}
	if !acct.Active {
		p.auditReceived(ctx, acct.UserID, acct.ID, ev, actionlog.StatusSkipped, "account inactive")
		return executor.Outcome{Disposition: executor.Skip, Detail: "account inactive"}
	}

	if t.Attempt == 1 {
		p.auditReceived(ctx, acct.UserID, acct.ID, ev, actionlog.StatusSuccess, string(ev.Kind))
	}

	rules, err := p.automations.ListEnabledByAccount(ctx, acct.ID)
	if err != nil {
		return p.settle(ctx, t, final, fmt.Sprintf("load automations: %v", err))
	}

	enqueued := 0
	for _, m := range automation.Evaluate(rules, *ev) {
		if !m.ShouldFire {
			continue
		}
		action := actionTask(acct.ID, m.Rule, *ev, t.CorrelationID)
		if err := p.producer.Enqueue(ctx, action); err != nil {
			return p.settle(ctx, t, final, fmt.Sprintf("enqueue %s: %v", action.Kind, err))
		}
		enqueued++
	}

	p.log.InfofCtx(ctx, "event %s/%s dispatched %d action(s) for account %s",
		ev.Kind, ev.SubjectID, enqueued, acct.Username)
	return executor.Outcome{Disposition: executor.Success}
}

// actionTask builds the queued action a fired rule produces. Comment replies
// target the comment itself; DMs target the commenting user.
func actionTask(accountID uuid.UUID, r automation.Rule, ev event.Inbound, correlationID string) queue.Task {
	t := queue.Task{
		AccountID:         accountID.String(),
		ExternalAccountID: ev.ExternalAccountID,
		Text:              r.Template,
		CorrelationID:     correlationID,
		Attempt:           1,
	}
	if r.Kind == automation.KindSendDM {
		t.Kind = queue.TaskSendDM
		t.TargetID = ev.ActorID
	} else {
		t.Kind = queue.TaskReplyComment
		t.TargetID = ev.SubjectID
	}
	return t
}

func (p *EventProcessor) settle(ctx context.Context, t queue.Task, final bool, detail string) executor.Outcome {
	if final {
		p.log.ErrorfCtx(ctx, "event task gave up (attempt=%d): %s", t.Attempt, detail)
		return executor.Outcome{Disposition: executor.GiveUp, Detail: detail}
	}
	p.log.WarnfCtx(ctx, "event task attempt %d failed, will retry: %s", t.Attempt, detail)
	return executor.Outcome{Disposition: executor.Retry, Detail: detail}
}

func (p *EventProcessor) auditReceived(ctx context.Context, userID, accountID uuid.UUID, ev *event.Inbound, status actionlog.Status, detail string) {
	entry := actionlog.Entry{
		ID:         uuid.New(),
		UserID:     userID,
		AccountID:  &accountID,
		ActionKind: actionlog.ActionWebhookReceived,
		Status:     status,
		SubjectID:  ev.SubjectID,
		Details:    detail,
		CreatedAt:  time.Now().UTC(),
	}
	if err := p.logs.Create(ctx, &entry); err != nil {
		p.log.ErrorfCtx(ctx, "writing webhook_received audit entry: %v", err)
	}
}
