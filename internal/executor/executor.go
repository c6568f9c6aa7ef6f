// Package executor performs the side effect a queued action task describes
// and records the outcome in the audit log.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"instapilot/internal/domain/account"
	"instapilot/internal/domain/actionlog"
	"instapilot/internal/instagram"
	"instapilot/internal/queue"
	"instapilot/internal/repository"
	"instapilot/internal/vault"
	pilot_errors "instapilot/pkg/errors"
	"instapilot/pkg/logger"

	"github.com/google/uuid"
)

// Disposition classifies one execution attempt for the worker loop.
type Disposition int

const (
	// Success: the side effect happened and was audited.
	Success Disposition = iota
	// Skip: the task is obsolete (dedup hit, inactive account); acked, no retry.
	Skip
	// Retry: the attempt failed; the task should be re-scheduled.
	Retry
	// GiveUp: attempts exhausted or the task is undeliverable; final
	// failures are audited as failed.
	GiveUp
)

// Outcome is the result of executing one task attempt.
type Outcome struct {
	Disposition Disposition
	Detail      string
}

// Executor executes comment-reply and DM tasks. Guards that were checked at
// enqueue time (account active, dedup window, reply idempotency) are checked
// again here: the state can change while a task waits in the queue.
type Executor struct {
	accounts    repository.AccountRepository
	logs        repository.ActionLogRepository
	vault       *vault.Vault
	graph       instagram.Client
	dedupWindow time.Duration
	log         *logger.Logger
}

func New(
	accounts repository.AccountRepository,
	logs repository.ActionLogRepository,
	v *vault.Vault,
	graph instagram.Client,
	dedupWindow time.Duration,
	log *logger.Logger,
) *Executor {
	return &Executor{
		accounts:    accounts,
		logs:        logs,
		vault:       v,
		graph:       graph,
		dedupWindow: dedupWindow,
		log:         log,
	}
}

// Execute runs one attempt. final tells the executor this is the last allowed
// attempt, so a failure that would otherwise retry is audited and given up.
func (e *Executor) Execute(ctx context.Context, t queue.Task, final bool) Outcome {
	switch t.Kind {
	case queue.TaskReplyComment:
		return e.replyComment(ctx, t, final)
	case queue.TaskSendDM:
		return e.sendDM(ctx, t, final)
	default:
		return Outcome{Disposition: GiveUp, Detail: fmt.Sprintf("executor cannot handle %s tasks", t.Kind)}
	}
}

func (e *Executor) replyComment(ctx context.Context, t queue.Task, final bool) Outcome {
	acct, out := e.loadAccount(ctx, t)
	if out != nil {
		return *out
	}

	done, err := e.logs.HasSuccessfulReply(ctx, acct.ID, t.TargetID)
	if err != nil {
		return e.failure(ctx, t, acct, final, fmt.Sprintf("idempotency lookup: %v", err))
	}
	if done {
		e.log.InfofCtx(ctx, "comment %s already replied to, skipping", t.TargetID)
		e.audit(ctx, t, acct, actionlog.StatusSkipped, "", "already replied")
		return Outcome{Disposition: Skip, Detail: "already replied"}
	}

	token, err := e.vault.Decrypt(acct.EncryptedCredential)
	if err != nil {
		return e.failure(ctx, t, acct, final, fmt.Sprintf("decrypt credential: %v", err))
	}

	res := e.graph.ReplyToComment(ctx, token, t.TargetID, t.Text)
	if !res.OK {
		return e.failure(ctx, t, acct, final,
			fmt.Sprintf("reply failed: status %d: %s", res.StatusCode, res.Body))
	}

	e.audit(ctx, t, acct, actionlog.StatusSuccess, res.ExternalID, "")
	return Outcome{Disposition: Success}
}

func (e *Executor) sendDM(ctx context.Context, t queue.Task, final bool) Outcome {
	acct, out := e.loadAccount(ctx, t)
	if out != nil {
		return *out
	}

	since := time.Now().Add(-e.dedupWindow)
	sent, err := e.logs.HasSuccessfulDMSince(ctx, acct.ID, t.TargetID, since)
	if err != nil {
		return e.failure(ctx, t, acct, final, fmt.Sprintf("dedup lookup: %v", err))
	}
	if sent {
		e.log.InfofCtx(ctx, "recipient %s already messaged within window, skipping", t.TargetID)
		e.audit(ctx, t, acct, actionlog.StatusSkipped, "", "recipient messaged within dedup window")
		return Outcome{Disposition: Skip, Detail: "dedup window"}
	}

	token, err := e.vault.Decrypt(acct.EncryptedCredential)
	if err != nil {
		return e.failure(ctx, t, acct, final, fmt.Sprintf("decrypt credential: %v", err))
	}

	res := e.graph.SendDM(ctx, token, t.TargetID, t.Text)
	if !res.OK {
		return e.failure(ctx, t, acct, final,
			fmt.Sprintf("send failed: status %d: %s", res.StatusCode, res.Body))
	}

	e.audit(ctx, t, acct, actionlog.StatusSuccess, res.ExternalID, "")
	return Outcome{Disposition: Success}
}

// loadAccount resolves the task's account and applies the guards common to
// both action kinds. A non-nil Outcome short-circuits the attempt.
func (e *Executor) loadAccount(ctx context.Context, t queue.Task) (account.Account, *Outcome) {
	id, err := uuid.Parse(t.AccountID)
	if err != nil {
		return account.Account{}, &Outcome{Disposition: GiveUp, Detail: fmt.Sprintf("bad account id %q", t.AccountID)}
	}

	acct, err := e.accounts.GetByID(ctx, id)
	if errors.Is(err, pilot_errors.ErrNotFound) {
		e.log.WarnfCtx(ctx, "account %s no longer exists, dropping task", t.AccountID)
		return account.Account{}, &Outcome{Disposition: GiveUp, Detail: "account deleted"}
	}
	if err != nil {
		return account.Account{}, &Outcome{Disposition: Retry, Detail: fmt.Sprintf("load account: %v", err)}
	}
	if !acct.Active {
		e.log.InfofCtx(ctx, "account %s inactive, skipping task", t.AccountID)
		e.audit(ctx, t, acct, actionlog.StatusSkipped, "", "account inactive")
		return account.Account{}, &Outcome{Disposition: Skip, Detail: "account inactive"}
	}
	return acct, nil
}

// failure turns a failed attempt into Retry or GiveUp. Every failure goes
// through the same attempt cap, 4xx included; only the final attempt is
// audited as failed.
func (e *Executor) failure(ctx context.Context, t queue.Task, acct account.Account, final bool, detail string) Outcome {
	if final {
		e.log.ErrorfCtx(ctx, "%s task gave up (attempt=%d): %s", t.Kind, t.Attempt, detail)
		e.auditFailed(ctx, t, acct, detail)
		return Outcome{Disposition: GiveUp, Detail: detail}
	}
	e.log.WarnfCtx(ctx, "%s task attempt %d failed, will retry: %s", t.Kind, t.Attempt, detail)
	return Outcome{Disposition: Retry, Detail: detail}
}

func (e *Executor) audit(ctx context.Context, t queue.Task, acct account.Account, status actionlog.Status, externalID, detail string) {
	entry := actionlog.Entry{
		ID:        uuid.New(),
		UserID:    acct.UserID,
		AccountID: &acct.ID,
		Status:    status,
		CreatedAt: time.Now().UTC(),
		Details:   detail,
	}
	switch t.Kind {
	case queue.TaskReplyComment:
		entry.ActionKind = actionlog.ActionCommentReply
		entry.SubjectID = t.TargetID
	case queue.TaskSendDM:
		entry.ActionKind = actionlog.ActionDMSent
		entry.RecipientID = t.TargetID
	}
	if status == actionlog.StatusSuccess {
		entry.MessageSent = t.Text
		if externalID != "" {
			entry.Details = externalID
		}
	}
	if err := e.logs.Create(ctx, &entry); err != nil {
		e.log.ErrorfCtx(ctx, "writing %s audit entry: %v", entry.ActionKind, err)
	}
}

func (e *Executor) auditFailed(ctx context.Context, t queue.Task, acct account.Account, detail string) {
	entry := actionlog.Entry{
		ID:          uuid.New(),
		UserID:      acct.UserID,
		ActionKind:  actionlog.ActionCommentReply,
		Status:      actionlog.StatusFailed,
		MessageSent: t.Text,
		ErrorDetail: detail,
		CreatedAt:   time.Now().UTC(),
	}
	if acct.ID != uuid.Nil {
		entry.AccountID = &acct.ID
	}
	switch t.Kind {
	case queue.TaskSendDM:
		entry.ActionKind = actionlog.ActionDMSent
		entry.RecipientID = t.TargetID
	default:
		entry.SubjectID = t.TargetID
	}
	if err := e.logs.Create(ctx, &entry); err != nil {
		e.log.ErrorfCtx(ctx, "writing failed audit entry: %v", err)
	}
}
