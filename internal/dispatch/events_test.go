package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"instapilot/internal/domain/account"
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

type stubAccounts struct {
	acct account.Account
	err  error
}

func (s *stubAccounts) Create(ctx context.Context, a *account.Account) error { return nil }
func (s *stubAccounts) GetByID(ctx context.Context, id uuid.UUID) (account.Account, error) {
	return s.acct, s.err
}
func (s *stubAccounts) GetByExternalID(ctx context.Context, externalID string) (account.Account, error) {
	if s.err != nil {
		return account.Account{}, s.err
	}
	if s.acct.ExternalAccountID != externalID {
		return account.Account{}, pilot_errors.ErrNotFound
	}
	return s.acct, nil
}
func (s *stubAccounts) ListByUser(ctx context.Context, userID uuid.UUID) ([]account.Account, error) {
	return nil, nil
}
func (s *stubAccounts) ListExpiringBefore(ctx context.Context, cutoff time.Time) ([]account.Account, error) {
	return nil, nil
}
func (s *stubAccounts) UpdateCredential(ctx context.Context, id uuid.UUID, encrypted string, expiry time.Time) error {
	return nil
}
func (s *stubAccounts) SetActive(ctx context.Context, id uuid.UUID, active bool) error { return nil }

type stubAutomations struct {
	rules []automation.Rule
	err   error
}

func (s *stubAutomations) Create(ctx context.Context, r *automation.Rule) error { return nil }
func (s *stubAutomations) GetByID(ctx context.Context, id, userID uuid.UUID) (automation.Rule, error) {
	return automation.Rule{}, pilot_errors.ErrNotFound
}
func (s *stubAutomations) GetByAccountAndKind(ctx context.Context, accountID uuid.UUID, kind automation.Kind) (automation.Rule, error) {
	return automation.Rule{}, pilot_errors.ErrNotFound
}
func (s *stubAutomations) ListByUser(ctx context.Context, userID uuid.UUID) ([]automation.Rule, error) {
	return s.rules, s.err
}
func (s *stubAutomations) ListEnabledByAccount(ctx context.Context, accountID uuid.UUID) ([]automation.Rule, error) {
	return s.rules, s.err
}
func (s *stubAutomations) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	return len(s.rules), nil
}
func (s *stubAutomations) Update(ctx context.Context, r *automation.Rule) error { return nil }
func (s *stubAutomations) Delete(ctx context.Context, id, userID uuid.UUID) error {
	return nil
}

type stubLogs struct {
	entries []actionlog.Entry
}

func (s *stubLogs) Create(ctx context.Context, e *actionlog.Entry) error {
	s.entries = append(s.entries, *e)
	return nil
}
func (s *stubLogs) List(ctx context.Context, f repository.ActionLogFilter) ([]actionlog.Entry, int64, error) {
	return s.entries, int64(len(s.entries)), nil
}
func (s *stubLogs) HasSuccessfulDMSince(ctx context.Context, accountID uuid.UUID, recipientID string, since time.Time) (bool, error) {
	return false, nil
}
func (s *stubLogs) HasSuccessfulReply(ctx context.Context, accountID uuid.UUID, commentID string) (bool, error) {
	return false, nil
}

type captureProducer struct {
	tasks []queue.Task
	err   error
}

func (c *captureProducer) Enqueue(ctx context.Context, t queue.Task) error {
	if c.err != nil {
		return c.err
	}
	c.tasks = append(c.tasks, t)
	return nil
}

func commentEvent() event.Inbound {
	return event.Inbound{
		ExternalAccountID: "ig_1",
		Kind:              event.KindComment,
		SubjectID:         "cmt_7",
		ActorID:           "user_3",
		Text:              "where can I get the price?",
	}
}

func eventTask(ev event.Inbound) queue.Task {
	return queue.Task{
		Kind:          queue.TaskProcessEvent,
		CorrelationID: "corr-1",
		Attempt:       1,
		Event:         &ev,
	}
}

func newEventFixture() (*EventProcessor, *stubAccounts, *stubAutomations, *stubLogs, *captureProducer) {
	acct := account.Account{
		ID:                uuid.New(),
		UserID:            uuid.New(),
		ExternalAccountID: "ig_1",
		Username:          "shoppy",
		Active:            true,
	}
	accounts := &stubAccounts{acct: acct}
	automations := &stubAutomations{}
	logs := &stubLogs{}
	producer := &captureProducer{}
	p := NewEventProcessor(accounts, automations, logs, producer, logger.NewNop())
	return p, accounts, automations, logs, producer
}

func TestProcessFansOutBothKinds(t *testing.T) {
	p, accounts, automations, logs, producer := newEventFixture()
	automations.rules = []automation.Rule{
		{ID: uuid.New(), Kind: automation.KindAutoReplyComment, Enabled: true, Template: "thanks!", TriggerKeywords: []string{"price"}},
		{ID: uuid.New(), Kind: automation.KindSendDM, Enabled: true, Template: "here is the link", TriggerKeywords: []string{"price"}},
	}

	out := p.Process(context.Background(), eventTask(commentEvent()), false)
	if out.Disposition != executor.Success {
		t.Fatalf("disposition = %v, detail %q", out.Disposition, out.Detail)
	}

	if len(producer.tasks) != 2 {
		t.Fatalf("enqueued = %d", len(producer.tasks))
	}
	byKind := map[queue.TaskKind]queue.Task{}
	for _, task := range producer.tasks {
		byKind[task.Kind] = task
	}
	reply := byKind[queue.TaskReplyComment]
	if reply.TargetID != "cmt_7" || reply.Text != "thanks!" {
		t.Errorf("reply task = %+v", reply)
	}
	dm := byKind[queue.TaskSendDM]
	if dm.TargetID != "user_3" || dm.Text != "here is the link" {
		t.Errorf("dm task = %+v", dm)
	}
	for _, task := range producer.tasks {
		if task.AccountID != accounts.acct.ID.String() {
			t.Errorf("task account = %q", task.AccountID)
		}
		if task.CorrelationID != "corr-1" || task.Attempt != 1 {
			t.Errorf("task = %+v", task)
		}
	}

	if len(logs.entries) != 1 || logs.entries[0].ActionKind != actionlog.ActionWebhookReceived {
		t.Errorf("audit entries = %+v", logs.entries)
	}
}

func TestProcessNoMatchingRules(t *testing.T) {
	p, _, automations, _, producer := newEventFixture()
	automations.rules = []automation.Rule{
		{ID: uuid.New(), Kind: automation.KindAutoReplyComment, Enabled: true, Template: "thanks!", TriggerKeywords: []string{"shipping"}},
	}

	out := p.Process(context.Background(), eventTask(commentEvent()), false)
	if out.Disposition != executor.Success {
		t.Fatalf("disposition = %v", out.Disposition)
	}
	if len(producer.tasks) != 0 {
		t.Errorf("enqueued = %+v", producer.tasks)
	}
}

func TestProcessUnknownAccountSkips(t *testing.T) {
	p, _, _, logs, producer := newEventFixture()

	ev := commentEvent()
	ev.ExternalAccountID = "stranger"
	out := p.Process(context.Background(), eventTask(ev), false)
	if out.Disposition != executor.Skip {
		t.Fatalf("disposition = %v", out.Disposition)
	}
	if len(producer.tasks) != 0 || len(logs.entries) != 0 {
		t.Errorf("side effects for unknown account")
	}
}

func TestProcessInactiveAccountSkips(t *testing.T) {
	p, accounts, _, logs, producer := newEventFixture()
	accounts.acct.Active = false

	out := p.Process(context.Background(), eventTask(commentEvent()), false)
	if out.Disposition != executor.Skip {
		t.Fatalf("disposition = %v", out.Disposition)
	}
	if len(producer.tasks) != 0 {
		t.Errorf("enqueued = %+v", producer.tasks)
	}
	// The drop still leaves an audit trail the account owner can see.
	if len(logs.entries) != 1 {
		t.Fatalf("audit entries = %+v", logs.entries)
	}
	e := logs.entries[0]
	if e.ActionKind != actionlog.ActionWebhookReceived || e.Status != actionlog.StatusSkipped {
		t.Errorf("entry = %+v", e)
	}
	if e.UserID != accounts.acct.UserID || e.SubjectID != "cmt_7" {
		t.Errorf("entry = %+v", e)
	}
}

func TestProcessDatabaseErrorRetries(t *testing.T) {
	p, accounts, _, _, _ := newEventFixture()
	accounts.err = errors.New("connection refused")

	out := p.Process(context.Background(), eventTask(commentEvent()), false)
	if out.Disposition != executor.Retry {
		t.Fatalf("disposition = %v", out.Disposition)
	}

	out = p.Process(context.Background(), eventTask(commentEvent()), true)
	if out.Disposition != executor.GiveUp {
		t.Fatalf("final disposition = %v", out.Disposition)
	}
}

func TestProcessEnqueueErrorRetries(t *testing.T) {
	p, _, automations, _, producer := newEventFixture()
	automations.rules = []automation.Rule{
		{ID: uuid.New(), Kind: automation.KindSendDM, Enabled: true, Template: "link"},
	}
	producer.err = errors.New("redis down")

	out := p.Process(context.Background(), eventTask(commentEvent()), false)
	if out.Disposition != executor.Retry {
		t.Fatalf("disposition = %v", out.Disposition)
	}
}

func TestProcessAuditsOnlyFirstAttempt(t *testing.T) {
	p, _, _, logs, _ := newEventFixture()

	task := eventTask(commentEvent())
	task.Attempt = 2
	out := p.Process(context.Background(), task, false)
	if out.Disposition != executor.Success {
		t.Fatalf("disposition = %v", out.Disposition)
	}
	if len(logs.entries) != 0 {
		t.Errorf("retry attempt wrote audit entries: %+v", logs.entries)
	}
}

func TestPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.MaxAttempts != 3 {
		t.Errorf("max attempts = %d", p.MaxAttempts)
	}
	if p.DelayFor(queue.TaskProcessEvent) != 60*time.Second {
		t.Errorf("event delay = %v", p.DelayFor(queue.TaskProcessEvent))
	}
	if p.DelayFor(queue.TaskReplyComment) != 30*time.Second {
		t.Errorf("action delay = %v", p.DelayFor(queue.TaskReplyComment))
	}
	if p.Final(2) || !p.Final(3) {
		t.Errorf("final attempt boundary wrong")
	}
}
