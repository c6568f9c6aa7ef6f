package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"instapilot/internal/domain/account"
	"instapilot/internal/domain/actionlog"
	"instapilot/internal/domain/automation"
)

// DBTX is the subset of pgx the repositories need. *pgxpool.Pool and pgx.Tx
// both satisfy it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type AccountRepository interface {
	Create(ctx context.Context, a *account.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (account.Account, error)
	GetByExternalID(ctx context.Context, externalID string) (account.Account, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]account.Account, error)
	ListExpiringBefore(ctx context.Context, cutoff time.Time) ([]account.Account, error)
	UpdateCredential(ctx context.Context, id uuid.UUID, encrypted string, expiry time.Time) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

type AutomationRepository interface {
	Create(ctx context.Context, r *automation.Rule) error
	GetByID(ctx context.Context, id, userID uuid.UUID) (automation.Rule, error)
	GetByAccountAndKind(ctx context.Context, accountID uuid.UUID, kind automation.Kind) (automation.Rule, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]automation.Rule, error)
	ListEnabledByAccount(ctx context.Context, accountID uuid.UUID) ([]automation.Rule, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int, error)
	Update(ctx context.Context, r *automation.Rule) error
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

// ActionLogFilter narrows the audit log read path.
type ActionLogFilter struct {
	UserID     uuid.UUID
	ActionKind actionlog.ActionKind // optional
	Status     actionlog.Status     // optional
	Page       int
	PageSize   int
}

type ActionLogRepository interface {
	Create(ctx context.Context, e *actionlog.Entry) error
	List(ctx context.Context, f ActionLogFilter) ([]actionlog.Entry, int64, error)
	// HasSuccessfulDMSince reports whether a success dm_sent entry exists for
	// (account, recipient) newer than since. Backs the dedup window guard.
	HasSuccessfulDMSince(ctx context.Context, accountID uuid.UUID, recipientID string, since time.Time) (bool, error)
	// HasSuccessfulReply reports whether a success comment_reply entry exists
	// for (account, comment). Backs the reply idempotency check.
	HasSuccessfulReply(ctx context.Context, accountID uuid.UUID, commentID string) (bool, error)
}
