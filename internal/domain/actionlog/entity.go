package actionlog

import (
	"time"

	"github.com/google/uuid"
)

// ActionKind identifies what a log entry records.
type ActionKind string

const (
	ActionWebhookReceived ActionKind = "webhook_received"
	ActionCommentReply    ActionKind = "comment_reply"
	ActionDMSent          ActionKind = "dm_sent"
	ActionTokenRefresh    ActionKind = "token_refresh"
)

// Status is the outcome recorded for an entry.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
	StatusPending Status = "pending"
)

// Entry is an append-only audit record. Entries are never mutated after
// creation; they are the sole durable record of pipeline activity and the
// basis for the dedup window lookback.
type Entry struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	AccountID   *uuid.UUID `json:"account_id,omitempty"`
	ActionKind  ActionKind `json:"action_kind"`
	Status      Status     `json:"status"`
	SubjectID   string     `json:"subject_id,omitempty"`
	RecipientID string     `json:"recipient_id,omitempty"`
	MessageSent string     `json:"message_sent,omitempty"`
	ErrorDetail string     `json:"error_detail,omitempty"`
	Details     string     `json:"details,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
