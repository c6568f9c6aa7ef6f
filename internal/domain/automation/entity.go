package automation

import (
	"time"

	"github.com/google/uuid"
)

// Kind is the closed set of automation kinds.
type Kind string

const (
	KindAutoReplyComment Kind = "auto_reply_comment"
	KindSendDM           Kind = "send_dm"
)

// Valid reports whether k is a known automation kind.
func (k Kind) Valid() bool {
	return k == KindAutoReplyComment || k == KindSendDM
}

// Rule is a per-account, per-kind automation configuration. At most one rule
// exists per (account, kind); enforced at creation.
type Rule struct {
	ID              uuid.UUID `json:"id"`
	UserID          uuid.UUID `json:"user_id"`
	AccountID       uuid.UUID `json:"account_id"`
	Kind            Kind      `json:"kind"`
	Enabled         bool      `json:"enabled"`
	TriggerKeywords []string  `json:"trigger_keywords"`
	Template        string    `json:"template"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
