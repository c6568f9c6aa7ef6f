package event

import "encoding/json"

// Kind classifies a normalized inbound change.
type Kind string

const (
	KindComment Kind = "comment"
	KindMention Kind = "mention"
	KindMessage Kind = "message"
)

// Inbound is one normalized change reported by a platform webhook. It is
// immutable and discarded after dispatch; only derived audit entries persist.
type Inbound struct {
	ExternalAccountID string          `json:"external_account_id"`
	Kind              Kind            `json:"kind"`
	SubjectID         string          `json:"subject_id"`
	ActorID           string          `json:"actor_id"`
	Text              string          `json:"text"`
	RawPayload        json.RawMessage `json:"raw_payload,omitempty"`
}
