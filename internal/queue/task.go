// Package queue provides the durable task substrate on Redis Streams.
// Tasks are at-least-once: XADD persists a task before the producer
// acknowledges, consumer groups redeliver unacked messages, and failed
// attempts are parked in a ZSET until their retry delay elapses.
package queue

import (
	"encoding/json"
	"fmt"

	"instapilot/internal/domain/event"

	"github.com/redis/go-redis/v9"
)

// TaskKind is the closed set of queued work kinds.
type TaskKind string

const (
	// TaskProcessEvent fans one inbound event out to matching automations.
	TaskProcessEvent TaskKind = "process_event"
	// TaskReplyComment posts one comment reply.
	TaskReplyComment TaskKind = "reply_comment"
	// TaskSendDM sends one direct message.
	TaskSendDM TaskKind = "send_dm"
)

// Stream names. Comment and message workers scale independently; the events
// stream carries fan-out work.
const (
	StreamEvents   = "tasks:events"
	StreamComments = "tasks:comments"
	StreamMessages = "tasks:messages"
	retryKey       = "tasks:retry"
)

// Stream returns the stream a task kind is routed to.
func (k TaskKind) Stream() string {
	switch k {
	case TaskReplyComment:
		return StreamComments
	case TaskSendDM:
		return StreamMessages
	default:
		return StreamEvents
	}
}

// Task is one queued, retryable unit of work.
type Task struct {
	Kind              TaskKind       `json:"kind"`
	AccountID         string         `json:"account_id,omitempty"`
	ExternalAccountID string         `json:"external_account_id,omitempty"`
	TargetID          string         `json:"target_id,omitempty"` // comment id or recipient id
	Text              string         `json:"text,omitempty"`      // rendered template
	CorrelationID     string         `json:"correlation_id"`
	Attempt           int            `json:"attempt"`
	Event             *event.Inbound `json:"event,omitempty"` // set for process_event tasks
}

// Message is a task read from a stream, carrying its delivery id for acking.
type Message struct {
	ID   string
	Task Task
	Raw  redis.XMessage
}

func taskValues(t Task) (map[string]any, error) {
	payload, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshal task: %w", err)
	}
	return map[string]any{
		"kind":           string(t.Kind),
		"attempt":        t.Attempt,
		"correlation_id": t.CorrelationID,
		"payload":        string(payload),
	}, nil
}

// ParseMessage decodes a raw stream entry back into a task.
func ParseMessage(msg redis.XMessage) (Message, error) {
	raw, ok := msg.Values["payload"]
	if !ok {
		return Message{}, fmt.Errorf("message %s: missing payload", msg.ID)
	}

	var t Task
	if err := json.Unmarshal([]byte(fmt.Sprint(raw)), &t); err != nil {
		return Message{}, fmt.Errorf("message %s: decode payload: %w", msg.ID, err)
	}
	if t.Attempt <= 0 {
		t.Attempt = 1
	}
	switch t.Kind {
	case TaskProcessEvent:
		if t.Event == nil {
			return Message{}, fmt.Errorf("message %s: process_event without event", msg.ID)
		}
	case TaskReplyComment, TaskSendDM:
		if t.AccountID == "" || t.TargetID == "" {
			return Message{}, fmt.Errorf("message %s: %s without account or target", msg.ID, t.Kind)
		}
	default:
		return Message{}, fmt.Errorf("message %s: unknown kind %q", msg.ID, t.Kind)
	}

	return Message{ID: msg.ID, Task: t, Raw: msg}, nil
}
