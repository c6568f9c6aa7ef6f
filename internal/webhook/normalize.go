package webhook

import (
	"encoding/json"
	"fmt"

	"instapilot/internal/domain/event"
	"instapilot/pkg/logger"
)

// payload is the wire shape of a webhook delivery. One delivery may bundle
// several entries, each with several changes and messaging items.
type payload struct {
	Object string  `json:"object"`
	Entry  []entry `json:"entry"`
}

type entry struct {
	ID        string      `json:"id"`
	Changes   []change    `json:"changes"`
	Messaging []messaging `json:"messaging"`
}

type change struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

type changeValue struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	From struct {
		ID string `json:"id"`
	} `json:"from"`
}

type messaging struct {
	Sender struct {
		ID string `json:"id"`
	} `json:"sender"`
	Message struct {
		MID  string `json:"mid"`
		Text string `json:"text"`
	} `json:"message"`
}

// Normalize parses a raw webhook body into inbound events. Unrecognized change
// fields are dropped, not errored; the platform adds new fields over time and
// ingestion must not break when it does. Malformed JSON is the caller's 400.
func Normalize(body []byte, log *logger.Logger) ([]event.Inbound, error) {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("parse webhook payload: %w", err)
	}
	if p.Object != "instagram" {
		return nil, nil
	}

	var events []event.Inbound
	for _, e := range p.Entry {
		for _, c := range e.Changes {
			kind, ok := changeKind(c.Field)
			if !ok {
				if log != nil {
					log.Debugf("dropping unrecognized webhook field %q", c.Field)
				}
				continue
			}

			var v changeValue
			if err := json.Unmarshal(c.Value, &v); err != nil {
				if log != nil {
					log.Warnf("dropping unparseable %q change: %v", c.Field, err)
				}
				continue
			}

			events = append(events, event.Inbound{
				ExternalAccountID: e.ID,
				Kind:              kind,
				SubjectID:         v.ID,
				ActorID:           v.From.ID,
				Text:              v.Text,
				RawPayload:        c.Value,
			})
		}

		for _, m := range e.Messaging {
			if m.Message.Text == "" {
				continue
			}
			events = append(events, event.Inbound{
				ExternalAccountID: e.ID,
				Kind:              event.KindMessage,
				SubjectID:         m.Message.MID,
				ActorID:           m.Sender.ID,
				Text:              m.Message.Text,
			})
		}
	}
	return events, nil
}

func changeKind(field string) (event.Kind, bool) {
	switch field {
	case "comments":
		return event.KindComment, true
	case "mentions":
		return event.KindMention, true
	default:
		return "", false
	}
}
