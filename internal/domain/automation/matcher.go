package automation

import (
	"strings"

	"instapilot/internal/domain/event"
)

// Match pairs a rule with the outcome of evaluating it against one event.
type Match struct {
	Rule       Rule
	ShouldFire bool
}

// KindsFor returns the automation kinds an event kind can trigger. Comment and
// mention events may trigger both a comment reply and a DM; message events
// trigger nothing.
func KindsFor(k event.Kind) []Kind {
	switch k {
	case event.KindComment, event.KindMention:
		return []Kind{KindAutoReplyComment, KindSendDM}
	default:
		return nil
	}
}

// Evaluate runs every enabled rule against the event and reports which fire.
// A rule fires when its kind is relevant to the event, its keyword set is
// empty (match-all) or any keyword is a case-insensitive substring of the
// event text, and its template is non-empty. Rules are independent; a comment
// event can fire both the reply rule and the DM rule.
func Evaluate(rules []Rule, ev event.Inbound) []Match {
	relevant := make(map[Kind]bool)
	for _, k := range KindsFor(ev.Kind) {
		relevant[k] = true
	}

	matches := make([]Match, 0, len(rules))
	for _, r := range rules {
		matches = append(matches, Match{Rule: r, ShouldFire: shouldFire(r, ev, relevant)})
	}
	return matches
}

func shouldFire(r Rule, ev event.Inbound, relevant map[Kind]bool) bool {
	if !r.Enabled || !relevant[r.Kind] {
		return false
	}
	if strings.TrimSpace(r.Template) == "" {
		// An automation with no message body performs no action.
		return false
	}
	if len(r.TriggerKeywords) == 0 {
		return true
	}

	text := strings.ToLower(ev.Text)
	for _, kw := range r.TriggerKeywords {
		if kw == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
