package httpdto

import (
	"time"

	"instapilot/internal/domain/automation"
)

type CreateAutomationRequest struct {
	AccountID       string   `json:"account_id" binding:"required,uuid"`
	Kind            string   `json:"kind" binding:"required"`
	Enabled         *bool    `json:"enabled"`
	TriggerKeywords []string `json:"trigger_keywords"`
	Template        string   `json:"template" binding:"required"`
}

type UpdateAutomationRequest struct {
	Enabled         *bool    `json:"enabled"`
	TriggerKeywords []string `json:"trigger_keywords"`
	Template        *string  `json:"template"`
}

type AutomationResponse struct {
	ID              string    `json:"id"`
	AccountID       string    `json:"account_id"`
	Kind            string    `json:"kind"`
	Enabled         bool      `json:"enabled"`
	TriggerKeywords []string  `json:"trigger_keywords"`
	Template        string    `json:"template"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func NewAutomationResponse(r automation.Rule) AutomationResponse {
	keywords := r.TriggerKeywords
	if keywords == nil {
		keywords = []string{}
	}
	return AutomationResponse{
		ID:              r.ID.String(),
		AccountID:       r.AccountID.String(),
		Kind:            string(r.Kind),
		Enabled:         r.Enabled,
		TriggerKeywords: keywords,
		Template:        r.Template,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func NewAutomationListResponse(rules []automation.Rule) []AutomationResponse {
	out := make([]AutomationResponse, 0, len(rules))
	for _, r := range rules {
		out = append(out, NewAutomationResponse(r))
	}
	return out
}
