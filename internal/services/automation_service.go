package services

import (
	"context"
	"strings"
	"time"

	"instapilot/config"
	"instapilot/internal/domain/automation"
	"instapilot/internal/repository"
	pilot_errors "instapilot/pkg/errors"

	"github.com/google/uuid"
)

// TierLimits caps the number of automations per subscription tier. Unknown
// tiers get the free tier cap.
type TierLimits struct {
	Free       int
	Pro        int
	Enterprise int
}

func TierLimitsFromConfig(cfg *config.Config) TierLimits {
	return TierLimits{
		Free:       cfg.FreeTierMaxAutomations,
		Pro:        cfg.ProTierMaxAutomations,
		Enterprise: cfg.EnterpriseTierMaxAutomations,
	}
}

func (t TierLimits) MaxFor(tier string) int {
	switch strings.ToLower(tier) {
	case "pro":
		return t.Pro
	case "enterprise":
		return t.Enterprise
	default:
		return t.Free
	}
}

type AutomationService struct {
	automations repository.AutomationRepository
	accounts    repository.AccountRepository
	limits      TierLimits
}

func NewAutomationService(automations repository.AutomationRepository, accounts repository.AccountRepository, limits TierLimits) *AutomationService {
	return &AutomationService{
		automations: automations,
		accounts:    accounts,
		limits:      limits,
	}
}

type CreateAutomationInput struct {
	UserID          uuid.UUID
	Tier            string
	AccountID       uuid.UUID
	Kind            automation.Kind
	Enabled         bool
	TriggerKeywords []string
	Template        string
}

type UpdateAutomationInput struct {
	UserID          uuid.UUID
	RuleID          uuid.UUID
	Enabled         *bool
	TriggerKeywords []string // nil means unchanged
	Template        *string
}

func (s *AutomationService) Create(ctx context.Context, in CreateAutomationInput) (automation.Rule, error) {
	if !in.Kind.Valid() {
		return automation.Rule{}, pilot_errors.ErrInvalidInput
	}

	acct, err := s.accounts.GetByID(ctx, in.AccountID)
	if err != nil {
		return automation.Rule{}, err
	}
	if acct.UserID != in.UserID {
		return automation.Rule{}, pilot_errors.ErrForbidden
	}
	if !acct.Active {
		return automation.Rule{}, pilot_errors.ErrAccountInactive
	}

	count, err := s.automations.CountByUser(ctx, in.UserID)
	if err != nil {
		return automation.Rule{}, err
	}
	if count >= s.limits.MaxFor(in.Tier) {
		return automation.Rule{}, pilot_errors.ErrTierLimitReached
	}

	now := time.Now().UTC()
	rule := automation.Rule{
		ID:              uuid.New(),
		UserID:          in.UserID,
		AccountID:       in.AccountID,
		Kind:            in.Kind,
		Enabled:         in.Enabled,
		TriggerKeywords: cleanKeywords(in.TriggerKeywords),
		Template:        strings.TrimSpace(in.Template),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.automations.Create(ctx, &rule); err != nil {
		return automation.Rule{}, err
	}
	return rule, nil
}

func (s *AutomationService) Get(ctx context.Context, userID, ruleID uuid.UUID) (automation.Rule, error) {
	return s.automations.GetByID(ctx, ruleID, userID)
}

func (s *AutomationService) List(ctx context.Context, userID uuid.UUID) ([]automation.Rule, error) {
	return s.automations.ListByUser(ctx, userID)
}

func (s *AutomationService) Update(ctx context.Context, in UpdateAutomationInput) (automation.Rule, error) {
	rule, err := s.automations.GetByID(ctx, in.RuleID, in.UserID)
	if err != nil {
		return automation.Rule{}, err
	}

	if in.Enabled != nil {
		rule.Enabled = *in.Enabled
	}
	if in.TriggerKeywords != nil {
		rule.TriggerKeywords = cleanKeywords(in.TriggerKeywords)
	}
	if in.Template != nil {
		rule.Template = strings.TrimSpace(*in.Template)
	}
	rule.UpdatedAt = time.Now().UTC()

	if err := s.automations.Update(ctx, &rule); err != nil {
		return automation.Rule{}, err
	}
	return rule, nil
}

func (s *AutomationService) Delete(ctx context.Context, userID, ruleID uuid.UUID) error {
	return s.automations.Delete(ctx, ruleID, userID)
}

// cleanKeywords trims entries and drops empty ones. An empty result means
// match-all, which is a valid configuration.
func cleanKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}
