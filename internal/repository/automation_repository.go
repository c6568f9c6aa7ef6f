package repository

import (
	"context"
	"encoding/json"
	"errors"

	"instapilot/internal/domain/automation"
	pilot_errors "instapilot/pkg/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type automationRepository struct {
	db DBTX
}

func NewAutomationRepository(db DBTX) AutomationRepository {
	return &automationRepository{db: db}
}

const ruleColumns = `id, user_id, account_id, kind, enabled, trigger_keywords, template, created_at, updated_at`

func scanRule(row pgx.Row) (automation.Rule, error) {
	var r automation.Rule
	var keywords []byte
	err := row.Scan(&r.ID, &r.UserID, &r.AccountID, &r.Kind, &r.Enabled,
		&keywords, &r.Template, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return automation.Rule{}, pilot_errors.ErrNotFound
	}
	if err != nil {
		return automation.Rule{}, err
	}
	if len(keywords) > 0 {
		if err := json.Unmarshal(keywords, &r.TriggerKeywords); err != nil {
			return automation.Rule{}, err
		}
	}
	return r, nil
}

func keywordsJSON(keywords []string) ([]byte, error) {
	if keywords == nil {
		keywords = []string{}
	}
	return json.Marshal(keywords)
}

func (r *automationRepository) Create(ctx context.Context, rule *automation.Rule) error {
	keywords, err := keywordsJSON(rule.TriggerKeywords)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
        INSERT INTO automation_rules (id, user_id, account_id, kind, enabled, trigger_keywords, template, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    `, rule.ID, rule.UserID, rule.AccountID, rule.Kind, rule.Enabled,
		keywords, rule.Template, rule.CreatedAt, rule.UpdatedAt)
	if isUniqueViolation(err) {
		// One rule per (account, kind); the unique index backs this.
		return pilot_errors.ErrAlreadyExists
	}
	return err
}

func (r *automationRepository) GetByID(ctx context.Context, id, userID uuid.UUID) (automation.Rule, error) {
	return scanRule(r.db.QueryRow(ctx,
		`SELECT `+ruleColumns+` FROM automation_rules WHERE id = $1 AND user_id = $2`, id, userID))
}

func (r *automationRepository) GetByAccountAndKind(ctx context.Context, accountID uuid.UUID, kind automation.Kind) (automation.Rule, error) {
	return scanRule(r.db.QueryRow(ctx,
		`SELECT `+ruleColumns+` FROM automation_rules WHERE account_id = $1 AND kind = $2`, accountID, kind))
}

func (r *automationRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]automation.Rule, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+ruleColumns+` FROM automation_rules WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRules(rows)
}

func (r *automationRepository) ListEnabledByAccount(ctx context.Context, accountID uuid.UUID) ([]automation.Rule, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+ruleColumns+` FROM automation_rules WHERE account_id = $1 AND enabled = TRUE`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRules(rows)
}

func (r *automationRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM automation_rules WHERE user_id = $1`, userID).Scan(&count)
	return count, err
}

func (r *automationRepository) Update(ctx context.Context, rule *automation.Rule) error {
	keywords, err := keywordsJSON(rule.TriggerKeywords)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `
        UPDATE automation_rules
        SET enabled = $3, trigger_keywords = $4, template = $5, updated_at = now()
        WHERE id = $1 AND user_id = $2
    `, rule.ID, rule.UserID, rule.Enabled, keywords, rule.Template)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pilot_errors.ErrNotFound
	}
	return nil
}

func (r *automationRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM automation_rules WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pilot_errors.ErrNotFound
	}
	return nil
}

func collectRules(rows pgx.Rows) ([]automation.Rule, error) {
	var rules []automation.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}
