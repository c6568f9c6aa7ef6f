package repository

import (
	"context"
	"strconv"
	"time"

	"instapilot/internal/domain/actionlog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type actionLogRepository struct {
	db DBTX
}

func NewActionLogRepository(db DBTX) ActionLogRepository {
	return &actionLogRepository{db: db}
}

const entryColumns = `id, user_id, account_id, action_kind, status, subject_id, recipient_id, message_sent, error_detail, details, created_at`

// Create appends one entry. Entries are append-only; there is no update path.
func (r *actionLogRepository) Create(ctx context.Context, e *actionlog.Entry) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO action_logs (id, user_id, account_id, action_kind, status, subject_id, recipient_id, message_sent, error_detail, details, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
    `, e.ID, e.UserID, e.AccountID, e.ActionKind, e.Status, e.SubjectID,
		e.RecipientID, e.MessageSent, e.ErrorDetail, e.Details, e.CreatedAt)
	return err
}

func (r *actionLogRepository) List(ctx context.Context, f ActionLogFilter) ([]actionlog.Entry, int64, error) {
	where := `WHERE user_id = $1`
	args := []any{f.UserID}
	if f.ActionKind != "" {
		args = append(args, f.ActionKind)
		where += ` AND action_kind = $2`
	}
	if f.Status != "" {
		args = append(args, f.Status)
		if f.ActionKind != "" {
			where += ` AND status = $3`
		} else {
			where += ` AND status = $2`
		}
	}

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM action_logs `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	pageSize := f.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	limitPos := len(args) + 1
	args = append(args, pageSize, (page-1)*pageSize)
	query := `SELECT ` + entryColumns + ` FROM action_logs ` + where +
		` ORDER BY created_at DESC` +
		` LIMIT $` + strconv.Itoa(limitPos) + ` OFFSET $` + strconv.Itoa(limitPos+1)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []actionlog.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

func (r *actionLogRepository) HasSuccessfulDMSince(ctx context.Context, accountID uuid.UUID, recipientID string, since time.Time) (bool, error) {
	var count int
	err := r.db.QueryRow(ctx, `
        SELECT COUNT(*) FROM action_logs
        WHERE account_id = $1 AND recipient_id = $2
          AND action_kind = $3 AND status = $4 AND created_at >= $5
    `, accountID, recipientID, actionlog.ActionDMSent, actionlog.StatusSuccess, since).Scan(&count)
	return count > 0, err
}

func (r *actionLogRepository) HasSuccessfulReply(ctx context.Context, accountID uuid.UUID, commentID string) (bool, error) {
	var count int
	err := r.db.QueryRow(ctx, `
        SELECT COUNT(*) FROM action_logs
        WHERE account_id = $1 AND subject_id = $2
          AND action_kind = $3 AND status = $4
    `, accountID, commentID, actionlog.ActionCommentReply, actionlog.StatusSuccess).Scan(&count)
	return count > 0, err
}

func scanEntry(rows pgx.Rows) (actionlog.Entry, error) {
	var e actionlog.Entry
	err := rows.Scan(&e.ID, &e.UserID, &e.AccountID, &e.ActionKind, &e.Status,
		&e.SubjectID, &e.RecipientID, &e.MessageSent, &e.ErrorDetail, &e.Details, &e.CreatedAt)
	return e, err
}
