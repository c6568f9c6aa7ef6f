package services

import (
	"context"

	"instapilot/internal/domain/actionlog"
	"instapilot/internal/repository"
	pilot_errors "instapilot/pkg/errors"

	"github.com/google/uuid"
)

const maxLogPageSize = 100

type LogService struct {
	logs repository.ActionLogRepository
}

func NewLogService(logs repository.ActionLogRepository) *LogService {
	return &LogService{logs: logs}
}

type ListLogsInput struct {
	UserID     uuid.UUID
	ActionKind string
	Status     string
	Page       int
	PageSize   int
}

type LogPage struct {
	Entries  []actionlog.Entry `json:"entries"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

func (s *LogService) List(ctx context.Context, in ListLogsInput) (LogPage, error) {
	if in.ActionKind != "" && !validActionKind(actionlog.ActionKind(in.ActionKind)) {
		return LogPage{}, pilot_errors.ErrInvalidInput
	}
	if in.Status != "" && !validStatus(actionlog.Status(in.Status)) {
		return LogPage{}, pilot_errors.ErrInvalidInput
	}

	page := in.Page
	if page < 1 {
		page = 1
	}
	pageSize := in.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > maxLogPageSize {
		pageSize = maxLogPageSize
	}

	entries, total, err := s.logs.List(ctx, repository.ActionLogFilter{
		UserID:     in.UserID,
		ActionKind: actionlog.ActionKind(in.ActionKind),
		Status:     actionlog.Status(in.Status),
		Page:       page,
		PageSize:   pageSize,
	})
	if err != nil {
		return LogPage{}, err
	}
	if entries == nil {
		entries = []actionlog.Entry{}
	}
	return LogPage{Entries: entries, Total: total, Page: page, PageSize: pageSize}, nil
}

func validActionKind(k actionlog.ActionKind) bool {
	switch k {
	case actionlog.ActionWebhookReceived, actionlog.ActionCommentReply,
		actionlog.ActionDMSent, actionlog.ActionTokenRefresh:
		return true
	}
	return false
}

func validStatus(s actionlog.Status) bool {
	switch s {
	case actionlog.StatusSuccess, actionlog.StatusFailed,
		actionlog.StatusSkipped, actionlog.StatusPending:
		return true
	}
	return false
}
