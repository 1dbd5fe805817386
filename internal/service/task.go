package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"earnbot/internal/keyboard"
	"earnbot/internal/model"
	"earnbot/internal/repository"
)

// SpreadsheetMIME is the MIME type of .xlsx files.
const SpreadsheetMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// TaskFile describes an uploaded document.
type TaskFile struct {
	FileID   string
	FileName string
	MIME     string
}

// IsSpreadsheet accepts .xlsx files by name or by MIME type.
func IsSpreadsheet(f TaskFile) bool {
	if strings.HasSuffix(strings.ToLower(f.FileName), ".xlsx") {
		return true
	}
	return f.MIME == SpreadsheetMIME
}

// Tasks takes task submissions for review.
type Tasks struct {
	uow      repository.UnitOfWork
	notifier *Notifier
	adminID  int64
}

// NewTasks creates a new Tasks instance.
func NewTasks(uow repository.UnitOfWork, notifier *Notifier, adminID int64) *Tasks {
	return &Tasks{
		uow:      uow,
		notifier: notifier,
		adminID:  adminID,
	}
}

// Submit stores a Pending submission and alerts the administrator.
func (t *Tasks) Submit(ctx context.Context, userID int64, username string, file TaskFile) (*model.TaskSubmission, error) {
	if !IsSpreadsheet(file) {
		return nil, ErrNotSpreadsheet
	}

	var task *model.TaskSubmission
	err := t.uow.Do(ctx, func(tx repository.Repos) error {
		if _, _, err := tx.Users().Ensure(ctx, userID); err != nil {
			return err
		}
		var err error
		task, err = tx.Tasks().Create(ctx, userID, username, file.FileID, file.FileName)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("task_id", task.ID).
		Int64("user_id", userID).
		Str("file_name", file.FileName).
		Msg("Task submitted")

	t.notifier.Deliver(
		Message(userID, keyboard.MsgTaskSubmitted),
		Message(t.adminID, keyboard.FormatNewTaskAlert(task)),
	)

	return task, nil
}

// Pending returns pending submissions with the submitter's balance.
func (t *Tasks) Pending(ctx context.Context, limit int) ([]*model.PendingTask, error) {
	return t.uow.Tasks().Pending(ctx, limit)
}
