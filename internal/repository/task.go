package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"earnbot/internal/model"
)

const taskColumns = `id, user_id, username, file_id, file_name, status, created_at, decided_at`

// TaskRepository handles task submission persistence.
type TaskRepository struct {
	db DBTX
}

// NewTaskRepository creates a new TaskRepository instance.
func NewTaskRepository(db DBTX) *TaskRepository {
	return &TaskRepository{db: db}
}

func scanTask(row pgx.Row, extra ...any) (*model.TaskSubmission, error) {
	var (
		task   model.TaskSubmission
		status string
	)
	dest := []any{
		&task.ID,
		&task.UserID,
		&task.Username,
		&task.FileID,
		&task.FileName,
		&status,
		&task.CreatedAt,
		&task.DecidedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	task.Status = model.Status(status)
	return &task, nil
}

func taskResult(row pgx.Row, op string) (*model.TaskSubmission, error) {
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, errors.Wrap(err, op)
	}
	return task, nil
}

// Create inserts a new Pending task submission.
func (r *TaskRepository) Create(ctx context.Context, userID int64, username, fileID, fileName string) (*model.TaskSubmission, error) {
	const query = `
		INSERT INTO tasks (user_id, username, file_id, file_name, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + taskColumns

	task, err := scanTask(r.db.QueryRow(ctx, query, userID, username, fileID, fileName, string(model.StatusPending)))
	if err != nil {
		return nil, errors.Wrap(err, "create task")
	}
	return task, nil
}

// Get retrieves a task submission by id.
func (r *TaskRepository) Get(ctx context.Context, id int64) (*model.TaskSubmission, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	return taskResult(r.db.QueryRow(ctx, query, id), "get task")
}

// GetForUpdate retrieves a task submission and locks the row.
func (r *TaskRepository) GetForUpdate(ctx context.Context, id int64) (*model.TaskSubmission, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 FOR UPDATE`
	return taskResult(r.db.QueryRow(ctx, query, id), "lock task")
}

// SetStatus records a decision on a task submission.
func (r *TaskRepository) SetStatus(ctx context.Context, id int64, status model.Status) (*model.TaskSubmission, error) {
	const query = `
		UPDATE tasks
		SET status = $2, decided_at = NOW()
		WHERE id = $1
		RETURNING ` + taskColumns
	return taskResult(r.db.QueryRow(ctx, query, id, string(status)), "update task status")
}

// Pending returns pending submissions, newest first, with the submitter's balance.
func (r *TaskRepository) Pending(ctx context.Context, limit int) ([]*model.PendingTask, error) {
	const query = `
		SELECT t.id, t.user_id, t.username, t.file_id, t.file_name, t.status, t.created_at, t.decided_at,
		       COALESCE(u.balance, 0)
		FROM tasks t
		LEFT JOIN users u ON u.user_id = t.user_id
		WHERE t.status = $1
		ORDER BY t.id DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, string(model.StatusPending), limit)
	if err != nil {
		return nil, errors.Wrap(err, "list pending tasks")
	}
	defer rows.Close()

	var tasks []*model.PendingTask
	for rows.Next() {
		var balance int64
		task, err := scanTask(rows, &balance)
		if err != nil {
			return nil, errors.Wrap(err, "scan task")
		}
		tasks = append(tasks, &model.PendingTask{TaskSubmission: *task, Balance: balance})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate tasks")
	}

	return tasks, nil
}
