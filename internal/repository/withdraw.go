package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"earnbot/internal/model"
)

const withdrawColumns = `id, user_id, method, number, amount, status, created_at, decided_at`

// WithdrawRepository handles withdrawal request persistence.
type WithdrawRepository struct {
	db DBTX
}

// NewWithdrawRepository creates a new WithdrawRepository instance.
func NewWithdrawRepository(db DBTX) *WithdrawRepository {
	return &WithdrawRepository{db: db}
}

func scanWithdraw(row pgx.Row) (*model.WithdrawRequest, error) {
	var (
		req    model.WithdrawRequest
		method string
		status string
	)
	err := row.Scan(
		&req.ID,
		&req.UserID,
		&method,
		&req.Number,
		&req.Amount,
		&status,
		&req.CreatedAt,
		&req.DecidedAt,
	)
	if err != nil {
		return nil, err
	}
	req.Method = model.Method(method)
	req.Status = model.Status(status)
	return &req, nil
}

func withdrawResult(row pgx.Row, op string) (*model.WithdrawRequest, error) {
	req, err := scanWithdraw(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, errors.Wrap(err, op)
	}
	return req, nil
}

// Create inserts a new Pending withdrawal request.
func (r *WithdrawRepository) Create(ctx context.Context, userID int64, method model.Method, number string, amount int64) (*model.WithdrawRequest, error) {
	const query = `
		INSERT INTO withdraws (user_id, method, number, amount, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + withdrawColumns

	req, err := scanWithdraw(r.db.QueryRow(ctx, query, userID, string(method), number, amount, string(model.StatusPending)))
	if err != nil {
		return nil, errors.Wrap(err, "create withdraw request")
	}
	return req, nil
}

// Get retrieves a withdrawal request by id.
func (r *WithdrawRepository) Get(ctx context.Context, id int64) (*model.WithdrawRequest, error) {
	const query = `SELECT ` + withdrawColumns + ` FROM withdraws WHERE id = $1`
	return withdrawResult(r.db.QueryRow(ctx, query, id), "get withdraw request")
}

// GetForUpdate retrieves a withdrawal request and locks the row.
func (r *WithdrawRepository) GetForUpdate(ctx context.Context, id int64) (*model.WithdrawRequest, error) {
	const query = `SELECT ` + withdrawColumns + ` FROM withdraws WHERE id = $1 FOR UPDATE`
	return withdrawResult(r.db.QueryRow(ctx, query, id), "lock withdraw request")
}

// SetStatus records a decision on a withdrawal request.
func (r *WithdrawRepository) SetStatus(ctx context.Context, id int64, status model.Status) (*model.WithdrawRequest, error) {
	const query = `
		UPDATE withdraws
		SET status = $2, decided_at = NOW()
		WHERE id = $1
		RETURNING ` + withdrawColumns
	return withdrawResult(r.db.QueryRow(ctx, query, id, string(status)), "update withdraw status")
}

// Recent returns the newest withdrawal requests first.
func (r *WithdrawRepository) Recent(ctx context.Context, limit int) ([]*model.WithdrawRequest, error) {
	const query = `
		SELECT ` + withdrawColumns + `
		FROM withdraws
		ORDER BY id DESC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list withdraw requests")
	}
	defer rows.Close()

	var requests []*model.WithdrawRequest
	for rows.Next() {
		req, err := scanWithdraw(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan withdraw request")
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate withdraw requests")
	}

	return requests, nil
}
