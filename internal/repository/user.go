package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"earnbot/internal/model"
)

// pgNumericOutOfRange is numeric_value_out_of_range, raised on BIGINT overflow.
const pgNumericOutOfRange = "22003"

const userColumns = `user_id, balance, refer_by, ref_count, ref_earn, created_at`

// UserRepository handles user data persistence.
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a new UserRepository instance.
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.UserID,
		&user.Balance,
		&user.ReferBy,
		&user.RefCount,
		&user.RefEarn,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// userResult maps a single-row user query result.
func userResult(row pgx.Row, op string) (*model.User, error) {
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgNumericOutOfRange {
			return nil, ErrBalanceOverflow
		}
		return nil, errors.Wrap(err, op)
	}
	return user, nil
}

// Ensure creates a user with a zero balance if it doesn't exist yet.
func (r *UserRepository) Ensure(ctx context.Context, userID int64) (*model.User, bool, error) {
	const query = `
		INSERT INTO users (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query, userID))
	if err == nil {
		return user, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, errors.Wrap(err, "ensure user")
	}

	// Row already existed.
	user, err = r.Get(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	return user, false, nil
}

// Get retrieves a user by id.
// Returns ErrUserNotFound if the user does not exist.
func (r *UserRepository) Get(ctx context.Context, userID int64) (*model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`
	return userResult(r.db.QueryRow(ctx, query, userID), "get user")
}

// GetForUpdate retrieves a user and locks the row for the current transaction.
func (r *UserRepository) GetForUpdate(ctx context.Context, userID int64) (*model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE user_id = $1 FOR UPDATE`
	return userResult(r.db.QueryRow(ctx, query, userID), "lock user")
}

// AddBalance adds delta to a user's balance. delta may be negative.
func (r *UserRepository) AddBalance(ctx context.Context, userID int64, delta int64) (*model.User, error) {
	const query = `
		UPDATE users
		SET balance = balance + $2
		WHERE user_id = $1
		RETURNING ` + userColumns
	return userResult(r.db.QueryRow(ctx, query, userID, delta), "update balance")
}

// SetBalance sets a user's balance to an exact value.
func (r *UserRepository) SetBalance(ctx context.Context, userID int64, balance int64) (*model.User, error) {
	const query = `
		UPDATE users
		SET balance = $2
		WHERE user_id = $1
		RETURNING ` + userColumns
	return userResult(r.db.QueryRow(ctx, query, userID, balance), "set balance")
}

// SetReferrer records the referrer unless one is already set.
func (r *UserRepository) SetReferrer(ctx context.Context, userID int64, referrerID int64) (bool, error) {
	const query = `
		UPDATE users
		SET refer_by = $2
		WHERE user_id = $1 AND (refer_by IS NULL OR refer_by = 0)
	`
	tag, err := r.db.Exec(ctx, query, userID, referrerID)
	if err != nil {
		return false, errors.Wrap(err, "set referrer")
	}
	return tag.RowsAffected() == 1, nil
}

// AddReferralReward credits a referrer's balance and earnings in one statement.
func (r *UserRepository) AddReferralReward(ctx context.Context, userID int64, amount int64, joined int64) (*model.User, error) {
	const query = `
		UPDATE users
		SET balance = balance + $2,
		    ref_earn = ref_earn + $2,
		    ref_count = ref_count + $3
		WHERE user_id = $1
		RETURNING ` + userColumns
	return userResult(r.db.QueryRow(ctx, query, userID, amount, joined), "add referral reward")
}

// Summary returns user totals and the most recently joined users.
func (r *UserRepository) Summary(ctx context.Context, limit int) (*model.UserSummary, error) {
	const totalsQuery = `SELECT COUNT(*), COALESCE(SUM(balance), 0) FROM users`
	const latestQuery = `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY created_at DESC, user_id DESC
		LIMIT $1
	`

	var summary model.UserSummary
	if err := r.db.QueryRow(ctx, totalsQuery).Scan(&summary.TotalUsers, &summary.TotalBalance); err != nil {
		return nil, errors.Wrap(err, "count users")
	}

	rows, err := r.db.Query(ctx, latestQuery, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	defer rows.Close()

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan user")
		}
		summary.Latest = append(summary.Latest, user)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate users")
	}

	return &summary, nil
}
