package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"earnbot/internal/model"
)

const journalColumns = `id, user_id, amount, kind, ref, created_at`

// JournalRepository appends and reads balance journal entries.
type JournalRepository struct {
	db DBTX
}

// NewJournalRepository creates a new JournalRepository instance.
func NewJournalRepository(db DBTX) *JournalRepository {
	return &JournalRepository{db: db}
}

func scanEntry(row pgx.Row) (*model.JournalEntry, error) {
	var (
		e    model.JournalEntry
		kind string
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.Amount, &kind, &e.Ref, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Kind = model.EntryKind(kind)
	return &e, nil
}

// Append records one balance change.
func (r *JournalRepository) Append(ctx context.Context, userID, amount int64, kind model.EntryKind, ref int64) (*model.JournalEntry, error) {
	const query = `
		INSERT INTO journal (user_id, amount, kind, ref, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING ` + journalColumns

	e, err := scanEntry(r.db.QueryRow(ctx, query, userID, amount, string(kind), ref))
	if err != nil {
		return nil, errors.Wrap(err, "append journal entry")
	}
	return e, nil
}

// ForUser returns a user's entries, newest first.
func (r *JournalRepository) ForUser(ctx context.Context, userID int64, limit int) ([]*model.JournalEntry, error) {
	const query = `
		SELECT ` + journalColumns + `
		FROM journal
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT $2
	`
	return r.query(ctx, query, userID, limit)
}

// ForUserAndKind returns a user's entries of one kind, newest first.
func (r *JournalRepository) ForUserAndKind(ctx context.Context, userID int64, kind model.EntryKind, limit int) ([]*model.JournalEntry, error) {
	const query = `
		SELECT ` + journalColumns + `
		FROM journal
		WHERE user_id = $1 AND kind = $2
		ORDER BY id DESC
		LIMIT $3
	`
	return r.query(ctx, query, userID, string(kind), limit)
}

func (r *JournalRepository) query(ctx context.Context, query string, args ...any) ([]*model.JournalEntry, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query journal")
	}
	defer rows.Close()

	var entries []*model.JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan journal entry")
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate journal")
	}
	return entries, nil
}
