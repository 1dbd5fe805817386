package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgRepos binds every store to one DBTX.
type pgRepos struct {
	db DBTX
}

func (r pgRepos) Users() UserStore         { return NewUserRepository(r.db) }
func (r pgRepos) Withdraws() WithdrawStore { return NewWithdrawRepository(r.db) }
func (r pgRepos) Tasks() TaskStore         { return NewTaskRepository(r.db) }
func (r pgRepos) Settings() SettingStore   { return NewSettingRepository(r.db) }
func (r pgRepos) Journal() JournalStore    { return NewJournalRepository(r.db) }

// Store is the PostgreSQL unit of work.
type Store struct {
	pgRepos
	pool *pgxpool.Pool
}

// NewStore creates a Store over the pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pgRepos: pgRepos{db: pool}, pool: pool}
}

// Do runs fn in a transaction, committing when fn returns nil.
func (s *Store) Do(ctx context.Context, fn func(tx Repos) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(pgRepos{db: tx})
	})
}
