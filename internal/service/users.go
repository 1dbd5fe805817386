package service

import (
	"context"

	"earnbot/internal/model"
	"earnbot/internal/repository"
)

// Users reads and lazily creates user accounts.
type Users struct {
	uow repository.UnitOfWork
}

// NewUsers creates a new Users instance.
func NewUsers(uow repository.UnitOfWork) *Users {
	return &Users{uow: uow}
}

// Ensure returns the user, creating a zero-balance account on first contact.
func (s *Users) Ensure(ctx context.Context, userID int64) (*model.User, bool, error) {
	return s.uow.Users().Ensure(ctx, userID)
}

// Get returns the user or ErrUserNotFound.
func (s *Users) Get(ctx context.Context, userID int64) (*model.User, error) {
	return s.uow.Users().Get(ctx, userID)
}

// Summary returns the user count, total balance and the newest users.
func (s *Users) Summary(ctx context.Context, limit int) (*model.UserSummary, error) {
	return s.uow.Users().Summary(ctx, limit)
}
