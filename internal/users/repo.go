package users

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("users: not found")

// Repository is the persistence contract for staff users.
type Repository interface {
	Create(ctx context.Context, u User) error
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	List(ctx context.Context) ([]User, error)
}
