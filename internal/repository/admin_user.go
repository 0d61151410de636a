package repository

import (
	"context"

	"prizebot/internal/model"
)

// AdminUserRepository defines data access for admin accounts using SQL queries only.
type AdminUserRepository interface {
	// Create inserts a new account. It returns ErrDuplicate when the username is taken.
	Create(ctx context.Context, u *model.AdminUser) (*model.AdminUser, error)

	// FindByUsername returns ErrNotFound when no account matches.
	FindByUsername(ctx context.Context, username string) (*model.AdminUser, error)
}
