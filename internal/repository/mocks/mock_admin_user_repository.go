package mocks

import (
	"context"

	"prizebot/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockAdminUserRepository struct {
	mock.Mock
}

func (m *MockAdminUserRepository) Create(ctx context.Context, u *model.AdminUser) (*model.AdminUser, error) {
	args := m.Called(ctx, u)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AdminUser), args.Error(1)
}

func (m *MockAdminUserRepository) FindByUsername(ctx context.Context, username string) (*model.AdminUser, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AdminUser), args.Error(1)
}
