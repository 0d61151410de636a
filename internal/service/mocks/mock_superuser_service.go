package mocks

import (
	"context"

	"prizebot/internal/config"
	"prizebot/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockSuperuserService struct {
	mock.Mock
}

func (m *MockSuperuserService) Create(ctx context.Context, cfg config.SuperuserConfig) (*model.AdminUser, error) {
	args := m.Called(ctx, cfg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AdminUser), args.Error(1)
}
