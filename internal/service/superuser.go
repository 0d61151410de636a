package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"prizebot/internal/config"
	"prizebot/internal/model"
	"prizebot/internal/repository"
)

var (
	ErrSuperuserExists    = errors.New("superuser already exists")
	ErrCredentialsMissing = errors.New("superuser username and password are required")
)

// SuperuserService creates the administrative account requested through the environment.
type SuperuserService interface {
	// Create stores a new superuser with a bcrypt hashed password.
	// It returns ErrSuperuserExists when the username is already taken.
	Create(ctx context.Context, cfg config.SuperuserConfig) (*model.AdminUser, error)
}

type superuserService struct {
	repo repository.AdminUserRepository
	cost int
}

// NewSuperuserService constructs a new SuperuserService.
func NewSuperuserService(repo repository.AdminUserRepository) SuperuserService {
	return &superuserService{repo: repo, cost: bcrypt.DefaultCost}
}

func (s *superuserService) Create(ctx context.Context, cfg config.SuperuserConfig) (*model.AdminUser, error) {
	if !cfg.Enabled() {
		return nil, ErrCredentialsMissing
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.repo.Create(ctx, &model.AdminUser{
		Username:     cfg.Username,
		Email:        cfg.Email,
		PasswordHash: string(hash),
		IsSuperuser:  true,
		IsStaff:      true,
		IsActive:     true,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %s", ErrSuperuserExists, cfg.Username)
		}
		return nil, fmt.Errorf("save superuser: %w", err)
	}
	return u, nil
}
