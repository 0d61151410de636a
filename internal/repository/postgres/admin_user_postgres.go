package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"prizebot/internal/model"
	"prizebot/internal/repository"
)

const uniqueViolation = "23505"

// AdminUserPostgres is a PostgreSQL implementation of repository.AdminUserRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type AdminUserPostgres struct {
	db *sql.DB
}

// NewAdminUserPostgres creates a new AdminUserPostgres repository.
func NewAdminUserPostgres(db *sql.DB) *AdminUserPostgres {
	return &AdminUserPostgres{db: db}
}

var _ repository.AdminUserRepository = (*AdminUserPostgres)(nil)

// Create inserts a new account row and returns the stored record.
func (r *AdminUserPostgres) Create(ctx context.Context, u *model.AdminUser) (*model.AdminUser, error) {
	const q = `
		INSERT INTO auth_user (username, email, password, is_superuser, is_staff, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, username, email, password, is_superuser, is_staff, is_active, date_joined
	`
	row := r.db.QueryRowContext(ctx, q,
		u.Username,
		u.Email,
		u.PasswordHash,
		u.IsSuperuser,
		u.IsStaff,
		u.IsActive,
	)
	out, err := scanAdminUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, repository.ErrDuplicate
		}
		return nil, err
	}
	return out, nil
}

// FindByUsername fetches a single account by its username.
func (r *AdminUserPostgres) FindByUsername(ctx context.Context, username string) (*model.AdminUser, error) {
	const q = `
		SELECT id, username, email, password, is_superuser, is_staff, is_active, date_joined
		FROM auth_user
		WHERE username = $1
	`
	out, err := scanAdminUser(r.db.QueryRowContext(ctx, q, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return out, err
}

func scanAdminUser(row *sql.Row) (*model.AdminUser, error) {
	var u model.AdminUser
	if err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.IsSuperuser,
		&u.IsStaff,
		&u.IsActive,
		&u.DateJoined,
	); err != nil {
		return nil, err
	}
	return &u, nil
}
