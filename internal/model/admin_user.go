package model

import "time"

// AdminUser is an account allowed into the admin site.
// PasswordHash is never serialized.
type AdminUser struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsSuperuser  bool      `json:"is_superuser"`
	IsStaff      bool      `json:"is_staff"`
	IsActive     bool      `json:"is_active"`
	DateJoined   time.Time `json:"date_joined"`
}
