// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"github.com/mravshan/libra/internal/model"
)

// UserRepository provides CRUD access for user accounts.
type UserRepository interface {
	// Create inserts a new user.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByUsername loads a user by username.
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// UpdateProfile applies an edit-profile submission; empty fields are kept.
	UpdateProfile(ctx context.Context, id uuid.UUID, upd model.ProfileUpdate) error
	// SetFCMToken replaces the stored device push token.
	SetFCMToken(ctx context.Context, id uuid.UUID, token string) error
}
