package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"github.com/mravshan/libra/internal/model"
)

// TokenRepository persists hashed refresh tokens. Raw tokens never reach storage.
type TokenRepository interface {
	// Store inserts a refresh token record.
	Store(ctx context.Context, t *model.RefreshToken) error
	// GetByHash loads a token by its sha256 hash.
	GetByHash(ctx context.Context, hash []byte) (*model.RefreshToken, error)
	// Revoke marks a single token as revoked.
	Revoke(ctx context.Context, id uuid.UUID) error
	// RevokeAllForUser revokes every token of a user (logout).
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
}
