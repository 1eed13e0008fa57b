package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/mravshan/libra/internal/errs"
	"github.com/mravshan/libra/internal/model"
)

// TokenRepo implements TokenRepository using PostgreSQL.
type TokenRepo struct{ db *DB }

// NewTokenRepo constructs a refresh-token repository.
func NewTokenRepo(db *DB) *TokenRepo { return &TokenRepo{db: db} }

// Store inserts a refresh token record.
func (r *TokenRepo) Store(ctx context.Context, t *model.RefreshToken) error {
	const q = `
INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, revoked)
VALUES ($1, $2, $3, $4, false)`
	_, err := r.db.Pool.Exec(ctx, q, t.ID, t.UserID, t.TokenHash, t.ExpiresAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// GetByHash selects a token by its sha256 hash.
func (r *TokenRepo) GetByHash(ctx context.Context, hash []byte) (*model.RefreshToken, error) {
	const q = `
SELECT id, user_id, token_hash, expires_at, revoked, created_at
FROM refresh_tokens WHERE token_hash=$1`
	row := r.db.Pool.QueryRow(ctx, q, hash)
	var t model.RefreshToken
	if err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.Revoked, &t.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// Revoke marks a single token as revoked.
func (r *TokenRepo) Revoke(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE refresh_tokens SET revoked = true WHERE id = $1`
	tag, err := r.db.Pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// RevokeAllForUser revokes every token of a user. Revoking zero rows is not
// an error: logout must succeed for a user with no live refresh tokens.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	const q = `UPDATE refresh_tokens SET revoked = true WHERE user_id = $1 AND NOT revoked`
	_, err := r.db.Pool.Exec(ctx, q, userID)
	return err
}
