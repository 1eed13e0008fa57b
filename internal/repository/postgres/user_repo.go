package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/mravshan/libra/internal/errs"
	"github.com/mravshan/libra/internal/model"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const userCols = `id, username, email, first_name, middle_name, last_name, avatar_url, region, fcm_token, pwd_hash, salt_auth, created_at`

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `
INSERT INTO users (id, username, email, first_name, middle_name, last_name, avatar_url, region, pwd_hash, salt_auth)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.Pool.Exec(ctx, q,
		u.ID, u.Username, u.Email, u.FirstName, u.MiddleName, u.LastName, u.AvatarURL, u.Region, u.PwdHash, u.SaltAuth)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// GetByID selects a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE id=$1`
	return r.scanUser(r.db.Pool.QueryRow(ctx, q, id))
}

// GetByUsername selects a user by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE username=$1`
	return r.scanUser(r.db.Pool.QueryRow(ctx, q, username))
}

func (r *UserRepo) scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.MiddleName, &u.LastName,
		&u.AvatarURL, &u.Region, &u.FCMToken, &u.PwdHash, &u.SaltAuth, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, errs.ErrNotFound
	}
	return &u, nil
}

// UpdateProfile applies an edit-profile submission. Empty strings keep the
// current column value; avatar_url is replaced only when a new one was uploaded.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uuid.UUID, upd model.ProfileUpdate) error {
	const q = `
UPDATE users SET
  email       = COALESCE(NULLIF($2,''), email),
  first_name  = COALESCE(NULLIF($3,''), first_name),
  middle_name = COALESCE(NULLIF($4,''), middle_name),
  last_name   = COALESCE(NULLIF($5,''), last_name),
  region      = COALESCE(NULLIF($6,''), region),
  avatar_url  = COALESCE(NULLIF($7,''), avatar_url)
WHERE id = $1`
	tag, err := r.db.Pool.Exec(ctx, q, id, upd.Email, upd.FirstName, upd.MiddleName, upd.LastName, upd.Region, upd.AvatarURL)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// SetFCMToken replaces the stored device push token.
func (r *UserRepo) SetFCMToken(ctx context.Context, id uuid.UUID, token string) error {
	const q = `UPDATE users SET fcm_token = $2 WHERE id = $1`
	tag, err := r.db.Pool.Exec(ctx, q, id, token)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
