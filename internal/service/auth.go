// Package service contains application services for authentication and the catalog.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	pkgcrypto "github.com/mravshan/libra/internal/crypto"
	"github.com/mravshan/libra/internal/errs"
	"github.com/mravshan/libra/internal/limiter"
	"github.com/mravshan/libra/internal/model"
	"github.com/mravshan/libra/internal/repository"
)

// RegisterInput carries a registration submission.
type RegisterInput struct {
	Username   string
	Email      string
	FirstName  string
	MiddleName string
	LastName   string
	Password   string
	Region     string
	AvatarURL  string
}

// AuthService defines authentication and session operations.
type AuthService interface {
	// Register creates a new user with secure password hashing.
	Register(ctx context.Context, in RegisterInput) (userID string, err error)
	// LoginWithIP applies rate-limiting, authenticates the user, and issues tokens.
	LoginWithIP(ctx context.Context, username, password, ip string) (model.Tokens, model.Profile, error)
	// Refresh exchanges a valid refresh token for a new access token.
	Refresh(ctx context.Context, rawRefresh string) (access string, exp time.Time, err error)
	// Verify confirms the authenticated user still exists.
	Verify(ctx context.Context, userID uuid.UUID) error
	// Logout revokes every refresh token of the user.
	Logout(ctx context.Context, userID uuid.UUID) error
	// UpdateFCMToken stores the device push token republished by clients.
	UpdateFCMToken(ctx context.Context, userID uuid.UUID, token string) error
	// EditProfile applies a profile edit and returns the updated profile.
	EditProfile(ctx context.Context, userID uuid.UUID, upd model.ProfileUpdate) (model.Profile, error)
}

type AuthServiceImpl struct {
	users      repository.UserRepository
	tokens     repository.TokenRepository
	signKey    []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	lim        limiter.Limiter
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.UserRepository, tokens repository.TokenRepository,
	signKey []byte, accessTTL, refreshTTL time.Duration, lim limiter.Limiter) *AuthServiceImpl {
	return &AuthServiceImpl{users: users, tokens: tokens, signKey: signKey,
		accessTTL: accessTTL, refreshTTL: refreshTTL, lim: lim}
}

// Register creates a new user record with a per-user salt.
func (s *AuthServiceImpl) Register(ctx context.Context, in RegisterInput) (string, error) {
	if in.Username == "" || in.Password == "" {
		return "", errors.New("empty username/password")
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	salt, err := pkgcrypto.RandBytes(16)
	if err != nil {
		return "", err
	}

	u := &model.User{
		ID:         uid,
		Username:   in.Username,
		Email:      in.Email,
		FirstName:  in.FirstName,
		MiddleName: in.MiddleName,
		LastName:   in.LastName,
		AvatarURL:  in.AvatarURL,
		Region:     in.Region,
		PwdHash:    pkgcrypto.HashPassword([]byte(in.Password), salt),
		SaltAuth:   salt,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return "", err
	}
	return uid.String(), nil
}

// LoginWithIP authenticates with rate limiting by (username, ip) and issues
// an access token plus an opaque refresh token.
func (s *AuthServiceImpl) LoginWithIP(ctx context.Context, username, password, ip string) (model.Tokens, model.Profile, error) {
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, username, ipHash)
	if err != nil {
		return model.Tokens{}, model.Profile{}, err
	}
	if !allowed {
		return model.Tokens{}, model.Profile{}, errs.ErrRateLimited
	}

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil || !pkgcrypto.VerifyPassword([]byte(password), u.SaltAuth, u.PwdHash) {
		if blocked, _, ferr := s.lim.Failure(ctx, username, ipHash); ferr == nil && blocked {
			return model.Tokens{}, model.Profile{}, errs.ErrRateLimited
		}
		// lookup errors are masked: do not reveal whether the user exists
		return model.Tokens{}, model.Profile{}, errs.ErrUnauthorized
	}

	_ = s.lim.Success(ctx, username, ipHash)

	access, exp, err := s.issueAccessToken(u.ID)
	if err != nil {
		return model.Tokens{}, model.Profile{}, err
	}
	refresh, err := s.issueRefreshToken(ctx, u.ID)
	if err != nil {
		return model.Tokens{}, model.Profile{}, err
	}
	return model.Tokens{AccessToken: access, RefreshToken: refresh, ExpiresAt: exp}, model.ProfileOf(u), nil
}

// Refresh exchanges a stored, unexpired refresh token for a new access token.
// The refresh token itself stays valid until logout or expiry; expired tokens
// are revoked on sight.
func (s *AuthServiceImpl) Refresh(ctx context.Context, rawRefresh string) (string, time.Time, error) {
	if rawRefresh == "" {
		return "", time.Time{}, errs.ErrUnauthorized
	}
	t, err := s.tokens.GetByHash(ctx, pkgcrypto.HashRefreshToken(rawRefresh))
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return "", time.Time{}, errs.ErrUnauthorized
		}
		return "", time.Time{}, err
	}
	if t.Revoked {
		return "", time.Time{}, errs.ErrUnauthorized
	}
	if time.Now().After(t.ExpiresAt) {
		_ = s.tokens.Revoke(ctx, t.ID)
		return "", time.Time{}, errs.ErrUnauthorized
	}
	return s.issueAccessToken(t.UserID)
}

// Verify confirms the token subject still maps to an account.
func (s *AuthServiceImpl) Verify(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return errs.ErrUnauthorized
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return errs.ErrUnauthorized
		}
		return err
	}
	return nil
}

// Logout revokes every refresh token of the user.
func (s *AuthServiceImpl) Logout(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return errs.ErrUnauthorized
	}
	return s.tokens.RevokeAllForUser(ctx, userID)
}

// UpdateFCMToken stores the device push token. The same token may be sent
// repeatedly; the write is idempotent.
func (s *AuthServiceImpl) UpdateFCMToken(ctx context.Context, userID uuid.UUID, token string) error {
	if userID == uuid.Nil {
		return errs.ErrUnauthorized
	}
	if token == "" {
		return errors.New("validation: empty fcm token")
	}
	return s.users.SetFCMToken(ctx, userID, token)
}

// EditProfile applies a profile edit and returns the updated profile.
func (s *AuthServiceImpl) EditProfile(ctx context.Context, userID uuid.UUID, upd model.ProfileUpdate) (model.Profile, error) {
	if userID == uuid.Nil {
		return model.Profile{}, errs.ErrUnauthorized
	}
	if err := s.users.UpdateProfile(ctx, userID, upd); err != nil {
		return model.Profile{}, err
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return model.Profile{}, err
	}
	return model.ProfileOf(u), nil
}

// issueAccessToken creates a signed HS256 JWT for the given subject.
func (s *AuthServiceImpl) issueAccessToken(userID uuid.UUID) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(s.accessTTL)
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	return signed, exp, err
}

// issueRefreshToken stores the hash of a fresh opaque token and returns the raw form.
func (s *AuthServiceImpl) issueRefreshToken(ctx context.Context, userID uuid.UUID) (string, error) {
	raw, hash, err := pkgcrypto.NewRefreshToken()
	if err != nil {
		return "", err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	t := &model.RefreshToken{
		ID:        id,
		UserID:    userID,
		TokenHash: hash,
		ExpiresAt: time.Now().Add(s.refreshTTL),
	}
	if err := s.tokens.Store(ctx, t); err != nil {
		return "", err
	}
	return raw, nil
}
