// Package push keeps the backend's copy of the device push token current.
package push

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/mravshan/libra/internal/client/credstore"
)

// Messenger abstracts the platform push service (FCM or equivalent).
type Messenger interface {
	// RequestPermission asks the user for notification permission.
	// A denial is a normal answer, not an error.
	RequestPermission(ctx context.Context) (granted bool, err error)
	// Token returns the current device token.
	Token(ctx context.Context) (string, error)
	// TokenRefresh delivers replacement tokens issued by the platform.
	TokenRefresh() <-chan string
}

// Sender publishes the token to the backend.
type Sender interface {
	UpdateFCMToken(ctx context.Context, token string) error
}

// Registrar obtains the device token and republishes it whenever it changes.
// The stored fcmToken key records what the backend last accepted, so repeat
// registrations with an unchanged token skip the network round trip.
type Registrar struct {
	msgr  Messenger
	api   Sender
	store credstore.Store
	log   *zap.Logger

	warnOnce sync.Once
}

// NewRegistrar constructs a Registrar.
func NewRegistrar(msgr Messenger, backend Sender, store credstore.Store, log *zap.Logger) *Registrar {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registrar{msgr: msgr, api: backend, store: store, log: log}
}

// Register asks for permission, fetches the token, and publishes it if it
// differs from the last accepted one. A denied permission logs one warning
// for the process lifetime and returns nil: notifications are optional.
func (r *Registrar) Register(ctx context.Context) error {
	granted, err := r.msgr.RequestPermission(ctx)
	if err != nil {
		return err
	}
	if !granted {
		r.warnOnce.Do(func() {
			r.log.Warn("notification permission denied, push disabled")
		})
		return nil
	}

	tok, err := r.msgr.Token(ctx)
	if err != nil {
		return err
	}
	return r.publish(ctx, tok)
}

// Run republishes tokens delivered on the refresh channel until ctx is done.
func (r *Registrar) Run(ctx context.Context) error {
	refresh := r.msgr.TokenRefresh()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tok, ok := <-refresh:
			if !ok {
				return nil
			}
			if err := r.publish(ctx, tok); err != nil {
				r.log.Warn("push token republish failed", zap.Error(err))
			}
		}
	}
}

func (r *Registrar) publish(ctx context.Context, tok string) error {
	if tok == "" {
		return nil
	}
	if last, err := r.store.Get(credstore.KeyFCMToken); err == nil && last == tok {
		return nil
	}
	if err := r.api.UpdateFCMToken(ctx, tok); err != nil {
		return err
	}
	return r.store.Set(credstore.KeyFCMToken, tok)
}
