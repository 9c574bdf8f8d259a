package session

import (
	"context"
	"errors"
)

// ErrNoSession indicates no authenticated session is stored.
var ErrNoSession = errors.New("no session")

// Store persists the authenticated session of one app installation. It is the
// sole source of truth for "is a user currently signed in":
// IsAuthenticated never touches the network. The authentication flag and the
// session record are kept as a pair; the flag is never set without a record.
type Store interface {
	Login(ctx context.Context, s AuthSession) error
	Logout(ctx context.Context) error
	IsAuthenticated(ctx context.Context) (bool, error)
	Get(ctx context.Context) (AuthSession, error)
	Update(ctx context.Context, p Partial) error
}

// Stores hands out a Store scoped to one installation (device). Each
// installation has its own single session slot.
type Stores interface {
	For(installationID string) Store
}
