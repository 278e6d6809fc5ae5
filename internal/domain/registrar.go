package domain

import (
	"context"
	"errors"
)

// ErrUserExists is returned by a Registrar when the homeserver already has an
// account with the requested username.
var ErrUserExists = errors.New("user already exists")

// Registrar creates a non-admin account on the homeserver. The nonce fetch and
// the signed submit happen behind a single call.
type Registrar interface {
	Register(ctx context.Context, username, password string) error
}
