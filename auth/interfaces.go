// Package auth provides API key authentication and action authorization for
// the mediasource HTTP API.
package auth

import (
	"context"
	"errors"
)

// Actions checked by the HTTP layer besides the listing actions of a
// source (file_view, directory_create and so on).
const (
	ActionList     = "list"
	ActionView     = "view"
	ActionTransfer = "transfer"
)

// Common authentication/authorization errors
var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrPermissionDenied     = errors.New("permission denied")
)

// Principal is an authenticated caller.
type Principal struct {
	// ID identifies the caller in audit entries without revealing its key.
	ID       string
	ReadOnly bool
}

// Authenticator defines the interface for caller authentication
type Authenticator interface {
	// Authenticate validates a token and returns the caller it belongs to
	Authenticate(ctx context.Context, token string) (*Principal, error)
}

// Authorizer defines the interface for authorization checks
type Authorizer interface {
	// Authorize checks whether p may perform action
	Authorize(ctx context.Context, p *Principal, action string) error
}
