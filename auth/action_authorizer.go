package auth

import "context"

// readOnlyActions are the actions granted to read-only callers.
var readOnlyActions = map[string]bool{
	ActionList:  true,
	ActionView:  true,
	"file_view": true,
}

// ActionAuthorizer grants every action to admins and only listing and
// viewing to read-only callers.
type ActionAuthorizer struct{}

// NewActionAuthorizer creates an action authorizer
func NewActionAuthorizer() *ActionAuthorizer {
	return &ActionAuthorizer{}
}

// Authorize implements Authorizer
func (a *ActionAuthorizer) Authorize(ctx context.Context, p *Principal, action string) error {
	if p == nil {
		return ErrPermissionDenied
	}
	if p.ReadOnly && !readOnlyActions[action] {
		return ErrPermissionDenied
	}
	return nil
}

// Permissions returns a checker reporting which actions p may perform,
// for filtering the actions offered in listings.
func Permissions(ctx context.Context, authorizer Authorizer, p *Principal) func(action string) bool {
	return func(action string) bool {
		return authorizer.Authorize(ctx, p, action) == nil
	}
}
