// Package audit records the actions performed on media sources and the
// redirect rules produced by tree moves.
package audit

import (
	"context"
	"time"
)

// Entry is one audited action.
type Entry struct {
	ID     int64     `json:"id"`
	Time   time.Time `json:"time"`
	Source string    `json:"source"`
	Action string    `json:"action"`
	Item   string    `json:"item"`
	Actor  string    `json:"actor,omitempty"`
}

// RedirectRule maps the public URLs of moved objects onto their new
// location. Directory rules are regular expressions.
type RedirectRule struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	Pattern   string    `json:"pattern"`
	Target    string    `json:"target"`
	CreatedAt time.Time `json:"created_at"`
}

// Logger receives one entry after every successful mutation.
type Logger interface {
	LogAction(ctx context.Context, entry Entry) error
}

// RedirectRecorder persists redirect rules.
type RedirectRecorder interface {
	RecordRedirect(ctx context.Context, rule RedirectRule) error
}

// Store is a queryable audit log.
type Store interface {
	Logger
	RedirectRecorder

	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)

	// Redirects returns up to limit rules, newest first.
	Redirects(ctx context.Context, limit int) ([]RedirectRule, error)

	Close() error
}

type actorKey struct{}

// WithActor attaches the acting user to ctx.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the acting user attached to ctx, if any.
func ActorFrom(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey{}).(string)
	return actor
}

// Nop discards every entry.
type Nop struct{}

func (Nop) LogAction(context.Context, Entry) error { return nil }
