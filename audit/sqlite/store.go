package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"go.uber.org/zap"

	"github.com/ebogdum/mediasource/audit"
	"github.com/ebogdum/mediasource/internal/errs"
)

const defaultLimit = 100

var _ audit.Store = (*SQLiteStore)(nil)

type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errs.Wrap(errs.KindBackendFailure, "failed to open sqlite database", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(errs.KindBackendFailure, "failed to ping sqlite database", err)
	}

	store := &SQLiteStore{db: db, logger: logger}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS audit_entries (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    time TEXT NOT NULL,
    source TEXT NOT NULL,
    action TEXT NOT NULL,
    item TEXT NOT NULL,
    actor TEXT
);

CREATE INDEX IF NOT EXISTS idx_audit_entries_time ON audit_entries(time);
CREATE INDEX IF NOT EXISTS idx_audit_entries_source ON audit_entries(source);

CREATE TABLE IF NOT EXISTS redirect_rules (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    kind TEXT NOT NULL CHECK (kind IN ('file', 'dir')),
    pattern TEXT NOT NULL,
    target TEXT NOT NULL,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_redirect_rules_pattern ON redirect_rules(pattern);
`

	if _, err := s.db.Exec(schema); err != nil {
		return errs.Wrap(errs.KindBackendFailure, "failed to initialize sqlite schema", err)
	}
	return nil
}

// LogAction implements audit.Logger.
func (s *SQLiteStore) LogAction(ctx context.Context, entry audit.Entry) error {
	if entry.Time.IsZero() {
		entry.Time = time.Now().UTC()
	}
	if entry.Actor == "" {
		entry.Actor = audit.ActorFrom(ctx)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_entries (time, source, action, item, actor) VALUES (?, ?, ?, ?, ?)`,
		entry.Time.UTC().Format(time.RFC3339Nano),
		entry.Source,
		entry.Action,
		entry.Item,
		nullString(entry.Actor),
	)
	if err != nil {
		return errs.Wrap(errs.KindBackendFailure, "failed to insert audit entry", err)
	}
	return nil
}

// RecordRedirect implements audit.RedirectRecorder.
func (s *SQLiteStore) RecordRedirect(ctx context.Context, rule audit.RedirectRule) error {
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO redirect_rules (kind, pattern, target, created_at) VALUES (?, ?, ?, ?)`,
		rule.Kind,
		rule.Pattern,
		rule.Target,
		rule.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return errs.Wrap(errs.KindBackendFailure, "failed to insert redirect rule", err)
	}

	s.logger.Info("Redirect rule recorded",
		zap.String("kind", rule.Kind),
		zap.String("pattern", rule.Pattern))
	return nil
}

// Recent implements audit.Store.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, time, source, action, item, actor
		FROM audit_entries
		ORDER BY id DESC
		LIMIT ?`, limitOrDefault(limit))
	if err != nil {
		return nil, errs.Wrap(errs.KindBackendFailure, "failed to query audit entries", err)
	}
	defer rows.Close()

	entries := []audit.Entry{}
	for rows.Next() {
		var (
			e     audit.Entry
			at    string
			actor sql.NullString
		)
		if err := rows.Scan(&e.ID, &at, &e.Source, &e.Action, &e.Item, &actor); err != nil {
			return nil, errs.Wrap(errs.KindBackendFailure, "failed to scan audit entry", err)
		}
		if e.Time, err = parseTime(at); err != nil {
			return nil, err
		}
		e.Actor = actor.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindBackendFailure, "failed to iterate audit entries", err)
	}
	return entries, nil
}

// Redirects implements audit.Store.
func (s *SQLiteStore) Redirects(ctx context.Context, limit int) ([]audit.RedirectRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, pattern, target, created_at
		FROM redirect_rules
		ORDER BY id DESC
		LIMIT ?`, limitOrDefault(limit))
	if err != nil {
		return nil, errs.Wrap(errs.KindBackendFailure, "failed to query redirect rules", err)
	}
	defer rows.Close()

	rules := []audit.RedirectRule{}
	for rows.Next() {
		var (
			r  audit.RedirectRule
			at string
		)
		if err := rows.Scan(&r.ID, &r.Kind, &r.Pattern, &r.Target, &at); err != nil {
			return nil, errs.Wrap(errs.KindBackendFailure, "failed to scan redirect rule", err)
		}
		if r.CreatedAt, err = parseTime(at); err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindBackendFailure, "failed to iterate redirect rules", err)
	}
	return rules, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return limit
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, errs.Wrap(errs.KindBackendFailure, fmt.Sprintf("invalid timestamp %q", v), err)
	}
	return t, nil
}
