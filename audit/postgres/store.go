package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/ebogdum/mediasource/audit"
	"github.com/ebogdum/mediasource/internal/errs"
)

const defaultLimit = 100

var _ audit.Store = (*PostgresStore)(nil)

// PostgresStore implements audit.Store using PostgreSQL
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresStore connects to dsn and applies the schema migrations
func NewPostgresStore(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errs.Wrap(errs.KindBackendFailure, "failed to open database", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errs.Wrap(errs.KindBackendFailure, "failed to ping database", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return NewWithDB(db, logger), nil
}

// NewWithDB wraps an open database whose schema is already in place
func NewWithDB(db *sql.DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

// LogAction implements audit.Logger
func (s *PostgresStore) LogAction(ctx context.Context, entry audit.Entry) error {
	if entry.Time.IsZero() {
		entry.Time = time.Now().UTC()
	}
	if entry.Actor == "" {
		entry.Actor = audit.ActorFrom(ctx)
	}

	var actor sql.NullString
	if entry.Actor != "" {
		actor = sql.NullString{String: entry.Actor, Valid: true}
	}

	var id int64
	err := s.db.QueryRowContext(ctx, _SQL_INSERT_ENTRY,
		entry.Time, entry.Source, entry.Action, entry.Item, actor).Scan(&id)
	if err != nil {
		return errs.Wrap(errs.KindBackendFailure, "failed to insert audit entry", err)
	}
	return nil
}

// RecordRedirect implements audit.RedirectRecorder
func (s *PostgresStore) RecordRedirect(ctx context.Context, rule audit.RedirectRule) error {
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}

	var id int64
	err := s.db.QueryRowContext(ctx, _SQL_INSERT_REDIRECT,
		rule.Kind, rule.Pattern, rule.Target, rule.CreatedAt).Scan(&id)
	if err != nil {
		return errs.Wrap(errs.KindBackendFailure, "failed to insert redirect rule", err)
	}

	s.logger.Info("Redirect rule recorded",
		zap.Int64("id", id),
		zap.String("kind", rule.Kind),
		zap.String("pattern", rule.Pattern))
	return nil
}

// Recent implements audit.Store
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx, _SQL_RECENT_ENTRIES, limitOrDefault(limit))
	if err != nil {
		return nil, errs.Wrap(errs.KindBackendFailure, "failed to query audit entries", err)
	}
	defer rows.Close()

	entries := []audit.Entry{}
	for rows.Next() {
		var (
			e     audit.Entry
			actor sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Time, &e.Source, &e.Action, &e.Item, &actor); err != nil {
			return nil, errs.Wrap(errs.KindBackendFailure, "failed to scan audit entry", err)
		}
		e.Actor = actor.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindBackendFailure, "failed to iterate audit entries", err)
	}
	return entries, nil
}

// Redirects implements audit.Store
func (s *PostgresStore) Redirects(ctx context.Context, limit int) ([]audit.RedirectRule, error) {
	rows, err := s.db.QueryContext(ctx, _SQL_RECENT_REDIRECTS, limitOrDefault(limit))
	if err != nil {
		return nil, errs.Wrap(errs.KindBackendFailure, "failed to query redirect rules", err)
	}
	defer rows.Close()

	rules := []audit.RedirectRule{}
	for rows.Next() {
		var r audit.RedirectRule
		if err := rows.Scan(&r.ID, &r.Kind, &r.Pattern, &r.Target, &r.CreatedAt); err != nil {
			return nil, errs.Wrap(errs.KindBackendFailure, "failed to scan redirect rule", err)
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindBackendFailure, "failed to iterate redirect rules", err)
	}
	return rules, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return limit
}
