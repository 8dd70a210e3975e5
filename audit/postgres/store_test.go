package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ebogdum/mediasource/audit"
	"github.com/ebogdum/mediasource/internal/errs"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	return NewWithDB(db, zap.NewNop()), mock
}

func TestLogAction(t *testing.T) {
	store, mock := newMockStore(t)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO audit_entries")).
		WithArgs(at, "media", "file_create", "docs/a.txt", "alice").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	ctx := audit.WithActor(context.Background(), "alice")
	require.NoError(t, store.LogAction(ctx, audit.Entry{Time: at, Source: "media", Action: "file_create", Item: "docs/a.txt"}))
}

func TestLogActionFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO audit_entries")).
		WillReturnError(errors.New("connection refused"))

	err := store.LogAction(context.Background(), audit.Entry{Source: "media", Action: "file_remove", Item: "a.txt"})
	require.Error(t, err)
	assert.True(t, errs.IsBackendFailure(err))
}

func TestRecent(t *testing.T) {
	store, mock := newMockStore(t)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM audit_entries")).
		WithArgs(100).
		WillReturnRows(sqlmock.NewRows([]string{"id", "time", "source", "action", "item", "actor"}).
			AddRow(2, at, "media", "file_remove", "a.txt", nil).
			AddRow(1, at, "media", "file_create", "a.txt", "alice"))

	entries, err := store.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(2), entries[0].ID)
	assert.Empty(t, entries[0].Actor)
	assert.Equal(t, "alice", entries[1].Actor)
	assert.Equal(t, at, entries[1].Time)
}

func TestRecordRedirectAndRedirects(t *testing.T) {
	store, mock := newMockStore(t)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rule := audit.RedirectRule{Kind: "dir", Pattern: `^old\/(.*)$`, Target: "new/$1", CreatedAt: at}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO redirect_rules")).
		WithArgs("dir", rule.Pattern, rule.Target, at).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery(regexp.QuoteMeta("FROM redirect_rules")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "kind", "pattern", "target", "created_at"}).
			AddRow(7, "dir", rule.Pattern, rule.Target, at))

	require.NoError(t, store.RecordRedirect(context.Background(), rule))

	rules, err := store.Redirects(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, int64(7), rules[0].ID)
	assert.Equal(t, rule.Target, rules[0].Target)
}

func TestRedirectsScanFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM redirect_rules")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	_, err := store.Redirects(context.Background(), 0)
	require.Error(t, err)
	assert.True(t, errs.IsBackendFailure(err))
}
