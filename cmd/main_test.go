package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ebogdum/mediasource/audit"
	"github.com/ebogdum/mediasource/audit/sqlite"
	"github.com/ebogdum/mediasource/config"
	"github.com/ebogdum/mediasource/internal/errs"
)

type cliFixture struct {
	configPath string
	localRoot  string
	backupRoot string
}

func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()
	color.NoColor = true

	dir := t.TempDir()
	f := &cliFixture{
		configPath: filepath.Join(dir, "mediasource.yaml"),
		localRoot:  filepath.Join(dir, "local"),
		backupRoot: filepath.Join(dir, "backup"),
	}

	require.NoError(t, os.MkdirAll(filepath.Join(f.localRoot, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.localRoot, "docs", "a.txt"), []byte("alpha"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(f.localRoot, "top.txt"), []byte("top"), 0o644))

	body := fmt.Sprintf(`
log:
  level: error
  format: console
audit:
  type: sqlite
  sqlite_path: %q
dlm:
  type: local
sources:
  local:
    type: localfs
    root_path: %q
    url: http://local.example.com/
    description: working copy
  backup:
    type: localfs
    root_path: %q
    url: http://backup.example.com/
`, filepath.Join(dir, "audit.sqlite3"), f.localRoot, f.backupRoot)
	require.NoError(t, os.WriteFile(f.configPath, []byte(body), 0o600))
	return f
}

func (f *cliFixture) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", f.configPath}, args...))

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestConfigValidateCommand(t *testing.T) {
	f := newCLIFixture(t)

	out, err := f.run(t, "", "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")
	assert.Contains(t, out, "Audit Store: sqlite")
	assert.Contains(t, out, "Sources: 2")
}

func TestSourcesCommands(t *testing.T) {
	f := newCLIFixture(t)

	out, err := f.run(t, "", "sources")
	require.NoError(t, err)
	assert.Less(t, strings.Index(out, "backup"), strings.Index(out, "local "))

	out, err = f.run(t, "", "sources", "info", "local")
	require.NoError(t, err)
	assert.Contains(t, out, "working copy")
	assert.Contains(t, out, "http://local.example.com/")

	_, err = f.run(t, "", "sources", "info", "nope")
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestBrowseCommands(t *testing.T) {
	f := newCLIFixture(t)

	out, err := f.run(t, "", "ls", "local")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "docs/"))
	assert.True(t, strings.HasPrefix(lines[1], "top.txt"))
	assert.Contains(t, lines[1], "http://local.example.com/top.txt")

	out, err = f.run(t, "", "cat", "local", "docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "alpha", out)

	_, err = f.run(t, "", "mkdir", "local", "docs", "new")
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(f.localRoot, "docs", "new"))

	_, err = f.run(t, "", "rename", "local", "top.txt", "renamed.txt")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(f.localRoot, "renamed.txt"))
	assert.NoFileExists(t, filepath.Join(f.localRoot, "top.txt"))

	_, err = f.run(t, "", "mv", "local", "renamed.txt", "docs/")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(f.localRoot, "docs", "renamed.txt"))

	_, err = f.run(t, "", "rm", "local", "docs/renamed.txt")
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(f.localRoot, "docs", "renamed.txt"))

	_, err = f.run(t, "", "rm", "local", "docs/renamed.txt")
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))

	out, err = f.run(t, "", "audit", "--limit", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "file_remove")
	assert.Contains(t, out, "directory_create")
	assert.Contains(t, out, "cli")
}

func TestTransferCommand(t *testing.T) {
	f := newCLIFixture(t)

	out, err := f.run(t, "n\n", "transfer", "local", "docs/", "backup", "")
	require.NoError(t, err)
	assert.Contains(t, out, confirmPrompt)
	assert.Contains(t, out, "Aborted.")
	assert.NoFileExists(t, filepath.Join(f.backupRoot, "docs", "a.txt"))

	out, err = f.run(t, "", "transfer", "--move", "--yes", "local", "docs/", "backup", "")
	require.NoError(t, err)
	assert.NotContains(t, out, confirmPrompt)
	assert.Contains(t, out, "1 transferred, 1 deleted")
	assert.Contains(t, out, "Redirect (dir)")

	data, err := os.ReadFile(filepath.Join(f.backupRoot, "docs", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(data))
	assert.NoFileExists(t, filepath.Join(f.localRoot, "docs", "a.txt"))

	out, err = f.run(t, "", "redirects")
	require.NoError(t, err)
	assert.Contains(t, out, `^http:\/\/local.example.com\/docs(.*)$`)
	assert.Contains(t, out, "http://backup.example.com/docs$1")

	_, err = f.run(t, "y\n", "transfer", "local", "missing.txt", "backup", "")
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		answer string
		want   bool
	}{
		{"", true},
		{"\n", true},
		{"y\n", true},
		{"Y\n", true},
		{"yes\n", true},
		{"n\n", false},
		{"no\n", false},
		{"whatever\n", false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.answer), func(t *testing.T) {
			var out bytes.Buffer
			got, err := confirm(strings.NewReader(tt.answer), &out)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, confirmPrompt, out.String())
		})
	}
}

func TestOpenAudit(t *testing.T) {
	ctx := context.Background()

	store, err := openAudit(ctx, config.AuditConfig{Type: "log"}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &audit.LogStore{}, store)

	store, err = openAudit(ctx, config.AuditConfig{Type: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "a.sqlite3")}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &sqlite.SQLiteStore{}, store)
	require.NoError(t, store.Close())

	_, err = openAudit(ctx, config.AuditConfig{Type: "mongo"}, zap.NewNop())
	assert.Equal(t, errs.KindInvalidInput, errs.KindOf(err))
}

func TestInitializeLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		logger, err := initializeLogger(config.LogConfig{Level: "debug", Format: format})
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zap.DebugLevel))
	}

	logger, err := initializeLogger(config.LogConfig{Level: "bogus"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
}
