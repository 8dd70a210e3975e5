package pathutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ebogdum/mediasource/internal/errs"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    string
		shouldError bool
	}{
		{name: "empty key", input: "", expected: "/"},
		{name: "simple key", input: "file.txt", expected: "/file.txt"},
		{name: "nested key", input: "dir/subdir/file.txt", expected: "/dir/subdir/file.txt"},
		{name: "leading slash is tolerated", input: "/dir/file.txt", expected: "/dir/file.txt"},
		{name: "directory traversal", input: "../../../etc/passwd", shouldError: true},
		{name: "mixed traversal", input: "dir/../../../etc/passwd", shouldError: true},
		{name: "safe relative navigation", input: "dir/../file.txt", expected: "/file.txt"},
		{name: "current directory", input: "./file.txt", expected: "/file.txt"},
		{name: "multiple slashes", input: "dir//file.txt", expected: "/dir/file.txt"},
		{name: "folder marker", input: "dir/", expected: "/dir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Clean(tt.input)

			if tt.shouldError {
				if err == nil {
					t.Errorf("expected error for input %q, got none", tt.input)
				} else if !errs.IsInvalidInput(err) {
					t.Errorf("expected invalid input error, got %v", err)
				}
				return
			}

			if err != nil {
				t.Errorf("unexpected error for input %q: %v", tt.input, err)
				return
			}

			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestSafeJoin(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name        string
		key         string
		expected    string
		shouldError bool
	}{
		{name: "simple key", key: "file.txt", expected: filepath.Join(root, "file.txt")},
		{name: "nested key", key: "a/b/c.txt", expected: filepath.Join(root, "a", "b", "c.txt")},
		{name: "root", key: "", expected: root},
		{name: "traversal", key: "../outside.txt", shouldError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := SafeJoin(root, tt.key)

			if tt.shouldError {
				if err == nil {
					t.Errorf("expected error for key %q, got none", tt.key)
				}
				return
			}

			if err != nil {
				t.Errorf("unexpected error for key %q: %v", tt.key, err)
				return
			}

			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestSafeJoinRejectsSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()

	if err := os.Symlink(outside, filepath.Join(root, "escape")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	if _, err := SafeJoin(root, "escape/secret.txt"); err == nil {
		t.Errorf("expected symlinked directory outside root to be rejected")
	}
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name        string
		key         string
		shouldError bool
	}{
		{name: "root", key: ""},
		{name: "regular key", key: "media/images/logo.png"},
		{name: "folder key", key: "media/images/"},
		{name: "tab is allowed", key: "media/a\tb.txt"},
		{name: "null byte", key: "file\x00.txt", shouldError: true},
		{name: "control character", key: "file\x01.txt", shouldError: true},
		{name: "backslash", key: "dir\\file.txt", shouldError: true},
		{name: "traversal", key: "../../etc/passwd", shouldError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if tt.shouldError && err == nil {
				t.Errorf("expected error for key %q, got none", tt.key)
			}
			if !tt.shouldError && err != nil {
				t.Errorf("unexpected error for key %q: %v", tt.key, err)
			}
		})
	}
}
