// Package pathutil maps virtual "folder" paths onto flat object keys and
// guards keys that are later joined onto a local filesystem root.
package pathutil

import (
	"path/filepath"
	"strings"

	"github.com/ebogdum/mediasource/internal/errs"
)

// Clean normalises a relative key for filesystem use and rejects any key
// whose ".." segments would climb above the root.
func Clean(key string) (string, error) {
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return "/", nil
	}

	depth := 0
	for _, part := range strings.Split(key, "/") {
		switch part {
		case "", ".":
			continue
		case "..":
			depth--
			if depth < 0 {
				return "", errs.Newf(errs.KindInvalidInput, "key %q escapes the root", key)
			}
		default:
			depth++
		}
	}

	return filepath.ToSlash(filepath.Clean("/" + key)), nil
}

// SafeJoin joins a root directory with a key, ensuring the result stays
// inside root even after symlinks are resolved.
func SafeJoin(root, key string) (string, error) {
	cleanRoot := filepath.Clean(root)

	cleanKey, err := Clean(key)
	if err != nil {
		return "", err
	}

	rel := filepath.FromSlash(strings.TrimPrefix(cleanKey, "/"))
	joined := filepath.Join(cleanRoot, rel)

	resolvedRoot := cleanRoot
	if r, err := filepath.EvalSymlinks(cleanRoot); err == nil {
		resolvedRoot = r
	}

	target := filepath.Join(resolvedRoot, rel)
	if resolved, err := filepath.EvalSymlinks(joined); err == nil {
		target = resolved
	} else if resolvedDir, err := filepath.EvalSymlinks(filepath.Dir(joined)); err == nil {
		// the leaf does not exist yet
		target = filepath.Join(resolvedDir, filepath.Base(joined))
	}

	if !within(resolvedRoot, target) {
		return "", errs.Newf(errs.KindInvalidInput, "key %q escapes the root", key)
	}

	return joined, nil
}

func within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// ValidateKey rejects keys carrying NUL bytes, control characters or
// traversal segments. The empty key is valid and denotes the source root.
func ValidateKey(key string) error {
	if strings.Contains(key, "\x00") {
		return errs.New(errs.KindInvalidInput, "key contains a NUL byte")
	}

	for _, char := range key {
		if char < 32 && char != '\t' {
			return errs.New(errs.KindInvalidInput, "key contains control characters")
		}
	}

	if strings.Contains(key, "\\") {
		return errs.New(errs.KindInvalidInput, "key contains a backslash")
	}

	_, err := Clean(key)
	return err
}
