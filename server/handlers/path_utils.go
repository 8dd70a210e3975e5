package handlers

import (
	"net/http"
	"strings"

	"github.com/ebogdum/mediasource/internal/pathutil"
)

// queryPath reads a virtual path from the query string. Paths carrying
// control characters or traversal segments are rejected.
func queryPath(r *http.Request, name string) (string, error) {
	return validatePath(r.URL.Query().Get(name))
}

func validatePath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if err := pathutil.ValidateKey(p); err != nil {
		return "", err
	}
	return p, nil
}
