package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// APIKeyAuthenticator implements authentication using static API keys
type APIKeyAuthenticator struct {
	keys []apiKey
}

type apiKey struct {
	token     string
	principal Principal
}

// NewAPIKeyAuthenticator creates an authenticator for admin keys and
// read-only keys. A key listed in both is read-only.
func NewAPIKeyAuthenticator(adminKeys, readOnlyKeys []string) *APIKeyAuthenticator {
	a := &APIKeyAuthenticator{}
	readOnly := make(map[string]bool, len(readOnlyKeys))
	for _, key := range readOnlyKeys {
		if key != "" {
			readOnly[key] = true
			a.add(key, true)
		}
	}
	for _, key := range adminKeys {
		if key != "" && !readOnly[key] {
			a.add(key, false)
		}
	}
	return a
}

func (a *APIKeyAuthenticator) add(key string, readOnly bool) {
	sum := sha256.Sum256([]byte(key))
	a.keys = append(a.keys, apiKey{
		token:     key,
		principal: Principal{ID: "key-" + hex.EncodeToString(sum[:4]), ReadOnly: readOnly},
	})
}

// Authenticate validates a token and returns the associated caller
func (a *APIKeyAuthenticator) Authenticate(ctx context.Context, token string) (*Principal, error) {
	// Remove "Bearer " prefix if present
	token = strings.TrimPrefix(token, "Bearer ")
	token = strings.TrimSpace(token)

	if token == "" {
		return nil, ErrAuthenticationFailed
	}

	for _, k := range a.keys {
		if subtle.ConstantTimeCompare([]byte(k.token), []byte(token)) == 1 {
			p := k.principal
			return &p, nil
		}
	}
	return nil, ErrAuthenticationFailed
}
