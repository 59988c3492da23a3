package gateway

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// SecretHeader carries the shared secret on HTTP and on the WebSocket upgrade
const SecretHeader = "X-Copilot-Secret"

// AuthHandler checks the optional shared secret
type AuthHandler struct {
	sharedSecret string
}

// NewAuthHandler creates a new authentication handler. An empty secret
// admits every request.
func NewAuthHandler(sharedSecret string) *AuthHandler {
	return &AuthHandler{
		sharedSecret: sharedSecret,
	}
}

// Enabled reports whether a secret is configured
func (a *AuthHandler) Enabled() bool {
	return a.sharedSecret != ""
}

// Authorize checks the secret header, then a bearer token. Browsers cannot
// set headers on a WebSocket upgrade, so the "secret" query parameter is
// accepted as well.
func (a *AuthHandler) Authorize(r *http.Request) bool {
	if !a.Enabled() {
		return true
	}

	candidate := r.Header.Get(SecretHeader)
	if candidate == "" {
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			candidate = strings.TrimPrefix(auth, "Bearer ")
		}
	}
	if candidate == "" {
		candidate = r.URL.Query().Get("secret")
	}

	return a.Verify(candidate)
}

// Verify compares candidate to the secret in constant time
func (a *AuthHandler) Verify(candidate string) bool {
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(a.sharedSecret)) == 1
}
