// Package security guards the tower's admin surface (publishing control
// events) with a single shared secret, bcrypt-hashed at startup.
package security

import (
	"errors"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// ErrNoPasswordConfigured means the admin gate was never given a secret, so
// every request is rejected rather than silently left open.
var ErrNoPasswordConfigured = errors.New("admin password not configured")

// Gate checks a shared secret supplied as a bearer token against a bcrypt
// hash computed once at construction.
type Gate struct {
	mu   sync.RWMutex
	hash []byte
}

// NewGate hashes password with bcrypt. An empty password produces a Gate
// that rejects every request.
func NewGate(password string) (*Gate, error) {
	g := &Gate{}
	if password == "" {
		return g, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	g.hash = hash
	return g, nil
}

// Check reports whether candidate matches the configured secret.
func (g *Gate) Check(candidate string) error {
	g.mu.RLock()
	hash := g.hash
	g.mu.RUnlock()

	if len(hash) == 0 {
		return ErrNoPasswordConfigured
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(candidate)); err != nil {
		return errors.New("invalid admin secret")
	}
	return nil
}

// Middleware returns an http middleware enforcing the shared secret via an
// "Authorization: Bearer <secret>" header.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		if err := g.Check(strings.TrimSpace(parts[1])); err != nil {
			http.Error(w, "invalid admin secret", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
