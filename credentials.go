package bookchat

import (
	"os"
	"strings"
	"sync"
)

// CredentialProvider supplies the current bearer token. An empty token means
// the request is sent anonymously.
type CredentialProvider interface {
	Token() string
}

// Invalidator is implemented by providers that can forget a token the backend
// rejected with 401.
type Invalidator interface {
	Invalidate()
}

// StaticToken is a fixed token.
type StaticToken string

func (t StaticToken) Token() string { return strings.TrimSpace(string(t)) }

// EnvToken reads the token from an environment variable on every call.
type EnvToken string

func (e EnvToken) Token() string { return strings.TrimSpace(os.Getenv(string(e))) }

// ChainCredentials returns the first non-empty token of its providers,
// the same way a persistent store is consulted before a per-session one.
type ChainCredentials []CredentialProvider

func (c ChainCredentials) Token() string {
	for _, p := range c {
		if p == nil {
			continue
		}
		if tok := p.Token(); tok != "" {
			return tok
		}
	}
	return ""
}

// Invalidate forwards to every provider in the chain that supports it.
func (c ChainCredentials) Invalidate() {
	for _, p := range c {
		if inv, ok := p.(Invalidator); ok {
			inv.Invalidate()
		}
	}
}

// TokenStore is a mutable in-memory token holder. It is safe for concurrent use.
type TokenStore struct {
	mu    sync.RWMutex
	token string
}

// NewTokenStore creates a store holding token.
func NewTokenStore(token string) *TokenStore {
	return &TokenStore{token: strings.TrimSpace(token)}
}

func (s *TokenStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Set replaces the stored token.
func (s *TokenStore) Set(token string) {
	s.mu.Lock()
	s.token = strings.TrimSpace(token)
	s.mu.Unlock()
}

// Clear forgets the stored token.
func (s *TokenStore) Clear() {
	s.Set("")
}

// Invalidate clears the token after the backend rejected it.
func (s *TokenStore) Invalidate() {
	s.Clear()
}

// Authenticated reports whether a token is currently held.
func (s *TokenStore) Authenticated() bool {
	return s.Token() != ""
}
