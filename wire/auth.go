package wire

import (
	"context"
	"errors"
	"strings"
)

// Identity represents an authenticated caller.
type Identity struct {
	// Subject is the authenticated user or service ID. It is recorded as
	// the user on jobs submitted without one.
	Subject string `json:"subject"`

	// Scopes defines what operations are permitted.
	// Examples: "job:write", "printer:read", "*"
	Scopes []string `json:"scopes,omitempty"`
}

// HasScope returns true if the identity has the given scope.
// A wildcard "*" scope grants all permissions.
func (id *Identity) HasScope(scope string) bool {
	for _, s := range id.Scopes {
		if s == ScopeAll || s == scope {
			return true
		}
	}
	return false
}

// Authenticator validates credentials and returns an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Identity, error)
}

// ErrUnauthorized indicates authentication failure.
var ErrUnauthorized = errors.New("wire: unauthorized")

// ── API key authenticator ───────────────────────────

// APIKeyEntry maps a token to an identity.
type APIKeyEntry struct {
	Token    string
	Identity Identity
}

// APIKeyAuthenticator validates API keys against a static list.
type APIKeyAuthenticator struct {
	keys map[string]*Identity
}

// NewAPIKeyAuthenticator creates an API key authenticator.
func NewAPIKeyAuthenticator(entries ...APIKeyEntry) *APIKeyAuthenticator {
	keys := make(map[string]*Identity, len(entries))
	for _, e := range entries {
		ident := e.Identity
		keys[e.Token] = &ident
	}
	return &APIKeyAuthenticator{keys: keys}
}

func (a *APIKeyAuthenticator) Authenticate(_ context.Context, token string) (*Identity, error) {
	ident, ok := a.keys[strings.TrimPrefix(token, "Bearer ")]
	if !ok {
		return nil, ErrUnauthorized
	}
	return ident, nil
}

// NoopAuthenticator accepts all tokens with a wildcard identity.
// Use for development only.
type NoopAuthenticator struct{}

func (a *NoopAuthenticator) Authenticate(_ context.Context, _ string) (*Identity, error) {
	return &Identity{
		Subject: "anonymous",
		Scopes:  []string{ScopeAll},
	}, nil
}

// ── Scope constants ─────────────────────────────────

const (
	ScopeJobRead      = "job:read"
	ScopeJobWrite     = "job:write"
	ScopePrinterRead  = "printer:read"
	ScopeQueueProcess = "queue:process"
	ScopeStatsRead    = "stats:read"
	ScopeSubscribe    = "subscribe"
	ScopeAdmin        = "admin"
	ScopeAll          = "*"
)

// RequiredScope returns the minimum scope required for a method.
func RequiredScope(method string) string {
	switch {
	case method == MethodAuth:
		return ""
	case strings.HasPrefix(method, "job."):
		if method == MethodJobGet || method == MethodJobList {
			return ScopeJobRead
		}
		return ScopeJobWrite
	case method == MethodPrinterList:
		return ScopePrinterRead
	case method == MethodQueueProcess:
		return ScopeQueueProcess
	case method == MethodSubscribe, method == MethodUnsubscribe:
		return ScopeSubscribe
	case method == MethodStats:
		return ScopeStatsRead
	default:
		return ScopeAdmin
	}
}
