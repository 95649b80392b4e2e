// Package credential produces usable, non-expired credentials for backend
// calls. Exactly one kind is configured at process startup; an operation
// never executes with an expired credential, and refresh (where a refresh
// path exists) is coalesced so at most one upstream call is in flight.
package credential

import (
	"context"
	"time"
)

// Kind identifies how a credential was obtained.
type Kind int

const (
	ManagedIdentity Kind = iota
	SharedAccessSignature
	ConnectionString
	DelegatedToken
)

// String returns a short label for the kind.
func (k Kind) String() string {
	switch k {
	case ManagedIdentity:
		return "managed_identity"
	case SharedAccessSignature:
		return "sas"
	case ConnectionString:
		return "connection_string"
	case DelegatedToken:
		return "delegated_token"
	}
	return "unknown"
}

// Credential is a usable backend credential. Secret holds the kind-specific
// material (connection string, SAS token, or bearer token); it must never
// appear in error text or logs.
type Credential struct {
	Kind      Kind
	Secret    string
	Scope     string
	NotBefore time.Time
	ExpiresAt time.Time // zero means non-expiring
}

// Expired reports whether the credential's validity window has passed.
func (c Credential) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// Provider produces a credential for the operation bound to ctx.
// A returned error is non-retryable within the same request.
type Provider interface {
	Acquire(ctx context.Context) (Credential, error)
}
