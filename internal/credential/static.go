package credential

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/supriyameruva/filegate/internal/apperr"
)

// Static provides a non-expiring credential (managed identity or connection
// string). Acquire is idempotent and never fails.
type Static struct {
	cred Credential
}

// NewManagedIdentity returns a provider for the platform-issued identity.
// The secret stays with the platform; the credential only tags the kind.
func NewManagedIdentity() *Static {
	return &Static{cred: Credential{Kind: ManagedIdentity}}
}

// NewConnectionString returns a provider around an account connection string.
func NewConnectionString(connectionString string) (*Static, error) {
	if connectionString == "" {
		return nil, apperr.New(apperr.KindInvalidConfig, "connection string is empty")
	}
	return &Static{cred: Credential{Kind: ConnectionString, Secret: connectionString}}, nil
}

func (s *Static) Acquire(ctx context.Context) (Credential, error) {
	return s.cred, nil
}

// SAS provides a shared-access-signature credential with the fixed validity
// window encoded in the token itself. The token was handed to the process
// out-of-band, so there is no renewal: once past expiry Acquire fails.
type SAS struct {
	cred Credential
	now  func() time.Time
}

// NewSAS parses the token's st (not-before) and se (expiry) parameters and
// returns a provider for it.
func NewSAS(token string) (*SAS, error) {
	if token == "" {
		return nil, apperr.New(apperr.KindInvalidConfig, "SAS token is empty")
	}

	values, err := url.ParseQuery(token)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidConfig, "SAS token is not parseable", err)
	}

	cred := Credential{Kind: SharedAccessSignature, Secret: token}
	if st := values.Get("st"); st != "" {
		t, err := time.Parse(time.RFC3339, st)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInvalidConfig, "SAS token carries an unparseable start time", err)
		}
		cred.NotBefore = t
	}
	if se := values.Get("se"); se != "" {
		t, err := time.Parse(time.RFC3339, se)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInvalidConfig, "SAS token carries an unparseable expiry", err)
		}
		cred.ExpiresAt = t
	}

	return &SAS{cred: cred, now: time.Now}, nil
}

func (s *SAS) Acquire(ctx context.Context) (Credential, error) {
	now := s.now()
	if !s.cred.NotBefore.IsZero() && now.Before(s.cred.NotBefore) {
		return Credential{}, apperr.New(apperr.KindInvalidConfig,
			fmt.Sprintf("SAS token is not valid before %s", s.cred.NotBefore.Format(time.RFC3339)))
	}
	if s.cred.Expired(now) {
		return Credential{}, apperr.New(apperr.KindCredentialExpired, "SAS token has expired")
	}
	return s.cred, nil
}
