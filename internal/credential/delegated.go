package credential

import (
	"context"
	"sync"
	"time"

	"github.com/supriyameruva/filegate/internal/apperr"
	"github.com/supriyameruva/filegate/internal/session"
)

// refreshMargin renews a delegated token slightly before its stated expiry
// so an acquired credential stays valid for the duration of the backend call.
const refreshMargin = 2 * time.Minute

// Refresher exchanges a refresh token for a fresh delegated token.
// Implemented by the authflow controller.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (session.Token, error)
}

// Delegated produces credentials from the caller's authenticated session.
// Refreshes are serialized under a single mutex with a double check, so N
// concurrent acquirers of an expiring token trigger at most one upstream
// exchange; the rest block briefly and reuse the result.
type Delegated struct {
	sessions  *session.Store
	refresher Refresher
	now       func() time.Time

	refreshMu sync.Mutex
}

// NewDelegated creates a provider backed by the session store.
func NewDelegated(sessions *session.Store, refresher Refresher) *Delegated {
	return &Delegated{sessions: sessions, refresher: refresher, now: time.Now}
}

// Acquire returns the delegated credential for the session bound to ctx.
func (d *Delegated) Acquire(ctx context.Context) (Credential, error) {
	sess, ok := session.FromContext(ctx)
	if !ok {
		return Credential{}, apperr.New(apperr.KindNotAuthenticated, "login required")
	}

	tok, err := d.tokenFor(ctx, sess.ID)
	if err != nil {
		return Credential{}, err
	}

	return Credential{
		Kind:      DelegatedToken,
		Secret:    tok.AccessToken,
		Scope:     tok.Scope,
		ExpiresAt: tok.ExpiresAt,
	}, nil
}

func (d *Delegated) tokenFor(ctx context.Context, sessionID string) (session.Token, error) {
	tok, err := d.currentToken(sessionID)
	if err != nil {
		return session.Token{}, err
	}
	if !d.needsRefresh(tok) {
		return tok, nil
	}

	d.refreshMu.Lock()
	defer d.refreshMu.Unlock()

	// Double check: another caller may have refreshed while we waited.
	tok, err = d.currentToken(sessionID)
	if err != nil {
		return session.Token{}, err
	}
	if !d.needsRefresh(tok) {
		return tok, nil
	}

	if tok.RefreshToken == "" {
		if tok.Expired(d.now()) {
			d.sessions.MarkExpired(sessionID)
			return session.Token{}, apperr.New(apperr.KindCredentialExpired, "session expired, login required")
		}
		// Inside the margin but still valid and unrefreshable.
		return tok, nil
	}

	fresh, err := d.refresher.Refresh(ctx, tok.RefreshToken)
	if err != nil {
		if tok.Expired(d.now()) {
			d.sessions.MarkExpired(sessionID)
			return session.Token{}, apperr.Wrap(apperr.KindCredentialExpired, "session expired, login required", err)
		}
		// Refresh failed early; the current token still has life left.
		return tok, nil
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = tok.RefreshToken
	}
	d.sessions.SetToken(sessionID, fresh)
	return fresh, nil
}

func (d *Delegated) currentToken(sessionID string) (session.Token, error) {
	sess, ok := d.sessions.Get(sessionID)
	if !ok || sess.State != session.StateAuthenticated || sess.Token == nil {
		return session.Token{}, apperr.New(apperr.KindNotAuthenticated, "login required")
	}
	return *sess.Token, nil
}

func (d *Delegated) needsRefresh(tok session.Token) bool {
	if tok.ExpiresAt.IsZero() {
		return false
	}
	return d.now().Add(refreshMargin).After(tok.ExpiresAt)
}
