// Package authflow drives the three-legged authorization-code exchange.
// The flow spans two requests, correlated only by the session identifier and
// the anti-forgery nonce: Begin issues the redirect to the provider,
// Complete consumes the provider's callback and materializes a delegated
// token on the session.
package authflow

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/supriyameruva/filegate/internal/apperr"
	"github.com/supriyameruva/filegate/internal/session"
)

// Endpoints are the provider's OAuth 2.0 endpoints.
type Endpoints struct {
	AuthorizeURL string
	TokenURL     string
}

// Config configures the controller for one OAuth client registration.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	Endpoints    Endpoints
}

// Controller runs the authorization-code state machine against the session
// store. It never exposes the client secret or tokens to the client; only
// the opaque session identifier crosses the wire.
type Controller struct {
	cfg      Config
	sessions *session.Store
	client   *http.Client
	now      func() time.Time
}

// New creates a controller. httpClient may be nil, in which case a client
// with a sane timeout is used for token exchanges.
func New(cfg Config, sessions *session.Store, httpClient *http.Client) *Controller {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Controller{
		cfg:      cfg,
		sessions: sessions,
		client:   httpClient,
		now:      time.Now,
	}
}

// Begin mints a fresh nonce, binds it to the session (moving it to
// AuthRequested) and returns the provider redirect URL carrying the nonce as
// the state parameter.
func (c *Controller) Begin(sessionID string) (string, error) {
	nonce, err := newNonce()
	if err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	if !c.sessions.SetNonce(sessionID, nonce) {
		return "", apperr.New(apperr.KindNotAuthenticated, "unknown session")
	}

	params := url.Values{
		"client_id":     {c.cfg.ClientID},
		"response_type": {"code"},
		"redirect_uri":  {c.cfg.RedirectURL},
		"response_mode": {"query"},
		"scope":         {strings.Join(c.cfg.Scopes, " ")},
		"state":         {nonce},
	}
	return c.cfg.Endpoints.AuthorizeURL + "?" + params.Encode(), nil
}

// Complete handles the provider callback. The echoed state must equal the
// stored nonce (constant-time compare); any mismatch is terminal for the
// attempt and returns the session to Unauthenticated. On match the code is
// exchanged for a delegated token and the session becomes Authenticated.
func (c *Controller) Complete(ctx context.Context, sessionID, code, state string) error {
	nonce, ok := c.sessions.TakeNonce(sessionID)
	if !ok || subtle.ConstantTimeCompare([]byte(state), []byte(nonce)) != 1 {
		c.sessions.Fail(sessionID)
		return apperr.New(apperr.KindStateMismatch, "login failed")
	}

	tok, err := c.exchange(ctx, url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {c.cfg.RedirectURL},
		"scope":        {strings.Join(c.cfg.Scopes, " ")},
	})
	if err != nil {
		c.sessions.Fail(sessionID)
		return apperr.Wrap(apperr.KindCodeExchangeFailed, "login failed", err)
	}

	if !c.sessions.SetToken(sessionID, tok) {
		return apperr.New(apperr.KindNotAuthenticated, "unknown session")
	}
	return nil
}

// Refresh exchanges a refresh token for a fresh delegated token. It does not
// touch the session store; the caller owns that update.
func (c *Controller) Refresh(ctx context.Context, refreshToken string) (session.Token, error) {
	return c.exchange(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"scope":         {strings.Join(c.cfg.Scopes, " ")},
	})
}

// tokenResponse is the provider's token endpoint payload.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	ExpiresIn    int64  `json:"expires_in"`
}

func (c *Controller) exchange(ctx context.Context, form url.Values) (session.Token, error) {
	form.Set("client_id", c.cfg.ClientID)
	if c.cfg.ClientSecret != "" {
		form.Set("client_secret", c.cfg.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.Endpoints.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return session.Token{}, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return session.Token{}, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// The provider error body may echo request parameters; surface
		// only the status.
		_, _ = io.Copy(io.Discard, resp.Body)
		return session.Token{}, fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return session.Token{}, fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return session.Token{}, fmt.Errorf("token response contained no access token")
	}

	tok := session.Token{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		Scope:        tr.Scope,
	}
	switch {
	case tr.ExpiresIn > 0:
		tok.ExpiresAt = c.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	default:
		tok.ExpiresAt = expiryFromClaims(tr.AccessToken)
	}
	return tok, nil
}

// expiryFromClaims falls back to the access token's exp claim when the
// provider omits expires_in. The token is not verified here; it is only
// ever presented back to the issuing provider's storage endpoint.
func expiryFromClaims(accessToken string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// newNonce returns a URL-safe random nonce.
func newNonce() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
