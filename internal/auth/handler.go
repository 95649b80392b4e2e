// Package auth exposes the login, callback and logout endpoints that drive
// the authorization flow and the session lifecycle.
package auth

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/supriyameruva/filegate/internal/authflow"
	"github.com/supriyameruva/filegate/internal/middleware"
	"github.com/supriyameruva/filegate/internal/response"
	"github.com/supriyameruva/filegate/internal/session"
)

// Handler holds HTTP handlers for auth endpoints. When flow is nil the
// delegated authorization flow is disabled and Login falls back to the
// placeholder form check.
type Handler struct {
	flow     *authflow.Controller
	sessions *session.Store
	secret   string
	ttl      time.Duration
}

// NewHandler creates a new auth Handler. flow may be nil.
func NewHandler(flow *authflow.Controller, sessions *session.Store, secret string, ttl time.Duration) *Handler {
	return &Handler{flow: flow, sessions: sessions, secret: secret, ttl: ttl}
}

// Index godoc
//
//	@Summary	Landing page
//	@Tags		auth
//	@Produce	json
//	@Success	200	{object}	response.Envelope
//	@Router		/ [get]
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	data := map[string]interface{}{
		"service": "file gateway",
	}
	if sess, ok := session.FromContext(r.Context()); ok {
		data["session"] = sess.State.String()
	}
	response.OK(w, data)
}

// Login godoc
//
//	@Summary		Log in
//	@Description	With OAuth configured, redirects to the provider's authorization endpoint. Otherwise accepts the placeholder form credentials.
//	@Tags			auth
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Success		302
//	@Failure		401	{string}	string
//	@Router			/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	sess := h.ensureSession(w, r)

	if h.flow != nil {
		redirect, err := h.flow.Begin(sess.ID)
		if err != nil {
			response.FromError(w, err)
			return
		}
		http.Redirect(w, r, redirect, http.StatusFound)
		return
	}

	if r.Method == http.MethodGet {
		response.OK(w, map[string]string{
			"message": "POST form fields username and password to log in",
		})
		return
	}

	// Hard-coded placeholder check, deliberately not a security boundary.
	if r.FormValue("username") != "admin" || r.FormValue("password") != "password" {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	h.sessions.Authenticate(sess.ID)
	http.Redirect(w, r, "/", http.StatusFound)
}

// Callback godoc
//
//	@Summary		Authorization callback
//	@Description	Completes the authorization-code exchange. The echoed state must match the nonce issued at login.
//	@Tags			auth
//	@Param			code	query	string	true	"Authorization code"
//	@Param			state	query	string	true	"Echoed state"
//	@Success		302
//	@Failure		400	{string}	string	"Login failed"
//	@Router			/callback [get]
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	if h.flow == nil {
		http.NotFound(w, r)
		return
	}

	sess, ok := session.FromContext(r.Context())
	if !ok {
		http.Error(w, "Login failed", http.StatusBadRequest)
		return
	}

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if err := h.flow.Complete(r.Context(), sess.ID, code, state); err != nil {
		log.Warn().Err(err).Msg("authorization callback rejected")
		http.Error(w, "Login failed", http.StatusBadRequest)
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

// Logout godoc
//
//	@Summary	Log out
//	@Tags		auth
//	@Success	302
//	@Router		/logout [get]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := session.FromContext(r.Context()); ok {
		h.sessions.Delete(sess.ID)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	http.Redirect(w, r, "/", http.StatusFound)
}

// ensureSession returns the request's session, creating one (and setting the
// cookie) on first contact.
func (h *Handler) ensureSession(w http.ResponseWriter, r *http.Request) session.Session {
	if sess, ok := session.FromContext(r.Context()); ok {
		return sess
	}

	sess := h.sessions.Create()
	value, err := middleware.MintSessionCookie(h.secret, sess.ID, h.ttl)
	if err != nil {
		log.Error().Err(err).Msg("failed to sign session cookie")
		return sess
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   int(h.ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sess
}
