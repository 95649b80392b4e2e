package middleware

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/supriyameruva/filegate/internal/session"
)

// SessionCookie is the name of the cookie carrying the signed session id.
const SessionCookie = "fg_session"

// MintSessionCookie signs the opaque session identifier into a cookie value.
// Only the identifier crosses the wire; tokens and nonces stay server-side.
func MintSessionCookie(secret, sessionID string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": sessionID,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// Session returns middleware that resolves the session cookie and, when it
// names a live session, attaches the session to the request context. It
// never rejects requests; handlers and credential providers decide what an
// absent session means for them.
func Session(store *session.Store, secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookie)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			id, ok := parseSessionCookie(secret, cookie.Value)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			sess, ok := store.Get(id)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(session.NewContext(r.Context(), sess)))
		})
	}
}

func parseSessionCookie(secret, value string) (string, bool) {
	token, err := jwt.Parse(value, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", false
	}
	id, _ := claims["sub"].(string)
	return id, id != ""
}
