package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supriyameruva/filegate/internal/session"
)

const testSecret = "test-secret"

// probe records whether a session reached the downstream handler.
func probe(got *session.Session, found *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sess, ok := session.FromContext(r.Context()); ok {
			*got = sess
			*found = true
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestSessionCookieRoundTrip(t *testing.T) {
	store := session.NewStore(time.Hour)
	defer store.Close()
	sess := store.Create()

	value, err := MintSessionCookie(testSecret, sess.ID, time.Hour)
	require.NoError(t, err)

	var got session.Session
	var found bool
	h := Session(store, testSecret)(probe(&got, &found))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: value})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.True(t, found)
	assert.Equal(t, sess.ID, got.ID)
}

func TestSessionMiddlewareNeverRejects(t *testing.T) {
	store := session.NewStore(time.Hour)
	defer store.Close()

	cases := []struct {
		name   string
		cookie *http.Cookie
	}{
		{"no cookie", nil},
		{"garbage value", &http.Cookie{Name: SessionCookie, Value: "not-a-jwt"}},
		{"unknown session", func() *http.Cookie {
			value, err := MintSessionCookie(testSecret, "no-such-session", time.Hour)
			require.NoError(t, err)
			return &http.Cookie{Name: SessionCookie, Value: value}
		}()},
		{"wrong signing key", func() *http.Cookie {
			sess := store.Create()
			value, err := MintSessionCookie("other-secret", sess.ID, time.Hour)
			require.NoError(t, err)
			return &http.Cookie{Name: SessionCookie, Value: value}
		}()},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got session.Session
			var found bool
			h := Session(store, testSecret)(probe(&got, &found))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.cookie != nil {
				req.AddCookie(tc.cookie)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.False(t, found)
		})
	}
}

func TestMintSessionCookieExpiry(t *testing.T) {
	value, err := MintSessionCookie(testSecret, "abc", -time.Minute)
	require.NoError(t, err)

	_, ok := parseSessionCookie(testSecret, value)
	assert.False(t, ok, "expired cookie must not resolve")
}
