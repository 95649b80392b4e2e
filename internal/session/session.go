// Package session owns the AuthSession lifecycle: creation at first login,
// state transitions driven by the authorization flow, and TTL eviction.
// Only the opaque session identifier ever leaves the process; tokens and
// nonces stay server-side.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a session.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthRequested
	StateAuthenticated
	StateExpired
)

// String returns a short label for the state.
func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthRequested:
		return "auth_requested"
	case StateAuthenticated:
		return "authenticated"
	case StateExpired:
		return "expired"
	}
	return "unknown"
}

// Token is a delegated token obtained on the user's behalf.
type Token struct {
	AccessToken  string
	RefreshToken string
	Scope        string
	ExpiresAt    time.Time
}

// Expired reports whether the token's validity window has passed.
func (t Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// Session is one authenticated (or pending) client session.
// Fields are owned by the Store; callers receive copies.
type Session struct {
	ID        string
	State     State
	Nonce     string
	Token     *Token
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Store keeps sessions in memory, keyed by identifier, guarded by a single
// lock, with a periodic TTL eviction sweep.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

const sweepInterval = time.Minute

// NewStore creates a session store whose sessions live for ttl.
func NewStore(ttl time.Duration) *Store {
	s := &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go s.sweep()
	return s
}

// Create mints a new unauthenticated session and returns a copy.
func (s *Store) Create() Session {
	now := s.now()
	sess := &Session{
		ID:        uuid.NewString(),
		State:     StateUnauthenticated,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	return *sess
}

// Get returns a copy of the session, or false if it does not exist or its
// TTL has passed.
func (s *Store) Get(id string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok || s.now().After(sess.ExpiresAt) {
		return Session{}, false
	}
	return *sess, true
}

// SetNonce binds a fresh anti-forgery nonce to the session and moves it to
// AuthRequested. Any previous token is discarded.
func (s *Store) SetNonce(id, nonce string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return false
	}
	sess.Nonce = nonce
	sess.State = StateAuthRequested
	sess.Token = nil
	return true
}

// TakeNonce consumes the pending nonce. A nonce can be taken exactly once;
// a second callback for the same attempt sees an empty nonce.
func (s *Store) TakeNonce(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || sess.State != StateAuthRequested {
		return "", false
	}
	nonce := sess.Nonce
	sess.Nonce = ""
	return nonce, nonce != ""
}

// SetToken stores a delegated token and marks the session Authenticated.
func (s *Store) SetToken(id string, tok Token) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return false
	}
	sess.Token = &tok
	sess.State = StateAuthenticated
	return true
}

// Authenticate marks the session Authenticated without a delegated token
// (placeholder form login).
func (s *Store) Authenticate(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return false
	}
	sess.State = StateAuthenticated
	return true
}

// Fail returns the session to Unauthenticated after a failed authorization
// attempt, clearing any pending nonce.
func (s *Store) Fail(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		sess.State = StateUnauthenticated
		sess.Nonce = ""
		sess.Token = nil
	}
}

// MarkExpired transitions the session to Expired when its token lapsed with
// no refresh path.
func (s *Store) MarkExpired(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		sess.State = StateExpired
		sess.Token = nil
	}
}

// Delete destroys the session immediately (logout).
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close stops the eviction sweep.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Store) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.evictExpired()
		}
	}
}

func (s *Store) evictExpired() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if now.After(sess.ExpiresAt) {
			delete(s.sessions, id)
		}
	}
}

type contextKey struct{}

// NewContext returns a context carrying the session.
func NewContext(ctx context.Context, sess Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

// FromContext returns the session attached to ctx, if any.
func FromContext(ctx context.Context) (Session, bool) {
	sess, ok := ctx.Value(contextKey{}).(Session)
	return sess, ok
}
