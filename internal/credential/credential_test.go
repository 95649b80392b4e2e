package credential

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supriyameruva/filegate/internal/apperr"
	"github.com/supriyameruva/filegate/internal/session"
)

func sasToken(notBefore, expiry time.Time) string {
	v := url.Values{
		"sv":  {"2024-11-04"},
		"sig": {"fakesignature"},
		"st":  {notBefore.UTC().Format(time.RFC3339)},
		"se":  {expiry.UTC().Format(time.RFC3339)},
	}
	return v.Encode()
}

func TestStaticProvidersNeverExpire(t *testing.T) {
	mi := NewManagedIdentity()
	cred, err := mi.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ManagedIdentity, cred.Kind)
	assert.False(t, cred.Expired(time.Now().Add(100*365*24*time.Hour)))

	cs, err := NewConnectionString("AccountName=acct;AccountKey=key")
	require.NoError(t, err)
	cred, err = cs.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ConnectionString, cred.Kind)
}

func TestConnectionStringRequired(t *testing.T) {
	_, err := NewConnectionString("")
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidConfig))
}

func TestSASWithinWindow(t *testing.T) {
	now := time.Now()
	provider, err := NewSAS(sasToken(now.Add(-time.Hour), now.Add(time.Hour)))
	require.NoError(t, err)

	cred, err := provider.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SharedAccessSignature, cred.Kind)
	assert.False(t, cred.Expired(now))
}

func TestSASExpired(t *testing.T) {
	now := time.Now()
	provider, err := NewSAS(sasToken(now.Add(-2*time.Hour), now.Add(-time.Hour)))
	require.NoError(t, err)

	_, err = provider.Acquire(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindCredentialExpired), "got %v", err)
}

func TestSASNotYetValid(t *testing.T) {
	now := time.Now()
	provider, err := NewSAS(sasToken(now.Add(time.Hour), now.Add(2*time.Hour)))
	require.NoError(t, err)

	_, err = provider.Acquire(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidConfig))
}

// countingRefresher counts upstream exchanges and serves a fresh token.
type countingRefresher struct {
	calls int32
}

func (c *countingRefresher) Refresh(ctx context.Context, refreshToken string) (session.Token, error) {
	n := atomic.AddInt32(&c.calls, 1)
	time.Sleep(10 * time.Millisecond) // widen the race window
	return session.Token{
		AccessToken:  fmt.Sprintf("refreshed-%d", n),
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(time.Hour),
	}, nil
}

func TestDelegatedRequiresSession(t *testing.T) {
	sessions := session.NewStore(time.Hour)
	defer sessions.Close()

	provider := NewDelegated(sessions, &countingRefresher{})

	_, err := provider.Acquire(context.Background())
	assert.True(t, apperr.IsKind(err, apperr.KindNotAuthenticated))
}

func TestDelegatedExpiredWithoutRefreshPath(t *testing.T) {
	sessions := session.NewStore(time.Hour)
	defer sessions.Close()

	sess := sessions.Create()
	sessions.SetToken(sess.ID, session.Token{
		AccessToken: "stale",
		ExpiresAt:   time.Now().Add(-time.Minute),
	})

	provider := NewDelegated(sessions, &countingRefresher{})
	current, _ := sessions.Get(sess.ID)
	ctx := session.NewContext(context.Background(), current)

	_, err := provider.Acquire(ctx)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindCredentialExpired), "got %v", err)

	// The session is moved to Expired, forcing a fresh login.
	got, ok := sessions.Get(sess.ID)
	require.True(t, ok)
	assert.Equal(t, session.StateExpired, got.State)
}

func TestDelegatedRefreshCoalesced(t *testing.T) {
	sessions := session.NewStore(time.Hour)
	defer sessions.Close()

	sess := sessions.Create()
	sessions.SetToken(sess.ID, session.Token{
		AccessToken:  "expiring",
		RefreshToken: "rt-1",
		ExpiresAt:    time.Now().Add(30 * time.Second), // inside the refresh margin
	})

	refresher := &countingRefresher{}
	provider := NewDelegated(sessions, refresher)
	current, _ := sessions.Get(sess.ID)
	ctx := session.NewContext(context.Background(), current)

	const callers = 25
	var wg sync.WaitGroup
	errs := make([]error, callers)
	creds := make([]Credential, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			creds[i], errs[i] = provider.Acquire(ctx)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, DelegatedToken, creds[i].Kind)
		assert.False(t, creds[i].Expired(time.Now()))
	}

	assert.EqualValues(t, 1, atomic.LoadInt32(&refresher.calls),
		"concurrent acquires must trigger at most one upstream refresh")
}
