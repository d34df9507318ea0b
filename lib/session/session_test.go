package session

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// isTestAddr accepts the fixed form used across these tests.
func isTestAddr(s string) bool {
	return strings.HasPrefix(s, "0x") && len(s) == 10
}

const testAddr = "0xcafe0001"

func newTestManager(capacity int, ttl, sweep time.Duration, onExpire ExpireFunc) *Manager {
	return New("testnet", capacity, ttl, sweep, isTestAddr, onExpire)
}

// TestAuthenticateResolveRoundTrip checks a minted identifier resolves back to the address it was bound to.
func TestAuthenticateResolveRoundTrip(t *testing.T) {
	m := newTestManager(1, time.Minute, time.Second, nil)

	id, ok, err := m.Authenticate(context.Background(), testAddr)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, id, 8)
	require.Equal(t, 1, m.Pool().Active())

	addr, fromSession, err := m.Resolve(id)
	require.NoError(t, err)
	require.True(t, fromSession)
	require.Equal(t, testAddr, addr)
}

// TestAuthenticateInvalidAddress checks an invalid address is a normal failure outcome: no error, no slot consumed.
func TestAuthenticateInvalidAddress(t *testing.T) {
	m := newTestManager(1, time.Minute, time.Second, nil)

	id, ok, err := m.Authenticate(context.Background(), "not-a-real-address")
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, id)
	require.Equal(t, 0, m.Pool().Active())
	require.Equal(t, 0, m.Live())
}

// TestResolveRawAddress checks a well-formed address resolves statelessly, without a session or release duty.
func TestResolveRawAddress(t *testing.T) {
	m := newTestManager(1, time.Minute, time.Second, nil)

	addr, fromSession, err := m.Resolve(testAddr)
	require.NoError(t, err)
	require.False(t, fromSession)
	require.Equal(t, testAddr, addr)
}

// TestResolveUnknownIdentifier checks unknown identifiers fail with the session sentinel.
func TestResolveUnknownIdentifier(t *testing.T) {
	m := newTestManager(1, time.Minute, time.Second, nil)

	_, _, err := m.Resolve("deadbeef")
	require.ErrorIs(t, err, ErrSessionInvalid)
}

// TestReleaseIdempotent checks a session's slot goes back exactly once however many times Release is called, and
// that a released identifier can no longer be resolved.
func TestReleaseIdempotent(t *testing.T) {
	m := newTestManager(1, time.Minute, time.Second, nil)

	id, ok, err := m.Authenticate(context.Background(), testAddr)
	require.NoError(t, err)
	require.True(t, ok)

	m.Release(id)
	require.Equal(t, 0, m.Pool().Active())

	m.Release(id) // second call is a no-op
	m.Release("unknown")
	require.Equal(t, 0, m.Pool().Active())

	_, _, err = m.Resolve(id)
	require.ErrorIs(t, err, ErrSessionInvalid)
}

// TestHandoffBetweenClients reproduces the capacity=1 two-client scenario: Y's authenticate suspends until X's
// session is released, then resolves with a fresh token and no re-enqueueing.
func TestHandoffBetweenClients(t *testing.T) {
	m := newTestManager(1, time.Minute, time.Second, nil)

	idX, ok, err := m.Authenticate(context.Background(), testAddr)
	require.NoError(t, err)
	require.True(t, ok)

	var idY string

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		var okY bool

		var errY error

		idY, okY, errY = m.Authenticate(context.Background(), "0xcafe0002")
		require.NoError(t, errY)
		require.True(t, okY)
	}()

	waitFor(t, func() bool { return m.Pool().Waiting() == 1 })

	m.Release(idX)
	wg.Wait()

	require.Len(t, idY, 8)
	require.NotEqual(t, idX, idY)
	require.Equal(t, 1, m.Pool().Active())

	addr, fromSession, err := m.Resolve(idY)
	require.NoError(t, err)
	require.True(t, fromSession)
	require.Equal(t, "0xcafe0002", addr)
}

// TestAuthenticateAdmitTimeout checks a bounded wait surfaces ErrWaitTimeout when capacity stays exhausted.
func TestAuthenticateAdmitTimeout(t *testing.T) {
	m := newTestManager(1, time.Minute, time.Second, nil)

	_, ok, err := m.Authenticate(context.Background(), testAddr)
	require.NoError(t, err)
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, ok, err = m.Authenticate(ctx, "0xcafe0002")
	require.ErrorIs(t, err, ErrWaitTimeout)
	require.False(t, ok)
	require.Equal(t, 0, m.Pool().Waiting())
}

// TestSweeperReclaimsAbandonedSession checks an unconsumed session is reclaimed within ttl+sweep, releasing its
// slot, firing the expiry callback and invalidating the identifier.
func TestSweeperReclaimsAbandonedSession(t *testing.T) {
	var mu sync.Mutex

	var expired []Session

	m := newTestManager(1, 50*time.Millisecond, 20*time.Millisecond, func(s Session) {
		mu.Lock()
		expired = append(expired, s)
		mu.Unlock()
	})

	m.Start()
	defer m.Stop()

	id, ok, err := m.Authenticate(context.Background(), testAddr)
	require.NoError(t, err)
	require.True(t, ok)

	waitFor(t, func() bool { return m.Live() == 0 })

	require.Equal(t, 0, m.Pool().Active())

	_, _, err = m.Resolve(id)
	require.ErrorIs(t, err, ErrSessionInvalid)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, expired, 1)
	require.Equal(t, id, expired[0].ID)
	require.Equal(t, testAddr, expired[0].Address)
}

// TestConsumedSessionNotSwept checks consumption and expiry cannot double-release: a session released on first use
// is gone before the sweeper fires, and the pool admits exactly one new session afterwards.
func TestConsumedSessionNotSwept(t *testing.T) {
	m := newTestManager(1, 30*time.Millisecond, 10*time.Millisecond, func(s Session) {
		t.Errorf("consumed session %s reached the sweeper", s.ID)
	})

	m.Start()
	defer m.Stop()

	id, ok, err := m.Authenticate(context.Background(), testAddr)
	require.NoError(t, err)
	require.True(t, ok)

	_, fromSession, err := m.Resolve(id)
	require.NoError(t, err)
	require.True(t, fromSession)
	m.Release(id)

	time.Sleep(100 * time.Millisecond) // give the sweeper a few intervals

	require.Equal(t, 0, m.Pool().Active())
	require.Equal(t, 0, m.Live())
}
