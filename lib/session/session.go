package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log"
	"sync"
	"time"
)

// ErrSessionInvalid is returned by Resolve for identifiers that are neither a valid address nor a live session.
var ErrSessionInvalid = errors.New("invalid or expired session")

// token size in bytes; hex-encoded it yields the 8-character identifiers handed to clients
const tokenBytes = 4

// Session binds an opaque identifier to a validated address while it holds a pool slot. Address is set once at
// creation and never changes.
type Session struct {
	ID        string
	Address   string
	SlotHeld  bool
	CreatedAt time.Time
}

// Validator reports whether a candidate string is a well-formed address for the manager's network. It must be pure
// and must not panic on any input.
type Validator func(candidate string) bool

// ExpireFunc is called by the sweeper for every session it reclaims, after the slot has been released.
type ExpireFunc func(s Session)

// Manager issues, resolves and expires sessions for one network. It owns the identifier->Session store and the
// slot pool; no other component mutates them.
type Manager struct {
	net   string
	pool  *Pool
	valid Validator

	mu    sync.Mutex
	store map[string]*Session

	ttl      time.Duration
	sweep    time.Duration
	onExpire ExpireFunc

	stop chan struct{}
	done chan struct{}
}

// New returns a manager admitting up to capacity concurrent sessions, each living at most ttl before the sweeper
// (running every sweep) reclaims it. onExpire may be nil.
func New(net string, capacity int, ttl, sweep time.Duration, valid Validator, onExpire ExpireFunc) *Manager {
	return &Manager{
		net:      net,
		pool:     NewPool(capacity),
		valid:    valid,
		store:    make(map[string]*Session),
		ttl:      ttl,
		sweep:    sweep,
		onExpire: onExpire,
	}
}

// Pool exposes the slot pool for metrics and tests.
func (m *Manager) Pool() *Pool {
	return m.pool
}

// Live returns the number of sessions currently in the store.
func (m *Manager) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.store)
}

// Authenticate validates the candidate address and, if valid, blocks on the slot pool (bounded by ctx) and mints a
// session. An invalid address is a normal outcome, reported as ok=false with no error and no slot consumed. The
// error return is only non-nil when the wait for a slot was cancelled or timed out.
func (m *Manager) Authenticate(ctx context.Context, candidate string) (id string, ok bool, err error) {
	if !m.valid(candidate) {
		return "", false, nil
	}

	if err = m.pool.Acquire(ctx); err != nil {
		return "", false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		id = newToken()
		if _, taken := m.store[id]; !taken {
			break
		}
	}

	m.store[id] = &Session{ID: id, Address: candidate, SlotHeld: true, CreatedAt: time.Now()}

	return id, true, nil
}

// Resolve maps an inbound identifier to an address. An identifier that itself validates as an address is returned
// directly with fromSession=false: raw addresses may query statelessly without going through auth. Otherwise the
// identifier must name a live session, whose bound address is returned with fromSession=true so the caller knows a
// Release is owed once the request completes.
func (m *Manager) Resolve(identifier string) (address string, fromSession bool, err error) {
	if m.valid(identifier) {
		return identifier, false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, found := m.store[identifier]
	if !found {
		return "", false, ErrSessionInvalid
	}

	return s.Address, true, nil
}

// Release removes the session and returns its slot to the pool. It is idempotent: unknown identifiers and repeated
// calls are no-ops, so a session's slot is released exactly once however the request ends.
func (m *Manager) Release(identifier string) {
	m.mu.Lock()

	s, found := m.store[identifier]
	if found {
		delete(m.store, identifier)
		s.SlotHeld = false
	}

	m.mu.Unlock()

	if found {
		m.pool.Release()
	}
}

// Start launches the expiry sweeper. Sessions older than the TTL are force-released so abandoned clients cannot
// hold capacity forever; reclamation happens within ttl+sweep of creation, not at the exact deadline.
func (m *Manager) Start() {
	m.stop = make(chan struct{})
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)

		t := time.NewTicker(m.sweep)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				m.expire(time.Now())
			case <-m.stop:
				return
			}
		}
	}()
}

// Stop halts the sweeper and waits for it to exit. Live sessions are left for their holders.
func (m *Manager) Stop() {
	if m.stop == nil {
		return
	}

	close(m.stop)
	<-m.done
	m.stop = nil
}

// expire reclaims every session older than the TTL at time now.
func (m *Manager) expire(now time.Time) {
	m.mu.Lock()

	var expired []*Session

	for id, s := range m.store {
		if now.Sub(s.CreatedAt) > m.ttl {
			delete(m.store, id)
			s.SlotHeld = false
			expired = append(expired, s)
		}
	}

	m.mu.Unlock()

	for _, s := range expired {
		m.pool.Release()
		log.Printf("[%s] WARN: session %s for address %s expired unconsumed, slot reclaimed", m.net, s.ID, s.Address)

		if m.onExpire != nil {
			m.onExpire(*s)
		}
	}
}

// newToken returns a fresh 8-hex-character identifier.
func newToken() string {
	b := make([]byte, tokenBytes)
	_, _ = rand.Read(b)

	return hex.EncodeToString(b)
}
