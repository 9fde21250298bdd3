// Package oauthstate tracks single-use CSRF state values for the OAuth
// authorization-code flow.
//
// The store is process-local by design: an OAuth round-trip begins and
// ends at the same instance in this deployment shape. State values are
// high-entropy, expire after a short TTL, and are deleted on first read
// regardless of outcome. A background sweeper bounds memory under
// abandoned flows.
package oauthstate

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"
)

const stateBytes = 32

// ErrStateInvalid covers unknown, expired, and already-consumed states.
var ErrStateInvalid = errors.New("invalid or expired oauth state")

// Store issues and consumes OAuth CSRF states. Safe for concurrent use.
// Construct once per process with [New] and release with [Close].
type Store struct {
	ttl time.Duration

	mu     sync.Mutex
	states map[string]time.Time // state -> expiry

	done      chan struct{}
	closeOnce sync.Once

	now func() time.Time
}

// New returns a store whose states live for ttl and starts a sweeper
// that prunes expired entries every sweepEvery.
func New(ttl, sweepEvery time.Duration) *Store {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if sweepEvery <= 0 {
		sweepEvery = 5 * time.Minute
	}

	s := &Store{
		ttl:    ttl,
		states: make(map[string]time.Time),
		done:   make(chan struct{}),
		now:    time.Now,
	}

	go s.sweepLoop(sweepEvery)
	return s
}

// Issue creates and records a fresh high-entropy state value.
func (s *Store) Issue() (string, error) {
	raw := make([]byte, stateBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	state := hex.EncodeToString(raw)

	s.mu.Lock()
	s.states[state] = s.now().Add(s.ttl)
	s.mu.Unlock()

	return state, nil
}

// Consume validates and deletes state. Deletion happens on read
// regardless of outcome, so a state can never be tried twice.
func (s *Store) Consume(state string) error {
	s.mu.Lock()
	expiry, ok := s.states[state]
	delete(s.states, state)
	s.mu.Unlock()

	if !ok || s.now().After(expiry) {
		return ErrStateInvalid
	}
	return nil
}

// Len reports the number of live states. Used by tests and health
// introspection.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

// Close stops the sweeper. Pending states are dropped with the store.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

func (s *Store) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.done:
			return
		}
	}
}

func (s *Store) sweep() {
	now := s.now()

	s.mu.Lock()
	for state, expiry := range s.states {
		if now.After(expiry) {
			delete(s.states, state)
		}
	}
	s.mu.Unlock()
}
