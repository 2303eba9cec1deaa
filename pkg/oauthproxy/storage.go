// SPDX-FileCopyrightText: Copyright 2025 Healthbridge AI, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauthproxy

import (
	"sync"
	"time"
)

const (
	// DefaultFlowTTL bounds how long an authorization flow may sit between
	// the initial /authorize redirect and the final token exchange.
	DefaultFlowTTL = 10 * time.Minute

	// DefaultCleanupInterval is how often expired flow state is swept.
	DefaultCleanupInterval = time.Minute
)

// PendingAuthorization captures the downstream half of an authorization
// request while the resource owner is off authenticating with the upstream
// provider. It is keyed by the internal state value sent upstream.
type PendingAuthorization struct {
	ClientID            string
	RedirectURI         string
	State               string
	Scopes              []string
	CodeChallenge       string
	CodeChallengeMethod string
	CreatedAt           time.Time
}

// issuedGrant binds a downstream authorization code to the upstream token
// response obtained at the callback. The PKCE challenge travels with it so
// the token endpoint can check the verifier.
type issuedGrant struct {
	ClientID            string
	RedirectURI         string
	CodeChallenge       string
	CodeChallengeMethod string
	Tokens              *TokenResponse
}

type timedEntry[T any] struct {
	value     T
	expiresAt time.Time
}

func (e *timedEntry[T]) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// flowStore holds all in-flight OAuth state: registered clients, pending
// authorizations, and issued (not yet redeemed) authorization codes.
// Pending authorizations and codes are single use and expire after the
// configured TTL; clients live until the store is closed.
type flowStore struct {
	mu      sync.RWMutex
	clients map[string]*Client
	pending map[string]*timedEntry[*PendingAuthorization]
	grants  map[string]*timedEntry[*issuedGrant]

	ttl time.Duration

	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

func newFlowStore(ttl, cleanupInterval time.Duration) *flowStore {
	if ttl <= 0 {
		ttl = DefaultFlowTTL
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}

	s := &flowStore{
		clients:     make(map[string]*Client),
		pending:     make(map[string]*timedEntry[*PendingAuthorization]),
		grants:      make(map[string]*timedEntry[*issuedGrant]),
		ttl:         ttl,
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
	go s.cleanupLoop(cleanupInterval)
	return s
}

// Close stops the background cleanup goroutine. Safe to call once.
func (s *flowStore) Close() {
	close(s.stopCleanup)
	<-s.cleanupDone
}

func (s *flowStore) RegisterClient(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.ID] = c
}

func (s *flowStore) GetClient(id string) (*Client, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[id]
	return c, ok
}

func (s *flowStore) StorePending(internalState string, p *PendingAuthorization) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[internalState] = &timedEntry[*PendingAuthorization]{
		value:     p,
		expiresAt: time.Now().Add(s.ttl),
	}
}

// ConsumePending removes and returns the pending authorization for the
// given internal state. A second call with the same state fails, which is
// what makes the upstream callback replay-proof.
func (s *flowStore) ConsumePending(internalState string) (*PendingAuthorization, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.pending[internalState]
	if !ok {
		return nil, false
	}
	delete(s.pending, internalState)
	if e.expired(time.Now()) {
		return nil, false
	}
	return e.value, true
}

func (s *flowStore) StoreGrant(code string, g *issuedGrant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[code] = &timedEntry[*issuedGrant]{
		value:     g,
		expiresAt: time.Now().Add(s.ttl),
	}
}

// ConsumeGrant redeems an authorization code. Codes are single use.
func (s *flowStore) ConsumeGrant(code string) (*issuedGrant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.grants[code]
	if !ok {
		return nil, false
	}
	delete(s.grants, code)
	if e.expired(time.Now()) {
		return nil, false
	}
	return e.value, true
}

func (s *flowStore) cleanupLoop(interval time.Duration) {
	defer close(s.cleanupDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
			s.cleanupExpired()
		}
	}
}

func (s *flowStore) cleanupExpired() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	for state, e := range s.pending {
		if e.expired(now) {
			delete(s.pending, state)
		}
	}
	for code, e := range s.grants {
		if e.expired(now) {
			delete(s.grants, code)
		}
	}
}
