package core

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// DefaultAuthTimeout is the handshake deadline applied when no override is
// configured.
const DefaultAuthTimeout = 10 * time.Second

// AuthState tracks one connection's handshake. Records are owned by the
// authenticator and looked up by connection identity; nothing is ever
// attached to the transport object itself.
type AuthState struct {
	mu          sync.Mutex
	identity    *User
	valid       bool
	fingerprint string
	attemptedAt time.Time
	confirmedAt time.Time
}

func (s *AuthState) recordAttempt(fingerprint string) {
	s.mu.Lock()
	s.fingerprint = fingerprint
	s.attemptedAt = time.Now()
	s.mu.Unlock()
}

func (s *AuthState) confirm(u *User) {
	s.mu.Lock()
	s.identity = u
	s.valid = true
	s.confirmedAt = time.Now()
	s.mu.Unlock()
}

func (s *AuthState) Identity() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

func (s *AuthState) Valid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.valid
}

func (s *AuthState) Fingerprint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fingerprint
}

func (s *AuthState) AttemptedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attemptedAt
}

func (s *AuthState) ConfirmedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirmedAt
}

// BeforeSuccess runs after token verification and may still fail the
// handshake, e.g. a ban check.
type BeforeSuccess func(*User) error

func rejectBanned(u *User) error {
	if u.IsBanned() {
		return ErrBanned
	}
	return nil
}

// Authenticator drives the admission handshake on fresh connections.
type Authenticator struct {
	provider      AuthProvider
	beforeSuccess BeforeSuccess
	timeout       time.Duration
	logger        *slog.Logger

	mu     sync.Mutex
	states map[Conn]*AuthState
}

type AuthOption func(*Authenticator)

func WithTimeout(d time.Duration) AuthOption {
	return func(a *Authenticator) {
		a.timeout = d
	}
}

func WithBeforeSuccess(f BeforeSuccess) AuthOption {
	return func(a *Authenticator) {
		a.beforeSuccess = f
	}
}

func NewAuthenticator(provider AuthProvider, logger *slog.Logger, opts ...AuthOption) *Authenticator {
	a := &Authenticator{
		provider:      provider,
		beforeSuccess: rejectBanned,
		timeout:       DefaultAuthTimeout,
		logger:        logger.With(slog.String("component", "authenticator")),
		states:        make(map[Conn]*AuthState),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// State looks up the handshake record for a connection. The record exists
// only while the handshake is in flight.
func (a *Authenticator) State(conn Conn) (*AuthState, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	state, ok := a.states[conn]
	return state, ok
}

type authResult struct {
	user *User
	err  error
}

// Authorize drives the handshake: emit auth.require, wait for the client's
// attempt, and race token verification against the deadline. Whichever
// settles first wins through a single-assignment result cell; the loser's
// eventual completion resolves into a no-op. Exactly one terminal signal is
// emitted, and on failure the connection is closed.
func (a *Authenticator) Authorize(ctx context.Context, conn Conn) (*User, error) {
	state := &AuthState{}
	a.mu.Lock()
	a.states[conn] = state
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		delete(a.states, conn)
		a.mu.Unlock()
	}()

	conn.Send(NewEvent(EventAuthRequire, nil))

	resolved := make(chan authResult, 1)
	var once sync.Once
	resolve := func(r authResult) {
		once.Do(func() { resolved <- r })
	}

	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	timer := time.NewTimer(a.timeout)
	defer timer.Stop()
	go func() {
		select {
		case <-timer.C:
			resolve(authResult{err: ErrAuthTimeout})
		case <-attemptCtx.Done():
			// Parent cancellation (hub shutdown) must still settle the
			// handshake; after a local resolve this is a no-op.
			resolve(authResult{err: ErrConnClosed})
		}
	}()

	go a.awaitAttempt(attemptCtx, conn, state, resolve)

	res := <-resolved
	cancel()

	if res.err != nil {
		a.logger.Warn("authentication failed", slog.String("reason", res.err.Error()))
		conn.Send(NewEvent(EventAuthFailure, AuthFailurePayload{
			Error:       res.err.Error(),
			Fingerprint: state.Fingerprint(),
		}))
		conn.Close()
		return nil, res.err
	}

	state.confirm(res.user)
	conn.Send(NewEvent(EventAuthSuccess, AuthSuccessPayload{
		Fingerprint: state.Fingerprint(),
	}))
	return res.user, nil
}

// awaitAttempt reads pre-auth frames until an auth.attempt arrives, then
// verifies it. Frames other than attempts are ignored; an unauthenticated
// connection gets nothing else.
func (a *Authenticator) awaitAttempt(ctx context.Context, conn Conn, state *AuthState, resolve func(authResult)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-conn.Done():
			resolve(authResult{err: ErrConnClosed})
			return
		case e, ok := <-conn.Receive():
			if !ok {
				resolve(authResult{err: ErrConnClosed})
				return
			}
			if e.Type != EventAuthAttempt {
				continue
			}
			var attempt AuthAttemptPayload
			if err := json.Unmarshal(e.Payload, &attempt); err != nil {
				resolve(authResult{err: ErrTokenInvalid})
				return
			}
			// Recorded before verification, independent of its outcome.
			state.recordAttempt(attempt.Fingerprint)

			user, err := a.provider.Verify(ctx, attempt.Token)
			if err != nil {
				resolve(authResult{err: err})
				return
			}
			if err := a.beforeSuccess(user); err != nil {
				resolve(authResult{err: err})
				return
			}
			resolve(authResult{user: user})
			return
		}
	}
}
