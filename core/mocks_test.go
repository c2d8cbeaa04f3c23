package core

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockConn is an in-memory Conn: pushed events appear on Receive, sent
// events are captured for assertions.
type MockConn struct {
	mu        sync.Mutex
	sent      []*Event
	in        chan *Event
	done      chan struct{}
	closeOnce sync.Once
}

func NewMockConn() *MockConn {
	return &MockConn{
		in:   make(chan *Event, 16),
		done: make(chan struct{}),
	}
}

func (c *MockConn) Send(e *Event) {
	c.mu.Lock()
	c.sent = append(c.sent, e)
	c.mu.Unlock()
}

func (c *MockConn) Receive() <-chan *Event {
	return c.in
}

func (c *MockConn) Done() <-chan struct{} {
	return c.done
}

func (c *MockConn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *MockConn) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// push feeds an inbound event as if the client had sent it.
func (c *MockConn) push(t string, payload any) {
	c.in <- NewEvent(t, payload)
}

func (c *MockConn) Sent() []*Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	sent := make([]*Event, len(c.sent))
	copy(sent, c.sent)
	return sent
}

func (c *MockConn) eventsOfType(t string) []*Event {
	var matched []*Event
	for _, e := range c.Sent() {
		if e.Type == t {
			matched = append(matched, e)
		}
	}
	return matched
}

func (c *MockConn) countType(t string) int {
	return len(c.eventsOfType(t))
}

// MockAuthProvider resolves tokens from a fixed table. A non-zero delay
// simulates the provider's network round-trip; the delay deliberately
// ignores ctx so a verification can settle after the handshake deadline.
type MockAuthProvider struct {
	users map[string]*User
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (p *MockAuthProvider) Verify(_ context.Context, token string) (*User, error) {
	p.calls.Add(1)
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if p.err != nil {
		return nil, p.err
	}
	user, ok := p.users[token]
	if !ok {
		return nil, ErrTokenInvalid
	}
	return user, nil
}
