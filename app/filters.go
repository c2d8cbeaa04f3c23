package chathub

import (
	"errors"
	"html"
	"sync"
	"time"

	"github.com/putto11262002/chathub/core"
)

// Filters builds the configured filter stages as a server extension. Order
// matters: escaping runs before anything inspects the body.
func Filters(cfg FiltersConfig) core.Extension {
	return func(s *core.Server) {
		if cfg.Escape.Enabled {
			s.AddMessageMiddleware(EscapeFilter{})
		}
		if cfg.RateLimit.Enabled {
			s.AddMessageMiddleware(NewRateLimitFilter(cfg.RateLimit.Burst, cfg.RateLimit.Interval))
		}
		if cfg.Spam.Enabled {
			s.AddMessageMiddleware(NewSpamFilter(cfg.Spam.Threshold))
		}
	}
}

// EscapeFilter HTML-escapes message bodies before they reach fan-out.
type EscapeFilter struct{}

func (EscapeFilter) Handle(m *core.Message) (*core.Message, error) {
	if escaped := html.EscapeString(m.Body); escaped != m.Body {
		return m.WithBody(escaped), nil
	}
	return m, nil
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// RateLimitFilter rejects messages from senders exceeding a per-sender token
// bucket of burst messages per interval.
type RateLimitFilter struct {
	burst    int
	interval time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
}

func NewRateLimitFilter(burst int, interval time.Duration) *RateLimitFilter {
	if burst <= 0 {
		burst = 1
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &RateLimitFilter{
		burst:    burst,
		interval: interval,
		buckets:  make(map[string]*bucket),
	}
}

func (f *RateLimitFilter) allow(uid string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, ok := f.buckets[uid]
	if !ok {
		b = &bucket{tokens: float64(f.burst), lastCheck: time.Now()}
		f.buckets[uid] = b
	}

	now := time.Now()
	elapsed := now.Sub(b.lastCheck).Seconds()
	b.lastCheck = now

	if elapsed > 0 {
		b.tokens += elapsed * float64(f.burst) / f.interval.Seconds()
		if b.tokens > float64(f.burst) {
			b.tokens = float64(f.burst)
		}
	}

	if b.tokens < 1 {
		return false
	}

	b.tokens--
	return true
}

func (f *RateLimitFilter) Handle(m *core.Message) (*core.Message, error) {
	if !f.allow(m.Sender.UID) {
		return nil, errors.New("rate limit exceeded")
	}
	return m, nil
}

type repeat struct {
	body  string
	count int
}

// SpamFilter rejects a sender repeating the same body more than threshold
// times in a row. A different body resets the counter.
type SpamFilter struct {
	threshold int

	mu   sync.Mutex
	last map[string]*repeat
}

func NewSpamFilter(threshold int) *SpamFilter {
	if threshold <= 0 {
		threshold = 3
	}
	return &SpamFilter{
		threshold: threshold,
		last:      make(map[string]*repeat),
	}
}

func (f *SpamFilter) Handle(m *core.Message) (*core.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, ok := f.last[m.Sender.UID]
	if !ok || r.body != m.Body {
		f.last[m.Sender.UID] = &repeat{body: m.Body, count: 1}
		return m, nil
	}
	r.count++
	if r.count > f.threshold {
		return nil, errors.New("message looks like spam")
	}
	return m, nil
}
