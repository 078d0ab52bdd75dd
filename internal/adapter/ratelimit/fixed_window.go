// Package ratelimit provides a single-process fixed-window request limiter.
package ratelimit

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"resumerag/internal/port"
)

const (
	DefaultWindow          = 60 * time.Second
	DefaultMaxRequests     = 10
	DefaultCleanupInterval = 5 * time.Minute
)

var _ port.RateLimiter = (*FixedWindow)(nil)

// Decision is the outcome of one check.
type Decision struct {
	Allowed bool
	Count   int
	ResetAt time.Time
}

type record struct {
	count   int
	resetAt time.Time
}

// FixedWindow counts requests per client within a fixed window.
// One mutex guards the record map so check-then-increment and the sweep
// never interleave.
type FixedWindow struct {
	mu          sync.Mutex
	records     map[string]*record
	window      time.Duration
	maxRequests int
	now         func() time.Time
	log         *slog.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// Option configures a FixedWindow.
type Option func(*FixedWindow)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *FixedWindow) { l.now = now }
}

func WithLogger(log *slog.Logger) Option {
	return func(l *FixedWindow) {
		if log != nil {
			l.log = log
		}
	}
}

func New(window time.Duration, maxRequests int, opts ...Option) *FixedWindow {
	if window <= 0 {
		window = DefaultWindow
	}
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}
	l := &FixedWindow{
		records:     make(map[string]*record),
		window:      window,
		maxRequests: maxRequests,
		now:         time.Now,
		log:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check records one request for clientID if the window has room.
func (l *FixedWindow) Check(clientID string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	rec, ok := l.records[clientID]
	if !ok || now.After(rec.resetAt) {
		rec = &record{resetAt: now.Add(l.window)}
		l.records[clientID] = rec
	}

	l.log.Debug("rate limit check",
		"client", clientID,
		"count", rec.count,
		"reset_at", rec.resetAt.Format(time.RFC3339))

	if rec.count >= l.maxRequests {
		l.log.Warn("rate limit exceeded", "client", clientID, "count", rec.count)
		return Decision{Allowed: false, Count: rec.count, ResetAt: rec.resetAt}
	}

	rec.count++
	return Decision{Allowed: true, Count: rec.count, ResetAt: rec.resetAt}
}

// Allow implements port.RateLimiter.
func (l *FixedWindow) Allow(clientID string) (bool, time.Time) {
	d := l.Check(clientID)
	return d.Allowed, d.ResetAt
}

// Sweep deletes records whose window has elapsed and returns how many.
func (l *FixedWindow) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for id, rec := range l.records {
		if now.After(rec.resetAt) {
			delete(l.records, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked clients.
func (l *FixedWindow) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Start runs Sweep every interval until Close. Calling Start twice is a no-op.
func (l *FixedWindow) Start(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}

	l.mu.Lock()
	if l.stop != nil {
		l.mu.Unlock()
		return
	}
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	stop, done := l.stop, l.done
	l.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if n := l.Sweep(); n > 0 {
					l.log.Debug("rate limit sweep", "removed", n)
				}
			}
		}
	}()
}

// Close stops the sweeper and waits for it to exit.
func (l *FixedWindow) Close() error {
	l.mu.Lock()
	stop, done := l.stop, l.done
	l.mu.Unlock()
	if stop == nil {
		return nil
	}
	l.stopOnce.Do(func() { close(stop) })
	<-done
	return nil
}
