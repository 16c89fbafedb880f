// Package ratelimit implements a fixed-window per-client request limiter.
package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Limiter counts requests per client key within a window.
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*window

	limit    int
	interval time.Duration
	now      func() time.Time

	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type window struct {
	start    time.Time
	requests int
}

// Config holds rate limiter configuration
type Config struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		CleanupInterval:   5 * time.Minute,
	}
}

// NewLimiter starts a limiter and its cleanup goroutine; call Stop to end it.
func NewLimiter(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = def.RequestsPerMinute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}

	l := &Limiter{
		clients:     make(map[string]*window),
		limit:       cfg.RequestsPerMinute,
		interval:    time.Minute,
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}
	go l.cleanupLoop(cfg.CleanupInterval)
	return l
}

// Allow records a request for key and reports whether it is within the limit.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.clients[key]
	if !ok || now.Sub(w.start) >= l.interval {
		l.clients[key] = &window{start: now, requests: 1}
		return true
	}
	w.requests++
	return w.requests <= l.limit
}

// RetryAfter returns the time left in key's current window.
func (l *Limiter) RetryAfter(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.clients[key]
	if !ok {
		return 0
	}
	left := l.interval - l.now().Sub(w.start)
	if left < 0 {
		return 0
	}
	return left
}

func (l *Limiter) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopCleanup:
			return
		}
	}
}

// cleanup drops windows that expired more than one interval ago.
func (l *Limiter) cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-2 * l.interval)
	removed := 0
	for key, w := range l.clients {
		if w.start.Before(cutoff) {
			delete(l.clients, key)
			removed++
		}
	}
	return removed
}

// ActiveClients returns the number of currently tracked clients
func (l *Limiter) ActiveClients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Stop gracefully shuts down the rate limiter cleanup goroutine
func (l *Limiter) Stop() {
	l.shutdownOnce.Do(func() {
		close(l.stopCleanup)
	})
}

// Middleware limits requests keyed by extractIP. onLimit renders the
// rejection; when nil a plain 429 is written.
func (l *Limiter) Middleware(extractIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := extractIP(r)
			if !l.Allow(key) {
				secs := int(l.RetryAfter(key).Round(time.Second) / time.Second)
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				if onLimit != nil {
					onLimit(w, r)
					return
				}
				http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
