// Package cache provides the in-memory LRU used for memoised reads and a
// manager that expires entries in the background.
package cache

import (
	"log/slog"
	"sync"
	"time"

	applog "stacksight/internal/log"
)

// Cache is the contract LRUCache fulfils.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)

	// Purge removes every key and returns how many were dropped
	Purge() int

	Size() int
}

var _ Cache[int] = (*LRUCache[int])(nil)

// Cleaner is anything holding entries that can expire.
type Cleaner interface {
	CleanExpired() int
}

// Manager periodically sweeps expired entries from its registered caches.
type Manager struct {
	mu     sync.Mutex
	caches map[string]Cleaner
	logger *slog.Logger

	stop chan struct{}
	done chan struct{}
}

// NewManager creates a manager logging through slog.Default.
func NewManager() *Manager {
	return &Manager{
		caches: make(map[string]Cleaner),
		logger: slog.Default().With(applog.FieldComponent, applog.ComponentCache),
	}
}

// Register adds a cache under name, replacing any earlier one.
func (m *Manager) Register(name string, c Cleaner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches[name] = c
}

// CleanNow sweeps every registered cache once and returns the number of
// entries removed per cache name.
func (m *Manager) CleanNow() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := make(map[string]int, len(m.caches))
	for name, c := range m.caches {
		removed[name] = c.CleanExpired()
	}
	return removed
}

// StartCleanup sweeps every interval until Stop. Calling it twice is a no-op.
func (m *Manager) StartCleanup(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop != nil {
		return
	}
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.loop(interval, m.stop, m.done)
}

func (m *Manager) loop(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for name, n := range m.CleanNow() {
				if n > 0 {
					m.logger.Debug("Expired cache entries removed", "cache", name, "entries_removed", n)
				}
			}
		case <-stop:
			return
		}
	}
}

// Stop ends the cleanup goroutine and waits for it. Safe to call without
// StartCleanup and more than once.
func (m *Manager) Stop() {
	m.mu.Lock()
	stop, done := m.stop, m.done
	m.stop, m.done = nil, nil
	m.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}
