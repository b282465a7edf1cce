// Package latch centralizes the "already in progress" guards around async
// sequences. A held latch makes a second caller a no-op; nothing is queued.
package latch

import (
	"sync"

	"github.com/angelmondragon/packfinderz-cartsync/pkg/metrics"
)

// Name identifies a guarded resource.
type Name string

const (
	CartLoading        Name = "cart"
	WishlistLoading    Name = "wishlist"
	MergeInProgress    Name = "merge"
	BackendSyncRunning Name = "backendSync"
)

// Set holds the named latches.
type Set struct {
	mu      sync.Mutex
	held    map[Name]bool
	metrics *metrics.SyncMetrics
}

// New builds an empty latch set. metrics may be nil.
func New(m *metrics.SyncMetrics) *Set {
	return &Set{held: make(map[Name]bool), metrics: m}
}

// TryAcquire takes the latch and reports true, or reports false when it is already held.
func (s *Set) TryAcquire(name Name) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held[name] {
		s.metrics.IncLatchContention(string(name))
		return false
	}
	s.held[name] = true
	return true
}

// Release frees the latch. Releasing a free latch is a no-op.
func (s *Set) Release(name Name) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.held, name)
}

// Held reports whether the latch is currently taken.
func (s *Set) Held(name Name) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.held[name]
}

// Reset frees every latch.
func (s *Set) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.held = make(map[Name]bool)
}
