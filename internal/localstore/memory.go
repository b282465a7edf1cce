package localstore

import (
	"context"
	"sort"
	"sync"
)

// MemoryBackend keeps entries in process memory. A positive quota bounds the
// summed size of keys and values, mimicking browser storage limits.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string][]byte
	used    int
	quota   int
}

func NewMemoryBackend(quotaBytes int) *MemoryBackend {
	return &MemoryBackend{entries: make(map[string][]byte), quota: quotaBytes}
}

func (m *MemoryBackend) Read(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (m *MemoryBackend) Write(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	used := m.used
	if old, ok := m.entries[key]; ok {
		used -= len(key) + len(old)
	}
	used += len(key) + len(value)
	if m.quota > 0 && used > m.quota {
		return ErrQuotaExceeded
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	m.entries[key] = stored
	m.used = used
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.entries[key]; ok {
		m.used -= len(key) + len(old)
		delete(m.entries, key)
	}
	return nil
}

func (m *MemoryBackend) Keys(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.entries))
	for key := range m.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Used reports the bytes currently counted against the quota.
func (m *MemoryBackend) Used() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used
}
