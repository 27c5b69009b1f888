package store

import (
	"context"
	"sync"
)

// MemoryBackend keeps the collection document in process memory.
// Contents are lost on restart.
type MemoryBackend struct {
	mu   sync.RWMutex
	data []byte
	set  bool
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// Read implements Backend.Read. Returns a copy of the stored document.
func (m *MemoryBackend) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.set {
		return nil, ErrNotFound
	}
	return append([]byte(nil), m.data...), nil
}

// Write implements Backend.Write.
func (m *MemoryBackend) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	m.set = true
	return nil
}

// Ping implements Backend.Ping.
func (m *MemoryBackend) Ping() error { return nil }

// Name implements Backend.Name.
func (m *MemoryBackend) Name() string { return "in_memory" }
