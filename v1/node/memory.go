package node

import (
	"bytes"
	"context"
	"sync"
	"time"
)

type entry struct {
	token     []byte
	expiresAt time.Time
}

// Memory implements Adapter using process-local memory. It exists for tests,
// examples and embedded setups; all three primitives run under one mutex so
// the atomicity contract matches a real node. Expired entries are dropped
// lazily on access.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
}

// NewMemory returns an empty in-memory adapter.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]entry)}
}

// live returns the entry for resource if present and not expired, removing
// it when the TTL has passed. Callers must hold m.mu.
func (m *Memory) live(resource string) (entry, bool) {
	e, ok := m.entries[resource]
	if !ok {
		return entry{}, false
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		delete(m.entries, resource)
		return entry{}, false
	}
	return e, true
}

// Acquire implements Adapter.Acquire.
func (m *Memory) Acquire(ctx context.Context, resource string, token []byte, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live(resource); ok {
		return false, nil
	}
	e := entry{token: append([]byte(nil), token...)}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	m.entries[resource] = e
	return true, nil
}

// Extend implements Adapter.Extend.
func (m *Memory) Extend(ctx context.Context, resource string, token []byte, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(resource)
	if !ok || !bytes.Equal(e.token, token) {
		return false, nil
	}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	} else {
		e.expiresAt = time.Time{}
	}
	m.entries[resource] = e
	return true, nil
}

// Release implements Adapter.Release.
func (m *Memory) Release(ctx context.Context, resource string, token []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(resource)
	if !ok || !bytes.Equal(e.token, token) {
		return false, nil
	}
	delete(m.entries, resource)
	return true, nil
}

// Get reports the stored token for resource, if any. It is a direct
// node-level read used by tests and diagnostics.
func (m *Memory) Get(resource string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(resource)
	if !ok {
		return nil, false
	}
	return append([]byte(nil), e.token...), true
}
