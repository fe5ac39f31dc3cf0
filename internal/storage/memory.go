package storage

import (
	"context"
	"sync"
)

// Memory is a process-local Backend. State does not survive restarts.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemory() *Memory {
	return &Memory{values: map[string]string{}}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.values == nil {
		return "", false, errClosed
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Put(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		return errClosed
	}
	m.values[key] = value
	return nil
}

func (m *Memory) PutMany(_ context.Context, kv map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		return errClosed
	}
	for k, v := range kv {
		m.values[k] = v
	}
	return nil
}

func (m *Memory) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = nil
}
