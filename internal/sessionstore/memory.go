package sessionstore

import (
	"context"
	"sync"
	"time"
)

type memoryValue struct {
	value     string
	updatedAt time.Time
}

// Memory is an in-process Store.
type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string]memoryValue
	now  func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]map[string]memoryValue), now: time.Now}
}

func (m *Memory) Get(_ context.Context, namespace, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[namespace][key]
	return v.value, ok, nil
}

func (m *Memory) Set(_ context.Context, namespace, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ns, ok := m.data[namespace]
	if !ok {
		ns = make(map[string]memoryValue)
		m.data[namespace] = ns
	}
	ns[key] = memoryValue{value: value, updatedAt: m.now()}
	return nil
}

func (m *Memory) Delete(_ context.Context, namespace string, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(keys) == 0 {
		delete(m.data, namespace)
		return nil
	}
	ns := m.data[namespace]
	for _, k := range keys {
		delete(ns, k)
	}
	if len(ns) == 0 {
		delete(m.data, namespace)
	}
	return nil
}

// Prune removes values not written for olderThan and returns how many were dropped.
func (m *Memory) Prune(olderThan time.Duration) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-olderThan)
	var n int64
	for namespace, ns := range m.data {
		for k, v := range ns {
			if v.updatedAt.Before(cutoff) {
				delete(ns, k)
				n++
			}
		}
		if len(ns) == 0 {
			delete(m.data, namespace)
		}
	}
	return n
}

// Len returns the number of keys held in namespace.
func (m *Memory) Len(namespace string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data[namespace])
}
