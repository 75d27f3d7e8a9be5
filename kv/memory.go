package kv

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps everything in a map, used by tests and the default dev setup.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]Record
	closed bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]Record)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return Record{}, false, ErrClosed
	}
	rec, ok := m.data[key]
	if !ok {
		return Record{}, false, nil
	}
	return cloneRecord(rec), true, nil
}

func (m *MemoryStore) Commit(_ context.Context, b *Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for _, rd := range b.Reads {
		rec, ok := m.data[rd.Key]
		if !rd.holds(rec, ok) {
			return fmt.Errorf("%w: %q", ErrConflict, rd.Key)
		}
	}
	for _, op := range b.Ops {
		if op.Delete {
			delete(m.data, op.Key)
			continue
		}
		m.data[op.Key] = cloneRecord(op.Record)
	}
	return nil
}

// Len is the number of stored keys, live or not.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func cloneRecord(r Record) Record {
	v := make([]byte, len(r.Value))
	copy(v, r.Value)
	return Record{Value: v, ExpiresAt: r.ExpiresAt}
}
