package vault

import (
	"context"
	"sync"
	"time"
)

// Memory is the in-process Vault used when no Redis client is supplied.
// Expired records are dropped lazily on read.
type Memory struct {
	mu      sync.Mutex
	records map[string]Record
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]Record)}
}

func (m *Memory) Put(_ context.Context, session string, rec Record, _ time.Duration) error {
	m.mu.Lock()
	m.records[session] = rec
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(_ context.Context, session string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[session]
	if !ok {
		return Record{}, ErrMiss
	}
	if time.Now().Unix() > rec.ExpiresAt {
		delete(m.records, session)
		return Record{}, ErrExpired
	}
	return rec, nil
}

func (m *Memory) Delete(_ context.Context, session string) error {
	m.mu.Lock()
	delete(m.records, session)
	m.mu.Unlock()
	return nil
}
