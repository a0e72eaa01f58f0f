package repository

import (
	"context"
	"sync"
)

// MemoryRecordStore keeps records in process memory. Intended for tests and
// for running without any durable backend.
type MemoryRecordStore struct {
	mu      sync.Mutex
	records map[string][]byte
}

func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{records: make(map[string][]byte)}
}

func (s *MemoryRecordStore) Load(_ context.Context, name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.records[name]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (s *MemoryRecordStore) Save(_ context.Context, name string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := make([]byte, len(body))
	copy(b, body)
	s.records[name] = b
	return nil
}

func (s *MemoryRecordStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, name)
	return nil
}
