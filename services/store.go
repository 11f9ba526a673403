package services

import (
	"context"
	"sync"
)

// AttestationStore persists an audit record per issued attestation. Records
// are immutable once written; the store exists so auditors can re-verify
// past settlements.
type AttestationStore interface {
	// Save persists one audit record.
	Save(ctx context.Context, record *AuditRecord) error
	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]*AuditRecord, error)
	// Close releases the store's resources.
	Close() error
}

const inMemoryStoreCapacity = 1000

// InMemoryStore implements AttestationStore without a database. Used in
// tests and single-node dev deployments; keeps only the most recent records.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []*AuditRecord
}

// NewInMemoryStore creates an in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Save appends a record, evicting the oldest once at capacity.
func (s *InMemoryStore) Save(ctx context.Context, record *AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, record)
	if len(s.records) > inMemoryStoreCapacity {
		s.records = s.records[len(s.records)-inMemoryStoreCapacity:]
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *InMemoryStore) Recent(ctx context.Context, limit int) ([]*AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.records) {
		limit = len(s.records)
	}

	out := make([]*AuditRecord, 0, limit)
	for i := len(s.records) - 1; i >= len(s.records)-limit; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
