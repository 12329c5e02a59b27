package cache

import (
	"context"
	"sync"
	"time"

	"github.com/theseyan/418-nits-hacks/internal/domain"
	"github.com/theseyan/418-nits-hacks/internal/repository"
)

// MemoryCodeStore implements AuthCodeStore as an in-process expiring map for
// single-instance deployments. Take removes the entry under the store mutex,
// so concurrent takes of the same code have exactly one winner.
type MemoryCodeStore struct {
	mu      sync.Mutex
	entries map[string]memoryCodeEntry
}

type memoryCodeEntry struct {
	record    domain.AuthCodeRecord
	expiresAt time.Time
}

var _ repository.AuthCodeStore = (*MemoryCodeStore)(nil)

// NewMemoryCodeStore constructs an in-memory authorization-code store.
func NewMemoryCodeStore() *MemoryCodeStore {
	return &MemoryCodeStore{entries: make(map[string]memoryCodeEntry)}
}

func (s *MemoryCodeStore) Put(_ context.Context, record domain.AuthCodeRecord, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.entries[record.Code] = memoryCodeEntry{record: record, expiresAt: now.Add(ttl)}

	// Opportunistic sweep keeps the map from accumulating dead codes
	// without a background janitor.
	for code, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, code)
		}
	}
	return nil
}

func (s *MemoryCodeStore) Take(_ context.Context, code string) (domain.AuthCodeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[code]
	if !ok {
		return domain.AuthCodeRecord{}, repository.ErrCodeNotFound
	}
	delete(s.entries, code)

	if !time.Now().Before(entry.expiresAt) || entry.record.Expired(time.Now()) {
		return domain.AuthCodeRecord{}, repository.ErrCodeNotFound
	}
	return entry.record, nil
}
