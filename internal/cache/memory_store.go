package cache

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"discotrack/internal/stats"
)

type memoryEntry struct {
	record    []byte
	updatedAt time.Time
}

// MemoryStore keeps encoded records in a map. Records are stored encoded so
// callers never share slices or pointers with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

var _ Store = &MemoryStore{} // Compile-time check

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Get(_ context.Context, issueKey string) (*stats.DiscoveryCycle, error) {
	s.mu.RLock()
	e, ok := s.entries[issueKey]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return decodeRecord(e.record)
}

func (s *MemoryStore) Put(_ context.Context, cycle stats.DiscoveryCycle) error {
	b, err := json.Marshal(cycle)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.entries[cycle.IssueKey] = memoryEntry{record: b, updatedAt: time.Now()}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, issueKey string) error {
	s.mu.Lock()
	delete(s.entries, issueKey)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]stats.DiscoveryCycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]stats.DiscoveryCycle, 0, len(s.entries))
	for _, e := range s.entries {
		c, err := decodeRecord(e.record)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssueKey < out[j].IssueKey })
	return out, nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.entries = make(map[string]memoryEntry)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Status(_ context.Context) (Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{Backend: string(MemoryBackend), Connected: true, TotalEntries: len(s.entries)}
	for _, e := range s.entries {
		if e.updatedAt.After(st.LastEntryTime) {
			st.LastEntryTime = e.updatedAt
		}
		if st.OldestEntryTime.IsZero() || e.updatedAt.Before(st.OldestEntryTime) {
			st.OldestEntryTime = e.updatedAt
		}
	}
	return st, nil
}

func (s *MemoryStore) Close() error { return nil }

func decodeRecord(b []byte) (*stats.DiscoveryCycle, error) {
	var c stats.DiscoveryCycle
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
