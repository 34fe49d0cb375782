package eventlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// EventStore provides thread-safe storage of issue logs, partitioned by source
// (a named JQL scope). Each issue's log is replaced wholesale on refresh.
type EventStore struct {
	mu   sync.RWMutex
	logs map[string]map[string]IssueLog
}

// NewEventStore creates a new empty EventStore.
func NewEventStore() *EventStore {
	return &EventStore{
		logs: make(map[string]map[string]IssueLog),
	}
}

// Put stores (or replaces) the log of a single issue.
func (s *EventStore) Put(sourceID string, l IssueLog) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.logs[sourceID]
	if !ok {
		m = make(map[string]IssueLog)
		s.logs[sourceID] = m
	}
	m[l.Key()] = l
}

// Get returns the log of one issue.
func (s *EventStore) Get(sourceID, issueKey string) (IssueLog, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.logs[sourceID][issueKey]
	return l, ok
}

// Find looks an issue up across every source.
func (s *EventStore) Find(issueKey string) (string, IssueLog, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sources := make([]string, 0, len(s.logs))
	for id := range s.logs {
		sources = append(sources, id)
	}
	sort.Strings(sources)
	for _, id := range sources {
		if l, ok := s.logs[id][issueKey]; ok {
			return id, l, true
		}
	}
	return "", IssueLog{}, false
}

// Logs returns every issue log for a source, sorted by issue key.
func (s *EventStore) Logs(sourceID string) []IssueLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := s.logs[sourceID]
	out := make([]IssueLog, 0, len(m))
	for _, l := range m {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Count returns the number of issues stored for a source.
func (s *EventStore) Count(sourceID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.logs[sourceID])
}

// Clear drops every log of a source.
func (s *EventStore) Clear(sourceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.logs, sourceID)
}

// GetLatestUpdate returns the most recent snapshot update time for a source.
func (s *EventStore) GetLatestUpdate(sourceID string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest time.Time
	for _, l := range s.logs[sourceID] {
		if l.Snapshot.Updated.After(latest) {
			latest = l.Snapshot.Updated
		}
	}
	return latest
}

func cachePath(cacheDir, sourceID string) string {
	return filepath.Join(cacheDir, fmt.Sprintf("%s.jsonl", sourceID))
}

// Load reads issue logs from a JSONL cache file for the given source.
func (s *EventStore) Load(cacheDir string, sourceID string) error {
	file, err := os.Open(cachePath(cacheDir, sourceID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil // No cache yet, not an error
		}
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer file.Close()

	count := 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var l IssueLog
		if err := json.Unmarshal(scanner.Bytes(), &l); err != nil {
			log.Warn().Err(err).Str("source", sourceID).Msg("Skipping invalid JSON line in cache")
			continue
		}
		if l.Key() == "" {
			continue
		}
		s.Put(sourceID, l)
		count++
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading cache: %w", err)
	}

	log.Info().Str("source", sourceID).Int("count", count).Msg("Loaded issue logs from cache")
	return nil
}

// Save persists the logs of the given source to a JSONL cache file.
func (s *EventStore) Save(cacheDir string, sourceID string) error {
	logData := s.Logs(sourceID)
	if len(logData) == 0 {
		return nil
	}

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}

	path := cachePath(cacheDir, sourceID)
	tmpPath := path + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)

	for _, l := range logData {
		if err := encoder.Encode(l); err != nil {
			file.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("failed to encode issue log: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to flush writer: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename cache file: %w", err)
	}

	log.Info().Str("source", sourceID).Int("count", len(logData)).Msg("Issue logs saved to cache")
	return nil
}

// DeleteCache removes the JSONL cache file of a source.
func DeleteCache(cacheDir, sourceID string) error {
	err := os.Remove(cachePath(cacheDir, sourceID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
