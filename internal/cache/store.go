// Package cache persists derived discovery cycles and coordinates concurrent upserts.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"discotrack/internal/stats"
)

// ErrCacheWrite wraps any failure to persist a derived record.
var ErrCacheWrite = errors.New("cache write failed")

// Backend names a storage backend.
type Backend string

const (
	SQLiteBackend     Backend = "sqlite"
	PostgreSQLBackend Backend = "postgresql"
	MySQLBackend      Backend = "mysql"
	MemoryBackend     Backend = "memory"
	NoneBackend       Backend = "none"
)

// ParseBackend validates a backend name.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case SQLiteBackend, PostgreSQLBackend, MySQLBackend, MemoryBackend, NoneBackend:
		return b, nil
	case "":
		return SQLiteBackend, nil
	case "postgres":
		return PostgreSQLBackend, nil
	}
	return "", fmt.Errorf("unsupported cache backend %q. Must be sqlite, postgresql, mysql, memory, or none", s)
}

// IsSQL reports whether the backend is backed by database/sql.
func (b Backend) IsSQL() bool {
	return b == SQLiteBackend || b == PostgreSQLBackend || b == MySQLBackend
}

// Store is a keyed store of DiscoveryCycle records.
type Store interface {
	// Get returns nil, nil when the key is absent.
	Get(ctx context.Context, issueKey string) (*stats.DiscoveryCycle, error)
	Put(ctx context.Context, cycle stats.DiscoveryCycle) error
	Delete(ctx context.Context, issueKey string) error
	// List returns every record sorted by issue key.
	List(ctx context.Context) ([]stats.DiscoveryCycle, error)
	Clear(ctx context.Context) error
	Status(ctx context.Context) (Status, error)
	Close() error
}

// Status describes the contents of a store.
type Status struct {
	Backend         string    `json:"backend"`
	Connected       bool      `json:"connected"`
	TotalEntries    int       `json:"totalEntries"`
	LastEntryTime   time.Time `json:"lastEntryTime,omitzero"`
	OldestEntryTime time.Time `json:"oldestEntryTime,omitzero"`
}

// Open creates the store for backend. SQL backends are migrated to the latest schema.
func Open(ctx context.Context, backend Backend, connStr string) (Store, error) {
	switch backend {
	case MemoryBackend:
		return NewMemoryStore(), nil
	case NoneBackend:
		return noneStore{}, nil
	case SQLiteBackend, PostgreSQLBackend, MySQLBackend:
		return NewSQLStore(ctx, backend, connStr)
	}
	return nil, fmt.Errorf("unsupported cache backend: %s", backend)
}

type noneStore struct{}

var _ Store = noneStore{} // Compile-time check

func (noneStore) Get(context.Context, string) (*stats.DiscoveryCycle, error) { return nil, nil }
func (noneStore) Put(context.Context, stats.DiscoveryCycle) error            { return nil }
func (noneStore) Delete(context.Context, string) error                       { return nil }
func (noneStore) List(context.Context) ([]stats.DiscoveryCycle, error)       { return nil, nil }
func (noneStore) Clear(context.Context) error                                { return nil }
func (noneStore) Close() error                                               { return nil }
func (noneStore) Status(context.Context) (Status, error) {
	return Status{Backend: string(NoneBackend)}, nil
}
