package cache

import (
	"context"
	"fmt"
	"sync"

	"discotrack/internal/stats"

	"github.com/rs/zerolog/log"
)

// Coordinator serializes writes per issue key and skips writes whose record
// is unchanged, so concurrent batches and reruns leave the store consistent.
type Coordinator struct {
	store Store

	mu    sync.Mutex
	locks map[string]*keyLock
}

// keyLock is dropped from the map once no writer holds or waits for it.
type keyLock struct {
	mu   sync.Mutex
	refs int
}

func NewCoordinator(store Store) *Coordinator {
	return &Coordinator{store: store, locks: make(map[string]*keyLock)}
}

// Store exposes the underlying store.
func (c *Coordinator) Store() Store {
	return c.store
}

func (c *Coordinator) lock(key string) func() {
	c.mu.Lock()
	l, ok := c.locks[key]
	if !ok {
		l = &keyLock{}
		c.locks[key] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		c.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(c.locks, key)
		}
		c.mu.Unlock()
	}
}

// Upsert writes cycle when it differs from the stored record and reports
// whether a write happened. Failures wrap ErrCacheWrite.
func (c *Coordinator) Upsert(ctx context.Context, cycle stats.DiscoveryCycle) (bool, error) {
	unlock := c.lock(cycle.IssueKey)
	defer unlock()

	existing, err := c.store.Get(ctx, cycle.IssueKey)
	if err != nil {
		return false, fmt.Errorf("%w: read %s: %w", ErrCacheWrite, cycle.IssueKey, err)
	}
	if existing != nil && existing.Equal(cycle) {
		log.Trace().Str("key", cycle.IssueKey).Msg("Cycle unchanged, skipping write")
		return false, nil
	}

	if err := c.store.Put(ctx, cycle); err != nil {
		return false, fmt.Errorf("%w: write %s: %w", ErrCacheWrite, cycle.IssueKey, err)
	}
	log.Debug().Str("key", cycle.IssueKey).Str("classification", string(cycle.Classification)).Msg("Cycle stored")
	return true, nil
}

// Get returns the stored cycle or nil when absent.
func (c *Coordinator) Get(ctx context.Context, issueKey string) (*stats.DiscoveryCycle, error) {
	return c.store.Get(ctx, issueKey)
}

// List returns every stored cycle sorted by issue key.
func (c *Coordinator) List(ctx context.Context) ([]stats.DiscoveryCycle, error) {
	return c.store.List(ctx)
}

// Clear removes every stored cycle.
func (c *Coordinator) Clear(ctx context.Context) error {
	return c.store.Clear(ctx)
}

// Status describes the underlying store.
func (c *Coordinator) Status(ctx context.Context) (Status, error) {
	return c.store.Status(ctx)
}

// Close releases the underlying store.
func (c *Coordinator) Close() error {
	return c.store.Close()
}
