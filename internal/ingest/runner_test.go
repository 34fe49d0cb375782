package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"discotrack/internal/cache"
	"discotrack/internal/eventlog"
	"discotrack/internal/jira"
	"discotrack/internal/observability"
	"discotrack/internal/stats"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeJira serves a fixed set of issues; failures[key] makes the first n
// changelog calls for key fail. onChangelog sees the running call count.
type fakeJira struct {
	mu          sync.Mutex
	issues      []jira.IssueDTO
	histories   map[string][]jira.HistoryDTO
	failures    map[string]int
	calls       map[string]int
	total       int
	onChangelog func(total int)
	searchErr   error
}

func (f *fakeJira) SearchIssues(ctx context.Context, jql string, startAt, maxResults int) (*jira.SearchResponse, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	end := min(startAt+maxResults, len(f.issues))
	if startAt > end {
		startAt = end
	}
	return &jira.SearchResponse{StartAt: startAt, Total: len(f.issues), Issues: f.issues[startAt:end]}, nil
}

func (f *fakeJira) GetChangelog(ctx context.Context, key string, startAt, maxResults int) (*jira.ChangelogPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[key]++
	f.total++
	if f.onChangelog != nil {
		f.onChangelog(f.total)
	}
	if f.failures[key] > 0 {
		f.failures[key]--
		return nil, errors.New("connection reset")
	}
	h := f.histories[key]
	return &jira.ChangelogPage{StartAt: 0, Total: len(h), IsLast: true, Values: h}, nil
}

func issue(key, status string, labels ...string) jira.IssueDTO {
	dto := jira.IssueDTO{Key: key}
	dto.Fields.Status.Name = status
	dto.Fields.IssueType.Name = "Idea"
	dto.Fields.Created = "2024-07-01T09:00:00.000+0000"
	dto.Fields.Updated = "2024-07-20T09:00:00.000+0000"
	dto.Fields.Labels = labels
	return dto
}

func transition(created, from, to string) jira.HistoryDTO {
	return jira.HistoryDTO{Created: created, Items: []jira.ItemDTO{{Field: "status", FromString: from, ToString: to}}}
}

func newFixture(t *testing.T, n int) *fakeJira {
	t.Helper()
	f := &fakeJira{histories: map[string][]jira.HistoryDTO{}, failures: map[string]int{}}
	for i := 1; i <= n; i++ {
		key := fmt.Sprintf("DISC-%d", i)
		f.issues = append(f.issues, issue(key, "Build"))
		f.histories[key] = []jira.HistoryDTO{
			transition("2024-07-02T09:00:00.000+0000", "Parking Lot", "Discovery"),
			transition("2024-07-12T09:00:00.000+0000", "Discovery", "Build"),
		}
	}
	return f
}

func newRunner(t *testing.T, client jira.Client, store cache.Store, metrics *observability.Metrics, opts Options) *Runner {
	t.Helper()
	provider := eventlog.NewLogProvider(client, eventlog.NewEventStore(), t.TempDir(), eventlog.DefaultFieldMap())
	return NewRunner(provider, cache.NewCoordinator(store), stats.MustPipeline(stats.DefaultTaxonomy()), metrics, opts)
}

func TestRunner_SyncAndRerunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	client := newFixture(t, 7)
	store := cache.NewMemoryStore()
	metrics := observability.NewMetrics()
	r := newRunner(t, client, store, metrics, Options{Workers: 3, PageSize: 3, Full: true})

	report, err := r.Sync(ctx, "disc", "project = DISC")
	require.NoError(t, err)
	assert.Equal(t, 7, report.Processed)
	assert.Equal(t, 7, report.Changed)

	cycle, err := store.Get(ctx, "DISC-4")
	require.NoError(t, err)
	require.NotNil(t, cycle)
	assert.Equal(t, stats.BuildTransition, cycle.Classification)
	assert.Equal(t, 10, *cycle.CalendarDays)

	report, err = r.Sync(ctx, "disc", "project = DISC")
	require.NoError(t, err)
	assert.Equal(t, 7, report.Unchanged)
	assert.Equal(t, 0, report.Changed)

	series, err := testutil.GatherAndCount(metrics.Registry(), "discotrack_issues_processed_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series)
}

func TestRunner_RetriesThenSucceeds(t *testing.T) {
	client := newFixture(t, 2)
	client.failures["DISC-1"] = 2
	r := newRunner(t, client, cache.NewMemoryStore(), nil, Options{Workers: 2, FetchRetries: 2, RetryBackoff: time.Millisecond})

	report, err := r.Sync(context.Background(), "disc", "project = DISC")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Changed)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 3, client.calls["DISC-1"])
}

func TestRunner_ExhaustedRetriesAreReportedPerIssue(t *testing.T) {
	client := newFixture(t, 3)
	client.failures["DISC-2"] = 10
	store := cache.NewMemoryStore()
	r := newRunner(t, client, store, nil, Options{Workers: 2, FetchRetries: 1, RetryBackoff: time.Millisecond})

	report, err := r.Sync(context.Background(), "disc", "project = DISC")
	require.NoError(t, err)
	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 2, report.Changed)
	assert.Equal(t, 1, report.Failed)
	assert.Contains(t, report.Failures, "DISC-2")
	assert.Equal(t, 2, client.calls["DISC-2"])

	missing, err := store.Get(context.Background(), "DISC-2")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRunner_FailedFetchKeepsCachedRecord(t *testing.T) {
	ctx := context.Background()
	client := newFixture(t, 2)
	client.failures["DISC-2"] = 10
	store := cache.NewMemoryStore()

	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	prior := stats.DiscoveryCycle{
		IssueKey:       "DISC-2",
		CurrentStatus:  "Discovery",
		StartDate:      &start,
		Classification: stats.StillInDiscovery,
	}
	require.NoError(t, store.Put(ctx, prior))

	r := newRunner(t, client, store, nil, Options{Workers: 1, FetchRetries: 1, RetryBackoff: time.Millisecond})
	report, err := r.Sync(ctx, "disc", "project = DISC")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)

	kept, err := store.Get(ctx, "DISC-2")
	require.NoError(t, err)
	require.NotNil(t, kept)
	assert.True(t, prior.Equal(*kept), "cached record changed: %+v", kept)
}

func TestRunner_SkipsArchived(t *testing.T) {
	client := newFixture(t, 2)
	client.issues[1] = issue("DISC-2", "Build", "archived")

	r := newRunner(t, client, cache.NewMemoryStore(), nil, Options{Workers: 1})
	report, err := r.Sync(context.Background(), "disc", "project = DISC")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Changed)
	assert.Equal(t, 1, report.Skipped)
	assert.Zero(t, client.calls["DISC-2"])

	r = newRunner(t, client, cache.NewMemoryStore(), nil, Options{Workers: 1, IncludeArchived: true})
	report, err = r.Sync(context.Background(), "disc", "project = DISC")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Changed)
	assert.Zero(t, report.Skipped)
}

func TestRunner_SearchFailureAborts(t *testing.T) {
	client := newFixture(t, 1)
	client.searchErr = jira.ErrUnauthorized

	r := newRunner(t, client, cache.NewMemoryStore(), nil, Options{FetchRetries: 3, RetryBackoff: time.Millisecond})
	_, err := r.Sync(context.Background(), "disc", "project = DISC")
	assert.ErrorIs(t, err, ErrExternalFetch)
	assert.ErrorIs(t, err, jira.ErrUnauthorized)
}

func TestRunner_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newRunner(t, newFixture(t, 3), cache.NewMemoryStore(), nil, Options{})
	_, err := r.Sync(ctx, "disc", "project = DISC")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunner_CancelMidBatchKeepsFinishedUpserts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := newFixture(t, 5)
	client.onChangelog = func(total int) {
		if total == 2 {
			cancel()
		}
	}
	store := cache.NewMemoryStore()
	r := newRunner(t, client, store, nil, Options{Workers: 1})

	_, err := r.Sync(ctx, "disc", "project = DISC")
	assert.ErrorIs(t, err, context.Canceled)

	first, err := store.Get(context.Background(), "DISC-1")
	require.NoError(t, err)
	require.NotNil(t, first, "upsert finished before cancellation must survive")
	assert.Equal(t, stats.BuildTransition, first.Classification)

	last, err := store.Get(context.Background(), "DISC-5")
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestRunner_RecomputeUsesStoredLogs(t *testing.T) {
	ctx := context.Background()
	client := newFixture(t, 3)
	cacheDir := t.TempDir()
	pipeline := stats.MustPipeline(stats.DefaultTaxonomy())

	provider := eventlog.NewLogProvider(client, eventlog.NewEventStore(), cacheDir, eventlog.DefaultFieldMap())
	_, err := NewRunner(provider, cache.NewCoordinator(cache.NewMemoryStore()), pipeline, nil, Options{}).Sync(ctx, "disc", "project = DISC")
	require.NoError(t, err)

	// A fresh process sees only the on-disk logs; Jira must not be consulted.
	offline := &fakeJira{searchErr: errors.New("offline")}
	store := cache.NewMemoryStore()
	provider = eventlog.NewLogProvider(offline, eventlog.NewEventStore(), cacheDir, eventlog.DefaultFieldMap())
	report, err := NewRunner(provider, cache.NewCoordinator(store), pipeline, nil, Options{Workers: 2}).Recompute(ctx, "disc")
	require.NoError(t, err)
	assert.Equal(t, 3, report.Changed)
	assert.Empty(t, offline.calls)

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
