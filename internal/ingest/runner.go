// Package ingest drives batch synchronisation: it pages issues from Jira,
// refreshes their logs, derives discovery cycles and upserts them.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"discotrack/internal/cache"
	"discotrack/internal/eventlog"
	"discotrack/internal/jira"
	"discotrack/internal/observability"
	"discotrack/internal/stats"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ErrExternalFetch wraps a Jira fetch that still failed after all retries.
var ErrExternalFetch = errors.New("external fetch failed")

// Outcome labels, shared with the issues_processed_total metric.
const (
	OutcomeChanged   = "changed"
	OutcomeUnchanged = "unchanged"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// Options tunes a Runner.
type Options struct {
	Workers         int
	FetchRetries    int
	RetryBackoff    time.Duration
	PageSize        int
	IncludeArchived bool
	// Full ignores the last sync time and re-reads every issue.
	Full bool
}

// BatchReport summarizes one run. Processed counts every issue that reached
// a final outcome.
type BatchReport struct {
	Processed int               `json:"processed"`
	Changed   int               `json:"changed"`
	Unchanged int               `json:"unchanged"`
	Skipped   int               `json:"skipped"`
	Failed    int               `json:"failed"`
	Failures  map[string]string `json:"failures,omitempty"`
	Duration  time.Duration     `json:"duration"`
}

type recorder struct {
	mu      sync.Mutex
	report  BatchReport
	metrics *observability.Metrics
}

func (r *recorder) record(key, outcome string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.report.Processed++
	switch outcome {
	case OutcomeChanged:
		r.report.Changed++
	case OutcomeUnchanged:
		r.report.Unchanged++
	case OutcomeSkipped:
		r.report.Skipped++
	case OutcomeFailed:
		r.report.Failed++
		if r.report.Failures == nil {
			r.report.Failures = make(map[string]string)
		}
		r.report.Failures[key] = err.Error()
	}
	r.metrics.IssueProcessed(outcome)
}

// Runner executes sync and recompute batches with bounded concurrency.
type Runner struct {
	provider *eventlog.LogProvider
	coord    *cache.Coordinator
	pipeline *stats.Pipeline
	metrics  *observability.Metrics
	opts     Options
}

// NewRunner wires a Runner. metrics may be nil.
func NewRunner(provider *eventlog.LogProvider, coord *cache.Coordinator, pipeline *stats.Pipeline, metrics *observability.Metrics, opts Options) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = 100
	}
	return &Runner{provider: provider, coord: coord, pipeline: pipeline, metrics: metrics, opts: opts}
}

// Sync pages every issue matching jql, refreshes its log from Jira and upserts
// its derived cycle. Per-issue failures are reported, not returned; the error
// is non-nil only when listing issues failed or ctx was cancelled. Work
// completed before such an error is kept.
func (r *Runner) Sync(ctx context.Context, sourceID, jql string) (BatchReport, error) {
	start := time.Now()
	if err := r.provider.Load(sourceID); err != nil {
		log.Warn().Err(err).Str("source", sourceID).Msg("Failed to load issue log cache, continuing with empty store")
	}

	query := r.provider.SyncJQL(sourceID, jql, r.opts.Full)
	rec := &recorder{metrics: r.metrics}

	var g errgroup.Group
	g.SetLimit(r.opts.Workers)

	var runErr error
	startAt := 0
	for runErr == nil {
		var page *jira.SearchResponse
		err := r.retry(ctx, "search", func(ctx context.Context) error {
			var err error
			page, err = r.provider.SearchPage(ctx, query, startAt, r.opts.PageSize)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				runErr = ctx.Err()
			} else {
				runErr = fmt.Errorf("%w: search at offset %d: %w", ErrExternalFetch, startAt, err)
			}
			break
		}

		for _, dto := range page.Issues {
			if ctx.Err() != nil {
				runErr = ctx.Err()
				break
			}
			g.Go(func() error {
				r.syncIssue(ctx, sourceID, dto, rec)
				return nil
			})
		}

		startAt += len(page.Issues)
		if len(page.Issues) == 0 || startAt >= page.Total {
			break
		}
	}
	_ = g.Wait()

	if err := r.provider.Persist(sourceID); err != nil {
		log.Warn().Err(err).Str("source", sourceID).Msg("Failed to persist issue log cache")
	}
	return r.finish(rec, start, "sync", runErr)
}

// Recompute re-derives every stored log of sourceID without contacting Jira.
func (r *Runner) Recompute(ctx context.Context, sourceID string) (BatchReport, error) {
	start := time.Now()
	if err := r.provider.Load(sourceID); err != nil {
		return BatchReport{}, fmt.Errorf("load issue logs: %w", err)
	}
	rec := &recorder{metrics: r.metrics}

	var g errgroup.Group
	g.SetLimit(r.opts.Workers)

	var runErr error
	for _, l := range r.provider.Store().Logs(sourceID) {
		if ctx.Err() != nil {
			runErr = ctx.Err()
			break
		}
		g.Go(func() error {
			if l.Snapshot.Archived && !r.opts.IncludeArchived {
				rec.record(l.Key(), OutcomeSkipped, nil)
				return nil
			}
			r.deriveAndStore(ctx, l, rec)
			return nil
		})
	}
	_ = g.Wait()

	return r.finish(rec, start, "recompute", runErr)
}

func (r *Runner) finish(rec *recorder, start time.Time, kind string, runErr error) (BatchReport, error) {
	report := rec.report
	report.Duration = time.Since(start)
	r.metrics.ObserveBatch(report.Duration)

	log.Info().
		Str("batch", kind).
		Int("processed", report.Processed).
		Int("changed", report.Changed).
		Int("unchanged", report.Unchanged).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Dur("duration", report.Duration).
		Msg("Batch complete")
	return report, runErr
}

func (r *Runner) syncIssue(ctx context.Context, sourceID string, dto jira.IssueDTO, rec *recorder) {
	if !r.opts.IncludeArchived && r.provider.Snapshot(dto).Archived {
		log.Debug().Str("key", dto.Key).Msg("Skipping archived issue")
		rec.record(dto.Key, OutcomeSkipped, nil)
		return
	}

	var l eventlog.IssueLog
	err := r.retry(ctx, dto.Key, func(ctx context.Context) error {
		var err error
		l, err = r.provider.Refresh(ctx, sourceID, dto)
		return err
	})
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrExternalFetch, dto.Key, err)
		log.Error().Err(err).Str("key", dto.Key).Msg("Giving up on issue")
		rec.record(dto.Key, OutcomeFailed, err)
		return
	}
	r.deriveAndStore(ctx, l, rec)
}

func (r *Runner) deriveAndStore(ctx context.Context, l eventlog.IssueLog, rec *recorder) {
	cycle := stats.DeriveCycle(l, r.pipeline)
	changed, err := r.coord.Upsert(ctx, cycle)
	if err != nil {
		log.Error().Err(err).Str("key", l.Key()).Msg("Failed to store cycle")
		r.metrics.CacheUpsert(OutcomeFailed)
		rec.record(l.Key(), OutcomeFailed, err)
		return
	}
	if changed {
		r.metrics.CacheUpsert(OutcomeChanged)
		rec.record(l.Key(), OutcomeChanged, nil)
		return
	}
	r.metrics.CacheUpsert(OutcomeUnchanged)
	rec.record(l.Key(), OutcomeUnchanged, nil)
}

// retry runs fn up to FetchRetries+1 times with linear backoff. Auth and
// not-found errors are not retried.
func (r *Runner) retry(ctx context.Context, what string, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt <= r.opts.FetchRetries; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, jira.ErrUnauthorized) || errors.Is(err, jira.ErrNotFound) {
			return err
		}
		if attempt == r.opts.FetchRetries {
			break
		}

		r.metrics.FetchRetried()
		wait := r.opts.RetryBackoff * time.Duration(attempt+1)
		log.Warn().Err(err).Str("target", what).Int("attempt", attempt+1).Dur("wait", wait).Msg("Fetch failed, retrying")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
