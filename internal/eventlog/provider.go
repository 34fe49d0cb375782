package eventlog

import (
	"context"
	"fmt"
	"time"

	"discotrack/internal/jira"

	"github.com/rs/zerolog/log"
)

// DefaultChangelogPageSize is the page size requested from the changelog endpoint.
const DefaultChangelogPageSize = 100

// LogProvider fetches issue histories from Jira and keeps them in an EventStore.
type LogProvider struct {
	client   jira.Client
	store    *EventStore
	cacheDir string
	fields   FieldMap
	location *time.Location
}

func NewLogProvider(client jira.Client, store *EventStore, cacheDir string, fields FieldMap) *LogProvider {
	return &LogProvider{
		client:   client,
		store:    store,
		cacheDir: cacheDir,
		fields:   fields,
	}
}

// SetLocation sets the timezone JQL date literals are written in. It must
// match the Jira user's profile timezone; nil means the local zone.
func (p *LogProvider) SetLocation(loc *time.Location) {
	p.location = loc
}

// Store exposes the underlying EventStore.
func (p *LogProvider) Store() *EventStore {
	return p.store
}

// Load hydrates the store from the on-disk cache of a source.
func (p *LogProvider) Load(sourceID string) error {
	if p.cacheDir == "" {
		return nil
	}
	return p.store.Load(p.cacheDir, sourceID)
}

// Persist writes the source's logs back to the on-disk cache.
func (p *LogProvider) Persist(sourceID string) error {
	if p.cacheDir == "" {
		return nil
	}
	return p.store.Save(p.cacheDir, sourceID)
}

// SyncJQL narrows jql to issues updated since the last sync of the source.
// A full sync, or a source never synced, uses jql unchanged.
func (p *LogProvider) SyncJQL(sourceID, jql string, full bool) string {
	latest := p.store.GetLatestUpdate(sourceID)
	if full || latest.IsZero() {
		log.Info().Str("source", sourceID).Msg("Performing full sync")
		return fmt.Sprintf("(%s) ORDER BY updated ASC", jql)
	}
	// Jira JQL only has minute resolution; re-reading the boundary minute is harmless.
	loc := p.location
	if loc == nil {
		loc = time.Local
	}
	tsStr := latest.In(loc).Format("2006-01-02 15:04")
	log.Info().Str("source", sourceID).Str("since", tsStr).Msg("Performing incremental sync")
	return fmt.Sprintf("(%s) AND updated >= \"%s\" ORDER BY updated ASC", jql, tsStr)
}

// Snapshot maps a search result using the provider's field mapping.
func (p *LogProvider) Snapshot(dto jira.IssueDTO) IssueSnapshot {
	return SnapshotFromDTO(dto, p.fields)
}

// SearchPage returns one page of issues matching jql.
func (p *LogProvider) SearchPage(ctx context.Context, jql string, startAt, maxResults int) (*jira.SearchResponse, error) {
	return p.client.SearchIssues(ctx, jql, startAt, maxResults)
}

// FetchHistories pages through the full changelog of an issue.
func (p *LogProvider) FetchHistories(ctx context.Context, issueKey string) ([]jira.HistoryDTO, error) {
	var all []jira.HistoryDTO
	startAt := 0
	for {
		page, err := p.client.GetChangelog(ctx, issueKey, startAt, DefaultChangelogPageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Values...)
		startAt += len(page.Values)

		if page.IsLast || len(page.Values) == 0 || (page.Total > 0 && startAt >= page.Total) {
			break
		}
	}
	log.Debug().Str("key", issueKey).Int("histories", len(all)).Msg("Fetched changelog")
	return all, nil
}

// Refresh re-reads the history of an issue and replaces its stored log.
func (p *LogProvider) Refresh(ctx context.Context, sourceID string, dto jira.IssueDTO) (IssueLog, error) {
	histories, err := p.FetchHistories(ctx, dto.Key)
	if err != nil {
		return IssueLog{}, err
	}
	l := BuildIssueLog(dto, histories, p.fields)
	p.store.Put(sourceID, l)
	return l, nil
}
