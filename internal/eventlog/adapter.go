package eventlog

import (
	"slices"
	"strings"

	"discotrack/internal/jira"

	"github.com/rs/zerolog/log"
)

// FieldMap names the Jira fields that back each tracked attribute.
// Values may be field IDs (customfield_10050) or display names.
type FieldMap struct {
	Status     string
	Health     string
	Assignee   string
	Complexity string
	Archived   string
}

// DefaultFieldMap returns the field mapping used when nothing is configured.
func DefaultFieldMap() FieldMap {
	return FieldMap{
		Status:   "status",
		Health:   "Health",
		Assignee: "assignee",
	}
}

func (m FieldMap) resolve(item jira.ItemDTO) (Field, bool) {
	switch {
	case item.Matches(m.Status):
		return FieldStatus, true
	case item.Matches(m.Health):
		return FieldHealth, true
	case item.Matches(m.Assignee):
		return FieldAssignee, true
	}
	return "", false
}

// TransformChangelog converts raw Jira history entries into ChangeEvents for
// the tracked fields. The result is ordered by timestamp; entries sharing a
// timestamp keep their changelog order. Entries with unparseable timestamps
// are skipped.
func TransformChangelog(issueKey string, histories []jira.HistoryDTO, fields FieldMap) []ChangeEvent {
	type stamped struct {
		ts      int64
		history jira.HistoryDTO
	}

	ordered := make([]stamped, 0, len(histories))
	for _, h := range histories {
		t, err := jira.ParseTime(h.Created)
		if err != nil {
			log.Warn().Err(err).Str("key", issueKey).Str("created", h.Created).Msg("Skipping changelog entry with invalid timestamp")
			continue
		}
		ordered = append(ordered, stamped{ts: t.UnixMicro(), history: h})
	}

	// Jira returns histories ascending on Cloud and descending on some DC versions.
	slices.SortStableFunc(ordered, func(a, b stamped) int {
		switch {
		case a.ts < b.ts:
			return -1
		case a.ts > b.ts:
			return 1
		}
		return 0
	})

	var events []ChangeEvent
	for _, s := range ordered {
		author := ""
		if s.history.Author != nil {
			author = s.history.Author.DisplayName
		}
		for _, item := range s.history.Items {
			field, ok := fields.resolve(item)
			if !ok {
				continue
			}
			events = append(events, ChangeEvent{
				IssueKey:  issueKey,
				Field:     field,
				FromValue: item.FromString,
				ToValue:   item.ToString,
				Timestamp: s.ts,
				Author:    author,
			})
		}
	}
	return events
}

// SnapshotFromDTO maps a search result to an IssueSnapshot.
func SnapshotFromDTO(dto jira.IssueDTO, fields FieldMap) IssueSnapshot {
	snap := IssueSnapshot{
		Key:        dto.Key,
		IssueType:  dto.Fields.IssueType.Name,
		Status:     dto.Fields.Status.Name,
		Health:     dto.Fields.FieldString(fields.Health),
		Complexity: dto.Fields.FieldString(fields.Complexity),
	}
	if dto.Fields.Assignee != nil {
		snap.Assignee = dto.Fields.Assignee.DisplayName
	}
	if fields.Archived != "" {
		snap.Archived = dto.Fields.FieldBool(fields.Archived)
	}
	if slices.ContainsFunc(dto.Fields.Labels, func(l string) bool { return strings.EqualFold(l, "archived") }) {
		snap.Archived = true
	}
	if t, err := jira.ParseTime(dto.Fields.Created); err == nil {
		snap.Created = t.UTC()
	}
	if t, err := jira.ParseTime(dto.Fields.Updated); err == nil {
		snap.Updated = t.UTC()
	}
	return snap
}

// DeriveBaseline computes the creation-time value of each tracked field.
// The "from" side of the earliest change to a field is what it held at
// creation; fields that never changed still hold their current value.
func DeriveBaseline(snap IssueSnapshot, events []ChangeEvent) Baseline {
	b := Baseline{
		Timestamp: snap.Created.UnixMicro(),
		Status:    snap.Status,
		Health:    snap.Health,
		Assignee:  snap.Assignee,
	}

	seen := make(map[Field]bool, 3)
	for _, e := range events {
		if seen[e.Field] {
			continue
		}
		seen[e.Field] = true
		switch e.Field {
		case FieldStatus:
			b.Status = e.FromValue
		case FieldHealth:
			b.Health = e.FromValue
		case FieldAssignee:
			b.Assignee = e.FromValue
		}
	}
	return b
}

// BuildIssueLog assembles the full IssueLog for one issue.
func BuildIssueLog(dto jira.IssueDTO, histories []jira.HistoryDTO, fields FieldMap) IssueLog {
	snap := SnapshotFromDTO(dto, fields)
	events := TransformChangelog(dto.Key, histories, fields)
	return IssueLog{
		Snapshot: snap,
		Baseline: DeriveBaseline(snap, events),
		Events:   events,
	}
}
