package stats

import (
	"testing"

	"discotrack/internal/eventlog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActiveIssuesFor(t *testing.T) {
	p := testPipeline(t)
	assignee := func(from, to string, d float64) eventlog.ChangeEvent {
		return eventlog.ChangeEvent{Field: eventlog.FieldAssignee, FromValue: from, ToValue: to, Timestamp: day(d).UnixMicro()}
	}

	logs := []eventlog.IssueLog{
		{
			Snapshot: eventlog.IssueSnapshot{Key: "DISC-2"},
			Baseline: eventlog.Baseline{Timestamp: created.UnixMicro(), Status: "Discovery", Assignee: "Ana"},
		},
		{
			Snapshot: eventlog.IssueSnapshot{Key: "DISC-1"},
			Baseline: eventlog.Baseline{Timestamp: created.UnixMicro(), Status: "Inbox"},
			Events: []eventlog.ChangeEvent{
				status("Inbox", "Validation", day(1)),
				assignee("", "Ana", 1),
				assignee("Ana", "Bo", 5),
			},
		},
		{
			Snapshot: eventlog.IssueSnapshot{Key: "DISC-3"},
			Baseline: eventlog.Baseline{Timestamp: created.UnixMicro(), Status: "Parking Lot", Assignee: "Ana"},
		},
	}

	got := ActiveIssuesFor(logs, "Ana", day(2), p)
	require.Len(t, got, 2)
	assert.Equal(t, "DISC-1", got[0].IssueKey)
	assert.Equal(t, "Validation", got[0].Status)
	assert.Equal(t, "DISC-2", got[1].IssueKey)

	later := ActiveIssuesFor(logs, "Ana", day(6), p)
	require.Len(t, later, 1)
	assert.Equal(t, "DISC-2", later[0].IssueKey)

	assert.Empty(t, ActiveIssuesFor(logs, "Ana", day(-1), p))
}
