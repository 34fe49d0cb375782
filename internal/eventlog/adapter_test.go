package eventlog

import (
	"encoding/json"
	"testing"

	"discotrack/internal/jira"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeIssue(t *testing.T, raw string) jira.IssueDTO {
	t.Helper()
	var dto jira.IssueDTO
	require.NoError(t, json.Unmarshal([]byte(raw), &dto))
	return dto
}

func TestTransformChangelog_OrdersAndFilters(t *testing.T) {
	histories := []jira.HistoryDTO{
		{
			Created: "2024-01-03T10:00:00.000+0000",
			Author:  &jira.UserDTO{DisplayName: "Ana"},
			Items: []jira.ItemDTO{
				{Field: "status", FromString: "Discovery", ToString: "Build"},
				{Field: "Health", FieldID: "customfield_1", FromString: "On hold", ToString: "On track"},
			},
		},
		{
			Created: "2024-01-02T10:00:00.000+0000",
			Items: []jira.ItemDTO{
				{Field: "labels", FromString: "", ToString: "x"},
				{Field: "assignee", FromString: "", ToString: "Bo"},
			},
		},
		{Created: "garbage", Items: []jira.ItemDTO{{Field: "status", ToString: "Live"}}},
	}

	fields := DefaultFieldMap()
	fields.Health = "customfield_1"
	events := TransformChangelog("DISC-1", histories, fields)

	require.Len(t, events, 3)
	assert.Equal(t, FieldAssignee, events[0].Field, "earliest event is the assignee change")
	assert.Equal(t, "Bo", events[0].ToValue)
	assert.Equal(t, []Field{FieldStatus, FieldHealth}, []Field{events[1].Field, events[2].Field}, "same-timestamp items keep changelog order")
	assert.Equal(t, "Ana", events[1].Author)
	assert.Greater(t, events[1].Timestamp, events[0].Timestamp)
}

func TestBuildIssueLog_Baseline(t *testing.T) {
	dto := decodeIssue(t, `{"key":"DISC-4","fields":{
		"issuetype":{"name":"Idea"},
		"status":{"name":"Build"},
		"assignee":{"displayName":"Bo"},
		"created":"2024-01-01T09:00:00.000+0000",
		"updated":"2024-01-05T09:00:00.000+0000",
		"customfield_1":{"value":"On track"},
		"customfield_2":{"value":"M"},
		"labels":["Archived"]
	}}`)
	histories := []jira.HistoryDTO{{
		Created: "2024-01-02T09:00:00.000+0000",
		Items:   []jira.ItemDTO{{Field: "status", FromString: "Discovery", ToString: "Build"}},
	}}

	fields := DefaultFieldMap()
	fields.Health = "customfield_1"
	fields.Complexity = "customfield_2"
	l := BuildIssueLog(dto, histories, fields)

	assert.Equal(t, "Discovery", l.Baseline.Status, "baseline status comes from the earliest event")
	assert.Equal(t, "Bo", l.Baseline.Assignee)
	assert.Equal(t, "On track", l.Baseline.Health)
	assert.Equal(t, l.Snapshot.Created.UnixMicro(), l.Baseline.Timestamp)
	assert.Equal(t, "M", l.Snapshot.Complexity)
	assert.True(t, l.Snapshot.Archived, "archived label marks the snapshot archived")
}
