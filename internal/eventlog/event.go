package eventlog

import "time"

// Field identifies which tracked attribute a ChangeEvent modifies.
type Field string

const (
	// FieldStatus is the workflow status.
	FieldStatus Field = "status"
	// FieldHealth is the health indicator (e.g. "On track", "On hold").
	FieldHealth Field = "health"
	// FieldAssignee is the assignee display name.
	FieldAssignee Field = "assignee"
)

// ChangeEvent represents a single field change in an issue's history.
// It is the primary unit of the event-sourced log.
type ChangeEvent struct {
	// IssueKey is the Jira key (e.g., DISC-123).
	IssueKey string `json:"issueKey"`
	// Field is the tracked attribute that changed.
	Field Field `json:"field"`
	// FromValue is the value before the change ("" when unset).
	FromValue string `json:"from,omitempty"`
	// ToValue is the value after the change ("" when cleared).
	ToValue string `json:"to,omitempty"`
	// Timestamp is the physical time the change occurred in Jira (Unix microseconds).
	Timestamp int64 `json:"ts"`
	// Author is the display name of whoever made the change.
	Author string `json:"author,omitempty"`
}

// Time returns the event timestamp as a UTC time.
func (e ChangeEvent) Time() time.Time {
	return time.UnixMicro(e.Timestamp).UTC()
}

// Baseline holds the field values an issue had at creation, before any change event.
type Baseline struct {
	Timestamp int64  `json:"ts"`
	Status    string `json:"status"`
	Health    string `json:"health,omitempty"`
	Assignee  string `json:"assignee,omitempty"`
}

// ReconstructedState is the value of every tracked field at a given instant.
type ReconstructedState struct {
	Status   string `json:"status"`
	Health   string `json:"health,omitempty"`
	Assignee string `json:"assignee,omitempty"`
}

// IssueSnapshot is the current view of an issue as returned by the search API.
type IssueSnapshot struct {
	Key        string    `json:"key"`
	IssueType  string    `json:"issueType"`
	Status     string    `json:"status"`
	Health     string    `json:"health,omitempty"`
	Assignee   string    `json:"assignee,omitempty"`
	Complexity string    `json:"complexity,omitempty"`
	Archived   bool      `json:"archived,omitempty"`
	Created    time.Time `json:"created"`
	Updated    time.Time `json:"updated"`
}

// IssueLog bundles everything known about one issue: its current snapshot,
// the derived baseline, and its chronologically ordered change events.
type IssueLog struct {
	Snapshot IssueSnapshot `json:"snapshot"`
	Baseline Baseline      `json:"baseline"`
	Events   []ChangeEvent `json:"events"`
}

// Key returns the issue key of the log.
func (l IssueLog) Key() string {
	return l.Snapshot.Key
}
