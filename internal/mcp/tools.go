package mcp

import (
	"encoding/json"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool names.
const (
	ToolNameCycle       = "get_discovery_cycle"
	ToolNameCohorts     = "analyze_discovery_cohorts"
	ToolNameState       = "get_issue_state"
	ToolNameAssigned    = "was_assigned_at"
	ToolNameWorkload    = "get_member_workload"
	ToolNameCacheStatus = "get_cache_status"
	ToolNameStability   = "analyze_cycle_stability"
)

const (
	cycleToolDescription       = "Return the discovery cycle of one issue: start and end dates, end classification, calendar and active days, inactive spans."
	cohortsToolDescription     = "Group completed discovery cycles into cohorts (by completion quarter, complexity or project) and return box-plot statistics with outliers."
	stateToolDescription       = "Reconstruct the status, health and assignee an issue had at a given instant."
	assignedToolDescription    = "Report whether a team member was the assignee of an issue at a given instant."
	workloadToolDescription    = "List the issues assigned to a team member that were in an active status at a given instant."
	cacheStatusToolDescription = "Describe the derived-record cache: backend, entry count and freshness."
	stabilityToolDescription   = "Chart completed discovery durations in completion order (XmR) and flag cycles outside the natural process limits or sustained shifts."
)

var (
	// ErrIssueNotFound means no issue log or derived cycle exists for the key.
	ErrIssueNotFound = errors.New("issue not found; run a sync first")
	// ErrMissingArgument flags an empty required argument.
	ErrMissingArgument = errors.New("missing required argument")
)

// CycleInput is the input of get_discovery_cycle.
type CycleInput struct {
	IssueKey  string `json:"issue_key"           jsonschema:"issue key, e.g. DISC-123"`
	Recompute bool   `json:"recompute,omitempty" jsonschema:"re-derive from the stored event log instead of reading the cache"`
}

// CohortsInput is the input of analyze_discovery_cohorts.
type CohortsInput struct {
	GroupBy string `json:"group_by,omitempty" jsonschema:"period (default), complexity or project"`
	Metric  string `json:"metric,omitempty"   jsonschema:"active (default) or calendar days"`
	Start   string `json:"start,omitempty"    jsonschema:"only cycles completed on or after this date (YYYY-MM-DD or RFC 3339)"`
	End     string `json:"end,omitempty"      jsonschema:"only cycles completed on or before this date (YYYY-MM-DD or RFC 3339)"`
	Bucket  string `json:"bucket,omitempty"   jsonschema:"snap start/end to day (default), week, month or quarter"`
}

// StateInput is the input of get_issue_state.
type StateInput struct {
	IssueKey string `json:"issue_key" jsonschema:"issue key, e.g. DISC-123"`
	At       string `json:"at"        jsonschema:"instant to reconstruct (YYYY-MM-DD or RFC 3339)"`
}

// AssignedInput is the input of was_assigned_at.
type AssignedInput struct {
	IssueKey string `json:"issue_key" jsonschema:"issue key, e.g. DISC-123"`
	Member   string `json:"member"    jsonschema:"assignee display name (case-insensitive)"`
	At       string `json:"at"        jsonschema:"instant to check (YYYY-MM-DD or RFC 3339)"`
}

// WorkloadInput is the input of get_member_workload.
type WorkloadInput struct {
	Member string `json:"member" jsonschema:"assignee display name (case-insensitive)"`
	At     string `json:"at"     jsonschema:"instant to check (YYYY-MM-DD or RFC 3339)"`
}

// StabilityInput is the input of analyze_cycle_stability.
type StabilityInput struct {
	Metric string `json:"metric,omitempty" jsonschema:"active (default) or calendar days"`
	Start  string `json:"start,omitempty"  jsonschema:"only cycles completed on or after this date (YYYY-MM-DD or RFC 3339)"`
	End    string `json:"end,omitempty"    jsonschema:"only cycles completed on or before this date (YYYY-MM-DD or RFC 3339)"`
}

// CacheStatusInput is the (empty) input of get_cache_status.
type CacheStatusInput struct{}

// ToolOutput is the structured output of every tool.
type ToolOutput struct {
	Data any `json:"data"`
}

func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
		IsError: true,
	}, ToolOutput{}, nil
}

func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
	}, ToolOutput{Data: value}, nil
}

func requireArg(name, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s", ErrMissingArgument, name)
	}
	return nil
}
