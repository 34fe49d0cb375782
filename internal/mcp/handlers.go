package mcp

import (
	"context"
	"time"

	"discotrack/internal/eventlog"
	"discotrack/internal/stats"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

func (s *Server) findLog(issueKey string) (eventlog.IssueLog, bool) {
	if l, ok := s.logs.Get(s.sourceID, issueKey); ok {
		return l, true
	}
	_, l, ok := s.logs.Find(issueKey)
	return l, ok
}

func (s *Server) handleGetCycle(ctx context.Context, _ *mcpsdk.CallToolRequest, in CycleInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if err := requireArg("issue_key", in.IssueKey); err != nil {
		return errorResult(err)
	}

	if !in.Recompute {
		cycle, err := s.cycles.Get(ctx, in.IssueKey)
		if err != nil {
			return errorResult(err)
		}
		if cycle != nil {
			return jsonResult(cycle)
		}
	}

	l, ok := s.findLog(in.IssueKey)
	if !ok {
		return errorResult(ErrIssueNotFound)
	}
	cycle := stats.DeriveCycle(l, s.pipeline)
	if _, err := s.cycles.Upsert(ctx, cycle); err != nil {
		log.Warn().Err(err).Str("key", in.IssueKey).Msg("Derived cycle could not be cached")
	}
	return jsonResult(cycle)
}

// CohortReport is the output of analyze_discovery_cohorts.
type CohortReport struct {
	GroupBy string                `json:"groupBy"`
	Metric  stats.Metric          `json:"metric"`
	Window  *stats.AnalysisWindow `json:"window,omitempty"`
	Cycles  int                   `json:"cycles"`
	Buckets []stats.CohortBucket  `json:"buckets"`
}

func (s *Server) handleCohorts(ctx context.Context, _ *mcpsdk.CallToolRequest, in CohortsInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	groupBy := in.GroupBy
	if groupBy == "" {
		groupBy = "period"
	}
	key, err := stats.KeyFuncFor(groupBy)
	if err != nil {
		return errorResult(err)
	}
	metric, err := parseMetric(in.Metric)
	if err != nil {
		return errorResult(err)
	}

	cycles, err := s.cycles.List(ctx)
	if err != nil {
		return errorResult(err)
	}

	report := CohortReport{GroupBy: groupBy, Metric: metric}
	if report.Window, err = parseWindow(in.Start, in.End, in.Bucket); err != nil {
		return errorResult(err)
	}
	if report.Window != nil {
		cycles = report.Window.Filter(cycles)
	}

	report.Cycles = len(cycles)
	report.Buckets = stats.Aggregate(cycles, key, metric)
	if report.Buckets == nil {
		report.Buckets = []stats.CohortBucket{}
	}
	return jsonResult(report)
}

// parseWindow returns nil when neither bound is set.
func parseWindow(start, end, bucket string) (*stats.AnalysisWindow, error) {
	if start == "" && end == "" {
		return nil, nil
	}
	var from, to time.Time
	var err error
	if start != "" {
		if from, err = stats.ParseInstant(start); err != nil {
			return nil, err
		}
	}
	if end != "" {
		if to, err = stats.ParseInstant(end); err != nil {
			return nil, err
		}
	}
	w := stats.NewAnalysisWindow(from, to, bucket)
	return &w, nil
}

func parseMetric(s string) (stats.Metric, error) {
	if s == "" {
		return stats.MetricActive, nil
	}
	return stats.ParseMetric(s)
}

func (s *Server) handleStability(ctx context.Context, _ *mcpsdk.CallToolRequest, in StabilityInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	metric, err := parseMetric(in.Metric)
	if err != nil {
		return errorResult(err)
	}
	window, err := parseWindow(in.Start, in.End, "")
	if err != nil {
		return errorResult(err)
	}
	cycles, err := s.cycles.List(ctx)
	if err != nil {
		return errorResult(err)
	}
	if window != nil {
		cycles = window.Filter(cycles)
	}
	return jsonResult(stats.CycleStability(cycles, metric))
}

// StateResult is the output of get_issue_state.
type StateResult struct {
	IssueKey string    `json:"issueKey"`
	At       time.Time `json:"at"`
	eventlog.ReconstructedState
}

func (s *Server) handleState(_ context.Context, _ *mcpsdk.CallToolRequest, in StateInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if err := requireArg("issue_key", in.IssueKey); err != nil {
		return errorResult(err)
	}
	at, err := stats.ParseInstant(in.At)
	if err != nil {
		return errorResult(err)
	}
	l, ok := s.findLog(in.IssueKey)
	if !ok {
		return errorResult(ErrIssueNotFound)
	}
	return jsonResult(StateResult{
		IssueKey:           in.IssueKey,
		At:                 at,
		ReconstructedState: eventlog.StateAt(l.Events, l.Baseline, at),
	})
}

// AssignedResult is the output of was_assigned_at.
type AssignedResult struct {
	IssueKey string    `json:"issueKey"`
	Member   string    `json:"member"`
	At       time.Time `json:"at"`
	Assigned bool      `json:"assigned"`
}

func (s *Server) handleWasAssigned(_ context.Context, _ *mcpsdk.CallToolRequest, in AssignedInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if err := requireArg("issue_key", in.IssueKey); err != nil {
		return errorResult(err)
	}
	if err := requireArg("member", in.Member); err != nil {
		return errorResult(err)
	}
	at, err := stats.ParseInstant(in.At)
	if err != nil {
		return errorResult(err)
	}
	l, ok := s.findLog(in.IssueKey)
	if !ok {
		return errorResult(ErrIssueNotFound)
	}
	return jsonResult(AssignedResult{
		IssueKey: in.IssueKey,
		Member:   in.Member,
		At:       at,
		Assigned: eventlog.WasAssignedAtDate(l.Events, l.Baseline, in.Member, at),
	})
}

// WorkloadResult is the output of get_member_workload.
type WorkloadResult struct {
	Member string              `json:"member"`
	At     time.Time           `json:"at"`
	Issues []stats.MemberIssue `json:"issues"`
}

func (s *Server) handleWorkload(_ context.Context, _ *mcpsdk.CallToolRequest, in WorkloadInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if err := requireArg("member", in.Member); err != nil {
		return errorResult(err)
	}
	at, err := stats.ParseInstant(in.At)
	if err != nil {
		return errorResult(err)
	}
	issues := stats.ActiveIssuesFor(s.logs.Logs(s.sourceID), in.Member, at, s.pipeline)
	if issues == nil {
		issues = []stats.MemberIssue{}
	}
	return jsonResult(WorkloadResult{Member: in.Member, At: at, Issues: issues})
}

func (s *Server) handleCacheStatus(ctx context.Context, _ *mcpsdk.CallToolRequest, _ CacheStatusInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	status, err := s.cycles.Status(ctx)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(status)
}
