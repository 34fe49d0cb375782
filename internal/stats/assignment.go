package stats

import (
	"sort"
	"time"

	"discotrack/internal/eventlog"
)

// MemberIssue is one issue on a member's plate at a given instant.
type MemberIssue struct {
	IssueKey string `json:"issueKey"`
	Status   string `json:"status"`
	Health   string `json:"health,omitempty"`
}

// ActiveIssuesFor lists the issues assigned to member at instant whose
// reconstructed status counts as active. Results are sorted by issue key.
func ActiveIssuesFor(logs []eventlog.IssueLog, member string, instant time.Time, p *Pipeline) []MemberIssue {
	var out []MemberIssue
	for _, l := range logs {
		if !eventlog.WasAssignedAtDate(l.Events, l.Baseline, member, instant) {
			continue
		}
		state := eventlog.StateAt(l.Events, l.Baseline, instant)
		if !p.IsActive(state.Status) {
			continue
		}
		out = append(out, MemberIssue{IssueKey: l.Key(), Status: state.Status, Health: state.Health})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssueKey < out[j].IssueKey })
	return out
}
