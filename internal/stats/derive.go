package stats

import (
	"discotrack/internal/eventlog"
)

// DeriveCycle computes the DiscoveryCycle of one issue from its log.
// The result depends only on the log and the pipeline, so re-deriving an
// unchanged log yields an identical record.
func DeriveCycle(l eventlog.IssueLog, p *Pipeline) DiscoveryCycle {
	snap := l.Snapshot
	c := DiscoveryCycle{
		IssueKey:      snap.Key,
		IssueType:     snap.IssueType,
		CurrentStatus: snap.Status,
		Assignee:      snap.Assignee,
		Complexity:    snap.Complexity,
	}

	statusEvents := eventlog.FilterFields(l.Events, eventlog.FieldStatus)
	b := DetectCycle(statusEvents, l.Baseline, snap.Status, p)
	c.Classification = b.Classification
	c.StartDate = b.Start
	c.EndDate = b.End

	if b.Start == nil || b.End == nil {
		return c
	}

	seed := eventlog.StateAt(l.Events, l.Baseline, *b.Start)
	merged := eventlog.FilterFields(l.Events, eventlog.FieldStatus, eventlog.FieldHealth)
	acc := AccumulateActiveInactive(merged, seed, *b.Start, *b.End, p.IsInactive)

	calendar, active := acc.CalendarDays, acc.ActiveDays
	c.CalendarDays = &calendar
	c.ActiveDays = &active
	c.InactiveSpans = acc.InactiveSpans
	c.CompletionPeriod = PeriodKey(*b.End, "quarter")
	return c
}
