package stats

import (
	"cmp"
	"slices"
	"time"

	"discotrack/internal/eventlog"
)

// CycleBoundary is the outcome of cycle detection for one issue.
type CycleBoundary struct {
	Start          *time.Time
	End            *time.Time
	Classification EndClassification
}

// DetectCycle finds when an issue entered discovery and when it first left
// for a terminal status.
//
// The start is the first event moving into a discovery status, or the
// creation instant when the issue was created in discovery. The end is the
// first later event leaving a discovery status for a terminal one; any
// re-entry after that exit is ignored.
func DetectCycle(statusEvents []eventlog.ChangeEvent, baseline eventlog.Baseline, currentStatus string, p *Pipeline) CycleBoundary {
	events := make([]eventlog.ChangeEvent, 0, len(statusEvents))
	for _, e := range statusEvents {
		if e.Field == eventlog.FieldStatus {
			events = append(events, e)
		}
	}
	slices.SortStableFunc(events, func(a, b eventlog.ChangeEvent) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})

	var startTs int64
	scanFrom := -1
	for i, e := range events {
		if p.IsDiscovery(e.ToValue) {
			startTs = e.Timestamp
			scanFrom = i + 1
			break
		}
	}
	if scanFrom < 0 {
		if !p.IsDiscovery(baseline.Status) {
			return CycleBoundary{Classification: NoDiscovery}
		}
		startTs = baseline.Timestamp
		scanFrom = 0
	}

	start := time.UnixMicro(startTs).UTC()
	boundary := CycleBoundary{Start: &start}

	for _, e := range events[scanFrom:] {
		if e.Timestamp < startTs {
			continue
		}
		if !p.IsDiscovery(e.FromValue) {
			continue
		}
		family, ok := p.TerminalFamily(e.ToValue)
		if !ok {
			continue
		}
		end := time.UnixMicro(e.Timestamp).UTC()
		boundary.End = &end
		boundary.Classification = classify(family)
		return boundary
	}

	if p.IsTerminal(currentStatus) {
		boundary.Classification = DirectToBuild
	} else {
		boundary.Classification = StillInDiscovery
	}
	return boundary
}

func classify(f Family) EndClassification {
	switch f {
	case FamilyBeta:
		return Beta
	case FamilyLive:
		return Live
	case FamilyWontDo:
		return WontDo
	default:
		return BuildTransition
	}
}
