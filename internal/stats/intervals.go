package stats

import (
	"cmp"
	"slices"
	"time"

	"discotrack/internal/eventlog"
)

// InactivePredicate classifies a (status, health) pair as inactive.
type InactivePredicate func(status, health string) bool

// Accounting splits a cycle's calendar time into active and inactive days.
type Accounting struct {
	CalendarDays  int
	ActiveDays    int
	InactiveSpans []InactiveSpan
}

// AccumulateActiveInactive walks the status and health changes strictly
// inside (start, end), starting from seed (the state at start). Consecutive
// inactive sub-intervals coalesce into one span and zero-length intervals are
// dropped. Inactive days are the sum of each span's ceiling days, so active
// days never go below zero.
func AccumulateActiveInactive(merged []eventlog.ChangeEvent, seed eventlog.ReconstructedState, start, end time.Time, inactive InactivePredicate) Accounting {
	if !end.After(start) {
		return Accounting{}
	}
	startTs, endTs := start.UnixMicro(), end.UnixMicro()

	var window []eventlog.ChangeEvent
	for _, e := range merged {
		if e.Timestamp <= startTs || e.Timestamp >= endTs {
			continue
		}
		if e.Field != eventlog.FieldStatus && e.Field != eventlog.FieldHealth {
			continue
		}
		window = append(window, e)
	}
	slices.SortStableFunc(window, func(a, b eventlog.ChangeEvent) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})

	status, health := seed.Status, seed.Health
	last := startTs
	var spanStart int64
	inSpan := false
	var spans []InactiveSpan

	advance := func(until int64) {
		if until <= last {
			return
		}
		isInactive := inactive(status, health)
		switch {
		case isInactive && !inSpan:
			spanStart, inSpan = last, true
		case !isInactive && inSpan:
			spans = append(spans, newSpan(spanStart, last))
			inSpan = false
		}
		last = until
	}

	for _, e := range window {
		advance(e.Timestamp)
		if e.Field == eventlog.FieldStatus {
			status = e.ToValue
		} else {
			health = e.ToValue
		}
	}
	advance(endTs)
	if inSpan {
		spans = append(spans, newSpan(spanStart, endTs))
	}

	acc := Accounting{
		CalendarDays:  CeilDays(end.Sub(start)),
		InactiveSpans: spans,
	}
	inactiveDays := 0
	for _, s := range spans {
		inactiveDays += s.Days()
	}
	acc.ActiveDays = max(0, acc.CalendarDays-inactiveDays)
	return acc
}

func newSpan(from, to int64) InactiveSpan {
	return InactiveSpan{Start: time.UnixMicro(from).UTC(), End: time.UnixMicro(to).UTC()}
}
