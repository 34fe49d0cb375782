package eventlog

import (
	"strings"
	"time"
)

// StateAt reconstructs the value of every tracked field at the given instant.
// For each field the latest event at or before the instant wins; events with
// equal timestamps resolve to the one appearing later in the slice. Fields
// with no qualifying event fall back to the baseline.
func StateAt(events []ChangeEvent, baseline Baseline, instant time.Time) ReconstructedState {
	ref := instant.UnixMicro()
	state := ReconstructedState{
		Status:   baseline.Status,
		Health:   baseline.Health,
		Assignee: baseline.Assignee,
	}

	var latest [3]int64
	var found [3]bool
	for _, e := range events {
		if e.Timestamp > ref {
			continue
		}
		idx, ok := fieldIndex(e.Field)
		if !ok {
			continue
		}
		if found[idx] && e.Timestamp < latest[idx] {
			continue
		}
		found[idx] = true
		latest[idx] = e.Timestamp
		switch e.Field {
		case FieldStatus:
			state.Status = e.ToValue
		case FieldHealth:
			state.Health = e.ToValue
		case FieldAssignee:
			state.Assignee = e.ToValue
		}
	}
	return state
}

// WasAssignedAtDate reports whether member was the assignee at the instant.
// An issue is never assigned to anyone before it was created.
func WasAssignedAtDate(events []ChangeEvent, baseline Baseline, member string, instant time.Time) bool {
	if member == "" || instant.UnixMicro() < baseline.Timestamp {
		return false
	}
	return strings.EqualFold(StateAt(events, baseline, instant).Assignee, member)
}

// FilterFields returns the events touching any of the given fields, preserving order.
func FilterFields(events []ChangeEvent, fields ...Field) []ChangeEvent {
	var out []ChangeEvent
	for _, e := range events {
		for _, f := range fields {
			if e.Field == f {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

func fieldIndex(f Field) (int, bool) {
	switch f {
	case FieldStatus:
		return 0, true
	case FieldHealth:
		return 1, true
	case FieldAssignee:
		return 2, true
	}
	return 0, false
}
