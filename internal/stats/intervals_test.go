package stats

import (
	"testing"
	"time"

	"discotrack/internal/eventlog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccumulate_NoDips(t *testing.T) {
	p := testPipeline(t)
	seed := eventlog.ReconstructedState{Status: "Discovery", Health: "OnTrack"}

	acc := AccumulateActiveInactive(nil, seed, day(1), day(5.5), p.IsInactive)
	assert.Equal(t, 5, acc.CalendarDays)
	assert.Equal(t, 5, acc.ActiveDays)
	assert.Empty(t, acc.InactiveSpans)
}

func TestAccumulate_HealthDip(t *testing.T) {
	p := testPipeline(t)
	seed := eventlog.ReconstructedState{Status: "Discovery", Health: "OnTrack"}
	events := []eventlog.ChangeEvent{
		health("OnTrack", "OnHold", day(2.5)),
		health("OnHold", "OnTrack", day(4)),
	}

	acc := AccumulateActiveInactive(events, seed, day(1), day(11), p.IsInactive)
	require.Len(t, acc.InactiveSpans, 1)
	assert.True(t, acc.InactiveSpans[0].Start.Equal(day(2.5)))
	assert.True(t, acc.InactiveSpans[0].End.Equal(day(4)))
	assert.Equal(t, 10, acc.CalendarDays)
	assert.Equal(t, 10-2, acc.ActiveDays)
}

func TestAccumulate_CoalescesAdjacentInactive(t *testing.T) {
	p := testPipeline(t)
	seed := eventlog.ReconstructedState{Status: "Discovery", Health: "OnTrack"}
	events := []eventlog.ChangeEvent{
		status("Discovery", "Parking Lot", day(2)),
		health("OnTrack", "OnHold", day(3)),
		status("Parking Lot", "Discovery", day(4)),
		health("OnHold", "OnTrack", day(6)),
	}

	acc := AccumulateActiveInactive(events, seed, day(0), day(10), p.IsInactive)
	require.Len(t, acc.InactiveSpans, 1)
	assert.True(t, acc.InactiveSpans[0].Start.Equal(day(2)))
	assert.True(t, acc.InactiveSpans[0].End.Equal(day(6)))
	assert.Equal(t, 6, acc.ActiveDays)
}

func TestAccumulate_SeedInactiveRunsToEnd(t *testing.T) {
	p := testPipeline(t)
	seed := eventlog.ReconstructedState{Status: "Discovery", Health: "OnHold"}

	acc := AccumulateActiveInactive(nil, seed, day(0), day(3), p.IsInactive)
	require.Len(t, acc.InactiveSpans, 1)
	assert.True(t, acc.InactiveSpans[0].Start.Equal(day(0)))
	assert.True(t, acc.InactiveSpans[0].End.Equal(day(3)))
	assert.Equal(t, 0, acc.ActiveDays)
}

func TestAccumulate_ZeroLengthDropped(t *testing.T) {
	p := testPipeline(t)
	seed := eventlog.ReconstructedState{Status: "Discovery", Health: "OnTrack"}
	events := []eventlog.ChangeEvent{
		health("OnTrack", "OnHold", day(2)),
		health("OnHold", "OnTrack", day(2)),
	}

	acc := AccumulateActiveInactive(events, seed, day(0), day(4), p.IsInactive)
	assert.Empty(t, acc.InactiveSpans)
	assert.Equal(t, 4, acc.ActiveDays)
}

func TestAccumulate_EventsAtBoundariesIgnored(t *testing.T) {
	p := testPipeline(t)
	seed := eventlog.ReconstructedState{Status: "Discovery", Health: "OnTrack"}
	events := []eventlog.ChangeEvent{
		health("OnTrack", "OnHold", day(0)),
		health("OnTrack", "OnHold", day(4)),
	}

	acc := AccumulateActiveInactive(events, seed, day(0), day(4), p.IsInactive)
	assert.Empty(t, acc.InactiveSpans)
}

func TestAccumulate_ManyShortSpansNeverNegative(t *testing.T) {
	p := testPipeline(t)
	seed := eventlog.ReconstructedState{Status: "Discovery", Health: "OnTrack"}
	var events []eventlog.ChangeEvent
	for i := 0; i < 4; i++ {
		base := day(float64(i) * 0.5)
		events = append(events,
			health("OnTrack", "OnHold", base.Add(time.Hour)),
			health("OnHold", "OnTrack", base.Add(2*time.Hour)),
		)
	}

	acc := AccumulateActiveInactive(events, seed, day(0), day(2), p.IsInactive)
	assert.Len(t, acc.InactiveSpans, 4)
	assert.Equal(t, 2, acc.CalendarDays)
	assert.Equal(t, 0, acc.ActiveDays)
	assert.LessOrEqual(t, acc.ActiveDays, acc.CalendarDays)
}

func TestAccumulate_EmptyWindow(t *testing.T) {
	p := testPipeline(t)
	acc := AccumulateActiveInactive(nil, eventlog.ReconstructedState{}, day(1), day(1), p.IsInactive)
	assert.Equal(t, Accounting{}, acc)
}
