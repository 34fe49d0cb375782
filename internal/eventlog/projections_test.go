package eventlog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var (
	t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
)

func at(d time.Duration) int64 {
	return t0.Add(d).UnixMicro()
}

func TestStateAt(t *testing.T) {
	baseline := Baseline{Timestamp: t0.UnixMicro(), Status: "Parking Lot", Health: "On track", Assignee: ""}
	events := []ChangeEvent{
		{Field: FieldStatus, FromValue: "Parking Lot", ToValue: "Discovery", Timestamp: at(24 * time.Hour)},
		{Field: FieldAssignee, FromValue: "", ToValue: "Ana", Timestamp: at(24 * time.Hour)},
		{Field: FieldHealth, FromValue: "On track", ToValue: "On hold", Timestamp: at(48 * time.Hour)},
		{Field: FieldStatus, FromValue: "Discovery", ToValue: "Validation", Timestamp: at(72 * time.Hour)},
		{Field: FieldStatus, FromValue: "Validation", ToValue: "Build", Timestamp: at(72 * time.Hour)},
	}

	tests := []struct {
		name    string
		instant time.Time
		want    ReconstructedState
	}{
		{"before creation falls back to baseline", t0.Add(-time.Hour), ReconstructedState{Status: "Parking Lot", Health: "On track"}},
		{"at creation", t0, ReconstructedState{Status: "Parking Lot", Health: "On track"}},
		{"event at exact instant applies", t0.Add(24 * time.Hour), ReconstructedState{Status: "Discovery", Health: "On track", Assignee: "Ana"}},
		{"independent fields", t0.Add(60 * time.Hour), ReconstructedState{Status: "Discovery", Health: "On hold", Assignee: "Ana"}},
		{"equal timestamps resolve to later position", t0.Add(72 * time.Hour), ReconstructedState{Status: "Build", Health: "On hold", Assignee: "Ana"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StateAt(events, baseline, tt.instant))
		})
	}
}

func TestStateAt_UnsortedInput(t *testing.T) {
	baseline := Baseline{Timestamp: t0.UnixMicro(), Status: "A"}
	events := []ChangeEvent{
		{Field: FieldStatus, FromValue: "B", ToValue: "C", Timestamp: at(2 * time.Hour)},
		{Field: FieldStatus, FromValue: "A", ToValue: "B", Timestamp: at(time.Hour)},
	}
	assert.Equal(t, "C", StateAt(events, baseline, t0.Add(3*time.Hour)).Status)
}

func TestStateAt_Deterministic(t *testing.T) {
	baseline := Baseline{Timestamp: t0.UnixMicro(), Status: "A"}
	events := []ChangeEvent{{Field: FieldStatus, FromValue: "A", ToValue: "B", Timestamp: at(time.Hour)}}
	first := StateAt(events, baseline, t0.Add(2*time.Hour))
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, StateAt(events, baseline, t0.Add(2*time.Hour)))
	}
}

func TestWasAssignedAtDate(t *testing.T) {
	baseline := Baseline{Timestamp: t0.UnixMicro(), Status: "Discovery", Assignee: "Ana"}
	events := []ChangeEvent{
		{Field: FieldAssignee, FromValue: "Ana", ToValue: "Bo", Timestamp: at(48 * time.Hour)},
	}

	tests := []struct {
		name    string
		member  string
		instant time.Time
		want    bool
	}{
		{"before creation is never assigned", "Ana", t0.Add(-time.Minute), false},
		{"baseline assignee", "Ana", t0.Add(time.Hour), true},
		{"case insensitive", "ana", t0.Add(time.Hour), true},
		{"after reassignment", "Bo", t0.Add(49 * time.Hour), true},
		{"previous assignee after reassignment", "Ana", t0.Add(49 * time.Hour), false},
		{"empty member", "", t0.Add(time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WasAssignedAtDate(events, baseline, tt.member, tt.instant))
		})
	}
}

func TestFilterFields(t *testing.T) {
	events := []ChangeEvent{
		{Field: FieldStatus, Timestamp: 1},
		{Field: FieldAssignee, Timestamp: 2},
		{Field: FieldHealth, Timestamp: 3},
	}
	got := FilterFields(events, FieldStatus, FieldHealth)
	assert.Equal(t, []ChangeEvent{events[0], events[2]}, got)
}
