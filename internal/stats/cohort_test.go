package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completed(key, complexity string, end time.Time, calendar, active int) DiscoveryCycle {
	start := end.Add(-time.Duration(calendar) * 24 * time.Hour)
	return DiscoveryCycle{
		IssueKey:         key,
		Complexity:       complexity,
		StartDate:        &start,
		EndDate:          &end,
		Classification:   BuildTransition,
		CalendarDays:     &calendar,
		ActiveDays:       &active,
		CompletionPeriod: PeriodKey(end, "quarter"),
	}
}

func TestAggregate_OutlierDetection(t *testing.T) {
	end := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
	var cycles []DiscoveryCycle
	for i, v := range []int{30, 4, 2, 8, 6, 4} {
		cycles = append(cycles, completed("DISC-"+string(rune('A'+i)), "M", end, v+1, v))
	}

	buckets := Aggregate(cycles, ByCompletionPeriod, MetricActive)
	require.Len(t, buckets, 1)
	b := buckets[0]

	assert.Equal(t, "2024-Q3", b.Key)
	assert.Equal(t, 6, b.Size)
	assert.Equal(t, []int{2, 4, 4, 6, 8, 30}, b.Values)
	assert.Equal(t, []int{30}, b.Outliers)
	assert.Equal(t, BoxStats{Min: 2, Q1: 4, Median: 5, Q3: 7.5, Max: 8}, b.Stats)
}

func TestAggregate_SkipsIncompleteAndGroups(t *testing.T) {
	q2 := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	q3 := time.Date(2024, 9, 30, 23, 0, 0, 0, time.UTC)
	open := DiscoveryCycle{IssueKey: "DISC-9", Classification: StillInDiscovery}

	cycles := []DiscoveryCycle{
		completed("DISC-1", "", q2, 3, 2),
		completed("DISC-2", "L", q3, 10, 7),
		completed("OPS-1", "L", q3, 5, 5),
		open,
	}

	byPeriod := Aggregate(cycles, ByCompletionPeriod, MetricCalendar)
	require.Len(t, byPeriod, 2)
	assert.Equal(t, "2024-Q2", byPeriod[0].Key)
	assert.Equal(t, "2024-Q3", byPeriod[1].Key)
	assert.Equal(t, []int{5, 10}, byPeriod[1].Values)

	byComplexity := Aggregate(cycles, ByComplexity, MetricActive)
	require.Len(t, byComplexity, 2)
	assert.Equal(t, "L", byComplexity[0].Key)
	assert.Equal(t, UnknownComplexity, byComplexity[1].Key)

	byProject := Aggregate(cycles, ByProject, MetricActive)
	require.Len(t, byProject, 2)
	assert.Equal(t, "DISC", byProject[0].Key)
	assert.Equal(t, 2, byProject[0].Size)

	total := 0
	for _, b := range byComplexity {
		total += b.Size
	}
	assert.Equal(t, 3, total)
}

func TestAggregate_SkipsEmptyKeys(t *testing.T) {
	end := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	cycles := []DiscoveryCycle{
		completed("DISC-1", "", end, 4, 3),
		completed("DISC-2", "M", end, 6, 6),
	}
	byTag := func(c DiscoveryCycle) string { return c.Complexity }

	buckets := Aggregate(cycles, byTag, MetricActive)
	require.Len(t, buckets, 1)
	assert.Equal(t, "M", buckets[0].Key)
	assert.Equal(t, []int{6}, buckets[0].Values)
}

func TestAggregate_SingleValueBucket(t *testing.T) {
	end := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	buckets := Aggregate([]DiscoveryCycle{completed("DISC-1", "S", end, 4, 3)}, ByComplexity, MetricActive)
	require.Len(t, buckets, 1)
	assert.Equal(t, BoxStats{Min: 3, Q1: 3, Median: 3, Q3: 3, Max: 3}, buckets[0].Stats)
	assert.Empty(t, buckets[0].Outliers)
}

func TestKeyFuncForAndParseMetric(t *testing.T) {
	_, err := KeyFuncFor("complexity")
	assert.NoError(t, err)
	_, err = KeyFuncFor("bogus")
	assert.Error(t, err)

	m, err := ParseMetric("Calendar")
	assert.NoError(t, err)
	assert.Equal(t, MetricCalendar, m)
	_, err = ParseMetric("hours")
	assert.Error(t, err)
}
