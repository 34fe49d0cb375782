package stats

import (
	"fmt"
	"sort"
	"strings"
)

// Metric selects which duration a cohort aggregates.
type Metric string

const (
	MetricActive   Metric = "active"
	MetricCalendar Metric = "calendar"
)

// ParseMetric accepts "active" or "calendar".
func ParseMetric(s string) (Metric, error) {
	switch Metric(strings.ToLower(s)) {
	case MetricActive:
		return MetricActive, nil
	case MetricCalendar:
		return MetricCalendar, nil
	}
	return "", fmt.Errorf("unknown metric %q (want active or calendar)", s)
}

// KeyFunc maps a cycle to its cohort key.
type KeyFunc func(DiscoveryCycle) string

// UnknownComplexity is the cohort key of cycles without a complexity rating.
const UnknownComplexity = "unknown"

// ByCompletionPeriod groups cycles by the quarter they completed in.
func ByCompletionPeriod(c DiscoveryCycle) string {
	if c.CompletionPeriod != "" {
		return c.CompletionPeriod
	}
	if c.EndDate != nil {
		return PeriodKey(*c.EndDate, "quarter")
	}
	return ""
}

// ByComplexity groups cycles by complexity rating.
func ByComplexity(c DiscoveryCycle) string {
	if strings.TrimSpace(c.Complexity) == "" {
		return UnknownComplexity
	}
	return c.Complexity
}

// ByProject groups cycles by the project part of the issue key.
func ByProject(c DiscoveryCycle) string {
	return ExtractProjectKey(c.IssueKey)
}

// KeyFuncFor resolves a grouping name ("period", "complexity", "project").
func KeyFuncFor(name string) (KeyFunc, error) {
	switch strings.ToLower(name) {
	case "", "period", "quarter":
		return ByCompletionPeriod, nil
	case "complexity":
		return ByComplexity, nil
	case "project":
		return ByProject, nil
	}
	return nil, fmt.Errorf("unknown grouping %q (want period, complexity or project)", name)
}

func metricValue(c DiscoveryCycle, m Metric) (int, bool) {
	if m == MetricCalendar {
		if c.CalendarDays == nil {
			return 0, false
		}
		return *c.CalendarDays, true
	}
	if c.ActiveDays == nil {
		return 0, false
	}
	return *c.ActiveDays, true
}

// Aggregate buckets the completed cycles by key and computes box statistics
// with 1.5×IQR outlier detection per bucket. Cycles that are still open,
// never entered discovery or skipped it, cycles without the metric, and
// cycles whose key is empty are skipped. Buckets are returned sorted by key.
func Aggregate(cycles []DiscoveryCycle, key KeyFunc, metric Metric) []CohortBucket {
	groups := make(map[string][]int)
	for _, c := range cycles {
		if c.EndDate == nil || !c.Classification.Completed() {
			continue
		}
		v, ok := metricValue(c, metric)
		if !ok {
			continue
		}
		k := key(c)
		if k == "" {
			continue
		}
		groups[k] = append(groups[k], v)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buckets := make([]CohortBucket, 0, len(keys))
	for _, k := range keys {
		buckets = append(buckets, summarize(k, groups[k]))
	}
	return buckets
}

func summarize(key string, values []int) CohortBucket {
	sorted := append([]int(nil), values...)
	sort.Ints(sorted)

	q1, median, q3 := Quartiles(sorted)
	iqr := q3 - q1
	lower, upper := q1-1.5*iqr, q3+1.5*iqr

	b := CohortBucket{
		Key:      key,
		Values:   sorted,
		Size:     len(sorted),
		Outliers: []int{},
		Stats:    BoxStats{Q1: q1, Median: median, Q3: q3},
	}

	var inliers []int
	for _, v := range sorted {
		if float64(v) < lower || float64(v) > upper {
			b.Outliers = append(b.Outliers, v)
			continue
		}
		inliers = append(inliers, v)
	}
	if len(inliers) > 0 {
		b.Stats.Min = float64(inliers[0])
		b.Stats.Max = float64(inliers[len(inliers)-1])
	}
	return b
}
