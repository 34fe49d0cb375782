package stats

import (
	"bytes"
	"encoding/json"
	"time"
)

// EndClassification describes how (or whether) a discovery cycle ended.
type EndClassification string

const (
	StillInDiscovery EndClassification = "StillInDiscovery"
	NoDiscovery      EndClassification = "NoDiscovery"
	DirectToBuild    EndClassification = "DirectToBuild"
	BuildTransition  EndClassification = "BuildTransition"
	Beta             EndClassification = "Beta"
	Live             EndClassification = "Live"
	WontDo           EndClassification = "WontDo"
)

// Completed reports whether the classification denotes a finished cycle with an end date.
func (c EndClassification) Completed() bool {
	switch c {
	case BuildTransition, Beta, Live, WontDo:
		return true
	}
	return false
}

// InactiveSpan is a maximal interval during which an issue was inactive.
type InactiveSpan struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Days returns the span length in ceiling days.
func (s InactiveSpan) Days() int {
	return CeilDays(s.End.Sub(s.Start))
}

// DiscoveryCycle is the derived record of one issue's time in discovery.
// StartDate is nil iff Classification is NoDiscovery. EndDate is nil unless
// the classification is a terminal family. Day counts are nil whenever
// either boundary is missing.
type DiscoveryCycle struct {
	IssueKey         string            `json:"issueKey"`
	IssueType        string            `json:"issueType,omitempty"`
	CurrentStatus    string            `json:"currentStatus"`
	Assignee         string            `json:"assignee,omitempty"`
	Complexity       string            `json:"complexity,omitempty"`
	StartDate        *time.Time        `json:"startDate"`
	EndDate          *time.Time        `json:"endDate"`
	Classification   EndClassification `json:"endClassification"`
	CalendarDays     *int              `json:"calendarDays"`
	ActiveDays       *int              `json:"activeDays"`
	CompletionPeriod string            `json:"completionPeriod,omitempty"`
	InactiveSpans    []InactiveSpan    `json:"inactiveSpans,omitempty"`
}

// Equal compares two cycles by their canonical JSON encoding.
func (c DiscoveryCycle) Equal(o DiscoveryCycle) bool {
	a, errA := json.Marshal(c)
	b, errB := json.Marshal(o)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// BoxStats is the five-number summary of a cohort after outlier removal.
type BoxStats struct {
	Min    float64 `json:"min"`
	Q1     float64 `json:"q1"`
	Median float64 `json:"median"`
	Q3     float64 `json:"q3"`
	Max    float64 `json:"max"`
}

// CohortBucket groups the durations of completed cycles sharing a key.
type CohortBucket struct {
	Key      string   `json:"key"`
	Values   []int    `json:"values"`
	Size     int      `json:"size"`
	Stats    BoxStats `json:"stats"`
	Outliers []int    `json:"outliers"`
}
