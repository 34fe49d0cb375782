package stats

import (
	"math"
	"sort"
)

// npl is Wheeler's scaling constant for individuals charts.
const npl = 2.66

// shiftRun is the run length on one side of the mean that signals a shift.
const shiftRun = 8

// XmRResult is an individuals and moving-range chart over cycle durations.
type XmRResult struct {
	Average     float64   `json:"average"`
	AmR         float64   `json:"averageMovingRange"`
	UNPL        float64   `json:"upperNaturalProcessLimit"`
	LNPL        float64   `json:"lowerNaturalProcessLimit"`
	Values      []float64 `json:"values"`
	MovingRange []float64 `json:"movingRanges,omitempty"`
	Signals     []Signal  `json:"signals"`
}

// Signal is a point (or run) the chart flags as special-cause variation.
type Signal struct {
	Index       int    `json:"index"`
	Key         string `json:"key,omitempty"`
	Type        string `json:"type"` // "outlier" or "shift"
	Description string `json:"description"`
}

// CalculateXmR computes chart limits and signals for values in sequence.
// keys, when given, label the signals and must be parallel to values.
func CalculateXmR(values []float64, keys []string) XmRResult {
	if len(values) == 0 {
		return XmRResult{Signals: []Signal{}}
	}

	r := XmRResult{Values: values}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	r.Average = sum / float64(len(values))

	if len(values) > 1 {
		r.MovingRange = make([]float64, len(values)-1)
		mrSum := 0.0
		for i := 1; i < len(values); i++ {
			mr := math.Abs(values[i] - values[i-1])
			r.MovingRange[i-1] = mr
			mrSum += mr
		}
		r.AmR = mrSum / float64(len(r.MovingRange))
	}

	r.UNPL = r.Average + npl*r.AmR
	r.LNPL = math.Max(0, r.Average-npl*r.AmR)
	r.Signals = detectSignals(values, r.Average, r.UNPL, r.LNPL, keys)
	return r
}

func detectSignals(values []float64, avg, unpl, lnpl float64, keys []string) []Signal {
	signals := []Signal{}
	keyAt := func(i int) string {
		if i < len(keys) {
			return keys[i]
		}
		return ""
	}

	for i, v := range values {
		switch {
		case v > unpl:
			signals = append(signals, Signal{Index: i, Key: keyAt(i), Type: "outlier", Description: "above the upper natural process limit"})
		case v < lnpl:
			signals = append(signals, Signal{Index: i, Key: keyAt(i), Type: "outlier", Description: "below the lower natural process limit"})
		}
	}

	if len(values) < shiftRun {
		return signals
	}
	side, run := 0, 0
	for i, v := range values {
		s := 0
		if v > avg {
			s = 1
		} else if v < avg {
			s = -1
		}
		if s != 0 && s == side {
			run++
		} else {
			side, run = s, 1
		}
		if run == shiftRun {
			signals = append(signals, Signal{Index: i, Key: keyAt(i), Type: "shift", Description: "8 consecutive cycles on one side of the average"})
		}
	}
	return signals
}

// StabilityReport charts completed cycle durations in completion order.
type StabilityReport struct {
	Metric Metric    `json:"metric"`
	Keys   []string  `json:"keys"`
	XmR    XmRResult `json:"xmr"`
}

// CycleStability orders completed cycles by end date (then key) and charts
// the chosen duration. Cycles without a value for the metric are skipped.
func CycleStability(cycles []DiscoveryCycle, metric Metric) StabilityReport {
	done := make([]DiscoveryCycle, 0, len(cycles))
	for _, c := range cycles {
		if _, ok := metricValue(c, metric); ok && c.EndDate != nil && c.Classification.Completed() {
			done = append(done, c)
		}
	}
	sort.SliceStable(done, func(i, j int) bool {
		if !done[i].EndDate.Equal(*done[j].EndDate) {
			return done[i].EndDate.Before(*done[j].EndDate)
		}
		return done[i].IssueKey < done[j].IssueKey
	})

	keys := make([]string, len(done))
	values := make([]float64, len(done))
	for i, c := range done {
		v, _ := metricValue(c, metric)
		keys[i] = c.IssueKey
		values[i] = float64(v)
	}
	return StabilityReport{Metric: metric, Keys: keys, XmR: CalculateXmR(values, keys)}
}
