package stats

import (
	"math"
	"slices"
	"time"
)

const msPerDay = int64(24 * time.Hour / time.Millisecond)

// CeilDays converts a duration into whole days, rounding any partial day up.
// Non-positive durations count as zero days.
func CeilDays(d time.Duration) int {
	ms := d.Milliseconds()
	if ms <= 0 {
		return 0
	}
	return int((ms + msPerDay - 1) / msPerDay)
}

// Percentile returns the p-th percentile (0..1) of an ascending slice using
// linear interpolation between closest ranks (position p*(n-1)).
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	pos := p * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// Quartiles returns Q1, median and Q3 of the values.
func Quartiles(values []int) (q1, median, q3 float64) {
	sorted := sortedFloats(values)
	return Percentile(sorted, 0.25), Percentile(sorted, 0.5), Percentile(sorted, 0.75)
}

func sortedFloats(values []int) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	slices.Sort(out)
	return out
}
