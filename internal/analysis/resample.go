package analysis

import (
	"math"
	"sort"
	"time"
)

// ResampleRegular buckets an irregular series onto a fixed-width grid by
// averaging the readings that fall into each slot, linearly interpolates runs
// of at most maxGap consecutive empty slots, and drops whatever gaps remain.
// The returned series is compact: timestamps and values have equal length and
// no missing entries, but consecutive timestamps are not guaranteed to be
// exactly one step apart where large gaps were dropped.
func ResampleRegular(times []time.Time, values []float64, step time.Duration, maxGap int) ([]time.Time, []float64) {
	if len(times) == 0 || len(times) != len(values) {
		return nil, nil
	}

	start := times[0].Truncate(step)
	end := times[len(times)-1].Truncate(step)
	slots := int(end.Sub(start)/step) + 1
	if slots < 1 {
		return nil, nil
	}

	sums := make([]float64, slots)
	counts := make([]int, slots)
	for i, ts := range times {
		idx := int(ts.Truncate(step).Sub(start) / step)
		if idx < 0 || idx >= slots {
			continue
		}
		sums[idx] += values[i]
		counts[idx]++
	}

	grid := make([]float64, slots)
	known := make([]bool, slots)
	for i := range grid {
		if counts[i] > 0 {
			grid[i] = sums[i] / float64(counts[i])
			known[i] = true
		}
	}

	interpolateGaps(grid, known, maxGap)

	outTimes := make([]time.Time, 0, slots)
	outValues := make([]float64, 0, slots)
	for i := range grid {
		if known[i] {
			outTimes = append(outTimes, start.Add(time.Duration(i)*step))
			outValues = append(outValues, grid[i])
		}
	}
	return outTimes, outValues
}

// interpolateGaps fills interior runs of up to maxGap missing slots by linear
// interpolation between the surrounding known values. Leading and trailing
// runs have no anchor on one side and are left missing.
func interpolateGaps(grid []float64, known []bool, maxGap int) {
	prev := -1
	for i := range grid {
		if !known[i] {
			continue
		}
		if prev >= 0 && i-prev > 1 && i-prev-1 <= maxGap {
			span := float64(i - prev)
			for j := prev + 1; j < i; j++ {
				frac := float64(j-prev) / span
				grid[j] = grid[prev] + frac*(grid[i]-grid[prev])
				known[j] = true
			}
		}
		prev = i
	}
}

// Percentile returns the p-th percentile (0..1) of sorted using linear
// interpolation between order statistics. sorted must be ascending and
// non-empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	h := p * float64(n-1)
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

// sortedCopy returns an ascending copy of values.
func sortedCopy(values []float64) []float64 {
	out := append([]float64(nil), values...)
	sort.Float64s(out)
	return out
}

// subsampleStride returns the stride that keeps at most max points.
func subsampleStride(n, max int) int {
	if n <= max {
		return 1
	}
	return (n + max - 1) / max
}
