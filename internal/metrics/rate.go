package metrics

import (
	"math"
	"time"
)

const (
	// NetworkFactor converts bytes to megabits.
	NetworkFactor = 8.0 / 1_000_000.0
	// DiskFactor converts bytes to megabytes.
	DiskFactor = 1.0 / 1_000_000.0

	minElapsedSeconds = 1e-6
)

// CounterDelta turns two readings of a monotonic counter into a rate per
// second scaled by factor. A counter that went backwards yields 0; the
// caller is expected to keep curr as the new baseline.
func CounterDelta(prev, curr uint64, elapsed time.Duration, factor float64) float64 {
	if curr < prev {
		return 0
	}
	secs := elapsed.Seconds()
	if secs < minElapsedSeconds {
		secs = minElapsedSeconds
	}
	return float64(curr-prev) * factor / secs
}

func clampFloat(val, min, max float64) float64 {
	if math.IsNaN(val) {
		return min
	}
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
