package index

import "math"

// Anomaly thresholds. A value in the upper quarter of the scale is always
// flagged, independent of trend; otherwise a swing of more than 10% against
// the previous accepted value is.
const (
	PercentChangeThreshold = 10.0
	AbsoluteThreshold      = 7.0
)

// PercentChange returns the percent change from prev to value. With no
// meaningful prior value (prev <= 0) the change is undefined and reported
// as zero.
func PercentChange(prev, value float64) float64 {
	if prev <= 0 {
		return 0
	}
	return (value - prev) / prev * 100
}

// Classify reports whether a freshly aggregated index value is anomalous
// relative to its previous accepted value. Pure and deterministic: the same
// (prev, value) pair always yields the same verdict.
func Classify(prev, value float64) bool {
	if value > AbsoluteThreshold {
		return true
	}
	if prev <= 0 {
		// First accepted value: no trend to compare against.
		return false
	}
	return math.Abs(PercentChange(prev, value)) > PercentChangeThreshold
}
