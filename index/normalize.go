// Package index turns raw busyness percentages into the two composite
// indices and classifies each new value against its predecessor.
package index

// Scale bounds for index values.
const (
	Min = 0.0
	Max = 10.0
)

// Normalize maps a busyness percentage (0–100) onto the index scale.
// 0% busy = 0, 100% busy = 10.
func Normalize(pct float64) float64 {
	return clamp(pct / 10)
}

// NormalizeInverted maps a busyness percentage onto the inverted scale used
// by the gay bar index: 0% busy = 10, 100% busy = 0. Empty bars late at
// night are the signal, so the index rises as the venues empty out.
func NormalizeInverted(pct float64) float64 {
	return clamp(Max - pct/10)
}

func clamp(v float64) float64 {
	if v < Min {
		return Min
	}
	if v > Max {
		return Max
	}
	return v
}
