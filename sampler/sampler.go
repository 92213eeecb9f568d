// Package sampler defines the busyness sampling boundary and provides the
// Google Maps popular-times implementation. Failures are values: a location
// that cannot be read yields a Reading with HasData=false, never an error
// that aborts the scan.
package sampler

import (
	"context"
	"time"

	"github.com/ljmasx/SignalSlice/location"
)

// Data sources, in priority order.
const (
	SourceLive       = "live"
	SourceHistorical = "historical"
	SourceNone       = "none"
)

// Reading is one location's busyness for the current scan. Ephemeral: it is
// not retained beyond aggregation (the optional history store archives it).
type Reading struct {
	LocationID string    `json:"location_id"`
	Busyness   int       `json:"busyness"` // 0–100, valid only when HasData
	HasData    bool      `json:"has_data"`
	Source     string    `json:"source"`
	Err        string    `json:"err,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}

// Sampler produces one Reading per location. Implementations must return a
// slice of the same length as locs, must not panic on transient failures,
// and should honor ctx deadlines per location rather than wholesale.
type Sampler interface {
	Sample(ctx context.Context, locs []location.Location) []Reading
}

// Static is a fixed-value sampler for tests and demo mode. Locations absent
// from Values yield no data.
type Static struct {
	Values map[string]int
}

// Sample returns the configured busyness per location.
func (s *Static) Sample(_ context.Context, locs []location.Location) []Reading {
	now := time.Now()
	readings := make([]Reading, 0, len(locs))
	for _, loc := range locs {
		r := Reading{LocationID: loc.ID, Source: SourceNone, CapturedAt: now}
		if v, ok := s.Values[loc.ID]; ok {
			r.Busyness = v
			r.HasData = true
			r.Source = SourceLive
		}
		readings = append(readings, r)
	}
	return readings
}
