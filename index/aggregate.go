package index

import (
	"github.com/ljmasx/SignalSlice/location"
	"github.com/ljmasx/SignalSlice/sampler"
)

// Aggregate is the per-pool outcome of one scan: mean raw busyness and the
// number of locations that produced usable data.
type Aggregate struct {
	PizzaPct     float64
	BarPct       float64
	PizzaSamples int
	BarSamples   int
}

// Compute averages usable readings into the two pools. Readings without
// data, and readings for unknown locations, are excluded. A pool with zero
// usable readings reports zero samples; the caller retains the previous
// index value in that case rather than collapsing it.
func Compute(readings []sampler.Reading, set *location.Set) Aggregate {
	var agg Aggregate
	var pizzaSum, barSum float64
	for _, r := range readings {
		if !r.HasData {
			continue
		}
		switch set.PoolOf(r.LocationID) {
		case location.PoolPizza:
			pizzaSum += float64(r.Busyness)
			agg.PizzaSamples++
		case location.PoolBar:
			barSum += float64(r.Busyness)
			agg.BarSamples++
		}
	}
	if agg.PizzaSamples > 0 {
		agg.PizzaPct = pizzaSum / float64(agg.PizzaSamples)
	}
	if agg.BarSamples > 0 {
		agg.BarPct = barSum / float64(agg.BarSamples)
	}
	return agg
}

// PizzaIndex is the normalized pizza index for this aggregate.
func (a Aggregate) PizzaIndex() float64 {
	return Normalize(a.PizzaPct)
}

// BarIndex is the normalized (inverted) gay bar index for this aggregate.
func (a Aggregate) BarIndex() float64 {
	return NormalizeInverted(a.BarPct)
}
