package main

import (
	"math"
	"time"

	"github.com/cwbudde/algo-reactive/features"
)

type knobDef struct {
	Name  string
	Min   float64
	Max   float64
	IsInt bool
}

type candidate struct {
	Vals []float64
}

// initCandidate lists the tunable extractor knobs and seeds them from base.
func initCandidate(base features.Tuning, optimizeShape bool) ([]knobDef, candidate) {
	defs := make([]knobDef, 0, 10)
	vals := make([]float64, 0, 10)
	addKnob := func(def knobDef, val float64) {
		defs = append(defs, def)
		vals = append(vals, val)
	}

	addKnob(knobDef{Name: "sensitivity", Min: 0.1, Max: 4.0}, base.Sensitivity)
	addKnob(knobDef{Name: "threshold_scale", Min: 0.2, Max: 4.0}, base.ThresholdScale)
	addKnob(knobDef{Name: "refractory_ms", Min: 60, Max: 600, IsInt: true}, float64(base.Refractory)/float64(time.Millisecond))
	addKnob(knobDef{Name: "flux_history", Min: 8, Max: 128, IsInt: true}, float64(base.FluxHistory))
	addKnob(knobDef{Name: "min_stddev", Min: 0.001, Max: 0.1}, base.MinStdDev)

	if optimizeShape {
		addKnob(knobDef{Name: "attack", Min: 0.05, Max: 1.0}, base.Attack)
		addKnob(knobDef{Name: "release", Min: 0.02, Max: 1.0}, base.Release)
		addKnob(knobDef{Name: "band_exponent", Min: 0.5, Max: 2.0}, base.BandExponent)
	}

	for i := range vals {
		vals[i] = clamp(vals[i], defs[i].Min, defs[i].Max)
		if defs[i].IsInt {
			vals[i] = math.Round(vals[i])
		}
	}
	return defs, candidate{Vals: vals}
}

// applyCandidate writes c's knob values over a copy of base.
func applyCandidate(base features.Tuning, defs []knobDef, c candidate) features.Tuning {
	t := base
	for i, def := range defs {
		if i >= len(c.Vals) {
			break
		}
		v := c.Vals[i]
		switch def.Name {
		case "sensitivity":
			t.Sensitivity = v
		case "threshold_scale":
			t.ThresholdScale = v
		case "refractory_ms":
			t.Refractory = time.Duration(math.Round(v)) * time.Millisecond
		case "flux_history":
			t.FluxHistory = int(math.Round(v))
		case "min_stddev":
			t.MinStdDev = v
		case "attack":
			t.Attack = v
		case "release":
			t.Release = v
		case "band_exponent":
			t.BandExponent = v
		}
	}
	if t.FluxHistory < 1 {
		t.FluxHistory = 1
	}
	return t
}

func fromNormalized(pos []float64, defs []knobDef) candidate {
	vals := make([]float64, len(defs))
	for i := range defs {
		x := 0.0
		if i < len(pos) {
			x = clamp(pos[i], 0, 1)
		}
		v := defs[i].Min + x*(defs[i].Max-defs[i].Min)
		if defs[i].IsInt {
			v = math.Round(v)
		}
		vals[i] = v
	}
	return candidate{Vals: vals}
}

func knobMap(defs []knobDef, c candidate) map[string]float64 {
	out := make(map[string]float64, len(defs))
	for i, d := range defs {
		out[d.Name] = c.Vals[i]
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
