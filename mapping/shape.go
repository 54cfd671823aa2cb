package mapping

import (
	"math"

	"github.com/cwbudde/algo-approx"

	"github.com/cwbudde/algo-reactive/features"
)

// Shape maps a feature in [0,1] to a response curve: values at or below
// threshold give 0, the remainder is rescaled to [0,1] and raised to power.
func Shape(v, threshold, power float64) float64 {
	x := (v - threshold) / (1 - threshold + 1e-6)
	if !(x > 0) {
		return 0
	}
	return math.Pow(x, power)
}

// Feature names one smoothed input a parameter can follow.
type Feature int

const (
	FeatureNone Feature = iota - 1
	Volume
	Bass
	Mid
	Treble
	Low
	High
	LowMid
	HighMid

	numFeatures = 8
)

var featureNames = [numFeatures]string{"volume", "bass", "mid", "treble", "low", "high", "lowMid", "highMid"}

func (f Feature) String() string {
	if f < 0 || int(f) >= numFeatures {
		return "none"
	}
	return featureNames[f]
}

// featureTargets reads the controller inputs from a snapshot. Band inputs
// come from the extractor's smoothed bands, low/high from its 3-way grouping.
func featureTargets(s *features.Snapshot, sensitivity float64, dst *[numFeatures]float64) {
	dst[Volume] = s.Volume * sensitivity
	dst[Bass] = s.SmoothBands[features.Bass]
	dst[Mid] = s.SmoothBands[features.Mid]
	dst[Treble] = s.SmoothBands[features.Treble]
	dst[Low] = s.Energy3.Low
	dst[High] = s.Energy3.High
	dst[LowMid] = s.SmoothBands[features.LowMid]
	dst[HighMid] = s.SmoothBands[features.HighMid]
	for i, v := range dst {
		if !finite(v) {
			dst[i] = 0
		}
	}
}

// boostFloor is where exponential decay snaps to zero.
const boostFloor = 1e-4

func decayBoost(b, rate, dt float64, mode DecayMode) float64 {
	if b <= 0 {
		return 0
	}
	if mode == DecayExponential {
		b *= float64(approx.FastExp(float32(-rate * dt)))
		if b < boostFloor {
			return 0
		}
		return b
	}
	return math.Max(0, b-dt*rate)
}
