package features

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidTuning is returned when a Tuning fails validation.
var ErrInvalidTuning = errors.New("invalid extractor tuning")

// Tuning holds the extractor's named constants. The defaults reproduce the
// responsiveness the visuals were tuned against.
type Tuning struct {
	Sensitivity float64 // user gain; values below 0.1 act as 0.1

	Attack    float64 // rising coefficient, divided by sensitivity
	MinAttack float64 // lower bound of the effective attack coefficient
	Release   float64 // falling coefficient

	PeakDecay    float64 // per-frame geometric decay of band peak-holds
	BandExponent float64 // exponent applied to band RMS

	FluxHistory    int           // frames in the adaptive threshold window
	ThresholdScale float64       // stddev multiplier, scaled by sensitivity
	MinStdDev      float64       // floor for the flux stddev
	Refractory     time.Duration // minimum spacing between beats

	CopyFFT bool // publish a copy of the magnitude buffer instead of the live one
}

const minSensitivity = 0.1

// DefaultTuning returns the stock extractor constants.
func DefaultTuning() Tuning {
	return Tuning{
		Sensitivity:    1.0,
		Attack:         0.38,
		MinAttack:      0.01,
		Release:        0.12,
		PeakDecay:      0.92,
		BandExponent:   1.05,
		FluxHistory:    43,
		ThresholdScale: 1.5,
		MinStdDev:      0.01,
		Refractory:     150 * time.Millisecond,
	}
}

// Validate reports the first out-of-range field.
func (t Tuning) Validate() error {
	switch {
	case !finite(t.Sensitivity):
		return fmt.Errorf("%w: sensitivity must be finite", ErrInvalidTuning)
	case !finite(t.Attack) || t.Attack <= 0:
		return fmt.Errorf("%w: attack must be > 0", ErrInvalidTuning)
	case !finite(t.MinAttack) || t.MinAttack <= 0 || t.MinAttack > 1:
		return fmt.Errorf("%w: min attack must be in (0,1]", ErrInvalidTuning)
	case !finite(t.Release) || t.Release <= 0 || t.Release > 1:
		return fmt.Errorf("%w: release must be in (0,1]", ErrInvalidTuning)
	case !finite(t.PeakDecay) || t.PeakDecay < 0 || t.PeakDecay >= 1:
		return fmt.Errorf("%w: peak decay must be in [0,1)", ErrInvalidTuning)
	case !finite(t.BandExponent) || t.BandExponent <= 0:
		return fmt.Errorf("%w: band exponent must be > 0", ErrInvalidTuning)
	case t.FluxHistory < 1:
		return fmt.Errorf("%w: flux history must be >= 1", ErrInvalidTuning)
	case !finite(t.ThresholdScale) || t.ThresholdScale < 0:
		return fmt.Errorf("%w: threshold scale must be >= 0", ErrInvalidTuning)
	case !finite(t.MinStdDev) || t.MinStdDev < 0:
		return fmt.Errorf("%w: min stddev must be >= 0", ErrInvalidTuning)
	case t.Refractory < 0:
		return fmt.Errorf("%w: refractory must be >= 0", ErrInvalidTuning)
	}
	return nil
}

// effectiveSensitivity keeps sensitivity from flipping the smoothing direction.
func (t Tuning) effectiveSensitivity() float64 {
	if !(t.Sensitivity > minSensitivity) {
		return minSensitivity
	}
	return t.Sensitivity
}

// attackCoeff is the rising coefficient for the current sensitivity.
func (t Tuning) attackCoeff() float64 {
	a := t.Attack / t.effectiveSensitivity()
	if a < t.MinAttack {
		a = t.MinAttack
	}
	if a > 1 {
		a = 1
	}
	return a
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
