// Package mapping turns feature snapshots into visual parameter values.
//
// A Controller owns a smoothed copy of the features it reads, a set of
// beat-driven boost accumulators, a Mapping (how strongly each parameter
// reacts) and a baseline (where each parameter rests). Effects and material
// controllers are the same algorithm over different parameter layouts.
package mapping

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrInvalidMapping is returned when a mapping field is out of range.
	ErrInvalidMapping = errors.New("invalid mapping")
	// ErrUnknownParameter is returned for multiplier, decay or baseline keys
	// the controller does not drive.
	ErrUnknownParameter = errors.New("unknown parameter")
)

// DecayMode selects how boost accumulators fall back to zero.
type DecayMode int

const (
	// DecayLinear subtracts rate*dt per update.
	DecayLinear DecayMode = iota
	// DecayExponential multiplies by exp(-rate*dt) per update.
	DecayExponential
)

func (m DecayMode) String() string {
	switch m {
	case DecayLinear:
		return "linear"
	case DecayExponential:
		return "exponential"
	default:
		return "unknown"
	}
}

// ParseDecayMode accepts "linear" or "exponential" (case-insensitive).
func ParseDecayMode(s string) (DecayMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "linear":
		return DecayLinear, nil
	case "exponential", "exp":
		return DecayExponential, nil
	}
	return DecayLinear, fmt.Errorf("%w: decay mode %q", ErrInvalidMapping, s)
}

// Stock values shared by every layout.
const (
	DefaultSmoothing   = 0.12
	DefaultSensitivity = 1.0
	DefaultThreshold   = 0.05
	DefaultPower       = 1.2
)

// Mapping is the full reaction configuration of a controller.
type Mapping struct {
	Enabled     bool
	Sensitivity float64 // volume gain
	Threshold   float64 // shape threshold in [0,1)
	Power       float64 // shape exponent
	Smoothing   float64 // lerp fraction per update in [0,1]
	DecayMode   DecayMode

	// Multipliers scale each parameter's shaped feature (and, for boosted
	// parameters, the beat trigger). Keys are parameter names.
	Multipliers map[string]float64
	// BeatDecay holds the decay rate per second of each boost accumulator.
	BeatDecay map[string]float64
}

// Patch is a partial Mapping. Nil fields and absent map keys keep their
// current values.
type Patch struct {
	Enabled     *bool
	Sensitivity *float64
	Threshold   *float64
	Power       *float64
	Smoothing   *float64
	DecayMode   *DecayMode
	Multipliers map[string]float64
	BeatDecay   map[string]float64
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Enabled == nil && p.Sensitivity == nil && p.Threshold == nil &&
		p.Power == nil && p.Smoothing == nil && p.DecayMode == nil &&
		len(p.Multipliers) == 0 && len(p.BeatDecay) == 0
}

// Clone returns a deep copy.
func (m Mapping) Clone() Mapping {
	out := m
	out.Multipliers = cloneMap(m.Multipliers)
	out.BeatDecay = cloneMap(m.BeatDecay)
	return out
}

// Apply returns a copy of m with p merged in.
func (m Mapping) Apply(p Patch) Mapping {
	out := m.Clone()
	if p.Enabled != nil {
		out.Enabled = *p.Enabled
	}
	if p.Sensitivity != nil {
		out.Sensitivity = *p.Sensitivity
	}
	if p.Threshold != nil {
		out.Threshold = *p.Threshold
	}
	if p.Power != nil {
		out.Power = *p.Power
	}
	if p.Smoothing != nil {
		out.Smoothing = *p.Smoothing
	}
	if p.DecayMode != nil {
		out.DecayMode = *p.DecayMode
	}
	if len(p.Multipliers) > 0 && out.Multipliers == nil {
		out.Multipliers = make(map[string]float64, len(p.Multipliers))
	}
	for k, v := range p.Multipliers {
		out.Multipliers[k] = v
	}
	if len(p.BeatDecay) > 0 && out.BeatDecay == nil {
		out.BeatDecay = make(map[string]float64, len(p.BeatDecay))
	}
	for k, v := range p.BeatDecay {
		out.BeatDecay[k] = v
	}
	return out
}

// Validate checks value ranges. Key names are checked by the controller.
func (m Mapping) Validate() error {
	switch {
	case !finite(m.Sensitivity) || m.Sensitivity <= 0:
		return fmt.Errorf("%w: sensitivity must be > 0", ErrInvalidMapping)
	case !finite(m.Threshold) || m.Threshold < 0 || m.Threshold >= 1:
		return fmt.Errorf("%w: threshold must be in [0,1)", ErrInvalidMapping)
	case !finite(m.Power) || m.Power <= 0:
		return fmt.Errorf("%w: power must be > 0", ErrInvalidMapping)
	case !finite(m.Smoothing) || m.Smoothing < 0 || m.Smoothing > 1:
		return fmt.Errorf("%w: smoothing must be in [0,1]", ErrInvalidMapping)
	case m.DecayMode != DecayLinear && m.DecayMode != DecayExponential:
		return fmt.Errorf("%w: decay mode %d", ErrInvalidMapping, m.DecayMode)
	}
	for k, v := range m.Multipliers {
		if !finite(v) {
			return fmt.Errorf("%w: multiplier %s must be finite", ErrInvalidMapping, k)
		}
	}
	for k, v := range m.BeatDecay {
		if !finite(v) || v <= 0 {
			return fmt.Errorf("%w: beat decay %s must be > 0", ErrInvalidMapping, k)
		}
	}
	return nil
}

// Float returns a pointer to v, for building patches.
func Float(v float64) *float64 { return &v }

// Bool returns a pointer to v, for building patches.
func Bool(v bool) *bool { return &v }

func cloneMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
