package mapping

import (
	"fmt"

	"github.com/cwbudde/algo-reactive/dsp"
	"github.com/cwbudde/algo-reactive/features"
)

// Param binds one output parameter to its inputs.
type Param struct {
	Name       string
	Feature    Feature // FeatureNone for boost-only parameters
	Boost      string  // boost accumulator added to the value, "" for none
	Floor      bool    // clamp the result at 0
	Baseline   float64 // resting value
	Multiplier float64 // default multiplier
}

// Boost describes one beat-driven accumulator.
type Boost struct {
	Name  string
	Decay float64 // default decay rate per second
	// Scale names the parameter whose multiplier scales the trigger.
	Scale string
	// Trigger returns the unscaled value the accumulator jumps to on a beat.
	Trigger func(ev features.BeatEvent) float64
}

// Layout is the ordered set of parameters and boosts a controller drives.
type Layout struct {
	Params    []Param
	Boosts    []Boost
	Smoothing float64 // overrides DefaultSmoothing when > 0
}

// DefaultMapping returns the stock mapping for the layout.
func (l Layout) DefaultMapping() Mapping {
	m := Mapping{
		Enabled:     true,
		Sensitivity: DefaultSensitivity,
		Threshold:   DefaultThreshold,
		Power:       DefaultPower,
		Smoothing:   DefaultSmoothing,
		DecayMode:   DecayLinear,
		Multipliers: make(map[string]float64, len(l.Params)),
		BeatDecay:   make(map[string]float64, len(l.Boosts)),
	}
	if l.Smoothing > 0 {
		m.Smoothing = l.Smoothing
	}
	for _, p := range l.Params {
		m.Multipliers[p.Name] = p.Multiplier
	}
	for _, b := range l.Boosts {
		m.BeatDecay[b.Name] = b.Decay
	}
	return m
}

// DefaultBaseline returns the resting value of every parameter.
func (l Layout) DefaultBaseline() map[string]float64 {
	out := make(map[string]float64, len(l.Params))
	for _, p := range l.Params {
		out[p.Name] = p.Baseline
	}
	return out
}

func (l Layout) paramIndex(name string) int {
	for i, p := range l.Params {
		if p.Name == name {
			return i
		}
	}
	return -1
}

func (l Layout) boostIndex(name string) int {
	for i, b := range l.Boosts {
		if b.Name == name {
			return i
		}
	}
	return -1
}

// Controller is the shared controller algorithm. It is not safe for
// concurrent use; it belongs to the frame loop that calls Update.
type Controller struct {
	layout  Layout
	mapping Mapping

	mult       []float64 // per param
	baseline   []float64 // per param
	boostOf    []int     // per param, -1 when unboosted
	decay      []float64 // per boost
	boostScale []int     // per boost, param index or -1

	smoothed [numFeatures]float64
	targets  [numFeatures]float64
	boosts   []float64
	out      []float64
	reactive bool
}

// NewController creates a controller from layout defaults, the given patch and
// baseline overrides.
func NewController(layout Layout, patch Patch, baseline map[string]float64) (*Controller, error) {
	c := &Controller{
		layout:     layout,
		mapping:    layout.DefaultMapping(),
		mult:       make([]float64, len(layout.Params)),
		baseline:   make([]float64, len(layout.Params)),
		boostOf:    make([]int, len(layout.Params)),
		decay:      make([]float64, len(layout.Boosts)),
		boostScale: make([]int, len(layout.Boosts)),
		boosts:     make([]float64, len(layout.Boosts)),
		out:        make([]float64, len(layout.Params)),
	}
	for i, p := range layout.Params {
		c.baseline[i] = p.Baseline
		c.boostOf[i] = -1
		if p.Boost != "" {
			c.boostOf[i] = layout.boostIndex(p.Boost)
			if c.boostOf[i] < 0 {
				return nil, fmt.Errorf("%w: %s boosted by missing %s", ErrUnknownParameter, p.Name, p.Boost)
			}
		}
	}
	for i, b := range layout.Boosts {
		c.boostScale[i] = layout.paramIndex(b.Scale)
	}
	c.syncMapping()
	if err := c.SetMapping(patch); err != nil {
		return nil, err
	}
	if err := c.SetBaseline(baseline); err != nil {
		return nil, err
	}
	copy(c.out, c.baseline)
	return c, nil
}

// SetMapping merges p into the current mapping. Smoothed state and boosts
// carry over unchanged. On error the mapping is left as it was.
func (c *Controller) SetMapping(p Patch) error {
	for k := range p.Multipliers {
		if c.layout.paramIndex(k) < 0 {
			return fmt.Errorf("%w: multiplier %q", ErrUnknownParameter, k)
		}
	}
	for k := range p.BeatDecay {
		if c.layout.boostIndex(k) < 0 {
			return fmt.Errorf("%w: beat decay %q", ErrUnknownParameter, k)
		}
	}
	next := c.mapping.Apply(p)
	if err := next.Validate(); err != nil {
		return err
	}
	c.mapping = next
	c.syncMapping()
	return nil
}

func (c *Controller) syncMapping() {
	for i, p := range c.layout.Params {
		c.mult[i] = c.mapping.Multipliers[p.Name]
	}
	for i, b := range c.layout.Boosts {
		c.decay[i] = c.mapping.BeatDecay[b.Name]
	}
}

// SetBaseline merges resting values. Smoothed state and boosts carry over.
func (c *Controller) SetBaseline(values map[string]float64) error {
	for k, v := range values {
		if c.layout.paramIndex(k) < 0 {
			return fmt.Errorf("%w: baseline %q", ErrUnknownParameter, k)
		}
		if !finite(v) {
			return fmt.Errorf("%w: baseline %s must be finite", ErrInvalidMapping, k)
		}
	}
	for k, v := range values {
		c.baseline[c.layout.paramIndex(k)] = v
	}
	return nil
}

// OnBeat raises each boost to its trigger value if that is larger.
func (c *Controller) OnBeat(ev features.BeatEvent) {
	for i, b := range c.layout.Boosts {
		if b.Trigger == nil {
			continue
		}
		// A zeroed multiplier only mutes the steady-state term; beats still
		// kick at unit scale.
		scale := 1.0
		if j := c.boostScale[i]; j >= 0 && c.mult[j] != 0 {
			scale = c.mult[j]
		}
		v := b.Trigger(ev) * scale
		if finite(v) && v > c.boosts[i] {
			c.boosts[i] = v
		}
	}
}

// HandleBeat adapts OnBeat to a bus subscription.
func (c *Controller) HandleBeat(ev features.BeatEvent) error {
	c.OnBeat(ev)
	return nil
}

// Update advances the controller by dt seconds and returns every parameter in
// layout order. The returned slice is reused by the next call.
//
// With the mapping disabled or no snapshot the baselines are returned and no
// state evolves.
func (c *Controller) Update(s *features.Snapshot, dt float64) []float64 {
	if !c.mapping.Enabled || s == nil {
		c.reactive = false
		copy(c.out, c.baseline)
		return c.out
	}
	c.reactive = true
	if !(dt > 0) {
		dt = 0
	}
	m := &c.mapping

	alpha := dsp.Clamp01(m.Smoothing)
	featureTargets(s, m.Sensitivity, &c.targets)
	for i := range c.smoothed {
		c.smoothed[i] = dsp.Lerp(c.smoothed[i], c.targets[i], alpha)
	}

	for i := range c.boosts {
		c.boosts[i] = decayBoost(c.boosts[i], c.decay[i], dt, m.DecayMode)
	}

	for i, p := range c.layout.Params {
		v := c.baseline[i]
		if p.Feature != FeatureNone {
			v += Shape(dsp.Clamp01(c.smoothed[p.Feature]), m.Threshold, m.Power) * c.mult[i]
		}
		if j := c.boostOf[i]; j >= 0 {
			v += c.boosts[j]
		}
		if p.Floor && v < 0 {
			v = 0
		}
		c.out[i] = v
	}
	return c.out
}

// Values returns the last output keyed by parameter name.
func (c *Controller) Values() map[string]float64 {
	out := make(map[string]float64, len(c.out))
	for i, p := range c.layout.Params {
		out[p.Name] = c.out[i]
	}
	return out
}

// Boost returns the current value of the named accumulator (0 if unknown).
func (c *Controller) Boost(name string) float64 {
	if i := c.layout.boostIndex(name); i >= 0 {
		return c.boosts[i]
	}
	return 0
}

// Smoothed returns the controller's lagged copy of f.
func (c *Controller) Smoothed(f Feature) float64 {
	if f < 0 || int(f) >= numFeatures {
		return 0
	}
	return c.smoothed[f]
}

// Reactive reports whether the last Update ran in reactive mode.
func (c *Controller) Reactive() bool { return c.reactive }

// Mapping returns a copy of the active mapping.
func (c *Controller) Mapping() Mapping { return c.mapping.Clone() }

// Baseline returns the resting values keyed by parameter name.
func (c *Controller) Baseline() map[string]float64 {
	out := make(map[string]float64, len(c.baseline))
	for i, p := range c.layout.Params {
		out[p.Name] = c.baseline[i]
	}
	return out
}

// Layout returns the controller's parameter layout.
func (c *Controller) Layout() Layout { return c.layout }

// Reset zeroes smoothed features and boosts.
func (c *Controller) Reset() {
	c.smoothed = [numFeatures]float64{}
	for i := range c.boosts {
		c.boosts[i] = 0
	}
	copy(c.out, c.baseline)
	c.reactive = false
}
