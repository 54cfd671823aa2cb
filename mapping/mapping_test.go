package mapping

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-reactive/features"
)

const frameDT = 1.0 / 60

func loudSnapshot() *features.Snapshot {
	s := &features.Snapshot{Volume: 0.8, RMS: 0.8}
	for i := range s.SmoothBands {
		s.SmoothBands[i] = 0.9
		s.Bands[i] = 0.9
	}
	s.Energy3 = features.Energy3{Low: 0.9, Mid: 0.9, High: 0.9}
	return s
}

func TestShape(t *testing.T) {
	cases := []struct {
		v, want float64
	}{
		{0.4, 0},
		{0.5, 0},
		{0.75, 0.25},
		{1.0, 1.0},
	}
	for _, c := range cases {
		got := Shape(c.v, 0.5, 2)
		if math.Abs(got-c.want) > 1e-4 {
			t.Fatalf("Shape(%v, 0.5, 2)=%f want %f", c.v, got, c.want)
		}
	}
	if got := Shape(math.NaN(), 0.05, 1.2); got != 0 {
		t.Fatalf("NaN input should shape to 0, got %f", got)
	}
}

func TestBloomBeatBoostDecaysToBaseline(t *testing.T) {
	c, err := NewEffectsController(Patch{Multipliers: map[string]float64{"bloom": 1.5}}, nil)
	if err != nil {
		t.Fatalf("NewEffectsController: %v", err)
	}
	silent := &features.Snapshot{}
	var ev features.BeatEvent
	ev.Bands[features.Bass] = 1.0
	ev.Strength = 0.5
	c.OnBeat(ev)

	p := c.Update(silent, 0)
	want := 0.9 + 1.0*1.5*1.5
	if math.Abs(p.Bloom-want) > 1e-9 {
		t.Fatalf("bloom=%f want %f", p.Bloom, want)
	}
	if math.Abs(p.Glitch-0.5) > 1e-9 {
		t.Fatalf("glitch=%f want 0.5", p.Glitch)
	}

	prev := p.Bloom
	for i := 0; i < 120; i++ {
		p = c.Update(silent, frameDT)
		if p.Bloom > prev {
			t.Fatalf("frame %d: bloom rose from %f to %f", i, prev, p.Bloom)
		}
		prev = p.Bloom
	}
	if math.Abs(p.Bloom-0.9) > 1e-12 {
		t.Fatalf("bloom should settle at baseline 0.9, got %f", p.Bloom)
	}
	if c.Boost("glitch") != 0 {
		t.Fatalf("glitch boost should have decayed, got %f", c.Boost("glitch"))
	}
}

func TestBoostTakesMaxOnRepeatedBeats(t *testing.T) {
	c, _ := NewEffectsController(Patch{}, nil)
	var big, small features.BeatEvent
	big.Bands[features.Bass] = 1
	small.Bands[features.Bass] = 0.2
	c.OnBeat(big)
	c.OnBeat(small)
	if got := c.Boost("bloom"); math.Abs(got-1.5) > 1e-12 {
		t.Fatalf("bloom boost=%f want 1.5", got)
	}
}

func TestExponentialDecayIsMonotoneAndReachesZero(t *testing.T) {
	mode := DecayExponential
	c, err := NewMaterialController(Patch{DecayMode: &mode}, nil)
	if err != nil {
		t.Fatalf("NewMaterialController: %v", err)
	}
	var ev features.BeatEvent
	ev.Bands[features.Bass] = 1
	c.OnBeat(ev)
	prev := c.Boost("jitter")
	if math.Abs(prev-0.08) > 1e-12 {
		t.Fatalf("jitter boost=%f want 0.08", prev)
	}
	silent := &features.Snapshot{}
	for i := 0; i < 600; i++ {
		c.Update(silent, frameDT)
		b := c.Boost("jitter")
		if b > prev {
			t.Fatalf("frame %d: boost rose from %f to %f", i, prev, b)
		}
		prev = b
	}
	if prev != 0 {
		t.Fatalf("exponential boost should snap to 0, got %g", prev)
	}
}

func TestSilentInputKeepsBaselines(t *testing.T) {
	eff, _ := NewEffectsController(Patch{}, nil)
	mat, _ := NewMaterialController(Patch{}, nil)
	silent := &features.Snapshot{}
	for i := 0; i < 100; i++ {
		eff.Update(silent, frameDT)
		mat.Update(silent, frameDT)
	}
	if !eff.Reactive() {
		t.Fatalf("enabled controller with a snapshot should be reactive")
	}
	for _, c := range []*Controller{eff.Controller, mat.Controller} {
		base := c.Baseline()
		for k, v := range c.Values() {
			if v != base[k] {
				t.Fatalf("%s=%f moved off baseline %f on silence", k, v, base[k])
			}
		}
	}
	p := mat.Update(silent, frameDT)
	if p.Contrast != 1 || p.Saturation != 1 || p.MathFreq != 6 {
		t.Fatalf("multiplicative baselines wrong: %+v", p)
	}
}

func TestIdleReturnsBaselines(t *testing.T) {
	c, _ := NewEffectsController(Patch{Enabled: Bool(false)}, map[string]float64{"bloom": 0.3})
	p := c.Update(loudSnapshot(), frameDT)
	if p.Bloom != 0.3 || p.Vignette != 0.45 {
		t.Fatalf("disabled controller should rest at baseline, got %+v", p)
	}
	if c.Reactive() {
		t.Fatalf("disabled controller reported reactive")
	}

	on, _ := NewEffectsController(Patch{}, nil)
	if got := on.Update(nil, frameDT); got.Bloom != 0.9 {
		t.Fatalf("nil snapshot should yield baseline bloom, got %f", got.Bloom)
	}
}

func TestLoudInputRaisesParameters(t *testing.T) {
	c, _ := NewMaterialController(Patch{}, nil)
	var p MaterialParams
	for i := 0; i < 120; i++ {
		p = c.Update(loudSnapshot(), frameDT)
	}
	if p.DepthScale <= 0.25 || p.NoiseAmp <= 0.025 || p.MathFreq <= 6 {
		t.Fatalf("expected reactive parameters above baseline, got %+v", p)
	}
	if p.Contrast != 1 {
		t.Fatalf("contrast has zero multiplier and should stay at 1, got %f", p.Contrast)
	}
}

func TestEmptyPatchIsIdempotent(t *testing.T) {
	a, _ := NewMaterialController(Patch{}, nil)
	b, _ := NewMaterialController(Patch{}, nil)
	var ev features.BeatEvent
	ev.Bands[features.Bass] = 0.7
	for i := 0; i < 30; i++ {
		s := loudSnapshot()
		if i%2 == 0 {
			s = &features.Snapshot{}
		}
		if i == 10 {
			a.OnBeat(ev)
			b.OnBeat(ev)
		}
		if i == 15 {
			if err := b.SetMapping(Patch{}); err != nil {
				t.Fatalf("SetMapping: %v", err)
			}
			if err := b.SetBaseline(nil); err != nil {
				t.Fatalf("SetBaseline: %v", err)
			}
		}
		pa := a.Update(s, frameDT)
		pb := b.Update(s, frameDT)
		if pa != pb {
			t.Fatalf("frame %d: outputs diverged\n%+v\n%+v", i, pa, pb)
		}
	}
}

func TestConfigChangesKeepState(t *testing.T) {
	c, _ := NewEffectsController(Patch{}, nil)
	for i := 0; i < 20; i++ {
		c.Update(loudSnapshot(), frameDT)
	}
	var ev features.BeatEvent
	ev.Bands[features.Bass] = 1
	c.OnBeat(ev)
	bass := c.Smoothed(Bass)
	boost := c.Boost("bloom")

	if err := c.SetMapping(Patch{Threshold: Float(0.2), Multipliers: map[string]float64{"chroma": 0.01}}); err != nil {
		t.Fatalf("SetMapping: %v", err)
	}
	if err := c.SetBaseline(map[string]float64{"vignette": 0.6}); err != nil {
		t.Fatalf("SetBaseline: %v", err)
	}
	if c.Smoothed(Bass) != bass || c.Boost("bloom") != boost {
		t.Fatalf("config change reset state: bass %f->%f boost %f->%f", bass, c.Smoothed(Bass), boost, c.Boost("bloom"))
	}
	if c.Mapping().Multipliers["chroma"] != 0.01 || c.Mapping().Multipliers["bloom"] != 1.0 {
		t.Fatalf("partial multiplier merge wrong: %v", c.Mapping().Multipliers)
	}
}

func TestInvalidMappingRejected(t *testing.T) {
	_, err := NewEffectsController(Patch{Smoothing: Float(-0.1)}, nil)
	if !errors.Is(err, ErrInvalidMapping) {
		t.Fatalf("expected ErrInvalidMapping for negative smoothing, got %v", err)
	}
	_, err = NewEffectsController(Patch{Threshold: Float(1)}, nil)
	if !errors.Is(err, ErrInvalidMapping) {
		t.Fatalf("expected ErrInvalidMapping for threshold 1, got %v", err)
	}
	_, err = NewMaterialController(Patch{Multipliers: map[string]float64{"bloom": 1}}, nil)
	if !errors.Is(err, ErrUnknownParameter) {
		t.Fatalf("expected ErrUnknownParameter, got %v", err)
	}
	_, err = NewMaterialController(Patch{}, map[string]float64{"sparkle": 1})
	if !errors.Is(err, ErrUnknownParameter) {
		t.Fatalf("expected ErrUnknownParameter for baseline, got %v", err)
	}

	c, _ := NewEffectsController(Patch{}, nil)
	if err := c.SetMapping(Patch{Power: Float(0)}); err == nil {
		t.Fatalf("expected error for zero power")
	}
	if c.Mapping().Power != DefaultPower {
		t.Fatalf("failed SetMapping modified power to %f", c.Mapping().Power)
	}
}

func TestParseDecayMode(t *testing.T) {
	if m, err := ParseDecayMode("Exponential"); err != nil || m != DecayExponential {
		t.Fatalf("ParseDecayMode(Exponential)=%v,%v", m, err)
	}
	if m, err := ParseDecayMode(""); err != nil || m != DecayLinear {
		t.Fatalf("empty decay mode should default to linear, got %v,%v", m, err)
	}
	if _, err := ParseDecayMode("cubic"); !errors.Is(err, ErrInvalidMapping) {
		t.Fatalf("expected ErrInvalidMapping, got %v", err)
	}
}

func TestColorPreset(t *testing.T) {
	c, _ := NewMaterialController(Patch{}, nil)
	if err := c.ApplyColorPreset("noir"); err != nil {
		t.Fatalf("ApplyColorPreset: %v", err)
	}
	p := c.Update(&features.Snapshot{}, frameDT)
	if p.Contrast != 1.5 || p.Saturation != 0.3 || p.Brightness != -0.2 {
		t.Fatalf("noir grade not applied: %+v", p)
	}
	if err := c.ApplyColorPreset("sepia"); !errors.Is(err, ErrUnknownParameter) {
		t.Fatalf("expected unknown preset error, got %v", err)
	}
	names := ColorPresetNames()
	if len(names) != 10 || names[0] != "arctic" {
		t.Fatalf("unexpected preset names %v", names)
	}
}

func TestZeroBeatDecayRejected(t *testing.T) {
	_, err := NewEffectsController(Patch{BeatDecay: map[string]float64{"bloom": 0}}, nil)
	if !errors.Is(err, ErrInvalidMapping) {
		t.Fatalf("expected ErrInvalidMapping for zero bloom decay, got %v", err)
	}
	c, _ := NewMaterialController(Patch{}, nil)
	if err := c.SetMapping(Patch{BeatDecay: map[string]float64{"jitter": 0}}); !errors.Is(err, ErrInvalidMapping) {
		t.Fatalf("expected ErrInvalidMapping for zero jitter decay, got %v", err)
	}
	if c.Mapping().BeatDecay["jitter"] != 2.0 {
		t.Fatalf("failed SetMapping changed jitter decay to %f", c.Mapping().BeatDecay["jitter"])
	}
}

func TestBoostStrictlyDecreasesUntilZero(t *testing.T) {
	c, _ := NewEffectsController(Patch{}, nil)
	var ev features.BeatEvent
	ev.Bands[features.Bass] = 1
	c.OnBeat(ev)
	prev := c.Boost("bloom")
	for i := 0; i < 600 && prev > 0; i++ {
		c.Update(&features.Snapshot{}, frameDT)
		got := c.Boost("bloom")
		if got >= prev {
			t.Fatalf("frame %d: boost %f did not fall below %f", i, got, prev)
		}
		prev = got
	}
	if prev != 0 {
		t.Fatalf("boost stuck at %f after 10s", prev)
	}
}

func TestZeroMultiplierKeepsBeatBoost(t *testing.T) {
	c, err := NewEffectsController(Patch{Multipliers: map[string]float64{"bloom": 0, "glitch": 0}}, nil)
	if err != nil {
		t.Fatalf("NewEffectsController: %v", err)
	}
	var ev features.BeatEvent
	ev.Bands[features.Bass] = 1
	ev.Strength = 0.4
	c.OnBeat(ev)
	if got := c.Boost("bloom"); math.Abs(got-1.5) > 1e-12 {
		t.Fatalf("bloom boost=%f want 1.5", got)
	}
	if got := c.Boost("glitch"); math.Abs(got-0.4) > 1e-12 {
		t.Fatalf("glitch boost=%f want 0.4", got)
	}
	p := c.Update(loudSnapshot(), 0)
	if math.Abs(p.Bloom-(0.9+1.5)) > 1e-9 {
		t.Fatalf("bloom=%f want baseline plus boost only", p.Bloom)
	}
}
