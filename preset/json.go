package preset

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/cwbudde/algo-reactive/mapping"
	"github.com/cwbudde/algo-reactive/reactive"
)

// File is the JSON schema for reactive presets. Every field is optional and
// overrides the defaults it names.
type File struct {
	Analyser  *AnalyserSetting   `json:"analyser,omitempty"`
	Extractor *ExtractorSetting  `json:"extractor,omitempty"`
	Effects   *ControllerSetting `json:"effects,omitempty"`
	Material  *ControllerSetting `json:"material,omitempty"`
}

// AnalyserSetting overrides the analyser node attributes.
type AnalyserSetting struct {
	FFTSize   *int     `json:"fft_size,omitempty"`
	Smoothing *float64 `json:"smoothing,omitempty"`
	MinDB     *float64 `json:"min_db,omitempty"`
	MaxDB     *float64 `json:"max_db,omitempty"`
}

// ExtractorSetting overrides feature extractor tuning.
type ExtractorSetting struct {
	Sensitivity    *float64 `json:"sensitivity,omitempty"`
	Attack         *float64 `json:"attack,omitempty"`
	Release        *float64 `json:"release,omitempty"`
	PeakDecay      *float64 `json:"peak_decay,omitempty"`
	BandExponent   *float64 `json:"band_exponent,omitempty"`
	FluxHistory    *int     `json:"flux_history,omitempty"`
	ThresholdScale *float64 `json:"threshold_scale,omitempty"`
	MinStdDev      *float64 `json:"min_stddev,omitempty"`
	RefractoryMs   *float64 `json:"refractory_ms,omitempty"`
	CopyFFT        *bool    `json:"copy_fft,omitempty"`
}

// ControllerSetting is a partial controller mapping plus baseline overrides.
type ControllerSetting struct {
	Enabled     *bool              `json:"enabled,omitempty"`
	Sensitivity *float64           `json:"sensitivity,omitempty"`
	Threshold   *float64           `json:"threshold,omitempty"`
	Power       *float64           `json:"power,omitempty"`
	Smoothing   *float64           `json:"smoothing,omitempty"`
	DecayMode   string             `json:"decay_mode,omitempty"`
	Multipliers map[string]float64 `json:"multipliers,omitempty"`
	BeatDecay   map[string]float64 `json:"beat_decay,omitempty"`
	Baseline    map[string]float64 `json:"baseline,omitempty"`
	ColorPreset string             `json:"color_preset,omitempty"`
}

// Parse decodes a preset file.
func Parse(b []byte) (*File, error) {
	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// LoadJSON loads a preset JSON file and applies it on top of the default
// pipeline configuration.
func LoadJSON(path string) (reactive.Config, error) {
	cfg := reactive.DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	f, err := Parse(b)
	if err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	if err := ApplyFile(&cfg, f); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ApplyFile applies a parsed preset onto an existing configuration.
func ApplyFile(dst *reactive.Config, f *File) error {
	if dst == nil {
		return fmt.Errorf("nil destination config")
	}
	if f == nil {
		return nil
	}
	if err := applyAnalyser(dst, f.Analyser); err != nil {
		return err
	}
	if err := applyExtractor(dst, f.Extractor); err != nil {
		return err
	}
	if f.Effects != nil {
		if f.Effects.ColorPreset != "" {
			return fmt.Errorf("effects.color_preset is only valid for material")
		}
		if err := applyController("effects", mapping.EffectsLayout(), &dst.Effects, &dst.EffectsBaseline, f.Effects); err != nil {
			return err
		}
	}
	if f.Material != nil {
		if err := applyController("material", mapping.MaterialLayout(), &dst.Material, &dst.MaterialBaseline, f.Material); err != nil {
			return err
		}
		if name := strings.TrimSpace(f.Material.ColorPreset); name != "" {
			if _, err := mapping.ColorPreset(name); err != nil {
				return fmt.Errorf("material.color_preset: %w", err)
			}
			dst.ColorPreset = name
		}
	}
	return nil
}

func applyAnalyser(dst *reactive.Config, s *AnalyserSetting) error {
	if s == nil {
		return nil
	}
	a := dst.Analyser
	if s.FFTSize != nil {
		a.FFTSize = *s.FFTSize
	}
	if s.Smoothing != nil {
		a.Smoothing = *s.Smoothing
	}
	if s.MinDB != nil {
		a.MinDB = *s.MinDB
	}
	if s.MaxDB != nil {
		a.MaxDB = *s.MaxDB
	}
	if err := a.Validate(); err != nil {
		return fmt.Errorf("analyser: %w", err)
	}
	dst.Analyser = a
	return nil
}

func applyExtractor(dst *reactive.Config, s *ExtractorSetting) error {
	if s == nil {
		return nil
	}
	t := dst.Tuning
	if s.Sensitivity != nil {
		if *s.Sensitivity <= 0 {
			return fmt.Errorf("extractor.sensitivity must be > 0")
		}
		t.Sensitivity = *s.Sensitivity
	}
	if s.Attack != nil {
		t.Attack = *s.Attack
	}
	if s.Release != nil {
		t.Release = *s.Release
	}
	if s.PeakDecay != nil {
		t.PeakDecay = *s.PeakDecay
	}
	if s.BandExponent != nil {
		t.BandExponent = *s.BandExponent
	}
	if s.FluxHistory != nil {
		t.FluxHistory = *s.FluxHistory
	}
	if s.ThresholdScale != nil {
		t.ThresholdScale = *s.ThresholdScale
	}
	if s.MinStdDev != nil {
		t.MinStdDev = *s.MinStdDev
	}
	if s.RefractoryMs != nil {
		if *s.RefractoryMs < 0 {
			return fmt.Errorf("extractor.refractory_ms must be >= 0")
		}
		t.Refractory = time.Duration(*s.RefractoryMs * float64(time.Millisecond))
	}
	if s.CopyFFT != nil {
		t.CopyFFT = *s.CopyFFT
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("extractor: %w", err)
	}
	dst.Tuning = t
	return nil
}

func applyController(key string, layout mapping.Layout, patch *mapping.Patch, baseline *map[string]float64, s *ControllerSetting) error {
	next := *patch
	if s.Enabled != nil {
		next.Enabled = s.Enabled
	}
	if s.Sensitivity != nil {
		next.Sensitivity = s.Sensitivity
	}
	if s.Threshold != nil {
		next.Threshold = s.Threshold
	}
	if s.Power != nil {
		next.Power = s.Power
	}
	if s.Smoothing != nil {
		next.Smoothing = s.Smoothing
	}
	if s.DecayMode != "" {
		mode, err := mapping.ParseDecayMode(s.DecayMode)
		if err != nil {
			return fmt.Errorf("%s.decay_mode: %w", key, err)
		}
		next.DecayMode = &mode
	}
	next.Multipliers = mergeValues(patch.Multipliers, s.Multipliers)
	next.BeatDecay = mergeValues(patch.BeatDecay, s.BeatDecay)
	base := mergeValues(*baseline, s.Baseline)

	// Building a throwaway controller checks key names and ranges the same
	// way the engine will.
	if _, err := mapping.NewController(layout, next, base); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*patch = next
	*baseline = base
	return nil
}

func mergeValues(dst, src map[string]float64) map[string]float64 {
	if len(src) == 0 {
		return dst
	}
	out := make(map[string]float64, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		out[k] = v
	}
	return out
}

// FromConfig expands cfg into a fully populated preset file.
func FromConfig(cfg reactive.Config) *File {
	a := cfg.Analyser
	t := cfg.Tuning
	refractory := float64(t.Refractory) / float64(time.Millisecond)
	fluxHistory := t.FluxHistory
	fftSize := a.FFTSize
	f := &File{
		Analyser: &AnalyserSetting{
			FFTSize:   &fftSize,
			Smoothing: &a.Smoothing,
			MinDB:     &a.MinDB,
			MaxDB:     &a.MaxDB,
		},
		Extractor: &ExtractorSetting{
			Sensitivity:    &t.Sensitivity,
			Attack:         &t.Attack,
			Release:        &t.Release,
			PeakDecay:      &t.PeakDecay,
			BandExponent:   &t.BandExponent,
			FluxHistory:    &fluxHistory,
			ThresholdScale: &t.ThresholdScale,
			MinStdDev:      &t.MinStdDev,
			RefractoryMs:   &refractory,
			CopyFFT:        &t.CopyFFT,
		},
		Effects:  controllerSetting(mapping.EffectsLayout(), cfg.Effects, cfg.EffectsBaseline),
		Material: controllerSetting(mapping.MaterialLayout(), cfg.Material, cfg.MaterialBaseline),
	}
	f.Material.ColorPreset = cfg.ColorPreset
	return f
}

func controllerSetting(layout mapping.Layout, p mapping.Patch, baseline map[string]float64) *ControllerSetting {
	m := layout.DefaultMapping().Apply(p)
	base := mergeValues(layout.DefaultBaseline(), baseline)
	return &ControllerSetting{
		Enabled:     &m.Enabled,
		Sensitivity: &m.Sensitivity,
		Threshold:   &m.Threshold,
		Power:       &m.Power,
		Smoothing:   &m.Smoothing,
		DecayMode:   m.DecayMode.String(),
		Multipliers: m.Multipliers,
		BeatDecay:   m.BeatDecay,
		Baseline:    base,
	}
}

// Save writes cfg as an indented, fully populated preset.
func Save(path string, cfg reactive.Config) error {
	b, err := json.MarshalIndent(FromConfig(cfg), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}

// Keys lists the parameter names a controller section accepts, for help
// output.
func Keys(section string) []string {
	var layout mapping.Layout
	switch section {
	case "effects":
		layout = mapping.EffectsLayout()
	case "material":
		layout = mapping.MaterialLayout()
	default:
		return nil
	}
	keys := make([]string, 0, len(layout.Params))
	for _, p := range layout.Params {
		keys = append(keys, p.Name)
	}
	sort.Strings(keys)
	return keys
}
