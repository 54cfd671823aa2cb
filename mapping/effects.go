package mapping

import "github.com/cwbudde/algo-reactive/features"

// bloomBeatGain scales the bass-driven bloom trigger.
const bloomBeatGain = 1.5

// EffectsLayout drives post-processing intensities.
func EffectsLayout() Layout {
	return Layout{
		Params: []Param{
			{Name: "bloom", Feature: Bass, Boost: "bloom", Baseline: 0.9, Multiplier: 1.0},
			{Name: "chroma", Feature: Treble, Baseline: 0.006, Multiplier: 0.004},
			{Name: "vignette", Feature: Mid, Floor: true, Baseline: 0.45, Multiplier: 0.2},
			{Name: "filmGrain", Feature: Mid, Floor: true, Baseline: 0.15, Multiplier: 0.1},
			{Name: "glitch", Feature: FeatureNone, Boost: "glitch", Floor: true, Baseline: 0, Multiplier: 1.0},
		},
		Boosts: []Boost{
			{
				Name: "bloom", Decay: 1.6, Scale: "bloom",
				Trigger: func(ev features.BeatEvent) float64 { return ev.Bands[features.Bass] * bloomBeatGain },
			},
			{
				Name: "glitch", Decay: 3.0, Scale: "glitch",
				Trigger: func(ev features.BeatEvent) float64 { return ev.Strength },
			},
		},
	}
}

// EffectsParams are the post-processing values for one frame.
type EffectsParams struct {
	Bloom     float64 `json:"bloom"`
	Chroma    float64 `json:"chroma"`
	Vignette  float64 `json:"vignette"`
	FilmGrain float64 `json:"film_grain"`
	Glitch    float64 `json:"glitch"`
}

// EffectsController maps features to EffectsParams.
type EffectsController struct {
	*Controller
}

// DefaultEffectsMapping returns the stock effects mapping.
func DefaultEffectsMapping() Mapping {
	return EffectsLayout().DefaultMapping()
}

// NewEffectsController creates an effects controller. Either argument may be
// empty to keep defaults.
func NewEffectsController(patch Patch, baseline map[string]float64) (*EffectsController, error) {
	c, err := NewController(EffectsLayout(), patch, baseline)
	if err != nil {
		return nil, err
	}
	return &EffectsController{Controller: c}, nil
}

// Update advances the controller and returns the effect values.
func (e *EffectsController) Update(s *features.Snapshot, dt float64) EffectsParams {
	v := e.Controller.Update(s, dt)
	return EffectsParams{
		Bloom:     v[0],
		Chroma:    v[1],
		Vignette:  v[2],
		FilmGrain: v[3],
		Glitch:    v[4],
	}
}
