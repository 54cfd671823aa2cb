package mapping

import "github.com/cwbudde/algo-reactive/features"

// MaterialLayout drives surface shader and lighting uniforms.
func MaterialLayout() Layout {
	return Layout{
		Params: []Param{
			{Name: "noiseAmp", Feature: Volume, Baseline: 0.025, Multiplier: 0.12},
			{Name: "depthScale", Feature: Bass, Baseline: 0.25, Multiplier: 0.5},
			{Name: "hue", Feature: Volume, Baseline: 0, Multiplier: 0.6},
			{Name: "brightness", Feature: Volume, Baseline: 0, Multiplier: 0.25},
			{Name: "contrast", Feature: Mid, Baseline: 1, Multiplier: 0},
			{Name: "saturation", Feature: High, Baseline: 1, Multiplier: 0},
			{Name: "mathAmp", Feature: LowMid, Baseline: 0.05, Multiplier: 0.2},
			{Name: "mathFreq", Feature: HighMid, Floor: true, Baseline: 6, Multiplier: 0.2},
			{Name: "mathWarp", Feature: High, Floor: true, Baseline: 0, Multiplier: 0.25},
			{Name: "ambient", Feature: Mid, Floor: true, Baseline: 0.22, Multiplier: 0},
			{Name: "pointLightIntensity", Feature: Low, Floor: true, Baseline: 0.8, Multiplier: 0},
			{Name: "jitter", Feature: FeatureNone, Boost: "jitter", Baseline: 0.02, Multiplier: 0.08},
		},
		Boosts: []Boost{
			{
				Name: "jitter", Decay: 2.0, Scale: "jitter",
				Trigger: func(ev features.BeatEvent) float64 { return ev.Bands[features.Bass] },
			},
		},
		Smoothing: 0.2,
	}
}

// MaterialParams are the material values for one frame.
type MaterialParams struct {
	NoiseAmp            float64 `json:"noise_amp"`
	DepthScale          float64 `json:"depth_scale"`
	Hue                 float64 `json:"hue"`
	Brightness          float64 `json:"brightness"`
	Contrast            float64 `json:"contrast"`
	Saturation          float64 `json:"saturation"`
	MathAmp             float64 `json:"math_amp"`
	MathFreq            float64 `json:"math_freq"`
	MathWarp            float64 `json:"math_warp"`
	Ambient             float64 `json:"ambient"`
	PointLightIntensity float64 `json:"point_light_intensity"`
	Jitter              float64 `json:"jitter"`
}

// MaterialController maps features to MaterialParams.
type MaterialController struct {
	*Controller
}

// DefaultMaterialMapping returns the stock material mapping.
func DefaultMaterialMapping() Mapping {
	return MaterialLayout().DefaultMapping()
}

// NewMaterialController creates a material controller.
func NewMaterialController(patch Patch, baseline map[string]float64) (*MaterialController, error) {
	c, err := NewController(MaterialLayout(), patch, baseline)
	if err != nil {
		return nil, err
	}
	return &MaterialController{Controller: c}, nil
}

// Update advances the controller and returns the material values.
func (m *MaterialController) Update(s *features.Snapshot, dt float64) MaterialParams {
	v := m.Controller.Update(s, dt)
	return MaterialParams{
		NoiseAmp:            v[0],
		DepthScale:          v[1],
		Hue:                 v[2],
		Brightness:          v[3],
		Contrast:            v[4],
		Saturation:          v[5],
		MathAmp:             v[6],
		MathFreq:            v[7],
		MathWarp:            v[8],
		Ambient:             v[9],
		PointLightIntensity: v[10],
		Jitter:              v[11],
	}
}

// ApplyColorPreset sets the hue, brightness, contrast and saturation
// baselines from a named color grade.
func (m *MaterialController) ApplyColorPreset(name string) error {
	grade, err := ColorPreset(name)
	if err != nil {
		return err
	}
	return m.SetBaseline(grade.Baseline())
}
