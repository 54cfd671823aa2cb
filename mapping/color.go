package mapping

import (
	"fmt"
	"sort"
)

// ColorGrade is a named hue/brightness/contrast/saturation baseline.
type ColorGrade struct {
	Name       string
	Hue        float64
	Brightness float64
	Contrast   float64
	Saturation float64
}

// Baseline returns the grade as material baseline overrides.
func (g ColorGrade) Baseline() map[string]float64 {
	return map[string]float64{
		"hue":        g.Hue,
		"brightness": g.Brightness,
		"contrast":   g.Contrast,
		"saturation": g.Saturation,
	}
}

var colorPresets = map[string]ColorGrade{
	"normal":    {"Normal", 0, 0, 1.0, 1.0},
	"cyberpunk": {"Cyberpunk", 0.15, 0.1, 1.3, 1.5},
	"vintage":   {"Vintage", 0.05, -0.05, 0.9, 0.7},
	"noir":      {"Noir", 0, -0.2, 1.5, 0.3},
	"sunset":    {"Sunset", 0.08, 0.05, 1.1, 1.3},
	"arctic":    {"Arctic", 0.55, 0.15, 1.2, 0.9},
	"matrix":    {"Matrix", 0.35, -0.1, 1.4, 0.8},
	"dreamy":    {"Dreamy", 0.75, 0.1, 0.8, 1.2},
	"horror":    {"Horror", 0, -0.3, 1.6, 0.5},
	"neon":      {"Neon", 0.5, 0.2, 1.5, 2.0},
}

// ColorPreset looks up a color grade by key.
func ColorPreset(name string) (ColorGrade, error) {
	g, ok := colorPresets[name]
	if !ok {
		return ColorGrade{}, fmt.Errorf("%w: color preset %q", ErrUnknownParameter, name)
	}
	return g, nil
}

// ColorPresetNames returns the preset keys in sorted order.
func ColorPresetNames() []string {
	names := make([]string, 0, len(colorPresets))
	for k := range colorPresets {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
