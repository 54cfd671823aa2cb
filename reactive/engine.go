// Package reactive runs the per-frame pipeline: analyser, feature extractor,
// audio bus and the effects and material controllers.
package reactive

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-reactive/bus"
	"github.com/cwbudde/algo-reactive/features"
	"github.com/cwbudde/algo-reactive/mapping"
	"github.com/cwbudde/algo-reactive/source"
)

// Config describes a complete pipeline.
type Config struct {
	Analyser source.AnalyserConfig
	Tuning   features.Tuning

	Effects          mapping.Patch
	EffectsBaseline  map[string]float64
	Material         mapping.Patch
	MaterialBaseline map[string]float64
	ColorPreset      string

	BusCapacity int
	Logger      logrus.FieldLogger

	// Clock overrides the frame clock. When nil the engine advances its own
	// clock by the dt passed to Step, which keeps offline renders
	// deterministic.
	Clock features.Clock
}

// DefaultConfig returns the stock pipeline.
func DefaultConfig() Config {
	return Config{
		Analyser:    source.DefaultAnalyserConfig(),
		Tuning:      features.DefaultTuning(),
		BusCapacity: bus.DefaultCapacity,
	}
}

// Output is the result of one frame.
type Output struct {
	Time     time.Duration          `json:"time"`
	Beat     bool                   `json:"beat"`
	Snapshot features.Snapshot      `json:"features"`
	Effects  mapping.EffectsParams  `json:"effects"`
	Material mapping.MaterialParams `json:"material"`
}

// Engine owns one pipeline instance. Step must be called from a single
// goroutine.
type Engine struct {
	cfg Config
	log logrus.FieldLogger

	analyser  *source.Analyser
	bus       *bus.Bus
	extractor *features.Extractor
	effects   *mapping.EffectsController
	material  *mapping.MaterialController

	frame features.Frame
	out   Output
	now   time.Duration

	unsubscribe []func()
	closeOnce   sync.Once
}

// NewEngine builds and wires the pipeline.
func NewEngine(cfg Config) (*Engine, error) {
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	e := &Engine{cfg: cfg, log: log}

	var err error
	if e.analyser, err = source.NewAnalyser(cfg.Analyser); err != nil {
		return nil, err
	}
	capacity := cfg.BusCapacity
	if capacity <= 0 {
		capacity = bus.DefaultCapacity
	}
	e.bus = bus.New(bus.WithCapacity(capacity), bus.WithLogger(log))

	clock := cfg.Clock
	if clock == nil {
		clock = func() time.Duration { return e.now }
	}
	if e.extractor, err = features.New(e.bus, features.WithTuning(cfg.Tuning), features.WithClock(clock)); err != nil {
		return nil, err
	}
	if e.effects, err = mapping.NewEffectsController(cfg.Effects, cfg.EffectsBaseline); err != nil {
		return nil, fmt.Errorf("effects: %w", err)
	}
	if e.material, err = mapping.NewMaterialController(cfg.Material, cfg.MaterialBaseline); err != nil {
		return nil, fmt.Errorf("material: %w", err)
	}
	// Explicit baselines win over the color grade's.
	if cfg.ColorPreset != "" {
		if err := e.material.ApplyColorPreset(cfg.ColorPreset); err != nil {
			return nil, err
		}
		if err := e.material.SetBaseline(cfg.MaterialBaseline); err != nil {
			return nil, fmt.Errorf("material: %w", err)
		}
	}

	e.unsubscribe = append(e.unsubscribe,
		e.bus.Subscribe(e.effects.HandleBeat),
		e.bus.Subscribe(e.material.HandleBeat),
	)

	log.WithFields(logrus.Fields{
		"fft_size":    cfg.Analyser.FFTSize,
		"sample_rate": cfg.Analyser.SampleRate,
		"sensitivity": cfg.Tuning.Sensitivity,
	}).Debug("reactive engine ready")
	return e, nil
}

// Step analyses the newest samples and advances every stage by dt seconds.
// The returned Output is reused by the next call.
func (e *Engine) Step(samples []float64, dt float64) (*Output, error) {
	if dt > 0 {
		e.now += time.Duration(dt * float64(time.Second))
	}
	if err := e.analyser.Analyse(samples); err != nil {
		return nil, err
	}
	e.analyser.Frame(&e.frame)
	return e.advance(e.frame, dt), nil
}

// StepFrame advances the pipeline with a frame analysed elsewhere, such as
// the byte buffers of a browser analyser node. The internal analyser is
// bypassed.
func (e *Engine) StepFrame(f features.Frame, dt float64) *Output {
	if dt > 0 {
		e.now += time.Duration(dt * float64(time.Second))
	}
	return e.advance(f, dt)
}

func (e *Engine) advance(f features.Frame, dt float64) *Output {
	beat := e.extractor.Process(f)

	latest := e.bus.Latest()
	e.out.Time = latest.Timestamp
	e.out.Beat = beat
	latest.CopyTo(&e.out.Snapshot)
	e.out.Effects = e.effects.Update(latest, dt)
	e.out.Material = e.material.Update(latest, dt)
	return &e.out
}

// Render walks samples in fixed hops of sampleRate/fps and calls fn with each
// frame. It stops early when fn returns an error.
func (e *Engine) Render(samples []float64, fps float64, fn func(*Output) error) error {
	if !(fps > 0) {
		return fmt.Errorf("fps must be > 0, got %v", fps)
	}
	hop := int(e.cfg.Analyser.SampleRate / fps)
	if hop < 1 {
		hop = 1
	}
	size := e.analyser.FFTSize()
	dt := float64(hop) / e.cfg.Analyser.SampleRate
	for end := hop; end <= len(samples); end += hop {
		start := end - size
		if start < 0 {
			start = 0
		}
		out, err := e.Step(samples[start:end], dt)
		if err != nil {
			return err
		}
		if fn != nil {
			if err := fn(out); err != nil {
				return err
			}
		}
	}
	return nil
}

// SetSensitivity updates the extractor's sensitivity.
func (e *Engine) SetSensitivity(v float64) {
	e.extractor.SetSensitivity(v)
}

// SetSampleRate switches the analyser to a new source rate.
func (e *Engine) SetSampleRate(sr float64) error {
	if err := e.analyser.SetSampleRate(sr); err != nil {
		return err
	}
	e.cfg.Analyser.SampleRate = sr
	e.log.WithField("sample_rate", sr).Info("audio source changed")
	return nil
}

// Close detaches the controllers from the bus. It is safe to call twice.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		for _, u := range e.unsubscribe {
			u()
		}
	})
}

func (e *Engine) Bus() *bus.Bus { return e.bus }
func (e *Engine) Analyser() *source.Analyser { return e.analyser }
func (e *Engine) Extractor() *features.Extractor { return e.extractor }
func (e *Engine) Effects() *mapping.EffectsController { return e.effects }
func (e *Engine) Material() *mapping.MaterialController { return e.material }
func (e *Engine) Config() Config { return e.cfg }
