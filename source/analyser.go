// Package source produces extractor frames from raw audio: an analyser that
// behaves like a browser AnalyserNode, a pass-through tap for beep streamers
// and streamed WAV decoding.
package source

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-dsp/dsp/window"
	algofft "github.com/cwbudde/algo-fft"

	"github.com/cwbudde/algo-reactive/features"
)

// ErrInvalidFFTSize is returned for FFT sizes that are not a power of two in
// [MinFFTSize, MaxFFTSize].
var ErrInvalidFFTSize = errors.New("invalid fft size")

const (
	MinFFTSize = 32
	MaxFFTSize = 32768
)

// AnalyserConfig mirrors the AnalyserNode attributes.
type AnalyserConfig struct {
	FFTSize    int
	SampleRate float64
	Smoothing  float64 // smoothingTimeConstant in [0,1]
	MinDB      float64
	MaxDB      float64
}

// DefaultAnalyserConfig returns the AnalyserNode defaults at 44.1 kHz.
func DefaultAnalyserConfig() AnalyserConfig {
	return AnalyserConfig{
		FFTSize:    2048,
		SampleRate: 44100,
		Smoothing:  0.8,
		MinDB:      -100,
		MaxDB:      -30,
	}
}

// Validate checks the configuration.
func (c AnalyserConfig) Validate() error {
	if c.FFTSize < MinFFTSize || c.FFTSize > MaxFFTSize || c.FFTSize&(c.FFTSize-1) != 0 {
		return fmt.Errorf("%w: %d", ErrInvalidFFTSize, c.FFTSize)
	}
	if !(c.SampleRate > 0) || math.IsInf(c.SampleRate, 0) {
		return fmt.Errorf("sample rate must be > 0, got %v", c.SampleRate)
	}
	if !(c.Smoothing >= 0 && c.Smoothing <= 1) {
		return fmt.Errorf("smoothing must be in [0,1], got %v", c.Smoothing)
	}
	if !(c.MaxDB > c.MinDB) {
		return fmt.Errorf("max dB (%v) must exceed min dB (%v)", c.MaxDB, c.MinDB)
	}
	return nil
}

// Analyser computes Blackman-windowed magnitude spectra with temporal
// smoothing and maps them onto a normalized decibel scale.
type Analyser struct {
	cfg AnalyserConfig

	plan   *algofft.Plan[complex128]
	win    []float64
	in     []complex128
	out    []complex128
	timeD  []float64
	smooth []float64 // linear magnitudes, temporally smoothed
	freq   []float64 // normalized dB
}

// NewAnalyser creates an analyser.
func NewAnalyser(cfg AnalyserConfig) (*Analyser, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	plan, err := algofft.NewPlan64(cfg.FFTSize)
	if err != nil {
		return nil, fmt.Errorf("analyser fft plan: %w", err)
	}
	n := cfg.FFTSize
	return &Analyser{
		cfg:    cfg,
		plan:   plan,
		win:    window.Generate(window.TypeBlackman, n, window.WithPeriodic()),
		in:     make([]complex128, n),
		out:    make([]complex128, n),
		timeD:  make([]float64, n),
		smooth: make([]float64, n/2),
		freq:   make([]float64, n/2),
	}, nil
}

// Config returns the active configuration.
func (a *Analyser) Config() AnalyserConfig { return a.cfg }

// FFTSize returns the transform length.
func (a *Analyser) FFTSize() int { return a.cfg.FFTSize }

// BinCount returns FFTSize/2.
func (a *Analyser) BinCount() int { return a.cfg.FFTSize / 2 }

// SetSmoothing changes the smoothing time constant (clamped to [0,1]).
func (a *Analyser) SetSmoothing(tau float64) {
	a.cfg.Smoothing = core.Clamp(tau, 0, 1)
}

// SetSampleRate switches to a new source rate and clears the smoothed
// spectrum, as a fresh AnalyserNode would.
func (a *Analyser) SetSampleRate(sr float64) error {
	if !(sr > 0) || math.IsInf(sr, 0) {
		return fmt.Errorf("sample rate must be > 0, got %v", sr)
	}
	a.cfg.SampleRate = sr
	core.Zero(a.smooth)
	core.Zero(a.freq)
	return nil
}

// Reset clears the smoothed spectrum and the time buffer.
func (a *Analyser) Reset() {
	core.Zero(a.smooth)
	core.Zero(a.freq)
	core.Zero(a.timeD)
}

// Analyse runs one analysis pass over the newest FFTSize samples. Shorter
// inputs are zero-padded at the old end.
func (a *Analyser) Analyse(samples []float64) error {
	n := a.cfg.FFTSize
	if len(samples) > n {
		samples = samples[len(samples)-n:]
	}
	pad := n - len(samples)
	core.Zero(a.timeD[:pad])
	copy(a.timeD[pad:], samples)

	for i, s := range a.timeD {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			s = 0
		}
		a.in[i] = complex(s*a.win[i], 0)
	}
	if err := a.plan.Forward(a.out, a.in); err != nil {
		return fmt.Errorf("analyser fft: %w", err)
	}

	tau := a.cfg.Smoothing
	span := a.cfg.MaxDB - a.cfg.MinDB
	scale := 1 / float64(n)
	for k := range a.smooth {
		mag := cmplx.Abs(a.out[k]) * scale
		a.smooth[k] = core.FlushDenormals(tau*a.smooth[k] + (1-tau)*mag)
		db := core.LinearToDB(a.smooth[k])
		if math.IsInf(db, -1) || math.IsNaN(db) {
			a.freq[k] = 0
			continue
		}
		a.freq[k] = core.Clamp((db-a.cfg.MinDB)/span, 0, 1)
	}
	return nil
}

// Frame points dst at the analyser's buffers. The slices are overwritten by
// the next Analyse call.
func (a *Analyser) Frame(dst *features.Frame) {
	dst.Frequency = a.freq
	dst.TimeDomain = a.timeD
	dst.SampleRate = a.cfg.SampleRate
	dst.FFTSize = a.cfg.FFTSize
}

// FrequencyBytes writes the spectrum as 0..255 bytes, the getByteFrequencyData
// encoding.
func (a *Analyser) FrequencyBytes(dst []byte) []byte {
	if cap(dst) < len(a.freq) {
		dst = make([]byte, len(a.freq))
	}
	dst = dst[:len(a.freq)]
	for i, v := range a.freq {
		dst[i] = byte(math.Floor(v * 255))
	}
	return dst
}

// TimeBytes writes the time-domain buffer centred on 128, the
// getByteTimeDomainData encoding.
func (a *Analyser) TimeBytes(dst []byte) []byte {
	if cap(dst) < len(a.timeD) {
		dst = make([]byte, len(a.timeD))
	}
	dst = dst[:len(a.timeD)]
	for i, v := range a.timeD {
		dst[i] = byte(core.Clamp(math.Floor(128*(v+1)), 0, 255))
	}
	return dst
}
