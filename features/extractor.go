package features

import (
	"math"
	"time"

	dsptime "github.com/cwbudde/algo-dsp/stats/time"

	"github.com/cwbudde/algo-reactive/dsp"
)

// Publisher receives the extractor's output. The bus implements it.
type Publisher interface {
	Publish(s *Snapshot)
	PushBeat(ev BeatEvent)
}

// Clock returns monotonic time since an arbitrary origin.
type Clock func() time.Duration

// Option configures an Extractor.
type Option func(*Extractor)

// WithTuning replaces the default tuning.
func WithTuning(t Tuning) Option {
	return func(e *Extractor) {
		e.tuning = t
	}
}

// WithClock sets the time source used for timestamps and the beat refractory
// gate.
func WithClock(c Clock) Option {
	return func(e *Extractor) {
		if c != nil {
			e.clock = c
		}
	}
}

// Extractor turns raw frequency and time-domain buffers into a Snapshot once
// per frame and emits BeatEvents on spectral-flux onsets.
type Extractor struct {
	tuning Tuning
	pub    Publisher
	clock  Clock

	snap    Snapshot
	smooth  BandValues
	peaks   BandValues
	energy  Energy3
	prev    []float64
	fftCopy []float64
	flux    *dsp.RollingWindow

	lastBeat time.Duration
	hasBeat  bool
}

// New creates an extractor publishing to pub (which may be nil).
func New(pub Publisher, opts ...Option) (*Extractor, error) {
	e := &Extractor{
		tuning: DefaultTuning(),
		pub:    pub,
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.tuning.Validate(); err != nil {
		return nil, err
	}
	if e.clock == nil {
		origin := time.Now()
		e.clock = func() time.Duration { return time.Since(origin) }
	}
	e.flux = dsp.NewRollingWindow(e.tuning.FluxHistory)
	return e, nil
}

// Tuning returns the active tuning.
func (e *Extractor) Tuning() Tuning {
	return e.tuning
}

// SetTuning swaps the tuning without discarding smoothed state. A change of
// FluxHistory restarts the adaptive threshold window.
func (e *Extractor) SetTuning(t Tuning) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if t.FluxHistory != e.tuning.FluxHistory {
		e.flux.Resize(t.FluxHistory)
	}
	e.tuning = t
	return nil
}

// SetSensitivity updates the user sensitivity. Non-finite values are ignored.
func (e *Extractor) SetSensitivity(v float64) {
	if finite(v) {
		e.tuning.Sensitivity = v
	}
}

// Sensitivity returns the configured (not effective) sensitivity.
func (e *Extractor) Sensitivity() float64 {
	return e.tuning.Sensitivity
}

// Snapshot returns the extractor's working snapshot. It is overwritten by the
// next Process call.
func (e *Extractor) Snapshot() *Snapshot {
	return &e.snap
}

// Reset clears all smoothed state, the flux history and the beat gate.
func (e *Extractor) Reset() {
	e.snap.Reset()
	e.smooth = BandValues{}
	e.peaks = BandValues{}
	e.energy = Energy3{}
	for i := range e.prev {
		e.prev[i] = 0
	}
	e.flux.Reset()
	e.hasBeat = false
	e.lastBeat = 0
}

// Process analyses one frame, publishes the snapshot and, when an onset is
// detected, pushes a beat. It reports whether a beat fired.
func (e *Extractor) Process(f Frame) bool {
	t := &e.tuning
	now := e.clock()
	sens := t.effectiveSensitivity()
	freq := f.Frequency

	rms := dsptime.RMS(f.TimeDomain)
	if !finite(rms) {
		rms = 0
	}

	var bands, binPeaks BandValues
	binSize := 0.0
	if f.SampleRate > 0 && f.FFTSize > 0 {
		binSize = f.SampleRate / float64(f.FFTSize)
	}
	for _, b := range Bands() {
		start, end := BinRange(b, f.SampleRate, f.FFTSize, len(freq))
		bands[b], binPeaks[b] = bandMetrics(freq[start:end], t.BandExponent)
	}

	attack := t.attackCoeff()
	for i := range bands {
		e.smooth[i] = dsp.Clamp01(dsp.AttackRelease(e.smooth[i], bands[i], attack, t.Release))
		e.peaks[i] = math.Max(bands[i], e.peaks[i]*t.PeakDecay)
	}

	raw3 := groupEnergy(&bands)
	e.energy.Low = dsp.Clamp01(dsp.AttackRelease(e.energy.Low, raw3.Low, attack, t.Release))
	e.energy.Mid = dsp.Clamp01(dsp.AttackRelease(e.energy.Mid, raw3.Mid, attack, t.Release))
	e.energy.High = dsp.Clamp01(dsp.AttackRelease(e.energy.High, raw3.High, attack, t.Release))

	volume := dsp.Clamp01(rms * sens)

	flux := e.spectralFlux(freq)
	e.flux.Push(flux)
	mean, std := e.flux.MeanStdDev()
	threshold := mean + math.Max(t.MinStdDev, std)*t.ThresholdScale*sens

	beat := false
	if flux > threshold && (!e.hasBeat || now-e.lastBeat >= t.Refractory) {
		beat = true
		e.hasBeat = true
		e.lastBeat = now
	}

	s := &e.snap
	s.Timestamp = now
	s.Volume = volume
	s.RMS = rms
	s.SpectralFlux = flux
	s.Centroid = centroid(freq, binSize)
	s.Bands = bands
	s.SmoothBands = e.smooth
	s.BandPeaks = e.peaks
	s.BinPeaks = binPeaks
	s.Energy3 = e.energy
	if t.CopyFFT {
		e.fftCopy = resize(e.fftCopy, len(freq))
		copy(e.fftCopy, freq)
		s.FFT = e.fftCopy
	} else {
		s.FFT = freq
	}

	if e.pub != nil {
		e.pub.Publish(s)
	}
	if beat && e.pub != nil {
		e.pub.PushBeat(BeatEvent{
			Time:        now,
			Strength:    flux,
			Volume:      volume,
			RMS:         rms,
			Bands:       bands,
			SmoothBands: e.smooth,
			Energy3:     e.energy,
			Peaks:       e.peaks,
		})
	}
	return beat
}

// bandMetrics returns the compressed RMS energy and the maximum normalized
// magnitude of the given bins.
func bandMetrics(bins []float64, exponent float64) (energy, peak float64) {
	if len(bins) == 0 {
		return 0, 0
	}
	var sumSq float64
	for _, v := range bins {
		n := dsp.Clamp01(v)
		sumSq += n * n
		if n > peak {
			peak = n
		}
	}
	r := math.Sqrt(sumSq / math.Max(1, float64(len(bins))))
	return math.Pow(math.Min(1, r), exponent), peak
}

// spectralFlux sums the positive bin-wise change against the previous frame,
// normalized by bin count, and stores freq as the new previous frame. The
// first frame is measured against silence; a later bin-count change reseeds
// the previous frame and reports 0.
func (e *Extractor) spectralFlux(freq []float64) float64 {
	if e.prev == nil {
		e.prev = make([]float64, len(freq))
	}
	if len(freq) != len(e.prev) {
		e.prev = resize(e.prev, len(freq))
		for i, v := range freq {
			e.prev[i] = dsp.Clamp01(v)
		}
		return 0
	}
	var sum float64
	for i, v := range freq {
		n := dsp.Clamp01(v)
		if d := n - e.prev[i]; d > 0 {
			sum += d
		}
		e.prev[i] = n
	}
	return sum / math.Max(1, float64(len(freq)))
}

// centroid returns the magnitude-weighted mean frequency in Hz.
func centroid(freq []float64, binSize float64) float64 {
	var num, den float64
	for i, v := range freq {
		n := dsp.Clamp01(v)
		num += float64(i) * n
		den += n
	}
	if den <= 0 {
		return 0
	}
	return num / den * binSize
}
