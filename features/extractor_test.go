package features

import (
	"math"
	"math/rand"
	"testing"
	"time"
)

const (
	testSampleRate = 44100.0
	testFFTSize    = 2048
	testBins       = testFFTSize / 2
)

type recordingPublisher struct {
	events    []string
	published int
	beats     []BeatEvent
	lastSnap  Snapshot
}

func (r *recordingPublisher) Publish(s *Snapshot) {
	r.published++
	r.events = append(r.events, "publish")
	s.CopyTo(&r.lastSnap)
}

func (r *recordingPublisher) PushBeat(ev BeatEvent) {
	r.events = append(r.events, "beat")
	r.beats = append(r.beats, ev)
}

type stepClock struct {
	now  time.Duration
	step time.Duration
}

func (c *stepClock) tick() time.Duration {
	c.now += c.step
	return c.now
}

func newTestExtractor(t *testing.T, pub Publisher, tuning Tuning) (*Extractor, *stepClock) {
	t.Helper()
	clk := &stepClock{step: 16 * time.Millisecond}
	e, err := New(pub, WithTuning(tuning), WithClock(clk.tick))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e, clk
}

func silentFrame() Frame {
	return Frame{
		Frequency:  make([]float64, testBins),
		TimeDomain: make([]float64, testFFTSize),
		SampleRate: testSampleRate,
		FFTSize:    testFFTSize,
	}
}

func sineTimeDomain(n int, amp, freq, sampleRate float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/sampleRate)
	}
	return out
}

func TestBinRangePartitionsBands(t *testing.T) {
	prevEnd := -1
	for _, b := range Bands() {
		start, end := BinRange(b, testSampleRate, testFFTSize, testBins)
		if end < start {
			t.Fatalf("%s: empty inverted range %d..%d", b, start, end)
		}
		if prevEnd >= 0 && start != prevEnd {
			t.Fatalf("%s: starts at %d, previous band ended at %d", b, start, prevEnd)
		}
		binSize := testSampleRate / testFFTSize
		r := b.Range()
		for i := start; i < end; i++ {
			f := float64(i) * binSize
			if f < r.Low || f >= r.High {
				t.Fatalf("%s: bin %d (%.1f Hz) outside [%.0f,%.0f)", b, i, f, r.Low, r.High)
			}
		}
		prevEnd = end
	}
}

func TestBinRangeClampsToAvailableBins(t *testing.T) {
	start, end := BinRange(Treble, 8000, 256, 128)
	if start > 128 || end > 128 || end < start {
		t.Fatalf("unexpected range %d..%d for low sample rate", start, end)
	}
	if s, e := BinRange(Bass, 0, testFFTSize, testBins); s != 0 || e != 0 {
		t.Fatalf("zero sample rate should yield an empty range, got %d..%d", s, e)
	}
}

func TestSilentInputYieldsZeroFeaturesAndNoBeat(t *testing.T) {
	for _, sens := range []float64{0.1, 1, 5} {
		pub := &recordingPublisher{}
		tuning := DefaultTuning()
		tuning.Sensitivity = sens
		e, _ := newTestExtractor(t, pub, tuning)
		for i := 0; i < 200; i++ {
			if e.Process(silentFrame()) {
				t.Fatalf("sensitivity %.1f: beat fired on silence at frame %d", sens, i)
			}
		}
		s := pub.lastSnap
		if s.Volume != 0 || s.RMS != 0 || s.SpectralFlux != 0 || s.Centroid != 0 {
			t.Fatalf("sensitivity %.1f: expected zero scalars, got %+v", sens, s)
		}
		for _, b := range Bands() {
			if s.Bands[b] != 0 || s.SmoothBands[b] != 0 || s.BandPeaks[b] != 0 {
				t.Fatalf("sensitivity %.1f: band %s not zero", sens, b)
			}
		}
		if len(pub.beats) != 0 {
			t.Fatalf("unexpected beats: %d", len(pub.beats))
		}
	}
}

func TestEmptyFrameDegradesToZero(t *testing.T) {
	pub := &recordingPublisher{}
	e, _ := newTestExtractor(t, pub, DefaultTuning())
	if e.Process(Frame{}) {
		t.Fatalf("empty frame must not produce a beat")
	}
	if pub.published != 1 {
		t.Fatalf("expected one publish, got %d", pub.published)
	}
	if pub.lastSnap.RMS != 0 || pub.lastSnap.Centroid != 0 {
		t.Fatalf("expected zero features, got %+v", pub.lastSnap)
	}
}

func TestSineRMS(t *testing.T) {
	pub := &recordingPublisher{}
	e, _ := newTestExtractor(t, pub, DefaultTuning())
	f := silentFrame()
	f.TimeDomain = sineTimeDomain(testFFTSize, 0.5, 440, testSampleRate)
	e.Process(f)

	want := 0.5 / math.Sqrt2
	if math.Abs(pub.lastSnap.RMS-want) > 0.01 {
		t.Fatalf("rms=%f want %f", pub.lastSnap.RMS, want)
	}
	if math.Abs(pub.lastSnap.Volume-want) > 0.01 {
		t.Fatalf("volume=%f want %f at unit sensitivity", pub.lastSnap.Volume, want)
	}
}

func TestVolumeClampsButRMSDoesNot(t *testing.T) {
	pub := &recordingPublisher{}
	tuning := DefaultTuning()
	tuning.Sensitivity = 4
	e, _ := newTestExtractor(t, pub, tuning)
	f := silentFrame()
	for i := range f.TimeDomain {
		f.TimeDomain[i] = 1.5
	}
	e.Process(f)
	if pub.lastSnap.Volume != 1 {
		t.Fatalf("volume=%f want 1", pub.lastSnap.Volume)
	}
	if math.Abs(pub.lastSnap.RMS-1.5) > 1e-9 {
		t.Fatalf("rms=%f want raw 1.5", pub.lastSnap.RMS)
	}
}

func TestBassOnlySpectrum(t *testing.T) {
	pub := &recordingPublisher{}
	e, _ := newTestExtractor(t, pub, DefaultTuning())
	f := silentFrame()
	binSize := testSampleRate / testFFTSize
	for i := range f.Frequency {
		hz := float64(i) * binSize
		if hz >= 60 && hz < 250 {
			f.Frequency[i] = 1
		}
	}
	e.Process(f)

	s := pub.lastSnap
	if math.Abs(s.Bands[Bass]-1) > 1e-9 {
		t.Fatalf("bass=%f want 1", s.Bands[Bass])
	}
	if s.BinPeaks[Bass] != 1 {
		t.Fatalf("bass bin peak=%f want 1", s.BinPeaks[Bass])
	}
	for _, b := range Bands() {
		if b == Bass {
			continue
		}
		if s.Bands[b] > 1e-9 {
			t.Fatalf("band %s=%f want 0", b, s.Bands[b])
		}
	}
	if s.Centroid < 60 || s.Centroid >= 250 {
		t.Fatalf("centroid=%f Hz, want inside the bass range", s.Centroid)
	}
	if s.SmoothBands[Bass] <= 0 || s.SmoothBands[Bass] > 1 {
		t.Fatalf("smoothed bass=%f out of (0,1]", s.SmoothBands[Bass])
	}
}

func TestConstantSpectrumFluxSettlesWithoutBeat(t *testing.T) {
	pub := &recordingPublisher{}
	e, _ := newTestExtractor(t, pub, DefaultTuning())
	rng := rand.New(rand.NewSource(3))
	spectrum := make([]float64, testBins)
	for i := range spectrum {
		spectrum[i] = rng.Float64()
	}
	for i := 0; i < 10; i++ {
		f := silentFrame()
		copy(f.Frequency, spectrum)
		e.Process(f)
		if i >= 3 && pub.lastSnap.SpectralFlux > 1e-9 {
			t.Fatalf("frame %d: flux=%f, want ~0 for a static spectrum", i, pub.lastSnap.SpectralFlux)
		}
	}
	if len(pub.beats) != 0 {
		t.Fatalf("static spectrum fired %d beats", len(pub.beats))
	}
}

func TestBeatRefractoryGate(t *testing.T) {
	pub := &recordingPublisher{}
	tuning := DefaultTuning()
	clk := &stepClock{step: 10 * time.Millisecond}
	e, err := New(pub, WithTuning(tuning), WithClock(clk.tick))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 400; i++ {
		f := silentFrame()
		if i%5 == 4 {
			for j := range f.Frequency {
				f.Frequency[j] = 1
			}
		}
		e.Process(f)
	}
	if len(pub.beats) < 2 {
		t.Fatalf("expected several beats from a pulse train, got %d", len(pub.beats))
	}
	for i := 1; i < len(pub.beats); i++ {
		gap := pub.beats[i].Time - pub.beats[i-1].Time
		if gap < tuning.Refractory {
			t.Fatalf("beats %d and %d only %v apart", i-1, i, gap)
		}
	}
	if pub.beats[0].Strength <= 0 {
		t.Fatalf("beat strength should carry the flux value, got %f", pub.beats[0].Strength)
	}
}

func TestPublishPrecedesBeat(t *testing.T) {
	pub := &recordingPublisher{}
	e, _ := newTestExtractor(t, pub, DefaultTuning())
	for i := 0; i < 5; i++ {
		e.Process(silentFrame())
	}
	f := silentFrame()
	for j := range f.Frequency {
		f.Frequency[j] = 1
	}
	if !e.Process(f) {
		t.Fatalf("expected a beat on the first loud frame after silence")
	}
	n := len(pub.events)
	if n < 2 || pub.events[n-2] != "publish" || pub.events[n-1] != "beat" {
		t.Fatalf("unexpected event order: %v", pub.events[max(0, n-3):])
	}
}

func TestEnergyFieldsStayInUnitRange(t *testing.T) {
	pub := &recordingPublisher{}
	tuning := DefaultTuning()
	tuning.Sensitivity = 0.01
	e, _ := newTestExtractor(t, pub, tuning)
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 300; i++ {
		f := silentFrame()
		for j := range f.Frequency {
			f.Frequency[j] = rng.Float64()*4 - 1
		}
		if i%17 == 0 {
			f.Frequency[3] = math.NaN()
		}
		for j := range f.TimeDomain {
			f.TimeDomain[j] = rng.Float64()*2 - 1
		}
		e.Process(f)
		s := pub.lastSnap
		for _, b := range Bands() {
			for name, v := range map[string]float64{
				"bands": s.Bands[b], "smooth": s.SmoothBands[b], "peaks": s.BandPeaks[b],
			} {
				if !(v >= 0 && v <= 1) {
					t.Fatalf("frame %d: %s[%s]=%f outside [0,1]", i, name, b, v)
				}
			}
		}
		for _, v := range []float64{s.Energy3.Low, s.Energy3.Mid, s.Energy3.High, s.Volume} {
			if !(v >= 0 && v <= 1) {
				t.Fatalf("frame %d: energy/volume %f outside [0,1]", i, v)
			}
		}
	}
}

func TestAttackFasterThanRelease(t *testing.T) {
	pub := &recordingPublisher{}
	e, _ := newTestExtractor(t, pub, DefaultTuning())
	loud := silentFrame()
	for j := range loud.Frequency {
		loud.Frequency[j] = 1
	}
	e.Process(loud)
	rise := pub.lastSnap.SmoothBands[Mid]
	e.Process(silentFrame())
	fall := 1 - pub.lastSnap.SmoothBands[Mid]/rise
	if math.Abs(rise-0.38) > 1e-9 {
		t.Fatalf("first attack step=%f want 0.38", rise)
	}
	if math.Abs(fall-0.12) > 1e-9 {
		t.Fatalf("release fraction=%f want 0.12", fall)
	}
	if pub.lastSnap.BandPeaks[Mid] != 0.92 {
		t.Fatalf("peak hold=%f want 0.92 after one decay step", pub.lastSnap.BandPeaks[Mid])
	}
}

func TestCopyFFTOwnsBuffer(t *testing.T) {
	tuning := DefaultTuning()
	tuning.CopyFFT = true
	e, _ := newTestExtractor(t, nil, tuning)
	f := silentFrame()
	f.Frequency[10] = 0.5
	e.Process(f)
	f.Frequency[10] = 0.9
	if got := e.Snapshot().FFT[10]; got != 0.5 {
		t.Fatalf("copied fft changed with caller buffer: %f", got)
	}

	live, _ := newTestExtractor(t, nil, DefaultTuning())
	live.Process(f)
	f.Frequency[10] = 0.1
	if got := live.Snapshot().FFT[10]; got != 0.1 {
		t.Fatalf("live fft should alias the caller buffer, got %f", got)
	}
}

func TestBinCountChangeDoesNotSpikeFlux(t *testing.T) {
	pub := &recordingPublisher{}
	e, _ := newTestExtractor(t, pub, DefaultTuning())
	e.Process(silentFrame())
	f := Frame{
		Frequency:  make([]float64, 512),
		TimeDomain: make([]float64, 1024),
		SampleRate: 48000,
		FFTSize:    1024,
	}
	for i := range f.Frequency {
		f.Frequency[i] = 1
	}
	if e.Process(f) {
		t.Fatalf("source swap must not register as a beat")
	}
	if pub.lastSnap.SpectralFlux != 0 {
		t.Fatalf("flux=%f after bin count change, want 0", pub.lastSnap.SpectralFlux)
	}
}

func TestInvalidTuningRejected(t *testing.T) {
	bad := DefaultTuning()
	bad.Release = -0.1
	if _, err := New(nil, WithTuning(bad)); err == nil {
		t.Fatalf("expected error for negative release")
	}
	e, _ := newTestExtractor(t, nil, DefaultTuning())
	bad = DefaultTuning()
	bad.FluxHistory = 0
	if err := e.SetTuning(bad); err == nil {
		t.Fatalf("expected error for zero flux history")
	}
	good := DefaultTuning()
	good.FluxHistory = 10
	if err := e.SetTuning(good); err != nil {
		t.Fatalf("SetTuning: %v", err)
	}
}

func TestLoadBytes(t *testing.T) {
	var f Frame
	f.LoadBytes([]byte{0, 255, 51}, []byte{128, 0, 255, 192})
	if f.Frequency[1] != 1 || math.Abs(f.Frequency[2]-0.2) > 1e-12 {
		t.Fatalf("frequency normalization wrong: %v", f.Frequency)
	}
	if f.TimeDomain[0] != 0 || f.TimeDomain[1] != -1 || f.TimeDomain[3] != 0.5 {
		t.Fatalf("time-domain recentering wrong: %v", f.TimeDomain)
	}
	buf := f.Frequency
	f.LoadBytes([]byte{1, 2}, nil)
	if &buf[0] != &f.Frequency[0] {
		t.Fatalf("LoadBytes should reuse the frequency slice")
	}
}

func TestBandNamesAndRanges(t *testing.T) {
	if Bass.String() != "bass" || Treble.String() != "treble" || Band(9).String() != "unknown" {
		t.Fatalf("unexpected band names: %s %s %s", Bass, Treble, Band(9))
	}
	prev := 0.0
	for _, b := range Bands() {
		r := b.Range()
		if r.Low < prev || r.High <= r.Low {
			t.Fatalf("%s: bad range %+v", b, r)
		}
		prev = r.High
	}
}

func TestResetClearsSmoothedState(t *testing.T) {
	pub := &recordingPublisher{}
	e, _ := newTestExtractor(t, pub, DefaultTuning())
	for i := 0; i < 5; i++ {
		f := silentFrame()
		for j := range f.Frequency {
			f.Frequency[j] = 0.8
		}
		f.TimeDomain = sineTimeDomain(testFFTSize, 0.5, 440, testSampleRate)
		e.Process(f)
	}
	if e.Snapshot().SmoothBands.Get(Bass) == 0 {
		t.Fatalf("expected smoothed bass before reset")
	}
	e.Reset()
	s := e.Snapshot()
	if s.Volume != 0 || s.SmoothBands != (BandValues{}) || s.Energy3 != (Energy3{}) {
		t.Fatalf("reset left state behind: %+v", s)
	}
	e.Process(silentFrame())
	if e.Snapshot().SmoothBands != (BandValues{}) {
		t.Fatalf("smoothing restarted from stale state")
	}
}

func TestFirstFrameFluxMeasuredAgainstSilence(t *testing.T) {
	pub := &recordingPublisher{}
	e, _ := newTestExtractor(t, pub, DefaultTuning())
	f := silentFrame()
	for i := range f.Frequency {
		f.Frequency[i] = 0.5
	}
	if e.Process(f) {
		t.Fatalf("first frame must not fire a beat")
	}
	if math.Abs(pub.lastSnap.SpectralFlux-0.5) > 1e-12 {
		t.Fatalf("first frame flux=%f want 0.5", pub.lastSnap.SpectralFlux)
	}
}
