package features

import "time"

// Snapshot is the per-frame feature record. It is a reusable buffer: producers
// overwrite it in place every frame, so callers that need a stable view must
// copy it with CopyTo instead of holding the pointer.
type Snapshot struct {
	Timestamp    time.Duration `json:"timestamp"`
	Volume       float64       `json:"volume"`
	RMS          float64       `json:"rms"`
	SpectralFlux float64       `json:"spectral_flux"`
	Centroid     float64       `json:"centroid"`

	Bands       BandValues `json:"bands"`
	SmoothBands BandValues `json:"smooth_bands"`
	BandPeaks   BandValues `json:"band_peaks"`
	BinPeaks    BandValues `json:"bin_peaks"` // loudest single bin per band this frame
	Energy3     Energy3    `json:"energy3"`

	// FFT is the last frequency buffer. Depending on Tuning.CopyFFT it is either
	// the caller's live frame buffer or a copy owned by the extractor.
	FFT []float64 `json:"-"`
}

// CopyTo copies every field into dst, reusing dst's FFT storage.
func (s *Snapshot) CopyTo(dst *Snapshot) {
	if dst == nil || dst == s {
		return
	}
	fft := dst.FFT
	*dst = *s
	if s.FFT == nil {
		dst.FFT = fft[:0]
		return
	}
	if cap(fft) < len(s.FFT) {
		fft = make([]float64, len(s.FFT))
	}
	fft = fft[:len(s.FFT)]
	copy(fft, s.FFT)
	dst.FFT = fft
}

// Reset zeroes all fields, keeping FFT storage.
func (s *Snapshot) Reset() {
	fft := s.FFT
	*s = Snapshot{}
	if fft != nil {
		s.FFT = fft[:0]
	}
}

// BeatEvent describes one detected onset. Events are values; a copy of the
// band state at detection time travels with each one.
type BeatEvent struct {
	Time        time.Duration `json:"time"`
	Strength    float64       `json:"strength"`
	Volume      float64       `json:"volume"`
	RMS         float64       `json:"rms"`
	Bands       BandValues    `json:"bands"`
	SmoothBands BandValues    `json:"smooth_bands"`
	Energy3     Energy3       `json:"energy3"`
	Peaks       BandValues    `json:"peaks"`
}
