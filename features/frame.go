package features

// Frame carries one animation frame of analysis data.
//
// Frequency holds magnitudes normalized to [0,1] (one value per bin, usually
// FFTSize/2 bins). TimeDomain holds samples recentered around zero in [-1,1].
type Frame struct {
	Frequency  []float64
	TimeDomain []float64
	SampleRate float64
	FFTSize    int
}

const byteMidpoint = 128

// LoadBytes fills the frame from byte buffers as produced by browser analyser
// nodes: magnitudes scaled to 0..255 and time samples centred on 128.
// The frame's slices are reused when large enough.
func (f *Frame) LoadBytes(freq []byte, timeData []byte) {
	f.Frequency = resize(f.Frequency, len(freq))
	for i, v := range freq {
		f.Frequency[i] = float64(v) / 255
	}
	f.TimeDomain = resize(f.TimeDomain, len(timeData))
	for i, v := range timeData {
		f.TimeDomain[i] = float64(int(v)-byteMidpoint) / byteMidpoint
	}
}

// Empty reports whether the frame carries no data at all.
func (f *Frame) Empty() bool {
	return len(f.Frequency) == 0 && len(f.TimeDomain) == 0
}

func resize(buf []float64, n int) []float64 {
	if cap(buf) < n {
		return make([]float64, n)
	}
	return buf[:n]
}
