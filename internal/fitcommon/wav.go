package fitcommon

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"
	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
)

// ReadWAVMono reads a WAV file and downmixes it to mono.
func ReadWAVMono(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("invalid wav file: %s", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, err
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, 0, fmt.Errorf("invalid wav buffer: %s", path)
	}
	ch := buf.Format.NumChannels
	frames := len(buf.Data) / ch
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < ch; c++ {
			sum += float64(buf.Data[i*ch+c])
		}
		out[i] = sum / float64(ch)
	}
	return out, buf.Format.SampleRate, nil
}

// LoadMono reads path as mono at targetRate. A targetRate <= 0 keeps the
// file's own rate.
func LoadMono(path string, targetRate int) ([]float64, int, error) {
	x, sr, err := ReadWAVMono(path)
	if err != nil {
		return nil, 0, err
	}
	if sr <= 0 {
		return nil, 0, fmt.Errorf("invalid wav sample-rate %d: %s", sr, path)
	}
	if targetRate <= 0 {
		return x, sr, nil
	}
	x, err = ResampleIfNeeded(x, sr, targetRate)
	if err != nil {
		return nil, 0, err
	}
	return x, targetRate, nil
}

// ResampleIfNeeded converts in from fromRate to toRate.
func ResampleIfNeeded(in []float64, fromRate int, toRate int) ([]float64, error) {
	if fromRate == toRate {
		return in, nil
	}
	r, err := dspresample.NewForRates(
		float64(fromRate),
		float64(toRate),
		dspresample.WithQuality(dspresample.QualityBest),
	)
	if err != nil {
		return nil, err
	}
	return r.Process(in), nil
}

// WriteMonoWAV writes 16-bit mono PCM, creating parent directories.
func WriteMonoWAV(path string, data []float32, sampleRate int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	defer enc.Close()

	buf := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: 1,
		},
		Data:           data,
		SourceBitDepth: 16,
	}
	return enc.Write(buf)
}

// ClickTrack mixes a short decaying 1 kHz blip at each beat time into a copy
// of the (optional) source audio, for listening to detections.
func ClickTrack(source []float64, beats []float64, frames int, sampleRate int, gain float64) []float32 {
	out := make([]float32, frames)
	for i := 0; i < frames && i < len(source); i++ {
		out[i] = float32(source[i] * 0.5)
	}
	clickLen := sampleRate / 50
	for _, t := range beats {
		start := int(t * float64(sampleRate))
		if start < 0 || start >= frames {
			continue
		}
		for i := 0; i < clickLen && start+i < frames; i++ {
			env := math.Exp(-float64(i) / float64(clickLen) * 6)
			v := gain * env * math.Sin(2*math.Pi*1000*float64(i)/float64(sampleRate))
			out[start+i] = float32(Clamp(float64(out[start+i])+v, -1, 1))
		}
	}
	return out
}
