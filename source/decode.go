package source

import (
	"fmt"
	"io"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
)

// DecodeWAV opens a streamed WAV decoder. Closing the returned streamer
// closes rc.
func DecodeWAV(rc io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) {
	s, format, err := wav.Decode(rc)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("decode wav: %w", err)
	}
	return s, format, nil
}

// Pull reads up to len(dst) frames from s as a mono mix. It returns the
// number of frames read and io.EOF once the streamer is drained.
func Pull(s beep.Streamer, dst []float64, scratch [][2]float64) (int, [][2]float64, error) {
	if cap(scratch) < len(dst) {
		scratch = make([][2]float64, len(dst))
	}
	scratch = scratch[:len(dst)]
	total := 0
	for total < len(dst) {
		n, ok := s.Stream(scratch[total:])
		for i := total; i < total+n; i++ {
			dst[i] = (scratch[i][0] + scratch[i][1]) / 2
		}
		total += n
		if !ok {
			if err := s.Err(); err != nil {
				return total, scratch, err
			}
			return total, scratch, io.EOF
		}
	}
	return total, scratch, nil
}
