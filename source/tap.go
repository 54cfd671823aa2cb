package source

import (
	"sync"

	"github.com/faiface/beep"
)

// Tap wraps a streamer and records a mono mix of everything that passes
// through it, so the frame loop can analyse what is currently playing.
type Tap struct {
	s       beep.Streamer
	mu      sync.Mutex
	buf     []float64
	pos     int
	written int
}

// NewTap wraps s with a ring of size samples.
func NewTap(s beep.Streamer, size int) *Tap {
	if size < 1 {
		size = 1
	}
	return &Tap{s: s, buf: make([]float64, size)}
}

// Stream passes audio through unchanged.
func (t *Tap) Stream(samples [][2]float64) (int, bool) {
	n, ok := t.s.Stream(samples)
	t.mu.Lock()
	size := len(t.buf)
	for i := 0; i < n; i++ {
		t.buf[t.pos] = (samples[i][0] + samples[i][1]) / 2
		t.pos = (t.pos + 1) % size
	}
	t.written += n
	t.mu.Unlock()
	return n, ok
}

// Err returns the wrapped streamer's error.
func (t *Tap) Err() error {
	return t.s.Err()
}

// Latest fills dst with the newest len(dst) samples in chronological order.
// Positions older than anything recorded are zero. It returns the number of
// recorded samples copied.
func (t *Tap) Latest(dst []float64) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	size := len(t.buf)
	avail := t.written
	if avail > size {
		avail = size
	}
	n := len(dst)
	if n > avail {
		for i := range dst[:n-avail] {
			dst[i] = 0
		}
		dst = dst[n-avail:]
		n = avail
	}
	start := (t.pos - n + size) % size
	for i := 0; i < n; i++ {
		dst[i] = t.buf[(start+i)%size]
	}
	return n
}

// Written returns the total number of samples that passed through.
func (t *Tap) Written() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.written
}
