package dsp

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/core"
)

// RollingWindow keeps the most recent values in a circular buffer and reports
// their population statistics (no heap allocations in Push).
type RollingWindow struct {
	buffer   []float64
	writePos int
	count    int
	size     int
}

// NewRollingWindow creates a window holding at most size values.
func NewRollingWindow(size int) *RollingWindow {
	if size < 1 {
		size = 1
	}
	return &RollingWindow{
		buffer: make([]float64, size),
		size:   size,
	}
}

// Push appends a value, overwriting the oldest one once the window is full.
func (w *RollingWindow) Push(v float64) {
	w.buffer[w.writePos] = v
	w.writePos = (w.writePos + 1) % w.size
	if w.count < w.size {
		w.count++
	}
}

// Len returns the number of values currently held.
func (w *RollingWindow) Len() int {
	return w.count
}

// Size returns the window capacity.
func (w *RollingWindow) Size() int {
	return w.size
}

// Mean returns the arithmetic mean of the held values, 0 when empty.
func (w *RollingWindow) Mean() float64 {
	if w.count == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < w.count; i++ {
		sum += w.buffer[i]
	}
	return sum / float64(w.count)
}

// MeanStdDev returns the mean and population standard deviation.
func (w *RollingWindow) MeanStdDev() (mean, std float64) {
	if w.count == 0 {
		return 0, 0
	}
	mean = w.Mean()
	var acc float64
	for i := 0; i < w.count; i++ {
		d := w.buffer[i] - mean
		acc += d * d
	}
	return mean, math.Sqrt(acc / float64(w.count))
}

// Resize changes the capacity. Held values are discarded.
func (w *RollingWindow) Resize(size int) {
	if size < 1 {
		size = 1
	}
	if size != w.size {
		w.buffer = make([]float64, size)
		w.size = size
	}
	w.Reset()
}

// Reset clears the window
func (w *RollingWindow) Reset() {
	for i := range w.buffer {
		w.buffer[i] = 0
	}
	w.writePos = 0
	w.count = 0
}

// Lerp moves a toward b by fraction t.
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// AttackRelease smooths prev toward target, using attack while the signal rises
// and release while it falls.
func AttackRelease(prev, target, attack, release float64) float64 {
	k := release
	if target > prev {
		k = attack
	}
	return core.FlushDenormals(prev + (target-prev)*k)
}

// Clamp01 limits v to [0,1]; NaN maps to 0.
func Clamp01(v float64) float64 {
	if !(v > 0) {
		return 0
	}
	return core.Clamp(v, 0, 1)
}
