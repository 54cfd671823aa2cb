package dsp

import (
	"math"
	"testing"
)

func TestRollingWindowEvictsOldest(t *testing.T) {
	w := NewRollingWindow(3)
	for _, v := range []float64{1, 2, 3, 4} {
		w.Push(v)
	}
	if w.Len() != 3 {
		t.Fatalf("len=%d want 3", w.Len())
	}
	if got := w.Mean(); math.Abs(got-3) > 1e-12 {
		t.Fatalf("mean=%f want 3", got)
	}
}

func TestRollingWindowPopulationStdDev(t *testing.T) {
	w := NewRollingWindow(8)
	for _, v := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		w.Push(v)
	}
	mean, std := w.MeanStdDev()
	if math.Abs(mean-5) > 1e-12 || math.Abs(std-2) > 1e-12 {
		t.Fatalf("mean=%f std=%f want 5, 2", mean, std)
	}
}

func TestRollingWindowEmpty(t *testing.T) {
	w := NewRollingWindow(0)
	mean, std := w.MeanStdDev()
	if mean != 0 || std != 0 || w.Size() != 1 {
		t.Fatalf("unexpected empty stats mean=%f std=%f size=%d", mean, std, w.Size())
	}
	w.Push(4)
	w.Resize(5)
	if w.Len() != 0 || w.Size() != 5 {
		t.Fatalf("resize should clear: len=%d size=%d", w.Len(), w.Size())
	}
}

func TestAttackReleaseAsymmetry(t *testing.T) {
	up := AttackRelease(0, 1, 0.5, 0.1)
	down := AttackRelease(1, 0, 0.5, 0.1)
	if math.Abs(up-0.5) > 1e-12 {
		t.Fatalf("attack step=%f want 0.5", up)
	}
	if math.Abs(down-0.9) > 1e-12 {
		t.Fatalf("release step=%f want 0.9", down)
	}
}

func TestClamp01(t *testing.T) {
	cases := []struct{ in, want float64 }{{-1, 0}, {0.25, 0.25}, {3, 1}, {math.NaN(), 0}}
	for _, c := range cases {
		if got := Clamp01(c.in); got != c.want {
			t.Fatalf("Clamp01(%f)=%f want %f", c.in, got, c.want)
		}
	}
}
