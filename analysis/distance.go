package analysis

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Metrics compares detected beat times against a reference list.
type Metrics struct {
	ReferenceBeats int     `json:"reference_beats"`
	DetectedBeats  int     `json:"detected_beats"`
	Matched        int     `json:"matched"`
	ToleranceSec   float64 `json:"tolerance_sec"`

	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	FMeasure  float64 `json:"f_measure"`

	MeanOffsetSec    float64 `json:"mean_offset_sec"`
	MeanAbsOffsetSec float64 `json:"mean_abs_offset_sec"`

	ReferenceBPM float64 `json:"reference_bpm"`
	DetectedBPM  float64 `json:"detected_bpm"`

	Score      float64 `json:"score"`
	Similarity float64 `json:"similarity"`
}

// CompareBeats matches each reference beat to at most one detected beat
// within toleranceSec and returns the resulting metrics. Score is in [0,1],
// lower is better.
func CompareBeats(reference, detected []float64, toleranceSec float64) Metrics {
	ref := sortedFinite(reference)
	det := sortedFinite(detected)
	m := Metrics{
		ReferenceBeats: len(ref),
		DetectedBeats:  len(det),
		ToleranceSec:   toleranceSec,
		ReferenceBPM:   EstimateBPM(ref),
		DetectedBPM:    EstimateBPM(det),
	}
	if len(ref) == 0 && len(det) == 0 {
		m.Precision, m.Recall, m.FMeasure = 1, 1, 1
		m.Similarity = 1
		return m
	}
	if len(ref) == 0 || len(det) == 0 || !(toleranceSec > 0) {
		m.Score = 1
		return m
	}

	var sumOff, sumAbs float64
	j := 0
	for _, r := range ref {
		for j < len(det) && det[j] < r-toleranceSec {
			j++
		}
		if j >= len(det) {
			break
		}
		// Prefer the closer of two candidates inside the window.
		k := j
		if k+1 < len(det) && math.Abs(det[k+1]-r) < math.Abs(det[k]-r) {
			k++
		}
		off := det[k] - r
		if math.Abs(off) <= toleranceSec {
			m.Matched++
			sumOff += off
			sumAbs += math.Abs(off)
			j = k + 1
		}
	}

	m.Precision = float64(m.Matched) / float64(len(det))
	m.Recall = float64(m.Matched) / float64(len(ref))
	if m.Precision+m.Recall > 0 {
		m.FMeasure = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	if m.Matched > 0 {
		m.MeanOffsetSec = sumOff / float64(m.Matched)
		m.MeanAbsOffsetSec = sumAbs / float64(m.Matched)
	}

	offNorm := clamp01(m.MeanAbsOffsetSec / toleranceSec)
	m.Score = clamp01(0.8*(1-m.FMeasure) + 0.2*offNorm)
	m.Similarity = clamp01(math.Exp(-4.0 * m.Score))
	return m
}

// EstimateBPM returns the tempo implied by the median inter-onset interval,
// folded by octaves into [60,200). It returns 0 for fewer than two beats.
func EstimateBPM(beats []float64) float64 {
	b := sortedFinite(beats)
	if len(b) < 2 {
		return 0
	}
	iois := make([]float64, 0, len(b)-1)
	for i := 1; i < len(b); i++ {
		if d := b[i] - b[i-1]; d > 0 {
			iois = append(iois, d)
		}
	}
	if len(iois) == 0 {
		return 0
	}
	sort.Float64s(iois)
	var median float64
	if n := len(iois); n%2 == 1 {
		median = iois[n/2]
	} else {
		median = 0.5 * (iois[n/2-1] + iois[n/2])
	}
	bpm := 60 / median
	for bpm < 60 {
		bpm *= 2
	}
	for bpm >= 200 {
		bpm /= 2
	}
	return bpm
}

// ParseBeatTimes reads one beat time in seconds per line. Blank lines and
// lines starting with '#' are skipped; only the first column is read, so
// label-track exports work as is.
func ParseBeatTimes(r io.Reader) ([]float64, error) {
	var out []float64
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		fields := strings.Fields(s)
		v, err := strconv.ParseFloat(fields[0], 64)
		if err != nil || !isFinite(v) || v < 0 {
			return nil, fmt.Errorf("line %d: invalid beat time %q", line, fields[0])
		}
		out = append(out, v)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	sort.Float64s(out)
	return out, nil
}

func sortedFinite(x []float64) []float64 {
	out := make([]float64, 0, len(x))
	for _, v := range x {
		if isFinite(v) {
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
