package main

import (
	"fmt"
	"math"
	"sync"

	"github.com/cwbudde/mayfly"

	"github.com/cwbudde/algo-reactive/analysis"
	"github.com/cwbudde/algo-reactive/reactive"
)

// track is one audio file with its annotated beat times.
type track struct {
	Name      string
	Samples   []float64
	Rate      int
	Reference []float64
}

// detectBeats renders samples through a fresh engine and returns the beat
// times it reports.
func detectBeats(cfg reactive.Config, samples []float64, sampleRate int, fps float64) ([]float64, error) {
	cfg.Analyser.SampleRate = float64(sampleRate)
	eng, err := reactive.NewEngine(cfg)
	if err != nil {
		return nil, err
	}
	defer eng.Close()

	var beats []float64
	err = eng.Render(samples, fps, func(out *reactive.Output) error {
		if out.Beat {
			beats = append(beats, out.Time.Seconds())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return beats, nil
}

// evaluateTracks scores cfg against every track, running up to workers
// renders at once, and folds the per-track metrics into one.
func evaluateTracks(cfg reactive.Config, tracks []track, fps, tolerance float64, workers int) (analysis.Metrics, error) {
	if len(tracks) == 0 {
		return analysis.Metrics{}, fmt.Errorf("no tracks")
	}
	if workers < 1 {
		workers = 1
	}
	results := make([]analysis.Metrics, len(tracks))
	errs := make([]error, len(tracks))

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i := range tracks {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			tr := tracks[i]
			beats, err := detectBeats(cfg, tr.Samples, tr.Rate, fps)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", tr.Name, err)
				return
			}
			results[i] = analysis.CompareBeats(tr.Reference, beats, tolerance)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return analysis.Metrics{}, err
		}
	}
	return combineMetrics(results), nil
}

// combineMetrics sums the counts and averages the rates and scores.
func combineMetrics(ms []analysis.Metrics) analysis.Metrics {
	if len(ms) == 1 {
		return ms[0]
	}
	var out analysis.Metrics
	if len(ms) == 0 {
		return out
	}
	n := float64(len(ms))
	for _, m := range ms {
		out.ReferenceBeats += m.ReferenceBeats
		out.DetectedBeats += m.DetectedBeats
		out.Matched += m.Matched
		out.ToleranceSec = m.ToleranceSec
		out.Precision += m.Precision / n
		out.Recall += m.Recall / n
		out.FMeasure += m.FMeasure / n
		out.MeanOffsetSec += m.MeanOffsetSec / n
		out.MeanAbsOffsetSec += m.MeanAbsOffsetSec / n
		out.ReferenceBPM += m.ReferenceBPM / n
		out.DetectedBPM += m.DetectedBPM / n
		out.Score += m.Score / n
	}
	out.Similarity = math.Exp(-4 * out.Score)
	return out
}

func newMayflyConfig(variant string, pop int, dims int, iters int) (*mayfly.Config, error) {
	var cfg *mayfly.Config
	switch variant {
	case "ma":
		cfg = mayfly.NewDefaultConfig()
	case "desma":
		cfg = mayfly.NewDESMAConfig()
	case "olce":
		cfg = mayfly.NewOLCEConfig()
	case "eobbma":
		cfg = mayfly.NewEOBBMAConfig()
	case "gsasma":
		cfg = mayfly.NewGSASMAConfig()
	default:
		return nil, fmt.Errorf("unsupported variant %q", variant)
	}
	cfg.ProblemSize = dims
	cfg.LowerBound = 0.0
	cfg.UpperBound = 1.0
	cfg.MaxIterations = iters
	cfg.NPop = pop
	cfg.NPopF = pop
	cfg.NC = 2 * pop
	cfg.NM = max(1, int(math.Round(0.05*float64(pop))))
	return cfg, nil
}

func runMayfly(cfg *mayfly.Config) (_ *mayfly.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mayfly panic: %v", r)
		}
	}()
	return mayfly.Optimize(cfg)
}
