package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cwbudde/algo-reactive/analysis"
	"github.com/cwbudde/algo-reactive/internal/fitcommon"
	"github.com/cwbudde/algo-reactive/preset"
	"github.com/cwbudde/algo-reactive/reactive"
)

// pairList collects repeated -track audio.wav=beats.txt flags.
type pairList []string

func (p *pairList) String() string { return strings.Join(*p, ",") }

func (p *pairList) Set(v string) error {
	if _, _, err := splitPair(v); err != nil {
		return err
	}
	*p = append(*p, v)
	return nil
}

func splitPair(v string) (string, string, error) {
	audio, beats, ok := strings.Cut(v, "=")
	audio, beats = strings.TrimSpace(audio), strings.TrimSpace(beats)
	if !ok || audio == "" || beats == "" {
		return "", "", fmt.Errorf("track %q: want audio.wav=beats.txt", v)
	}
	return audio, beats, nil
}

func main() {
	var pairs pairList
	flag.Var(&pairs, "track", "Audio/reference pair audio.wav=beats.txt (repeatable)")
	presetPath := flag.String("preset", "", "Base preset JSON path (optional)")
	outputPreset := flag.String("output-preset", "out/beat-fit/best.json", "Path to write best fitted preset JSON")
	reportPath := flag.String("report", "", "Optional report JSON path (default: <output-preset>.report.json)")
	fps := flag.Float64("fps", 60, "Analysis frame rate")
	tolerance := flag.Float64("tolerance", 0.07, "Beat match tolerance in seconds")
	seed := flag.Int64("seed", 1, "Random seed")
	timeBudget := flag.Float64("time-budget", 120.0, "Optimization time budget in seconds")
	maxEvals := flag.Int("max-evals", 2000, "Maximum objective evaluations")
	reportEvery := flag.Int("report-every", 20, "Print progress every N evaluations")
	topK := flag.Int("top-k", 5, "How many top candidates to keep in report")
	workers := flag.String("workers", "auto", "Parallel track renders per evaluation (number or 'auto')")
	optimizeShape := flag.Bool("optimize-shape", false, "Also optimize attack/release/band exponent")
	resume := flag.Bool("resume", true, "Resume from previous best_knobs report when available")

	mayflyVariant := flag.String("mayfly-variant", "desma", "Mayfly variant: ma|desma|olce|eobbma|gsasma")
	mayflyPop := flag.Int("mayfly-pop", 10, "Male and female population size per Mayfly run")
	mayflyRoundEvals := flag.Int("mayfly-round-evals", 200, "Target eval budget per Mayfly round")
	flag.Parse()

	if len(pairs) == 0 {
		die("at least one -track audio.wav=beats.txt is required")
	}
	if *outputPreset == "" {
		die("output-preset must not be empty")
	}
	if *maxEvals < 1 {
		die("max-evals must be >= 1")
	}
	if *timeBudget <= 0 {
		die("time-budget must be > 0")
	}
	if *reportEvery < 1 {
		*reportEvery = 1
	}
	if *mayflyPop < 2 {
		*mayflyPop = 2
	}
	if *mayflyRoundEvals < *mayflyPop*2 {
		*mayflyRoundEvals = *mayflyPop * 2
	}
	if *topK < 1 {
		*topK = 1
	}
	nWorkers, err := fitcommon.ParseWorkers(*workers)
	if err != nil {
		die("invalid workers value: %v", err)
	}
	variant := strings.ToLower(*mayflyVariant)

	base := reactive.DefaultConfig()
	if *presetPath != "" {
		base, err = preset.LoadJSON(*presetPath)
		if err != nil {
			die("failed to load preset: %v", err)
		}
	}

	tracks, err := loadTracks(pairs)
	if err != nil {
		die("failed to load tracks: %v", err)
	}
	names := make([]string, len(tracks))
	for i, tr := range tracks {
		names[i] = tr.Name
		fmt.Printf("Track %s: %.1fs, %d reference beats (~%.1f BPM)\n",
			tr.Name, float64(len(tr.Samples))/float64(tr.Rate), len(tr.Reference), analysis.EstimateBPM(tr.Reference))
	}

	defs, initCand := initCandidate(base.Tuning, *optimizeShape)
	if *resume {
		resumePath := *reportPath
		if resumePath == "" {
			resumePath = *outputPreset + ".report.json"
		}
		if resumed, ok, err := loadCandidateFromReport(resumePath, defs, initCand); err != nil {
			fmt.Fprintf(os.Stderr, "resume skipped (%s): %v\n", resumePath, err)
		} else if ok {
			initCand = resumed
			fmt.Printf("Resumed candidate from %s\n", resumePath)
		}
	}

	configFor := func(c candidate) reactive.Config {
		cfg := base
		cfg.Tuning = applyCandidate(base.Tuning, defs, c)
		return cfg
	}
	evaluate := func(c candidate) (analysis.Metrics, error) {
		cfg := configFor(c)
		if err := cfg.Tuning.Validate(); err != nil {
			return analysis.Metrics{}, err
		}
		return evaluateTracks(cfg, tracks, *fps, *tolerance, nWorkers)
	}

	start := time.Now()
	deadline := start.Add(time.Duration(*timeBudget * float64(time.Second)))
	evals := 0
	improves := 0
	top := make([]topCandidate, 0, *topK)

	best := initCand
	bestM, err := evaluate(best)
	if err != nil {
		die("initial evaluation failed: %v", err)
	}
	evals++
	top = updateTopCandidates(top, *topK, evals, bestM, defs, best)
	fmt.Printf("Start score=%.4f f=%.3f similarity=%.2f%%\n", bestM.Score, bestM.FMeasure, bestM.Similarity*100.0)

	report := func() runReport {
		return runReport{
			Tracks:         names,
			PresetPath:     *presetPath,
			OutputPreset:   *outputPreset,
			FPS:            *fps,
			ToleranceSec:   *tolerance,
			DurationSec:    time.Since(start).Seconds(),
			Evaluations:    evals,
			MayflyVariant:  variant,
			BestScore:      bestM.Score,
			BestSimilarity: bestM.Similarity,
			BestMetrics:    bestM,
			BestKnobs:      knobMap(defs, best),
			TopCandidates:  top,
		}
	}

	round := 0
	for evals < *maxEvals && time.Now().Before(deadline) {
		round++
		budget := min(*mayflyRoundEvals, *maxEvals-evals)
		iters := max(1, budget/(2*(*mayflyPop)))

		cfg, err := newMayflyConfig(variant, *mayflyPop, len(defs), iters)
		if err != nil {
			die("invalid mayfly variant: %v", err)
		}
		cfg.Rand = rand.New(rand.NewSource(*seed + int64(round)*7919))

		cfg.ObjectiveFunc = func(pos []float64) float64 {
			if evals >= *maxEvals || time.Now().After(deadline) {
				return bestM.Score + 1.0
			}
			cand := fromNormalized(pos, defs)
			m, err := evaluate(cand)
			evals++
			if err != nil {
				return bestM.Score + 0.8
			}
			top = updateTopCandidates(top, *topK, evals, m, defs, cand)

			if m.Score < bestM.Score {
				best = cand
				bestM = m
				improves++
				fmt.Printf("Improved #%d eval=%d score=%.4f f=%.3f sim=%.2f%%\n", improves, evals, bestM.Score, bestM.FMeasure, bestM.Similarity*100.0)
				if err := writeOutputs(*outputPreset, *reportPath, configFor(best), report()); err != nil {
					fmt.Fprintf(os.Stderr, "checkpoint write failed: %v\n", err)
				}
			}
			if evals%*reportEvery == 0 {
				fmt.Printf("Progress round=%d eval=%d elapsed=%.1fs best=%.4f\n", round, evals, time.Since(start).Seconds(), bestM.Score)
			}
			return m.Score
		}

		if _, err := runMayfly(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "mayfly round %d failed: %v\n", round, err)
			continue
		}
	}

	if err := writeOutputs(*outputPreset, *reportPath, configFor(best), report()); err != nil {
		die("failed to write outputs: %v", err)
	}
	fmt.Printf("Done evals=%d elapsed=%.1fs best_score=%.4f f=%.3f variant=%s\n",
		evals, time.Since(start).Seconds(), bestM.Score, bestM.FMeasure, variant)
}

func loadTracks(pairs []string) ([]track, error) {
	tracks := make([]track, 0, len(pairs))
	for _, p := range pairs {
		audioPath, beatsPath, err := splitPair(p)
		if err != nil {
			return nil, err
		}
		samples, sr, err := fitcommon.LoadMono(audioPath, 0)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", audioPath, err)
		}
		ref, err := readBeats(beatsPath)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", beatsPath, err)
		}
		tracks = append(tracks, track{
			Name:      filepath.Base(audioPath),
			Samples:   samples,
			Rate:      sr,
			Reference: ref,
		})
	}
	return tracks, nil
}

func readBeats(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return analysis.ParseBeatTimes(f)
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
