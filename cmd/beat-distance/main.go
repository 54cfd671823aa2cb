package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/cwbudde/algo-reactive/analysis"
	"github.com/cwbudde/algo-reactive/internal/fitcommon"
	"github.com/cwbudde/algo-reactive/preset"
	"github.com/cwbudde/algo-reactive/reactive"
)

func main() {
	referencePath := flag.String("reference", "", "Reference beat times (seconds, one per line)")
	candidatePath := flag.String("candidate", "", "Candidate beat times; if empty, detect them from -audio")
	audioPath := flag.String("audio", "", "WAV file to run through the detector when -candidate is empty")
	presetPath := flag.String("preset", "", "Preset JSON path for detection (optional)")
	fps := flag.Float64("fps", 60, "Analysis frame rate for detection")
	tolerance := flag.Float64("tolerance", 0.07, "Match tolerance in seconds")
	jsonOut := flag.Bool("json", false, "Print metrics as JSON")
	flag.Parse()

	if *referencePath == "" {
		die("reference must not be empty")
	}
	ref, err := readBeats(*referencePath)
	if err != nil {
		die("failed to read reference: %v", err)
	}

	var cand []float64
	switch {
	case *candidatePath != "":
		cand, err = readBeats(*candidatePath)
		if err != nil {
			die("failed to read candidate: %v", err)
		}
	case *audioPath != "":
		cand, err = detect(*audioPath, *presetPath, *fps)
		if err != nil {
			die("failed to detect beats: %v", err)
		}
	default:
		die("one of -candidate or -audio is required")
	}

	metrics := analysis.CompareBeats(ref, cand, *tolerance)
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(metrics); err != nil {
			die("json encode failed: %v", err)
		}
		return
	}

	fmt.Printf("Reference beats:  %d (~%.1f BPM)\n", metrics.ReferenceBeats, metrics.ReferenceBPM)
	fmt.Printf("Detected beats:   %d (~%.1f BPM)\n", metrics.DetectedBeats, metrics.DetectedBPM)
	fmt.Printf("Matched:          %d within ±%.0f ms\n", metrics.Matched, metrics.ToleranceSec*1000)
	fmt.Println()
	fmt.Printf("Precision:        %.1f%%\n", metrics.Precision*100)
	fmt.Printf("Recall:           %.1f%%\n", metrics.Recall*100)
	fmt.Printf("F-measure:        %.3f\n", metrics.FMeasure)
	fmt.Printf("Mean offset:      %+.1f ms (abs %.1f ms)\n", metrics.MeanOffsetSec*1000, metrics.MeanAbsOffsetSec*1000)
	fmt.Printf("Score:            %.4f  (0 best, 1 worst)\n", metrics.Score)
	fmt.Printf("Similarity:       %.2f%%\n", metrics.Similarity*100.0)
}

func detect(audioPath, presetPath string, fps float64) ([]float64, error) {
	cfg := reactive.DefaultConfig()
	if presetPath != "" {
		var err error
		if cfg, err = preset.LoadJSON(presetPath); err != nil {
			return nil, err
		}
	}
	samples, sr, err := fitcommon.LoadMono(audioPath, 0)
	if err != nil {
		return nil, err
	}
	cfg.Analyser.SampleRate = float64(sr)
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
	return beats, err
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
