package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cwbudde/algo-reactive/analysis"
	"github.com/cwbudde/algo-reactive/internal/fitcommon"
	"github.com/cwbudde/algo-reactive/preset"
	"github.com/cwbudde/algo-reactive/reactive"
)

func main() {
	input := flag.String("input", "", "Input WAV file")
	presetPath := flag.String("preset", "", "Preset JSON file path (optional)")
	fps := flag.Float64("fps", 60, "Analysis frame rate")
	sensitivity := flag.Float64("sensitivity", 0, "Extractor sensitivity override (0 keeps the preset value)")
	resampleTo := flag.Int("sample-rate", 0, "Resample input to this rate before analysis (0 keeps the file rate)")
	output := flag.String("output", "-", "JSON-lines output path, '-' for stdout, '' to skip")
	every := flag.Int("every", 1, "Write every Nth frame")
	clicks := flag.String("clicks", "", "Write input mixed with a click per detected beat to this WAV path")
	beatsOut := flag.String("beats", "", "Write detected beat times (seconds, one per line)")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "usage: reactive-render -input song.wav [-preset p.json] [-output frames.jsonl]")
		os.Exit(2)
	}

	cfg := reactive.DefaultConfig()
	if *presetPath != "" {
		var err error
		cfg, err = preset.LoadJSON(*presetPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading preset %q: %v\n", *presetPath, err)
			os.Exit(1)
		}
	}
	if *sensitivity > 0 {
		cfg.Tuning.Sensitivity = *sensitivity
	}

	samples, sr, err := fitcommon.LoadMono(*input, *resampleTo)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %q: %v\n", *input, err)
		os.Exit(1)
	}
	cfg.Analyser.SampleRate = float64(sr)

	engine, err := reactive.NewEngine(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	var w *bufio.Writer
	switch *output {
	case "":
	case "-":
		w = bufio.NewWriter(os.Stdout)
	default:
		f, err := os.Create(*output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating output file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		w = bufio.NewWriter(f)
	}
	var enc *json.Encoder
	if w != nil {
		enc = json.NewEncoder(w)
	}
	if *every < 1 {
		*every = 1
	}

	status := os.Stdout
	if *output == "-" {
		status = os.Stderr
	}
	fmt.Fprintf(status, "Analysing %s: %.2fs at %d Hz, fft %d, %.0f fps\n",
		*input, float64(len(samples))/float64(sr), sr, cfg.Analyser.FFTSize, *fps)

	start := time.Now()
	frames := 0
	var beats []float64
	err = engine.Render(samples, *fps, func(out *reactive.Output) error {
		if out.Beat {
			beats = append(beats, out.Time.Seconds())
		}
		frames++
		if enc != nil && (frames-1)%*every == 0 {
			return enc.Encode(out)
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error rendering: %v\n", err)
		os.Exit(1)
	}
	if w != nil {
		if err := w.Flush(); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
			os.Exit(1)
		}
	}

	if *beatsOut != "" {
		if err := writeBeats(*beatsOut, beats); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing beats: %v\n", err)
			os.Exit(1)
		}
	}
	if *clicks != "" {
		track := fitcommon.ClickTrack(samples, beats, len(samples), sr, 0.6)
		if err := fitcommon.WriteMonoWAV(*clicks, track, sr); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing click track: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Fprintf(status, "Rendered %d frames in %s: %d beats, ~%.1f BPM\n",
		frames, time.Since(start).Round(time.Millisecond), len(beats), analysis.EstimateBPM(beats))
}

func writeBeats(path string, beats []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return formatBeats(f, beats)
}

func formatBeats(w io.Writer, beats []float64) error {
	bw := bufio.NewWriter(w)
	for _, b := range beats {
		if _, err := fmt.Fprintf(bw, "%.4f\n", b); err != nil {
			return err
		}
	}
	return bw.Flush()
}
