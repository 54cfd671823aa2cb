package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-reactive/features"
	"github.com/cwbudde/algo-reactive/preset"
	"github.com/cwbudde/algo-reactive/reactive"
	"github.com/cwbudde/algo-reactive/source"
)

func main() {
	input := flag.String("input", "", "Input WAV file")
	presetPath := flag.String("preset", "", "Preset JSON file path (optional)")
	fps := flag.Float64("fps", 60, "Frame rate")
	realtime := flag.Bool("realtime", true, "Pace frames against the wall clock")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	logJSON := flag.Bool("log-json", false, "Emit JSON log lines")
	paramsEvery := flag.Int("params-every", 30, "Log controller output every N frames at debug level (0 disables)")
	flag.Parse()

	log := logrus.New()
	log.SetOutput(os.Stderr)
	if *logJSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing log level: %v\n", err)
		os.Exit(2)
	}
	log.SetLevel(level)

	if *input == "" {
		fmt.Fprintln(os.Stderr, "usage: reactive-stream -input song.wav [-preset p.json]")
		os.Exit(2)
	}
	if !(*fps > 0) {
		fmt.Fprintf(os.Stderr, "Error: fps must be > 0\n")
		os.Exit(2)
	}

	cfg := reactive.DefaultConfig()
	if *presetPath != "" {
		cfg, err = preset.LoadJSON(*presetPath)
		if err != nil {
			log.WithError(err).WithField("preset", *presetPath).Fatal("failed to load preset")
		}
	}
	cfg.Logger = log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log, cfg, *input, *fps, *realtime, *paramsEvery); err != nil {
		log.WithError(err).Fatal("stream failed")
	}
}

func run(ctx context.Context, log *logrus.Logger, cfg reactive.Config, path string, fps float64, realtime bool, paramsEvery int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	streamer, format, err := source.DecodeWAV(f)
	if err != nil {
		f.Close()
		return err
	}
	defer streamer.Close()

	cfg.Analyser.SampleRate = float64(format.SampleRate)
	engine, err := reactive.NewEngine(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	beats := 0
	unsubscribe := engine.Bus().Subscribe(func(ev features.BeatEvent) error {
		beats++
		log.WithFields(logrus.Fields{
			"time":     ev.Time.Round(time.Millisecond),
			"strength": fmt.Sprintf("%.3f", ev.Strength),
			"low":      fmt.Sprintf("%.3f", ev.Energy3.Low),
		}).Info("beat")
		return nil
	})
	defer unsubscribe()

	size := engine.Analyser().FFTSize()
	tap := source.NewTap(streamer, size)
	hop := int(float64(format.SampleRate) / fps)
	if hop < 1 {
		hop = 1
	}
	dt := float64(hop) / float64(format.SampleRate)
	block := make([]float64, hop)
	window := make([]float64, size)
	var scratch [][2]float64

	log.WithFields(logrus.Fields{
		"input":       path,
		"sample_rate": int(format.SampleRate),
		"channels":    format.NumChannels,
		"duration":    format.SampleRate.D(streamer.Len()).Round(time.Millisecond),
		"fft_size":    size,
		"fps":         fps,
	}).Info("streaming")

	var ticker *time.Ticker
	if realtime {
		ticker = time.NewTicker(time.Duration(dt * float64(time.Second)))
		defer ticker.Stop()
	}

	frames := 0
	for {
		if ticker != nil {
			select {
			case <-ctx.Done():
				log.Info("interrupted")
				return nil
			case <-ticker.C:
			}
		} else if ctx.Err() != nil {
			log.Info("interrupted")
			return nil
		}

		var n int
		n, scratch, err = source.Pull(tap, block, scratch)
		if n > 0 {
			tap.Latest(window)
			out, serr := engine.Step(window, dt)
			if serr != nil {
				return serr
			}
			frames++
			if paramsEvery > 0 && frames%paramsEvery == 0 {
				log.WithFields(logrus.Fields{
					"volume": fmt.Sprintf("%.3f", out.Snapshot.Volume),
					"bloom":  fmt.Sprintf("%.3f", out.Effects.Bloom),
					"glitch": fmt.Sprintf("%.3f", out.Effects.Glitch),
					"hue":    fmt.Sprintf("%.3f", out.Material.Hue),
				}).Debug("frame")
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
	}

	log.WithFields(logrus.Fields{
		"frames": frames,
		"beats":  beats,
	}).Info("done")
	return nil
}
