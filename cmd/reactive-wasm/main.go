//go:build js && wasm

package main

import (
	"encoding/json"
	"syscall/js"

	"github.com/cwbudde/algo-reactive/features"
	"github.com/cwbudde/algo-reactive/preset"
	"github.com/cwbudde/algo-reactive/reactive"
)

var (
	engine   *reactive.Engine
	frame    features.Frame
	freqBuf  []byte
	timeBuf  []byte
	beatHook js.Value
)

func main() {
	// Keep program running
	c := make(chan struct{})

	js.Global().Set("reactiveInit", js.FuncOf(reactiveInit))
	js.Global().Set("reactiveProcess", js.FuncOf(reactiveProcess))
	js.Global().Set("reactiveSetSensitivity", js.FuncOf(reactiveSetSensitivity))
	js.Global().Set("reactiveOnBeat", js.FuncOf(reactiveOnBeat))

	println("WASM reactive module loaded")
	<-c
}

// reactiveInit(sampleRate, fftSize, presetJSON?) builds the pipeline.
func reactiveInit(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return "reactiveInit needs sampleRate and fftSize"
	}
	cfg := reactive.DefaultConfig()
	if len(args) > 2 && args[2].Type() == js.TypeString && args[2].String() != "" {
		f, err := preset.Parse([]byte(args[2].String()))
		if err != nil {
			return err.Error()
		}
		if err := preset.ApplyFile(&cfg, f); err != nil {
			return err.Error()
		}
	}
	cfg.Analyser.SampleRate = args[0].Float()
	cfg.Analyser.FFTSize = args[1].Int()

	if engine != nil {
		engine.Close()
	}
	e, err := reactive.NewEngine(cfg)
	if err != nil {
		return err.Error()
	}
	engine = e
	engine.Bus().Subscribe(func(ev features.BeatEvent) error {
		if beatHook.Type() == js.TypeFunction {
			beatHook.Invoke(ev.Time.Seconds(), ev.Strength, ev.Volume)
		}
		return nil
	})

	frame.SampleRate = cfg.Analyser.SampleRate
	frame.FFTSize = cfg.Analyser.FFTSize
	println("Reactive engine initialized at", int(cfg.Analyser.SampleRate), "Hz, fft", cfg.Analyser.FFTSize)
	return nil
}

// reactiveProcess(freqUint8Array, timeUint8Array, dtSeconds) runs one frame
// and returns the output as a JSON string.
func reactiveProcess(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 || engine == nil {
		return nil
	}
	freqBuf = copyBytes(freqBuf, args[0])
	timeBuf = copyBytes(timeBuf, args[1])
	frame.LoadBytes(freqBuf, timeBuf)

	out := engine.StepFrame(frame, args[2].Float())
	b, err := json.Marshal(out)
	if err != nil {
		println("marshal failed:", err.Error())
		return nil
	}
	return string(b)
}

func reactiveSetSensitivity(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || engine == nil {
		return nil
	}
	engine.SetSensitivity(args[0].Float())
	return nil
}

// reactiveOnBeat(fn) registers fn(timeSeconds, strength, volume).
func reactiveOnBeat(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	beatHook = args[0]
	return nil
}

func copyBytes(dst []byte, src js.Value) []byte {
	n := src.Get("length").Int()
	if cap(dst) < n {
		dst = make([]byte, n)
	}
	dst = dst[:n]
	js.CopyBytesToGo(dst, src)
	return dst
}
