// Command streamconv runs a synthetic or file-provided signal through one
// of streamconv/dsp's three convolution engines and reports its latency,
// processing time, and (optionally) its peak error against a reference
// direct convolution.
//
// Usage:
//
//	streamconv [options] <impulse-response-file>
//
// Options:
//
//	-engine        Engine to use: karatsuba, fft, or hybrid (default: hybrid)
//	-block         Block size in samples (default: 256)
//	-seconds       Length of the synthetic test signal, in seconds (default: 2)
//	-samplerate    Sample rate of the synthetic signal (default: 48000)
//	-verify        Compare against a reference direct convolution and report peak error
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"streamconv/dsp"
)

var (
	engineName = flag.String("engine", "hybrid", "Engine to use: karatsuba, fft, or hybrid")
	blockSize  = flag.Int("block", 256, "Block size in samples")
	seconds    = flag.Float64("seconds", 2.0, "Length of the synthetic test signal, in seconds")
	sampleRate = flag.Int("samplerate", 48000, "Sample rate of the synthetic signal")
	verify     = flag.Bool("verify", false, "Compare against a reference direct convolution and report peak error")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <impulse-response-file>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Runs a synthetic test signal through a streamconv engine.\n\n")
		fmt.Fprintf(os.Stderr, "The impulse response file is raw little-endian float32 PCM; pass\n")
		fmt.Fprintf(os.Stderr, "\"-\" or omit it to use a synthetic decaying-noise impulse response.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	irPath := "-"
	if flag.NArg() == 1 {
		irPath = flag.Arg(0)
	}

	if err := run(irPath); err != nil {
		slog.Error("streamconv failed", "error", err)
		os.Exit(1)
	}
}

func run(irPath string) error {
	ir, err := loadImpulseResponse(irPath)
	if err != nil {
		return fmt.Errorf("loading impulse response: %w", err)
	}
	slog.Info("impulse response ready", "taps", len(ir), "source", irPath)

	signal := syntheticSignal(*seconds, *sampleRate)
	slog.Info("synthetic signal generated", "samples", len(signal), "seconds", *seconds, "sampleRate", *sampleRate)

	cfg := dsp.Config{MaxCoefficients: len(ir), MaxBlockSamples: *blockSize}
	engine, err := newEngine(*engineName, cfg)
	if err != nil {
		return fmt.Errorf("building engine: %w", err)
	}
	if err := engine.SetCoefficients(ir); err != nil {
		return fmt.Errorf("installing coefficients: %w", err)
	}
	slog.Info("engine ready", "type", *engineName, "latency", engine.Latency())

	out := make([]float32, len(signal))
	start := time.Now()
	for lo := 0; lo < len(signal); lo += *blockSize {
		hi := min(lo+*blockSize, len(signal))
		if hi-lo < *blockSize {
			// Pad the final partial block; only the first hi-lo samples of
			// the result are meaningful.
			in := make([]float32, *blockSize)
			copy(in, signal[lo:hi])
			blockOut := make([]float32, *blockSize)
			if err := engine.Process(in, blockOut); err != nil {
				return fmt.Errorf("processing final block: %w", err)
			}
			copy(out[lo:hi], blockOut[:hi-lo])
			break
		}
		if err := engine.Process(signal[lo:hi], out[lo:hi]); err != nil {
			return fmt.Errorf("processing block at sample %d: %w", lo, err)
		}
	}
	elapsed := time.Since(start)
	slog.Info("processing complete", "elapsed", elapsed, "samplesPerSecond", float64(len(signal))/elapsed.Seconds())

	if *verify {
		reference := directConvolve(signal, ir)
		var peak float32
		latency := engine.Latency()
		for i := 0; i < len(signal)-latency; i++ {
			diff := out[i+latency] - reference[i]
			if diff < 0 {
				diff = -diff
			}
			if diff > peak {
				peak = diff
			}
		}
		slog.Info("verification against direct convolution", "peakError", peak)
	}

	return nil
}

func newEngine(name string, cfg dsp.Config) (dsp.Engine, error) {
	switch name {
	case "karatsuba":
		return dsp.NewKaratsubaEngine(cfg)
	case "fft":
		return dsp.NewFftEngine(cfg)
	case "hybrid":
		return dsp.NewHybridEngine(cfg)
	default:
		return nil, fmt.Errorf("unknown engine %q (want karatsuba, fft, or hybrid)", name)
	}
}

// loadImpulseResponse reads a raw little-endian float32 PCM file, or
// generates a synthetic exponentially-decaying noise impulse response when
// path is "-".
func loadImpulseResponse(path string) ([]float32, error) {
	if path == "-" {
		return syntheticImpulseResponse(4096), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("file size %d is not a multiple of 4 bytes", len(raw))
	}

	ir := make([]float32, len(raw)/4)
	for i := range ir {
		bits := binary.LittleEndian.Uint32(raw[i*4:])
		ir[i] = math.Float32frombits(bits)
	}
	return ir, nil
}

// syntheticImpulseResponse builds a deterministic, exponentially-decaying
// pseudo-noise impulse response of length n, standing in for a real
// recorded impulse response when none is provided.
func syntheticImpulseResponse(n int) []float32 {
	ir := make([]float32, n)
	state := uint32(0x2545F491)
	for i := range ir {
		state ^= state << 13
		state ^= state >> 17
		state ^= state << 5
		noise := float32(state)/float32(math.MaxUint32)*2 - 1
		decay := float32(math.Exp(-float64(i) / float64(n) * 6))
		ir[i] = noise * decay
	}
	return ir
}

// syntheticSignal builds a deterministic 440 Hz sine test tone, so that
// timing runs do not depend on reading an external audio file.
func syntheticSignal(lengthSeconds float64, sampleRate int) []float32 {
	n := int(lengthSeconds * float64(sampleRate))
	signal := make([]float32, n)
	const freqHz = 440.0
	for i := range signal {
		t := float64(i) / float64(sampleRate)
		signal[i] = float32(0.5 * math.Sin(2*math.Pi*freqHz*t))
	}
	return signal
}

// directConvolve computes the first len(signal) samples of the linear
// convolution of signal and ir with the standard O(n*m) definition, used
// only for -verify.
func directConvolve(signal, ir []float32) []float32 {
	out := make([]float32, len(signal))
	for n := range out {
		var acc float32
		for k := 0; k < len(ir) && k <= n; k++ {
			acc += ir[k] * signal[n-k]
		}
		out[n] = acc
	}
	return out
}
