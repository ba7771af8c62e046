// Package dsp implements three interchangeable streaming FIR convolution
// engines behind a single Engine interface: a zero-latency time-domain
// Karatsuba engine, a partitioned overlap-save FFT engine, and a hybrid that
// composes the two for zero added latency at any impulse response length.
package dsp

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned by New* constructors when a Config has
// non-positive sizes, and by SetCoefficients when the impulse response is
// empty or longer than the configured maximum.
var ErrInvalidConfig = errors.New("dsp: invalid config")

// ErrBlockSizeMismatch is returned by Process when the input and output
// slices do not agree in length, or exceed the engine's configured maximum
// block size.
var ErrBlockSizeMismatch = errors.New("dsp: block size mismatch")

// Config bounds the resources a single Engine instance may use over its
// lifetime. It is the Go analogue of the C library's work-size
// configuration struct: callers size their engines up front and the engine
// never grows its buffers afterward.
type Config struct {
	// MaxCoefficients is the longest impulse response SetCoefficients will
	// ever be called with.
	MaxCoefficients int
	// MaxBlockSamples is the longest input/output block Process will ever
	// be called with.
	MaxBlockSamples int
}

func (c Config) validate() error {
	if c.MaxCoefficients <= 0 || c.MaxBlockSamples <= 0 {
		return fmt.Errorf("%w: MaxCoefficients=%d MaxBlockSamples=%d", ErrInvalidConfig, c.MaxCoefficients, c.MaxBlockSamples)
	}
	return nil
}

// Engine is the common contract implemented by KaratsubaEngine, FftEngine,
// and HybridEngine. An Engine is single-writer and non-reentrant: a caller
// must not invoke any method concurrently with another, nor call Process
// concurrently with itself. Callers that need external synchronization
// across engines (for example, one engine per audio channel) should use
// MultiChannel, which supplies the necessary mutex discipline.
//
// An Engine never allocates once constructed: SetCoefficients and Process
// only ever write into buffers sized at construction time from Config.
type Engine interface {
	// SetCoefficients installs a new impulse response, replacing any
	// previous one. len(h) must not exceed the Config.MaxCoefficients the
	// engine was constructed with.
	SetCoefficients(h []float32) error

	// Process convolves in with the current coefficients and writes the
	// result to out. in and out must have equal length, must not exceed
	// Config.MaxBlockSamples, and must not alias each other.
	Process(in, out []float32) error

	// Reset clears all internal state (delay lines, carried partial
	// outputs, frequency-domain history) without discarding the current
	// coefficients.
	Reset()

	// Latency reports the engine's constant processing delay in samples:
	// the number of leading output samples that do not yet reflect any
	// input.
	Latency() int
}

func checkBlock(in, out []float32, maxBlockSamples int) error {
	if len(in) != len(out) {
		return fmt.Errorf("%w: len(in)=%d len(out)=%d", ErrBlockSizeMismatch, len(in), len(out))
	}
	if len(in) == 0 || len(in) > maxBlockSamples {
		return fmt.Errorf("%w: len(in)=%d max=%d", ErrBlockSizeMismatch, len(in), maxBlockSamples)
	}
	return nil
}

func checkCoefficients(h []float32, maxCoefficients int) error {
	if len(h) == 0 || len(h) > maxCoefficients {
		return fmt.Errorf("%w: len(h)=%d max=%d", ErrInvalidConfig, len(h), maxCoefficients)
	}
	return nil
}

// nextPow2 returns the smallest power of two that is >= v.
func nextPow2(v int) int {
	if v <= 1 {
		return 1
	}
	p := 1
	for p < v {
		p <<= 1
	}
	return p
}
