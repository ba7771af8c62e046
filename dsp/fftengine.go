package dsp

import (
	"fmt"

	"streamconv/internal/realfft"
)

const (
	fftEngineFFTSize       = 2048
	fftEngineFFTSizeHalved = fftEngineFFTSize / 2
)

// FftEngine is a uniformly-partitioned overlap-save FFT convolution engine.
// The impulse response is split into fixed-size partitions, each
// transformed once at SetCoefficients time; Process amortizes the
// per-partition complex multiply-adds across the samples of each block
// instead of doing all of them in a single spike, and commits a new
// output frame every partitionSize samples via overlap-save.
//
// Its processing latency is fixed at partitionSize samples (half the FFT
// size): it is the right engine for long impulse responses, where
// KaratsubaEngine's low time-domain cost advantage disappears, but it adds
// latency that KaratsubaEngine and HybridEngine's head do not.
type FftEngine struct {
	cfg Config

	fftSize       int
	partitionSize int

	numCoefficients  int // rounded up to a multiple of partitionSize
	numPartitions    int
	maxNumPartitions int

	bufferCount int
	currentPart int

	irFreq []float32 // len maxNumPartitions*fftSize

	inputRing  *floatRing
	outputRing *floatRing
	freqRing   *floatRing

	work0      []float32 // len fftSize, FFT scratch
	compMulAdd []float32 // len fftSize, accumulated spectrum product

	silence   []float32 // len partitionSize, zeros, reused by Reset
	zeroBlock []float32 // len fftSize, zeros, reused by Reset

	fft *realfft.Plan
}

// EstimateFftEngineSize reports the number of float32 elements an FftEngine
// built from cfg will allocate.
func EstimateFftEngineSize(cfg Config) (int, error) {
	if err := cfg.validate(); err != nil {
		return 0, err
	}
	maxNumPartitions := fftEngineMaxNumPartitions(cfg.MaxCoefficients)

	timeMaxSize := fftEngineFFTSize + cfg.MaxBlockSamples
	timeMaxRequired := max(fftEngineFFTSize, cfg.MaxBlockSamples)
	inputRingSize, err := estimateFloatRingSize(timeMaxSize, timeMaxRequired)
	if err != nil {
		return 0, err
	}
	outputRingSize, err := estimateFloatRingSize(timeMaxSize, timeMaxRequired)
	if err != nil {
		return 0, err
	}
	freqRingSize, err := estimateFloatRingSize(maxNumPartitions*fftEngineFFTSize, fftEngineFFTSize)
	if err != nil {
		return 0, err
	}

	return maxNumPartitions*fftEngineFFTSize /* irFreq */ +
		2*fftEngineFFTSize /* work0, compMulAdd */ +
		fftEngineFFTSizeHalved + fftEngineFFTSize /* silence, zeroBlock */ +
		2*fftEngineFFTSize /* realfft.Plan's two n/2 complex64 buffers */ +
		inputRingSize + outputRingSize + freqRingSize, nil
}

func fftEngineMaxNumPartitions(maxCoefficients int) int {
	maxFftSize := max(fftEngineFFTSize, 2*nextPow2(maxCoefficients))
	return maxFftSize / fftEngineFFTSize
}

// NewFftEngine constructs an FftEngine sized for cfg.
func NewFftEngine(cfg Config) (*FftEngine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	maxNumPartitions := fftEngineMaxNumPartitions(cfg.MaxCoefficients)
	fft, err := realfft.NewPlan(fftEngineFFTSize)
	if err != nil {
		return nil, fmt.Errorf("dsp: NewFftEngine: %w", err)
	}

	timeMaxSize := fftEngineFFTSize + cfg.MaxBlockSamples
	timeMaxRequired := max(fftEngineFFTSize, cfg.MaxBlockSamples)
	inputRing, err := newFloatRing(timeMaxSize, timeMaxRequired)
	if err != nil {
		return nil, err
	}
	outputRing, err := newFloatRing(timeMaxSize, timeMaxRequired)
	if err != nil {
		return nil, err
	}
	freqRing, err := newFloatRing(maxNumPartitions*fftEngineFFTSize, fftEngineFFTSize)
	if err != nil {
		return nil, err
	}

	e := &FftEngine{
		cfg:              cfg,
		fftSize:          fftEngineFFTSize,
		partitionSize:    fftEngineFFTSizeHalved,
		numCoefficients:  fftEngineFFTSizeHalved,
		numPartitions:    1,
		maxNumPartitions: maxNumPartitions,
		irFreq:           make([]float32, maxNumPartitions*fftEngineFFTSize),
		inputRing:        inputRing,
		outputRing:       outputRing,
		freqRing:         freqRing,
		work0:            make([]float32, fftEngineFFTSize),
		compMulAdd:       make([]float32, fftEngineFFTSize),
		silence:          make([]float32, fftEngineFFTSizeHalved),
		zeroBlock:        make([]float32, fftEngineFFTSize),
		fft:              fft,
	}
	e.Reset()
	return e, nil
}

// SetCoefficients installs a new impulse response, splitting it into
// partitionSize chunks and transforming each one once.
func (e *FftEngine) SetCoefficients(h []float32) error {
	if err := checkCoefficients(h, e.cfg.MaxCoefficients); err != nil {
		return err
	}

	e.numCoefficients = roundUp(len(h), e.partitionSize)
	e.numPartitions = e.numCoefficients / e.partitionSize

	normFactorInverse := float32(2) / float32(e.fftSize)
	for smpl := 0; smpl < e.numCoefficients; smpl += e.partitionSize {
		copySamples := min(e.partitionSize, len(h)-smpl)

		for i := range e.work0 {
			e.work0[i] = 0
		}
		copy(e.work0[:copySamples], h[smpl:smpl+copySamples])
		for i := 0; i < copySamples; i++ {
			e.work0[i] *= normFactorInverse
		}

		if err := e.fft.Forward(e.work0); err != nil {
			return fmt.Errorf("dsp: FftEngine.SetCoefficients: %w", err)
		}

		partIndex := smpl / e.partitionSize
		copy(e.irFreq[partIndex*e.fftSize:(partIndex+1)*e.fftSize], e.work0)
	}

	e.Reset()
	return nil
}

// Process convolves in with the current coefficients, writing the result
// to out.
func (e *FftEngine) Process(in, out []float32) error {
	if err := checkBlock(in, out, e.cfg.MaxBlockSamples); err != nil {
		return err
	}

	numSamples := len(in)
	if err := e.inputRing.put(in); err != nil {
		return fmt.Errorf("dsp: FftEngine.Process: %w", err)
	}
	e.bufferCount += numSamples

	if e.bufferCount < e.fftSize {
		goalPart := ((e.numPartitions + 1) * (e.bufferCount - e.partitionSize)) / e.partitionSize
		goalPart = min(goalPart, e.numPartitions)

		for ; e.currentPart < goalPart; e.currentPart++ {
			if err := e.accumulatePartition(); err != nil {
				return err
			}
		}
	}

	for e.bufferCount >= e.fftSize {
		for ; e.currentPart < e.numPartitions; e.currentPart++ {
			if err := e.accumulatePartition(); err != nil {
				return err
			}
		}

		// Advance the input ring by partitionSize samples, but read a full
		// fftSize window: the ring's mirror region makes that window
		// contiguous even though we only consume half of it.
		window, err := e.inputRing.get(e.partitionSize, e.fftSize)
		if err != nil {
			return fmt.Errorf("dsp: FftEngine.Process: %w", err)
		}
		copy(e.work0, window[:e.fftSize])

		if err := e.fft.Forward(e.work0); err != nil {
			return fmt.Errorf("dsp: FftEngine.Process: %w", err)
		}

		// The newest spectrum block retires the oldest frequency history
		// entry to make room for it. When numPartitions == 1 the ring never
		// held a first entry (Reset pre-fills numPartitions-1 blocks), so
		// this Get has nothing to retire; its result is discarded even when
		// it succeeds; ri_fft_convolve.c's own Convolve ignores this call's
		// result the same way; the capacity for the Put below does not
		// depend on it succeeding.
		_, _ = e.freqRing.get(e.fftSize, 0)
		if err := e.freqRing.put(e.work0); err != nil {
			return fmt.Errorf("dsp: FftEngine.Process: %w", err)
		}
		mulAddSpectrum(e.compMulAdd, e.work0, e.irFreq[:e.fftSize], e.partitionSize)

		if err := e.fft.Inverse(e.compMulAdd); err != nil {
			return fmt.Errorf("dsp: FftEngine.Process: %w", err)
		}

		// Overlap-save: only the back half of the circular convolution
		// result is a valid linear convolution result.
		if err := e.outputRing.put(e.compMulAdd[e.fftSize/2:]); err != nil {
			return fmt.Errorf("dsp: FftEngine.Process: %w", err)
		}

		for i := range e.compMulAdd {
			e.compMulAdd[i] = 0
		}

		e.bufferCount -= e.partitionSize
		e.currentPart = 1
	}

	window, err := e.outputRing.get(numSamples, numSamples)
	if err != nil {
		return fmt.Errorf("dsp: FftEngine.Process: %w", err)
	}
	copy(out, window[:numSamples])

	return nil
}

func (e *FftEngine) accumulatePartition() error {
	partOffset := (e.numPartitions - e.currentPart) * e.fftSize
	window, err := e.freqRing.get(e.fftSize, e.fftSize)
	if err != nil {
		return fmt.Errorf("dsp: FftEngine.accumulatePartition: %w", err)
	}
	// mulAddSpectrum only reads window, so it is safe to re-insert the same
	// history block into the ring immediately after: this round-trips the
	// oldest frequency-history entry back to the newest position.
	mulAddSpectrum(e.compMulAdd, window[:e.fftSize], e.irFreq[partOffset:partOffset+e.fftSize], e.partitionSize)
	if err := e.freqRing.put(window[:e.fftSize]); err != nil {
		return fmt.Errorf("dsp: FftEngine.accumulatePartition: %w", err)
	}
	return nil
}

// Reset clears all delay lines and frequency history without discarding
// the current coefficients.
func (e *FftEngine) Reset() {
	for i := range e.work0 {
		e.work0[i] = 0
	}
	for i := range e.compMulAdd {
		e.compMulAdd[i] = 0
	}

	e.inputRing.clear()
	e.outputRing.clear()
	e.freqRing.clear()

	_ = e.inputRing.put(e.silence)
	_ = e.outputRing.put(e.silence)

	for part := 0; part < e.numPartitions-1; part++ {
		_ = e.freqRing.put(e.zeroBlock)
	}

	e.bufferCount = e.partitionSize
	e.currentPart = 1
}

// Latency is the overlap-save analysis window's half-size: partitionSize
// samples.
func (e *FftEngine) Latency() int {
	return e.partitionSize
}

// mulAddSpectrum complex-multiplies src by coef and accumulates the result
// into dst, over the packed real-FFT spectrum layout: index 0 and 1 hold
// the DC and Nyquist real parts, and the rest are interleaved (re, im)
// pairs, numComplex of them.
func mulAddSpectrum(dst, src, coef []float32, numComplex int) {
	dst[0] += src[0] * coef[0]
	dst[1] += src[1] * coef[1]

	for c := 1; c < numComplex; c++ {
		srcRe, srcIm := src[2*c], src[2*c+1]
		coefRe, coefIm := coef[2*c], coef[2*c+1]
		re := srcRe*coefRe - srcIm*coefIm
		im := srcIm*coefRe + srcRe*coefIm
		dst[2*c] += re
		dst[2*c+1] += im
	}
}

func roundUp(val, n int) int {
	return ((val + n - 1) / n) * n
}
