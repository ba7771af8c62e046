package dsp

import "fmt"

// hybridHeadTaps is the number of leading impulse response samples handled
// by the zero-latency Karatsuba head. Coefficients beyond this point are
// handled by the FFT tail, which carries the engine's latency instead.
const hybridHeadTaps = 1024

// HybridEngine composes a zero-latency KaratsubaEngine over the first
// hybridHeadTaps coefficients with an FftEngine over the remainder, so the
// combined engine has zero added latency regardless of how long the
// impulse response is: the head engine's output is available immediately,
// and the tail engine's output (delayed by its own Latency) is mixed in
// once it catches up.
type HybridEngine struct {
	cfg Config

	head *KaratsubaEngine
	tail *FftEngine

	// delay makes up the difference between hybridHeadTaps and the tail's
	// own internal latency, so that the head and tail contributions land on
	// the same output sample; it holds delayTaps samples, not the tail's
	// full latency.
	delay        *floatRing
	delayTaps    int
	delaySilence []float32 // len delayTaps, reused by Reset
	headOut      []float32
	tailOut      []float32
	tailIn       []float32
}

// EstimateHybridSize reports the number of float32 elements a HybridEngine
// built from cfg will allocate.
func EstimateHybridSize(cfg Config) (int, error) {
	if err := cfg.validate(); err != nil {
		return 0, err
	}
	headCfg := Config{MaxCoefficients: min(hybridHeadTaps, cfg.MaxCoefficients), MaxBlockSamples: cfg.MaxBlockSamples}
	tailMaxCoefficients := max(1, cfg.MaxCoefficients-hybridHeadTaps)
	tailCfg := Config{MaxCoefficients: tailMaxCoefficients, MaxBlockSamples: cfg.MaxBlockSamples}

	headSize, err := EstimateKaratsubaSize(headCfg)
	if err != nil {
		return 0, err
	}
	tailSize, err := EstimateFftEngineSize(tailCfg)
	if err != nil {
		return 0, err
	}

	// FftEngine.Latency is always fftEngineFFTSizeHalved regardless of cfg,
	// so the compensating delay's size can be computed without constructing
	// a tail engine just to ask it.
	delayTaps := max(0, hybridHeadTaps-fftEngineFFTSizeHalved)
	delaySize, err := estimateFloatRingSize(delayTaps+cfg.MaxBlockSamples, max(delayTaps, cfg.MaxBlockSamples))
	if err != nil {
		return 0, err
	}

	return headSize + tailSize + delaySize + delayTaps /* delaySilence */ + 3*cfg.MaxBlockSamples, nil
}

// NewHybridEngine constructs a HybridEngine sized for cfg.
func NewHybridEngine(cfg Config) (*HybridEngine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	headCfg := Config{MaxCoefficients: min(hybridHeadTaps, cfg.MaxCoefficients), MaxBlockSamples: cfg.MaxBlockSamples}
	head, err := NewKaratsubaEngine(headCfg)
	if err != nil {
		return nil, fmt.Errorf("dsp: NewHybridEngine: %w", err)
	}

	tailMaxCoefficients := max(1, cfg.MaxCoefficients-hybridHeadTaps)
	tailCfg := Config{MaxCoefficients: tailMaxCoefficients, MaxBlockSamples: cfg.MaxBlockSamples}
	tail, err := NewFftEngine(tailCfg)
	if err != nil {
		return nil, fmt.Errorf("dsp: NewHybridEngine: %w", err)
	}

	// The tail's own internal latency already delays its output by
	// latency(F) samples relative to its input; the compensating delay only
	// needs to make up the remainder of the head's H taps, matching
	// ribara_convolve.c's num_input_delay = H - latency(F).
	delayTaps := hybridHeadTaps - tail.Latency()
	if delayTaps < 0 {
		return nil, fmt.Errorf("%w: hybrid head taps %d shorter than tail latency %d", ErrInvalidConfig, hybridHeadTaps, tail.Latency())
	}
	delay, err := newFloatRing(delayTaps+cfg.MaxBlockSamples, max(delayTaps, cfg.MaxBlockSamples))
	if err != nil {
		return nil, fmt.Errorf("dsp: NewHybridEngine: %w", err)
	}

	e := &HybridEngine{
		cfg:          cfg,
		head:         head,
		tail:         tail,
		delay:        delay,
		delayTaps:    delayTaps,
		delaySilence: make([]float32, delayTaps),
		headOut:      make([]float32, cfg.MaxBlockSamples),
		tailOut:      make([]float32, cfg.MaxBlockSamples),
		tailIn:       make([]float32, cfg.MaxBlockSamples),
	}
	e.Reset()
	return e, nil
}

// SetCoefficients splits h at hybridHeadTaps, installing the leading taps
// into the Karatsuba head and the remainder into the FFT tail.
func (e *HybridEngine) SetCoefficients(h []float32) error {
	if err := checkCoefficients(h, e.cfg.MaxCoefficients); err != nil {
		return err
	}

	split := min(hybridHeadTaps, len(h))
	if err := e.head.SetCoefficients(h[:split]); err != nil {
		return fmt.Errorf("dsp: HybridEngine.SetCoefficients: %w", err)
	}

	if split < len(h) {
		if err := e.tail.SetCoefficients(h[split:]); err != nil {
			return fmt.Errorf("dsp: HybridEngine.SetCoefficients: %w", err)
		}
	} else {
		if err := e.tail.SetCoefficients([]float32{0}); err != nil {
			return fmt.Errorf("dsp: HybridEngine.SetCoefficients: %w", err)
		}
	}

	e.Reset()
	return nil
}

// Process convolves in with the current coefficients and writes the result
// to out, with zero added latency: the head engine's contribution for
// sample n is mixed with the tail engine's contribution for the same
// sample, delayed through e.delay to arrive at the same time.
func (e *HybridEngine) Process(in, out []float32) error {
	if err := checkBlock(in, out, e.cfg.MaxBlockSamples); err != nil {
		return err
	}
	numSamples := len(in)

	headOut := e.headOut[:numSamples]
	if err := e.head.Process(in, headOut); err != nil {
		return fmt.Errorf("dsp: HybridEngine.Process: %w", err)
	}

	if err := e.delay.put(in); err != nil {
		return fmt.Errorf("dsp: HybridEngine.Process: %w", err)
	}
	delayed, err := e.delay.get(numSamples, numSamples)
	if err != nil {
		return fmt.Errorf("dsp: HybridEngine.Process: %w", err)
	}
	tailIn := e.tailIn[:numSamples]
	copy(tailIn, delayed[:numSamples])

	tailOut := e.tailOut[:numSamples]
	if err := e.tail.Process(tailIn, tailOut); err != nil {
		return fmt.Errorf("dsp: HybridEngine.Process: %w", err)
	}

	for i := 0; i < numSamples; i++ {
		out[i] = headOut[i] + tailOut[i]
	}
	return nil
}

// Reset clears both composed engines and pre-fills the compensating delay
// so that the tail's first genuine contribution lines up with the head's.
func (e *HybridEngine) Reset() {
	e.head.Reset()
	e.tail.Reset()
	e.delay.clear()
	if e.delayTaps > 0 {
		_ = e.delay.put(e.delaySilence)
	}
}

// Latency is always zero: the head engine supplies every output sample
// immediately, and the tail's delayed contribution is realigned internally.
func (e *HybridEngine) Latency() int {
	return 0
}
