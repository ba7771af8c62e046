package dsp

// KaratsubaEngine is a zero-latency time-domain convolution engine based on
// recursive Karatsuba polynomial multiplication. Each call to Process
// multiplies the current input block against the full impulse response and
// carries the tail of the linear convolution forward as the start of the
// next block's output (block-wise overlap-add), so every input sample
// influences the output the instant it arrives.
//
// It is the right engine for short impulse responses, where its O(n^1.585)
// cost beats the fixed per-block overhead of an FFT-based engine; FftEngine
// and HybridEngine cover longer impulse responses.
type KaratsubaEngine struct {
	cfg Config

	maxBlockSamples int // next power of two >= max(MaxCoefficients, MaxBlockSamples)
	numCoefficients int // next power of two >= the length last passed to SetCoefficients

	coefficients []float32 // len maxBlockSamples, zero-padded past numCoefficients
	inputBuffer  []float32 // len maxBlockSamples, current block zero-padded to convSize
	outputBuffer []float32 // len maxBlockSamples, carried convolution tail
	workBuffer   []float32 // len 6*maxBlockSamples, Karatsuba recursion scratch
}

// EstimateKaratsubaSize reports the number of float32 elements a
// KaratsubaEngine built from cfg will allocate, for callers that want to
// budget memory ahead of construction.
func EstimateKaratsubaSize(cfg Config) (int, error) {
	if err := cfg.validate(); err != nil {
		return 0, err
	}
	maxBlockSamples := nextPow2(max(cfg.MaxCoefficients, cfg.MaxBlockSamples))
	// coefficients + input buffer + output buffer + 6 work buffers
	return 9 * maxBlockSamples, nil
}

// NewKaratsubaEngine constructs a KaratsubaEngine sized for cfg.
func NewKaratsubaEngine(cfg Config) (*KaratsubaEngine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	maxBlockSamples := nextPow2(max(cfg.MaxCoefficients, cfg.MaxBlockSamples))
	e := &KaratsubaEngine{
		cfg:             cfg,
		maxBlockSamples: maxBlockSamples,
		coefficients:    make([]float32, maxBlockSamples),
		inputBuffer:     make([]float32, maxBlockSamples),
		outputBuffer:    make([]float32, maxBlockSamples),
		workBuffer:      make([]float32, 6*maxBlockSamples),
	}
	return e, nil
}

// SetCoefficients installs a new impulse response.
func (e *KaratsubaEngine) SetCoefficients(h []float32) error {
	if err := checkCoefficients(h, e.cfg.MaxCoefficients); err != nil {
		return err
	}

	copy(e.coefficients, h)
	for i := len(h); i < e.maxBlockSamples; i++ {
		e.coefficients[i] = 0
	}
	e.numCoefficients = nextPow2(len(h))

	e.Reset()
	return nil
}

// Process convolves in with the current coefficients, writing the result to
// out and carrying the unfinished tail of the linear convolution into the
// next call.
func (e *KaratsubaEngine) Process(in, out []float32) error {
	if err := checkBlock(in, out, e.cfg.MaxBlockSamples); err != nil {
		return err
	}

	numSamples := len(in)
	convSize := nextPow2(max(numSamples, e.numCoefficients))

	copy(e.inputBuffer[:numSamples], in)
	for i := numSamples; i < convSize; i++ {
		e.inputBuffer[i] = 0
	}

	work := e.workBuffer[:6*convSize]
	convolveKaratsuba(e.inputBuffer[:convSize], e.coefficients[:convSize], work, convSize)

	// The leading numSamples outputs are this block's contribution plus
	// whatever tail the previous block carried forward.
	for smpl := 0; smpl < numSamples; smpl++ {
		out[smpl] = e.outputBuffer[smpl] + work[smpl]
	}

	// Shift the carried tail down across the engine's full fixed window,
	// not just this call's convSize samples: convSize tracks
	// max(numSamples, numCoefficients) and can shrink or grow between
	// calls, so a narrower shift would strand live carried energy sitting
	// beyond the new convSize instead of carrying or discarding it.
	// Reading outputBuffer[i+numSamples] before overwriting outputBuffer[i]
	// is always safe in increasing i, since numSamples > 0 keeps the read
	// index strictly ahead of every index already written this call.
	for i := 0; i < e.maxBlockSamples; i++ {
		smpl := i + numSamples
		var carry, fresh float32
		if smpl < e.maxBlockSamples {
			carry = e.outputBuffer[smpl]
		}
		if smpl < 2*convSize {
			fresh = work[smpl]
		}
		e.outputBuffer[i] = carry + fresh
	}

	return nil
}

// Reset clears the input/output delay state without discarding coefficients.
func (e *KaratsubaEngine) Reset() {
	for i := range e.inputBuffer {
		e.inputBuffer[i] = 0
	}
	for i := range e.outputBuffer {
		e.outputBuffer[i] = 0
	}
	for i := range e.workBuffer {
		e.workBuffer[i] = 0
	}
}

// Latency is always zero: every input sample is fully mixed into the output
// of the same call.
func (e *KaratsubaEngine) Latency() int {
	return 0
}

// convolveNaive computes the direct O(n^2) linear convolution z = a * b,
// where a and b have length n and z has length 2n. It is the Karatsuba
// recursion's base case.
func convolveNaive(a, b, z []float32, n int) {
	for i := 0; i < 2*n; i++ {
		z[i] = 0
	}
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			z[j+i] += a[i] * b[j]
		}
	}
}

// convolveKaratsuba computes z = a * b for length-n a and b (n a power of
// two) using recursive Karatsuba multiplication. z must have length at
// least 6n; the result lands in z[:2n]. The 6n scratch requirement lets
// every recursive call reuse the tail of its parent's scratch region as its
// own v/w/x3 working space instead of allocating: each sub-call only needs
// its result to be valid by the time the parent reads it, and the parent
// never reads a region before computing it, so the three recursive calls
// can safely stomp on each other's leftover scratch in sequence.
func convolveKaratsuba(a, b, z []float32, n int) {
	if n <= 8 {
		convolveNaive(a, b, z, n)
		return
	}

	n2 := n >> 1
	a0, a1 := a[:n2], a[n2:n]
	b0, b1 := b[:n2], b[n2:n]

	x1 := z       // z[0*n:], result of a0*b0
	x2 := z[n:]   // z[1*n:], result of a1*b1
	x3 := z[2*n:] // z[2*n:], result of (a1+a0)*(b1+b0)
	v := z[5*n : 5*n+n2]
	w := z[5*n+n2 : 6*n]

	for i := 0; i < n2; i++ {
		v[i] = a1[i] + a0[i]
		w[i] = b1[i] + b0[i]
	}

	convolveKaratsuba(a0, b0, x1, n2)
	convolveKaratsuba(a1, b1, x2, n2)
	convolveKaratsuba(v, w, x3, n2)

	for i := 0; i < n; i++ {
		x3[i] -= x1[i] + x2[i]
	}
	for i := 0; i < n; i++ {
		z[i+n2] += x3[i]
	}
}
