package realfft

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestNewPlanRejectsNonPowerOfTwo(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, 1, 2, 3, 5, 6, 7, 9, 100} {
		_, err := NewPlan(n)
		assert.ErrorIsf(t, err, ErrInvalidSize, "n=%d", n)
	}
}

func TestForwardImpulseIsFlat(t *testing.T) {
	t.Parallel()

	const n = 16
	p, err := NewPlan(n)
	assert.NoError(t, err)

	x := make([]float32, n)
	x[0] = 1

	assert.NoError(t, p.Forward(x))

	// The spectrum of a unit impulse is flat: bin0 real, Nyquist real, and
	// every bin's real part thereafter should equal 1 with zero imaginary
	// part.
	assert.InDeltaf(t, float32(1), x[0], 1e-4, "dc")
	assert.InDeltaf(t, float32(1), x[1], 1e-4, "nyquist")
	for k := 1; k < n/2; k++ {
		assert.InDeltaf(t, float32(1), x[2*k], 1e-4, "bin %d real", k)
		assert.InDeltaf(t, float32(0), x[2*k+1], 1e-4, "bin %d imag", k)
	}
}

func TestForwardInverseRoundTrip(t *testing.T) {
	t.Parallel()

	const n = 64
	p, err := NewPlan(n)
	assert.NoError(t, err)

	original := make([]float32, n)
	for i := range original {
		original[i] = float32(math.Sin(2 * math.Pi * float64(i) / float64(n) * 3))
	}

	x := append([]float32(nil), original...)
	assert.NoError(t, p.Forward(x))
	assert.NoError(t, p.Inverse(x))

	for i := range x {
		got := x[i] * (2.0 / float32(n))
		assert.InDeltaf(t, original[i], got, 1e-3, "sample %d", i)
	}
}

// TestPropertyRoundTrip checks forward+inverse+normalization recovers the
// original signal for arbitrary power-of-two sizes and arbitrary real input.
func TestPropertyRoundTrip(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		order := rapid.IntRange(2, 9).Draw(t, "order") // n in [4, 512]
		n := 1 << order
		p, err := NewPlan(n)
		if err != nil {
			t.Fatalf("NewPlan: %v", err)
		}

		original := rapid.SliceOfN(rapid.Float32Range(-1, 1), n, n).Draw(t, "x")
		x := append([]float32(nil), original...)

		if err := p.Forward(x); err != nil {
			t.Fatalf("Forward: %v", err)
		}
		if err := p.Inverse(x); err != nil {
			t.Fatalf("Inverse: %v", err)
		}

		scale := float32(2.0 / float64(n))
		for i := range x {
			got := x[i] * scale
			if math.Abs(float64(got-original[i])) > 5e-3 {
				t.Fatalf("sample %d: got %v want %v", i, got, original[i])
			}
		}
	})
}

// TestForwardMatchesNaiveDFT cross-checks against a direct O(n^2) DFT for a
// handful of small sizes.
func TestForwardMatchesNaiveDFT(t *testing.T) {
	t.Parallel()

	for _, n := range []int{4, 8, 16, 32} {
		p, err := NewPlan(n)
		assert.NoError(t, err)

		x := make([]float32, n)
		for i := range x {
			x[i] = float32(math.Cos(float64(i)) + 0.5*math.Sin(2*float64(i)))
		}

		want := naiveRealDFT(x)

		got := append([]float32(nil), x...)
		assert.NoError(t, p.Forward(got))

		assert.InDeltaf(t, want[0], got[0], 1e-3, "n=%d bin0 real", n)
		assert.InDeltaf(t, want[1], got[1], 1e-3, "n=%d nyquist real", n)
		for k := 1; k < n/2; k++ {
			assert.InDeltaf(t, want[2*k], got[2*k], 1e-2, "n=%d bin%d real", n, k)
			assert.InDeltaf(t, want[2*k+1], got[2*k+1], 1e-2, "n=%d bin%d imag", n, k)
		}
	}
}

// naiveRealDFT computes the same packed layout as Plan.Forward via a direct
// summation, for cross-checking on small sizes.
//
// This package's Forward is a direct port of ri_fft.c's RIFFT_RealFFT,
// which accumulates the forward transform with a +2*pi*k*t/n kernel rather
// than the textbook -2*pi*k*t/n one; the two conventions are complex
// conjugates of each other bin-for-bin. That sign is immaterial to
// convolution correctness (Forward and Inverse are exact inverses of one
// another and are always applied as a matched pair), but it does mean the
// naive reference below must use the same +kernel to agree with Forward.
func naiveRealDFT(x []float32) []float32 {
	n := len(x)
	out := make([]float32, n)
	for k := 0; k <= n/2; k++ {
		var re, im float64
		for t := 0; t < n; t++ {
			angle := 2 * math.Pi * float64(k) * float64(t) / float64(n)
			re += float64(x[t]) * math.Cos(angle)
			im += float64(x[t]) * math.Sin(angle)
		}
		switch k {
		case 0:
			out[0] = float32(re)
		case n / 2:
			out[1] = float32(re)
		default:
			out[2*k] = float32(re)
			out[2*k+1] = float32(im)
		}
	}
	return out
}
