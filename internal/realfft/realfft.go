// Package realfft implements an in-place, unnormalized real-input FFT using
// a radix-4 Stockham complex FFT with a final radix-2 stage when log2(n) is
// odd. The spectrum is packed into the original n-sample buffer: bin 0's
// real part and the Nyquist bin's real part share index 0 and 1, and the
// remaining bins are interleaved (re, im) pairs. Callers apply the 2/n
// normalization constant themselves; this package only ever computes the
// unnormalized transform.
package realfft

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidSize = errors.New("realfft: size must be a power of two, >= 4")

// Plan holds the scratch storage for repeated forward/inverse transforms of
// a fixed size n, so that Forward/Inverse never allocate.
type Plan struct {
	n       int
	cx      []complex64 // reinterpreted (re, im) view of x, length n/2
	scratch []complex64 // ping-pong buffer for the complex FFT, length n/2
}

// NewPlan builds a Plan for transforms of size n. n must be a power of two
// and at least 4.
func NewPlan(n int) (*Plan, error) {
	if n < 4 || (n&(n-1)) != 0 {
		return nil, fmt.Errorf("realfft: n=%d: %w", n, ErrInvalidSize)
	}
	return &Plan{
		n:       n,
		cx:      make([]complex64, n/2),
		scratch: make([]complex64, n/2),
	}, nil
}

// Size reports the transform length this Plan was built for.
func (p *Plan) Size() int {
	return p.n
}

// Forward computes the unnormalized forward real FFT of x in place. x must
// have length p.Size(). It uses ri_fft.c's own sign convention (a
// +2*pi*k*t/n kernel, the conjugate of the textbook forward DFT); this is
// immaterial to callers that only ever multiply spectra pointwise and feed
// the result back through Inverse, since Forward and Inverse remain exact
// inverses of one another under that convention.
func (p *Plan) Forward(x []float32) error {
	if len(x) != p.n {
		return fmt.Errorf("realfft: Forward: len(x)=%d, want %d", len(x), p.n)
	}
	realTransform(-1, p.n, x, p.cx, p.scratch)
	return nil
}

// Inverse computes the unnormalized inverse real FFT of x in place. x must
// have length p.Size(); the caller is responsible for scaling the result by
// 2/n if a normalized inverse is required.
func (p *Plan) Inverse(x []float32) error {
	if len(x) != p.n {
		return fmt.Errorf("realfft: Inverse: len(x)=%d, want %d", len(x), p.n)
	}
	realTransform(1, p.n, x, p.cx, p.scratch)
	return nil
}

const twoPi = 2 * math.Pi

// realTransform ports the real-FFT wrapper that exploits spectral symmetry
// to compute a length-n real transform via one length-n/2 complex transform
// plus an O(n) symmetry-unpacking pass.
func realTransform(flag, n int, x []float32, cx, scratch []complex64) {
	half := n / 2

	if flag == -1 {
		packComplex(x, cx)
		complexFFT(half, -1, cx, scratch)
		unpackComplex(cx, x)
	}

	theta := -float32(flag) * float32(twoPi) / float32(n)
	wpi := float32(math.Sin(float64(theta)))
	wpr := float32(math.Cos(float64(theta))) - 1
	c2 := float32(flag) * 0.5
	wr := float32(1) + wpr
	wi := wpi

	for i := 1; i < n/4; i++ {
		i1 := i << 1
		i2 := i1 + 1
		i3 := n - i1
		i4 := i3 + 1

		h1r := 0.5 * (x[i1] + x[i3])
		h1i := 0.5 * (x[i2] - x[i4])
		h2r := -c2 * (x[i2] + x[i4])
		h2i := c2 * (x[i1] - x[i3])

		x[i1] = h1r + (wr * h2r) - (wi * h2i)
		x[i2] = h1i + (wr * h2i) + (wi * h2r)
		x[i3] = h1r - (wr * h2r) + (wi * h2i)
		x[i4] = -h1i + (wr * h2i) + (wi * h2r)

		wtmp := wr
		wr += wtmp*wpr - wi*wpi
		wi += wi*wpr + wtmp*wpi
	}

	h1r := x[0]
	if flag == -1 {
		x[0] = h1r + x[1]
		x[1] = h1r - x[1]
	} else {
		x[0] = 0.5 * (h1r + x[1])
		x[1] = 0.5 * (h1r - x[1])
		packComplex(x, cx)
		complexFFT(half, 1, cx, scratch)
		unpackComplex(cx, x)
	}
}

func packComplex(x []float32, cx []complex64) {
	for i := range cx {
		cx[i] = complex(x[2*i], x[2*i+1])
	}
}

func unpackComplex(cx []complex64, x []float32) {
	for i, c := range cx {
		x[2*i] = real(c)
		x[2*i+1] = imag(c)
	}
}

// complexFFT is a radix-4 Stockham FFT with a trailing radix-2 stage for odd
// log2(n), operating on complex64 in place across the (a, b) ping-pong pair.
// flag selects the transform direction: -1 forward, +1 inverse; neither
// direction is normalized.
func complexFFT(n, flag int, a, b []complex64) {
	x, y := a, b
	s := 1
	swaps := 0

	for n > 2 {
		n1 := n >> 2
		n2 := n >> 1
		n3 := n1 + n2
		theta0 := float32(twoPi) / float32(n)
		j := complex(float32(0), float32(flag))
		wdelta := complex(float32(math.Cos(float64(theta0))), -float32(flag)*float32(math.Sin(float64(theta0))))
		w1p := complex(float32(1), float32(0))

		for p := 0; p < n1; p++ {
			w2p := w1p * w1p
			w3p := w1p * w2p
			for q := 0; q < s; q++ {
				a0 := x[q+s*(p+0)]
				b0 := x[q+s*(p+n1)]
				c0 := x[q+s*(p+n2)]
				d0 := x[q+s*(p+n3)]
				apc := a0 + c0
				amc := a0 - c0
				bpd := b0 + d0
				jbmd := j * (b0 - d0)

				y[q+s*((p<<2)+0)] = apc + bpd
				y[q+s*((p<<2)+1)] = w1p * (amc - jbmd)
				y[q+s*((p<<2)+2)] = w2p * (apc - bpd)
				y[q+s*((p<<2)+3)] = w3p * (amc + jbmd)
			}
			w1p = w1p * wdelta
		}

		n >>= 2
		s <<= 2
		x, y = y, x
		swaps++
	}

	if n == 2 {
		for q := 0; q < s; q++ {
			a0 := x[q]
			b0 := x[q+s]
			y[q] = a0 + b0
			y[q+s] = a0 - b0
		}
		s <<= 1
		x, y = y, x
		swaps++
	}

	if swaps%2 == 1 {
		copy(y[:s], x[:s])
	}
}
