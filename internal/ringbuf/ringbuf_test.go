package ringbuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestNewRejectsRequiredLargerThanSize(t *testing.T) {
	t.Parallel()

	_, err := New(4, 8)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestPutExceedingCapacity(t *testing.T) {
	t.Parallel()

	r, err := New(8, 4)
	assert.NoError(t, err)

	assert.NoError(t, r.Put(make([]byte, 8)))
	err = r.Put([]byte{1})
	assert.ErrorIs(t, err, ErrExceedCapacity)
}

func TestPeekExceedingMaxRequired(t *testing.T) {
	t.Parallel()

	r, err := New(16, 4)
	assert.NoError(t, err)
	assert.NoError(t, r.Put(make([]byte, 8)))

	_, err = r.Peek(5)
	assert.ErrorIs(t, err, ErrExceedRequired)
}

func TestPeekExceedingRemain(t *testing.T) {
	t.Parallel()

	r, err := New(16, 4)
	assert.NoError(t, err)
	assert.NoError(t, r.Put([]byte{1, 2}))

	_, err = r.Peek(3)
	assert.ErrorIs(t, err, ErrExceedRemain)
}

func TestPutGetRoundTripAcrossWrap(t *testing.T) {
	t.Parallel()

	r, err := New(8, 4)
	assert.NoError(t, err)

	assert.NoError(t, r.Put([]byte{1, 2, 3, 4, 5, 6}))
	got, err := r.Get(4)
	assert.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, got)

	// Write past the wrap point; the unread bytes written before the wrap
	// must still come out first, in order.
	assert.NoError(t, r.Put([]byte{7, 8, 9, 10}))
	got, err = r.Peek(4)
	assert.NoError(t, err)
	assert.Equal(t, []byte{5, 6, 7, 8}, got)
}

// TestGetReturnsFullMirrorWindowRegardlessOfRequiredSize exercises the
// overlap-save windowing pattern: Get(n) only advances the read cursor by
// n, but the returned slice spans the full maxRequired window so the
// caller can read a wider sliding window than it consumes.
func TestGetReturnsFullMirrorWindowRegardlessOfRequiredSize(t *testing.T) {
	t.Parallel()

	r, err := New(16, 8)
	assert.NoError(t, err)
	assert.NoError(t, r.Put([]byte{1, 2, 3, 4, 5, 6, 7, 8}))

	// Advance only 2 bytes, but read the full 8-byte window.
	window, err := r.Get(2)
	assert.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, window)
	assert.Equal(t, 6, r.Remain())
}

func TestClearResetsState(t *testing.T) {
	t.Parallel()

	r, err := New(8, 4)
	assert.NoError(t, err)
	assert.NoError(t, r.Put([]byte{1, 2, 3}))

	r.Clear()

	assert.Equal(t, 0, r.Remain())
	assert.Equal(t, 8, r.Capacity())
}

// TestPropertyRoundTrip checks that any sequence of Put/Get calls returns
// exactly the bytes that were written, in order, as long as each Get
// follows a Put of at least that many bytes.
func TestPropertyRoundTrip(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		maxRequired := rapid.IntRange(1, 32).Draw(t, "maxRequired")
		maxSize := rapid.IntRange(maxRequired, maxRequired+64).Draw(t, "maxSize")
		r, err := New(maxSize, maxRequired)
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		var reference []byte
		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			if rapid.Bool().Draw(t, "doPut") || len(reference) == 0 {
				n := rapid.IntRange(1, maxRequired).Draw(t, "putLen")
				if n > r.Capacity() {
					continue
				}
				chunk := rapid.SliceOfN(rapid.Byte(), n, n).Draw(t, "chunk")
				if err := r.Put(chunk); err != nil {
					t.Fatalf("Put: %v", err)
				}
				reference = append(reference, chunk...)
			} else {
				n := rapid.IntRange(1, maxRequired).Draw(t, "getLen")
				if n > r.Remain() {
					continue
				}
				got, err := r.Get(n)
				if err != nil {
					t.Fatalf("Get: %v", err)
				}
				if !equalBytes(got[:n], reference[:n]) {
					t.Fatalf("round trip mismatch: got %v want %v", got[:n], reference[:n])
				}
				reference = reference[n:]
			}
		}
	})
}

// TestPropertyCapacityAccounting checks that Remain+Capacity is always the
// ring's usable capacity, regardless of the Put/Get history.
func TestPropertyCapacityAccounting(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		maxRequired := rapid.IntRange(1, 16).Draw(t, "maxRequired")
		maxSize := rapid.IntRange(maxRequired, maxRequired+32).Draw(t, "maxSize")
		r, err := New(maxSize, maxRequired)
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		steps := rapid.IntRange(1, 30).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			if r.Remain()+r.Capacity() != maxSize {
				t.Fatalf("invariant broken: remain=%d capacity=%d maxSize=%d", r.Remain(), r.Capacity(), maxSize)
			}
			if rapid.Bool().Draw(t, "doPut") {
				n := rapid.IntRange(1, maxRequired).Draw(t, "putLen")
				if n > r.Capacity() {
					continue
				}
				_ = r.Put(make([]byte, n))
			} else {
				n := rapid.IntRange(1, maxRequired).Draw(t, "getLen")
				if n > r.Remain() {
					continue
				}
				_, _ = r.Get(n)
			}
		}
	})
}

func equalBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
