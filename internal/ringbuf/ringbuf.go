// Package ringbuf implements a byte-granular ring buffer with a duplicated
// "mirror" tail region, so that a Peek across the wrap point returns a
// contiguous slice instead of forcing the caller to stitch two segments
// together.
package ringbuf

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument = errors.New("ringbuf: invalid argument")
	ErrExceedCapacity  = errors.New("ringbuf: size exceeds free capacity")
	ErrExceedRemain    = errors.New("ringbuf: required size exceeds data available")
	ErrExceedRequired  = errors.New("ringbuf: required size exceeds max required size")
)

// Ring is a FIFO byte buffer that keeps a mirror copy of its first
// maxRequired bytes appended past its logical end, so Peek/Get can always
// return a single contiguous slice of up to maxRequired bytes regardless of
// where the read cursor currently sits.
type Ring struct {
	data         []byte // length bufferSize + maxRequired
	bufferSize   int    // one more than the capacity the caller sees
	maxRequired  int
	readPos      int
	writePos     int
}

// EstimateSize reports the number of bytes New will allocate for a ring of
// the given capacity and max peek/get size. It exists so a caller can budget
// memory ahead of time, matching the component design note's intent without
// requiring manual pointer arithmetic to realize it.
func EstimateSize(maxSize, maxRequired int) (int, error) {
	if maxSize < maxRequired || maxSize < 0 || maxRequired < 0 {
		return 0, fmt.Errorf("ringbuf: %w", ErrInvalidArgument)
	}
	return (maxSize + 1) + maxRequired, nil
}

// New creates a ring buffer that can hold up to maxSize bytes of live data
// and serve Peek/Get calls of up to maxRequired bytes in one contiguous
// slice.
func New(maxSize, maxRequired int) (*Ring, error) {
	if maxSize < maxRequired || maxSize < 0 || maxRequired < 0 {
		return nil, fmt.Errorf("ringbuf: %w", ErrInvalidArgument)
	}
	r := &Ring{
		bufferSize:  maxSize + 1,
		maxRequired: maxRequired,
	}
	r.data = make([]byte, r.bufferSize+maxRequired)
	return r, nil
}

// Clear discards all buffered data and zeros the backing storage.
func (r *Ring) Clear() {
	for i := range r.data {
		r.data[i] = 0
	}
	r.readPos = 0
	r.writePos = 0
}

// Remain reports how many bytes of live data are currently buffered.
func (r *Ring) Remain() int {
	if r.readPos > r.writePos {
		return r.bufferSize + r.writePos - r.readPos
	}
	return r.writePos - r.readPos
}

// Capacity reports how many more bytes can be Put before the ring is full.
func (r *Ring) Capacity() int {
	return r.bufferSize - r.Remain() - 1
}

// Put appends data to the ring, maintaining the mirror region so that a
// subsequent Peek/Get can still return a contiguous slice across the wrap.
func (r *Ring) Put(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("ringbuf: %w", ErrInvalidArgument)
	}
	if len(data) > r.Capacity() {
		return fmt.Errorf("ringbuf: %w", ErrExceedCapacity)
	}

	size := len(data)

	if r.writePos+size >= r.bufferSize {
		headSize := r.bufferSize - r.writePos
		copy(r.data[r.writePos:r.writePos+headSize], data[:headSize])
		data = data[headSize:]
		size -= headSize
		r.writePos = 0
		if size == 0 {
			return nil
		}
	}

	if r.writePos < r.maxRequired {
		copySize := size
		if max := r.maxRequired - r.writePos; copySize > max {
			copySize = max
		}
		copy(r.data[r.bufferSize+r.writePos:r.bufferSize+r.writePos+copySize], data[:copySize])
	}

	copy(r.data[r.writePos:r.writePos+size], data)
	r.writePos += size

	return nil
}

// Peek validates that requiredSize bytes of live data are available (and
// that requiredSize does not exceed the ring's max required size) and, if
// so, returns a contiguous view of maxRequired bytes starting at the read
// cursor, without advancing it.
//
// The returned slice is always maxRequired bytes long, not requiredSize:
// requiredSize is only a reservation used to validate the call, mirroring
// the ring's mirror-tail guarantee that any maxRequired-byte window
// starting at the read cursor is contiguous and safe to read, regardless of
// how much of it the caller is strictly required to have written. Callers
// that only want requiredSize bytes should slice the result themselves;
// callers implementing a sliding window larger than a single advance step
// (as in overlap-save convolution) rely on being able to read further than
// requiredSize into the returned slice.
//
// The returned slice aliases the ring's backing array and is only valid
// until the next Put that would overwrite it.
func (r *Ring) Peek(requiredSize int) ([]byte, error) {
	if requiredSize <= 0 {
		return nil, fmt.Errorf("ringbuf: %w", ErrInvalidArgument)
	}
	if requiredSize > r.maxRequired {
		return nil, fmt.Errorf("ringbuf: %w", ErrExceedRequired)
	}
	if requiredSize > r.Remain() {
		return nil, fmt.Errorf("ringbuf: %w", ErrExceedRemain)
	}
	return r.data[r.readPos : r.readPos+r.maxRequired], nil
}

// Get is Peek followed by advancing the read cursor past requiredSize
// bytes. As with Peek, the returned slice is maxRequired bytes long; only
// the first requiredSize of them are consumed from the ring.
func (r *Ring) Get(requiredSize int) ([]byte, error) {
	out, err := r.Peek(requiredSize)
	if err != nil {
		return nil, err
	}
	r.readPos = (r.readPos + requiredSize) % r.bufferSize
	return out, nil
}
