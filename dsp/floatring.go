package dsp

import (
	"encoding/binary"
	"fmt"
	"math"

	"streamconv/internal/ringbuf"
)

// floatRing adapts ringbuf.Ring's byte-granular FIFO to the float32 streams
// the engines actually work with. Byte order follows the host, via
// encoding/binary.NativeEndian, since nothing here ever crosses a process
// or machine boundary.
type floatRing struct {
	ring      *ringbuf.Ring
	maxChunk  int // in float32 elements, mirrors the byte ring's maxRequired/4
	putBuf    []byte
	decodeBuf []float32
}

// estimateFloatRingSize reports the number of float32-equivalent elements a
// floatRing built from newFloatRing(maxFloats, maxChunkFloats) will
// allocate: the underlying byte ring, including its mirror-tail padding,
// plus floatRing's own putBuf and decodeBuf scratch.
func estimateFloatRingSize(maxFloats, maxChunkFloats int) (int, error) {
	ringBytes, err := ringbuf.EstimateSize(maxFloats*4, maxChunkFloats*4)
	if err != nil {
		return 0, fmt.Errorf("dsp: floatRing: %w", err)
	}
	return ringBytes/4 + 2*maxChunkFloats, nil
}

func newFloatRing(maxFloats, maxChunkFloats int) (*floatRing, error) {
	ring, err := ringbuf.New(maxFloats*4, maxChunkFloats*4)
	if err != nil {
		return nil, fmt.Errorf("dsp: floatRing: %w", err)
	}
	return &floatRing{
		ring:      ring,
		maxChunk:  maxChunkFloats,
		putBuf:    make([]byte, maxChunkFloats*4),
		decodeBuf: make([]float32, maxChunkFloats),
	}, nil
}

func (fr *floatRing) clear() {
	fr.ring.Clear()
}

// put encodes and appends data, which must not exceed maxChunkFloats.
func (fr *floatRing) put(data []float32) error {
	if len(data) > fr.maxChunk {
		return fmt.Errorf("dsp: floatRing: put of %d floats exceeds max chunk %d", len(data), fr.maxChunk)
	}
	buf := fr.putBuf[:len(data)*4]
	for i, v := range data {
		binary.NativeEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return fr.ring.Put(buf)
}

// get advances the read cursor by n floats and returns a window of the
// first window decoded floats starting at the pre-advance read position —
// the float32 analogue of Ring.Get's "peek wider than you consume" window,
// used by FftEngine's overlap-save sliding window. window must satisfy
// 0 <= window <= maxChunkFloats; it is independent of n, since a caller
// that only advances the ring to retire an entry it never reads (as
// FftEngine.Process does to its freqRing) has no use for any decoded
// floats at all. Callers that only need the n floats they consumed should
// pass window == n rather than decoding the unused remainder of the
// underlying ring's mirror-tail window.
func (fr *floatRing) get(n, window int) ([]float32, error) {
	raw, err := fr.ring.Get(n * 4)
	if err != nil {
		return nil, fmt.Errorf("dsp: floatRing: %w", err)
	}
	for i := 0; i < window; i++ {
		fr.decodeBuf[i] = math.Float32frombits(binary.NativeEndian.Uint32(raw[i*4:]))
	}
	return fr.decodeBuf[:window], nil
}
