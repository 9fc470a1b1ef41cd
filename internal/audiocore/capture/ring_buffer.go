// Package capture holds the pre-event ring buffer of sample blocks.
package capture

import (
	"math"
	"sync"
	"time"

	"github.com/tphakala/eventrec/internal/audiocore"
	"github.com/tphakala/eventrec/internal/errors"
)

// RingBuffer is a fixed-capacity FIFO of sample blocks. Pushing at capacity
// evicts the oldest block. All methods are protected by mutex.
type RingBuffer struct {
	blocks   []audiocore.SampleBlock
	head     int // index of the oldest block
	count    int
	capacity int
	mu       sync.Mutex
}

// NewRingBuffer creates a ring buffer holding at most capacity blocks.
func NewRingBuffer(capacity int) (*RingBuffer, error) {
	if capacity <= 0 {
		return nil, errors.New(audiocore.ErrConfiguration).
			Component("capture").
			Category(errors.CategoryValidation).
			Context("capacity", capacity).
			Context("reason", "ring buffer capacity must be positive").
			Build()
	}

	return &RingBuffer{
		blocks:   make([]audiocore.SampleBlock, capacity),
		capacity: capacity,
	}, nil
}

// CapacityFor returns how many blocks of blockSize frames cover total at
// sampleRate, rounded up. The frame count is computed before dividing so
// exact multiples such as 12 s at 192 kHz / 2048 give exactly 1125.
func CapacityFor(total time.Duration, sampleRate, blockSize int) (int, error) {
	if total <= 0 || sampleRate <= 0 || blockSize <= 0 {
		return 0, errors.New(audiocore.ErrConfiguration).
			Component("capture").
			Category(errors.CategoryValidation).
			Context("total_duration", total.String()).
			Context("sample_rate", sampleRate).
			Context("block_size", blockSize).
			Build()
	}

	frames := total.Seconds() * float64(sampleRate)
	// Round the frame count first to absorb float noise from fractional seconds.
	frames = math.Round(frames*1e6) / 1e6
	capacity := int(math.Ceil(frames / float64(blockSize)))
	if capacity < 1 {
		capacity = 1
	}
	return capacity, nil
}

// NewRingBufferForDuration sizes the buffer to hold total worth of blocks.
func NewRingBufferForDuration(total time.Duration, sampleRate, blockSize int) (*RingBuffer, error) {
	capacity, err := CapacityFor(total, sampleRate, blockSize)
	if err != nil {
		return nil, err
	}
	return NewRingBuffer(capacity)
}

// Push appends a block, evicting the oldest one when the buffer is full.
// It reports whether an eviction happened.
func (rb *RingBuffer) Push(block audiocore.SampleBlock) (evicted bool) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.count == rb.capacity {
		// Overwrite the oldest slot and advance the head.
		rb.blocks[rb.head] = block
		rb.head = (rb.head + 1) % rb.capacity
		return true
	}

	tail := (rb.head + rb.count) % rb.capacity
	rb.blocks[tail] = block
	rb.count++
	return false
}

// Drain removes and returns every held block, oldest first. The buffer is
// empty afterwards.
func (rb *RingBuffer) Drain() []audiocore.SampleBlock {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	out := make([]audiocore.SampleBlock, rb.count)
	for i := range rb.count {
		idx := (rb.head + i) % rb.capacity
		out[i] = rb.blocks[idx]
		// Release sample memory held by the slot.
		rb.blocks[idx] = audiocore.SampleBlock{}
	}

	rb.head = 0
	rb.count = 0
	return out
}

// Reset discards all held blocks.
func (rb *RingBuffer) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	clear(rb.blocks)
	rb.head = 0
	rb.count = 0
}

// Len returns the number of blocks held.
func (rb *RingBuffer) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

// Capacity returns the fixed capacity in blocks.
func (rb *RingBuffer) Capacity() int {
	return rb.capacity
}

// FillRatio returns Len()/Capacity() in [0, 1].
func (rb *RingBuffer) FillRatio() float64 {
	return float64(rb.Len()) / float64(rb.capacity)
}
