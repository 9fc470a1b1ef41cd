package capture

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/eventrec/internal/audiocore"
	"github.com/tphakala/eventrec/internal/errors"
)

func block(seq uint64) audiocore.SampleBlock {
	b := audiocore.NewSampleBlock(4, 2)
	b.Sequence = seq
	b.Set(0, 0, float32(seq))
	return b
}

func sequences(blocks []audiocore.SampleBlock) []uint64 {
	out := make([]uint64, len(blocks))
	for i := range blocks {
		out[i] = blocks[i].Sequence
	}
	return out
}

func TestNewRingBufferValidation(t *testing.T) {
	t.Parallel()

	for _, capacity := range []int{0, -1} {
		rb, err := NewRingBuffer(capacity)
		require.Error(t, err)
		assert.Nil(t, rb)
		assert.ErrorIs(t, err, audiocore.ErrConfiguration)
		assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	}
}

func TestCapacityFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		total      time.Duration
		sampleRate int
		blockSize  int
		want       int
		wantErr    bool
	}{
		{"default 12s at 192kHz", 12 * time.Second, 192000, 2048, 1125, false},
		{"exact multiple", time.Second, 48000, 1000, 48, false},
		{"rounds up partial block", time.Second, 48000, 1024, 47, false},
		{"fractional seconds", 1500 * time.Millisecond, 44100, 441, 150, false},
		{"shorter than one block", time.Millisecond, 48000, 4096, 1, false},
		{"zero duration", 0, 48000, 1024, 0, true},
		{"zero rate", time.Second, 0, 1024, 0, true},
		{"zero block size", time.Second, 48000, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := CapacityFor(tt.total, tt.sampleRate, tt.blockSize)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, audiocore.ErrConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRingBufferOrderingUnderCapacity(t *testing.T) {
	t.Parallel()

	rb, err := NewRingBuffer(10)
	require.NoError(t, err)

	for n := 0; n <= 10; n++ {
		for i := range n {
			evicted := rb.Push(block(uint64(i)))
			assert.False(t, evicted)
		}
		assert.Equal(t, n, rb.Len())

		drained := rb.Drain()
		require.Len(t, drained, n)
		for i := range drained {
			assert.Equal(t, uint64(i), drained[i].Sequence)
			assert.InDelta(t, float32(i), drained[i].At(0, 0), 0)
		}
		assert.Equal(t, 0, rb.Len(), "drain must empty the buffer")
	}
}

func TestRingBufferEviction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		capacity int
		pushes   int
	}{
		{"one over", 5, 6},
		{"twice capacity", 5, 10},
		{"many wraps", 3, 100},
		{"capacity one", 1, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rb, err := NewRingBuffer(tt.capacity)
			require.NoError(t, err)

			evictions := 0
			for i := range tt.pushes {
				if rb.Push(block(uint64(i))) {
					evictions++
				}
			}
			assert.Equal(t, tt.pushes-tt.capacity, evictions)

			want := make([]uint64, 0, tt.capacity)
			for i := tt.pushes - tt.capacity; i < tt.pushes; i++ {
				want = append(want, uint64(i))
			}
			assert.Equal(t, want, sequences(rb.Drain()))
		})
	}
}

func TestRingBufferReuseAfterDrain(t *testing.T) {
	t.Parallel()

	rb, err := NewRingBuffer(3)
	require.NoError(t, err)

	for i := range 5 {
		rb.Push(block(uint64(i)))
	}
	assert.Equal(t, []uint64{2, 3, 4}, sequences(rb.Drain()))

	rb.Push(block(10))
	rb.Push(block(11))
	assert.Equal(t, []uint64{10, 11}, sequences(rb.Drain()))
	assert.Empty(t, rb.Drain())
}

func TestRingBufferReset(t *testing.T) {
	t.Parallel()

	rb, err := NewRingBuffer(4)
	require.NoError(t, err)
	rb.Push(block(1))
	rb.Push(block(2))
	assert.InDelta(t, 0.5, rb.FillRatio(), 1e-9)

	rb.Reset()
	assert.Equal(t, 0, rb.Len())
	assert.Equal(t, 4, rb.Capacity())
}

// Drain acts as a barrier: across concurrent pushes and drains every block
// is returned at most once and the overall order is preserved.
func TestRingBufferConcurrentPushDrain(t *testing.T) {
	t.Parallel()

	rb, err := NewRingBuffer(64)
	require.NoError(t, err)

	const total = 5000
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		drained []uint64
	)

	done := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			got := sequences(rb.Drain())
			mu.Lock()
			drained = append(drained, got...)
			mu.Unlock()
		}
	}()

	for i := range total {
		rb.Push(block(uint64(i)))
	}
	close(done)
	wg.Wait()
	drained = append(drained, sequences(rb.Drain())...)

	require.NotEmpty(t, drained)
	for i := 1; i < len(drained); i++ {
		assert.Less(t, drained[i-1], drained[i], "blocks must come out in push order without duplicates")
	}
	assert.Equal(t, uint64(total-1), drained[len(drained)-1], "the newest block is never lost")
}
