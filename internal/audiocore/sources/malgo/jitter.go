package malgo

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smallnest/ringbuffer"
	"golang.org/x/time/rate"

	"github.com/tphakala/eventrec/internal/audiocore"
	"github.com/tphakala/eventrec/internal/errors"
)

// bytesPerSample of the float32 capture format.
const bytesPerSample = 4

// blockReader turns the irregular callback-sized chunks miniaudio delivers
// into fixed-size sample blocks. The device callback only copies bytes into
// the byte ring and never waits for the reader; a full ring drops the whole
// chunk and flags an overrun that the next ReadBlock reports. Each block is
// stamped with the time of the callback that completed it.
type blockReader struct {
	format     audiocore.Format
	blockBytes int

	mu      sync.Mutex // orders ring writes with completion stamps
	buf     *ringbuffer.RingBuffer
	partial int         // bytes of the block being filled
	stamps  []time.Time // completion time per buffered full block

	notify chan struct{} // signalled after every callback write
	done   chan struct{} // closed when the device stops
	once   sync.Once

	overrun      atomic.Bool
	droppedBytes atomic.Uint64
	overruns     atomic.Uint64

	scratch  []byte
	sequence uint64
	timeout  time.Duration
	now      func() time.Time

	warnLimiter *rate.Limiter
	logger      *slog.Logger
}

func newBlockReader(format audiocore.Format, depthBlocks int, logger *slog.Logger) *blockReader {
	if depthBlocks < 2 {
		depthBlocks = 2
	}
	blockBytes := format.BlockSize * format.Channels * bytesPerSample

	// Allow several block periods before declaring the device stalled.
	timeout := 4*format.BlockDuration() + 2*time.Second

	return &blockReader{
		format:      format,
		blockBytes:  blockBytes,
		buf:         ringbuffer.New(blockBytes * depthBlocks),
		stamps:      make([]time.Time, 0, depthBlocks+1),
		notify:      make(chan struct{}, 1),
		done:        make(chan struct{}),
		scratch:     make([]byte, blockBytes),
		timeout:     timeout,
		now:         time.Now,
		warnLimiter: rate.NewLimiter(rate.Every(10*time.Second), 1),
		logger:      logger,
	}
}

// write is called from the device callback.
func (r *blockReader) write(p []byte) {
	if len(p) == 0 {
		return
	}
	now := r.now()

	r.mu.Lock()
	if r.buf.Free() < len(p) {
		// Whole chunk or nothing, so frames are never torn.
		r.dropChunk(len(p))
	} else if _, err := r.buf.Write(p); err != nil {
		r.dropChunk(len(p))
	} else {
		r.partial += len(p)
		for r.partial >= r.blockBytes {
			r.partial -= r.blockBytes
			r.stamps = append(r.stamps, now)
		}
	}
	r.mu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
	}
}

func (r *blockReader) dropChunk(n int) {
	r.droppedBytes.Add(uint64(n))
	r.overruns.Add(1)
	r.overrun.Store(true)
}

// stop marks the stream as ended. Safe to call more than once.
func (r *blockReader) stop() {
	r.once.Do(func() { close(r.done) })
}

// read blocks until one full block is buffered.
func (r *blockReader) read(ctx context.Context) (audiocore.SampleBlock, error) {
	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	for {
		if r.overrun.Swap(false) {
			// Buffered audio precedes a gap; discard it so no block spans the gap.
			r.mu.Lock()
			r.buf.Reset()
			r.partial = 0
			r.stamps = r.stamps[:0]
			r.mu.Unlock()
			dropped := r.droppedBytes.Swap(0)
			if r.warnLimiter.Allow() {
				r.logger.Warn("capture overrun, audio dropped",
					"dropped_bytes", dropped,
					"total_overruns", r.overruns.Load())
			}
			return audiocore.SampleBlock{}, r.readError("overrun", fmt.Errorf("%d bytes dropped by the capture callback", dropped))
		}

		if r.buf.Length() >= r.blockBytes {
			return r.decode()
		}

		select {
		case <-ctx.Done():
			return audiocore.SampleBlock{}, ctx.Err()
		case <-r.done:
			return audiocore.SampleBlock{}, r.readError("device_stopped", fmt.Errorf("capture device stopped"))
		case <-timer.C:
			return audiocore.SampleBlock{}, r.readError("timeout", fmt.Errorf("no audio for %s", r.timeout))
		case <-r.notify:
		}
	}
}

func (r *blockReader) decode() (audiocore.SampleBlock, error) {
	r.mu.Lock()
	n, err := r.buf.Read(r.scratch)
	var stamp time.Time
	if len(r.stamps) > 0 {
		stamp = r.stamps[0]
		r.stamps = append(r.stamps[:0], r.stamps[1:]...)
	}
	r.mu.Unlock()
	if err != nil || n != r.blockBytes {
		return audiocore.SampleBlock{}, r.readError("partial_read", fmt.Errorf("read %d of %d bytes: %v", n, r.blockBytes, err))
	}

	block := audiocore.NewSampleBlock(r.format.BlockSize, r.format.Channels)
	for i := range block.Samples {
		block.Samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(r.scratch[i*bytesPerSample:]))
	}
	if stamp.IsZero() {
		stamp = r.now()
	}
	block.Timestamp = stamp
	r.sequence++
	block.Sequence = r.sequence
	return block, nil
}

func (r *blockReader) readError(reason string, err error) error {
	return errors.New(fmt.Errorf("%w: %w", audiocore.ErrSourceRead, err)).
		Component("malgo").
		Category(errors.CategoryAudioSource).
		Context("reason", reason).
		Context("sequence", r.sequence).
		Build()
}

// Overruns returns how many callback chunks were dropped.
func (r *blockReader) Overruns() uint64 {
	return r.overruns.Load()
}
