package audiocore

import (
	"time"
)

// Format describes the shape of the blocks a source produces.
type Format struct {
	SampleRate int // Sample rate in Hz (e.g., 192000)
	Channels   int // Channels per frame
	BlockSize  int // Frames per block
}

// BlockDuration returns the wall time covered by one block.
func (f Format) BlockDuration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(f.BlockSize) * time.Second / time.Duration(f.SampleRate)
}

// SampleBlock is one fixed-size read of frames x channels samples.
//
// Samples are float32 in [-1, 1], interleaved by frame:
// Samples[frame*Channels+channel].
type SampleBlock struct {
	Samples   []float32
	Frames    int
	Channels  int
	Timestamp time.Time // capture time of the last frame
	Sequence  uint64    // monotonic per source
}

// NewSampleBlock allocates a zeroed block.
func NewSampleBlock(frames, channels int) SampleBlock {
	return SampleBlock{
		Samples:  make([]float32, frames*channels),
		Frames:   frames,
		Channels: channels,
	}
}

// At returns the sample at the given frame and channel.
func (b SampleBlock) At(frame, channel int) float32 {
	return b.Samples[frame*b.Channels+channel]
}

// Set writes one sample. Only sources call this before handing the block off.
func (b SampleBlock) Set(frame, channel int, v float32) {
	b.Samples[frame*b.Channels+channel] = v
}

// Recording is a flushed event: the drained blocks in chronological order
// plus the metadata the sink and event log need.
type Recording struct {
	ID         string
	Blocks     []SampleBlock
	SampleRate int
	Channels   int
	Prefix     string
	EventTime  time.Time // first threshold crossing
	FlushTime  time.Time // moment the post-event deadline passed
	Triggered  []int     // channels that crossed the threshold
}

// Frames returns the total number of frames across all blocks.
func (r *Recording) Frames() int {
	total := 0
	for i := range r.Blocks {
		total += r.Blocks[i].Frames
	}
	return total
}

// Duration returns the audio length of the recording.
func (r *Recording) Duration() time.Duration {
	if r.SampleRate <= 0 {
		return 0
	}
	return time.Duration(r.Frames()) * time.Second / time.Duration(r.SampleRate)
}
