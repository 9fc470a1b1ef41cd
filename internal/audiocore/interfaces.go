package audiocore

import (
	"context"
)

// Source produces fixed-size sample blocks.
type Source interface {
	// Open starts the underlying stream.
	Open(ctx context.Context) error

	// ReadBlock blocks until exactly Format().BlockSize frames across
	// Format().Channels channels are available. Errors are wrapped around
	// ErrSourceRead; io.EOF signals the end of a finite source.
	ReadBlock(ctx context.Context) (SampleBlock, error)

	// Format returns the negotiated block shape.
	Format() Format

	// Close releases the stream.
	Close() error
}

// Sink persists a recording and returns the path it was written to.
type Sink interface {
	Write(ctx context.Context, rec *Recording) (string, error)
}

// Evaluator reports, for each requested channel, whether the block crossed
// the threshold.
type Evaluator interface {
	Name() string
	Evaluate(block SampleBlock, channels []int, threshold float64) []bool
}

// Listener is told about every recording the sink wrote successfully. A
// listener error is logged and never stops the recorder.
type Listener interface {
	RecordingWritten(ctx context.Context, rec *Recording, path string) error
}
