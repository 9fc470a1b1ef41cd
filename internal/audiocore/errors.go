package audiocore

import (
	"github.com/tphakala/eventrec/internal/errors"
)

// Component identifier for audiocore errors
const ComponentAudioCore = "audiocore"

var (
	// ErrConfiguration marks invalid settings: unknown device or host API,
	// channel index out of range, non-positive durations or rates.
	ErrConfiguration = errors.NewStd("configuration error")

	// ErrSourceRead marks a failed or partial read from the audio source.
	ErrSourceRead = errors.NewStd("audio source read failure")

	// ErrSinkWrite marks a failed recording write.
	ErrSinkWrite = errors.NewStd("recording write failure")

	// ErrBufferInvariant marks a ring buffer misuse.
	ErrBufferInvariant = errors.NewStd("buffer invariant violation")
)
