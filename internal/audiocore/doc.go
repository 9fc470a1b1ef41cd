// Package audiocore defines the shared types of the event recorder pipeline.
//
// # Architecture Overview
//
//	Source -> capture loop -> RingBuffer (always) + Evaluator (idle only)
//	       -> trigger.Machine -> drain -> flush task -> Sink
//
// Subpackages:
//
//   - capture: fixed-capacity ring buffer of sample blocks
//   - detection: peak and RMS threshold evaluators
//   - trigger: idle / post-event / cool-down state machine
//   - export: WAV sink and recording file naming
//   - sources/malgo: live capture through miniaudio
//   - sources/file: WAV and FLAC replay for offline tuning
//
// # Concurrency and Thread Safety
//
// SampleBlock values are immutable once a source returns them. The ring
// buffer is protected by a mutex and Drain is a barrier with respect to
// Push. The trigger machine is owned by the capture goroutine alone.
package audiocore
