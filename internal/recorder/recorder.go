// Package recorder runs the event recording pipeline: a capture goroutine
// that feeds the ring buffer and trigger machine, and a flush goroutine that
// writes drained recordings to the sink.
package recorder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/tphakala/eventrec/internal/audiocore"
	"github.com/tphakala/eventrec/internal/audiocore/capture"
	"github.com/tphakala/eventrec/internal/audiocore/trigger"
	"github.com/tphakala/eventrec/internal/errors"
	"github.com/tphakala/eventrec/internal/logging"
)

// maxConsecutiveReadFailures is how many source read failures in a row are
// tolerated before capture stops.
const maxConsecutiveReadFailures = 2

// RecorderContext owns one recording pipeline. Create it with New and start
// it with Run.
type RecorderContext struct {
	source    audiocore.Source
	sink      audiocore.Sink
	cfg       trigger.Config
	evaluator audiocore.Evaluator
	metrics   Metrics
	guard     DiskGuard
	listeners []audiocore.Listener
	logger    *slog.Logger

	// owned by the capture goroutine while running
	machine  *trigger.Machine
	buffer   *capture.RingBuffer
	lastSeen time.Time

	queue       chan *audiocore.Recording
	warnLimiter *rate.Limiter
	running     atomic.Bool

	mu     sync.Mutex
	status Status
}

// New validates opts and returns an idle recorder.
func New(opts Options) (*RecorderContext, error) {
	if opts.Source == nil || opts.Sink == nil {
		return nil, errors.New(fmt.Errorf("%w: recorder needs a source and a sink", audiocore.ErrConfiguration)).
			Component("recorder").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err := opts.Trigger.Validate(); err != nil {
		return nil, err
	}

	queueSize := opts.FlushQueue
	if queueSize <= 0 {
		queueSize = DefaultFlushQueue
	}
	m := opts.Metrics
	if m == nil {
		m = noopMetrics{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.ForService("recorder")
	}

	return &RecorderContext{
		source:      opts.Source,
		sink:        opts.Sink,
		cfg:         opts.Trigger,
		evaluator:   opts.Evaluator,
		metrics:     m,
		guard:       opts.Guard,
		listeners:   slices.Clone(opts.Listeners),
		logger:      logger,
		queue:       make(chan *audiocore.Recording, queueSize),
		warnLimiter: rate.NewLimiter(rate.Every(10*time.Second), 3),
		status:      Status{State: trigger.StateIdle.String()},
	}, nil
}

// Run opens the source and records until ctx is cancelled, the source ends,
// or the source fails twice in a row. An event still in its post-event phase
// is flushed before Run returns, and queued recordings are written first.
//
// Cancellation is not an error. A fatal source failure is returned wrapping
// audiocore.ErrSourceRead.
func (r *RecorderContext) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return errors.New(fmt.Errorf("recorder is already running")).
			Component("recorder").
			Category(errors.CategoryState).
			Build()
	}
	defer r.running.Store(false)

	if err := r.source.Open(ctx); err != nil {
		return err
	}
	defer func() {
		if err := r.source.Close(); err != nil {
			r.logger.Warn("failed to close audio source", "error", err)
		}
	}()

	if err := r.prepare(); err != nil {
		return err
	}

	cfg := r.machine.Config()
	r.logger.Info("recorder started",
		"sample_rate", cfg.SampleRate,
		"block_size", cfg.BlockSize,
		"channels", cfg.ChannelCount,
		"monitor_channels", cfg.Channels,
		"threshold", cfg.Threshold,
		"pre_event", cfg.PreEvent,
		"post_event", cfg.PostEvent,
		"buffer_blocks", r.buffer.Capacity())
	r.logger.Info("audio is discarded during the cooldown after each recording",
		"cooldown", cfg.Cooldown())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.capture(gctx)
	})
	g.Go(func() error {
		// Pending recordings are written even after cancellation.
		r.flushLoop(context.WithoutCancel(ctx))
		return nil
	})

	err := g.Wait()
	r.setState(trigger.StateIdle)
	if err != nil {
		r.logger.Error("recorder stopped", "error", err)
		return err
	}
	r.logger.Info("recorder stopped")
	return nil
}

// prepare adopts the source's negotiated format and builds the machine and
// ring buffer for it.
func (r *RecorderContext) prepare() error {
	cfg := r.cfg
	f := r.source.Format()
	if f.SampleRate != cfg.SampleRate || f.BlockSize != cfg.BlockSize || f.Channels != cfg.ChannelCount {
		r.logger.Info("using source format",
			"sample_rate", f.SampleRate,
			"block_size", f.BlockSize,
			"channels", f.Channels)
		cfg.SampleRate = f.SampleRate
		cfg.BlockSize = f.BlockSize
		cfg.ChannelCount = f.Channels
	}

	machine, err := trigger.NewMachine(cfg, r.evaluator)
	if err != nil {
		return err
	}
	buffer, err := capture.NewRingBufferForDuration(cfg.TotalDuration(), cfg.SampleRate, cfg.BlockSize)
	if err != nil {
		return err
	}

	r.machine = machine
	r.buffer = buffer
	r.lastSeen = time.Time{}
	r.queue = make(chan *audiocore.Recording, cap(r.queue))
	return nil
}

// capture reads blocks until the source ends or fails. It closes the flush
// queue on return.
func (r *RecorderContext) capture(ctx context.Context) error {
	defer close(r.queue)

	failures := 0
	for {
		block, err := r.source.ReadBlock(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				r.interrupt("shutdown")
				return nil
			case errors.Is(err, io.EOF):
				r.interrupt("end of input")
				return nil
			}

			failures++
			r.metrics.ObserveSourceError()
			if failures < maxConsecutiveReadFailures {
				r.logger.Warn("audio source read failed, retrying", "error", err)
				continue
			}
			r.interrupt("source failure")
			return errors.New(fmt.Errorf("%w: %d consecutive failures: %w", audiocore.ErrSourceRead, failures, err)).
				Component("recorder").
				Category(errors.CategoryAudioSource).
				Context("operation", "capture").
				Build()
		}

		failures = 0
		r.observe(block)
	}
}

// observe feeds one block through the machine and buffer.
func (r *RecorderContext) observe(block audiocore.SampleBlock) {
	r.metrics.ObserveBlock()
	r.lastSeen = block.Timestamp

	d := r.machine.Observe(block)
	if d.Action.Buffers() {
		r.buffer.Push(block)
	} else {
		r.metrics.ObserveDiscard()
	}

	switch d.Action {
	case trigger.ActionTrigger:
		r.metrics.ObserveTrigger(d.Event.Triggered)
		r.logger.Info("event triggered",
			"event_time", d.Event.EventTime,
			"channels", d.Event.Triggered,
			"recording_end", d.Event.RecordingEnd)
		r.mu.Lock()
		r.status.Events++
		r.status.LastEvent = d.Event.EventTime
		r.mu.Unlock()
	case trigger.ActionFlush:
		r.enqueue(d.Event)
		r.logger.Debug("cooldown started", "until", r.machine.CooldownEnd())
	}

	r.metrics.SetBufferFill(r.buffer.FillRatio())
	r.setState(d.State)
}

// interrupt flushes an event that is still in its post-event phase.
func (r *RecorderContext) interrupt(reason string) {
	now := r.lastSeen
	if now.IsZero() {
		now = time.Now()
	}
	ev, ok := r.machine.Interrupt(now)
	if !ok {
		return
	}
	r.logger.Info("flushing in-flight event", "reason", reason, "event_time", ev.EventTime)
	r.enqueue(ev)
}

// enqueue drains the ring buffer into a recording and hands it to the flush
// goroutine without blocking capture.
func (r *RecorderContext) enqueue(ev trigger.Event) {
	blocks := r.buffer.Drain()
	r.metrics.SetBufferFill(0)
	if err := checkOrder(blocks); err != nil {
		r.logger.Error("ring buffer returned blocks out of order", "error", err)
	}

	cfg := r.machine.Config()
	rec := &audiocore.Recording{
		ID:         uuid.NewString(),
		Blocks:     blocks,
		SampleRate: cfg.SampleRate,
		Channels:   cfg.ChannelCount,
		Prefix:     cfg.Prefix,
		EventTime:  ev.EventTime,
		FlushTime:  ev.FlushTime,
		Triggered:  ev.Triggered,
	}

	select {
	case r.queue <- rec:
		r.metrics.ObserveFlush()
		r.logger.Info("event flushed",
			"event_id", rec.ID,
			"blocks", len(blocks),
			"duration", rec.Duration(),
			"flush_time", rec.FlushTime)
	default:
		r.metrics.ObserveDroppedRecording()
		r.mu.Lock()
		r.status.Dropped++
		r.mu.Unlock()
		err := errors.New(fmt.Errorf("%w: flush queue full, recording dropped", audiocore.ErrSinkWrite)).
			Component("recorder").
			Category(errors.CategoryBuffer).
			Context("event_id", rec.ID).
			Context("queue_size", cap(r.queue)).
			Build()
		r.logger.Error("recording lost", "error", err, "event_time", rec.EventTime)
	}
}

// flushLoop writes queued recordings until the queue is closed.
func (r *RecorderContext) flushLoop(ctx context.Context) {
	for rec := range r.queue {
		r.write(ctx, rec)
	}
}

// write persists one recording and notifies listeners. Failures are logged
// and counted; they never stop the recorder.
func (r *RecorderContext) write(ctx context.Context, rec *audiocore.Recording) {
	start := time.Now()
	log := r.logger.With("event_id", rec.ID)

	if r.guard != nil {
		if err := r.guard.Check(ctx); err != nil {
			r.metrics.ObserveWrite(time.Since(start).Seconds(), 0, err)
			r.recordFailure()
			log.Error("recording lost", "error", err)
			return
		}
	}

	path, err := r.sink.Write(ctx, rec)
	r.metrics.ObserveWrite(time.Since(start).Seconds(), rec.Duration().Seconds(), err)
	if err != nil {
		r.recordFailure()
		log.Error("recording lost", "error", err)
		return
	}

	log.Info("recording written",
		"path", path,
		"duration", rec.Duration(),
		"triggered_channels", rec.Triggered,
		"elapsed", time.Since(start))

	r.mu.Lock()
	r.status.Recordings++
	r.status.LastRecording = path
	r.mu.Unlock()

	for _, l := range r.listeners {
		if err := l.RecordingWritten(ctx, rec, path); err != nil {
			if r.warnLimiter.Allow() {
				log.Warn("recording listener failed", "listener", fmt.Sprintf("%T", l), "error", err)
			} else {
				log.Debug("recording listener failed", "listener", fmt.Sprintf("%T", l), "error", err)
			}
		}
	}
}

func (r *RecorderContext) recordFailure() {
	r.mu.Lock()
	r.status.Failures++
	r.mu.Unlock()
}

func (r *RecorderContext) setState(s trigger.State) {
	r.metrics.SetState(s.String())
	r.mu.Lock()
	r.status.State = s.String()
	if r.buffer != nil {
		r.status.BufferFill = r.buffer.FillRatio()
	}
	if r.machine != nil {
		r.status.CooldownUntil = r.machine.CooldownEnd()
	}
	r.mu.Unlock()
}

// checkOrder verifies that drained blocks are strictly chronological.
func checkOrder(blocks []audiocore.SampleBlock) error {
	for i := 1; i < len(blocks); i++ {
		if blocks[i].Sequence <= blocks[i-1].Sequence {
			return errors.New(fmt.Errorf("%w: block %d has sequence %d after %d",
				audiocore.ErrBufferInvariant, i, blocks[i].Sequence, blocks[i-1].Sequence)).
				Component("recorder").
				Category(errors.CategoryBuffer).
				Build()
		}
	}
	return nil
}
