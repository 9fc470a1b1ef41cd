package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/eventrec/internal/audiocore"
	"github.com/tphakala/eventrec/internal/errors"
)

// RecordingMessage is the JSON payload published for a written recording.
type RecordingMessage struct {
	EventID           string    `json:"event_id"`
	File              string    `json:"file"`
	FileName          string    `json:"file_name"`
	EventTime         time.Time `json:"event_time"`
	FlushTime         time.Time `json:"flush_time"`
	DurationSeconds   float64   `json:"duration_seconds"`
	SampleRate        int       `json:"sample_rate"`
	Channels          int       `json:"channels"`
	TriggeredChannels []int     `json:"triggered_channels"`
}

// NewRecordingMessage describes rec written to path. Recordings without an
// ID get a fresh one.
func NewRecordingMessage(rec *audiocore.Recording, path string) RecordingMessage {
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	triggered := rec.Triggered
	if triggered == nil {
		triggered = []int{}
	}
	return RecordingMessage{
		EventID:           id,
		File:              path,
		FileName:          filepath.Base(path),
		EventTime:         rec.EventTime,
		FlushTime:         rec.FlushTime,
		DurationSeconds:   rec.Duration().Seconds(),
		SampleRate:        rec.SampleRate,
		Channels:          rec.Channels,
		TriggeredChannels: triggered,
	}
}

// Publisher announces written recordings on a topic.
type Publisher struct {
	client Client
	topic  string
}

var _ audiocore.Listener = (*Publisher)(nil)

// NewPublisher returns a publisher sending to topic through client.
func NewPublisher(client Client, topic string) *Publisher {
	return &Publisher{client: client, topic: topic}
}

// RecordingWritten publishes a RecordingMessage for rec, reconnecting first
// when the broker connection was lost. Reconnects obey the client cooldown.
func (p *Publisher) RecordingWritten(ctx context.Context, rec *audiocore.Recording, path string) error {
	if !p.client.IsConnected() {
		if err := p.client.Connect(ctx); err != nil {
			return err
		}
	}
	payload, err := json.Marshal(NewRecordingMessage(rec, path))
	if err != nil {
		return errors.New(fmt.Errorf("marshal recording message: %w", err)).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Build()
	}
	return p.client.Publish(ctx, p.topic, string(payload))
}

// Close disconnects the underlying client.
func (p *Publisher) Close() {
	p.client.Disconnect()
}
