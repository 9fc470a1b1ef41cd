// Package analysis wires the recorder pipeline for live capture and file
// replay from the loaded settings.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tphakala/eventrec/internal/audiocore"
	"github.com/tphakala/eventrec/internal/audiocore/detection"
	"github.com/tphakala/eventrec/internal/audiocore/export"
	"github.com/tphakala/eventrec/internal/conf"
	"github.com/tphakala/eventrec/internal/datastore"
	"github.com/tphakala/eventrec/internal/diskmanager"
	"github.com/tphakala/eventrec/internal/logging"
	"github.com/tphakala/eventrec/internal/mqtt"
	"github.com/tphakala/eventrec/internal/observability"
	"github.com/tphakala/eventrec/internal/observability/metrics"
	"github.com/tphakala/eventrec/internal/recorder"
)

// endpointShutdownTimeout bounds the HTTP endpoint shutdown.
const endpointShutdownTimeout = 5 * time.Second

// pipeline holds the collaborators shared by live capture and replay.
type pipeline struct {
	settings *conf.Settings
	logger   *slog.Logger

	sink      *export.WAVSink
	metrics   *observability.Metrics
	guard     *diskmanager.Guard
	store     *datastore.Store
	publisher *mqtt.Publisher
}

// newPipeline creates the sink and every optional collaborator enabled in
// settings. An unreachable MQTT broker is logged, not fatal.
func newPipeline(ctx context.Context, settings *conf.Settings) (*pipeline, error) {
	p := &pipeline{
		settings: settings,
		logger:   logging.ForService("analysis"),
	}

	sink, err := export.NewWAVSink(settings.Output.Path, settings.Output.BitDepth)
	if err != nil {
		return nil, err
	}
	p.sink = sink

	if settings.Observability.Enabled {
		m, err := observability.NewMetrics()
		if err != nil {
			return nil, fmt.Errorf("error initializing metrics: %w", err)
		}
		p.metrics = m
	}

	if settings.Output.MaxDiskUsage > 0 {
		p.guard = diskmanager.NewGuard(settings.Output.Path, settings.Output.MaxDiskUsage, p.diskMetrics())
	}

	if settings.EventLog.Enabled {
		store, err := datastore.Open(settings.EventLog.Path, settings.Debug)
		if err != nil {
			return nil, err
		}
		p.store = store
	}

	if settings.MQTT.Enabled {
		client := mqtt.NewClient(mqtt.Config{
			Broker:   settings.MQTT.Broker,
			ClientID: settings.MQTT.ClientID,
			Username: settings.MQTT.Username,
			Password: settings.MQTT.Password,
			Topic:    settings.MQTT.Topic,
			Retain:   settings.MQTT.Retain,
			QoS:      settings.MQTT.QoS,
		}, p.mqttMetrics())
		if err := client.Connect(ctx); err != nil {
			p.logger.Warn("MQTT broker unreachable, notifications resume once connected",
				"broker", settings.MQTT.Broker,
				"error", err)
		}
		p.publisher = mqtt.NewPublisher(client, settings.MQTT.Topic)
	}

	return p, nil
}

// run records from source until ctx is done or the source ends. The status
// endpoint is served only when serve is set.
func (p *pipeline) run(ctx context.Context, source audiocore.Source, serve bool) error {
	evaluator, err := detection.New(p.settings.Trigger.Mode)
	if err != nil {
		return err
	}

	opts := recorder.Options{
		Source:     source,
		Sink:       p.sink,
		Trigger:    recorder.TriggerConfig(p.settings),
		Evaluator:  evaluator,
		FlushQueue: p.settings.Output.FlushQueue,
	}
	if p.metrics != nil {
		opts.Metrics = p.metrics.Recorder
	}
	if p.guard != nil {
		opts.Guard = p.guard
	}
	if p.store != nil {
		opts.Listeners = append(opts.Listeners, p.store)
	}
	if p.publisher != nil {
		opts.Listeners = append(opts.Listeners, p.publisher)
	}

	rec, err := recorder.New(opts)
	if err != nil {
		return err
	}

	if serve && p.metrics != nil {
		endpoint := observability.NewEndpoint(p.settings.Observability.Listen, p.metrics, rec.StatusAny)
		if err := endpoint.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), endpointShutdownTimeout)
			defer cancel()
			if err := endpoint.Shutdown(shutdownCtx); err != nil {
				p.logger.Warn("failed to stop observability endpoint", "error", err)
			}
		}()
	}

	return rec.Run(ctx)
}

// close releases the event log and the MQTT connection.
func (p *pipeline) close() {
	if p.publisher != nil {
		p.publisher.Close()
	}
	if p.store != nil {
		if err := p.store.Close(); err != nil {
			p.logger.Warn("failed to close event log", "error", err)
		}
	}
}

func (p *pipeline) diskMetrics() *metrics.DiskManagerMetrics {
	if p.metrics == nil {
		return nil
	}
	return p.metrics.DiskManager
}

func (p *pipeline) mqttMetrics() *metrics.MQTTMetrics {
	if p.metrics == nil {
		return nil
	}
	return p.metrics.MQTT
}
