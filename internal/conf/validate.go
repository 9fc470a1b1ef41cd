// conf/validate.go settings validation
package conf

import (
	"fmt"
	"strings"

	"github.com/tphakala/eventrec/internal/audiocore"
	"github.com/tphakala/eventrec/internal/audiocore/detection"
	"github.com/tphakala/eventrec/internal/errors"
)

// ValidationError collects every problem found in the settings.
type ValidationError struct {
	Errors []string
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", strings.Join(ve.Errors, "; "))
}

// ValidateSettings checks settings for values the recorder cannot run with.
// All problems are reported at once. The returned error matches
// audiocore.ErrConfiguration.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validateAudioSettings(&settings.Audio, &ve)
	validateTriggerSettings(&settings.Trigger, settings.Audio.ChannelCount, &ve)
	validateOutputSettings(&settings.Output, &ve)

	if settings.Main.Log.Enabled && settings.Main.Log.Path == "" {
		ve.Errors = append(ve.Errors, "main.log.path is required when file logging is enabled")
	}
	if settings.Observability.Enabled && settings.Observability.Listen == "" {
		ve.Errors = append(ve.Errors, "observability.listen is required when observability is enabled")
	}
	if settings.Sentry.Enabled && settings.Sentry.DSN == "" {
		ve.Errors = append(ve.Errors, "sentry.dsn is required when sentry is enabled")
	}
	if settings.MQTT.Enabled {
		if settings.MQTT.Broker == "" {
			ve.Errors = append(ve.Errors, "mqtt.broker is required when mqtt is enabled")
		}
		if settings.MQTT.Topic == "" {
			ve.Errors = append(ve.Errors, "mqtt.topic is required when mqtt is enabled")
		}
		if settings.MQTT.QoS > 2 {
			ve.Errors = append(ve.Errors, fmt.Sprintf("mqtt.qos must be 0, 1 or 2, got %d", settings.MQTT.QoS))
		}
	}
	if settings.EventLog.Enabled && settings.EventLog.Path == "" {
		ve.Errors = append(ve.Errors, "eventlog.path is required when the event log is enabled")
	}

	if len(ve.Errors) > 0 {
		return errors.New(fmt.Errorf("%w: %w", audiocore.ErrConfiguration, ve)).
			Component("conf").
			Category(errors.CategoryValidation).
			Context("error_count", len(ve.Errors)).
			Build()
	}
	return nil
}

func validateAudioSettings(a *AudioSettings, ve *ValidationError) {
	if a.SampleRate <= 0 {
		ve.Errors = append(ve.Errors, fmt.Sprintf("audio.sample_rate must be positive, got %d", a.SampleRate))
	}
	if a.BlockSize <= 0 {
		ve.Errors = append(ve.Errors, fmt.Sprintf("audio.block_size must be positive, got %d", a.BlockSize))
	}
	if a.ChannelCount <= 0 {
		ve.Errors = append(ve.Errors, fmt.Sprintf("audio.channel_count must be positive, got %d", a.ChannelCount))
	}
	if a.BufferBlocks < 0 {
		ve.Errors = append(ve.Errors, fmt.Sprintf("audio.buffer_blocks must not be negative, got %d", a.BufferBlocks))
	}
}

func validateTriggerSettings(t *TriggerSettings, channelCount int, ve *ValidationError) {
	if _, err := detection.New(t.Mode); err != nil {
		ve.Errors = append(ve.Errors, fmt.Sprintf("trigger.mode: %s", trimConfigPrefix(err)))
	}
	if t.Threshold <= 0 || t.Threshold > 1 {
		ve.Errors = append(ve.Errors, fmt.Sprintf("trigger.threshold must be positive and at most 1, got %g", t.Threshold))
	}
	if t.PreEventDuration <= 0 {
		ve.Errors = append(ve.Errors, fmt.Sprintf("trigger.preevent_duration must be positive, got %g", t.PreEventDuration))
	}
	if t.PostEventDuration <= 0 {
		ve.Errors = append(ve.Errors, fmt.Sprintf("trigger.postevent_duration must be positive, got %g", t.PostEventDuration))
	}
	if channelCount > 0 {
		if err := detection.ValidateChannels(t.MonitorChannels, channelCount); err != nil {
			ve.Errors = append(ve.Errors, fmt.Sprintf("trigger.monitor_channels: %s", trimConfigPrefix(err)))
		}
	}
}

func validateOutputSettings(o *OutputSettings, ve *ValidationError) {
	if o.Path == "" {
		ve.Errors = append(ve.Errors, "output.path is required")
	}
	if strings.ContainsAny(o.FilePrefix, `/\`) || strings.Contains(o.FilePrefix, "..") {
		ve.Errors = append(ve.Errors, fmt.Sprintf("output.file_prefix %q must not contain path separators", o.FilePrefix))
	}
	switch o.BitDepth {
	case 16, 24, 32:
	default:
		ve.Errors = append(ve.Errors, fmt.Sprintf("output.bit_depth must be 16, 24 or 32, got %d", o.BitDepth))
	}
	if o.MaxDiskUsage < 0 || o.MaxDiskUsage >= 100 {
		ve.Errors = append(ve.Errors, fmt.Sprintf("output.max_disk_usage must be between 0 and 100, got %g", o.MaxDiskUsage))
	}
	if o.FlushQueue <= 0 {
		ve.Errors = append(ve.Errors, fmt.Sprintf("output.flush_queue must be positive, got %d", o.FlushQueue))
	}
}

func trimConfigPrefix(err error) string {
	return strings.TrimPrefix(err.Error(), audiocore.ErrConfiguration.Error()+": ")
}
