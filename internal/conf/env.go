// conf/env.go environment variable bindings
package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/tphakala/eventrec/internal/logging"
)

// EnvPrefix prefixes every environment variable read by eventrec.
const EnvPrefix = "EVENTREC"

// envBinding maps a config key to its environment variable. Validate, when
// set, rejects malformed values before they reach viper.
type envBinding struct {
	ConfigKey string
	EnvVar    string
	Validate  func(string) error
}

func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "EVENTREC_DEBUG", validateBool},

		{"audio.host_api", "EVENTREC_HOST_API", nil},
		{"audio.device_name", "EVENTREC_DEVICE_NAME", nil},
		{"audio.sample_rate", "EVENTREC_SAMPLE_RATE", validatePositiveInt},
		{"audio.block_size", "EVENTREC_BLOCK_SIZE", validatePositiveInt},
		{"audio.channel_count", "EVENTREC_CHANNEL_COUNT", validatePositiveInt},

		{"trigger.mode", "EVENTREC_TRIGGER_MODE", nil},
		{"trigger.threshold", "EVENTREC_THRESHOLD", validatePositiveFloat},
		{"trigger.monitor_channels", "EVENTREC_MONITOR_CHANNELS", validateChannelList},
		{"trigger.preevent_duration", "EVENTREC_PREEVENT_DURATION", validatePositiveFloat},
		{"trigger.postevent_duration", "EVENTREC_POSTEVENT_DURATION", validatePositiveFloat},

		{"output.path", "EVENTREC_OUTPUT_PATH", nil},
		{"output.file_prefix", "EVENTREC_FILE_PREFIX", nil},

		{"sentry.enabled", "EVENTREC_SENTRY_ENABLED", validateBool},
		{"sentry.dsn", "EVENTREC_SENTRY_DSN", nil},

		{"mqtt.enabled", "EVENTREC_MQTT_ENABLED", validateBool},
		{"mqtt.broker", "EVENTREC_MQTT_BROKER", validateBrokerURL},
		{"mqtt.username", "EVENTREC_MQTT_USERNAME", nil},
		{"mqtt.password", "EVENTREC_MQTT_PASSWORD", nil},
	}
}

// bindEnvVars binds every known environment variable. Variables holding
// invalid values are skipped with a warning so the config file value stays
// in effect.
func bindEnvVars() error {
	var warnings []string
	for _, b := range getEnvBindings() {
		if value, ok := os.LookupEnv(b.EnvVar); ok && b.Validate != nil {
			if err := b.Validate(value); err != nil {
				warnings = append(warnings, fmt.Sprintf("%s: %v", b.EnvVar, err))
				continue
			}
		}
		if err := viper.BindEnv(b.ConfigKey, b.EnvVar); err != nil {
			return fmt.Errorf("failed to bind %s: %w", b.EnvVar, err)
		}
	}

	if len(warnings) > 0 {
		logger := logging.ForService("conf")
		for _, w := range warnings {
			logger.Warn("ignoring invalid environment variable", "detail", w)
		}
	}
	return nil
}

func validateBool(s string) error {
	if _, err := strconv.ParseBool(s); err != nil {
		return fmt.Errorf("expected true or false, got %q", s)
	}
	return nil
}

func validatePositiveInt(s string) error {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("expected an integer, got %q", s)
	}
	if v <= 0 {
		return fmt.Errorf("must be positive, got %d", v)
	}
	return nil
}

func validatePositiveFloat(s string) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("expected a number, got %q", s)
	}
	if v <= 0 {
		return fmt.Errorf("must be positive, got %g", v)
	}
	return nil
}

func validateChannelList(s string) error {
	_, err := ParseMonitorChannels(s)
	return err
}

func validateBrokerURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid broker URL: %w", err)
	}
	switch u.Scheme {
	case "tcp", "ssl", "tls", "mqtt", "mqtts", "ws", "wss":
	default:
		return fmt.Errorf("unsupported broker scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("broker URL %q has no host", s)
	}
	return nil
}
