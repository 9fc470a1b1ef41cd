// Package conf loads and validates eventrec settings.
//
// Settings come from, in increasing precedence: built-in defaults, the YAML
// config file, EVENTREC_* environment variables and command line flags.
package conf

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/tphakala/eventrec/internal/errors"
)

//go:embed config.yaml
var defaultConfigYAML string

// Settings holds the complete configuration.
type Settings struct {
	Debug bool `mapstructure:"debug" yaml:"debug"`

	Main struct {
		Log LogConfig `mapstructure:"log" yaml:"log"`
	} `mapstructure:"main" yaml:"main"`

	Audio         AudioSettings         `mapstructure:"audio" yaml:"audio"`
	Trigger       TriggerSettings       `mapstructure:"trigger" yaml:"trigger"`
	Output        OutputSettings        `mapstructure:"output" yaml:"output"`
	Observability ObservabilitySettings `mapstructure:"observability" yaml:"observability"`
	Sentry        SentrySettings        `mapstructure:"sentry" yaml:"sentry"`
	MQTT          MQTTSettings          `mapstructure:"mqtt" yaml:"mqtt"`
	EventLog      EventLogSettings      `mapstructure:"eventlog" yaml:"eventlog"`
}

// LogConfig controls the rotating JSON log file.
type LogConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Path       string `mapstructure:"path" yaml:"path"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`       // megabytes
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"` // rotated files kept
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`         // days
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// AudioSettings selects and shapes the capture stream.
type AudioSettings struct {
	HostAPI      string `mapstructure:"host_api" yaml:"host_api"`
	DeviceName   string `mapstructure:"device_name" yaml:"device_name"`
	SampleRate   int    `mapstructure:"sample_rate" yaml:"sample_rate"`
	BlockSize    int    `mapstructure:"block_size" yaml:"block_size"`
	ChannelCount int    `mapstructure:"channel_count" yaml:"channel_count"`
	BufferBlocks int    `mapstructure:"buffer_blocks" yaml:"buffer_blocks"` // callback jitter buffer depth
}

// TriggerSettings controls event detection.
type TriggerSettings struct {
	Mode              string  `mapstructure:"mode" yaml:"mode"` // peak or rms
	Threshold         float64 `mapstructure:"threshold" yaml:"threshold"`
	MonitorChannels   []int   `mapstructure:"monitor_channels" yaml:"monitor_channels"`
	PreEventDuration  float64 `mapstructure:"preevent_duration" yaml:"preevent_duration"`   // seconds
	PostEventDuration float64 `mapstructure:"postevent_duration" yaml:"postevent_duration"` // seconds
}

// PreEvent returns the pre-event duration.
func (t TriggerSettings) PreEvent() time.Duration {
	return secondsToDuration(t.PreEventDuration)
}

// PostEvent returns the post-event duration.
func (t TriggerSettings) PostEvent() time.Duration {
	return secondsToDuration(t.PostEventDuration)
}

// OutputSettings controls where and how recordings are written.
type OutputSettings struct {
	Path         string  `mapstructure:"path" yaml:"path"`
	FilePrefix   string  `mapstructure:"file_prefix" yaml:"file_prefix"`
	BitDepth     int     `mapstructure:"bit_depth" yaml:"bit_depth"`
	MaxDiskUsage float64 `mapstructure:"max_disk_usage" yaml:"max_disk_usage"` // percent, 0 disables the check
	FlushQueue   int     `mapstructure:"flush_queue" yaml:"flush_queue"`       // recordings waiting for the writer
}

// ObservabilitySettings controls the metrics and status endpoint.
type ObservabilitySettings struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
}

// SentrySettings controls error reporting.
type SentrySettings struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	DSN         string `mapstructure:"dsn" yaml:"dsn"`
	Environment string `mapstructure:"environment" yaml:"environment"`
	Debug       bool   `mapstructure:"debug" yaml:"debug"`
}

// MQTTSettings controls recording notifications.
type MQTTSettings struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Broker   string `mapstructure:"broker" yaml:"broker"`
	Topic    string `mapstructure:"topic" yaml:"topic"`
	ClientID string `mapstructure:"client_id" yaml:"client_id"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	Retain   bool   `mapstructure:"retain" yaml:"retain"`
	QoS      byte   `mapstructure:"qos" yaml:"qos"`
}

// EventLogSettings controls the SQLite event log.
type EventLogSettings struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// Load reads defaults, the config file and environment variables into a new
// Settings. Validation is left to ValidateSettings so that command line
// flags can be applied first.
func Load() (*Settings, error) {
	if err := initViper(); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "init_viper").
			Build()
	}
	if err := bindEnvVars(); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "bind_env").
			Build()
	}

	settings := &Settings{}
	if err := Sync(settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// Sync re-decodes the current viper state into settings, picking up values
// bound from command line flags.
func Sync(settings *Settings) error {
	*settings = Settings{}
	if err := viper.Unmarshal(settings, viper.DecodeHook(decodeHook())); err != nil {
		return errors.New(fmt.Errorf("error unmarshaling config into struct: %w", err)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal").
			Build()
	}
	return nil
}

// ConfigFileUsed returns the path of the loaded config file, empty when
// running on defaults.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}

func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		ChannelListHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// initViper registers defaults and reads the first config.yaml found. A
// missing config file is not an error; defaults apply.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}
	return nil
}

// GetDefaultConfigPaths returns the directories searched for config.yaml,
// most specific first.
func GetDefaultConfigPaths() ([]string, error) {
	paths := []string{"."}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("error fetching user home directory: %w", err)
	}
	paths = append(paths, filepath.Join(homeDir, ".config", "eventrec"))

	if os.PathSeparator == '/' {
		paths = append(paths, "/etc/eventrec")
	}
	return paths, nil
}

// DefaultConfigYAML returns the annotated default configuration file.
func DefaultConfigYAML() string {
	return defaultConfigYAML
}

// WriteDefaultConfig writes the default config file to path. An existing
// file is only replaced when overwrite is set.
func WriteDefaultConfig(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.Newf("config file %s already exists", path).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Build()
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigYAML), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}
	return nil
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
