// conf/defaults.go default values for settings
package conf

import (
	"runtime"

	"github.com/spf13/viper"
)

// Recognized defaults for the recorder core.
const (
	DefaultFilePrefix        = "multichannel_"
	DefaultPreEventDuration  = 3.0
	DefaultPostEventDuration = 9.0
	DefaultSampleRate        = 192000
	DefaultBlockSize         = 2048
	DefaultThreshold         = 0.1
	DefaultChannelCount      = 16
	DefaultDeviceName        = "default"
)

// DefaultMonitorChannels returns the default monitored channels.
func DefaultMonitorChannels() []int {
	return []int{8, 10}
}

// DefaultHostAPI is MME on Windows; elsewhere miniaudio picks the backend.
func DefaultHostAPI() string {
	if runtime.GOOS == "windows" {
		return "MME"
	}
	return "auto"
}

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.log.enabled", false)
	viper.SetDefault("main.log.path", "logs/eventrec.log")
	viper.SetDefault("main.log.max_size", 100)
	viper.SetDefault("main.log.max_backups", 3)
	viper.SetDefault("main.log.max_age", 28)
	viper.SetDefault("main.log.compress", false)

	viper.SetDefault("audio.host_api", DefaultHostAPI())
	viper.SetDefault("audio.device_name", DefaultDeviceName)
	viper.SetDefault("audio.sample_rate", DefaultSampleRate)
	viper.SetDefault("audio.block_size", DefaultBlockSize)
	viper.SetDefault("audio.channel_count", DefaultChannelCount)
	viper.SetDefault("audio.buffer_blocks", 32)

	viper.SetDefault("trigger.mode", "peak")
	viper.SetDefault("trigger.threshold", DefaultThreshold)
	viper.SetDefault("trigger.monitor_channels", DefaultMonitorChannels())
	viper.SetDefault("trigger.preevent_duration", DefaultPreEventDuration)
	viper.SetDefault("trigger.postevent_duration", DefaultPostEventDuration)

	viper.SetDefault("output.path", ".")
	viper.SetDefault("output.file_prefix", DefaultFilePrefix)
	viper.SetDefault("output.bit_depth", 16)
	viper.SetDefault("output.max_disk_usage", 0.0)
	viper.SetDefault("output.flush_queue", 4)

	viper.SetDefault("observability.enabled", false)
	viper.SetDefault("observability.listen", "127.0.0.1:8090")

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
	viper.SetDefault("sentry.environment", "production")
	viper.SetDefault("sentry.debug", false)

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topic", "eventrec/recordings")
	viper.SetDefault("mqtt.client_id", "")
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.retain", false)
	viper.SetDefault("mqtt.qos", 0)

	viper.SetDefault("eventlog.enabled", false)
	viper.SetDefault("eventlog.path", "eventrec.db")
}
