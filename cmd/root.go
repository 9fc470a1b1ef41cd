// Package cmd assembles the eventrec command line.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/eventrec/cmd/config"
	"github.com/tphakala/eventrec/cmd/devices"
	"github.com/tphakala/eventrec/cmd/events"
	"github.com/tphakala/eventrec/cmd/monitor"
	"github.com/tphakala/eventrec/cmd/replay"
	"github.com/tphakala/eventrec/internal/buildinfo"
	"github.com/tphakala/eventrec/internal/conf"
	"github.com/tphakala/eventrec/internal/logging"
	"github.com/tphakala/eventrec/internal/telemetry"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "eventrec",
		Short: "Threshold-triggered multichannel audio recorder",
		Long: `eventrec continuously captures a multichannel audio device and writes a WAV
file whenever a monitored channel crosses the level threshold. Each recording
holds the audio from before the crossing (pre-event) and after it (post-event).`,
		SilenceUsage: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, settings); err != nil {
		fmt.Fprintf(os.Stderr, "error setting up flags: %v\n", err)
		os.Exit(1)
	}

	versionCmd := versionCommand(info)
	configCmd := config.Command(settings)

	rootCmd.AddCommand(
		monitor.Command(settings),
		replay.Command(settings),
		devices.Command(settings),
		events.Command(settings),
		configCmd,
		versionCmd,
	)

	var closeLog func() error
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Sync the settings with viper so command line flags take precedence
		if err := conf.Sync(settings); err != nil {
			return err
		}

		var err error
		if closeLog, err = initLogging(settings); err != nil {
			return err
		}

		// The version and config commands work without a valid configuration
		if cmd == versionCmd || slices.Contains(configCmd.Commands(), cmd) {
			return nil
		}

		if err := conf.ValidateSettings(settings); err != nil {
			return err
		}
		return telemetry.Init(settings, info.GetVersion())
	}
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if closeLog != nil {
			return closeLog()
		}
		return nil
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	flags.String("host-api", viper.GetString("audio.host_api"), "Audio host API (auto, alsa, pulse, jack, wasapi, mme, dsound, coreaudio)")
	flags.String("device", viper.GetString("audio.device_name"), "Capture device name, ID or \"default\"")
	flags.Int("sample-rate", viper.GetInt("audio.sample_rate"), "Sample rate in Hz")
	flags.Int("block-size", viper.GetInt("audio.block_size"), "Frames per block")
	flags.Int("channel-count", viper.GetInt("audio.channel_count"), "Number of channels to open on the device")
	flags.String("mode", viper.GetString("trigger.mode"), "Trigger detector: peak or rms")
	flags.Float64P("threshold", "t", viper.GetFloat64("trigger.threshold"), "Trigger level in full-scale units, 0 < threshold <= 1")
	flags.String("channels", conf.FormatMonitorChannels(settings.Trigger.MonitorChannels), "Monitored channels, comma separated, 0-based")
	flags.Float64("preevent", viper.GetFloat64("trigger.preevent_duration"), "Seconds of audio kept before a trigger")
	flags.Float64("postevent", viper.GetFloat64("trigger.postevent_duration"), "Seconds of audio recorded after a trigger")
	flags.StringP("output", "o", viper.GetString("output.path"), "Directory for recordings")
	flags.String("prefix", viper.GetString("output.file_prefix"), "Recording file name prefix")

	bindings := map[string]string{
		"debug":         "debug",
		"host-api":      "audio.host_api",
		"device":        "audio.device_name",
		"sample-rate":   "audio.sample_rate",
		"block-size":    "audio.block_size",
		"channel-count": "audio.channel_count",
		"mode":          "trigger.mode",
		"threshold":     "trigger.threshold",
		"channels":      "trigger.monitor_channels",
		"preevent":      "trigger.preevent_duration",
		"postevent":     "trigger.postevent_duration",
		"output":        "output.path",
		"prefix":        "output.file_prefix",
	}
	for flag, key := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}

	return nil
}

// initLogging configures the console logger and the optional rotating file.
func initLogging(settings *conf.Settings) (func() error, error) {
	cfg := logging.Config{Level: slog.LevelInfo}
	if settings.Debug {
		cfg.Level = slog.LevelDebug
	}
	if settings.Main.Log.Enabled {
		cfg.FilePath = settings.Main.Log.Path
		cfg.MaxSizeMB = settings.Main.Log.MaxSize
		cfg.MaxBackups = settings.Main.Log.MaxBackups
		cfg.MaxAgeDays = settings.Main.Log.MaxAge
		cfg.Compress = settings.Main.Log.Compress
	}
	return logging.Init(cfg)
}

func versionCommand(info *buildinfo.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), info.String())
		},
	}
}
