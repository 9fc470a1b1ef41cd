package monitor

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/eventrec/internal/analysis"
	"github.com/tphakala/eventrec/internal/conf"
)

// Command creates the command that records events from the capture device.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Record threshold events from the audio device",
		Long: `Capture the configured device and write a recording for every threshold
crossing on the monitored channels. Audio is not recorded during the cooldown
that follows each recording. Stop with Ctrl+C; an event in progress is
written before exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.Monitor(cmd.Context(), settings)
		},
	}

	// Set up flags specific to the 'monitor' command
	if err := setupFlags(cmd); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the monitor command.
func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().Bool("metrics", viper.GetBool("observability.enabled"), "Serve Prometheus metrics and recorder status")
	cmd.Flags().String("listen", viper.GetString("observability.listen"), "Listen address of the metrics endpoint")
	cmd.Flags().Float64("max-disk-usage", viper.GetFloat64("output.max_disk_usage"), "Refuse writes above this disk usage percentage, 0 disables")

	for flag, key := range map[string]string{
		"metrics":        "observability.enabled",
		"listen":         "observability.listen",
		"max-disk-usage": "output.max_disk_usage",
	} {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}
