package replay

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/eventrec/internal/analysis"
	"github.com/tphakala/eventrec/internal/conf"
)

// Command creates the command that runs the recorder over an audio file.
func Command(settings *conf.Settings) *cobra.Command {
	var start string

	cmd := &cobra.Command{
		Use:   "replay [input.wav|input.flac]",
		Short: "Run the recorder over an audio file",
		Long: `Replay a WAV or FLAC file through the trigger pipeline to tune thresholds
offline. The file's own sample rate and channel count are used; recordings
are named from the replayed timeline starting at --start.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			startTime, err := parseStart(start)
			if err != nil {
				return err
			}
			return analysis.Replay(cmd.Context(), settings, args[0], startTime)
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "Timeline start as RFC 3339, defaults to now")

	return cmd
}

func parseStart(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --start %q, expected RFC 3339 such as 2024-05-17T06:00:00Z: %w", s, err)
	}
	return t, nil
}
