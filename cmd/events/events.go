package events

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/eventrec/internal/conf"
	"github.com/tphakala/eventrec/internal/datastore"
)

// Command creates the command that lists logged recordings.
func Command(settings *conf.Settings) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List recordings from the event log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := datastore.Open(settings.EventLog.Path, settings.Debug)
			if err != nil {
				return err
			}
			defer store.Close()

			events, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(events) == 0 {
				fmt.Fprintf(out, "no events in %s\n", settings.EventLog.Path)
				return nil
			}
			for i := range events {
				e := &events[i]
				fmt.Fprintf(out, "%s  ch %-8s %6.1fs  %s\n",
					e.EventTime.Local().Format(time.DateTime),
					e.TriggeredChannels,
					e.DurationSeconds,
					e.File)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of events to list, 0 for all")

	return cmd
}
