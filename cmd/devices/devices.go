package devices

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/eventrec/internal/audiocore/sources/malgo"
	"github.com/tphakala/eventrec/internal/conf"
)

// Command creates the command that lists capture devices.
func Command(settings *conf.Settings) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List audio capture devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			apis := []string{settings.Audio.HostAPI}
			if all {
				apis = malgo.SupportedHostAPIs()
			}

			out := cmd.OutOrStdout()
			for _, api := range apis {
				devices, err := malgo.ListDevices(api)
				if err != nil {
					if all {
						fmt.Fprintf(out, "%s: unavailable (%v)\n", api, err)
						continue
					}
					return err
				}
				fmt.Fprintf(out, "%s:\n%s\n", api, malgo.FormatDeviceList(devices))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "List devices of every supported host API")

	return cmd
}
