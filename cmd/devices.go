package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// CreateDevicesCmd creates the devices command.
func CreateDevicesCmd(env func() Env) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List capture devices",
		Long:  `Lists the capture devices of every compiled-in backend with the address to open them by.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			infos, err := env().List()
			if err != nil {
				return err
			}
			if len(infos) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No capture devices found")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ADDRESS\tNAME\tBACKEND\tID")
			for _, info := range infos {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", info.Address, info.Name, info.Backend, info.ID)
			}
			return w.Flush()
		},
	}
}
