package cmd

import (
	"fmt"
	"strconv"

	"github.com/smazurov/camhal/internal/capture"
	"github.com/smazurov/camhal/pkg/hal"
	"github.com/spf13/cobra"
)

// CreateControlCmd creates the control command with get and set
// subcommands.
func CreateControlCmd(env func() Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "control",
		Short: "Read or write device controls",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <address> <id>",
		Short: "Read a control",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseControlID(args[1])
			if err != nil {
				return err
			}
			dev, err := env().Open(args[0])
			if err != nil {
				return err
			}
			defer dev.Close()

			v, err := dev.Control(id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <address> <id> <value>",
		Short: "Write a control",
		Long:  `Writes an integer value. Booleans take 0 or 1 and menus take the item index.`,
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseControlID(args[1])
			if err != nil {
				return err
			}
			raw, err := parseControlValue(args[2])
			if err != nil {
				return err
			}

			mgr := capture.NewManager(env().Open, capture.Options{})
			v, err := mgr.SetControl(args[0], id, raw)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	})

	return cmd
}

func parseControlValue(s string) (int64, error) {
	switch s {
	case "true", "on":
		return 1, nil
	case "false", "off":
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: control value %q", hal.ErrInvalidInput, s)
	}
	return n, nil
}
