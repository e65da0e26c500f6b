package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/smazurov/camhal/pkg/hal"
	"github.com/spf13/cobra"
)

// CreateInfoCmd creates the info command.
func CreateInfoCmd(env func() Env) *cobra.Command {
	return &cobra.Command{
		Use:   "info <address>",
		Short: "Show the modes and controls of a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dev, err := env().Open(args[0])
			if err != nil {
				return err
			}
			defer dev.Close()
			return printInfo(cmd.OutOrStdout(), args[0], dev)
		},
	}
}

func printInfo(out io.Writer, address string, dev hal.Device) error {
	streams, err := dev.QueryStreams()
	if err != nil {
		return err
	}
	controls, err := dev.QueryControls()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Device %s\n\nStreams:\n", address)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "  FORMAT\tSIZE\tFPS")
	for _, d := range streams {
		fmt.Fprintf(w, "  %s\t%dx%d\t%s\n", d.Format, d.Width, d.Height, rates(d.Intervals))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out, "\nControls:")
	w = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tNAME\tKIND\tRANGE\tDEFAULT\tVALUE\tFLAGS")
	for _, c := range controls {
		value := "-"
		if c.Kind != hal.ControlButton && c.Flags&hal.FlagWriteOnly == 0 {
			if v, err := dev.Control(c.ID); err == nil {
				value = v.String()
			}
		}
		fmt.Fprintf(w, "  0x%08x\t%s\t%s\t%s\t%d\t%s\t%s\n",
			c.ID, c.Name, c.Kind, controlRange(c), c.Default, value, c.Flags)
	}
	return w.Flush()
}

func rates(intervals []time.Duration) string {
	parts := make([]string, 0, len(intervals))
	for _, iv := range intervals {
		if iv > 0 {
			parts = append(parts, fmt.Sprintf("%.4g", float64(time.Second)/float64(iv)))
		}
	}
	return strings.Join(parts, ",")
}

func controlRange(c hal.Control) string {
	switch c.Kind {
	case hal.ControlInteger:
		return fmt.Sprintf("%d..%d/%d", c.Min, c.Max, c.Step)
	case hal.ControlMenu:
		items := make([]string, len(c.Menu))
		for i, m := range c.Menu {
			items[i] = fmt.Sprintf("%d=%s", m.Index, m.Name)
		}
		return strings.Join(items, " ")
	default:
		return "-"
	}
}
