package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/ayusman/airchord/internal/synth"
)

func newPortsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "midi-ports",
		Short: "List MIDI output ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := root.load()
			if err != nil {
				return err
			}

			drv, err := rtmididrv.New()
			if err != nil {
				return fmt.Errorf("open MIDI driver: %w", err)
			}
			defer drv.Close()

			outs, err := drv.Outs()
			if err != nil {
				return fmt.Errorf("list MIDI outputs: %w", err)
			}

			selected, _ := synth.SelectPort(outs, cfg.Synth.MIDIPort)
			for _, name := range synth.PortNames(outs) {
				marker := " "
				if selected != nil && selected.String() == name {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, name)
			}
			if len(outs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no MIDI output ports")
			}
			return nil
		},
	}
}
