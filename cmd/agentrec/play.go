package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pkt.systems/agentrec/internal/format"
	"pkt.systems/agentrec/schema"
)

func newPlayCmd(cfgPath *string) *cobra.Command {
	var speed float64
	cmd := &cobra.Command{
		Use:   "play <file>",
		Short: "Replay a recording in the terminal",
		Long: `Replay a recording in the terminal.

Keys: space pause, +/- speed, ]/[ next/previous marker, right/left seek,
. step while paused, 0 or Home restart, q or Esc quit.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService(*cfgPath)
			if err != nil {
				return err
			}
			resp, err := svc.Play(cmd.Context(), schema.PlayRequest{Path: args[0], Speed: speed})
			if err != nil {
				return err
			}
			if resp.Finished {
				return nil
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "stopped at %s / %s\n", format.Clock(resp.Position), format.Clock(resp.Duration))
			return err
		},
	}
	cmd.Flags().Float64VarP(&speed, "speed", "s", 0, "initial playback speed (default from config)")
	return cmd
}
