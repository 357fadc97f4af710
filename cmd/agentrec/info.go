package main

import (
	"github.com/spf13/cobra"

	"pkt.systems/agentrec/internal/format"
	"pkt.systems/agentrec/schema"
	"pkt.systems/pslog"
)

func newInfoCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "info <file>",
		Short: "Summarise a recording",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService(*cfgPath)
			if err != nil {
				return err
			}
			resp, err := svc.Info(cmd.Context(), schema.InfoRequest{Path: args[0]})
			if err != nil {
				return err
			}
			return writeLines(cmd.OutOrStdout(), format.NewPlainRenderer().FormatInfo(resp))
		},
	}
}

func newCatCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cat <file>",
		Short: "Write the raw terminal output of a recording to stdout",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService(*cfgPath)
			if err != nil {
				return err
			}
			resp, err := svc.Cat(cmd.Context(), schema.CatRequest{Path: args[0]}, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			pslog.Ctx(cmd.Context()).Debug("cat complete", "events", resp.Events, "bytes", resp.Bytes)
			return nil
		},
	}
}
