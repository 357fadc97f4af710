package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pkt.systems/agentrec/internal/version"
)

func newVersionCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			b := version.Read()
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", b.Module, b.Version); err != nil {
				return err
			}
			if !verbose {
				return nil
			}
			dirty := ""
			if b.Modified {
				dirty = " (modified)"
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "go %s\nrevision %s%s\n", b.GoVersion, b.Revision, dirty)
			return err
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "include toolchain and VCS details")
	return cmd
}
