package main

import (
	"github.com/spf13/cobra"

	"pkt.systems/agentrec/internal/format"
	"pkt.systems/agentrec/schema"
)

func newMarkerCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "marker",
		Short: "Add or list chapter markers",
	}
	cmd.AddCommand(newMarkerAddCmd(cfgPath))
	cmd.AddCommand(newMarkerListCmd(cfgPath))
	return cmd
}

func newMarkerAddCmd(cfgPath *string) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "add <file> <time> <label>",
		Short: "Insert a marker at an absolute time",
		Args:  usageArgs(cobra.ExactArgs(3)),
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := parseTimestamp(args[1])
			if err != nil {
				return err
			}
			svc, err := newService(*cfgPath)
			if err != nil {
				return err
			}
			resp, err := svc.AddMarker(cmd.Context(), schema.AddMarkerRequest{
				Path:   args[0],
				Time:   at,
				Label:  args[2],
				Output: output,
			})
			if err != nil {
				return err
			}
			return writeLines(cmd.OutOrStdout(), format.NewPlainRenderer().FormatAddMarker(resp))
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the result here instead of in place")
	return cmd
}

func newMarkerListCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:     "list <file>",
		Aliases: []string{"ls"},
		Short:   "List markers in time order",
		Args:    usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService(*cfgPath)
			if err != nil {
				return err
			}
			resp, err := svc.ListMarkers(cmd.Context(), schema.ListMarkersRequest{Path: args[0]})
			if err != nil {
				return err
			}
			return writeLines(cmd.OutOrStdout(), format.NewPlainRenderer().FormatMarkers(resp.Markers))
		},
	}
}
