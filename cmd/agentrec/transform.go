package main

import (
	"github.com/spf13/cobra"

	"pkt.systems/agentrec/internal/format"
	"pkt.systems/agentrec/schema"
)

// autoThreshold is the --remove-silence value used when no threshold is given.
const autoThreshold = "auto"

func newTransformCmd(cfgPath *string) *cobra.Command {
	var (
		silence string
		speed   string
		output  string
	)
	cmd := &cobra.Command{
		Use:   "transform <file>",
		Short: "Cap idle gaps and/or rescale time in a recording",
		Long: `Cap idle gaps and/or rescale time in a recording.

--remove-silence without a value uses the header idle_time_limit, then the
configured default threshold. The file is rewritten in place unless -o is set.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := schema.TransformRequest{Path: args[0], Output: output}
			if cmd.Flags().Changed("remove-silence") {
				req.RemoveSilence = true
				if silence != autoThreshold {
					v, err := parseNumber("threshold", silence)
					if err != nil {
						return err
					}
					req.Threshold = &v
				}
			}
			if cmd.Flags().Changed("speed") {
				v, err := parseNumber("speed", speed)
				if err != nil {
					return err
				}
				req.Speed = &v
			}
			svc, err := newService(*cfgPath)
			if err != nil {
				return err
			}
			resp, err := svc.Transform(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeLines(cmd.OutOrStdout(), format.NewPlainRenderer().FormatTransform(resp))
		},
	}
	cmd.Flags().StringVar(&silence, "remove-silence", "", "cap gaps longer than SECONDS (bare flag resolves the threshold)")
	cmd.Flags().Lookup("remove-silence").NoOptDefVal = autoThreshold
	cmd.Flags().StringVar(&speed, "speed", "", "divide every delay by FACTOR")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the result here instead of in place")
	return cmd
}
