package cli

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/semweave/semweave/internal/matrix"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	To     string
	Output string
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export <matrix-file>",
		Short: "Convert a matrix file to another format",
		Long: `Convert a matrix JSON file to CSV (the value grid, row per line) or
re-emit it as normalized JSON with cells in position order.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := matrix.Load(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load matrix", err)
			}

			out := cmd.OutOrStdout()
			if opts.Output != "" {
				file, err := os.Create(opts.Output)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to create output file", err)
				}
				defer file.Close()
				out = file
			}

			switch opts.To {
			case "csv":
				w := csv.NewWriter(out)
				for _, row := range m.Values() {
					if err := w.Write(row); err != nil {
						return WrapExitError(ExitFailure, "csv write failed", err)
					}
				}
				w.Flush()
				return w.Error()
			case "json":
				data, err := matrix.Encode(m)
				if err != nil {
					return WrapExitError(ExitFailure, "encode failed", err)
				}
				_, err = out.Write(data)
				return err
			}
			return fmt.Errorf("unknown export format %q (want csv or json)", opts.To)
		},
	}

	cmd.Flags().StringVar(&opts.To, "to", "csv", "target format (csv|json)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (default stdout)")

	return cmd
}
