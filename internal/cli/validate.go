package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/semweave/semweave/internal/matrix"
	"github.com/semweave/semweave/internal/validate"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>...",
		Short: "Validate matrix files",
		Long: `Validate one or more matrix JSON files: schema conformance, hash
integrity, and structural invariants (shape bounds, duplicate positions,
cell fields).`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}

			type fileResult struct {
				File   string   `json:"file"`
				ID     string   `json:"id,omitempty"`
				Issues []string `json:"issues,omitempty"`
			}

			failed := false
			results := make([]fileResult, 0, len(args))
			for _, path := range args {
				res := fileResult{File: path}
				m, err := matrix.Load(path)
				if err != nil {
					res.Issues = []string{err.Error()}
					failed = true
				} else {
					res.ID = m.ID
					res.Issues = validate.Matrix(m)
					if len(res.Issues) > 0 {
						failed = true
					}
				}
				results = append(results, res)
			}

			if rootOpts.Format == "json" {
				if err := f.Success(results); err != nil {
					return err
				}
			} else {
				for _, res := range results {
					if len(res.Issues) == 0 {
						fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%s)\n", res.File, res.ID)
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %d issue(s)\n", res.File, len(res.Issues))
					for _, issue := range res.Issues {
						fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", issue)
					}
				}
			}

			if failed {
				return &ExitError{Code: ExitFailure, Message: "validation failed"}
			}
			return nil
		},
	}
}
