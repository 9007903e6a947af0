package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/semweave/semweave/internal/matrix"
)

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <matrix-file>",
		Short:         "Print a matrix summary",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := matrix.Load(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load matrix", err)
			}

			f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if rootOpts.Format == "json" {
				return f.Success(m)
			}
			return f.Success(formatSummary(m))
		},
	}
}

func formatSummary(m *matrix.Matrix) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Matrix %s (%s)\n", m.Name, m.ID)
	fmt.Fprintf(&b, "Station: %s\n", m.Station)
	fmt.Fprintf(&b, "Shape: %dx%d, %d cells\n", m.Shape.Rows(), m.Shape.Cols(), len(m.Cells))
	fmt.Fprintf(&b, "Hash: %s\n", m.Hash)
	for _, row := range m.Values() {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = truncate(v, 32)
		}
		fmt.Fprintf(&b, "  %s\n", strings.Join(cells, " | "))
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
