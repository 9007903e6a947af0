package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/semweave/semweave/internal/ledger"
	"github.com/semweave/semweave/internal/store"
)

// LineageOptions holds flags for the lineage command.
type LineageOptions struct {
	*RootOptions
	Database string
	Depth    int
}

// NewLineageCommand creates the lineage command.
func NewLineageCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LineageOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "lineage <entity-id>",
		Short: "Trace the ancestry of an archived matrix",
		Long: `Trace an entity's sources through the archived operation records.
Depth 1 shows immediate sources only; higher depths expand recursively.

Example:
  semweave lineage --db runs.db 'cf14:ab12cd34ef56:D:v1' --depth 2`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(opts.Database)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open archive", err)
			}
			defer st.Close()

			node, err := st.Lineage(cmd.Context(), args[0], opts.Depth)
			if err != nil {
				return WrapExitError(ExitFailure, "lineage query failed", err)
			}

			f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
			if opts.Format == "json" {
				return f.Success(node)
			}
			return f.Success(renderLineage(node, 0))
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite archive (required)")
	cmd.Flags().IntVar(&opts.Depth, "depth", 1, "levels of ancestry to expand")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func renderLineage(node *ledger.LineageNode, indent int) string {
	var b strings.Builder
	pad := strings.Repeat("  ", indent)
	if !node.Known {
		fmt.Fprintf(&b, "%s%s (no lineage)", pad, node.ID)
		return b.String()
	}
	fmt.Fprintf(&b, "%s%s  <- %s", pad, node.ID, node.Operation)
	for _, src := range node.Sources {
		b.WriteString("\n")
		b.WriteString(renderLineage(src, indent+1))
	}
	return b.String()
}
