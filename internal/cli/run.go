package cli

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/semweave/semweave/internal/ident"
	"github.com/semweave/semweave/internal/ledger"
	"github.com/semweave/semweave/internal/matrix"
	"github.com/semweave/semweave/internal/station"
	"github.com/semweave/semweave/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Thread   string
	PathA    string
	PathB    string
	OutDir   string
	Config   string
	Database string
	Confirm  bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the S1-S2-S3 pipeline on two seed matrices",
		Long: `Run the full pipeline: S1 validates seed matrices A and B, S2 composes
C = A * B, and S3 synthesizes J, F, and D. Outputs and the provenance
ledger are written to the output directory, and optionally archived to a
SQLite database.

Example:
  semweave run --A fixtures/A.json --B fixtures/B.json --out ./out
  semweave run --A A.json --B B.json --thread demo:run --db runs.db --confirm`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Thread, "thread", "", "thread seed (default: random run token)")
	cmd.Flags().StringVar(&opts.PathA, "A", "", "path to matrix A JSON file (required)")
	cmd.Flags().StringVar(&opts.PathB, "B", "", "path to matrix B JSON file (required)")
	cmd.Flags().StringVar(&opts.OutDir, "out", "output", "output directory")
	cmd.Flags().StringVar(&opts.Config, "config", "", "path to YAML config")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite archive (optional)")
	cmd.Flags().BoolVar(&opts.Confirm, "confirm", false, "pause for confirmation before each station")
	_ = cmd.MarkFlagRequired("A")
	_ = cmd.MarkFlagRequired("B")

	return cmd
}

func runPipeline(opts *RunOptions, cmd *cobra.Command) error {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))

	cfg, err := LoadConfig(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	resolver, err := cfg.BuildResolver()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build resolver", err)
	}

	seed := opts.Thread
	if seed == "" {
		seed = uuid.NewString()
		slog.Info("no thread seed given, generated run token", "token", seed)
	}
	thread := ident.ThreadID(seed)
	slog.Info("thread resolved", "thread", thread)

	a, err := matrix.Load(opts.PathA)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load matrix A", err)
	}
	b, err := matrix.Load(opts.PathB)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load matrix B", err)
	}
	slog.Info("seed matrices loaded",
		"A", fmt.Sprintf("%dx%d", a.Shape.Rows(), a.Shape.Cols()),
		"B", fmt.Sprintf("%dx%d", b.Shape.Rows(), b.Shape.Cols()))

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, cancelling run", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	var confirm station.ConfirmFunc
	if opts.Confirm {
		confirm = stdinConfirm(cmd)
	}

	led := ledger.New()
	runner := station.NewRunner(thread, resolver, led, confirm)

	slog.Info("pipeline starting", "resolver", resolver.Descriptor().Name)
	results, err := runner.Run(ctx, a, b)
	if err != nil {
		return WrapExitError(ExitFailure, "pipeline failed", err)
	}
	slog.Info("pipeline complete", "matrices", len(results), "operations", len(led.Records()))

	if err := writeResults(opts.OutDir, results); err != nil {
		return WrapExitError(ExitCommandError, "failed to write results", err)
	}

	// A completed run is never rolled back by archive trouble.
	if opts.Database != "" {
		if err := archiveRun(ctx, opts.Database, thread, results, led); err != nil {
			slog.Error("archive failed, run results are intact", "error", err)
		}
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		return f.Success(map[string]any{
			"thread":     thread,
			"matrices":   matrixIndex(results),
			"operations": len(led.Records()),
			"output_dir": opts.OutDir,
		})
	}
	return f.Success(runSummary(thread, results, led))
}

func archiveRun(ctx context.Context, path, thread string, results station.Matrices, led *ledger.Ledger) error {
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing archive", "error", closeErr)
		}
	}()
	return st.ArchiveRun(ctx, thread, results, led)
}

func writeResults(dir string, results station.Matrices) error {
	for name, m := range results {
		if err := matrix.Save(m, filepath.Join(dir, "matrix_"+name+".json")); err != nil {
			return err
		}
	}
	return nil
}

func matrixIndex(results station.Matrices) map[string]string {
	idx := make(map[string]string, len(results))
	for name, m := range results {
		idx[name] = m.ID
	}
	return idx
}

func runSummary(thread string, results station.Matrices, led *ledger.Ledger) string {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "thread %s\n", thread)
	for _, name := range names {
		m := results[name]
		fmt.Fprintf(&b, "  %s: %dx%d  hash=%s\n", name, m.Shape.Rows(), m.Shape.Cols(), m.Hash)
	}
	fmt.Fprintf(&b, "%d operation(s) recorded", len(led.Records()))
	return b.String()
}

// stdinConfirm builds the interactive confirmation gate: print the stage
// summary, block for a y/N answer.
func stdinConfirm(cmd *cobra.Command) station.ConfirmFunc {
	reader := bufio.NewReader(cmd.InOrStdin())
	return func(summary string) (bool, error) {
		fmt.Fprintf(cmd.OutOrStdout(), "\n%s\nContinue? [y/N]: ", summary)
		line, err := reader.ReadString('\n')
		if err != nil {
			return false, err
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes", nil
	}
}
