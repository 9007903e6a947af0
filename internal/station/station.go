// Package station sequences the operation functions into the fixed
// three-stage pipeline: S1 formulation, S2 composition, S3 synthesis.
//
// The sequence is linear with no cycles and no skipping. A failing station
// aborts the whole run; there is no automatic retry across stations (all
// retry lives inside the resolver call boundary). Restarting means going
// back to S1 with corrected inputs.
package station

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/semweave/semweave/internal/ledger"
	"github.com/semweave/semweave/internal/matrix"
	"github.com/semweave/semweave/internal/ops"
	"github.com/semweave/semweave/internal/resolve"
	"github.com/semweave/semweave/internal/validate"
)

// ErrRunCancelled is returned when a confirmation gate declines a stage.
// Fatal for the run; a declined gate is a decision, not a bug.
var ErrRunCancelled = errors.New("run cancelled at confirmation gate")

// ConfirmFunc is the synchronous confirmation gate the driver supplies. It
// receives a human-readable stage summary and blocks until a decision is
// made. A nil gate means no confirmation.
type ConfirmFunc func(summary string) (bool, error)

// Descriptors declares each station's required input roles, produced output
// roles, and the operation kinds it performs, in order.
var Descriptors = map[matrix.StationType]matrix.Station{
	matrix.StationS1: {
		Type:    matrix.StationS1,
		Inputs:  []string{"A", "B"},
		Outputs: []string{"A", "B"},
	},
	matrix.StationS2: {
		Type:       matrix.StationS2,
		Inputs:     []string{"A", "B"},
		Outputs:    []string{"A", "B", "C"},
		Operations: []matrix.Kind{matrix.KindMultiply},
	},
	matrix.StationS3: {
		Type:       matrix.StationS3,
		Inputs:     []string{"C"},
		Outputs:    []string{"C", "J", "F", "D"},
		Operations: []matrix.Kind{matrix.KindInterpret, matrix.KindElementwise, matrix.KindAdd},
	},
}

// Matrices maps role tags (A, B, C, ...) to matrices as they flow between
// stations.
type Matrices map[string]*matrix.Matrix

// Runner executes stations for one pipeline run. It owns nothing but
// references: the ledger belongs to the driver, the resolver is shared
// read-only.
type Runner struct {
	thread   string
	resolver resolve.Resolver
	ledger   *ledger.Ledger
	confirm  ConfirmFunc
}

// NewRunner creates a station runner for one thread. confirm may be nil.
func NewRunner(thread string, r resolve.Resolver, l *ledger.Ledger, confirm ConfirmFunc) *Runner {
	return &Runner{thread: thread, resolver: r, ledger: l, confirm: confirm}
}

// Run executes S1 → S2 → S3 in order and returns the accumulated role map.
// Any stage failure aborts the run immediately.
func (r *Runner) Run(ctx context.Context, a, b *matrix.Matrix) (Matrices, error) {
	out, err := r.RunS1(ctx, Matrices{"A": a, "B": b})
	if err != nil {
		return nil, err
	}
	out, err = r.RunS2(ctx, out)
	if err != nil {
		return nil, err
	}
	return r.RunS3(ctx, out)
}

// RunS1 is the formulation stage: both seed matrices are validated and
// returned unchanged. No operation inputs exist yet.
func (r *Runner) RunS1(ctx context.Context, in Matrices) (Matrices, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a, b, err := require(matrix.StationS1, in)
	if err != nil {
		return nil, err
	}

	if err := validate.AsError("matrix A", validate.Matrix(a)); err != nil {
		return nil, fmt.Errorf("S1: %w", err)
	}
	if err := validate.AsError("matrix B", validate.Matrix(b)); err != nil {
		return nil, fmt.Errorf("S1: %w", err)
	}

	summary := fmt.Sprintf("S1 formulation\n  A: %dx%d (%d cells)\n  B: %dx%d (%d cells)",
		a.Shape.Rows(), a.Shape.Cols(), len(a.Cells),
		b.Shape.Rows(), b.Shape.Cols(), len(b.Cells))
	if err := r.gate(matrix.StationS1, summary); err != nil {
		return nil, err
	}

	r.ledger.TrackOperation("s1_load", nil, []string{a.ID, b.ID}, map[string]any{"station": "S1"})
	return Matrices{"A": a, "B": b}, nil
}

// RunS2 is the composition stage: C = A * B.
func (r *Runner) RunS2(ctx context.Context, in Matrices) (Matrices, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a, b, err := require(matrix.StationS2, in)
	if err != nil {
		return nil, err
	}

	if err := validate.EnsureDims(a, b, matrix.KindMultiply); err != nil {
		return nil, fmt.Errorf("S2: %w", err)
	}

	summary := fmt.Sprintf("S2 composition\n  C = A * B\n  %dx%d * %dx%d -> %dx%d",
		a.Shape.Rows(), a.Shape.Cols(), b.Shape.Rows(), b.Shape.Cols(),
		a.Shape.Rows(), b.Shape.Cols())
	if err := r.gate(matrix.StationS2, summary); err != nil {
		return nil, err
	}

	c, op, err := ops.Multiply(ctx, r.thread, a, b, r.resolver)
	if err != nil {
		return nil, fmt.Errorf("S2: %w", err)
	}
	r.ledger.Append(op, "S2", nil)

	return Matrices{"A": a, "B": b, "C": c}, nil
}

// RunS3 is the synthesis stage: J = interpret(C), F = J ⊙ C, and D = A + F
// when A is available, otherwise a degraded single-input derivation of D
// from C alone.
func (r *Runner) RunS3(ctx context.Context, in Matrices) (Matrices, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, ok := in["C"]
	if !ok || c == nil {
		return nil, fmt.Errorf("S3 requires matrix C as input")
	}
	a := in["A"] // optional

	summary := fmt.Sprintf("S3 synthesis\n  input C: %dx%d\n  producing J, F, D", c.Shape.Rows(), c.Shape.Cols())
	if err := r.gate(matrix.StationS3, summary); err != nil {
		return nil, err
	}

	j, opJ, err := ops.Interpret(ctx, r.thread, c, r.resolver)
	if err != nil {
		return nil, fmt.Errorf("S3: %w", err)
	}
	r.ledger.Append(opJ, "S3", nil)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, opF, err := ops.Elementwise(ctx, r.thread, j, c, r.resolver)
	if err != nil {
		return nil, fmt.Errorf("S3: %w", err)
	}
	r.ledger.Append(opF, "S3", nil)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var d *matrix.Matrix
	var opD matrix.Operation
	if a != nil {
		d, opD, err = ops.Add(ctx, r.thread, a, f, r.resolver)
	} else {
		d, opD, err = ops.DeriveDomain(ctx, r.thread, c, r.resolver)
	}
	if err != nil {
		return nil, fmt.Errorf("S3: %w", err)
	}
	r.ledger.Append(opD, "S3", nil)

	out := Matrices{"C": c, "J": j, "F": f, "D": d}
	if a != nil {
		out["A"] = a
	}
	if b := in["B"]; b != nil {
		out["B"] = b
	}
	return out, nil
}

// gate runs the confirmation gate for a stage. Decline wraps
// ErrRunCancelled; a gate error is passed through as-is.
func (r *Runner) gate(st matrix.StationType, summary string) error {
	if r.confirm == nil {
		return nil
	}
	ok, err := r.confirm(summary)
	if err != nil {
		return fmt.Errorf("%s confirmation gate: %w", st, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", st, ErrRunCancelled)
	}
	return nil
}

// require checks a stage's descriptor inputs against the supplied role map
// and returns the first two required matrices in declared order.
func require(st matrix.StationType, in Matrices) (*matrix.Matrix, *matrix.Matrix, error) {
	desc := Descriptors[st]
	var missing []string
	for _, role := range desc.Inputs {
		if in[role] == nil {
			missing = append(missing, role)
		}
	}
	if len(missing) > 0 {
		return nil, nil, fmt.Errorf("%s requires matrices %s as input", st, strings.Join(missing, ", "))
	}
	return in[desc.Inputs[0]], in[desc.Inputs[1]], nil
}
