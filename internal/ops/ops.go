// Package ops implements the operation functions: pure orchestration that
// validates inputs, invokes a resolver, and builds the output matrix with
// its provenance record.
//
// Operation functions have no side effects beyond their return values. They
// never touch the provenance ledger; appending the Operation record is the
// station driver's job.
package ops

import (
	"context"
	"time"

	"github.com/semweave/semweave/internal/ident"
	"github.com/semweave/semweave/internal/matrix"
	"github.com/semweave/semweave/internal/prompt"
	"github.com/semweave/semweave/internal/resolve"
)

// Stage labels recorded on output matrices.
const (
	StageComposition = "composition"
	StageSynthesis   = "synthesis"
	StageAssessment  = "assessment"
)

// now is swapped out by tests that need fixed operation timestamps.
var now = time.Now

// Multiply computes C = A * B. Requires A.cols == B.rows; output shape is
// (A.rows, B.cols).
func Multiply(ctx context.Context, thread string, a, b *matrix.Matrix, r resolve.Resolver) (*matrix.Matrix, matrix.Operation, error) {
	return apply(ctx, thread, matrix.KindMultiply, "C", StageComposition, []*matrix.Matrix{a, b}, r)
}

// Interpret computes J = interpret(C). Output shape equals the input shape.
func Interpret(ctx context.Context, thread string, c *matrix.Matrix, r resolve.Resolver) (*matrix.Matrix, matrix.Operation, error) {
	return apply(ctx, thread, matrix.KindInterpret, "J", StageSynthesis, []*matrix.Matrix{c}, r)
}

// Elementwise computes F = J ⊙ C. Requires identical shapes.
func Elementwise(ctx context.Context, thread string, j, c *matrix.Matrix, r resolve.Resolver) (*matrix.Matrix, matrix.Operation, error) {
	return apply(ctx, thread, matrix.KindElementwise, "F", StageSynthesis, []*matrix.Matrix{j, c}, r)
}

// Add computes D = A + F. Requires identical shapes.
func Add(ctx context.Context, thread string, a, f *matrix.Matrix, r resolve.Resolver) (*matrix.Matrix, matrix.Operation, error) {
	return apply(ctx, thread, matrix.KindAdd, "D", StageSynthesis, []*matrix.Matrix{a, f}, r)
}

// DeriveDomain computes D from C alone: the degraded synthesis path used
// when matrix A is not available. Structurally an interpret over C whose
// output takes the D role.
func DeriveDomain(ctx context.Context, thread string, c *matrix.Matrix, r resolve.Resolver) (*matrix.Matrix, matrix.Operation, error) {
	return apply(ctx, thread, matrix.KindInterpret, "D", StageSynthesis, []*matrix.Matrix{c}, r)
}

// Cross computes W = A × B, expanding to (A.rows*B.rows, A.cols*B.cols).
// Available outside the station sequence; no station invokes it.
func Cross(ctx context.Context, thread string, a, b *matrix.Matrix, r resolve.Resolver) (*matrix.Matrix, matrix.Operation, error) {
	return apply(ctx, thread, matrix.KindCross, "W", StageAssessment, []*matrix.Matrix{a, b}, r)
}

// apply is the shared contract of every operation function: ensure
// dimensions, compute the required shape, resolve the grid, reject any
// shape deviation, then assemble the output matrix and its operation
// record with deterministic ids.
func apply(ctx context.Context, thread string, kind matrix.Kind, name, stage string, inputs []*matrix.Matrix, r resolve.Resolver) (*matrix.Matrix, matrix.Operation, error) {
	shape, err := resolve.ShapeFor(kind, inputs)
	if err != nil {
		return nil, matrix.Operation{}, err
	}

	instr := prompt.For(kind, inputs, stage)

	grid, err := r.Resolve(ctx, kind, inputs, instr)
	if err != nil {
		return nil, matrix.Operation{}, err
	}
	if err := resolve.CheckGrid(grid, shape); err != nil {
		return nil, matrix.Operation{}, err
	}

	out := build(thread, name, stage, shape, grid)

	inputIDs := make([]string, len(inputs))
	for i, m := range inputs {
		inputIDs[i] = m.ID
	}
	promptHash := ident.PromptHash(instr.System, instr.User, instr.Context)

	op := matrix.Operation{
		ID:         ident.OperationID(string(kind), inputIDs, out.Hash, promptHash),
		Kind:       kind,
		Inputs:     inputIDs,
		Output:     out.ID,
		Resolver:   r.Descriptor(),
		PromptHash: promptHash,
		Timestamp:  now().UTC().Format(time.RFC3339Nano),
		OutputHash: out.Hash,
	}
	return out, op, nil
}

// build assembles an output matrix from a resolved grid: canonical values,
// deterministic cell ids, content hash over position-sorted values.
func build(thread, name, stage string, shape matrix.Shape, grid [][]string) *matrix.Matrix {
	mid := ident.MatrixID(thread, name, 1)

	cells := make([]matrix.Cell, 0, shape.Rows()*shape.Cols())
	for r := 0; r < shape.Rows(); r++ {
		for c := 0; c < shape.Cols(); c++ {
			value := ident.Canonical(grid[r][c])
			cells = append(cells, matrix.Cell{
				ID:       ident.CellID(mid, r, c, value),
				Row:      r,
				Col:      c,
				Value:    value,
				Modality: matrix.ModalityUnknown,
			})
		}
	}

	out := &matrix.Matrix{
		ID:       mid,
		Name:     name,
		Station:  stage,
		Shape:    shape,
		Cells:    cells,
		Metadata: map[string]any{"cell_count": len(cells)},
	}
	out.Hash = out.ComputeHash()
	return out
}
