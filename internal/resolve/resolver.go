// Package resolve defines the pluggable resolution strategy that computes
// output cell values for a semantic operation.
//
// A Resolver is handed the operation kind, the ordered input matrices, and
// opaque instruction content; it returns a 2D grid of strings. The output
// shape is never the resolver's choice: callers compute it from ShapeFor
// and reject any grid that does not match exactly.
//
// Two strategies are provided: Synthetic (deterministic, no external calls)
// and OpenAI (delegates value computation to a generative backend). The
// strategy is selected at construction time, never by runtime inspection.
package resolve

import (
	"context"
	"errors"
	"fmt"

	"github.com/semweave/semweave/internal/matrix"
	"github.com/semweave/semweave/internal/validate"
)

// Instructions carries the instruction content for one resolver call. The
// core never parses System or User; it only hashes them for provenance.
type Instructions struct {
	System  string
	User    string
	Context map[string]string
}

// Resolver computes the raw value grid for one operation.
type Resolver interface {
	// Descriptor identifies the strategy and version for provenance records.
	Descriptor() matrix.ResolverDescriptor

	// Resolve returns a grid whose shape equals ShapeFor(kind, inputs).
	// A strategy that cannot guarantee the exact shape must fail instead
	// of returning a truncated or padded grid.
	Resolve(ctx context.Context, kind matrix.Kind, inputs []*matrix.Matrix, instr Instructions) ([][]string, error)
}

// ShapeFor computes the output shape for an operation kind, independent of
// any resolver:
//
//	multiply:          (A.rows, B.cols), requires A.cols == B.rows
//	add, elementwise:  A.shape, requires A.shape == B.shape
//	interpret:         shape of the single input
//	cross:             (A.rows*B.rows, A.cols*B.cols)
func ShapeFor(kind matrix.Kind, inputs []*matrix.Matrix) (matrix.Shape, error) {
	switch kind {
	case matrix.KindMultiply:
		a, b, err := pair(kind, inputs)
		if err != nil {
			return matrix.Shape{}, err
		}
		if err := validate.EnsureDims(a, b, kind); err != nil {
			return matrix.Shape{}, err
		}
		return matrix.Shape{a.Shape.Rows(), b.Shape.Cols()}, nil
	case matrix.KindAdd, matrix.KindElementwise:
		a, b, err := pair(kind, inputs)
		if err != nil {
			return matrix.Shape{}, err
		}
		if err := validate.EnsureDims(a, b, kind); err != nil {
			return matrix.Shape{}, err
		}
		return a.Shape, nil
	case matrix.KindInterpret:
		if len(inputs) != 1 {
			return matrix.Shape{}, fmt.Errorf("interpret requires exactly 1 input, got %d", len(inputs))
		}
		return inputs[0].Shape, nil
	case matrix.KindCross:
		a, b, err := pair(kind, inputs)
		if err != nil {
			return matrix.Shape{}, err
		}
		return matrix.Shape{
			a.Shape.Rows() * b.Shape.Rows(),
			a.Shape.Cols() * b.Shape.Cols(),
		}, nil
	}
	return matrix.Shape{}, fmt.Errorf("unknown operation kind: %q", kind)
}

func pair(kind matrix.Kind, inputs []*matrix.Matrix) (*matrix.Matrix, *matrix.Matrix, error) {
	if len(inputs) != 2 {
		return nil, nil, fmt.Errorf("%s requires exactly 2 inputs, got %d", kind, len(inputs))
	}
	return inputs[0], inputs[1], nil
}

// CheckGrid verifies a resolver's grid against the required shape. A
// mismatch is fatal: the caller must never truncate or pad.
func CheckGrid(grid [][]string, want matrix.Shape) error {
	if len(grid) != want.Rows() {
		return &GridError{Want: want, GotRows: len(grid), GotCols: -1}
	}
	for _, row := range grid {
		if len(row) != want.Cols() {
			return &GridError{Want: want, GotRows: len(grid), GotCols: len(row)}
		}
	}
	return nil
}

// GridError reports a resolver grid whose dimensions do not match the
// required output shape.
type GridError struct {
	Want    matrix.Shape
	GotRows int
	GotCols int // -1 when the row count itself is wrong
}

func (e *GridError) Error() string {
	if e.GotCols < 0 {
		return fmt.Sprintf("resolver grid has %d rows, want %dx%d", e.GotRows, e.Want.Rows(), e.Want.Cols())
	}
	return fmt.Sprintf("resolver grid has a row of %d values, want %dx%d", e.GotCols, e.Want.Rows(), e.Want.Cols())
}

// ResolutionError wraps a resolver failure after its retry budget is
// exhausted. The encompassing operation fails and the current station
// aborts; no partial matrices are returned.
type ResolutionError struct {
	Kind     matrix.Kind
	Attempts int
	Err      error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolution failed for %s after %d attempt(s): %v", e.Kind, e.Attempts, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// IsResolutionError reports whether err is (or wraps) a ResolutionError.
func IsResolutionError(err error) bool {
	var re *ResolutionError
	return errors.As(err, &re)
}
