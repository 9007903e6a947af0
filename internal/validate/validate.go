// Package validate enforces structural invariants on cells and matrices and
// dimension compatibility between operation inputs.
//
// Validators return issue lists (empty = valid) for recoverable structural
// problems; typed errors are reserved for contract violations that must stop
// the caller, such as dimension mismatches.
package validate

import (
	"fmt"

	"github.com/semweave/semweave/internal/matrix"
)

// DimensionError reports incompatible input shapes for an operation.
// Dimension errors are synchronous and non-retryable: the caller must fix
// its inputs and restart.
type DimensionError struct {
	Op     string // operation symbol, e.g. "*" or "⊙"
	ShapeA matrix.Shape
	ShapeB matrix.Shape
	Reason string
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("dimension mismatch for %s: %dx%d vs %dx%d (%s)",
		e.Op, e.ShapeA.Rows(), e.ShapeA.Cols(), e.ShapeB.Rows(), e.ShapeB.Cols(), e.Reason)
}

// Error aggregates structural issues found by Cell or Matrix into a single
// error value for callers that need to stop on invalid input.
type Error struct {
	Entity string
	Issues []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("validation failed for %s: %d issue(s), first: %s", e.Entity, len(e.Issues), e.Issues[0])
}

// AsError converts an issue list into an *Error, or nil when the list is
// empty.
func AsError(entity string, issues []string) error {
	if len(issues) == 0 {
		return nil
	}
	return &Error{Entity: entity, Issues: issues}
}

// Cell checks the structural invariants of a single cell. Returns a list of
// issue descriptions; empty means valid.
func Cell(c matrix.Cell) []string {
	var issues []string
	if c.ID == "" {
		issues = append(issues, "cell missing id")
	}
	if c.Row < 0 {
		issues = append(issues, fmt.Sprintf("invalid row position: %d", c.Row))
	}
	if c.Col < 0 {
		issues = append(issues, fmt.Sprintf("invalid column position: %d", c.Col))
	}
	if c.Value == "" {
		issues = append(issues, "cell missing value")
	}
	if !matrix.ValidModalities[c.Modality] {
		issues = append(issues, fmt.Sprintf("invalid modality: %q", c.Modality))
	}
	return issues
}

// Matrix checks the structural invariants of a matrix: id present, strictly
// positive shape, at least one cell, no duplicate positions, all positions
// in bounds, and every cell individually valid.
//
// An empty matrix on an otherwise valid shape is a validation error, not a
// silently accepted degenerate case: downstream operations must never run
// on it.
func Matrix(m *matrix.Matrix) []string {
	var issues []string
	if m.ID == "" {
		issues = append(issues, "matrix missing id")
	}
	if m.Name == "" {
		issues = append(issues, "matrix missing name")
	}
	rows, cols := m.Shape.Rows(), m.Shape.Cols()
	if rows <= 0 || cols <= 0 {
		issues = append(issues, fmt.Sprintf("invalid shape: %dx%d", rows, cols))
	}
	if len(m.Cells) == 0 {
		issues = append(issues, "matrix has no cells")
	}

	seen := make(map[[2]int]bool, len(m.Cells))
	for _, c := range m.Cells {
		for _, issue := range Cell(c) {
			issues = append(issues, fmt.Sprintf("cell %s: %s", c.ID, issue))
		}
		if c.Row >= rows || c.Col >= cols {
			issues = append(issues, fmt.Sprintf("cell %s out of bounds: (%d, %d)", c.ID, c.Row, c.Col))
		}
		pos := [2]int{c.Row, c.Col}
		if seen[pos] {
			issues = append(issues, fmt.Sprintf("duplicate cell at position (%d, %d)", c.Row, c.Col))
		}
		seen[pos] = true
	}
	return issues
}

// EnsureDims checks shape compatibility of two inputs for an operation kind.
//
//	multiply:          a.cols == b.rows
//	add, elementwise:  a.shape == b.shape
//	cross:             no precheck (output shape is the product of both)
//
// Returns *DimensionError on violation.
func EnsureDims(a, b *matrix.Matrix, kind matrix.Kind) error {
	switch kind {
	case matrix.KindMultiply:
		if a.Shape.Cols() != b.Shape.Rows() {
			return &DimensionError{
				Op:     kind.Symbol(),
				ShapeA: a.Shape,
				ShapeB: b.Shape,
				Reason: "requires A.cols == B.rows",
			}
		}
	case matrix.KindAdd, matrix.KindElementwise:
		if a.Shape != b.Shape {
			return &DimensionError{
				Op:     kind.Symbol(),
				ShapeA: a.Shape,
				ShapeB: b.Shape,
				Reason: "requires identical shapes",
			}
		}
	case matrix.KindCross:
		// Output expands to (a.rows*b.rows, a.cols*b.cols); any shapes combine.
	}
	return nil
}
