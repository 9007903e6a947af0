package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semweave/semweave/internal/ident"
	"github.com/semweave/semweave/internal/matrix"
)

func validCell(row, col int, value string) matrix.Cell {
	return matrix.Cell{
		ID:       ident.CellID("t:A:v1", row, col, value),
		Row:      row,
		Col:      col,
		Value:    value,
		Modality: matrix.ModalityConcept,
	}
}

func validMatrix() *matrix.Matrix {
	m := &matrix.Matrix{
		ID:      "t:A:v1",
		Name:    "A",
		Station: "S1",
		Shape:   matrix.Shape{2, 2},
		Cells: []matrix.Cell{
			validCell(0, 0, "Quality"),
			validCell(0, 1, "Efficiency"),
			validCell(1, 0, "Maintainability"),
			validCell(1, 1, "Scalability"),
		},
	}
	m.Hash = m.ComputeHash()
	return m
}

func TestCell(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*matrix.Cell)
		issues int
	}{
		{"valid", func(c *matrix.Cell) {}, 0},
		{"missing id", func(c *matrix.Cell) { c.ID = "" }, 1},
		{"negative row", func(c *matrix.Cell) { c.Row = -1 }, 1},
		{"negative col", func(c *matrix.Cell) { c.Col = -2 }, 1},
		{"empty value", func(c *matrix.Cell) { c.Value = "" }, 1},
		{"bad modality", func(c *matrix.Cell) { c.Modality = "vibes" }, 1},
		{"multiple issues", func(c *matrix.Cell) { c.ID = ""; c.Value = ""; c.Row = -1 }, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCell(0, 0, "Quality")
			tt.mutate(&c)
			assert.Len(t, Cell(c), tt.issues)
		})
	}
}

func TestMatrix(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*matrix.Matrix)
		wants  string
	}{
		{"missing id", func(m *matrix.Matrix) { m.ID = "" }, "matrix missing id"},
		{"missing name", func(m *matrix.Matrix) { m.Name = "" }, "matrix missing name"},
		{"zero shape", func(m *matrix.Matrix) { m.Shape = matrix.Shape{0, 2} }, "invalid shape"},
		{"no cells", func(m *matrix.Matrix) { m.Cells = nil }, "matrix has no cells"},
		{"out of bounds", func(m *matrix.Matrix) { m.Cells[3].Row = 5 }, "out of bounds"},
		{"duplicate position", func(m *matrix.Matrix) { m.Cells[1].Row = 0; m.Cells[1].Col = 0 }, "duplicate cell at position (0, 0)"},
		{"bad cell surfaces with cell id", func(m *matrix.Matrix) { m.Cells[0].Value = "" }, "cell missing value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validMatrix()
			tt.mutate(m)
			issues := Matrix(m)
			require.NotEmpty(t, issues)
			found := false
			for _, issue := range issues {
				if strings.Contains(issue, tt.wants) {
					found = true
				}
			}
			assert.True(t, found, "expected an issue containing %q, got %v", tt.wants, issues)
		})
	}
}

func TestMatrixValid(t *testing.T) {
	assert.Empty(t, Matrix(validMatrix()))
}

func TestAsError(t *testing.T) {
	assert.NoError(t, AsError("t:A:v1", nil))

	err := AsError("t:A:v1", []string{"matrix has no cells", "matrix missing name"})
	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "t:A:v1", verr.Entity)
	assert.Len(t, verr.Issues, 2)
	assert.Contains(t, err.Error(), "2 issue(s)")
	assert.Contains(t, err.Error(), "matrix has no cells")
}

func shaped(name string, rows, cols int) *matrix.Matrix {
	return &matrix.Matrix{ID: "t:" + name + ":v1", Name: name, Shape: matrix.Shape{rows, cols}}
}

func TestEnsureDims(t *testing.T) {
	tests := []struct {
		name    string
		a, b    *matrix.Matrix
		kind    matrix.Kind
		wantErr bool
	}{
		{"multiply compatible", shaped("A", 2, 3), shaped("B", 3, 4), matrix.KindMultiply, false},
		{"multiply square", shaped("A", 2, 2), shaped("B", 2, 2), matrix.KindMultiply, false},
		{"multiply incompatible", shaped("A", 2, 3), shaped("B", 2, 4), matrix.KindMultiply, true},
		{"add same shape", shaped("A", 2, 2), shaped("B", 2, 2), matrix.KindAdd, false},
		{"add different shape", shaped("A", 2, 2), shaped("B", 2, 3), matrix.KindAdd, true},
		{"elementwise same shape", shaped("A", 3, 1), shaped("B", 3, 1), matrix.KindElementwise, false},
		{"elementwise different shape", shaped("A", 3, 1), shaped("B", 1, 3), matrix.KindElementwise, true},
		{"cross never prechecks", shaped("A", 2, 3), shaped("B", 5, 7), matrix.KindCross, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := EnsureDims(tt.a, tt.b, tt.kind)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var derr *DimensionError
			require.ErrorAs(t, err, &derr)
			assert.Equal(t, tt.kind.Symbol(), derr.Op)
			assert.Equal(t, tt.a.Shape, derr.ShapeA)
			assert.Equal(t, tt.b.Shape, derr.ShapeB)
		})
	}
}
