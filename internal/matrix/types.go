package matrix

import (
	"sort"

	"github.com/semweave/semweave/internal/ident"
)

// Modality tags the semantic register of a cell value.
type Modality string

const (
	ModalityAxiom    Modality = "axiom"
	ModalityTheory   Modality = "theory"
	ModalityConcept  Modality = "concept"
	ModalityProcess  Modality = "process"
	ModalityInstance Modality = "instance"
	ModalityValue    Modality = "value"
	ModalityUnknown  Modality = "unknown"
)

// ValidModalities defines the recognized modality tags.
var ValidModalities = map[Modality]bool{
	ModalityAxiom:    true,
	ModalityTheory:   true,
	ModalityConcept:  true,
	ModalityProcess:  true,
	ModalityInstance: true,
	ModalityValue:    true,
	ModalityUnknown:  true,
}

// Kind identifies one of the closed set of semantic operations.
type Kind string

const (
	KindMultiply    Kind = "multiply"
	KindAdd         Kind = "add"
	KindInterpret   Kind = "interpret"
	KindElementwise Kind = "elementwise"
	KindCross       Kind = "cross"
)

// ValidKinds defines the closed operation set.
var ValidKinds = map[Kind]bool{
	KindMultiply:    true,
	KindAdd:         true,
	KindInterpret:   true,
	KindElementwise: true,
	KindCross:       true,
}

// Symbol returns the operator glyph used in diagnostics and prompts.
func (k Kind) Symbol() string {
	switch k {
	case KindMultiply:
		return "*"
	case KindAdd:
		return "+"
	case KindInterpret:
		return "interpret"
	case KindElementwise:
		return "⊙"
	case KindCross:
		return "×"
	}
	return string(k)
}

// Shape is (rows, cols). Serializes as a two-element JSON array.
type Shape [2]int

// Rows returns the row count.
func (s Shape) Rows() int { return s[0] }

// Cols returns the column count.
func (s Shape) Cols() int { return s[1] }

// Cell is the atomic semantic unit: one canonical string value at one
// position of one matrix.
type Cell struct {
	ID         string         `json:"id"` // Content-addressed (ident.CellID)
	Row        int            `json:"row"`
	Col        int            `json:"col"`
	Value      string         `json:"value"` // Canonical form (ident.Canonical)
	Modality   Modality       `json:"modality,omitempty"`
	Provenance map[string]any `json:"provenance,omitempty"`
}

// Matrix is a named, shaped, content-addressed container of cells.
type Matrix struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`    // Role tag: A, B, C, D, F, J, W
	Station  string         `json:"station"` // Stage label that produced it
	Shape    Shape          `json:"shape"`
	Cells    []Cell         `json:"cells"`
	Hash     string         `json:"hash"` // ident.ContentHash over sorted cells
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Cell returns the cell at (row, col), or nil if the position is unfilled.
func (m *Matrix) Cell(row, col int) *Cell {
	for i := range m.Cells {
		if m.Cells[i].Row == row && m.Cells[i].Col == col {
			return &m.Cells[i]
		}
	}
	return nil
}

// Values returns the cell values as a row-major grid. Unfilled positions
// are empty strings.
func (m *Matrix) Values() [][]string {
	grid := make([][]string, m.Shape.Rows())
	for r := range grid {
		grid[r] = make([]string, m.Shape.Cols())
	}
	for _, c := range m.Cells {
		if c.Row < m.Shape.Rows() && c.Col < m.Shape.Cols() {
			grid[c.Row][c.Col] = c.Value
		}
	}
	return grid
}

// SortedCells returns the cells ordered by (row, col). The input slice is
// not modified; hashing and serialization both depend on this ordering.
func (m *Matrix) SortedCells() []Cell {
	sorted := make([]Cell, len(m.Cells))
	copy(sorted, m.Cells)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Row != sorted[j].Row {
			return sorted[i].Row < sorted[j].Row
		}
		return sorted[i].Col < sorted[j].Col
	})
	return sorted
}

// ComputeHash derives the content hash from the position-sorted canonical
// cell values. A freshly loaded matrix must reproduce its stored hash
// exactly; a mismatch is an integrity error.
func (m *Matrix) ComputeHash() string {
	sorted := m.SortedCells()
	values := make([]string, len(sorted))
	for i, c := range sorted {
		values[i] = ident.Canonical(c.Value)
	}
	return ident.ContentHash(values)
}

// ResolverDescriptor identifies the resolution strategy that produced an
// operation's output. Opaque to the core beyond equality and display.
type ResolverDescriptor struct {
	Vendor  string `json:"vendor"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Operation is an immutable record of one transformation.
type Operation struct {
	ID         string             `json:"id"` // ident.OperationID
	Kind       Kind               `json:"kind"`
	Inputs     []string           `json:"inputs"` // Input matrix ids, call order
	Output     string             `json:"output"` // Output matrix id
	Resolver   ResolverDescriptor `json:"resolver"`
	PromptHash string             `json:"prompt_hash"`
	Timestamp  string             `json:"timestamp"` // RFC 3339 UTC
	OutputHash string             `json:"output_hash"`
}

// StationType names one fixed pipeline stage.
type StationType string

const (
	StationS1 StationType = "S1" // Formulation
	StationS2 StationType = "S2" // Composition
	StationS3 StationType = "S3" // Synthesis
)

// Station describes a pipeline stage: the matrix roles it requires, the
// roles it produces, and the operation kinds it performs, in order.
// Stateless beyond this descriptor.
type Station struct {
	Type       StationType `json:"type"`
	Inputs     []string    `json:"inputs"`
	Outputs    []string    `json:"outputs"`
	Operations []Kind      `json:"operations"`
}
