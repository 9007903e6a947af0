package matrix

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema.cue
var schemaCUE string

// IntegrityError reports a stored hash that does not match the hash
// recomputed from content. Always fatal, never retried.
type IntegrityError struct {
	Entity   string // id of the offending entity
	Stored   string
	Computed string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity violation for %s: stored hash %s, computed %s", e.Entity, e.Stored, e.Computed)
}

// Encode serializes a matrix to the external JSON format. Cells are written
// in (row, col) order so output is byte-stable for a given matrix.
func Encode(m *Matrix) ([]byte, error) {
	stable := *m
	stable.Cells = m.SortedCells()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&stable); err != nil {
		return nil, fmt.Errorf("encode matrix %s: %w", m.ID, err)
	}
	return buf.Bytes(), nil
}

// Decode parses and validates a matrix from the external JSON format.
//
// The bytes are first unified against the embedded CUE schema, then decoded,
// then checked for hash integrity: the stored hash must equal the hash
// recomputed from the cells. Returns *IntegrityError on mismatch.
func Decode(data []byte) (*Matrix, error) {
	if err := validateSchema(data); err != nil {
		return nil, err
	}

	var m Matrix
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode matrix: %w", err)
	}

	// Absent modality tags default to unknown, matching the schema.
	for i := range m.Cells {
		if m.Cells[i].Modality == "" {
			m.Cells[i].Modality = ModalityUnknown
		}
	}

	if computed := m.ComputeHash(); computed != m.Hash {
		return nil, &IntegrityError{Entity: m.ID, Stored: m.Hash, Computed: computed}
	}
	return &m, nil
}

// validateSchema unifies the raw JSON with the embedded #Matrix definition.
// CUE is a superset of JSON, so the data compiles directly.
func validateSchema(data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile matrix schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Matrix"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("lookup #Matrix: %w", err)
	}

	val := ctx.CompileBytes(data, cue.Filename("matrix.json"))
	if err := val.Err(); err != nil {
		return fmt.Errorf("parse matrix file: %w", err)
	}

	unified := def.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("matrix file does not satisfy schema: %w", err)
	}
	return nil
}

// Save writes a matrix to path, creating parent directories as needed.
func Save(m *Matrix, path string) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("save matrix %s: %w", m.ID, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("save matrix %s: %w", m.ID, err)
	}
	return nil
}

// Load reads and validates a matrix from path.
func Load(path string) (*Matrix, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load matrix: %w", err)
	}
	m, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("load matrix %s: %w", path, err)
	}
	return m, nil
}
