package resolve

import (
	"context"
	"fmt"

	"github.com/semweave/semweave/internal/matrix"
)

// Synthetic is the deterministic reference strategy. Each output value is a
// pure function of the input matrix names and the output position, so runs
// are reproducible without any external calls. It keeps no mutable state
// and is safe for concurrent use.
type Synthetic struct{}

// NewSynthetic creates the deterministic strategy.
func NewSynthetic() *Synthetic { return &Synthetic{} }

// Descriptor implements Resolver.
func (*Synthetic) Descriptor() matrix.ResolverDescriptor {
	return matrix.ResolverDescriptor{Vendor: "dev", Name: "synthetic", Version: "1"}
}

// Resolve implements Resolver. Values encode the operator and the input
// coordinates they were derived from, which makes pipeline output readable
// in tests and golden files.
func (s *Synthetic) Resolve(ctx context.Context, kind matrix.Kind, inputs []*matrix.Matrix, _ Instructions) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	shape, err := ShapeFor(kind, inputs)
	if err != nil {
		return nil, err
	}

	var value func(r, c int) string
	switch kind {
	case matrix.KindMultiply:
		a, b := inputs[0], inputs[1]
		value = func(r, c int) string {
			return fmt.Sprintf("*:%s[%d,:]%s[:,%d]", a.Name, r, b.Name, c)
		}
	case matrix.KindAdd:
		a, b := inputs[0], inputs[1]
		value = func(r, c int) string {
			return fmt.Sprintf("+:%s[%d,%d]⊕%s[%d,%d]", a.Name, r, c, b.Name, r, c)
		}
	case matrix.KindInterpret:
		in := inputs[0]
		value = func(r, c int) string {
			return fmt.Sprintf("interp:%s[%d,%d]", in.Name, r, c)
		}
	case matrix.KindElementwise:
		a, b := inputs[0], inputs[1]
		value = func(r, c int) string {
			return fmt.Sprintf("⊙:%s[%d,%d]×%s[%d,%d]", a.Name, r, c, b.Name, r, c)
		}
	case matrix.KindCross:
		a, b := inputs[0], inputs[1]
		value = func(r, c int) string {
			ar, ac := r/b.Shape.Rows(), c/b.Shape.Cols()
			br, bc := r%b.Shape.Rows(), c%b.Shape.Cols()
			return fmt.Sprintf("×:%s[%d,%d]⨂%s[%d,%d]", a.Name, ar, ac, b.Name, br, bc)
		}
	default:
		return nil, fmt.Errorf("unknown operation kind: %q", kind)
	}

	grid := make([][]string, shape.Rows())
	for r := range grid {
		grid[r] = make([]string, shape.Cols())
		for c := range grid[r] {
			grid[r][c] = value(r, c)
		}
	}
	return grid, nil
}
