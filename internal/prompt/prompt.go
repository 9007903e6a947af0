// Package prompt builds the instruction content handed to a resolver.
//
// The content is opaque to the rest of the pipeline: operation functions
// hash it for provenance but never parse it. Changing a template here
// changes prompt hashes and therefore operation ids, which is exactly the
// auditability the provenance records exist for.
package prompt

import (
	"fmt"
	"strings"

	"github.com/semweave/semweave/internal/matrix"
	"github.com/semweave/semweave/internal/resolve"
)

const multiplySystem = `## Semantic Multiplication "*"

Semantic multiplication combines the meaning of two terms into a coherent
word or statement representing their semantic intersection, not a mere
adjoining of the terms.

Examples:
"sufficient" * "reason" = "justification"
"analysis" * "judgment" = "informed decision"
"precision" * "durability" = "reliability"
"probability" * "consequence" = "risk"

For C = A * B, each cell C[i,j] is the semantic multiplication of row i of A
with column j of B.`

// For constructs the instructions for one operation kind over its inputs.
// The station label goes into the context mapping so the same operation at
// a different stage hashes differently.
func For(kind matrix.Kind, inputs []*matrix.Matrix, station string) resolve.Instructions {
	ctx := map[string]string{"station": station}
	for _, m := range inputs {
		ctx["input:"+m.Name] = m.ID
	}

	var system, user string
	switch kind {
	case matrix.KindMultiply:
		a, b := inputs[0], inputs[1]
		system = multiplySystem
		user = fmt.Sprintf("Compute C = %s * %s:\n\n%s\n%s\nOutput shape: [%d, %d]",
			a.Name, b.Name, renderInput(a), renderInput(b), a.Shape.Rows(), b.Shape.Cols())
	case matrix.KindAdd:
		a, f := inputs[0], inputs[1]
		system = "Semantic addition (+): combine corresponding cells while preserving the identity of both source terms."
		user = fmt.Sprintf("Compute D = %s + %s:\n\n%s\n%s\nOutput shape: [%d, %d]",
			a.Name, f.Name, renderInput(a), renderInput(f), a.Shape.Rows(), a.Shape.Cols())
	case matrix.KindInterpret:
		in := inputs[0]
		system = "Interpretation: rewrite each cell for stakeholder clarity without changing its meaning."
		user = fmt.Sprintf("Interpret matrix %s into judgment matrix J:\n\n%s\nOutput shape: [%d, %d]",
			in.Name, renderInput(in), in.Shape.Rows(), in.Shape.Cols())
	case matrix.KindElementwise:
		j, c := inputs[0], inputs[1]
		system = "Element-wise multiplication (⊙): semantically combine the cells at each matching position."
		user = fmt.Sprintf("Compute F = %s ⊙ %s:\n\n%s\n%s\nOutput shape: [%d, %d]",
			j.Name, c.Name, renderInput(j), renderInput(c), j.Shape.Rows(), j.Shape.Cols())
	case matrix.KindCross:
		a, b := inputs[0], inputs[1]
		system = "Cross-product (×): expand the relational possibilities of every cell pairing."
		user = fmt.Sprintf("Compute W = %s × %s:\n\n%s\n%s\nOutput shape: [%d, %d]",
			a.Name, b.Name, renderInput(a), renderInput(b),
			a.Shape.Rows()*b.Shape.Rows(), a.Shape.Cols()*b.Shape.Cols())
	}

	return resolve.Instructions{System: system, User: user, Context: ctx}
}

func renderInput(m *matrix.Matrix) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Matrix %s (%dx%d):\n", m.Name, m.Shape.Rows(), m.Shape.Cols())
	for _, row := range m.Values() {
		fmt.Fprintf(&b, "  [%s]\n", strings.Join(row, " | "))
	}
	return b.String()
}
