package resolve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semweave/semweave/internal/matrix"
)

func TestSyntheticDescriptor(t *testing.T) {
	d := NewSynthetic().Descriptor()
	assert.Equal(t, matrix.ResolverDescriptor{Vendor: "dev", Name: "synthetic", Version: "1"}, d)
}

func TestSyntheticDeterminism(t *testing.T) {
	s := NewSynthetic()
	inputs := []*matrix.Matrix{shaped("A", 2, 2), shaped("B", 2, 2)}

	first, err := s.Resolve(context.Background(), matrix.KindMultiply, inputs, Instructions{})
	require.NoError(t, err)
	second, err := s.Resolve(context.Background(), matrix.KindMultiply, inputs, Instructions{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSyntheticGrids(t *testing.T) {
	s := NewSynthetic()
	ctx := context.Background()

	t.Run("multiply", func(t *testing.T) {
		grid, err := s.Resolve(ctx, matrix.KindMultiply, []*matrix.Matrix{shaped("A", 2, 2), shaped("B", 2, 2)}, Instructions{})
		require.NoError(t, err)
		require.NoError(t, CheckGrid(grid, matrix.Shape{2, 2}))
		assert.Equal(t, "*:A[0,:]B[:,0]", grid[0][0])
		assert.Equal(t, "*:A[1,:]B[:,1]", grid[1][1])
	})

	t.Run("add", func(t *testing.T) {
		grid, err := s.Resolve(ctx, matrix.KindAdd, []*matrix.Matrix{shaped("A", 2, 2), shaped("F", 2, 2)}, Instructions{})
		require.NoError(t, err)
		assert.Equal(t, "+:A[0,1]⊕F[0,1]", grid[0][1])
	})

	t.Run("interpret", func(t *testing.T) {
		grid, err := s.Resolve(ctx, matrix.KindInterpret, []*matrix.Matrix{shaped("C", 2, 2)}, Instructions{})
		require.NoError(t, err)
		assert.Equal(t, "interp:C[1,0]", grid[1][0])
	})

	t.Run("elementwise", func(t *testing.T) {
		grid, err := s.Resolve(ctx, matrix.KindElementwise, []*matrix.Matrix{shaped("J", 2, 2), shaped("C", 2, 2)}, Instructions{})
		require.NoError(t, err)
		assert.Equal(t, "⊙:J[0,0]×C[0,0]", grid[0][0])
	})

	t.Run("cross", func(t *testing.T) {
		grid, err := s.Resolve(ctx, matrix.KindCross, []*matrix.Matrix{shaped("A", 2, 2), shaped("B", 2, 2)}, Instructions{})
		require.NoError(t, err)
		require.NoError(t, CheckGrid(grid, matrix.Shape{4, 4}))
		// Position (3, 3) factors into A[1,1] and B[1,1].
		assert.Equal(t, "×:A[1,1]⨂B[1,1]", grid[3][3])
		assert.Equal(t, "×:A[0,0]⨂B[0,0]", grid[0][0])
		assert.Equal(t, "×:A[0,1]⨂B[1,0]", grid[1][2])
	})
}

func TestSyntheticPropagatesDimensionError(t *testing.T) {
	_, err := NewSynthetic().Resolve(context.Background(), matrix.KindMultiply,
		[]*matrix.Matrix{shaped("A", 2, 3), shaped("B", 2, 3)}, Instructions{})
	assert.Error(t, err)
}

func TestSyntheticHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSynthetic().Resolve(ctx, matrix.KindMultiply,
		[]*matrix.Matrix{shaped("A", 2, 2), shaped("B", 2, 2)}, Instructions{})
	assert.ErrorIs(t, err, context.Canceled)
}
