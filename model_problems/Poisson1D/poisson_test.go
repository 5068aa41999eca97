package Poisson1D

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tianyikillua/dolfinx/la"
	"github.com/tianyikillua/dolfinx/mesh"
	"github.com/tianyikillua/dolfinx/utils"
)

func TestKernels(t *testing.T) {
	var (
		X  = utils.NewMatrix(2, 1, []float64{0, 0.5})
		Ae = make([]float64, 4)
		be = make([]float64, 2)
	)
	StiffnessKernel(Ae, nil, X)
	assert.Equal(t, []float64{2, -2, -2, 2}, Ae)

	MassKernel(Ae, nil, X)
	assert.InDeltaSlice(t, []float64{1. / 6, 1. / 12, 1. / 12, 1. / 6}, Ae, 1e-15)

	LoadKernel(be, nil, X)
	assert.Equal(t, []float64{0.25, 0.25}, be)
	LoadKernel(be, [][]float64{{2, 4}}, X)
	assert.Equal(t, []float64{0.5, 1}, be)
}

func TestPoissonAssemble(t *testing.T) {
	c, err := NewPoisson(1, 4, 0, 1, func(x float64) float64 { return 0 }, 0, 1)
	assert.NoError(t, err)
	assert.NoError(t, c.Assemble())

	A := c.A.(*la.SparseMatrix)
	nr, nc := A.Dims()
	assert.Equal(t, 5, nr)
	assert.Equal(t, 5, nc)

	// End rows are identity rows, the interior is the (1/h)*[-1,2,-1]
	// stencil
	assert.Equal(t, 1., A.At(0, 0))
	assert.Equal(t, 1., A.At(4, 4))
	assert.Equal(t, 0., A.At(0, 1))
	assert.Equal(t, 8., A.At(2, 2))
	assert.Equal(t, -4., A.At(2, 1))

	// Zero source: the load is pure lifting of the right end value
	b := c.B.(*la.GhostVector)
	assert.Equal(t, []float64{0, 0, 0, 4, 1}, b.GatherAll().DataP)
}

func TestPoissonParallel(t *testing.T) {
	ref, err := NewPoisson(1, 8, 0, 1, func(x float64) float64 { return 1 }, 0, 1)
	assert.NoError(t, err)
	assert.NoError(t, ref.Assemble())

	par, err := NewPoisson(4, 8, 0, 1, func(x float64) float64 { return 1 }, 0, 1)
	assert.NoError(t, err)
	assert.NoError(t, par.Assemble())

	var (
		Ar = ref.A.(*la.SparseMatrix)
		Ap = par.A.(*la.SparseMatrix)
	)
	for i := 0; i < 9; i++ {
		for j := 0; j < 9; j++ {
			assert.Equal(t, Ar.At(i, j), Ap.At(i, j), "entry (%d,%d)", i, j)
		}
	}
	assert.Equal(t,
		ref.B.(*la.GhostVector).GatherAll().DataP,
		par.B.(*la.GhostVector).GatherAll().DataP)
}

func TestSpaces(t *testing.T) {
	var (
		comm = utils.NewComm(1)
		m    = mesh.NewInterval(comm, 4, 0, 1)
		V    = P1Space(m)
		Q    = P0Space(m)
	)
	assert.Equal(t, 1, V.Element().Degree)
	assert.Equal(t, 5, V.DofMap().IndexMap(0).GlobalSize)
	assert.Equal(t, 4, Q.DofMap().IndexMap(0).GlobalSize)
	assert.True(t, V.Contains(V.SubSpace()))
	assert.False(t, V.Contains(Q))
}
