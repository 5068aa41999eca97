package fem_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tianyikillua/dolfinx/fem"
	"github.com/tianyikillua/dolfinx/la"
	"github.com/tianyikillua/dolfinx/mesh"
	"github.com/tianyikillua/dolfinx/model_problems/Poisson1D"
	"github.com/tianyikillua/dolfinx/utils"
)

// poissonForms builds the stiffness and load forms of -u'' = 1 on [0,1]
// with K cells across NP ranks.
func poissonForms(t *testing.T, NP, K int) (V *fem.FunctionSpace, a, l *fem.Form) {
	t.Helper()
	var (
		comm = utils.NewComm(NP)
		m    = mesh.NewInterval(comm, K, 0, 1)
		err  error
	)
	V = Poisson1D.P1Space(m)
	a, err = fem.NewForm(fem.KernelFunc(Poisson1D.StiffnessKernel), V, V)
	assert.NoError(t, err)
	l, err = fem.NewForm(fem.KernelFunc(Poisson1D.LoadKernel), V)
	assert.NoError(t, err)
	return
}

func endBCs(V *fem.FunctionSpace, uLeft, uRight float64) []*fem.DirichletBC {
	return []*fem.DirichletBC{
		fem.NewConstantBC(V, uLeft, func(x float64) bool { return x == 0 }, fem.Topological),
		fem.NewConstantBC(V, uRight, func(x float64) bool { return x == 1 }, fem.Topological),
	}
}

func dense(A *la.SparseMatrix) [][]float64 {
	nr, nc := A.Dims()
	out := make([][]float64, nr)
	for i := 0; i < nr; i++ {
		out[i] = make([]float64, nc)
		for j := 0; j < nc; j++ {
			out[i][j] = A.At(i, j)
		}
	}
	return out
}

func TestPoissonSingle(t *testing.T) {
	V, a, l := poissonForms(t, 1, 4)
	asm, err := fem.NewAssembler([][]*fem.Form{{a}}, []*fem.Form{l}, endBCs(V, 0, 1))
	assert.NoError(t, err)

	A, err := asm.AssembleMatrix(nil, la.LayoutSingle)
	assert.NoError(t, err)
	assert.Equal(t, la.LayoutSingle, A.Layout())

	// h = 1/4: interior stencil (1/h)*[-1,2,-1], identity rows at both ends
	expected := [][]float64{
		{1, 0, 0, 0, 0},
		{0, 8, -4, 0, 0},
		{0, -4, 8, -4, 0},
		{0, 0, -4, 8, 0},
		{0, 0, 0, 0, 1},
	}
	assert.Equal(t, expected, dense(A.(*la.SparseMatrix)))

	// Load vector before any boundary treatment: h/2 per cell vertex
	b, err := asm.AssembleVector(nil, la.LayoutSingle)
	assert.NoError(t, err)
	bv := b.(*la.GhostVector)
	assert.Equal(t, []float64{0.125, 0.25, 0.25, 0.25, 0.125}, bv.GatherAll().DataP)

	// Lifting: b -= A_col(j)*v over constrained columns. Only the right end
	// (v=1) contributes: the last cell's column adds +4 at node 3, -4 at
	// node 4.
	assert.NoError(t, asm.ApplyBC(b))
	assert.Equal(t, []float64{0.125, 0.25, 0.25, 4.25, -3.875}, bv.GatherAll().DataP)

	// Direct set overwrites the constrained entries
	assert.NoError(t, asm.SetBC(b))
	assert.Equal(t, []float64{0, 0.25, 0.25, 4.25, 1}, bv.GatherAll().DataP)
}

func TestPoissonParallelMatchesSerial(t *testing.T) {
	var (
		K       = 12
		refA    [][]float64
		refB    []float64
	)
	for _, NP := range []int{1, 2, 3, 4} {
		V, a, l := poissonForms(t, NP, K)
		asm, err := fem.NewAssembler([][]*fem.Form{{a}}, []*fem.Form{l}, endBCs(V, 0, 1))
		assert.NoError(t, err)
		A, b, err := asm.AssembleSystem(nil, nil, la.LayoutSingle)
		assert.NoError(t, err)
		gotA := dense(A.(*la.SparseMatrix))
		gotB := b.(*la.GhostVector).GatherAll().DataP
		if NP == 1 {
			refA, refB = gotA, gotB
			continue
		}
		assert.Equal(t, refA, gotA, "matrix mismatch at NP=%d", NP)
		assert.Equal(t, refB, gotB, "vector mismatch at NP=%d", NP)
	}
}

func TestAdditivity(t *testing.T) {
	_, a, _ := poissonForms(t, 1, 4)
	asm, err := fem.NewAssembler([][]*fem.Form{{a}}, nil, nil)
	assert.NoError(t, err)

	A, err := asm.AssembleMatrix(nil, la.LayoutSingle)
	assert.NoError(t, err)
	once := dense(A.(*la.SparseMatrix))

	// Assembling again into the same target accumulates
	_, err = asm.AssembleMatrix(A, la.LayoutSingle)
	assert.NoError(t, err)
	twice := dense(A.(*la.SparseMatrix))
	for i := range once {
		for j := range once[i] {
			assert.Equal(t, 2*once[i][j], twice[i][j])
		}
	}

	// Idempotent finalize: a further Apply changes nothing
	A.Apply(la.Final)
	assert.Equal(t, twice, dense(A.(*la.SparseMatrix)))
}

// mixedForms builds a 2x2 (P1, P0) block system on K cells: stiffness on
// the diagonal (0,0), P0 mass on (1,1) and div couplings off the diagonal.
func mixedForms(t *testing.T, NP, K int) (V, Q *fem.FunctionSpace, a [][]*fem.Form, l []*fem.Form) {
	t.Helper()
	var (
		comm = utils.NewComm(NP)
		m    = mesh.NewInterval(comm, K, 0, 1)
	)
	V, Q = Poisson1D.P1Space(m), Poisson1D.P0Space(m)
	massP0 := fem.KernelFunc(func(Ae []float64, w [][]float64, X utils.Matrix) {
		Ae[0] = X.At(1, 0) - X.At(0, 0)
	})
	loadP0 := fem.KernelFunc(func(be []float64, w [][]float64, X utils.Matrix) {
		be[0] = X.At(1, 0) - X.At(0, 0)
	})
	div := fem.KernelFunc(Poisson1D.DivKernel)

	a00, err := fem.NewForm(fem.KernelFunc(Poisson1D.StiffnessKernel), V, V)
	assert.NoError(t, err)
	a01, err := fem.NewForm(div, V, Q)
	assert.NoError(t, err)
	a10, err := fem.NewForm(div, Q, V)
	assert.NoError(t, err)
	a11, err := fem.NewForm(massP0, Q, Q)
	assert.NoError(t, err)
	l0, err := fem.NewForm(fem.KernelFunc(Poisson1D.LoadKernel), V)
	assert.NoError(t, err)
	l1, err := fem.NewForm(loadP0, Q)
	assert.NoError(t, err)

	a = [][]*fem.Form{{a00, a01}, {a10, a11}}
	l = []*fem.Form{l0, l1}
	return
}

func TestBlockNestedVsMonolithic(t *testing.T) {
	var (
		K      = 4
		m0, m1 = 5, 4 // P1 and P0 dof counts
	)
	V, _, a, l := mixedForms(t, 1, K)
	bcs := []*fem.DirichletBC{
		fem.NewConstantBC(V, 2, func(x float64) bool { return x == 0 }, fem.Topological),
	}

	asmN, err := fem.NewAssembler(a, l, bcs)
	assert.NoError(t, err)
	AN, bN, err := asmN.AssembleSystem(nil, nil, la.LayoutNested)
	assert.NoError(t, err)
	nest := AN.(*la.NestMatrix)

	V2, _, a2, l2 := mixedForms(t, 1, K)
	bcs2 := []*fem.DirichletBC{
		fem.NewConstantBC(V2, 2, func(x float64) bool { return x == 0 }, fem.Topological),
	}
	asmM, err := fem.NewAssembler(a2, l2, bcs2)
	assert.NoError(t, err)
	AM, bM, err := asmM.AssembleSystem(nil, nil, la.LayoutMonolithic)
	assert.NoError(t, err)
	mono := AM.(*la.SparseMatrix)

	nr, nc := AM.Dims()
	assert.Equal(t, m0+m1, nr)
	assert.Equal(t, m0+m1, nc)

	// Entry from block (i,j) at local (r,c) lands at the block offsets of
	// the combined numbering; each block matches its nested counterpart.
	offs := []int{0, m0}
	for bi := 0; bi < 2; bi++ {
		for bj := 0; bj < 2; bj++ {
			blk := nest.Block(bi, bj)
			br, bc := blk.Dims()
			for r := 0; r < br; r++ {
				for c := 0; c < bc; c++ {
					assert.Equal(t, blk.At(r, c), mono.At(offs[bi]+r, offs[bj]+c),
						"block (%d,%d) entry (%d,%d)", bi, bj, r, c)
				}
			}
		}
	}

	// Dirichlet elimination on the (0,0) diagonal block: unit diagonal in
	// both layouts
	assert.Equal(t, 1., nest.Block(0, 0).At(0, 0))
	assert.Equal(t, 1., mono.At(0, 0))

	// Vectors agree blockwise, and the constrained entry carries the set
	// value
	var (
		nb0 = bN.(*la.NestVector).Block(0).GatherAll().DataP
		nb1 = bN.(*la.NestVector).Block(1).GatherAll().DataP
		mb  = bM.(*la.GhostVector).GatherAll().DataP
	)
	assert.Equal(t, nb0, mb[:m0])
	assert.Equal(t, nb1, mb[m0:])
	assert.Equal(t, 2., mb[0])
}

func TestStructuralErrors(t *testing.T) {
	_, _, a, l := mixedForms(t, 1, 4)

	// Ragged block shape
	_, err := fem.NewAssembler([][]*fem.Form{{a[0][0], a[0][1]}, {a[1][0]}}, nil, nil)
	assert.Error(t, err)

	// A linear form in a bilinear slot
	_, err = fem.NewAssembler([][]*fem.Form{{l[0]}}, nil, nil)
	assert.Error(t, err)

	// Single layout for a multi-block collection
	asm, err := fem.NewAssembler(a, l, nil)
	assert.NoError(t, err)
	_, err = asm.AssembleMatrix(nil, la.LayoutSingle)
	assert.Error(t, err)
	_, err = asm.AssembleVector(nil, la.LayoutSingle)
	assert.Error(t, err)

	// Nil diagonal block in the monolithic layout
	asm, err = fem.NewAssembler([][]*fem.Form{{nil, a[0][1]}, {a[1][0], a[1][1]}}, nil, nil)
	assert.NoError(t, err)
	_, err = asm.AssembleMatrix(nil, la.LayoutMonolithic)
	assert.Error(t, err)

	// Nil diagonal is fine for the nested layout
	_, err = asm.AssembleMatrix(nil, la.LayoutNested)
	assert.NoError(t, err)
}

func TestFormConsistency(t *testing.T) {
	var (
		comm1 = utils.NewComm(1)
		comm2 = utils.NewComm(1)
		m1    = mesh.NewInterval(comm1, 4, 0, 1)
		m2    = mesh.NewInterval(comm2, 4, 0, 1)
		V1    = Poisson1D.P1Space(m1)
		V2    = Poisson1D.P1Space(m2)
	)
	// Mixed meshes across a form's spaces
	_, err := fem.NewForm(fem.KernelFunc(Poisson1D.StiffnessKernel), V1, V2)
	assert.Error(t, err)

	// Coefficient on a different mesh
	l, err := fem.NewForm(fem.KernelFunc(Poisson1D.LoadKernel), V1)
	assert.NoError(t, err)
	assert.Error(t, l.SetCoefficient("f", fem.NewFunction(V2)))

	// Domain markers on a different mesh
	assert.Error(t, l.SetCellDomains(fem.NewCellDomains(m2, []int{0})))

	// Element signature mismatch surfaces before any cell loop
	a, err := fem.NewForm(fem.KernelFunc(Poisson1D.StiffnessKernel), V1, V1)
	assert.NoError(t, err)
	a.SetExpectedSignatures("Lagrange,2,interval", "Lagrange,2,interval")
	_, err = fem.NewAssembler([][]*fem.Form{{a}}, nil, nil)
	assert.Error(t, err)
}

func TestCellDomainRestriction(t *testing.T) {
	V, a, _ := poissonForms(t, 1, 4)
	assert.NoError(t, a.SetCellDomains(fem.NewCellDomains(V.Mesh(), []int{0})))
	asm, err := fem.NewAssembler([][]*fem.Form{{a}}, nil, nil)
	assert.NoError(t, err)
	A, err := asm.AssembleMatrix(nil, la.LayoutSingle)
	assert.NoError(t, err)

	// Only cell 0 contributes: a lone 2x2 stiffness block at the origin
	got := dense(A.(*la.SparseMatrix))
	assert.Equal(t, 4., got[0][0])
	assert.Equal(t, -4., got[0][1])
	assert.Equal(t, 4., got[1][1])
	assert.Equal(t, 0., got[2][2])
}

func TestCoefficientInterpolation(t *testing.T) {
	V, _, l := poissonForms(t, 1, 4)
	f := fem.NewFunction(V)
	f.Interpolate(func(x float64) float64 { return x })
	assert.NoError(t, l.SetCoefficient("f", f))

	asm, err := fem.NewAssembler(nil, []*fem.Form{l}, nil)
	assert.NoError(t, err)
	b, err := asm.AssembleVector(nil, la.LayoutSingle)
	assert.NoError(t, err)

	// Vertex-quadrature load with f(x)=x: node i collects h/2 * x_i per
	// adjacent cell
	assert.Equal(t, []float64{0, 0.0625, 0.125, 0.1875, 0.125},
		b.(*la.GhostVector).GatherAll().DataP)
}
