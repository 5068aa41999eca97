package Poisson1D

import (
	"fmt"

	"github.com/tianyikillua/dolfinx/fem"
	"github.com/tianyikillua/dolfinx/la"
	"github.com/tianyikillua/dolfinx/mesh"
	"github.com/tianyikillua/dolfinx/utils"
)

// Poisson assembles the 1D Poisson problem -u'' = f on [XMin,XMax] with
// Dirichlet values at both ends, discretized with continuous piecewise
// linear elements. It is the reference driver for the assembly engine; the
// solve itself is left to a downstream solver.
type Poisson struct {
	Comm *utils.Comm
	Mesh *mesh.Interval
	V    *fem.FunctionSpace

	Asm *fem.Assembler
	A   la.GlobalMatrix
	B   la.GlobalVector
}

func NewPoisson(NP, K int, xmin, xmax float64, source func(x float64) float64,
	uLeft, uRight float64) (c *Poisson, err error) {
	var (
		comm = utils.NewComm(NP)
		m    = mesh.NewInterval(comm, K, xmin, xmax)
	)
	c = &Poisson{
		Comm: comm,
		Mesh: m,
		V:    P1Space(m),
	}
	a, err := fem.NewForm(fem.KernelFunc(StiffnessKernel), c.V, c.V)
	if err != nil {
		return nil, err
	}
	l, err := fem.NewForm(fem.KernelFunc(LoadKernel), c.V)
	if err != nil {
		return nil, err
	}
	f := fem.NewFunction(c.V)
	f.Interpolate(source)
	if err = l.SetCoefficient("f", f); err != nil {
		return nil, err
	}
	bcs := []*fem.DirichletBC{
		fem.NewConstantBC(c.V, uLeft, func(x float64) bool { return x == xmin }, fem.Topological),
		fem.NewConstantBC(c.V, uRight, func(x float64) bool { return x == xmax }, fem.Topological),
	}
	if c.Asm, err = fem.NewAssembler([][]*fem.Form{{a}}, []*fem.Form{l}, bcs); err != nil {
		return nil, err
	}
	return
}

// Assemble produces the reduced system: stiffness matrix with identity rows
// at the constrained end nodes, load vector with the lifting term applied
// and the end values set.
func (c *Poisson) Assemble() (err error) {
	c.A, c.B, err = c.Asm.AssembleSystem(nil, nil, la.LayoutSingle)
	return
}

func (c *Poisson) Print() {
	nr, nc := c.A.Dims()
	fmt.Printf("assembled %dx%d system on %d cells, %d ranks\n",
		nr, nc, c.Mesh.NumCells(), c.Comm.Size())
	if nr > 16 {
		return
	}
	A, okA := c.A.(*la.SparseMatrix)
	b, okB := c.B.(*la.GhostVector)
	if !okA || !okB {
		return
	}
	M := utils.NewMatrix(nr, nc)
	for i := 0; i < nr; i++ {
		for j := 0; j < nc; j++ {
			M.Set(i, j, A.At(i, j))
		}
	}
	fmt.Print(M.Print("A"))
	fmt.Print(b.GatherAll().Print("b"))
}

// P1Space is the continuous piecewise linear scalar space over m.
func P1Space(m *mesh.Interval) *fem.FunctionSpace {
	return fem.NewFunctionSpace(m, &fem.Element{
		Signature: "Lagrange,1,interval",
		Degree:    1,
		NDofs:     2,
	}, mesh.NewDofMap(m, 1))
}

// P0Space is the piecewise constant scalar space over m.
func P0Space(m *mesh.Interval) *fem.FunctionSpace {
	return fem.NewFunctionSpace(m, &fem.Element{
		Signature: "Discontinuous Lagrange,0,interval",
		Degree:    0,
		NDofs:     1,
	}, mesh.NewDofMap(m, 0))
}

// StiffnessKernel tabulates the P1 stiffness tensor (1/h)*[[1,-1],[-1,1]].
func StiffnessKernel(Ae []float64, w [][]float64, X utils.Matrix) {
	h := X.At(1, 0) - X.At(0, 0)
	Ae[0], Ae[1] = 1./h, -1./h
	Ae[2], Ae[3] = -1./h, 1./h
}

// MassKernel tabulates the consistent P1 mass tensor (h/6)*[[2,1],[1,2]].
func MassKernel(Ae []float64, w [][]float64, X utils.Matrix) {
	h := X.At(1, 0) - X.At(0, 0)
	Ae[0], Ae[1] = h/3., h/6.
	Ae[2], Ae[3] = h/6., h/3.
}

// LoadKernel tabulates the P1 load vector with vertex quadrature,
// (h/2)*f(x_i). The first coefficient carries the cell values of f; with no
// coefficient bound the source defaults to one.
func LoadKernel(be []float64, w [][]float64, X utils.Matrix) {
	h := X.At(1, 0) - X.At(0, 0)
	f0, f1 := 1., 1.
	if len(w) > 0 {
		f0, f1 = w[0][0], w[0][1]
	}
	be[0] = h / 2. * f0
	be[1] = h / 2. * f1
}

// DivKernel tabulates the mixed P1-P0 coupling -integral(q div u), the
// (pressure, velocity) block of a mixed system: be entries -1 and +1 per
// cell.
func DivKernel(Ae []float64, w [][]float64, X utils.Matrix) {
	Ae[0], Ae[1] = -1., 1.
}
