package fem

import (
	"fmt"

	"github.com/tianyikillua/dolfinx/la"
	"github.com/tianyikillua/dolfinx/utils"
)

// Mesh is the mesh collaborator capability: a stable enumeration of locally
// owned cells per rank (ghost cells excluded) and per-cell coordinate data
// in a fixed row-major layout.
type Mesh interface {
	Dim() int
	NumCells() int
	OwnedCells(np int) []int
	CellCoordinates(k int) utils.Matrix
	Comm() *utils.Comm
}

// DofMap is the dof-numbering collaborator: ordered cell-local dof lists,
// consistent between matrix row/column and vector lookups, plus the per-rank
// index maps.
type DofMap interface {
	CellDofs(np, k int) utils.Index
	NumDofsPerCell() int
	IndexMap(np int) *la.IndexMap
	IndexMaps() []*la.IndexMap
	DofCoordinates(np int) []float64
}

// Element identifies the finite element realized by a function space.
type Element struct {
	Signature string
	Degree    int
	NDofs     int // per cell
}

// FunctionSpace is the discretization a field's dofs are defined on: a mesh,
// an element and a dof map.
type FunctionSpace struct {
	mesh    Mesh
	element *Element
	dofmap  DofMap
	parent  *FunctionSpace // non-nil for a component sub-space
}

func NewFunctionSpace(mesh Mesh, element *Element, dofmap DofMap) (V *FunctionSpace) {
	V = &FunctionSpace{
		mesh:    mesh,
		element: element,
		dofmap:  dofmap,
	}
	return
}

func (V *FunctionSpace) Mesh() Mesh        { return V.mesh }
func (V *FunctionSpace) Element() *Element { return V.element }
func (V *FunctionSpace) DofMap() DofMap    { return V.dofmap }

// Contains reports whether W is V itself or a component sub-space of V.
func (V *FunctionSpace) Contains(W *FunctionSpace) bool {
	for ; W != nil; W = W.parent {
		if W == V {
			return true
		}
	}
	return false
}

// SubSpace derives a component view of V sharing its mesh and dof map.
func (V *FunctionSpace) SubSpace() (W *FunctionSpace) {
	W = &FunctionSpace{
		mesh:    V.mesh,
		element: V.element,
		dofmap:  V.dofmap,
		parent:  V,
	}
	return
}

// Function is a discrete field over a function space, used as a form
// coefficient.
type Function struct {
	V *FunctionSpace
	X *la.GhostVector
}

func NewFunction(V *FunctionSpace) (f *Function) {
	f = &Function{
		V: V,
		X: la.NewGhostVector(V.Mesh().Comm(), V.DofMap().IndexMaps()),
	}
	return
}

// Interpolate fills the local dof values (owned and ghost) from a pointwise
// expression of the dof coordinate.
func (f *Function) Interpolate(g func(x float64) float64) {
	for np := 0; np < f.V.Mesh().Comm().Size(); np++ {
		x := f.V.DofMap().DofCoordinates(np)
		buf := f.X.Local(np)
		for l, xl := range x {
			buf[l] = g(xl)
		}
	}
}

// CellValues packs the coefficient's dof values on cell k for the local
// kernel.
func (f *Function) CellValues(np, k int) (w []float64) {
	var (
		dofs = f.V.DofMap().CellDofs(np, k)
		buf  = f.X.Local(np)
	)
	w = make([]float64, len(dofs))
	for i, d := range dofs {
		w[i] = buf[d]
	}
	return
}

func checkSameMesh(mesh Mesh, other Mesh, what string) error {
	if other != mesh {
		return fmt.Errorf("%s is defined on a different mesh", what)
	}
	return nil
}
