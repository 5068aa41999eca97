package fem

import (
	"github.com/tianyikillua/dolfinx/utils"
)

// Method selects how a Dirichlet condition locates its constrained dofs.
// Pointwise matching needs no cross-rank exchange; the other methods require
// gathering so that every rank sees the complete constrained set.
type Method uint8

const (
	Topological Method = iota
	Geometric
	Pointwise
)

func (m Method) String() string {
	switch m {
	case Topological:
		return "topological"
	case Geometric:
		return "geometric"
	case Pointwise:
		return "pointwise"
	}
	return "unknown"
}

// bcValue carries one constrained dof across ranks during a gather.
type bcValue struct {
	Dof int // global index
	V   float64
}

// DirichletBC fixes the dofs of a function space located by a boundary
// predicate to prescribed values. The constrained-dof map is derived lazily
// per assembly call - dof numbering can change with re-discretization, so
// nothing is cached across calls.
type DirichletBC struct {
	V      *FunctionSpace
	method Method
	value  func(x float64) float64
	where  func(x float64) bool
}

func NewDirichletBC(V *FunctionSpace, value func(x float64) float64,
	where func(x float64) bool, method Method) (bc *DirichletBC) {
	bc = &DirichletBC{
		V:      V,
		method: method,
		value:  value,
		where:  where,
	}
	return
}

// NewConstantBC fixes the located dofs to a single value.
func NewConstantBC(V *FunctionSpace, val float64, where func(x float64) bool,
	method Method) *DirichletBC {
	return NewDirichletBC(V, func(float64) float64 { return val }, where, method)
}

func (bc *DirichletBC) FunctionSpace() *FunctionSpace { return bc.V }
func (bc *DirichletBC) Method() Method                { return bc.method }

// BoundaryValues merges this condition's rank-local constrained-dof to value
// mapping into bvs, scanning owned and ghost dof coordinates.
func (bc *DirichletBC) BoundaryValues(np int, bvs map[int]float64) {
	x := bc.V.DofMap().DofCoordinates(np)
	for l, xl := range x {
		if bc.where(xl) {
			bvs[l] = bc.value(xl)
		}
	}
}

// Gather broadcasts the owned constrained dofs of every rank so that each
// rank's map covers constraints defined elsewhere. Blocking collective; all
// ranks must participate.
func (bc *DirichletBC) Gather(np int, comm *utils.Comm, mb *utils.MailBox[bcValue],
	bvs map[int]float64) {
	im := bc.V.DofMap().IndexMap(np)
	for l, v := range bvs {
		if im.IsOwned(l) {
			mb.PostMessageToAll(np, bcValue{Dof: im.LocalToGlobal(l), V: v})
		}
	}
	mb.DeliverMyMessages(np)
	comm.Barrier()
	for _, p := range mb.ReceiveMyMessages(np) {
		if l, ok := im.GlobalToLocal(p.Dof); ok {
			bvs[l] = p.V
		}
	}
	comm.Barrier()
}
