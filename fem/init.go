package fem

import (
	"fmt"

	"github.com/tianyikillua/dolfinx/la"
)

// Allocation of global tensors from a block form collection. The sparsity
// capacity comes from the per-rank index maps of the forms' function spaces;
// the layout is fixed at allocation and discovered by the assembler at run
// time.

// InitMatrix allocates a single-layout matrix sized by the row and column
// spaces of one bilinear form.
func InitMatrix(a *Form) *la.SparseMatrix {
	return la.NewSparseMatrix(a.Mesh().Comm(),
		a.FunctionSpace(0).DofMap().IndexMaps(),
		a.FunctionSpace(1).DofMap().IndexMaps())
}

// InitNestMatrix allocates one physical sub-matrix per non-nil block.
func InitNestMatrix(a [][]*Form) (A *la.NestMatrix, err error) {
	if err = checkBlockShape(a); err != nil {
		return nil, err
	}
	A = la.NewNestMatrix(len(a), len(a[0]))
	for i := range a {
		for j, aij := range a[i] {
			if aij == nil {
				continue
			}
			A.Blocks[i][j] = InitMatrix(aij)
		}
	}
	return
}

// InitMonolithicMatrix allocates one physical matrix over the combined
// numbering of the block row and column spaces. Every diagonal block must be
// present to pin the field's owned ranges.
func InitMonolithicMatrix(a [][]*Form) (A *la.SparseMatrix, err error) {
	if err = checkBlockShape(a); err != nil {
		return nil, err
	}
	rowMaps, colMaps, err := blockMaps(a)
	if err != nil {
		return nil, err
	}
	comm := a[0][0].Mesh().Comm()
	A = la.NewMonolithicMatrix(comm, la.CombinedMaps(rowMaps), la.CombinedMaps(colMaps))
	return
}

// InitVector allocates a single-layout vector sized by the space of one
// linear form.
func InitVector(l *Form) *la.GhostVector {
	return la.NewGhostVector(l.Mesh().Comm(), l.FunctionSpace(0).DofMap().IndexMaps())
}

// InitNestVector allocates one physical sub-vector per non-nil form.
func InitNestVector(l []*Form) (b *la.NestVector, err error) {
	if len(l) == 0 {
		return nil, fmt.Errorf("empty form collection")
	}
	b = la.NewNestVector(len(l))
	for i, li := range l {
		if li == nil {
			continue
		}
		b.Vs[i] = InitVector(li)
	}
	return
}

// InitMonolithicVector allocates one physical vector over the combined
// numbering of the block spaces. Every block must be present.
func InitMonolithicVector(l []*Form) (b *la.GhostVector, err error) {
	maps, err := vectorMaps(l)
	if err != nil {
		return nil, err
	}
	return la.NewMonolithicVector(l[0].Mesh().Comm(), la.CombinedMaps(maps)), nil
}

func checkBlockShape(a [][]*Form) error {
	if len(a) == 0 || len(a[0]) == 0 {
		return fmt.Errorf("empty block form collection")
	}
	for i := range a {
		if len(a[i]) != len(a[0]) {
			return fmt.Errorf("ragged block form collection: row %d has %d blocks, row 0 has %d",
				i, len(a[i]), len(a[0]))
		}
	}
	return nil
}

// blockMaps derives the per-field, per-rank index maps of the block row
// and column spaces, indexed [field][rank]. A nil diagonal block is a
// structural error - the combined numbering needs every field's extent.
func blockMaps(a [][]*Form) (rowMaps, colMaps [][]*la.IndexMap, err error) {
	rowMaps = make([][]*la.IndexMap, len(a))
	colMaps = make([][]*la.IndexMap, len(a[0]))
	for i := range a {
		if a[i][i] == nil {
			return nil, nil, fmt.Errorf("nil diagonal block (%d,%d) in monolithic layout", i, i)
		}
	}
	for i := range a {
		rowMaps[i] = a[i][i].FunctionSpace(0).DofMap().IndexMaps()
		colMaps[i] = a[i][i].FunctionSpace(1).DofMap().IndexMaps()
	}
	return
}

func vectorMaps(l []*Form) (maps [][]*la.IndexMap, err error) {
	if len(l) == 0 {
		return nil, fmt.Errorf("empty form collection")
	}
	maps = make([][]*la.IndexMap, len(l))
	for i, li := range l {
		if li == nil {
			return nil, fmt.Errorf("nil block %d in monolithic layout", i)
		}
		maps[i] = li.FunctionSpace(0).DofMap().IndexMaps()
	}
	return
}
