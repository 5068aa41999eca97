package la

import "fmt"

// NestMatrix is the nested block layout: one independently assemblable
// physical sub-matrix per non-nil block.
type NestMatrix struct {
	Blocks [][]*SparseMatrix
}

func NewNestMatrix(nr, nc int) (A *NestMatrix) {
	A = &NestMatrix{
		Blocks: make([][]*SparseMatrix, nr),
	}
	for i := range A.Blocks {
		A.Blocks[i] = make([]*SparseMatrix, nc)
	}
	return
}

func (A *NestMatrix) Layout() Layout { return LayoutNested }

// Dims sums row heights from the first non-nil block of each block row and
// column widths from the first non-nil block of each block column.
func (A *NestMatrix) Dims() (nr, nc int) {
	for i := range A.Blocks {
		for j := range A.Blocks[i] {
			if A.Blocks[i][j] != nil {
				r, _ := A.Blocks[i][j].Dims()
				nr += r
				break
			}
		}
	}
	if len(A.Blocks) > 0 {
		for j := range A.Blocks[0] {
			for i := range A.Blocks {
				if A.Blocks[i][j] != nil {
					_, c := A.Blocks[i][j].Dims()
					nc += c
					break
				}
			}
		}
	}
	return
}

// Block returns the physical sub-matrix for block (i, j), nil for an absent
// coupling.
func (A *NestMatrix) Block(i, j int) *SparseMatrix {
	if i < 0 || i >= len(A.Blocks) || j < 0 || j >= len(A.Blocks[i]) {
		panic(fmt.Errorf("block (%d,%d) out of range", i, j))
	}
	return A.Blocks[i][j]
}

// Apply finalizes every non-nil sub-object.
func (A *NestMatrix) Apply(t AssemblyType) {
	for i := range A.Blocks {
		for _, blk := range A.Blocks[i] {
			if blk != nil {
				blk.Apply(t)
			}
		}
	}
}

// NestVector is the nested block layout for vectors.
type NestVector struct {
	Vs []*GhostVector
}

func NewNestVector(n int) (b *NestVector) {
	return &NestVector{Vs: make([]*GhostVector, n)}
}

func (b *NestVector) Layout() Layout { return LayoutNested }

func (b *NestVector) Size() (n int) {
	for _, v := range b.Vs {
		if v != nil {
			n += v.Size()
		}
	}
	return
}

// Block returns the physical sub-vector for block i.
func (b *NestVector) Block(i int) *GhostVector {
	if i < 0 || i >= len(b.Vs) {
		panic(fmt.Errorf("block %d out of range", i))
	}
	return b.Vs[i]
}

func (b *NestVector) Apply() {
	for _, v := range b.Vs {
		if v != nil {
			v.Apply()
		}
	}
}
