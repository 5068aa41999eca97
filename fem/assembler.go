package fem

import (
	"fmt"
	"sync"

	"github.com/tianyikillua/dolfinx/la"
	"github.com/tianyikillua/dolfinx/utils"
)

// Assembler drives block-aware assembly of a bilinear form collection
// a[i][j] and a linear form collection l[i] into global matrix and vector
// objects. The target's runtime layout, discovered once per call, selects
// the orchestration: nested assembles each physical sub-object on its own,
// monolithic routes every block through a logical sub-view of one physical
// object, single runs the unblocked core directly.
//
// The assembler only reads forms, boundary conditions and index maps; the
// sole state it mutates is the target, through additive insertion plus the
// overwriting unit diagonal of constrained rows.
type Assembler struct {
	a    [][]*Form       // bilinear blocks, nil means no coupling
	l    []*Form         // linear blocks, nil means no contribution
	bcs  []*DirichletBC
	comm *utils.Comm
}

// NewAssembler validates the block form collection: rectangular shape,
// correct form ranks, one shared communicator, and row/column space
// consistency across blocks. Structural mistakes surface here, before any
// allocation or cell loop.
func NewAssembler(a [][]*Form, l []*Form, bcs []*DirichletBC) (asm *Assembler, err error) {
	if len(a) == 0 && len(l) == 0 {
		return nil, fmt.Errorf("assembler needs at least one form collection")
	}
	if len(a) != 0 {
		if err = checkBlockShape(a); err != nil {
			return nil, err
		}
		if len(l) != 0 && len(l) != len(a) {
			return nil, fmt.Errorf("block row count mismatch: %d bilinear rows, %d linear forms",
				len(a), len(l))
		}
	}
	asm = &Assembler{a: a, l: l, bcs: bcs}
	for i := range a {
		for j, aij := range a[i] {
			if aij == nil {
				continue
			}
			if aij.Rank() != 2 {
				return nil, fmt.Errorf("block (%d,%d) is not a bilinear form", i, j)
			}
			if err = aij.Check(); err != nil {
				return nil, err
			}
			if rs := asm.rowSpace(i); rs != nil && aij.FunctionSpace(0) != rs {
				return nil, fmt.Errorf("block (%d,%d) disagrees on the row space of field %d", i, j, i)
			}
			if cs := asm.colSpace(j); cs != nil && aij.FunctionSpace(1) != cs {
				return nil, fmt.Errorf("block (%d,%d) disagrees on the column space of field %d", i, j, j)
			}
			asm.adoptComm(aij.Mesh().Comm())
		}
	}
	for i, li := range l {
		if li == nil {
			continue
		}
		if li.Rank() != 1 {
			return nil, fmt.Errorf("linear form %d is not rank 1", i)
		}
		if err = li.Check(); err != nil {
			return nil, err
		}
		if len(a) != 0 {
			if rs := matrixRowSpace(a[i]); rs != nil && li.FunctionSpace(0) != rs {
				return nil, fmt.Errorf("linear form %d disagrees on the space of field %d", i, i)
			}
		}
		asm.adoptComm(li.Mesh().Comm())
	}
	if asm.comm == nil {
		return nil, fmt.Errorf("form collection holds no forms")
	}
	return
}

func (asm *Assembler) adoptComm(c *utils.Comm) {
	if asm.comm == nil {
		asm.comm = c
	}
}

// rowSpace resolves the function space of block row i from the first
// available form, nil when the row is structurally empty so far.
func (asm *Assembler) rowSpace(i int) *FunctionSpace {
	if len(asm.l) > i && asm.l[i] != nil {
		return asm.l[i].FunctionSpace(0)
	}
	if len(asm.a) > i {
		return matrixRowSpace(asm.a[i])
	}
	return nil
}

func matrixRowSpace(row []*Form) *FunctionSpace {
	for _, aij := range row {
		if aij != nil {
			return aij.FunctionSpace(0)
		}
	}
	return nil
}

func (asm *Assembler) colSpace(j int) *FunctionSpace {
	for i := range asm.a {
		if asm.a[i][j] != nil {
			return asm.a[i][j].FunctionSpace(1)
		}
	}
	return nil
}

// AssembleMatrix assembles the bilinear form collection into A. A nil A is
// allocated from the collection and the layout hint; a 1x1 collection always
// collapses to the single layout. The returned matrix is finalized.
func (asm *Assembler) AssembleMatrix(A la.GlobalMatrix, hint la.Layout) (la.GlobalMatrix, error) {
	if len(asm.a) == 0 {
		return nil, fmt.Errorf("assembler has no bilinear forms")
	}
	var (
		nr, nc = len(asm.a), len(asm.a[0])
		err    error
	)
	if A == nil {
		if A, err = asm.allocMatrix(hint, nr, nc); err != nil {
			return nil, err
		}
	}
	switch A.Layout() {
	case la.LayoutNested:
		At, ok := A.(*la.NestMatrix)
		if !ok {
			return nil, fmt.Errorf("nested layout requires a nest matrix, have %T", A)
		}
		for i := range asm.a {
			for j, aij := range asm.a[i] {
				if aij == nil {
					continue
				}
				blk := At.Block(i, j)
				if blk == nil {
					return nil, fmt.Errorf("target has no physical block (%d,%d)", i, j)
				}
				asm.assembleMatrixCore(blk, aij)
				blk.Apply(la.Final)
			}
		}
		At.Apply(la.Final)
	case la.LayoutMonolithic:
		At, ok := A.(*la.SparseMatrix)
		if !ok {
			return nil, fmt.Errorf("monolithic layout requires a sparse matrix, have %T", A)
		}
		rowMaps, colMaps, err := blockMaps(asm.a)
		if err != nil {
			return nil, err
		}
		for i := range asm.a {
			for j, aij := range asm.a[i] {
				if aij == nil {
					continue
				}
				asm.assembleMatrixCore(At.SubView(i, j, rowMaps, colMaps), aij)
			}
		}
		At.Apply(la.Final)
	case la.LayoutSingle:
		if nr != 1 || nc != 1 {
			return nil, fmt.Errorf("single layout is invalid for a %dx%d block collection", nr, nc)
		}
		At, ok := A.(*la.SparseMatrix)
		if !ok {
			return nil, fmt.Errorf("single layout requires a sparse matrix, have %T", A)
		}
		if asm.a[0][0] != nil {
			asm.assembleMatrixCore(At, asm.a[0][0])
		}
		At.Apply(la.Final)
	default:
		return nil, fmt.Errorf("unknown layout %v", A.Layout())
	}
	return A, nil
}

func (asm *Assembler) allocMatrix(hint la.Layout, nr, nc int) (la.GlobalMatrix, error) {
	if nr == 1 && nc == 1 {
		if asm.a[0][0] == nil {
			return nil, fmt.Errorf("1x1 block collection holds no form")
		}
		return InitMatrix(asm.a[0][0]), nil
	}
	switch hint {
	case la.LayoutSingle:
		return nil, fmt.Errorf("single layout requested for a %dx%d block collection", nr, nc)
	case la.LayoutNested:
		return InitNestMatrix(asm.a)
	case la.LayoutMonolithic:
		return InitMonolithicMatrix(asm.a)
	}
	return nil, fmt.Errorf("unknown layout hint %v", hint)
}

// assembleMatrixCore runs the unblocked cell loop for one bilinear form into
// ins, one goroutine per rank over its owned cells. Rows and columns hit by
// a Dirichlet constraint are zeroed in the local tensor before insertion;
// when the two spaces are identical, a unit diagonal is inserted for every
// locally owned constrained dof.
func (asm *Assembler) assembleMatrixCore(ins la.MatrixInserter, a *Form) {
	var (
		NP       = asm.comm.Size()
		V0, V1   = a.FunctionSpace(0), a.FunctionSpace(1)
		nd0, nd1 = V0.DofMap().NumDofsPerCell(), V1.DofMap().NumDofsPerCell()
		diag     = V0 == V1
		mbR      = utils.NewMailBox[bcValue](NP)
		mbC      = utils.NewMailBox[bcValue](NP)
		wg       = sync.WaitGroup{}
	)
	for np := 0; np < NP; np++ {
		wg.Add(1)
		go func(np int) {
			defer wg.Done()
			rowBC := collectBoundaryValues(np, asm.comm, V0, asm.bcs, mbR)
			colBC := rowBC
			if !diag {
				colBC = collectBoundaryValues(np, asm.comm, V1, asm.bcs, mbC)
			}
			Ae := make([]float64, nd0*nd1)
			for _, k := range a.Mesh().OwnedCells(np) {
				if !a.CellActive(k) {
					continue
				}
				var (
					X    = a.Mesh().CellCoordinates(k)
					rows = V0.DofMap().CellDofs(np, k)
					cols = V1.DofMap().CellDofs(np, k)
				)
				for i := range Ae {
					Ae[i] = 0.
				}
				a.TabulateTensor(np, Ae, k, X)
				for i, r := range rows {
					if _, hit := rowBC[r]; hit {
						for j := range cols {
							Ae[i*nd1+j] = 0.
						}
					}
				}
				for j, c := range cols {
					if _, hit := colBC[c]; hit {
						for i := range rows {
							Ae[i*nd1+j] = 0.
						}
					}
				}
				ins.AddLocal(np, Ae, rows, cols)
			}
			if diag {
				var (
					im  = V0.DofMap().IndexMap(np)
					one = []float64{1.}
				)
				for d := range rowBC {
					if im.IsOwned(d) {
						ins.SetLocal(np, one, utils.Index{d}, utils.Index{d})
					}
				}
			}
		}(np)
	}
	wg.Wait()
}

// AssembleVector assembles the linear form collection into b. A nil b is
// allocated from the collection and the layout hint. No boundary zeroing
// happens here; lifting and direct value setting are the separate ApplyBC
// and SetBC steps. The returned vector is ghost-accumulated.
func (asm *Assembler) AssembleVector(b la.GlobalVector, hint la.Layout) (la.GlobalVector, error) {
	if len(asm.l) == 0 {
		return nil, fmt.Errorf("assembler has no linear forms")
	}
	var err error
	if b == nil {
		if b, err = asm.allocVector(hint); err != nil {
			return nil, err
		}
	}
	switch b.Layout() {
	case la.LayoutNested:
		bt, ok := b.(*la.NestVector)
		if !ok {
			return nil, fmt.Errorf("nested layout requires a nest vector, have %T", b)
		}
		for i, li := range asm.l {
			if li == nil {
				continue
			}
			sub := bt.Block(i)
			if sub == nil {
				return nil, fmt.Errorf("target has no physical block %d", i)
			}
			asm.eachRank(func(np int) {
				asm.assembleVectorCore(np, li, sub.Local(np))
			})
			sub.Apply()
		}
	case la.LayoutMonolithic:
		bt, ok := b.(*la.GhostVector)
		if !ok {
			return nil, fmt.Errorf("monolithic layout requires a ghost vector, have %T", b)
		}
		maps, err := vectorMaps(asm.l)
		if err != nil {
			return nil, err
		}
		for i, li := range asm.l {
			asm.eachRank(func(np int) {
				buf := make([]float64, maps[i][np].SizeAll())
				asm.assembleVectorCore(np, li, buf)
				gidx := make([]int, len(buf))
				for k := range buf {
					gidx[k] = la.CombinedGlobalIndex(maps, i, np, k)
				}
				bt.Add(np, buf, gidx)
			})
		}
		bt.Apply()
	case la.LayoutSingle:
		if len(asm.l) != 1 {
			return nil, fmt.Errorf("single layout is invalid for %d block forms", len(asm.l))
		}
		bt, ok := b.(*la.GhostVector)
		if !ok {
			return nil, fmt.Errorf("single layout requires a ghost vector, have %T", b)
		}
		if asm.l[0] != nil {
			asm.eachRank(func(np int) {
				asm.assembleVectorCore(np, asm.l[0], bt.Local(np))
			})
		}
		bt.Apply()
	default:
		return nil, fmt.Errorf("unknown layout %v", b.Layout())
	}
	return b, nil
}

func (asm *Assembler) allocVector(hint la.Layout) (la.GlobalVector, error) {
	if len(asm.l) == 1 {
		if asm.l[0] == nil {
			return nil, fmt.Errorf("block collection holds no linear form")
		}
		return InitVector(asm.l[0]), nil
	}
	switch hint {
	case la.LayoutSingle:
		return nil, fmt.Errorf("single layout requested for %d block forms", len(asm.l))
	case la.LayoutNested:
		return InitNestVector(asm.l)
	case la.LayoutMonolithic:
		return InitMonolithicVector(asm.l)
	}
	return nil, fmt.Errorf("unknown layout hint %v", hint)
}

// assembleVectorCore accumulates one linear form's owned-cell contributions
// into buf, indexed by the form space's rank-local numbering.
func (asm *Assembler) assembleVectorCore(np int, l *Form, buf []float64) {
	var (
		V  = l.FunctionSpace(0)
		nd = V.DofMap().NumDofsPerCell()
		be = make([]float64, nd)
	)
	for _, k := range l.Mesh().OwnedCells(np) {
		if !l.CellActive(k) {
			continue
		}
		X := l.Mesh().CellCoordinates(k)
		dofs := V.DofMap().CellDofs(np, k)
		for i := range be {
			be[i] = 0.
		}
		l.TabulateTensor(np, be, k, X)
		for i, d := range dofs {
			buf[d] += be[i]
		}
	}
}

// ApplyBC subtracts the lifting term from b: for every constrained column
// dof j with value v, b -= Ae_col(j)*v over the cells containing j. Cells
// with no constrained column dof skip tensor evaluation. Must run after
// AssembleVector and before SetBC.
func (asm *Assembler) ApplyBC(b la.GlobalVector) error {
	if len(asm.a) == 0 {
		return fmt.Errorf("lifting requires the bilinear form collection")
	}
	switch b.Layout() {
	case la.LayoutNested:
		bt, ok := b.(*la.NestVector)
		if !ok {
			return fmt.Errorf("nested layout requires a nest vector, have %T", b)
		}
		for i := range asm.a {
			sub := bt.Block(i)
			if sub == nil {
				continue
			}
			for _, aij := range asm.a[i] {
				if aij != nil {
					asm.lift(aij, sub.Local)
				}
			}
			sub.Apply()
		}
	case la.LayoutMonolithic:
		bt, ok := b.(*la.GhostVector)
		if !ok {
			return fmt.Errorf("monolithic layout requires a ghost vector, have %T", b)
		}
		maps, err := vectorMaps(asm.l)
		if err != nil {
			return err
		}
		for i := range asm.a {
			var (
				NP      = asm.comm.Size()
				scratch = make([][]float64, NP)
			)
			for np := 0; np < NP; np++ {
				scratch[np] = make([]float64, maps[i][np].SizeAll())
			}
			for _, aij := range asm.a[i] {
				if aij != nil {
					asm.lift(aij, func(np int) []float64 { return scratch[np] })
				}
			}
			asm.eachRank(func(np int) {
				gidx := make([]int, len(scratch[np]))
				for k := range gidx {
					gidx[k] = la.CombinedGlobalIndex(maps, i, np, k)
				}
				bt.Add(np, scratch[np], gidx)
			})
		}
		bt.Apply()
	case la.LayoutSingle:
		bt, ok := b.(*la.GhostVector)
		if !ok {
			return fmt.Errorf("single layout requires a ghost vector, have %T", b)
		}
		for _, aij := range asm.a[0] {
			if aij != nil {
				asm.lift(aij, bt.Local)
			}
		}
		bt.Apply()
	default:
		return fmt.Errorf("unknown layout %v", b.Layout())
	}
	return nil
}

// lift accumulates -Ae_col(j)*value(j) for one bilinear form into the row
// space's local buffers.
func (asm *Assembler) lift(a *Form, buf func(np int) []float64) {
	var (
		NP       = asm.comm.Size()
		V0, V1   = a.FunctionSpace(0), a.FunctionSpace(1)
		nd0, nd1 = V0.DofMap().NumDofsPerCell(), V1.DofMap().NumDofsPerCell()
		mb       = utils.NewMailBox[bcValue](NP)
		wg       = sync.WaitGroup{}
	)
	for np := 0; np < NP; np++ {
		wg.Add(1)
		go func(np int) {
			defer wg.Done()
			colBC := collectBoundaryValues(np, asm.comm, V1, asm.bcs, mb)
			if len(colBC) == 0 {
				return
			}
			var (
				Ae = make([]float64, nd0*nd1)
				b  = buf(np)
			)
			for _, k := range a.Mesh().OwnedCells(np) {
				if !a.CellActive(k) {
					continue
				}
				cols := V1.DofMap().CellDofs(np, k)
				hit := false
				for _, c := range cols {
					if _, ok := colBC[c]; ok {
						hit = true
						break
					}
				}
				if !hit {
					continue
				}
				var (
					X    = a.Mesh().CellCoordinates(k)
					rows = V0.DofMap().CellDofs(np, k)
				)
				for i := range Ae {
					Ae[i] = 0.
				}
				a.TabulateTensor(np, Ae, k, X)
				for j, c := range cols {
					v, ok := colBC[c]
					if !ok {
						continue
					}
					for i := range rows {
						b[rows[i]] -= Ae[i*nd1+j] * v
					}
				}
			}
		}(np)
	}
	wg.Wait()
}

// SetBC overwrites b's entries at every constrained dof with the prescribed
// value and refreshes the ghost slots. Overwrite, not add: Apply after a set
// would double-count ghost copies, so only owned slots are written and the
// forward scatter distributes them.
func (asm *Assembler) SetBC(b la.GlobalVector) error {
	switch b.Layout() {
	case la.LayoutNested:
		bt, ok := b.(*la.NestVector)
		if !ok {
			return fmt.Errorf("nested layout requires a nest vector, have %T", b)
		}
		for i := range asm.l {
			sub := bt.Block(i)
			if sub == nil {
				continue
			}
			V := asm.rowSpace(i)
			mb := utils.NewMailBox[bcValue](asm.comm.Size())
			asm.eachRank(func(np int) {
				asm.setBCOwned(np, V, mb, sub.Local(np), nil)
			})
			sub.GhostUpdateForward()
		}
	case la.LayoutMonolithic:
		bt, ok := b.(*la.GhostVector)
		if !ok {
			return fmt.Errorf("monolithic layout requires a ghost vector, have %T", b)
		}
		maps, err := vectorMaps(asm.l)
		if err != nil {
			return err
		}
		for i := range asm.l {
			V := asm.rowSpace(i)
			mb := utils.NewMailBox[bcValue](asm.comm.Size())
			asm.eachRank(func(np int) {
				asm.setBCOwned(np, V, mb, bt.Local(np), func(k int) int {
					return la.CombinedGlobalIndex(maps, i, np, k) - bt.Map(np).Offset
				})
			})
		}
		bt.GhostUpdateForward()
	case la.LayoutSingle:
		bt, ok := b.(*la.GhostVector)
		if !ok {
			return fmt.Errorf("single layout requires a ghost vector, have %T", b)
		}
		V := asm.rowSpace(0)
		mb := utils.NewMailBox[bcValue](asm.comm.Size())
		asm.eachRank(func(np int) {
			asm.setBCOwned(np, V, mb, bt.Local(np), nil)
		})
		bt.GhostUpdateForward()
	default:
		return fmt.Errorf("unknown layout %v", b.Layout())
	}
	return nil
}

// setBCOwned writes the constrained owned dofs of V into buf. translate maps
// the field-local index into buf's numbering; nil means identity.
func (asm *Assembler) setBCOwned(np int, V *FunctionSpace, mb *utils.MailBox[bcValue],
	buf []float64, translate func(k int) int) {
	if V == nil {
		return
	}
	bvs := collectBoundaryValues(np, asm.comm, V, asm.bcs, mb)
	im := V.DofMap().IndexMap(np)
	for d, v := range bvs {
		if !im.IsOwned(d) {
			continue
		}
		k := d
		if translate != nil {
			k = translate(d)
		}
		buf[k] = v
	}
}

// AssembleSystem assembles matrix and vector, applies the lifting term and
// sets the constrained values, yielding the reduced system ready for a
// solver. Nil targets are allocated per the layout hint.
func (asm *Assembler) AssembleSystem(A la.GlobalMatrix, b la.GlobalVector,
	hint la.Layout) (la.GlobalMatrix, la.GlobalVector, error) {
	A, err := asm.AssembleMatrix(A, hint)
	if err != nil {
		return nil, nil, err
	}
	if b, err = asm.AssembleVector(b, hint); err != nil {
		return nil, nil, err
	}
	if len(asm.bcs) != 0 {
		if err = asm.ApplyBC(b); err != nil {
			return nil, nil, err
		}
		if err = asm.SetBC(b); err != nil {
			return nil, nil, err
		}
	}
	return A, b, nil
}

// eachRank runs f concurrently for every rank and waits.
func (asm *Assembler) eachRank(f func(np int)) {
	var wg sync.WaitGroup
	for np := 0; np < asm.comm.Size(); np++ {
		wg.Add(1)
		go func(np int) {
			defer wg.Done()
			f(np)
		}(np)
	}
	wg.Wait()
}

// collectBoundaryValues merges the constrained-dof values of every condition
// whose space is contained in V, gathering across ranks when the method
// needs global knowledge. Collective when any gather runs; all ranks must
// call it with the same condition set.
func collectBoundaryValues(np int, comm *utils.Comm, V *FunctionSpace,
	bcs []*DirichletBC, mb *utils.MailBox[bcValue]) map[int]float64 {
	bvs := make(map[int]float64)
	for _, bc := range bcs {
		if !V.Contains(bc.FunctionSpace()) {
			continue
		}
		bc.BoundaryValues(np, bvs)
		if comm.Size() > 1 && bc.Method() != Pointwise {
			bc.Gather(np, comm, mb, bvs)
		}
	}
	return bvs
}
