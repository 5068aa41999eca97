package la

import (
	"fmt"
	"sync"

	"github.com/james-bowman/sparse"

	"github.com/tianyikillua/dolfinx/utils"
)

// entry is one staged matrix contribution destined for a row owned by
// another rank.
type entry struct {
	I, J   int
	V      float64
	Insert bool
}

// MatrixInserter is the insertion surface the cell loop writes through. Both
// the physical matrix and the monolithic block sub-view implement it.
// Insertion is additive (AddLocal) or overwriting (SetLocal), is keyed by
// rank-local indices, and is safe for repeated calls from the owning rank's
// goroutine.
type MatrixInserter interface {
	AddLocal(np int, vals []float64, rows, cols utils.Index)
	SetLocal(np int, vals []float64, rows, cols utils.Index)
}

// GlobalMatrix is a global sparse operator with a runtime-discovered layout.
type GlobalMatrix interface {
	Layout() Layout
	Apply(t AssemblyType)
	Dims() (nr, nc int)
}

// SparseMatrix is a row-partitioned global sparse matrix. Each rank owns a
// contiguous row range and writes only its own shard; contributions to rows
// owned elsewhere are staged and routed to the owner during Apply. DOK
// storage supports the repeated additive single-entry insertion pattern of
// assembly; ToCSR converts for downstream solvers.
type SparseMatrix struct {
	nr, nc    int
	layout    Layout
	comm      *utils.Comm
	rowRanges ownerTable
	shards    []*sparse.DOK // shards[n] holds only rows owned by rank n
	rmaps     []*IndexMap   // per-rank local-to-global maps, nil for monolithic
	cmaps     []*IndexMap
	stage     [][]entry
	assembled bool
}

// NewSparseMatrix allocates a single-layout global matrix sized by the
// per-rank index maps of its row and column spaces.
func NewSparseMatrix(comm *utils.Comm, rmaps, cmaps []*IndexMap) (A *SparseMatrix) {
	A = newSparse(comm, rmaps, LayoutSingle)
	A.rmaps, A.cmaps = rmaps, cmaps
	A.nc = cmaps[0].GlobalSize
	return
}

// NewMonolithicMatrix allocates one physical matrix over the combined index
// spaces of all blocks (rmaps/cmaps are the per-rank combined maps);
// insertion goes through SubView block views.
func NewMonolithicMatrix(comm *utils.Comm, rmaps, cmaps []*IndexMap) (A *SparseMatrix) {
	A = newSparse(comm, rmaps, LayoutMonolithic)
	A.nc = cmaps[0].GlobalSize
	return
}

func newSparse(comm *utils.Comm, rmaps []*IndexMap, layout Layout) (A *SparseMatrix) {
	var (
		NP = comm.Size()
	)
	if len(rmaps) != NP {
		panic(fmt.Errorf("index maps must have one entry per rank: %d vs %d", len(rmaps), NP))
	}
	A = &SparseMatrix{
		nr:        rmaps[0].GlobalSize,
		layout:    layout,
		comm:      comm,
		rowRanges: ownerTable(rmaps),
		shards:    make([]*sparse.DOK, NP),
		stage:     make([][]entry, NP),
	}
	return
}

func (A *SparseMatrix) Layout() Layout     { return A.layout }
func (A *SparseMatrix) Dims() (nr, nc int) { return A.nr, A.nc }
func (A *SparseMatrix) IsAssembled() bool  { return A.assembled }

func (A *SparseMatrix) shard(n int) *sparse.DOK {
	if A.shards[n] == nil {
		A.shards[n] = sparse.NewDOK(A.nr, A.nc)
	}
	return A.shards[n]
}

// At reads a globally indexed entry from the owning rank's shard.
func (A *SparseMatrix) At(i, j int) float64 {
	owner, _ := A.rowRanges.find(i)
	if A.shards[owner] == nil {
		return 0.
	}
	return A.shards[owner].At(i, j)
}

// AddLocal adds a dense row-major tensor at the translated global positions
// of the rank-local row and column indices.
func (A *SparseMatrix) AddLocal(np int, vals []float64, rows, cols utils.Index) {
	A.insertLocal(np, vals, rows, cols, false)
}

// SetLocal overwrites entries at the translated positions. Used for the unit
// diagonal of Dirichlet rows.
func (A *SparseMatrix) SetLocal(np int, vals []float64, rows, cols utils.Index) {
	A.insertLocal(np, vals, rows, cols, true)
}

func (A *SparseMatrix) insertLocal(np int, vals []float64, rows, cols utils.Index, ins bool) {
	if A.rmaps == nil {
		panic(fmt.Errorf("%v matrix has no local-to-global maps; use a block sub-view", A.layout))
	}
	var (
		nc = len(cols)
	)
	if len(vals) != len(rows)*nc {
		panic(fmt.Errorf("local tensor size %d does not match %dx%d", len(vals), len(rows), nc))
	}
	for i, r := range rows {
		gi := A.rmaps[np].LocalToGlobal(r)
		for j, c := range cols {
			A.addGlobal(np, gi, A.cmaps[np].LocalToGlobal(c), vals[i*nc+j], ins)
		}
	}
}

func (A *SparseMatrix) addGlobal(np, i, j int, v float64, insert bool) {
	owner, _ := A.rowRanges.find(i)
	if owner == np {
		A.applyEntry(np, i, j, v, insert)
		return
	}
	A.stage[np] = append(A.stage[np], entry{I: i, J: j, V: v, Insert: insert})
}

func (A *SparseMatrix) applyEntry(shard, i, j int, v float64, insert bool) {
	s := A.shard(shard)
	if insert {
		s.Set(i, j, v)
		return
	}
	s.Set(i, j, s.At(i, j)+v)
}

// Apply migrates staged off-rank contributions to their owners. Flush keeps
// the matrix open for further insertion; Final additionally marks the matrix
// assembled. Applying an already assembled matrix with nothing staged
// changes no entry.
func (A *SparseMatrix) Apply(t AssemblyType) {
	var (
		NP = A.comm.Size()
		mb = utils.NewMailBox[entry](NP)
		wg = sync.WaitGroup{}
	)
	for np := 0; np < NP; np++ {
		wg.Add(1)
		go func(np int) {
			defer wg.Done()
			for _, e := range A.stage[np] {
				owner, _ := A.rowRanges.find(e.I)
				mb.PostMessage(np, owner, e)
			}
			A.stage[np] = nil
			mb.DeliverMyMessages(np)
		}(np)
	}
	wg.Wait()
	for np := 0; np < NP; np++ {
		wg.Add(1)
		go func(np int) {
			defer wg.Done()
			for _, e := range mb.ReceiveMyMessages(np) {
				A.applyEntry(np, e.I, e.J, e.V, e.Insert)
			}
		}(np)
	}
	wg.Wait()
	if t == Final {
		A.assembled = true
	}
}

// ToCSR merges the shards into one compressed-sparse-row matrix.
func (A *SparseMatrix) ToCSR() *sparse.CSR {
	merged := sparse.NewDOK(A.nr, A.nc)
	for _, s := range A.shards {
		if s == nil {
			continue
		}
		s.DoNonZero(func(i, j int, v float64) {
			merged.Set(i, j, merged.At(i, j)+v)
		})
	}
	return merged.ToCSR()
}

// SubMatrix is a logical sub-view of a monolithic matrix restricted to one
// block. Insertions translate block-local indices into the combined
// numbering through the per-field index maps.
type SubMatrix struct {
	parent             *SparseMatrix
	rowField, colField int
	rowMaps, colMaps   [][]*IndexMap // indexed [field][rank]
}

// SubView returns the block (rowField, colField) view of a monolithic
// matrix. rowMaps and colMaps are the per-field, per-rank maps of the row
// and column block collections.
func (A *SparseMatrix) SubView(rowField, colField int, rowMaps, colMaps [][]*IndexMap) *SubMatrix {
	if A.layout != LayoutMonolithic {
		panic(fmt.Errorf("sub-views require a monolithic layout, have %v", A.layout))
	}
	return &SubMatrix{
		parent:   A,
		rowField: rowField,
		colField: colField,
		rowMaps:  rowMaps,
		colMaps:  colMaps,
	}
}

func (S *SubMatrix) AddLocal(np int, vals []float64, rows, cols utils.Index) {
	S.insert(np, vals, rows, cols, false)
}

func (S *SubMatrix) SetLocal(np int, vals []float64, rows, cols utils.Index) {
	S.insert(np, vals, rows, cols, true)
}

func (S *SubMatrix) insert(np int, vals []float64, rows, cols utils.Index, ins bool) {
	var (
		nc = len(cols)
	)
	if len(vals) != len(rows)*nc {
		panic(fmt.Errorf("local tensor size %d does not match %dx%d", len(vals), len(rows), nc))
	}
	for i, r := range rows {
		gi := CombinedGlobalIndex(S.rowMaps, S.rowField, np, r)
		for j, c := range cols {
			gj := CombinedGlobalIndex(S.colMaps, S.colField, np, c)
			S.parent.addGlobal(np, gi, gj, vals[i*nc+j], ins)
		}
	}
}
