package la

import (
	"fmt"
	"sync"

	"github.com/tianyikillua/dolfinx/utils"
)

// ventry is one staged vector contribution destined for another rank.
type ventry struct {
	I int
	V float64
}

// GlobalVector is a global vector with a runtime-discovered layout.
type GlobalVector interface {
	Layout() Layout
	Apply()
	Size() int
}

// GhostVector is a dof-partitioned global vector. Each rank holds its owned
// contiguous range plus ghost slots for dofs owned elsewhere; the cell loop
// accumulates into the ghost-including local buffer and GhostUpdateAdd sums
// ghost contributions onto the owning rank.
type GhostVector struct {
	size   int
	layout Layout
	comm   *utils.Comm
	owner  ownerTable
	maps   []*IndexMap // per-rank owned+ghost layout
	data   [][]float64 // per-rank local buffer, len = maps[np].SizeAll()
	stage  [][]ventry  // per-rank staged adds at global indices
}

// NewGhostVector allocates a zero vector over the per-rank index maps of one
// function space.
func NewGhostVector(comm *utils.Comm, maps []*IndexMap) (b *GhostVector) {
	return newGhost(comm, maps, LayoutSingle)
}

// NewMonolithicVector allocates one physical vector over the combined index
// space described by maps (combined per-rank classification).
func NewMonolithicVector(comm *utils.Comm, maps []*IndexMap) (b *GhostVector) {
	return newGhost(comm, maps, LayoutMonolithic)
}

func newGhost(comm *utils.Comm, maps []*IndexMap, layout Layout) (b *GhostVector) {
	var (
		NP = comm.Size()
	)
	if len(maps) != NP {
		panic(fmt.Errorf("index maps must have one entry per rank: %d vs %d", len(maps), NP))
	}
	b = &GhostVector{
		size:   maps[0].GlobalSize,
		layout: layout,
		comm:   comm,
		owner:  ownerTable(maps),
		maps:   maps,
		data:   make([][]float64, NP),
		stage:  make([][]ventry, NP),
	}
	for n := 0; n < NP; n++ {
		b.data[n] = make([]float64, maps[n].SizeAll())
	}
	return
}

func (b *GhostVector) Layout() Layout { return b.layout }
func (b *GhostVector) Size() int      { return b.size }

// Local is rank np's ghost-including local buffer; owned dofs first, ghosts
// after, per the rank's IndexMap.
func (b *GhostVector) Local(np int) []float64 { return b.data[np] }

// Map is rank np's index map.
func (b *GhostVector) Map(np int) *IndexMap { return b.maps[np] }

// At reads the owned value of global dof g.
func (b *GhostVector) At(g int) float64 {
	owner, min := b.owner.find(g)
	return b.data[owner][g-min]
}

// Add accumulates values at global indices; contributions to dofs owned by
// another rank are staged until Apply.
func (b *GhostVector) Add(np int, vals []float64, gidx []int) {
	if len(vals) != len(gidx) {
		panic(fmt.Errorf("length of values and indices are not equal: %d, %d", len(vals), len(gidx)))
	}
	for k, g := range gidx {
		owner, min := b.owner.find(g)
		if owner == np {
			b.data[np][g-min] += vals[k]
		} else {
			b.stage[np] = append(b.stage[np], ventry{I: g, V: vals[k]})
		}
	}
}

// AddLocal accumulates values at rank-local indices, ghost slots included.
func (b *GhostVector) AddLocal(np int, vals []float64, rows utils.Index) {
	for k, r := range rows {
		b.data[np][r] += vals[k]
	}
}

// SetLocal overwrites values at rank-local indices.
func (b *GhostVector) SetLocal(np int, vals []float64, rows utils.Index) {
	for k, r := range rows {
		b.data[np][r] = vals[k]
	}
}

// GhostUpdateAdd performs the reverse scatter: every rank sends its ghost
// accumulations to the owning rank and zeroes the ghost slots; owners add
// the received contributions to their owned values. Blocking collective.
func (b *GhostVector) GhostUpdateAdd() {
	var (
		NP = b.comm.Size()
		mb = utils.NewMailBox[ventry](NP)
		wg = sync.WaitGroup{}
	)
	for np := 0; np < NP; np++ {
		wg.Add(1)
		go func(np int) {
			defer wg.Done()
			m := b.maps[np]
			for k := m.N; k < m.SizeAll(); k++ {
				if b.data[np][k] != 0. {
					g := m.LocalToGlobal(k)
					owner, _ := b.owner.find(g)
					mb.PostMessage(np, owner, ventry{I: g, V: b.data[np][k]})
					b.data[np][k] = 0.
				}
			}
			for _, e := range b.stage[np] {
				owner, _ := b.owner.find(e.I)
				mb.PostMessage(np, owner, e)
			}
			b.stage[np] = nil
			mb.DeliverMyMessages(np)
		}(np)
	}
	wg.Wait()
	for np := 0; np < NP; np++ {
		wg.Add(1)
		go func(np int) {
			defer wg.Done()
			min := b.maps[np].Offset
			for _, e := range mb.ReceiveMyMessages(np) {
				b.data[np][e.I-min] += e.V
			}
		}(np)
	}
	wg.Wait()
}

// Apply flushes staged global-indexed adds and accumulates ghosts. Applying
// twice with no intervening insertion changes no entry.
func (b *GhostVector) Apply() {
	b.GhostUpdateAdd()
}

// GhostUpdateForward refreshes every rank's ghost slots from the owned
// values, the forward scatter used after solves or SetBC.
func (b *GhostVector) GhostUpdateForward() {
	var (
		NP = b.comm.Size()
		wg = sync.WaitGroup{}
	)
	for np := 0; np < NP; np++ {
		wg.Add(1)
		go func(np int) {
			defer wg.Done()
			m := b.maps[np]
			for k := m.N; k < m.SizeAll(); k++ {
				b.data[np][k] = b.At(m.LocalToGlobal(k))
			}
		}(np)
	}
	wg.Wait()
}

// GatherAll concatenates the owned ranges of all ranks into one dense global
// vector, in global index order.
func (b *GhostVector) GatherAll() (v utils.Vector) {
	v = utils.NewVector(b.size)
	for np := 0; np < b.comm.Size(); np++ {
		copy(v.DataP[b.maps[np].Offset:], b.data[np][:b.maps[np].N])
	}
	return
}
