package mesh

import (
	"fmt"

	"github.com/tianyikillua/dolfinx/utils"
)

// Interval is a 1D mesh of K line cells on [XMin,XMax], partitioned into
// contiguous cell ranges across the ranks of comm. Each rank additionally
// sees the cells just across its partition cuts as ghosts.
type Interval struct {
	K          int       // number of cells
	VX         []float64 // K+1 vertex coordinates
	EToV       [][2]int  // cell to vertex connectivity
	XMin, XMax float64

	comm *utils.Comm
	pm   *utils.PartitionMap // cell ownership
}

func NewInterval(comm *utils.Comm, K int, xmin, xmax float64) (m *Interval) {
	if K < comm.Size() {
		panic(fmt.Errorf("cannot partition %d cells across %d ranks", K, comm.Size()))
	}
	m = &Interval{
		K:    K,
		VX:   make([]float64, K+1),
		EToV: make([][2]int, K),
		XMin: xmin,
		XMax: xmax,
		comm: comm,
		pm:   utils.NewPartitionMap(comm.Size(), K),
	}
	h := (xmax - xmin) / float64(K)
	for v := 0; v <= K; v++ {
		m.VX[v] = xmin + float64(v)*h
	}
	for k := 0; k < K; k++ {
		m.EToV[k] = [2]int{k, k + 1}
	}
	return
}

func (m *Interval) Dim() int          { return 1 }
func (m *Interval) NumCells() int     { return m.K }
func (m *Interval) Comm() *utils.Comm { return m.comm }

// OwnedCells is the stable enumeration of cells owned by rank np. Ghost
// cells are excluded.
func (m *Interval) OwnedCells(np int) (cells []int) {
	kmin, kmax := m.pm.GetBucketRange(np)
	cells = utils.NewRange(kmin, kmax-1)
	return
}

// GhostCells lists the cells replicated on rank np for stencil completeness:
// the neighbors just across the partition cuts.
func (m *Interval) GhostCells(np int) (cells []int) {
	kmin, kmax := m.pm.GetBucketRange(np)
	if kmin > 0 {
		cells = append(cells, kmin-1)
	}
	if kmax < m.K {
		cells = append(cells, kmax)
	}
	return
}

// CellOwner is the rank owning cell k.
func (m *Interval) CellOwner(k int) int {
	bn, _, _ := m.pm.GetBucket(k)
	return bn
}

// CellCoordinates returns the cell's vertex coordinates as a row-major
// (vertex count x dim) matrix.
func (m *Interval) CellCoordinates(k int) (X utils.Matrix) {
	X = utils.NewMatrix(2, 1, []float64{
		m.VX[m.EToV[k][0]],
		m.VX[m.EToV[k][1]],
	})
	return
}
