package mesh

import (
	"fmt"
	"sort"

	"github.com/tianyikillua/dolfinx/la"
	"github.com/tianyikillua/dolfinx/utils"
)

// DofMap numbers the degrees of freedom of a continuous Lagrange (degree 1)
// or discontinuous constant (degree 0) field over an Interval mesh, and
// carries the per-rank index maps describing ownership and ghosts.
//
// Degree 1 dofs live on vertices; the shared vertex at a partition cut is
// owned by the higher rank and ghosted on the lower. Degree 0 dofs live on
// cells and are never shared.
type DofMap struct {
	mesh   *Interval
	degree int
	maps   []*la.IndexMap
}

func NewDofMap(m *Interval, degree int) (d *DofMap) {
	if degree != 0 && degree != 1 {
		panic(fmt.Errorf("unsupported element degree %d", degree))
	}
	var (
		NP = m.Comm().Size()
	)
	d = &DofMap{
		mesh:   m,
		degree: degree,
		maps:   make([]*la.IndexMap, NP),
	}
	for np := 0; np < NP; np++ {
		kmin, kmax := m.pm.GetBucketRange(np)
		switch degree {
		case 0:
			d.maps[np] = la.NewIndexMap(kmax-kmin, kmin, m.K, nil)
		case 1:
			// Rank np owns vertices [kmin,kmax); the last rank also owns
			// vertex K. Vertices of owned or ghost cells outside that range
			// are ghosts.
			nOwned := kmax - kmin
			if kmax == m.K {
				nOwned++
			}
			var ghosts []int
			seen := make(map[int]bool)
			mark := func(v int) {
				if v >= kmin && v < kmin+nOwned {
					return
				}
				if !seen[v] {
					seen[v] = true
					ghosts = append(ghosts, v)
				}
			}
			for k := kmin; k < kmax; k++ {
				mark(m.EToV[k][0])
				mark(m.EToV[k][1])
			}
			for _, k := range m.GhostCells(np) {
				mark(m.EToV[k][0])
				mark(m.EToV[k][1])
			}
			sort.Ints(ghosts)
			d.maps[np] = la.NewIndexMap(nOwned, kmin, m.K+1, ghosts)
		}
	}
	return
}

func (d *DofMap) IndexMap(np int) *la.IndexMap { return d.maps[np] }
func (d *DofMap) IndexMaps() []*la.IndexMap    { return d.maps }

// NumDofsPerCell is the local tensor dimension contributed by one cell.
func (d *DofMap) NumDofsPerCell() int {
	if d.degree == 0 {
		return 1
	}
	return 2
}

// CellDofs returns the ordered rank-local dof indices touched by cell k.
// The ordering is consistent between row, column and vector lookups.
func (d *DofMap) CellDofs(np, k int) (dofs utils.Index) {
	im := d.maps[np]
	toLocal := func(g int) int {
		l, ok := im.GlobalToLocal(g)
		if !ok {
			panic(fmt.Errorf("cell %d dof %d not present on rank %d", k, g, np))
		}
		return l
	}
	if d.degree == 0 {
		return utils.Index{toLocal(k)}
	}
	return utils.Index{toLocal(d.mesh.EToV[k][0]), toLocal(d.mesh.EToV[k][1])}
}

// DofCoordinates tabulates the coordinate of every rank-local dof (owned
// then ghost), flat in local-index order.
func (d *DofMap) DofCoordinates(np int) (x []float64) {
	im := d.maps[np]
	x = make([]float64, im.SizeAll())
	for l := 0; l < im.SizeAll(); l++ {
		g := im.LocalToGlobal(l)
		if d.degree == 0 {
			x[l] = 0.5 * (d.mesh.VX[d.mesh.EToV[g][0]] + d.mesh.VX[d.mesh.EToV[g][1]])
		} else {
			x[l] = d.mesh.VX[g]
		}
	}
	return
}
