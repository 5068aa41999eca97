package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tianyikillua/dolfinx/utils"
)

func TestInterval(t *testing.T) {
	var (
		comm = utils.NewComm(2)
		m    = NewInterval(comm, 4, 0, 1)
	)
	assert.Equal(t, 1, m.Dim())
	assert.Equal(t, 4, m.NumCells())
	assert.Equal(t, []float64{0, 0.25, 0.5, 0.75, 1}, m.VX)

	assert.Equal(t, []int{0, 1}, m.OwnedCells(0))
	assert.Equal(t, []int{2, 3}, m.OwnedCells(1))
	assert.Equal(t, []int{2}, m.GhostCells(0))
	assert.Equal(t, []int{1}, m.GhostCells(1))
	assert.Equal(t, 0, m.CellOwner(1))
	assert.Equal(t, 1, m.CellOwner(2))

	X := m.CellCoordinates(1)
	assert.Equal(t, 0.25, X.At(0, 0))
	assert.Equal(t, 0.5, X.At(1, 0))

	assert.Panics(t, func() { NewInterval(utils.NewComm(5), 4, 0, 1) })
}

func TestDofMapP1(t *testing.T) {
	var (
		comm = utils.NewComm(2)
		m    = NewInterval(comm, 4, 0, 1)
		d    = NewDofMap(m, 1)
	)
	assert.Equal(t, 2, d.NumDofsPerCell())

	// Rank 0 owns vertices 0..1, the cut vertex 2 belongs to rank 1
	im0, im1 := d.IndexMap(0), d.IndexMap(1)
	assert.Equal(t, 2, im0.SizeOwned())
	assert.Equal(t, 0, im0.Offset)
	assert.Equal(t, []int{2, 3}, im0.Ghosts)
	assert.Equal(t, 3, im1.SizeOwned())
	assert.Equal(t, 2, im1.Offset)
	assert.Equal(t, []int{1}, im1.Ghosts)
	assert.Equal(t, 5, im0.GlobalSize)

	assert.Equal(t, utils.Index{0, 1}, d.CellDofs(0, 0))
	assert.Equal(t, utils.Index{1, 2}, d.CellDofs(0, 1)) // vertex 2 is ghost slot 2
	assert.Equal(t, utils.Index{0, 1}, d.CellDofs(1, 2)) // rank 1 locals for vertices 2,3
	assert.Equal(t, utils.Index{3, 0}, d.CellDofs(1, 1)) // ghost cell: ghost vertex 1, owned vertex 2

	assert.Equal(t, []float64{0, 0.25, 0.5, 0.75}, d.DofCoordinates(0))
	assert.Equal(t, []float64{0.5, 0.75, 1, 0.25}, d.DofCoordinates(1))
}

func TestDofMapP0(t *testing.T) {
	var (
		comm = utils.NewComm(2)
		m    = NewInterval(comm, 4, 0, 1)
		d    = NewDofMap(m, 0)
	)
	assert.Equal(t, 1, d.NumDofsPerCell())
	assert.Equal(t, 2, d.IndexMap(0).SizeOwned())
	assert.Equal(t, 2, d.IndexMap(1).Offset)
	assert.Empty(t, d.IndexMap(0).Ghosts)

	assert.Equal(t, utils.Index{0}, d.CellDofs(0, 0))
	assert.Equal(t, utils.Index{1}, d.CellDofs(1, 3))
	assert.Equal(t, []float64{0.125, 0.375}, d.DofCoordinates(0))

	assert.Panics(t, func() { NewDofMap(m, 3) })
}
