package la

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tianyikillua/dolfinx/utils"
)

func TestGhostVectorAccumulate(t *testing.T) {
	var (
		comm = utils.NewComm(2)
		maps = fourDofMaps()
		b    = NewGhostVector(comm, maps)
		wg   = sync.WaitGroup{}
	)
	assert.Equal(t, 4, b.Size())
	assert.Equal(t, LayoutSingle, b.Layout())
	assert.Len(t, b.Local(0), 3) // 2 owned + 1 ghost

	for np := 0; np < 2; np++ {
		wg.Add(1)
		go func(np int) {
			defer wg.Done()
			// Each rank adds one unit into every local slot, ghosts included
			vals := []float64{1, 1, 1}
			b.AddLocal(np, vals, utils.Index{0, 1, 2})
		}(np)
	}
	wg.Wait()
	b.Apply()

	// Dofs 1 and 2 each collected an owned unit plus a ghost unit
	assert.Equal(t, 1., b.At(0))
	assert.Equal(t, 2., b.At(1))
	assert.Equal(t, 2., b.At(2))
	assert.Equal(t, 1., b.At(3))
	// Ghost slots were zeroed by the reverse scatter
	assert.Equal(t, 0., b.Local(0)[2])
	assert.Equal(t, 0., b.Local(1)[2])

	// Idempotent finalize
	b.Apply()
	assert.Equal(t, 2., b.At(1))
}

func TestGhostVectorGlobalAdd(t *testing.T) {
	var (
		comm = utils.NewComm(2)
		maps = fourDofMaps()
		b    = NewGhostVector(comm, maps)
	)
	// Rank 0 adds at a global index owned by rank 1: staged until Apply
	b.Add(0, []float64{5, 7}, []int{0, 3})
	assert.Equal(t, 5., b.At(0))
	assert.Equal(t, 0., b.At(3))
	b.Apply()
	assert.Equal(t, 7., b.At(3))

	assert.Panics(t, func() { b.Add(0, []float64{1}, []int{0, 1}) })
}

func TestGhostUpdateForward(t *testing.T) {
	var (
		comm = utils.NewComm(2)
		maps = fourDofMaps()
		b    = NewGhostVector(comm, maps)
	)
	b.SetLocal(0, []float64{10, 11}, utils.Index{0, 1})
	b.SetLocal(1, []float64{12, 13}, utils.Index{0, 1})
	b.GhostUpdateForward()
	// Rank 0 ghosts g=2, rank 1 ghosts g=1
	assert.Equal(t, 12., b.Local(0)[2])
	assert.Equal(t, 11., b.Local(1)[2])

	v := b.GatherAll()
	assert.Equal(t, []float64{10, 11, 12, 13}, v.DataP)
}

func TestNestVector(t *testing.T) {
	var (
		comm   = utils.NewComm(1)
		field0 = []*IndexMap{NewIndexMap(3, 0, 3, nil)}
		b      = NewNestVector(2)
	)
	b.Vs[0] = NewGhostVector(comm, field0)
	assert.Equal(t, LayoutNested, b.Layout())
	assert.Equal(t, 3, b.Size())
	assert.Nil(t, b.Block(1))
	assert.Panics(t, func() { b.Block(2) })

	b.Block(0).AddLocal(0, []float64{4}, utils.Index{2})
	b.Apply()
	assert.Equal(t, 4., b.Block(0).At(2))
}
