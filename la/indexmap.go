package la

import "fmt"

// IndexMap describes one rank's view of a field's dof layout: the owned
// contiguous global range, the ghost dofs replicated locally for stencil
// completeness, and the block size for vector-valued fields. Local indices
// run 0..N-1 over owned dofs, then over the ghosts in listed order. The map
// is owned by the function space and read-only to the assembler.
type IndexMap struct {
	N          int   // owned dofs on this rank
	Offset     int   // global index of the first owned dof
	Ghosts     []int // global indices of ghost dofs, local-indexed after owned
	BS         int   // block size
	GlobalSize int

	g2l map[int]int
}

func NewIndexMap(nOwned, offset, globalSize int, ghosts []int) (im *IndexMap) {
	im = &IndexMap{
		N:          nOwned,
		Offset:     offset,
		Ghosts:     ghosts,
		BS:         1,
		GlobalSize: globalSize,
	}
	return
}

func (im *IndexMap) SizeOwned() int { return im.N }
func (im *IndexMap) SizeAll() int   { return im.N + len(im.Ghosts) }
func (im *IndexMap) BlockSize() int { return im.BS }

func (im *IndexMap) OwnedRange() (min, max int) {
	return im.Offset, im.Offset + im.N
}

func (im *IndexMap) LocalToGlobal(k int) int {
	if k < im.N {
		return im.Offset + k
	}
	if k < im.SizeAll() {
		return im.Ghosts[k-im.N]
	}
	panic(fmt.Errorf("local index %d out of range [0,%d)", k, im.SizeAll()))
}

func (im *IndexMap) GlobalToLocal(g int) (k int, ok bool) {
	if g >= im.Offset && g < im.Offset+im.N {
		return g - im.Offset, true
	}
	if im.g2l == nil {
		im.g2l = make(map[int]int, len(im.Ghosts))
		for i, gg := range im.Ghosts {
			im.g2l[gg] = im.N + i
		}
	}
	k, ok = im.g2l[g]
	return
}

// IsOwned reports whether local index k refers to an owned dof.
func (im *IndexMap) IsOwned(k int) bool { return k < im.N }

// Combined numbering for monolithic block systems. Owned dofs are stacked
// rank-major then field-major: rank q's combined owned block is contiguous,
// holding its field-0 owned dofs, then field-1, and so on. maps is indexed
// [field][rank].

// CombinedGlobalIndex translates local index k of field on rank np into the
// combined numbering. Owned dofs translate through this rank's offsets;
// ghost dofs translate through the offsets of the rank owning them.
func CombinedGlobalIndex(maps [][]*IndexMap, field, np, k int) int {
	m := maps[field][np]
	if k < m.N {
		return combinedRankOffset(maps, np) + combinedFieldOffset(maps, np, field) + k
	}
	g := m.LocalToGlobal(k)
	q := ownerRank(maps[field], g)
	return combinedRankOffset(maps, q) + combinedFieldOffset(maps, q, field) +
		(g - maps[field][q].Offset)
}

// combinedRankOffset is the first combined index owned by rank np.
func combinedRankOffset(maps [][]*IndexMap, np int) (offset int) {
	for q := 0; q < np; q++ {
		for f := range maps {
			offset += maps[f][q].N
		}
	}
	return
}

// combinedFieldOffset is field's offset within rank np's combined block.
func combinedFieldOffset(maps [][]*IndexMap, np, field int) (offset int) {
	for f := 0; f < field; f++ {
		offset += maps[f][np].N
	}
	return
}

func ownerRank(fieldMaps []*IndexMap, g int) int {
	for q, m := range fieldMaps {
		if g >= m.Offset && g < m.Offset+m.N {
			return q
		}
	}
	panic(fmt.Errorf("global index %d owned by no rank", g))
}

// ownerTable resolves the owning rank of a global index from the per-rank
// maps, whose owned ranges are contiguous and ascending by rank.
type ownerTable []*IndexMap

func (t ownerTable) find(g int) (rank, min int) {
	lo, hi := 0, len(t)
	for lo < hi {
		mid := (lo + hi) / 2
		m := t[mid]
		switch {
		case g < m.Offset:
			hi = mid
		case g >= m.Offset+m.N:
			lo = mid + 1
		default:
			return mid, m.Offset
		}
	}
	panic(fmt.Errorf("global index %d owned by no rank", g))
}

// CombinedMaps builds the per-rank index maps of the combined numbering from
// the per-field, per-rank maps. Ghost dofs of every field reappear as ghosts
// of the combined map.
func CombinedMaps(maps [][]*IndexMap) (combined []*IndexMap) {
	var (
		NP    = len(maps[0])
		total int
	)
	for f := range maps {
		total += maps[f][0].GlobalSize
	}
	combined = make([]*IndexMap, NP)
	for np := 0; np < NP; np++ {
		var (
			n      int
			ghosts []int
		)
		for f := range maps {
			n += maps[f][np].N
		}
		for f := range maps {
			m := maps[f][np]
			for k := m.N; k < m.SizeAll(); k++ {
				ghosts = append(ghosts, CombinedGlobalIndex(maps, f, np, k))
			}
		}
		combined[np] = NewIndexMap(n, combinedRankOffset(maps, np), total, ghosts)
	}
	return
}
