package la

// Layout is the physical representation of a block-structured system,
// discovered once per assembly call from the allocated object. The closed
// enum drives the whole orchestration - one algorithm per tag.
type Layout uint8

const (
	LayoutSingle Layout = iota
	LayoutMonolithic
	LayoutNested
)

func (l Layout) String() string {
	switch l {
	case LayoutSingle:
		return "single"
	case LayoutMonolithic:
		return "monolithic"
	case LayoutNested:
		return "nested"
	}
	return "unknown"
}

// AssemblyType selects the finalize semantics: Flush pushes staged local
// buffers without a cross-rank sync, Final flushes and barriers.
type AssemblyType uint8

const (
	Flush AssemblyType = iota
	Final
)
