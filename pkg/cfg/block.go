// Package cfg normalizes a front-end control-flow graph into the ordered,
// dominator-annotated form the rest of the backend walks (spec §3.1, §4.1).
package cfg

import "github.com/ohmu-lang/x64backend/pkg/til"

// SentinelIndex marks "no such block" — an all-ones index, per spec §3.1.
const SentinelIndex = -1

// Range is a half-open [First, Bound) slice into a shared backing array.
type Range struct {
	First, Bound int
}

func (r Range) Len() int { return r.Bound - r.First }

// Block mirrors spec §3.1's Block record.
type Block struct {
	BasicBlock *til.BasicBlock // back-pointer to the front-end block
	List       *Module         // owning module (conceptually redundant, kept to match spec)

	NumArguments int // phi count

	Dominator int // index into Module.Blocks, or SentinelIndex
	Head      int // index of the enclosing loop/case header block

	Index   int // this block's own position in Module.Blocks; kept current by Normalize
	BlockID int // ordering key; SentinelIndex while unvisited

	DomTreeID   int
	DomTreeSize int

	PostDominator   int
	PostDomTreeID   int
	PostDomTreeSize int

	FirstEvent int // filled in by the lowerer (pkg/lower), not by normalize
	BoundEvent int

	LoopDepth int
	PhiSlot   int // which predecessor slot of the successor this block occupies

	Predecessors Range // into Module.Neighbors
	Successors   Range
}

// FunctionRange is a function's half-open range of Blocks.
type FunctionRange struct {
	First, Bound int
}

// Module owns the three parallel arrays described in spec §3.1.
type Module struct {
	Blocks    []*Block
	Neighbors []int // indices into Blocks
	Functions []FunctionRange

	byBasicBlock map[*til.BasicBlock]*Block
}

// BlockOf looks up the Block wrapping a front-end BasicBlock; used by the
// lowerer to resolve a terminator's target back into event-stream bounds.
func (m *Module) BlockOf(bb *til.BasicBlock) *Block {
	return m.byBasicBlock[bb]
}

// PredecessorsOf returns the predecessor block indices of b.
func (m *Module) PredecessorsOf(b *Block) []int {
	return m.Neighbors[b.Predecessors.First:b.Predecessors.Bound]
}

// SuccessorsOf returns the successor block indices of b.
func (m *Module) SuccessorsOf(b *Block) []int {
	return m.Neighbors[b.Successors.First:b.Successors.Bound]
}

// BuildModule wraps a til.Module into the cfg's array-of-structs form. Block
// order initially follows the front end's per-function block order;
// Normalize (normalize.go) reorders it and fills in the dominance fields.
func BuildModule(tm *til.Module) *Module {
	m := &Module{}

	m.byBasicBlock = make(map[*til.BasicBlock]*Block)
	index := make(map[*til.BasicBlock]int)
	for _, fn := range tm.Functions {
		for _, bb := range fn.Blocks {
			idx := len(m.Blocks)
			index[bb] = idx
			blk := &Block{
				BasicBlock:    bb,
				List:          m,
				NumArguments:  len(bb.Arguments),
				Index:         idx,
				Dominator:     SentinelIndex,
				Head:          SentinelIndex,
				BlockID:       SentinelIndex,
				PostDominator: SentinelIndex,
			}
			m.Blocks = append(m.Blocks, blk)
			m.byBasicBlock[bb] = blk
		}
	}

	for _, fn := range tm.Functions {
		first := index[fn.Blocks[0]]
		bound := first + len(fn.Blocks)
		m.Functions = append(m.Functions, FunctionRange{First: first, Bound: bound})

		for _, bb := range fn.Blocks {
			b := m.Blocks[index[bb]]

			b.Predecessors.First = len(m.Neighbors)
			for _, p := range bb.Predecessors {
				m.Neighbors = append(m.Neighbors, index[p])
			}
			b.Predecessors.Bound = len(m.Neighbors)

			b.Successors.First = len(m.Neighbors)
			for _, s := range bb.Successors {
				m.Neighbors = append(m.Neighbors, index[s])
			}
			b.Successors.Bound = len(m.Neighbors)
		}
	}

	// phiSlot: which predecessor slot of each successor this block occupies.
	for _, b := range m.Blocks {
		for _, succIdx := range m.SuccessorsOf(b) {
			succ := m.Blocks[succIdx]
			b.PhiSlot = succ.BasicBlock.PhiIndex(b.BasicBlock)
		}
	}

	return m
}
