package cfg

import (
	"testing"

	"github.com/ohmu-lang/x64backend/pkg/til"
)

// linear builds entry -> mid -> exit, three blocks, no branches.
func linearModule() *til.Module {
	entry := &til.BasicBlock{}
	mid := &til.BasicBlock{}
	exit := &til.BasicBlock{}

	entry.Successors = []*til.BasicBlock{mid}
	entry.Terminator = &til.Goto{Target: mid}

	mid.Predecessors = []*til.BasicBlock{entry}
	mid.Successors = []*til.BasicBlock{exit}
	mid.Terminator = &til.Goto{Target: exit}

	exit.Predecessors = []*til.BasicBlock{mid}
	exit.Terminator = &til.Return{}

	return &til.Module{Functions: []*til.Function{{Blocks: []*til.BasicBlock{entry, mid, exit}}}}
}

// loopModule builds entry -> header -> body -> header (back edge), header -> exit.
func loopModule() *til.Module {
	entry := &til.BasicBlock{}
	header := &til.BasicBlock{}
	body := &til.BasicBlock{}
	exit := &til.BasicBlock{}

	entry.Successors = []*til.BasicBlock{header}
	entry.Terminator = &til.Goto{Target: header}

	header.Predecessors = []*til.BasicBlock{entry, body}
	header.Successors = []*til.BasicBlock{body, exit}
	header.Terminator = &til.Branch{Then: body, Else: exit}

	body.Predecessors = []*til.BasicBlock{header}
	body.Successors = []*til.BasicBlock{header}
	body.Terminator = &til.Goto{Target: header}

	exit.Predecessors = []*til.BasicBlock{header}
	exit.Terminator = &til.Return{}

	return &til.Module{Functions: []*til.Function{{Blocks: []*til.BasicBlock{entry, header, body, exit}}}}
}

func findBlock(m *Module, bb *til.BasicBlock) *Block {
	for _, b := range m.Blocks {
		if b.BasicBlock == bb {
			return b
		}
	}
	return nil
}

func TestNormalizeLinearDominance(t *testing.T) {
	tm := linearModule()
	m := BuildModule(tm)
	Normalize(m)

	entry := findBlock(m, tm.Functions[0].Blocks[0])
	mid := findBlock(m, tm.Functions[0].Blocks[1])
	exit := findBlock(m, tm.Functions[0].Blocks[2])

	if entry.Dominator != SentinelIndex {
		t.Errorf("entry.Dominator = %d, want SentinelIndex", entry.Dominator)
	}
	if !Dominates(m, entry, mid) {
		t.Error("entry should dominate mid")
	}
	if !Dominates(m, mid, exit) {
		t.Error("mid should dominate exit")
	}
	if !Dominates(m, entry, exit) {
		t.Error("entry should dominate exit (transitively)")
	}
	if exit.PostDominator != SentinelIndex {
		t.Errorf("exit.PostDominator = %d, want SentinelIndex", exit.PostDominator)
	}
	if !PostDominates(m, exit, mid) {
		t.Error("exit should post-dominate mid")
	}
	if !PostDominates(m, mid, entry) {
		t.Error("mid should post-dominate entry")
	}
}

func TestNormalizeLoopDepth(t *testing.T) {
	tm := loopModule()
	m := BuildModule(tm)
	Normalize(m)

	entry := findBlock(m, tm.Functions[0].Blocks[0])
	header := findBlock(m, tm.Functions[0].Blocks[1])
	body := findBlock(m, tm.Functions[0].Blocks[2])
	exit := findBlock(m, tm.Functions[0].Blocks[3])

	if entry.LoopDepth != 0 {
		t.Errorf("entry.LoopDepth = %d, want 0", entry.LoopDepth)
	}
	if header.LoopDepth != 1 {
		t.Errorf("header.LoopDepth = %d, want 1 (loop header dominates its own predecessor body)", header.LoopDepth)
	}
	if body.LoopDepth != 1 {
		t.Errorf("body.LoopDepth = %d, want 1", body.LoopDepth)
	}
	if exit.LoopDepth != 0 {
		t.Errorf("exit.LoopDepth = %d, want 0", exit.LoopDepth)
	}
}

func TestNormalizeDomTreeContainment(t *testing.T) {
	tm := loopModule()
	m := BuildModule(tm)
	Normalize(m)

	for _, b := range m.Blocks {
		if b.Dominator == SentinelIndex {
			continue
		}
		dom := m.Blocks[b.Dominator]
		if b.DomTreeID < dom.DomTreeID || b.DomTreeID >= dom.DomTreeID+dom.DomTreeSize {
			t.Errorf("block with dominator %d: DomTreeID %d not contained in dominator's interval [%d, %d)",
				b.Dominator, b.DomTreeID, dom.DomTreeID, dom.DomTreeID+dom.DomTreeSize)
		}
	}
}

func TestNormalizeIdempotentInvariants(t *testing.T) {
	tm := loopModule()
	m := BuildModule(tm)
	Normalize(m)

	type snapshot struct {
		dom, postDom, loopDepth int
	}
	before := make([]snapshot, len(m.Blocks))
	for i, b := range m.Blocks {
		before[i] = snapshot{b.Dominator, b.PostDominator, b.LoopDepth}
	}

	Normalize(m)

	for i, b := range m.Blocks {
		got := snapshot{b.Dominator, b.PostDominator, b.LoopDepth}
		if got != before[i] {
			t.Errorf("block %d: normalize not idempotent: got %+v, want %+v", i, got, before[i])
		}
	}
}
