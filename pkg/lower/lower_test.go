package lower

import (
	"testing"

	"github.com/ohmu-lang/x64backend/pkg/cfg"
	"github.com/ohmu-lang/x64backend/pkg/events"
	"github.com/ohmu-lang/x64backend/pkg/til"
)

var int32Type = til.ValueType{Base: til.Int, Size: til.Size32, Signed: true}

// singleAddModule builds spec §8.4 scenario 1:
// function f(a:int32, b:int32) -> int32 { return a + b; }
func singleAddModule() *til.Module {
	entry := &til.BasicBlock{}
	phiA := &til.Phi{Type: int32Type, StackID: til.NoStackID}
	phiB := &til.Phi{Type: int32Type, StackID: til.NoStackID}
	entry.Arguments = []*til.Phi{phiA, phiB}

	sum := til.NewBinary(til.BOpAdd, int32Type, til.NewPhiRef(phiA), til.NewPhiRef(phiB))
	entry.Terminator = &til.Return{Value: sum}

	return &til.Module{Functions: []*til.Function{{Blocks: []*til.BasicBlock{entry}}}}
}

func TestLowerSingleAdd(t *testing.T) {
	tm := singleAddModule()
	m := cfg.BuildModule(tm)
	cfg.Normalize(m)
	s := Lower(m)

	wantOps := []events.Opcode{events.NOP, events.PHI, events.PHI, events.LAST_USE, events.LAST_USE, events.ADD, events.RET}
	if s.Len() != len(wantOps) {
		t.Fatalf("event count = %d, want %d (%v)", s.Len(), len(wantOps), s.Code)
	}
	for i, want := range wantOps {
		if s.Code[i] != want {
			t.Errorf("event %d: opcode = %s, want %s", i, s.Code[i], want)
		}
	}
	if s.Data[3] != 1 || s.Data[4] != 2 {
		t.Errorf("LAST_USE data = (%d, %d), want (1, 2)", s.Data[3], s.Data[4])
	}
	if s.Data[6] != 5 {
		t.Errorf("RET data = %d, want 5 (the ADD event's index)", s.Data[6])
	}
}

// emptyReturnModule builds spec §8.3's boundary case: a function whose
// single block is immediately "return;".
func emptyReturnModule() *til.Module {
	entry := &til.BasicBlock{Terminator: &til.Return{}}
	return &til.Module{Functions: []*til.Function{{Blocks: []*til.BasicBlock{entry}}}}
}

func TestLowerEmptyFunction(t *testing.T) {
	tm := emptyReturnModule()
	m := cfg.BuildModule(tm)
	cfg.Normalize(m)
	s := Lower(m)

	if s.Len() != 2 {
		t.Fatalf("event count = %d, want 2 (one NOP header + one RET)", s.Len())
	}
	if s.Code[0] != events.NOP {
		t.Errorf("event 0 = %s, want NOP", s.Code[0])
	}
	if s.Code[1] != events.RET {
		t.Errorf("event 1 = %s, want RET", s.Code[1])
	}
	if s.Data[1] != RetVoid {
		t.Errorf("RET data = %d, want RetVoid", s.Data[1])
	}
}

func TestLowerPhiMerge(t *testing.T) {
	// entry branches to left/right, both Goto a join block with one phi.
	entry := &til.BasicBlock{}
	left := &til.BasicBlock{}
	right := &til.BasicBlock{}
	join := &til.BasicBlock{}

	phi := &til.Phi{Type: int32Type, StackID: til.NoStackID}
	join.Arguments = []*til.Phi{phi}

	entry.Successors = []*til.BasicBlock{left, right}
	entry.Terminator = &til.Branch{Cond: til.NewLiteral(til.ValueType{Base: til.Bool}, 1), Then: left, Else: right}

	left.Predecessors = []*til.BasicBlock{entry}
	left.Successors = []*til.BasicBlock{join}
	leftVal := til.NewLiteral(int32Type, 1)
	phi.Incoming = append(phi.Incoming, leftVal) // placeholder order fixed below
	left.Terminator = &til.Goto{Target: join}

	right.Predecessors = []*til.BasicBlock{entry}
	right.Successors = []*til.BasicBlock{join}
	rightVal := til.NewLiteral(int32Type, 2)
	right.Terminator = &til.Goto{Target: join}

	join.Predecessors = []*til.BasicBlock{left, right}
	join.Terminator = &til.Return{Value: til.NewPhiRef(phi)}

	phi.Incoming = []*til.Expr{leftVal, rightVal}

	tm := &til.Module{Functions: []*til.Function{{Blocks: []*til.BasicBlock{entry, left, right, join}}}}

	m := cfg.BuildModule(tm)
	cfg.Normalize(m)
	s := Lower(m)

	foundJoinCopy := false
	for _, op := range s.Code {
		if op == events.JOIN_COPY {
			foundJoinCopy = true
		}
	}
	if !foundJoinCopy {
		t.Errorf("expected at least one JOIN_COPY event in the lowered stream, got %v", s.Code)
	}
}
