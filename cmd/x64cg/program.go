package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ohmu-lang/x64backend/pkg/til"
)

// program is the CLI's own textual stand-in for the TIL front end (out of
// scope for this module, per pkg/til's own doc comment): one function, one
// named phi/instruction per JSON block, SSA values referenced by name
// within their own block. It exists only so `compile` has something to
// drive the real pipeline (cfg.BuildModule onward) with, the same way
// z80opt's parseAssembly turns text into inst.Instruction without being
// part of the Z80 toolchain itself.
type program struct {
	Blocks []blockSpec `json:"blocks"`
}

type blockSpec struct {
	Name         string           `json:"name"`
	Phis         []phiSpec        `json:"phis"`
	Instructions []instructionSpec `json:"instructions"`
	Terminator   terminatorSpec   `json:"terminator"`
}

type phiSpec struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type instructionSpec struct {
	Name string `json:"name"`
	Op   string `json:"op"`
	Type string `json:"type"`
	Lhs  string `json:"lhs"`
	Rhs  string `json:"rhs"`
}

type terminatorSpec struct {
	Kind   string   `json:"kind"` // "goto", "branch", "return"
	Target string   `json:"target"`
	Args   []string `json:"args"`
	Cond   string   `json:"cond"`
	Then   string   `json:"then"`
	Else   string   `json:"else"`
	Value  string   `json:"value"`
	Void   bool     `json:"void"`
}

var binOps = map[string]til.BinOp{
	"add": til.BOpAdd, "sub": til.BOpSub, "mul": til.BOpMul,
	"div": til.BOpDiv, "mod": til.BOpMod,
	"eq": til.BOpEq, "lt": til.BOpLt, "leq": til.BOpLeq,
	"and": til.BOpBitAnd, "or": til.BOpBitOr, "xor": til.BOpBitXor,
}

func parseType(s string) (til.ValueType, error) {
	signed := true
	switch {
	case s == "bool":
		return til.ValueType{Base: til.Bool, Size: til.Size1}, nil
	case strings.HasPrefix(s, "u"):
		signed = false
		s = s[1:]
	case strings.HasPrefix(s, "i"):
		s = s[1:]
	default:
		return til.ValueType{}, fmt.Errorf("unknown type %q", s)
	}
	bits, err := strconv.Atoi(s)
	if err != nil {
		return til.ValueType{}, fmt.Errorf("unknown type: %w", err)
	}
	return til.ValueType{Base: til.Int, Size: til.SizeBits(bits), Signed: signed}, nil
}

// buildModule parses a JSON program and builds the corresponding
// single-function til.Module, wiring predecessor/successor/phi-incoming
// edges exactly as a real TIL front end would hand them to pkg/cfg.
func buildModule(data []byte) (*til.Module, error) {
	var p program
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse program: %w", err)
	}
	if len(p.Blocks) == 0 {
		return nil, fmt.Errorf("program has no blocks")
	}

	blocks := make(map[string]*til.BasicBlock, len(p.Blocks))
	order := make([]string, 0, len(p.Blocks))
	for _, bs := range p.Blocks {
		if _, dup := blocks[bs.Name]; dup {
			return nil, fmt.Errorf("duplicate block name %q", bs.Name)
		}
		blocks[bs.Name] = &til.BasicBlock{}
		order = append(order, bs.Name)
	}
	byName := func(name string) (*til.BasicBlock, error) {
		bb, ok := blocks[name]
		if !ok {
			return nil, fmt.Errorf("reference to unknown block %q", name)
		}
		return bb, nil
	}

	// Pass 1: structural edges only, so every block's final predecessor
	// count (hence its phis' Incoming width) is known before any Expr is
	// built. predIndex records the slot a (from, to) edge occupies in
	// to's Predecessors, for pass 2 to fill in goto phi args by position.
	predIndex := make(map[[2]string]int)
	for _, bs := range p.Blocks {
		from, err := byName(bs.Name)
		if err != nil {
			return nil, err
		}
		switch bs.Terminator.Kind {
		case "goto":
			to, err := byName(bs.Terminator.Target)
			if err != nil {
				return nil, err
			}
			predIndex[[2]string{bs.Name, bs.Terminator.Target}] = len(to.Predecessors)
			to.Predecessors = append(to.Predecessors, from)
			from.Successors = append(from.Successors, to)
		case "branch":
			then, err := byName(bs.Terminator.Then)
			if err != nil {
				return nil, err
			}
			els, err := byName(bs.Terminator.Else)
			if err != nil {
				return nil, err
			}
			then.Predecessors = append(then.Predecessors, from)
			els.Predecessors = append(els.Predecessors, from)
			from.Successors = append(from.Successors, then, els)
		case "return":
			// no successors
		default:
			return nil, fmt.Errorf("block %q: unknown terminator kind %q", bs.Name, bs.Terminator.Kind)
		}
	}

	// Allocate phis now that every block's predecessor count is final.
	for _, bs := range p.Blocks {
		bb := blocks[bs.Name]
		for _, ps := range bs.Phis {
			t, err := parseType(ps.Type)
			if err != nil {
				return nil, fmt.Errorf("block %q phi %q: %w", bs.Name, ps.Name, err)
			}
			bb.Arguments = append(bb.Arguments, &til.Phi{
				Type:     t,
				Incoming: make([]*til.Expr, len(bb.Predecessors)),
				StackID:  til.NoStackID,
			})
		}
	}

	// Pass 2: lower each block's instructions and terminator into a local
	// name -> *til.Expr environment, filling goto phi args as we go.
	for _, bs := range p.Blocks {
		bb := blocks[bs.Name]
		env := make(map[string]*til.Expr, len(bs.Phis)+len(bs.Instructions))
		for i, ps := range bs.Phis {
			env[ps.Name] = til.NewPhiRef(bb.Arguments[i])
		}

		resolve := func(name string, t til.ValueType) (*til.Expr, error) {
			if strings.HasPrefix(name, "imm:") {
				v, err := strconv.ParseInt(strings.TrimPrefix(name, "imm:"), 0, 64)
				if err != nil {
					return nil, fmt.Errorf("bad immediate %q: %w", name, err)
				}
				return til.NewLiteral(t, v), nil
			}
			e, ok := env[name]
			if !ok {
				return nil, fmt.Errorf("block %q: unknown value %q", bs.Name, name)
			}
			return e, nil
		}

		for _, is := range bs.Instructions {
			t, err := parseType(is.Type)
			if err != nil {
				return nil, fmt.Errorf("block %q instruction %q: %w", bs.Name, is.Name, err)
			}
			op, ok := binOps[is.Op]
			if !ok {
				return nil, fmt.Errorf("block %q instruction %q: unknown op %q", bs.Name, is.Name, is.Op)
			}
			lhs, err := resolve(is.Lhs, t)
			if err != nil {
				return nil, err
			}
			rhs, err := resolve(is.Rhs, t)
			if err != nil {
				return nil, err
			}
			env[is.Name] = til.NewBinary(op, t, lhs, rhs)
			bb.Instructions = append(bb.Instructions, env[is.Name])
		}

		switch bs.Terminator.Kind {
		case "goto":
			target := blocks[bs.Terminator.Target]
			if len(bs.Terminator.Args) != len(target.Arguments) {
				return nil, fmt.Errorf("block %q: goto %q passes %d args, target has %d phis",
					bs.Name, bs.Terminator.Target, len(bs.Terminator.Args), len(target.Arguments))
			}
			idx := predIndex[[2]string{bs.Name, bs.Terminator.Target}]
			for i, argName := range bs.Terminator.Args {
				arg, err := resolve(argName, target.Arguments[i].Type)
				if err != nil {
					return nil, err
				}
				target.Arguments[i].Incoming[idx] = arg
			}
			bb.Terminator = &til.Goto{Target: target}

		case "branch":
			cond, err := resolve(bs.Terminator.Cond, til.ValueType{Base: til.Bool, Size: til.Size1})
			if err != nil {
				return nil, err
			}
			bb.Terminator = &til.Branch{
				Cond: cond,
				Then: blocks[bs.Terminator.Then],
				Else: blocks[bs.Terminator.Else],
			}

		case "return":
			if bs.Terminator.Void || bs.Terminator.Value == "" {
				bb.Terminator = &til.Return{}
				break
			}
			v, err := resolve(bs.Terminator.Value, til.ValueType{Base: til.Int, Size: til.Size32, Signed: true})
			if err != nil {
				return nil, err
			}
			bb.Terminator = &til.Return{Value: v}
		}
	}

	fn := &til.Function{}
	for _, name := range order {
		fn.Blocks = append(fn.Blocks, blocks[name])
	}
	return &til.Module{Functions: []*til.Function{fn}}, nil
}
