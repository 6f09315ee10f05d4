package main

import (
	"testing"

	"github.com/ohmu-lang/x64backend/pkg/x86"
)

func TestAssembleLine(t *testing.T) {
	cases := []struct {
		line string
		want x86.Instr
	}{
		{"ADD EAX, EDX", x86.AluRR("ADD", x86.RAX, x86.RDX)},
		{"mov eax, ecx", x86.MovRR(x86.RAX, x86.RCX)},
		{"MOV EBX, 5", x86.MovImm32(x86.RBX, 5)},
		{"IMUL EAX, EBX", x86.Imul(x86.RAX, x86.RBX)},
		{"IDIV ECX", x86.Group3("IDIV", x86.RCX)},
		{"RET", x86.Ret()},
		{"CDQ", x86.Cdq()},
	}
	for _, c := range cases {
		got, err := assembleLine(c.line)
		if err != nil {
			t.Fatalf("assembleLine(%q): %v", c.line, err)
		}
		if got != c.want {
			t.Errorf("assembleLine(%q) = %+v, want %+v", c.line, got, c.want)
		}
	}
}

func TestAssembleLineRejectsUnknown(t *testing.T) {
	if _, err := assembleLine("FROB EAX, EBX"); err == nil {
		t.Fatal("expected an error for an unknown mnemonic")
	}
}
