package ir

import (
	"bytes"
	"strings"
	"testing"
)

func TestFormatInstruction(t *testing.T) {
	tests := []struct {
		instr Instruction
		want  string
	}{
		{Def(MOV, 1, Imm(0)), "MOV %1, 0"},
		{Def(ADD, 3, Reg(1), Imm(1)), "ADD %3, %1, 1"},
		{Op(BEQ, Reg(1), Reg(2), LabelRef("exit")), "BEQ %1, %2, exit"},
		{Op(JMP, LabelRef("loop")), "JMP loop"},
		{Op(RET), "RET"},
		{Op(STORE, Reg(4), Reg(5)), "STORE %4, %5"},
	}
	for _, tt := range tests {
		if got := FormatInstruction(tt.instr); got != tt.want {
			t.Errorf("FormatInstruction() = %q, want %q", got, tt.want)
		}
	}
}

func TestPrintFunction(t *testing.T) {
	fn := NewFunction("count")
	fn.AddBlock("entry", Def(MOV, 1, Imm(0)))
	fn.AddBlock("", Op(RET, Reg(1)))

	var buf bytes.Buffer
	NewPrinter(&buf).PrintFunction(fn)
	output := buf.String()

	for _, want := range []string{"; function count", "entry:\n", "  MOV %1, 0\n", "; block 1\n", "  RET %1\n"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, output)
		}
	}
	if strings.Contains(output, "succs") {
		t.Errorf("unwired function should not print edges, got:\n%s", output)
	}
}

func TestPrintFunctionWithEdges(t *testing.T) {
	fn := NewFunction("f")
	fn.AddBlock("entry", Def(MOV, 1, Imm(0)))
	fn.AddBlock("exit", Op(RET, Reg(1)))
	fn.Blocks[0].Succs = []int{1}
	fn.Blocks[1].Preds = []int{0}

	var buf bytes.Buffer
	NewPrinter(&buf).PrintFunction(fn)
	output := buf.String()

	if !strings.Contains(output, "entry: ; preds: - succs: 1") {
		t.Errorf("missing entry edge comment, got:\n%s", output)
	}
	if !strings.Contains(output, "exit: ; preds: 0 succs: -") {
		t.Errorf("missing exit edge comment, got:\n%s", output)
	}
}
