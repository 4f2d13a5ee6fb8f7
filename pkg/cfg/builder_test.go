package cfg

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raymyers/ion/pkg/ir"
)

// loopFunction builds:
//
//	entry: MOV %1, 0; MOV %2, 10
//	loop:  BEQ %1, %2, exit
//	body:  ADD %3, %1, 1; JMP loop
//	exit:  RET %1
func loopFunction() *ir.Function {
	fn := ir.NewFunction("loop")
	fn.AddBlock("entry", ir.Def(ir.MOV, 1, ir.Imm(0)), ir.Def(ir.MOV, 2, ir.Imm(10)))
	fn.AddBlock("loop", ir.Op(ir.BEQ, ir.Reg(1), ir.Reg(2), ir.LabelRef("exit")))
	fn.AddBlock("body", ir.Def(ir.ADD, 3, ir.Reg(1), ir.Imm(1)), ir.Op(ir.JMP, ir.LabelRef("loop")))
	fn.AddBlock("exit", ir.Op(ir.RET, ir.Reg(1)))
	return fn
}

func succIDs(fn *ir.Function, id int) []int {
	i, ok := fn.Index(id)
	if !ok {
		return nil
	}
	return fn.SuccIDs(i)
}

func predIDs(fn *ir.Function, id int) []int {
	i, ok := fn.Index(id)
	if !ok {
		return nil
	}
	return fn.PredIDs(i)
}

func TestConstructLoop(t *testing.T) {
	fn := loopFunction()
	require.NoError(t, Construct(fn))

	assert.ElementsMatch(t, []int{1}, succIDs(fn, 0), "entry falls through to loop")
	assert.ElementsMatch(t, []int{3, 2}, succIDs(fn, 1), "loop branches to exit and falls through to body")
	assert.ElementsMatch(t, []int{1}, succIDs(fn, 2), "body jumps back to loop")
	assert.Empty(t, succIDs(fn, 3), "exit returns")

	assert.ElementsMatch(t, []int{0, 2}, predIDs(fn, 1))
	assert.ElementsMatch(t, []int{1}, predIDs(fn, 2))
	assert.ElementsMatch(t, []int{1}, predIDs(fn, 3))
	assert.Empty(t, predIDs(fn, 0))
}

func TestConstructIdempotent(t *testing.T) {
	once := loopFunction()
	require.NoError(t, Construct(once))

	twice := loopFunction()
	require.NoError(t, Construct(twice))
	require.NoError(t, Construct(twice))

	for i := range once.Blocks {
		assert.Equal(t, once.Blocks[i].Succs, twice.Blocks[i].Succs, "succs of block %d", once.Blocks[i].ID)
		assert.Equal(t, once.Blocks[i].Preds, twice.Blocks[i].Preds, "preds of block %d", once.Blocks[i].ID)
	}
	assert.Equal(t, 4, twice.NumEdges())
}

func TestTerminatorSemantics(t *testing.T) {
	tests := []struct {
		name string
		last ir.Instruction
		want []int // successor ids of block 0
	}{
		{"RET", ir.Op(ir.RET, ir.Reg(1)), nil},
		{"RET void", ir.Op(ir.RET), nil},
		{"JMP", ir.Op(ir.JMP, ir.LabelRef("target")), []int{2}},
		{"BEQ", ir.Op(ir.BEQ, ir.Reg(1), ir.Imm(0), ir.LabelRef("target")), []int{2, 1}},
		{"BEQ to next", ir.Op(ir.BEQ, ir.Reg(1), ir.Imm(0), ir.LabelRef("next")), []int{1}},
		{"ADD", ir.Def(ir.ADD, 2, ir.Reg(1), ir.Imm(1)), []int{1}},
		{"SUB", ir.Def(ir.SUB, 2, ir.Reg(1), ir.Imm(1)), []int{1}},
		{"MUL", ir.Def(ir.MUL, 2, ir.Reg(1), ir.Imm(2)), []int{1}},
		{"MOV", ir.Def(ir.MOV, 2, ir.Imm(5)), []int{1}},
		{"LOAD", ir.Def(ir.LOAD, 2, ir.Reg(1)), []int{1}},
		{"STORE", ir.Op(ir.STORE, ir.Reg(1), ir.Reg(2)), []int{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := ir.NewFunction("f")
			fn.AddBlock("start", ir.Def(ir.MOV, 1, ir.Imm(0)), tt.last)
			fn.AddBlock("next", ir.Op(ir.RET))
			fn.AddBlock("target", ir.Op(ir.RET))

			require.NoError(t, Construct(fn))
			assert.ElementsMatch(t, tt.want, succIDs(fn, 0))
		})
	}
}

func TestFallthroughAtEnd(t *testing.T) {
	fn := ir.NewFunction("f")
	fn.AddBlock("top", ir.Op(ir.BEQ, ir.Reg(1), ir.Imm(0), ir.LabelRef("top")))
	fn.AddBlock("", ir.Def(ir.ADD, 1, ir.Reg(1), ir.Imm(1)))

	require.NoError(t, Construct(fn))
	assert.ElementsMatch(t, []int{0, 1}, succIDs(fn, 0))
	assert.Empty(t, succIDs(fn, 1), "last block has no next block to fall into")
	assert.ElementsMatch(t, []int{0}, predIDs(fn, 0), "self loop")
}

func TestEmptyBlockSkipped(t *testing.T) {
	fn := ir.NewFunction("f")
	fn.AddBlock("first", ir.Def(ir.MOV, 1, ir.Imm(0)))
	fn.AddBlock("empty")
	fn.AddBlock("last", ir.Op(ir.RET, ir.Reg(1)))
	fn.AddBlock("tail")

	require.NoError(t, Construct(fn))
	assert.ElementsMatch(t, []int{1}, succIDs(fn, 0))
	assert.Empty(t, succIDs(fn, 1), "empty block in the middle")
	assert.Empty(t, succIDs(fn, 3), "empty block at the end")
	assert.Empty(t, predIDs(fn, 2), "nothing falls out of the empty block")
}

func TestUndefinedLabel(t *testing.T) {
	for _, op := range []ir.Opcode{ir.JMP, ir.BEQ} {
		t.Run(op.String(), func(t *testing.T) {
			fn := ir.NewFunction("f")
			fn.AddBlock("entry", ir.Def(ir.MOV, 1, ir.Imm(0)))
			fn.AddBlock("jump", ir.Op(op, ir.Reg(1), ir.LabelRef("nowhere")))
			fn.AddBlock("exit", ir.Op(ir.RET))

			err := Construct(fn)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUndefinedLabel))

			var labelErr *UndefinedLabelError
			require.True(t, errors.As(err, &labelErr))
			assert.Equal(t, "nowhere", labelErr.Label)
			assert.Equal(t, 1, labelErr.Block)
			assert.Contains(t, err.Error(), `"nowhere"`)

			assert.Empty(t, succIDs(fn, 1), "no edges from the failing block")
			assert.Zero(t, fn.NumEdges(), "a failed build adds no edges")
		})
	}
}

func TestMissingBranchTarget(t *testing.T) {
	tests := []struct {
		name  string
		instr ir.Instruction
	}{
		{"JMP register", ir.Op(ir.JMP, ir.Reg(4))},
		{"JMP bare", ir.Op(ir.JMP)},
		{"BEQ no label", ir.Op(ir.BEQ, ir.Reg(1), ir.Imm(0))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := ir.NewFunction("f")
			fn.AddBlock("a", tt.instr)
			fn.AddBlock("b", ir.Op(ir.RET))

			err := Construct(fn)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMissingBranchTarget)
			assert.NotErrorIs(t, err, ErrUndefinedLabel)
		})
	}
}

func TestTargetScannedFromEnd(t *testing.T) {
	fn := ir.NewFunction("f")
	fn.AddBlock("a", ir.Op(ir.JMP, ir.LabelRef("b"), ir.LabelRef("c"), ir.Imm(0)))
	fn.AddBlock("b", ir.Op(ir.RET))
	fn.AddBlock("c", ir.Op(ir.RET))

	require.NoError(t, Construct(fn))
	assert.Equal(t, []int{2}, succIDs(fn, 0))
}

func TestDuplicateLabelLastWins(t *testing.T) {
	fn := ir.NewFunction("f")
	fn.AddBlock("a", ir.Op(ir.JMP, ir.LabelRef("dup")))
	fn.AddBlock("dup", ir.Op(ir.RET))
	fn.AddBlock("dup", ir.Op(ir.RET))

	require.NoError(t, Construct(fn))
	assert.Equal(t, []int{2}, succIDs(fn, 0))
}

func TestAddEdgeDeduplicates(t *testing.T) {
	fn := ir.NewFunction("f")
	fn.AddBlock("a")
	fn.AddBlock("b")
	b := NewBuilder(fn)

	assert.True(t, b.AddEdge(0, 1))
	assert.False(t, b.AddEdge(0, 1))
	assert.True(t, b.AddEdge(1, 0))
	assert.Equal(t, []int{1}, fn.Blocks[0].Succs)
	assert.Equal(t, []int{0}, fn.Blocks[1].Preds)
}

func TestNonSequentialIDs(t *testing.T) {
	fn := &ir.Function{
		Name: "ids",
		Blocks: []ir.BasicBlock{
			{ID: 10, Label: "x", Instrs: []ir.Instruction{ir.Op(ir.BEQ, ir.Reg(1), ir.Imm(0), ir.LabelRef("z"))}},
			{ID: 4, Label: "y", Instrs: []ir.Instruction{ir.Def(ir.MOV, 1, ir.Imm(1))}},
			{ID: 7, Label: "z", Instrs: []ir.Instruction{ir.Op(ir.RET)}},
		},
	}
	require.NoError(t, Construct(fn))
	assert.ElementsMatch(t, []int{7, 4}, succIDs(fn, 10), "fallthrough follows list order, not id order")
	assert.Equal(t, []int{7}, succIDs(fn, 4))
}
