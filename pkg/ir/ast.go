// Package ir defines the block-structured intermediate representation consumed
// by the CFG builder and the liveness solver.
// A Function owns a flat arena of basic blocks; control-flow edges between
// blocks are stored as indices into that arena.
package ir

import "fmt"

// Reg represents a virtual register (non-negative integer, unique per function)
type Reg int

// Imm is a signed integer constant
type Imm int64

// LabelRef names the entry label of a block (a jump target)
type LabelRef string

// --- Operands ---

// Operand is the interface for instruction operands.
// It is implemented by Reg, Imm and LabelRef.
type Operand interface {
	implOperand()
	String() string
}

func (Reg) implOperand()      {}
func (Imm) implOperand()      {}
func (LabelRef) implOperand() {}

func (r Reg) String() string      { return fmt.Sprintf("%%%d", int(r)) }
func (i Imm) String() string      { return fmt.Sprintf("%d", int64(i)) }
func (l LabelRef) String() string { return string(l) }

// --- Opcodes ---

// Opcode identifies the operation performed by an instruction
type Opcode int

const (
	ADD   Opcode = iota // dest = a + b
	SUB                 // dest = a - b
	MUL                 // dest = a * b
	MOV                 // dest = a
	LOAD                // dest = Mem[a]
	STORE               // Mem[a] = b
	JMP                 // goto label
	BEQ                 // if a == b goto label
	RET                 // return [a]
)

var opcodeNames = []string{"ADD", "SUB", "MUL", "MOV", "LOAD", "STORE", "JMP", "BEQ", "RET"}

func (op Opcode) String() string {
	if op >= 0 && int(op) < len(opcodeNames) {
		return opcodeNames[op]
	}
	return "???"
}

// LookupOpcode returns the opcode for a mnemonic
func LookupOpcode(name string) (Opcode, bool) {
	for i, n := range opcodeNames {
		if n == name {
			return Opcode(i), true
		}
	}
	return 0, false
}

// IsControlTransfer reports whether the opcode ends a basic block
func (op Opcode) IsControlTransfer() bool {
	switch op {
	case JMP, BEQ, RET:
		return true
	}
	return false
}

// HasDest reports whether the first register operand of the opcode is a destination.
// BEQ, RET, STORE and JMP only read their operands.
func (op Opcode) HasDest() bool {
	switch op {
	case BEQ, RET, STORE, JMP:
		return false
	}
	return true
}

// --- Instructions ---

// Instruction is a single three-address instruction.
// Dest is nil for instructions that produce no value.
type Instruction struct {
	Op   Opcode
	Dest *Reg      // destination register (nil if no result)
	Args []Operand // source operands, in written order
}

// Uses returns the registers read by the instruction, in operand order
func (i Instruction) Uses() []Reg {
	var regs []Reg
	for _, a := range i.Args {
		if r, ok := a.(Reg); ok {
			regs = append(regs, r)
		}
	}
	return regs
}

// Target returns the branch target of the instruction: the last LabelRef
// found scanning the operands from the end.
func (i Instruction) Target() (LabelRef, bool) {
	for j := len(i.Args) - 1; j >= 0; j-- {
		if l, ok := i.Args[j].(LabelRef); ok {
			return l, true
		}
	}
	return "", false
}

// Def builds an instruction with a destination register
func Def(op Opcode, dest Reg, args ...Operand) Instruction {
	return Instruction{Op: op, Dest: &dest, Args: args}
}

// Op builds an instruction without a destination
func Op(op Opcode, args ...Operand) Instruction {
	return Instruction{Op: op, Args: args}
}

// --- Blocks and functions ---

// BasicBlock is a straight-line sequence of instructions.
// Preds and Succs are indices into the owning Function's Blocks and are
// only populated by the CFG builder.
type BasicBlock struct {
	ID     int           // unique within the function
	Label  string        // entry label ("" if unlabeled)
	Instrs []Instruction // instructions in order
	Preds  []int         // predecessor block indices
	Succs  []int         // successor block indices
}

// Last returns the block terminator, if the block is non-empty
func (b *BasicBlock) Last() (Instruction, bool) {
	if len(b.Instrs) == 0 {
		return Instruction{}, false
	}
	return b.Instrs[len(b.Instrs)-1], true
}

// Function is a named sequence of basic blocks in program order.
// The order of Blocks defines fallthrough.
type Function struct {
	Name   string
	Blocks []BasicBlock
}

// NewFunction creates an empty function
func NewFunction(name string) *Function {
	return &Function{Name: name}
}

// AddBlock appends a block with the next free id and returns its index
func (f *Function) AddBlock(label string, instrs ...Instruction) int {
	f.Blocks = append(f.Blocks, BasicBlock{
		ID:     len(f.Blocks),
		Label:  label,
		Instrs: instrs,
	})
	return len(f.Blocks) - 1
}

// Index returns the arena index of the block with the given id
func (f *Function) Index(id int) (int, bool) {
	for i := range f.Blocks {
		if f.Blocks[i].ID == id {
			return i, true
		}
	}
	return 0, false
}

// Block returns the block with the given id
func (f *Function) Block(id int) (*BasicBlock, bool) {
	i, ok := f.Index(id)
	if !ok {
		return nil, false
	}
	return &f.Blocks[i], true
}

// SuccIDs returns the ids of the successors of the block at index i
func (f *Function) SuccIDs(i int) []int {
	return f.ids(f.Blocks[i].Succs)
}

// PredIDs returns the ids of the predecessors of the block at index i
func (f *Function) PredIDs(i int) []int {
	return f.ids(f.Blocks[i].Preds)
}

func (f *Function) ids(idx []int) []int {
	ids := make([]int, len(idx))
	for j, k := range idx {
		ids[j] = f.Blocks[k].ID
	}
	return ids
}

// NumEdges returns the number of successor edges in the function
func (f *Function) NumEdges() int {
	n := 0
	for i := range f.Blocks {
		n += len(f.Blocks[i].Succs)
	}
	return n
}

// ResetEdges clears every predecessor and successor list
func (f *Function) ResetEdges() {
	for i := range f.Blocks {
		f.Blocks[i].Preds = nil
		f.Blocks[i].Succs = nil
	}
}

// MaxReg returns the largest register id used or defined in the function.
// The second result is false if the function mentions no registers.
func (f *Function) MaxReg() (Reg, bool) {
	hi, found := Reg(0), false
	see := func(r Reg) {
		if !found || r > hi {
			hi, found = r, true
		}
	}
	for i := range f.Blocks {
		for _, instr := range f.Blocks[i].Instrs {
			if instr.Dest != nil {
				see(*instr.Dest)
			}
			for _, r := range instr.Uses() {
				see(r)
			}
		}
	}
	return hi, found
}
