// Package cfg reconstructs control-flow edges between the basic blocks of an
// ir.Function from the terminator of each block.
package cfg

import (
	"errors"
	"fmt"

	"github.com/raymyers/ion/pkg/ir"
)

// ErrMissingBranchTarget indicates a JMP or BEQ with no label operand
var ErrMissingBranchTarget = errors.New("branch instruction missing label operand")

// ErrUndefinedLabel indicates a JMP or BEQ whose target names no block
var ErrUndefinedLabel = errors.New("undefined label")

// UndefinedLabelError reports the block and label of an unresolved jump target.
// It matches ErrUndefinedLabel with errors.Is.
type UndefinedLabelError struct {
	Block int    // id of the block whose terminator failed to resolve
	Label string // the unresolved name
}

func (e *UndefinedLabelError) Error() string {
	return fmt.Sprintf("block %d: undefined label %q", e.Block, e.Label)
}

func (e *UndefinedLabelError) Unwrap() error {
	return ErrUndefinedLabel
}

// edge is a pending successor edge, by arena index
type edge struct {
	from, to int
}

// Builder wires predecessor/successor edges into a function.
// It maps labels to block indices while resolving jump targets.
type Builder struct {
	fn         *ir.Function
	labelNodes map[string]int // label -> block index
}

// NewBuilder creates a CFG builder for fn
func NewBuilder(fn *ir.Function) *Builder {
	return &Builder{
		fn:         fn,
		labelNodes: make(map[string]int),
	}
}

// Construct builds the CFG of fn in place.
// See Builder.Build.
func Construct(fn *ir.Function) error {
	return NewBuilder(fn).Build()
}

// Build resolves the terminator of every block and appends the resulting
// edges. Every terminator is resolved before any edge is added, so a label
// error leaves the edge lists as they were. Re-running Build never
// duplicates an edge.
func (b *Builder) Build() error {
	b.mapLabels()

	var edges []edge
	for i := range b.fn.Blocks {
		succs, err := b.successors(i)
		if err != nil {
			return err
		}
		for _, s := range succs {
			edges = append(edges, edge{from: i, to: s})
		}
	}

	for _, e := range edges {
		b.AddEdge(e.from, e.to)
	}
	return nil
}

// mapLabels records the index of every labeled block.
// A duplicated label resolves to its last occurrence.
func (b *Builder) mapLabels() {
	for i := range b.fn.Blocks {
		if label := b.fn.Blocks[i].Label; label != "" {
			b.labelNodes[label] = i
		}
	}
}

// GetLabel returns the block index for a label if it exists.
func (b *Builder) GetLabel(label string) (int, bool) {
	i, ok := b.labelNodes[label]
	return i, ok
}

// successors computes the successor indices of the block at index i from
// its last instruction.
func (b *Builder) successors(i int) ([]int, error) {
	block := &b.fn.Blocks[i]
	last, ok := block.Last()
	if !ok {
		// Empty blocks contribute no edges
		return nil, nil
	}

	switch last.Op {
	case ir.JMP:
		target, err := b.resolveTarget(block.ID, last)
		if err != nil {
			return nil, err
		}
		return []int{target}, nil
	case ir.BEQ:
		target, err := b.resolveTarget(block.ID, last)
		if err != nil {
			return nil, err
		}
		succs := []int{target}
		// Branch not taken continues with the next block
		if next, ok := b.next(i); ok {
			succs = append(succs, next)
		}
		return succs, nil
	case ir.RET:
		return nil, nil
	default:
		if next, ok := b.next(i); ok {
			return []int{next}, nil
		}
		return nil, nil
	}
}

// resolveTarget maps the branch target of instr to a block index.
func (b *Builder) resolveTarget(blockID int, instr ir.Instruction) (int, error) {
	label, ok := instr.Target()
	if !ok {
		return 0, fmt.Errorf("block %d: %s: %w", blockID, instr.Op, ErrMissingBranchTarget)
	}
	target, ok := b.GetLabel(string(label))
	if !ok {
		return 0, &UndefinedLabelError{Block: blockID, Label: string(label)}
	}
	return target, nil
}

// next returns the index of the block following i in program order.
func (b *Builder) next(i int) (int, bool) {
	if i+1 < len(b.fn.Blocks) {
		return i + 1, true
	}
	return 0, false
}

// AddEdge adds the edge from -> to unless it already exists.
// Returns true if the edge was added.
func (b *Builder) AddEdge(from, to int) bool {
	src := &b.fn.Blocks[from]
	for _, s := range src.Succs {
		if s == to {
			return false
		}
	}
	src.Succs = append(src.Succs, to)
	dst := &b.fn.Blocks[to]
	dst.Preds = append(dst.Preds, from)
	return true
}
