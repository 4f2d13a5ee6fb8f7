// Package liveness computes live-in and live-out sets of virtual registers for
// every basic block of a function whose CFG has been built.
//
// The solver uses the standard backward equations
//
//	LiveOut(B) = U over S in succs(B) of ( UEVar(S) u (LiveOut(S) - VarKill(S)) )
//	LiveIn(B)  = UEVar(B) u (LiveOut(B) - VarKill(B))
//
// iterating LiveOut to a fixpoint from empty sets, then deriving LiveIn once.
package liveness

import (
	"github.com/raymyers/ion/pkg/ir"
)

// UseDef holds the per-block local summaries, keyed by block id
type UseDef struct {
	// UEVar are registers read in a block before any write to them in that block
	UEVar map[int]RegSet
	// VarKill are registers written anywhere in a block
	VarKill map[int]RegSet
	// Universe is the largest register id in the function plus one
	// (0 when the function mentions no registers)
	Universe uint
}

// Result holds the liveness solution of one function.
// All maps are keyed by block id.
type Result struct {
	Function string
	LiveIn   map[int]RegSet
	LiveOut  map[int]RegSet
	UEVar    map[int]RegSet
	VarKill  map[int]RegSet
	// Passes counts applications of Step, including the final pass that
	// observed no change
	Passes int
}

// ComputeUseDef computes UEVar and VarKill for every block of fn.
// Sources are read before the destination is written, so an instruction
// like ADD %1, %1, 1 exposes %1.
func ComputeUseDef(fn *ir.Function) *UseDef {
	ud := &UseDef{
		UEVar:   make(map[int]RegSet, len(fn.Blocks)),
		VarKill: make(map[int]RegSet, len(fn.Blocks)),
	}
	if hi, ok := fn.MaxReg(); ok {
		ud.Universe = uint(hi) + 1
	}

	for i := range fn.Blocks {
		b := &fn.Blocks[i]
		uevar := NewRegSet()
		varkill := NewRegSet()

		for _, instr := range b.Instrs {
			for _, r := range instr.Uses() {
				if !varkill.Contains(r) {
					uevar.Add(r)
				}
			}
			if instr.Dest != nil {
				varkill.Add(*instr.Dest)
			}
		}

		ud.UEVar[b.ID] = uevar
		ud.VarKill[b.ID] = varkill
	}
	return ud
}

// Analyze computes liveness for fn. The CFG of fn must already be built;
// fn is not modified.
func Analyze(fn *ir.Function) *Result {
	ud := ComputeUseDef(fn)

	liveOut := make(map[int]RegSet, len(fn.Blocks))
	for i := range fn.Blocks {
		liveOut[fn.Blocks[i].ID] = NewRegSet()
	}

	passes := 0
	for {
		next := Step(fn, ud, liveOut)
		passes++
		if equalSets(next, liveOut) {
			break
		}
		liveOut = next
	}

	liveIn := make(map[int]RegSet, len(fn.Blocks))
	for i := range fn.Blocks {
		id := fn.Blocks[i].ID
		liveIn[id] = transfer(ud, id, liveOut[id])
	}

	return &Result{
		Function: fn.Name,
		LiveIn:   liveIn,
		LiveOut:  liveOut,
		UEVar:    ud.UEVar,
		VarKill:  ud.VarKill,
		Passes:   passes,
	}
}

// Step performs one pass of the LiveOut equation over every block, reading
// only cur and returning a fresh map. Missing entries in cur are treated as
// empty sets.
func Step(fn *ir.Function, ud *UseDef, cur map[int]RegSet) map[int]RegSet {
	next := make(map[int]RegSet, len(fn.Blocks))
	for i := range fn.Blocks {
		out := NewRegSet()
		for _, s := range fn.Blocks[i].Succs {
			succ := fn.Blocks[s].ID
			succOut, ok := cur[succ]
			if !ok {
				succOut = NewRegSet()
			}
			out = out.Union(transfer(ud, succ, succOut))
		}
		next[fn.Blocks[i].ID] = out
	}
	return next
}

// transfer applies UEVar(B) u (out - VarKill(B)) for block id
func transfer(ud *UseDef, id int, out RegSet) RegSet {
	return ud.UEVar[id].Union(out.Minus(ud.VarKill[id]))
}

func equalSets(a, b map[int]RegSet) bool {
	if len(a) != len(b) {
		return false
	}
	for id, s := range a {
		o, ok := b[id]
		if !ok || !s.Equal(o) {
			return false
		}
	}
	return true
}

// LiveInOf returns the live-in registers of a block in ascending order
func (r *Result) LiveInOf(id int) []ir.Reg {
	if s, ok := r.LiveIn[id]; ok {
		return s.Slice()
	}
	return nil
}

// LiveOutOf returns the live-out registers of a block in ascending order
func (r *Result) LiveOutOf(id int) []ir.Reg {
	if s, ok := r.LiveOut[id]; ok {
		return s.Slice()
	}
	return nil
}
