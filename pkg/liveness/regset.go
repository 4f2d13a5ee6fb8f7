package liveness

import (
	"strings"

	"github.com/bits-and-blooms/bitset"
	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/exp/slices"

	"github.com/raymyers/ion/pkg/ir"
)

// denseLimit bounds the register ids kept in the bit set. Larger ids go to
// a hash set so memory tracks the registers actually present.
const denseLimit = 1 << 16

// RegSet is a set of virtual registers. Ids below denseLimit are stored in
// a bit set indexed by register id, the rest in a sparse set.
// The zero value is not usable; use NewRegSet.
type RegSet struct {
	dense  *bitset.BitSet
	sparse mapset.Set[ir.Reg]
}

// NewRegSet creates an empty set
func NewRegSet() RegSet {
	return RegSet{
		dense:  bitset.New(0),
		sparse: mapset.NewThreadUnsafeSet[ir.Reg](),
	}
}

// RegSetOf creates a set holding the given registers
func RegSetOf(regs ...ir.Reg) RegSet {
	s := NewRegSet()
	for _, r := range regs {
		s.Add(r)
	}
	return s
}

// Add inserts r into the set. Negative ids are not registers and are ignored.
func (s RegSet) Add(r ir.Reg) {
	switch {
	case r < 0:
	case r < denseLimit:
		s.dense.Set(uint(r))
	default:
		s.sparse.Add(r)
	}
}

// Contains reports whether r is in the set
func (s RegSet) Contains(r ir.Reg) bool {
	switch {
	case r < 0:
		return false
	case r < denseLimit:
		return s.dense.Test(uint(r))
	}
	return s.sparse.Contains(r)
}

// Len returns the number of registers in the set
func (s RegSet) Len() int {
	return int(s.dense.Count()) + s.sparse.Cardinality()
}

// Union returns a new set with the registers of s and other
func (s RegSet) Union(other RegSet) RegSet {
	return RegSet{
		dense:  s.dense.Union(other.dense),
		sparse: s.sparse.Union(other.sparse),
	}
}

// Minus returns a new set with the registers of s that are not in other
func (s RegSet) Minus(other RegSet) RegSet {
	return RegSet{
		dense:  s.dense.Difference(other.dense),
		sparse: s.sparse.Difference(other.sparse),
	}
}

// Equal reports whether both sets hold the same registers,
// regardless of how much room the bit sets have allocated.
func (s RegSet) Equal(other RegSet) bool {
	return s.dense.SymmetricDifferenceCardinality(other.dense) == 0 &&
		s.sparse.Equal(other.sparse)
}

// IsSuperset reports whether every register of other is in s
func (s RegSet) IsSuperset(other RegSet) bool {
	return other.dense.DifferenceCardinality(s.dense) == 0 &&
		s.sparse.IsSuperset(other.sparse)
}

// Copy returns an independent copy of the set
func (s RegSet) Copy() RegSet {
	return RegSet{dense: s.dense.Clone(), sparse: s.sparse.Clone()}
}

// Slice returns the registers in ascending order
func (s RegSet) Slice() []ir.Reg {
	regs := make([]ir.Reg, 0, s.Len())
	for i, ok := s.dense.NextSet(0); ok; i, ok = s.dense.NextSet(i + 1) {
		regs = append(regs, ir.Reg(i))
	}
	// every sparse id is above every dense one
	large := s.sparse.ToSlice()
	slices.Sort(large)
	return append(regs, large...)
}

// String formats the set as {%1, %2}
func (s RegSet) String() string {
	regs := s.Slice()
	parts := make([]string, len(regs))
	for i, r := range regs {
		parts[i] = r.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
