// Package dot renders control-flow graphs, optionally annotated with
// liveness, in Graphviz DOT syntax.
package dot

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/raymyers/ion/pkg/ir"
	"github.com/raymyers/ion/pkg/liveness"
)

// Printer writes functions as DOT digraphs
type Printer struct {
	w io.Writer
}

// NewPrinter creates a new DOT printer
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// PrintCFG writes one box per block and one arrow per successor edge
func (p *Printer) PrintCFG(fn *ir.Function) {
	p.print(fn, nil)
}

// PrintLiveness writes the CFG with the live-in set above and the live-out
// set below the instructions of every block
func (p *Printer) PrintLiveness(fn *ir.Function, res *liveness.Result) {
	p.print(fn, res)
}

func (p *Printer) print(fn *ir.Function, res *liveness.Result) {
	fmt.Fprintf(p.w, "digraph %s {\n", quote(fn.Name))
	fmt.Fprintln(p.w, `  node [shape=box, fontname="monospace"];`)

	for i := range fn.Blocks {
		b := &fn.Blocks[i]
		lines := []string{header(b)}
		if res != nil {
			lines = append(lines, "in:  "+regSet(res.LiveInOf(b.ID)))
		}
		for _, instr := range b.Instrs {
			lines = append(lines, ir.FormatInstruction(instr))
		}
		if res != nil {
			lines = append(lines, "out: "+regSet(res.LiveOutOf(b.ID)))
		}
		fmt.Fprintf(p.w, "  %s [label=%s];\n", nodeName(b.ID), leftJustified(lines))
	}

	for i := range fn.Blocks {
		succs := fn.SuccIDs(i)
		slices.Sort(succs)
		for _, s := range succs {
			fmt.Fprintf(p.w, "  %s -> %s;\n", nodeName(fn.Blocks[i].ID), nodeName(s))
		}
	}

	fmt.Fprintln(p.w, "}")
}

func header(b *ir.BasicBlock) string {
	if b.Label != "" {
		return b.Label + ":"
	}
	return fmt.Sprintf("block %d", b.ID)
}

func nodeName(id int) string {
	return fmt.Sprintf("B%d", id)
}

func regSet(regs []ir.Reg) string {
	return liveness.RegSetOf(regs...).String()
}

var escaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func quote(s string) string {
	return `"` + escaper.Replace(s) + `"`
}

// leftJustified ends every line with \l so Graphviz aligns them left
func leftJustified(lines []string) string {
	var sb strings.Builder
	sb.WriteString(`"`)
	for _, l := range lines {
		sb.WriteString(escaper.Replace(l))
		sb.WriteString(`\l`)
	}
	sb.WriteString(`"`)
	return sb.String()
}
