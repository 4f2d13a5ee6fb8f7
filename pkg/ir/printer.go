package ir

import (
	"fmt"
	"io"
	"strings"
)

// Printer outputs a Function in the textual IR syntax accepted by the parser
type Printer struct {
	w io.Writer
}

// NewPrinter creates a new IR printer
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// PrintFunction prints every block of fn in program order.
// Blocks with edges get a trailing comment listing predecessor and successor ids.
func (p *Printer) PrintFunction(fn *Function) {
	fmt.Fprintf(p.w, "; function %s\n", fn.Name)
	for i := range fn.Blocks {
		b := &fn.Blocks[i]
		if b.Label != "" {
			fmt.Fprintf(p.w, "%s:", b.Label)
		} else {
			fmt.Fprintf(p.w, "; block %d", b.ID)
		}
		if len(b.Preds) > 0 || len(b.Succs) > 0 {
			fmt.Fprintf(p.w, " ; preds: %s succs: %s",
				joinIDs(fn.PredIDs(i)), joinIDs(fn.SuccIDs(i)))
		}
		fmt.Fprintln(p.w)
		for _, instr := range b.Instrs {
			fmt.Fprintf(p.w, "  %s\n", FormatInstruction(instr))
		}
	}
}

// FormatInstruction renders a single instruction, destination first
func FormatInstruction(instr Instruction) string {
	var sb strings.Builder
	sb.WriteString(instr.Op.String())
	first := true
	write := func(s string) {
		if first {
			sb.WriteString(" ")
			first = false
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(s)
	}
	if instr.Dest != nil {
		write(instr.Dest.String())
	}
	for _, a := range instr.Args {
		write(a.String())
	}
	return sb.String()
}

func joinIDs(ids []int) string {
	if len(ids) == 0 {
		return "-"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ",")
}
