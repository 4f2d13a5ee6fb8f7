package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"

	"github.com/raymyers/ion/pkg/ir"
	"github.com/raymyers/ion/pkg/liveness"
)

// livenessReport is the --dlive view of one function, blocks ordered by id
type livenessReport struct {
	Function string        `yaml:"function"`
	Passes   int           `yaml:"passes"`
	Blocks   []blockReport `yaml:"blocks"`
}

type blockReport struct {
	ID      int      `yaml:"id"`
	Label   string   `yaml:"label,omitempty"`
	Succs   []int    `yaml:"succs,flow"`
	UEVar   []ir.Reg `yaml:"uevar,flow"`
	VarKill []ir.Reg `yaml:"varkill,flow"`
	LiveIn  []ir.Reg `yaml:"live_in,flow"`
	LiveOut []ir.Reg `yaml:"live_out,flow"`
}

func newLivenessReport(fn *ir.Function, res *liveness.Result) livenessReport {
	ids := maps.Keys(res.LiveIn)
	slices.Sort(ids)

	report := livenessReport{Function: res.Function, Passes: res.Passes}
	for _, id := range ids {
		br := blockReport{
			ID:      id,
			Succs:   []int{},
			UEVar:   res.UEVar[id].Slice(),
			VarKill: res.VarKill[id].Slice(),
			LiveIn:  res.LiveInOf(id),
			LiveOut: res.LiveOutOf(id),
		}
		if i, ok := fn.Index(id); ok {
			br.Label = fn.Blocks[i].Label
			br.Succs = fn.SuccIDs(i)
		}
		report.Blocks = append(report.Blocks, br)
	}
	return report
}

// writeLiveness prints the liveness of fn in the --format selected
func writeLiveness(w io.Writer, fn *ir.Function, res *liveness.Result) error {
	report := newLivenessReport(fn, res)

	if format == "yaml" {
		// one document per function so several files still form a stream
		fmt.Fprintln(w, "---")
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("encoding liveness: %w", err)
		}
		return enc.Close()
	}

	fmt.Fprintf(w, "function %s (fixpoint after %d passes)\n", report.Function, report.Passes)
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Block", "Label", "Succs", "UEVar", "VarKill", "LiveIn", "LiveOut"})
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	for _, b := range report.Blocks {
		table.Append([]string{
			strconv.Itoa(b.ID),
			b.Label,
			formatIDs(b.Succs),
			formatRegs(b.UEVar),
			formatRegs(b.VarKill),
			formatRegs(b.LiveIn),
			formatRegs(b.LiveOut),
		})
	}
	table.Render()
	return nil
}

func formatRegs(regs []ir.Reg) string {
	return liveness.RegSetOf(regs...).String()
}

func formatIDs(ids []int) string {
	if len(ids) == 0 {
		return "-"
	}
	s := strconv.Itoa(ids[0])
	for _, id := range ids[1:] {
		s += "," + strconv.Itoa(id)
	}
	return s
}
