package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/raymyers/ion/pkg/cfg"
	"github.com/raymyers/ion/pkg/dot"
	"github.com/raymyers/ion/pkg/ir"
	"github.com/raymyers/ion/pkg/lexer"
	"github.com/raymyers/ion/pkg/liveness"
	"github.com/raymyers/ion/pkg/parser"
)

var version = "0.1.0"

// Debug flags for dumping analysis results
var (
	dIR      bool
	dCFG     bool
	dLive    bool
	dLiveDot bool
)

// Output options
var (
	format   string
	funcName string
	verbose  bool
)

// ErrUnknownFormat indicates an unsupported --format value
var ErrUnknownFormat = errors.New("unknown output format")

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	// Normalize single-dash dump flags to double-dash for pflag compatibility
	rootCmd.SetArgs(normalizeFlags(os.Args[1:]))
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

// debugFlagNames lists the dump flags that also accept single-dash style
var debugFlagNames = mapset.NewThreadUnsafeSet("dir", "dcfg", "dlive", "dlivedot")

// normalizeFlags rewrites -dcfg style dump flags to --dcfg. pflag would
// otherwise read them as clusters of shorthand letters. Arguments after a
// bare "--" are file names and are left alone.
func normalizeFlags(args []string) []string {
	result := make([]string, 0, len(args))
	for i, arg := range args {
		if arg == "--" {
			return append(result, args[i:]...)
		}
		if name, ok := strings.CutPrefix(arg, "-"); ok && debugFlagNames.Contains(name) {
			arg = "--" + name
		}
		result = append(result, arg)
	}
	return result
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ion [files...]",
		Short: "ion builds control-flow graphs and register liveness for IR files",
		Long: `ion reads functions written in a small three-address IR, links
their basic blocks into a control-flow graph and computes the live-in
and live-out virtual registers of every block.`,
		Version:       version,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "yaml" {
				fmt.Fprintf(errOut, "ion: unknown format %q (want text or yaml)\n", format)
				return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
			}
			if len(args) == 0 {
				cmd.Help()
				return nil
			}
			if funcName != "" && len(args) > 1 {
				fmt.Fprintln(errOut, "ion: --name needs a single input file")
				return errors.New("--name with multiple files")
			}
			return processFiles(args, out, errOut)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	// Add debug flags
	rootCmd.Flags().BoolVarP(&dIR, "dir", "", false, "Dump the IR with CFG edges")
	rootCmd.Flags().BoolVarP(&dCFG, "dcfg", "", false, "Dump the CFG as Graphviz DOT")
	rootCmd.Flags().BoolVarP(&dLive, "dlive", "", false, "Dump the liveness table")
	rootCmd.Flags().BoolVarP(&dLiveDot, "dlivedot", "", false, "Dump the CFG annotated with liveness as DOT")

	rootCmd.Flags().StringVar(&format, "format", "text", "Liveness dump format: text or yaml")
	rootCmd.Flags().StringVar(&funcName, "name", "", "Function name (default: input file base name)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log pipeline progress to stderr")

	return rootCmd
}

// newLogger returns a debug logger on w when --verbose is set and a
// discarding one otherwise
func newLogger(w io.Writer) *slog.Logger {
	if !verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// processFiles analyses every file concurrently. Each file writes into its
// own buffers, which are flushed in argument order once all are done.
func processFiles(filenames []string, out, errOut io.Writer) error {
	outBufs := make([]bytes.Buffer, len(filenames))
	errBufs := make([]bytes.Buffer, len(filenames))

	var g errgroup.Group
	for i, filename := range filenames {
		i, filename := i, filename
		g.Go(func() error {
			return processFile(filename, &outBufs[i], &errBufs[i], newLogger(&errBufs[i]))
		})
	}
	err := g.Wait()

	for i := range filenames {
		out.Write(outBufs[i].Bytes())
		errOut.Write(errBufs[i].Bytes())
	}
	return err
}

// processFile runs the parser, the CFG builder and the liveness solver on
// one file and writes the requested dumps
func processFile(filename string, out, errOut io.Writer, logger *slog.Logger) error {
	fn, err := parseFile(filename, errOut)
	if err != nil {
		return err
	}
	logger.Debug("parsed", "file", filename, "function", fn.Name, "blocks", len(fn.Blocks))

	if err := cfg.Construct(fn); err != nil {
		fmt.Fprintf(errOut, "ion: %s: %v\n", filename, err)
		return err
	}
	logger.Debug("cfg built", "file", filename, "edges", fn.NumEdges())

	res := liveness.Analyze(fn)
	logger.Debug("liveness solved", "file", filename, "passes", res.Passes)

	dumped := false
	if dIR {
		dumped = true
		err := dumpTo(outputFilename(filename, ".ir.out"), out, errOut, func(w io.Writer) {
			ir.NewPrinter(w).PrintFunction(fn)
		})
		if err != nil {
			return err
		}
	}
	if dCFG {
		dumped = true
		err := dumpTo(outputFilename(filename, ".cfg.dot"), out, errOut, func(w io.Writer) {
			dot.NewPrinter(w).PrintCFG(fn)
		})
		if err != nil {
			return err
		}
	}
	if dLive {
		dumped = true
		if err := writeLiveness(out, fn, res); err != nil {
			fmt.Fprintf(errOut, "ion: %s: %v\n", filename, err)
			return err
		}
	}
	if dLiveDot {
		dumped = true
		err := dumpTo(outputFilename(filename, ".live.dot"), out, errOut, func(w io.Writer) {
			dot.NewPrinter(w).PrintLiveness(fn, res)
		})
		if err != nil {
			return err
		}
	}

	if !dumped {
		fmt.Fprintf(out, "%s: %s: %d blocks, %d edges, liveness fixpoint after %d passes\n",
			filename, fn.Name, len(fn.Blocks), fn.NumEdges(), res.Passes)
	}
	return nil
}

// parseFile reads and parses an IR file into an unwired function
func parseFile(filename string, errOut io.Writer) (*ir.Function, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(errOut, "ion: error reading %s: %v\n", filename, err)
		return nil, err
	}

	name := funcName
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}

	l := lexer.New(string(content))
	p := parser.New(l)
	fn := p.ParseFunction(name)

	if len(p.Errors()) > 0 {
		for _, e := range p.Errors() {
			fmt.Fprintf(errOut, "%s: %s\n", filename, e)
		}
		return nil, fmt.Errorf("parsing failed with %d errors", len(p.Errors()))
	}
	return fn, nil
}

// dumpTo writes a dump to path and also prints it to out
func dumpTo(path string, out, errOut io.Writer, render func(w io.Writer)) error {
	outFile, err := os.Create(path)
	if err != nil {
		fmt.Fprintf(errOut, "ion: error creating %s: %v\n", path, err)
		return err
	}
	defer outFile.Close()

	render(outFile)
	render(out)
	return nil
}

// outputFilename replaces a trailing .ir extension with suffix:
// loop.ir -> loop.cfg.dot
func outputFilename(filename, suffix string) string {
	ext := ".ir"
	if strings.HasSuffix(filename, ext) {
		return filename[:len(filename)-len(ext)] + suffix
	}
	return filename + suffix
}
