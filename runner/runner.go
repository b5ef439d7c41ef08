// Package runner provides a simple API to execute mathdoc programs from
// files, the full pipeline the teacher's own lang/runner.Run drives
// (read file -> lex -> parse -> evaluate), extended to the six-stage
// pipeline spec.md §2 describes: scan, parse, resolve, check, link,
// interpret.
package runner

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/shadowCow/mathdoc/codeerr"
	"github.com/shadowCow/mathdoc/interp"
	"github.com/shadowCow/mathdoc/linker"
	"github.com/shadowCow/mathdoc/model"
	"github.com/shadowCow/mathdoc/parser"
	"github.com/shadowCow/mathdoc/parsetree"
	"github.com/shadowCow/mathdoc/program"
	"github.com/shadowCow/mathdoc/resolve"
	"github.com/shadowCow/mathdoc/scanner"
	"github.com/shadowCow/mathdoc/symtab"
	"github.com/shadowCow/mathdoc/token"
	"github.com/shadowCow/mathdoc/types"
)

// Compiled is the result of running the pipeline's first five stages
// (scan through link) over one document, ready for interp.New or for a
// `check`-only caller to inspect Doc.Errors() without ever constructing
// an Interpreter.
type Compiled struct {
	Tree       *parsetree.Tree
	Table      *symtab.Table
	Doc        model.Model
	GlobalSize int
}

// Compile runs scan -> parse -> resolve -> check -> link over m. This is
// the "editor" path of spec.md §4.5's error-recovery note: "subsequent
// phases still run for the editor's sake" even once earlier phases have
// already recorded errors into m.Errors().
func Compile(m model.Model, log zerolog.Logger) Compiled {
	log.Debug().Str("path", m.Path()).Msg("scanning")
	s := scanner.New(m)
	var toks []token.Token
	for {
		tok := s.Next()
		toks = append(toks, tok)
		if tok.Kind == token.EndOfFile {
			break
		}
	}

	log.Debug().Int("tokens", len(toks)).Msg("parsing")
	tree := parser.New(toks, m.Errors()).Parse()

	log.Debug().Msg("resolving symbols")
	table := resolve.New(tree, m, m.Errors()).Resolve()

	log.Debug().Msg("checking types")
	types.New(tree, table, m.Errors()).Check()

	log.Debug().Msg("linking")
	lnk := linker.New(tree, table)
	lnk.Link()

	return Compiled{Tree: tree, Table: table, Doc: m, GlobalSize: lnk.GlobalSize()}
}

// Check runs the pipeline through the static pass and link step (no
// interpreter) and reports the resulting diagnostic stream, the
// `mathdoc check` subcommand's use case (SPEC_FULL.md §4.12).
func Check(filePath string) (*codeerr.Stream, error) {
	prog := program.New(".")
	m, code := prog.OpenAbsolutePath(filePath)
	if code != 0 {
		return nil, fmt.Errorf("open %q: %s", filePath, codeerr.Message(code))
	}
	Compile(m, zerolog.Nop())
	return m.Errors(), nil
}

// Run executes a mathdoc program from a file, draining the
// interpreter's Output queue to output as the program runs. Mirrors
// the teacher's runner.Run(filePath, output, debug) signature; debug
// additionally surfaces each pipeline stage's structured log line.
func Run(filePath string, output io.Writer, debug bool) error {
	prog := program.New(".")
	m, code := prog.OpenAbsolutePath(filePath)
	if code != 0 {
		return fmt.Errorf("open %q: %s", filePath, codeerr.Message(code))
	}
	prog.SetEntryPoint(m.Path(), m)

	if err := RunModel(prog, m, output, debug); err != nil {
		return fmt.Errorf("%q: %w", filePath, err)
	}
	return nil
}

// RunModel drives the full pipeline over an already-open model and one
// Program registry, separated out from Run so a headless caller (tests,
// an editor host) can exercise end-to-end scenarios against an
// in-memory model.FromLines document without touching disk.
func RunModel(prog *program.Program, m model.Model, output io.Writer, debug bool) error {
	level := zerolog.Disabled
	if debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(output).Level(level).With().
		Timestamp().
		Str("run", program.NewRunID()).
		Logger()

	compiled := Compile(m, logger)
	if !m.Errors().NoErrors() {
		return fmt.Errorf("compile error:\n%s", m.Errors().Dump())
	}

	release := prog.AcquireRun()
	defer release()

	in := interp.New(compiled.Tree, compiled.Table, m.Errors(), m, compiled.GlobalSize)
	in.RunThread()

	for out := range in.Output() {
		writeOutput(output, out)
	}

	if in.Status() == interp.StatusRuntimeError {
		return fmt.Errorf("runtime error: %s", codeerr.Message(in.ErrorCode()))
	}
	return nil
}

// writeOutput renders one interpreter message the way a headless host
// would: Print text verbatim, and a one-line summary for the plot
// messages a real typeset widget would otherwise render (spec.md §4.9,
// §6: Print/PlotCreate/PlotDiscreteSeries).
func writeOutput(w io.Writer, o interp.Output) {
	switch o.Kind {
	case interp.Print:
		fmt.Fprint(w, o.Text)
	case interp.PlotCreate:
		fmt.Fprintf(w, "[plot %q: %s vs %s]\n", o.Title, o.XLabel, o.YLabel)
	case interp.PlotDiscreteSeries:
		fmt.Fprintf(w, "[series: %d points]\n", len(o.X))
	}
}
