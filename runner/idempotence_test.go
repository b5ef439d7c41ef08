package runner_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/shadowCow/mathdoc/codeerr"
	"github.com/shadowCow/mathdoc/model"
	"github.com/shadowCow/mathdoc/parsetree"
	"github.com/shadowCow/mathdoc/runner"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

// nodeSnapshot is a value copy of one parse-tree node reachable only
// through parsetree.Tree's exported accessors, since Tree itself keeps
// its node store unexported (spec.md §4.4's flat index store). Diffing
// two snapshots is how this test compares two linked trees without
// reaching into package parsetree's internals.
type nodeSnapshot struct {
	Op          parsetree.Op
	Flag        int
	Type        int
	Rows, Cols  int
	Double      float64
	SymbolIndex int
	Children    []nodeSnapshot
}

func snapshot(tree *parsetree.Tree, pn parsetree.ParseNode) nodeSnapshot {
	if pn == parsetree.Null {
		return nodeSnapshot{Op: parsetree.OpInvalid}
	}
	n := nodeSnapshot{
		Op:          tree.Op(pn),
		Flag:        tree.Flag(pn),
		Type:        tree.Type(pn),
		Rows:        tree.Rows(pn),
		Cols:        tree.Cols(pn),
		Double:      tree.Double(pn),
		SymbolIndex: tree.SymbolIndex(pn),
	}
	for i := 0; i < tree.NumArgs(pn); i++ {
		n.Children = append(n.Children, snapshot(tree, tree.Arg(pn, i)))
	}
	return n
}

// diagnosticSnapshot drops codeerr.Error's private (start, len, text)
// buffer-offset fields in favor of its own rendered Message(), since
// those offsets only stay meaningful relative to their own Stream's
// message buffer, not across two independently-compiled streams.
type diagnosticSnapshot struct {
	Code    string
	Level   string
	Line    int
	Message string
}

func diagnostics(errs []codeerr.Error) []diagnosticSnapshot {
	out := make([]diagnosticSnapshot, len(errs))
	for i, e := range errs {
		out[i] = diagnosticSnapshot{
			Code:    codeerr.Message(e.Code),
			Level:   e.Level.String(),
			Line:    e.Line(),
			Message: e.Message(),
		}
	}
	return out
}

// TestCompile_Idempotent compiles the same headless document twice and
// diffs both the resulting diagnostic streams and linked parse trees,
// spec.md §8.1's re-run guarantee: recompiling unchanged source must
// reach the same linked program, not merely "no crash."
func TestCompile_Idempotent(t *testing.T) {
	lines := []string{
		`algorithm square(x) { return x^2 }`,
		`total = 0`,
		`for (i = 0; i < 4; i = i + 1) total = total + square(i)`,
		`print(total)`,
	}

	first := runner.Compile(model.FromLines("idempotence.math", lines), noopLogger())
	second := runner.Compile(model.FromLines("idempotence.math", lines), noopLogger())

	if diff := cmp.Diff(
		diagnostics(first.Doc.Errors().Errors()),
		diagnostics(second.Doc.Errors().Errors()),
	); diff != "" {
		t.Fatalf("error streams diverged across recompiles (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(
		diagnostics(first.Doc.Errors().Warnings()),
		diagnostics(second.Doc.Errors().Warnings()),
	); diff != "" {
		t.Fatalf("warning streams diverged across recompiles (-first +second):\n%s", diff)
	}

	firstTree := snapshot(first.Tree, first.Tree.Root())
	secondTree := snapshot(second.Tree, second.Tree.Root())
	if diff := cmp.Diff(firstTree, secondTree); diff != "" {
		t.Fatalf("linked parse trees diverged across recompiles (-first +second):\n%s", diff)
	}

	if diff := cmp.Diff(first.Table, second.Table); diff != "" {
		t.Fatalf("symbol tables diverged across recompiles (-first +second):\n%s", diff)
	}
}
