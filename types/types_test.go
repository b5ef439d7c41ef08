package types_test

import (
	"testing"

	"github.com/shadowCow/mathdoc/model"
	"github.com/shadowCow/mathdoc/parser"
	"github.com/shadowCow/mathdoc/parsetree"
	"github.com/shadowCow/mathdoc/resolve"
	"github.com/shadowCow/mathdoc/scanner"
	"github.com/shadowCow/mathdoc/symtab"
	"github.com/shadowCow/mathdoc/token"
	"github.com/shadowCow/mathdoc/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkLines(t *testing.T, lines ...string) (*parsetree.Tree, *symtab.Table, model.Model) {
	t.Helper()
	m := model.FromLines("test.math", lines)
	s := scanner.New(m)
	var toks []token.Token
	for {
		tok := s.Next()
		toks = append(toks, tok)
		if tok.Kind == token.EndOfFile {
			break
		}
	}
	tree := parser.New(toks, m.Errors()).Parse()
	table := resolve.New(tree, m, m.Errors()).Resolve()
	types.New(tree, table, m.Errors()).Check()
	return tree, table, m
}

func TestCheck_ScalarArithmeticIsNumeric(t *testing.T) {
	tree, _, m := checkLines(t, "x = 1 + 2")
	require.True(t, m.Errors().NoErrors())

	stmt := tree.Arg(tree.Root(), 0)
	rhs := tree.Arg(stmt, 1)
	assert.Equal(t, types.Numeric, types.Type(tree.Type(rhs)))
	assert.Equal(t, 1, tree.Rows(rhs))
	assert.Equal(t, 1, tree.Cols(rhs))
}

func TestCheck_ListLiteralIsRowVector(t *testing.T) {
	tree, _, m := checkLines(t, "a = [1, 2, 3]")
	require.True(t, m.Errors().NoErrors())

	stmt := tree.Arg(tree.Root(), 0)
	rhs := tree.Arg(stmt, 1)
	assert.Equal(t, types.Numeric, types.Type(tree.Type(rhs)))
	assert.Equal(t, 1, tree.Rows(rhs))
	assert.Equal(t, 3, tree.Cols(rhs))
}

func TestCheck_ComparisonIsBoolean(t *testing.T) {
	tree, _, m := checkLines(t, "b = 1 < 2")
	require.True(t, m.Errors().NoErrors())

	stmt := tree.Arg(tree.Root(), 0)
	rhs := tree.Arg(stmt, 1)
	assert.Equal(t, types.Boolean, types.Type(tree.Type(rhs)))
}

func TestCheck_AlgorithmCallInstantiatesReturnType(t *testing.T) {
	tree, _, m := checkLines(t,
		"algorithm square(x) { return x * x }",
		"y = square(3)",
	)
	require.True(t, m.Errors().NoErrors())

	call := tree.Arg(tree.Arg(tree.Root(), 1), 1)
	assert.Equal(t, types.Numeric, types.Type(tree.Type(call)))
}

func TestCheck_SwitchLowersToNumeric(t *testing.T) {
	tree, _, m := checkLines(t,
		"switch (1) {",
		"case 1:",
		"print(1)",
		"case 2:",
		"print(2)",
		"}",
	)
	require.True(t, m.Errors().NoErrors())

	stmt := tree.Arg(tree.Root(), 0)
	assert.Equal(t, parsetree.OpSwitchNumeric, tree.Op(stmt))
}

func TestCheck_DimMismatchReportsError(t *testing.T) {
	_, _, m := checkLines(t,
		"a = [1, 2]",
		"b = [1, 2, 3]",
		"c = a + b",
	)
	assert.False(t, m.Errors().NoErrors())
}
