package parser_test

import (
	"strings"
	"testing"

	"github.com/shadowCow/mathdoc/codeerr"
	"github.com/shadowCow/mathdoc/model"
	"github.com/shadowCow/mathdoc/parser"
	"github.com/shadowCow/mathdoc/parsetree"
	"github.com/shadowCow/mathdoc/scanner"
	"github.com/shadowCow/mathdoc/serial"
	"github.com/shadowCow/mathdoc/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseLines(t *testing.T, lines ...string) (*parsetree.Tree, *codeerr.Stream) {
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
	p := parser.New(toks, m.Errors())
	return p.Parse(), m.Errors()
}

func TestParser_ExpressionStatementBecomesPrint(t *testing.T) {
	tree, errs := parseLines(t, "1 + 2")
	require.True(t, errs.NoErrors())
	root := tree.Root()
	require.Equal(t, parsetree.OpBlock, tree.Op(root))
	require.Equal(t, 1, tree.NumArgs(root))
	stmt := tree.Arg(root, 0)
	assert.Equal(t, parsetree.OpPrint, tree.Op(stmt))
}

func TestParser_Assignment(t *testing.T) {
	tree, errs := parseLines(t, "x = 1 + 2")
	require.True(t, errs.NoErrors())
	stmt := tree.Arg(tree.Root(), 0)
	assert.Equal(t, parsetree.OpAssign, tree.Op(stmt))
	lhs := tree.Arg(stmt, 0)
	assert.Equal(t, parsetree.OpIdentifier, tree.Op(lhs))
}

func TestParser_IfElse(t *testing.T) {
	tree, errs := parseLines(t, "if (x) print(1) else print(2)")
	require.True(t, errs.NoErrors())
	stmt := tree.Arg(tree.Root(), 0)
	assert.Equal(t, parsetree.OpIfElse, tree.Op(stmt))
}

func TestParser_WhileLoop(t *testing.T) {
	tree, errs := parseLines(t, "while (x) print(1)")
	require.True(t, errs.NoErrors())
	stmt := tree.Arg(tree.Root(), 0)
	assert.Equal(t, parsetree.OpWhile, tree.Op(stmt))
}

func TestParser_ComparisonChainBuildsNary(t *testing.T) {
	tree, errs := parseLines(t, "a < b < c")
	require.True(t, errs.NoErrors())
	stmt := tree.Arg(tree.Root(), 0)
	expr := tree.Arg(stmt, 0)
	assert.Equal(t, parsetree.OpLess, tree.Op(expr))
	assert.Equal(t, 3, tree.NumArgs(expr))
}

func TestParser_AlgorithmDeclaration(t *testing.T) {
	tree, errs := parseLines(t, "algorithm square(x) { return x^2 }")
	require.True(t, errs.NoErrors())
	stmt := tree.Arg(tree.Root(), 0)
	assert.Equal(t, parsetree.OpAlgorithm, tree.Op(stmt))
}

func TestParser_MatrixConstruct(t *testing.T) {
	var b strings.Builder
	require.NoError(t, serial.BeginMatrix(&b, 1, 2))
	b.WriteString("1")
	b.WriteRune(serial.Close)
	b.WriteString("2")
	b.WriteRune(serial.Close)

	tree, errs := parseLines(t, b.String())
	require.True(t, errs.NoErrors())
	stmt := tree.Arg(tree.Root(), 0)
	expr := tree.Arg(stmt, 0)
	assert.Equal(t, parsetree.OpMatrix, tree.Op(expr))
	assert.Equal(t, 2, tree.NumArgs(expr))
}
