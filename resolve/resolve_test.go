package resolve_test

import (
	"testing"

	"github.com/shadowCow/mathdoc/model"
	"github.com/shadowCow/mathdoc/parser"
	"github.com/shadowCow/mathdoc/parsetree"
	"github.com/shadowCow/mathdoc/resolve"
	"github.com/shadowCow/mathdoc/scanner"
	"github.com/shadowCow/mathdoc/symtab"
	"github.com/shadowCow/mathdoc/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolveLines(t *testing.T, lines ...string) (*parsetree.Tree, *symtab.Table, model.Model) {
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
	r := resolve.New(tree, m, m.Errors())
	table := r.Resolve()
	return tree, table, m
}

func TestResolve_DeclarationThenReassignment(t *testing.T) {
	tree, table, m := resolveLines(t, "x = 1", "x = 2")
	require.True(t, m.Errors().NoErrors())
	require.Len(t, table.Symbols, 1)

	first := tree.Arg(tree.Root(), 0)
	second := tree.Arg(tree.Root(), 1)
	assert.Equal(t, parsetree.OpAssign, tree.Op(first))
	assert.Equal(t, parsetree.OpReassign, tree.Op(second))
	assert.True(t, table.Symbols[0].IsReassigned)
}

func TestResolve_UndeclaredVariableFails(t *testing.T) {
	_, _, m := resolveLines(t, "y = q")
	assert.False(t, m.Errors().NoErrors())
}

func TestResolve_ParameterShadowsOuterVariable(t *testing.T) {
	_, table, m := resolveLines(t, "x = 1", "algorithm f(x) { return x }")
	require.True(t, m.Errors().NoErrors())
	require.Len(t, table.Symbols, 3) // outer x, f, parameter x

	var param *symtab.Symbol
	for i := range table.Symbols {
		if table.Symbols[i].DeclarationLexicalDepth == 1 {
			param = &table.Symbols[i]
		}
	}
	require.NotNil(t, param)
	assert.Equal(t, 0, param.ShadowedIndex)
}

func TestResolve_AlgorithmParametersScopedToBody(t *testing.T) {
	tree, table, m := resolveLines(t, "algorithm square(x) { return x^2 }")
	require.True(t, m.Errors().NoErrors())

	algo := tree.Arg(tree.Root(), 0)
	require.Equal(t, parsetree.OpAlgorithm, tree.Op(algo))

	// Two symbols: the algorithm name and its parameter x.
	require.Len(t, table.Symbols, 2)
}

func TestResolve_ForwardReferenceResolvesViaHoisting(t *testing.T) {
	_, table, m := resolveLines(t,
		"algorithm f(x) { return g(x) }",
		"algorithm g(x) { return x }",
	)
	require.True(t, m.Errors().NoErrors())
	require.Len(t, table.Symbols, 4) // f, g, and each algorithm's own x
}

func TestResolve_ClosureCaptureMarksOuterVariable(t *testing.T) {
	tree, table, m := resolveLines(t,
		"y = 5",
		"algorithm addY(x) { return x + y }",
	)
	require.True(t, m.Errors().NoErrors())

	nested := 0
	for _, sym := range table.Symbols {
		if sym.IsClosureNested {
			nested++
		}
	}
	assert.Equal(t, 1, nested) // only y, referenced from inside addY

	algo := tree.Arg(tree.Root(), 1)
	captureList := tree.Flag(algo)
	require.NotEqual(t, 0, captureList) // flag holds the OP_LIST node index
}

func TestResolve_NamespaceMembersAreScoped(t *testing.T) {
	_, table, m := resolveLines(t,
		"namespace ns {",
		"v = 1",
		"}",
	)
	require.True(t, m.Errors().NoErrors())
	require.Len(t, table.Symbols, 2) // ns, v
	assert.Len(t, table.ScopedVars, 1)
}

func TestResolve_ElementwiseAssignmentRewrite(t *testing.T) {
	tree, table, m := resolveLines(t,
		"a = [1, 2, 3]",
		"a(i) = 9",
	)
	require.True(t, m.Errors().NoErrors())
	stmt := tree.Arg(tree.Root(), 1)
	assert.Equal(t, parsetree.OpElementwiseAssignment, tree.Op(stmt))

	// a and i are declared; i carries IsEwiseIndex.
	require.Len(t, table.Symbols, 2)
	assert.True(t, table.Symbols[1].IsEwiseIndex)
}
