package linker_test

import (
	"testing"

	"github.com/shadowCow/mathdoc/linker"
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

func linkLines(t *testing.T, lines ...string) (*parsetree.Tree, *symtab.Table, model.Model) {
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
	require.True(t, m.Errors().NoErrors())
	linker.New(tree, table).Link()
	return tree, table, m
}

func TestLink_GlobalAssignGetsGlobalSlot(t *testing.T) {
	tree, table, _ := linkLines(t, "x = 1", "y = x")

	decl := tree.Arg(tree.Root(), 0)
	nameNode := tree.Arg(decl, 0)
	idx := tree.SymbolIndex(nameNode)
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, symtab.SlotGlobal, table.Symbols[idx].SlotKind)
	assert.Equal(t, 0, table.Symbols[idx].Slot)

	use := tree.Arg(tree.Root(), 1)
	ref := tree.Arg(use, 1)
	assert.Equal(t, parsetree.OpReadGlobal, tree.Op(ref))
	assert.Equal(t, 0, tree.Flag(ref))
}

func TestLink_AlgorithmParamGetsStackSlot(t *testing.T) {
	tree, table, _ := linkLines(t,
		"algorithm square(x) { return x * x }",
	)

	algo := tree.Arg(tree.Root(), 0)
	paramList := tree.Arg(algo, 1)
	param := tree.Arg(paramList, 0)
	idx := tree.SymbolIndex(param)
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, symtab.SlotStack, table.Symbols[idx].SlotKind)
	assert.Equal(t, 0, table.Symbols[idx].Slot)

	body := tree.Arg(algo, 3)
	ret := tree.Arg(body, 0)
	mulExpr := tree.Arg(ret, 0)
	lhs := tree.Arg(mulExpr, 0)
	assert.Equal(t, parsetree.OpReadStack, tree.Op(lhs))
	assert.Equal(t, 0, tree.Flag(lhs))
}

func TestLink_BlockScopedLocalsReuseSlotsAfterScopeCloses(t *testing.T) {
	tree, table, _ := linkLines(t,
		"algorithm f(n) {",
		"if (n > 0) { a = 1 }",
		"if (n > 0) { b = 2 }",
		"return n",
		"}",
	)

	algo := tree.Arg(tree.Root(), 0)
	body := tree.Arg(algo, 3)

	firstIf := tree.Arg(body, 0)
	firstBlock := tree.Arg(firstIf, 1)
	aAssign := tree.Arg(firstBlock, 0)
	aIdx := tree.SymbolIndex(tree.Arg(aAssign, 0))

	secondIf := tree.Arg(body, 1)
	secondBlock := tree.Arg(secondIf, 1)
	bAssign := tree.Arg(secondBlock, 0)
	bIdx := tree.SymbolIndex(tree.Arg(bAssign, 0))

	// n occupies slot 0; a and b are each the sole declaration in their
	// own transient if-block, so both get slot 1 once the first block's
	// scope has popped.
	assert.Equal(t, 1, table.Symbols[aIdx].Slot)
	assert.Equal(t, 1, table.Symbols[bIdx].Slot)
}

func TestLink_CapturedVariableBecomesUpvalueInsideClosureOnly(t *testing.T) {
	tree, table, _ := linkLines(t,
		"algorithm outer() {",
		"x = 1",
		"algorithm inner() { return x }",
		"return x",
		"}",
	)

	algo := tree.Arg(tree.Root(), 0)
	body := tree.Arg(algo, 3)

	xAssign := tree.Arg(body, 0)
	xIdx := tree.SymbolIndex(tree.Arg(xAssign, 0))
	assert.True(t, table.Symbols[xIdx].IsClosureNested)
	assert.Equal(t, symtab.SlotStack, table.Symbols[xIdx].SlotKind)

	innerAlgo := tree.Arg(body, 1)
	innerBody := tree.Arg(innerAlgo, 3)
	innerReturn := tree.Arg(innerBody, 0)
	innerRef := tree.Arg(innerReturn, 0)
	assert.Equal(t, parsetree.OpReadUpvalue, tree.Op(innerRef))

	outerReturn := tree.Arg(body, 2)
	outerRef := tree.Arg(outerReturn, 0)
	assert.Equal(t, parsetree.OpReadStack, tree.Op(outerRef))
	assert.Equal(t, table.Symbols[xIdx].Slot, tree.Flag(outerRef))
}
