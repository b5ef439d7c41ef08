// Package parsetree implements the flat, index-addressed parse tree of
// spec.md §3/§4.4: a ParseNode is an index into a dense store rather
// than a pointer into a boxed AST, so traversal never chases pointers
// and a subtree can be duplicated or appended from another tree by a
// single offset shift.
//
// Grounded on original_source/src/forscape_parse_tree.h. The builder
// pattern's naming (prepare/addChild/finish) carries over from the
// teacher's tooling/parsetree interface-tree package, repurposed here
// for n-ary construction over a flat store instead of boxed nodes.
package parsetree

import (
	"github.com/shadowCow/mathdoc/selection"
)

// ParseNode is an index into a Tree's node store. The zero value, Null,
// never refers to a real node.
type ParseNode int

// Null is the sentinel "no node" value.
const Null ParseNode = -1

// Op enumerates parse-tree operation codes: statements, expressions,
// literals, matrix ops, control flow, imports, and scope access
// (spec.md §3: "~200 values"). Only the subset exercised by this
// repository's parser/resolver/static-pass/interpreter is enumerated;
// new members are added as later stages need them.
type Op int

const (
	OpInvalid Op = iota

	// Literals & primaries
	OpNumber
	OpString
	OpIdentifier
	OpTrue
	OpFalse
	OpInfinity
	OpEmptySet
	OpIdentityAutosize
	OpUnitVector
	OpZero
	OpOne
	OpPredefinedConst // pi, e, phi, c, g, h, hbar, sigma

	// Structure
	OpBlock
	OpList
	OpMatrix
	OpCases

	// Assignment / declaration
	OpAssign
	OpReassign
	OpElementwiseAssignment
	OpUnknownDecl

	// Arithmetic / logic
	OpAdd
	OpSubtract
	OpMultiply
	OpImplicitMultiply
	OpDivide
	OpBackslash
	OpModulus
	OpCross
	OpKronecker
	OpHadamard
	OpCompose
	OpNegate
	OpNot
	OpFactorial
	OpPower
	OpInvert
	OpNormSquared
	OpTranspose
	OpHermitian
	OpPseudoInverse
	OpDual
	OpLinearSolve
	OpGradient
	OpDivergence
	OpCurl

	OpLess
	OpGreater
	OpEqual
	OpApprox
	OpElementOf
	OpSubset
	OpSubsetEq
	OpUnion
	OpIntersect
	OpLogicalAnd
	OpLogicalOr

	OpNorm
	OpAbs
	OpCeil
	OpFloor
	OpSubscriptAccess
	OpSuperscriptAccess
	OpScopeAccess

	// Constructs
	OpFraction
	OpBinomial
	OpSqrt
	OpNthRoot
	OpLimit
	OpDefiniteIntegral
	OpDerivative
	OpBigSum
	OpBigProd
	OpAccent

	// Statements / control flow
	OpIf
	OpIfElse
	OpWhile
	OpForC
	OpForRanged
	OpSwitch
	OpSwitchNumeric
	OpSwitchString
	OpPrint
	OpAssert
	OpReturn
	OpPlot
	OpImport
	OpFromImport
	OpNamespace
	OpClass
	OpSettingsUpdate
	OpAlgorithm
	OpCall

	// Keyword functions
	OpSin
	OpCos
	OpTan
	OpArcsin
	OpArccos
	OpArctan
	OpSinh
	OpCosh
	OpTanh
	OpSgn
	OpLength
	OpRows
	OpCols
	OpLog
	OpExp
	OpErf
	OpErfc

	// Errors / sentinels assigned by later stages
	OpError

	// Linked reads: the symbol linker (package linker) rewrites a
	// resolved identifier *reference* (never a declaration) into one of
	// these three, recording the resolved slot/global/capture index in
	// the node's Flag (spec.md §4.8).
	OpReadStack
	OpReadGlobal
	OpReadUpvalue
)

// node is one entry in the flat store.
type node struct {
	op       Op
	sel      selection.Selection
	children []ParseNode

	flag        int
	doubleValue float64
	typeTag     int
	rows, cols  int
	symbolIndex int // -1 when unset

	origin ParseNode // set by Clone: the node this was cloned from
}

// Tree is the dense parse-tree store. The zero value is usable.
type Tree struct {
	nodes []node
	root  ParseNode

	naryStack []ParseNode
	naryStart []int

	clonedVars []clonedVar
}

type clonedVar struct {
	clone  ParseNode
	origin ParseNode
}

// Root returns the tree's top-level block node.
func (t *Tree) Root() ParseNode { return t.root }

// SetRoot sets the tree's top-level block node.
func (t *Tree) SetRoot(pn ParseNode) { t.root = pn }

// Len returns the number of nodes allocated in the tree.
func (t *Tree) Len() int { return len(t.nodes) }

func (t *Tree) alloc(op Op, sel selection.Selection, children []ParseNode) ParseNode {
	pn := ParseNode(len(t.nodes))
	t.nodes = append(t.nodes, node{op: op, sel: sel, children: children, symbolIndex: -1, origin: Null})
	return pn
}

// AddTerminal allocates a childless node.
func (t *Tree) AddTerminal(op Op, sel selection.Selection) ParseNode {
	return t.alloc(op, sel, nil)
}

// AddUnary allocates a one-child node with an explicit selection.
func (t *Tree) AddUnary(op Op, sel selection.Selection, child ParseNode) ParseNode {
	return t.alloc(op, sel, []ParseNode{child})
}

// AddUnarySpan allocates a one-child node whose selection spans the
// child's own selection (the common case when no extra syntax,
// e.g. a grouping paren, should widen it).
func (t *Tree) AddUnarySpan(op Op, child ParseNode) ParseNode {
	return t.alloc(op, t.Selection(child), []ParseNode{child})
}

// AddLeftUnary allocates a one-child node whose selection starts at
// left and ends where the child's selection ends (e.g. prefix `−x`).
func (t *Tree) AddLeftUnary(op Op, left selection.Marker, child ParseNode) ParseNode {
	sel := selection.NewSelection(left, t.Selection(child).Right)
	return t.alloc(op, sel, []ParseNode{child})
}

// AddRightUnary allocates a one-child node whose selection starts where
// the child's selection starts and ends at right (e.g. postfix `x!`).
func (t *Tree) AddRightUnary(op Op, right selection.Marker, child ParseNode) ParseNode {
	sel := selection.NewSelection(t.Selection(child).Left, right)
	return t.alloc(op, sel, []ParseNode{child})
}

// AddNode allocates an n-ary node directly from a children slice.
func (t *Tree) AddNode(op Op, sel selection.Selection, children []ParseNode) ParseNode {
	cp := append([]ParseNode(nil), children...)
	return t.alloc(op, sel, cp)
}

// PrepareNary begins an n-ary builder frame.
func (t *Tree) PrepareNary() {
	t.naryStart = append(t.naryStart, len(t.naryStack))
}

// AddNaryChild appends pn to the current n-ary builder frame.
func (t *Tree) AddNaryChild(pn ParseNode) {
	t.naryStack = append(t.naryStack, pn)
}

// PopNaryChild removes and returns the most recently added child in the
// current frame, for grammars that need lookahead-driven backtracking.
func (t *Tree) PopNaryChild() ParseNode {
	n := len(t.naryStack) - 1
	pn := t.naryStack[n]
	t.naryStack = t.naryStack[:n]
	return pn
}

// FinishNary closes the current n-ary builder frame into a new node
// spanning sel.
func (t *Tree) FinishNary(op Op, sel selection.Selection) ParseNode {
	start := t.naryStart[len(t.naryStart)-1]
	t.naryStart = t.naryStart[:len(t.naryStart)-1]
	children := append([]ParseNode(nil), t.naryStack[start:]...)
	t.naryStack = t.naryStack[:start]
	return t.alloc(op, sel, children)
}

// CancelNary discards the current n-ary builder frame without
// allocating a node, for a grammar rule that backtracked entirely.
func (t *Tree) CancelNary() {
	start := t.naryStart[len(t.naryStart)-1]
	t.naryStart = t.naryStart[:len(t.naryStart)-1]
	t.naryStack = t.naryStack[:start]
}

// Op returns a node's operation code.
func (t *Tree) Op(pn ParseNode) Op { return t.nodes[pn].op }

// SetOp overwrites a node's operation code, used by later passes to
// lower a generic node into a more specific one (e.g. OpSwitch →
// OpSwitchNumeric).
func (t *Tree) SetOp(pn ParseNode, op Op) { t.nodes[pn].op = op }

// Replace overwrites a node's operation and children in place, keeping
// its index (and therefore every existing reference to it from a
// parent's children slice) stable. Used when a later pass rewrites a
// node into a different shape entirely, e.g. resolve folding an
// unresolved multi-character identifier into an n-ary implicit
// multiplication over its resolved factors (spec.md §4.6).
func (t *Tree) Replace(pn ParseNode, op Op, children []ParseNode) {
	t.nodes[pn].op = op
	t.nodes[pn].children = append([]ParseNode(nil), children...)
}

// Selection returns a node's source span.
func (t *Tree) Selection(pn ParseNode) selection.Selection { return t.nodes[pn].sel }

// SetSelection overwrites a node's source span.
func (t *Tree) SetSelection(pn ParseNode, sel selection.Selection) { t.nodes[pn].sel = sel }

// NumArgs returns a node's child count.
func (t *Tree) NumArgs(pn ParseNode) int { return len(t.nodes[pn].children) }

// Arg returns a node's i'th child.
func (t *Tree) Arg(pn ParseNode, i int) ParseNode { return t.nodes[pn].children[i] }

// SetArg overwrites a node's i'th child.
func (t *Tree) SetArg(pn ParseNode, i int, val ParseNode) { t.nodes[pn].children[i] = val }

// Children returns a node's full child slice. Callers must not mutate
// the returned slice's length; use SetArg for in-place edits.
func (t *Tree) Children(pn ParseNode) []ParseNode { return t.nodes[pn].children }

// ReduceNumArgs truncates a node's children to its first n, used by
// passes that fold trailing arguments into a single representative
// child (e.g. default-argument elision).
func (t *Tree) ReduceNumArgs(pn ParseNode, n int) {
	t.nodes[pn].children = t.nodes[pn].children[:n]
}

// Flag returns a node's general-purpose auxiliary slot. Its meaning is
// op-dependent: the declaring parse node during resolution, a
// stack/global/upvalue slot after linking, or a switch's default
// codepath index.
func (t *Tree) Flag(pn ParseNode) int { return t.nodes[pn].flag }

// SetFlag overwrites a node's auxiliary flag slot.
func (t *Tree) SetFlag(pn ParseNode, v int) { t.nodes[pn].flag = v }

// Double returns a node's literal numeric value.
func (t *Tree) Double(pn ParseNode) float64 { return t.nodes[pn].doubleValue }

// SetDouble overwrites a node's literal numeric value.
func (t *Tree) SetDouble(pn ParseNode, v float64) { t.nodes[pn].doubleValue = v }

// Type returns a node's inferred type tag (set by the static pass).
func (t *Tree) Type(pn ParseNode) int { return t.nodes[pn].typeTag }

// SetType overwrites a node's inferred type tag.
func (t *Tree) SetType(pn ParseNode, tag int) { t.nodes[pn].typeTag = tag }

// Rows returns a node's inferred row count (matrices/vectors).
func (t *Tree) Rows(pn ParseNode) int { return t.nodes[pn].rows }

// Cols returns a node's inferred column count.
func (t *Tree) Cols(pn ParseNode) int { return t.nodes[pn].cols }

// SetDims overwrites a node's inferred shape.
func (t *Tree) SetDims(pn ParseNode, rows, cols int) {
	t.nodes[pn].rows, t.nodes[pn].cols = rows, cols
}

// CopyDims copies src's shape onto dest.
func (t *Tree) CopyDims(dest, src ParseNode) {
	t.SetDims(dest, t.Rows(src), t.Cols(src))
}

// TransposeDims copies src's shape onto dest with rows/cols swapped.
func (t *Tree) TransposeDims(dest, src ParseNode) {
	t.SetDims(dest, t.Cols(src), t.Rows(src))
}

// DefinitelyScalar reports whether pn's inferred shape is exactly 1×1.
func (t *Tree) DefinitelyScalar(pn ParseNode) bool {
	return t.Rows(pn) == 1 && t.Cols(pn) == 1
}

// SetScalar marks pn's inferred shape as 1×1.
func (t *Tree) SetScalar(pn ParseNode) { t.SetDims(pn, 1, 1) }

// SymbolIndex returns the index into a symtab.Table this node refers to,
// or -1 if unset.
func (t *Tree) SymbolIndex(pn ParseNode) int { return t.nodes[pn].symbolIndex }

// SetSymbolIndex records the symtab.Table index an identifier/declaration
// node refers to.
func (t *Tree) SetSymbolIndex(pn ParseNode, idx int) { t.nodes[pn].symbolIndex = idx }

// Clone structurally copies the subtree rooted at pn and returns the
// new root. Identifier nodes inside the clone retain a pointer to their
// origin via the clonedVars bookkeeping vector, so a later PatchClones
// pass can rewrite their symbol references once the clone has been
// relinked (spec.md §4.4, §4.7: "clone bookkeeping is replayed to
// rewrite types on clones").
func (t *Tree) Clone(pn ParseNode) ParseNode {
	n := t.nodes[pn]
	newChildren := make([]ParseNode, len(n.children))
	for i, c := range n.children {
		newChildren[i] = t.Clone(c)
	}
	clone := t.alloc(n.op, n.sel, newChildren)
	cn := &t.nodes[clone]
	cn.flag = n.flag
	cn.doubleValue = n.doubleValue
	cn.typeTag = n.typeTag
	cn.rows, cn.cols = n.rows, n.cols
	cn.symbolIndex = n.symbolIndex
	cn.origin = pn

	if n.op == OpIdentifier {
		t.clonedVars = append(t.clonedVars, clonedVar{clone: clone, origin: pn})
	}
	return clone
}

// PatchClones invokes fn once per (clone, origin) pair recorded during
// cloning, letting a later pass (resolve or types) rewrite the clone's
// symbol reference or type now that the origin has been fully resolved.
func (t *Tree) PatchClones(fn func(clone, origin ParseNode)) {
	for _, cv := range t.clonedVars {
		fn(cv.clone, cv.origin)
	}
}

// Append copies every node of other into t, returning the offset added
// to every one of other's node indices; other.Root() + offset is the
// appended tree's root within t.
func (t *Tree) Append(other *Tree) int {
	offset := len(t.nodes)
	for _, n := range other.nodes {
		shifted := make([]ParseNode, len(n.children))
		for i, c := range n.children {
			shifted[i] = c + ParseNode(offset)
		}
		cp := n
		cp.children = shifted
		if cp.origin != Null {
			cp.origin += ParseNode(offset)
		}
		t.nodes = append(t.nodes, cp)
	}
	return offset
}

// Shift adds offset to pn and every index in its subtree, used after
// Append to relocate a foreign reference into local coordinates.
func (t *Tree) Shift(pn ParseNode, offset int) ParseNode {
	return pn + ParseNode(offset)
}
