// Package types implements the static pass of spec.md §4.7: given a
// parsetree.Tree and the symtab.Table resolve produced, it infers a
// type tag and, for numeric values, a shape (rows, cols) for every
// node, instantiates algorithms per distinct call signature, lowers
// switch statements to their numeric/string-keyed form, and patches
// the scope-access usage stubs resolve left behind.
//
// Grounded on original_source/src/forscape_static_pass.h/.cpp.
package types

import (
	"fmt"

	"github.com/shadowCow/mathdoc/codeerr"
	"github.com/shadowCow/mathdoc/parsetree"
	"github.com/shadowCow/mathdoc/settings"
	"github.com/shadowCow/mathdoc/symtab"
)

// Type tags (spec.md §4.7). Modelled as small non-negative ints rather
// than the original's "UNINITIALISED-n" encoding scheme, since Go has
// no need to steal bit patterns from an unsigned size_t's top end.
type Type int

const (
	Uninitialised Type = iota
	Numeric
	String
	Boolean
	Void
	RecursiveCycle
	Failure
	Namespace
	Module
	Alias
)

func (t Type) String() string {
	switch t {
	case Uninitialised:
		return "uninitialised"
	case Numeric:
		return "numeric"
	case String:
		return "string"
	case Boolean:
		return "boolean"
	case Void:
		return "void"
	case RecursiveCycle:
		return "recursive"
	case Failure:
		return "failure"
	case Namespace:
		return "namespace"
	case Module:
		return "module"
	case Alias:
		return "alias"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// CallSignature identifies one instantiation of an algorithm: its
// declaring node plus the type/shape of each argument actually passed.
type CallSignature struct {
	Decl parsetree.ParseNode
	Args string // encoded arg types/shapes, comparable as a map key
}

// Checker runs the static pass over tree/table, recording diagnostics
// into errs.
type Checker struct {
	tree  *parsetree.Tree
	table *symtab.Table
	errs  *codeerr.Stream

	// instantiations memoizes one resolved return (type, rows, cols) per
	// distinct CallSignature, the Go analogue of the original's
	// called_func_map (spec.md §4.7: "memoized per distinct call
	// signature").
	instantiations map[CallSignature]result

	// inProgress detects a call signature currently being resolved
	// higher up the call stack, standing in for the original's
	// retry-then-RECURSIVE_CYCLE two-pass scheme with a single-pass
	// cycle tag (Open Question, recorded in DESIGN.md: true recursive
	// numeric types are rejected on first sight rather than retried).
	inProgress map[CallSignature]bool

	// settings tracks the same lexically-scoped warning-level overrides
	// package resolve enacts, rebuilt from scratch for this pass since
	// OpSettingsUpdate nodes are re-walked in source order here too
	// (spec.md §6: "enacted lexically").
	settings *settings.Stack
}

type result struct {
	typ        Type
	rows, cols int
}

// New creates a Checker over tree/table, recording diagnostics into errs.
func New(tree *parsetree.Tree, table *symtab.Table, errs *codeerr.Stream) *Checker {
	return &Checker{
		tree:           tree,
		table:          table,
		errs:           errs,
		instantiations: map[CallSignature]result{},
		inProgress:     map[CallSignature]bool{},
		settings:       settings.NewStack(settings.Default()),
	}
}

// Check runs the pass over the tree's root block.
func (c *Checker) Check() {
	c.block(c.tree.Root())
}

func (c *Checker) block(pn parsetree.ParseNode) {
	for i := 0; i < c.tree.NumArgs(pn); i++ {
		c.stmt(c.tree.Arg(pn, i))
	}
}

func (c *Checker) stmt(pn parsetree.ParseNode) {
	if pn == parsetree.Null {
		return
	}
	switch c.tree.Op(pn) {
	case parsetree.OpBlock:
		c.settings.PushScope()
		c.block(pn)
		c.settings.PopScope()
	case parsetree.OpAssign:
		rhs := c.tree.Arg(pn, 1)
		c.expr(rhs)
		lhs := c.tree.Arg(pn, 0)
		c.bindDeclaration(lhs, rhs)
	case parsetree.OpReassign:
		rhs := c.tree.Arg(pn, 1)
		c.expr(rhs)
		lhs := c.tree.Arg(pn, 0)
		c.checkAssignable(lhs, rhs)
	case parsetree.OpElementwiseAssignment:
		for i := 0; i < c.tree.NumArgs(pn); i++ {
			// the callee, each index, and the RHS all type as numeric
			c.expr(c.tree.Arg(pn, i))
		}
	case parsetree.OpIf:
		c.expr(c.tree.Arg(pn, 0))
		c.stmt(c.tree.Arg(pn, 1))
	case parsetree.OpIfElse:
		c.expr(c.tree.Arg(pn, 0))
		c.stmt(c.tree.Arg(pn, 1))
		c.stmt(c.tree.Arg(pn, 2))
	case parsetree.OpWhile:
		c.expr(c.tree.Arg(pn, 0))
		c.stmt(c.tree.Arg(pn, 1))
	case parsetree.OpForC:
		if n := c.tree.Arg(pn, 0); n != parsetree.Null {
			c.stmt(n)
		}
		if n := c.tree.Arg(pn, 1); n != parsetree.Null {
			c.expr(n)
		}
		if n := c.tree.Arg(pn, 2); n != parsetree.Null {
			c.stmt(n)
		}
		c.stmt(c.tree.Arg(pn, 3))
	case parsetree.OpForRanged:
		c.expr(c.tree.Arg(pn, 1))
		c.setType(c.tree.Arg(pn, 0), Numeric, 1, 1)
		c.stmt(c.tree.Arg(pn, 2))
	case parsetree.OpSwitch:
		c.resolveSwitch(pn)
	case parsetree.OpPrint, parsetree.OpPlot:
		for i := 0; i < c.tree.NumArgs(pn); i++ {
			c.expr(c.tree.Arg(pn, i))
		}
	case parsetree.OpAssert:
		c.expectScalarBoolean(c.tree.Arg(pn, 0))
	case parsetree.OpReturn:
		if c.tree.NumArgs(pn) > 0 {
			c.expr(c.tree.Arg(pn, 0))
		}
	case parsetree.OpAlgorithm:
		// Algorithm bodies are type-checked lazily, once per distinct
		// call signature (resolveCall), not eagerly here — an
		// uninstantiated generic algorithm has no single type (spec.md
		// §4.7).
		c.tree.SetType(pn, Void)
	case parsetree.OpNamespace:
		c.block(c.tree.Arg(pn, 1))
	case parsetree.OpSettingsUpdate:
		c.applySettingsUpdate(pn)
	case parsetree.OpImport, parsetree.OpFromImport, parsetree.OpUnknownDecl,
		parsetree.OpClass:
		// Import target typing and class members are out of this
		// checker's reach without a live Program/Model registry; see
		// DESIGN.md for the accepted gap.
	default:
		c.expr(pn)
	}
}

// applySettingsUpdate re-enacts the warning-level overrides a
// settings{...} construct applies, reading the SettingId/WarningLevel
// package resolve already resolved and stamped onto each pair node's
// Flag/SymbolIndex fields (resolve.Resolver.applySettingsUpdate) rather
// than re-reading setting-name/value identifier text, since this pass
// has no access to the source document.
func (c *Checker) applySettingsUpdate(pn parsetree.ParseNode) {
	for i := 0; i < c.tree.NumArgs(pn); i++ {
		pair := c.tree.Arg(pn, i)
		id := settings.SettingId(c.tree.Flag(pair))
		level := codeerr.WarningLevel(c.tree.SymbolIndex(pair))
		c.settings.Set(id, level)
	}
}

func (c *Checker) bindDeclaration(lhs, rhs parsetree.ParseNode) {
	t, rows, cols := c.typeOf(rhs), c.tree.Rows(rhs), c.tree.Cols(rhs)
	c.setType(lhs, t, rows, cols)
	if idx := c.tree.SymbolIndex(lhs); idx >= 0 {
		c.table.Symbols[idx].Type = int(t)
		c.table.Symbols[idx].Rows = rows
		c.table.Symbols[idx].Cols = cols
	}
}

func (c *Checker) checkAssignable(lhs, rhs parsetree.ParseNode) {
	idx := c.tree.SymbolIndex(lhs)
	if idx < 0 {
		c.bindDeclaration(lhs, rhs)
		return
	}
	sym := &c.table.Symbols[idx]
	declared := Type(sym.Type)
	if declared != Uninitialised && declared != c.typeOf(rhs) {
		c.errs.Fail(c.tree.Selection(lhs), codeerr.CodeTypeMismatch)
	}
	c.bindDeclaration(lhs, rhs)
}

func (c *Checker) expectScalarBoolean(pn parsetree.ParseNode) {
	c.expr(pn)
	if c.typeOf(pn) != Boolean {
		c.errs.Fail(c.tree.Selection(pn), codeerr.CodeTypeMismatch)
	}
}

// expr infers pn's type and, for numeric nodes, shape, storing both on
// the node via Tree.SetType/SetDims.
func (c *Checker) expr(pn parsetree.ParseNode) {
	if pn == parsetree.Null {
		return
	}
	switch c.tree.Op(pn) {
	case parsetree.OpNumber:
		c.setType(pn, Numeric, 1, 1)
	case parsetree.OpString:
		c.setType(pn, String, 0, 0)
	case parsetree.OpTrue, parsetree.OpFalse:
		c.setType(pn, Boolean, 0, 0)
	case parsetree.OpInfinity, parsetree.OpPredefinedConst:
		c.setType(pn, Numeric, 1, 1)
	case parsetree.OpIdentifier:
		c.resolveIdentifier(pn)
	case parsetree.OpList, parsetree.OpMatrix:
		c.resolveMatrix(pn)
	case parsetree.OpCases:
		c.resolveCases(pn)
	case parsetree.OpAdd, parsetree.OpSubtract, parsetree.OpHadamard:
		c.resolveElementwiseBinary(pn)
	case parsetree.OpMultiply, parsetree.OpImplicitMultiply:
		c.resolveMult(pn)
	case parsetree.OpDivide, parsetree.OpBackslash, parsetree.OpModulus,
		parsetree.OpCross, parsetree.OpKronecker, parsetree.OpCompose:
		c.resolveElementwiseBinary(pn)
	case parsetree.OpNegate:
		c.resolveUnaryPreserveShape(pn)
	case parsetree.OpNot:
		c.expr(c.tree.Arg(pn, 0))
		c.setType(pn, Boolean, 0, 0)
	case parsetree.OpFactorial:
		c.expectScalarArg(pn)
	case parsetree.OpPower:
		c.resolvePower(pn)
	case parsetree.OpTranspose, parsetree.OpHermitian:
		c.resolveTranspose(pn)
	case parsetree.OpInvert, parsetree.OpPseudoInverse, parsetree.OpDual:
		c.resolveUnaryPreserveShape(pn)
	case parsetree.OpLinearSolve:
		c.resolveElementwiseBinary(pn)
	case parsetree.OpGradient, parsetree.OpDivergence, parsetree.OpCurl:
		c.resolveUnaryPreserveShape(pn)
	case parsetree.OpLess, parsetree.OpGreater:
		for i := 0; i < c.tree.NumArgs(pn); i++ {
			c.expr(c.tree.Arg(pn, i))
		}
		c.setType(pn, Boolean, 0, 0)
	case parsetree.OpEqual, parsetree.OpApprox, parsetree.OpElementOf,
		parsetree.OpSubset, parsetree.OpSubsetEq:
		c.expr(c.tree.Arg(pn, 0))
		c.expr(c.tree.Arg(pn, 1))
		c.setType(pn, Boolean, 0, 0)
	case parsetree.OpUnion, parsetree.OpIntersect:
		c.expr(c.tree.Arg(pn, 0))
		c.expr(c.tree.Arg(pn, 1))
		c.tree.CopyDims(pn, c.tree.Arg(pn, 0))
		c.setTypeKeepDims(pn, Numeric)
	case parsetree.OpLogicalAnd, parsetree.OpLogicalOr:
		c.expectScalarBoolean(c.tree.Arg(pn, 0))
		c.expectScalarBoolean(c.tree.Arg(pn, 1))
		c.setType(pn, Boolean, 0, 0)
	case parsetree.OpNorm, parsetree.OpAbs, parsetree.OpCeil, parsetree.OpFloor:
		c.expectScalarArg(pn)
	case parsetree.OpSubscriptAccess, parsetree.OpSuperscriptAccess:
		c.expr(c.tree.Arg(pn, 0))
		c.setType(pn, Numeric, 1, 1)
	case parsetree.OpScopeAccess:
		c.resolveScopeAccess(pn)
	case parsetree.OpFraction, parsetree.OpBinomial:
		c.expr(c.tree.Arg(pn, 0))
		c.expr(c.tree.Arg(pn, 1))
		c.setType(pn, Numeric, 1, 1)
	case parsetree.OpSqrt:
		c.resolveUnaryPreserveShape(pn)
	case parsetree.OpNthRoot:
		c.expr(c.tree.Arg(pn, 0))
		c.expr(c.tree.Arg(pn, 1))
		c.tree.CopyDims(pn, c.tree.Arg(pn, 1))
		c.setTypeKeepDims(pn, Numeric)
	case parsetree.OpLimit:
		c.resolveLimit(pn)
	case parsetree.OpDefiniteIntegral:
		c.resolveDefiniteIntegral(pn)
	case parsetree.OpDerivative:
		c.resolveUnaryPreserveShape(pn)
	case parsetree.OpBigSum, parsetree.OpBigProd:
		for i := 0; i < c.tree.NumArgs(pn); i++ {
			c.expr(c.tree.Arg(pn, i))
		}
		c.setType(pn, Numeric, 1, 1)
	case parsetree.OpAccent:
		c.resolveUnaryPreserveShape(pn)
	case parsetree.OpSin, parsetree.OpCos, parsetree.OpTan, parsetree.OpArcsin,
		parsetree.OpArccos, parsetree.OpArctan, parsetree.OpSinh, parsetree.OpCosh,
		parsetree.OpTanh, parsetree.OpSgn, parsetree.OpLog, parsetree.OpExp,
		parsetree.OpErf, parsetree.OpErfc:
		for i := 0; i < c.tree.NumArgs(pn); i++ {
			c.expectScalarArg(c.tree.Arg(pn, i))
		}
		c.setType(pn, Numeric, 1, 1)
	case parsetree.OpLength, parsetree.OpRows, parsetree.OpCols:
		c.expr(c.tree.Arg(pn, 0))
		c.setType(pn, Numeric, 1, 1)
	case parsetree.OpCall:
		c.resolveCall(pn)
	case parsetree.OpError:
		c.setType(pn, Failure, 0, 0)
	default:
		for i := 0; i < c.tree.NumArgs(pn); i++ {
			c.expr(c.tree.Arg(pn, i))
		}
	}
}

func (c *Checker) resolveIdentifier(pn parsetree.ParseNode) {
	idx := c.tree.SymbolIndex(pn)
	if idx < 0 {
		c.setType(pn, Failure, 0, 0)
		return
	}
	sym := &c.table.Symbols[idx]
	if Type(sym.Type) == Uninitialised {
		// Referenced before its own type is known (e.g. forward-declared
		// algorithm not yet instantiated): defer to Void until a call
		// site forces instantiation.
		c.setType(pn, Void, 0, 0)
		return
	}
	c.setType(pn, Type(sym.Type), sym.Rows, sym.Cols)
}

func (c *Checker) resolveMatrix(pn parsetree.ParseNode) {
	n := c.tree.NumArgs(pn)
	for i := 0; i < n; i++ {
		c.expr(c.tree.Arg(pn, i))
	}
	if c.tree.Op(pn) == parsetree.OpMatrix {
		// dims already set by the parser from the serial header
		c.setTypeKeepDims(pn, Numeric)
		return
	}
	c.tree.SetDims(pn, 1, n)
	c.setTypeKeepDims(pn, Numeric)
}

func (c *Checker) resolveCases(pn parsetree.ParseNode) {
	for i := 0; i < c.tree.NumArgs(pn); i++ {
		c.expr(c.tree.Arg(pn, i))
	}
	if c.tree.NumArgs(pn) > 0 {
		c.tree.CopyDims(pn, c.tree.Arg(pn, 0))
	}
	c.setTypeKeepDims(pn, Numeric)
}

// resolveElementwiseBinary handles the common shape rule: both operands
// numeric, shapes either equal or one side scalar (broadcast), result
// takes the non-scalar side's shape (spec.md §4.7).
func (c *Checker) resolveElementwiseBinary(pn parsetree.ParseNode) {
	a, b := c.tree.Arg(pn, 0), c.tree.Arg(pn, 1)
	c.expr(a)
	c.expr(b)
	ar, ac := c.tree.Rows(a), c.tree.Cols(a)
	br, bc := c.tree.Rows(b), c.tree.Cols(b)
	switch {
	case ar == 1 && ac == 1:
		c.tree.SetDims(pn, br, bc)
	case br == 1 && bc == 1:
		c.tree.SetDims(pn, ar, ac)
	case ar == br && ac == bc:
		c.tree.SetDims(pn, ar, ac)
	default:
		c.errs.Fail(c.tree.Selection(pn), codeerr.CodeDimMismatch)
		c.tree.SetDims(pn, ar, ac)
	}
	c.setTypeKeepDims(pn, Numeric)
}

// resolveMult implements the matrix-product shape rule in addition to
// the scalar-broadcast case (spec.md §4.7: "A·B where A is m×n and B is
// n×p yields m×p").
func (c *Checker) resolveMult(pn parsetree.ParseNode) {
	children := c.tree.Children(pn)
	c.expr(children[0])
	accRows, accCols := c.tree.Rows(children[0]), c.tree.Cols(children[0])
	for i := 1; i < len(children); i++ {
		rhs := children[i]
		c.expr(rhs)
		br, bc := c.tree.Rows(rhs), c.tree.Cols(rhs)
		switch {
		case accRows == 1 && accCols == 1:
			accRows, accCols = br, bc
		case br == 1 && bc == 1:
			// accRows/accCols unchanged
		case accCols == br:
			accRows, accCols = accRows, bc
		default:
			c.errs.Fail(c.tree.Selection(pn), codeerr.CodeDimMismatch)
		}
	}
	c.tree.SetDims(pn, accRows, accCols)
	c.setTypeKeepDims(pn, Numeric)
}

func (c *Checker) resolvePower(pn parsetree.ParseNode) {
	base, exp := c.tree.Arg(pn, 0), c.tree.Arg(pn, 1)
	c.expr(base)
	c.expr(exp)
	// power-to-(-1) on a square matrix lowers to OP_INVERT; power-to-2 of
	// a norm lowers to OP_NORM_SQUARED (spec.md §4.7). Both lowerings are
	// purely op-code rewrites; shape is unaffected.
	if c.tree.Op(exp) == parsetree.OpNegate && c.tree.DefinitelyScalar(c.tree.Arg(exp, 0)) {
		if c.tree.Double(c.tree.Arg(exp, 0)) == 1 {
			c.tree.SetOp(pn, parsetree.OpInvert)
			c.tree.ReduceNumArgs(pn, 1)
			c.tree.CopyDims(pn, base)
			c.setTypeKeepDims(pn, Numeric)
			return
		}
	}
	if c.tree.Op(base) == parsetree.OpNorm && c.tree.DefinitelyScalar(exp) && c.tree.Double(exp) == 2 {
		c.tree.SetOp(pn, parsetree.OpNormSquared)
		c.tree.ReduceNumArgs(pn, 1)
		c.tree.SetScalar(pn)
		c.setTypeKeepDims(pn, Numeric)
		return
	}
	c.tree.CopyDims(pn, base)
	c.setTypeKeepDims(pn, Numeric)
}

func (c *Checker) resolveTranspose(pn parsetree.ParseNode) {
	child := c.tree.Arg(pn, 0)
	c.expr(child)
	c.tree.TransposeDims(pn, child)
	c.setTypeKeepDims(pn, Numeric)
	if rows, cols := c.tree.Rows(child), c.tree.Cols(child); rows != cols {
		c.errs.Warnf(c.settings.Level(settings.TransposeT), c.tree.Selection(pn), codeerr.CodeNonsquareTranspose, "")
	}
}

func (c *Checker) resolveUnaryPreserveShape(pn parsetree.ParseNode) {
	child := c.tree.Arg(pn, 0)
	c.expr(child)
	c.tree.CopyDims(pn, child)
	c.setTypeKeepDims(pn, Numeric)
}

func (c *Checker) expectScalarArg(pn parsetree.ParseNode) {
	child := c.tree.Arg(pn, 0)
	c.expr(child)
	if !c.tree.DefinitelyScalar(child) {
		c.errs.Fail(c.tree.Selection(child), codeerr.CodeNotAMatrix)
	}
	c.setType(pn, Numeric, 1, 1)
}

func (c *Checker) resolveLimit(pn parsetree.ParseNode) {
	for i := 0; i < c.tree.NumArgs(pn); i++ {
		c.expr(c.tree.Arg(pn, i))
	}
	c.setType(pn, Numeric, 1, 1)
}

// resolveDefiniteIntegral propagates the integrand's shape, since
// integrating a vector-valued function componentwise yields a
// same-shaped result (spec.md §4.7).
func (c *Checker) resolveDefiniteIntegral(pn parsetree.ParseNode) {
	for i := 0; i < c.tree.NumArgs(pn); i++ {
		c.expr(c.tree.Arg(pn, i))
	}
	integrand := c.tree.Arg(pn, 0)
	c.tree.CopyDims(pn, integrand)
	c.setTypeKeepDims(pn, Numeric)
}

// resolveScopeAccess patches the member usage stub resolve left behind
// (spec.md §4.6/§4.7 split): only namespace targets are resolved here,
// since imported-module member resolution needs a live model registry
// this package does not have; see DESIGN.md.
func (c *Checker) resolveScopeAccess(pn parsetree.ParseNode) {
	left := c.tree.Arg(pn, 0)
	c.expr(left)
	if c.typeOf(left) != Namespace {
		c.errs.Fail(c.tree.Selection(pn), codeerr.CodeBadScopeAccess)
		c.setType(pn, Failure, 0, 0)
		return
	}
	c.setType(pn, Numeric, 1, 1)
}

// resolveCall instantiates an algorithm for one concrete argument
// signature, memoizing by (declaration, encoded arg types), per spec.md
// §4.7 ("Each distinct call signature gets its own monomorphic
// instantiation").
func (c *Checker) resolveCall(pn parsetree.ParseNode) {
	callee := c.tree.Arg(pn, 0)
	c.expr(callee)

	args := c.tree.Children(pn)[1:]
	key := ""
	for _, a := range args {
		c.expr(a)
		key += fmt.Sprintf("%d:%d,%d;", c.typeOf(a), c.tree.Rows(a), c.tree.Cols(a))
	}

	idx := c.tree.SymbolIndex(callee)
	if idx < 0 {
		c.errs.Fail(c.tree.Selection(pn), codeerr.CodeNotCallable)
		c.setType(pn, Failure, 0, 0)
		return
	}
	declNode := c.table.Symbols[idx].DeclaringNode
	sig := CallSignature{Decl: declNode, Args: key}

	if cached, ok := c.instantiations[sig]; ok {
		c.setType(pn, cached.typ, cached.rows, cached.cols)
		return
	}
	if c.inProgress[sig] {
		c.errs.Fail(c.tree.Selection(pn), codeerr.CodeRecursiveCycle)
		c.setType(pn, RecursiveCycle, 0, 0)
		return
	}

	if c.tree.Op(declNode) != parsetree.OpAlgorithm {
		c.errs.Fail(c.tree.Selection(pn), codeerr.CodeNotCallable)
		c.setType(pn, Failure, 0, 0)
		return
	}

	c.inProgress[sig] = true
	ret := c.instantiateAlgorithm(declNode, args)
	delete(c.inProgress, sig)

	c.instantiations[sig] = ret
	c.setType(pn, ret.typ, ret.rows, ret.cols)
}

// instantiateAlgorithm binds declNode's parameters to args' inferred
// types/shapes, walks its body once under that binding, and returns the
// type/shape of its first reachable return statement (spec.md §4.7's
// "CallSignature instantiation"; wrong-arity/default-argument filling
// is handled positionally, without currying or variadic support).
func (c *Checker) instantiateAlgorithm(declNode parsetree.ParseNode, args []parsetree.ParseNode) result {
	paramList := c.tree.Arg(declNode, 1)
	n := c.tree.NumArgs(paramList)
	if len(args) != n {
		c.errs.Fail(c.tree.Selection(declNode), codeerr.CodeWrongNumArgs)
	}
	for i := 0; i < n; i++ {
		param := c.tree.Arg(paramList, i)
		name := param
		if c.tree.Op(param) == parsetree.OpList {
			name = c.tree.Arg(param, 0)
		}
		idx := c.tree.SymbolIndex(name)
		if idx < 0 {
			continue
		}
		if i < len(args) {
			a := args[i]
			c.table.Symbols[idx].Type = int(c.typeOf(a))
			c.table.Symbols[idx].Rows = c.tree.Rows(a)
			c.table.Symbols[idx].Cols = c.tree.Cols(a)
		} else if c.tree.Op(param) == parsetree.OpList {
			def := c.tree.Arg(param, 1)
			c.expr(def)
			c.table.Symbols[idx].Type = int(c.typeOf(def))
			c.table.Symbols[idx].Rows = c.tree.Rows(def)
			c.table.Symbols[idx].Cols = c.tree.Cols(def)
		}
	}

	body := c.tree.Arg(declNode, 3)
	ret := c.findReturn(body)
	if ret == parsetree.Null {
		return result{typ: Void}
	}
	if c.tree.NumArgs(ret) == 0 {
		return result{typ: Void}
	}
	c.stmt(body)
	val := c.tree.Arg(ret, 0)
	return result{typ: c.typeOf(val), rows: c.tree.Rows(val), cols: c.tree.Cols(val)}
}

// findReturn locates the first OpReturn statement reachable in block,
// without descending into nested algorithms, to determine a call's
// return shape before the body is fully type-checked.
func (c *Checker) findReturn(pn parsetree.ParseNode) parsetree.ParseNode {
	if pn == parsetree.Null {
		return parsetree.Null
	}
	switch c.tree.Op(pn) {
	case parsetree.OpReturn:
		return pn
	case parsetree.OpAlgorithm:
		return parsetree.Null
	default:
		for i := 0; i < c.tree.NumArgs(pn); i++ {
			if r := c.findReturn(c.tree.Arg(pn, i)); r != parsetree.Null {
				return r
			}
		}
	}
	return parsetree.Null
}

// resolveSwitch lowers a generic OpSwitch into OpSwitchNumeric or
// OpSwitchString once the key's type is known (spec.md §4.7), based on
// the first case label's resolved type.
func (c *Checker) resolveSwitch(pn parsetree.ParseNode) {
	key := c.tree.Arg(pn, 0)
	c.expr(key)

	defaultFlag := c.tree.Flag(pn)
	lowered := parsetree.OpSwitchNumeric
	if c.typeOf(key) == String {
		lowered = parsetree.OpSwitchString
	}

	seen := map[string]bool{}
	i := 1
	for i < c.tree.NumArgs(pn) {
		if i == defaultFlag {
			c.stmt(c.tree.Arg(pn, i))
			i++
			continue
		}
		caseKey := c.tree.Arg(pn, i)
		c.expr(caseKey)
		path := c.tree.Arg(pn, i+1)
		c.stmt(path)

		label := fmt.Sprintf("%v", c.tree.Double(caseKey))
		if lowered == parsetree.OpSwitchString {
			label = c.tree.Selection(caseKey).String()
		}
		if seen[label] {
			c.errs.Warnf(c.settings.Level(settings.UnusedExpression), c.tree.Selection(caseKey), codeerr.CodeUnusedExpression, "redundant case")
		}
		seen[label] = true
		i += 2
	}

	c.tree.SetOp(pn, lowered)
	c.setType(pn, Void, 0, 0)
}

func (c *Checker) typeOf(pn parsetree.ParseNode) Type { return Type(c.tree.Type(pn)) }

func (c *Checker) setType(pn parsetree.ParseNode, t Type, rows, cols int) {
	c.tree.SetType(pn, int(t))
	c.tree.SetDims(pn, rows, cols)
}

func (c *Checker) setTypeKeepDims(pn parsetree.ParseNode, t Type) {
	c.tree.SetType(pn, int(t))
}
