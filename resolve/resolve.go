// Package resolve implements the symbol-lexical pass of spec.md §4.6:
// it walks the parse tree built by package parser and produces a
// symtab.Table, rewriting identifier nodes to carry symbol references,
// lowering predefined constants, building closures, and tracking
// namespaces, imports, and scope access.
//
// Grounded on original_source/src/forscape_symbol_lexical_pass.cpp for
// the overall resolution shape (a single active-scope map plus a stack
// of scope segments). github.com/rivo/uniseg partitions an
// unresolved identifier's grapheme sequence for implicit multiplication.
package resolve

import (
	"github.com/rivo/uniseg"
	"github.com/shadowCow/mathdoc/codeerr"
	"github.com/shadowCow/mathdoc/model"
	"github.com/shadowCow/mathdoc/parsetree"
	"github.com/shadowCow/mathdoc/settings"
	"github.com/shadowCow/mathdoc/symtab"
)

// predefined maps a predefined constant's identifier text to the
// parsetree op it lowers to (spec.md §4.6: "π, e, φ, c, g, ℎ, ℏ, σ, I
// (identity autosize), T (maybe-transpose), Γ").
var predefined = map[string]parsetree.Op{
	"π": parsetree.OpPredefinedConst,
	"e": parsetree.OpPredefinedConst,
	"φ": parsetree.OpPredefinedConst,
	"c": parsetree.OpPredefinedConst,
	"g": parsetree.OpPredefinedConst,
	"ℎ": parsetree.OpPredefinedConst,
	"ℏ": parsetree.OpPredefinedConst,
	"σ": parsetree.OpPredefinedConst,
	"I": parsetree.OpIdentityAutosize,
	"T": parsetree.OpTranspose,
	"Γ": parsetree.OpPredefinedConst,
}

// scope is one active lexical scope: a map from identifier text to the
// symbol currently bound to it, plus the segment index it opened.
type scope struct {
	active      map[string]int
	segmentIdx  int
	lexicalDepth int
	closureDepth int
	fn          parsetree.ParseNode
}

// Resolver walks a parsetree.Tree and builds a symtab.Table.
type Resolver struct {
	tree  *parsetree.Tree
	doc   model.Model
	table *symtab.Table
	errs  *codeerr.Stream

	scopes []scope

	// captures[fn] accumulates the reference-capture kind for every
	// outer symbol referenced inside fn's body, keyed by symbol index
	// (spec.md §9 Open Question 3: a map per function node instead of a
	// tombstone-based refs/ref_frames scheme).
	captures map[parsetree.ParseNode]map[int]captureKind
	captureOrder map[parsetree.ParseNode][]int

	// settings tracks the lexically-scoped warning-level overrides a
	// settings{...} construct pushes (spec.md §6), popped automatically
	// whenever the enclosing block scope closes.
	settings *settings.Stack
}

type captureKind int

const (
	captureByReference captureKind = iota
	captureByValue
)

// New creates a Resolver over tree, reading identifier text from doc and
// recording diagnostics into errs.
func New(tree *parsetree.Tree, doc model.Model, errs *codeerr.Stream) *Resolver {
	return &Resolver{
		tree:         tree,
		doc:          doc,
		table:        symtab.NewTable(),
		errs:         errs,
		captures:     map[parsetree.ParseNode]map[int]captureKind{},
		captureOrder: map[parsetree.ParseNode][]int{},
		settings:     settings.NewStack(settings.Default()),
	}
}

// Resolve runs the pass over the tree's root block and returns the
// populated symbol table.
func (r *Resolver) Resolve() *symtab.Table {
	r.pushScope(parsetree.Null)
	r.hoistDeclarations(r.tree.Root())
	r.walkBlock(r.tree.Root())
	r.popScope()
	return r.table
}

func (r *Resolver) pushScope(fn parsetree.ParseNode) {
	depth := len(r.scopes)
	closureDepth := 0
	if depth > 0 {
		closureDepth = r.scopes[depth-1].closureDepth
	}
	if fn != parsetree.Null {
		closureDepth++
	}
	seg := symtab.ScopeSegment{
		FirstSymIndex:        len(r.table.Symbols),
		PrevLexicalSegment:   -1,
		ParentLexicalSegment: depth - 1,
		PrevNamespaceSegment: -1,
		UsageBegin:           len(r.table.Usages),
		Fn:                   fn,
	}
	segIdx := r.table.AddSegment(seg)
	r.settings.PushScope()
	r.scopes = append(r.scopes, scope{
		active:       map[string]int{},
		segmentIdx:   segIdx,
		lexicalDepth: depth,
		closureDepth: closureDepth,
		fn:           fn,
	})
}

func (r *Resolver) popScope() {
	n := len(r.scopes) - 1
	seg := &r.table.Segments[r.scopes[n].segmentIdx]
	seg.UsageEnd = len(r.table.Usages)
	seg.IsEndOfScope = true
	r.warnUnusedVars(seg.FirstSymIndex)
	r.scopes = r.scopes[:n]
	r.settings.PopScope()
}

// warnUnusedVars flags every symbol declared in the closing scope
// (those registered from firstSymIndex onward) that was never read,
// at the settings.UnusedVar level in effect when the scope closes.
func (r *Resolver) warnUnusedVars(firstSymIndex int) {
	level := r.settings.Level(settings.UnusedVar)
	if level == codeerr.NoWarning {
		return
	}
	for i := firstSymIndex; i < len(r.table.Symbols); i++ {
		sym := &r.table.Symbols[i]
		if sym.IsUsed || sym.IsPrototype {
			continue
		}
		r.errs.Warnf(level, r.tree.Selection(sym.DeclaringNode), codeerr.CodeUnusedVar, "")
	}
}

func (r *Resolver) currentScope() *scope { return &r.scopes[len(r.scopes)-1] }

// hoistDeclarations reorders non-capturing algorithm declarations to
// the top of a block so forward references resolve (spec.md §4.6). The
// reordering here is logical only: declarations are pre-registered in
// the active scope map before the block's statements are otherwise
// walked in source order, which gives forward calls a binding to
// resolve against without physically moving parse-tree nodes.
func (r *Resolver) hoistDeclarations(block parsetree.ParseNode) {
	for i := 0; i < r.tree.NumArgs(block); i++ {
		stmt := r.tree.Arg(block, i)
		if r.tree.Op(stmt) == parsetree.OpAlgorithm {
			nameNode := r.tree.Arg(stmt, 0)
			r.declare(nameNode, stmt)
		}
	}
}

func (r *Resolver) walkBlock(block parsetree.ParseNode) {
	for i := 0; i < r.tree.NumArgs(block); i++ {
		r.walkStatement(r.tree.Arg(block, i))
	}
}

func (r *Resolver) walkStatement(pn parsetree.ParseNode) {
	if pn == parsetree.Null {
		return
	}
	switch r.tree.Op(pn) {
	case parsetree.OpBlock:
		r.pushScope(parsetree.Null)
		r.walkBlock(pn)
		r.popScope()
	case parsetree.OpAssign:
		r.walkAssign(pn)
	case parsetree.OpIf:
		r.walkExpr(r.tree.Arg(pn, 0))
		r.walkStatement(r.tree.Arg(pn, 1))
	case parsetree.OpIfElse:
		r.walkExpr(r.tree.Arg(pn, 0))
		r.walkStatement(r.tree.Arg(pn, 1))
		r.walkStatement(r.tree.Arg(pn, 2))
	case parsetree.OpWhile:
		r.walkExpr(r.tree.Arg(pn, 0))
		r.walkStatement(r.tree.Arg(pn, 1))
	case parsetree.OpForC:
		r.pushScope(parsetree.Null)
		if init := r.tree.Arg(pn, 0); init != parsetree.Null {
			r.walkStatement(init)
		}
		if cond := r.tree.Arg(pn, 1); cond != parsetree.Null {
			r.walkExpr(cond)
		}
		if step := r.tree.Arg(pn, 2); step != parsetree.Null {
			r.walkStatement(step)
		}
		r.walkStatement(r.tree.Arg(pn, 3))
		r.popScope()
	case parsetree.OpForRanged:
		r.pushScope(parsetree.Null)
		r.walkExpr(r.tree.Arg(pn, 1))
		r.declare(r.tree.Arg(pn, 0), pn)
		r.walkStatement(r.tree.Arg(pn, 2))
		r.popScope()
	case parsetree.OpSwitch:
		for i := 0; i < r.tree.NumArgs(pn); i++ {
			r.walkStatement(r.tree.Arg(pn, i))
		}
	case parsetree.OpPrint, parsetree.OpPlot:
		for i := 0; i < r.tree.NumArgs(pn); i++ {
			r.walkExpr(r.tree.Arg(pn, i))
		}
	case parsetree.OpAssert:
		r.walkExpr(r.tree.Arg(pn, 0))
	case parsetree.OpReturn:
		if r.tree.NumArgs(pn) > 0 {
			r.walkExpr(r.tree.Arg(pn, 0))
		}
	case parsetree.OpAlgorithm:
		r.walkAlgorithm(pn)
	case parsetree.OpNamespace:
		r.walkNamespace(pn)
	case parsetree.OpImport:
		r.walkImport(pn)
	case parsetree.OpFromImport:
		r.walkFromImport(pn)
	case parsetree.OpUnknownDecl:
		for i := 0; i < r.tree.NumArgs(pn); i++ {
			idNode := r.tree.Arg(pn, i)
			r.declare(idNode, idNode)
		}
	case parsetree.OpSettingsUpdate:
		r.applySettingsUpdate(pn)
	case parsetree.OpClass:
		// Class member resolution is carried as an opaque block: member
		// name binding is an editor/static-pass concern beyond this
		// pass's scope.
	default:
		r.walkExpr(pn)
	}
}

// walkAssign implements declaration-or-reassignment (spec.md §4.6) plus
// the element-wise-assignment rewrite for `id[i] = …` / `id[i, j] = …`
// with fresh loop variables.
func (r *Resolver) walkAssign(pn parsetree.ParseNode) {
	lhs := r.tree.Arg(pn, 0)
	rhs := r.tree.Arg(pn, 1)

	if r.tree.Op(lhs) == parsetree.OpIdentifier {
		text := r.identText(lhs)
		if symIdx, ok := r.lookup(text); ok {
			r.walkExpr(rhs)
			sym := &r.table.Symbols[symIdx]
			if sym.IsConst {
				r.errs.Fail(r.tree.Selection(lhs), codeerr.CodeDuplicateDeclaration)
				return
			}
			sym.IsReassigned = true
			r.table.AddUsage(symIdx, r.tree.Selection(lhs), lhs)
			r.tree.SetSymbolIndex(lhs, symIdx)
			r.tree.SetOp(pn, parsetree.OpReassign)
			return
		}
		r.walkExpr(rhs)
		r.declare(lhs, pn)
		return
	}

	if r.tree.Op(lhs) == parsetree.OpCall {
		// `id[i]`/`id[i,j]`-shaped call-looking LHS: treat the callee as
		// the array identifier and the arguments as indices declared
		// fresh in a nested scope covering the RHS (spec.md §4.6).
		r.walkElementwiseAssignment(pn, lhs, rhs)
		return
	}

	r.walkExpr(lhs)
	r.walkExpr(rhs)
}

func (r *Resolver) walkElementwiseAssignment(pn, lhs, rhs parsetree.ParseNode) {
	callee := r.tree.Arg(lhs, 0)
	if r.tree.Op(callee) == parsetree.OpIdentifier {
		if symIdx, ok := r.lookup(r.identText(callee)); ok {
			r.table.AddUsage(symIdx, r.tree.Selection(callee), callee)
			r.tree.SetSymbolIndex(callee, symIdx)
		} else {
			r.errs.Fail(r.tree.Selection(callee), codeerr.CodeUndeclaredVar)
		}
	}

	r.pushScope(parsetree.Null)
	for i := 1; i < r.tree.NumArgs(lhs); i++ {
		idx := r.tree.Arg(lhs, i)
		if r.tree.Op(idx) == parsetree.OpIdentifier {
			if _, ok := r.lookupLocal(r.identText(idx)); !ok {
				symIdx := r.declare(idx, idx)
				r.table.Symbols[symIdx].IsEwiseIndex = true
				continue
			}
		}
		r.walkExpr(idx)
	}
	r.walkExpr(rhs)
	r.popScope()

	r.tree.SetOp(pn, parsetree.OpElementwiseAssignment)
}

func (r *Resolver) walkAlgorithm(pn parsetree.ParseNode) {
	nameNode := r.tree.Arg(pn, 0)
	// Declaration was already hoisted at the top of the enclosing block;
	// only re-declare here if this algorithm is nested somewhere
	// hoistDeclarations did not see it (e.g. inside an if-branch).
	if _, ok := r.table.ByDeclaration[pn]; !ok {
		r.declare(nameNode, pn)
	}

	r.pushScope(pn)
	paramList := r.tree.Arg(pn, 1)
	for i := 0; i < r.tree.NumArgs(paramList); i++ {
		param := r.tree.Arg(paramList, i)
		if r.tree.Op(param) == parsetree.OpList {
			r.declare(r.tree.Arg(param, 0), param)
			r.walkExpr(r.tree.Arg(param, 1))
		} else {
			r.declare(param, param)
		}
	}

	if captureList := r.tree.Arg(pn, 2); captureList != parsetree.Null {
		for i := 0; i < r.tree.NumArgs(captureList); i++ {
			capNode := r.tree.Arg(captureList, i)
			if symIdx, ok := r.lookup(r.identText(capNode)); ok {
				r.markCapture(pn, symIdx, captureByValue)
			}
		}
	}

	body := r.tree.Arg(pn, 3)
	r.walkBlock(body)
	r.popScope()

	r.attachCaptureList(pn)
}

// markCapture records that fn's body references the outer symbol
// symIdx, promoting any symbol whose declaration closure depth is less
// than fn's closure depth to closure-nested (spec.md §4.6).
func (r *Resolver) markCapture(fn parsetree.ParseNode, symIdx int, kind captureKind) {
	if r.captures[fn] == nil {
		r.captures[fn] = map[int]captureKind{}
	}
	if _, seen := r.captures[fn][symIdx]; !seen {
		r.captureOrder[fn] = append(r.captureOrder[fn], symIdx)
	}
	r.captures[fn][symIdx] = kind
	r.table.Symbols[symIdx].IsClosureNested = true
	if kind == captureByValue {
		r.table.Symbols[symIdx].IsCapturedByValue = true
	}
}

// attachCaptureList emits the deterministic OP_LIST of reference
// captures and attaches it to fn (spec.md §4.6: "order: appearance in
// nested closures first, then by index").
func (r *Resolver) attachCaptureList(fn parsetree.ParseNode) {
	order := r.captureOrder[fn]
	nodes := make([]parsetree.ParseNode, 0, len(order))
	for _, symIdx := range order {
		n := r.tree.AddTerminal(parsetree.OpIdentifier, r.tree.Selection(fn))
		r.tree.SetSymbolIndex(n, symIdx)
		nodes = append(nodes, n)
	}
	list := r.tree.AddNode(parsetree.OpList, r.tree.Selection(fn), nodes)
	r.tree.SetFlag(fn, int(list))
}

func (r *Resolver) walkNamespace(pn parsetree.ParseNode) {
	nameNode := r.tree.Arg(pn, 0)
	text := r.identText(nameNode)

	var nsSym int
	if existing, ok := r.lookup(text); ok {
		nsSym = existing
	} else {
		nsSym = r.declare(nameNode, pn)
		r.table.Symbols[nsSym].Flag = int(pn)
	}

	r.pushScope(parsetree.Null)
	body := r.tree.Arg(pn, 1)
	r.walkBlock(body)

	// Move newly added symbols into the persistent scoped-var map keyed
	// by (namespace-symbol, selection), then close the segment (spec.md
	// §4.6).
	seg := r.currentScope().segmentIdx
	for name, symIdx := range r.currentScope().active {
		key := symtab.ScopedVarKey{NamespaceSymbol: nsSym, Sel: r.tree.Selection(r.table.Symbols[symIdx].DeclaringNode)}
		r.table.ScopedVars[key] = symIdx
		_ = name
	}
	r.table.Segments[seg].PrevNamespaceSegment = r.table.Symbols[nsSym].PreviousNamespaceIndex
	r.table.Symbols[nsSym].PreviousNamespaceIndex = seg
	r.popScope()
}

func (r *Resolver) walkImport(pn parsetree.ParseNode) {
	aliasNode := r.tree.Arg(pn, 1)
	if aliasNode != parsetree.Null {
		r.declare(aliasNode, pn)
		return
	}
	pathNode := r.tree.Arg(pn, 0)
	name := lastPathComponentSansExt(r.identText(pathNode))
	synthetic := r.tree.AddTerminal(parsetree.OpIdentifier, r.tree.Selection(pathNode))
	r.declareNamed(synthetic, pn, name)
}

func (r *Resolver) walkFromImport(pn parsetree.ParseNode) {
	for i := 1; i < r.tree.NumArgs(pn); i++ {
		pair := r.tree.Arg(pn, i)
		nameNode := r.tree.Arg(pair, 0)
		aliasNode := r.tree.Arg(pair, 1)
		target := nameNode
		if aliasNode != parsetree.Null {
			target = aliasNode
		}
		// The binding's real type is filled in by the static pass once
		// the imported model has resolved (spec.md §4.6); record a
		// prototype symbol and a pending usage now.
		symIdx := r.declare(target, target)
		r.table.Symbols[symIdx].IsPrototype = true
		r.table.AddUsage(symIdx, r.tree.Selection(nameNode), nameNode)
	}
}

func (r *Resolver) walkExpr(pn parsetree.ParseNode) {
	if pn == parsetree.Null {
		return
	}
	switch r.tree.Op(pn) {
	case parsetree.OpIdentifier:
		r.walkIdentifier(pn)
	case parsetree.OpScopeAccess:
		// Only the leftmost component is resolved here; the RHS is a
		// usage stub patched by the static pass once the target
		// namespace is known (spec.md §4.6).
		r.walkExpr(r.tree.Arg(pn, 0))
	case parsetree.OpCall:
		for i := 0; i < r.tree.NumArgs(pn); i++ {
			r.walkExpr(r.tree.Arg(pn, i))
		}
	case parsetree.OpNumber, parsetree.OpString, parsetree.OpTrue, parsetree.OpFalse,
		parsetree.OpInfinity, parsetree.OpEmptySet, parsetree.OpIdentityAutosize:
		// leaves
	default:
		for i := 0; i < r.tree.NumArgs(pn); i++ {
			r.walkExpr(r.tree.Arg(pn, i))
		}
	}
}

// walkIdentifier implements reference resolution, predefined-constant
// lowering, closure-capture marking, and implicit-multiplication
// fallback (spec.md §4.6).
func (r *Resolver) walkIdentifier(pn parsetree.ParseNode) {
	text := r.identText(pn)

	if symIdx, ok := r.lookup(text); ok {
		r.table.AddUsage(symIdx, r.tree.Selection(pn), pn)
		r.tree.SetSymbolIndex(pn, symIdx)
		r.maybeMarkClosureCapture(symIdx)
		return
	}

	if op, ok := predefined[text]; ok {
		r.tree.SetOp(pn, op)
		return
	}

	if r.tryImplicitMultiplication(pn, text) {
		return
	}

	r.errs.Fail(r.tree.Selection(pn), codeerr.CodeUndeclaredVar)
}

// maybeMarkClosureCapture marks symIdx closure-nested if it was
// declared outside the innermost enclosing function (spec.md §4.6).
func (r *Resolver) maybeMarkClosureCapture(symIdx int) {
	sym := &r.table.Symbols[symIdx]
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if r.scopes[i].fn != parsetree.Null {
			if sym.DeclarationClosureDepth < r.scopes[i].closureDepth {
				r.markCapture(r.scopes[i].fn, symIdx, captureByReference)
			}
			return
		}
	}
}

// tryImplicitMultiplication partitions an unresolved multi-character
// identifier's grapheme sequence into declared single-character
// identifiers (or predefines), replacing pn with an n-ary implicit
// multiplication over the references on success (spec.md §4.6).
func (r *Resolver) tryImplicitMultiplication(pn parsetree.ParseNode, text string) bool {
	var graphemes []string
	g := uniseg.NewGraphemes(text)
	for g.Next() {
		graphemes = append(graphemes, g.Str())
	}
	if len(graphemes) < 2 {
		return false
	}

	type factor struct {
		symIdx int
		isPre  bool
		op     parsetree.Op
	}
	factors := make([]factor, 0, len(graphemes))
	for _, gr := range graphemes {
		if symIdx, ok := r.lookup(gr); ok {
			factors = append(factors, factor{symIdx: symIdx})
			continue
		}
		if op, ok := predefined[gr]; ok {
			factors = append(factors, factor{isPre: true, op: op})
			continue
		}
		return false
	}

	sel := r.tree.Selection(pn)
	children := make([]parsetree.ParseNode, 0, len(factors))
	for _, f := range factors {
		n := r.tree.AddTerminal(parsetree.OpIdentifier, sel)
		if f.isPre {
			r.tree.SetOp(n, f.op)
		} else {
			r.tree.SetSymbolIndex(n, f.symIdx)
			r.table.AddUsage(f.symIdx, sel, n)
			r.maybeMarkClosureCapture(f.symIdx)
		}
		children = append(children, n)
	}
	// pn keeps its own index (so the parent's existing reference to it
	// stays valid) but becomes the n-ary implicit-multiply node itself.
	r.tree.Replace(pn, parsetree.OpImplicitMultiply, children)
	return true
}

// identText reads the raw source text an identifier (or other
// single-line leaf) node spans. Parse-tree nodes carry only source
// positions, not copies of their text (spec.md §3), so resolving a name
// means slicing it back out of the owning document.
func (r *Resolver) identText(pn parsetree.ParseNode) string {
	sel := r.tree.Selection(pn)
	line := []rune(r.doc.Line(sel.Left.Line))
	lo, hi := sel.Left.Offset, sel.Right.Offset
	if lo < 0 {
		lo = 0
	}
	if hi > len(line) {
		hi = len(line)
	}
	if lo >= hi {
		return ""
	}
	return string(line[lo:hi])
}

// applySettingsUpdate overrides the warning levels a settings{...}
// construct names, in effect for the remainder of the enclosing block
// scope only (spec.md §6: "enacted lexically"). The resolved SettingId
// and WarningLevel are also stamped onto the pair node itself (Flag,
// SymbolIndex — otherwise unused on a bare name=value pair) so the
// static pass can re-enact the same lexical overrides without needing
// its own copy of the source document to re-read identifier text from.
func (r *Resolver) applySettingsUpdate(pn parsetree.ParseNode) {
	for i := 0; i < r.tree.NumArgs(pn); i++ {
		pair := r.tree.Arg(pn, i)
		nameNode, valNode := r.tree.Arg(pair, 0), r.tree.Arg(pair, 1)
		id, ok := settings.Lookup(r.identText(nameNode))
		if !ok {
			r.errs.Fail(r.tree.Selection(nameNode), codeerr.CodeUnknownSetting)
			continue
		}
		level := parseWarningLevel(r.identText(valNode))
		r.settings.Set(id, level)
		r.tree.SetFlag(pair, int(id))
		r.tree.SetSymbolIndex(pair, int(level))
	}
}

func parseWarningLevel(text string) codeerr.WarningLevel {
	switch text {
	case "none":
		return codeerr.NoWarning
	case "error":
		return codeerr.ErrorLevel
	default:
		return codeerr.Warn
	}
}

// declare creates a new symbol for nameNode in the current scope,
// bound under nameNode's own identifier text.
func (r *Resolver) declare(nameNode, declNode parsetree.ParseNode) int {
	return r.declareNamed(nameNode, declNode, r.identText(nameNode))
}

func (r *Resolver) declareNamed(nameNode, declNode parsetree.ParseNode, name string) int {
	s := r.currentScope()
	sym := symtab.NewSymbol(declNode, s.lexicalDepth, s.closureDepth)
	if shadowed, ok := s.active[name]; ok {
		sym.ShadowedIndex = shadowed
		r.errs.Warnf(r.settings.Level(settings.Shadowing), r.tree.Selection(nameNode), codeerr.CodeShadowedVar, "")
	} else if shadowed, ok := r.lookupOuter(name); ok {
		sym.ShadowedIndex = shadowed
	}
	idx := r.table.AddSymbol(sym)
	s.active[name] = idx
	r.tree.SetSymbolIndex(nameNode, idx)
	return idx
}

func (r *Resolver) lookup(name string) (int, bool) {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if idx, ok := r.scopes[i].active[name]; ok {
			return idx, true
		}
	}
	return 0, false
}

func (r *Resolver) lookupLocal(name string) (int, bool) {
	idx, ok := r.currentScope().active[name]
	return idx, ok
}

func (r *Resolver) lookupOuter(name string) (int, bool) {
	for i := len(r.scopes) - 2; i >= 0; i-- {
		if idx, ok := r.scopes[i].active[name]; ok {
			return idx, true
		}
	}
	return 0, false
}

func lastPathComponentSansExt(path string) string {
	start := 0
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			start = i + 1
			break
		}
	}
	end := len(path)
	for i := len(path) - 1; i >= start; i-- {
		if path[i] == '.' {
			end = i
			break
		}
	}
	return path[start:end]
}
