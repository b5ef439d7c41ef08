// Package linker implements the symbol-table linking pass of spec.md
// §4.8: once resolve has bound every identifier to a symbol and types
// has instantiated every call, the linker assigns each symbol a final
// storage location — a stack slot scoped to its enclosing function, a
// global slot for top-level declarations, or an upvalue slot for a
// symbol some nested closure reads by reference or by value — and
// rewrites every identifier *reference* (never a declaration) into the
// matching parsetree.OpReadStack/OpReadGlobal/OpReadUpvalue node so the
// interpreter never has to re-derive addressing at run time.
//
// Grounded on original_source/src/forscape_symbol_link_pass.h/.cpp. Its
// traversal shape mirrors resolve's own walkBlock/walkStatement/walkExpr
// (the node shapes this parser actually produces), rather than the
// original's fuller statement-op inventory.
package linker

import (
	"golang.org/x/exp/slices"

	"github.com/shadowCow/mathdoc/parsetree"
	"github.com/shadowCow/mathdoc/symtab"
)

// Linker assigns slots and rewrites reads over tree/table.
type Linker struct {
	tree   *parsetree.Tree
	table  *symtab.Table
	frames []*frame

	globalSize int
}

// frame tracks one function's local-slot bookkeeping; frames[0], whose
// algo is parsetree.Null, is the top-level (global) frame.
type frame struct {
	algo      parsetree.ParseNode
	stackSize int
	peak      int
	saved     []int
}

// New creates a Linker over tree/table, ready to Link.
func New(tree *parsetree.Tree, table *symtab.Table) *Linker {
	return &Linker{
		tree:   tree,
		table:  table,
		frames: []*frame{{algo: parsetree.Null}},
	}
}

// Link runs the pass over the tree's root block. No user-visible errors
// are possible at this stage (spec.md §4.8) — every reference has
// already been validated as declared by resolve.
func (l *Linker) Link() {
	l.block(l.tree.Root())
}

func (l *Linker) top() *frame { return l.frames[len(l.frames)-1] }

func (l *Linker) pushBlockScope() {
	f := l.top()
	f.saved = append(f.saved, f.stackSize)
}

func (l *Linker) popBlockScope() {
	f := l.top()
	n := len(f.saved) - 1
	f.stackSize = f.saved[n]
	f.saved = f.saved[:n]
}

func (l *Linker) pushFunction(pn parsetree.ParseNode) {
	l.frames = append(l.frames, &frame{algo: pn})
}

// popFunction closes the current function frame, recording the largest
// number of stack slots it held at once on the algorithm node itself (Rows, otherwise unused
// past the static pass for an uninstantiated OpAlgorithm — see
// types.Checker's OpAlgorithm case) so the interpreter knows how large a
// []interp.Value frame to allocate for a call without re-deriving it.
func (l *Linker) popFunction() {
	f := l.top()
	l.tree.SetDims(f.algo, f.peak, 0)
	l.frames = l.frames[:len(l.frames)-1]
}

// GlobalSize returns the number of top-level slots Link assigned, the
// size the interpreter must allocate for its global Value array.
func (l *Linker) GlobalSize() int { return l.globalSize }

// declare assigns idNode's symbol a slot: a global index if this
// declaration lives at the top level, otherwise the next free stack
// slot in the enclosing function's frame. A symbol already assigned
// (the common case for an algorithm's own name, declared once by
// hoisting and revisited here) is left untouched. The identifier node
// itself is left as OpIdentifier — a declaration is never turned into
// a read, only recorded usages of it are (see reference).
func (l *Linker) declare(idNode parsetree.ParseNode) {
	idx := l.tree.SymbolIndex(idNode)
	if idx < 0 {
		return
	}
	l.declareIndex(idx)
}

// declareIndex is declare's symbol-index-addressed core, for the rare
// declaration (a bare `import "path"`, see importStmt) whose symbol was
// never attached to a reachable identifier node.
func (l *Linker) declareIndex(idx int) {
	sym := &l.table.Symbols[idx]
	if sym.SlotKind != symtab.SlotUnassigned {
		return
	}

	f := l.top()
	if f.algo == parsetree.Null {
		sym.SlotKind = symtab.SlotGlobal
		sym.Slot = l.globalSize
		l.globalSize++
		return
	}
	sym.SlotKind = symtab.SlotStack
	sym.Slot = f.stackSize
	f.stackSize++
	if f.stackSize > f.peak {
		f.peak = f.stackSize
	}
}

// reference resolves an existing identifier's read addressing and
// rewrites pn in place. Symbol.IsClosureNested only says some closure
// somewhere captures this symbol — it says nothing about which frame
// pn itself is being read from. A reference resolves against the
// *current* frame's own attached capture list (resolve.attachCaptureList);
// only a hit there makes it an upvalue read. A reference from within
// the declaring function itself (or from an unrelated frame that
// doesn't capture it) still reads its own declared slot directly.
func (l *Linker) reference(pn parsetree.ParseNode) {
	idx := l.tree.SymbolIndex(pn)
	if idx < 0 {
		return
	}
	sym := l.table.Symbols[idx]

	if sym.IsClosureNested {
		if capIdx, ok := l.captureIndex(l.top().algo, idx); ok {
			l.tree.SetOp(pn, parsetree.OpReadUpvalue)
			l.tree.SetFlag(pn, capIdx)
			return
		}
	}

	if sym.SlotKind == symtab.SlotGlobal {
		l.tree.SetOp(pn, parsetree.OpReadGlobal)
	} else {
		l.tree.SetOp(pn, parsetree.OpReadStack)
	}
	l.tree.SetFlag(pn, sym.Slot)
}

// captureIndex finds symIdx's position within algo's attached capture
// list (resolve.attachCaptureList), the index the interpreter will use
// to address this symbol's boxed slot inside a closure instantiated
// from algo. ok is false when algo doesn't capture symIdx at all (the
// top-level frame, or a frame this symbol isn't free in).
func (l *Linker) captureIndex(algo parsetree.ParseNode, symIdx int) (index int, ok bool) {
	if algo == parsetree.Null {
		return 0, false
	}
	list := parsetree.ParseNode(l.tree.Flag(algo))
	entries := l.tree.Children(list)
	i := slices.IndexFunc(entries, func(c parsetree.ParseNode) bool {
		return l.tree.SymbolIndex(c) == symIdx
	})
	if i < 0 {
		return 0, false
	}
	return i, true
}

func (l *Linker) block(pn parsetree.ParseNode) {
	for i := 0; i < l.tree.NumArgs(pn); i++ {
		l.stmt(l.tree.Arg(pn, i))
	}
}

func (l *Linker) stmt(pn parsetree.ParseNode) {
	if pn == parsetree.Null {
		return
	}
	switch l.tree.Op(pn) {
	case parsetree.OpBlock:
		l.pushBlockScope()
		l.block(pn)
		l.popBlockScope()
	case parsetree.OpAssign:
		l.expr(l.tree.Arg(pn, 1))
		l.declare(l.tree.Arg(pn, 0))
	case parsetree.OpReassign:
		l.expr(l.tree.Arg(pn, 1))
		l.reference(l.tree.Arg(pn, 0))
	case parsetree.OpElementwiseAssignment:
		l.elementwiseAssignment(pn)
	case parsetree.OpIf:
		l.expr(l.tree.Arg(pn, 0))
		l.stmt(l.tree.Arg(pn, 1))
	case parsetree.OpIfElse:
		l.expr(l.tree.Arg(pn, 0))
		l.stmt(l.tree.Arg(pn, 1))
		l.stmt(l.tree.Arg(pn, 2))
	case parsetree.OpWhile:
		l.expr(l.tree.Arg(pn, 0))
		l.stmt(l.tree.Arg(pn, 1))
	case parsetree.OpForC:
		l.pushBlockScope()
		if init := l.tree.Arg(pn, 0); init != parsetree.Null {
			l.stmt(init)
		}
		if cond := l.tree.Arg(pn, 1); cond != parsetree.Null {
			l.expr(cond)
		}
		if step := l.tree.Arg(pn, 2); step != parsetree.Null {
			l.stmt(step)
		}
		l.stmt(l.tree.Arg(pn, 3))
		l.popBlockScope()
	case parsetree.OpForRanged:
		l.pushBlockScope()
		l.expr(l.tree.Arg(pn, 1))
		l.declare(l.tree.Arg(pn, 0))
		l.stmt(l.tree.Arg(pn, 2))
		l.popBlockScope()
	case parsetree.OpSwitch, parsetree.OpSwitchNumeric, parsetree.OpSwitchString:
		l.expr(l.tree.Arg(pn, 0))
		defaultFlag := l.tree.Flag(pn)
		i := 1
		for i < l.tree.NumArgs(pn) {
			if i == defaultFlag {
				l.stmt(l.tree.Arg(pn, i))
				i++
				continue
			}
			l.expr(l.tree.Arg(pn, i))
			l.stmt(l.tree.Arg(pn, i+1))
			i += 2
		}
	case parsetree.OpPrint, parsetree.OpPlot:
		for i := 0; i < l.tree.NumArgs(pn); i++ {
			l.expr(l.tree.Arg(pn, i))
		}
	case parsetree.OpAssert:
		l.expr(l.tree.Arg(pn, 0))
	case parsetree.OpReturn:
		if l.tree.NumArgs(pn) > 0 {
			l.expr(l.tree.Arg(pn, 0))
		}
	case parsetree.OpAlgorithm:
		l.algorithm(pn)
	case parsetree.OpNamespace:
		l.declare(l.tree.Arg(pn, 0))
		l.block(l.tree.Arg(pn, 1))
	case parsetree.OpImport:
		l.importStmt(pn)
	case parsetree.OpFromImport:
		l.fromImportStmt(pn)
	case parsetree.OpUnknownDecl:
		for i := 0; i < l.tree.NumArgs(pn); i++ {
			l.declare(l.tree.Arg(pn, i))
		}
	case parsetree.OpClass, parsetree.OpSettingsUpdate:
		// Carried as opaque blocks; see resolve's matching no-op case.
	default:
		l.expr(pn)
	}
}

// importStmt handles a bare `import "path"` or an aliased
// `import "path" as name`. The aliased form names a real identifier
// node (Arg(pn,1)) to declare directly; the bare form's binding was
// given a synthetic, tree-unreachable identifier by resolve, keyed by
// symbol's DeclaringNode == pn itself (spec.md §4.6) rather than by any
// child node — ByDeclaration is how the linker reaches it.
func (l *Linker) importStmt(pn parsetree.ParseNode) {
	if alias := l.tree.Arg(pn, 1); alias != parsetree.Null {
		l.declare(alias)
		return
	}
	if idx, ok := l.table.ByDeclaration[pn]; ok {
		l.declareIndex(idx)
	}
}

func (l *Linker) fromImportStmt(pn parsetree.ParseNode) {
	for i := 1; i < l.tree.NumArgs(pn); i++ {
		pair := l.tree.Arg(pn, i)
		target := l.tree.Arg(pair, 0)
		if alias := l.tree.Arg(pair, 1); alias != parsetree.Null {
			target = alias
		}
		l.declare(target)
	}
}

func (l *Linker) elementwiseAssignment(pn parsetree.ParseNode) {
	lhs := l.tree.Arg(pn, 0)
	rhs := l.tree.Arg(pn, 1)
	callee := l.tree.Arg(lhs, 0)
	if l.tree.Op(callee) == parsetree.OpIdentifier {
		l.reference(callee)
	}

	l.pushBlockScope()
	for i := 1; i < l.tree.NumArgs(lhs); i++ {
		idx := l.tree.Arg(lhs, i)
		if l.tree.Op(idx) == parsetree.OpIdentifier {
			l.declare(idx)
		} else {
			l.expr(idx)
		}
	}
	l.expr(rhs)
	l.popBlockScope()
}

func (l *Linker) algorithm(pn parsetree.ParseNode) {
	name := l.tree.Arg(pn, 0)
	l.declare(name)

	l.pushFunction(pn)
	paramList := l.tree.Arg(pn, 1)
	for i := 0; i < l.tree.NumArgs(paramList); i++ {
		param := l.tree.Arg(paramList, i)
		if l.tree.Op(param) == parsetree.OpList {
			l.declare(l.tree.Arg(param, 0))
			l.expr(l.tree.Arg(param, 1))
		} else {
			l.declare(param)
		}
	}

	body := l.tree.Arg(pn, 3)
	l.stmt(body)
	l.popFunction()
}

func (l *Linker) expr(pn parsetree.ParseNode) {
	if pn == parsetree.Null {
		return
	}
	switch l.tree.Op(pn) {
	case parsetree.OpIdentifier:
		l.reference(pn)
	case parsetree.OpNumber, parsetree.OpString, parsetree.OpTrue, parsetree.OpFalse,
		parsetree.OpInfinity, parsetree.OpPredefinedConst:
		// Literals address nothing.
	default:
		for i := 0; i < l.tree.NumArgs(pn); i++ {
			l.expr(l.tree.Arg(pn, i))
		}
	}
}
