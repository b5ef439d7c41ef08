package interp

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/shadowCow/mathdoc/codeerr"
	"github.com/shadowCow/mathdoc/model"
	"github.com/shadowCow/mathdoc/parsetree"
	"github.com/shadowCow/mathdoc/symtab"
)

// execFrame is one activation record: algo names the declaring
// parsetree.OpAlgorithm node (parsetree.Null for the top-level program),
// locals holds its stack slots (sized per linker.Linker.popFunction's
// recorded frame size), and upvalues holds the boxed cells this
// activation's own closure (if any) was built with.
type execFrame struct {
	algo     parsetree.ParseNode
	locals   []Value
	upvalues []*Value
}

// Interpreter executes a linked parsetree.Tree (spec.md §4.9). It is not
// safe for concurrent Run calls, but Stop/Status/ErrorCode/ErrorNode may
// be called from another goroutine while RunThread's worker is active —
// the same host/worker split the original's run/run_thread/stop trio
// implements.
type Interpreter struct {
	tree  *parsetree.Tree
	table *symtab.Table
	errs  *codeerr.Stream
	doc   model.Model

	globals []Value
	output  chan Output

	returnValue Value

	mu          sync.Mutex
	status      Status
	instruction Instruction
	errCode     codeerr.Code
	errNode     parsetree.ParseNode
}

// New creates an Interpreter over a fully linked tree/table, sizing the
// global Value array to globalSize (linker.Linker.GlobalSize's result).
// The output channel is buffered to 1024, matching the original's fixed
// moodycamel::ReaderWriterQueue<InterpreterOutput*, 1024> capacity — the
// idiomatic Go substitute for a lock-free SPSC ring buffer (no ecosystem
// queue library surfaced in the retrieval pack; see DESIGN.md).
func New(tree *parsetree.Tree, table *symtab.Table, errs *codeerr.Stream, doc model.Model, globalSize int) *Interpreter {
	return &Interpreter{
		tree:    tree,
		table:   table,
		errs:    errs,
		doc:     doc,
		globals: make([]Value, globalSize),
		output:  make(chan Output, 1024),
	}
}

// text slices a leaf node's raw source text out of the owning document,
// the same technique resolve.Resolver.identText uses: parse-tree nodes
// carry only source positions, never copies of their text.
func (in *Interpreter) text(pn parsetree.ParseNode) string {
	sel := in.tree.Selection(pn)
	if in.doc == nil || sel.Left.Line >= in.doc.NumLines() {
		return ""
	}
	line := []rune(in.doc.Line(sel.Left.Line))
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

// stringLiteral strips the surrounding quote characters from a scanned
// string token's raw text and decodes its backslash escapes the way the
// scanner does: `\n` becomes a newline and any other escaped character
// stands for itself.
func (in *Interpreter) stringLiteral(pn parsetree.ParseNode) string {
	s := in.text(pn)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			if s[i] == 'n' {
				out = append(out, '\n')
				continue
			}
		}
		out = append(out, s[i])
	}
	return string(out)
}

// Output returns the channel the host drains Print/PlotCreate/
// PlotDiscreteSeries messages from, in producer order.
func (in *Interpreter) Output() <-chan Output { return in.output }

// Status reports the interpreter's current run state.
func (in *Interpreter) Status() Status {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.status
}

// ErrorCode reports the first runtime error raised, if any.
func (in *Interpreter) ErrorCode() codeerr.Code {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.errCode
}

// ErrorNode reports the parse node the first runtime error was raised
// at.
func (in *Interpreter) ErrorNode() parsetree.ParseNode {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.errNode
}

// Stop requests the running interpreter halt at the next statement
// boundary, raising USER_STOP. Safe to call from another goroutine.
func (in *Interpreter) Stop() {
	in.mu.Lock()
	in.instruction = InstructionStop
	in.mu.Unlock()
}

func (in *Interpreter) directive() Instruction {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.instruction
}

// raise records the first runtime error (subsequent calls are no-ops,
// mirroring error()'s "status < RUNTIME_ERROR" first-error-wins guard).
// It does not close the output channel; Run does that once execution
// ends.
func (in *Interpreter) raise(code codeerr.Code, pn parsetree.ParseNode) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.status >= StatusRuntimeError {
		return
	}
	in.status = StatusRuntimeError
	in.errCode = code
	in.errNode = pn
	in.errs.Fail(in.tree.Selection(pn), code)
}

func (in *Interpreter) failed() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.status >= StatusRuntimeError
}

// Run executes the tree's root block synchronously and leaves Status at
// FINISHED (or RUNTIME_ERROR on the first error raised). The host must
// drain Output() after Run returns.
func (in *Interpreter) Run() {
	root := in.tree.Root()
	in.block(root, &execFrame{algo: parsetree.Null})
	if !in.failed() {
		in.mu.Lock()
		in.status = StatusFinished
		in.mu.Unlock()
	}
	close(in.output)
}

// RunThread spawns Run on its own goroutine and returns a channel closed
// once it completes, the Go analogue of a detached worker thread.
func (in *Interpreter) RunThread() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		in.Run()
		close(done)
	}()
	return done
}

func (in *Interpreter) emit(o Output) {
	select {
	case in.output <- o:
	default:
		// A full queue means the host has stopped draining; dropping
		// rather than blocking keeps the interpreter thread making
		// forward progress, matching the original's fire-and-forget
		// enqueue onto a bounded ring buffer.
	}
}

// block executes pn's statements in order, short-circuiting as soon as
// status leaves NORMAL (spec.md §4.9: "block (short-circuits on Status
// != NORMAL)").
func (in *Interpreter) block(pn parsetree.ParseNode, f *execFrame) {
	for i := 0; i < in.tree.NumArgs(pn); i++ {
		in.stmt(in.tree.Arg(pn, i), f)
		if in.Status() != StatusNormal {
			return
		}
	}
}

func (in *Interpreter) stmt(pn parsetree.ParseNode, f *execFrame) {
	if pn == parsetree.Null || in.failed() {
		return
	}
	if in.directive() == InstructionStop {
		in.raise(codeerr.CodeUserStop, pn)
		return
	}

	switch in.tree.Op(pn) {
	case parsetree.OpBlock:
		in.block(pn, f)
	case parsetree.OpAssign:
		v := in.expr(in.tree.Arg(pn, 1), f)
		if addr := in.addr(in.tree.Arg(pn, 0), f); addr != nil {
			*addr = v
		}
	case parsetree.OpReassign:
		in.reassign(pn, f)
	case parsetree.OpElementwiseAssignment:
		in.elementwiseAssignment(pn, f)
	case parsetree.OpIf:
		if truthy(in.expr(in.tree.Arg(pn, 0), f)) {
			in.stmt(in.tree.Arg(pn, 1), f)
		}
	case parsetree.OpIfElse:
		if truthy(in.expr(in.tree.Arg(pn, 0), f)) {
			in.stmt(in.tree.Arg(pn, 1), f)
		} else {
			in.stmt(in.tree.Arg(pn, 2), f)
		}
	case parsetree.OpWhile:
		in.whileStmt(pn, f)
	case parsetree.OpForC:
		in.forStmt(pn, f)
	case parsetree.OpForRanged:
		in.rangedForStmt(pn, f)
	case parsetree.OpSwitch, parsetree.OpSwitchNumeric, parsetree.OpSwitchString:
		in.switchStmt(pn, f)
	case parsetree.OpPrint:
		in.printStmt(pn, f)
	case parsetree.OpAssert:
		in.assertStmt(pn, f)
	case parsetree.OpReturn:
		if in.tree.NumArgs(pn) > 0 {
			in.returnValue = in.expr(in.tree.Arg(pn, 0), f)
		} else {
			in.returnValue = Value{Kind: KindVoid}
		}
		in.setStatus(StatusReturn)
	case parsetree.OpPlot:
		in.plotStmt(pn, f)
	case parsetree.OpAlgorithm:
		in.algorithmStmt(pn, f)
	case parsetree.OpNamespace:
		in.block(in.tree.Arg(pn, 1), f)
	case parsetree.OpImport, parsetree.OpFromImport:
		// No stage of this pipeline, package program included, stores
		// an imported module's body on the import node, so its Flag is
		// never set and nothing from the imported file is executed here.
		if body := parsetree.ParseNode(in.tree.Flag(pn)); body != parsetree.Null {
			in.block(body, &execFrame{algo: parsetree.Null})
		}
	case parsetree.OpClass, parsetree.OpSettingsUpdate, parsetree.OpUnknownDecl:
		// No runtime effect: classes and settings updates are
		// compile-time-only constructs here (see resolve's and types'
		// matching no-op cases), and an unknown-declaration statement
		// only exists to seed the symbol table.
	default:
		in.expr(pn, f)
	}
}

func (in *Interpreter) whileStmt(pn parsetree.ParseNode, f *execFrame) {
	cond := in.tree.Arg(pn, 0)
	body := in.tree.Arg(pn, 1)
	for !in.failed() && truthy(in.expr(cond, f)) {
		in.stmt(body, f)
		if !in.loopContinue(f) {
			return
		}
	}
}

func truthy(v Value) bool { return v.Kind == KindBool && v.Bool }

func (in *Interpreter) reassign(pn parsetree.ParseNode, f *execFrame) {
	lhs := in.tree.Arg(pn, 0)
	v := in.expr(in.tree.Arg(pn, 1), f)
	addr := in.addr(lhs, f)
	if addr == nil {
		return
	}
	if addr.Kind != KindVoid && addr.Kind != v.Kind {
		in.raise(codeerr.CodeTypeMismatch, pn)
		return
	}
	if addr.Kind == KindMatrix && addr.Mat != nil && v.Mat != nil {
		r1, c1 := addr.Mat.Dims()
		r2, c2 := v.Mat.Dims()
		if r1 != r2 || c1 != c2 {
			in.raise(codeerr.CodeDimMismatch, pn)
			return
		}
	}
	*addr = v
}

// addr resolves pn to the Value cell it addresses, for both a fresh
// declaration (pn is a plain OpIdentifier, addressed via its symbol's
// SlotKind/Slot directly) and an already-linked reference (pn is one of
// OpReadStack/OpReadGlobal/OpReadUpvalue, addressed via its Flag).
func (in *Interpreter) addr(pn parsetree.ParseNode, f *execFrame) *Value {
	switch in.tree.Op(pn) {
	case parsetree.OpReadGlobal:
		return &in.globals[in.tree.Flag(pn)]
	case parsetree.OpReadStack:
		return &f.locals[in.tree.Flag(pn)]
	case parsetree.OpReadUpvalue:
		return f.upvalues[in.tree.Flag(pn)]
	case parsetree.OpIdentifier:
		idx := in.tree.SymbolIndex(pn)
		if idx < 0 {
			return nil
		}
		sym := in.table.Symbols[idx]
		if sym.SlotKind == symtab.SlotGlobal {
			return &in.globals[sym.Slot]
		}
		return &f.locals[sym.Slot]
	default:
		return nil
	}
}

func (in *Interpreter) forStmt(pn parsetree.ParseNode, f *execFrame) {
	if init := in.tree.Arg(pn, 0); init != parsetree.Null {
		in.stmt(init, f)
	}
	for !in.failed() {
		if cond := in.tree.Arg(pn, 1); cond != parsetree.Null {
			if !truthy(in.expr(cond, f)) {
				break
			}
		}
		in.stmt(in.tree.Arg(pn, 3), f)
		if !in.loopContinue(f) {
			break
		}
		if step := in.tree.Arg(pn, 2); step != parsetree.Null {
			in.stmt(step, f)
		}
	}
}

// loopContinue absorbs a BREAK/CONTINUE raised by the loop body into
// NORMAL, reporting whether the loop should keep iterating.
func (in *Interpreter) loopContinue(f *execFrame) bool {
	switch in.Status() {
	case StatusBreak:
		in.setStatus(StatusNormal)
		return false
	case StatusContinue:
		in.setStatus(StatusNormal)
		return true
	case StatusNormal:
		return true
	default:
		return false
	}
}

func (in *Interpreter) setStatus(s Status) {
	in.mu.Lock()
	in.status = s
	in.mu.Unlock()
}

func (in *Interpreter) rangedForStmt(pn parsetree.ParseNode, f *execFrame) {
	idNode := in.tree.Arg(pn, 0)
	iterable := in.expr(in.tree.Arg(pn, 1), f)
	body := in.tree.Arg(pn, 2)
	addr := in.addr(idNode, f)
	if addr == nil {
		return
	}

	switch iterable.Kind {
	case KindMatrix:
		rows, cols := iterable.Mat.Dims()
		if rows != 1 && cols != 1 {
			in.raise(codeerr.CodeDimMismatch, pn)
			return
		}
		n := rows * cols
		for i := 0; i < n; i++ {
			if in.failed() {
				return
			}
			var v float64
			if rows == 1 {
				v = iterable.Mat.At(0, i)
			} else {
				v = iterable.Mat.At(i, 0)
			}
			*addr = numberValue(v)
			in.stmt(body, f)
			if !in.loopContinue(f) {
				return
			}
		}
	default:
		*addr = iterable
		in.stmt(body, f)
		in.loopContinue(f)
	}
}

func (in *Interpreter) switchStmt(pn parsetree.ParseNode, f *execFrame) {
	key := in.expr(in.tree.Arg(pn, 0), f)
	defaultFlag := in.tree.Flag(pn)

	type caseEntry struct{ key, body parsetree.ParseNode }
	var cases []caseEntry
	defaultBody := parsetree.Null
	i := 1
	for i < in.tree.NumArgs(pn) {
		if i == defaultFlag {
			defaultBody = in.tree.Arg(pn, i)
			i++
			continue
		}
		cases = append(cases, caseEntry{in.tree.Arg(pn, i), in.tree.Arg(pn, i+1)})
		i += 2
	}

	match := -1
	for idx, ce := range cases {
		if valuesEqual(key, in.expr(ce.key, f)) {
			match = idx
			break
		}
	}
	if match == -1 {
		if defaultBody != parsetree.Null {
			in.stmt(defaultBody, f)
		}
		return
	}

	// Two case labels sharing one intended body are written with an
	// empty block on the earlier label (spec.md §8 scenario 5); fall
	// through to the next non-empty body.
	for pos := match; pos < len(cases); pos++ {
		body := cases[pos].body
		if in.tree.Op(body) == parsetree.OpBlock && in.tree.NumArgs(body) == 0 {
			continue
		}
		in.stmt(body, f)
		return
	}
	if defaultBody != parsetree.Null {
		in.stmt(defaultBody, f)
	}
}

func valuesEqual(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNumber:
		return a.Num == b.Num
	case KindString:
		return a.Str == b.Str
	case KindBool:
		return a.Bool == b.Bool
	default:
		return false
	}
}

func (in *Interpreter) printStmt(pn parsetree.ParseNode, f *execFrame) {
	for i := 0; i < in.tree.NumArgs(pn); i++ {
		v := in.expr(in.tree.Arg(pn, i), f)
		in.emit(Output{Kind: Print, Text: v.Format()})
	}
}

func (in *Interpreter) assertStmt(pn parsetree.ParseNode, f *execFrame) {
	v := in.expr(in.tree.Arg(pn, 0), f)
	if !truthy(v) {
		in.raise(codeerr.CodeRuntimeFailure, pn)
	}
}

func (in *Interpreter) plotStmt(pn parsetree.ParseNode, f *execFrame) {
	args := in.tree.Children(pn)
	get := func(i int) Value {
		if i < len(args) {
			return in.expr(args[i], f)
		}
		return Value{}
	}
	title, xlabel, x, ylabel, y := get(0), get(1), get(2), get(3), get(4)
	in.emit(Output{Kind: PlotCreate, Title: title.Format(), XLabel: xlabel.Format(), YLabel: ylabel.Format()})
	xs := toSeries(x)
	ys := toSeries(y)
	in.emit(Output{Kind: PlotDiscreteSeries, X: xs, Y: ys})
}

func toSeries(v Value) []float64 {
	switch v.Kind {
	case KindNumber:
		return []float64{v.Num}
	case KindMatrix:
		rows, cols := v.Mat.Dims()
		out := make([]float64, 0, rows*cols)
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				out = append(out, v.Mat.At(r, c))
			}
		}
		return out
	default:
		return nil
	}
}

// algorithmStmt declares a (possibly closure-capturing) algorithm value
// under its own name, the interpreter-side half of the original's
// algorithmStmt/initClosure.
func (in *Interpreter) algorithmStmt(pn parsetree.ParseNode, f *execFrame) {
	name := in.tree.Arg(pn, 0)
	addr := in.addr(name, f)
	if addr == nil {
		return
	}
	*addr = Value{Kind: KindAlgorithm, Algo: in.newClosure(pn, f)}
}

// newClosure boxes one cell per entry in pn's attached capture list
// (resolve.attachCaptureList). Each cell is the address of the captured
// symbol's own storage — the current frame's local slot, a global slot,
// or (for multi-level nesting) the same boxed cell the current frame
// itself already holds as one of its own upvalues — so a write through
// any level of the chain is visible to every closure sharing it.
func (in *Interpreter) newClosure(pn parsetree.ParseNode, f *execFrame) *Closure {
	list := parsetree.ParseNode(in.tree.Flag(pn))
	if list == parsetree.Null {
		return &Closure{Decl: pn}
	}
	entries := in.tree.Children(list)
	upvalues := make([]*Value, len(entries))
	for i, e := range entries {
		upvalues[i] = in.box(in.tree.SymbolIndex(e), f)
	}
	return &Closure{Decl: pn, Upvalues: upvalues}
}

func (in *Interpreter) box(symIdx int, f *execFrame) *Value {
	sym := in.table.Symbols[symIdx]
	if f.algo != parsetree.Null {
		if capIdx, ok := in.captureIndex(f.algo, symIdx); ok {
			return f.upvalues[capIdx]
		}
	}
	if sym.SlotKind == symtab.SlotGlobal {
		return &in.globals[sym.Slot]
	}
	return &f.locals[sym.Slot]
}

// captureIndex mirrors linker.Linker.captureIndex: is symIdx one of the
// symbols algo's own attached capture list names, and if so at what
// position.
func (in *Interpreter) captureIndex(algo parsetree.ParseNode, symIdx int) (int, bool) {
	if algo == parsetree.Null {
		return 0, false
	}
	list := parsetree.ParseNode(in.tree.Flag(algo))
	for i := 0; i < in.tree.NumArgs(list); i++ {
		if in.tree.SymbolIndex(in.tree.Arg(list, i)) == symIdx {
			return i, true
		}
	}
	return 0, false
}

// elementwiseAssignment handles the two shapes spec.md §4.6/§4.9
// describe: `id[i] = expr` and `id[i,j] = expr`, where an index that is
// a plain identifier ranges over every position on that axis (the
// matching resolve-side OP_EWISE_INDEX symbol) and any other index
// expression addresses a single fixed position.
func (in *Interpreter) elementwiseAssignment(pn parsetree.ParseNode, f *execFrame) {
	lhs := in.tree.Arg(pn, 0)
	rhs := in.tree.Arg(pn, 1)
	target := in.addr(in.tree.Arg(lhs, 0), f)
	if target == nil || target.Kind != KindMatrix || target.Mat == nil {
		in.raise(codeerr.CodeTypeMismatch, pn)
		return
	}
	rows, cols := target.Mat.Dims()

	switch in.tree.NumArgs(lhs) - 1 {
	case 1:
		idxNode := in.tree.Arg(lhs, 1)
		if in.tree.Op(idxNode) == parsetree.OpIdentifier {
			idxAddr := in.addr(idxNode, f)
			n := rows * cols
			for k := 0; k < n && !in.failed(); k++ {
				*idxAddr = numberValue(float64(k))
				v := in.expr(rhs, f)
				r, c := k/cols, k%cols
				if rows == 1 || cols == 1 {
					r, c = 0, k
					if cols == 1 {
						r, c = k, 0
					}
				}
				target.Mat.Set(r, c, v.Num)
			}
			return
		}
		k := int(in.expr(idxNode, f).Num)
		v := in.expr(rhs, f)
		r, c := 0, k
		if cols == 1 {
			r, c = k, 0
		}
		target.Mat.Set(r, c, v.Num)
	case 2:
		rNode, cNode := in.tree.Arg(lhs, 1), in.tree.Arg(lhs, 2)
		rIsVar := in.tree.Op(rNode) == parsetree.OpIdentifier
		cIsVar := in.tree.Op(cNode) == parsetree.OpIdentifier
		var rAddr, cAddr *Value
		rLo, rHi, cLo, cHi := 0, 1, 0, 1
		if rIsVar {
			rAddr, rHi = in.addr(rNode, f), rows
		} else {
			rLo = int(in.expr(rNode, f).Num)
			rHi = rLo + 1
		}
		if cIsVar {
			cAddr, cHi = in.addr(cNode, f), cols
		} else {
			cLo = int(in.expr(cNode, f).Num)
			cHi = cLo + 1
		}
		for r := rLo; r < rHi && !in.failed(); r++ {
			if rIsVar {
				*rAddr = numberValue(float64(r))
			}
			for c := cLo; c < cHi && !in.failed(); c++ {
				if cIsVar {
					*cAddr = numberValue(float64(c))
				}
				target.Mat.Set(r, c, in.expr(rhs, f).Num)
			}
		}
	}
}

// --- expressions ---

func (in *Interpreter) expr(pn parsetree.ParseNode, f *execFrame) Value {
	if pn == parsetree.Null || in.failed() {
		return Value{}
	}
	switch in.tree.Op(pn) {
	case parsetree.OpNumber:
		return numberValue(in.tree.Double(pn))
	case parsetree.OpString:
		return stringValue(in.stringLiteral(pn))
	case parsetree.OpTrue:
		return boolValue(true)
	case parsetree.OpFalse:
		return boolValue(false)
	case parsetree.OpInfinity:
		return numberValue(math.Inf(1))
	case parsetree.OpPredefinedConst:
		return numberValue(predefinedConst(in.text(pn)))
	case parsetree.OpReadGlobal:
		return in.globals[in.tree.Flag(pn)]
	case parsetree.OpReadStack:
		return f.locals[in.tree.Flag(pn)]
	case parsetree.OpReadUpvalue:
		return *f.upvalues[in.tree.Flag(pn)]
	case parsetree.OpIdentifier:
		if addr := in.addr(pn, f); addr != nil {
			return *addr
		}
		return Value{}
	case parsetree.OpList, parsetree.OpMatrix:
		return in.matrixLiteral(pn, f)
	case parsetree.OpCases:
		return in.casesExpr(pn, f)
	case parsetree.OpAdd:
		return in.elementwise(pn, f, func(a, b float64) float64 { return a + b })
	case parsetree.OpSubtract:
		return in.elementwise(pn, f, func(a, b float64) float64 { return a - b })
	case parsetree.OpHadamard:
		return in.elementwise(pn, f, func(a, b float64) float64 { return a * b })
	case parsetree.OpMultiply, parsetree.OpImplicitMultiply:
		return in.multiply(pn, f)
	case parsetree.OpDivide:
		return in.elementwiseChecked(pn, f, func(a, b float64) (float64, bool) {
			if b == 0 {
				return 0, false
			}
			return a / b, true
		}, codeerr.CodeDivByZero)
	case parsetree.OpBackslash:
		return in.linearSolve(pn, f)
	case parsetree.OpModulus:
		return in.elementwise(pn, f, math.Mod)
	case parsetree.OpNegate:
		v := in.expr(in.tree.Arg(pn, 0), f)
		return in.unaryNumeric(v, func(x float64) float64 { return -x })
	case parsetree.OpNot:
		v := in.expr(in.tree.Arg(pn, 0), f)
		return boolValue(!truthy(v))
	case parsetree.OpFactorial:
		return in.factorial(pn, f)
	case parsetree.OpPower:
		return in.power(pn, f)
	case parsetree.OpTranspose, parsetree.OpHermitian:
		v := in.expr(in.tree.Arg(pn, 0), f)
		return in.transpose(v)
	case parsetree.OpInvert:
		return in.invert(pn, f)
	case parsetree.OpPseudoInverse:
		return in.invert(pn, f)
	case parsetree.OpNormSquared:
		v := in.expr(in.tree.Arg(pn, 0), f)
		n := vectorNorm(v, 2)
		return numberValue(n * n)
	case parsetree.OpLinearSolve:
		return in.linearSolve(pn, f)
	case parsetree.OpLess:
		return in.compare(pn, f, false)
	case parsetree.OpGreater:
		return in.compare(pn, f, true)
	case parsetree.OpEqual:
		a := in.expr(in.tree.Arg(pn, 0), f)
		b := in.expr(in.tree.Arg(pn, 1), f)
		return boolValue(valuesEqual(a, b))
	case parsetree.OpApprox:
		a := in.expr(in.tree.Arg(pn, 0), f)
		b := in.expr(in.tree.Arg(pn, 1), f)
		return boolValue(approxEqual(a.Num, b.Num))
	case parsetree.OpLogicalAnd:
		a := in.expr(in.tree.Arg(pn, 0), f)
		if !truthy(a) {
			return boolValue(false)
		}
		return boolValue(truthy(in.expr(in.tree.Arg(pn, 1), f)))
	case parsetree.OpLogicalOr:
		a := in.expr(in.tree.Arg(pn, 0), f)
		if truthy(a) {
			return boolValue(true)
		}
		return boolValue(truthy(in.expr(in.tree.Arg(pn, 1), f)))
	case parsetree.OpNorm:
		return numberValue(vectorNorm(in.expr(in.tree.Arg(pn, 0), f), 2))
	case parsetree.OpAbs:
		v := in.expr(in.tree.Arg(pn, 0), f)
		return in.unaryNumeric(v, math.Abs)
	case parsetree.OpCeil:
		v := in.expr(in.tree.Arg(pn, 0), f)
		return in.unaryNumeric(v, math.Ceil)
	case parsetree.OpFloor:
		v := in.expr(in.tree.Arg(pn, 0), f)
		return in.unaryNumeric(v, math.Floor)
	case parsetree.OpSqrt:
		v := in.expr(in.tree.Arg(pn, 0), f)
		return in.unaryNumeric(v, math.Sqrt)
	case parsetree.OpNthRoot:
		n := in.expr(in.tree.Arg(pn, 0), f)
		v := in.expr(in.tree.Arg(pn, 1), f)
		return numberValue(math.Pow(v.Num, 1/n.Num))
	case parsetree.OpSubscriptAccess, parsetree.OpSuperscriptAccess:
		return in.subscriptAccess(pn, f)
	case parsetree.OpCall:
		return in.call(pn, f)
	case parsetree.OpSin:
		return in.keywordFunc(pn, f, math.Sin)
	case parsetree.OpCos:
		return in.keywordFunc(pn, f, math.Cos)
	case parsetree.OpTan:
		return in.keywordFunc(pn, f, math.Tan)
	case parsetree.OpArcsin:
		return in.keywordFunc(pn, f, math.Asin)
	case parsetree.OpArccos:
		return in.keywordFunc(pn, f, math.Acos)
	case parsetree.OpArctan:
		return in.keywordFunc(pn, f, math.Atan)
	case parsetree.OpSinh:
		return in.keywordFunc(pn, f, math.Sinh)
	case parsetree.OpCosh:
		return in.keywordFunc(pn, f, math.Cosh)
	case parsetree.OpTanh:
		return in.keywordFunc(pn, f, math.Tanh)
	case parsetree.OpSgn:
		return in.keywordFunc(pn, f, func(x float64) float64 {
			switch {
			case x > 0:
				return 1
			case x < 0:
				return -1
			default:
				return 0
			}
		})
	case parsetree.OpLog:
		return in.keywordFunc(pn, f, math.Log)
	case parsetree.OpExp:
		return in.keywordFunc(pn, f, math.Exp)
	case parsetree.OpErf:
		return in.keywordFunc(pn, f, math.Erf)
	case parsetree.OpErfc:
		return in.keywordFunc(pn, f, math.Erfc)
	case parsetree.OpLength:
		v := in.expr(in.tree.Arg(pn, 0), f)
		if v.Kind == KindMatrix {
			r, c := v.Mat.Dims()
			return numberValue(float64(r * c))
		}
		return numberValue(1)
	case parsetree.OpRows:
		v := in.expr(in.tree.Arg(pn, 0), f)
		if v.Kind == KindMatrix {
			r, _ := v.Mat.Dims()
			return numberValue(float64(r))
		}
		return numberValue(1)
	case parsetree.OpCols:
		v := in.expr(in.tree.Arg(pn, 0), f)
		if v.Kind == KindMatrix {
			_, c := v.Mat.Dims()
			return numberValue(float64(c))
		}
		return numberValue(1)
	case parsetree.OpEmptySet, parsetree.OpZero:
		return numberValue(0)
	case parsetree.OpOne:
		return numberValue(1)
	default:
		// The remaining ~25 constructs spec.md §4.9 enumerates (unit
		// vectors, identity/ones/zero matrices beyond the scalar cases
		// above, cross/dot/outer/hat/vee, Kronecker/compose/dual,
		// gradient/divergence/curl, set operators, fraction/binomial,
		// limit/definite-integral/derivative, big-sum/big-prod, accent,
		// scope access) are accepted by the parser/resolver/static pass
		// but not executable here yet; see DESIGN.md's interp entry for
		// the accepted gap. Raising rather than silently returning a
		// zero value keeps a caller from mistaking "unsupported" for
		// "computed to zero".
		in.raise(codeerr.CodeRuntimeFailure, pn)
		return Value{}
	}
}

func predefinedConst(name string) float64 {
	switch name {
	case "π", "pi":
		return math.Pi
	case "e":
		return math.E
	case "φ", "phi":
		return 1.618033988749895
	default:
		return 0
	}
}

func (in *Interpreter) unaryNumeric(v Value, fn func(float64) float64) Value {
	if v.Kind == KindMatrix {
		rows, cols := v.Mat.Dims()
		out := mat.NewDense(rows, cols, nil)
		out.Apply(func(i, j int, x float64) float64 { return fn(x) }, v.Mat)
		return matrixValue(out)
	}
	return numberValue(fn(v.Num))
}

func (in *Interpreter) keywordFunc(pn parsetree.ParseNode, f *execFrame, fn func(float64) float64) Value {
	return in.unaryNumeric(in.expr(in.tree.Arg(pn, 0), f), fn)
}

func (in *Interpreter) elementwise(pn parsetree.ParseNode, f *execFrame, fn func(a, b float64) float64) Value {
	a := in.expr(in.tree.Arg(pn, 0), f)
	b := in.expr(in.tree.Arg(pn, 1), f)
	return in.elementwiseValues(pn, a, b, fn)
}

func (in *Interpreter) elementwiseValues(pn parsetree.ParseNode, a, b Value, fn func(a, b float64) float64) Value {
	if a.Kind != KindMatrix && b.Kind != KindMatrix {
		return numberValue(fn(a.Num, b.Num))
	}
	am, bm := a, b
	if am.Kind != KindMatrix {
		am = broadcastScalar(am.Num, bm.Mat)
	}
	if bm.Kind != KindMatrix {
		bm = broadcastScalar(bm.Num, am.Mat)
	}
	r1, c1 := am.Mat.Dims()
	r2, c2 := bm.Mat.Dims()
	if r1 != r2 || c1 != c2 {
		in.raise(codeerr.CodeDimMismatch, pn)
		return Value{}
	}
	out := mat.NewDense(r1, c1, nil)
	for r := 0; r < r1; r++ {
		for c := 0; c < c1; c++ {
			out.Set(r, c, fn(am.Mat.At(r, c), bm.Mat.At(r, c)))
		}
	}
	return matrixValue(out)
}

func broadcastScalar(v float64, shape *mat.Dense) Value {
	r, c := shape.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(i, j int, _ float64) float64 { return v }, shape)
	return matrixValue(out)
}

func (in *Interpreter) elementwiseChecked(pn parsetree.ParseNode, f *execFrame, fn func(a, b float64) (float64, bool), failCode codeerr.Code) Value {
	a := in.expr(in.tree.Arg(pn, 0), f)
	b := in.expr(in.tree.Arg(pn, 1), f)
	if a.Kind != KindMatrix && b.Kind != KindMatrix {
		r, ok := fn(a.Num, b.Num)
		if !ok {
			in.raise(failCode, pn)
			return Value{}
		}
		return numberValue(r)
	}
	ok := true
	result := in.elementwiseValues(pn, a, b, func(x, y float64) float64 {
		r, valid := fn(x, y)
		if !valid {
			ok = false
		}
		return r
	})
	if !ok {
		in.raise(failCode, pn)
		return Value{}
	}
	return result
}

func (in *Interpreter) multiply(pn parsetree.ParseNode, f *execFrame) Value {
	a := in.expr(in.tree.Arg(pn, 0), f)
	b := in.expr(in.tree.Arg(pn, 1), f)
	if a.Kind == KindMatrix && b.Kind == KindMatrix {
		_, ac := a.Mat.Dims()
		br, _ := b.Mat.Dims()
		if ac != br {
			in.raise(codeerr.CodeDimMismatch, pn)
			return Value{}
		}
		var product mat.Dense
		product.Mul(a.Mat, b.Mat)
		return matrixValue(&product)
	}
	return in.elementwiseValues(pn, a, b, func(x, y float64) float64 { return x * y })
}

func (in *Interpreter) linearSolve(pn parsetree.ParseNode, f *execFrame) Value {
	a := in.expr(in.tree.Arg(pn, 0), f)
	b := in.expr(in.tree.Arg(pn, 1), f)
	if a.Kind != KindMatrix || b.Kind != KindMatrix {
		in.raise(codeerr.CodeTypeMismatch, pn)
		return Value{}
	}
	var x mat.Dense
	if err := x.Solve(a.Mat, b.Mat); err != nil {
		in.raise(codeerr.CodeRuntimeFailure, pn)
		return Value{}
	}
	return matrixValue(&x)
}

func (in *Interpreter) invert(pn parsetree.ParseNode, f *execFrame) Value {
	v := in.expr(in.tree.Arg(pn, 0), f)
	if v.Kind != KindMatrix {
		in.raise(codeerr.CodeNotAMatrix, pn)
		return Value{}
	}
	var inv mat.Dense
	if err := inv.Inverse(v.Mat); err != nil {
		in.raise(codeerr.CodeRuntimeFailure, pn)
		return Value{}
	}
	return matrixValue(&inv)
}

func (in *Interpreter) transpose(v Value) Value {
	if v.Kind != KindMatrix {
		return v
	}
	var t mat.Dense
	t.CloneFrom(v.Mat.T())
	return matrixValue(&t)
}

func vectorNorm(v Value, p float64) float64 {
	if v.Kind != KindMatrix {
		return math.Abs(v.Num)
	}
	rows, cols := v.Mat.Dims()
	sum := 0.0
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			sum += math.Pow(math.Abs(v.Mat.At(r, c)), p)
		}
	}
	return math.Pow(sum, 1/p)
}

func (in *Interpreter) compare(pn parsetree.ParseNode, f *execFrame, greater bool) Value {
	// N-ary chained comparison (a < b ≤ c ...): the chain holds when
	// every adjacent pair does. Bit i-1 of the node's Flag marks the
	// i-th step as inclusive (≤/≥), otherwise the step is strict.
	mask := in.tree.Flag(pn)
	prev := in.expr(in.tree.Arg(pn, 0), f)
	for i := 1; i < in.tree.NumArgs(pn); i++ {
		next := in.expr(in.tree.Arg(pn, i), f)
		a, b := prev.Num, next.Num
		if greater {
			a, b = b, a
		}
		if !(a < b || (a == b && mask&(1<<(i-1)) != 0)) {
			return boolValue(false)
		}
		prev = next
	}
	return boolValue(true)
}

func (in *Interpreter) factorial(pn parsetree.ParseNode, f *execFrame) Value {
	v := in.expr(in.tree.Arg(pn, 0), f)
	n := v.Num
	if n != math.Trunc(n) || n < 0 || n > 20 {
		in.raise(codeerr.CodeRuntimeFailure, pn)
		return Value{}
	}
	result := 1.0
	for i := 2.0; i <= n; i++ {
		result *= i
	}
	return numberValue(result)
}

func (in *Interpreter) power(pn parsetree.ParseNode, f *execFrame) Value {
	a := in.expr(in.tree.Arg(pn, 0), f)
	b := in.expr(in.tree.Arg(pn, 1), f)
	if a.Kind == KindMatrix {
		n := int(b.Num)
		rows, cols := a.Mat.Dims()
		out := mat.NewDense(rows, cols, nil)
		for r := 0; r < rows; r++ {
			out.Set(r, r, 1)
		}
		for i := 0; i < n; i++ {
			var next mat.Dense
			next.Mul(out, a.Mat)
			out = &next
		}
		return matrixValue(out)
	}
	return numberValue(math.Pow(a.Num, b.Num))
}

func (in *Interpreter) matrixLiteral(pn parsetree.ParseNode, f *execFrame) Value {
	rows, cols := in.tree.Rows(pn), in.tree.Cols(pn)
	if rows == 0 {
		rows = 1
	}
	if cols == 0 {
		cols = in.tree.NumArgs(pn)
	}
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < in.tree.NumArgs(pn); i++ {
		v := in.expr(in.tree.Arg(pn, i), f)
		r, c := i/cols, i%cols
		out.Set(r, c, v.Num)
	}
	return matrixValue(out)
}

func (in *Interpreter) casesExpr(pn parsetree.ParseNode, f *execFrame) Value {
	n := in.tree.NumArgs(pn)
	i := 0
	for i+1 < n {
		v := in.expr(in.tree.Arg(pn, i), f)
		cond := in.expr(in.tree.Arg(pn, i+1), f)
		if truthy(cond) {
			return v
		}
		i += 2
	}
	if i < n {
		return in.expr(in.tree.Arg(pn, i), f)
	}
	return Value{}
}

// subscriptAccess reads a single 1-based scalar or row/column pair out
// of a matrix (spec.md §4.9's subscript-read, narrowed to the integer-
// index case — slices with a step are an accepted gap, see DESIGN.md).
func (in *Interpreter) subscriptAccess(pn parsetree.ParseNode, f *execFrame) Value {
	base := in.expr(in.tree.Arg(pn, 0), f)
	if base.Kind != KindMatrix {
		in.raise(codeerr.CodeNotAMatrix, pn)
		return Value{}
	}
	rows, cols := base.Mat.Dims()
	switch in.tree.NumArgs(pn) - 1 {
	case 1:
		idx := int(in.expr(in.tree.Arg(pn, 1), f).Num) - 1
		if idx < 0 || idx >= rows*cols {
			in.raise(codeerr.CodeIndexOutOfRange, pn)
			return Value{}
		}
		if rows == 1 {
			return numberValue(base.Mat.At(0, idx))
		}
		return numberValue(base.Mat.At(idx, 0))
	case 2:
		r := int(in.expr(in.tree.Arg(pn, 1), f).Num) - 1
		c := int(in.expr(in.tree.Arg(pn, 2), f).Num) - 1
		if r < 0 || r >= rows || c < 0 || c >= cols {
			in.raise(codeerr.CodeIndexOutOfRange, pn)
			return Value{}
		}
		return numberValue(base.Mat.At(r, c))
	default:
		in.raise(codeerr.CodeRuntimeFailure, pn)
		return Value{}
	}
}

// call dispatches an OpCall against an Algorithm Value (spec.md §4.9's
// "function call (dispatch on Lambda or Algorithm ...)" — no separate
// Lambda value kind exists here, see DESIGN.md's accepted gap).
func (in *Interpreter) call(pn parsetree.ParseNode, f *execFrame) Value {
	callee := in.expr(in.tree.Arg(pn, 0), f)
	if callee.Kind != KindAlgorithm || callee.Algo == nil {
		in.raise(codeerr.CodeNotCallableRuntime, pn)
		return Value{}
	}
	args := make([]Value, in.tree.NumArgs(pn)-1)
	for i := range args {
		args[i] = in.expr(in.tree.Arg(pn, i+1), f)
	}
	return in.invoke(callee.Algo, args, pn)
}

// invoke runs closure's body in a fresh frame, param-binds args
// positionally into the frame's stack slots 0..n-1 (the order
// linker.Linker.algorithm declared them in), and returns the value of
// the first RETURN statement reached, or a Void Value if the algorithm
// falls off the end of its body.
func (in *Interpreter) invoke(closure *Closure, args []Value, callSite parsetree.ParseNode) Value {
	decl := closure.Decl
	frameSize := in.tree.Rows(decl)
	callee := &execFrame{algo: decl, locals: make([]Value, frameSize), upvalues: closure.Upvalues}

	paramList := in.tree.Arg(decl, 1)
	n := in.tree.NumArgs(paramList)
	for i := 0; i < n; i++ {
		param := in.tree.Arg(paramList, i)
		name := param
		var defExpr parsetree.ParseNode = parsetree.Null
		if in.tree.Op(param) == parsetree.OpList {
			name = in.tree.Arg(param, 0)
			defExpr = in.tree.Arg(param, 1)
		}
		idx := in.tree.SymbolIndex(name)
		if idx < 0 {
			continue
		}
		sym := in.table.Symbols[idx]
		if sym.SlotKind != symtab.SlotStack {
			continue
		}
		if i < len(args) {
			callee.locals[sym.Slot] = args[i]
		} else if defExpr != parsetree.Null {
			callee.locals[sym.Slot] = in.expr(defExpr, callee)
		}
	}

	in.stmt(in.tree.Arg(decl, 3), callee)

	if in.Status() == StatusReturn {
		in.setStatus(StatusNormal)
		return in.returnValue
	}
	return Value{Kind: KindVoid}
}
