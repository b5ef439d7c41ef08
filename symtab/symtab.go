// Package symtab holds the data structures the symbol-lexical pass
// (package resolve) populates and the static pass/linker/interpreter
// consume: Symbol, SymbolUsage, ScopeSegment, and the owning Table
// (spec.md §3).
//
// Grounded on original_source/src/forscape_symbol_table.h.
package symtab

import (
	"github.com/shadowCow/mathdoc/parsetree"
	"github.com/shadowCow/mathdoc/selection"
)

// SlotKind distinguishes where a linked symbol's storage lives.
type SlotKind int

const (
	SlotUnassigned SlotKind = iota
	SlotStack
	SlotGlobal
	SlotUpvalue
)

// Symbol is one declared name (spec.md §3). Flag holds the declaring
// parse node of a namespace symbol, set by resolve; it stays 0 for
// other symbols. The linker records a symbol's storage location in
// SlotKind and Slot, not in Flag.
type Symbol struct {
	DeclarationLexicalDepth int
	DeclarationClosureDepth int
	Flag                    int
	Type                    int
	Rows, Cols              int
	Comment                 string

	ShadowedIndex         int // -1 if none
	LastUsageIndex        int // -1 if none
	PreviousNamespaceIndex int // -1 if none

	IsConst           bool
	IsUsed            bool
	IsReassigned      bool
	IsClosureNested   bool
	IsEwiseIndex      bool
	IsCapturedByValue bool
	TiedToFile        bool
	IsPrototype       bool

	SlotKind SlotKind
	Slot     int

	DeclaringNode parsetree.ParseNode
}

// NewSymbol builds a Symbol with index sentinels initialised to "none".
func NewSymbol(declNode parsetree.ParseNode, lexicalDepth, closureDepth int) Symbol {
	return Symbol{
		DeclarationLexicalDepth: lexicalDepth,
		DeclarationClosureDepth: closureDepth,
		ShadowedIndex:           -1,
		LastUsageIndex:          -1,
		PreviousNamespaceIndex:  -1,
		DeclaringNode:           declNode,
	}
}

// Usage is one occurrence of a symbol (spec.md §3): usages for a given
// symbol form a singly-linked list from most recent to first
// (declaration) via PrevUsageIndex.
type Usage struct {
	Selection     selection.Selection
	PrevUsageIndex int // -1 if this is the first (declaring) usage
	SymbolIndex   int
	ParseNode     parsetree.ParseNode
}

// ScopeSegment is a half-open span of symbols belonging to one
// contiguous region of one lexical scope (spec.md §3).
type ScopeSegment struct {
	FirstSymIndex int

	PrevLexicalSegment   int // -1 if none
	ParentLexicalSegment int // -1 if none
	PrevNamespaceSegment int // -1 if none

	UsageBegin, UsageEnd int

	Fn parsetree.ParseNode // enclosing closure node, or parsetree.Null

	StartOfSelection selection.Marker
	IsEndOfScope     bool
}

// Table owns the vectors of Symbols, ScopeSegments, and Usages built by
// resolve. ByDeclaration maps a declaring parse node back to its symbol
// index, the pointer-stable replacement for resolve's transient
// selection→symbol-index lexical map once resolution finishes (spec.md
// §4.6, "Finalisation converts ... the lexical map to pointer-stable
// references").
type Table struct {
	Symbols  []Symbol
	Segments []ScopeSegment
	Usages   []Usage

	ByDeclaration map[parsetree.ParseNode]int

	// ScopedVars persists (namespace-symbol, selection) → symbol index
	// for cross-namespace access after the namespace's own scope has
	// closed (spec.md §4.6: "scoped-var map").
	ScopedVars map[ScopedVarKey]int
}

// ScopedVarKey identifies a member access into a previously-closed
// namespace or module.
type ScopedVarKey struct {
	NamespaceSymbol int
	Sel             selection.Selection
}

// NewTable creates an empty Table.
func NewTable() *Table {
	return &Table{
		ByDeclaration: map[parsetree.ParseNode]int{},
		ScopedVars:    map[ScopedVarKey]int{},
	}
}

// AddSymbol appends sym and returns its index.
func (t *Table) AddSymbol(sym Symbol) int {
	idx := len(t.Symbols)
	t.Symbols = append(t.Symbols, sym)
	t.ByDeclaration[sym.DeclaringNode] = idx
	return idx
}

// AddUsage appends u, threading it onto symIdx's usage list, and returns
// the new usage's index.
func (t *Table) AddUsage(symIdx int, sel selection.Selection, pn parsetree.ParseNode) int {
	prev := t.Symbols[symIdx].LastUsageIndex
	idx := len(t.Usages)
	t.Usages = append(t.Usages, Usage{Selection: sel, PrevUsageIndex: prev, SymbolIndex: symIdx, ParseNode: pn})
	t.Symbols[symIdx].LastUsageIndex = idx
	t.Symbols[symIdx].IsUsed = true
	return idx
}

// AddSegment appends seg and returns its index.
func (t *Table) AddSegment(seg ScopeSegment) int {
	idx := len(t.Segments)
	t.Segments = append(t.Segments, seg)
	return idx
}

// UsagesOf walks symIdx's usage list from most recent to first,
// invoking fn for each.
func (t *Table) UsagesOf(symIdx int, fn func(Usage)) {
	u := t.Symbols[symIdx].LastUsageIndex
	for u != -1 {
		fn(t.Usages[u])
		u = t.Usages[u].PrevUsageIndex
	}
}
