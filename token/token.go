// Package token defines the lexical token vocabulary produced by the
// scanner (spec.md §3, §4.3). A Token pairs a Kind with the Selection it
// spans; construct-entry tokens additionally carry structural parameters
// (e.g. matrix rows×cols) via Rows/Cols.
//
// Grounded on original_source/src/forscape_token.h (the {selection, type}
// token shape) and the keyword/operator/construct vocabulary described in
// spec.md §4.3/§4.5.
package token

import "github.com/shadowCow/mathdoc/selection"

// Kind enumerates every token the scanner can emit.
type Kind int

const (
	Illegal Kind = iota
	EndOfFile
	ScannerError
	Newline

	// Literals
	Number
	String
	Identifier

	// Keywords
	KwIf
	KwElse
	KwWhile
	KwFor
	KwSwitch
	KwCase
	KwDefault
	KwPrint
	KwAssert
	KwAlgorithm
	KwReturn
	KwPlot
	KwImport
	KwFrom
	KwAs
	KwNamespace
	KwClass
	KwUnknown
	KwTrue
	KwFalse

	// Operators / punctuation
	Assign       // =
	ArrowAssign  // ←
	WalrusAssign // :=
	Plus
	Minus
	Star    // ·
	Slash   // /
	Backslash
	Percent
	Cross   // ×
	Kron    // ⊗
	Hadamard // ⊙
	Compose // ∘
	Bang    // !
	Caret   // ^
	Hash    // #
	Nabla   // ∇
	Not     // ¬
	LogicalOr
	LogicalAnd
	Less
	LessEq
	Greater
	GreaterEq
	Equal
	Approx
	ElementOf
	SubsetEq
	Subset
	NotEqual
	Union
	Intersect
	Dot
	Comma
	Semicolon
	Colon

	// Delimiters
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket
	Ceil
	Floor
	Pipe    // |
	DPipe   // ‖
	Bra     // ⟨
	Ket     // ⟩
	DBracket // ⟦⟧

	// Construct entries (one synthetic token per construct kind)
	ConstructFraction
	ConstructBinomial
	ConstructSqrt
	ConstructNthRoot
	ConstructMatrix
	ConstructCases
	ConstructLim
	ConstructIntegral
	ConstructBigSum
	ConstructBigProd
	ConstructAccent
	ConstructSettings
	ArgClose

	// Keyword functions (sin, cos, log, ...)
	KwFunc
)

// Token is one lexical unit: its kind, the selection it spans, and for
// construct-entry tokens, structural parameters captured in the
// selection's originating markers (Rows/Cols for matrices, NumArgs for
// generic n-ary constructs).
type Token struct {
	Kind Kind
	Sel  selection.Selection

	// Text is the token's literal source text: the identifier name, the
	// numeric/string literal body, or (for KwFunc) the recognized
	// function name.
	Text string

	Rows    int
	Cols    int
	NumArgs int
}

// Keywords maps every reserved word to its Kind. The scanner consults
// this after recognizing an identifier-shaped run of characters.
var Keywords = map[string]Kind{
	"if":        KwIf,
	"else":      KwElse,
	"while":     KwWhile,
	"for":       KwFor,
	"switch":    KwSwitch,
	"case":      KwCase,
	"default":   KwDefault,
	"print":     KwPrint,
	"assert":    KwAssert,
	"algorithm": KwAlgorithm,
	"return":    KwReturn,
	"plot":      KwPlot,
	"import":    KwImport,
	"from":      KwFrom,
	"as":        KwAs,
	"namespace": KwNamespace,
	"class":     KwClass,
	"unknown":   KwUnknown,
	"true":      KwTrue,
	"false":     KwFalse,
}

// KeywordFuncs is the closed set of keyword functions recognized as
// primaries (spec.md §4.5): sin, arcsin, sinh, ..., sgn, length, rows,
// cols, log, exp, erf, erfc.
var KeywordFuncs = map[string]bool{
	"sin": true, "cos": true, "tan": true,
	"arcsin": true, "arccos": true, "arctan": true,
	"sinh": true, "cosh": true, "tanh": true,
	"sgn": true, "length": true, "rows": true, "cols": true,
	"log": true, "exp": true, "erf": true, "erfc": true,
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "UNKNOWN"
}

var kindNames = map[Kind]string{
	Illegal:      "ILLEGAL",
	EndOfFile:    "ENDOFFILE",
	ScannerError: "SCANNER_ERROR",
	Newline:      "NEWLINE",
	Number:       "NUMBER",
	String:       "STRING",
	Identifier:   "IDENTIFIER",
	ArgClose:     "ARGCLOSE",
}
