// Package lexgrammar describes the scanner's keyword and operator
// vocabulary as data, the way the teacher's tooling/grammar package
// describes a lexical grammar as a list of named token definitions
// instead of hand-written if/else chains.
//
// Unlike the teacher's character-range grammar (built for an
// alphanumeric toy language), every entry here is a literal rune
// sequence: the math language's keywords and multi-character operator
// glyphs are closed, fixed sets, so a LexicalGrammar here is simply the
// set of literal strings internal/automata compiles into a trie-shaped
// DFA for longest-match recognition.
package lexgrammar

import "github.com/shadowCow/mathdoc/token"

// TokenDefinition names one literal lexeme and the token.Kind it
// produces when matched.
type TokenDefinition struct {
	Name    string
	Literal string
	Kind    token.Kind
}

// LexicalGrammar is an ordered list of literal definitions. Order only
// matters for diagnostics; the automata package resolves overlapping
// literals (e.g. "<" vs "<=") by longest match, not by list order.
type LexicalGrammar struct {
	Definitions []TokenDefinition
}

// NewGrammar builds a LexicalGrammar from the given definitions.
func NewGrammar(defs ...TokenDefinition) *LexicalGrammar {
	return &LexicalGrammar{Definitions: defs}
}

// Operators is the math language's multi-character operator and
// delimiter vocabulary (spec.md §4.5), recognized by longest match
// ahead of single-character fallback scanning.
var Operators = NewGrammar(
	TokenDefinition{"walrus-assign", ":=", token.WalrusAssign},
	TokenDefinition{"arrow-assign", "←", token.ArrowAssign},
	TokenDefinition{"assign", "=", token.Assign},
	TokenDefinition{"less-eq", "≤", token.LessEq},
	TokenDefinition{"greater-eq", "≥", token.GreaterEq},
	TokenDefinition{"less", "<", token.Less},
	TokenDefinition{"greater", ">", token.Greater},
	TokenDefinition{"approx", "≈", token.Approx},
	TokenDefinition{"element-of", "∈", token.ElementOf},
	TokenDefinition{"subset-eq", "⊆", token.SubsetEq},
	TokenDefinition{"subset", "⊂", token.Subset},
	TokenDefinition{"union", "∪", token.Union},
	TokenDefinition{"intersect", "∩", token.Intersect},
	TokenDefinition{"plus", "+", token.Plus},
	TokenDefinition{"minus", "−", token.Minus},
	TokenDefinition{"minus-ascii", "-", token.Minus},
	TokenDefinition{"cdot", "·", token.Star},
	TokenDefinition{"star-ascii", "*", token.Star},
	TokenDefinition{"slash", "/", token.Slash},
	TokenDefinition{"backslash", "\\", token.Backslash},
	TokenDefinition{"percent", "%", token.Percent},
	TokenDefinition{"cross", "×", token.Cross},
	TokenDefinition{"kron", "⊗", token.Kron},
	TokenDefinition{"hadamard", "⊙", token.Hadamard},
	TokenDefinition{"compose", "∘", token.Compose},
	TokenDefinition{"bang", "!", token.Bang},
	TokenDefinition{"caret", "^", token.Caret},
	TokenDefinition{"hash", "#", token.Hash},
	TokenDefinition{"nabla", "∇", token.Nabla},
	TokenDefinition{"not", "¬", token.Not},
	TokenDefinition{"or", "∨", token.LogicalOr},
	TokenDefinition{"and", "∧", token.LogicalAnd},
	TokenDefinition{"comma", ",", token.Comma},
	TokenDefinition{"semicolon", ";", token.Semicolon},
	TokenDefinition{"colon", ":", token.Colon},
	TokenDefinition{"dot", ".", token.Dot},
	TokenDefinition{"lparen", "(", token.LParen},
	TokenDefinition{"rparen", ")", token.RParen},
	TokenDefinition{"lbrace", "{", token.LBrace},
	TokenDefinition{"rbrace", "}", token.RBrace},
	TokenDefinition{"lbracket-dbl", "⟦", token.DBracket},
	TokenDefinition{"rbracket-dbl", "⟧", token.DBracket},
	TokenDefinition{"lbracket", "[", token.LBracket},
	TokenDefinition{"rbracket", "]", token.RBracket},
	TokenDefinition{"ceil-l", "⌈", token.Ceil},
	TokenDefinition{"ceil-r", "⌉", token.Ceil},
	TokenDefinition{"floor-l", "⌊", token.Floor},
	TokenDefinition{"floor-r", "⌋", token.Floor},
	TokenDefinition{"dpipe", "‖", token.DPipe},
	TokenDefinition{"pipe", "|", token.Pipe},
	TokenDefinition{"bra", "⟨", token.Bra},
	TokenDefinition{"ket", "⟩", token.Ket},
)
