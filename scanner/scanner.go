// Package scanner implements the lexical scanner of spec.md §4.3: it
// drives a read cursor over a model.Model's lines, emitting a token
// stream including synthetic tokens for construct boundaries.
//
// Grounded on spec.md §4.3 for behavior and on the teacher's
// tooling/lexer longest-match scan loop for the ASCII recognition shape
// (peek/advance over a rune cursor, falling back to a compiled DFA for
// multi-character operators). Keyword/operator recognition is compiled
// via internal/lexgrammar + internal/automata. Identifier script-suffix
// and implicit-multiplication partitioning use
// github.com/rivo/uniseg for grapheme-correct iteration.
package scanner

import (
	"strings"
	"unicode"

	"github.com/rivo/uniseg"
	"github.com/shadowCow/mathdoc/codeerr"
	"github.com/shadowCow/mathdoc/internal/automata"
	"github.com/shadowCow/mathdoc/internal/lexgrammar"
	"github.com/shadowCow/mathdoc/model"
	"github.com/shadowCow/mathdoc/selection"
	"github.com/shadowCow/mathdoc/serial"
	"github.com/shadowCow/mathdoc/token"
)

var operatorDFA = automata.Compile(lexgrammar.Operators)

// constructKeywords maps the keyword written between a CONSTRUCT marker
// and its OPEN to the synthetic token emitted for it.
var constructKeywords = map[string]token.Kind{
	"FRAC":     token.ConstructFraction,
	"BINOM":    token.ConstructBinomial,
	"SQRT":     token.ConstructSqrt,
	"NROOT":    token.ConstructNthRoot,
	"SUM":      token.ConstructBigSum,
	"PROD":     token.ConstructBigProd,
	"INT":      token.ConstructIntegral,
	"LIM":      token.ConstructLim,
	"ACCENT":   token.ConstructAccent,
	"SETTINGS": token.ConstructSettings,
}

// Scanner drives the read cursor. Exactly one token is emitted per call
// to Next; after EndOfFile, further calls are illegal (spec.md §4.3).
type Scanner struct {
	doc  model.Model
	errs *codeerr.Stream

	line int
	text []rune
	col  int

	done bool

	// subScanPath, when true, the scanner is inside the filepath
	// sub-scanner entered after import/from (spec.md §4.3).
	subScanPath bool
}

// New creates a Scanner positioned at the start of doc.
func New(doc model.Model) *Scanner {
	s := &Scanner{doc: doc, errs: doc.Errors()}
	s.loadLine(0)
	return s
}

func (s *Scanner) loadLine(i int) {
	s.line = i
	s.col = 0
	if i < s.doc.NumLines() {
		s.text = []rune(s.doc.Line(i))
	} else {
		s.text = nil
	}
}

func (s *Scanner) atEOF() bool {
	return s.line >= s.doc.NumLines()
}

func (s *Scanner) here() selection.Marker {
	return selection.Marker{Line: s.line, Offset: s.col}
}

func (s *Scanner) peek() rune {
	if s.col >= len(s.text) {
		return 0
	}
	return s.text[s.col]
}

func (s *Scanner) peekAt(off int) rune {
	if s.col+off >= len(s.text) {
		return 0
	}
	return s.text[s.col+off]
}

func (s *Scanner) advance() rune {
	r := s.peek()
	s.col++
	return r
}

func (s *Scanner) sel(start selection.Marker) selection.Selection {
	return selection.NewSelection(start, s.here())
}

// Next scans and returns the next token. Calling Next after it has
// returned EndOfFile is illegal, per spec.md §4.3.
func (s *Scanner) Next() token.Token {
	if s.done {
		panic("scanner: Next called after EndOfFile")
	}

	s.skipWhitespace()

	if s.atEOF() {
		s.done = true
		return token.Token{Kind: token.EndOfFile, Sel: selection.Point(s.here())}
	}

	start := s.here()
	r := s.peek()

	switch {
	case r == '\n' || s.col >= len(s.text):
		s.advanceLine()
		return token.Token{Kind: token.Newline, Sel: s.sel(start)}
	case r == serial.Construct:
		return s.scanConstruct(start)
	case r == serial.Close:
		s.advance()
		if s.peek() == serial.Open {
			s.advance()
		}
		return token.Token{Kind: token.ArgClose, Sel: s.sel(start)}
	case r == serial.Open:
		return s.errTok(start, codeerr.CodeMalformedConstruct)
	case r == '"':
		return s.scanString(start)
	case r == '/' && s.peekAt(1) == '/':
		s.skipLineComment()
		return s.Next()
	case unicode.IsDigit(r):
		return s.scanNumber(start)
	case isIdentStart(r):
		return s.scanIdentifierOrKeyword(start)
	default:
		if def, n := operatorDFA.Match(s.text, s.col); def != nil {
			s.col += n
			return token.Token{Kind: def.Kind, Sel: s.sel(start), Text: def.Literal}
		}
		s.advance()
		return s.errTok(start, codeerr.CodeUnrecognizedSymbol)
	}
}

func (s *Scanner) advanceLine() {
	s.loadLine(s.line + 1)
}

// skipWhitespace skips horizontal whitespace on the current line. Lines
// never embed '\n' themselves (Next treats running off the end of a
// line's text as the newline boundary), so this never crosses a line.
func (s *Scanner) skipWhitespace() {
	for s.col < len(s.text) && unicode.IsSpace(s.peek()) {
		s.col++
	}
}

func (s *Scanner) skipLineComment() {
	s.col = len(s.text)
}

func (s *Scanner) errTok(start selection.Marker, code codeerr.Code) token.Token {
	sel := s.sel(start)
	s.errs.Fail(sel, code)
	return token.Token{Kind: token.ScannerError, Sel: sel}
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentCont(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// scanNumber applies the leading-zero rule: a multi-digit integer may
// not start with '0' (spec.md §4.3).
func (s *Scanner) scanNumber(start selection.Marker) token.Token {
	begin := s.col
	leadingZero := s.peek() == '0'
	s.advance()
	for unicode.IsDigit(s.peek()) {
		s.advance()
	}
	intDigits := s.col - begin
	if s.peek() == '.' && unicode.IsDigit(s.peekAt(1)) {
		s.advance()
		for unicode.IsDigit(s.peek()) {
			s.advance()
		}
	}
	text := string(s.text[begin:s.col])
	if leadingZero && intDigits > 1 {
		sel := s.sel(start)
		s.errs.Fail(sel, codeerr.CodeInvalidNumber)
		return token.Token{Kind: token.ScannerError, Sel: sel, Text: text}
	}
	return token.Token{Kind: token.Number, Sel: s.sel(start), Text: text}
}

// scanIdentifierOrKeyword scans an identifier, including a trailing
// suffix of script letters (e.g. subscript unicode letters), then
// resolves keywords via the static map.
func (s *Scanner) scanIdentifierOrKeyword(start selection.Marker) token.Token {
	begin := s.col
	for isIdentCont(s.peek()) {
		s.advance()
	}
	// Script-letter suffix: additional grapheme clusters from the
	// Unicode "letterlike symbols"/combining-script ranges immediately
	// following the base identifier, consumed grapheme-at-a-time so a
	// multi-rune script glyph is not split.
	for s.col < len(s.text) {
		g, _, _, _ := uniseg.FirstGraphemeClusterInString(string(s.text[s.col:]), -1)
		if g == "" || !isScriptSuffix([]rune(g)) {
			break
		}
		s.col += len([]rune(g))
	}
	text := string(s.text[begin:s.col])

	if kind, ok := token.Keywords[text]; ok {
		return token.Token{Kind: kind, Sel: s.sel(start), Text: text}
	}
	if token.KeywordFuncs[text] {
		// log's optional base subscript is a parser concern: the
		// scanner just hands back the bare keyword token.
		return token.Token{Kind: token.KwFunc, Sel: s.sel(start), Text: text}
	}
	return token.Token{Kind: token.Identifier, Sel: s.sel(start), Text: text}
}

// isScriptSuffix reports whether the grapheme cluster g belongs to the
// set of script letters the scanner folds into the preceding
// identifier as a suffix (spec.md §4.3: "identifiers including a suffix
// of script letters").
func isScriptSuffix(g []rune) bool {
	if len(g) == 0 {
		return false
	}
	r := g[0]
	return unicode.Is(unicode.Greek, r)
}

func (s *Scanner) scanString(start selection.Marker) token.Token {
	s.advance() // opening quote
	var b strings.Builder
	for {
		if s.atEOF() || s.col >= len(s.text) {
			sel := s.sel(start)
			s.errs.Fail(sel, codeerr.CodeUnterminatedString)
			return token.Token{Kind: token.ScannerError, Sel: sel, Text: b.String()}
		}
		r := s.advance()
		switch r {
		case '"':
			return token.Token{Kind: token.String, Sel: s.sel(start), Text: b.String()}
		case '\\':
			esc := s.advance()
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case '\\':
				b.WriteByte('\\')
			case '"':
				b.WriteByte('"')
			default:
				b.WriteRune(esc)
			}
		default:
			b.WriteRune(r)
		}
	}
}

// ScanFilepath is the sub-scanner entered after import/from: it selects
// the token span as a filepath up to whitespace (spec.md §4.3).
func (s *Scanner) ScanFilepath() token.Token {
	s.skipInlineWhitespace()
	start := s.here()
	begin := s.col
	for s.col < len(s.text) && !unicode.IsSpace(s.peek()) {
		s.advance()
	}
	return token.Token{Kind: token.String, Sel: s.sel(start), Text: string(s.text[begin:s.col])}
}

func (s *Scanner) skipInlineWhitespace() {
	for s.col < len(s.text) && s.peek() != '\n' && unicode.IsSpace(s.peek()) {
		s.col++
	}
}

// scanConstruct handles a CONSTRUCT marker: either an escaped literal
// character, a matrix/cases header, or a keyword-keyed construct,
// producing the corresponding synthetic token (spec.md §4.1, §4.3).
func (s *Scanner) scanConstruct(start selection.Marker) token.Token {
	s.advance() // CONSTRUCT
	if s.atEOF() {
		return s.errTok(start, codeerr.CodeMalformedConstruct)
	}
	switch s.peek() {
	case serial.Construct, serial.Open, serial.Close:
		// Escaped literal: not structural, return it as a one-rune
		// identifier-ish text token so the parser can fold it into
		// surrounding text if needed.
		r := s.advance()
		return token.Token{Kind: token.Identifier, Sel: s.sel(start), Text: string(r)}
	case '[':
		return s.scanMatrixHeader(start)
	case '{':
		return s.scanCasesHeader(start)
	default:
		begin := s.col
		for s.col < len(s.text) && s.peek() != serial.Open {
			s.advance()
		}
		if s.col >= len(s.text) {
			return s.errTok(start, codeerr.CodeMalformedConstruct)
		}
		keyword := string(s.text[begin:s.col])
		s.advance() // OPEN
		kind, ok := constructKeywords[keyword]
		if !ok {
			return s.errTok(start, codeerr.CodeMalformedConstruct)
		}
		return token.Token{Kind: kind, Sel: s.sel(start), Text: keyword}
	}
}

func (s *Scanner) scanMatrixHeader(start selection.Marker) token.Token {
	s.advance() // '['
	rows, ok := s.scanDim('x')
	if !ok {
		return s.errTok(start, codeerr.CodeMalformedConstruct)
	}
	cols, ok := s.scanDim(']')
	if !ok {
		return s.errTok(start, codeerr.CodeMalformedConstruct)
	}
	if s.peek() != serial.Open {
		return s.errTok(start, codeerr.CodeMalformedConstruct)
	}
	s.advance()
	return token.Token{Kind: token.ConstructMatrix, Sel: s.sel(start), Rows: rows, Cols: cols}
}

func (s *Scanner) scanCasesHeader(start selection.Marker) token.Token {
	s.advance() // '{'
	begin := s.col
	for unicode.IsDigit(s.peek()) {
		s.advance()
	}
	if s.col == begin {
		return s.errTok(start, codeerr.CodeMalformedConstruct)
	}
	rows := atoiRunes(s.text[begin:s.col])
	if s.peek() != serial.Open {
		return s.errTok(start, codeerr.CodeMalformedConstruct)
	}
	s.advance()
	return token.Token{Kind: token.ConstructCases, Sel: s.sel(start), Rows: rows, NumArgs: 2 * rows}
}

func (s *Scanner) scanDim(terminator rune) (int, bool) {
	begin := s.col
	for s.col < len(s.text) && s.peek() != terminator {
		if !unicode.IsDigit(s.peek()) || s.col-begin >= 2 {
			return 0, false
		}
		s.advance()
	}
	if s.col >= len(s.text) || s.col == begin {
		return 0, false
	}
	v := atoiRunes(s.text[begin:s.col])
	s.advance() // terminator
	return v, true
}

func atoiRunes(r []rune) int {
	v := 0
	for _, c := range r {
		v = v*10 + int(c-'0')
	}
	return v
}
