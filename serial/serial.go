// Package serial implements the bit-exact wire format of the typeset
// document (spec.md §4.1): a byte/rune stream in which constructs are
// delimited by two special markers, OPEN and CLOSE, and an escape marker,
// CONSTRUCT. Validation is a single linear pass tracking a depth counter.
//
// Marker semantics and the matrix/cases dimension encoding are grounded
// on original_source/src/forscape_serial.h and include/hope_serial.h.
// Keyword-keyed constructs take the fixed argument count that Registry
// records for their keyword; only matrices and cases carry their
// dimensions inline as decimal digits.
package serial

import (
	"fmt"
	"strconv"
	"strings"
)

// Marker runes. Chosen from the Unicode Private Use Area so they never
// collide with legitimate typeset text, mirroring the three-marker
// scheme (OPEN/CLOSE/CONSTRUCT) of the original serial format.
const (
	Construct rune = ''
	Open      rune = ''
	Close     rune = ''
)

// ConstructInfo describes one keyword-keyed construct: its canonical
// keyword and how many OPEN…CLOSE arguments follow it.
type ConstructInfo struct {
	Keyword string
	NumArgs int
}

// Registry of keyword-keyed constructs (fraction, binomial, radicals,
// big operators, limits, accents). Matrix and Cases are special-cased
// below because their argument counts are carried inline as digits
// rather than being fixed by the keyword; Settings is special-cased
// too, but carries no digits.
var Registry = map[string]ConstructInfo{
	"FRAC":   {"FRAC", 2},   // numerator, denominator
	"BINOM":  {"BINOM", 2},  // n, k
	"SQRT":   {"SQRT", 1},   // radicand
	"NROOT":  {"NROOT", 2},  // index, radicand
	"SUM":    {"SUM", 4},    // index var, lower, upper, body
	"PROD":   {"PROD", 4},   // index var, lower, upper, body
	"INT":    {"INT", 4},    // lower, upper, integration var, body
	"LIM":    {"LIM", 3},    // var, target, body
	"DERIV":  {"DERIV", 2},  // expr, wrt-var
	"ACCENT": {"ACCENT", 2}, // base, accent-kind literal
}

const (
	settingsKeyword = "SETTINGS"
	matrixPrefix    = '['
	casesPrefix     = '{'
)

// IsValidSerial performs the single linear well-formedness pass of
// spec.md §4.1: each construct entry increments a depth counter by its
// argument count, each CLOSE decrements it, a newline while depth > 0 is
// an error, and the terminal depth must be zero.
func IsValidSerial(src string) bool {
	r := []rune(src)
	depth := 0
	i := 0
	for i < len(r) {
		switch r[i] {
		case Construct:
			i++
			n, ok := scanConstructEntry(r, &i)
			if !ok {
				return false
			}
			depth += n
		case Close:
			if depth == 0 {
				return false
			}
			depth--
			i++
			if i < len(r) && r[i] == Open {
				i++
			}
		case Open:
			return false
		case '\n':
			if depth != 0 {
				return false
			}
			i++
		default:
			i++
		}
	}
	return depth == 0
}

// scanConstructEntry consumes the bytes following a CONSTRUCT marker
// (escape sequence, matrix/cases header, or keyword) and returns how
// much the depth counter should increase.
func scanConstructEntry(r []rune, i *int) (int, bool) {
	if *i >= len(r) {
		return 0, false
	}

	switch r[*i] {
	case Construct, Open, Close:
		// Escaped literal marker: passes through as plain text, no depth change.
		*i++
		return 0, true
	case matrixPrefix:
		*i++
		rows, ok := scanDim(r, i, 'x')
		if !ok {
			return 0, false
		}
		cols, ok := scanDim(r, i, ']')
		if !ok {
			return 0, false
		}
		n := rows * cols
		if n == 0 || n > 99*99 {
			return 0, false
		}
		if !expect(r, i, Open) {
			return 0, false
		}
		return n, true
	case casesPrefix:
		*i++
		rows, ok := scanDecimal(r, i)
		if !ok || rows == 0 {
			return 0, false
		}
		if !expect(r, i, Open) {
			return 0, false
		}
		return 2 * rows, true
	default:
		start := *i
		for *i < len(r) && r[*i] != Open {
			*i++
		}
		if *i >= len(r) {
			return 0, false
		}
		keyword := string(r[start:*i])
		*i++ // consume OPEN
		if keyword == settingsKeyword {
			return 0, scanSettingsBody(r, i)
		}
		info, ok := Registry[keyword]
		if !ok {
			return 0, false
		}
		return info.NumArgs, true
	}
}

func scanDim(r []rune, i *int, terminator rune) (int, bool) {
	start := *i
	for *i < len(r) && r[*i] != terminator {
		if !isDigit(r[*i]) || *i-start >= 2 {
			return 0, false
		}
		*i++
	}
	if *i >= len(r) || *i == start {
		return 0, false
	}
	v, err := strconv.Atoi(string(r[start:*i]))
	if err != nil {
		return 0, false
	}
	*i++ // consume terminator
	return v, true
}

func scanDecimal(r []rune, i *int) (int, bool) {
	start := *i
	for *i < len(r) && isDigit(r[*i]) {
		*i++
	}
	if *i == start {
		return 0, false
	}
	v, err := strconv.Atoi(string(r[start:*i]))
	if err != nil {
		return 0, false
	}
	return v, true
}

// scanSettingsBody consumes the settings construct's comma-separated
// key=value pairs up to its own CLOSE. It never contributes to depth:
// a settings update is not a value-producing construct.
func scanSettingsBody(r []rune, i *int) bool {
	for {
		if *i >= len(r) {
			return false
		}
		if r[*i] == Close {
			*i++
			return true
		}
		for *i < len(r) && r[*i] != ',' && r[*i] != Close {
			*i++
		}
		if *i >= len(r) {
			return false
		}
		if r[*i] == ',' {
			*i++
		}
	}
}

func expect(r []rune, i *int, want rune) bool {
	if *i >= len(r) || r[*i] != want {
		return false
	}
	*i++
	return true
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// Escape prefixes any occurrence of CONSTRUCT, OPEN, or CLOSE in in with
// a CONSTRUCT marker so it can be embedded as raw text inside a
// construct without being mistaken for structure (spec.md §4.1).
func Escape(in string) string {
	var b strings.Builder
	b.Grow(len(in))
	for _, ch := range in {
		if ch == Construct || ch == Open || ch == Close {
			b.WriteRune(Construct)
		}
		b.WriteRune(ch)
	}
	return b.String()
}

// BeginConstruct writes a CONSTRUCT marker, keyword, and OPEN, ready for
// the caller to append NumArgs argument bodies each terminated by CLOSE.
func BeginConstruct(b *strings.Builder, keyword string) {
	b.WriteRune(Construct)
	b.WriteString(keyword)
	b.WriteRune(Open)
}

// BeginMatrix writes the CONSTRUCT marker and matrix header for a
// rows×cols matrix, ready for rows*cols argument bodies each terminated
// by CLOSE.
func BeginMatrix(b *strings.Builder, rows, cols int) error {
	if rows <= 0 || cols <= 0 || rows > 99 || cols > 99 {
		return fmt.Errorf("serial: matrix dimensions out of range: %dx%d", rows, cols)
	}
	b.WriteRune(Construct)
	b.WriteRune(matrixPrefix)
	fmt.Fprintf(b, "%dx%d", rows, cols)
	b.WriteRune(Open)
	return nil
}

// FormatMatrixLiteral renders a rows×cols matrix of values as printable
// text, reusing the raw serial markers the way the original
// implementation's printNode does (spec.md §9 Design Notes), for hosts
// that want that flat textual form. The interpreter's Print messages
// carry Value.Format() text instead.
func FormatMatrixLiteral(rows, cols int, vals []float64, format func(float64) string) string {
	var b strings.Builder
	_ = BeginMatrix(&b, rows, cols)
	for _, v := range vals {
		b.WriteString(format(v))
		b.WriteRune(Close)
	}
	return b.String()
}
