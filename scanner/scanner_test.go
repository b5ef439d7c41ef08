package scanner_test

import (
	"testing"

	"github.com/shadowCow/mathdoc/model"
	"github.com/shadowCow/mathdoc/scanner"
	"github.com/shadowCow/mathdoc/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scanAll(t *testing.T, lines ...string) []token.Token {
	t.Helper()
	m := model.FromLines("test.math", lines)
	s := scanner.New(m)
	var toks []token.Token
	for {
		tok := s.Next()
		toks = append(toks, tok)
		if tok.Kind == token.EndOfFile {
			return toks
		}
	}
}

func kinds(toks []token.Token) []token.Kind {
	ks := make([]token.Kind, len(toks))
	for i, t := range toks {
		ks[i] = t.Kind
	}
	return ks
}

func TestScanner_SimpleAssignment(t *testing.T) {
	toks := scanAll(t, "x = 1")
	require.GreaterOrEqual(t, len(toks), 4)
	assert.Equal(t, token.Identifier, toks[0].Kind)
	assert.Equal(t, "x", toks[0].Text)
	assert.Equal(t, token.Assign, toks[1].Kind)
	assert.Equal(t, token.Number, toks[2].Kind)
	assert.Equal(t, "1", toks[2].Text)
}

func TestScanner_LeadingZeroIsInvalid(t *testing.T) {
	toks := scanAll(t, "012")
	assert.Equal(t, token.ScannerError, toks[0].Kind)
}

func TestScanner_SingleLeadingZeroIsValid(t *testing.T) {
	toks := scanAll(t, "0.5")
	assert.Equal(t, token.Number, toks[0].Kind)
	assert.Equal(t, "0.5", toks[0].Text)
}

func TestScanner_Keywords(t *testing.T) {
	toks := scanAll(t, "if while for")
	assert.Equal(t, []token.Kind{token.KwIf, token.KwWhile, token.KwFor, token.Newline, token.EndOfFile}, kinds(toks))
}

func TestScanner_StringLiteralWithEscapes(t *testing.T) {
	toks := scanAll(t, `"a\"b"`)
	require.Equal(t, token.String, toks[0].Kind)
	assert.Equal(t, `a"b`, toks[0].Text)
}

func TestScanner_LineComment(t *testing.T) {
	toks := scanAll(t, "x // trailing comment")
	assert.Equal(t, token.Identifier, toks[0].Kind)
	assert.Equal(t, token.Newline, toks[1].Kind)
	assert.Equal(t, token.EndOfFile, toks[2].Kind)
}

func TestScanner_MultiCharOperatorLongestMatch(t *testing.T) {
	toks := scanAll(t, "a <= b")
	assert.Equal(t, token.LessEq, toks[1].Kind)
}

func TestScanner_NewlineBetweenLines(t *testing.T) {
	toks := scanAll(t, "x", "y")
	assert.Equal(t, []token.Kind{token.Identifier, token.Newline, token.Identifier, token.Newline, token.EndOfFile}, kinds(toks))
}
