package interp_test

import (
	"strings"
	"testing"

	"github.com/shadowCow/mathdoc/interp"
	"github.com/shadowCow/mathdoc/linker"
	"github.com/shadowCow/mathdoc/model"
	"github.com/shadowCow/mathdoc/parser"
	"github.com/shadowCow/mathdoc/resolve"
	"github.com/shadowCow/mathdoc/scanner"
	"github.com/shadowCow/mathdoc/serial"
	"github.com/shadowCow/mathdoc/token"
	"github.com/shadowCow/mathdoc/types"
	"github.com/stretchr/testify/require"
)

// matrixLiteral builds the serial encoding of a row-major rows×cols
// matrix construct out of already-rendered cell expressions, the same
// construct parser.parseMatrix consumes (see parser_test.go's
// TestParser_MatrixConstruct).
func matrixLiteral(rows, cols int, cells ...string) string {
	var b strings.Builder
	_ = serial.BeginMatrix(&b, rows, cols)
	for _, c := range cells {
		b.WriteString(c)
		b.WriteRune(serial.Close)
	}
	return b.String()
}

// run compiles lines through the full pipeline and executes the result,
// draining every Print message emitted along the way.
func run(t *testing.T, lines ...string) []string {
	t.Helper()
	m := model.FromLines("test.math", lines)
	s := scanner.New(m)
	var toks []token.Token
	for {
		tok := s.Next()
		toks = append(toks, tok)
		if tok.Kind == token.EndOfFile {
			break
		}
	}
	tree := parser.New(toks, m.Errors()).Parse()
	table := resolve.New(tree, m, m.Errors()).Resolve()
	types.New(tree, table, m.Errors()).Check()
	require.True(t, m.Errors().NoErrors(), m.Errors().Dump())

	l := linker.New(tree, table)
	l.Link()

	in := interp.New(tree, table, m.Errors(), m, l.GlobalSize())
	done := in.RunThread()

	var printed []string
	for o := range in.Output() {
		if o.Kind == interp.Print {
			printed = append(printed, o.Text)
		}
	}
	<-done
	return printed
}

func TestRun_PrintArithmetic(t *testing.T) {
	out := run(t, `print(2 + 3 * 4)`)
	require.Equal(t, []string{"14"}, out)
}

func TestRun_ForCLoop(t *testing.T) {
	out := run(t,
		"for (i = 0; i < 3; i = i + 1) {",
		"print(i)",
		"}",
	)
	require.Equal(t, []string{"0", "1", "2"}, out)
}

func TestRun_MatrixAddition(t *testing.T) {
	a := matrixLiteral(1, 2, "1", "2")
	b := matrixLiteral(1, 2, "3", "4")
	out := run(t,
		"A = "+a,
		"B = "+b,
		"C = A + B",
		"print(rows(C))",
		"print(cols(C))",
	)
	require.Equal(t, []string{"1", "2"}, out)
}

func TestRun_AlgorithmCall(t *testing.T) {
	out := run(t,
		"algorithm square(x) { return x * x }",
		"print(square(5))",
	)
	require.Equal(t, []string{"25"}, out)
}

func TestRun_SwitchFallsThroughEmptyCase(t *testing.T) {
	out := run(t,
		"n = 2",
		"switch (n) {",
		"case 1: print(\"a\")",
		"case 2: {}",
		"case 3: print(\"bc\")",
		"default: print(\"other\")",
		"}",
	)
	require.Equal(t, []string{"bc"}, out)
}

func TestRun_ClosureCapturesOuterVariable(t *testing.T) {
	out := run(t,
		"x = 10",
		"algorithm addX(n) { return n + x }",
		"print(addX(5))",
	)
	require.Equal(t, []string{"15"}, out)
}

func TestRun_WhileLoop(t *testing.T) {
	out := run(t,
		"i = 0",
		"while (i < 3) {",
		"print(i)",
		"i = i + 1",
		"}",
	)
	require.Equal(t, []string{"0", "1", "2"}, out)
}
