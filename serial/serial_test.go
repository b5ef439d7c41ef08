package serial_test

import (
	"strconv"
	"strings"
	"testing"

	"github.com/shadowCow/mathdoc/serial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildMatrix(t *testing.T, rows, cols int) string {
	t.Helper()
	var b strings.Builder
	require.NoError(t, serial.BeginMatrix(&b, rows, cols))
	for i := 0; i < rows*cols; i++ {
		b.WriteString("0")
		b.WriteRune(serial.Close)
	}
	return b.String()
}

func TestIsValidSerial_PlainText(t *testing.T) {
	assert.True(t, serial.IsValidSerial("x + y"))
	assert.True(t, serial.IsValidSerial(""))
}

func TestIsValidSerial_Construct(t *testing.T) {
	var b strings.Builder
	serial.BeginConstruct(&b, "FRAC")
	b.WriteString("1")
	b.WriteRune(serial.Close)
	b.WriteString("2")
	b.WriteRune(serial.Close)
	assert.True(t, serial.IsValidSerial(b.String()))
}

func TestIsValidSerial_UnknownKeyword(t *testing.T) {
	var b strings.Builder
	serial.BeginConstruct(&b, "BOGUS")
	b.WriteString("1")
	b.WriteRune(serial.Close)
	assert.False(t, serial.IsValidSerial(b.String()))
}

func TestIsValidSerial_WrongArgCount(t *testing.T) {
	var b strings.Builder
	serial.BeginConstruct(&b, "FRAC")
	b.WriteString("1")
	b.WriteRune(serial.Close)
	// Missing the second argument's CLOSE: depth stays at 1.
	assert.False(t, serial.IsValidSerial(b.String()))
}

func TestIsValidSerial_Matrix(t *testing.T) {
	assert.True(t, serial.IsValidSerial(buildMatrix(t, 2, 3)))
}

func TestIsValidSerial_MatrixMissingEntry(t *testing.T) {
	s := buildMatrix(t, 2, 3)
	// Strip the final CLOSE so the depth counter never reaches zero.
	s = s[:len(s)-len(string(serial.Close))]
	assert.False(t, serial.IsValidSerial(s))
}

func TestIsValidSerial_Cases(t *testing.T) {
	var b strings.Builder
	b.WriteRune(serial.Construct)
	b.WriteString("{2")
	b.WriteRune(serial.Open)
	for i := 0; i < 4; i++ {
		b.WriteString(strconv.Itoa(i))
		b.WriteRune(serial.Close)
	}
	assert.True(t, serial.IsValidSerial(b.String()))
}

func TestIsValidSerial_NewlineInsideConstructIsInvalid(t *testing.T) {
	var b strings.Builder
	serial.BeginConstruct(&b, "SQRT")
	b.WriteString("x\ny")
	b.WriteRune(serial.Close)
	assert.False(t, serial.IsValidSerial(b.String()))
}

func TestIsValidSerial_UnmatchedClose(t *testing.T) {
	assert.False(t, serial.IsValidSerial(string(serial.Close)))
}

func TestIsValidSerial_Settings(t *testing.T) {
	var b strings.Builder
	b.WriteRune(serial.Construct)
	b.WriteString("SETTINGS")
	b.WriteRune(serial.Open)
	b.WriteString("shadowing=WARN,unused-var=ERROR")
	b.WriteRune(serial.Close)
	assert.True(t, serial.IsValidSerial(b.String()))
}

func TestEscape_PrefixesMarkers(t *testing.T) {
	in := string(serial.Open) + "x" + string(serial.Close)
	out := serial.Escape(in)
	assert.Equal(t, string(serial.Construct)+string(serial.Open)+"x"+string(serial.Construct)+string(serial.Close), out)
}

func TestFormatMatrixLiteral_RoundTripsThroughIsValidSerial(t *testing.T) {
	lit := serial.FormatMatrixLiteral(2, 2, []float64{1, 2, 3, 4}, func(v float64) string {
		return strconv.FormatFloat(v, 'g', -1, 64)
	})
	assert.True(t, serial.IsValidSerial(lit))
}
