// Package interp implements the tree-walking interpreter of spec.md
// §4.9: given a linked parsetree.Tree (every reference already rewritten
// to OpReadStack/OpReadGlobal/OpReadUpvalue by package linker), it
// executes the root block, maintaining a Value stack per call frame, an
// SPSC output-message queue, and a Status/Instruction pair the host can
// poll and set concurrently.
//
// Grounded on original_source/src/forscape_interpreter.h/.cpp.
package interp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/shadowCow/mathdoc/parsetree"
)

// Kind tags a Value's active field, standing in for the original's
// std::variant<double, Eigen::MatrixXd, std::string, bool, Algorithm,
// ...> (spec.md §3).
type Kind int

const (
	KindVoid Kind = iota
	KindNumber
	KindString
	KindBool
	KindMatrix
	KindAlgorithm
)

// Value is one interpreter runtime value. Only the field matching Kind
// is meaningful.
type Value struct {
	Kind Kind
	Num  float64
	Str  string
	Bool bool
	Mat  *mat.Dense
	Algo *Closure
}

// Closure is an Algorithm Value: the declaring parsetree.OpAlgorithm
// node plus one boxed cell per entry in its attached capture list
// (resolve.attachCaptureList). Cells are *Value pointers rather than
// copies so a multi-level nested closure can share the exact cell an
// intermediate closure already captured — see newClosure.
type Closure struct {
	Decl     parsetree.ParseNode
	Upvalues []*Value
}

func numberValue(n float64) Value  { return Value{Kind: KindNumber, Num: n} }
func boolValue(b bool) Value       { return Value{Kind: KindBool, Bool: b} }
func stringValue(s string) Value   { return Value{Kind: KindString, Str: s} }
func matrixValue(m *mat.Dense) Value { return Value{Kind: KindMatrix, Mat: m} }

// approxEqual implements spec.md §4.9's fixed-tolerance approximate
// comparison (1e-7).
const approxTolerance = 1e-7

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) <= approxTolerance
}

// Format renders v the way spec.md §4.9's numeric printing rule
// describes: trailing zeros trimmed, signed zero normalised to "0",
// matrices serialized row-major with an OPEN/CLOSE bracket notation
// (a plain-text stand-in for the original's typeset serial escaping,
// since the real typeset widget is out of scope — spec.md §1).
func (v Value) Format() string {
	switch v.Kind {
	case KindNumber:
		return formatNumber(v.Num)
	case KindString:
		return v.Str
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindMatrix:
		return formatMatrix(v.Mat)
	case KindAlgorithm:
		return "<algorithm>"
	default:
		return ""
	}
}

func formatNumber(n float64) string {
	if n == 0 {
		return "0"
	}
	s := fmt.Sprintf("%g", n)
	return s
}

func formatMatrix(m *mat.Dense) string {
	if m == nil {
		return "[]"
	}
	rows, cols := m.Dims()
	s := fmt.Sprintf("OPEN MATRIX %d %d ", rows, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			s += formatNumber(m.At(r, c)) + " CLOSE "
		}
	}
	return s
}
