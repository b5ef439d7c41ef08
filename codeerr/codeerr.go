// Package codeerr implements the append-only error/warning stream
// described in spec.md §4.2: every diagnostic raised by the pipeline is
// recorded as an offset/length span into a single growing message
// buffer, so messages never move once written and can be handed out by
// stable (start, len) pairs instead of copied strings.
//
// Grounded on original_source/src/forscape_error.h and
// forscape_error.cpp (ErrorStream::fail/warn, writeLocation).
package codeerr

import (
	"fmt"
	"strings"

	"github.com/shadowCow/mathdoc/selection"
)

// Code identifies the kind of diagnostic raised. New codes are added as
// later pipeline stages need them; the zero value is never raised.
type Code int

const (
	_ Code = iota

	// Scanner
	CodeUnterminatedString
	CodeUnterminatedComment
	CodeInvalidNumber
	CodeUnrecognizedSymbol
	CodeInvalidImportPath

	// Parser
	CodeUnexpectedToken
	CodeExpectedExpression
	CodeExpectedClose
	CodeMalformedConstruct

	// Symbol-lexical pass (resolve)
	CodeUndeclaredVar
	CodeDuplicateDeclaration
	CodeUnusedVar
	CodeUnusedExpression
	CodeShadowedVar
	CodeNotCallable
	CodeBadScopeAccess
	CodeUnknownSetting

	// Static pass (types)
	CodeTypeMismatch
	CodeDimMismatch
	CodeNotAMatrix
	CodeRecursiveCycle
	CodeWrongNumArgs
	CodeNonsquareTranspose

	// Interpreter
	CodeDivByZero
	CodeIndexOutOfRange
	CodeStackOverflow
	CodeRuntimeFailure
	CodeUserStop
	CodeNotCallableRuntime
	CodeNoReturn

	// Program
	CodeFileNotFound
	CodeFileAlreadyOpen
	CodeFileCorrupted
	CodeSelfImport
)

var messages = map[Code]string{
	CodeUnterminatedString:   "unterminated string literal",
	CodeUnterminatedComment:  "unterminated comment",
	CodeInvalidNumber:        "invalid numeric literal",
	CodeUnrecognizedSymbol:   "unrecognized symbol",
	CodeInvalidImportPath:    "invalid import path",
	CodeUnexpectedToken:      "unexpected token",
	CodeExpectedExpression:   "expected expression",
	CodeExpectedClose:        "expected closing delimiter",
	CodeMalformedConstruct:   "malformed construct",
	CodeUndeclaredVar:        "use of undeclared variable",
	CodeDuplicateDeclaration: "variable already declared in this scope",
	CodeUnusedVar:            "unused variable",
	CodeUnusedExpression:     "expression result is unused",
	CodeShadowedVar:          "declaration shadows an outer variable",
	CodeNotCallable:          "value is not callable",
	CodeBadScopeAccess:       "invalid scope access",
	CodeUnknownSetting:       "unrecognized setting name",
	CodeTypeMismatch:         "type mismatch",
	CodeDimMismatch:          "matrix dimension mismatch",
	CodeNotAMatrix:           "expected a matrix",
	CodeRecursiveCycle:       "recursive type cannot be resolved",
	CodeWrongNumArgs:         "wrong number of arguments",
	CodeNonsquareTranspose:   "transpose of a non-square matrix requested in place",
	CodeDivByZero:            "division by zero",
	CodeIndexOutOfRange:      "index out of range",
	CodeStackOverflow:        "stack overflow",
	CodeRuntimeFailure:       "runtime error",
	CodeUserStop:             "stopped by user",
	CodeNotCallableRuntime:   "value is not callable",
	CodeNoReturn:             "algorithm did not return a value",
	CodeFileNotFound:         "file not found",
	CodeFileAlreadyOpen:      "file already open",
	CodeFileCorrupted:        "file corrupted",
	CodeSelfImport:           "a file cannot import itself",
}

// Message returns the canonical text for a diagnostic code.
func Message(c Code) string {
	if m, ok := messages[c]; ok {
		return m
	}
	return fmt.Sprintf("unknown error code %d", c)
}

// WarningLevel orders diagnostic severities; NoWarning < Warn < ErrorLevel.
type WarningLevel int

const (
	NoWarning WarningLevel = iota
	Warn
	ErrorLevel
)

func (l WarningLevel) String() string {
	switch l {
	case NoWarning:
		return "no warning"
	case Warn:
		return "warning"
	case ErrorLevel:
		return "error"
	default:
		return "unknown"
	}
}

// Error is one recorded diagnostic: the source span it applies to, its
// code, and the (start, len) slice of the owning Stream's message buffer
// holding its rendered text.
type Error struct {
	Selection selection.Selection
	Code      Code
	Level     WarningLevel

	start int
	len   int
	text  *strings.Builder
}

// Message returns the diagnostic's rendered text without copying the
// Stream's buffer: it is a view into bytes already written there.
func (e Error) Message() string {
	if e.text == nil {
		return ""
	}
	return e.text.String()[e.start : e.start+e.len]
}

// Line reports the 1-based source line the diagnostic starts on.
func (e Error) Line() int {
	return e.Selection.StartLine()
}

// Stream is an append-only diagnostic buffer, mirroring ErrorStream:
// text is appended once and never mutated, so every Error's (start, len)
// pair remains valid for the Stream's lifetime.
type Stream struct {
	path     string
	buf      strings.Builder
	errors   []Error
	warnings []Error
}

// NewStream creates a Stream whose location header names path (usually
// the document's project-relative path).
func NewStream(path string) *Stream {
	return &Stream{path: path}
}

// Reset clears all recorded diagnostics and the message buffer, for
// reuse across recompiles of the same document.
func (s *Stream) Reset() {
	s.buf.Reset()
	s.errors = s.errors[:0]
	s.warnings = s.warnings[:0]
}

// NoErrors reports whether no error-level diagnostic has been recorded.
// Warnings do not block later pipeline stages (spec.md §2).
func (s *Stream) NoErrors() bool {
	return len(s.errors) == 0
}

// Errors returns the recorded error-level diagnostics in emission order.
func (s *Stream) Errors() []Error { return s.errors }

// Warnings returns the recorded warn-level diagnostics in emission order.
func (s *Stream) Warnings() []Error { return s.warnings }

// Fail records an error-level diagnostic using the code's canonical
// message text.
func (s *Stream) Fail(sel selection.Selection, code Code) {
	s.record(ErrorLevel, sel, code, Message(code))
}

// Failf records an error-level diagnostic with custom message text,
// formatted with the standard verbs.
func (s *Stream) Failf(sel selection.Selection, code Code, format string, args ...any) {
	s.record(ErrorLevel, sel, code, fmt.Sprintf(format, args...))
}

// Warnf records a diagnostic at the given level (no-op for NoWarning),
// matching ErrorStream::warn's level-gated dispatch.
func (s *Stream) Warnf(level WarningLevel, sel selection.Selection, code Code, format string, args ...any) {
	if level == NoWarning {
		return
	}
	msg := Message(code)
	if format != "" {
		msg = fmt.Sprintf(format, args...)
	}
	s.record(level, sel, code, msg)
}

func (s *Stream) record(level WarningLevel, sel selection.Selection, code Code, msg string) {
	s.writeLocation(level, sel)

	start := s.buf.Len()
	s.buf.WriteString(msg)
	s.buf.WriteByte('\n')

	e := Error{
		Selection: sel,
		Code:      code,
		Level:     level,
		start:     start,
		len:       len(msg),
		text:      &s.buf,
	}

	switch level {
	case ErrorLevel:
		s.errors = append(s.errors, e)
	case Warn:
		s.warnings = append(s.warnings, e)
	}
}

func (s *Stream) writeLocation(level WarningLevel, sel selection.Selection) {
	fmt.Fprintf(&s.buf, "%s\n%s: Line %d\n", level, s.path, sel.StartLine())
}

// Dump renders the full diagnostic buffer, for CLI/log output.
func (s *Stream) Dump() string {
	return s.buf.String()
}
