// Package model defines the narrow collaborator interface the pipeline
// consumes: a typeset document's lines of text, the construct markers
// embedded in them, and the ability to annotate errors. The real
// typeset widget (lines/phrases/texts/constructs and their rendering)
// is an external collaborator out of scope for this repository (spec.md
// §1); model.FromLines provides an in-memory implementation so the
// scanner, parser, and later stages can be exercised headlessly, the
// same way the original's FORSCAPE_TYPESET_HEADLESS build lets its own
// test suite run without a GUI.
package model

import (
	"github.com/shadowCow/mathdoc/codeerr"
	"github.com/shadowCow/mathdoc/selection"
)

// Model is what the pipeline needs from a typeset document: it never
// mutates geometry, only reads line text and records diagnostics.
type Model interface {
	// Path is the document's project-relative path, used in diagnostic
	// headers and import resolution.
	Path() string

	// NumLines returns the number of lines in the document.
	NumLines() int

	// Line returns the raw serial text of line i (0-indexed), including
	// any embedded construct markers (see package serial).
	Line(i int) string

	// Errors is the ErrorStream diagnostics are recorded into.
	Errors() *codeerr.Stream
}

// inMemory is a Model backed by a plain slice of already-serialized
// lines, for tests and the CLI's file-backed entry point.
type inMemory struct {
	path   string
	lines  []string
	errors *codeerr.Stream
}

// FromLines builds a headless Model from already-serialized line text
// (see package serial for how to embed constructs). path is used only
// for diagnostic headers and import resolution, not touched on disk by
// this package.
func FromLines(path string, lines []string) Model {
	return &inMemory{
		path:   path,
		lines:  append([]string(nil), lines...),
		errors: codeerr.NewStream(path),
	}
}

func (m *inMemory) Path() string             { return m.path }
func (m *inMemory) NumLines() int            { return len(m.lines) }
func (m *inMemory) Errors() *codeerr.Stream  { return m.errors }
func (m *inMemory) Line(i int) string {
	if i < 0 || i >= len(m.lines) {
		return ""
	}
	return m.lines[i]
}

// MarkerAt clamps offset into line i's text, returning a valid Marker.
// Used by callers building synthetic selections outside the scanner's
// own cursor (e.g. the static pass, when it needs to point at a whole
// line).
func MarkerAt(m Model, line, offset int) selection.Marker {
	if line < 0 {
		line = 0
	}
	if line >= m.NumLines() {
		line = m.NumLines() - 1
	}
	if line < 0 {
		return selection.Marker{}
	}
	text := []rune(m.Line(line))
	if offset < 0 {
		offset = 0
	}
	if offset > len(text) {
		offset = len(text)
	}
	return selection.Marker{Line: line, Offset: offset}
}
