// Package selection defines the source-position types shared by every
// later stage of the pipeline: a Marker is a single point in a document,
// and a Selection is a pair of markers spanning a range. Every parse-tree
// node, error, and symbol usage carries a Selection (spec.md §3).
package selection

import "fmt"

// Marker is a single point into a document: the index of the line it
// falls on, and the rune offset of that point within the line's text.
// Lines are 0-indexed internally; Error.Line() (see codeerr) reports the
// 1-based line number expected by diagnostics.
type Marker struct {
	Line   int
	Offset int
}

// Before reports whether m precedes other in document order.
func (m Marker) Before(other Marker) bool {
	if m.Line != other.Line {
		return m.Line < other.Line
	}
	return m.Offset < other.Offset
}

func (m Marker) String() string {
	return fmt.Sprintf("%d:%d", m.Line+1, m.Offset)
}

// Selection is a half-open span [Left, Right) into a document. It is
// treated as an opaque, comparable value by every consumer: parse-tree
// nodes, errors, and symbol usages only ever compare or copy Selections,
// never mutate one in place.
type Selection struct {
	Left  Marker
	Right Marker
}

// NewSelection builds a Selection from two markers, defensively swapping
// them if they were reversed.
func NewSelection(a, b Marker) Selection {
	if b.Before(a) {
		a, b = b, a
	}
	return Selection{Left: a, Right: b}
}

// Point returns a zero-width Selection at m, used for synthetic tokens
// and nodes that do not correspond to real source text.
func Point(m Marker) Selection {
	return Selection{Left: m, Right: m}
}

// StartLine returns the 1-based line number of the selection's start,
// as diagnostics expect.
func (s Selection) StartLine() int {
	return s.Left.Line + 1
}

func (s Selection) String() string {
	return fmt.Sprintf("[%s, %s)", s.Left, s.Right)
}
