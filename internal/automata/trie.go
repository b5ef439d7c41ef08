// Package automata compiles a lexgrammar.LexicalGrammar into a runnable
// recognizer, the same role the teacher's NFA→DFA pipeline plays for its
// toy language. Because every lexeme in lexgrammar is a fixed literal
// (math operator glyphs and keywords, not character-range regexes), the
// construction collapses to trie insertion followed directly by
// longest-match traversal — a DFA whose states are trie nodes and whose
// transition function is the per-rune child map, built without an
// intermediate NFA-subset-construction step.
package automata

import "github.com/shadowCow/mathdoc/internal/lexgrammar"

// state is one DFA state: the trie node reached after consuming the
// runes on the path from the root.
type state struct {
	children map[rune]*state
	accept   *lexgrammar.TokenDefinition
}

// DFA recognizes the longest literal from a compiled LexicalGrammar
// starting at a given rune position.
type DFA struct {
	root *state
}

// Compile builds a DFA from g. Overlapping literals (e.g. "<" and "<=")
// are both reachable; Match always returns the longest one that matched.
func Compile(g *lexgrammar.LexicalGrammar) *DFA {
	root := &state{children: map[rune]*state{}}
	for i := range g.Definitions {
		def := &g.Definitions[i]
		cur := root
		for _, r := range def.Literal {
			next, ok := cur.children[r]
			if !ok {
				next = &state{children: map[rune]*state{}}
				cur.children[r] = next
			}
			cur = next
		}
		cur.accept = def
	}
	return &DFA{root: root}
}

// Match attempts the longest literal match in src starting at position
// pos. It returns the matched definition and the number of runes
// consumed, or (nil, 0) if no literal matches at pos.
func (d *DFA) Match(src []rune, pos int) (*lexgrammar.TokenDefinition, int) {
	cur := d.root
	var best *lexgrammar.TokenDefinition
	bestLen := 0
	for i := pos; i < len(src); i++ {
		next, ok := cur.children[src[i]]
		if !ok {
			break
		}
		cur = next
		if cur.accept != nil {
			best = cur.accept
			bestLen = i - pos + 1
		}
	}
	return best, bestLen
}
