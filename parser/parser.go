// Package parser implements the hand-written recursive-descent parser
// of spec.md §4.5: a standard precedence climb over the token stream,
// producing a flat parsetree.Tree instead of a boxed AST.
//
// The navigation idiom (peek/advance/previous/isAtEnd) is carried over
// from the teacher's lang/parser.Parser, generalized from its single
// flat expression grammar to the full precedence ladder and statement
// set of spec.md §4.5. The grammar shape itself is original to this
// language and has no teacher analogue beyond that navigation style.
package parser

import (
	"github.com/shadowCow/mathdoc/codeerr"
	"github.com/shadowCow/mathdoc/parsetree"
	"github.com/shadowCow/mathdoc/selection"
	"github.com/shadowCow/mathdoc/token"
)

// Grouping records an open/close marker pair for the editor to
// highlight, per spec.md §4.5 ("The parser registers open/close marker
// pairs for the editor to highlight groupings"). Resolve/types/interp
// never consult it; it is a parser-side accumulator for an external
// host, adapted from the teacher's tooling/parsetree node-interface
// design repurposed as a plain open→close marker map.
type Grouping struct {
	Open  selection.Marker
	Close selection.Marker
}

// Parser consumes a pre-scanned token slice (built by draining a
// scanner.Scanner to EndOfFile) and produces a parsetree.Tree.
type Parser struct {
	toks []token.Token
	pos  int

	tree *parsetree.Tree
	errs *codeerr.Stream

	groupings []Grouping

	// failed is set once the parser has emitted its single recovery
	// error (spec.md §4.5: "on failure the parser emits a single error
	// and advances to end-of-input").
	failed bool
}

// New creates a Parser over toks (which must end with an EndOfFile
// token), recording diagnostics into errs.
func New(toks []token.Token, errs *codeerr.Stream) *Parser {
	return &Parser{toks: toks, tree: &parsetree.Tree{}, errs: errs}
}

// Groupings returns the open/close marker pairs collected while
// parsing, for an editor host to highlight.
func (p *Parser) Groupings() []Grouping { return p.groupings }

// Parse runs the parser to completion and returns the resulting tree.
// The tree's root is a block node containing every top-level statement.
func (p *Parser) Parse() *parsetree.Tree {
	start := p.here()
	var stmts []parsetree.ParseNode
	p.skipNewlines()
	for !p.check(token.EndOfFile) && !p.failed {
		stmts = append(stmts, p.parseStatement())
		p.skipNewlines()
	}
	root := p.tree.AddNode(parsetree.OpBlock, p.spanFrom(start), stmts)
	p.tree.SetRoot(root)
	return p.tree
}

// --- token stream navigation ---

func (p *Parser) peek() token.Token   { return p.toks[p.pos] }
func (p *Parser) previous() token.Token {
	if p.pos == 0 {
		return p.toks[0]
	}
	return p.toks[p.pos-1]
}
func (p *Parser) isAtEnd() bool { return p.peek().Kind == token.EndOfFile }

func (p *Parser) advance() token.Token {
	if !p.isAtEnd() {
		p.pos++
	}
	return p.previous()
}

func (p *Parser) check(k token.Kind) bool {
	if p.failed {
		return k == token.EndOfFile
	}
	return p.peek().Kind == k
}

func (p *Parser) match(kinds ...token.Kind) bool {
	for _, k := range kinds {
		if p.check(k) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *Parser) expect(k token.Kind, code codeerr.Code) (token.Token, bool) {
	if p.check(k) {
		return p.advance(), true
	}
	p.fail(code)
	return token.Token{}, false
}

// fail records the parser's single recovery error and advances the
// cursor to end-of-input, per spec.md §4.5's minimal-recovery strategy.
func (p *Parser) fail(code codeerr.Code) {
	if p.failed {
		return
	}
	p.failed = true
	p.errs.Fail(p.peek().Sel, code)
	p.pos = len(p.toks) - 1
}

func (p *Parser) skipNewlines() {
	for p.check(token.Newline) {
		p.advance()
	}
}

func (p *Parser) here() selection.Marker { return p.peek().Sel.Left }

func (p *Parser) spanFrom(start selection.Marker) selection.Selection {
	return selection.NewSelection(start, p.previous().Sel.Right)
}

// --- statements ---

func (p *Parser) parseStatement() parsetree.ParseNode {
	start := p.here()
	switch {
	case p.check(token.KwIf):
		return p.parseIf()
	case p.check(token.KwWhile):
		return p.parseWhile()
	case p.check(token.KwFor):
		return p.parseFor()
	case p.check(token.KwSwitch):
		return p.parseSwitch()
	case p.check(token.KwPrint):
		return p.parsePrint()
	case p.check(token.KwAssert):
		return p.parseAssert()
	case p.check(token.KwAlgorithm):
		return p.parseAlgorithm()
	case p.check(token.KwReturn):
		return p.parseReturn()
	case p.check(token.KwPlot):
		return p.parsePlot()
	case p.check(token.KwImport):
		return p.parseImport()
	case p.check(token.KwFrom):
		return p.parseFromImport()
	case p.check(token.KwNamespace):
		return p.parseNamespace()
	case p.check(token.KwClass):
		return p.parseClass()
	case p.check(token.KwUnknown):
		return p.parseUnknownDecl()
	case p.check(token.LBrace):
		return p.parseBlock()
	case p.check(token.ConstructSettings):
		return p.parseSettingsUpdate()
	default:
		return p.parseExprOrAssignStatement(start)
	}
}

func (p *Parser) parseBlock() parsetree.ParseNode {
	start := p.here()
	open := p.advance() // '{'
	var stmts []parsetree.ParseNode
	p.skipNewlines()
	for !p.check(token.RBrace) && !p.isAtEnd() && !p.failed {
		stmts = append(stmts, p.parseStatement())
		p.skipNewlines()
	}
	closeTok, ok := p.expect(token.RBrace, codeerr.CodeExpectedClose)
	if ok {
		p.groupings = append(p.groupings, Grouping{Open: open.Sel.Left, Close: closeTok.Sel.Right})
	}
	return p.tree.AddNode(parsetree.OpBlock, p.spanFrom(start), stmts)
}

func (p *Parser) parseIf() parsetree.ParseNode {
	start := p.here()
	p.advance() // if
	p.expect(token.LParen, codeerr.CodeExpectedExpression)
	cond := p.parseExpression()
	p.expect(token.RParen, codeerr.CodeExpectedClose)
	body := p.parseStatement()
	if p.match(token.KwElse) {
		elseBody := p.parseStatement()
		return p.tree.AddNode(parsetree.OpIfElse, p.spanFrom(start), []parsetree.ParseNode{cond, body, elseBody})
	}
	return p.tree.AddNode(parsetree.OpIf, p.spanFrom(start), []parsetree.ParseNode{cond, body})
}

func (p *Parser) parseWhile() parsetree.ParseNode {
	start := p.here()
	p.advance() // while
	p.expect(token.LParen, codeerr.CodeExpectedExpression)
	cond := p.parseExpression()
	p.expect(token.RParen, codeerr.CodeExpectedClose)
	body := p.parseStatement()
	return p.tree.AddNode(parsetree.OpWhile, p.spanFrom(start), []parsetree.ParseNode{cond, body})
}

// parseFor parses both the C-style for (init; cond; step) and the
// ranged for (id : expr) forms (spec.md §4.5).
func (p *Parser) parseFor() parsetree.ParseNode {
	start := p.here()
	p.advance() // for
	p.expect(token.LParen, codeerr.CodeExpectedExpression)

	if p.check(token.Identifier) && p.toks[p.pos+1].Kind == token.Colon {
		idTok := p.advance()
		idNode := p.tree.AddTerminal(parsetree.OpIdentifier, idTok.Sel)
		p.advance() // ':'
		iterable := p.parseExpression()
		p.expect(token.RParen, codeerr.CodeExpectedClose)
		body := p.parseStatement()
		return p.tree.AddNode(parsetree.OpForRanged, p.spanFrom(start), []parsetree.ParseNode{idNode, iterable, body})
	}

	var initNode parsetree.ParseNode = parsetree.Null
	if !p.check(token.Semicolon) {
		initNode = p.parseExprOrAssignStatementInline()
	}
	p.expect(token.Semicolon, codeerr.CodeExpectedExpression)
	var condNode parsetree.ParseNode = parsetree.Null
	if !p.check(token.Semicolon) {
		condNode = p.parseExpression()
	}
	p.expect(token.Semicolon, codeerr.CodeExpectedExpression)
	var stepNode parsetree.ParseNode = parsetree.Null
	if !p.check(token.RParen) {
		stepNode = p.parseExprOrAssignStatementInline()
	}
	p.expect(token.RParen, codeerr.CodeExpectedClose)
	body := p.parseStatement()
	return p.tree.AddNode(parsetree.OpForC, p.spanFrom(start), []parsetree.ParseNode{initNode, condNode, stepNode, body})
}

func (p *Parser) parseSwitch() parsetree.ParseNode {
	start := p.here()
	p.advance() // switch
	p.expect(token.LParen, codeerr.CodeExpectedExpression)
	key := p.parseExpression()
	p.expect(token.RParen, codeerr.CodeExpectedClose)
	p.expect(token.LBrace, codeerr.CodeExpectedExpression)
	p.skipNewlines()

	children := []parsetree.ParseNode{key}
	defaultFlag := -1
	idx := 1
	for p.check(token.KwCase) || p.check(token.KwDefault) {
		if p.match(token.KwDefault) {
			p.expect(token.Colon, codeerr.CodeExpectedExpression)
			p.skipNewlines()
			path := p.parseStatement()
			defaultFlag = idx
			children = append(children, path)
			idx++
		} else {
			p.advance() // case
			caseKey := p.parseExpression()
			p.expect(token.Colon, codeerr.CodeExpectedExpression)
			p.skipNewlines()
			path := p.parseStatement()
			children = append(children, caseKey, path)
			idx += 2
		}
		p.skipNewlines()
	}
	p.expect(token.RBrace, codeerr.CodeExpectedClose)

	sw := p.tree.AddNode(parsetree.OpSwitch, p.spanFrom(start), children)
	p.tree.SetFlag(sw, defaultFlag)
	return sw
}

func (p *Parser) parsePrint() parsetree.ParseNode {
	start := p.here()
	p.advance() // print
	p.expect(token.LParen, codeerr.CodeExpectedExpression)
	args := p.parseArgList(token.RParen)
	p.expect(token.RParen, codeerr.CodeExpectedClose)
	return p.tree.AddNode(parsetree.OpPrint, p.spanFrom(start), args)
}

func (p *Parser) parseAssert() parsetree.ParseNode {
	start := p.here()
	p.advance() // assert
	p.expect(token.LParen, codeerr.CodeExpectedExpression)
	expr := p.parseExpression()
	p.expect(token.RParen, codeerr.CodeExpectedClose)
	return p.tree.AddUnary(parsetree.OpAssert, p.spanFrom(start), expr)
}

func (p *Parser) parseReturn() parsetree.ParseNode {
	start := p.here()
	p.advance() // return
	if p.check(token.Newline) || p.check(token.RBrace) || p.check(token.EndOfFile) {
		return p.tree.AddNode(parsetree.OpReturn, p.spanFrom(start), nil)
	}
	expr := p.parseExpression()
	return p.tree.AddUnary(parsetree.OpReturn, p.spanFrom(start), expr)
}

func (p *Parser) parsePlot() parsetree.ParseNode {
	start := p.here()
	p.advance() // plot
	p.expect(token.LParen, codeerr.CodeExpectedExpression)
	args := p.parseArgList(token.RParen)
	p.expect(token.RParen, codeerr.CodeExpectedClose)
	return p.tree.AddNode(parsetree.OpPlot, p.spanFrom(start), args)
}

func (p *Parser) parseImport() parsetree.ParseNode {
	start := p.here()
	p.advance() // import
	pathTok, _ := p.expect(token.String, codeerr.CodeInvalidImportPath)
	pathNode := p.tree.AddTerminal(parsetree.OpString, pathTok.Sel)
	var aliasNode parsetree.ParseNode = parsetree.Null
	if p.match(token.KwAs) {
		aliasTok, _ := p.expect(token.Identifier, codeerr.CodeExpectedExpression)
		aliasNode = p.tree.AddTerminal(parsetree.OpIdentifier, aliasTok.Sel)
	}
	return p.tree.AddNode(parsetree.OpImport, p.spanFrom(start), []parsetree.ParseNode{pathNode, aliasNode})
}

func (p *Parser) parseFromImport() parsetree.ParseNode {
	start := p.here()
	p.advance() // from
	pathTok, _ := p.expect(token.String, codeerr.CodeInvalidImportPath)
	pathNode := p.tree.AddTerminal(parsetree.OpString, pathTok.Sel)
	p.expect(token.KwImport, codeerr.CodeExpectedExpression)

	children := []parsetree.ParseNode{pathNode}
	for {
		nameTok, _ := p.expect(token.Identifier, codeerr.CodeExpectedExpression)
		nameNode := p.tree.AddTerminal(parsetree.OpIdentifier, nameTok.Sel)
		aliasNode := parsetree.Null
		if p.match(token.KwAs) {
			aliasTok, _ := p.expect(token.Identifier, codeerr.CodeExpectedExpression)
			aliasNode = p.tree.AddTerminal(parsetree.OpIdentifier, aliasTok.Sel)
		}
		pair := p.tree.AddNode(parsetree.OpList, nameTok.Sel, []parsetree.ParseNode{nameNode, aliasNode})
		children = append(children, pair)
		if !p.match(token.Comma) {
			break
		}
	}
	return p.tree.AddNode(parsetree.OpFromImport, p.spanFrom(start), children)
}

func (p *Parser) parseNamespace() parsetree.ParseNode {
	start := p.here()
	p.advance() // namespace
	nameTok, _ := p.expect(token.Identifier, codeerr.CodeExpectedExpression)
	nameNode := p.tree.AddTerminal(parsetree.OpIdentifier, nameTok.Sel)
	body := p.parseBlock()
	return p.tree.AddNode(parsetree.OpNamespace, p.spanFrom(start), []parsetree.ParseNode{nameNode, body})
}

func (p *Parser) parseClass() parsetree.ParseNode {
	start := p.here()
	p.advance() // class
	nameTok, _ := p.expect(token.Identifier, codeerr.CodeExpectedExpression)
	nameNode := p.tree.AddTerminal(parsetree.OpIdentifier, nameTok.Sel)
	var parents []parsetree.ParseNode
	if p.match(token.Colon) {
		for {
			pt, _ := p.expect(token.Identifier, codeerr.CodeExpectedExpression)
			parents = append(parents, p.tree.AddTerminal(parsetree.OpIdentifier, pt.Sel))
			if !p.match(token.Comma) {
				break
			}
		}
	}
	body := p.parseBlock()
	parentList := p.tree.AddNode(parsetree.OpList, nameTok.Sel, parents)
	return p.tree.AddNode(parsetree.OpClass, p.spanFrom(start), []parsetree.ParseNode{nameNode, parentList, body})
}

func (p *Parser) parseUnknownDecl() parsetree.ParseNode {
	start := p.here()
	p.advance() // unknown
	var ids []parsetree.ParseNode
	for {
		idTok, _ := p.expect(token.Identifier, codeerr.CodeExpectedExpression)
		ids = append(ids, p.tree.AddTerminal(parsetree.OpIdentifier, idTok.Sel))
		if !p.match(token.Comma) {
			break
		}
	}
	return p.tree.AddNode(parsetree.OpUnknownDecl, p.spanFrom(start), ids)
}

// parseSettingsUpdate parses the comma-separated `name=level` pairs a
// settings{...} construct carries into a flat list of OpList(name,
// value) children, mirroring the alias-pair shape parseFromImport
// already builds for `from ... import a as b, c`.
func (p *Parser) parseSettingsUpdate() parsetree.ParseNode {
	tok := p.advance() // ConstructSettings (scanner already consumed through OPEN)
	var kv []parsetree.ParseNode
	for !p.check(token.ArgClose) && !p.isAtEnd() {
		nameTok, ok := p.expect(token.Identifier, codeerr.CodeExpectedExpression)
		if !ok {
			break
		}
		nameNode := p.tree.AddTerminal(parsetree.OpIdentifier, nameTok.Sel)
		p.expect(token.Assign, codeerr.CodeExpectedExpression)
		valTok, ok := p.expect(token.Identifier, codeerr.CodeExpectedExpression)
		if !ok {
			break
		}
		valNode := p.tree.AddTerminal(parsetree.OpIdentifier, valTok.Sel)
		pair := p.tree.AddNode(parsetree.OpList, selection.NewSelection(nameTok.Sel.Left, valTok.Sel.Right), []parsetree.ParseNode{nameNode, valNode})
		kv = append(kv, pair)
		if !p.match(token.Comma) {
			break
		}
	}
	closeTok, _ := p.expect(token.ArgClose, codeerr.CodeExpectedClose)
	return p.tree.AddNode(parsetree.OpSettingsUpdate, selection.NewSelection(tok.Sel.Left, closeTok.Sel.Right), kv)
}

// parseAlgorithm parses `algorithm name(params) [{captures}] { body }`
// with optional default parameter values (spec.md §4.5).
func (p *Parser) parseAlgorithm() parsetree.ParseNode {
	start := p.here()
	p.advance() // algorithm
	nameTok, _ := p.expect(token.Identifier, codeerr.CodeExpectedExpression)
	nameNode := p.tree.AddTerminal(parsetree.OpIdentifier, nameTok.Sel)

	p.expect(token.LParen, codeerr.CodeExpectedExpression)
	var params []parsetree.ParseNode
	for !p.check(token.RParen) && !p.isAtEnd() {
		pTok, _ := p.expect(token.Identifier, codeerr.CodeExpectedExpression)
		pNode := p.tree.AddTerminal(parsetree.OpIdentifier, pTok.Sel)
		if p.match(token.Assign) {
			def := p.parseTernaryLevel()
			pNode = p.tree.AddNode(parsetree.OpList, pTok.Sel, []parsetree.ParseNode{pNode, def})
		}
		params = append(params, pNode)
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.RParen, codeerr.CodeExpectedClose)
	paramList := p.tree.AddNode(parsetree.OpList, nameTok.Sel, params)

	var captureList parsetree.ParseNode = parsetree.Null
	if p.check(token.LBrace) && p.lookaheadIsCaptureBlock() {
		open := p.advance()
		var caps []parsetree.ParseNode
		for !p.check(token.RBrace) && !p.isAtEnd() {
			cTok, _ := p.expect(token.Identifier, codeerr.CodeExpectedExpression)
			caps = append(caps, p.tree.AddTerminal(parsetree.OpIdentifier, cTok.Sel))
			if !p.match(token.Comma) {
				break
			}
		}
		p.expect(token.RBrace, codeerr.CodeExpectedClose)
		captureList = p.tree.AddNode(parsetree.OpList, open.Sel, caps)
	}

	body := p.parseBlock()
	return p.tree.AddNode(parsetree.OpAlgorithm, p.spanFrom(start),
		[]parsetree.ParseNode{nameNode, paramList, captureList, body})
}

// lookaheadIsCaptureBlock is a heuristic: an algorithm's optional
// capture block is syntactically ambiguous with the body block only
// when both are braces back-to-back; we treat a `{...}` immediately
// followed by another `{` as "capture block then body".
func (p *Parser) lookaheadIsCaptureBlock() bool {
	depth := 0
	for i := p.pos; i < len(p.toks); i++ {
		switch p.toks[i].Kind {
		case token.LBrace:
			depth++
		case token.RBrace:
			depth--
			if depth == 0 {
				return i+1 < len(p.toks) && p.toks[i+1].Kind == token.LBrace
			}
		case token.EndOfFile:
			return false
		}
	}
	return false
}

func (p *Parser) parseArgList(closing token.Kind) []parsetree.ParseNode {
	var args []parsetree.ParseNode
	if p.check(closing) {
		return args
	}
	for {
		args = append(args, p.parseExpression())
		if !p.match(token.Comma) {
			break
		}
	}
	return args
}

// parseExprOrAssignStatement parses an identifier-assignment statement,
// a subscript-reassignment statement, or a bare expression statement
// (rewritten by the patch step below to OP_PRINT per spec.md §4.5).
func (p *Parser) parseExprOrAssignStatement(start selection.Marker) parsetree.ParseNode {
	stmt := p.parseExprOrAssignStatementInline()
	// Patch: every expression statement that is not an assignment,
	// reassignment, element-wise assignment or call is rewritten to
	// OP_PRINT, wherever it appears: inside nested blocks as well as at
	// the top level, and whether or not it is the document's only
	// statement.
	if p.tree.Op(stmt) != parsetree.OpAssign &&
		p.tree.Op(stmt) != parsetree.OpReassign &&
		p.tree.Op(stmt) != parsetree.OpElementwiseAssignment &&
		p.tree.Op(stmt) != parsetree.OpCall {
		return p.tree.AddUnarySpan(parsetree.OpPrint, stmt)
	}
	return stmt
}

func (p *Parser) parseExprOrAssignStatementInline() parsetree.ParseNode {
	expr := p.parseExpression()
	if p.match(token.Assign, token.ArrowAssign, token.WalrusAssign) {
		rhs := p.parseExpression()
		sel := selection.NewSelection(p.tree.Selection(expr).Left, p.tree.Selection(rhs).Right)
		return p.tree.AddNode(parsetree.OpAssign, sel, []parsetree.ParseNode{expr, rhs})
	}
	return expr
}

// --- expression precedence ladder (spec.md §4.5, low to high) ---

func (p *Parser) parseExpression() parsetree.ParseNode {
	return p.parseOr()
}

func (p *Parser) parseTernaryLevel() parsetree.ParseNode {
	return p.parseOr()
}

func (p *Parser) parseOr() parsetree.ParseNode {
	left := p.parseAnd()
	for p.match(token.LogicalOr) {
		right := p.parseAnd()
		left = p.binary(parsetree.OpLogicalOr, left, right)
	}
	return left
}

func (p *Parser) parseAnd() parsetree.ParseNode {
	left := p.parseComparison()
	for p.match(token.LogicalAnd) {
		right := p.parseComparison()
		left = p.binary(parsetree.OpLogicalAnd, left, right)
	}
	return left
}

// parseComparison builds an n-ary chain for `<`/`≤`/`>`/`≥` so that
// `a < b ≤ c` produces one OpLess node over [a,b,c] with an inclusivity
// bitmask, per spec.md §4.5.
func (p *Parser) parseComparison() parsetree.ParseNode {
	left := p.parseEquality()
	if !p.check(token.Less) && !p.check(token.LessEq) && !p.check(token.Greater) && !p.check(token.GreaterEq) {
		return left
	}
	greaterChain := p.check(token.Greater) || p.check(token.GreaterEq)
	p.tree.PrepareNary()
	p.tree.AddNaryChild(left)
	mask := 0
	step := 0
	for p.check(token.Less) || p.check(token.LessEq) || p.check(token.Greater) || p.check(token.GreaterEq) {
		inclusive := p.check(token.LessEq) || p.check(token.GreaterEq)
		if inclusive {
			mask |= 1 << step
		}
		p.advance()
		rhs := p.parseEquality()
		p.tree.AddNaryChild(rhs)
		step++
	}
	op := parsetree.OpLess
	if greaterChain {
		op = parsetree.OpGreater
	}
	node := p.tree.FinishNary(op, selection.NewSelection(p.tree.Selection(left).Left, p.previous().Sel.Right))
	p.tree.SetFlag(node, mask)
	return node
}

func (p *Parser) parseEquality() parsetree.ParseNode {
	left := p.parseSetOps()
	for p.check(token.Equal) || p.check(token.Approx) || p.check(token.ElementOf) || p.check(token.Subset) || p.check(token.SubsetEq) {
		op := p.tokenOp()
		p.advance()
		right := p.parseSetOps()
		left = p.binary(op, left, right)
	}
	return left
}

func (p *Parser) parseSetOps() parsetree.ParseNode {
	left := p.parseAdditive()
	for p.check(token.Union) || p.check(token.Intersect) {
		op := p.tokenOp()
		p.advance()
		right := p.parseAdditive()
		left = p.binary(op, left, right)
	}
	return left
}

func (p *Parser) parseAdditive() parsetree.ParseNode {
	left := p.parseMultiplicative()
	for p.check(token.Plus) || p.check(token.Minus) {
		op := p.tokenOp()
		p.advance()
		right := p.parseMultiplicative()
		left = p.binary(op, left, right)
	}
	return left
}

func (p *Parser) parseMultiplicative() parsetree.ParseNode {
	left := p.parseLeftUnary()
	for p.isMultiplicativeOp() {
		op := p.tokenOp()
		p.advance()
		right := p.parseLeftUnary()
		left = p.binary(op, left, right)
	}
	return left
}

func (p *Parser) isMultiplicativeOp() bool {
	switch p.peek().Kind {
	case token.Star, token.Slash, token.Backslash, token.Percent, token.Cross, token.Kron, token.Hadamard, token.Compose:
		return true
	}
	return false
}

// parseLeftUnary handles prefix −, ¬, #, and ∇ (with an optional · or ×
// tail forming divergence/curl), per spec.md §4.5.
func (p *Parser) parseLeftUnary() parsetree.ParseNode {
	start := p.here()
	switch {
	case p.match(token.Minus):
		child := p.parseLeftUnary()
		return p.tree.AddLeftUnary(parsetree.OpNegate, start, child)
	case p.match(token.Not):
		child := p.parseLeftUnary()
		return p.tree.AddLeftUnary(parsetree.OpNot, start, child)
	case p.match(token.Hash):
		child := p.parseLeftUnary()
		return p.tree.AddLeftUnary(parsetree.OpLength, start, child)
	case p.match(token.Nabla):
		if p.match(token.Star) {
			child := p.parseLeftUnary()
			return p.tree.AddLeftUnary(parsetree.OpDivergence, start, child)
		}
		if p.match(token.Cross) {
			child := p.parseLeftUnary()
			return p.tree.AddLeftUnary(parsetree.OpCurl, start, child)
		}
		child := p.parseLeftUnary()
		return p.tree.AddLeftUnary(parsetree.OpGradient, start, child)
	default:
		return p.parseImplicitMultiplication()
	}
}

// parseImplicitMultiplication folds adjacent right-unary expressions
// (juxtaposition) into an n-ary implicit-multiplication node, e.g. `2x`
// or `x y`. The actual partitioning of a single multi-character
// identifier into declared single-character factors happens later, in
// resolve (spec.md §4.6); here juxtaposition only applies across
// distinct primaries.
func (p *Parser) parseImplicitMultiplication() parsetree.ParseNode {
	left := p.parseRightUnary()
	if !p.startsRightUnary() {
		return left
	}
	p.tree.PrepareNary()
	p.tree.AddNaryChild(left)
	for p.startsRightUnary() {
		p.tree.AddNaryChild(p.parseRightUnary())
	}
	return p.tree.FinishNary(parsetree.OpImplicitMultiply, selection.NewSelection(p.tree.Selection(left).Left, p.previous().Sel.Right))
}

func (p *Parser) startsRightUnary() bool {
	switch p.peek().Kind {
	case token.Number, token.Identifier, token.LParen, token.LBrace, token.LBracket,
		token.Pipe, token.DPipe, token.Ceil, token.Floor, token.Bra,
		token.ConstructFraction, token.ConstructBinomial, token.ConstructSqrt,
		token.ConstructNthRoot, token.ConstructMatrix, token.ConstructCases,
		token.ConstructLim, token.ConstructIntegral, token.ConstructBigSum,
		token.ConstructBigProd, token.ConstructAccent, token.KwFunc,
		token.KwTrue, token.KwFalse, token.String:
		return true
	}
	return false
}

// parseRightUnary handles postfix !, ^, and subscript/superscript/dual
// scripts, plus a trailing `.` member access.
func (p *Parser) parseRightUnary() parsetree.ParseNode {
	node := p.parsePrimary()
	for {
		switch {
		case p.check(token.LParen) && p.tree.Op(node) == parsetree.OpIdentifier:
			node = p.parseCall(node)
		case p.match(token.Bang):
			node = p.tree.AddRightUnary(parsetree.OpFactorial, p.previous().Sel.Right, node)
		case p.match(token.Caret):
			exp := p.parseRightUnary()
			sel := selection.NewSelection(p.tree.Selection(node).Left, p.tree.Selection(exp).Right)
			node = p.tree.AddNode(parsetree.OpPower, sel, []parsetree.ParseNode{node, exp})
		case p.match(token.Dot):
			rhsTok, _ := p.expect(token.Identifier, codeerr.CodeExpectedExpression)
			rhs := p.tree.AddTerminal(parsetree.OpIdentifier, rhsTok.Sel)
			sel := selection.NewSelection(p.tree.Selection(node).Left, rhsTok.Sel.Right)
			node = p.tree.AddNode(parsetree.OpScopeAccess, sel, []parsetree.ParseNode{node, rhs})
		default:
			return node
		}
	}
}

// parseCall parses the argument list of a call whose head has already
// been parsed as callee (spec.md §4.5 primaries include calls formed
// from an identifier followed directly by a parenthesized arg list).
func (p *Parser) parseCall(callee parsetree.ParseNode) parsetree.ParseNode {
	p.advance() // '('
	args := p.parseArgList(token.RParen)
	closeTok, _ := p.expect(token.RParen, codeerr.CodeExpectedClose)
	children := append([]parsetree.ParseNode{callee}, args...)
	sel := selection.NewSelection(p.tree.Selection(callee).Left, closeTok.Sel.Right)
	return p.tree.AddNode(parsetree.OpCall, sel, children)
}

func (p *Parser) binary(op parsetree.Op, left, right parsetree.ParseNode) parsetree.ParseNode {
	sel := selection.NewSelection(p.tree.Selection(left).Left, p.tree.Selection(right).Right)
	return p.tree.AddNode(op, sel, []parsetree.ParseNode{left, right})
}

func (p *Parser) tokenOp() parsetree.Op {
	switch p.peek().Kind {
	case token.Plus:
		return parsetree.OpAdd
	case token.Minus:
		return parsetree.OpSubtract
	case token.Star:
		return parsetree.OpMultiply
	case token.Slash:
		return parsetree.OpDivide
	case token.Backslash:
		return parsetree.OpBackslash
	case token.Percent:
		return parsetree.OpModulus
	case token.Cross:
		return parsetree.OpCross
	case token.Kron:
		return parsetree.OpKronecker
	case token.Hadamard:
		return parsetree.OpHadamard
	case token.Compose:
		return parsetree.OpCompose
	case token.Equal:
		return parsetree.OpEqual
	case token.Approx:
		return parsetree.OpApprox
	case token.ElementOf:
		return parsetree.OpElementOf
	case token.Subset:
		return parsetree.OpSubset
	case token.SubsetEq:
		return parsetree.OpSubsetEq
	case token.Union:
		return parsetree.OpUnion
	case token.Intersect:
		return parsetree.OpIntersect
	default:
		return parsetree.OpInvalid
	}
}

// --- primaries (spec.md §4.5) ---

func (p *Parser) parsePrimary() parsetree.ParseNode {
	start := p.here()
	tok := p.peek()

	switch tok.Kind {
	case token.Number:
		p.advance()
		return p.numberLiteral(tok)
	case token.String:
		p.advance()
		return p.tree.AddTerminal(parsetree.OpString, tok.Sel)
	case token.KwTrue:
		p.advance()
		return p.tree.AddTerminal(parsetree.OpTrue, tok.Sel)
	case token.KwFalse:
		p.advance()
		return p.tree.AddTerminal(parsetree.OpFalse, tok.Sel)
	case token.Identifier:
		p.advance()
		return p.tree.AddTerminal(parsetree.OpIdentifier, tok.Sel)
	case token.KwFunc:
		return p.parseKeywordFuncCall()
	case token.LParen:
		return p.parseParenGroup(start)
	case token.LBrace:
		return p.parseSetLiteral(start)
	case token.LBracket:
		return p.parseSetLiteral(start)
	case token.Pipe:
		return p.parseAbs(start)
	case token.DPipe:
		return p.parseNorm(start)
	case token.Ceil, token.Floor:
		return p.parseCeilFloor(start, tok)
	case token.ConstructFraction:
		return p.parseBinaryConstruct(parsetree.OpFraction)
	case token.ConstructBinomial:
		return p.parseBinaryConstruct(parsetree.OpBinomial)
	case token.ConstructSqrt:
		return p.parseUnaryConstruct(parsetree.OpSqrt)
	case token.ConstructNthRoot:
		return p.parseBinaryConstruct(parsetree.OpNthRoot)
	case token.ConstructMatrix:
		return p.parseMatrix(tok)
	case token.ConstructCases:
		return p.parseCases(tok)
	case token.ConstructLim:
		return p.parseNaryConstruct(parsetree.OpLimit, 3)
	case token.ConstructIntegral:
		return p.parseNaryConstruct(parsetree.OpDefiniteIntegral, 4)
	case token.ConstructBigSum:
		return p.parseNaryConstruct(parsetree.OpBigSum, 4)
	case token.ConstructBigProd:
		return p.parseNaryConstruct(parsetree.OpBigProd, 4)
	case token.ConstructAccent:
		return p.parseBinaryConstruct(parsetree.OpAccent)
	default:
		p.fail(codeerr.CodeExpectedExpression)
		return p.tree.AddTerminal(parsetree.OpError, tok.Sel)
	}
}

func (p *Parser) numberLiteral(tok token.Token) parsetree.ParseNode {
	n := p.tree.AddTerminal(parsetree.OpNumber, tok.Sel)
	p.tree.SetDouble(n, parseFloat(tok.Text))
	p.tree.SetScalar(n)
	return n
}

func (p *Parser) parseKeywordFuncCall() parsetree.ParseNode {
	tok := p.advance()
	op := keywordFuncOps[tok.Text]
	p.expect(token.LParen, codeerr.CodeExpectedExpression)
	args := p.parseArgList(token.RParen)
	closeTok, _ := p.expect(token.RParen, codeerr.CodeExpectedClose)
	return p.tree.AddNode(op, selection.NewSelection(tok.Sel.Left, closeTok.Sel.Right), args)
}

var keywordFuncOps = map[string]parsetree.Op{
	"sin": parsetree.OpSin, "cos": parsetree.OpCos, "tan": parsetree.OpTan,
	"arcsin": parsetree.OpArcsin, "arccos": parsetree.OpArccos, "arctan": parsetree.OpArctan,
	"sinh": parsetree.OpSinh, "cosh": parsetree.OpCosh, "tanh": parsetree.OpTanh,
	"sgn": parsetree.OpSgn, "length": parsetree.OpLength, "rows": parsetree.OpRows, "cols": parsetree.OpCols,
	"log": parsetree.OpLog, "exp": parsetree.OpExp, "erf": parsetree.OpErf, "erfc": parsetree.OpErfc,
}

func (p *Parser) parseParenGroup(start selection.Marker) parsetree.ParseNode {
	open := p.advance() // '('
	expr := p.parseExpression()

	if p.check(token.Comma) {
		// A bare comma-list in a parenthesized group that is not a call
		// (calls are parsed directly off an identifier primary) becomes
		// a grouped tuple/list literal.
		children := []parsetree.ParseNode{expr}
		for p.match(token.Comma) {
			children = append(children, p.parseExpression())
		}
		closeTok, _ := p.expect(token.RParen, codeerr.CodeExpectedClose)
		p.groupings = append(p.groupings, Grouping{Open: open.Sel.Left, Close: closeTok.Sel.Right})
		return p.tree.AddNode(parsetree.OpList, selection.NewSelection(start, closeTok.Sel.Right), children)
	}

	closeTok, _ := p.expect(token.RParen, codeerr.CodeExpectedClose)
	p.groupings = append(p.groupings, Grouping{Open: open.Sel.Left, Close: closeTok.Sel.Right})
	p.tree.SetSelection(expr, selection.NewSelection(start, closeTok.Sel.Right))
	return expr
}

func (p *Parser) parseSetLiteral(start selection.Marker) parsetree.ParseNode {
	open := p.advance()
	closing := token.RBrace
	if open.Kind == token.LBracket {
		closing = token.RBracket
	}
	children := p.parseArgList(closing)
	closeTok, _ := p.expect(closing, codeerr.CodeExpectedClose)
	p.groupings = append(p.groupings, Grouping{Open: open.Sel.Left, Close: closeTok.Sel.Right})
	return p.tree.AddNode(parsetree.OpList, selection.NewSelection(start, closeTok.Sel.Right), children)
}

func (p *Parser) parseAbs(start selection.Marker) parsetree.ParseNode {
	p.advance() // '|'
	inner := p.parseExpression()
	closeTok, _ := p.expect(token.Pipe, codeerr.CodeExpectedClose)
	return p.tree.AddUnary(parsetree.OpAbs, selection.NewSelection(start, closeTok.Sel.Right), inner)
}

func (p *Parser) parseNorm(start selection.Marker) parsetree.ParseNode {
	p.advance() // '‖'
	inner := p.parseExpression()
	closeTok, _ := p.expect(token.DPipe, codeerr.CodeExpectedClose)
	return p.tree.AddUnary(parsetree.OpNorm, selection.NewSelection(start, closeTok.Sel.Right), inner)
}

// parseCeilFloor handles ⌈…⌉ and ⌊…⌋. Both bracket kinds scan to the
// same token.Ceil/token.Floor kind for open and close, distinguished
// only by glyph, so the close delimiter is the open token's own kind.
func (p *Parser) parseCeilFloor(start selection.Marker, open token.Token) parsetree.ParseNode {
	p.advance()
	inner := p.parseExpression()
	closeTok, _ := p.expect(open.Kind, codeerr.CodeExpectedClose)
	op := parsetree.OpCeil
	if open.Kind == token.Floor {
		op = parsetree.OpFloor
	}
	return p.tree.AddUnary(op, selection.NewSelection(start, closeTok.Sel.Right), inner)
}

func (p *Parser) parseBinaryConstruct(op parsetree.Op) parsetree.ParseNode {
	tok := p.advance()
	a := p.parseExpression()
	p.expect(token.ArgClose, codeerr.CodeExpectedClose)
	b := p.parseExpression()
	closeTok, _ := p.expect(token.ArgClose, codeerr.CodeExpectedClose)
	return p.tree.AddNode(op, selection.NewSelection(tok.Sel.Left, closeTok.Sel.Right), []parsetree.ParseNode{a, b})
}

func (p *Parser) parseUnaryConstruct(op parsetree.Op) parsetree.ParseNode {
	tok := p.advance()
	a := p.parseExpression()
	closeTok, _ := p.expect(token.ArgClose, codeerr.CodeExpectedClose)
	return p.tree.AddUnary(op, selection.NewSelection(tok.Sel.Left, closeTok.Sel.Right), a)
}

func (p *Parser) parseNaryConstruct(op parsetree.Op, n int) parsetree.ParseNode {
	tok := p.advance()
	var children []parsetree.ParseNode
	var last token.Token
	for i := 0; i < n; i++ {
		children = append(children, p.parseExpression())
		last, _ = p.expect(token.ArgClose, codeerr.CodeExpectedClose)
	}
	return p.tree.AddNode(op, selection.NewSelection(tok.Sel.Left, last.Sel.Right), children)
}

// parseMatrix expects rows*cols expressions, each terminated by
// ARGCLOSE, matching the header already scanned into tok. A 1×1 matrix
// is reported as CodeMalformedConstruct; there is no dedicated
// scalar-matrix error code.
func (p *Parser) parseMatrix(tok token.Token) parsetree.ParseNode {
	p.advance()
	n := tok.Rows * tok.Cols
	var children []parsetree.ParseNode
	var last token.Token
	for i := 0; i < n; i++ {
		children = append(children, p.parseExpression())
		last, _ = p.expect(token.ArgClose, codeerr.CodeExpectedClose)
	}
	node := p.tree.AddNode(parsetree.OpMatrix, selection.NewSelection(tok.Sel.Left, last.Sel.Right), children)
	p.tree.SetDims(node, tok.Rows, tok.Cols)
	if tok.Rows == 1 && tok.Cols == 1 {
		p.errs.Fail(p.tree.Selection(node), codeerr.CodeMalformedConstruct)
	}
	return node
}

func (p *Parser) parseCases(tok token.Token) parsetree.ParseNode {
	p.advance()
	var children []parsetree.ParseNode
	var last token.Token
	for i := 0; i < tok.NumArgs; i++ {
		children = append(children, p.parseExpression())
		last, _ = p.expect(token.ArgClose, codeerr.CodeExpectedClose)
	}
	return p.tree.AddNode(parsetree.OpCases, selection.NewSelection(tok.Sel.Left, last.Sel.Right), children)
}

func parseFloat(s string) float64 {
	var v float64
	var frac float64 = 1
	seenDot := false
	for _, c := range s {
		if c == '.' {
			seenDot = true
			continue
		}
		d := float64(c - '0')
		if seenDot {
			frac /= 10
			v += d * frac
		} else {
			v = v*10 + d
		}
	}
	return v
}
