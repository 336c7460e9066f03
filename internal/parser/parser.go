// Package parser turns a token.Token stream into an *ast.Program.
//
// The parser follows spec.md §4.2's operator-precedence table with a
// standard precedence-climbing recursive descent, generalizing the
// shape of the math-compiler teacher (which walks a flat token slice
// once) to a full statement/expression grammar with lookahead. Articles
// ("a"/"an"/"the") are accepted and discarded wherever spec.md says they
// don't change meaning; sentence discipline (a period closes every
// action the current construct opened) is tracked via an explicit
// comma-separated action list, mirroring spec.md §4.2's "Sentence
// discipline".
package parser

import (
	"fmt"
	"strings"

	"github.com/ec-lang/ec/internal/ast"
	"github.com/ec-lang/ec/internal/lexer"
	"github.com/ec-lang/ec/internal/token"
	"github.com/ec-lang/ec/internal/types"
)

// Error is a single parse failure with source position.
type Error struct {
	Message string
	Pos     ast.Position
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// Parser consumes tokens from a lexer.Lexer and builds an *ast.Program.
type Parser struct {
	lex    *lexer.Lexer
	buf    []token.Token
	errors []*Error
}

// New creates a Parser reading from l.
func New(l *lexer.Lexer) *Parser {
	return &Parser{lex: l}
}

// Errors returns every parse error accumulated so far.
func (p *Parser) Errors() []*Error {
	return p.errors
}

// ---- token-stream plumbing --------------------------------------------

func (p *Parser) fill(n int) {
	for len(p.buf) <= n {
		p.buf = append(p.buf, p.lex.NextToken())
	}
}

func (p *Parser) cur() token.Token {
	p.fill(0)
	return p.buf[0]
}

func (p *Parser) peek(n int) token.Token {
	p.fill(n)
	return p.buf[n]
}

func (p *Parser) advance() token.Token {
	p.fill(0)
	t := p.buf[0]
	p.buf = p.buf[1:]
	return t
}

func (p *Parser) pos() ast.Position {
	t := p.cur()
	return ast.Position{Line: t.Line, Column: t.Column}
}

func (p *Parser) errorf(format string, args ...any) {
	p.errors = append(p.errors, &Error{Message: fmt.Sprintf(format, args...), Pos: p.pos()})
}

func (p *Parser) isKeyword(word string) bool {
	t := p.cur()
	return t.Kind == token.KEYWORD && t.Lexeme == word
}

func (p *Parser) peekIsKeyword(n int, word string) bool {
	t := p.peek(n)
	return t.Kind == token.KEYWORD && t.Lexeme == word
}

// expectKeyword consumes the current token if it is the given keyword,
// otherwise records an error and leaves the cursor unmoved.
func (p *Parser) expectKeyword(word string) bool {
	if p.isKeyword(word) {
		p.advance()
		return true
	}
	p.errorf("expected %q, found %q", word, p.cur().Raw)
	return false
}

// skipArticle discards a leading "a"/"an"/"the": spec.md §4.2 - "both
// are accepted before identifiers in expressions without changing
// meaning".
func (p *Parser) skipArticle() {
	if p.isKeyword("a") || p.isKeyword("an") || p.isKeyword("the") {
		p.advance()
	}
}

func (p *Parser) expectDot() bool {
	if p.cur().Kind == token.DOT {
		p.advance()
		return true
	}
	p.errorf("expected '.', found %q", p.cur().Raw)
	return false
}

// identifierName consumes a name, accepting either a quoted string or a
// bare identifier token (spec.md §4.2: "the function name may be quoted
// or an unquoted single token").
func (p *Parser) identifierName() (string, bool) {
	t := p.cur()
	if t.Kind == token.STRING || t.Kind == token.IDENT {
		p.advance()
		return t.Raw, true
	}
	p.errorf("expected a name, found %q", t.Raw)
	return "", false
}

// ---- top level ----------------------------------------------------------

// ParseProgram parses the whole token stream into a Program. Parse
// errors are recorded via Errors(); the returned Program may be partial
// when errors occurred.
func (p *Parser) ParseProgram() *ast.Program {
	prog := &ast.Program{}

	for p.cur().Kind != token.EOF {
		if p.isKeyword("to") {
			if fn := p.parseFunctionDecl(); fn != nil {
				prog.Functions = append(prog.Functions, fn)
			}
			continue
		}

		before := p.cur()
		prog.TopLevel = append(prog.TopLevel, p.parseActionList()...)
		if p.cur() == before && p.cur().Kind != token.EOF {
			// Unrecoverable input: force progress rather than spin.
			p.advance()
		}
	}

	return prog
}

// atTopLevelBoundary reports whether the cursor sits at the start of a
// new top-level construct (a function header) or EOF - the condition
// that ends a function body (see DESIGN.md: chosen in place of spec.md
// §4.2's "blank line" alternative, which isn't observable once
// whitespace has been discarded by the lexer).
func (p *Parser) atTopLevelBoundary() bool {
	return p.cur().Kind == token.EOF || p.isKeyword("to")
}

func (p *Parser) parseFunctionDecl() *ast.FuncDecl {
	pos := p.pos()
	p.advance() // "to"

	name, ok := p.identifierName()
	if !ok {
		return nil
	}

	fn := &ast.FuncDecl{Position: pos, Name: name}

	if p.isKeyword("with") {
		p.advance()
		for {
			p.skipArticle()
			paramType, ok := p.parseTypeWord()
			if !ok {
				break
			}
			if !p.expectKeyword("called") {
				break
			}
			paramName, ok := p.identifierName()
			if !ok {
				break
			}
			fn.Params = append(fn.Params, ast.Param{Name: paramName, Type: paramType})

			if p.isKeyword("and") {
				p.advance()
				continue
			}
			break
		}
	}

	p.expectDot()

	if p.isKeyword("return") {
		p.advance()
		p.skipArticle()
		retType, ok := p.parseTypeWord()
		if ok {
			fn.ReturnType = retType
		}
	}

	if p.cur().Kind == token.COMMA {
		p.advance()
		fn.Body = append(fn.Body, p.parseActionList()...)
	} else {
		p.expectDot()
	}

	for !p.atTopLevelBoundary() {
		before := p.cur()
		fn.Body = append(fn.Body, p.parseActionList()...)
		if p.cur() == before && !p.atTopLevelBoundary() {
			p.advance()
		}
	}

	return fn
}

// parseTypeWord consumes one of EC's type-name keywords, handling the
// "list of <elem>" compound form.
func (p *Parser) parseTypeWord() (types.Type, bool) {
	t := p.cur()
	if t.Kind != token.KEYWORD {
		p.errorf("expected a type name, found %q", t.Raw)
		return types.TUnknown, false
	}

	switch t.Lexeme {
	case "number":
		p.advance()
		return types.TInteger, true
	case "float":
		p.advance()
		return types.TFloat, true
	case "text":
		p.advance()
		return types.TString, true
	case "boolean":
		p.advance()
		return types.TBoolean, true
	case "buffer":
		p.advance()
		return types.TBuffer, true
	case "file":
		p.advance()
		return types.TFile, true
	case "time":
		p.advance()
		return types.TTime, true
	case "timer":
		p.advance()
		return types.TTimer, true
	case "list":
		p.advance()
		if p.isKeyword("of") {
			p.advance()
			elem, ok := p.parseTypeWord()
			if !ok {
				return types.TUnknown, false
			}
			return types.ListOf(elem), true
		}
		return types.ListOf(types.TUnknown), true
	default:
		p.errorf("expected a type name, found %q", t.Raw)
		return types.TUnknown, false
	}
}

// ---- action lists (sentence discipline) --------------------------------

// parseActionList parses comma-separated actions until the terminating
// period (spec.md §4.2 "Sentence discipline"), returning every action as
// a Stmt. The terminating period is consumed.
//
// while/if/for-each are themselves complete sentences with their own
// internal comma-joined body parsed the same way, so a while/if/for
// action is always the entire list: once one of those is parsed, it has
// already consumed its own terminating period and parseActionList must
// not look for a second one.
func (p *Parser) parseActionList() []ast.Stmt {
	var actions []ast.Stmt

	for {
		selfTerminating := p.isKeyword("while") || p.isKeyword("if") || p.isKeyword("for")

		stmt := p.parseAction()
		if stmt != nil {
			actions = append(actions, stmt)
		}

		if selfTerminating {
			return actions
		}

		if p.cur().Kind == token.COMMA {
			p.advance()
			continue
		}
		break
	}

	p.expectDot()
	return actions
}

// parseAction parses one comma-separated action inside an open
// construct. It never consumes the sentence's terminating period itself
// (the enclosing parseActionList owns that), except for the handful of
// constructs - while/if/for-each - that are always a complete sentence
// on their own.
func (p *Parser) parseAction() ast.Stmt {
	return p.parseStatementBody()
}

// parseClauseBody parses the ", action, action, ...." tail that follows
// a condition or header (while/if/for-each/or-if/otherwise), consuming
// the leading comma when a body is present. A clause with no comma has
// an empty body and the sentence ends right there.
func (p *Parser) parseClauseBody() []ast.Stmt {
	if p.cur().Kind == token.COMMA {
		p.advance()
		return p.parseActionList()
	}
	p.expectDot()
	return nil
}

// ---- statements -----------------------------------------------------------

func (p *Parser) parseStatementBody() ast.Stmt {
	t := p.cur()

	if t.Kind == token.KEYWORD {
		switch t.Lexeme {
		case "a", "an":
			return p.parseVarDecl()
		case "the":
			return p.parseAssignment()
		case "print":
			return p.parsePrint()
		case "if":
			return p.parseIf()
		case "while":
			return p.parseWhile()
		case "for":
			return p.parseForEach()
		case "return":
			return p.parseReturn()
		case "increment":
			return p.parseIncDec(ast.OpIncrement)
		case "decrement":
			return p.parseIncDec(ast.OpDecrement)
		case "break":
			pos := p.pos()
			p.advance()
			return &ast.Break{Position: pos}
		case "continue":
			pos := p.pos()
			p.advance()
			return &ast.Continue{Position: pos}
		case "exit":
			return p.parseExit()
		case "open":
			return p.parseFileOpen()
		case "read":
			return p.parseFileReadInto()
		case "write":
			return p.parseFileWrite()
		case "close":
			return p.parseFileClose()
		case "delete":
			return p.parseFileDelete()
		case "wait", "sleep":
			return p.parseWait()
		case "create":
			return p.parseCreate()
		case "set":
			return p.parseByteSet()
		case "resize":
			return p.parseResize()
		case "append":
			return p.parseListAppend()
		case "get":
			return p.parseGetCurrentTime()
		case "start":
			return p.parseTimerStart()
		case "stop":
			return p.parseTimerStop()
		case "on":
			return p.parseOnError()
		}
	}

	if t.Kind == token.IDENT {
		return p.parseAssignment()
	}

	p.errorf("unexpected token %q at start of statement", t.Raw)
	return nil
}

func (p *Parser) parseVarDecl() ast.Stmt {
	pos := p.pos()
	p.advance() // a/an

	typ, ok := p.parseTypeWord()
	if !ok {
		return nil
	}
	if !p.expectKeyword("called") {
		return nil
	}
	name, ok := p.identifierName()
	if !ok {
		return nil
	}

	decl := &ast.VarDecl{Position: pos, Name: name, Type: typ}
	if p.isKeyword("is") {
		p.advance()
		decl.Init = p.parseExpression()
	}
	return decl
}

func (p *Parser) parseAssignment() ast.Stmt {
	pos := p.pos()
	p.skipArticle()
	name, ok := p.identifierName()
	if !ok {
		return nil
	}
	if !p.expectKeyword("is") {
		return nil
	}
	value := p.parseExpression()
	return &ast.Assign{Position: pos, Name: name, Value: value}
}

func (p *Parser) parsePrint() ast.Stmt {
	pos := p.pos()
	p.advance() // "print"

	if p.isKeyword("each") {
		return p.parseLoopExpansion(pos, "print")
	}

	value := p.parseExpression()
	pr := &ast.Print{Position: pos, Value: value}

	for p.cur().Kind == token.COMMA {
		if p.peekIsKeyword(1, "without") {
			p.advance() // comma
			p.advance() // without
			p.expectKeyword("newline")
			pr.NoNewline = true
			continue
		}
		if p.peekIsKeyword(1, "but") {
			p.advance() // comma
			p.advance() // but
			p.expectKeyword("if")
			cond := p.parseComparison()
			p.expectKeyword("print")
			val := p.parseExpression()
			pr.ButIf = append(pr.ButIf, ast.ButIfClause{Cond: cond, Value: val})
			continue
		}
		break
	}

	return pr
}

func (p *Parser) parseIf() ast.Stmt {
	pos := p.pos()
	p.advance() // "if"
	cond := p.parseComparison()
	stmt := &ast.If{Position: pos, Cond: cond}
	stmt.Then = p.parseClauseBody()

	for p.isKeyword("or-if") || (p.isKeyword("otherwise") && p.peekIsKeyword(1, "if")) {
		if p.isKeyword("otherwise") {
			p.advance()
		}
		p.advance() // "or-if" or "if"
		elseCond := p.parseComparison()
		branch := ast.ElseIf{Cond: elseCond, Body: p.parseClauseBody()}
		stmt.ElseIfs = append(stmt.ElseIfs, branch)
	}

	if p.isKeyword("otherwise") {
		p.advance()
		stmt.Else = p.parseClauseBody()
	}

	return stmt
}

func (p *Parser) parseWhile() ast.Stmt {
	pos := p.pos()
	p.advance() // "while"
	cond := p.parseComparison()
	stmt := &ast.While{Position: pos, Cond: cond}
	stmt.Body = p.parseClauseBody()
	return stmt
}

// parseForEach parses the dedicated "for each X from Y, <actions>."
// statement (spec.md §3).
func (p *Parser) parseForEach() ast.Stmt {
	pos := p.pos()
	p.advance() // "for"
	if !p.expectKeyword("each") {
		return nil
	}
	return p.parseForEachTail(pos)
}

// parseLoopExpansion parses "<verb> each X from Y [inline clauses]"
// (spec.md §4.2, §4.4), lifting the already-consumed verb into a
// single-statement ForEach body.
func (p *Parser) parseLoopExpansion(pos ast.Position, verb string) ast.Stmt {
	p.advance() // "each"
	return p.parseForEachTail(pos, verb)
}

// parseForEachTail parses "X from <collection> [, inline clauses]" after
// "for each"/"<verb> each" has already been consumed. When sugarVerb is
// non-empty, the loop body is synthesized as a single action of that
// verb applied to the iterator, and inline "but if"/"treating" clauses
// are accepted; otherwise the body is a full comma-separated action
// list (the dedicated for-each form).
func (p *Parser) parseForEachTail(pos ast.Position, sugarVerb ...string) ast.Stmt {
	iterName, ok := p.identifierName()
	if !ok {
		return nil
	}
	if !p.expectKeyword("from") {
		return nil
	}
	collection := p.parseCollection()

	fe := &ast.ForEach{Position: pos, Iterator: iterName, Collection: collection}

	if len(sugarVerb) == 0 {
		fe.Body = p.parseClauseBody()
		return fe
	}

	verb := sugarVerb[0]
	loopVar := &ast.LoopVar{Position: pos, Name: iterName}

	for p.cur().Kind == token.COMMA {
		if p.peekIsKeyword(1, "treating") {
			p.advance() // comma
			p.advance() // treating
			match := p.parseAdditive()
			p.expectKeyword("as")
			repl := p.parseAdditive()
			fe.Treating = append(fe.Treating, ast.TreatingClause{Match: match, Replacement: repl})
			continue
		}
		if p.peekIsKeyword(1, "but") {
			p.advance() // comma
			p.advance() // but
			p.expectKeyword("if")
			cond := p.parseComparison()
			p.expectKeyword(verb)
			val := p.parseExpression()
			fe.ButIf = append(fe.ButIf, ast.ButIfClause{Cond: cond, Value: val})
			continue
		}
		break
	}

	switch verb {
	case "print":
		fe.Body = []ast.Stmt{&ast.Print{Position: pos, Value: loopVar, ButIf: fe.ButIf}}
		fe.ButIf = nil
	default:
		fe.Body = []ast.Stmt{&ast.Assign{Position: pos, Name: iterName, Value: loopVar}}
	}

	return fe
}

// parseCollection parses a for-each collection: a numeric range ("1 to
// 15"), or any other expression (a list variable, arguments's all, the
// environment, ...). The parser does not distinguish range from list;
// that is the analyzer's job (spec.md §4.2).
func (p *Parser) parseCollection() ast.Expr {
	start := p.parseAdditive()
	if p.isKeyword("to") {
		p.advance()
		end := p.parseAdditive()
		return &ast.RangeExpr{Position: start.Pos(), From: start, To: end}
	}
	return start
}

func (p *Parser) parseReturn() ast.Stmt {
	pos := p.pos()
	p.advance()
	value := p.parseExpression()
	return &ast.Return{Position: pos, Value: value}
}

func (p *Parser) parseIncDec(op ast.IncDecOp) ast.Stmt {
	pos := p.pos()
	p.advance()
	p.skipArticle()
	name, ok := p.identifierName()
	if !ok {
		return nil
	}
	return &ast.IncDec{Position: pos, Name: name, Op: op}
}

func (p *Parser) parseExit() ast.Stmt {
	pos := p.pos()
	p.advance()
	code := p.parseExpression()
	return &ast.Exit{Position: pos, Code: code}
}

// parseFileOpen parses "open a file for {reading|writing|appending}
// called N at P", accepting the reading/writing/appending, called, and
// at clauses in any order (spec.md §4.2: "Clauses within `open` are
// order-independent and any-order").
func (p *Parser) parseFileOpen() ast.Stmt {
	pos := p.pos()
	p.advance() // "open"
	p.skipArticle()
	p.expectKeyword("file")

	stmt := &ast.FileOpen{Position: pos}
	seenMode, seenName, seenPath := false, false, false

	for i := 0; i < 3; i++ {
		switch {
		case p.isKeyword("for") && !seenMode:
			p.advance()
			switch {
			case p.isKeyword("reading"):
				stmt.Mode = ast.FileRead
			case p.isKeyword("writing"):
				stmt.Mode = ast.FileWrite
			case p.isKeyword("appending"):
				stmt.Mode = ast.FileAppend
			default:
				p.errorf("expected reading/writing/appending, found %q", p.cur().Raw)
			}
			p.advance()
			seenMode = true

		case p.isKeyword("called") && !seenName:
			p.advance()
			name, ok := p.identifierName()
			if ok {
				stmt.Name = name
			}
			seenName = true

		case p.isKeyword("at") && !seenPath:
			p.advance()
			stmt.Path = p.parseExpression()
			seenPath = true

		default:
			return stmt
		}
	}

	return stmt
}

func (p *Parser) parseFileReadInto() ast.Stmt {
	pos := p.pos()
	p.advance() // "read"
	p.expectKeyword("from")
	source := p.parseExpression()
	p.expectKeyword("into")
	name, _ := p.identifierName()
	return &ast.FileReadInto{Position: pos, Source: source, Into: name}
}

func (p *Parser) parseFileWrite() ast.Stmt {
	pos := p.pos()
	p.advance() // "write"
	value := p.parseAdditive()
	p.expectKeyword("to")
	target := p.parseExpression()
	return &ast.FileWriteStmt{Position: pos, Value: value, Target: target}
}

func (p *Parser) parseFileClose() ast.Stmt {
	pos := p.pos()
	p.advance() // "close"
	file := p.parseExpression()
	return &ast.FileCloseStmt{Position: pos, File: file}
}

func (p *Parser) parseFileDelete() ast.Stmt {
	pos := p.pos()
	p.advance() // "delete"
	p.skipArticle()
	p.expectKeyword("file")
	path := p.parseExpression()
	return &ast.FileDeleteStmt{Position: pos, Path: path}
}

func (p *Parser) parseWait() ast.Stmt {
	pos := p.pos()
	p.advance() // wait/sleep
	dur := p.parseAdditive()
	unit := "second"
	if p.isKeyword("millisecond") || p.isKeyword("milliseconds") {
		unit = "millisecond"
		p.advance()
	} else if p.isKeyword("second") || p.isKeyword("seconds") {
		p.advance()
	}
	return &ast.Wait{Position: pos, Duration: dur, Unit: unit}
}

// parseCreate dispatches "create a [dynamic|fixed] buffer called N [of S
// bytes]" and "create a timer called N".
func (p *Parser) parseCreate() ast.Stmt {
	pos := p.pos()
	p.advance() // "create"
	p.skipArticle()

	kind := ast.BufferDynamic
	if p.cur().Kind == token.IDENT && (p.cur().Raw == "fixed" || p.cur().Raw == "dynamic") {
		if p.cur().Raw == "fixed" {
			kind = ast.BufferFixed
		}
		p.advance()
	}

	switch {
	case p.isKeyword("buffer"):
		p.advance()
		p.expectKeyword("called")
		name, _ := p.identifierName()
		stmt := &ast.BufferCreate{Position: pos, Name: name, Kind: kind}
		if p.isKeyword("of") {
			p.advance()
			stmt.Size = p.parseAdditive()
			p.expectKeyword("bytes")
		}
		return stmt

	case p.isKeyword("timer"):
		p.advance()
		p.expectKeyword("called")
		name, _ := p.identifierName()
		return &ast.TimerCreate{Position: pos, Name: name}

	default:
		p.errorf("expected 'buffer' or 'timer' after 'create', found %q", p.cur().Raw)
		return nil
	}
}

func (p *Parser) parseByteSet() ast.Stmt {
	pos := p.pos()
	p.advance() // "set"
	p.expectKeyword("byte")
	idx := p.parseAdditive()
	p.expectKeyword("of")
	buf := p.parseExpression()
	p.expectKeyword("to")
	val := p.parseExpression()
	return &ast.ByteSet{Position: pos, Buffer: buf, Index: idx, Value: val}
}

func (p *Parser) parseResize() ast.Stmt {
	pos := p.pos()
	p.advance() // "resize"
	buf := p.parseAdditive()
	p.expectKeyword("to")
	size := p.parseAdditive()
	p.expectKeyword("bytes")
	return &ast.BufferResize{Position: pos, Buffer: buf, Size: size}
}

func (p *Parser) parseListAppend() ast.Stmt {
	pos := p.pos()
	p.advance() // "append"
	value := p.parseAdditive()
	p.expectKeyword("to")
	list := p.parseExpression()
	return &ast.ListAppend{Position: pos, List: list, Value: value}
}

func (p *Parser) parseGetCurrentTime() ast.Stmt {
	pos := p.pos()
	p.advance() // "get"
	p.expectKeyword("current")
	p.expectKeyword("time")
	p.expectKeyword("into")
	name, _ := p.identifierName()
	return &ast.GetCurrentTime{Position: pos, Into: name}
}

func (p *Parser) parseTimerStart() ast.Stmt {
	pos := p.pos()
	p.advance() // "start"
	timer := p.parseExpression()
	return &ast.TimerStart{Position: pos, Timer: timer}
}

func (p *Parser) parseTimerStop() ast.Stmt {
	pos := p.pos()
	p.advance() // "stop"
	timer := p.parseExpression()
	return &ast.TimerStop{Position: pos, Timer: timer}
}

func (p *Parser) parseOnError() ast.Stmt {
	pos := p.pos()
	p.advance() // "on"
	p.expectKeyword("error")
	if p.cur().Kind == token.COMMA {
		p.advance()
	}
	actions := p.parseActionListNoDot()
	return &ast.OnErrorStmt{Position: pos, Actions: actions}
}

// parseActionListNoDot is parseActionList without consuming the
// terminating period, used when the "on error" clause is itself nested
// inside the enclosing sentence (e.g. as a standalone statement that
// still ends the surrounding construct's period).
func (p *Parser) parseActionListNoDot() []ast.Stmt {
	var actions []ast.Stmt
	for {
		stmt := p.parseAction()
		if stmt != nil {
			actions = append(actions, stmt)
		}
		if p.cur().Kind == token.COMMA {
			p.advance()
			continue
		}
		break
	}
	return actions
}

// ---- expressions --------------------------------------------------------

// ParseExpression is exported for tests and for tools (e.g. --dump-ir)
// that want to parse a single expression in isolation.
func (p *Parser) ParseExpression() ast.Expr {
	return p.parseExpression()
}

func (p *Parser) parseExpression() ast.Expr {
	return p.parseOr()
}

func (p *Parser) parseOr() ast.Expr {
	left := p.parseAnd()
	for p.isKeyword("or") {
		pos := p.pos()
		p.advance()
		right := p.parseAnd()
		left = &ast.Binary{Position: pos, Op: ast.OpOr, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseAnd() ast.Expr {
	left := p.parseUnaryNot()
	for p.isKeyword("and") {
		pos := p.pos()
		p.advance()
		right := p.parseUnaryNot()
		left = &ast.Binary{Position: pos, Op: ast.OpAnd, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseUnaryNot() ast.Expr {
	if p.isKeyword("not") {
		pos := p.pos()
		p.advance()
		operand := p.parseUnaryNot()
		return &ast.Unary{Position: pos, Op: ast.OpNot, Operand: operand}
	}
	return p.parseComparison()
}

// parseComparison implements both singular comparisons ("X is
// greater than Y") and spec.md §4.2's plural comparison sugar
// ("a, b, and c are P" => conjunction of per-operand comparisons).
func (p *Parser) parseComparison() ast.Expr {
	pos := p.pos()
	left := p.parseAdditive()

	operands := []ast.Expr{left}
	// A comma continues a plural comparison only when the operands after
	// it run up to "are"; otherwise it separates the next action.
	plural := false
	for i := 0; p.peek(i).Kind == token.COMMA; {
		i++
		if p.peekIsKeyword(i, "and") {
			i++
		}
		i++ // the operand
		if p.peekIsKeyword(i, "are") {
			plural = true
			break
		}
	}
	for plural && p.cur().Kind == token.COMMA {
		p.advance()
		if p.isKeyword("and") {
			p.advance()
		}
		operands = append(operands, p.parseAdditive())
	}

	if !p.isKeyword("is") && !p.isKeyword("are") {
		if len(operands) > 1 {
			p.errorf("expected 'is'/'are' to complete a plural comparison")
		}
		return left
	}
	p.advance() // is/are

	pred := p.parsePredicate()

	result := pred.apply(operands[0], pos)
	for _, o := range operands[1:] {
		result = &ast.Binary{Position: pos, Op: ast.OpAnd, Left: result, Right: pred.apply(o, pos)}
	}
	return result
}

// predicate captures everything after "is"/"are" in a comparison, so it
// can be applied once per operand in the plural-comparison case.
type predicate struct {
	negate      bool
	op          ast.BinOp
	rhs         ast.Expr
	divisibleBy bool
}

func (pr predicate) apply(left ast.Expr, pos ast.Position) ast.Expr {
	if pr.divisibleBy {
		mod := &ast.Binary{Position: pos, Op: ast.OpMod, Left: left, Right: pr.rhs}
		zero := &ast.IntLit{Position: pos, Value: 0}
		op := ast.OpEq
		if pr.negate {
			op = ast.OpNotEq
		}
		return &ast.Binary{Position: pos, Op: op, Left: mod, Right: zero}
	}

	op := pr.op
	if pr.negate {
		op = negateComparison(op)
	}
	return &ast.Binary{Position: pos, Op: op, Left: left, Right: pr.rhs}
}

func negateComparison(op ast.BinOp) ast.BinOp {
	switch op {
	case ast.OpEq:
		return ast.OpNotEq
	case ast.OpNotEq:
		return ast.OpEq
	case ast.OpGreater:
		return ast.OpLessEq
	case ast.OpGreaterEq:
		return ast.OpLess
	case ast.OpLess:
		return ast.OpGreaterEq
	case ast.OpLessEq:
		return ast.OpGreater
	default:
		return op
	}
}

func (p *Parser) parsePredicate() predicate {
	negate := false
	if p.isKeyword("not") {
		negate = true
		p.advance()
	}

	switch {
	case p.isKeyword("equal"):
		p.advance()
		p.expectKeyword("to")
		return predicate{negate: negate, op: ast.OpEq, rhs: p.parseAdditive()}

	case p.isKeyword("greater"):
		p.advance()
		p.expectKeyword("than")
		op := ast.OpGreater
		if p.isKeyword("or") {
			p.advance()
			p.expectKeyword("equal")
			p.expectKeyword("to")
			op = ast.OpGreaterEq
		}
		return predicate{negate: negate, op: op, rhs: p.parseAdditive()}

	case p.isKeyword("less"):
		p.advance()
		p.expectKeyword("than")
		op := ast.OpLess
		if p.isKeyword("or") {
			p.advance()
			p.expectKeyword("equal")
			p.expectKeyword("to")
			op = ast.OpLessEq
		}
		return predicate{negate: negate, op: op, rhs: p.parseAdditive()}

	case p.isKeyword("divisible"):
		p.advance()
		p.expectKeyword("by")
		return predicate{negate: negate, divisibleBy: true, rhs: p.parseAdditive()}

	default:
		return predicate{negate: negate, op: ast.OpEq, rhs: p.parseAdditive()}
	}
}

func (p *Parser) parseAdditive() ast.Expr {
	left := p.parseMultiplicative()
	for {
		pos := p.pos()
		switch {
		case p.isKeyword("add") || p.isKeyword("plus"):
			p.advance()
			right := p.parseMultiplicative()
			left = &ast.Binary{Position: pos, Op: ast.OpAdd, Left: left, Right: right}
		case p.isKeyword("subtract") || p.isKeyword("minus"):
			p.advance()
			right := p.parseMultiplicative()
			left = &ast.Binary{Position: pos, Op: ast.OpSub, Left: left, Right: right}
		case p.isKeyword("bitwise") && p.peekIsKeyword(1, "or"):
			p.advance()
			p.advance()
			right := p.parseMultiplicative()
			left = &ast.Binary{Position: pos, Op: ast.OpBitOr, Left: left, Right: right}
		case p.isKeyword("bitwise") && p.peekIsKeyword(1, "xor"):
			p.advance()
			p.advance()
			right := p.parseMultiplicative()
			left = &ast.Binary{Position: pos, Op: ast.OpBitXor, Left: left, Right: right}
		default:
			return left
		}
	}
}

func (p *Parser) parseMultiplicative() ast.Expr {
	left := p.parseUnary()
	for {
		pos := p.pos()
		switch {
		case p.isKeyword("multiply") || p.isKeyword("multiplied") || p.isKeyword("times"):
			p.advance()
			if p.isKeyword("by") {
				p.advance()
			}
			right := p.parseUnary()
			left = &ast.Binary{Position: pos, Op: ast.OpMul, Left: left, Right: right}
		case p.isKeyword("divide") || p.isKeyword("divided"):
			p.advance()
			if p.isKeyword("by") {
				p.advance()
			}
			right := p.parseUnary()
			left = &ast.Binary{Position: pos, Op: ast.OpDiv, Left: left, Right: right}
		case p.isKeyword("modulo") || p.isKeyword("mod") || p.isKeyword("remainder"):
			p.advance()
			right := p.parseUnary()
			left = &ast.Binary{Position: pos, Op: ast.OpMod, Left: left, Right: right}
		case p.isKeyword("bitwise") && p.peekIsKeyword(1, "and"):
			p.advance()
			p.advance()
			right := p.parseUnary()
			left = &ast.Binary{Position: pos, Op: ast.OpBitAnd, Left: left, Right: right}
		case p.isKeyword("shift") && p.peekIsKeyword(1, "left"):
			p.advance()
			p.advance()
			right := p.parseUnary()
			left = &ast.Binary{Position: pos, Op: ast.OpShiftLeft, Left: left, Right: right}
		case p.isKeyword("shift") && p.peekIsKeyword(1, "right"):
			p.advance()
			p.advance()
			right := p.parseUnary()
			left = &ast.Binary{Position: pos, Op: ast.OpShiftRight, Left: left, Right: right}
		default:
			return left
		}
	}
}

func (p *Parser) parseUnary() ast.Expr {
	pos := p.pos()
	switch {
	case p.isKeyword("bit-not"):
		p.advance()
		return &ast.Unary{Position: pos, Op: ast.OpBitNot, Operand: p.parseUnary()}
	case p.isKeyword("negative"):
		p.advance()
		p.expectKeyword("of")
		return &ast.Unary{Position: pos, Op: ast.OpNegate, Operand: p.parseUnary()}
	default:
		return p.parsePostfix()
	}
}

// parsePostfix wraps parsePrimary with the "object's property" and
// "<expr> exists" postfix chains (spec.md §4.2, §4.3).
func (p *Parser) parsePostfix() ast.Expr {
	expr := p.parsePrimary()

	for {
		switch {
		case p.cur().Kind == token.POSSESSIVE:
			pos := p.pos()
			p.advance()
			// The token right after 's is a property name, never a
			// keyword, even if its spelling matches a reserved word
			// (spec.md §4.3 "Reserved-word discipline after 's").
			propTok := p.advance()
			expr = &ast.PropertyAccess{Position: pos, Object: expr, Property: strings.ToLower(propTok.Lexeme)}

		case p.isKeyword("exists"):
			pos := p.pos()
			p.advance()
			expr = &ast.Call{Position: pos, Callee: "file.exists", Args: []ast.Expr{expr}}

		case p.isKeyword("as") || p.isKeyword("in"):
			expr = p.parseCastTail(expr)

		default:
			return expr
		}
	}
}

func (p *Parser) parsePrimary() ast.Expr {
	p.skipArticle()
	pos := p.pos()
	t := p.cur()

	switch t.Kind {
	case token.INT:
		p.advance()
		return &ast.IntLit{Position: pos, Value: parseInt(t.Lexeme)}

	case token.FLOAT:
		p.advance()
		return &ast.FloatLit{Position: pos, Value: parseFloat(t.Lexeme)}

	case token.CHAR:
		p.advance()
		return &ast.CharLit{Position: pos, Value: t.Lexeme[0]}

	case token.STRING:
		return p.parseStringOrCall(pos)

	case token.LPAREN:
		p.advance()
		inner := p.parseExpression()
		if p.cur().Kind == token.RPAREN {
			p.advance()
		} else {
			p.errorf("expected ')', found %q", p.cur().Raw)
		}
		return inner

	case token.IDENT:
		return p.parseIdentOrCall(pos)

	case token.KEYWORD:
		return p.parseKeywordPrimary(pos)

	default:
		p.errorf("unexpected token %q in expression", t.Raw)
		p.advance()
		return &ast.IntLit{Position: pos, Value: 0}
	}
}

// parseStringOrCall handles a quoted name used as a function callee
// ("\"add\" with 2 and 3") versus a plain string literal. See DESIGN.md:
// EC's user-defined-function call syntax is an Open Question spec.md
// left unpinned (it only specifies the header grammar); this resolves
// it as "<name> with <args>", symmetric with the header's own "with"
// clause.
func (p *Parser) parseStringOrCall(pos ast.Position) ast.Expr {
	t := p.advance()
	if p.isKeyword("with") {
		return p.parseCallArgs(pos, t.Raw)
	}
	return p.parseFormatString(pos, t.Lexeme)
}

func (p *Parser) parseIdentOrCall(pos ast.Position) ast.Expr {
	t := p.advance()
	if p.isKeyword("with") {
		return p.parseCallArgs(pos, t.Raw)
	}
	return &ast.VarRef{Position: pos, Name: t.Raw}
}

func (p *Parser) parseCallArgs(pos ast.Position, callee string) ast.Expr {
	p.advance() // "with"
	call := &ast.Call{Position: pos, Callee: callee}
	for {
		call.Args = append(call.Args, p.parseAdditive())
		if p.isKeyword("and") {
			p.advance()
			continue
		}
		break
	}
	return call
}

func (p *Parser) parseKeywordPrimary(pos ast.Position) ast.Expr {
	switch p.cur().Lexeme {
	case "absolute":
		p.advance()
		p.expectKeyword("value")
		p.expectKeyword("of")
		return &ast.Unary{Position: pos, Op: ast.OpAbs, Operand: p.parseUnary()}

	case "sign":
		p.advance()
		p.expectKeyword("of")
		return &ast.Unary{Position: pos, Op: ast.OpSign, Operand: p.parseUnary()}

	case "element":
		p.advance()
		idx := p.parseAdditive()
		p.expectKeyword("of")
		coll := p.parseUnary()
		return &ast.IndexAccess{Position: pos, Kind: ast.IndexElement, Index: idx, Collection: coll}

	case "byte":
		p.advance()
		idx := p.parseAdditive()
		p.expectKeyword("of")
		coll := p.parseUnary()
		return &ast.IndexAccess{Position: pos, Kind: ast.IndexByte, Index: idx, Collection: coll}

	case "arguments":
		p.advance()
		return p.parseArgumentsTail(pos)

	case "argument":
		p.advance()
		idx := p.parseUnary()
		return &ast.ArgQuery{Position: pos, Kind: ast.ArgAt, Index: idx}

	case "environment":
		p.advance()
		return p.parseEnvironmentTail(pos)

	case "current":
		p.advance()
		p.expectKeyword("time")
		return &ast.CurrentTime{Position: pos}

	case "true":
		p.advance()
		return &ast.BoolLit{Position: pos, Value: true}

	case "false":
		p.advance()
		return &ast.BoolLit{Position: pos, Value: false}

	default:
		// Anything else reaching here is an identifier-shaped keyword
		// used as a bare name (e.g. a variable happens to be spelled the
		// same as a reserved word inside a property position, which
		// parsePostfix already special-cases). Treat it as a variable
		// reference so callers of the cast/property grammar keep
		// working even on edge cases not enumerated above.
		t := p.advance()
		return &ast.VarRef{Position: pos, Name: t.Raw}
	}
}

func (p *Parser) parseArgumentsTail(pos ast.Position) ast.Expr {
	if p.cur().Kind != token.POSSESSIVE {
		return &ast.ArgQuery{Position: pos, Kind: ast.ArgAll}
	}
	p.advance() // 's
	prop := p.advance()
	switch prop.Lexeme {
	case "count":
		return &ast.ArgQuery{Position: pos, Kind: ast.ArgCount}
	case "all":
		return &ast.ArgQuery{Position: pos, Kind: ast.ArgAll}
	case "name":
		return &ast.ArgQuery{Position: pos, Kind: ast.ArgProgramName}
	default:
		p.errorf("unknown arguments property %q", prop.Raw)
		return &ast.ArgQuery{Position: pos, Kind: ast.ArgAll}
	}
}

func (p *Parser) parseEnvironmentTail(pos ast.Position) ast.Expr {
	if p.cur().Kind != token.POSSESSIVE {
		return &ast.ArgQuery{Position: pos, Kind: ast.EnvCount}
	}
	p.advance() // 's

	if p.cur().Kind == token.STRING {
		name := p.advance()
		return &ast.ArgQuery{Position: pos, Kind: ast.EnvLookup, Name: &ast.StringLit{
			Position: pos,
			Parts:    []ast.FormatPart{{Literal: name.Raw}},
		}}
	}
	if p.isKeyword("count") {
		p.advance()
		return &ast.ArgQuery{Position: pos, Kind: ast.EnvCount}
	}
	idx := p.parseUnary()
	return &ast.ArgQuery{Position: pos, Kind: ast.EnvAt, Index: idx}
}

// ---- casts ---------------------------------------------------------------

// parseCastTail wraps a parsed primary expression with a trailing "as
// <type>", "in <unit>", or "as text padded to <N>" clause when one
// follows. parsePostfix calls it whenever "as" or "in" follows a primary
// expression.
func (p *Parser) parseCastTail(value ast.Expr) ast.Expr {
	pos := value.Pos()
	for {
		switch {
		case p.isKeyword("as"):
			p.advance()
			if p.isKeyword("text") {
				p.advance()
				cast := &ast.Cast{Position: pos, Value: value, Target: types.TString}
				if p.isKeyword("padded") {
					p.advance()
					p.expectKeyword("to")
					cast.PadTo = p.parseAdditive()
				}
				value = cast
				continue
			}
			p.skipArticle()
			target, ok := p.parseTypeWord()
			if !ok {
				return value
			}
			value = &ast.Cast{Position: pos, Value: value, Target: target}

		case p.isKeyword("in"):
			p.advance()
			unitTok := p.advance()
			value = &ast.Cast{Position: pos, Value: value, Unit: unitTok.Lexeme}

		default:
			return value
		}
	}
}

// ---- literal helpers ------------------------------------------------------

func parseInt(lit string) int64 {
	var v int64
	switch {
	case len(lit) > 2 && (lit[1] == 'x' || lit[1] == 'X'):
		for _, c := range lit[2:] {
			v = v*16 + int64(hexVal(byte(c)))
		}
	case len(lit) > 2 && (lit[1] == 'b' || lit[1] == 'B'):
		for _, c := range lit[2:] {
			v = v*2 + int64(c-'0')
		}
	default:
		for _, c := range lit {
			if c < '0' || c > '9' {
				continue
			}
			v = v*10 + int64(c-'0')
		}
	}
	return v
}

func hexVal(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	default:
		return 0
	}
}

func parseFloat(lit string) float64 {
	var intPart, fracPart int64
	var fracDigits int
	seenDot := false
	for _, c := range lit {
		if c == '.' {
			seenDot = true
			continue
		}
		if c < '0' || c > '9' {
			continue
		}
		if !seenDot {
			intPart = intPart*10 + int64(c-'0')
		} else {
			fracPart = fracPart*10 + int64(c-'0')
			fracDigits++
		}
	}
	result := float64(intPart)
	if fracDigits > 0 {
		div := 1.0
		for i := 0; i < fracDigits; i++ {
			div *= 10
		}
		result += float64(fracPart) / div
	}
	return result
}

// parseFormatString rewrites a STRING token's raw text into an ordered
// sequence of literal chunks and {expr[:spec]} holes (spec.md §4.2
// "Format strings"). Escapes \n \t \\ \" \{ \} and the {{ }} pass-through
// forms are resolved here.
func (p *Parser) parseFormatString(pos ast.Position, raw string) ast.Expr {
	var parts []ast.FormatPart
	var literal []byte

	runes := []rune(raw)
	i := 0
	for i < len(runes) {
		c := runes[i]

		if c == '\\' && i+1 < len(runes) {
			switch runes[i+1] {
			case 'n':
				literal = append(literal, '\n')
			case 't':
				literal = append(literal, '\t')
			case '\\':
				literal = append(literal, '\\')
			case '"':
				literal = append(literal, '"')
			case '{':
				literal = append(literal, '{')
			case '}':
				literal = append(literal, '}')
			default:
				literal = append(literal, byte(runes[i+1]))
			}
			i += 2
			continue
		}

		if c == '{' && i+1 < len(runes) && runes[i+1] == '{' {
			literal = append(literal, '{')
			i += 2
			continue
		}
		if c == '}' && i+1 < len(runes) && runes[i+1] == '}' {
			literal = append(literal, '}')
			i += 2
			continue
		}

		if c == '{' {
			if len(literal) > 0 {
				parts = append(parts, ast.FormatPart{Literal: string(literal)})
				literal = nil
			}
			j := i + 1
			depth := 1
			for j < len(runes) && depth > 0 {
				if runes[j] == '{' {
					depth++
				}
				if runes[j] == '}' {
					depth--
					if depth == 0 {
						break
					}
				}
				j++
			}
			holeSrc := string(runes[i+1 : j])
			exprSrc, spec := splitHoleSpec(holeSrc)

			sub := New(lexer.New(exprSrc))
			holeExpr := sub.parseExpression()
			parts = append(parts, ast.FormatPart{Hole: holeExpr, Spec: spec})

			i = j + 1
			continue
		}

		literal = append(literal, []byte(string(c))...)
		i++
	}

	if len(literal) > 0 || len(parts) == 0 {
		parts = append(parts, ast.FormatPart{Literal: string(literal)})
	}

	return &ast.StringLit{Position: pos, Parts: parts}
}

// splitHoleSpec splits "expr:spec" on the first colon (none of EC's
// expression grammar otherwise uses ':', so the first colon is always the
// spec separator).
func splitHoleSpec(hole string) (expr, spec string) {
	for i := 0; i < len(hole); i++ {
		if hole[i] == ':' {
			return hole[:i], hole[i+1:]
		}
	}
	return hole, ""
}
