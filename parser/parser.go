// Package parser turns a token stream into a Luma ast.Program, using a
// recursive-descent shape: a precedence ladder of one method per
// binding-power level, and a position cursor with
// peek/previous/advance/isMatch/consume, generalized to Luma's full
// expression-oriented grammar and extended to accumulate diagnostics
// instead of returning on the first error.
package parser

import (
	"luma/ast"
	"luma/diag"
	"luma/token"
)

// Parser consumes a fixed token slice (as produced by lexer.Lexer.Scan)
// and produces an ast.Program plus any diagnostics encountered along the
// way. Parsing never aborts early: on a syntax error the parser
// synchronizes to the next likely statement boundary and keeps going, so a
// single Parse call can report many independent mistakes.
type Parser struct {
	tokens   []token.Token
	position int
	file     string
	errors   []diag.Diagnostic
}

// New constructs a Parser over tokens, attributing diagnostics to file.
func New(tokens []token.Token, file string) *Parser {
	return &Parser{tokens: tokens, file: file}
}

func (p *Parser) peek() token.Token     { return p.tokens[p.position] }
func (p *Parser) previous() token.Token { return p.tokens[p.position-1] }

func (p *Parser) isFinished() bool { return p.peek().Type == token.EOF }

func (p *Parser) advance() token.Token {
	if !p.isFinished() {
		p.position++
	}
	return p.previous()
}

func (p *Parser) check(tt token.TokenType) bool {
	if p.isFinished() {
		return tt == token.EOF
	}
	return p.peek().Type == tt
}

func (p *Parser) isMatch(types ...token.TokenType) bool {
	for _, tt := range types {
		if p.check(tt) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *Parser) consume(tt token.TokenType, message string) (token.Token, bool) {
	if p.check(tt) {
		return p.advance(), true
	}
	cur := p.peek()
	p.errorAt(cur.Span, "%s (got %q)", message, cur.Lexeme)
	return cur, false
}

func (p *Parser) errorAt(span diag.Span, format string, args ...any) {
	p.errors = append(p.errors, diag.Errorf(diag.KindSyntax, span, p.file, format, args...))
}

// synchronize discards tokens until a likely statement boundary, so that a
// single syntax error does not cascade into a wall of follow-on errors.
func (p *Parser) synchronize() {
	for !p.isFinished() {
		switch p.peek().Type {
		case token.LET, token.VAR, token.FN, token.IF, token.WHILE, token.FOR,
			token.RETURN, token.BREAK, token.CONTINUE, token.MATCH, token.TYPE, token.END:
			return
		}
		p.advance()
	}
}

// Parse parses the whole token stream into a Program, collecting
// diagnostics along the way rather than stopping at the first failure.
func (p *Parser) Parse() (*ast.Program, []diag.Diagnostic) {
	start := 0
	var statements []ast.Statement
	for !p.isFinished() {
		stmt, ok := p.declaration()
		if !ok {
			p.synchronize()
			continue
		}
		statements = append(statements, stmt)
	}
	end := p.peek().Span.Start
	return &ast.Program{Statements: statements, SourceSpan: diag.NewSpan(start, end)}, p.errors
}

func (p *Parser) declaration() (ast.Statement, bool) {
	switch {
	case p.isMatch(token.LET):
		return p.letStatement()
	case p.isMatch(token.VAR):
		return p.varStatement()
	case p.isMatch(token.TYPE):
		return p.typeDeclStatement()
	default:
		return p.statement()
	}
}

func (p *Parser) statement() (ast.Statement, bool) {
	switch {
	case p.isMatch(token.WHILE):
		return p.whileStatement()
	case p.isMatch(token.FOR):
		return p.forInStatement()
	case p.isMatch(token.BREAK):
		tok := p.previous()
		return &ast.BreakStatement{SourceSpan: tok.Span}, true
	case p.isMatch(token.CONTINUE):
		tok := p.previous()
		return &ast.ContinueStatement{SourceSpan: tok.Span}, true
	case p.isMatch(token.RETURN):
		return p.returnStatement()
	default:
		return p.expressionStatement()
	}
}

func (p *Parser) letStatement() (ast.Statement, bool) {
	start := p.previous().Span
	target, ok := p.pattern()
	if !ok {
		return nil, false
	}
	var declared ast.TypeAnnotation
	if p.isMatch(token.COLON) {
		declared, ok = p.typeAnnotation()
		if !ok {
			return nil, false
		}
	}
	if _, ok := p.consume(token.ASSIGN, "expected '=' in let binding"); !ok {
		return nil, false
	}
	value, ok := p.expression()
	if !ok {
		return nil, false
	}
	return &ast.LetStatement{
		Target: target, Type: declared, Value: value,
		SourceSpan: diag.Cover(start, value.Span()),
	}, true
}

func (p *Parser) varStatement() (ast.Statement, bool) {
	start := p.previous().Span
	name, ok := p.consume(token.IDENTIFIER, "expected variable name")
	if !ok {
		return nil, false
	}
	var declared ast.TypeAnnotation
	if p.isMatch(token.COLON) {
		declared, ok = p.typeAnnotation()
		if !ok {
			return nil, false
		}
	}
	if _, ok := p.consume(token.ASSIGN, "expected '=' in var binding"); !ok {
		return nil, false
	}
	value, ok := p.expression()
	if !ok {
		return nil, false
	}
	return &ast.VarStatement{
		Name: name.Lexeme, Type: declared, Value: value,
		SourceSpan: diag.Cover(start, value.Span()),
	}, true
}

func (p *Parser) typeDeclStatement() (ast.Statement, bool) {
	start := p.previous().Span
	name, ok := p.consume(token.IDENTIFIER, "expected type name")
	if !ok {
		return nil, false
	}
	if _, ok := p.consume(token.ASSIGN, "expected '=' in type declaration"); !ok {
		return nil, false
	}
	if p.check(token.LBRACE) {
		fields, end, ok := p.recordFields()
		if !ok {
			return nil, false
		}
		return &ast.TypeDeclStatement{
			Name: name.Lexeme, Fields: fields,
			SourceSpan: diag.Cover(start, end),
		}, true
	}
	alias, ok := p.typeAnnotation()
	if !ok {
		return nil, false
	}
	return &ast.TypeDeclStatement{
		Name: name.Lexeme, Alias: alias,
		SourceSpan: diag.Cover(start, alias.Span()),
	}, true
}

func (p *Parser) recordFields() ([]ast.RecordField, diag.Span, bool) {
	open, _ := p.consume(token.LBRACE, "expected '{'")
	var fields []ast.RecordField
	for !p.check(token.RBRACE) && !p.isFinished() {
		fieldName, ok := p.consume(token.IDENTIFIER, "expected field name")
		if !ok {
			return nil, diag.NoSpan, false
		}
		if _, ok := p.consume(token.COLON, "expected ':' after field name"); !ok {
			return nil, diag.NoSpan, false
		}
		fieldType, ok := p.typeAnnotation()
		if !ok {
			return nil, diag.NoSpan, false
		}
		fields = append(fields, ast.RecordField{Name: fieldName.Lexeme, Type: fieldType})
		if !p.isMatch(token.COMMA) {
			break
		}
	}
	closeTok, ok := p.consume(token.RBRACE, "expected '}' to close record type")
	if !ok {
		return nil, diag.NoSpan, false
	}
	return fields, diag.Cover(open.Span, closeTok.Span), true
}

func (p *Parser) whileStatement() (ast.Statement, bool) {
	start := p.previous().Span
	cond, ok := p.expression()
	if !ok {
		return nil, false
	}
	if _, ok := p.consume(token.DO, "expected 'do' after while condition"); !ok {
		return nil, false
	}
	body, ok := p.block(token.END)
	if !ok {
		return nil, false
	}
	end, ok := p.consume(token.END, "expected 'end' to close while loop")
	if !ok {
		return nil, false
	}
	return &ast.WhileStatement{Condition: cond, Body: body, SourceSpan: diag.Cover(start, end.Span)}, true
}

func (p *Parser) forInStatement() (ast.Statement, bool) {
	start := p.previous().Span
	name, ok := p.consume(token.IDENTIFIER, "expected loop variable name")
	if !ok {
		return nil, false
	}
	if _, ok := p.consume(token.IN, "expected 'in' after loop variable"); !ok {
		return nil, false
	}
	iterable, ok := p.expression()
	if !ok {
		return nil, false
	}
	if _, ok := p.consume(token.DO, "expected 'do' after for-in iterable"); !ok {
		return nil, false
	}
	body, ok := p.block(token.END)
	if !ok {
		return nil, false
	}
	end, ok := p.consume(token.END, "expected 'end' to close for loop")
	if !ok {
		return nil, false
	}
	return &ast.ForInStatement{
		Name: name.Lexeme, Iterable: iterable, Body: body,
		SourceSpan: diag.Cover(start, end.Span),
	}, true
}

func (p *Parser) returnStatement() (ast.Statement, bool) {
	start := p.previous().Span
	if p.isAtStatementBoundary() {
		return &ast.ReturnStatement{SourceSpan: start}, true
	}
	value, ok := p.expression()
	if !ok {
		return nil, false
	}
	return &ast.ReturnStatement{Value: value, SourceSpan: diag.Cover(start, value.Span())}, true
}

// isAtStatementBoundary reports whether the parser is positioned at a token
// that cannot begin an expression, used to detect a bare "return" with no
// value.
func (p *Parser) isAtStatementBoundary() bool {
	switch p.peek().Type {
	case token.END, token.ELSE, token.ELIF, token.EOF, token.SEMICOLON:
		return true
	default:
		return false
	}
}

func (p *Parser) expressionStatement() (ast.Statement, bool) {
	expr, ok := p.expression()
	if !ok {
		return nil, false
	}
	p.isMatch(token.SEMICOLON)
	return &ast.ExpressionStatement{Expression: expr, SourceSpan: expr.Span()}, true
}

// block parses statements up to (but not consuming) one of terminators,
// folding a final bare expression statement into the block's tail value
// (ast.Block.Tail) instead of its Statements list, matching Luma's rule
// that a do/end block evaluates to its last expression.
func (p *Parser) block(terminators ...token.TokenType) (*ast.Block, bool) {
	start := p.previous().Span
	var statements []ast.Statement
	var tail ast.Expression
	for !p.atAny(terminators) && !p.isFinished() {
		stmt, ok := p.declaration()
		if !ok {
			p.synchronize()
			continue
		}
		if exprStmt, isExpr := stmt.(*ast.ExpressionStatement); isExpr && p.atAny(terminators) {
			tail = exprStmt.Expression
			break
		}
		statements = append(statements, stmt)
	}
	end := p.peek().Span
	return &ast.Block{Statements: statements, Tail: tail, SourceSpan: diag.Cover(start, end)}, true
}

func (p *Parser) atAny(types []token.TokenType) bool {
	for _, tt := range types {
		if p.check(tt) {
			return true
		}
	}
	return false
}
