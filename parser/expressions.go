package parser

import (
	"luma/ast"
	"luma/diag"
	"luma/token"
)

var equalityOps = []token.TokenType{token.EQUAL_EQUAL, token.NOT_EQUAL}
var comparisonOps = []token.TokenType{token.LESS, token.LESS_EQUAL, token.GREATER, token.GREATER_EQUAL}
var termOps = []token.TokenType{token.PLUS, token.MINUS}
var factorOps = []token.TokenType{token.STAR, token.SLASH, token.PERCENT}

// expression is the entry point of the precedence ladder: assignment is
// the lowest-binding level, primary/postfix the highest, with one parser
// method per level in between (or/and/equality/comparison/term/factor/
// unary).
func (p *Parser) expression() (ast.Expression, bool) {
	return p.assignment()
}

func (p *Parser) assignment() (ast.Expression, bool) {
	expr, ok := p.or()
	if !ok {
		return nil, false
	}
	if p.isMatch(token.ASSIGN) {
		eq := p.previous()
		value, ok := p.assignment()
		if !ok {
			return nil, false
		}
		target, ok := expr.(ast.AssignTarget)
		if !ok {
			p.errorAt(eq.Span, "invalid assignment target")
			return nil, false
		}
		return &ast.Assign{Target: target, Value: value, SourceSpan: diag.Cover(expr.Span(), value.Span())}, true
	}
	return expr, true
}

func (p *Parser) or() (ast.Expression, bool) {
	expr, ok := p.and()
	if !ok {
		return nil, false
	}
	for p.isMatch(token.OR) {
		op := p.previous()
		right, ok := p.and()
		if !ok {
			return nil, false
		}
		expr = &ast.Binary{Left: expr, Operator: op, Right: right, SourceSpan: diag.Cover(expr.Span(), right.Span())}
	}
	return expr, true
}

func (p *Parser) and() (ast.Expression, bool) {
	expr, ok := p.equality()
	if !ok {
		return nil, false
	}
	for p.isMatch(token.AND) {
		op := p.previous()
		right, ok := p.equality()
		if !ok {
			return nil, false
		}
		expr = &ast.Binary{Left: expr, Operator: op, Right: right, SourceSpan: diag.Cover(expr.Span(), right.Span())}
	}
	return expr, true
}

func (p *Parser) equality() (ast.Expression, bool) { return p.binaryLevel(equalityOps, p.comparison) }
func (p *Parser) comparison() (ast.Expression, bool) { return p.binaryLevel(comparisonOps, p.term) }
func (p *Parser) term() (ast.Expression, bool)       { return p.binaryLevel(termOps, p.factor) }
func (p *Parser) factor() (ast.Expression, bool)     { return p.binaryLevel(factorOps, p.unary) }

func (p *Parser) binaryLevel(ops []token.TokenType, next func() (ast.Expression, bool)) (ast.Expression, bool) {
	expr, ok := next()
	if !ok {
		return nil, false
	}
	for p.isMatch(ops...) {
		op := p.previous()
		right, ok := next()
		if !ok {
			return nil, false
		}
		expr = &ast.Binary{Left: expr, Operator: op, Right: right, SourceSpan: diag.Cover(expr.Span(), right.Span())}
	}
	return expr, true
}

func (p *Parser) unary() (ast.Expression, bool) {
	if p.isMatch(token.BANG, token.MINUS) {
		op := p.previous()
		operand, ok := p.unary()
		if !ok {
			return nil, false
		}
		return &ast.Unary{Operator: op, Operand: operand, SourceSpan: diag.Cover(op.Span, operand.Span())}, true
	}
	return p.postfix()
}

// postfix parses call, index, and field-access suffixes left-to-right on
// top of a primary expression, e.g. "f(x)[0].y".
func (p *Parser) postfix() (ast.Expression, bool) {
	expr, ok := p.primary()
	if !ok {
		return nil, false
	}
	for {
		switch {
		case p.isMatch(token.LPAREN):
			args, end, ok := p.callArguments()
			if !ok {
				return nil, false
			}
			expr = &ast.Call{Callee: expr, Arguments: args, SourceSpan: diag.Cover(expr.Span(), end)}
		case p.isMatch(token.LBRACKET):
			key, ok := p.expression()
			if !ok {
				return nil, false
			}
			close, ok := p.consume(token.RBRACKET, "expected ']' after index expression")
			if !ok {
				return nil, false
			}
			expr = &ast.Index{Receiver: expr, Key: key, SourceSpan: diag.Cover(expr.Span(), close.Span)}
		case p.isMatch(token.DOT):
			name, ok := p.consume(token.IDENTIFIER, "expected field name after '.'")
			if !ok {
				return nil, false
			}
			expr = &ast.Field{Receiver: expr, Name: name.Lexeme, SourceSpan: diag.Cover(expr.Span(), name.Span)}
		default:
			return expr, true
		}
	}
}

func (p *Parser) callArguments() ([]ast.Expression, diag.Span, bool) {
	var args []ast.Expression
	for !p.check(token.RPAREN) && !p.isFinished() {
		arg, ok := p.expression()
		if !ok {
			return nil, diag.NoSpan, false
		}
		args = append(args, arg)
		if !p.isMatch(token.COMMA) {
			break
		}
	}
	close, ok := p.consume(token.RPAREN, "expected ')' after call arguments")
	if !ok {
		return nil, diag.NoSpan, false
	}
	return args, close.Span, true
}

func (p *Parser) primary() (ast.Expression, bool) {
	switch {
	case p.isMatch(token.FALSE):
		tok := p.previous()
		return &ast.Literal{Value: false, SourceSpan: tok.Span}, true
	case p.isMatch(token.TRUE):
		tok := p.previous()
		return &ast.Literal{Value: true, SourceSpan: tok.Span}, true
	case p.isMatch(token.NULL):
		tok := p.previous()
		return &ast.Literal{Value: nil, SourceSpan: tok.Span}, true
	case p.isMatch(token.NUMBER, token.STRING):
		tok := p.previous()
		return &ast.Literal{Value: tok.Literal, SourceSpan: tok.Span}, true
	case p.isMatch(token.IDENTIFIER):
		tok := p.previous()
		return &ast.Identifier{Name: tok.Lexeme, SourceSpan: tok.Span}, true
	case p.isMatch(token.LPAREN):
		expr, ok := p.expression()
		if !ok {
			return nil, false
		}
		if _, ok := p.consume(token.RPAREN, "expected ')' to close grouped expression"); !ok {
			return nil, false
		}
		return expr, true
	case p.isMatch(token.LBRACKET):
		return p.listLiteral()
	case p.isMatch(token.LBRACE):
		return p.tableLiteral()
	case p.isMatch(token.FN):
		return p.functionLiteral()
	case p.isMatch(token.DO):
		body, ok := p.block(token.END)
		if !ok {
			return nil, false
		}
		if _, ok := p.consume(token.END, "expected 'end' to close block expression"); !ok {
			return nil, false
		}
		return body, true
	case p.isMatch(token.IF):
		return p.ifExpression()
	case p.isMatch(token.MATCH):
		return p.matchExpression()
	default:
		cur := p.peek()
		p.errorAt(cur.Span, "unexpected token %q in expression", cur.Lexeme)
		return nil, false
	}
}

func (p *Parser) listLiteral() (ast.Expression, bool) {
	start := p.previous().Span
	var elements []ast.Expression
	for !p.check(token.RBRACKET) && !p.isFinished() {
		el, ok := p.expression()
		if !ok {
			return nil, false
		}
		elements = append(elements, el)
		if !p.isMatch(token.COMMA) {
			break
		}
	}
	close, ok := p.consume(token.RBRACKET, "expected ']' to close list literal")
	if !ok {
		return nil, false
	}
	return &ast.ListLiteral{Elements: elements, SourceSpan: diag.Cover(start, close.Span)}, true
}

func (p *Parser) tableLiteral() (ast.Expression, bool) {
	start := p.previous().Span
	var fields []ast.TableField
	for !p.check(token.RBRACE) && !p.isFinished() {
		name, ok := p.consume(token.IDENTIFIER, "expected field name in table literal")
		if !ok {
			return nil, false
		}
		if _, ok := p.consume(token.COLON, "expected ':' after table field name"); !ok {
			return nil, false
		}
		value, ok := p.expression()
		if !ok {
			return nil, false
		}
		fields = append(fields, ast.TableField{Name: name.Lexeme, Value: value})
		if !p.isMatch(token.COMMA) {
			break
		}
	}
	close, ok := p.consume(token.RBRACE, "expected '}' to close table literal")
	if !ok {
		return nil, false
	}
	return &ast.TableLiteral{Fields: fields, SourceSpan: diag.Cover(start, close.Span)}, true
}

func (p *Parser) functionLiteral() (ast.Expression, bool) {
	start := p.previous().Span
	if _, ok := p.consume(token.LPAREN, "expected '(' after 'fn'"); !ok {
		return nil, false
	}
	var params []ast.Param
	for !p.check(token.RPAREN) && !p.isFinished() {
		name, ok := p.consume(token.IDENTIFIER, "expected parameter name")
		if !ok {
			return nil, false
		}
		param := ast.Param{Name: name.Lexeme, SourceSpan: name.Span}
		if p.isMatch(token.COLON) {
			ty, ok := p.typeAnnotation()
			if !ok {
				return nil, false
			}
			param.Type = ty
			param.SourceSpan = diag.Cover(param.SourceSpan, ty.Span())
		}
		if p.isMatch(token.ASSIGN) {
			def, ok := p.expression()
			if !ok {
				return nil, false
			}
			param.Default = def
			param.SourceSpan = diag.Cover(param.SourceSpan, def.Span())
		}
		params = append(params, param)
		if !p.isMatch(token.COMMA) {
			break
		}
	}
	if _, ok := p.consume(token.RPAREN, "expected ')' after parameter list"); !ok {
		return nil, false
	}
	var returnType ast.TypeAnnotation
	if p.isMatch(token.ARROW) {
		var ok bool
		returnType, ok = p.typeAnnotation()
		if !ok {
			return nil, false
		}
	}
	if _, ok := p.consume(token.DO, "expected 'do' to begin function body"); !ok {
		return nil, false
	}
	body, ok := p.block(token.END)
	if !ok {
		return nil, false
	}
	end, ok := p.consume(token.END, "expected 'end' to close function body")
	if !ok {
		return nil, false
	}
	return &ast.FunctionLiteral{
		Params: params, ReturnType: returnType, Body: body,
		SourceSpan: diag.Cover(start, end.Span),
	}, true
}

func (p *Parser) ifExpression() (ast.Expression, bool) {
	start := p.previous().Span
	cond, ok := p.expression()
	if !ok {
		return nil, false
	}
	if _, ok := p.consume(token.DO, "expected 'do' after if condition"); !ok {
		return nil, false
	}
	then, ok := p.block(token.END, token.ELSE, token.ELIF)
	if !ok {
		return nil, false
	}
	var elifs []ast.ElifClause
	for p.isMatch(token.ELIF) {
		elifCond, ok := p.expression()
		if !ok {
			return nil, false
		}
		if _, ok := p.consume(token.DO, "expected 'do' after elif condition"); !ok {
			return nil, false
		}
		elifBody, ok := p.block(token.END, token.ELSE, token.ELIF)
		if !ok {
			return nil, false
		}
		elifs = append(elifs, ast.ElifClause{Condition: elifCond, Body: elifBody})
	}
	var elseBlock *ast.Block
	if p.isMatch(token.ELSE) {
		elseBlock, ok = p.block(token.END)
		if !ok {
			return nil, false
		}
	}
	end, ok := p.consume(token.END, "expected 'end' to close if expression")
	if !ok {
		return nil, false
	}
	return &ast.If{
		Condition: cond, Then: then, Elifs: elifs, Else: elseBlock,
		SourceSpan: diag.Cover(start, end.Span),
	}, true
}

func (p *Parser) matchExpression() (ast.Expression, bool) {
	start := p.previous().Span
	subject, ok := p.expression()
	if !ok {
		return nil, false
	}
	if _, ok := p.consume(token.DO, "expected 'do' after match subject"); !ok {
		return nil, false
	}
	var arms []ast.MatchArm
	for !p.check(token.END) && !p.isFinished() {
		pat, ok := p.pattern()
		if !ok {
			return nil, false
		}
		var guard ast.Expression
		if p.isMatch(token.WITH) {
			guard, ok = p.expression()
			if !ok {
				return nil, false
			}
		}
		if _, ok := p.consume(token.ARROW, "expected '=>' after match pattern"); !ok {
			return nil, false
		}
		body, ok := p.expression()
		if !ok {
			return nil, false
		}
		arms = append(arms, ast.MatchArm{Pattern: pat, Guard: guard, Body: body})
		p.isMatch(token.COMMA)
	}
	end, ok := p.consume(token.END, "expected 'end' to close match expression")
	if !ok {
		return nil, false
	}
	return &ast.Match{Subject: subject, Arms: arms, SourceSpan: diag.Cover(start, end.Span)}, true
}
