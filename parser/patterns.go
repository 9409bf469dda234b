package parser

import (
	"luma/ast"
	"luma/diag"
	"luma/token"
)

// pattern parses a destructuring pattern, used by let bindings and match
// arms: an identifier binding, a wildcard, a literal, a list pattern with
// an optional rest binding, or a table pattern.
func (p *Parser) pattern() (ast.Pattern, bool) {
	switch {
	case p.isMatch(token.IDENTIFIER):
		tok := p.previous()
		if tok.Lexeme == "_" {
			return &ast.WildcardPattern{SourceSpan: tok.Span}, true
		}
		return &ast.IdentifierPattern{Name: tok.Lexeme, SourceSpan: tok.Span}, true
	case p.isMatch(token.NUMBER, token.STRING, token.TRUE, token.FALSE, token.NULL):
		tok := p.previous()
		return &ast.LiteralPattern{Value: tok.Literal, SourceSpan: tok.Span}, true
	case p.isMatch(token.MINUS):
		// negative number literal pattern, e.g. "-1"
		minus := p.previous()
		num, ok := p.consume(token.NUMBER, "expected number after '-' in pattern")
		if !ok {
			return nil, false
		}
		value, _ := num.Literal.(float64)
		return &ast.LiteralPattern{Value: -value, SourceSpan: diag.Cover(minus.Span, num.Span)}, true
	case p.isMatch(token.LBRACKET):
		return p.listPattern()
	case p.isMatch(token.LBRACE):
		return p.tablePattern()
	default:
		cur := p.peek()
		p.errorAt(cur.Span, "expected pattern, got %q", cur.Lexeme)
		return nil, false
	}
}

func (p *Parser) listPattern() (ast.Pattern, bool) {
	start := p.previous().Span
	var elements []ast.Pattern
	rest := ""
	for !p.check(token.RBRACKET) && !p.isFinished() {
		if p.isMatch(token.DOT) {
			if _, ok := p.consume(token.DOT, "expected '...' rest binding"); !ok {
				return nil, false
			}
			if _, ok := p.consume(token.DOT, "expected '...' rest binding"); !ok {
				return nil, false
			}
			name, ok := p.consume(token.IDENTIFIER, "expected name after '...'")
			if !ok {
				return nil, false
			}
			rest = name.Lexeme
			break
		}
		el, ok := p.pattern()
		if !ok {
			return nil, false
		}
		elements = append(elements, el)
		if !p.isMatch(token.COMMA) {
			break
		}
	}
	close, ok := p.consume(token.RBRACKET, "expected ']' to close list pattern")
	if !ok {
		return nil, false
	}
	return &ast.ListPattern{Elements: elements, Rest: rest, SourceSpan: diag.Cover(start, close.Span)}, true
}

func (p *Parser) tablePattern() (ast.Pattern, bool) {
	start := p.previous().Span
	var fields []ast.TableFieldPattern
	for !p.check(token.RBRACE) && !p.isFinished() {
		name, ok := p.consume(token.IDENTIFIER, "expected field name in table pattern")
		if !ok {
			return nil, false
		}
		field := ast.TableFieldPattern{Name: name.Lexeme}
		if p.isMatch(token.COLON) {
			binding, ok := p.pattern()
			if !ok {
				return nil, false
			}
			field.Binding = binding
		}
		fields = append(fields, field)
		if !p.isMatch(token.COMMA) {
			break
		}
	}
	close, ok := p.consume(token.RBRACE, "expected '}' to close table pattern")
	if !ok {
		return nil, false
	}
	return &ast.TablePattern{Fields: fields, SourceSpan: diag.Cover(start, close.Span)}, true
}
