package parser

import (
	"luma/ast"
	"luma/diag"
	"luma/token"
)

// typeAnnotation parses the type-annotation surface syntax: a bare name
// ("Number"), a generic application ("List<Number>"), a function type
// ("(Number, Number) => Number"), or "Any".
func (p *Parser) typeAnnotation() (ast.TypeAnnotation, bool) {
	if p.isMatch(token.LPAREN) {
		return p.functionType()
	}
	name, ok := p.consume(token.IDENTIFIER, "expected type name")
	if !ok {
		return nil, false
	}
	if name.Lexeme == "Any" {
		return &ast.AnyType{SourceSpan: name.Span}, true
	}
	if p.isMatch(token.LESS) {
		var args []ast.TypeAnnotation
		for {
			arg, ok := p.typeAnnotation()
			if !ok {
				return nil, false
			}
			args = append(args, arg)
			if !p.isMatch(token.COMMA) {
				break
			}
		}
		close, ok := p.consume(token.GREATER, "expected '>' to close generic type arguments")
		if !ok {
			return nil, false
		}
		return &ast.GenericType{Name: name.Lexeme, Arguments: args, SourceSpan: diag.Cover(name.Span, close.Span)}, true
	}
	return &ast.NamedType{Name: name.Lexeme, SourceSpan: name.Span}, true
}

func (p *Parser) functionType() (ast.TypeAnnotation, bool) {
	start := p.previous().Span
	var params []ast.TypeAnnotation
	for !p.check(token.RPAREN) && !p.isFinished() {
		param, ok := p.typeAnnotation()
		if !ok {
			return nil, false
		}
		params = append(params, param)
		if !p.isMatch(token.COMMA) {
			break
		}
	}
	if _, ok := p.consume(token.RPAREN, "expected ')' in function type"); !ok {
		return nil, false
	}
	if _, ok := p.consume(token.ARROW, "expected '=>' in function type"); !ok {
		return nil, false
	}
	ret, ok := p.typeAnnotation()
	if !ok {
		return nil, false
	}
	return &ast.FunctionType{Params: params, Return: ret, SourceSpan: diag.Cover(start, ret.Span())}, true
}
