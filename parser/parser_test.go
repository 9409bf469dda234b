package parser

import (
	"testing"

	"luma/ast"
	"luma/lexer"
)

func parseSource(t *testing.T, source string) *ast.Program {
	t.Helper()
	tokens, lexDiags := lexer.New(source, "<test>").Scan()
	if len(lexDiags) != 0 {
		t.Fatalf("unexpected lexer diagnostics: %v", lexDiags)
	}
	program, diags := New(tokens, "<test>").Parse()
	if len(diags) != 0 {
		t.Fatalf("unexpected parser diagnostics for %q: %v", source, diags)
	}
	return program
}

func TestParseLetStatement(t *testing.T) {
	program := parseSource(t, "let x = 1 + 2")
	if len(program.Statements) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(program.Statements))
	}
	let, ok := program.Statements[0].(*ast.LetStatement)
	if !ok {
		t.Fatalf("expected *ast.LetStatement, got %T", program.Statements[0])
	}
	ident, ok := let.Target.(*ast.IdentifierPattern)
	if !ok || ident.Name != "x" {
		t.Fatalf("expected target identifier pattern named x, got %#v", let.Target)
	}
	if _, ok := let.Value.(*ast.Binary); !ok {
		t.Fatalf("expected binary expression value, got %T", let.Value)
	}
}

func TestParseIfExpressionStatement(t *testing.T) {
	program := parseSource(t, "if x > 0 do 1 elif x < 0 do -1 else 0 end")
	exprStmt, ok := program.Statements[0].(*ast.ExpressionStatement)
	if !ok {
		t.Fatalf("expected expression statement, got %T", program.Statements[0])
	}
	ifExpr, ok := exprStmt.Expression.(*ast.If)
	if !ok {
		t.Fatalf("expected *ast.If, got %T", exprStmt.Expression)
	}
	if len(ifExpr.Elifs) != 1 {
		t.Fatalf("expected 1 elif clause, got %d", len(ifExpr.Elifs))
	}
	if ifExpr.Else == nil {
		t.Fatalf("expected an else block")
	}
}

func TestParseFunctionLiteral(t *testing.T) {
	program := parseSource(t, "let add = fn(a: Number, b: Number = 1) => Number do a + b end")
	let := program.Statements[0].(*ast.LetStatement)
	fnLit, ok := let.Value.(*ast.FunctionLiteral)
	if !ok {
		t.Fatalf("expected *ast.FunctionLiteral, got %T", let.Value)
	}
	if len(fnLit.Params) != 2 {
		t.Fatalf("expected 2 params, got %d", len(fnLit.Params))
	}
	if fnLit.Params[0].Type == nil {
		t.Errorf("expected first param to carry a type annotation")
	}
	if fnLit.Params[1].Default == nil {
		t.Errorf("expected second param to carry a default value")
	}
	if fnLit.ReturnType == nil {
		t.Errorf("expected a declared return type")
	}
}

func TestParsePostfixChain(t *testing.T) {
	program := parseSource(t, "f(x)[0].y")
	exprStmt := program.Statements[0].(*ast.ExpressionStatement)
	field, ok := exprStmt.Expression.(*ast.Field)
	if !ok {
		t.Fatalf("expected outermost *ast.Field, got %T", exprStmt.Expression)
	}
	index, ok := field.Receiver.(*ast.Index)
	if !ok {
		t.Fatalf("expected *ast.Index receiver, got %T", field.Receiver)
	}
	if _, ok := index.Receiver.(*ast.Call); !ok {
		t.Fatalf("expected *ast.Call receiver, got %T", index.Receiver)
	}
}

func TestParseMatchExpression(t *testing.T) {
	program := parseSource(t, `
		match x do
			0 => "zero",
			n with n > 0 => "positive",
			_ => "negative"
		end
	`)
	exprStmt := program.Statements[0].(*ast.ExpressionStatement)
	match, ok := exprStmt.Expression.(*ast.Match)
	if !ok {
		t.Fatalf("expected *ast.Match, got %T", exprStmt.Expression)
	}
	if len(match.Arms) != 3 {
		t.Fatalf("expected 3 arms, got %d", len(match.Arms))
	}
	if match.Arms[1].Guard == nil {
		t.Errorf("expected second arm to carry a guard")
	}
	if _, ok := match.Arms[2].Pattern.(*ast.WildcardPattern); !ok {
		t.Errorf("expected last arm to be a wildcard pattern, got %#v", match.Arms[2].Pattern)
	}
}

func TestParseListAndTableLiterals(t *testing.T) {
	program := parseSource(t, `let xs = [1, 2, 3]`)
	let := program.Statements[0].(*ast.LetStatement)
	list, ok := let.Value.(*ast.ListLiteral)
	if !ok || len(list.Elements) != 3 {
		t.Fatalf("expected a 3-element list literal, got %#v", let.Value)
	}

	program = parseSource(t, `let t = { x: 1, y: 2 }`)
	let = program.Statements[0].(*ast.LetStatement)
	tbl, ok := let.Value.(*ast.TableLiteral)
	if !ok || len(tbl.Fields) != 2 {
		t.Fatalf("expected a 2-field table literal, got %#v", let.Value)
	}
}

func TestParseListDestructuringLet(t *testing.T) {
	program := parseSource(t, "let [a, b, ...rest] = xs")
	let := program.Statements[0].(*ast.LetStatement)
	listPat, ok := let.Target.(*ast.ListPattern)
	if !ok {
		t.Fatalf("expected *ast.ListPattern, got %#v", let.Target)
	}
	if len(listPat.Elements) != 2 || listPat.Rest != "rest" {
		t.Fatalf("unexpected list pattern shape: %#v", listPat)
	}
}

func TestParseSyntaxErrorRecoverySynchronizes(t *testing.T) {
	tokens, _ := lexer.New("let = \n let y = 2", "<test>").Scan()
	program, diags := New(tokens, "<test>").Parse()
	if len(diags) == 0 {
		t.Fatalf("expected at least one diagnostic")
	}
	found := false
	for _, stmt := range program.Statements {
		if let, ok := stmt.(*ast.LetStatement); ok {
			if ident, ok := let.Target.(*ast.IdentifierPattern); ok && ident.Name == "y" {
				found = true
			}
		}
	}
	if !found {
		t.Errorf("expected parser to recover and still parse 'let y = 2'")
	}
}
