package lexer

import (
	"testing"

	"luma/diag"
	"luma/token"
)

func tokenTypes(tokens []token.Token) []token.TokenType {
	types := make([]token.TokenType, len(tokens))
	for i, tok := range tokens {
		types[i] = tok.Type
	}
	return types
}

func assertTypes(t *testing.T, got []token.TokenType, want ...token.TokenType) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d tokens %v, want %d %v", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestScanOperators(t *testing.T) {
	l := New("== != <= >= < > = + - * / % && || !", "<test>")
	tokens, diags := l.Scan()
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	assertTypes(t, tokenTypes(tokens),
		token.EQUAL_EQUAL, token.NOT_EQUAL, token.LESS_EQUAL, token.GREATER_EQUAL,
		token.LESS, token.GREATER, token.ASSIGN, token.PLUS, token.MINUS, token.STAR,
		token.SLASH, token.PERCENT, token.AND, token.OR, token.BANG, token.EOF)
}

func TestScanKeywordsAndIdentifiers(t *testing.T) {
	l := New("let x = 5 fn do end", "<test>")
	tokens, diags := l.Scan()
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	assertTypes(t, tokenTypes(tokens),
		token.LET, token.IDENTIFIER, token.ASSIGN, token.NUMBER, token.FN, token.DO, token.END, token.EOF)
}

func TestScanNumberLiteral(t *testing.T) {
	l := New("3.14", "<test>")
	tokens, diags := l.Scan()
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if len(tokens) != 2 {
		t.Fatalf("expected a NUMBER and an EOF token, got %v", tokens)
	}
	if tokens[0].Literal.(float64) != 3.14 {
		t.Errorf("got literal %v, want 3.14", tokens[0].Literal)
	}
}

func TestScanStringLiteralEscapes(t *testing.T) {
	l := New(`"a\nb\t\"c\""`, "<test>")
	tokens, diags := l.Scan()
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	want := "a\nb\t\"c\""
	if tokens[0].Literal.(string) != want {
		t.Errorf("got literal %q, want %q", tokens[0].Literal, want)
	}
}

func TestScanUnclosedStringProducesDiagnostic(t *testing.T) {
	l := New(`"unterminated`, "<test>")
	_, diags := l.Scan()
	if len(diags) != 1 {
		t.Fatalf("expected one diagnostic, got %d: %v", len(diags), diags)
	}
}

func TestScanUnexpectedCharacter(t *testing.T) {
	l := New("@", "<test>")
	_, diags := l.Scan()
	if len(diags) != 1 {
		t.Fatalf("expected one diagnostic for '@', got %d", len(diags))
	}
	if diags[0].Kind != diag.KindSyntax {
		t.Errorf("expected a syntax diagnostic, got %v", diags[0].Kind)
	}
}

func TestLineCommentIsSkipped(t *testing.T) {
	l := New("1 // a comment\n+ 2", "<test>")
	tokens, diags := l.Scan()
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	assertTypes(t, tokenTypes(tokens), token.NUMBER, token.PLUS, token.NUMBER, token.EOF)
}
