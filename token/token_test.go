package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"luma/diag"
)

func TestNewConstructsTokenWithoutLiteral(t *testing.T) {
	span := diag.Span{Start: 3, End: 6}
	tests := []struct {
		name      string
		tokenType TokenType
		lexeme    string
		want      Token
	}{
		{"assign", ASSIGN, "=", Token{Type: ASSIGN, Lexeme: "=", Span: span}},
		{"identifier", IDENTIFIER, "myVar", Token{Type: IDENTIFIER, Lexeme: "myVar", Span: span}},
		{"star", STAR, "*", Token{Type: STAR, Lexeme: "*", Span: span}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.tokenType, tt.lexeme, span)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewLiteralCarriesInterpretedValue(t *testing.T) {
	span := diag.Span{Start: 0, End: 2}
	got := NewLiteral(NUMBER, 42.0, "42", span)
	want := Token{Type: NUMBER, Lexeme: "42", Literal: 42.0, Span: span}
	assert.Equal(t, want, got)
}

func TestKeyWordsMapsEveryReservedWordToItsTokenType(t *testing.T) {
	cases := map[string]TokenType{
		"let":      LET,
		"var":      VAR,
		"fn":       FN,
		"if":       IF,
		"else":     ELSE,
		"elif":     ELIF,
		"do":       DO,
		"end":      END,
		"while":    WHILE,
		"for":      FOR,
		"in":       IN,
		"return":   RETURN,
		"break":    BREAK,
		"continue": CONTINUE,
		"match":    MATCH,
		"with":     WITH,
		"true":     TRUE,
		"false":    FALSE,
		"null":     NULL,
		"type":     TYPE,
	}
	for word, want := range cases {
		got, ok := KeyWords[word]
		require.True(t, ok, "KeyWords[%q] missing", word)
		assert.Equal(t, want, got)
	}
}

func TestStringFormatsTypeAndLexeme(t *testing.T) {
	tok := New(PLUS, "+", diag.Span{})
	assert.Equal(t, `Token {Type: +, Lexeme: "+"}`, tok.String())
}
