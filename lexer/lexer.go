// Package lexer turns Luma source text into a stream of tokens with a
// single-pass, hand-rolled scanner. It tracks byte offsets instead of
// line/column pairs, so every token carries a diag.Span usable by every
// later stage.
package lexer

import (
	"fmt"
	"unicode/utf8"

	"luma/diag"
	"luma/token"
)

const commentStart = '/'

func isLetter(r rune) bool {
	return 'a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || r == '_'
}

func isDigit(r rune) bool {
	return '0' <= r && r <= '9'
}

// Lexer scans UTF-8 source text into tokens. Callers must normalize "\r\n"
// and bare "\r" to "\n" before constructing a Lexer; Lexer treats a
// leftover "\r" as plain whitespace rather than erroring.
type Lexer struct {
	source string
	pos    int // byte offset of currentChar
	width  int // byte width of currentChar
	readPos int // byte offset of the next rune to read

	currentChar rune

	tokens []token.Token
	errors []diag.Diagnostic
	file   string
}

// New constructs a Lexer over source, attributing diagnostics to file.
func New(source, file string) *Lexer {
	l := &Lexer{source: source, file: file}
	l.readChar()
	return l
}

func (l *Lexer) isFinished() bool {
	return l.pos >= len(l.source)
}

func (l *Lexer) readChar() {
	l.pos = l.readPos
	if l.readPos >= len(l.source) {
		l.currentChar = 0
		l.width = 0
		return
	}
	r, w := utf8.DecodeRuneInString(l.source[l.readPos:])
	l.currentChar = r
	l.width = w
	l.readPos += w
}

// peek returns the rune after currentChar without consuming it.
func (l *Lexer) peek() rune {
	if l.readPos >= len(l.source) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.source[l.readPos:])
	return r
}

func (l *Lexer) isMatch(expected rune) bool {
	if l.peek() != expected {
		return false
	}
	l.readChar()
	return true
}

func (l *Lexer) isWhitespace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\r' || r == '\n'
}

func (l *Lexer) skipWhitespace() {
	for l.isWhitespace(l.currentChar) {
		l.readChar()
	}
}

func (l *Lexer) skipLineComment() {
	for l.currentChar != '\n' && !l.isFinished() {
		l.readChar()
	}
}

func (l *Lexer) span(start int) diag.Span {
	return diag.NewSpan(start, l.pos)
}

// Scan performs lexical analysis over the whole input, returning every
// token found (terminated by a single EOF token) and every diagnostic
// encountered. It never aborts on the first error; it keeps scanning so
// the parser can report as many problems as possible in one pass.
func (l *Lexer) Scan() ([]token.Token, []diag.Diagnostic) {
	for !l.isFinished() || l.currentChar != 0 {
		l.skipWhitespace()
		if l.isFinished() && l.currentChar == 0 {
			break
		}
		l.scanOne()
	}
	eofPos := len(l.source)
	l.tokens = append(l.tokens, token.New(token.EOF, "", diag.NewSpan(eofPos, eofPos)))
	return l.tokens, l.errors
}

func (l *Lexer) emit(tt token.TokenType, lexeme string, start int) {
	l.tokens = append(l.tokens, token.New(tt, lexeme, l.span(start)))
}

func (l *Lexer) scanOne() {
	start := l.pos

	switch c := l.currentChar; {
	case c == '(':
		l.readChar()
		l.emit(token.LPAREN, "(", start)
	case c == ')':
		l.readChar()
		l.emit(token.RPAREN, ")", start)
	case c == '{':
		l.readChar()
		l.emit(token.LBRACE, "{", start)
	case c == '}':
		l.readChar()
		l.emit(token.RBRACE, "}", start)
	case c == '[':
		l.readChar()
		l.emit(token.LBRACKET, "[", start)
	case c == ']':
		l.readChar()
		l.emit(token.RBRACKET, "]", start)
	case c == ',':
		l.readChar()
		l.emit(token.COMMA, ",", start)
	case c == ';':
		l.readChar()
		l.emit(token.SEMICOLON, ";", start)
	case c == '.':
		l.readChar()
		l.emit(token.DOT, ".", start)
	case c == ':':
		l.readChar()
		l.emit(token.COLON, ":", start)
	case c == '+':
		l.readChar()
		l.emit(token.PLUS, "+", start)
	case c == '-':
		l.readChar()
		l.emit(token.MINUS, "-", start)
	case c == '*':
		l.readChar()
		l.emit(token.STAR, "*", start)
	case c == '%':
		l.readChar()
		l.emit(token.PERCENT, "%", start)
	case c == '/':
		if l.peek() == '/' {
			l.skipLineComment()
			return
		}
		l.readChar()
		l.emit(token.SLASH, "/", start)
	case c == '=':
		if l.isMatch('=') {
			l.readChar()
			l.emit(token.EQUAL_EQUAL, "==", start)
			return
		}
		if l.isMatch('>') {
			l.readChar()
			l.emit(token.ARROW, "=>", start)
			return
		}
		l.readChar()
		l.emit(token.ASSIGN, "=", start)
	case c == '!':
		if l.isMatch('=') {
			l.readChar()
			l.emit(token.NOT_EQUAL, "!=", start)
			return
		}
		l.readChar()
		l.emit(token.BANG, "!", start)
	case c == '<':
		if l.isMatch('=') {
			l.readChar()
			l.emit(token.LESS_EQUAL, "<=", start)
			return
		}
		l.readChar()
		l.emit(token.LESS, "<", start)
	case c == '>':
		if l.isMatch('=') {
			l.readChar()
			l.emit(token.GREATER_EQUAL, ">=", start)
			return
		}
		l.readChar()
		l.emit(token.GREATER, ">", start)
	case c == '&':
		if l.isMatch('&') {
			l.readChar()
			l.emit(token.AND, "&&", start)
			return
		}
		l.readChar()
		l.errorf(start, "unexpected character '&'")
	case c == '|':
		if l.isMatch('|') {
			l.readChar()
			l.emit(token.OR, "||", start)
			return
		}
		l.readChar()
		l.emit(token.PIPE, "|", start)
	case c == '"':
		l.scanString(start)
	case isDigit(c):
		l.scanNumber(start)
	case isLetter(c):
		l.scanIdentifier(start)
	default:
		r := c
		l.readChar()
		l.errorf(start, "unexpected character %q", r)
	}
}

func (l *Lexer) errorf(start int, format string, args ...any) {
	l.errors = append(l.errors, diag.Errorf(diag.KindSyntax, l.span(start), l.file, format, args...))
}

func (l *Lexer) scanIdentifier(start int) {
	for isLetter(l.currentChar) || isDigit(l.currentChar) {
		l.readChar()
	}
	lexeme := l.source[start:l.pos]
	if kw, ok := token.KeyWords[lexeme]; ok {
		l.emit(kw, lexeme, start)
		return
	}
	l.emit(token.IDENTIFIER, lexeme, start)
}

func (l *Lexer) scanNumber(start int) {
	decimalSeen := false
	for isDigit(l.currentChar) || (l.currentChar == '.' && !decimalSeen && isDigit(l.peek())) {
		if l.currentChar == '.' {
			decimalSeen = true
		}
		l.readChar()
	}
	lexeme := l.source[start:l.pos]
	var value float64
	_, err := fmt.Sscanf(lexeme, "%g", &value)
	if err != nil {
		l.errorf(start, "invalid number literal %q", lexeme)
		return
	}
	l.tokens = append(l.tokens, token.NewLiteral(token.NUMBER, value, lexeme, l.span(start)))
}

func (l *Lexer) scanString(start int) {
	l.readChar() // consume opening quote
	var content []byte
	closed := false
	for !l.isFinished() {
		if l.currentChar == '"' {
			l.readChar()
			closed = true
			break
		}
		if l.currentChar == '\n' {
			break
		}
		if l.currentChar == '\\' {
			l.readChar()
			switch l.currentChar {
			case '\\':
				content = append(content, '\\')
			case '"':
				content = append(content, '"')
			case 'n':
				content = append(content, '\n')
			case 't':
				content = append(content, '\t')
			case 'r':
				content = append(content, '\r')
			default:
				l.errorf(l.pos, "invalid escape sequence '\\%c'", l.currentChar)
				content = append(content, byte(l.currentChar))
			}
			l.readChar()
			continue
		}
		var buf [utf8.UTFMax]byte
		n := utf8.EncodeRune(buf[:], l.currentChar)
		content = append(content, buf[:n]...)
		l.readChar()
	}
	if !closed {
		l.errorf(start, "unclosed string literal")
		return
	}
	l.tokens = append(l.tokens, token.NewLiteral(token.STRING, string(content), l.source[start:l.pos], l.span(start)))
}
