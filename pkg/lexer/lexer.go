// Package lexer tokenizes the textual IR: one instruction or label per line,
// registers written %N and comments starting with ';'.
package lexer

import (
	"unicode"
)

// Lexer tokenizes IR source text
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // next reading position
	ch      byte // current character
	line    int
	column  int
}

// New creates a new Lexer for the given input
func New(input string) *Lexer {
	l := &Lexer{input: input, line: 1, column: 0}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
	l.column++
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

// NextToken returns the next token from the input.
// Line breaks are significant and come back as TokenNewline.
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()
	if l.ch == ';' {
		l.skipComment()
	}

	tok := Token{Line: l.line, Column: l.column}

	switch l.ch {
	case 0:
		tok.Type = TokenEOF
		tok.Literal = ""
		return tok
	case '\n':
		tok = l.newToken(TokenNewline, l.ch)
		l.readChar()
		l.line++
		l.column = 1
		return tok
	case ',':
		tok = l.newToken(TokenComma, l.ch)
	case ':':
		tok = l.newToken(TokenColon, l.ch)
	case '%':
		if !isDigit(l.peekChar()) {
			tok = l.newToken(TokenIllegal, l.ch)
			break
		}
		l.readChar() // consume %
		tok.Type = TokenReg
		tok.Literal = l.readNumber()
		return tok
	case '-', '+':
		if !isDigit(l.peekChar()) {
			tok = l.newToken(TokenIllegal, l.ch)
			break
		}
		sign := l.ch
		l.readChar()
		tok.Type = TokenInt
		tok.Literal = l.readNumber()
		if sign == '-' {
			tok.Literal = "-" + tok.Literal
		}
		return tok
	default:
		if isLetter(l.ch) {
			tok.Type = TokenIdent
			tok.Literal = l.readIdentifier()
			return tok
		} else if isDigit(l.ch) {
			tok.Type = TokenInt
			tok.Literal = l.readNumber()
			return tok
		}
		tok = l.newToken(TokenIllegal, l.ch)
	}

	l.readChar()
	return tok
}

func (l *Lexer) newToken(tokenType TokenType, ch byte) Token {
	return Token{Type: tokenType, Literal: string(ch), Line: l.line, Column: l.column}
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' {
		l.readChar()
	}
}

// skipComment stops at the newline so the line still terminates
func (l *Lexer) skipComment() {
	for l.ch != '\n' && l.ch != 0 {
		l.readChar()
	}
}

func (l *Lexer) readIdentifier() string {
	pos := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '.' {
		l.readChar()
	}
	return l.input[pos:l.pos]
}

func (l *Lexer) readNumber() string {
	pos := l.pos
	for isDigit(l.ch) {
		l.readChar()
	}
	return l.input[pos:l.pos]
}

func isLetter(ch byte) bool {
	return unicode.IsLetter(rune(ch)) || ch == '_' || ch == '.'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}
