package lexer

// TokenType represents the type of a token
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenIllegal

	// Literals
	TokenIdent // ADD, loop, exit
	TokenReg   // %3
	TokenInt   // 42, -7

	// Punctuation
	TokenComma   // ,
	TokenColon   // :
	TokenNewline // end of line
)

var tokenNames = map[TokenType]string{
	TokenEOF:     "EOF",
	TokenIllegal: "ILLEGAL",
	TokenIdent:   "IDENT",
	TokenReg:     "REG",
	TokenInt:     "INT",
	TokenComma:   ",",
	TokenColon:   ":",
	TokenNewline: "NEWLINE",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// Token represents a lexical token
type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Column  int
}
