package syntax

import "fmt"

type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenIdentifier
	TokenNumber
	TokenString
	TokenKeyword
	TokenPunct
	TokenComment
	TokenStringContent
	TokenEscapedDollar
	TokenError
)

var tokenKindNames = [...]string{
	TokenEOF:           "end_of_input",
	TokenIdentifier:    "identifier",
	TokenNumber:        "number",
	TokenString:        "string",
	TokenKeyword:       "keyword",
	TokenPunct:         "punctuation",
	TokenComment:       "comment",
	TokenStringContent: "string_content",
	TokenEscapedDollar: "escaped_dollar",
	TokenError:         "error_token",
}

func (k TokenKind) String() string {
	if int(k) < len(tokenKindNames) {
		return tokenKindNames[k]
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Token is a classified byte span of the source. Lit is set for keywords and
// punctuation only; other kinds keep their raw span and nothing else.
type Token struct {
	Kind   TokenKind
	Lit    string
	Start  int
	End    int
	Line   int
	Column int

	// NewlineBefore reports whether a line break separates the token from
	// the previous one.
	NewlineBefore bool
}

func (t Token) Len() int {
	return t.End - t.Start
}

// Symbol is the terminal name the grammar matches against.
func (t Token) Symbol() string {
	switch t.Kind {
	case TokenKeyword, TokenPunct:
		return t.Lit
	default:
		return t.Kind.String()
	}
}

func (t Token) Text(src []byte) string {
	return string(src[t.Start:t.End])
}

func (t Token) String() string {
	return fmt.Sprintf("%s@%d..%d(%d:%d)", t.Symbol(), t.Start, t.End, t.Line, t.Column)
}

var keywords = map[string]bool{
	"let":      true,
	"def":      true,
	"end":      true,
	"module":   true,
	"import":   true,
	"include":  true,
	"if":       true,
	"elif":     true,
	"else":     true,
	"match":    true,
	"foreach":  true,
	"while":    true,
	"do":       true,
	"break":    true,
	"continue": true,
	"fn":       true,
	"self":     true,
	"nodes":    true,
	"true":     true,
	"false":    true,
	"None":     true,
	"_":        true,
}

func IsKeyword(word string) bool {
	return keywords[word]
}

// Two-byte operators are tried before their one-byte prefixes.
var twoBytePuncts = map[string]bool{
	"||": true,
	"&&": true,
	"==": true,
	"!=": true,
	"<=": true,
	">=": true,
	"..": true,
	"::": true,
}

var oneBytePuncts = map[byte]string{
	'|': "|",
	'<': "<",
	'>': ">",
	'+': "+",
	'-': "-",
	'*': "*",
	'/': "/",
	'%': "%",
	'!': "!",
	'=': "=",
	'.': ".",
	':': ":",
	';': ";",
	',': ",",
	'(': "(",
	')': ")",
	'[': "[",
	']': "]",
	'{': "{",
	'}': "}",
}
