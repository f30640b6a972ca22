package syntax

import (
	"bytes"
	"fmt"
	"unicode/utf8"
)

type Lexer struct {
	src       []byte
	index     int
	line      int
	lineStart int
	stack     []lexerContext
	maxRead   int
}

type lexerContextKind int

const (
	defaultLexerContext lexerContextKind = iota
	interpolatedStringLexerContext
	interpolationHoleLexerContext
)

type lexerContext struct {
	kind       lexerContextKind
	braceDepth int
}

// State is a snapshot of the lexer position used for backtracking.
type State struct {
	index     int
	line      int
	lineStart int
	stack     []lexerContext
}

func NewLexer(src []byte, offset int) *Lexer {
	if offset < 0 || offset > len(src) {
		panic(fmt.Sprintf("lexer offset %d out of range [0,%d]", offset, len(src)))
	}
	l := &Lexer{
		src:   src,
		index: offset,
		line:  1 + bytes.Count(src[:offset], []byte{'\n'}),
		stack: []lexerContext{{kind: defaultLexerContext}},
	}
	if i := bytes.LastIndexByte(src[:offset], '\n'); i != -1 {
		l.lineStart = i + 1
	}
	return l
}

// Tokenize drains a lexer started at offset, including the final TokenEOF.
func Tokenize(src []byte, offset int) []Token {
	l := NewLexer(src, offset)
	var toks []Token
	for {
		tok := l.Next()
		toks = append(toks, tok)
		if tok.Kind == TokenEOF {
			return toks
		}
	}
}

// MaxRead is one past the furthest byte examined so far. Examining the end of
// input counts as reading byte len(src).
func (l *Lexer) MaxRead() int {
	return l.maxRead
}

// Touch records that the caller depends on bytes up to end.
func (l *Lexer) Touch(end int) {
	if end > l.maxRead {
		l.maxRead = end
	}
}

// AtBase reports whether the lexer is outside any interpolated string.
func (l *Lexer) AtBase() bool {
	return len(l.stack) == 1
}

func (l *Lexer) Offset() int {
	return l.index
}

func (l *Lexer) Save() State {
	return State{
		index:     l.index,
		line:      l.line,
		lineStart: l.lineStart,
		stack:     append([]lexerContext(nil), l.stack...),
	}
}

func (l *Lexer) Restore(s State) {
	l.index = s.index
	l.line = s.line
	l.lineStart = s.lineStart
	l.stack = append(l.stack[:0], s.stack...)
}

// Seek moves the lexer to pos and drops any open interpolated string.
func (l *Lexer) Seek(pos int) {
	if pos < 0 || pos > len(l.src) {
		panic(fmt.Sprintf("seek offset %d out of range [0,%d]", pos, len(l.src)))
	}
	l.stack = l.stack[:1]
	if pos >= l.index {
		l.line += bytes.Count(l.src[l.index:pos], []byte{'\n'})
	} else {
		l.line = 1 + bytes.Count(l.src[:pos], []byte{'\n'})
	}
	if i := bytes.LastIndexByte(l.src[:pos], '\n'); i != -1 {
		l.lineStart = i + 1
	} else {
		l.lineStart = 0
	}
	l.index = pos
}

func (l *Lexer) peek(i int) (byte, bool) {
	if i >= len(l.src) {
		l.Touch(len(l.src) + 1)
		return 0, false
	}
	l.Touch(i + 1)
	return l.src[i], true
}

func (l *Lexer) advance(to int) {
	for i := l.index; i < to; i++ {
		if l.src[i] == '\n' {
			l.line++
			l.lineStart = i + 1
		}
	}
	l.index = to
}

func (l *Lexer) emit(kind TokenKind, lit string, start, end int, newline bool) Token {
	line, col := l.line, start-l.lineStart+1
	l.advance(end)
	return Token{
		Kind:          kind,
		Lit:           lit,
		Start:         start,
		End:           end,
		Line:          line,
		Column:        col,
		NewlineBefore: newline,
	}
}

func (l *Lexer) Next() Token {
	switch l.stack[len(l.stack)-1].kind {
	case interpolatedStringLexerContext:
		return l.nextInString()
	default:
		return l.nextDefault()
	}
}

func (l *Lexer) nextDefault() Token {
	newline := false
	for {
		c, ok := l.peek(l.index)
		if !ok {
			return l.emit(TokenEOF, "", l.index, l.index, newline)
		}
		switch c {
		case '\n':
			newline = true
			l.advance(l.index + 1)
			continue
		case ' ', '\t', '\r', '\f', '\v':
			l.advance(l.index + 1)
			continue
		}
		break
	}

	start := l.index
	c, _ := l.peek(start)
	switch {
	case c == '#':
		end := start + 1
		for {
			c, ok := l.peek(end)
			if !ok || c == '\n' {
				break
			}
			end++
		}
		return l.emit(TokenComment, "", start, end, newline)

	case c == '"':
		return l.lexString(start, newline)

	case isDigit(c):
		end := start + 1
		for {
			c, ok := l.peek(end)
			if !ok || !isDigit(c) {
				break
			}
			end++
		}
		if c, ok := l.peek(end); ok && c == '.' {
			if d, ok := l.peek(end + 1); ok && isDigit(d) {
				end += 2
				for {
					c, ok := l.peek(end)
					if !ok || !isDigit(c) {
						break
					}
					end++
				}
			}
		}
		return l.emit(TokenNumber, "", start, end, newline)

	case isIdentStart(c):
		end := start + 1
		for {
			c, ok := l.peek(end)
			if !ok || !isIdentPart(c) {
				break
			}
			end++
		}
		word := string(l.src[start:end])
		if word == "s" {
			if c, ok := l.peek(end); ok && c == '"' {
				l.stack = append(l.stack, lexerContext{kind: interpolatedStringLexerContext})
				return l.emit(TokenPunct, `s"`, start, end+1, newline)
			}
		}
		if IsKeyword(word) {
			return l.emit(TokenKeyword, word, start, end, newline)
		}
		return l.emit(TokenIdentifier, "", start, end, newline)
	}

	if d, ok := l.peek(start + 1); ok {
		if op := string([]byte{c, d}); twoBytePuncts[op] {
			return l.emit(TokenPunct, op, start, start+2, newline)
		}
	}

	if op, ok := oneBytePuncts[c]; ok {
		top := &l.stack[len(l.stack)-1]
		if top.kind == interpolationHoleLexerContext {
			switch c {
			case '{':
				top.braceDepth++
			case '}':
				if top.braceDepth == 0 {
					l.stack = l.stack[:len(l.stack)-1]
				} else {
					top.braceDepth--
				}
			}
		}
		return l.emit(TokenPunct, op, start, start+1, newline)
	}

	_, size := utf8.DecodeRune(l.src[start:])
	l.Touch(start + size)
	return l.emit(TokenError, "", start, start+size, newline)
}

// lexString scans a plain string literal. An unterminated literal becomes an
// error token that ends with its first line.
func (l *Lexer) lexString(start int, newline bool) Token {
	end := start + 1
	for {
		c, ok := l.peek(end)
		if !ok {
			break
		}
		switch c {
		case '"':
			return l.emit(TokenString, "", start, end+1, newline)
		case '\\':
			if _, ok := l.peek(end + 1); ok {
				end += 2
				continue
			}
		}
		end++
	}

	if i := bytes.IndexByte(l.src[start:], '\n'); i != -1 {
		return l.emit(TokenError, "", start, start+i, newline)
	}
	return l.emit(TokenError, "", start, len(l.src), newline)
}

func (l *Lexer) nextInString() Token {
	start := l.index
	c, ok := l.peek(start)
	if !ok {
		return l.emit(TokenEOF, "", start, start, false)
	}
	switch c {
	case '"':
		l.stack = l.stack[:len(l.stack)-1]
		return l.emit(TokenPunct, `"`, start, start+1, false)
	case '$':
		if d, ok := l.peek(start + 1); ok {
			switch d {
			case '$':
				return l.emit(TokenEscapedDollar, "", start, start+2, false)
			case '{':
				l.stack = append(l.stack, lexerContext{kind: interpolationHoleLexerContext})
				return l.emit(TokenPunct, "${", start, start+2, false)
			}
		}
	}

	end := start
	for {
		c, ok := l.peek(end)
		if !ok || c == '"' {
			break
		}
		if c == '$' {
			if d, ok := l.peek(end + 1); ok && (d == '$' || d == '{') {
				break
			}
		}
		if c == '\\' {
			if _, ok := l.peek(end + 1); ok {
				end += 2
				continue
			}
		}
		end++
	}
	return l.emit(TokenStringContent, "", start, end, false)
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func isIdentStart(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || c == '_'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}
