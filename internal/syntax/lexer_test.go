package syntax_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/karupanerura/mq-cst/internal/syntax"
)

func render(src string, toks []syntax.Token) []string {
	out := make([]string, 0, len(toks))
	for _, tok := range toks {
		s := fmt.Sprintf("%s %q", tok.Symbol(), tok.Text([]byte(src)))
		if tok.NewlineBefore {
			s = "\\n " + s
		}
		out = append(out, s)
	}
	return out
}

func TestTokenize(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		name     string
		source   string
		expected []string
	}{
		{
			name:     "empty",
			source:   "",
			expected: []string{`end_of_input ""`},
		},
		{
			name:   "let",
			source: "let x = 1.5",
			expected: []string{
				`let "let"`, `identifier "x"`, `= "="`, `number "1.5"`, `end_of_input ""`,
			},
		},
		{
			name:   "number followed by range",
			source: "1..2",
			expected: []string{
				`number "1"`, `.. ".."`, `number "2"`, `end_of_input ""`,
			},
		},
		{
			name:   "selector on number-like",
			source: "x.1",
			expected: []string{
				`identifier "x"`, `. "."`, `number "1"`, `end_of_input ""`,
			},
		},
		{
			name:   "comments and newlines",
			source: "# head\nx # tail\n  y",
			expected: []string{
				`comment "# head"`, `\n identifier "x"`, `comment "# tail"`, `\n identifier "y"`, `end_of_input ""`,
			},
		},
		{
			name:   "operators",
			source: "a||b&&c==d!=e<=f>=g::h|i<j>k",
			expected: []string{
				`identifier "a"`, `|| "||"`, `identifier "b"`, `&& "&&"`, `identifier "c"`,
				`== "=="`, `identifier "d"`, `!= "!="`, `identifier "e"`, `<= "<="`,
				`identifier "f"`, `>= ">="`, `identifier "g"`, `:: "::"`, `identifier "h"`,
				`| "|"`, `identifier "i"`, `< "<"`, `identifier "j"`, `> ">"`, `identifier "k"`,
				`end_of_input ""`,
			},
		},
		{
			name:   "keywords",
			source: "def end self nodes None _ foo_1",
			expected: []string{
				`def "def"`, `end "end"`, `self "self"`, `nodes "nodes"`, `None "None"`, `_ "_"`,
				`identifier "foo_1"`, `end_of_input ""`,
			},
		},
		{
			name:   "string with escapes",
			source: `"a\"b" "c"`,
			expected: []string{
				`string "\"a\\\"b\""`, `string "\"c\""`, `end_of_input ""`,
			},
		},
		{
			name:   "unterminated string ends with its line",
			source: "\"abc\nx",
			expected: []string{
				`error_token "\"abc"`, `\n identifier "x"`, `end_of_input ""`,
			},
		},
		{
			name:   "stray byte",
			source: "a @ b",
			expected: []string{
				`identifier "a"`, `error_token "@"`, `identifier "b"`, `end_of_input ""`,
			},
		},
		{
			name:   "stray multibyte rune",
			source: "あ",
			expected: []string{
				`error_token "あ"`, `end_of_input ""`,
			},
		},
		{
			name:   "interpolated string",
			source: `s"a$${x + {k: 1}}b"`,
			expected: []string{
				`s" "s\""`, `string_content "a"`, `escaped_dollar "$$"`, `string_content "{x + {k: 1}}b"`, `" "\""`,
				`end_of_input ""`,
			},
		},
		{
			name:   "interpolation hole",
			source: `s"a${f({k: 1})}b" c`,
			expected: []string{
				`s" "s\""`, `string_content "a"`, `${ "${"`, `identifier "f"`, `( "("`, `{ "{"`,
				`identifier "k"`, `: ":"`, `number "1"`, `} "}"`, `) ")"`, `} "}"`,
				`string_content "b"`, `" "\""`, `identifier "c"`, `end_of_input ""`,
			},
		},
		{
			name:   "s alone is an identifier",
			source: `s "x"`,
			expected: []string{
				`identifier "s"`, `string "\"x\""`, `end_of_input ""`,
			},
		},
	} {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			toks := syntax.Tokenize([]byte(tt.source), 0)
			if diff := cmp.Diff(tt.expected, render(tt.source, toks)); diff != "" {
				t.Errorf("(-expected, +actual)\n%s", diff)
			}
		})
	}
}

func TestTokenPositions(t *testing.T) {
	t.Parallel()

	toks := syntax.Tokenize([]byte("let x\n  = 1"), 0)
	expected := []syntax.Token{
		{Kind: syntax.TokenKeyword, Lit: "let", Start: 0, End: 3, Line: 1, Column: 1},
		{Kind: syntax.TokenIdentifier, Start: 4, End: 5, Line: 1, Column: 5},
		{Kind: syntax.TokenPunct, Lit: "=", Start: 8, End: 9, Line: 2, Column: 3, NewlineBefore: true},
		{Kind: syntax.TokenNumber, Start: 10, End: 11, Line: 2, Column: 5},
		{Kind: syntax.TokenEOF, Start: 11, End: 11, Line: 2, Column: 6},
	}
	if diff := cmp.Diff(expected, toks); diff != "" {
		t.Errorf("(-expected, +actual)\n%s", diff)
	}
}

func TestLexerOffset(t *testing.T) {
	t.Parallel()

	src := []byte("a\nbb cc")
	toks := syntax.Tokenize(src, 5)
	if diff := cmp.Diff([]string{`identifier "cc"`, `end_of_input ""`}, render(string(src), toks)); diff != "" {
		t.Errorf("(-expected, +actual)\n%s", diff)
	}
	if toks[0].Line != 2 || toks[0].Column != 4 {
		t.Errorf("unexpected position: %d:%d", toks[0].Line, toks[0].Column)
	}
}

func TestLexerMaxRead(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		source   string
		expected int
	}{
		// the identifier ends at the space, which had to be read
		{source: "abc def", expected: 4},
		// reaching the end of input counts as one more byte
		{source: "abc", expected: 4},
		{source: "a..", expected: 2},
	} {
		tt := tt
		t.Run(tt.source, func(t *testing.T) {
			t.Parallel()

			l := syntax.NewLexer([]byte(tt.source), 0)
			l.Next()
			if got := l.MaxRead(); got != tt.expected {
				t.Errorf("MaxRead() = %d, expected %d", got, tt.expected)
			}
		})
	}
}

func TestLexerSaveRestore(t *testing.T) {
	t.Parallel()

	src := []byte(`s"${a}" b`)
	l := syntax.NewLexer(src, 0)
	l.Next() // s"
	st := l.Save()
	first := []syntax.Token{l.Next(), l.Next(), l.Next()}
	if l.AtBase() {
		t.Fatal("should be inside the string")
	}
	l.Restore(st)
	second := []syntax.Token{l.Next(), l.Next(), l.Next()}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("(-first, +second)\n%s", diff)
	}
}

func TestLexerSeek(t *testing.T) {
	t.Parallel()

	src := []byte("a\nb\nc")
	l := syntax.NewLexer(src, 0)
	l.Seek(3)
	tok := l.Next()
	if tok.Start != 4 || tok.Line != 3 || tok.Column != 1 || !tok.NewlineBefore {
		t.Errorf("unexpected token after seek: %s", tok)
	}
}

func FuzzTokenize(f *testing.F) {
	for _, seed := range []string{
		"", "let x = 1", `s"a${b}c"`, "\"open\n", "#c", "a::b(1,2)", `s"${`, "1.2.3",
	} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, src string) {
		toks := syntax.Tokenize([]byte(src), 0)
		prevEnd := 0
		for i, tok := range toks {
			if tok.Start < prevEnd || tok.End < tok.Start {
				t.Fatalf("token #%d %s overlaps or is inverted", i, tok)
			}
			if tok.Kind != syntax.TokenEOF && tok.Len() == 0 && tok.Kind != syntax.TokenStringContent {
				t.Fatalf("token #%d %s is empty", i, tok)
			}
			if strings.TrimSpace(src[prevEnd:tok.Start]) != "" {
				t.Fatalf("bytes %q before token #%d were not tokenized", src[prevEnd:tok.Start], i)
			}
			prevEnd = tok.End
		}
		if last := toks[len(toks)-1]; last.Kind != syntax.TokenEOF || last.End != len(src) {
			t.Fatalf("does not end with end of input: %s", last)
		}
	})
}
