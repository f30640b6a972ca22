package grammar

import (
	"strings"
	"testing"
)

func TestMQTable(t *testing.T) {
	t.Parallel()

	if MQ.Rule(SourceFile) == nil {
		t.Fatal("start rule is missing")
	}
	for _, sym := range []string{"let", "|", "identifier", `s"`, "${", "::", EOFSym, CommentSym, ErrorSym} {
		if _, ok := MQ.TermID(sym); !ok {
			t.Errorf("terminal %q is not registered", sym)
		}
	}

	statement := &Ref{Name: "_statement"}
	for _, sym := range []string{"let", "def", "|", "identifier", "number", "[", "{", ":", ".", "!", "-", `s"`} {
		id, _ := MQ.TermID(sym)
		if !MQ.First(statement).Has(id) {
			t.Errorf("%q should start a statement", sym)
		}
	}
	for _, sym := range []string{"end", ";", ")", "]", "}", "=", "elif", EOFSym} {
		id, _ := MQ.TermID(sym)
		if MQ.First(statement).Has(id) {
			t.Errorf("%q should not start a statement", sym)
		}
	}
	if MQ.Nullable(statement) {
		t.Error("statements must not be nullable")
	}
	if !MQ.Nullable(&Ref{Name: SourceFile}) {
		t.Error("an empty file is a valid source_file")
	}
}

func TestBuildRejects(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		name     string
		rules    []*Rule
		expected string
	}{
		{
			name:     "undefined start",
			rules:    []*Rule{node("other", tok("a"))},
			expected: "start rule is not defined",
		},
		{
			name: "duplicated rule",
			rules: []*Rule{
				node("start", tok("a")),
				node("start", tok("b")),
			},
			expected: "duplicated rule",
		},
		{
			name:     "hidden naming",
			rules:    []*Rule{node("start", ref("inner")), hidden("inner", "", tok("a"))},
			expected: "hidden rules and only hidden rules",
		},
		{
			name:     "undefined reference",
			rules:    []*Rule{node("start", ref("nowhere"))},
			expected: `reference to undefined rule "nowhere"`,
		},
		{
			name: "ambiguous choice",
			rules: []*Rule{
				node("start", choice(seq(tok("a"), tok("b")), seq(tok("a"), tok("c")))),
			},
			expected: "choice alternatives are ambiguous on: a",
		},
		{
			name: "left recursion",
			rules: []*Rule{
				node("start", ref("expr")),
				node("expr", choice(seq(ref("expr"), tok("+"), tok("n")), tok("n"))),
			},
			expected: "left recursion",
		},
		{
			name:     "nullable repetition",
			rules:    []*Rule{node("start", rep(opt(tok("a"))))},
			expected: "repetition body must not match the empty string",
		},
		{
			name:     "closers overlap statements",
			rules:    []*Rule{node("start", &Stmts{Item: tok("a"), Closers: []string{"a"}})},
			expected: "statement list closers overlap statements: a",
		},
		{
			name: "ambiguous postfix",
			rules: []*Rule{
				node("start", &Postfix{
					Head: tok("n"),
					Cases: []PostfixCase{
						{Kind: "x", Tail: seq(tok("("), tok(")"))},
						{Kind: "y", Tail: seq(tok("("), tok("n"))},
					},
				}),
			},
			expected: "postfix alternatives are ambiguous on: (",
		},
		{
			name:     "single ordered alternative",
			rules:    []*Rule{node("start", try(tok("a")))},
			expected: "ordered choice needs at least two alternatives",
		},
	} {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Build("test", "start", tt.rules)
			if err == nil {
				t.Fatal("should be rejected")
			}
			if !strings.Contains(err.Error(), tt.expected) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestBuildAllowsOrderedOverlap(t *testing.T) {
	t.Parallel()

	_, err := Build("test", "start", []*Rule{
		node("start", try(seq(tok("a"), tok("b")), seq(tok("a"), tok("c")))),
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestMustBuildPanics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("should panic")
		}
	}()
	MustBuild("test", "start", nil)
}

func TestTermSet(t *testing.T) {
	t.Parallel()

	var s TermSet
	for _, id := range []int{0, 63, 64, 127} {
		s.Add(id)
	}
	if !s.Has(63) || !s.Has(64) || s.Has(1) || s.Has(-1) || s.Has(128) {
		t.Errorf("unexpected membership: %v", s.IDs())
	}
	var o TermSet
	o.Add(64)
	o.Add(5)
	if ids := s.Intersect(o).IDs(); len(ids) != 1 || ids[0] != 64 {
		t.Errorf("unexpected intersection: %v", ids)
	}
	if ids := s.Union(o).IDs(); len(ids) != 5 {
		t.Errorf("unexpected union: %v", ids)
	}
}
