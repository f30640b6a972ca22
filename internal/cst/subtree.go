package cst

import (
	"github.com/karupanerura/mq-cst/internal/grammar"
	"github.com/karupanerura/mq-cst/internal/syntax"
)

// Subtree is an immutable syntax node. Positions are relative: a subtree only
// knows its own length and the offsets of its children, so the same value can
// sit in several tree revisions at different absolute positions.
type Subtree struct {
	kind     string
	named    bool
	length   int
	children []Edge

	// leaves
	leaf      bool
	tokenKind syntax.TokenKind
	lit       string

	expected  string
	hasError  bool
	statement bool

	// lookahead is how many bytes past the end were examined to build it.
	lookahead int
}

// Edge attaches a child to its parent. Field names live here rather than on
// the child so a shared child never disagrees with one of its parents.
type Edge struct {
	Field  string
	Offset int
	Node   *Subtree
}

func NewLeaf(kind string, named bool, tok syntax.Token) *Subtree {
	return &Subtree{
		kind:      kind,
		named:     named,
		length:    tok.Len(),
		leaf:      true,
		tokenKind: tok.Kind,
		lit:       tok.Lit,
		hasError:  tok.Kind == syntax.TokenError,
	}
}

func NewBranch(kind string, named bool, length, lookahead int, children []Edge) *Subtree {
	s := &Subtree{
		kind:      kind,
		named:     named,
		length:    length,
		children:  children,
		hasError:  kind == grammar.Error,
		lookahead: lookahead,
	}
	for _, c := range children {
		if c.Node.hasError {
			s.hasError = true
			break
		}
	}
	return s
}

// NewMissing is a zero-width placeholder for a required element that was not
// in the input. expected is the terminal or rule label that was wanted.
func NewMissing(expected string) *Subtree {
	return &Subtree{
		kind:     grammar.Missing,
		named:    true,
		expected: expected,
		hasError: true,
	}
}

func NewError(length, lookahead int, children []Edge) *Subtree {
	return NewBranch(grammar.Error, true, length, lookahead, children)
}

// AsStatement returns a copy marked as a complete statement-list item that
// examined lookahead bytes past its end. Statements are the unit of reuse
// when a tree is reparsed.
func (s *Subtree) AsStatement(lookahead int) *Subtree {
	c := *s
	c.statement = true
	c.lookahead = lookahead
	return &c
}

func (s *Subtree) Kind() string { return s.kind }
func (s *Subtree) Named() bool { return s.named }
func (s *Subtree) Len() int { return s.length }
func (s *Subtree) Lookahead() int { return s.lookahead }
func (s *Subtree) IsStatement() bool { return s.statement }
func (s *Subtree) IsLeaf() bool { return s.leaf }
func (s *Subtree) HasError() bool { return s.hasError }
func (s *Subtree) Children() []Edge { return s.children }
func (s *Subtree) IsMissing() bool { return s.kind == grammar.Missing }
func (s *Subtree) IsError() bool { return s.kind == grammar.Error }
func (s *Subtree) Expected() string { return s.expected }
func (s *Subtree) TokenKind() syntax.TokenKind { return s.tokenKind }
