package cst

import (
	"sort"
	"strings"

	"github.com/karupanerura/mq-cst/internal/grammar"
	"github.com/karupanerura/mq-cst/internal/syntax"
)

// Tree is one parsed revision of a text. It is immutable and safe to read
// from several goroutines; a reparse builds a new Tree that shares every
// unaffected subtree with this one.
type Tree struct {
	root       *Subtree
	text       []byte
	revision   uint64
	edits      []Edit
	lineStarts []int
}

func NewTree(root *Subtree, text []byte, revision uint64, edits []Edit) *Tree {
	lineStarts := []int{0}
	for i, c := range text {
		if c == '\n' {
			lineStarts = append(lineStarts, i+1)
		}
	}
	return &Tree{
		root:       root,
		text:       text,
		revision:   revision,
		edits:      edits,
		lineStarts: lineStarts,
	}
}

func (t *Tree) Root() Node {
	return Node{tree: t, sub: t.root}
}

// Text returns the source the tree was parsed from. Callers must not modify it.
func (t *Tree) Text() []byte {
	return t.text
}

func (t *Tree) Revision() uint64 {
	return t.revision
}

// Edits returns every edit applied since revision 0, in order.
func (t *Tree) Edits() []Edit {
	return append([]Edit(nil), t.edits...)
}

// Point is a 1-based line and column, counted in bytes.
type Point struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

func (t *Tree) Point(offset int) Point {
	i := sort.Search(len(t.lineStarts), func(i int) bool {
		return t.lineStarts[i] > offset
	}) - 1
	return Point{Line: i + 1, Column: offset - t.lineStarts[i] + 1}
}

// Node is a positioned view of a Subtree inside a Tree. The zero Node is not
// a valid node; accessors that may find nothing return it with false.
type Node struct {
	tree  *Tree
	sub   *Subtree
	start int
}

func (n Node) Tree() *Tree { return n.tree }
func (n Node) Subtree() *Subtree { return n.sub }
func (n Node) Kind() string { return n.sub.kind }
func (n Node) IsNamed() bool { return n.sub.named }
func (n Node) IsError() bool { return n.sub.IsError() }
func (n Node) IsMissing() bool { return n.sub.IsMissing() }
func (n Node) HasError() bool { return n.sub.hasError }
func (n Node) StartByte() int { return n.start }
func (n Node) EndByte() int { return n.start + n.sub.length }
func (n Node) ChildCount() int { return len(n.sub.children) }
func (n Node) StartPoint() Point { return n.tree.Point(n.start) }
func (n Node) EndPoint() Point { return n.tree.Point(n.EndByte()) }
func (n Node) Expected() string { return n.sub.expected }

func (n Node) ByteRange() (int, int) {
	return n.StartByte(), n.EndByte()
}

func (n Node) Text() string {
	return string(n.tree.text[n.StartByte():n.EndByte()])
}

func (n Node) Child(i int) Node {
	e := n.sub.children[i]
	return Node{tree: n.tree, sub: e.Node, start: n.start + e.Offset}
}

func (n Node) Children() []Node {
	nodes := make([]Node, len(n.sub.children))
	for i := range n.sub.children {
		nodes[i] = n.Child(i)
	}
	return nodes
}

func (n Node) NamedChildCount() int {
	count := 0
	for _, e := range n.sub.children {
		if e.Node.named {
			count++
		}
	}
	return count
}

func (n Node) NamedChild(i int) (Node, bool) {
	for j, e := range n.sub.children {
		if !e.Node.named {
			continue
		}
		if i == 0 {
			return n.Child(j), true
		}
		i--
	}
	return Node{}, false
}

func (n Node) ChildByFieldName(name string) (Node, bool) {
	for i, e := range n.sub.children {
		if e.Field == name {
			return n.Child(i), true
		}
	}
	return Node{}, false
}

func (n Node) ChildrenByFieldName(name string) []Node {
	var nodes []Node
	for i, e := range n.sub.children {
		if e.Field == name {
			nodes = append(nodes, n.Child(i))
		}
	}
	return nodes
}

func (n Node) FieldNameForChild(i int) string {
	return n.sub.children[i].Field
}

// Token returns the token a leaf was built from.
func (n Node) Token() (syntax.Token, bool) {
	if !n.sub.leaf {
		return syntax.Token{}, false
	}
	p := n.StartPoint()
	return syntax.Token{
		Kind:   n.sub.tokenKind,
		Lit:    n.sub.lit,
		Start:  n.StartByte(),
		End:    n.EndByte(),
		Line:   p.Line,
		Column: p.Column,
	}, true
}

// Walk visits n and its descendants in document order until fn returns false.
func (n Node) Walk(fn func(Node) bool) bool {
	if !fn(n) {
		return false
	}
	for i := range n.sub.children {
		if !n.Child(i).Walk(fn) {
			return false
		}
	}
	return true
}

// String renders n as an S-expression. Anonymous nodes are quoted and only
// shown when they carry a field or sit inside an ERROR.
func (n Node) String() string {
	var b strings.Builder
	n.writeSExp(&b, "")
	return b.String()
}

func (n Node) writeSExp(b *strings.Builder, field string) {
	if field != "" {
		b.WriteString(field)
		b.WriteString(": ")
	}
	b.WriteByte('(')
	if n.IsMissing() {
		b.WriteString(grammar.Missing)
		b.WriteByte(' ')
		if syntax.IsKeyword(n.sub.expected) || isPunctuation(n.sub.expected) {
			b.WriteString(`"` + n.sub.expected + `"`)
		} else {
			b.WriteString(n.sub.expected)
		}
		b.WriteByte(')')
		return
	}
	b.WriteString(n.sub.kind)
	for i, e := range n.sub.children {
		if !e.Node.named && e.Field == "" && !n.IsError() {
			continue
		}
		b.WriteByte(' ')
		c := n.Child(i)
		if !e.Node.named {
			if e.Field != "" {
				b.WriteString(e.Field)
				b.WriteString(": ")
			}
			b.WriteString(`"` + c.Text() + `"`)
			continue
		}
		c.writeSExp(b, e.Field)
	}
	b.WriteByte(')')
}

func isPunctuation(sym string) bool {
	for i := 0; i < len(sym); i++ {
		c := sym[i]
		if 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || c == '_' {
			return false
		}
	}
	return true
}
