package parser

import (
	"github.com/karupanerura/mq-cst/internal/cst"
	"github.com/karupanerura/mq-cst/internal/grammar"
)

// reuseIndex holds the statements of a previous tree that no edit touched,
// keyed by where they start in the new text.
type reuseIndex struct {
	byStart map[int]*cst.Subtree
}

// newReuseIndex collects the surviving statements of old. A statement
// survives when no edit overlaps the bytes it examined, which is its span
// plus its lookahead. Statements that did not survive are searched for
// surviving nested statements; ERROR nodes are never reused.
func newReuseIndex(old *cst.Tree, edits []cst.Edit) *reuseIndex {
	idx := &reuseIndex{byStart: map[int]*cst.Subtree{}}
	idx.collect(old.Root().Subtree(), 0, edits)
	return idx
}

func (idx *reuseIndex) collect(parent *cst.Subtree, start int, edits []cst.Edit) {
	for _, e := range parent.Children() {
		child, childStart := e.Node, start+e.Offset
		if !child.IsStatement() {
			continue
		}
		if to, ok := survive(childStart, childStart+child.Len()+child.Lookahead(), edits); ok {
			idx.byStart[to] = child
			continue
		}
		idx.collect(child, childStart, edits)
	}
}

// survive maps the examined range [start, examinedEnd) through edits.
func survive(start, examinedEnd int, edits []cst.Edit) (int, bool) {
	for _, e := range edits {
		if e.StartByte < examinedEnd && e.OldEndByte > start {
			return 0, false
		}
		// an insertion right at start leaves the statement intact but moves it
		if e.OldEndByte <= start {
			start += e.Delta()
			examinedEnd += e.Delta()
		}
	}
	return start, true
}

func (idx *reuseIndex) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.byStart)
}

func (idx *reuseIndex) take(start int) *cst.Subtree {
	if idx == nil {
		return nil
	}
	s, ok := idx.byStart[start]
	if !ok {
		return nil
	}
	delete(idx.byStart, start)
	return s
}

// reuseStatement splices a surviving statement starting at the current token
// into out and moves the lexer past it. Statements are only ever marked when
// they start and end outside interpolated strings, which is what Seek
// restores.
func (b *builder) reuseStatement(e *grammar.Stmts, out *[]item) bool {
	if b.reuse == nil || b.speculating > 0 || !b.tokAtBase {
		return false
	}
	start := b.tok.Start
	sub := b.reuse.take(start)
	if sub == nil {
		return false
	}

	end := start + sub.Len()
	*out = append(*out, item{field: e.Field, start: start, node: sub})
	b.lex.Seek(end)
	b.lex.Touch(end + sub.Lookahead())
	b.prevEnd = end
	b.advance()
	return true
}
