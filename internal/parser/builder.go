package parser

import (
	"fmt"
	"log"

	"github.com/karupanerura/mq-cst/internal/cst"
	"github.com/karupanerura/mq-cst/internal/grammar"
	"github.com/karupanerura/mq-cst/internal/syntax"
	"github.com/samber/lo"
)

// item is a child under construction, positioned absolutely.
type item struct {
	field string
	start int
	node  *cst.Subtree
}

func (it item) end() int {
	return it.start + it.node.Len()
}

// builder interprets a grammar table over one text. Every parse method
// appends what it built to out and reports false only when a speculative
// attempt failed; outside speculation the error recovery makes it total.
type builder struct {
	p     *Parser
	t     *grammar.Table
	src   []byte
	lex   *syntax.Lexer
	reuse *reuseIndex

	tok       syntax.Token
	tokID     int
	tokAtBase bool
	pending   []item // comments not yet owned by any node
	prevEnd   int    // end of the last consumed token

	speculating int
}

type mark struct {
	lex       syntax.State
	tok       syntax.Token
	tokID     int
	tokAtBase bool
	pending   []item
	prevEnd   int
}

func (b *builder) mark() mark {
	return mark{
		lex:       b.lex.Save(),
		tok:       b.tok,
		tokID:     b.tokID,
		tokAtBase: b.tokAtBase,
		pending:   append([]item(nil), b.pending...),
		prevEnd:   b.prevEnd,
	}
}

func (b *builder) reset(m mark) {
	b.lex.Restore(m.lex)
	b.tok = m.tok
	b.tokID = m.tokID
	b.tokAtBase = m.tokAtBase
	b.pending = m.pending
	b.prevEnd = m.prevEnd
}

func (b *builder) advance() {
	for {
		atBase := b.lex.AtBase()
		tok := b.lex.Next()
		if tok.Kind == syntax.TokenComment {
			b.pending = append(b.pending, item{start: tok.Start, node: cst.NewLeaf(grammar.Comment, true, tok)})
			continue
		}

		b.tok = tok
		b.tokAtBase = atBase
		if id, ok := b.t.TermID(tok.Symbol()); ok {
			b.tokID = id
		} else {
			b.tokID = -1
		}
		return
	}
}

func (b *builder) tokText() string {
	return string(b.src[b.tok.Start:b.tok.End])
}

func (b *builder) flushPending(out *[]item) {
	*out = append(*out, b.pending...)
	b.pending = nil
}

func (b *builder) consume(out *[]item, field, kind string, named bool) {
	b.flushPending(out)
	*out = append(*out, item{field: field, start: b.tok.Start, node: cst.NewLeaf(kind, named, b.tok)})
	b.prevEnd = b.tok.End
	b.advance()
}

// consumeAny consumes the current token under its own symbol.
func (b *builder) consumeAny(out *[]item) {
	sym := b.tok.Symbol()
	b.consume(out, "", sym, grammar.IsNamedSymbol(sym))
}

func (b *builder) finish(kind string, named bool, field string, children []item) item {
	if len(children) == 0 {
		return item{field: field, start: b.prevEnd, node: cst.NewBranch(kind, named, 0, 0, nil)}
	}

	start := children[0].start
	end := children[len(children)-1].end()
	edges := lo.Map(children, func(c item, _ int) cst.Edge {
		return cst.Edge{Field: c.field, Offset: c.start - start, Node: c.node}
	})
	lookahead := max(b.lex.MaxRead()-end, 0)
	if kind == grammar.Error {
		return item{field: field, start: start, node: cst.NewError(end-start, lookahead, edges)}
	}
	return item{field: field, start: start, node: cst.NewBranch(kind, named, end-start, lookahead, edges)}
}

// withField names the role of items that do not have one yet. Comments and
// ERROR nodes never take a field.
func withField(items []item, field string) []item {
	if field == "" {
		return items
	}
	for i := range items {
		if items[i].field != "" {
			continue
		}
		if kind := items[i].node.Kind(); kind == grammar.Comment || kind == grammar.Error {
			continue
		}
		items[i].field = field
	}
	return items
}

func (b *builder) parseRoot() *cst.Subtree {
	var children []item
	b.parse(b.t.Rule(b.t.Start).Body, "", &children)
	if b.tok.Kind != syntax.TokenEOF {
		var rest []item
		for b.tok.Kind != syntax.TokenEOF {
			b.consumeAny(&rest)
		}
		children = append(children, b.finish(grammar.Error, true, "", rest))
	}
	b.flushPending(&children)

	edges := lo.Map(children, func(c item, _ int) cst.Edge {
		return cst.Edge{Field: c.field, Offset: c.start, Node: c.node}
	})
	return cst.NewBranch(b.t.Rule(b.t.Start).NodeKind(), true, len(b.src), 0, edges)
}

// canStart reports whether the current token can begin e, honoring the
// adjacency guards FIRST sets cannot express.
func (b *builder) canStart(e grammar.Expr) bool {
	switch e := e.(type) {
	case *grammar.SameLine:
		return !b.tok.NewlineBefore && b.canStart(e.Body)
	case *grammar.Immediate:
		return b.tok.Start == b.prevEnd && b.canStart(e.Body)
	case *grammar.Field:
		return b.canStart(e.Body)
	case *grammar.Tok:
		return b.t.First(e).Has(b.tokID) && e.Accepts(b.tokText())
	case *grammar.Seq:
		for _, item := range e.Items {
			if b.canStart(item) {
				return true
			}
			if !b.t.Nullable(item) {
				return false
			}
		}
		return false
	case *grammar.Choice:
		return lo.SomeBy(e.Alts, b.canStart)
	default:
		return b.t.First(e).Has(b.tokID)
	}
}

func (b *builder) parse(e grammar.Expr, field string, out *[]item) bool {
	switch e := e.(type) {
	case *grammar.Tok:
		if b.tok.Kind != syntax.TokenEOF && b.tok.Symbol() == e.Sym && e.Accepts(b.tokText()) {
			b.consume(out, field, e.Sym, grammar.IsNamedSymbol(e.Sym))
			return true
		}
		return b.recover(e, field, out, true)

	case *grammar.Leaf:
		if b.tok.Kind != syntax.TokenEOF && b.tok.Symbol() == e.Sym {
			b.consume(out, field, e.Kind, true)
			return true
		}
		return b.recover(e, field, out, true)

	case *grammar.Ref:
		return b.parseRef(e, field, out)

	case *grammar.Seq:
		for _, item := range e.Items {
			if !b.parse(item, field, out) {
				return false
			}
		}
		return true

	case *grammar.Choice:
		return b.parseChoice(e, field, out)

	case *grammar.Opt:
		if b.canStart(e.Body) {
			return b.parse(e.Body, field, out)
		}
		return true

	case *grammar.Rep:
		for n := 0; ; n++ {
			if !b.canStart(e.Body) {
				if n >= e.Min {
					return true
				}
				if !b.recover(e.Body, field, out, true) {
					return false
				}
				continue
			}
			if !b.parse(e.Body, field, out) {
				return false
			}
		}

	case *grammar.SepBy:
		return b.parseSepBy(e, field, out)

	case *grammar.Field:
		return b.parse(e.Body, e.Name, out)

	case *grammar.Immediate:
		if b.canStart(e) {
			return b.parse(e.Body, field, out)
		}
		return b.recover(e.Body, field, out, false)

	case *grammar.SameLine:
		if b.canStart(e) {
			return b.parse(e.Body, field, out)
		}
		return b.recover(e.Body, field, out, false)

	case *grammar.Stmts:
		return b.parseStmts(e, out)

	case *grammar.Postfix:
		return b.parsePostfix(e, field, out)

	case *grammar.Infix:
		return b.parseInfix(e, 0, field, out)

	case *grammar.Prefix:
		return b.parsePrefix(e, field, out)
	}
	panic(fmt.Sprintf("should not reach here: unknown expression %T", e))
}

func (b *builder) parseRef(e *grammar.Ref, field string, out *[]item) bool {
	if !b.t.Nullable(e) && !b.canStart(e) {
		return b.recover(e, field, out, true)
	}

	r := b.t.Rule(e.Name)
	if r.Hidden {
		return b.parse(r.Body, field, out)
	}
	var children []item
	if !b.parse(r.Body, "", &children) {
		return false
	}
	*out = append(*out, b.finish(r.NodeKind(), true, field, children))
	return true
}

func (b *builder) parseChoice(e *grammar.Choice, field string, out *[]item) bool {
	if !e.Ordered {
		for _, alt := range e.Alts {
			if b.canStart(alt) {
				return b.parse(alt, field, out)
			}
		}
		return b.recover(e, field, out, true)
	}

	last := len(e.Alts) - 1
	for _, alt := range e.Alts[:last] {
		if !b.canStart(alt) {
			continue
		}

		m := b.mark()
		var attempt []item
		b.speculating++
		ok := b.parse(alt, field, &attempt)
		b.speculating--
		if ok {
			*out = append(*out, attempt...)
			return true
		}
		if b.p.debug {
			log.Printf("backtrack at %s", b.tok)
		}
		b.reset(m)
	}
	return b.parse(e.Alts[last], field, out)
}

func (b *builder) parseSepBy(e *grammar.SepBy, field string, out *[]item) bool {
	if !b.canStart(e.Elem) {
		return true
	}
	for {
		if !b.parse(e.Elem, field, out) {
			return false
		}
		if b.tok.Symbol() != e.Sep {
			return true
		}
		b.consume(out, "", e.Sep, false)
		if !b.canStart(e.Elem) {
			if e.Trailing {
				return true
			}
			return b.recover(e.Elem, field, out, false)
		}
	}
}

func (b *builder) parseStmts(e *grammar.Stmts, out *[]item) bool {
	for !b.atListEnd(e) {
		b.flushPending(out)
		if b.reuseStatement(e, out) {
			continue
		}
		if !b.canStart(e.Item) {
			if !b.skipStatement(e, out) {
				return false
			}
			continue
		}

		n := len(*out)
		startAtBase := b.tokAtBase
		if !b.parse(e.Item, e.Field, out) {
			return false
		}
		// reuse resumes the lexer at base, so only statements lexed entirely
		// outside interpolated strings may be reused
		if len(*out) == n+1 && startAtBase && b.tokAtBase {
			it := &(*out)[n]
			it.node = it.node.AsStatement(max(b.lex.MaxRead()-it.end(), 0))
		}
	}
	return true
}

func (b *builder) atListEnd(e *grammar.Stmts) bool {
	return b.tok.Kind == syntax.TokenEOF || lo.Contains(e.Closers, b.tok.Symbol())
}

func (b *builder) parsePostfix(e *grammar.Postfix, field string, out *[]item) bool {
	var cur []item
	if !b.parse(e.Head, "", &cur) {
		return false
	}

	kind := ""
	for {
		c, ok := lo.Find(e.Cases, func(c grammar.PostfixCase) bool {
			return b.canStart(c.Tail)
		})
		if !ok {
			break
		}
		if kind != "" && c.Kind != kind {
			cur = []item{b.finish(kind, true, "", cur)}
			kind = ""
		}
		if kind == "" {
			cur = withField(cur, c.HeadField)
			kind = c.Kind
		}
		if !b.parse(c.Tail, "", &cur) {
			return false
		}
		if !e.Many {
			break
		}
	}
	if kind != "" {
		cur = []item{b.finish(kind, true, "", cur)}
	}
	*out = append(*out, withField(cur, field)...)
	return true
}

func (b *builder) parseInfix(e *grammar.Infix, minBP uint8, field string, out *[]item) bool {
	var left []item
	if !b.parse(e.Operand, "", &left) {
		return false
	}
	for {
		bp, ok := b.infixOperator(e)
		if !ok || bp < minBP {
			break
		}

		children := withField(left, "left")
		b.consume(&children, "operator", b.tok.Symbol(), false)
		if !b.parseInfix(e, bp+1, "right", &children) {
			return false
		}
		left = []item{b.finish(e.Kind, true, "", children)}
	}
	*out = append(*out, withField(left, field)...)
	return true
}

func (b *builder) infixOperator(e *grammar.Infix) (uint8, bool) {
	if b.tok.Kind != syntax.TokenPunct {
		return 0, false
	}
	bp, ok := e.Ops[b.tok.Lit]
	return bp, ok
}

func (b *builder) parsePrefix(e *grammar.Prefix, field string, out *[]item) bool {
	if b.tok.Kind != syntax.TokenPunct || !lo.Contains(e.Ops, b.tok.Lit) {
		return b.parse(e.Operand, field, out)
	}

	var children []item
	b.consume(&children, "operator", b.tok.Lit, false)
	if !b.parsePrefix(e, "operand", &children) {
		return false
	}
	*out = append(*out, b.finish(e.Kind, true, field, children))
	return true
}
