package parser

import (
	"log"

	"github.com/karupanerura/mq-cst/internal/cst"
	"github.com/karupanerura/mq-cst/internal/grammar"
	"github.com/karupanerura/mq-cst/internal/syntax"
)

// recover is called when the current token cannot start e. It first tries to
// reach e by skipping a few tokens into an ERROR node, and otherwise records
// e as MISSING without consuming anything. Speculative parses fail instead.
func (b *builder) recover(e grammar.Expr, field string, out *[]item, allowSkip bool) bool {
	if b.speculating > 0 {
		return false
	}
	if allowSkip && b.skipTo(e, out) {
		return b.parse(e, field, out)
	}

	expected := b.describe(e)
	if b.p.debug {
		log.Printf("missing %s before %s", expected, b.tok)
	}
	*out = append(*out, item{field: field, start: b.prevEnd, node: cst.NewMissing(expected)})
	return true
}

func (b *builder) skipTo(e grammar.Expr, out *[]item) bool {
	m := b.mark()
	var skipped []item
	for i := 0; i < b.p.recoveryWindow && b.skippable(); i++ {
		b.consumeAny(&skipped)
		if b.canStart(e) {
			if b.p.debug {
				log.Printf("skipped %d tokens to %s", i+1, b.tok)
			}
			*out = append(*out, b.finish(grammar.Error, true, "", skipped))
			return true
		}
	}
	b.reset(m)
	return false
}

// skippable reports whether the current token may be swallowed while looking
// for an expected element. Block ends, closing brackets and tokens on a new
// line are left for the enclosing construct.
func (b *builder) skippable() bool {
	if b.tok.Kind == syntax.TokenEOF || b.tok.NewlineBefore {
		return false
	}
	if b.tok.Kind == syntax.TokenKeyword && b.tok.Lit == "end" {
		return false
	}
	if b.tok.Kind == syntax.TokenPunct {
		switch b.tok.Lit {
		case ")", "]", "}":
			return false
		}
	}
	return true
}

// skipStatement wraps tokens that cannot start a statement into one ERROR
// node, up to the next token that can, a line break or the end of the list.
// It always consumes at least one token.
func (b *builder) skipStatement(e *grammar.Stmts, out *[]item) bool {
	if b.speculating > 0 {
		return false
	}

	var skipped []item
	for {
		b.consumeAny(&skipped)
		if b.atListEnd(e) || b.tok.NewlineBefore || b.canStart(e.Item) {
			break
		}
		if b.tok.Kind == syntax.TokenKeyword && b.tok.Lit == "end" {
			break
		}
	}
	if b.p.debug {
		log.Printf("unexpected %d tokens before %s", len(skipped), b.tok)
	}
	*out = append(*out, b.finish(grammar.Error, true, "", skipped))
	return true
}

// describe names what e expects, for MISSING nodes.
func (b *builder) describe(e grammar.Expr) string {
	switch e := e.(type) {
	case *grammar.Tok:
		return e.Sym
	case *grammar.Leaf:
		return e.Sym
	case *grammar.Ref:
		return b.t.Rule(e.Name).Expected()
	case *grammar.Seq:
		for _, item := range e.Items {
			if !b.t.Nullable(item) {
				return b.describe(item)
			}
		}
		return b.describe(e.Items[0])
	case *grammar.Choice:
		return b.describe(e.Alts[0])
	case *grammar.Opt:
		return b.describe(e.Body)
	case *grammar.Rep:
		return b.describe(e.Body)
	case *grammar.SepBy:
		return b.describe(e.Elem)
	case *grammar.Field:
		return b.describe(e.Body)
	case *grammar.Immediate:
		return b.describe(e.Body)
	case *grammar.SameLine:
		return b.describe(e.Body)
	case *grammar.Postfix:
		return b.describe(e.Head)
	case *grammar.Infix:
		return b.describe(e.Operand)
	case *grammar.Prefix:
		return b.describe(e.Operand)
	}
	return "statement"
}
