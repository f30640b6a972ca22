package parser

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/k0kubun/pp"
	"github.com/karupanerura/mq-cst/internal/cst"
	"github.com/karupanerura/mq-cst/internal/grammar"
	"github.com/karupanerura/mq-cst/internal/syntax"
)

const DefaultRecoveryWindow = 2

var parserDebugLog = false

func init() {
	if v, err := strconv.ParseBool(os.Getenv("MQ_CST_DEBUG")); v && err == nil {
		parserDebugLog = true
	}
}

// Parser builds trees from a grammar table. It holds no per-parse state and
// may be shared between goroutines.
type Parser struct {
	table          *grammar.Table
	recoveryWindow int
	debug          bool
}

type Option func(*Parser)

// WithRecoveryWindow sets how many tokens may be skipped to reach an expected
// element before a MISSING node is inserted instead.
func WithRecoveryWindow(n int) Option {
	return func(p *Parser) {
		if n >= 0 {
			p.recoveryWindow = n
		}
	}
}

func WithDebug(debug bool) Option {
	return func(p *Parser) {
		p.debug = debug
	}
}

func New(opts ...Option) *Parser {
	p := &Parser{
		table:          grammar.MQ,
		recoveryWindow: DefaultRecoveryWindow,
		debug:          parserDebugLog,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var defaultParser = New()

// Parse builds a tree for text with the default parser. It never fails:
// malformed input yields ERROR and MISSING nodes.
func Parse(text []byte) *cst.Tree {
	return defaultParser.Parse(text)
}

// Reparse derives the tree for text from old and the edits that turned old's
// text into text, using the default parser.
func Reparse(old *cst.Tree, edits []cst.Edit, text []byte) (*cst.Tree, error) {
	return defaultParser.Reparse(old, edits, text)
}

func (p *Parser) Parse(text []byte) *cst.Tree {
	root := p.build(text, nil)
	t := cst.NewTree(root, text, 0, nil)
	p.dump("parse", t)
	return t
}

func (p *Parser) Reparse(old *cst.Tree, edits []cst.Edit, text []byte) (*cst.Tree, error) {
	if err := cst.ValidateEdits(len(old.Text()), edits, len(text)); err != nil {
		return nil, fmt.Errorf("cst.ValidateEdits: %w", err)
	}

	reuse := newReuseIndex(old, edits)
	if p.debug {
		log.Printf("reparse: %d edits, %d reusable statements", len(edits), reuse.Len())
	}
	root := p.build(text, reuse)

	t := cst.NewTree(root, text, old.Revision()+1, append(old.Edits(), edits...))
	p.dump("reparse", t)
	return t, nil
}

func (p *Parser) build(text []byte, reuse *reuseIndex) *cst.Subtree {
	b := &builder{
		p:       p,
		t:       p.table,
		src:     text,
		lex:     syntax.NewLexer(text, 0),
		reuse:   reuse,
		prevEnd: 0,
	}
	b.advance()
	return b.parseRoot()
}

func (p *Parser) dump(what string, t *cst.Tree) {
	if !p.debug {
		return
	}
	log.Printf("%s: revision=%d %s\n%s", what, t.Revision(), t.Root(), pp.Sprint(cst.Snap(t.Root())))
}
