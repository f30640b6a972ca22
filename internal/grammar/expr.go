package grammar

import "github.com/samber/lo"

// Expr is a production fragment. The parser interprets these by type switch;
// every implementation is a pointer so tables can key analysis results on it.
type Expr interface {
	expr()
}

// Tok matches one terminal. The resulting leaf is named when Sym is a token
// class such as "identifier" and anonymous for keywords and punctuation.
// When Words is set the token's text must also be one of them.
type Tok struct {
	Sym   string
	Words []string
}

func (e *Tok) Accepts(text string) bool {
	return len(e.Words) == 0 || lo.Contains(e.Words, text)
}

// Leaf matches one terminal and produces a named leaf of kind Kind.
type Leaf struct {
	Kind string
	Sym  string
}

type Ref struct {
	Name string
}

type Seq struct {
	Items []Expr
}

// Choice selects an alternative by one token of lookahead. When Ordered is
// set, alternatives may overlap and are attempted in order with backtracking.
type Choice struct {
	Alts    []Expr
	Ordered bool
}

type Opt struct {
	Body Expr
}

type Rep struct {
	Body Expr
	Min  int
}

// SepBy is zero or more Elem separated by Sep, optionally followed by one
// trailing Sep.
type SepBy struct {
	Elem     Expr
	Sep      string
	Trailing bool
}

type Field struct {
	Name string
	Body Expr
}

// Immediate requires the terminal at the start of Body to follow the previous
// token without any gap.
type Immediate struct {
	Body Expr
}

// SameLine requires the first token of Body not to start a new line.
type SameLine struct {
	Body Expr
}

// Stmts is a statement list. Closers are the terminals that end the list;
// a nil Closers list runs until end of input.
type Stmts struct {
	Field   string
	Item    Expr
	Closers []string
}

// Postfix parses Head and, while one of the cases continues it, wraps what
// was built so far into a new node. With Many set all continuations land in
// a single node of the first matched case's kind.
type Postfix struct {
	Head  Expr
	Cases []PostfixCase
	Many  bool
}

type PostfixCase struct {
	Kind      string
	HeadField string
	Tail      Expr
}

// Infix is a binding-power driven chain of left associative binary operators.
type Infix struct {
	Kind    string
	Operand Expr
	Ops     map[string]uint8
}

// Prefix applies any number of unary operators to Operand.
type Prefix struct {
	Kind    string
	Ops     []string
	Operand Expr
}

func (*Tok) expr()       {}
func (*Leaf) expr()      {}
func (*Ref) expr()       {}
func (*Seq) expr()       {}
func (*Choice) expr()    {}
func (*Opt) expr()       {}
func (*Rep) expr()       {}
func (*SepBy) expr()     {}
func (*Field) expr()     {}
func (*Immediate) expr() {}
func (*SameLine) expr()  {}
func (*Stmts) expr()     {}
func (*Postfix) expr()   {}
func (*Infix) expr()     {}
func (*Prefix) expr()    {}

// Rule is a named production. Hidden rules splice their children into the
// enclosing node; visible rules produce a node of kind Kind (Name if empty).
type Rule struct {
	Name   string
	Kind   string
	Hidden bool
	Label  string
	Body   Expr
}

func (r *Rule) NodeKind() string {
	if r.Kind != "" {
		return r.Kind
	}
	return r.Name
}

// Expected is the label used for MISSING nodes standing in for the rule.
func (r *Rule) Expected() string {
	if r.Label != "" {
		return r.Label
	}
	if r.Hidden {
		return r.Name[1:]
	}
	return r.NodeKind()
}

func node(name string, items ...Expr) *Rule {
	return &Rule{Name: name, Body: seqOf(items)}
}

func kindNode(name, kind string, items ...Expr) *Rule {
	return &Rule{Name: name, Kind: kind, Body: seqOf(items)}
}

func hidden(name, label string, body Expr) *Rule {
	return &Rule{Name: name, Hidden: true, Label: label, Body: body}
}

func seqOf(items []Expr) Expr {
	if len(items) == 1 {
		return items[0]
	}
	return &Seq{Items: items}
}

func tok(sym string) Expr { return &Tok{Sym: sym} }
func word(sym string, words ...string) Expr { return &Tok{Sym: sym, Words: words} }
func leaf(kind, sym string) Expr { return &Leaf{Kind: kind, Sym: sym} }
func ref(name string) Expr { return &Ref{Name: name} }
func seq(items ...Expr) Expr { return &Seq{Items: items} }
func choice(alts ...Expr) Expr { return &Choice{Alts: alts} }
func try(alts ...Expr) Expr { return &Choice{Alts: alts, Ordered: true} }
func opt(body Expr) Expr { return &Opt{Body: body} }
func rep(body Expr) Expr { return &Rep{Body: body} }
func rep1(body Expr) Expr { return &Rep{Body: body, Min: 1} }
func field(name string, body Expr) Expr { return &Field{Name: name, Body: body} }
func immediate(body Expr) Expr { return &Immediate{Body: body} }
func sameLine(body Expr) Expr { return &SameLine{Body: body} }
func commaSep(elem Expr, trailing bool) Expr {
	return &SepBy{Elem: elem, Sep: ",", Trailing: trailing}
}
func stmts(fieldName string, closers ...string) Expr {
	return &Stmts{Field: fieldName, Item: ref("_statement"), Closers: closers}
}
