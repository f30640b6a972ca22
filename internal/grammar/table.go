package grammar

import (
	"errors"
	"fmt"
	"math/bits"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// Terminals every table knows about regardless of its rules.
const (
	EOFSym     = "end_of_input"
	ErrorSym   = "error_token"
	CommentSym = "comment"
)

// Token classes whose leaves are named nodes.
var namedTokenSymbols = map[string]bool{
	"identifier":     true,
	"number":         true,
	"string":         true,
	"string_content": true,
	"escaped_dollar": true,
	CommentSym:       true,
	ErrorSym:         true,
}

func IsNamedSymbol(sym string) bool {
	return namedTokenSymbols[sym]
}

const maxTerminals = 128

// TermSet is a set of terminal ids.
type TermSet [2]uint64

func (s TermSet) Has(id int) bool {
	return id >= 0 && id < maxTerminals && s[id/64]&(1<<(id%64)) != 0
}

func (s *TermSet) Add(id int) {
	s[id/64] |= 1 << (id % 64)
}

func (s TermSet) Union(o TermSet) TermSet {
	return TermSet{s[0] | o[0], s[1] | o[1]}
}

func (s TermSet) Intersect(o TermSet) TermSet {
	return TermSet{s[0] & o[0], s[1] & o[1]}
}

func (s TermSet) IsEmpty() bool {
	return s[0] == 0 && s[1] == 0
}

func (s TermSet) IDs() []int {
	var ids []int
	for w := range s {
		for word := s[w]; word != 0; word &= word - 1 {
			ids = append(ids, w*64+bits.TrailingZeros64(word))
		}
	}
	return ids
}

// Table is an immutable, checked grammar. It is safe for concurrent use.
type Table struct {
	Name  string
	Start string

	rules        map[string]*Rule
	order        []string
	syms         []string
	termIDs      map[string]int
	first        map[Expr]TermSet
	nullable     map[Expr]bool
	ruleFirst    map[string]TermSet
	ruleNullable map[string]bool
}

func (t *Table) Rule(name string) *Rule {
	return t.rules[name]
}

func (t *Table) TermID(sym string) (int, bool) {
	id, ok := t.termIDs[sym]
	return id, ok
}

func (t *Table) Symbol(id int) string {
	return t.syms[id]
}

func (t *Table) First(e Expr) TermSet {
	if r, ok := e.(*Ref); ok {
		return t.ruleFirst[r.Name]
	}
	return t.first[e]
}

func (t *Table) Nullable(e Expr) bool {
	if r, ok := e.(*Ref); ok {
		return t.ruleNullable[r.Name]
	}
	return t.nullable[e]
}

// Describe renders a terminal set for diagnostics.
func (t *Table) Describe(s TermSet) string {
	return strings.Join(lo.Map(s.IDs(), func(id int, _ int) string {
		return t.syms[id]
	}), " ")
}

func MustBuild(name, start string, rules []*Rule) *Table {
	t, err := Build(name, start, rules)
	if err != nil {
		panic(fmt.Sprintf("grammar %s: %v", name, err))
	}
	return t
}

// Build indexes rules and checks the grammar is deterministic with one token
// of lookahead, except where an ordered choice explicitly allows backtracking.
func Build(name, start string, rules []*Rule) (*Table, error) {
	t := &Table{
		Name:         name,
		Start:        start,
		rules:        make(map[string]*Rule, len(rules)),
		termIDs:      map[string]int{},
		first:        map[Expr]TermSet{},
		nullable:     map[Expr]bool{},
		ruleFirst:    map[string]TermSet{},
		ruleNullable: map[string]bool{},
	}
	b := &tableBuilder{t: t, state: map[string]int{}}

	for _, r := range rules {
		if _, dup := t.rules[r.Name]; dup {
			b.errorf(r.Name, "duplicated rule")
			continue
		}
		if r.Hidden != strings.HasPrefix(r.Name, "_") {
			b.errorf(r.Name, "hidden rules and only hidden rules must start with '_'")
		}
		t.rules[r.Name] = r
		t.order = append(t.order, r.Name)
	}
	if _, ok := t.rules[start]; !ok {
		b.errorf(start, "start rule is not defined")
	}
	if len(b.errs) != 0 {
		return nil, errors.Join(b.errs...)
	}

	for _, sym := range []string{EOFSym, ErrorSym, CommentSym} {
		b.addTerminal(sym)
	}
	for _, name := range t.order {
		walk(t.rules[name].Body, func(e Expr) {
			b.collectTerminals(name, e)
		})
	}
	if len(t.syms) > maxTerminals {
		b.errorf(name, "too many terminals: %d", len(t.syms))
	}
	if len(b.errs) != 0 {
		return nil, errors.Join(b.errs...)
	}

	b.computeNullable()
	for _, name := range t.order {
		walk(t.rules[name].Body, func(e Expr) {
			b.nullableOf(e)
		})
	}
	for _, name := range t.order {
		b.firstOfRule(name)
	}
	for _, name := range t.order {
		walk(t.rules[name].Body, func(e Expr) {
			b.check(name, e)
		})
	}
	if len(b.errs) != 0 {
		return nil, errors.Join(b.errs...)
	}
	return t, nil
}

const (
	ruleUnvisited = iota
	ruleVisiting
	ruleDone
)

type tableBuilder struct {
	t     *Table
	state map[string]int
	errs  []error
}

func (b *tableBuilder) errorf(rule, format string, args ...any) {
	b.errs = append(b.errs, fmt.Errorf("%s: %s", rule, fmt.Sprintf(format, args...)))
}

func (b *tableBuilder) addTerminal(sym string) {
	if _, ok := b.t.termIDs[sym]; ok {
		return
	}
	b.t.termIDs[sym] = len(b.t.syms)
	b.t.syms = append(b.t.syms, sym)
}

func (b *tableBuilder) collectTerminals(rule string, e Expr) {
	switch e := e.(type) {
	case *Tok:
		b.addTerminal(e.Sym)
	case *Leaf:
		b.addTerminal(e.Sym)
	case *SepBy:
		b.addTerminal(e.Sep)
	case *Stmts:
		lo.ForEach(e.Closers, func(sym string, _ int) { b.addTerminal(sym) })
	case *Infix:
		ops := lo.Keys(e.Ops)
		sort.Strings(ops)
		lo.ForEach(ops, func(sym string, _ int) { b.addTerminal(sym) })
	case *Prefix:
		lo.ForEach(e.Ops, func(sym string, _ int) { b.addTerminal(sym) })
	case *Ref:
		if _, ok := b.t.rules[e.Name]; !ok {
			b.errorf(rule, "reference to undefined rule %q", e.Name)
		}
	}
}

func (b *tableBuilder) computeNullable() {
	for changed := true; changed; {
		changed = false
		for _, name := range b.t.order {
			if b.t.ruleNullable[name] {
				continue
			}
			if b.nullableOf(b.t.rules[name].Body) {
				b.t.ruleNullable[name] = true
				changed = true
			}
		}
	}
}

func (b *tableBuilder) nullableOf(e Expr) bool {
	var n bool
	switch e := e.(type) {
	case *Tok, *Leaf:
		n = false
	case *Ref:
		return b.t.ruleNullable[e.Name]
	case *Seq:
		n = lo.EveryBy(e.Items, b.nullableOf)
	case *Choice:
		n = lo.SomeBy(e.Alts, b.nullableOf)
	case *Opt, *SepBy, *Stmts:
		n = true
	case *Rep:
		n = e.Min == 0 || b.nullableOf(e.Body)
	case *Field:
		n = b.nullableOf(e.Body)
	case *Immediate:
		n = b.nullableOf(e.Body)
	case *SameLine:
		n = b.nullableOf(e.Body)
	case *Postfix:
		n = b.nullableOf(e.Head)
	case *Infix:
		n = b.nullableOf(e.Operand)
	case *Prefix:
		n = b.nullableOf(e.Operand)
	default:
		panic(fmt.Sprintf("should not reach here: %T", e))
	}
	b.t.nullable[e] = n
	return n
}

func (b *tableBuilder) firstOfRule(name string) TermSet {
	switch b.state[name] {
	case ruleDone:
		return b.t.ruleFirst[name]
	case ruleVisiting:
		b.errorf(name, "left recursion")
		return TermSet{}
	}
	b.state[name] = ruleVisiting
	fs := b.firstOf(b.t.rules[name].Body)
	b.state[name] = ruleDone
	b.t.ruleFirst[name] = fs
	return fs
}

func (b *tableBuilder) firstOf(e Expr) TermSet {
	var fs TermSet
	switch e := e.(type) {
	case *Tok:
		fs.Add(b.t.termIDs[e.Sym])
	case *Leaf:
		fs.Add(b.t.termIDs[e.Sym])
	case *Ref:
		return b.firstOfRule(e.Name)
	case *Seq:
		for _, item := range e.Items {
			fs = fs.Union(b.firstOf(item))
			if !b.nullableOf(item) {
				break
			}
		}
	case *Choice:
		for _, alt := range e.Alts {
			fs = fs.Union(b.firstOf(alt))
		}
	case *Opt:
		fs = b.firstOf(e.Body)
	case *Rep:
		fs = b.firstOf(e.Body)
	case *SepBy:
		fs = b.firstOf(e.Elem)
	case *Stmts:
		fs = b.firstOf(e.Item)
	case *Field:
		fs = b.firstOf(e.Body)
	case *Immediate:
		fs = b.firstOf(e.Body)
	case *SameLine:
		fs = b.firstOf(e.Body)
	case *Postfix:
		fs = b.firstOf(e.Head)
	case *Infix:
		fs = b.firstOf(e.Operand)
	case *Prefix:
		for _, op := range e.Ops {
			fs.Add(b.t.termIDs[op])
		}
		fs = fs.Union(b.firstOf(e.Operand))
	}
	b.t.first[e] = fs
	return fs
}

func (b *tableBuilder) check(rule string, e Expr) {
	b.firstOf(e)
	switch e := e.(type) {
	case *Choice:
		if e.Ordered {
			if len(e.Alts) < 2 {
				b.errorf(rule, "ordered choice needs at least two alternatives")
			}
			return
		}
		b.checkDisjoint(rule, "choice", e.Alts)

	case *Opt:
		b.checkNotNullable(rule, "optional", e.Body)
	case *Rep:
		b.checkNotNullable(rule, "repetition", e.Body)
	case *SepBy:
		b.checkNotNullable(rule, "separated list", e.Elem)
	case *Immediate:
		b.checkNotNullable(rule, "immediate", e.Body)
	case *SameLine:
		b.checkNotNullable(rule, "same-line", e.Body)
	case *Infix:
		b.checkNotNullable(rule, "infix operand", e.Operand)
	case *Stmts:
		b.checkNotNullable(rule, "statement", e.Item)
		var closers TermSet
		for _, sym := range e.Closers {
			closers.Add(b.t.termIDs[sym])
		}
		if overlap := closers.Intersect(b.firstOf(e.Item)); !overlap.IsEmpty() {
			b.errorf(rule, "statement list closers overlap statements: %s", b.t.Describe(overlap))
		}
	case *Postfix:
		b.checkDisjoint(rule, "postfix", lo.Map(e.Cases, func(c PostfixCase, _ int) Expr {
			return c.Tail
		}))
	}
}

func (b *tableBuilder) checkNotNullable(rule, what string, e Expr) {
	if b.nullableOf(e) {
		b.errorf(rule, "%s body must not match the empty string", what)
	}
}

func (b *tableBuilder) checkDisjoint(rule, what string, alts []Expr) {
	for i, alt := range alts {
		b.checkNotNullable(rule, what+" alternative", alt)
		for _, other := range alts[i+1:] {
			if overlap := b.firstOf(alt).Intersect(b.firstOf(other)); !overlap.IsEmpty() {
				b.errorf(rule, "%s alternatives are ambiguous on: %s", what, b.t.Describe(overlap))
			}
		}
	}
}

// walk visits e and its sub-expressions without following rule references.
func walk(e Expr, fn func(Expr)) {
	fn(e)
	switch e := e.(type) {
	case *Seq:
		lo.ForEach(e.Items, func(item Expr, _ int) { walk(item, fn) })
	case *Choice:
		lo.ForEach(e.Alts, func(alt Expr, _ int) { walk(alt, fn) })
	case *Opt:
		walk(e.Body, fn)
	case *Rep:
		walk(e.Body, fn)
	case *SepBy:
		walk(e.Elem, fn)
	case *Stmts:
		walk(e.Item, fn)
	case *Field:
		walk(e.Body, fn)
	case *Immediate:
		walk(e.Body, fn)
	case *SameLine:
		walk(e.Body, fn)
	case *Postfix:
		walk(e.Head, fn)
		lo.ForEach(e.Cases, func(c PostfixCase, _ int) { walk(c.Tail, fn) })
	case *Infix:
		walk(e.Operand, fn)
	case *Prefix:
		walk(e.Operand, fn)
	}
}
