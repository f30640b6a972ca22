package grammar

import (
	"sort"

	"github.com/samber/lo"
)

// TypeRef names a node kind a position may hold.
type TypeRef struct {
	Type  string `json:"type"`
	Named bool   `json:"named"`
}

// NodeType describes one node kind the parser can produce.
type NodeType struct {
	Type     string               `json:"type"`
	Named    bool                 `json:"named"`
	Extra    bool                 `json:"extra,omitempty"`
	Fields   map[string][]TypeRef `json:"fields,omitempty"`
	Children []TypeRef            `json:"children,omitempty"`
}

// Catalog lists every node kind of the mq grammar.
func Catalog() []NodeType {
	return MQ.Catalog()
}

// Catalog derives the node types from the rules. Kinds produced by several
// rules, such as pipe, are merged into one entry.
func (t *Table) Catalog() []NodeType {
	c := &catalog{t: t, types: map[TypeRef]*catalogEntry{}}

	for _, name := range t.order {
		r := t.rules[name]
		if !r.Hidden {
			entry := c.entry(TypeRef{Type: r.NodeKind(), Named: true})
			c.contents(r.Body, "", entry, map[string]bool{})
		}
		walk(r.Body, func(e Expr) {
			c.synthesized(e)
		})
	}
	for _, sym := range t.syms {
		if sym == EOFSym {
			continue
		}
		c.entry(TypeRef{Type: sym, Named: IsNamedSymbol(sym)})
	}
	c.entry(TypeRef{Type: CommentSym, Named: true}).extra = true

	refs := lo.Keys(c.types)
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Type != refs[j].Type {
			return refs[i].Type < refs[j].Type
		}
		return refs[i].Named && !refs[j].Named
	})
	return lo.Map(refs, func(ref TypeRef, _ int) NodeType {
		return c.types[ref].nodeType(ref)
	})
}

type catalogEntry struct {
	extra    bool
	fields   map[string]map[TypeRef]bool
	children map[TypeRef]bool
}

func (e *catalogEntry) add(field string, ref TypeRef) {
	if field == "" {
		if ref.Named {
			e.children[ref] = true
		}
		return
	}
	if e.fields[field] == nil {
		e.fields[field] = map[TypeRef]bool{}
	}
	e.fields[field][ref] = true
}

func (e *catalogEntry) nodeType(ref TypeRef) NodeType {
	nt := NodeType{Type: ref.Type, Named: ref.Named, Extra: e.extra}
	if len(e.fields) != 0 {
		nt.Fields = lo.MapValues(e.fields, func(refs map[TypeRef]bool, _ string) []TypeRef {
			return sortedRefs(refs)
		})
	}
	nt.Children = sortedRefs(e.children)
	return nt
}

func sortedRefs(set map[TypeRef]bool) []TypeRef {
	if len(set) == 0 {
		return nil
	}
	refs := lo.Keys(set)
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Type != refs[j].Type {
			return refs[i].Type < refs[j].Type
		}
		return refs[i].Named && !refs[j].Named
	})
	return refs
}

type catalog struct {
	t     *Table
	types map[TypeRef]*catalogEntry
}

func (c *catalog) entry(ref TypeRef) *catalogEntry {
	if e, ok := c.types[ref]; ok {
		return e
	}
	e := &catalogEntry{fields: map[string]map[TypeRef]bool{}, children: map[TypeRef]bool{}}
	c.types[ref] = e
	return e
}

// contents records what e can contribute to the children of the node being
// built. Hidden rules are inlined; inlining stops at a rule already on the
// current path.
func (c *catalog) contents(e Expr, field string, into *catalogEntry, inlining map[string]bool) {
	switch e := e.(type) {
	case *Tok:
		into.add(field, TypeRef{Type: e.Sym, Named: IsNamedSymbol(e.Sym)})
	case *Leaf:
		into.add(field, TypeRef{Type: e.Kind, Named: true})
	case *Ref:
		r := c.t.rules[e.Name]
		if !r.Hidden {
			into.add(field, TypeRef{Type: r.NodeKind(), Named: true})
			return
		}
		if inlining[e.Name] {
			return
		}
		inlining[e.Name] = true
		c.contents(r.Body, field, into, inlining)
		delete(inlining, e.Name)
	case *Seq:
		for _, item := range e.Items {
			c.contents(item, field, into, inlining)
		}
	case *Choice:
		for _, alt := range e.Alts {
			c.contents(alt, field, into, inlining)
		}
	case *Opt:
		c.contents(e.Body, field, into, inlining)
	case *Rep:
		c.contents(e.Body, field, into, inlining)
	case *SepBy:
		c.contents(e.Elem, field, into, inlining)
	case *Field:
		c.contents(e.Body, e.Name, into, inlining)
	case *Immediate:
		c.contents(e.Body, field, into, inlining)
	case *SameLine:
		c.contents(e.Body, field, into, inlining)
	case *Stmts:
		c.contents(e.Item, e.Field, into, inlining)
	case *Postfix:
		for _, pc := range e.Cases {
			into.add(field, TypeRef{Type: pc.Kind, Named: true})
		}
		c.contents(e.Head, field, into, inlining)
	case *Infix:
		into.add(field, TypeRef{Type: e.Kind, Named: true})
		c.contents(e.Operand, field, into, inlining)
	case *Prefix:
		into.add(field, TypeRef{Type: e.Kind, Named: true})
		c.contents(e.Operand, field, into, inlining)
	}
}

// synthesized records renamed leaves and the nodes Postfix, Infix and Prefix
// build around their operands.
func (c *catalog) synthesized(e Expr) {
	switch e := e.(type) {
	case *Leaf:
		c.entry(TypeRef{Type: e.Kind, Named: true})
	case *Postfix:
		for _, pc := range e.Cases {
			entry := c.entry(TypeRef{Type: pc.Kind, Named: true})
			c.contents(e.Head, pc.HeadField, entry, map[string]bool{})
			if len(e.Cases) > 1 && e.Many {
				for _, other := range e.Cases {
					entry.add(pc.HeadField, TypeRef{Type: other.Kind, Named: true})
				}
			}
			c.contents(pc.Tail, "", entry, map[string]bool{})
		}
	case *Infix:
		entry := c.entry(TypeRef{Type: e.Kind, Named: true})
		for _, side := range []string{"left", "right"} {
			entry.add(side, TypeRef{Type: e.Kind, Named: true})
			c.contents(e.Operand, side, entry, map[string]bool{})
		}
		for op := range e.Ops {
			entry.add("operator", TypeRef{Type: op})
		}
	case *Prefix:
		entry := c.entry(TypeRef{Type: e.Kind, Named: true})
		entry.add("operand", TypeRef{Type: e.Kind, Named: true})
		c.contents(e.Operand, "operand", entry, map[string]bool{})
		for _, op := range e.Ops {
			entry.add("operator", TypeRef{Type: op})
		}
	}
}
