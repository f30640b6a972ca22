package cst

import (
	"errors"
	"fmt"

	"github.com/karupanerura/mq-cst/internal/grammar"
)

// Verify checks the structural invariants every tree must hold: the root
// spans the whole text, children are ordered and contained in their parent,
// leaves never overlap and MISSING nodes are empty.
func Verify(t *Tree) error {
	root := t.Root()
	var errs []error
	if root.Kind() != grammar.SourceFile {
		errs = append(errs, fmt.Errorf("root is %s, not %s", root.Kind(), grammar.SourceFile))
	}
	if root.StartByte() != 0 || root.EndByte() != len(t.text) {
		errs = append(errs, fmt.Errorf("root spans [%d,%d) over %d bytes", root.StartByte(), root.EndByte(), len(t.text)))
	}

	lastLeafEnd := 0
	root.Walk(func(n Node) bool {
		if n.IsMissing() && n.StartByte() != n.EndByte() {
			errs = append(errs, fmt.Errorf("MISSING at %d has width", n.StartByte()))
		}
		if n.Subtree().IsLeaf() {
			if n.StartByte() < lastLeafEnd {
				errs = append(errs, fmt.Errorf("leaf %s at %d overlaps the previous one", n.Kind(), n.StartByte()))
			}
			lastLeafEnd = n.EndByte()
			return true
		}

		prevEnd := n.StartByte()
		for i, c := range n.Children() {
			if c.StartByte() < prevEnd {
				errs = append(errs, fmt.Errorf("%s[%d] (%s) starts at %d before %d", n.Kind(), i, c.Kind(), c.StartByte(), prevEnd))
			}
			if c.EndByte() > n.EndByte() {
				errs = append(errs, fmt.Errorf("%s[%d] (%s) ends at %d after its parent", n.Kind(), i, c.Kind(), c.EndByte()))
			}
			prevEnd = c.EndByte()
		}
		return true
	})
	return errors.Join(errs...)
}
