// Package render writes trees in the output formats of the command line and
// the HTTP server.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
	"github.com/karupanerura/mq-cst/internal/cst"
)

type Format string

const (
	FormatSExp      Format = "sexp"
	FormatJSON      Format = "json"
	FormatTokens    Format = "tokens"
	FormatHighlight Format = "highlight"
)

var formats = []Format{FormatSExp, FormatJSON, FormatTokens, FormatHighlight}

func ParseFormat(s string) (Format, error) {
	for _, f := range formats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown format %q", s)
}

// Document is the serialized form of one tree.
type Document struct {
	Name     string       `json:"name,omitempty"`
	Revision uint64       `json:"revision"`
	HasError bool         `json:"has_error"`
	SExp     string       `json:"sexp"`
	Root     cst.Snapshot `json:"root"`
}

func NewDocument(name string, tree *cst.Tree) Document {
	root := tree.Root()
	return Document{
		Name:     name,
		Revision: tree.Revision(),
		HasError: root.HasError(),
		SExp:     root.String(),
		Root:     cst.Snap(root),
	}
}

// Write renders tree in format. color enables terminal colors for the
// formats that have them.
func Write(w io.Writer, name string, tree *cst.Tree, format Format, color bool) error {
	switch format {
	case FormatSExp:
		return SExp(w, tree)
	case FormatJSON:
		return JSON(w, NewDocument(name, tree), color)
	case FormatTokens:
		return Tokens(w, tree)
	case FormatHighlight:
		styles := Styles(nil)
		if color {
			styles = DefaultStyles(w)
		}
		return Highlight(w, tree, styles)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func SExp(w io.Writer, tree *cst.Tree) error {
	if _, err := io.WriteString(w, tree.Root().String()+"\n"); err != nil {
		return fmt.Errorf("io.WriteString: %w", err)
	}
	return nil
}

// JSON writes v as indented JSON, colorized when color is set.
func JSON(w io.Writer, v any, color bool) error {
	opts := []json.EncodeOptionFunc{json.DisableHTMLEscape()}
	if color {
		opts = append(opts, json.Colorize(json.DefaultColorScheme))
	}

	b, err := json.MarshalIndentWithOption(v, "", "\t", opts...)
	if err != nil {
		return fmt.Errorf("json.MarshalIndentWithOption: %w", err)
	}

	if _, err = w.Write(b); err != nil {
		return fmt.Errorf("w.Write: %w", err)
	}
	if _, err = io.WriteString(w, "\n"); err != nil {
		return fmt.Errorf("io.WriteString: %w", err)
	}
	return nil
}

// Tokens lists the leaves of tree one per line with their positions. MISSING
// nodes are listed with what was expected.
func Tokens(w io.Writer, tree *cst.Tree) error {
	var b strings.Builder
	eachLeaf(tree.Root(), "", "", func(leaf cst.Node, parent, field string) {
		start, end := leaf.StartPoint(), leaf.EndPoint()
		fmt.Fprintf(&b, "%d:%d-%d:%d\t", start.Line, start.Column, end.Line, end.Column)
		if leaf.IsMissing() {
			fmt.Fprintf(&b, "MISSING\t%s", leaf.Expected())
		} else {
			fmt.Fprintf(&b, "%s\t%q", leaf.Kind(), leaf.Text())
		}
		if field != "" {
			fmt.Fprintf(&b, "\t%s", field)
		}
		b.WriteByte('\n')
	})
	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("io.WriteString: %w", err)
	}
	return nil
}

// eachLeaf calls fn for every leaf and MISSING node under n in document
// order, with the kind of its parent and its field there.
func eachLeaf(n cst.Node, parent, field string, fn func(leaf cst.Node, parent, field string)) {
	if n.ChildCount() == 0 && (n.Subtree().IsLeaf() || n.IsMissing()) {
		fn(n, parent, field)
		return
	}
	for i, c := range n.Children() {
		eachLeaf(c, n.Kind(), n.FieldNameForChild(i), fn)
	}
}
