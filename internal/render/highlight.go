package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/karupanerura/mq-cst/internal/cst"
	"github.com/karupanerura/mq-cst/internal/grammar"
)

// Palette
var (
	colorViolet  = lipgloss.Color("#8B5CF6")
	colorCyan    = lipgloss.Color("#06B6D4")
	colorAmber   = lipgloss.Color("#F59E0B")
	colorEmerald = lipgloss.Color("#10B981")
	colorRed     = lipgloss.Color("#EF4444")
	colorMuted   = lipgloss.Color("#6B7280")
	colorSlate   = lipgloss.Color("#94A3B8")
	colorDim     = lipgloss.Color("#64748B")
	colorText    = lipgloss.Color("#F8FAFC")
)

// Styles maps highlight categories to styles. Categories without a style are
// written as is.
type Styles map[string]lipgloss.Style

// DefaultStyles builds the default styles for output written to w. Color
// support is detected from w.
func DefaultStyles(w io.Writer) Styles {
	r := lipgloss.NewRenderer(w)
	style := func() lipgloss.Style {
		return r.NewStyle().TabWidth(lipgloss.NoTabConversion)
	}
	return Styles{
		grammar.CategoryComment:     style().Foreground(colorMuted).Italic(true),
		grammar.CategoryString:      style().Foreground(colorEmerald),
		grammar.CategoryEscape:      style().Foreground(colorAmber),
		grammar.CategoryNumber:      style().Foreground(colorAmber),
		grammar.CategoryConstant:    style().Foreground(colorCyan),
		grammar.CategoryBuiltin:     style().Foreground(colorViolet).Italic(true),
		grammar.CategoryParameter:   style().Foreground(colorText).Italic(true),
		grammar.CategoryFunction:    style().Foreground(colorCyan).Bold(true),
		grammar.CategoryModule:      style().Foreground(colorViolet),
		grammar.CategoryProperty:    style().Foreground(colorSlate),
		grammar.CategoryType:        style().Foreground(colorCyan).Italic(true),
		grammar.CategoryKeyword:     style().Foreground(colorViolet).Bold(true),
		grammar.CategoryOperator:    style().Foreground(colorAmber),
		grammar.CategoryPunctuation: style().Foreground(colorDim),
		grammar.CategoryError:       style().Foreground(colorRed).Underline(true),
	}
}

var classifier = grammar.NewClassifier(grammar.HighlightRules())

// Highlight writes the source of tree with every leaf styled by its highlight
// category. With nil styles the source is written unchanged.
func Highlight(w io.Writer, tree *cst.Tree, styles Styles) error {
	text := tree.Text()
	var b strings.Builder
	pos := 0
	eachLeaf(tree.Root(), "", "", func(leaf cst.Node, parent, field string) {
		if leaf.IsMissing() {
			return
		}
		b.Write(text[pos:leaf.StartByte()])
		pos = leaf.EndByte()

		style, ok := styles[classifier.Classify(parent, field, leaf.Kind())]
		if !ok {
			b.WriteString(leaf.Text())
			return
		}
		// styles pad multi-line input to a block, so lines are styled one by one
		for i, line := range strings.Split(leaf.Text(), "\n") {
			if i > 0 {
				b.WriteByte('\n')
			}
			if line != "" {
				b.WriteString(style.Render(line))
			}
		}
	})
	b.Write(text[pos:])

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("io.WriteString: %w", err)
	}
	return nil
}
