package grammar

import (
	"github.com/karupanerura/mq-cst/internal/syntax"
)

// Display categories for leaves.
const (
	CategoryComment     = "comment"
	CategoryString      = "string"
	CategoryEscape      = "string.escape"
	CategoryNumber      = "number"
	CategoryConstant    = "constant"
	CategoryBuiltin     = "variable.builtin"
	CategoryVariable    = "variable"
	CategoryParameter   = "variable.parameter"
	CategoryFunction    = "function"
	CategoryModule      = "module"
	CategoryProperty    = "property"
	CategoryType        = "type"
	CategoryKeyword     = "keyword"
	CategoryOperator    = "operator"
	CategoryPunctuation = "punctuation"
	CategoryError       = "error"
)

// HighlightRule assigns Category to leaves of kind Kind. Parent and Field,
// when set, further require the leaf's parent kind and its field in it.
type HighlightRule struct {
	Kind     string `json:"kind"`
	Parent   string `json:"parent,omitempty"`
	Field    string `json:"field,omitempty"`
	Category string `json:"category"`
}

var contextualHighlightRules = []HighlightRule{
	{Kind: "identifier", Parent: Call, Field: "function", Category: CategoryFunction},
	{Kind: "identifier", Parent: "qualified_access", Field: "function", Category: CategoryFunction},
	{Kind: "identifier", Parent: "qualified_access", Field: "module", Category: CategoryModule},
	{Kind: "identifier", Parent: "module_expr", Field: "name", Category: CategoryModule},
	{Kind: "identifier", Parent: DefExpr, Field: "name", Category: CategoryFunction},
	{Kind: "identifier", Parent: "parameter_list", Category: CategoryParameter},
	{Kind: "identifier", Parent: "selector_expression", Field: "property", Category: CategoryProperty},
	{Kind: "identifier", Parent: "dict_entry", Field: "key", Category: CategoryProperty},
	{Kind: "identifier", Parent: "dict_pattern", Field: "key", Category: CategoryProperty},
	{Kind: "identifier", Parent: "symbol", Category: CategoryConstant},
	{Kind: "identifier", Parent: "type_pattern", Category: CategoryType},
	{Kind: ":", Parent: "symbol", Category: CategoryConstant},
	{Kind: ":", Parent: "type_pattern", Category: CategoryType},
	{Kind: "string", Parent: "dict_entry", Field: "key", Category: CategoryProperty},
	{Kind: `s"`, Category: CategoryString},
	{Kind: `"`, Category: CategoryString},
}

var leafHighlightRules = []HighlightRule{
	{Kind: CommentSym, Category: CategoryComment},
	{Kind: "string", Category: CategoryString},
	{Kind: "string_content", Category: CategoryString},
	{Kind: "escaped_dollar", Category: CategoryEscape},
	{Kind: "number", Category: CategoryNumber},
	{Kind: "boolean", Category: CategoryConstant},
	{Kind: "none", Category: CategoryConstant},
	{Kind: "self", Category: CategoryBuiltin},
	{Kind: "nodes", Category: CategoryBuiltin},
	{Kind: "wildcard_pattern", Category: CategoryBuiltin},
	{Kind: "break_expr", Category: CategoryKeyword},
	{Kind: "continue_expr", Category: CategoryKeyword},
	{Kind: "identifier", Category: CategoryVariable},
	{Kind: ErrorSym, Category: CategoryError},
}

// HighlightRules returns the highlight rules of the mq grammar, most specific
// first.
func HighlightRules() []HighlightRule {
	return MQ.HighlightRules()
}

// HighlightRules appends a rule for every keyword and punctuation terminal
// of t to the fixed leaf rules.
func (t *Table) HighlightRules() []HighlightRule {
	rules := append([]HighlightRule(nil), contextualHighlightRules...)
	rules = append(rules, leafHighlightRules...)
	for _, sym := range t.syms {
		if IsNamedSymbol(sym) || sym == EOFSym {
			continue
		}
		switch {
		case syntax.IsKeyword(sym):
			rules = append(rules, HighlightRule{Kind: sym, Category: CategoryKeyword})
		case operatorSymbols[sym]:
			rules = append(rules, HighlightRule{Kind: sym, Category: CategoryOperator})
		default:
			rules = append(rules, HighlightRule{Kind: sym, Category: CategoryPunctuation})
		}
	}
	return rules
}

var operatorSymbols = map[string]bool{
	"|": true, "||": true, "&&": true, "==": true, "!=": true,
	"<": true, "<=": true, ">": true, ">=": true, "..": true,
	"+": true, "-": true, "*": true, "/": true, "%": true,
	"!": true, "=": true, "::": true,
}

// Classifier resolves leaves to categories with a fixed rule list.
type Classifier struct {
	rules []HighlightRule
}

func NewClassifier(rules []HighlightRule) *Classifier {
	return &Classifier{rules: rules}
}

// Classify returns the category of a leaf of kind inside parent under field,
// or "" when no rule applies. Leaves inside ERROR nodes are errors.
func (c *Classifier) Classify(parent, field, kind string) string {
	if parent == Error {
		return CategoryError
	}
	for _, r := range c.rules {
		if r.Kind != kind {
			continue
		}
		if r.Parent != "" && r.Parent != parent {
			continue
		}
		if r.Field != "" && r.Field != field {
			continue
		}
		return r.Category
	}
	return ""
}
