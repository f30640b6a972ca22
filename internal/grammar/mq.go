package grammar

// Node kinds external consumers assert on.
const (
	SourceFile = "source_file"
	LetExpr    = "let_expr"
	DefExpr    = "def_expr"
	Pipe       = "pipe"
	Call       = "call"
	Array      = "array"
	Dict       = "dict"
	Comment    = "comment"
	Error      = "ERROR"
	Missing    = "MISSING"
)

var binaryOperatorBindingPowerMap = map[string]uint8{
	"||": 2,
	"&&": 3,
	"==": 5,
	"!=": 5,
	"<":  6,
	"<=": 6,
	">":  6,
	">=": 6,
	"..": 7,
	"+":  10,
	"-":  10,
	"*":  11,
	"/":  11,
	"%":  11,
}

// MQ is the process-wide mq grammar, checked once at init.
var MQ = MustBuild("mq", SourceFile, mqRules())

func mqRules() []*Rule {
	selectorSuffix := choice(
		seq(tok("."), field("property", tok("identifier"))),
		seq(tok("["), opt(seq(
			field("index", ref("_primary")),
			opt(seq(tok(":"), field("end", ref("_primary")))),
		)), tok("]")),
	)

	return []*Rule{
		node(SourceFile, stmts("")),

		hidden("_statement", "statement", choice(
			ref("module_expr"),
			ref("import_expr"),
			ref("include_expr"),
			ref(DefExpr),
			ref(LetExpr),
			ref("if_expr"),
			ref("match_expr"),
			ref("foreach_expr"),
			ref("while_expr"),
			ref("block_expr"),
			leaf("break_expr", "break"),
			leaf("continue_expr", "continue"),
			ref("leading_pipe"),
			ref("_expression"),
		)),

		node("module_expr",
			tok("module"), field("name", tok("identifier")), tok(":"),
			stmts("body", "end"), tok("end")),
		node("import_expr", tok("import"), field("path", tok("string"))),
		node("include_expr", tok("include"), field("path", tok("string"))),

		node(DefExpr,
			tok("def"),
			field("name", tok("identifier")),
			opt(field("params", ref("parameter_list"))),
			tok(":"),
			try(
				seq(field("body", ref("_primary")), tok(";")),
				seq(stmts("body", "end"), tok("end")),
			)),
		node("parameter_list", tok("("), commaSep(tok("identifier"), false), tok(")")),

		node(LetExpr,
			tok("let"), field("name", tok("identifier")), tok("="),
			field("value", ref("_primary"))),

		node("if_expr",
			tok("if"), field("condition", ref("_expression")), tok(":"),
			field("body", ref("_primary")),
			rep(ref("elif_clause")),
			opt(ref("else_clause"))),
		node("elif_clause",
			tok("elif"), field("condition", ref("_expression")), tok(":"),
			field("body", ref("_primary"))),
		node("else_clause", tok("else"), tok(":"), field("body", ref("_primary"))),

		node("match_expr",
			tok("match"), field("value", ref("_expression")), tok(":"),
			rep1(ref("match_arm")), tok("end")),
		node("match_arm",
			tok("|"), field("pattern", ref("pattern")),
			opt(field("guard", ref("guard"))),
			tok(":"), field("body", ref("_primary"))),
		node("guard", tok("if"), ref("_expression")),
		node("pattern", choice(
			ref("literal_pattern"),
			ref("type_pattern"),
			ref("array_pattern"),
			ref("dict_pattern"),
			leaf("wildcard_pattern", "_"),
			ref("variable_pattern"),
		)),
		node("literal_pattern", choice(tok("number"), tok("string"), ref("_boolean"), leaf("none", "None"))),
		node("type_pattern", tok(":"),
			immediate(word("identifier", "string", "number", "array", "dict", "bool", "none", "markdown"))),
		node("array_pattern", tok("["), commaSep(ref("_pattern_element"), false), tok("]")),
		hidden("_pattern_element", "pattern", choice(ref("rest_pattern"), ref("variable_pattern"))),
		node("rest_pattern", tok(".."), field("variable", tok("identifier"))),
		node("dict_pattern", tok("{"), commaSep(field("key", tok("identifier")), false), tok("}")),
		node("variable_pattern", tok("identifier")),

		node("foreach_expr",
			tok("foreach"), tok("("),
			field("variable", tok("identifier")), tok(","),
			field("iterable", ref("_expression")), tok(")"), tok(":"),
			stmts("body", "end", ";"),
			choice(tok("end"), tok(";"))),
		node("while_expr",
			tok("while"), field("condition", ref("_expression")), tok(":"),
			stmts("body", "end"), tok("end")),
		node("block_expr", tok("do"), stmts("body", "end"), tok("end")),

		// A pipe that continues the previous statement, e.g. after a let.
		kindNode("leading_pipe", Pipe,
			tok("|"), ref("_primary"),
			rep(seq(tok("|"), ref("_primary")))),

		hidden("_expression", "expression", &Postfix{
			Head: ref("_primary"),
			Many: true,
			Cases: []PostfixCase{
				{Kind: Pipe, Tail: seq(tok("|"), ref("_primary"))},
			},
		}),
		hidden("_primary", "expression", &Infix{
			Kind:    "binary_expr",
			Operand: ref("_unary"),
			Ops:     binaryOperatorBindingPowerMap,
		}),
		hidden("_unary", "expression", &Prefix{
			Kind:    "unary_expr",
			Ops:     []string{"!", "-"},
			Operand: ref("_postfixed"),
		}),
		hidden("_postfixed", "expression", &Postfix{
			Head: ref("_atom"),
			Many: true,
			Cases: []PostfixCase{
				{Kind: "selector_expression", HeadField: "base", Tail: sameLine(selectorSuffix)},
			},
		}),
		hidden("_atom", "expression", choice(
			ref("_identifier_head"),
			tok("number"),
			tok("string"),
			ref("_boolean"),
			leaf("none", "None"),
			leaf("self", "self"),
			leaf("nodes", "nodes"),
			ref("symbol"),
			ref(Array),
			ref(Dict),
			ref("group_expression"),
			ref("function_expression"),
			ref("interpolated_string"),
			ref("dot_selector"),
		)),
		hidden("_identifier_head", "identifier", &Postfix{
			Head: tok("identifier"),
			Cases: []PostfixCase{
				{
					Kind:      "qualified_access",
					HeadField: "module",
					Tail: seq(
						tok("::"), field("function", tok("identifier")),
						opt(sameLine(field("arguments", ref("argument_list"))))),
				},
				{
					Kind:      Call,
					HeadField: "function",
					Tail:      sameLine(field("arguments", ref("argument_list"))),
				},
			},
		}),
		hidden("_boolean", "boolean", choice(leaf("boolean", "true"), leaf("boolean", "false"))),

		node("argument_list", tok("("), commaSep(ref("_primary"), false), tok(")")),
		node("symbol", tok(":"), immediate(tok("identifier"))),
		node(Array, tok("["), commaSep(ref("_primary"), true), tok("]")),
		node(Dict, tok("{"), commaSep(ref("dict_entry"), true), tok("}")),
		node("dict_entry",
			field("key", choice(tok("identifier"), tok("string"))), tok(":"),
			field("value", ref("_primary"))),
		node("group_expression", tok("("), ref("_primary"), tok(")")),
		node("function_expression",
			tok("fn"), opt(field("params", ref("parameter_list"))), tok(":"),
			field("body", ref("_primary")), tok(";")),
		node("interpolated_string",
			tok(`s"`),
			rep(choice(tok("string_content"), tok("escaped_dollar"), ref("interpolation"))),
			tok(`"`)),
		node("interpolation", tok("${"), ref("_primary"), tok("}")),
		kindNode("dot_selector", "selector_expression",
			tok("."), selectorSuffixAfterDot(),
			rep(sameLine(selectorSuffix))),
	}
}

// selectorSuffixAfterDot is what may follow a leading '.', as in .name or
// .[0]. Like a property after a base, it may be separated from the dot.
func selectorSuffixAfterDot() Expr {
	return choice(
		field("property", tok("identifier")),
		seq(tok("["), opt(seq(
			field("index", ref("_primary")),
			opt(seq(tok(":"), field("end", ref("_primary")))),
		)), tok("]")),
	)
}
