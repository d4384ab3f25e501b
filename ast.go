package vidpipe

// Literal is the value of a `with (k: v, ...)` parameter. Exactly one of the
// fields is meaningful, selected by Kind.
type LiteralKind int

const (
	LitNumber LiteralKind = iota
	LitString
	LitBool
	LitTriple
	LitSymbol // bare identifier, forwarded verbatim to the transform
)

type Literal struct {
	Kind   LiteralKind
	Number float64
	Str    string
	Bool   bool
	Triple [3]float64
	Symbol string
}

// Expr is the tagged union of syntax-tree node variants from §3. Every
// concrete node type implements it as a marker.
type Expr interface {
	exprNode()
}

// Call is a reference to a registered function or a previously defined
// pipeline, with optional keyword parameters.
type Call struct {
	Name   string
	Params map[string]Literal
	Line   int
	Column int
}

// Seq is sequential composition: Left's output feeds Right's input.
// Async records whether this Seq was written with ~> (wider buffer) or ->.
type Seq struct {
	Left, Right Expr
	Async       bool
}

// Par is parallel fan-out with an implicit merge at the downstream consumer.
type Par struct {
	Branches []Expr
}

// Timed bounds Inner to a wall-clock duration.
type Timed struct {
	Inner   Expr
	Seconds float64
}

// Group is parenthesization, transparent after parsing.
type Group struct {
	Inner Expr
}

// Def is a top-level binding of a name to a pipeline expression.
type Def struct {
	Name string
	Body Expr
	Line int
}

// Program is the parse of a whole source unit: zero or more definitions,
// plus the expression selected to execute by §4.P's shadowing rule.
type Program struct {
	Definitions []Def
	Expression  Expr // nil if the source has no expression and no definition; see trailingDefOnly

	// trailingDefOnly is set when the source ends with a `pipeline name = ...`
	// definition and no subsequent expression: per §4.P, running the
	// last-defined pipeline in that situation is a compile-time error.
	trailingDefOnly bool
}

func (*Call) exprNode()  {}
func (*Seq) exprNode()   {}
func (*Par) exprNode()   {}
func (*Timed) exprNode() {}
func (*Group) exprNode() {}
