package handlebars

// Node is a compiled, immutable template node. Nodes carry no per-render
// state and are shared by concurrent renders.
type Node interface {
	node()
	Pos() Position
}

// TagKind classifies how a tag was written.
type TagKind int

const (
	TagVar           TagKind = iota // {{x}}, escaped
	TagAmp                          // {{&x}}
	TagTriple                       // {{{x}}}
	TagSubExpression                // (x)
	TagSection                      // {{#x}}...{{/x}}
)

// Inline reports whether the tag is an interpolation rather than a section.
func (k TagKind) Inline() bool { return k != TagSection }

// Escaped reports whether output of the tag is escaped.
func (k TagKind) Escaped() bool { return k == TagVar }

func (k TagKind) String() string {
	switch k {
	case TagVar:
		return "var"
	case TagAmp:
		return "amp"
	case TagTriple:
		return "triple"
	case TagSubExpression:
		return "subexpression"
	}
	return "section"
}

// Program is an ordered list of nodes: a template body, a block body or an
// else branch.
type Program struct {
	Nodes []Node
	// decorators are the decorator nodes directly in Nodes. They run before
	// the owner of the program renders it.
	decorators []*DecoratorNode
}

func (p *Program) empty() bool { return p == nil || len(p.Nodes) == 0 }

type tagInfo struct {
	pos       Position
	delims    Delims
	trimLeft  bool
	trimRight bool
}

func (t tagInfo) Pos() Position { return t.pos }

// Text is literal output. Adjacent runs are coalesced at compile time.
type Text struct {
	Content string
	pos     Position
}

func (*Text) node()           {}
func (t *Text) Pos() Position { return t.pos }

// Variable is an interpolation or a sub-expression.
type Variable struct {
	tagInfo
	Name   string
	Path   *Path
	Kind   TagKind
	Params []Param
	Hash   []HashParam
}

func (*Variable) node() {}

// ElseBranch is one link of an else / else-if ladder. Guard is the helper
// name of an else-if (e.g. "if"); it is empty for a plain else.
type ElseBranch struct {
	tagInfo
	Label       string
	Guard       string
	Params      []Param
	Hash        []HashParam
	BlockParams []string
	Body        *Program
}

// Block is a section: {{#name}}, {{^name}} or a raw block.
type Block struct {
	tagInfo
	Name        string
	Path        *Path
	Inverted    bool
	Raw         bool
	Params      []Param
	Hash        []HashParam
	Body        *Program
	ElseChain   []ElseBranch
	BlockParams []string

	closeInfo tagInfo
	// inverse is the else chain compiled into a program.
	inverse *Program
	// source is the raw text of the body, handed to lambdas.
	source string
}

func (*Block) node() {}

// Partial is {{> name ctx k=v}} or, with Body set, {{#> name}}body{{/name}}.
type Partial struct {
	tagInfo
	Name    Param
	Context Param
	Hash    []HashParam
	Indent  string
	Body    *Program

	closeInfo tagInfo
}

func (*Partial) node() {}

// DecoratorNode is {{* name}} or {{#* name}}body{{/name}}.
type DecoratorNode struct {
	tagInfo
	Name       string
	Params     []Param
	Hash       []HashParam
	Body       *Program
	BlockLevel bool
	RootLevel  bool

	closeInfo tagInfo
	// body wraps Body as a template for the decorator function.
	body *Template
}

func (*DecoratorNode) node() {}

// Param is an evaluable argument.
type Param interface {
	param()
	String() string
}

// StringParam is a quoted literal.
type StringParam struct {
	Value string
	Raw   string
}

// NumberParam is an integer or decimal literal. Value is int64 or float64.
type NumberParam struct {
	Value any
	Raw   string
}

// BoolParam is true or false.
type BoolParam bool

// PathParam is a context-relative reference.
type PathParam struct{ Path *Path }

// SubExpression is a nested helper call.
type SubExpression struct{ Var *Variable }

func (StringParam) param()   {}
func (NumberParam) param()   {}
func (BoolParam) param()     {}
func (PathParam) param()     {}
func (SubExpression) param() {}

func (s StringParam) String() string { return s.Raw }
func (n NumberParam) String() string { return n.Raw }
func (b BoolParam) String() string {
	if b {
		return "true"
	}
	return "false"
}
func (p PathParam) String() string { return p.Path.Text }
func (s SubExpression) String() string {
	return "(" + callText(s.Var.Name, s.Var.Params, s.Var.Hash, nil) + ")"
}

// HashParam is one key=value argument. Order follows the source.
type HashParam struct {
	Key   string
	Value Param
}
