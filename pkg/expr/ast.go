package expr

// Node is one node of an expression tree. Trees are built by the definition
// parser (or by hand in tests) and evaluated against a record plus the
// current variable values. Expressions never reference other expressions,
// so a single evaluation pass is always enough.
type Node interface {
	node()
}

// Field references a record field by path. Dots traverse nested maps,
// e.g. "customer.region".
type Field struct {
	Path string
}

// Literal is a constant value (string, number or bool).
type Literal struct {
	Value any
}

// Var references a report variable by name. Only element expressions may
// contain Var nodes; variable expressions are validated to be variable-free.
type Var struct {
	Name string
}

// Binary applies Op to Left and Right.
type Binary struct {
	Op    Op
	Left  Node
	Right Node
}

// Concat joins the string forms of all parts.
type Concat struct {
	Parts []Node
}

// Not negates the truthiness of its operand.
type Not struct {
	Expr Node
}

func (Field) node()   {}
func (Literal) node() {}
func (Var) node()     {}
func (Binary) node()  {}
func (Concat) node()  {}
func (Not) node()     {}

// Op is a binary operator.
type Op string

const (
	OpAdd Op = "+"
	OpSub Op = "-"
	OpMul Op = "*"
	OpDiv Op = "/"
	OpMod Op = "%"
	OpEq  Op = "=="
	OpNe  Op = "!="
	OpLt  Op = "<"
	OpLe  Op = "<="
	OpGt  Op = ">"
	OpGe  Op = ">="
	OpAnd Op = "and"
	OpOr  Op = "or"
)

// Fields returns every field path referenced anywhere in the tree.
func Fields(n Node) []string {
	var out []string
	walk(n, func(n Node) {
		if f, ok := n.(Field); ok {
			out = append(out, f.Path)
		}
	})
	return out
}

// Variables returns every variable name referenced anywhere in the tree.
func Variables(n Node) []string {
	var out []string
	walk(n, func(n Node) {
		if v, ok := n.(Var); ok {
			out = append(out, v.Name)
		}
	})
	return out
}

func walk(n Node, fn func(Node)) {
	if n == nil {
		return
	}
	fn(n)
	switch t := n.(type) {
	case Binary:
		walk(t.Left, fn)
		walk(t.Right, fn)
	case Concat:
		for _, p := range t.Parts {
			walk(p, fn)
		}
	case Not:
		walk(t.Expr, fn)
	}
}
