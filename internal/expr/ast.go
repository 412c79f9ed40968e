package expr

// Node is any parsed rule-expression AST node.
type Node interface{}

// NumberLit is a numeric literal.
type NumberLit struct{ Value float64 }

// StringLit is a quoted string literal.
type StringLit struct{ Value string }

// ListLit is a bracketed literal list, e.g. the argument to isin(...).
type ListLit struct{ Items []Node }

// ColumnRef is df['column'] or, for cross-catalog rules, df['catalog']['column'].
// Table is empty for a single-table reference.
type ColumnRef struct {
	Table  string
	Column string
}

// Attr is attribute access without a call, e.g. the `.str` in `.str.contains(...)`
// or the `.shape` in `.shape[0]`.
type Attr struct {
	X    Node
	Name string
}

// Index is a bracketed index/subscript, e.g. `.shape[0]`.
type Index struct {
	X     Node
	Index Node
}

// NamedArg is a keyword call argument, e.g. `keep=False` in `duplicated(keep=False)`.
type NamedArg struct {
	Name  string
	Value Node
}

// Call is a method call, e.g. `.notnull()`, `.isin([...])`, `.duplicated(keep=False)`.
type Call struct {
	X      Node
	Method string
	Args   []Node
}

// Unary is a prefix operator: logical not (~) or numeric negation (-).
type Unary struct {
	Op tokenKind
	X  Node
}

// Binary is an infix operator: arithmetic, comparison, or logical (&, |).
type Binary struct {
	Op tokenKind
	L  Node
	R  Node
}

// BoolLit is a Python-style True/False literal, used in keyword args.
type BoolLit struct{ Value bool }

// DFRoot is the bare `df` table root, used for `df.shape[0]`.
type DFRoot struct{}
