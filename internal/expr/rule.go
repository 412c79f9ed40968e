package expr

import (
	"fmt"

	"github.com/vchigne/sage/internal/table"
)

// Rule is a compiled rule expression, ready to evaluate against any number
// of tables without re-parsing.
type Rule struct {
	src  string
	node Node
	// BitwiseAmbiguous is computed once, at parse time, by walking the AST
	// for a '&'/'|' whose operand isn't structurally guaranteed boolean
	// (a comparison, isin()/notnull()/.../duplicated(), ~, or another
	// bitwise combination) — SPEC_FULL.md's Open Question (a) resolution.
	// The Schema Loader surfaces this as an INFO Finding; it does not
	// block compilation, since pandas itself accepts the expression.
	BitwiseAmbiguous bool
}

// Compile parses src once; callers typically compile a catalog's rules at
// schema-load time and reuse the Rule across every submission.
func Compile(src string) (*Rule, error) {
	node, err := Parse(src)
	if err != nil {
		return nil, fmt.Errorf("expr: compiling %q: %w", src, err)
	}
	return &Rule{src: src, node: node, BitwiseAmbiguous: detectBitwiseAmbiguous(node)}, nil
}

func (r *Rule) String() string { return r.src }

// detectBitwiseAmbiguous walks node for any '&'/'|' Binary whose operand
// isn't structurally guaranteed to already be boolean.
func detectBitwiseAmbiguous(n Node) bool {
	switch v := n.(type) {
	case *Binary:
		if (v.Op == tokAmp || v.Op == tokPipe) && (!looksStaticallyBoolean(v.L) || !looksStaticallyBoolean(v.R)) {
			return true
		}
		return detectBitwiseAmbiguous(v.L) || detectBitwiseAmbiguous(v.R)
	case *Unary:
		return detectBitwiseAmbiguous(v.X)
	case *Attr:
		return detectBitwiseAmbiguous(v.X)
	case *Index:
		return detectBitwiseAmbiguous(v.X) || detectBitwiseAmbiguous(v.Index)
	case *Call:
		if detectBitwiseAmbiguous(v.X) {
			return true
		}
		for _, a := range v.Args {
			if detectBitwiseAmbiguous(a) {
				return true
			}
		}
		return false
	case *NamedArg:
		return detectBitwiseAmbiguous(v.Value)
	case *ListLit:
		for _, it := range v.Items {
			if detectBitwiseAmbiguous(it) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// looksStaticallyBoolean reports whether n's shape guarantees a boolean
// result without knowing any column's actual dtype: comparisons, boolean
// literals, '~', nested '&'/'|', and the boolean-returning builtin methods.
// A bare column reference or arithmetic expression never qualifies, since
// its dtype is only known once real data arrives.
func looksStaticallyBoolean(n Node) bool {
	switch v := n.(type) {
	case *BoolLit:
		return true
	case *Unary:
		return v.Op == tokTilde
	case *Binary:
		switch v.Op {
		case tokEq, tokNe, tokLt, tokLe, tokGt, tokGe, tokAmp, tokPipe:
			return true
		}
		return false
	case *Call:
		switch v.Method {
		case "notnull", "notna", "isnull", "isna", "isin", "all", "any", "duplicated", "contains", "match":
			return true
		}
		return false
	default:
		return false
	}
}

// EvalResult is the outcome of evaluating a Rule against a table.
type EvalResult struct {
	// RowMask has one entry per row: true means the row satisfies the
	// rule. For a frame-level rule that reduces to a single boolean,
	// RowMask is nil and Scalar carries the result instead.
	RowMask []bool
	IsScalar bool
	Scalar   bool
	// BitwiseAmbiguous mirrors Env.BitwiseAmbiguous: a '&'/'|' was
	// evaluated over non-boolean operands and resolved as logical only
	// because SPEC_FULL.md's Open Question (a) picked that default.
	BitwiseAmbiguous bool
}

// Eval runs the rule against t (the rule's own catalog) with cross, the
// other catalogs in the same package keyed by logical name, available for
// a package cross_rules' df['other']['field'] form.
func (r *Rule) Eval(t *table.Table, cross map[string]*table.Table) (EvalResult, error) {
	env := &Env{Table: t, Tables: cross}
	v, err := Eval(r.node, env)
	if err != nil {
		return EvalResult{}, err
	}
	res := EvalResult{BitwiseAmbiguous: env.BitwiseAmbiguous}
	if !v.IsSeries {
		b, ok := toBool(v.Scalar)
		if !ok {
			return EvalResult{}, fmt.Errorf("expr: rule %q did not evaluate to a boolean", r.src)
		}
		res.IsScalar = true
		res.Scalar = b
		return res, nil
	}
	mask := make([]bool, len(v.Series))
	for i, x := range v.Series {
		b, ok := toBool(x)
		if !ok {
			return EvalResult{}, fmt.Errorf("expr: rule %q produced a non-boolean row value", r.src)
		}
		mask[i] = b
	}
	res.RowMask = mask
	return res, nil
}
