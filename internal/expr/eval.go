package expr

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/vchigne/sage/internal/table"
)

// Env is the evaluation context: the table a bare df['col'] resolves
// against, plus any other catalogs in the same package keyed by logical
// name for a package cross_rules' df['other_catalog']['field'] form.
type Env struct {
	Table  *table.Table
	Tables map[string]*table.Table
	// BitwiseAmbiguous is set when evaluation encounters a '&'/'|' whose
	// operands are not both boolean-valued, the case SPEC_FULL.md's Open
	// Question (a) resolution requires surfacing rather than silently
	// resolving one way or the other.
	BitwiseAmbiguous bool
}

// Eval evaluates a parsed rule expression against env.
func Eval(node Node, env *Env) (Value, error) {
	switch n := node.(type) {
	case *NumberLit:
		return scalar(n.Value), nil
	case *StringLit:
		return scalar(n.Value), nil
	case *BoolLit:
		return scalar(n.Value), nil
	case *ListLit:
		items := make([]any, len(n.Items))
		for i, it := range n.Items {
			v, err := Eval(it, env)
			if err != nil {
				return Value{}, err
			}
			items[i] = v.Scalar
		}
		return scalar(items), nil
	case *DFRoot:
		return Value{}, nil // only meaningful through Attr/Index below
	case *ColumnRef:
		return evalColumnRef(n, env)
	case *Attr:
		return evalAttr(n, env)
	case *Index:
		return evalIndex(n, env)
	case *Call:
		return evalCall(n, env)
	case *Unary:
		return evalUnary(n, env)
	case *Binary:
		return evalBinary(n, env)
	default:
		return Value{}, fmt.Errorf("expr: unhandled node %T", node)
	}
}

func resolveTable(table2 string, env *Env) (*table.Table, error) {
	if table2 == "" {
		if env.Table == nil {
			return nil, fmt.Errorf("expr: no current table in scope")
		}
		return env.Table, nil
	}
	t, ok := env.Tables[table2]
	if !ok {
		return nil, fmt.Errorf("expr: unknown catalog %q referenced by df[%q]", table2, table2)
	}
	return t, nil
}

func evalColumnRef(n *ColumnRef, env *Env) (Value, error) {
	t, err := resolveTable(n.Table, env)
	if err != nil {
		return Value{}, err
	}
	col, ok := t.Column(n.Column)
	if !ok {
		return Value{}, fmt.Errorf("expr: column %q not found", n.Column)
	}
	return series(col), nil
}

// strAccessor marks a Value as the subject of a pending .str.* call.
type strAccessor struct{ v Value }

func evalAttr(n *Attr, env *Env) (Value, error) {
	switch n.Name {
	case "str":
		v, err := Eval(n.X, env)
		if err != nil {
			return Value{}, err
		}
		return Value{Scalar: strAccessor{v: v}}, nil
	case "shape":
		t, err := dfRootTable(n.X, env)
		if err != nil {
			return Value{}, err
		}
		return Value{Scalar: shapeMarker{rows: t.RowCount()}}, nil
	default:
		return Value{}, fmt.Errorf("expr: unsupported attribute %q", n.Name)
	}
}

type shapeMarker struct{ rows int }

func dfRootTable(n Node, env *Env) (*table.Table, error) {
	if _, ok := n.(*DFRoot); !ok {
		return nil, fmt.Errorf("expr: .shape is only supported on df")
	}
	if env.Table == nil {
		return nil, fmt.Errorf("expr: no current table in scope")
	}
	return env.Table, nil
}

func evalIndex(n *Index, env *Env) (Value, error) {
	x, err := Eval(n.X, env)
	if err != nil {
		return Value{}, err
	}
	if sm, ok := x.Scalar.(shapeMarker); ok {
		idx, err := Eval(n.Index, env)
		if err != nil {
			return Value{}, err
		}
		f, _ := toFloat(idx.Scalar)
		if int(f) != 0 {
			return Value{}, fmt.Errorf("expr: shape only supports index 0 (row count)")
		}
		return scalar(float64(sm.rows)), nil
	}
	return Value{}, fmt.Errorf("expr: indexing is only supported on df.shape")
}

func evalUnary(n *Unary, env *Env) (Value, error) {
	x, err := Eval(n.X, env)
	if err != nil {
		return Value{}, err
	}
	switch n.Op {
	case tokTilde:
		out := make([]any, x.Len())
		for i := 0; i < x.Len(); i++ {
			b, ok := toBool(x.At(i))
			if !ok {
				return Value{}, fmt.Errorf("expr: '~' requires a boolean operand")
			}
			out[i] = !b
		}
		if !x.IsSeries {
			return scalar(out[0]), nil
		}
		return series(out), nil
	case tokMinus:
		out := make([]any, x.Len())
		for i := 0; i < x.Len(); i++ {
			f, ok := toFloat(x.At(i))
			if !ok {
				return Value{}, fmt.Errorf("expr: unary '-' requires a numeric operand")
			}
			out[i] = -f
		}
		if !x.IsSeries {
			return scalar(out[0]), nil
		}
		return series(out), nil
	default:
		return Value{}, fmt.Errorf("expr: unsupported unary operator")
	}
}

func evalBinary(n *Binary, env *Env) (Value, error) {
	l, err := Eval(n.L, env)
	if err != nil {
		return Value{}, err
	}
	r, err := Eval(n.R, env)
	if err != nil {
		return Value{}, err
	}

	n2 := l.Len()
	if r.Len() > n2 {
		n2 = r.Len()
	}

	switch n.Op {
	case tokAmp, tokPipe:
		if !seriesLooksBoolean(l) || !seriesLooksBoolean(r) {
			env.BitwiseAmbiguous = true
		}
		out := make([]any, n2)
		for i := 0; i < n2; i++ {
			lb, lok := toTruthy(l.At(i % l.Len()))
			rb, rok := toTruthy(r.At(i % r.Len()))
			if !lok || !rok {
				return Value{}, fmt.Errorf("expr: '%s' requires boolean or numeric operands", opName(n.Op))
			}
			if n.Op == tokAmp {
				out[i] = lb && rb
			} else {
				out[i] = lb || rb
			}
		}
		isSeries := l.IsSeries || r.IsSeries
		if !isSeries {
			return scalar(out[0]), nil
		}
		return series(out), nil

	case tokEq, tokNe, tokLt, tokLe, tokGt, tokGe:
		out := make([]any, n2)
		for i := 0; i < n2; i++ {
			a := l.At(i % l.Len())
			b := r.At(i % r.Len())
			var res bool
			switch n.Op {
			case tokEq:
				res = equalValues(a, b)
			case tokNe:
				res = !equalValues(a, b)
			default:
				c, ok := compareValues(a, b)
				if !ok {
					out[i] = nil
					continue
				}
				switch n.Op {
				case tokLt:
					res = c < 0
				case tokLe:
					res = c <= 0
				case tokGt:
					res = c > 0
				case tokGe:
					res = c >= 0
				}
			}
			out[i] = res
		}
		isSeries := l.IsSeries || r.IsSeries
		if !isSeries {
			return scalar(out[0]), nil
		}
		return series(out), nil

	case tokPlus, tokMinus, tokStar, tokSlash:
		out := make([]any, n2)
		for i := 0; i < n2; i++ {
			a, aok := toFloat(l.At(i % l.Len()))
			b, bok := toFloat(r.At(i % r.Len()))
			if !aok || !bok {
				out[i] = nil
				continue
			}
			switch n.Op {
			case tokPlus:
				out[i] = a + b
			case tokMinus:
				out[i] = a - b
			case tokStar:
				out[i] = a * b
			case tokSlash:
				if b == 0 {
					out[i] = nil
				} else {
					out[i] = a / b
				}
			}
		}
		isSeries := l.IsSeries || r.IsSeries
		if !isSeries {
			return scalar(out[0]), nil
		}
		return series(out), nil

	default:
		return Value{}, fmt.Errorf("expr: unsupported binary operator")
	}
}

func seriesLooksBoolean(v Value) bool {
	for i := 0; i < v.Len(); i++ {
		x := v.At(i)
		if x == nil {
			continue
		}
		if _, ok := x.(bool); !ok {
			return false
		}
	}
	return true
}

func opName(k tokenKind) string {
	if k == tokAmp {
		return "&"
	}
	return "|"
}

func evalCall(n *Call, env *Env) (Value, error) {
	recv, err := Eval(n.X, env)
	if err != nil {
		return Value{}, err
	}
	if sa, ok := recv.Scalar.(strAccessor); ok {
		return evalStrCall(n.Method, sa.v, n.Args, env)
	}
	args := make([]Value, len(n.Args))
	named := map[string]Value{}
	for i, a := range n.Args {
		if na, ok := a.(*NamedArg); ok {
			v, err := Eval(na.Value, env)
			if err != nil {
				return Value{}, err
			}
			named[na.Name] = v
			continue
		}
		v, err := Eval(a, env)
		if err != nil {
			return Value{}, err
		}
		args[i] = v
	}
	return callFunction(n.Method, recv, args, named)
}

func callFunction(method string, recv Value, args []Value, named map[string]Value) (Value, error) {
	switch method {
	case "notnull", "notna":
		out := make([]any, recv.Len())
		for i := range out {
			out[i] = !isNull(recv.At(i))
		}
		return series(out), nil

	case "isnull", "isna":
		out := make([]any, recv.Len())
		for i := range out {
			out[i] = isNull(recv.At(i))
		}
		return series(out), nil

	case "isin":
		if len(args) != 1 {
			return Value{}, fmt.Errorf("expr: isin() requires exactly one list argument")
		}
		var set []any
		if args[0].IsSeries {
			set = args[0].Series
		} else if l, ok := args[0].Scalar.([]any); ok {
			set = l
		} else {
			return Value{}, fmt.Errorf("expr: isin() argument must be a list or a column")
		}
		out := make([]any, recv.Len())
		for i := range out {
			found := false
			for _, item := range set {
				if equalValues(recv.At(i), item) {
					found = true
					break
				}
			}
			out[i] = found
		}
		return series(out), nil

	case "duplicated":
		keepFirst, keepLast := true, false
		if kv, ok := named["keep"]; ok {
			switch s, _ := kv.Scalar.(string); s {
			case "first":
				keepFirst, keepLast = true, false
			case "last":
				keepFirst, keepLast = false, true
			}
			if b, ok := kv.Scalar.(bool); ok && !b {
				keepFirst, keepLast = false, false
			}
		}
		n := recv.Len()
		firstIdx := map[any]int{}
		lastIdx := map[any]int{}
		for i := 0; i < n; i++ {
			k := normalizeKey(recv.At(i))
			if _, ok := firstIdx[k]; !ok {
				firstIdx[k] = i
			}
			lastIdx[k] = i
		}
		out := make([]any, n)
		for i := 0; i < n; i++ {
			k := normalizeKey(recv.At(i))
			switch {
			case keepFirst:
				out[i] = i != firstIdx[k]
			case keepLast:
				out[i] = i != lastIdx[k]
			default:
				out[i] = firstIdx[k] != lastIdx[k]
			}
		}
		return series(out), nil

	case "nunique":
		seen := map[any]struct{}{}
		for i := 0; i < recv.Len(); i++ {
			v := recv.At(i)
			if isNull(v) {
				continue
			}
			seen[normalizeKey(v)] = struct{}{}
		}
		return scalar(float64(len(seen))), nil

	case "all":
		for i := 0; i < recv.Len(); i++ {
			b, ok := toBool(recv.At(i))
			if !ok || !b {
				return scalar(false), nil
			}
		}
		return scalar(true), nil

	case "any":
		for i := 0; i < recv.Len(); i++ {
			b, ok := toBool(recv.At(i))
			if ok && b {
				return scalar(true), nil
			}
		}
		return scalar(false), nil

	case "min", "max", "sum", "mean":
		return reduceNumeric(method, recv)

	default:
		return Value{}, fmt.Errorf("expr: unsupported function %q", method)
	}
}

func reduceNumeric(method string, recv Value) (Value, error) {
	var sum float64
	var count int
	var min, max float64
	first := true
	for i := 0; i < recv.Len(); i++ {
		f, ok := toFloat(recv.At(i))
		if !ok {
			continue
		}
		sum += f
		count++
		if first || f < min {
			min = f
		}
		if first || f > max {
			max = f
		}
		first = false
	}
	if count == 0 {
		return scalar(nil), nil
	}
	switch method {
	case "min":
		return scalar(min), nil
	case "max":
		return scalar(max), nil
	case "sum":
		return scalar(sum), nil
	case "mean":
		return scalar(sum / float64(count)), nil
	}
	return Value{}, fmt.Errorf("expr: unreachable reduceNumeric method %q", method)
}

func normalizeKey(v any) any {
	if f, ok := toFloat(v); ok {
		return f
	}
	return v
}

func evalStrCall(method string, recv Value, argNodes []Node, env *Env) (Value, error) {
	if len(argNodes) != 1 {
		return Value{}, fmt.Errorf("expr: str.%s() requires exactly one argument", method)
	}
	arg, err := Eval(argNodes[0], env)
	if err != nil {
		return Value{}, err
	}
	needle, ok := toString(arg.Scalar)
	if !ok {
		return Value{}, fmt.Errorf("expr: str.%s() argument must be a string", method)
	}

	var re *regexp.Regexp
	if method == "match" {
		re, err = regexp.Compile(needle)
		if err != nil {
			return Value{}, fmt.Errorf("expr: invalid regex in str.match(): %w", err)
		}
	}

	out := make([]any, recv.Len())
	for i := 0; i < recv.Len(); i++ {
		s, ok := toString(recv.At(i))
		if !ok {
			out[i] = false
			continue
		}
		switch method {
		case "contains":
			out[i] = strings.Contains(s, needle)
		case "match":
			out[i] = re.MatchString(s)
		default:
			return Value{}, fmt.Errorf("expr: unsupported str.%s()", method)
		}
	}
	return series(out), nil
}
