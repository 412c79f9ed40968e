package expr

import (
	"fmt"
	"math"
	"time"
)

// Value is the runtime result of evaluating a Node: either a Series
// (one value per table row, row-order-aligned) or a Scalar.
type Value struct {
	IsSeries bool
	Scalar   any
	Series   []any
}

func scalar(v any) Value  { return Value{Scalar: v} }
func series(v []any) Value { return Value{IsSeries: true, Series: v} }

// Len reports the element count: len(Series) for a Series, 1 for a Scalar.
func (v Value) Len() int {
	if v.IsSeries {
		return len(v.Series)
	}
	return 1
}

// At returns the i'th element, broadcasting a Scalar to any index.
func (v Value) At(i int) any {
	if v.IsSeries {
		return v.Series[i]
	}
	return v.Scalar
}

// AsBoolSeries converts v (a Series or Scalar) into a []bool of length n,
// used when a predicate result must align with table rows.
func (v Value) AsBoolSeries(n int) ([]bool, error) {
	out := make([]bool, n)
	for i := 0; i < n; i++ {
		b, ok := toBool(v.At(i % v.Len()))
		if !ok {
			return nil, fmt.Errorf("expr: value %v is not boolean", v.At(i%v.Len()))
		}
		out[i] = b
	}
	return out, nil
}

// AsBool collapses v to a single bool, erroring on a multi-element Series
// the caller didn't reduce first (all()/any()).
func (v Value) AsBool() (bool, error) {
	if v.IsSeries && len(v.Series) != 1 {
		return false, fmt.Errorf("expr: expected a single boolean result, got a series of %d values; wrap with all() or any()", len(v.Series))
	}
	b, ok := toBool(v.At(0))
	if !ok {
		return false, fmt.Errorf("expr: value %v is not boolean", v.At(0))
	}
	return b, nil
}

func toBool(x any) (bool, bool) {
	switch t := x.(type) {
	case bool:
		return t, true
	case nil:
		return false, true
	default:
		return false, false
	}
}

// toTruthy accepts a bool directly, or coerces a number to Python-style
// truthiness (0 is false). Callers that use this for '&'/'|' operands are
// expected to also have flagged Env.BitwiseAmbiguous via seriesLooksBoolean.
func toTruthy(x any) (bool, bool) {
	if b, ok := toBool(x); ok {
		return b, true
	}
	if f, ok := toFloat(x); ok {
		return f != 0, true
	}
	return false, false
}

func isNull(x any) bool {
	if x == nil {
		return true
	}
	if f, ok := x.(float64); ok && math.IsNaN(f) {
		return true
	}
	return false
}

func toFloat(x any) (float64, bool) {
	switch t := x.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func toString(x any) (string, bool) {
	s, ok := x.(string)
	return s, ok
}

func toTime(x any) (time.Time, bool) {
	switch t := x.(type) {
	case time.Time:
		return t, true
	}
	return time.Time{}, false
}

func compareValues(a, b any) (int, bool) {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			default:
				return 0, true
			}
		}
	}
	if as, aok := toString(a); aok {
		if bs, bok := toString(b); bok {
			switch {
			case as < bs:
				return -1, true
			case as > bs:
				return 1, true
			default:
				return 0, true
			}
		}
	}
	if at, aok := toTime(a); aok {
		if bt, bok := toTime(b); bok {
			switch {
			case at.Before(bt):
				return -1, true
			case at.After(bt):
				return 1, true
			default:
				return 0, true
			}
		}
	}
	return 0, false
}

func equalValues(a, b any) bool {
	if isNull(a) && isNull(b) {
		return true
	}
	if c, ok := compareValues(a, b); ok {
		return c == 0
	}
	return a == b
}
