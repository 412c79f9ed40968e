package expr

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vchigne/sage/internal/table"
)

func buildTable(t *testing.T) *table.Table {
	t.Helper()
	tb := table.New([]string{"codigo_producto", "precio_lista", "estado"})
	require.NoError(t, tb.AppendRow([]any{"PROD0001", 10.0, "Activo"}))
	require.NoError(t, tb.AppendRow([]any{"PROD0001", 0.0, "Descontinuado"}))
	require.NoError(t, tb.AppendRow([]any{"PROD0003", 25.5, "Inválido"}))
	return tb
}

func TestRuleDuplicatedKeepFalse(t *testing.T) {
	tb := buildTable(t)
	rule, err := Compile(`~df["codigo_producto"].duplicated(keep=False)`)
	require.NoError(t, err)

	res, err := rule.Eval(tb, nil)
	require.NoError(t, err)
	require.Equal(t, []bool{false, false, true}, res.RowMask)
}

func TestRuleComparison(t *testing.T) {
	tb := buildTable(t)
	rule, err := Compile(`df["precio_lista"] > 0`)
	require.NoError(t, err)

	res, err := rule.Eval(tb, nil)
	require.NoError(t, err)
	require.Equal(t, []bool{true, false, true}, res.RowMask)
}

func TestRuleIsin(t *testing.T) {
	tb := buildTable(t)
	rule, err := Compile(`df["estado"].isin(["Activo", "Descontinuado", "Proximamente"])`)
	require.NoError(t, err)

	res, err := rule.Eval(tb, nil)
	require.NoError(t, err)
	require.Equal(t, []bool{true, true, false}, res.RowMask)
}

func TestRuleNotna(t *testing.T) {
	tb := buildTable(t)
	rule, err := Compile(`df["codigo_producto"].notna()`)
	require.NoError(t, err)

	res, err := rule.Eval(tb, nil)
	require.NoError(t, err)
	require.Equal(t, []bool{true, true, true}, res.RowMask)
}

func TestRuleShapeRowCount(t *testing.T) {
	tb := buildTable(t)
	rule, err := Compile(`df.shape[0] > 0`)
	require.NoError(t, err)

	res, err := rule.Eval(tb, nil)
	require.NoError(t, err)
	require.True(t, res.IsScalar)
	require.True(t, res.Scalar)
}

func TestRuleCrossCatalog(t *testing.T) {
	sales := table.New([]string{"customer_id"})
	require.NoError(t, sales.AppendRow([]any{"C1"}))
	require.NoError(t, sales.AppendRow([]any{"C9"}))
	customers := table.New([]string{"customer_id"})
	require.NoError(t, customers.AppendRow([]any{"C1"}))

	rule, err := Compile(`df["sales.csv"]["customer_id"].isin(df["customers.csv"]["customer_id"])`)
	require.NoError(t, err)

	res, err := rule.Eval(nil, map[string]*table.Table{"sales.csv": sales, "customers.csv": customers})
	require.NoError(t, err)
	require.Equal(t, []bool{true, false}, res.RowMask)
}

func TestRuleBitwiseAmbiguousFlag(t *testing.T) {
	tb := buildTable(t)
	rule, err := Compile(`df["precio_lista"] & df["precio_lista"]`)
	require.NoError(t, err)
	require.True(t, rule.BitwiseAmbiguous)

	res, err := rule.Eval(tb, nil)
	require.NoError(t, err)
	require.True(t, res.BitwiseAmbiguous)
}

func TestCompileBitwiseAmbiguousIsStatic(t *testing.T) {
	ambiguous, err := Compile(`df["precio_lista"] & df["estado"]`)
	require.NoError(t, err)
	require.True(t, ambiguous.BitwiseAmbiguous)

	unambiguous, err := Compile(`(df["precio_lista"] > 0) & df["codigo_producto"].notna()`)
	require.NoError(t, err)
	require.False(t, unambiguous.BitwiseAmbiguous)
}
