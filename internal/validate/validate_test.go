package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vchigne/sage/internal/expr"
	"github.com/vchigne/sage/internal/schema"
	"github.com/vchigne/sage/internal/table"
)

func mustRule(t *testing.T, src string) *expr.Rule {
	t.Helper()
	r, err := expr.Compile(src)
	require.NoError(t, err)
	return r
}

func TestPackageFieldScopeRequiredAndUnique(t *testing.T) {
	cat := schema.Catalog{
		Name: "customers",
		Fields: []schema.FieldSpec{
			{Name: "customer_id", Type: schema.FieldText, Required: true, Unique: true},
		},
	}
	tb := table.New([]string{"customer_id"})
	require.NoError(t, tb.AppendRow([]table.Value{"c1"}))
	require.NoError(t, tb.AppendRow([]table.Value{nil}))
	require.NoError(t, tb.AppendRow([]table.Value{"c1"}))

	pkg := &schema.Package{
		Name:     "pkg",
		Catalogs: []schema.CatalogRef{{LogicalName: "customers", CatalogIndex: 0}},
	}
	sch := &schema.Schema{Catalogs: []schema.Catalog{cat}}
	diag := Package(sch, pkg, map[string]*table.Table{"customers": tb})

	require.True(t, diag.HasErrors())
	var sawRequired, sawDuplicate bool
	for _, f := range diag.Findings {
		switch {
		case f.Locator.RowIndex == 2:
			sawRequired = true
		case f.Locator.RowIndex == 3:
			sawDuplicate = true
		}
	}
	require.True(t, sawRequired)
	require.True(t, sawDuplicate)
}

func TestPackageNumberAndDateFieldTypes(t *testing.T) {
	cat := schema.Catalog{
		Name: "readings",
		Fields: []schema.FieldSpec{
			{Name: "amount", Type: schema.FieldNumber, Decimals: 2},
			{Name: "reading_date", Type: schema.FieldDate},
		},
	}
	tb := table.New([]string{"amount", "reading_date"})
	require.NoError(t, tb.AppendRow([]table.Value{"10.5", "2026-08-06"}))
	require.NoError(t, tb.AppendRow([]table.Value{"not-a-number", "not-a-date"}))

	pkg := &schema.Package{Name: "pkg", Catalogs: []schema.CatalogRef{{LogicalName: "readings", CatalogIndex: 0}}}
	sch := &schema.Schema{Catalogs: []schema.Catalog{cat}}
	diag := Package(sch, pkg, map[string]*table.Table{"readings": tb})

	require.True(t, diag.HasErrors())
}

func TestPackageSkipsRowScopeWhenFieldScopeHasError(t *testing.T) {
	cat := schema.Catalog{
		Name:          "customers",
		Fields:        []schema.FieldSpec{{Name: "customer_id", Type: schema.FieldText, Required: true}},
		RowValidation: &schema.FieldRule{Severity: schema.SeverityError, ValidationExpr: mustRule(t, `df["customer_id"].notna()`)},
	}
	tb := table.New([]string{"customer_id"})
	require.NoError(t, tb.AppendRow([]table.Value{nil}))

	pkg := &schema.Package{Name: "pkg", Catalogs: []schema.CatalogRef{{LogicalName: "customers", CatalogIndex: 0}}}
	sch := &schema.Schema{Catalogs: []schema.Catalog{cat}}
	diag := Package(sch, pkg, map[string]*table.Table{"customers": tb})

	var sawSkipNote bool
	for _, f := range diag.Findings {
		if f.Severity == "INFO" {
			sawSkipNote = true
		}
	}
	require.True(t, sawSkipNote)
}

func TestPackageCrossRuleSkippedWhenCatalogHasError(t *testing.T) {
	customers := schema.Catalog{
		Name:   "customers",
		Fields: []schema.FieldSpec{{Name: "id", Type: schema.FieldText, Required: true}},
	}
	orders := schema.Catalog{
		Name:   "orders",
		Fields: []schema.FieldSpec{{Name: "customer_id", Type: schema.FieldText}},
	}
	custTbl := table.New([]string{"id"})
	require.NoError(t, custTbl.AppendRow([]table.Value{nil})) // triggers a required-field ERROR
	ordTbl := table.New([]string{"customer_id"})
	require.NoError(t, ordTbl.AppendRow([]table.Value{"c1"}))

	pkg := &schema.Package{
		Name: "pkg",
		Catalogs: []schema.CatalogRef{
			{LogicalName: "customers", CatalogIndex: 0},
			{LogicalName: "orders", CatalogIndex: 1},
		},
		CrossRules: []schema.CrossRule{
			{Name: "orders_have_customer", Severity: schema.SeverityError, Rule: mustRule(t, `df["orders"]["customer_id"].isin(df["customers"]["id"])`)},
		},
	}
	sch := &schema.Schema{Catalogs: []schema.Catalog{customers, orders}}
	diag := Package(sch, pkg, map[string]*table.Table{"customers": custTbl, "orders": ordTbl})

	var sawCrossRuleSkip bool
	for _, f := range diag.Findings {
		if f.Severity == "INFO" && strings.Contains(f.Message, "cross_rule 'orders_have_customer' skipped") {
			// package-scope skip notes don't carry RuleName; the rule is named in the message.
			sawCrossRuleSkip = true
		}
	}
	require.True(t, sawCrossRuleSkip)
}

func TestPackageCatalogValidationScope(t *testing.T) {
	cat := schema.Catalog{
		Name:              "customers",
		Fields:            []schema.FieldSpec{{Name: "id", Type: schema.FieldText}},
		CatalogValidation: &schema.FieldRule{Severity: schema.SeverityWarning, Message: "must have rows", ValidationExpr: mustRule(t, `df.shape[0] > 0`)},
	}
	tb := table.New([]string{"id"})
	pkg := &schema.Package{Name: "pkg", Catalogs: []schema.CatalogRef{{LogicalName: "customers", CatalogIndex: 0}}}
	sch := &schema.Schema{Catalogs: []schema.Catalog{cat}}
	diag := Package(sch, pkg, map[string]*table.Table{"customers": tb})

	require.False(t, diag.HasErrors())
	require.Len(t, diag.Findings, 1)
	require.Equal(t, "must have rows", diag.Findings[0].Message)
}
