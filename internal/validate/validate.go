// Package validate is the heart of the engine (spec.md §4.4): it runs
// field, row, catalog, and package scopes in order over the Reader's
// tables and produces an ordered Diagnostic.
package validate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vchigne/sage/internal/diagnostic"
	"github.com/vchigne/sage/internal/expr"
	"github.com/vchigne/sage/internal/schema"
	"github.com/vchigne/sage/internal/table"
)

// Package runs every scope in spec.md §4.4's order over tables (keyed by
// catalog logical name, as produced by internal/reader) and returns the
// accumulated Diagnostic.
func Package(sch *schema.Schema, pkg *schema.Package, tables map[string]*table.Table) diagnostic.Diagnostic {
	var diag diagnostic.Diagnostic
	catalogHasError := map[string]bool{}

	for _, ref := range pkg.Catalogs {
		cat := &sch.Catalogs[ref.CatalogIndex]
		t, ok := tables[ref.LogicalName]
		if !ok {
			diag.Addf(diagnostic.SeverityError, diagnostic.ScopeFile, diagnostic.Locator{CatalogName: cat.Name}, fmt.Sprintf("no input table for catalog '%s'", ref.LogicalName))
			catalogHasError[ref.LogicalName] = true
			continue
		}

		before := len(diag.Findings)
		fieldScope(cat, t, &diag)
		if anyError(diag.Findings[before:]) {
			diag.Addf(diagnostic.SeverityInfo, diagnostic.ScopePackage, diagnostic.Locator{CatalogName: cat.Name}, fmt.Sprintf("row scope for catalog '%s' skipped: field scope produced an ERROR", cat.Name))
			catalogHasError[ref.LogicalName] = true
			continue
		}

		before = len(diag.Findings)
		rowScope(cat, t, &diag)
		if anyError(diag.Findings[before:]) {
			diag.Addf(diagnostic.SeverityInfo, diagnostic.ScopePackage, diagnostic.Locator{CatalogName: cat.Name}, fmt.Sprintf("catalog scope for catalog '%s' skipped: row scope produced an ERROR", cat.Name))
			catalogHasError[ref.LogicalName] = true
			continue
		}

		before = len(diag.Findings)
		catalogScope(cat, t, &diag)
		if anyError(diag.Findings[before:]) {
			catalogHasError[ref.LogicalName] = true
		}
	}

	packageScope(pkg, tables, catalogHasError, &diag)
	return diag
}

func anyError(fs []diagnostic.Finding) bool {
	for _, f := range fs {
		if f.Severity == diagnostic.SeverityError {
			return true
		}
	}
	return false
}

// fieldScope runs spec.md §4.4's seven field-level checks, in field
// declaration order, each check over every row before moving to the next
// field.
func fieldScope(cat *schema.Catalog, t *table.Table, diag *diagnostic.Diagnostic) {
	for _, f := range cat.Fields {
		col, ok := t.Column(f.Name)
		if !ok {
			diag.Addf(diagnostic.SeverityError, diagnostic.ScopeCatalog, diagnostic.Locator{CatalogName: cat.Name, FieldName: f.Name}, fmt.Sprintf("declared field '%s' is missing from the input", f.Name))
			continue
		}

		if f.Required {
			for i, v := range col {
				if isBlank(v) {
					diag.Add(diagnostic.Finding{
						Severity: diagnostic.SeverityError, Scope: diagnostic.ScopeField,
						Locator: diagnostic.Locator{CatalogName: cat.Name, FieldName: f.Name}.WithRow(i + 1),
						Message: fmt.Sprintf("field '%s' is required but row %d is NULL", f.Name, i+1),
					})
				}
			}
		}

		if f.Unique {
			firstSeen := map[string]int{}
			for i, v := range col {
				if isBlank(v) {
					continue // NULLs are not considered duplicates of each other (spec.md §8)
				}
				key := fmt.Sprint(v)
				if first, dup := firstSeen[key]; dup {
					diag.Add(diagnostic.Finding{
						Severity: diagnostic.SeverityError, Scope: diagnostic.ScopeField,
						Locator:       diagnostic.Locator{CatalogName: cat.Name, FieldName: f.Name}.WithRow(i + 1),
						Message:       fmt.Sprintf("field '%s' must be unique; row %d repeats the value from row %d", f.Name, i+1, first+1),
						ObservedValue: v,
					})
				} else {
					firstSeen[key] = i
				}
			}
		}

		switch f.Type {
		case schema.FieldText:
			if f.Length > 0 {
				for i, v := range col {
					if isBlank(v) {
						continue
					}
					if s, ok := v.(string); ok && len(s) > f.Length {
						diag.Add(diagnostic.Finding{
							Severity: diagnostic.SeverityWarning, Scope: diagnostic.ScopeField,
							Locator:       diagnostic.Locator{CatalogName: cat.Name, FieldName: f.Name}.WithRow(i + 1),
							Message:       fmt.Sprintf("field '%s' exceeds max length %d", f.Name, f.Length),
							ObservedValue: v,
						})
					}
				}
			}
		case schema.FieldNumber:
			for i, v := range col {
				if isBlank(v) {
					continue
				}
				s := fmt.Sprint(v)
				n, err := strconv.ParseFloat(s, 64)
				if err != nil {
					diag.Add(diagnostic.Finding{
						Severity: diagnostic.SeverityError, Scope: diagnostic.ScopeField,
						Locator:       diagnostic.Locator{CatalogName: cat.Name, FieldName: f.Name}.WithRow(i + 1),
						Message:       fmt.Sprintf("field '%s' is not a valid number", f.Name),
						ObservedValue: v,
					})
					continue
				}
				if f.Decimals >= 0 && decimalPlaces(s) > f.Decimals {
					diag.Add(diagnostic.Finding{
						Severity: diagnostic.SeverityWarning, Scope: diagnostic.ScopeField,
						Locator:       diagnostic.Locator{CatalogName: cat.Name, FieldName: f.Name}.WithRow(i + 1),
						Message:       fmt.Sprintf("field '%s' has more than %d decimal places", f.Name, f.Decimals),
						ObservedValue: n,
					})
				}
			}
		case schema.FieldDate:
			for i, v := range col {
				if isBlank(v) {
					continue
				}
				s := fmt.Sprint(v)
				if _, ok := parseDate(s); !ok {
					diag.Add(diagnostic.Finding{
						Severity: diagnostic.SeverityError, Scope: diagnostic.ScopeField,
						Locator:       diagnostic.Locator{CatalogName: cat.Name, FieldName: f.Name}.WithRow(i + 1),
						Message:       fmt.Sprintf("field '%s' is not a recognizable date", f.Name),
						ObservedValue: v,
					})
				}
			}
		case schema.FieldEnum:
			allowed := map[string]bool{}
			for _, a := range f.AllowedValues {
				allowed[a] = true
			}
			for i, v := range col {
				if isBlank(v) {
					continue
				}
				if !allowed[fmt.Sprint(v)] {
					diag.Add(diagnostic.Finding{
						Severity: diagnostic.SeverityError, Scope: diagnostic.ScopeField,
						Locator:       diagnostic.Locator{CatalogName: cat.Name, FieldName: f.Name}.WithRow(i + 1),
						Message:       fmt.Sprintf("field '%s' value is not one of the allowed values", f.Name),
						ObservedValue: v,
					})
				}
			}
		}

		for _, rule := range f.Rules {
			evalRule(rule.ValidationExpr, t, nil, cat.Name, f.Name, rule.Message, diagnostic.Severity(rule.Severity), diag)
		}
	}
}

func rowScope(cat *schema.Catalog, t *table.Table, diag *diagnostic.Diagnostic) {
	if cat.RowValidation == nil {
		return
	}
	r := cat.RowValidation
	evalRule(r.ValidationExpr, t, nil, cat.Name, "", r.Message, diagnostic.Severity(r.Severity), diag)
}

func catalogScope(cat *schema.Catalog, t *table.Table, diag *diagnostic.Diagnostic) {
	if cat.CatalogValidation == nil {
		return
	}
	r := cat.CatalogValidation
	res, err := r.ValidationExpr.Eval(t, nil)
	if err != nil {
		diag.Addf(diagnostic.SeverityError, diagnostic.ScopeCatalog, diagnostic.Locator{CatalogName: cat.Name}, fmt.Sprintf("evaluating catalog_validation: %v", err))
		return
	}
	pass := res.Scalar
	if !res.IsScalar {
		pass = allTrue(res.RowMask)
	}
	if !pass {
		sev := diagnostic.Severity(r.Severity)
		msg := r.Message
		if msg == "" {
			msg = fmt.Sprintf("catalog_validation failed for catalog '%s'", cat.Name)
		}
		diag.Add(diagnostic.Finding{Severity: sev, Scope: diagnostic.ScopeCatalog, Locator: diagnostic.Locator{CatalogName: cat.Name}, Message: msg, RuleName: r.ExprSource})
	}
}

func packageScope(pkg *schema.Package, tables map[string]*table.Table, catalogHasError map[string]bool, diag *diagnostic.Diagnostic) {
	for _, cr := range pkg.CrossRules {
		refs := schema.ReferencedLogicalNames(cr.Rule.String())
		skip := false
		for _, logical := range refs {
			if catalogHasError[logical] {
				skip = true
				break
			}
		}
		if skip {
			diag.Addf(diagnostic.SeverityInfo, diagnostic.ScopePackage, diagnostic.Locator{}, fmt.Sprintf("cross_rule '%s' skipped: a referenced catalog has an ERROR finding", cr.Name))
			continue
		}

		res, err := cr.Rule.Eval(nil, tables)
		if err != nil {
			diag.Addf(diagnostic.SeverityError, diagnostic.ScopePackage, diagnostic.Locator{}, fmt.Sprintf("evaluating cross_rule '%s': %v", cr.Name, err))
			continue
		}
		sev := diagnostic.Severity(cr.Severity)

		if res.IsScalar {
			if !res.Scalar {
				diag.Add(diagnostic.Finding{Severity: sev, Scope: diagnostic.ScopePackage, Message: ruleMessage(cr.Message, cr.Name), RuleName: cr.Name})
			}
			continue
		}
		for i, pass := range res.RowMask {
			if !pass {
				diag.Add(diagnostic.Finding{
					Severity: sev, Scope: diagnostic.ScopePackage,
					Locator: diagnostic.Locator{}.WithRow(i + 1),
					Message: ruleMessage(cr.Message, cr.Name),
					RuleName: cr.Name,
				})
			}
		}
	}
}

func evalRule(rule *expr.Rule, t *table.Table, cross map[string]*table.Table, catalogName, fieldName, message string, sev diagnostic.Severity, diag *diagnostic.Diagnostic) {
	res, err := rule.Eval(t, cross)
	if err != nil {
		diag.Addf(diagnostic.SeverityError, diagnostic.ScopeCatalog, diagnostic.Locator{CatalogName: catalogName, FieldName: fieldName}, fmt.Sprintf("evaluating rule '%s': %v", rule.String(), err))
		return
	}
	if sev == "" {
		sev = diagnostic.SeverityError
	}
	if message == "" {
		message = fmt.Sprintf("rule failed: %s", rule.String())
	}

	if res.IsScalar {
		if !res.Scalar {
			diag.Add(diagnostic.Finding{Severity: sev, Scope: scopeFor(fieldName), Locator: diagnostic.Locator{CatalogName: catalogName, FieldName: fieldName}, Message: message, RuleName: rule.String()})
		}
		return
	}
	for i, pass := range res.RowMask {
		if pass {
			continue
		}
		var observed any
		if fieldName != "" {
			observed, _ = t.Cell(i+1, fieldName)
		}
		diag.Add(diagnostic.Finding{
			Severity: sev, Scope: scopeFor(fieldName),
			Locator:       diagnostic.Locator{CatalogName: catalogName, FieldName: fieldName}.WithRow(i + 1),
			Message:       message,
			ObservedValue: observed,
			RuleName:      rule.String(),
		})
	}
}

func scopeFor(fieldName string) diagnostic.Scope {
	if fieldName == "" {
		return diagnostic.ScopeRow
	}
	return diagnostic.ScopeField
}

func ruleMessage(declared, name string) string {
	if declared != "" {
		return declared
	}
	return fmt.Sprintf("cross_rule '%s' failed", name)
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func allTrue(mask []bool) bool {
	for _, b := range mask {
		if !b {
			return false
		}
	}
	return true
}

func decimalPlaces(s string) int {
	i := strings.IndexByte(s, '.')
	if i < 0 {
		return 0
	}
	return len(s) - i - 1
}
