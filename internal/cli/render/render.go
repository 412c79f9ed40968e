package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/vchigne/sage/internal/diagnostic"
)

// Findings writes diag's Findings to w as a manually column-aligned table,
// widths computed from the actual content of each column.
func Findings(w io.Writer, diag diagnostic.Diagnostic) {
	if len(diag.Findings) == 0 {
		fmt.Fprintln(w, styles.Success.Render("✓ no findings"))
		return
	}

	type row struct {
		severity, scope, locator, message string
	}
	rows := make([]row, 0, len(diag.Findings))
	maxSeverity, maxScope, maxLocator := 0, 0, 0
	for _, f := range diag.Findings {
		r := row{
			severity: string(f.Severity),
			scope:    string(f.Scope),
			locator:  formatLocator(f.Locator),
			message:  f.Message,
		}
		rows = append(rows, r)
		maxSeverity = maxInt(maxSeverity, len(r.severity))
		maxScope = maxInt(maxScope, len(r.scope))
		maxLocator = maxInt(maxLocator, len(r.locator))
	}

	for _, r := range rows {
		fmt.Fprintf(w, "%s  %-*s  %-*s  %s\n",
			colorSeverity(r.severity, maxSeverity),
			maxScope, r.scope,
			maxLocator, r.locator,
			r.message)
	}
}

// Summary writes a one-line verdict: status, plus a count per severity.
func Summary(w io.Writer, diag diagnostic.Diagnostic) {
	var errs, warns, infos int
	for _, f := range diag.Findings {
		switch f.Severity {
		case diagnostic.SeverityError:
			errs++
		case diagnostic.SeverityWarning:
			warns++
		default:
			infos++
		}
	}

	status := styles.Success.Render(string(diag.Status()))
	switch diag.Status() {
	case diagnostic.StatusWarning:
		status = styles.Warning.Render(string(diag.Status()))
	case diagnostic.StatusError:
		status = styles.Error.Render(string(diag.Status()))
	}

	fmt.Fprintf(w, "%s  %s\n", styles.Bold.Render("status:"), status)
	fmt.Fprintf(w, "%s %d  %s %d  %s %d\n",
		styles.Error.Render("errors:"), errs,
		styles.Warning.Render("warnings:"), warns,
		styles.Info.Render("info:"), infos)
}

func formatLocator(l diagnostic.Locator) string {
	var parts []string
	if l.CatalogName != "" {
		parts = append(parts, l.CatalogName)
	}
	if l.FieldName != "" {
		parts = append(parts, l.FieldName)
	}
	if l.HasRow {
		parts = append(parts, fmt.Sprintf("row %d", l.RowIndex))
	}
	return strings.Join(parts, "/")
}

func colorSeverity(s string, width int) string {
	padded := fmt.Sprintf("%-*s", width, s)
	switch diagnostic.Severity(s) {
	case diagnostic.SeverityError:
		return styles.Error.Render(padded)
	case diagnostic.SeverityWarning:
		return styles.Warning.Render(padded)
	default:
		return styles.Info.Render(padded)
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
