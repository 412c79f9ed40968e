// Package diagnostic defines the Finding/Diagnostic model that every SAGE
// component reports through. Every recoverable condition in the engine
// becomes a Finding; nothing else crosses a component boundary as an error.
package diagnostic

// Severity is the three-value taxonomy every recoverable condition collapses onto.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

func (s Severity) rank() int {
	switch s {
	case SeverityError:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// Worse reports whether a has strictly higher severity than b.
func (a Severity) Worse(b Severity) bool {
	return a.rank() > b.rank()
}

// Scope names where in the pipeline a Finding originated.
type Scope string

const (
	ScopeField          Scope = "field"
	ScopeRow             Scope = "row"
	ScopeCatalog         Scope = "catalog"
	ScopePackage         Scope = "package"
	ScopeFile            Scope = "file"
	ScopeAuthorization   Scope = "authorization"
)

// Locator pinpoints where within a submission a Finding applies. All fields
// are optional; a Finding may carry any subset depending on its Scope.
type Locator struct {
	CatalogName string `json:"catalog_name,omitempty"`
	FieldName   string `json:"field_name,omitempty"`
	// RowIndex is 1-based, consistent with spec.md's "rows are addressable
	// by a 1-based index used in Findings" (§4.3).
	RowIndex int  `json:"row_index,omitempty"`
	HasRow   bool `json:"-"`
}

// Finding is one diagnostic entry.
type Finding struct {
	Severity      Severity `json:"severity"`
	Scope         Scope    `json:"scope"`
	Locator       Locator  `json:"locator"`
	Message       string   `json:"message"`
	ObservedValue any      `json:"observed_value,omitempty"`
	RuleName      string   `json:"rule_name,omitempty"`
}

// WithRow returns a copy of the Locator with a 1-based row index set.
func (l Locator) WithRow(idx int) Locator {
	l.RowIndex = idx
	l.HasRow = true
	return l
}

// Status is the overall verdict of a Diagnostic.
type Status string

const (
	StatusSuccess Status = "success"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// Diagnostic is the ordered list of Findings produced by one validation pass.
// Order is significant: §4.4 of the spec makes emission order (scope outer,
// declaration order inner, row order innermost) a tested property.
type Diagnostic struct {
	Findings []Finding `json:"findings"`
}

// Add appends a Finding, preserving emission order.
func (d *Diagnostic) Add(f Finding) {
	d.Findings = append(d.Findings, f)
}

// Addf is a convenience for the common case of one Finding built inline.
func (d *Diagnostic) Addf(severity Severity, scope Scope, loc Locator, message string) {
	d.Add(Finding{Severity: severity, Scope: scope, Locator: loc, Message: message})
}

// Merge appends another Diagnostic's Findings in order.
func (d *Diagnostic) Merge(other Diagnostic) {
	d.Findings = append(d.Findings, other.Findings...)
}

// HasErrors reports whether any Finding has ERROR severity.
func (d Diagnostic) HasErrors() bool {
	for _, f := range d.Findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

// HasErrorsInCatalog reports whether any ERROR Finding's locator names the
// given catalog. Findings without a catalog name in their locator never
// match.
func (d Diagnostic) HasErrorsInCatalog(catalogName string) bool {
	for _, f := range d.Findings {
		if f.Severity == SeverityError && f.Locator.CatalogName == catalogName {
			return true
		}
	}
	return false
}

// Status computes the overall Diagnostic status per spec.md §3: success if
// no ERROR is present, warning if only WARNINGs, error otherwise.
func (d Diagnostic) Status() Status {
	sawWarning := false
	for _, f := range d.Findings {
		switch f.Severity {
		case SeverityError:
			return StatusError
		case SeverityWarning:
			sawWarning = true
		}
	}
	if sawWarning {
		return StatusWarning
	}
	return StatusSuccess
}
