package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/vchigne/sage/internal/diagnostic"
	"github.com/vchigne/sage/internal/expr"
	"gopkg.in/yaml.v3"
)

// FileLoader abstracts reading a document's bytes by path, so the Loader
// itself never touches os directly and tests can load from an in-memory map.
type FileLoader interface {
	ReadFile(path string) ([]byte, error)
}

// OSFileLoader reads from the local filesystem.
type OSFileLoader struct{}

func (OSFileLoader) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }

var secretPattern = regexp.MustCompile(`\{\{([A-Za-z0-9_]+)\}\}`)

// resolveSecrets substitutes {{NAME}} templates against environment
// variables (spec.md §6's "by convention").
func resolveSecrets(s string) string {
	return secretPattern.ReplaceAllStringFunc(s, func(m string) string {
		name := secretPattern.FindStringSubmatch(m)[1]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return m
	})
}

// Load parses and structurally validates every document reachable from
// paths (catalog, package, or sender documents, in any order, sniffed by
// their top-level key), resolving path: references relative to the
// referencing package document's directory. It returns a fully resolved
// Schema and a Diagnostic: structural failures are ERROR Findings with
// scope=file and make the returned Schema nil (spec.md §4.1).
func Load(fsys FileLoader, paths []string) (*Schema, diagnostic.Diagnostic) {
	var diag diagnostic.Diagnostic
	l := &loader{fsys: fsys, diag: &diag, catalogByPath: map[string]int{}}

	s := &Schema{}
	for _, p := range paths {
		data, err := fsys.ReadFile(p)
		if err != nil {
			diag.Addf(diagnostic.SeverityError, diagnostic.ScopeFile, diagnostic.Locator{}, fmt.Sprintf("reading %s: %v", p, err))
			continue
		}
		kind, err := sniffKind(data)
		if err != nil {
			diag.Addf(diagnostic.SeverityError, diagnostic.ScopeFile, diagnostic.Locator{}, fmt.Sprintf("%s: %v", p, err))
			continue
		}
		switch kind {
		case "catalog":
			if c, ok := l.loadCatalogBytes(data, p, map[string]bool{}); ok {
				l.addCatalog(s, *c)
			}
		case "package":
			if pkg, ok := l.loadPackageBytes(s, data, p); ok {
				s.Packages = append(s.Packages, *pkg)
			}
		case "senders":
			l.loadSenderBytes(s, data, p)
		}
	}

	if diag.HasErrors() {
		return nil, diag
	}

	// Cross-rule / CatalogRef back-reference validation (invariant: a
	// CrossRule references only logical names declared in the same
	// package) is checked while loading packages, above.
	s.index()
	return s, diag
}

func sniffKind(data []byte) (string, error) {
	var probe map[string]any
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return "", fmt.Errorf("invalid YAML: %w", err)
	}
	switch {
	case probe["catalog"] != nil:
		return "catalog", nil
	case probe["package"] != nil:
		return "package", nil
	case probe["senders"] != nil:
		return "senders", nil
	default:
		return "", fmt.Errorf("document has none of the top-level keys catalog/package/senders")
	}
}

type loader struct {
	fsys          FileLoader
	diag          *diagnostic.Diagnostic
	catalogByPath map[string]int // canonical path -> index into in-progress Schema.Catalogs
}

func (l *loader) addCatalog(s *Schema, c Catalog) int {
	s.Catalogs = append(s.Catalogs, c)
	return len(s.Catalogs) - 1
}

func (l *loader) fail(msg string) {
	l.diag.Addf(diagnostic.SeverityError, diagnostic.ScopeFile, diagnostic.Locator{}, msg)
}

func (l *loader) loadCatalogBytes(data []byte, sourcePath string, visiting map[string]bool) (*Catalog, bool) {
	var doc catalogDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		l.fail(fmt.Sprintf("%s: invalid catalog YAML: %v", sourcePath, err))
		return nil, false
	}
	return l.buildCatalog(doc, sourcePath)
}

func (l *loader) buildCatalog(doc catalogDoc, sourcePath string) (*Catalog, bool) {
	cat := doc.Catalog
	ok := true

	if cat.Name == "" {
		l.fail(fmt.Sprintf("%s: catalog missing 'name'", sourcePath))
		ok = false
	}
	if len(cat.Fields) == 0 {
		l.fail(fmt.Sprintf("%s: catalog '%s' has an empty or missing 'fields' list", sourcePath, cat.Name))
		ok = false
	}

	seen := map[string]bool{}
	fields := make([]FieldSpec, 0, len(cat.Fields))
	for _, fd := range cat.Fields {
		if fd.Name == "" {
			l.fail(fmt.Sprintf("%s: field missing 'name' in catalog '%s'", sourcePath, cat.Name))
			ok = false
			continue
		}
		if seen[fd.Name] {
			l.fail(fmt.Sprintf("%s: duplicate field name '%s' in catalog '%s'", sourcePath, fd.Name, cat.Name))
			ok = false
			continue
		}
		seen[fd.Name] = true

		ft := FieldType(fd.Type)
		switch ft {
		case FieldText, FieldNumber, FieldDate, FieldEnum:
		default:
			l.fail(fmt.Sprintf("%s: field '%s' has invalid type '%s'", sourcePath, fd.Name, fd.Type))
			ok = false
			continue
		}
		if ft == FieldEnum && len(fd.AllowedValues) == 0 {
			l.fail(fmt.Sprintf("%s: enum field '%s' requires 'allowed_values'", sourcePath, fd.Name))
			ok = false
		}
		length := 0
		if fd.Length != nil {
			length = *fd.Length
			if length < 1 {
				l.fail(fmt.Sprintf("%s: field '%s' has invalid 'length' %d, must be >= 1", sourcePath, fd.Name, length))
				ok = false
			}
		}
		decimals := 0
		if fd.Decimals != nil {
			decimals = *fd.Decimals
			if decimals < 0 {
				l.fail(fmt.Sprintf("%s: field '%s' has invalid 'decimals' %d, must be >= 0", sourcePath, fd.Name, decimals))
				ok = false
			}
		}

		rules, rok := l.compileRules(fd.Rules, sourcePath, fd.Name)
		ok = ok && rok

		fields = append(fields, FieldSpec{
			Name:          fd.Name,
			Type:          ft,
			Length:        length,
			Decimals:      decimals,
			Required:      fd.Required,
			Unique:        fd.Unique,
			AllowedValues: fd.AllowedValues,
			Rules:         rules,
		})
	}

	if !ok {
		return nil, false
	}

	c := &Catalog{
		Name:        cat.Name,
		Description: cat.Description,
		Fields:      fields,
		FileFormat:  cat.FileFormat,
		sourcePath:  sourcePath,
	}

	if cat.RowValidation != nil {
		rules, rok := l.compileRules([]ruleDoc{*cat.RowValidation}, sourcePath, "row_validation")
		if !rok {
			return nil, false
		}
		c.RowValidation = &rules[0]
	}
	if cat.CatalogValidation != nil {
		rules, rok := l.compileRules([]ruleDoc{*cat.CatalogValidation}, sourcePath, "catalog_validation")
		if !rok {
			return nil, false
		}
		c.CatalogValidation = &rules[0]
	}

	return c, true
}

func (l *loader) compileRules(docs []ruleDoc, sourcePath, fieldName string) ([]FieldRule, bool) {
	ok := true
	out := make([]FieldRule, 0, len(docs))
	for _, rd := range docs {
		if rd.ValidationExpression == "" {
			l.fail(fmt.Sprintf("%s: rule on '%s' missing 'validation_expression'", sourcePath, fieldName))
			ok = false
			continue
		}
		rule, err := expr.Compile(rd.ValidationExpression)
		if err != nil {
			l.fail(fmt.Sprintf("%s: rule on '%s': %v", sourcePath, fieldName, err))
			ok = false
			continue
		}
		if rule.BitwiseAmbiguous {
			l.diag.Addf(diagnostic.SeverityInfo, diagnostic.ScopeFile, diagnostic.Locator{}, fmt.Sprintf("%s: rule on '%s' combines '&'/'|' with an operand that isn't guaranteed boolean; evaluated as logical and/or", sourcePath, fieldName))
		}
		sev := Severity(rd.Severity)
		if sev == "" {
			sev = SeverityError
		}
		out = append(out, FieldRule{
			Message:        rd.Message,
			Severity:       sev,
			ValidationExpr: rule,
			ExprSource:     rd.ValidationExpression,
		})
	}
	return out, ok
}

func (l *loader) loadPackageBytes(s *Schema, data []byte, sourcePath string) (*Package, bool) {
	var doc packageDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		l.fail(fmt.Sprintf("%s: invalid package YAML: %v", sourcePath, err))
		return nil, false
	}
	pd := doc.Package
	ok := true

	if pd.Name == "" {
		l.fail(fmt.Sprintf("%s: package missing 'name'", sourcePath))
		ok = false
	}

	refs := append(append([]catalogRefDoc{}, pd.Catalogs...), pd.Components...)
	if len(refs) == 0 {
		l.fail(fmt.Sprintf("%s: package '%s' has no catalogs (neither 'catalogs' nor 'components')", sourcePath, pd.Name))
		ok = false
	}

	baseDir := filepath.Dir(sourcePath)
	var catalogRefs []CatalogRef
	logicalSeen := map[string]bool{}

	for _, rd := range refs {
		var cat *Catalog
		var cok bool
		switch {
		case rd.Inline != nil:
			cat, cok = l.buildCatalog(*rd.Inline, sourcePath)
		case rd.Path != "":
			resolved := rd.Path
			if !filepath.IsAbs(resolved) {
				resolved = filepath.Join(baseDir, resolved)
			}
			resolved = filepath.Clean(resolved)
			if idx, already := l.catalogByPath[resolved]; already {
				logical := rd.LogicalName
				if logical == "" {
					logical = s.Catalogs[idx].Name
				}
				if logicalSeen[logical] {
					l.fail(fmt.Sprintf("%s: duplicate catalog logical name '%s' in package '%s'", sourcePath, logical, pd.Name))
					ok = false
					continue
				}
				logicalSeen[logical] = true
				catalogRefs = append(catalogRefs, CatalogRef{
					LogicalName:       logical,
					FileInsideArchive: rd.FileInsideArchive,
					CatalogIndex:      idx,
					FormatOverride:    rd.FormatOverride,
				})
				continue
			}
			data, err := l.fsys.ReadFile(resolved)
			if err != nil {
				l.fail(fmt.Sprintf("%s: reading referenced catalog %s: %v", sourcePath, resolved, err))
				ok = false
				continue
			}
			var innerDoc catalogDoc
			if err := yaml.Unmarshal(data, &innerDoc); err != nil {
				l.fail(fmt.Sprintf("%s: invalid catalog YAML at %s: %v", sourcePath, resolved, err))
				ok = false
				continue
			}
			cat, cok = l.buildCatalog(innerDoc, resolved)
			if cok {
				idx := l.addCatalog(s, *cat)
				l.catalogByPath[resolved] = idx
				logical := rd.LogicalName
				if logical == "" {
					logical = cat.Name
				}
				if logicalSeen[logical] {
					l.fail(fmt.Sprintf("%s: duplicate catalog logical name '%s' in package '%s'", sourcePath, logical, pd.Name))
					ok = false
					continue
				}
				logicalSeen[logical] = true
				catalogRefs = append(catalogRefs, CatalogRef{
					LogicalName:       logical,
					FileInsideArchive: rd.FileInsideArchive,
					CatalogIndex:      idx,
					FormatOverride:    rd.FormatOverride,
				})
			} else {
				ok = false
			}
			continue
		default:
			l.fail(fmt.Sprintf("%s: catalog reference in package '%s' has neither inline 'catalog' nor 'path'", sourcePath, pd.Name))
			ok = false
			continue
		}

		if !cok {
			ok = false
			continue
		}
		idx := l.addCatalog(s, *cat)
		logical := rd.LogicalName
		if logical == "" {
			logical = cat.Name
		}
		if logicalSeen[logical] {
			l.fail(fmt.Sprintf("%s: duplicate catalog logical name '%s' in package '%s'", sourcePath, logical, pd.Name))
			ok = false
			continue
		}
		logicalSeen[logical] = true
		catalogRefs = append(catalogRefs, CatalogRef{
			LogicalName:       logical,
			FileInsideArchive: rd.FileInsideArchive,
			CatalogIndex:      idx,
			FormatOverride:    rd.FormatOverride,
		})
	}

	var crossRules []CrossRule
	for _, rd := range pd.CrossRules {
		if rd.ValidationExpression == "" {
			l.fail(fmt.Sprintf("%s: cross_rule '%s' missing 'validation_expression'", sourcePath, rd.Name))
			ok = false
			continue
		}
		if err := validateCrossRuleReferences(rd.ValidationExpression, logicalSeen); err != nil {
			l.fail(fmt.Sprintf("%s: cross_rule '%s' in package '%s': %v", sourcePath, rd.Name, pd.Name, err))
			ok = false
			continue
		}
		rule, err := expr.Compile(rd.ValidationExpression)
		if err != nil {
			l.fail(fmt.Sprintf("%s: cross_rule '%s': %v", sourcePath, rd.Name, err))
			ok = false
			continue
		}
		if rule.BitwiseAmbiguous {
			l.diag.Addf(diagnostic.SeverityInfo, diagnostic.ScopeFile, diagnostic.Locator{}, fmt.Sprintf("%s: cross_rule '%s' combines '&'/'|' with an operand that isn't guaranteed boolean; evaluated as logical and/or", sourcePath, rd.Name))
		}
		sev := Severity(rd.Severity)
		if sev == "" {
			sev = SeverityError
		}
		crossRules = append(crossRules, CrossRule{Name: rd.Name, Message: rd.Message, Severity: sev, Rule: rule})
	}

	format := ArchiveFormat(pd.FileFormat.Type)
	switch format {
	case ArchiveCSV, ArchiveXLSX, ArchiveJSON, ArchiveXML, ArchiveZIP:
	default:
		l.fail(fmt.Sprintf("%s: package '%s' has invalid file_format.type '%s'", sourcePath, pd.Name, pd.FileFormat.Type))
		ok = false
	}

	dest, dok := l.buildDestination(pd.Destination, sourcePath, pd.Name)
	ok = ok && dok

	if !ok {
		return nil, false
	}

	return &Package{
		Name:        pd.Name,
		Description: pd.Description,
		Mandatory:   pd.Mandatory,
		FileFormat:  format,
		FilePattern: pd.FileFormat.Pattern,
		Catalogs:    catalogRefs,
		CrossRules:  crossRules,
		Destination: dest,
	}, true
}

// quotedColumnPattern extracts df["logical"] / df['logical'] table
// references so CrossRule validation can check them against the
// package's declared logical names without a full expression walk.
var quotedColumnPattern = regexp.MustCompile(`df\[(['"])([^'"]+)['"]\]\[(['"])([^'"]+)['"]\]`)

// ReferencedLogicalNames extracts every df["logical"]["column"] catalog
// reference from a cross-rule expression, used by the Validator to decide
// whether a CrossRule's prerequisite catalogs all passed (spec.md §4.4).
func ReferencedLogicalNames(exprSrc string) []string {
	var out []string
	for _, m := range quotedColumnPattern.FindAllStringSubmatch(exprSrc, -1) {
		out = append(out, m[2])
	}
	return out
}

func validateCrossRuleReferences(exprSrc string, logicalNames map[string]bool) error {
	for _, m := range quotedColumnPattern.FindAllStringSubmatch(exprSrc, -1) {
		logical := m[2]
		if !logicalNames[logical] {
			return fmt.Errorf("references undeclared catalog logical name %q", logical)
		}
	}
	return nil
}

func (l *loader) buildDestination(dd destinationDoc, sourcePath, pkgName string) (Destination, bool) {
	ok := true
	dest := Destination{Enabled: dd.Enabled, TargetTable: dd.TargetTable}

	if dd.Enabled {
		drv := Driver(dd.Connection.Driver)
		switch drv {
		case DriverPostgres, DriverMySQL, DriverSQLServer, DriverOracle:
		default:
			l.fail(fmt.Sprintf("%s: package '%s' has invalid connection.driver '%s'", sourcePath, pkgName, dd.Connection.Driver))
			ok = false
		}
		dest.Connection = Connection{
			Driver:   drv,
			Host:     resolveSecrets(dd.Connection.Host),
			Port:     dd.Connection.Port,
			User:     resolveSecrets(dd.Connection.User),
			Password: resolveSecrets(dd.Connection.Password),
			Database: resolveSecrets(dd.Connection.Database),
		}

		im := InsertionMethod(dd.InsertionMethod)
		switch im {
		case InsertionInsert, InsertionUpsert, InsertionReplace:
		default:
			l.fail(fmt.Sprintf("%s: package '%s' has invalid insertion_method '%s'", sourcePath, pkgName, dd.InsertionMethod))
			ok = false
		}
		dest.InsertionMethod = im

		if dd.TargetTable == "" {
			l.fail(fmt.Sprintf("%s: package '%s' has destination.enabled=true but no target_table", sourcePath, pkgName))
			ok = false
		}
	}

	if dd.PreValidation != nil {
		payload, err := json.Marshal(dd.PreValidation.Payload)
		if err != nil {
			l.fail(fmt.Sprintf("%s: package '%s' pre_validation.payload: %v", sourcePath, pkgName, err))
			ok = false
		}
		dest.PreValidation = &PreValidation{
			Endpoint: resolveSecrets(dd.PreValidation.Endpoint),
			Method:   dd.PreValidation.Method,
			Payload:  payload,
		}
	}

	return dest, ok
}

func (l *loader) loadSenderBytes(s *Schema, data []byte, sourcePath string) {
	var doc senderDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		l.fail(fmt.Sprintf("%s: invalid senders YAML: %v", sourcePath, err))
		return
	}
	seen := map[string]bool{}
	for _, e := range doc.Senders.SendersList {
		if e.SenderID == "" {
			l.fail(fmt.Sprintf("%s: sender missing 'sender_id'", sourcePath))
			continue
		}
		if seen[e.SenderID] {
			l.fail(fmt.Sprintf("%s: duplicate sender_id '%s'", sourcePath, e.SenderID))
			continue
		}
		seen[e.SenderID] = true

		configs := map[string]ChannelConfig{}
		ok := true
		for _, m := range e.AllowedMethods {
			c, present := e.Configurations[m]
			if !present {
				l.fail(fmt.Sprintf("%s: sender '%s' missing configuration for allowed method '%s'", sourcePath, e.SenderID, m))
				ok = false
				continue
			}
			configs[m] = ChannelConfig{
				APIKey:         resolveSecrets(c.APIKey),
				AllowedSenders: c.AllowedSenders,
				SourceHost:     c.SourceHost,
			}
		}
		if !ok {
			continue
		}

		s.Senders = append(s.Senders, Sender{
			SenderID:       e.SenderID,
			Name:           e.Name,
			Responsible:    ResponsiblePerson{Name: e.ResponsiblePerson.Name, Email: e.ResponsiblePerson.Email, Phone: e.ResponsiblePerson.Phone},
			AllowedMethods: e.AllowedMethods,
			Configurations: configs,
			SubmissionFrequency: SubmissionFrequency{
				Cadence:  e.SubmissionFrequency.Cadence,
				Deadline: e.SubmissionFrequency.Deadline,
			},
			Packages: e.Packages,
		})
	}
}

// DatePlaceholderPattern recognizes the {date} placeholder's expansion: an
// 8-digit YYYYMMDD token, used by internal/reader's filename matcher.
var DatePlaceholderPattern = regexp.MustCompile(`^\d{8}$`)

// ExpandFilePattern substitutes {sender_id} and {date} in pattern, used to
// build a regular expression reader.MatchFilename checks candidate
// filenames against.
func ExpandFilePattern(pattern, senderID string) *regexp.Regexp {
	escaped := regexp.QuoteMeta(pattern)
	escaped = strings.ReplaceAll(escaped, regexp.QuoteMeta("{sender_id}"), regexp.QuoteMeta(senderID))
	escaped = strings.ReplaceAll(escaped, regexp.QuoteMeta("{date}"), `\d{8}`)
	return regexp.MustCompile("^" + escaped + "$")
}
