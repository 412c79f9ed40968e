// Package reader decodes a submitted blob into one in-memory table per
// catalog, per spec.md §4.3. It never validates field content — that is
// the Validator's job — but it does flag structural problems (a ZIP entry
// matching no declared catalog, a filename that doesn't match the
// declared pattern, an unrecognized column) as Findings of its own.
package reader

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"github.com/vchigne/sage/internal/diagnostic"
	"github.com/vchigne/sage/internal/schema"
	"github.com/vchigne/sage/internal/table"
)

// Result is the Reader's output: one table per logical catalog name, plus
// any structural Findings encountered along the way.
type Result struct {
	Tables map[string]*table.Table
	Diag   diagnostic.Diagnostic
}

// ReadPackage decodes blob according to pkg's declared archive format and
// per-catalog references, matching entries to catalogs either by
// file_inside_archive or by filename pattern (spec.md §4.3). filename is
// the name the whole submission arrived under (the archive's own name, or
// the single file's name for a non-ZIP package); a mismatch against the
// package's declared FilePattern is an ERROR Finding with scope=file.
func ReadPackage(pkg *schema.Package, sch *schema.Schema, blob []byte, senderID, filename string) Result {
	res := Result{Tables: map[string]*table.Table{}}

	if pkg.FilePattern != "" && filename != "" && !MatchFilename(pkg.FilePattern, filename, senderID) {
		res.Diag.Addf(diagnostic.SeverityError, diagnostic.ScopeFile, diagnostic.Locator{}, fmt.Sprintf("package '%s': filename '%s' does not match the declared pattern '%s'", pkg.Name, filename, pkg.FilePattern))
	}

	switch pkg.FileFormat {
	case schema.ArchiveZIP:
		readZIPPackage(pkg, sch, blob, senderID, &res)
	default:
		// A single-file package has exactly one catalog reference; the
		// whole blob is that catalog's data.
		if len(pkg.Catalogs) != 1 {
			res.Diag.Addf(diagnostic.SeverityError, diagnostic.ScopeFile, diagnostic.Locator{}, fmt.Sprintf("package '%s' declares file_format=%s but has %d catalogs; only ZIP packages may bundle more than one", pkg.Name, pkg.FileFormat, len(pkg.Catalogs)))
			return res
		}
		ref := pkg.Catalogs[0]
		cat := &sch.Catalogs[ref.CatalogIndex]
		t, diag := decode(pkg.FileFormat, cat, blob)
		res.Diag.Merge(diag)
		if t != nil {
			res.Tables[ref.LogicalName] = t
		}
	}
	return res
}

func readZIPPackage(pkg *schema.Package, sch *schema.Schema, blob []byte, senderID string, res *Result) {
	zr, err := zip.NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		res.Diag.Addf(diagnostic.SeverityError, diagnostic.ScopeFile, diagnostic.Locator{}, fmt.Sprintf("package '%s': not a valid ZIP archive: %v", pkg.Name, err))
		return
	}

	matched := make([]bool, len(pkg.Catalogs))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		idx := matchEntry(pkg, sch, f.Name, senderID)
		if idx < 0 {
			res.Diag.Addf(diagnostic.SeverityError, diagnostic.ScopeFile, diagnostic.Locator{}, fmt.Sprintf("package '%s': archive entry '%s' matches no declared catalog", pkg.Name, f.Name))
			continue
		}
		matched[idx] = true
		ref := pkg.Catalogs[idx]
		cat := &sch.Catalogs[ref.CatalogIndex]

		rc, err := f.Open()
		if err != nil {
			res.Diag.Addf(diagnostic.SeverityError, diagnostic.ScopeFile, diagnostic.Locator{CatalogName: cat.Name}, fmt.Sprintf("opening archive entry '%s': %v", f.Name, err))
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			res.Diag.Addf(diagnostic.SeverityError, diagnostic.ScopeFile, diagnostic.Locator{CatalogName: cat.Name}, fmt.Sprintf("reading archive entry '%s': %v", f.Name, err))
			continue
		}

		innerFormat := innerFormatFor(ref, cat)
		t, diag := decode(innerFormat, cat, data)
		res.Diag.Merge(diag)
		if t != nil {
			res.Tables[ref.LogicalName] = t
		}
	}

	for i, ok := range matched {
		if !ok {
			res.Diag.Addf(diagnostic.SeverityError, diagnostic.ScopeFile, diagnostic.Locator{CatalogName: sch.Catalogs[pkg.Catalogs[i].CatalogIndex].Name}, fmt.Sprintf("package '%s': no archive entry matched catalog '%s'", pkg.Name, pkg.Catalogs[i].LogicalName))
		}
	}
}

func innerFormatFor(ref schema.CatalogRef, cat *schema.Catalog) schema.ArchiveFormat {
	if ref.FormatOverride != "" {
		return schema.ArchiveFormat(ref.FormatOverride)
	}
	switch {
	case strings.HasSuffix(strings.ToLower(ref.FileInsideArchive), ".csv"):
		return schema.ArchiveCSV
	case strings.HasSuffix(strings.ToLower(ref.FileInsideArchive), ".xlsx"):
		return schema.ArchiveXLSX
	case strings.HasSuffix(strings.ToLower(ref.FileInsideArchive), ".json"):
		return schema.ArchiveJSON
	case strings.HasSuffix(strings.ToLower(ref.FileInsideArchive), ".xml"):
		return schema.ArchiveXML
	default:
		return schema.ArchiveCSV
	}
}

// matchEntry returns the index into pkg.Catalogs that name matches, by
// file_inside_archive first and then by the catalog's own filename
// pattern, or -1 if none match.
func matchEntry(pkg *schema.Package, sch *schema.Schema, name, senderID string) int {
	base := name
	if i := strings.LastIndex(name, "/"); i >= 0 {
		base = name[i+1:]
	}
	for i, ref := range pkg.Catalogs {
		if ref.FileInsideArchive != "" && (ref.FileInsideArchive == name || ref.FileInsideArchive == base) {
			return i
		}
	}
	for i, ref := range pkg.Catalogs {
		if ref.FileInsideArchive != "" {
			continue
		}
		pattern := sch.Catalogs[ref.CatalogIndex].FileFormat
		if pattern == "" {
			continue
		}
		if schema.ExpandFilePattern(pattern, senderID).MatchString(base) {
			return i
		}
	}
	return -1
}

// MatchFilename reports whether filename satisfies pattern's
// {sender_id}/{date} placeholders (spec.md §4.3).
func MatchFilename(pattern, filename, senderID string) bool {
	return schema.ExpandFilePattern(pattern, senderID).MatchString(filename)
}

func decode(format schema.ArchiveFormat, cat *schema.Catalog, data []byte) (*table.Table, diagnostic.Diagnostic) {
	switch format {
	case schema.ArchiveCSV:
		return decodeCSV(cat, data)
	case schema.ArchiveXLSX:
		return decodeXLSX(cat, data)
	case schema.ArchiveJSON:
		return decodeJSON(cat, data)
	case schema.ArchiveXML:
		return decodeXML(cat, data)
	default:
		var diag diagnostic.Diagnostic
		diag.Addf(diagnostic.SeverityError, diagnostic.ScopeFile, diagnostic.Locator{CatalogName: cat.Name}, fmt.Sprintf("unsupported file format %q", format))
		return nil, diag
	}
}

func decodeCSV(cat *schema.Catalog, data []byte) (*table.Table, diagnostic.Diagnostic) {
	var diag diagnostic.Diagnostic
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		diag.Addf(diagnostic.SeverityError, diagnostic.ScopeFile, diagnostic.Locator{CatalogName: cat.Name}, fmt.Sprintf("decoding CSV: %v", err))
		return nil, diag
	}
	if len(records) == 0 {
		diag.Addf(diagnostic.SeverityError, diagnostic.ScopeCatalog, diagnostic.Locator{CatalogName: cat.Name}, "file has no header row")
		return nil, diag
	}
	header := records[0]
	if dupe := firstDuplicate(header); dupe != "" {
		diag.Addf(diagnostic.SeverityError, diagnostic.ScopeCatalog, diagnostic.Locator{CatalogName: cat.Name}, fmt.Sprintf("duplicate column header %q", dupe))
		return nil, diag
	}

	return buildTable(cat, header, len(records)-1, func(row int) []string { return records[row+1] }, &diag)
}

func decodeXLSX(cat *schema.Catalog, data []byte) (*table.Table, diagnostic.Diagnostic) {
	var diag diagnostic.Diagnostic
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		diag.Addf(diagnostic.SeverityError, diagnostic.ScopeFile, diagnostic.Locator{CatalogName: cat.Name}, fmt.Sprintf("decoding XLSX: %v", err))
		return nil, diag
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		diag.Addf(diagnostic.SeverityError, diagnostic.ScopeFile, diagnostic.Locator{CatalogName: cat.Name}, "workbook has no worksheets")
		return nil, diag
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		diag.Addf(diagnostic.SeverityError, diagnostic.ScopeFile, diagnostic.Locator{CatalogName: cat.Name}, fmt.Sprintf("reading worksheet '%s': %v", sheets[0], err))
		return nil, diag
	}
	if len(rows) == 0 {
		diag.Addf(diagnostic.SeverityError, diagnostic.ScopeCatalog, diagnostic.Locator{CatalogName: cat.Name}, "file has no header row")
		return nil, diag
	}
	header := rows[0]
	if dupe := firstDuplicate(header); dupe != "" {
		diag.Addf(diagnostic.SeverityError, diagnostic.ScopeCatalog, diagnostic.Locator{CatalogName: cat.Name}, fmt.Sprintf("duplicate column header %q", dupe))
		return nil, diag
	}

	return buildTable(cat, header, len(rows)-1, func(row int) []string {
		r := rows[row+1]
		// excelize trims trailing empty cells; pad out to header width.
		for len(r) < len(header) {
			r = append(r, "")
		}
		return r
	}, &diag)
}

func decodeJSON(cat *schema.Catalog, data []byte) (*table.Table, diagnostic.Diagnostic) {
	var diag diagnostic.Diagnostic
	var records []map[string]any

	var asArray []map[string]any
	if err := json.Unmarshal(data, &asArray); err == nil {
		records = asArray
	} else {
		var asObject struct {
			Records []map[string]any `json:"records"`
		}
		if err := json.Unmarshal(data, &asObject); err != nil {
			diag.Addf(diagnostic.SeverityError, diagnostic.ScopeFile, diagnostic.Locator{CatalogName: cat.Name}, fmt.Sprintf("decoding JSON: %v", err))
			return nil, diag
		}
		records = asObject.Records
	}

	header := make([]string, 0, len(cat.Fields))
	for _, f := range cat.Fields {
		header = append(header, f.Name)
	}
	t := table.New(header)
	for _, rec := range records {
		cells := make([]table.Value, len(header))
		for i, name := range header {
			cells[i] = coerceJSONValue(rec[name])
		}
		if err := t.AppendRow(cells); err != nil {
			diag.Addf(diagnostic.SeverityError, diagnostic.ScopeCatalog, diagnostic.Locator{CatalogName: cat.Name}, err.Error())
		}
	}
	return t, diag
}

func coerceJSONValue(v any) table.Value {
	if v == nil {
		return nil
	}
	if s, ok := v.(string); ok {
		return s
	}
	return v
}

// xmlRecord is a loosely-typed single record: every immediate child
// element becomes a field, per spec.md §4.3's "sub-elements are fields".
type xmlRecord struct {
	Fields []xmlField `xml:",any"`
}

type xmlField struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

type xmlRoot struct {
	Records []xmlRecord `xml:",any"`
}

func decodeXML(cat *schema.Catalog, data []byte) (*table.Table, diagnostic.Diagnostic) {
	var diag diagnostic.Diagnostic
	var root xmlRoot
	if err := xml.Unmarshal(data, &root); err != nil {
		diag.Addf(diagnostic.SeverityError, diagnostic.ScopeFile, diagnostic.Locator{CatalogName: cat.Name}, fmt.Sprintf("decoding XML: %v", err))
		return nil, diag
	}

	header := make([]string, 0, len(cat.Fields))
	for _, f := range cat.Fields {
		header = append(header, f.Name)
	}
	t := table.New(header)
	for _, rec := range root.Records {
		byName := map[string]string{}
		for _, f := range rec.Fields {
			byName[f.XMLName.Local] = f.Value
		}
		cells := make([]table.Value, len(header))
		for i, name := range header {
			if v, ok := byName[name]; ok {
				cells[i] = v
			}
		}
		if err := t.AppendRow(cells); err != nil {
			diag.Addf(diagnostic.SeverityError, diagnostic.ScopeCatalog, diagnostic.Locator{CatalogName: cat.Name}, err.Error())
		}
	}
	return t, diag
}

// buildTable maps a raw header+row source onto cat's declared fields,
// preserving declaration order and flagging unrecognized columns with an
// INFO Finding (spec.md §4.3's "unknown columns are preserved and
// flagged").
func buildTable(cat *schema.Catalog, header []string, rowCount int, rowAt func(int) []string, diag *diagnostic.Diagnostic) (*table.Table, diagnostic.Diagnostic) {
	colIndex := map[string]int{}
	for i, h := range header {
		colIndex[h] = i
	}
	for _, h := range header {
		if !fieldExists(cat, h) {
			diag.Addf(diagnostic.SeverityInfo, diagnostic.ScopeCatalog, diagnostic.Locator{CatalogName: cat.Name, FieldName: h}, fmt.Sprintf("unrecognized column %q is present in the input but not declared in catalog '%s'", h, cat.Name))
		}
	}

	names := make([]string, len(cat.Fields))
	for i, f := range cat.Fields {
		names[i] = f.Name
	}
	t := table.New(names)

	for r := 0; r < rowCount; r++ {
		raw := rowAt(r)
		cells := make([]table.Value, len(cat.Fields))
		for i, f := range cat.Fields {
			ci, ok := colIndex[f.Name]
			if !ok || ci >= len(raw) {
				cells[i] = nil
				continue
			}
			v := raw[ci]
			if v == "" {
				cells[i] = nil
			} else {
				cells[i] = v
			}
		}
		if err := t.AppendRow(cells); err != nil {
			diag.Addf(diagnostic.SeverityError, diagnostic.ScopeCatalog, diagnostic.Locator{CatalogName: cat.Name}, err.Error())
		}
	}
	return t, *diag
}

func fieldExists(cat *schema.Catalog, name string) bool {
	for _, f := range cat.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

func firstDuplicate(header []string) string {
	seen := map[string]bool{}
	for _, h := range header {
		if seen[h] {
			return h
		}
		seen[h] = true
	}
	return ""
}
