// Package schema loads catalog/package/sender documents into the
// read-only in-memory Schema the Validator and Sink consult. Catalogs and
// packages are held in two flat arrays on Schema; cross-references are
// resolved to slice indices rather than pointers, the arena-and-index shape
// spec.md's Design Notes call for in place of a cyclic object graph.
package schema

import "github.com/vchigne/sage/internal/expr"

// FieldType is one of the four supported FieldSpec types.
type FieldType string

const (
	FieldText   FieldType = "text"
	FieldNumber FieldType = "number"
	FieldDate   FieldType = "date"
	FieldEnum   FieldType = "enum"
)

// Severity mirrors diagnostic.Severity; kept as a separate string type so
// schema documents don't need to import the diagnostic package just to
// declare a default.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// FieldRule is one compiled rule attached to a FieldSpec.
type FieldRule struct {
	Message         string
	Severity        Severity
	ValidationExpr   *expr.Rule
	ExprSource       string
}

// FieldSpec describes one column of a Catalog.
type FieldSpec struct {
	Name          string
	Type          FieldType
	Length        int  // 0 means unset
	Decimals      int
	Required      bool
	Unique        bool
	AllowedValues []string // enum only
	Rules         []FieldRule
}

// Catalog is the shape of one tabular dataset.
type Catalog struct {
	Name        string
	Description string
	Fields      []FieldSpec

	RowValidation     *FieldRule // scope = row, vector mode
	CatalogValidation *FieldRule // scope = whole table, scalar mode

	// FileFormat is a filename pattern, with {sender_id}/{date}
	// placeholders, that the Reader uses to find this catalog's entry
	// inside a ZIP package.
	FileFormat string

	// sourcePath is the path of the document this catalog was loaded from;
	// for a catalog declared inline in a package it is the package
	// document's path. Nothing reads it after loading.
	sourcePath string
}

// CatalogRef is a package's reference to one of its member catalogs.
type CatalogRef struct {
	LogicalName       string
	FileInsideArchive string
	CatalogIndex      int // index into Schema.Catalogs
	// FormatOverride sets the format the Reader decodes this catalog's
	// archive entry with, in place of the one it would otherwise infer;
	// empty when no override is declared.
	FormatOverride string
}

// CrossRule is a predicate over multiple catalogs' tables in a Package.
type CrossRule struct {
	Name     string
	Message  string
	Severity Severity
	Rule     *expr.Rule
}

// ArchiveFormat is a Package's declared container format.
type ArchiveFormat string

const (
	ArchiveCSV  ArchiveFormat = "CSV"
	ArchiveXLSX ArchiveFormat = "XLSX"
	ArchiveJSON ArchiveFormat = "JSON"
	ArchiveXML  ArchiveFormat = "XML"
	ArchiveZIP  ArchiveFormat = "ZIP"
)

// InsertionMethod is one of Destination's three legal insertion semantics.
type InsertionMethod string

const (
	InsertionInsert InsertionMethod = "insert"
	InsertionUpsert InsertionMethod = "upsert"
	InsertionReplace InsertionMethod = "replace"
)

// Driver is one of Destination's four supported database drivers.
type Driver string

const (
	DriverPostgres Driver = "postgresql"
	DriverMySQL    Driver = "mysql"
	DriverSQLServer Driver = "sqlserver"
	DriverOracle   Driver = "oracle"
)

// Connection is the Destination's connection block. Password may be a
// literal or a {{NAME}} secret template, resolved by the Loader before
// the Schema is returned.
type Connection struct {
	Driver   Driver
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// PreValidation is an HTTP hook invoked by the Sink before commit.
type PreValidation struct {
	Endpoint string
	Method   string
	Payload  []byte // opaque; forwarded verbatim (spec.md §9 Open Question c)
}

// Destination is where a Package's validated rows land.
type Destination struct {
	Enabled         bool
	Connection      Connection
	TargetTable     string
	InsertionMethod InsertionMethod
	PreValidation   *PreValidation
}

// Package is a bundle of catalogs validated together, plus where clean
// data goes.
type Package struct {
	Name        string
	Description string
	Mandatory   bool
	FileFormat  ArchiveFormat
	// FilePattern is the filename pattern for the package's own archive
	// (or single-file submission), with {sender_id}/{date} placeholders.
	FilePattern string
	Catalogs    []CatalogRef
	CrossRules  []CrossRule
	Destination Destination
}

// ResponsiblePerson is the human accountable for a Sender's submissions.
type ResponsiblePerson struct {
	Name  string
	Email string
	Phone string
}

// SubmissionFrequency is a Sender's expected cadence and deadline.
type SubmissionFrequency struct {
	Cadence  string // daily, weekly, monthly
	Deadline string // "HH:MM" local time
}

// ChannelConfig holds the per-method credentials the Gate checks against.
type ChannelConfig struct {
	APIKey         string   // method=api
	AllowedSenders []string // method=email
	SourceHost     string   // method=sftp
}

// Sender is an authorized submitter.
type Sender struct {
	SenderID            string
	Name                string
	Responsible         ResponsiblePerson
	AllowedMethods      []string
	Configurations      map[string]ChannelConfig
	SubmissionFrequency SubmissionFrequency
	Packages            []string // package names this sender may submit
}

// Schema is the fully resolved, read-only result of the Loader. Many
// submissions may evaluate concurrently against one Schema instance.
type Schema struct {
	Catalogs []Catalog
	Packages []Package
	Senders  []Sender

	catalogByName map[string]int
	packageByName map[string]int
	senderByID    map[string]int
}

// CatalogByName looks up a catalog by its unique name.
func (s *Schema) CatalogByName(name string) (*Catalog, bool) {
	i, ok := s.catalogByName[name]
	if !ok {
		return nil, false
	}
	return &s.Catalogs[i], true
}

// PackageByName looks up a package by its unique name.
func (s *Schema) PackageByName(name string) (*Package, bool) {
	i, ok := s.packageByName[name]
	if !ok {
		return nil, false
	}
	return &s.Packages[i], true
}

// SenderByID looks up a sender by its unique sender_id. A Schema that was
// not built by Load has no index, so Senders is scanned instead.
func (s *Schema) SenderByID(id string) (*Sender, bool) {
	if s.senderByID == nil {
		for i := range s.Senders {
			if s.Senders[i].SenderID == id {
				return &s.Senders[i], true
			}
		}
		return nil, false
	}
	i, ok := s.senderByID[id]
	if !ok {
		return nil, false
	}
	return &s.Senders[i], true
}

func (s *Schema) index() {
	s.catalogByName = make(map[string]int, len(s.Catalogs))
	for i, c := range s.Catalogs {
		s.catalogByName[c.Name] = i
	}
	s.packageByName = make(map[string]int, len(s.Packages))
	for i, p := range s.Packages {
		s.packageByName[p.Name] = i
	}
	s.senderByID = make(map[string]int, len(s.Senders))
	for i, sd := range s.Senders {
		s.senderByID[sd.SenderID] = i
	}
}
