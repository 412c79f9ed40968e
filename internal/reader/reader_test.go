package reader

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vchigne/sage/internal/diagnostic"
	"github.com/vchigne/sage/internal/schema"
)

func customersCatalog() schema.Catalog {
	return schema.Catalog{
		Name: "customers",
		Fields: []schema.FieldSpec{
			{Name: "customer_id", Type: schema.FieldText, Required: true},
			{Name: "balance", Type: schema.FieldNumber},
		},
		FileFormat: "{sender_id}_customers_{date}.csv",
	}
}

func TestReadPackageSingleCSV(t *testing.T) {
	sch := &schema.Schema{Catalogs: []schema.Catalog{customersCatalog()}}
	pkg := &schema.Package{
		Name:       "customer_package",
		FileFormat: schema.ArchiveCSV,
		Catalogs:   []schema.CatalogRef{{LogicalName: "customers", CatalogIndex: 0}},
	}

	blob := []byte("customer_id,balance\nc1,100.50\nc2,\n")
	res := ReadPackage(pkg, sch, blob, "acme", "")

	require.False(t, res.Diag.HasErrors())
	tbl, ok := res.Tables["customers"]
	require.True(t, ok)
	require.Equal(t, 2, tbl.RowCount())
	v, _ := tbl.Cell(1, "customer_id")
	require.Equal(t, "c1", v)
	v, _ = tbl.Cell(2, "balance")
	require.Nil(t, v)
}

func TestReadPackageRejectsWrongCatalogCountForNonZIP(t *testing.T) {
	sch := &schema.Schema{Catalogs: []schema.Catalog{customersCatalog(), customersCatalog()}}
	pkg := &schema.Package{
		Name:       "bad_package",
		FileFormat: schema.ArchiveCSV,
		Catalogs: []schema.CatalogRef{
			{LogicalName: "a", CatalogIndex: 0},
			{LogicalName: "b", CatalogIndex: 1},
		},
	}
	res := ReadPackage(pkg, sch, []byte("x\n1\n"), "acme", "")
	require.True(t, res.Diag.HasErrors())
}

func TestReadPackageZIPMatchesByFileInsideArchive(t *testing.T) {
	sch := &schema.Schema{Catalogs: []schema.Catalog{customersCatalog()}}
	pkg := &schema.Package{
		Name:       "zip_package",
		FileFormat: schema.ArchiveZIP,
		Catalogs:   []schema.CatalogRef{{LogicalName: "customers", CatalogIndex: 0, FileInsideArchive: "customers.csv"}},
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("customers.csv")
	require.NoError(t, err)
	_, err = w.Write([]byte("customer_id,balance\nc1,10\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	res := ReadPackage(pkg, sch, buf.Bytes(), "acme", "")
	require.False(t, res.Diag.HasErrors())
	tbl, ok := res.Tables["customers"]
	require.True(t, ok)
	require.Equal(t, 1, tbl.RowCount())
}

func TestReadPackageZIPFlagsUnmatchedEntry(t *testing.T) {
	sch := &schema.Schema{Catalogs: []schema.Catalog{customersCatalog()}}
	pkg := &schema.Package{
		Name:       "zip_package",
		FileFormat: schema.ArchiveZIP,
		Catalogs:   []schema.CatalogRef{{LogicalName: "customers", CatalogIndex: 0, FileInsideArchive: "customers.csv"}},
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("unexpected.csv")
	require.NoError(t, err)
	_, err = w.Write([]byte("a,b\n1,2\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	res := ReadPackage(pkg, sch, buf.Bytes(), "acme", "")
	require.True(t, res.Diag.HasErrors())
}

func TestReadPackageFlagsUnrecognizedColumnAsInfo(t *testing.T) {
	sch := &schema.Schema{Catalogs: []schema.Catalog{customersCatalog()}}
	pkg := &schema.Package{
		Name:       "customer_package",
		FileFormat: schema.ArchiveCSV,
		Catalogs:   []schema.CatalogRef{{LogicalName: "customers", CatalogIndex: 0}},
	}
	blob := []byte("customer_id,balance,extra\nc1,1,surprise\n")
	res := ReadPackage(pkg, sch, blob, "acme", "")
	require.False(t, res.Diag.HasErrors())

	var sawInfo bool
	for _, f := range res.Diag.Findings {
		if f.Severity == "INFO" {
			sawInfo = true
		}
	}
	require.True(t, sawInfo)
}

func TestReadPackageFlagsFilenamePatternMismatch(t *testing.T) {
	sch := &schema.Schema{Catalogs: []schema.Catalog{customersCatalog()}}
	pkg := &schema.Package{
		Name:        "customer_package",
		FileFormat:  schema.ArchiveCSV,
		FilePattern: "{sender_id}_customers_{date}.csv",
		Catalogs:    []schema.CatalogRef{{LogicalName: "customers", CatalogIndex: 0}},
	}

	blob := []byte("customer_id,balance\nc1,100.50\n")
	res := ReadPackage(pkg, sch, blob, "acme", "wrong_name.csv")

	require.True(t, res.Diag.HasErrors())
	var sawScopeFile bool
	for _, f := range res.Diag.Findings {
		if f.Severity == diagnostic.SeverityError && f.Scope == diagnostic.ScopeFile {
			sawScopeFile = true
		}
	}
	require.True(t, sawScopeFile)
}

func TestReadPackageAcceptsMatchingFilenamePattern(t *testing.T) {
	sch := &schema.Schema{Catalogs: []schema.Catalog{customersCatalog()}}
	pkg := &schema.Package{
		Name:        "customer_package",
		FileFormat:  schema.ArchiveCSV,
		FilePattern: "{sender_id}_customers_{date}.csv",
		Catalogs:    []schema.CatalogRef{{LogicalName: "customers", CatalogIndex: 0}},
	}

	blob := []byte("customer_id,balance\nc1,100.50\n")
	res := ReadPackage(pkg, sch, blob, "acme", "acme_customers_20260806.csv")

	require.False(t, res.Diag.HasErrors())
}

func TestMatchFilename(t *testing.T) {
	require.True(t, MatchFilename("{sender_id}_customers_{date}.csv", "acme_customers_20260806.csv", "acme"))
	require.False(t, MatchFilename("{sender_id}_customers_{date}.csv", "other_customers_20260806.csv", "acme"))
}
