package schema

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vchigne/sage/internal/diagnostic"
)

type memLoader map[string][]byte

func (m memLoader) ReadFile(path string) ([]byte, error) {
	b, ok := m[path]
	if !ok {
		return nil, fmt.Errorf("memLoader: no such file %q", path)
	}
	return b, nil
}

const validCatalogYAML = `
catalog:
  name: customers
  fields:
    - name: customer_id
      type: text
      required: true
      unique: true
    - name: balance
      type: number
      decimals: 2
`

const validPackageYAML = `
package:
  name: customer_package
  file_format:
    type: CSV
    pattern: "{sender_id}_customers_{date}.csv"
  catalogs:
    - logical_name: customers
      path: catalog.yaml
  destination:
    enabled: false
`

const validSenderYAML = `
senders:
  senders_list:
    - sender_id: acme
      allowed_methods: [api]
      configurations:
        api:
          api_key: secret123
      submission_frequency:
        cadence: daily
        deadline: "23:59"
      packages: [customer_package]
`

func TestLoadResolvesCatalogPackageSender(t *testing.T) {
	fs := memLoader{
		"catalog.yaml": []byte(validCatalogYAML),
		"package.yaml": []byte(validPackageYAML),
		"sender.yaml":  []byte(validSenderYAML),
	}
	s, diag := Load(fs, []string{"catalog.yaml", "package.yaml", "sender.yaml"})
	require.False(t, diag.HasErrors())
	require.NotNil(t, s)

	pkg, ok := s.PackageByName("customer_package")
	require.True(t, ok)
	require.Len(t, pkg.Catalogs, 1)
	require.Equal(t, "customers", pkg.Catalogs[0].LogicalName)

	cat, ok := s.CatalogByName("customers")
	require.True(t, ok)
	require.Len(t, cat.Fields, 2)

	sender, ok := s.SenderByID("acme")
	require.True(t, ok)
	require.Equal(t, []string{"customer_package"}, sender.Packages)
}

func TestLoadRejectsUnknownFieldType(t *testing.T) {
	fs := memLoader{
		"catalog.yaml": []byte(`
catalog:
  name: bad
  fields:
    - name: f1
      type: bogus
`),
	}
	s, diag := Load(fs, []string{"catalog.yaml"})
	require.Nil(t, s)
	require.True(t, diag.HasErrors())
}

func TestLoadRejectsEnumWithoutAllowedValues(t *testing.T) {
	fs := memLoader{
		"catalog.yaml": []byte(`
catalog:
  name: bad
  fields:
    - name: status
      type: enum
`),
	}
	_, diag := Load(fs, []string{"catalog.yaml"})
	require.True(t, diag.HasErrors())
}

func TestLoadRejectsCrossRuleReferencingUndeclaredCatalog(t *testing.T) {
	fs := memLoader{
		"catalog.yaml": []byte(validCatalogYAML),
		"package.yaml": []byte(`
package:
  name: bad_package
  file_format:
    type: CSV
  catalogs:
    - logical_name: customers
      path: catalog.yaml
  cross_rules:
    - name: impossible
      validation_expression: "df['nope']['x'] > 0"
  destination:
    enabled: false
`),
	}
	_, diag := Load(fs, []string{"catalog.yaml", "package.yaml"})
	require.True(t, diag.HasErrors())
}

func TestLoadRejectsUnreadableFile(t *testing.T) {
	fs := memLoader{}
	s, diag := Load(fs, []string{"missing.yaml"})
	require.Nil(t, s)
	require.True(t, diag.HasErrors())
}

func TestLoadRejectsEnabledDestinationWithoutTargetTable(t *testing.T) {
	fs := memLoader{
		"catalog.yaml": []byte(validCatalogYAML),
		"package.yaml": []byte(`
package:
  name: customer_package
  file_format:
    type: CSV
  catalogs:
    - logical_name: customers
      path: catalog.yaml
  destination:
    enabled: true
    connection:
      driver: postgresql
    insertion_method: insert
`),
	}
	_, diag := Load(fs, []string{"catalog.yaml", "package.yaml"})
	require.True(t, diag.HasErrors())
}

func TestExpandFilePattern(t *testing.T) {
	re := ExpandFilePattern("{sender_id}_customers_{date}.csv", "acme")
	require.True(t, re.MatchString("acme_customers_20260806.csv"))
	require.False(t, re.MatchString("other_customers_20260806.csv"))
	require.False(t, re.MatchString("acme_customers_notadate.csv"))
}

func TestLoadEmitsInfoFindingForAmbiguousBitwiseRule(t *testing.T) {
	fs := memLoader{
		"catalog.yaml": []byte(`
catalog:
  name: customers
  fields:
    - name: customer_id
      type: text
      required: true
    - name: balance
      type: number
      rules:
        - validation_expression: "df['customer_id'] & df['balance']"
          message: "ambiguous on purpose"
`),
	}
	s, diag := Load(fs, []string{"catalog.yaml"})
	require.NotNil(t, s)
	require.False(t, diag.HasErrors())

	var sawInfo bool
	for _, f := range diag.Findings {
		if f.Severity == diagnostic.SeverityInfo && f.Scope == diagnostic.ScopeFile {
			sawInfo = true
		}
	}
	require.True(t, sawInfo)
}

func TestReferencedLogicalNames(t *testing.T) {
	names := ReferencedLogicalNames(`df['customers']['id'] == df["orders"]["customer_id"]`)
	require.ElementsMatch(t, []string{"customers", "orders"}, names)
}
