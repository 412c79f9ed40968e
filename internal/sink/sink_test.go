package sink

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vchigne/sage/internal/schema"
	"github.com/vchigne/sage/internal/sink/driver"
	"github.com/vchigne/sage/internal/table"
)

func TestApplySkipsDisabledDestination(t *testing.T) {
	pkg := &schema.Package{Name: "p", Destination: schema.Destination{Enabled: false}}
	res := Apply(context.Background(), &schema.Schema{}, pkg, map[string]*table.Table{}, driver.PoolConfig{}, nil, "sub-1")
	require.True(t, res.Skipped)
	require.False(t, res.Diag.HasErrors())
}

func TestScratchTableNameIncludesSubmissionID(t *testing.T) {
	a := scratchTableName("customers", "cust_catalog", "11111111-2222-3333-4444-555555555555")
	b := scratchTableName("customers", "cust_catalog", "66666666-7777-8888-9999-000000000000")
	require.NotEqual(t, a, b)
	require.Contains(t, a, "customers_scratch_cust_catalog_")
	require.NotContains(t, a, "-")
}

func TestScratchTableNameFallsBackWithoutSubmissionID(t *testing.T) {
	name := scratchTableName("customers", "cust_catalog", "")
	require.Equal(t, "customers_scratch_cust_catalog_nosubmission", name)
}

func TestSanitizeIdentStripsUnsafeCharacters(t *testing.T) {
	require.Equal(t, "a_b_c_123", sanitizeIdent("a-b.c/123"))
}
