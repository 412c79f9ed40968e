package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vchigne/sage/internal/gate"
)

// memLoader is an in-memory schema.FileLoader fixture, grounded on the
// Loader's own OSFileLoader seam but backed by a map instead of disk.
type memLoader map[string][]byte

func (m memLoader) ReadFile(path string) ([]byte, error) {
	b, ok := m[path]
	if !ok {
		return nil, fmt.Errorf("memLoader: no such file %q", path)
	}
	return b, nil
}

const catalogYAML = `
catalog:
  name: customers
  fields:
    - name: customer_id
      type: text
      required: true
      unique: true
    - name: balance
      type: number
`

const packageYAML = `
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

const senderYAML = `
senders:
  senders_list:
    - sender_id: acme
      allowed_methods: [api]
      configurations:
        api: {}
      submission_frequency:
        cadence: daily
        deadline: "23:59"
      packages:
        - customer_package
`

func testEngine(t *testing.T) *Engine {
	loader := memLoader{
		"catalog.yaml": []byte(catalogYAML),
		"package.yaml": []byte(packageYAML),
		"sender.yaml":  []byte(senderYAML),
	}
	e, diag := Load(loader, []string{"catalog.yaml", "package.yaml", "sender.yaml"})
	require.False(t, diag.HasErrors(), "%+v", diag.Findings)
	require.NotNil(t, e)
	return e
}

func TestEngineValidateClean(t *testing.T) {
	e := testEngine(t)
	sub := Submission{
		Submission: gate.Submission{SenderID: "acme", PackageName: "customer_package", Channel: "api", ReceivedAt: time.Now()},
		Blob:       []byte("customer_id,balance\n1,100\n2,200\n"),
	}
	out := e.Validate(context.Background(), sub)
	require.False(t, out.Diag.HasErrors(), "%+v", out.Diag.Findings)
}

func TestEngineProcessSkipsDisabledDestination(t *testing.T) {
	e := testEngine(t)
	sub := Submission{
		Submission: gate.Submission{SenderID: "acme", PackageName: "customer_package", Channel: "api", ReceivedAt: time.Now()},
		Blob:       []byte("customer_id,balance\n1,100\n2,200\n"),
	}
	out := e.Process(context.Background(), sub)
	require.False(t, out.Diag.HasErrors(), "%+v", out.Diag.Findings)
	require.True(t, out.Skipped)
}

func TestEngineValidateRejectsUnknownSender(t *testing.T) {
	e := testEngine(t)
	sub := Submission{
		Submission: gate.Submission{SenderID: "ghost", PackageName: "customer_package", Channel: "api", ReceivedAt: time.Now()},
	}
	out := e.Validate(context.Background(), sub)
	require.True(t, out.Diag.HasErrors())
}
