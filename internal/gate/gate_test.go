package gate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vchigne/sage/internal/schema"
)

func buildSchema(t *testing.T) *schema.Schema {
	t.Helper()
	sch := &schema.Schema{
		Senders: []schema.Sender{
			{
				SenderID:       "acme",
				AllowedMethods: []string{"api"},
				Configurations: map[string]schema.ChannelConfig{
					"api": {APIKey: "secret123"},
				},
				SubmissionFrequency: schema.SubmissionFrequency{Cadence: "daily", Deadline: "23:59"},
				Packages:            []string{"customer_package"},
			},
		},
	}
	return sch
}

func TestCheckAcceptsValidSubmission(t *testing.T) {
	sch := buildSchema(t)
	sub := Submission{SenderID: "acme", PackageName: "customer_package", Channel: "api", APIKey: "secret123", ReceivedAt: time.Date(2026, 8, 6, 10, 0, 0, 0, time.Local)}
	diag := Check(sch, sub)
	require.False(t, diag.HasErrors())
	require.Empty(t, diag.Findings)
}

func TestCheckRejectsUnknownSender(t *testing.T) {
	sch := buildSchema(t)
	sub := Submission{SenderID: "nobody", PackageName: "customer_package", Channel: "api"}
	diag := Check(sch, sub)
	require.True(t, diag.HasErrors())
}

func TestCheckRejectsUnauthorizedPackage(t *testing.T) {
	sch := buildSchema(t)
	sub := Submission{SenderID: "acme", PackageName: "other_package", Channel: "api", APIKey: "secret123"}
	diag := Check(sch, sub)
	require.True(t, diag.HasErrors())
}

func TestCheckRejectsDisallowedChannel(t *testing.T) {
	sch := buildSchema(t)
	sub := Submission{SenderID: "acme", PackageName: "customer_package", Channel: "sftp"}
	diag := Check(sch, sub)
	require.True(t, diag.HasErrors())
}

func TestCheckRejectsBadAPIKey(t *testing.T) {
	sch := buildSchema(t)
	sub := Submission{SenderID: "acme", PackageName: "customer_package", Channel: "api", APIKey: "wrong"}
	diag := Check(sch, sub)
	require.True(t, diag.HasErrors())
}

func TestCheckFlagsLateSubmissionAsWarningNotError(t *testing.T) {
	sch := buildSchema(t)
	sub := Submission{
		SenderID: "acme", PackageName: "customer_package", Channel: "api", APIKey: "secret123",
		ReceivedAt: time.Date(2026, 8, 6, 23, 59, 1, 0, time.Local).Add(time.Minute),
	}
	diag := Check(sch, sub)
	require.False(t, diag.HasErrors())
	require.Len(t, diag.Findings, 1)
	require.Equal(t, "WARNING", string(diag.Findings[0].Severity))
}
