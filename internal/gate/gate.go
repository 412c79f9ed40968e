// Package gate is the Sender Gate (spec.md §4.6): before the Reader runs,
// it decides whether a Submission may proceed at all.
package gate

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vchigne/sage/internal/diagnostic"
	"github.com/vchigne/sage/internal/schema"
)

// Submission is the minimal identity of an incoming request the Gate
// checks against the sender roster, ahead of the Reader ever touching the
// blob.
type Submission struct {
	SenderID    string
	PackageName string
	Channel     string // one of sftp, email, api, filesystem, direct_upload
	ReceivedAt  time.Time

	// Channel-specific credentials, checked in step 5 when present.
	APIKey         string // channel=api
	EnvelopeSender string // channel=email
	SourceHost     string // channel=sftp
}

// Check runs the five authorization checks in order (spec.md §4.6). Any
// failure in steps 1-3 or 5 produces a single terminal ERROR Finding and
// stops immediately (the Reader must not run). Step 4's lateness, by
// contrast, is a non-terminal WARNING: processing continues.
func Check(sch *schema.Schema, sub Submission) diagnostic.Diagnostic {
	var diag diagnostic.Diagnostic

	sender, ok := sch.SenderByID(sub.SenderID)
	if !ok {
		diag.Addf(diagnostic.SeverityError, diagnostic.ScopeAuthorization, diagnostic.Locator{}, fmt.Sprintf("unknown sender_id '%s'", sub.SenderID))
		return diag
	}

	if !contains(sender.Packages, sub.PackageName) {
		diag.Addf(diagnostic.SeverityError, diagnostic.ScopeAuthorization, diagnostic.Locator{}, fmt.Sprintf("sender '%s' is not authorized to submit package '%s'", sub.SenderID, sub.PackageName))
		return diag
	}

	if !contains(sender.AllowedMethods, sub.Channel) {
		diag.Addf(diagnostic.SeverityError, diagnostic.ScopeAuthorization, diagnostic.Locator{}, fmt.Sprintf("channel '%s' is not in sender '%s''s allowed_methods", sub.Channel, sub.SenderID))
		return diag
	}

	if late, reason := isLate(sender.SubmissionFrequency, sub.ReceivedAt); late {
		diag.Addf(diagnostic.SeverityWarning, diagnostic.ScopeAuthorization, diagnostic.Locator{}, reason)
	}

	if cfg, ok := sender.Configurations[sub.Channel]; ok {
		if err := checkChannelCredentials(sub.Channel, cfg, sub); err != nil {
			diag.Addf(diagnostic.SeverityError, diagnostic.ScopeAuthorization, diagnostic.Locator{}, err.Error())
			return diag
		}
	}

	return diag
}

func checkChannelCredentials(channel string, cfg schema.ChannelConfig, sub Submission) error {
	switch channel {
	case "api":
		if cfg.APIKey != "" && cfg.APIKey != sub.APIKey {
			return fmt.Errorf("invalid api_key for channel 'api'")
		}
	case "email":
		if len(cfg.AllowedSenders) > 0 && !contains(cfg.AllowedSenders, sub.EnvelopeSender) {
			return fmt.Errorf("envelope sender '%s' is not in allowed_senders", sub.EnvelopeSender)
		}
	case "sftp":
		if cfg.SourceHost != "" && cfg.SourceHost != sub.SourceHost {
			return fmt.Errorf("source host '%s' does not match the configured sftp source", sub.SourceHost)
		}
	}
	return nil
}

// isLate reports whether receivedAt falls after freq's deadline time on
// receivedAt's own local calendar day, grounded on original_source's
// per-cadence deadline comparison (sender_processor.py). Daily, weekly and
// monthly cadences all use that same-day comparison; no weekday or day of
// month is taken into account.
func isLate(freq schema.SubmissionFrequency, receivedAt time.Time) (bool, string) {
	if freq.Deadline == "" {
		return false, ""
	}
	hour, minute, err := parseHHMM(freq.Deadline)
	if err != nil {
		return false, ""
	}

	local := receivedAt.Local()
	deadline := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, local.Location())

	switch strings.ToLower(freq.Cadence) {
	case "daily", "weekly", "monthly", "":
		if local.After(deadline) {
			return true, fmt.Sprintf("submission received at %s is after the %s deadline of %s", local.Format(time.Kitchen), freq.Cadence, freq.Deadline)
		}
	}
	return false, ""
}

func parseHHMM(s string) (int, int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid deadline %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, err
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return h, m, nil
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
