// Package resource loads the CLI-side request documents sagectl's
// subcommands accept: a submission descriptor (sender, package, channel,
// and a path to the blob to submit). Plain YAML files, parsed through
// sigs.k8s.io/yaml the way the teacher's cli/loader package reads its own
// resource definitions.
package resource

import (
	"fmt"
	"os"
	"time"

	"sigs.k8s.io/yaml"
)

// SubmissionRequest describes one submission as a document instead of
// individual flags. `sagectl process-package` and `validate-sender` take
// positional arguments and flags and do not read this document.
type SubmissionRequest struct {
	SenderID    string `yaml:"senderID"`
	PackageName string `yaml:"packageName"`
	Channel     string `yaml:"channel"`
	BlobPath    string `yaml:"blobPath"`

	// Channel-specific identity, mirrored from gate.Submission.
	APIKey         string `yaml:"apiKey,omitempty"`
	EnvelopeSender string `yaml:"envelopeSender,omitempty"`
	SourceHost     string `yaml:"sourceHost,omitempty"`
}

// LoadSubmissionRequest reads and validates a SubmissionRequest document.
func LoadSubmissionRequest(path string) (*SubmissionRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading submission request: %w", err)
	}

	var req SubmissionRequest
	if err := yaml.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("parsing submission request: %w", err)
	}

	if req.SenderID == "" {
		return nil, fmt.Errorf("senderID is required")
	}
	if req.PackageName == "" {
		return nil, fmt.Errorf("packageName is required")
	}
	if req.Channel == "" {
		return nil, fmt.Errorf("channel is required")
	}
	if req.BlobPath == "" {
		return nil, fmt.Errorf("blobPath is required")
	}

	return &req, nil
}

// LoadBlob reads the raw submission bytes BlobPath points at.
func (r *SubmissionRequest) LoadBlob() ([]byte, error) {
	return os.ReadFile(r.BlobPath)
}

// ReceivedAt stamps the request with the current wall-clock time.
func (r *SubmissionRequest) ReceivedAt() time.Time {
	return time.Now()
}
