// Package engine is the Run Controller (spec.md §4.7): the public façade
// that wires Gate, Reader, Validator, and Sink into the three operations a
// caller (the CLI or the HTTP intake adapter) actually invokes.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vchigne/sage/internal/diagnostic"
	"github.com/vchigne/sage/internal/gate"
	"github.com/vchigne/sage/internal/obs/logger"
	"github.com/vchigne/sage/internal/reader"
	"github.com/vchigne/sage/internal/schema"
	"github.com/vchigne/sage/internal/sink"
	"github.com/vchigne/sage/internal/sink/driver"
	"github.com/vchigne/sage/internal/table"
	"github.com/vchigne/sage/internal/validate"
)

// Engine holds the loaded Schema and the Sink's pool defaults; one Engine
// serves any number of concurrent submissions, since Schema is read-only
// after Load.
type Engine struct {
	schema *schema.Schema
	pool   driver.PoolConfig
	doer   sink.HTTPDoer
	log    *slog.Logger
}

// Option customizes an Engine at construction.
type Option func(*Engine)

// WithHTTPDoer overrides the client used for a Destination's
// pre_validation hook, letting callers stub it out in tests.
func WithHTTPDoer(d sink.HTTPDoer) Option {
	return func(e *Engine) { e.doer = d }
}

// WithLogger attaches a logger; defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithPool overrides the Sink's default connection pool sizing.
func WithPool(p driver.PoolConfig) Option {
	return func(e *Engine) { e.pool = p }
}

// Load runs the Schema Loader (spec.md §4.1) over paths and returns an
// Engine ready to Validate/Process submissions against the result.
func Load(fsys schema.FileLoader, paths []string, opts ...Option) (*Engine, diagnostic.Diagnostic) {
	sch, diag := schema.Load(fsys, paths)
	if diag.HasErrors() {
		return nil, diag
	}
	e := &Engine{
		schema: sch,
		pool:   driver.PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetime: 5 * time.Minute},
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, diag
}

// Submission is everything the Run Controller needs to process one
// incoming blob: the Gate's identity/channel facts plus the raw bytes the
// Reader will decode.
type Submission struct {
	gate.Submission
	Blob []byte
	// Filename is the name the submission arrived under (the archive's own
	// name, or the single file's name for a non-ZIP package), checked
	// against the package's declared FilePattern by the Reader (spec.md
	// §4.3).
	Filename string
	// ID correlates one submission's log lines end to end; the caller
	// assigns it (the HTTP intake adapter mints one per request with
	// uuid.New()), empty for CLI invocations.
	ID string
}

// Outcome is the combined result of a Validate or Process call.
type Outcome struct {
	Diag        diagnostic.Diagnostic
	Tables      map[string]*table.Table
	RowsWritten int
	Skipped     bool // Sink was skipped: Destination.Enabled is false
}

// Validate runs Gate, then Reader, then Validator, without touching any
// Destination, for any caller that only wants to know whether a submission
// is clean.
func (e *Engine) Validate(ctx context.Context, sub Submission) Outcome {
	var out Outcome

	log := logger.ForSubmission(e.log, sub.SenderID, sub.PackageName, sub.ID)

	gateDiag := gate.Check(e.schema, sub.Submission)
	out.Diag.Merge(gateDiag)
	if gateDiag.HasErrors() {
		log.Warn("submission rejected by gate", "findings", len(gateDiag.Findings))
		return out
	}

	pkg, ok := e.schema.PackageByName(sub.PackageName)
	if !ok {
		out.Diag.Addf(diagnostic.SeverityError, diagnostic.ScopePackage, diagnostic.Locator{}, fmt.Sprintf("unknown package '%s'", sub.PackageName))
		return out
	}

	readRes := reader.ReadPackage(pkg, e.schema, sub.Blob, sub.SenderID, sub.Filename)
	out.Diag.Merge(readRes.Diag)
	out.Tables = readRes.Tables
	if readRes.Diag.HasErrors() {
		log.Warn("submission rejected by reader", "findings", len(readRes.Diag.Findings))
		return out
	}

	valDiag := validate.Package(e.schema, pkg, readRes.Tables)
	out.Diag.Merge(valDiag)
	log.Info("validation complete", "status", out.Diag.Status(), "findings", len(out.Diag.Findings))
	return out
}

// Process runs Validate and, when it produced no ERROR, applies the
// result to the Destination via the Sink (spec.md §4.5's precondition).
// Used by the HTTP intake adapter; sagectl does not call it.
func (e *Engine) Process(ctx context.Context, sub Submission) Outcome {
	out := e.Validate(ctx, sub)
	if out.Diag.HasErrors() {
		return out
	}

	pkg, ok := e.schema.PackageByName(sub.PackageName)
	if !ok {
		// Validate already reports this; unreachable in practice.
		return out
	}

	log := logger.ForSubmission(e.log, sub.SenderID, sub.PackageName, sub.ID)
	res := sink.Apply(ctx, e.schema, pkg, out.Tables, e.pool, e.doer, sub.ID)
	out.Diag.Merge(res.Diag)
	out.RowsWritten = res.RowsWritten
	out.Skipped = res.Skipped

	if res.Skipped {
		log.Info("sink skipped: destination disabled")
	} else if res.Diag.HasErrors() {
		log.Error("sink failed", "findings", len(res.Diag.Findings))
	} else {
		log.Info("sink applied", "rows_written", res.RowsWritten)
	}
	return out
}

// Schema exposes the loaded Schema for read-only inspection (e.g. the CLI
// listing known senders/packages).
func (e *Engine) Schema() *schema.Schema {
	return e.schema
}
