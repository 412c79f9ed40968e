// Package sink is the Sink (spec.md §4.5): once a Package's Diagnostic
// carries no ERROR Finding, it stages every catalog's rows into a
// per-submission scratch table, runs the optional pre_validation HTTP hook
// against that staged state, and — only on success — transfers the rows
// into the Destination's target tables, all inside one transaction.
package sink

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vchigne/sage/internal/diagnostic"
	"github.com/vchigne/sage/internal/schema"
	"github.com/vchigne/sage/internal/sink/driver"
	"github.com/vchigne/sage/internal/table"
)

// Result is the outcome of one Apply call.
type Result struct {
	Diag         diagnostic.Diagnostic
	RowsWritten  int
	Skipped      bool // true when Destination.Enabled is false
}

// HTTPDoer is the subset of *http.Client the pre_validation hook needs;
// narrowed to an interface so tests can substitute a stub.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Apply writes pkg's catalogs to its Destination. Callers are responsible
// for only invoking Apply when diag.HasErrors() is false for the package's
// own validation pass (spec.md §4.5's precondition); Apply does not
// re-check that here.
//
// Rows are staged into a per-submission scratch table before anything
// touches the final destination table (spec.md §4.5/§5): submissionID
// (typically the caller's engine.Submission.ID) is folded into the scratch
// table's name so concurrent submissions against the same destination
// never collide. pre_validation, when declared, runs against that staged
// state inside the same transaction a non-2xx response rolls back, so the
// external check never observes rows the final transfer didn't also apply.
func Apply(ctx context.Context, sch *schema.Schema, pkg *schema.Package, tables map[string]*table.Table, pool driver.PoolConfig, httpClient HTTPDoer, submissionID string) Result {
	var res Result
	if !pkg.Destination.Enabled {
		res.Skipped = true
		return res
	}

	base, err := driver.Open(pkg.Destination.Connection, pool)
	if err != nil {
		res.Diag.Addf(diagnostic.SeverityError, diagnostic.ScopePackage, diagnostic.Locator{}, err.Error())
		return res
	}
	defer base.Close()

	tx, err := base.DB.BeginTx(ctx, nil)
	if err != nil {
		res.Diag.Addf(diagnostic.SeverityError, diagnostic.ScopePackage, diagnostic.Locator{}, fmt.Sprintf("beginning transaction: %s", err))
		return res
	}

	scratchTables := make(map[string]string, len(pkg.Catalogs))
	for _, ref := range pkg.Catalogs {
		cat := sch.Catalogs[ref.CatalogIndex]
		t, ok := tables[ref.LogicalName]
		if !ok {
			continue
		}
		scratch := scratchTableName(pkg.Destination.TargetTable, cat.Name, submissionID)
		if err := stageScratchTable(ctx, tx, base.Vendor, pkg.Destination.TargetTable, scratch, cat, t); err != nil {
			_ = tx.Rollback()
			res.Diag.Addf(diagnostic.SeverityError, diagnostic.ScopeCatalog, diagnostic.Locator{CatalogName: cat.Name}, err.Error())
			return res
		}
		scratchTables[ref.LogicalName] = scratch
	}

	if pv := pkg.Destination.PreValidation; pv != nil {
		if err := runPreValidation(ctx, pv, httpClient); err != nil {
			_ = tx.Rollback()
			res.Diag.Addf(diagnostic.SeverityError, diagnostic.ScopePackage, diagnostic.Locator{}, fmt.Sprintf("pre_validation hook failed: %s", err))
			return res
		}
	}

	written := 0
	for _, ref := range pkg.Catalogs {
		cat := sch.Catalogs[ref.CatalogIndex]
		t, ok := tables[ref.LogicalName]
		if !ok {
			continue
		}
		n, err := writeCatalog(ctx, tx, base.Vendor, pkg.Destination, cat, t)
		if err != nil {
			_ = tx.Rollback()
			res.Diag.Addf(diagnostic.SeverityError, diagnostic.ScopeCatalog, diagnostic.Locator{CatalogName: cat.Name}, err.Error())
			return res
		}
		written += n
	}

	for _, scratch := range scratchTables {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE %s", scratch)); err != nil {
			_ = tx.Rollback()
			res.Diag.Addf(diagnostic.SeverityError, diagnostic.ScopePackage, diagnostic.Locator{}, fmt.Sprintf("dropping scratch table %s: %s", scratch, err))
			return res
		}
	}

	if err := tx.Commit(); err != nil {
		res.Diag.Addf(diagnostic.SeverityError, diagnostic.ScopePackage, diagnostic.Locator{}, fmt.Sprintf("committing transaction: %s", err))
		return res
	}

	res.RowsWritten = written
	return res
}

// stageScratchTable creates cat's scratch table and copies t's rows into
// it, all within tx, so pre_validation sees exactly what this submission
// is about to apply.
func stageScratchTable(ctx context.Context, tx *sql.Tx, v driver.Vendor, targetTable, scratchTable string, cat schema.Catalog, t *table.Table) error {
	if _, err := tx.ExecContext(ctx, v.CreateScratchTable(scratchTable, targetTable)); err != nil {
		return fmt.Errorf("staging %s: creating scratch table: %w", cat.Name, err)
	}
	columns := make([]string, len(cat.Fields))
	for i, f := range cat.Fields {
		columns[i] = f.Name
	}
	if _, err := insertRows(ctx, tx, v, scratchTable, columns, t); err != nil {
		return fmt.Errorf("staging %s: %w", cat.Name, err)
	}
	return nil
}

// scratchTableName derives a collision-free scratch table name: target
// table, catalog, and submissionID (sanitized to identifier-safe
// characters), so two submissions landing on the same destination at once
// never stage into the same table (spec.md §5).
func scratchTableName(targetTable, catalogName, submissionID string) string {
	id := submissionID
	if id == "" {
		id = "nosubmission"
	}
	return fmt.Sprintf("%s_scratch_%s_%s", targetTable, sanitizeIdent(catalogName), sanitizeIdent(id))
}

func sanitizeIdent(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// writeCatalog applies one catalog's table to the destination table
// according to the package's insertion method. replace deletes the
// existing rows and reinserts within the same transaction, per spec.md
// §4.5's "the delete and the insert occur in the same transaction".
func writeCatalog(ctx context.Context, tx *sql.Tx, v driver.Vendor, dest schema.Destination, cat schema.Catalog, t *table.Table) (int, error) {
	columns := make([]string, len(cat.Fields))
	for i, f := range cat.Fields {
		columns[i] = f.Name
	}

	switch dest.InsertionMethod {
	case schema.InsertionReplace:
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", dest.TargetTable)); err != nil {
			return 0, fmt.Errorf("replace: clearing %s: %w", dest.TargetTable, err)
		}
		return insertRows(ctx, tx, v, dest.TargetTable, columns, t)

	case schema.InsertionUpsert:
		var conflictCols []string
		for _, f := range cat.Fields {
			if f.Unique {
				conflictCols = append(conflictCols, f.Name)
			}
		}
		if len(conflictCols) == 0 {
			return 0, fmt.Errorf("upsert: catalog %q declares no unique field to conflict on", cat.Name)
		}
		stmt := v.UpsertStatement(dest.TargetTable, columns, conflictCols)
		return execPerRow(ctx, tx, stmt, t)

	default: // insert
		return insertRows(ctx, tx, v, dest.TargetTable, columns, t)
	}
}

func insertRows(ctx context.Context, tx *sql.Tx, v driver.Vendor, targetTable string, columns []string, t *table.Table) (int, error) {
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = v.Placeholder(i + 1)
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", targetTable, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	return execPerRow(ctx, tx, stmt, t)
}

func execPerRow(ctx context.Context, tx *sql.Tx, stmt string, t *table.Table) (int, error) {
	written := 0
	for _, row := range t.Rows() {
		if _, err := tx.ExecContext(ctx, stmt, row...); err != nil {
			return written, fmt.Errorf("writing row %d: %w", written+1, err)
		}
		written++
	}
	return written, nil
}

// runPreValidation forwards pv's payload verbatim to its configured
// endpoint; a non-2xx response or transport error aborts the sink after
// rows are staged but before they ever reach the destination table.
func runPreValidation(ctx context.Context, pv *schema.PreValidation, client HTTPDoer) error {
	if client == nil {
		client = http.DefaultClient
	}
	method := pv.Method
	if method == "" {
		method = http.MethodPost
	}
	reqCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, pv.Endpoint, bytes.NewReader(pv.Payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", pv.Endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s returned status %d: %s", pv.Endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
