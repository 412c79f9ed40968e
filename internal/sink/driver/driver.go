// Package driver adapts Destination.Connection into a database/sql
// connection plus the vendor-specific SQL an upsert/replace needs, the
// same Base-struct-with-vendor-overrides shape the JDBC connector package
// in the examples pack uses for its own multi-vendor database access.
package driver

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/godror/godror"
	_ "github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"

	"github.com/vchigne/sage/internal/schema"
)

// PoolConfig carries the connection-pool sizing from internal/config's
// SinkConfig, applied uniformly regardless of vendor.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Base is the generic connector: driver name, DSN, and the open *sql.DB.
// Vendor-specific quirks (placeholder style, upsert syntax, identifier
// quoting) are resolved through the Vendor struct below rather than by
// subclassing, since database/sql has no connector inheritance story.
type Base struct {
	DriverName string
	DB         *sql.DB
	Vendor     Vendor
}

// Open dials conn and configures the pool per cfg.
func Open(conn schema.Connection, pool PoolConfig) (*Base, error) {
	v, ok := vendors[conn.Driver]
	if !ok {
		return nil, fmt.Errorf("driver: unsupported connection driver %q", conn.Driver)
	}
	dsn := v.DSN(conn)
	db, err := sql.Open(v.SQLDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("driver: opening %s connection: %w", conn.Driver, err)
	}
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	return &Base{DriverName: v.SQLDriverName, DB: db, Vendor: v}, nil
}

func (b *Base) Close() error { return b.DB.Close() }

// Vendor captures the SQL dialect differences the Sink needs: placeholder
// style, identifier quoting, and the statement shapes that differ
// meaningfully across engines — upsert and scratch-table creation.
type Vendor struct {
	Name          schema.Driver
	SQLDriverName string
	DSN           func(schema.Connection) string
	Placeholder   func(argPos int) string
	QuoteIdent    func(string) string
	// UpsertStatement builds a full INSERT ... ON CONFLICT/DUPLICATE/MERGE
	// statement for one row, given the target table, every column name,
	// and the subset that forms the conflict target (the catalog's
	// declared unique field(s), per spec.md §4.5).
	UpsertStatement func(table string, columns, conflictCols []string) string
	// CreateScratchTable builds the DDL that creates an empty table sharing
	// target's column shape, used to stage one submission's rows ahead of
	// pre_validation (spec.md §4.5/§5).
	CreateScratchTable func(scratchTable, targetTable string) string
}

var vendors = map[schema.Driver]Vendor{
	schema.DriverPostgres: {
		Name: schema.DriverPostgres, SQLDriverName: "postgres",
		DSN: func(c schema.Connection) string {
			return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable", c.User, c.Password, c.Host, c.Port, c.Database)
		},
		Placeholder: func(i int) string { return fmt.Sprintf("$%d", i) },
		QuoteIdent:  func(s string) string { return `"` + s + `"` },
		UpsertStatement: func(table string, columns, conflictCols []string) string {
			return buildUpsert(table, columns, conflictCols, upsertDialectPostgres, func(i int) string { return fmt.Sprintf("$%d", i) })
		},
		CreateScratchTable: createScratchTableAs,
	},
	schema.DriverMySQL: {
		Name: schema.DriverMySQL, SQLDriverName: "mysql",
		DSN: func(c schema.Connection) string {
			return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", c.User, c.Password, c.Host, c.Port, c.Database)
		},
		Placeholder: func(int) string { return "?" },
		QuoteIdent:  func(s string) string { return "`" + s + "`" },
		UpsertStatement: func(table string, columns, conflictCols []string) string {
			return buildUpsert(table, columns, conflictCols, upsertDialectMySQL, func(int) string { return "?" })
		},
		CreateScratchTable: createScratchTableAs,
	},
	schema.DriverSQLServer: {
		Name: schema.DriverSQLServer, SQLDriverName: "sqlserver",
		DSN: func(c schema.Connection) string {
			return fmt.Sprintf("sqlserver://%s:%s@%s:%d?database=%s", c.User, c.Password, c.Host, c.Port, c.Database)
		},
		Placeholder: func(i int) string { return fmt.Sprintf("@p%d", i) },
		QuoteIdent:  func(s string) string { return "[" + s + "]" },
		UpsertStatement: func(table string, columns, conflictCols []string) string {
			return buildUpsert(table, columns, conflictCols, upsertDialectMerge, func(i int) string { return fmt.Sprintf("@p%d", i) })
		},
		CreateScratchTable: func(scratchTable, targetTable string) string {
			return fmt.Sprintf("SELECT * INTO %s FROM %s WHERE 1 = 0", scratchTable, targetTable)
		},
	},
	schema.DriverOracle: {
		Name: schema.DriverOracle, SQLDriverName: "godror",
		DSN: func(c schema.Connection) string {
			return fmt.Sprintf(`user="%s" password="%s" connectString="%s:%d/%s"`, c.User, c.Password, c.Host, c.Port, c.Database)
		},
		Placeholder: func(i int) string { return fmt.Sprintf(":%d", i) },
		QuoteIdent:  func(s string) string { return `"` + strings.ToUpper(s) + `"` },
		UpsertStatement: func(table string, columns, conflictCols []string) string {
			return buildUpsert(table, columns, conflictCols, upsertDialectMerge, func(i int) string { return fmt.Sprintf(":%d", i) })
		},
		CreateScratchTable: createScratchTableAs,
	},
}

// createScratchTableAs builds the CREATE TABLE ... AS SELECT form of an
// empty-shape scratch table, valid on Postgres, MySQL, and Oracle.
func createScratchTableAs(scratchTable, targetTable string) string {
	return fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM %s WHERE 1 = 0", scratchTable, targetTable)
}

type upsertDialect int

const (
	upsertDialectPostgres upsertDialect = iota
	upsertDialectMySQL
	upsertDialectMerge // SQL Server / Oracle MERGE
)

func buildUpsert(table string, columns, conflictCols []string, dialect upsertDialect, placeholder func(int) string) string {
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = placeholder(i + 1)
	}
	insertCols := strings.Join(columns, ", ")
	insertVals := strings.Join(placeholders, ", ")

	switch dialect {
	case upsertDialectPostgres:
		sets := make([]string, 0, len(columns))
		for _, c := range columns {
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
		}
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
			table, insertCols, insertVals, strings.Join(conflictCols, ", "), strings.Join(sets, ", "))
	case upsertDialectMySQL:
		sets := make([]string, 0, len(columns))
		for _, c := range columns {
			sets = append(sets, fmt.Sprintf("%s = VALUES(%s)", c, c))
		}
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s",
			table, insertCols, insertVals, strings.Join(sets, ", "))
	default: // MERGE, generic shape shared by SQL Server and Oracle
		sourceCols := make([]string, len(columns))
		for i, c := range columns {
			sourceCols[i] = fmt.Sprintf("%s AS %s", placeholder(i+1), c)
		}
		var onClauses []string
		for _, c := range conflictCols {
			onClauses = append(onClauses, fmt.Sprintf("target.%s = source.%s", c, c))
		}
		var setClauses []string
		for _, c := range columns {
			setClauses = append(setClauses, fmt.Sprintf("target.%s = source.%s", c, c))
		}
		sourceVals := make([]string, len(columns))
		for i, c := range columns {
			sourceVals[i] = "source." + c
		}
		return fmt.Sprintf(
			"MERGE INTO %s AS target USING (SELECT %s) AS source ON (%s) "+
				"WHEN MATCHED THEN UPDATE SET %s WHEN NOT MATCHED THEN INSERT (%s) VALUES (%s)",
			table, strings.Join(sourceCols, ", "), strings.Join(onClauses, " AND "), strings.Join(setClauses, ", "), insertCols, strings.Join(sourceVals, ", "))
	}
}
