// Package duckdb registers a DuckDB store, used as the columnar analytics
// target for the flattened <kind>_full tables and raw table copies.
package duckdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"
	_ "github.com/marcboeker/go-duckdb/v2"

	"dmd/internal/storage"
	"dmd/internal/storage/sqldb"
)

// DuckDB accepts $n positional parameters, so the PostgreSQL flavor renders
// statements it can run unchanged.
var dialect = sqldb.Dialect{
	Driver:       "duckdb",
	Flavor:       sqlbuilder.PostgreSQL,
	CreateSQL:    buildCreateSQL,
	MaxOpenConns: 1,
}

func init() {
	storage.Register("duckdb", New)
}

// New opens a DuckDB database file. An empty DSN opens an in-memory database.
func New(ctx context.Context, cfg storage.Config) (storage.Store, error) {
	return sqldb.Open(ctx, dialect, cfg.DSN)
}

func duckIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func duckType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case storage.TypeText:
		return "VARCHAR"
	case storage.TypeBigint:
		return "BIGINT"
	case storage.TypeBool:
		return "BOOLEAN"
	case storage.TypeDate:
		return "DATE"
	case storage.TypeNumeric:
		return "DECIMAL(28,10)"
	case storage.TypeTimestamp:
		return "TIMESTAMPTZ"
	default:
		return t
	}
}

// buildCreateSQL renders analytics DDL. Analytics tables are snapshots, so
// constraints (primary keys, references) are dropped and only types are kept.
func buildCreateSQL(t storage.TableSpec) ([]string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return nil, fmt.Errorf("duckdb: table name is empty")
	}
	cols := make([]string, 0, len(t.Columns)+1)
	if t.PrimaryKey != nil {
		cols = append(cols, duckIdent(t.PrimaryKey.Name)+" "+duckType(t.PrimaryKey.Type))
	}
	for _, c := range t.Columns {
		if c.Name == "" || c.Type == "" {
			return nil, fmt.Errorf("duckdb: %s: column name/type must be set", t.Name)
		}
		cols = append(cols, duckIdent(c.Name)+" "+duckType(c.Type))
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("duckdb: %s: no columns", t.Name)
	}
	return []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", t.Name, strings.Join(cols, ", "))}, nil
}
