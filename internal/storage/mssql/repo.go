package mssql

import (
	"context"
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"
	_ "github.com/microsoft/go-mssqldb"

	"dmd/internal/storage"
	"dmd/internal/storage/sqldb"
)

// SQL Server notes:
//   - go-mssqldb registers the "sqlserver" driver, which accepts the @p1..@pN
//     ordinal placeholders go-sqlbuilder renders for the SQLServer flavor.
//   - SQL Server has no deferrable constraints. The catalogue load deletes a
//     parent kind while its children still hold last release's rows, so
//     REFERENCES clauses are not emitted here; the load order is still checked
//     by the loader itself.
//   - There is no CREATE TABLE IF NOT EXISTS; DDL is wrapped in an OBJECT_ID guard.
var dialect = sqldb.Dialect{
	Driver:       "sqlserver",
	Flavor:       sqlbuilder.SQLServer,
	CreateSQL:    buildCreateSQL,
	MaxOpenConns: 16,
}

func init() {
	storage.Register("mssql", New)
}

// New opens a SQL Server store. cfg.DSN is a sqlserver:// URL.
func New(ctx context.Context, cfg storage.Config) (storage.Store, error) {
	return sqldb.Open(ctx, dialect, cfg.DSN)
}

// mssqlIdent returns a bracket-quoted identifier, escaping ']' as ']]'.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// mssqlTableIdent returns a bracket-quoted identifier for schema-qualified names.
//
// Example:
//
//	"dbo.dmd_vmp" -> [dbo].[dmd_vmp]
func mssqlTableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = mssqlIdent(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}

// mssqlType maps logical types. Text used as a key must be indexable, so key
// columns get a bounded NVARCHAR.
func mssqlType(t string, key bool) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case storage.TypeText:
		if key {
			return "NVARCHAR(450)"
		}
		return "NVARCHAR(MAX)"
	case storage.TypeBigint:
		return "BIGINT"
	case storage.TypeBool:
		return "BIT"
	case storage.TypeDate:
		return "DATE"
	case storage.TypeNumeric:
		return "DECIMAL(28,10)"
	case storage.TypeTimestamp:
		return "DATETIMEOFFSET"
	default:
		return t
	}
}

// wrapCreateIfMissing wraps a CREATE TABLE statement in an OBJECT_ID guard.
func wrapCreateIfMissing(tableName string, innerDefs string) string {
	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL BEGIN CREATE TABLE %s (%s); END;",
		tableName,
		mssqlTableIdent(tableName),
		innerDefs,
	)
}

// mssqlColumnDef builds a SQL Server column definition from storage.ColumnSpec.
func mssqlColumnDef(c storage.ColumnSpec) (string, error) {
	if strings.TrimSpace(c.Name) == "" {
		return "", fmt.Errorf("mssql: column name is empty")
	}
	if strings.TrimSpace(c.Type) == "" {
		return "", fmt.Errorf("mssql: column %s type is empty", c.Name)
	}

	var b strings.Builder
	b.WriteString(mssqlIdent(c.Name))
	b.WriteString(" ")
	b.WriteString(mssqlType(c.Type, false))
	if !c.IsNullable() {
		b.WriteString(" NOT NULL")
	}
	return b.String(), nil
}

func buildCreateSQL(t storage.TableSpec) ([]string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return nil, fmt.Errorf("mssql: table name is empty")
	}

	defs := make([]string, 0, len(t.Columns)+1)
	if t.PrimaryKey != nil {
		if strings.TrimSpace(t.PrimaryKey.Name) == "" {
			return nil, fmt.Errorf("mssql: primary key name is empty")
		}
		defs = append(defs, fmt.Sprintf("%s %s PRIMARY KEY", mssqlIdent(t.PrimaryKey.Name), mssqlType(t.PrimaryKey.Type, true)))
	}
	for _, c := range t.Columns {
		def, err := mssqlColumnDef(c)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t.Name, err)
		}
		defs = append(defs, def)
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("mssql: table %s has no columns", t.Name)
	}
	return []string{wrapCreateIfMissing(t.Name, strings.Join(defs, ", "))}, nil
}
