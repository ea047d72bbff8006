package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"
	_ "modernc.org/sqlite"

	"dmd/internal/storage"
	"dmd/internal/storage/sqldb"
)

// Key design points vs Postgres:
//   - SQLite has no native DATE or BOOLEAN storage class. modernc.org/sqlite
//     parses columns declared DATE/TIMESTAMP back into time.Time, and stores
//     booleans as 0/1 integers.
//   - Foreign keys are declared but only enforced when PRAGMA foreign_keys=ON.
//     The import never turns it on, matching the deferred semantics used on
//     Postgres.
//   - ":memory:" databases are per-connection, so the pool is pinned to one
//     connection. A caller holding a Tx must issue every statement through it.
var dialect = sqldb.Dialect{
	Driver:       "sqlite",
	Flavor:       sqlbuilder.SQLite,
	CreateSQL:    buildCreateSQL,
	Init:         []string{"PRAGMA busy_timeout = 5000"},
	MaxOpenConns: 1,
}

func init() {
	storage.Register("sqlite", New)
}

// New opens a SQLite database. cfg.DSN is a file path or ":memory:".
func New(ctx context.Context, cfg storage.Config) (storage.Store, error) {
	return sqldb.Open(ctx, dialect, cfg.DSN)
}

func sqlIdent(id string) string {
	// SQLite supports "quoted identifiers"
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func sqliteType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case storage.TypeText:
		return "TEXT"
	case storage.TypeBigint:
		return "INTEGER"
	case storage.TypeBool:
		return "BOOLEAN"
	case storage.TypeDate:
		return "DATE"
	case storage.TypeNumeric:
		return "NUMERIC"
	case storage.TypeTimestamp:
		return "TIMESTAMP"
	default:
		return t
	}
}

// buildCreateSQL generates a single CREATE TABLE IF NOT EXISTS statement.
func buildCreateSQL(t storage.TableSpec) ([]string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return nil, fmt.Errorf("table name is empty")
	}

	var parts []string
	if t.PrimaryKey != nil {
		if strings.TrimSpace(t.PrimaryKey.Name) == "" || strings.TrimSpace(t.PrimaryKey.Type) == "" {
			return nil, fmt.Errorf("%s: primary key name/type must be set", t.Name)
		}
		parts = append(parts, fmt.Sprintf(`%s %s PRIMARY KEY`, sqlIdent(t.PrimaryKey.Name), sqliteType(t.PrimaryKey.Type)))
	}

	for _, c := range t.Columns {
		if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Type) == "" {
			return nil, fmt.Errorf("%s: column name/type must be set", t.Name)
		}
		col := fmt.Sprintf("%s %s", sqlIdent(c.Name), sqliteType(c.Type))
		if !c.IsNullable() {
			col += " NOT NULL"
		}
		if c.References != "" {
			col += " REFERENCES " + c.References + " DEFERRABLE INITIALLY DEFERRED"
		}
		parts = append(parts, col)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("%s: no columns", t.Name)
	}

	return []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);", t.Name, strings.Join(parts, ",\n  "))}, nil
}
