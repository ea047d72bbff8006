package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dmd/internal/storage"
)

/*
Repo implements storage.Store for Postgres on a pgx connection pool.

Foreign keys are created DEFERRABLE INITIALLY DEFERRED. The catalogue load
deletes and re-inserts each kind inside one transaction, so a parent table is
briefly empty while its children still hold rows from the previous release;
deferred checking moves validation to COMMIT, when the full new release is in
place.
*/
type Repo struct {
	pool *pgxpool.Pool
}

func init() {
	storage.Register("postgres", New)
}

// New creates a Postgres-backed store.
func New(ctx context.Context, cfg storage.Config) (storage.Store, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &Repo{pool: pool}, nil
}

func (r *Repo) Flavor() sqlbuilder.Flavor { return sqlbuilder.PostgreSQL }

// Close closes the connection pool.
func (r *Repo) Close() error {
	r.pool.Close()
	return nil
}

func (r *Repo) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *Repo) Query(ctx context.Context, query string, args ...any) (storage.Rows, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &pgRows{rows: rows}, nil
}

func (r *Repo) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &pgTx{tx: tx}, nil
}

// EnsureTables creates every table that does not exist yet, in the order
// given. Callers pass referenced tables first.
func (r *Repo) EnsureTables(ctx context.Context, tables []storage.TableSpec) error {
	for _, t := range tables {
		schemaSQL, baseSQL, err := buildCreateSQL(t)
		if err != nil {
			return err
		}
		if schemaSQL != "" {
			if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
				return fmt.Errorf("create schema for %s: %w", t.Name, err)
			}
		}
		if _, err := r.pool.Exec(ctx, baseSQL); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
	}
	return nil
}

// pgTx adapts pgx.Tx to storage.Tx.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Flavor() sqlbuilder.Flavor { return sqlbuilder.PostgreSQL }

func (t *pgTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *pgTx) Query(ctx context.Context, query string, args ...any) (storage.Rows, error) {
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &pgRows{rows: rows}, nil
}

func (t *pgTx) Commit(ctx context.Context) error { return t.tx.Commit(ctx) }

func (t *pgTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

// pgRows adapts pgx.Rows to storage.Rows.
type pgRows struct {
	rows pgx.Rows
}

func (r *pgRows) Columns() ([]string, error) {
	fds := r.rows.FieldDescriptions()
	out := make([]string, len(fds))
	for i, fd := range fds {
		out[i] = fd.Name
	}
	return out, nil
}

func (r *pgRows) Next() bool             { return r.rows.Next() }
func (r *pgRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r *pgRows) Err() error             { return r.rows.Err() }

func (r *pgRows) Close() error {
	r.rows.Close()
	return nil
}

// pgIdent returns a double-quoted identifier.
func pgIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// pgType maps a logical column type onto Postgres. Unknown types pass through
// verbatim so a TableSpec can still name a native type.
func pgType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case storage.TypeText:
		return "TEXT"
	case storage.TypeBigint:
		return "BIGINT"
	case storage.TypeBool:
		return "BOOLEAN"
	case storage.TypeDate:
		return "DATE"
	case storage.TypeNumeric:
		return "NUMERIC"
	case storage.TypeTimestamp:
		return "TIMESTAMPTZ"
	default:
		return t
	}
}

// buildColumnDef renders a single column definition.
//
// Foreign key references are expressed inline and always deferred; see Repo.
func buildColumnDef(c storage.ColumnSpec) (string, error) {
	name := strings.TrimSpace(c.Name)
	typ := strings.TrimSpace(c.Type)
	if name == "" || typ == "" {
		return "", fmt.Errorf("column name/type must be set")
	}

	var b strings.Builder
	b.WriteString(pgIdent(name))
	b.WriteString(" ")
	b.WriteString(pgType(typ))

	if !c.IsNullable() {
		b.WriteString(" NOT NULL")
	}
	if ref := strings.TrimSpace(c.References); ref != "" {
		b.WriteString(" REFERENCES ")
		b.WriteString(ref)
		b.WriteString(" DEFERRABLE INITIALLY DEFERRED")
	}
	return b.String(), nil
}

// splitQualifiedName splits a schema-qualified name into (schema, table).
//
// Examples:
//   - "dmd.dmd_vmp" => ("dmd", "dmd_vmp")
//   - "dmd_vmp"     => ("", "dmd_vmp")
func splitQualifiedName(name string) (schema string, table string) {
	name = strings.TrimSpace(name)
	parts := strings.Split(name, ".")
	if len(parts) != 2 {
		return "", name
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

// buildCreateSQL builds the optional CREATE SCHEMA and the CREATE TABLE for t.
func buildCreateSQL(t storage.TableSpec) (schemaSQL, baseSQL string, err error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", "", fmt.Errorf("table name is empty")
	}
	if schema, _ := splitQualifiedName(t.Name); schema != "" {
		schemaSQL = fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s;`, pgIdent(schema))
	}

	cols := make([]string, 0, len(t.Columns)+1)
	if t.PrimaryKey != nil {
		pk := strings.TrimSpace(t.PrimaryKey.Name)
		pkType := strings.TrimSpace(t.PrimaryKey.Type)
		if pk == "" || pkType == "" {
			return "", "", fmt.Errorf("table %s: primary_key.name and primary_key.type are required", t.Name)
		}
		cols = append(cols, fmt.Sprintf(`%s %s PRIMARY KEY`, pgIdent(pk), pgType(pkType)))
	}
	for _, c := range t.Columns {
		def, err := buildColumnDef(c)
		if err != nil {
			return "", "", fmt.Errorf("table %s: %w", t.Name, err)
		}
		cols = append(cols, def)
	}
	if len(cols) == 0 {
		return "", "", fmt.Errorf("table %s: no columns", t.Name)
	}

	baseSQL = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s);`, t.Name, strings.Join(cols, ", "))
	return schemaSQL, baseSQL, nil
}
