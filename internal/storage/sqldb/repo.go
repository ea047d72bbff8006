// Package sqldb is the database/sql backend shared by every driver that
// speaks through database/sql (sqlite, sqlserver, duckdb).
//
// Backend packages describe their differences in a Dialect and register a
// factory that calls Open. Everything else (transactions, row cursors,
// rows-affected accounting) is identical across those drivers.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"

	"dmd/internal/storage"
)

// Dialect captures what differs between database/sql drivers.
type Dialect struct {
	// Driver is the database/sql driver name ("sqlite", "sqlserver", "duckdb").
	Driver string

	// Flavor selects placeholder syntax for go-sqlbuilder.
	Flavor sqlbuilder.Flavor

	// CreateSQL renders idempotent DDL for one table.
	CreateSQL func(t storage.TableSpec) ([]string, error)

	// Init runs once per Open, e.g. PRAGMAs.
	Init []string

	// MaxOpenConns caps the pool. SQLite ":memory:" databases are
	// per-connection, so the sqlite dialect pins this to 1.
	MaxOpenConns int
}

// Repo implements storage.Store on top of sqlx.
type Repo struct {
	db *sqlx.DB
	d  Dialect
}

// Open connects (and pings) using d.Driver and runs the dialect's Init
// statements.
func Open(ctx context.Context, d Dialect, dsn string) (*Repo, error) {
	db, err := sqlx.ConnectContext(ctx, d.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s connect: %w", d.Driver, err)
	}
	if d.MaxOpenConns > 0 {
		db.SetMaxOpenConns(d.MaxOpenConns)
		db.SetMaxIdleConns(d.MaxOpenConns)
	}
	for _, stmt := range d.Init {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s init %q: %w", d.Driver, stmt, err)
		}
	}
	return &Repo{db: db, d: d}, nil
}

// DB exposes the underlying handle for driver-specific callers.
func (r *Repo) DB() *sqlx.DB { return r.db }

func (r *Repo) Flavor() sqlbuilder.Flavor { return r.d.Flavor }

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	return rowsAffected(res, err)
}

func (r *Repo) Query(ctx context.Context, query string, args ...any) (storage.Rows, error) {
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repo) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx, flavor: r.d.Flavor}, nil
}

// EnsureTables creates each table in order. DDL comes from the dialect and
// must be idempotent.
func (r *Repo) EnsureTables(ctx context.Context, tables []storage.TableSpec) error {
	if r.d.CreateSQL == nil {
		return fmt.Errorf("%s: dialect has no DDL renderer", r.d.Driver)
	}
	for _, t := range tables {
		stmts, err := r.d.CreateSQL(t)
		if err != nil {
			return err
		}
		for _, stmt := range stmts {
			if _, err := r.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("%s: create table %s: %w", r.d.Driver, t.Name, err)
			}
		}
	}
	return nil
}

// Tx wraps *sqlx.Tx.
type Tx struct {
	tx     *sqlx.Tx
	flavor sqlbuilder.Flavor
}

func (t *Tx) Flavor() sqlbuilder.Flavor { return t.flavor }

func (t *Tx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	return rowsAffected(res, err)
}

func (t *Tx) Query(ctx context.Context, query string, args ...any) (storage.Rows, error) {
	rows, err := t.tx.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (t *Tx) Commit(ctx context.Context) error { return t.tx.Commit() }

func (t *Tx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func rowsAffected(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		// Some drivers cannot report it for DDL; that is not a failure.
		return 0, nil
	}
	return n, nil
}

var (
	_ storage.Store = (*Repo)(nil)
	_ storage.Tx    = (*Tx)(nil)
	_ storage.Rows  = (*sqlx.Rows)(nil)
)
