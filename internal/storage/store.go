package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/huandu/go-sqlbuilder"
)

// Config is the minimal configuration needed to open a Store.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
type Config struct {
	Kind string
	DSN  string
}

// Rows is the cursor returned by Querier.Query.
//
// *sql.Rows satisfies it directly; the pgx backend adapts pgx.Rows.
type Rows interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// Querier runs statements against either a Store or an open Tx.
//
// Statements are expected to be rendered with the builder returned by Flavor,
// so each backend receives placeholders in its own syntax ($1, ?, @p1).
type Querier interface {
	Flavor() sqlbuilder.Flavor
	// Exec runs a statement and returns the number of rows affected.
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	Query(ctx context.Context, query string, args ...any) (Rows, error)
}

// Tx is an open transaction. Rollback after Commit is a no-op.
type Tx interface {
	Querier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store is a backend-agnostic relational store.
//
// IMPORTANT: This interface is intentionally small. The catalogue import only
// needs full-replace loads, keyed updates and flat reads; each backend
// implements those in its own idiomatic way.
type Store interface {
	Querier

	// Begin starts a transaction. The dm+d load runs entirely inside one.
	Begin(ctx context.Context) (Tx, error)

	// EnsureTables creates tables as needed ("create-if-not-exists").
	EnsureTables(ctx context.Context, tables []TableSpec) error

	// Close releases backend resources. Call once.
	Close() error
}

type factory func(ctx context.Context, cfg Config) (Store, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind (e.g. "postgres", "sqlite").
//
// When to use:
//   - Call Register from an init() function in a backend package.
//
// Panics:
//   - If kind is empty, f is nil, or kind is already registered.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// Open constructs a Store using the registered backend factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// Kinds returns the registered backend kinds, for flag help and validation.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// WithTx runs fn inside a transaction on s. The transaction is committed when
// fn returns nil and rolled back otherwise.
func WithTx(ctx context.Context, s Store, fn func(tx Tx) error) (err error) {
	tx, err := s.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
