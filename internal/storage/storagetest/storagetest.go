// Package storagetest opens throwaway in-memory stores for tests.
package storagetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"dmd/internal/storage"
	"dmd/internal/storage/sqlite"
)

// Open returns an empty in-memory SQLite store that is closed when the test
// ends. The store holds a single connection, so callers inside a Tx must
// issue every statement through the Tx.
func Open(t testing.TB, tables ...storage.TableSpec) storage.Store {
	t.Helper()
	ctx := context.Background()
	s, err := sqlite.New(ctx, storage.Config{Kind: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if len(tables) > 0 {
		if err := s.EnsureTables(ctx, tables); err != nil {
			t.Fatalf("ensure tables: %v", err)
		}
	}
	return s
}

// Exec runs a statement and fails the test on error.
func Exec(t testing.TB, q storage.Querier, sql string, args ...any) {
	t.Helper()
	if _, err := q.Exec(context.Background(), sql, args...); err != nil {
		t.Fatalf("exec %q: %v", sql, err)
	}
}

// Strings runs a query and returns every row with values rendered as
// strings. NULL becomes "<nil>", dates render as YYYY-MM-DD.
func Strings(t testing.TB, q storage.Querier, sql string, args ...any) [][]string {
	t.Helper()
	rows, err := q.Query(context.Background(), sql, args...)
	if err != nil {
		t.Fatalf("query %q: %v", sql, err)
	}
	_, vals, err := storage.ScanAll(rows)
	if err != nil {
		t.Fatalf("scan %q: %v", sql, err)
	}
	out := make([][]string, len(vals))
	for i, row := range vals {
		out[i] = make([]string, len(row))
		for j, v := range row {
			out[i][j] = render(v)
		}
	}
	return out
}

func render(v any) string {
	switch x := v.(type) {
	case nil:
		return "<nil>"
	case time.Time:
		return x.Format("2006-01-02")
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}
