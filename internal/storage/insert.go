package storage

import (
	"context"
	"fmt"

	"github.com/huandu/go-sqlbuilder"
)

// maxParams returns the bind-parameter ceiling for a single statement.
//
// SQL Server is the tightest: 2100 parameters and at most 1000 VALUES rows.
func maxParams(f sqlbuilder.Flavor) (params, rows int) {
	switch f {
	case sqlbuilder.SQLServer:
		return 2000, 1000
	case sqlbuilder.SQLite:
		return 32000, 0
	default:
		return 65000, 0
	}
}

// batchSize returns how many rows of width cols fit in one INSERT.
func batchSize(f sqlbuilder.Flavor, cols int) int {
	params, rowCap := maxParams(f)
	if cols <= 0 {
		return 1
	}
	n := params / cols
	if n < 1 {
		n = 1
	}
	if rowCap > 0 && n > rowCap {
		n = rowCap
	}
	return n
}

// InsertRows bulk-inserts rows into table, splitting them into as few
// multi-row INSERT statements as the backend's parameter limit allows.
//
// Constraints:
//   - every row must have len(columns) values; nil is inserted as NULL.
//
// Returns the number of rows reported inserted.
func InsertRows(ctx context.Context, q Querier, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("insert %s: no columns", table)
	}

	size := batchSize(q.Flavor(), len(columns))
	var total int64
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}

		sql, args, err := buildInsert(q.Flavor(), table, columns, rows[start:end])
		if err != nil {
			return total, err
		}
		n, err := q.Exec(ctx, sql, args...)
		if err != nil {
			return total, fmt.Errorf("insert %s rows %d-%d: %w", table, start, end-1, err)
		}
		total += n
	}
	return total, nil
}

// buildInsert renders one multi-row INSERT. It is pure so placeholder
// numbering can be unit tested per flavor.
func buildInsert(f sqlbuilder.Flavor, table string, columns []string, rows [][]any) (string, []any, error) {
	ib := f.NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols(columns...)
	for i, row := range rows {
		if len(row) != len(columns) {
			return "", nil, fmt.Errorf("insert %s: row %d has %d values, want %d", table, i, len(row), len(columns))
		}
		ib.Values(row...)
	}
	sql, args := ib.Build()
	return sql, args, nil
}

// DeleteAll removes every row of table and returns the count removed.
func DeleteAll(ctx context.Context, q Querier, table string) (int64, error) {
	db := q.Flavor().NewDeleteBuilder()
	db.DeleteFrom(table)
	sql, args := db.Build()
	n, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", table, err)
	}
	return n, nil
}

// Count returns the number of rows in table.
func Count(ctx context.Context, q Querier, table string) (int64, error) {
	sb := q.Flavor().NewSelectBuilder()
	sb.Select("COUNT(*)").From(table)
	sql, args := sb.Build()

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	defer rows.Close()

	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, fmt.Errorf("count %s: %w", table, err)
		}
	}
	return n, rows.Err()
}

// ScanAll drains rows into memory, one []any per row, and returns the column
// names alongside. Values keep whatever Go types the driver produced.
//
// IMPORTANT: Scan destinations must be pointers, so a parallel slice of
// &out[i] is built for every row.
func ScanAll(rows Rows) ([]string, [][]any, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		dests := make([]any, len(cols))
		for i := range vals {
			dests[i] = &vals[i]
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, nil, err
		}
		out = append(out, vals)
	}
	return cols, out, rows.Err()
}
