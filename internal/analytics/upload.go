// Package analytics copies committed import results into a separate store
// for analysis: every raw table, plus the flattened <kind>_full projections.
//
// Each table is replaced wholesale. Uploads read committed state only and
// can be re-run on their own.
package analytics

import (
	"context"
	"database/sql/driver"
	"fmt"

	"dmd/internal/projection"
	"dmd/internal/storage"
)

// Result is the number of rows written per sink table, in upload order.
type Result struct {
	Tables []string
	Rows   map[string]int64
}

func (r *Result) add(table string, n int64) {
	if r.Rows == nil {
		r.Rows = map[string]int64{}
	}
	r.Tables = append(r.Tables, table)
	r.Rows[table] = n
}

// Upload copies tables verbatim and then materializes projections.
func Upload(ctx context.Context, src storage.Querier, sink storage.Store, tables []storage.TableSpec, projections []projection.Projection) (Result, error) {
	var res Result
	for _, t := range tables {
		sb := src.Flavor().NewSelectBuilder()
		sb.Select(t.ColumnNames()...).From(t.Name)
		query, args := sb.Build()

		n, err := CopyQuery(ctx, src, sink, t, query, args...)
		if err != nil {
			return res, err
		}
		res.add(t.Name, n)
	}
	for _, p := range projections {
		spec := p.TableSpec()
		n, err := CopyQuery(ctx, src, sink, spec, p.SQL(src.Flavor()))
		if err != nil {
			return res, err
		}
		res.add(spec.Name, n)
	}
	return res, nil
}

// CopyQuery replaces table spec.Name in sink with the rows of query run on
// src. The query's columns must line up with spec.ColumnNames().
func CopyQuery(ctx context.Context, src storage.Querier, sink storage.Store, spec storage.TableSpec, query string, args ...any) (int64, error) {
	rows, err := src.Query(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("analytics: read %s: %w", spec.Name, err)
	}
	_, vals, err := storage.ScanAll(rows)
	if err != nil {
		return 0, fmt.Errorf("analytics: scan %s: %w", spec.Name, err)
	}
	for _, row := range vals {
		for i, v := range row {
			if row[i], err = normalize(v); err != nil {
				return 0, fmt.Errorf("analytics: %s: %w", spec.Name, err)
			}
		}
	}

	snapshot := detach(spec)
	if _, err := sink.Exec(ctx, "DROP TABLE IF EXISTS "+snapshot.Name); err != nil {
		return 0, fmt.Errorf("analytics: drop %s: %w", spec.Name, err)
	}
	if err := sink.EnsureTables(ctx, []storage.TableSpec{snapshot}); err != nil {
		return 0, fmt.Errorf("analytics: %w", err)
	}

	var n int64
	err = storage.WithTx(ctx, sink, func(tx storage.Tx) error {
		n, err = storage.InsertRows(ctx, tx, snapshot.Name, snapshot.ColumnNames(), vals)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("analytics: write %s: %w", spec.Name, err)
	}
	return n, nil
}

// detach drops foreign keys: a snapshot table must load in any order.
func detach(spec storage.TableSpec) storage.TableSpec {
	out := spec
	out.Columns = make([]storage.ColumnSpec, len(spec.Columns))
	for i, c := range spec.Columns {
		c.References = ""
		out.Columns[i] = c
	}
	return out
}

// normalize turns driver-specific values (pgtype.Numeric and friends) into
// plain driver values any sink accepts.
func normalize(v any) (any, error) {
	switch x := v.(type) {
	case nil, string, []byte, int64, float64, bool:
		return v, nil
	case driver.Valuer:
		return x.Value()
	default:
		return v, nil
	}
}
