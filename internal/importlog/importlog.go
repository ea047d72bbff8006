// Package importlog reads and writes the import_log run marker that every
// importer commits alongside its data.
package importlog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dmd/internal/catalogue"
	"dmd/internal/storage"
)

// Categories used by the importers in this module.
const (
	CategoryDMD    = "dmd"
	CategoryTariff = "tariff"
)

// Entry is one import_log row.
type Entry struct {
	Category   string
	Filename   string
	CurrentAt  time.Time
	ImportedAt time.Time
	RunID      string
}

// Record inserts e. Callers run it inside the same transaction as the data
// it describes.
func Record(ctx context.Context, q storage.Querier, e Entry) error {
	if e.ImportedAt.IsZero() {
		e.ImportedAt = time.Now().UTC()
	}
	var runID any
	if e.RunID != "" {
		runID = e.RunID
	}
	spec := catalogue.ImportLogSpec()
	row := []any{e.Category, e.Filename, dateOnly(e.CurrentAt), e.ImportedAt, runID}
	if _, err := storage.InsertRows(ctx, q, spec.Name, spec.ColumnNames(), [][]any{row}); err != nil {
		return fmt.Errorf("import_log: %w", err)
	}
	return nil
}

// Exists reports whether (category, filename) has been recorded.
func Exists(ctx context.Context, q storage.Querier, category, filename string) (bool, error) {
	sb := q.Flavor().NewSelectBuilder()
	sb.Select("COUNT(*)").From(catalogue.ImportLogTable)
	sb.Where(sb.Equal("category", category), sb.Equal("filename", filename))
	sql, args := sb.Build()

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("import_log lookup: %w", err)
	}
	defer rows.Close()

	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return false, fmt.Errorf("import_log lookup: %w", err)
		}
	}
	return n > 0, rows.Err()
}

// Dates returns the current_at values recorded for category, as
// YYYY-MM-DD strings.
//
// Drivers hand DATE columns back differently (time.Time from pgx and
// go-mssqldb, text or time.Time from sqlite), so matching is done here rather
// than with a bound date parameter.
func Dates(ctx context.Context, q storage.Querier, category string) (map[string]bool, error) {
	sb := q.Flavor().NewSelectBuilder()
	sb.Select("current_at").From(catalogue.ImportLogTable)
	sb.Where(sb.Equal("category", category))
	sql, args := sb.Build()

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("import_log dates: %w", err)
	}
	_, vals, err := storage.ScanAll(rows)
	if err != nil {
		return nil, fmt.Errorf("import_log dates: %w", err)
	}

	out := make(map[string]bool, len(vals))
	for _, row := range vals {
		if d := DateKey(row[0]); d != "" {
			out[d] = true
		}
	}
	return out, nil
}

// DateKey renders a scanned date value as YYYY-MM-DD.
func DateKey(v any) string {
	if t, ok := v.(time.Time); ok {
		return t.Format(catalogue.DateLayout)
	}
	s := storage.NormalizeKey(v)
	if len(s) >= len(catalogue.DateLayout) {
		s = s[:len(catalogue.DateLayout)]
	}
	if _, err := time.Parse(catalogue.DateLayout, s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
