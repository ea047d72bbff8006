// Package loader replaces the stored rows of each catalogue kind with the
// records of a new release.
package loader

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"dmd/internal/catalogue"
	"dmd/internal/source"
	"dmd/internal/storage"
)

// ErrOutOfOrder is returned when a kind is loaded before a kind it
// references.
var ErrOutOfOrder = errors.New("loader: kind loaded before its references")

// Source tags that do not map onto their column name by lowercasing.
var renames = map[string]string{
	// desc is a reserved word in SQL.
	"desc": "descr",
	// dnd is a foreign key, and foreign key columns end in cd.
	"dnd": "dndcd",
}

// ColumnName maps a source tag to its stored column.
func ColumnName(tag string) string {
	name := strings.ToLower(tag)
	if r, ok := renames[name]; ok {
		return r
	}
	return name
}

// Options tunes a Loader.
type Options struct {
	// BatchSize caps rows per insert call. Zero lets the backend's parameter
	// limit decide.
	BatchSize int
}

// Loader is a load session. It remembers which kinds it has loaded so that
// a kind presented before its references is rejected.
type Loader struct {
	q      storage.Querier
	opts   Options
	loaded map[string]bool
}

func New(q storage.Querier, opts Options) *Loader {
	return &Loader{q: q, opts: opts, loaded: map[string]bool{}}
}

// Loaded reports whether label has been loaded in this session.
func (l *Loader) Loaded(label string) bool { return l.loaded[label] }

// Load deletes every stored row of g.Kind and inserts g.Records in its place.
// It returns the number of rows inserted.
func (l *Loader) Load(ctx context.Context, g source.Group) (int64, error) {
	k := g.Kind
	for _, r := range k.Refs() {
		if !l.loaded[r] {
			return 0, fmt.Errorf("%w: %s references %s", ErrOutOfOrder, k.Label, r)
		}
	}

	rows, err := Rows(k, g.Records)
	if err != nil {
		return 0, err
	}

	if _, err := storage.DeleteAll(ctx, l.q, k.Table); err != nil {
		return 0, err
	}

	cols := k.Columns()
	size := l.opts.BatchSize
	if size <= 0 {
		size = len(rows)
	}
	var total int64
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		n, err := storage.InsertRows(ctx, l.q, k.Table, cols, rows[start:end])
		if err != nil {
			return total, fmt.Errorf("load %s: %w", k.Label, err)
		}
		total += n
	}

	l.loaded[k.Label] = true
	return total, nil
}

// LoadAll loads groups in the order given and returns rows inserted per kind.
func (l *Loader) LoadAll(ctx context.Context, groups []source.Group) (map[string]int64, error) {
	counts := make(map[string]int64, len(groups))
	for _, g := range groups {
		n, err := l.Load(ctx, g)
		if err != nil {
			return counts, err
		}
		counts[g.Kind.Label] += n
	}
	return counts, nil
}

// Plan orders groups by catalogue load order and adds an empty group for
// every kind the release did not mention, so that a full load leaves no
// stale rows behind. Groups of the same kind keep their relative order.
func Plan(groups []source.Group) []source.Group {
	seen := map[string]bool{}
	out := make([]source.Group, 0, len(groups))
	for _, g := range groups {
		seen[g.Kind.Label] = true
		out = append(out, g)
	}
	for _, k := range catalogue.All() {
		if !seen[k.Label] {
			out = append(out, source.Group{Kind: k})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return catalogue.Rank(out[i].Kind.Label) < catalogue.Rank(out[j].Kind.Label)
	})
	return out
}

// Rows converts records into value rows aligned with k.Columns().
//
// A boolean column is true iff its tag is present, whatever its text. Any
// other declared column that is missing or empty (<UDFS/>) is nil. Tags not
// declared on k are ignored.
func Rows(k *catalogue.Kind, records []*source.Element) ([][]any, error) {
	cols := k.Columns()
	fields := make([]catalogue.Field, len(cols))
	for i, c := range cols {
		fields[i], _ = k.Field(c)
	}

	out := make([][]any, 0, len(records))
	for ri, rec := range records {
		raw := make(map[string]string, len(rec.Children))
		for _, c := range rec.Children {
			raw[ColumnName(c.Tag)] = c.Text
		}

		row := make([]any, len(cols))
		for i, f := range fields {
			text, present := raw[f.Column]
			switch {
			case f.IsBool():
				row[i] = present
			case !present, text == "":
				row[i] = nil
			default:
				v, err := catalogue.Coerce(f.Type, text)
				if err != nil {
					return nil, fmt.Errorf("%s record %d, %s: %w", k.Label, ri, f.Column, err)
				}
				row[i] = v
			}
		}
		out = append(out, row)
	}
	return out, nil
}
