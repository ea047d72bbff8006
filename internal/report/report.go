// Package report accumulates the data-quality anomalies found during an
// import and writes them out once the import has finished.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Category names one anomaly log. The value is also the log's file stem.
type Category string

const (
	MappingOnly      Category = "dmd-objs-present-in-mapping-only"
	InferredCode     Category = "vmps-with-inferred-bnf-code"
	NoCode           Category = "vmps-with-no-bnf-code"
	MultipleObjects  Category = "bnf-codes-with-multiple-dmd-objs"
	MultipleNoName   Category = "bnf-codes-with-multiple-dmd-objs-and-no-inferred-name"
	VMPPCodeMismatch Category = "vmpps-with-different-bnf-code-to-vmp"
	AMPPCodeMismatch Category = "ampps-with-different-bnf-code-to-amp"
)

// SummaryFile is written alongside the category logs.
const SummaryFile = "summary.csv"

// Categories lists every category in the order logs are summarised.
var Categories = []Category{
	MappingOnly,
	InferredCode,
	NoCode,
	MultipleObjects,
	MultipleNoName,
	VMPPCodeMismatch,
	AMPPCodeMismatch,
}

// Report is passed through every stage of an import. It is not safe for
// concurrent use; the import is single threaded.
type Report struct {
	logs   map[Category][][]string
	counts map[string]int64
	kinds  []string
}

func New() *Report {
	return &Report{
		logs:   make(map[Category][][]string, len(Categories)),
		counts: map[string]int64{},
	}
}

// Add appends one record to c.
func (r *Report) Add(c Category, record ...string) {
	r.logs[c] = append(r.logs[c], record)
}

// Records returns the records logged under c.
func (r *Report) Records(c Category) [][]string { return r.logs[c] }

// Len is the number of records logged under c.
func (r *Report) Len(c Category) int { return len(r.logs[c]) }

// SetCount records how many objects of kind were imported. Counts are
// summarised in the order they were first set.
func (r *Report) SetCount(kind string, n int64) {
	if _, ok := r.counts[kind]; !ok {
		r.kinds = append(r.kinds, kind)
	}
	r.counts[kind] = n
}

// Count returns the count set for kind.
func (r *Report) Count(kind string) int64 { return r.counts[kind] }

// Totals returns the number of records per category, for categories with at
// least one record.
func (r *Report) Totals() map[Category]int {
	out := map[Category]int{}
	for c, recs := range r.logs {
		if len(recs) > 0 {
			out[c] = len(recs)
		}
	}
	return out
}

// Summary is the content of summary.csv: object counts, then one line per
// category with its record count.
func (r *Report) Summary() [][]string {
	out := make([][]string, 0, len(r.kinds)+len(Categories))
	for _, k := range r.kinds {
		out = append(out, []string{k, strconv.FormatInt(r.counts[k], 10)})
	}
	for _, c := range Categories {
		out = append(out, []string{string(c), strconv.Itoa(r.Len(c))})
	}
	return out
}

// Write creates dir and writes one <category>.csv per category plus
// summary.csv. Categories with no records still get an empty file.
func (r *Report) Write(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create logs dir: %w", err)
	}
	for _, c := range Categories {
		if err := writeCSV(filepath.Join(dir, string(c)+".csv"), r.logs[c]); err != nil {
			return err
		}
	}
	return writeCSV(filepath.Join(dir, SummaryFile), r.Summary())
}

func writeCSV(path string, records [][]string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
