// Package csv streams delimited text files record by record.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Options tunes the CSV reader.
type Options struct {
	Comma      rune
	LazyQuotes bool
	// TrimSpace strips leading and trailing whitespace from every field.
	TrimSpace bool
}

// DefaultOptions reads RFC 4180 files with trimmed fields.
func DefaultOptions() Options {
	return Options{Comma: ',', TrimSpace: true}
}

// StreamRows reads src and calls fn once per record, header included, with
// the 1-based line number. Records may be ragged.
//
// NOTE: the record slice is reused between calls; fn must copy it to keep it.
//
// A UTF-8 byte order mark on the first field is dropped. Returning an error
// from fn stops the stream and is returned as is.
func StreamRows(ctx context.Context, src io.Reader, opt Options, fn func(line int, rec []string) error) error {
	cr := csv.NewReader(src)
	if opt.Comma != 0 {
		cr.Comma = opt.Comma
	}
	cr.LazyQuotes = opt.LazyQuotes
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1

	line := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		line++
		if err != nil {
			return fmt.Errorf("csv line %d: %w", line, err)
		}

		if line == 1 && len(rec) > 0 {
			rec[0] = strings.TrimPrefix(rec[0], "\uFEFF")
		}
		if opt.TrimSpace {
			for i, v := range rec {
				if hasEdgeSpace(v) {
					rec[i] = strings.TrimSpace(v)
				}
			}
		}
		if err := fn(line, rec); err != nil {
			return err
		}
	}
}

// ReadAll collects every record, header included, into memory.
func ReadAll(ctx context.Context, src io.Reader, opt Options) ([][]string, error) {
	var out [][]string
	err := StreamRows(ctx, src, opt, func(_ int, rec []string) error {
		out = append(out, append([]string(nil), rec...))
		return nil
	})
	return out, err
}

func hasEdgeSpace(s string) bool {
	if s == "" {
		return false
	}
	first, last := s[0], s[len(s)-1]
	return first == ' ' || first == '\t' || last == ' ' || last == '\t' || first == '\n' || last == '\n' || first == '\r' || last == '\r'
}
