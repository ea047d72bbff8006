// Package reconcile assigns BNF codes to dm+d objects from the BNF/SNOMED
// mapping, and infers missing VMP codes from their packs.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"dmd/internal/catalogue"
	"dmd/internal/parser/csv"
)

var (
	// ErrBadHeader is returned when the mapping's header row is not the one
	// published by the NHSBSA.
	ErrBadHeader = errors.New("reconcile: unexpected mapping header")
	// ErrUnknownKind is returned for a mapping row naming a kind other than
	// VMP, VMPP, AMP or AMPP.
	ErrUnknownKind = errors.New("reconcile: unknown mapping kind")
)

// Header cells checked by position.
var expectedHeader = map[int]string{
	1: "VMP / VMPP/ AMP / AMPP",
	2: "BNF Code",
	4: "SNOMED Code",
}

const (
	colKind = 1
	colCode = 2
	colID   = 4
)

// Entry is one usable mapping row.
type Entry struct {
	// Line is the 1-based spreadsheet row.
	Line    int
	Kind    string
	ID      string
	BNFCode string
}

// ReadMapping reads the mapping at path. Files ending .csv are read as CSV;
// anything else is opened as a workbook and its active sheet is used.
func ReadMapping(ctx context.Context, path string) ([]Entry, error) {
	var (
		rows [][]string
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		rows, err = readCSV(ctx, path)
	} else {
		rows, err = readXLSX(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read mapping %s: %w", path, err)
	}
	return ParseMapping(rows)
}

func readCSV(ctx context.Context, path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return csv.ReadAll(ctx, f, csv.DefaultOptions())
}

// readXLSX returns raw cell values so that long identifiers are not run
// through number formats.
func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	return f.GetRows(sheet, excelize.Options{RawCellValue: true})
}

// ParseMapping checks the header row and turns the remaining rows into
// entries. Rows with an empty code or identifier are dropped; a row naming
// an unknown kind is an error.
func ParseMapping(rows [][]string) ([]Entry, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no header row", ErrBadHeader)
	}
	for i, want := range expectedHeader {
		if got := cell(rows[0], i); got != want {
			return nil, fmt.Errorf("%w: column %d is %q, want %q", ErrBadHeader, i, got, want)
		}
	}

	var out []Entry
	for i, row := range rows[1:] {
		code := strings.TrimLeft(cell(row, colCode), "'")
		id := normalizeID(strings.TrimLeft(cell(row, colID), "'"))
		if code == "" || id == "" {
			continue
		}
		kind := cell(row, colKind)
		if k, ok := catalogue.Lookup(kind); !ok || !k.Reconcilable() {
			return nil, fmt.Errorf("%w %q on row %d", ErrUnknownKind, kind, i+2)
		}
		out = append(out, Entry{Line: i + 2, Kind: kind, ID: id, BNFCode: code})
	}
	return out, nil
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// normalizeID undoes spreadsheet number formatting such as 1.05E+16 on
// identifiers that were stored as numbers. Anything that is not a whole
// number is returned unchanged.
func normalizeID(s string) string {
	if s == "" || !strings.ContainsAny(s, ".eE") {
		return s
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsInteger() {
		return s
	}
	return d.String()
}
