package tariff

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// ErrBadHeader is returned when a workbook's column headings are not the
// Part VIIIA ones.
var ErrBadHeader = errors.New("tariff: unexpected sheet header")

// headerRow is the 0-based row holding column headings. Above it sit a
// title and a blank row.
const headerRow = 2

var expectedHeader = []string{
	"medicine",
	"packsize",
	"?",
	"vmppsnomedcode",
	"drugtariffcategory",
	"basicprice",
}

const (
	colMedicine = 0
	colVMPP     = 3
	colCategory = 4
	colPrice    = 5
)

// Price is one priced pack from a Part VIIIA sheet.
type Price struct {
	VMPPID     int64
	CategoryID int64
	PricePence int64
}

// Parsed is the content of one workbook.
type Parsed struct {
	Prices []Price
	// MissingPrice names the medicines listed without a basic price.
	MissingPrice []string
}

// ParseSheet reads the first worksheet of a Part VIIIA workbook.
func ParseSheet(r io.Reader) (Parsed, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Parsed{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0), excelize.Options{RawCellValue: true})
	if err != nil {
		return Parsed{}, fmt.Errorf("read rows: %w", err)
	}
	return ParseRows(rows)
}

// ParseRows validates the heading row and converts every non-empty row
// below it.
func ParseRows(rows [][]string) (Parsed, error) {
	if len(rows) <= headerRow {
		return Parsed{}, fmt.Errorf("%w: sheet has %d rows", ErrBadHeader, len(rows))
	}
	if got := normalizeHeader(rows[headerRow]); !equalHeader(got) {
		return Parsed{}, fmt.Errorf("%w: %v", ErrBadHeader, got)
	}

	var out Parsed
	for i, row := range rows[headerRow+1:] {
		if blank(row) {
			continue
		}
		line := headerRow + i + 2
		if cell(row, colPrice) == "" {
			out.MissingPrice = append(out.MissingPrice, cell(row, colMedicine))
			continue
		}

		vmpp, err := integer(cell(row, colVMPP))
		if err != nil {
			return Parsed{}, fmt.Errorf("row %d: vmpp: %w", line, err)
		}
		cat, err := CategoryID(cell(row, colCategory))
		if err != nil {
			return Parsed{}, fmt.Errorf("row %d: %w", line, err)
		}
		price, err := integer(cell(row, colPrice))
		if err != nil {
			return Parsed{}, fmt.Errorf("row %d: price: %w", line, err)
		}
		out.Prices = append(out.Prices, Price{VMPPID: vmpp, CategoryID: cat, PricePence: price})
	}
	return out, nil
}

// CategoryID maps a Drug Tariff category label to its id.
func CategoryID(label string) (int64, error) {
	switch {
	case strings.Contains(label, "Category A"):
		return 1, nil
	case strings.Contains(label, "Category C"):
		return 3, nil
	case strings.Contains(label, "Category M"):
		return 11, nil
	default:
		return 0, fmt.Errorf("unknown category: %q", label)
	}
}

func normalizeHeader(row []string) []string {
	out := make([]string, len(expectedHeader))
	for i := range out {
		h := strings.Map(func(r rune) rune {
			if unicode.IsSpace(r) {
				return -1
			}
			return r
		}, lower(cell(row, i)))
		if h == "" {
			h = "?"
		}
		out[i] = h
	}
	if len(row) > len(out) {
		for _, extra := range row[len(out):] {
			if strings.TrimSpace(extra) != "" {
				out = append(out, extra)
			}
		}
	}
	return out
}

func equalHeader(got []string) bool {
	if len(got) != len(expectedHeader) {
		return false
	}
	for i := range got {
		if got[i] != expectedHeader[i] {
			return false
		}
	}
	return true
}

// integer truncates a decimal cell, so "87", "87.0" and "1E+3" all parse.
func integer(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return d.IntPart(), nil
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
