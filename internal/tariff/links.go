package tariff

import (
	"bytes"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// sheetHref matches Part VIIIA workbook links as they appear, still
// percent-encoded, in the page markup.
var sheetHref = regexp.MustCompile(`Part%20VIIIA.+\.xlsx$`)

var (
	wordSep       = regexp.MustCompile(`[ -]+`)
	leadingDigits = regexp.MustCompile(`^\d+`)
)

// lower folds s to lower case. A Caser holds state, so each call gets its
// own.
func lower(s string) string {
	return cases.Lower(language.English).String(s)
}

// novemberUpdated is a one-off filename republished for November 2020.
const novemberUpdated = "Part VIIIA Nov 20 updated"

var monthAbbr = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// Sheet is one monthly Part VIIIA workbook.
type Sheet struct {
	URL   string
	Year  int
	Month time.Month
}

// Date is the first day of the sheet's month.
func (s Sheet) Date() time.Time {
	return time.Date(s.Year, s.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Label renders the sheet month as <year>_<month>, e.g. 2017_9.
func (s Sheet) Label() string {
	return fmt.Sprintf("%d_%d", s.Year, int(s.Month))
}

// FindSheets returns every Part VIIIA workbook linked from the page at
// pageURL, in document order, with hrefs resolved against pageURL.
func FindSheets(pageURL string, html []byte) ([]Sheet, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html %s: %w", pageURL, err)
	}

	var (
		out  []Sheet
		bad  error
		seen = map[string]bool{}
	)
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if !sheetHref.MatchString(href) {
			return true
		}
		year, month, err := ParseMonth(href)
		if err != nil {
			bad = err
			return false
		}
		ref, err := url.Parse(href)
		if err != nil {
			bad = fmt.Errorf("parse href %q: %w", href, err)
			return false
		}
		abs := base.ResolveReference(ref).String()
		if seen[abs] {
			return true
		}
		seen[abs] = true
		out = append(out, Sheet{URL: abs, Year: year, Month: month})
		return true
	})
	return out, bad
}

// ParseMonth derives the (year, month) a workbook covers from its href.
//
// The unescaped base name is split on spaces and dashes; the last two words
// are the month (Sep, Sept and September all work) and the year (only its
// leading digits count, and two digits mean 20xx).
func ParseMonth(href string) (int, time.Month, error) {
	name, err := url.PathUnescape(path.Base(href))
	if err != nil {
		return 0, 0, fmt.Errorf("unescape %q: %w", href, err)
	}
	name = strings.TrimSuffix(name, path.Ext(name))
	if name == novemberUpdated {
		return 2020, time.November, nil
	}

	words := wordSep.Split(strings.TrimSpace(name), -1)
	if len(words) < 2 {
		return 0, 0, fmt.Errorf("tariff sheet %q: no month and year", name)
	}
	monthWord, yearWord := words[len(words)-2], words[len(words)-1]

	digits := leadingDigits.FindString(yearWord)
	if digits == "" {
		return 0, 0, fmt.Errorf("tariff sheet %q: no year in %q", name, yearWord)
	}
	if len(digits) == 2 {
		digits = "20" + digits
	}
	year, err := strconv.Atoi(digits)
	if err != nil {
		return 0, 0, fmt.Errorf("tariff sheet %q: %w", name, err)
	}

	abbr := lower(monthWord)
	if len(abbr) > 3 {
		abbr = abbr[:3]
	}
	month, ok := monthAbbr[abbr]
	if !ok {
		return 0, 0, fmt.Errorf("tariff sheet %q: unknown month %q", name, monthWord)
	}
	return year, month, nil
}
