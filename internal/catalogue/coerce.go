package catalogue

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dmd/internal/storage"
)

// ErrCoerce is returned when source text does not fit a column's type.
var ErrCoerce = errors.New("catalogue: cannot coerce value")

// DateLayout is the date format used throughout the release files.
const DateLayout = "2006-01-02"

// Coerce converts raw source text into the Go value stored for typ.
//
// Numeric values become decimal.Decimal so that quantities such as 0.5 ml
// survive the round trip on every backend. Booleans never reach Coerce;
// they are decided by tag presence.
func Coerce(typ, raw string) (any, error) {
	s := strings.TrimSpace(raw)
	switch typ {
	case storage.TypeText:
		return raw, nil
	case storage.TypeBigint:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q as %s", ErrCoerce, raw, typ)
		}
		return n, nil
	case storage.TypeNumeric:
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %q as %s", ErrCoerce, raw, typ)
		}
		return d, nil
	case storage.TypeDate:
		t, err := time.Parse(DateLayout, s)
		if err != nil {
			return nil, fmt.Errorf("%w: %q as %s", ErrCoerce, raw, typ)
		}
		return t, nil
	case storage.TypeBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %q as %s", ErrCoerce, raw, typ)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrCoerce, typ)
	}
}
