package storage

import (
	"fmt"
	"strconv"
	"strings"
)

// NormalizeKey converts a scanned key value to a canonical string form,
// suitable for map keys (e.g. "0407010H0AAAMAM" or "10525011000001107").
//
// Drivers disagree on what they hand back for the same column: pgx yields
// string and int64, modernc sqlite may yield []byte for TEXT, go-mssqldb
// yields int64 or string. Callers must not assume a particular type.
func NormalizeKey(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []byte:
		return strings.TrimSpace(string(t))
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int:
		return strconv.Itoa(t)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
