package core

// convert.go handles the messy reality of user-provided catalog data:
// Excel formula prefixes (="value"), surrounding quotes, thousands
// separators in stock counts, and headers with inconsistent casing.
//
// All ToPg* functions return pgtype values with Valid=false for
// empty/invalid input, letting the database store real NULLs.

import (
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

// HeaderIndex maps column names (lowercase) to their position in a row.
type HeaderIndex map[string]int

// MakeHeaderIndex creates a HeaderIndex from a header row.
// Keys are lowercased for case-insensitive matching.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		key := strings.ToLower(CleanCell(h))
		idx[key] = i
	}
	return idx
}

// CleanCell removes common artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)

	return s
}

// ToPgText converts a string to pgtype.Text.
// Returns invalid if the string is empty or only whitespace.
func ToPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// ToPgInt4 converts a string to pgtype.Int4.
// Tolerates thousands separators ("1,024") and a redundant decimal part
// ("5.00") as spreadsheet exports commonly produce for integer columns.
func ToPgInt4(s string) pgtype.Int4 {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Int4{Valid: false}
	}

	// Plain integer first
	if i, err := strconv.ParseInt(s, 10, 32); err == nil {
		return pgtype.Int4{Int32: int32(i), Valid: true}
	}

	// Strip separators, then accept floats with integral value
	cleaned := strings.NewReplacer(",", "", " ", "", " ", "").Replace(s)
	if i, err := strconv.ParseInt(cleaned, 10, 32); err == nil {
		return pgtype.Int4{Int32: int32(i), Valid: true}
	}
	if f, err := strconv.ParseFloat(cleaned, 64); err == nil && f == float64(int32(f)) {
		return pgtype.Int4{Int32: int32(f), Valid: true}
	}

	return pgtype.Int4{Valid: false}
}
