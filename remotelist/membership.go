package remotelist

import "strings"

// IsMember reports whether id appears, case-insensitively, in the given column.
// The first row is treated as a header and skipped when the table has more
// than one row. Rows too short to have the column never match.
func IsMember(t Table, id string, column int) bool {
	if column < 0 || id == "" {
		return false
	}
	rows := t
	if len(rows) > 1 {
		rows = rows[1:]
	}
	want := strings.ToLower(id)
	for _, row := range rows {
		if column >= len(row) {
			continue
		}
		if strings.ToLower(strings.TrimSpace(row[column])) == want {
			return true
		}
	}
	return false
}
