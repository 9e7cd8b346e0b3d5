// Package remotelist fetches the published membership sheet and answers
// whether an identifier is listed in it.
package remotelist

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"unicode/utf8"
)

// Table is an ordered list of rows of trimmed, unquoted cells.
type Table [][]string

// Parse splits body on newlines and commas. Each cell is trimmed and loses one
// leading and one trailing double quote; rows whose cells are all empty are
// dropped.
//
// Commas inside quoted fields and escaped quotes are not understood: a cell
// like "a,b" comes back as two cells `a` and `b`. Published sheets holding
// identifier lists do not contain such cells. ParseStrict handles them.
//
// Invalid UTF-8 sequences are replaced with U+FFFD so one badly encoded cell
// does not hide the rest of the sheet.
func Parse(body []byte) (Table, error) {
	lines := strings.Split(strings.ToValidUTF8(string(body), "\uFFFD"), "\n")
	out := make(Table, 0, len(lines))
	for _, line := range lines {
		raw := strings.Split(line, ",")
		row := make([]string, len(raw))
		empty := true
		for i, cell := range raw {
			cell = unquote(strings.TrimSpace(cell))
			row[i] = cell
			if cell != "" {
				empty = false
			}
		}
		if empty {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func unquote(s string) string {
	s = strings.TrimPrefix(s, `"`)
	return strings.TrimSuffix(s, `"`)
}

// ParseStrict reads body as RFC 4180 CSV. Rows may have varying widths.
// Cells are trimmed and blank rows are dropped, matching Parse.
func ParseStrict(body []byte) (Table, error) {
	if !utf8.Valid(body) {
		return nil, &ParseError{Err: errors.New("body is not valid UTF-8")}
	}
	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1
	r.LazyQuotes = false
	var out Table
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			line := 0
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				line = pe.Line
			}
			return nil, &ParseError{Line: line, Err: err}
		}
		empty := true
		for i := range rec {
			rec[i] = strings.TrimSpace(rec[i])
			if rec[i] != "" {
				empty = false
			}
		}
		if !empty {
			out = append(out, rec)
		}
	}
	return out, nil
}
