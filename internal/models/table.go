// Package models defines core data structures for raw tables, predictions, and persisted runs.
package models

import "strings"

// RawTable is a spreadsheet as read from an upload: a header row plus string cells.
// Rows may be shorter than Columns; missing trailing cells read as null.
type RawTable struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Len returns the number of data rows.
func (t *RawTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ColumnIndex returns the position of name in Columns, or -1.
func (t *RawTable) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Cell returns the cell at (row, col), or "" when col is out of range for that row.
func (t *RawTable) Cell(row, col int) string {
	if col < 0 || row < 0 || row >= len(t.Rows) {
		return ""
	}
	r := t.Rows[row]
	if col >= len(r) {
		return ""
	}
	return r[col]
}

// nullTokens are the spellings spreadsheet exports use for a missing value.
var nullTokens = map[string]struct{}{
	"":     {},
	"nan":  {},
	"null": {},
	"none": {},
	"nat":  {},
	"n/a":  {},
}

// IsNull reports whether a raw cell represents a missing value.
func IsNull(cell string) bool {
	_, ok := nullTokens[strings.ToLower(strings.TrimSpace(cell))]
	return ok
}
