// Package table provides the in-memory tabular model shared by every stage of
// an enrichment run, plus CSV and XLSX codecs.
//
// Cells are nullable: a CSV field that is empty is read as null, matching how
// the reference and uploaded files are treated downstream (null never equals
// anything during a join).
package table

import (
	"strconv"
	"strings"
)

// Cell is a nullable string value.
type Cell struct {
	Value string
	Valid bool
}

// Text returns a valid cell holding s.
func Text(s string) Cell {
	return Cell{Value: s, Valid: true}
}

// Null returns a null cell.
func Null() Cell {
	return Cell{}
}

// String renders the cell for output. Null renders as the empty string.
func (c Cell) String() string {
	if !c.Valid {
		return ""
	}
	return c.Value
}

// Table is an ordered set of named columns and rows of cells.
// Every row has exactly len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]Cell
}

// New creates an empty table with the given columns.
func New(columns []string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Index returns the position of column name, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Has reports whether the table has a column called name.
func (t *Table) Has(name string) bool {
	return t.Index(name) >= 0
}

// Append adds a row, padding or truncating it to the column count.
func (t *Table) Append(row []Cell) {
	out := make([]Cell, len(t.Columns))
	copy(out, row)
	t.Rows = append(t.Rows, out)
}

// AddColumn appends a column filled with fill and returns its index.
// If the column already exists its index is returned unchanged.
func (t *Table) AddColumn(name string, fill Cell) int {
	if i := t.Index(name); i >= 0 {
		return i
	}
	t.Columns = append(t.Columns, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], fill)
	}
	return len(t.Columns) - 1
}

// UniqueName returns name if the table has no such column, otherwise the
// first of name.1, name.2, ... that is free.
func (t *Table) UniqueName(name string) string {
	if !t.Has(name) {
		return name
	}
	for n := 1; ; n++ {
		alt := name + "." + strconv.Itoa(n)
		if !t.Has(alt) {
			return alt
		}
	}
}

// Get returns the cell at row r in column name, or null if the column is absent.
func (t *Table) Get(r int, name string) Cell {
	i := t.Index(name)
	if i < 0 || r < 0 || r >= len(t.Rows) {
		return Null()
	}
	return t.Rows[r][i]
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	out := New(t.Columns)
	out.Rows = make([][]Cell, len(t.Rows))
	for i, row := range t.Rows {
		out.Rows[i] = append([]Cell(nil), row...)
	}
	return out
}

// Head returns a copy holding at most n leading rows.
func (t *Table) Head(n int) *Table {
	out := New(t.Columns)
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	for _, row := range t.Rows[:n] {
		out.Rows = append(out.Rows, append([]Cell(nil), row...))
	}
	return out
}

// Records renders the table as string records, header first.
func (t *Table) Records() [][]string {
	out := make([][]string, 0, len(t.Rows)+1)
	out = append(out, append([]string(nil), t.Columns...))
	for _, row := range t.Rows {
		rec := make([]string, len(row))
		for i, c := range row {
			rec[i] = c.String()
		}
		out = append(out, rec)
	}
	return out
}

// Normalize lowercases and trims s. It is the join and grouping key for
// organization names and the canonical form of column headers.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// FromRecords builds a table from a header record and data records. Empty
// fields become null. Duplicate header names are made unique by appending
// ".1", ".2", ... to later occurrences.
func FromRecords(header []string, records [][]string) (*Table, error) {
	t := New(uniqueHeaders(header))
	for n, rec := range records {
		if len(rec) > len(t.Columns) {
			return nil, &ShapeError{Line: n + 2, Want: len(t.Columns), Got: len(rec)}
		}
		if isBlank(rec) {
			continue
		}
		row := make([]Cell, len(t.Columns))
		for i, v := range rec {
			if v != "" {
				row[i] = Text(v)
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func uniqueHeaders(header []string) []string {
	seen := make(map[string]int, len(header))
	out := make([]string, len(header))
	for i, h := range header {
		name := h
		if n, ok := seen[h]; ok {
			for {
				n++
				name = h + "." + strconv.Itoa(n)
				if _, taken := seen[name]; !taken {
					break
				}
			}
			seen[h] = n
		}
		seen[name] = 0
		out[i] = name
	}
	return out
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if v != "" {
			return false
		}
	}
	return true
}

// Concat stacks tables vertically. The result has the union of all columns in
// first-seen order; cells for columns a table lacks are null.
func Concat(tables ...*Table) *Table {
	var columns []string
	seen := make(map[string]bool)
	for _, t := range tables {
		for _, c := range t.Columns {
			if !seen[c] {
				seen[c] = true
				columns = append(columns, c)
			}
		}
	}

	out := New(columns)
	for _, t := range tables {
		pos := make([]int, len(t.Columns))
		for i, c := range t.Columns {
			pos[i] = out.Index(c)
		}
		for _, row := range t.Rows {
			dst := make([]Cell, len(columns))
			for i, c := range row {
				dst[pos[i]] = c
			}
			out.Rows = append(out.Rows, dst)
		}
	}
	return out
}

// NormalizeColumns rewrites every column name with Normalize. Names that
// collide after normalization are made unique the same way FromRecords does.
func (t *Table) NormalizeColumns() {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = Normalize(c)
	}
	t.Columns = uniqueHeaders(cols)
}
