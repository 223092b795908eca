// Package match links uploaded rows to reference records by exact
// normalized name.
package match

import (
	"github.com/JonMunkholm/orgenrich/internal/reference"
	"github.com/JonMunkholm/orgenrich/internal/table"
)

// ColumnEIN is the output name of the identifying number column.
const ColumnEIN = "EIN"

// Result is the joined table and the names its pulled-in columns ended up
// with. A name differs from the default only when the upload already had a
// column of that name.
type Result struct {
	Table *table.Table

	EINColumn     string
	RevenueColumn string

	InputRows   int
	MatchedRows int
}

// Join performs a left join of t against ds on Normalize(name). Every input
// row appears at least once, in input order. A row whose name matches k
// reference records appears k times, once per record in reference order.
// Unmatched rows and rows with a null name get null for every pulled-in
// column. t is not modified.
func Join(t *table.Table, nameColumn string, ds *reference.Dataset) Result {
	pulled := append([]string{reference.ColumnEIN}, reference.AuxColumns...)
	outNames := make([]string, len(pulled))
	out := table.New(t.Columns)
	for i, c := range pulled {
		name := c
		if c == reference.ColumnEIN {
			name = ColumnEIN
		}
		outNames[i] = out.UniqueName(name)
		out.Columns = append(out.Columns, outNames[i])
	}

	res := Result{
		Table:         out,
		EINColumn:     outNames[0],
		RevenueColumn: outNames[2],
		InputRows:     t.Len(),
	}

	nameIdx := t.Index(nameColumn)
	width := len(t.Columns)

	for _, row := range t.Rows {
		var recs []reference.Record
		if nameIdx >= 0 && row[nameIdx].Valid {
			recs = ds.Lookup(table.Normalize(row[nameIdx].Value))
		}

		if len(recs) == 0 {
			out.Append(row)
			continue
		}

		res.MatchedRows++
		for _, rec := range recs {
			dst := make([]table.Cell, len(out.Columns))
			copy(dst, row)
			dst[width] = rec.EIN
			copy(dst[width+1:], rec.Aux)
			out.Rows = append(out.Rows, dst)
		}
	}

	return res
}
