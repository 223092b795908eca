// Package dedupe collapses joined rows to one per identifying number and one
// per organization name, keeping the highest-revenue record.
package dedupe

import (
	"sort"

	"github.com/JonMunkholm/orgenrich/internal/table"
)

// Keys names the columns deduplication works on. An empty or absent
// column disables the pass that needs it.
type Keys struct {
	EIN     string
	Name    string
	Revenue string
}

// Options tunes deduplication.
type Options struct {
	// KeepUnmatched keeps every row with a null EIN in the EIN pass
	// instead of collapsing them into a single group.
	KeepUnmatched bool
}

// Stats counts the rows removed by each pass.
type Stats struct {
	Input         int `json:"input"`
	DroppedByEIN  int `json:"dropped_by_ein"`
	DroppedByName int `json:"dropped_by_name"`
	Output        int `json:"output"`
}

// Dedupe runs two passes over t and returns a new table:
//
//  1. Stable-sort by (EIN ascending, revenue descending) and keep the first
//     row of each EIN group.
//  2. Stable-sort the survivors the same way and keep the first row of each
//     normalized-name group.
//
// Null sorts after every value in both keys. Null EINs form one group unless
// opts.KeepUnmatched is set.
func Dedupe(t *table.Table, keys Keys, opts Options) (*table.Table, Stats) {
	stats := Stats{Input: t.Len()}
	rows := append([][]table.Cell(nil), t.Rows...)

	einIdx := index(t, keys.EIN)
	nameIdx := index(t, keys.Name)
	revIdx := index(t, keys.Revenue)

	if einIdx >= 0 {
		sortRows(rows, einIdx, revIdx)
		before := len(rows)
		rows = keepFirst(rows, func(row []table.Cell) (string, bool) {
			c := row[einIdx]
			if !c.Valid {
				return "", !opts.KeepUnmatched
			}
			return "v" + c.Value, true
		})
		stats.DroppedByEIN = before - len(rows)
	}

	if nameIdx >= 0 {
		sortRows(rows, einIdx, revIdx)
		before := len(rows)
		rows = keepFirst(rows, func(row []table.Cell) (string, bool) {
			c := row[nameIdx]
			if !c.Valid {
				return "", true
			}
			return "v" + table.Normalize(c.Value), true
		})
		stats.DroppedByName = before - len(rows)
	}

	out := table.New(t.Columns)
	out.Rows = rows
	stats.Output = len(rows)
	return out, stats
}

func index(t *table.Table, name string) int {
	if name == "" {
		return -1
	}
	return t.Index(name)
}

// keepFirst keeps the first row of each key. Rows for which grouped is
// false are always kept. Null keys are distinguished from values by the
// "v" prefix the callers add.
func keepFirst(rows [][]table.Cell, key func([]table.Cell) (k string, grouped bool)) [][]table.Cell {
	seen := make(map[string]bool, len(rows))
	out := rows[:0:0]
	for _, row := range rows {
		k, grouped := key(row)
		if grouped {
			if seen[k] {
				continue
			}
			seen[k] = true
		}
		out = append(out, row)
	}
	return out
}

func sortRows(rows [][]table.Cell, einIdx, revIdx int) {
	sort.SliceStable(rows, func(i, j int) bool {
		if einIdx >= 0 {
			if c := compareText(rows[i][einIdx], rows[j][einIdx]); c != 0 {
				return c < 0
			}
		}
		if revIdx >= 0 {
			return compareRevenueDesc(rows[i][revIdx], rows[j][revIdx]) < 0
		}
		return false
	})
}

// compareText orders values ascending with null last.
func compareText(a, b table.Cell) int {
	switch {
	case !a.Valid && !b.Valid:
		return 0
	case !a.Valid:
		return 1
	case !b.Valid:
		return -1
	case a.Value < b.Value:
		return -1
	case a.Value > b.Value:
		return 1
	}
	return 0
}

// compareRevenueDesc orders amounts descending with unparseable values last.
func compareRevenueDesc(a, b table.Cell) int {
	fa, okA := ParseAmount(a)
	fb, okB := ParseAmount(b)
	switch {
	case !okA && !okB:
		return 0
	case !okA:
		return 1
	case !okB:
		return -1
	case fa > fb:
		return -1
	case fa < fb:
		return 1
	}
	return 0
}
