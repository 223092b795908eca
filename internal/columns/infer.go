// Package columns guesses which column of an uploaded table holds
// organization names.
package columns

import "strings"

// DefaultThreshold is the minimum WRatio score a keyword must reach.
const DefaultThreshold = 60

// NameKeywords are tried in order; earlier keywords win.
var NameKeywords = []string{"company", "organization", "name", "nonprofit", "business", "entity"}

// Inference describes how the name column was chosen.
type Inference struct {
	Column   string `json:"column"`
	Index    int    `json:"index"`
	Keyword  string `json:"keyword,omitempty"`
	Score    int    `json:"score"`
	Fallback bool   `json:"fallback"`
}

// Infer picks the name column among columns. For each keyword in
// NameKeywords it takes the best fuzzy match against the lowercased, trimmed
// column names and accepts the first that scores at least DefaultThreshold.
// Without an accepted match the first column is used. ok is false only when
// there are no columns.
func Infer(columns []string) (Inference, bool) {
	return InferWith(columns, NameKeywords, DefaultThreshold)
}

// InferWith is Infer with explicit keywords and threshold.
func InferWith(columns, keywords []string, threshold int) (Inference, bool) {
	if len(columns) == 0 {
		return Inference{Index: -1}, false
	}

	normalized := make([]string, len(columns))
	for i, c := range columns {
		normalized[i] = strings.ToLower(strings.TrimSpace(c))
	}

	for _, kw := range keywords {
		if m, ok := BestMatch(kw, normalized, threshold); ok {
			return Inference{
				Column:  columns[m.Index],
				Index:   m.Index,
				Keyword: kw,
				Score:   m.Score,
			}, true
		}
	}

	return Inference{Column: columns[0], Index: 0, Fallback: true}, true
}

// InferNameColumn returns the original name of the inferred name column.
func InferNameColumn(columns []string) (string, bool) {
	inf, ok := Infer(columns)
	return inf.Column, ok
}
