// Package reference loads the bulk organization reference dataset (the IRS
// Exempt Organizations Business Master File) that uploaded names are matched
// against.
//
// A Dataset is immutable once built and safe to share between runs. The Store
// type owns the process-wide copy and loads it at most once.
package reference

import (
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/orgenrich/internal/table"
)

// Column names of the reference dataset after header normalization.
const (
	ColumnEIN     = "ein"
	ColumnName    = "name"
	ColumnNTEE    = "ntee_cd"
	ColumnRevenue = "revenue_amt"
	ColumnIncome  = "income_amt"
	ColumnAssets  = "asset_amt"
)

// AuxColumns are the reference fields copied onto matched rows, in output order.
var AuxColumns = []string{ColumnNTEE, ColumnRevenue, ColumnIncome, ColumnAssets}

// ErrConfiguration marks reference data that is missing or malformed. It is
// fatal to the run that needed the data, never to the process.
var ErrConfiguration = errors.New("configuration error")

// Record is one reference row.
type Record struct {
	EIN      table.Cell
	Name     string
	NormName string

	// Aux holds the AuxColumns values in the same order, kept as loaded.
	Aux []table.Cell
}

// Revenue returns the record's revenue_amt cell.
func (r Record) Revenue() table.Cell {
	return r.Aux[1]
}

// Info describes where a dataset came from.
type Info struct {
	Source   string    `json:"source"`
	Files    []string  `json:"files,omitempty"`
	Records  int       `json:"records"`
	LoadedAt time.Time `json:"loaded_at"`
}

// Dataset is the normalized, name-indexed reference table.
type Dataset struct {
	records []Record
	byName  map[string][]int
	info    Info
}

// NewDataset builds a dataset from a table whose headers are already
// normalized. It requires the ein and name columns.
func NewDataset(t *table.Table, source string, files []string) (*Dataset, error) {
	if !t.Has(ColumnEIN) {
		return nil, fmt.Errorf("%w: no %s column found in reference data from %s", ErrConfiguration, ColumnEIN, source)
	}
	if !t.Has(ColumnName) {
		return nil, fmt.Errorf("%w: no %s column found in reference data from %s", ErrConfiguration, ColumnName, source)
	}

	einIdx := t.Index(ColumnEIN)
	nameIdx := t.Index(ColumnName)
	auxIdx := make([]int, len(AuxColumns))
	for i, c := range AuxColumns {
		auxIdx[i] = t.Index(c)
	}

	ds := &Dataset{
		records: make([]Record, 0, t.Len()),
		byName:  make(map[string][]int, t.Len()),
		info: Info{
			Source:   source,
			Files:    files,
			LoadedAt: time.Now(),
		},
	}

	for _, row := range t.Rows {
		rec := Record{
			EIN: row[einIdx],
			Aux: make([]table.Cell, len(AuxColumns)),
		}
		for i, idx := range auxIdx {
			if idx >= 0 {
				rec.Aux[i] = row[idx]
			}
		}

		// A null name can never equal an uploaded name, so it is not indexed.
		if name := row[nameIdx]; name.Valid {
			rec.Name = name.Value
			rec.NormName = table.Normalize(name.Value)
			ds.byName[rec.NormName] = append(ds.byName[rec.NormName], len(ds.records))
		}
		ds.records = append(ds.records, rec)
	}

	ds.info.Records = len(ds.records)
	return ds, nil
}

// Len returns the number of records. A nil dataset is empty.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.records)
}

// Lookup returns the records whose normalized name equals norm, in load order.
func (d *Dataset) Lookup(norm string) []Record {
	if d == nil {
		return nil
	}
	idx := d.byName[norm]
	out := make([]Record, len(idx))
	for i, n := range idx {
		out[i] = d.records[n]
	}
	return out
}

// Info returns provenance details.
func (d *Dataset) Info() Info {
	if d == nil {
		return Info{}
	}
	return d.info
}
