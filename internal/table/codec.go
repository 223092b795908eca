package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	// ErrEmpty is returned when a file has no header row.
	ErrEmpty = errors.New("empty file")

	// ErrUnsupportedFormat is returned for file extensions other than csv/xlsx.
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// ShapeError reports a data row with more fields than the header.
type ShapeError struct {
	Line int
	Want int
	Got  int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("invalid csv: line %d has %d fields, header has %d", e.Line, e.Got, e.Want)
}

// Format is a tabular file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat maps a name or extension ("csv", ".xlsx", "") to a Format.
// The empty string selects CSV.
func ParseFormat(s string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".") {
	case "", "csv", "txt":
		return FormatCSV, nil
	case "xlsx", "xlsm":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// FormatOf infers the format of a file from its name.
func FormatOf(name string) (Format, error) {
	return ParseFormat(filepath.Ext(name))
}

// ContentType returns the MIME type used when serving the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Read parses r according to the extension of name.
func Read(name string, r io.Reader) (*Table, error) {
	f, err := FormatOf(name)
	if err != nil {
		return nil, err
	}
	if f == FormatXLSX {
		return ReadXLSX(r)
	}
	return ReadCSV(r)
}

// Decode wraps data in a reader that yields UTF-8. A UTF-8 or UTF-16 byte
// order mark is honored and stripped; without one, valid UTF-8 passes through
// and anything else is decoded as Windows-1252, the usual culprit for files
// saved from Excel.
func Decode(data []byte) io.Reader {
	var fallback transform.Transformer = unicode.UTF8.NewDecoder()
	if !utf8.Valid(data) {
		fallback = charmap.Windows1252.NewDecoder()
	}
	return transform.NewReader(bytes.NewReader(data), unicode.BOMOverride(fallback))
}

// ReadCSV parses a CSV document. Every value is kept as a string.
func ReadCSV(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	cr := csv.NewReader(Decode(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid csv: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrEmpty
	}
	return FromRecords(records[0], records[1:])
}

// ReadXLSX parses the first sheet of an XLSX workbook.
func ReadXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("invalid xlsx: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("invalid xlsx: no sheets found")
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("invalid xlsx: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrEmpty
	}
	return FromRecords(rows[0], rows[1:])
}

// Write encodes t in the given format.
func Write(w io.Writer, t *Table, f Format) error {
	if f == FormatXLSX {
		return WriteXLSX(w, t)
	}
	return WriteCSV(w, t)
}

// WriteCSV writes t as UTF-8 CSV with a header row. Nulls are written empty.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(t.Records()); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// WriteXLSX writes t to a single-sheet workbook.
func WriteXLSX(w io.Writer, t *Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, rec := range t.Records() {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("write xlsx: %w", err)
		}
		row := make([]interface{}, len(rec))
		for j, v := range rec {
			row[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write xlsx: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}
