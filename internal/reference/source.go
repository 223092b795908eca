package reference

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/orgenrich/internal/table"
)

// Source produces a reference dataset.
type Source interface {
	Load(ctx context.Context) (*Dataset, error)
	String() string
}

// DirSource reads every CSV and XLSX file in a directory.
type DirSource struct {
	Dir string
}

// Load implements Source.
func (s DirSource) Load(ctx context.Context) (*Dataset, error) {
	return LoadDir(s.Dir)
}

func (s DirSource) String() string {
	return "dir:" + s.Dir
}

// LoadDir reads and concatenates all tabular files in dir, normalizes their
// headers and indexes the result by name. Every value stays a string so EINs
// keep their leading zeros.
//
// A missing directory, a directory without tabular files, an unreadable file
// or a result lacking the ein column yields a nil dataset and an error
// wrapping ErrConfiguration.
func LoadDir(dir string) (*Dataset, error) {
	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		return nil, fmt.Errorf("%w: reference directory %q does not exist", ErrConfiguration, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: reading reference directory %q: %v", ErrConfiguration, dir, err)
	}

	var (
		tables []*table.Table
		files  []string
	)
	for _, entry := range entries {
		if entry.IsDir() || !isTabular(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		t, err := readFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: reference file %s is malformed: %v", ErrConfiguration, entry.Name(), err)
		}
		t.NormalizeColumns()
		tables = append(tables, t)
		files = append(files, entry.Name())
	}

	if len(tables) == 0 {
		return nil, fmt.Errorf("%w: no reference files found in %q", ErrConfiguration, dir)
	}

	return NewDataset(table.Concat(tables...), "dir:"+dir, files)
}

func isTabular(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

func readFile(path string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return table.Read(path, f)
}

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresSource reads the reference dataset from a table. Rows are fetched
// over the simple protocol so every column arrives in text form, the same
// shape LoadDir produces.
type PostgresSource struct {
	db    Querier
	table string
}

// NewPostgresSource creates a source for the named table, which may be
// schema-qualified ("irs.eo_bmf").
func NewPostgresSource(db Querier, tableName string) *PostgresSource {
	return &PostgresSource{db: db, table: tableName}
}

func (s *PostgresSource) String() string {
	return "postgres:" + s.table
}

// Load implements Source.
func (s *PostgresSource) Load(ctx context.Context) (*Dataset, error) {
	ident := pgx.Identifier(strings.Split(s.table, "."))
	query := "SELECT * FROM " + ident.Sanitize()

	rows, err := s.db.Query(ctx, query, pgx.QueryExecModeSimpleProtocol)
	if err != nil {
		return nil, fmt.Errorf("%w: querying reference table %s: %v", ErrConfiguration, s.table, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	header := make([]string, len(fields))
	for i, fd := range fields {
		header[i] = fd.Name
	}
	t := table.New(header)
	t.NormalizeColumns()

	for rows.Next() {
		raw := rows.RawValues()
		row := make([]table.Cell, len(raw))
		for i, v := range raw {
			if v != nil {
				row[i] = table.Text(string(v))
			}
		}
		t.Append(row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading reference table %s: %v", ErrConfiguration, s.table, err)
	}

	return NewDataset(t, s.String(), nil)
}
