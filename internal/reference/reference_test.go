package reference

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/orgenrich/internal/table"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadDir_MissingEINColumn(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bmf.csv", "name,revenue_amt\nRed Cross,1000\n")

	ds, err := LoadDir(dir)

	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Nil(t, ds)
	assert.Equal(t, 0, ds.Len())
}

func TestLoadDir_MissingDirectory(t *testing.T) {
	_, err := LoadDir(filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestLoadDir_NoFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "README.md", "not tabular")

	_, err := LoadDir(dir)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestLoadDir_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bmf.csv", "ein,name\n1,a,extra\n")

	_, err := LoadDir(dir)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestLoadDir_ConcatenatesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "eo1.csv", " EIN ,NAME,REVENUE_AMT\n012345678,Red Cross,1000\n")
	writeFile(t, dir, "eo2.csv", "ein,name,ntee_cd\n987654321, Salvation Army ,P20\n")

	ds, err := LoadDir(dir)
	require.NoError(t, err)

	assert.Equal(t, 2, ds.Len())
	assert.Equal(t, []string{"eo1.csv", "eo2.csv"}, ds.Info().Files)

	recs := ds.Lookup("red cross")
	require.Len(t, recs, 1)
	assert.Equal(t, "012345678", recs[0].EIN.Value, "leading zero must survive")
	assert.Equal(t, table.Text("1000"), recs[0].Revenue())
	assert.False(t, recs[0].Aux[0].Valid, "ntee_cd absent from eo1 should be null")

	recs = ds.Lookup("salvation army")
	require.Len(t, recs, 1)
	assert.Equal(t, table.Text("P20"), recs[0].Aux[0])
}

func TestDataset_LookupKeepsDuplicatesInOrder(t *testing.T) {
	tbl := table.New([]string{"ein", "name", "revenue_amt"})
	tbl.Append([]table.Cell{table.Text("123456789"), table.Text("Red Cross"), table.Text("1000")})
	tbl.Append([]table.Cell{table.Text("123456789"), table.Text("RED CROSS"), table.Text("500")})
	tbl.Append([]table.Cell{table.Text("111111111"), table.Null(), table.Null()})

	ds, err := NewDataset(tbl, "test", nil)
	require.NoError(t, err)

	recs := ds.Lookup("red cross")
	require.Len(t, recs, 2)
	assert.Equal(t, "1000", recs[0].Revenue().Value)
	assert.Equal(t, "500", recs[1].Revenue().Value)
	assert.Empty(t, ds.Lookup(""))
}

type fakeSource struct {
	calls int
	ds    *Dataset
	err   error
}

func (f *fakeSource) Load(ctx context.Context) (*Dataset, error) {
	f.calls++
	return f.ds, f.err
}

func (f *fakeSource) String() string { return "fake" }

func TestStore_CachesFirstSuccess(t *testing.T) {
	src := &fakeSource{ds: &Dataset{}}
	store := NewStore(src)

	for i := 0; i < 3; i++ {
		_, err := store.Dataset(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, src.calls)
	assert.True(t, store.Status().Loaded)
}

func TestStore_DoesNotCacheFailure(t *testing.T) {
	src := &fakeSource{err: ErrConfiguration}
	store := NewStore(src)

	_, err := store.Dataset(context.Background())
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.NotEmpty(t, store.Status().LastError)

	src.err = nil
	src.ds = &Dataset{}
	ds, err := store.Dataset(context.Background())
	require.NoError(t, err)
	assert.Same(t, src.ds, ds)
	assert.Equal(t, 2, src.calls)
	assert.Empty(t, store.Status().LastError)
}

func TestStore_ReloadKeepsPreviousOnFailure(t *testing.T) {
	first := &Dataset{}
	src := &fakeSource{ds: first}
	store := NewStore(src)

	_, err := store.Dataset(context.Background())
	require.NoError(t, err)

	src.ds, src.err = nil, errors.New("disk gone")
	_, err = store.Reload(context.Background())
	require.Error(t, err)

	ds, err := store.Dataset(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, ds)
}

// gatedSource returns first on the first load and blocks later loads until
// release is closed.
type gatedSource struct {
	first, next *Dataset
	calls       atomic.Int32
	started     chan struct{}
	release     chan struct{}
}

func (g *gatedSource) Load(ctx context.Context) (*Dataset, error) {
	if g.calls.Add(1) == 1 {
		return g.first, nil
	}
	close(g.started)
	select {
	case <-g.release:
		return g.next, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *gatedSource) String() string { return "gated" }

func TestStore_ReadsDoNotWaitForReload(t *testing.T) {
	src := &gatedSource{
		first:   &Dataset{info: Info{Source: "first"}},
		next:    &Dataset{info: Info{Source: "next"}},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	store := NewStore(src)
	ctx := context.Background()

	_, err := store.Dataset(ctx)
	require.NoError(t, err)

	reloaded := make(chan error, 1)
	go func() {
		_, err := store.Reload(ctx)
		reloaded <- err
	}()
	<-src.started

	type read struct {
		st Status
		ds *Dataset
	}
	reads := make(chan read, 1)
	go func() {
		st := store.Status()
		ds, _ := store.Dataset(ctx)
		reads <- read{st, ds}
	}()

	select {
	case r := <-reads:
		assert.True(t, r.st.Loaded)
		assert.Same(t, src.first, r.ds)
	case <-time.After(time.Second):
		t.Fatal("Status and Dataset waited for the reload to finish")
	}

	close(src.release)
	require.NoError(t, <-reloaded)

	ds, err := store.Dataset(ctx)
	require.NoError(t, err)
	assert.Same(t, src.next, ds)
	assert.Equal(t, int32(2), src.calls.Load())
}

// fakeRows is a minimal pgx.Rows over text values.
type fakeRows struct {
	cols []string
	data [][][]byte
	pos  int
}

func (r *fakeRows) Close()                        {}
func (r *fakeRows) Err() error                    { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }
func (r *fakeRows) Scan(dest ...any) error        { return errors.New("not supported") }
func (r *fakeRows) Values() ([]any, error)        { return nil, errors.New("not supported") }
func (r *fakeRows) Conn() *pgx.Conn               { return nil }

func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription {
	fds := make([]pgconn.FieldDescription, len(r.cols))
	for i, c := range r.cols {
		fds[i] = pgconn.FieldDescription{Name: c}
	}
	return fds
}

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) RawValues() [][]byte {
	return r.data[r.pos-1]
}

type fakeQuerier struct {
	sql  string
	rows pgx.Rows
}

func (q *fakeQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	q.sql = sql
	return q.rows, nil
}

func TestPostgresSource_Load(t *testing.T) {
	q := &fakeQuerier{rows: &fakeRows{
		cols: []string{"EIN", "Name", "revenue_amt"},
		data: [][][]byte{
			{[]byte("012345678"), []byte("Red Cross"), []byte("1000")},
			{[]byte("999999999"), []byte("Other"), nil},
		},
	}}

	ds, err := NewPostgresSource(q, "irs.eo_bmf").Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, `SELECT * FROM "irs"."eo_bmf"`, q.sql)
	assert.Equal(t, 2, ds.Len())
	assert.Equal(t, "postgres:irs.eo_bmf", ds.Info().Source)

	recs := ds.Lookup("red cross")
	require.Len(t, recs, 1)
	assert.Equal(t, "012345678", recs[0].EIN.Value)
	assert.False(t, ds.Lookup("other")[0].Revenue().Valid)
}

func TestPostgresSource_MissingEIN(t *testing.T) {
	q := &fakeQuerier{rows: &fakeRows{cols: []string{"name"}}}

	_, err := NewPostgresSource(q, "eo_bmf").Load(context.Background())
	assert.ErrorIs(t, err, ErrConfiguration)
}
