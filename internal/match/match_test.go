package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/orgenrich/internal/reference"
	"github.com/JonMunkholm/orgenrich/internal/table"
)

func dataset(t *testing.T, rows ...[]string) *reference.Dataset {
	t.Helper()
	tbl, err := table.FromRecords([]string{"ein", "name", "revenue_amt"}, rows)
	require.NoError(t, err)
	ds, err := reference.NewDataset(tbl, "test", nil)
	require.NoError(t, err)
	return ds
}

func upload(t *testing.T, names ...string) *table.Table {
	t.Helper()
	recs := make([][]string, len(names))
	for i, n := range names {
		recs[i] = []string{n, "x"}
	}
	tbl, err := table.FromRecords([]string{"Org Name", "Notes"}, recs)
	require.NoError(t, err)
	return tbl
}

func TestJoin_FanOutAndLeftPreserving(t *testing.T) {
	ds := dataset(t,
		[]string{"123456789", "red cross", "1000"},
		[]string{"123456789", "Red Cross", "500"},
	)
	in := upload(t, "Red Cross", "red cross", "Unknown Org")

	res := Join(in, "Org Name", ds)
	out := res.Table

	assert.Equal(t, []string{"Org Name", "Notes", "EIN", "ntee_cd", "revenue_amt", "income_amt", "asset_amt"}, out.Columns)
	require.Equal(t, 5, out.Len())
	assert.Equal(t, 3, res.InputRows)
	assert.Equal(t, 2, res.MatchedRows)

	wantNames := []string{"Red Cross", "Red Cross", "red cross", "red cross", "Unknown Org"}
	wantRevenue := []string{"1000", "500", "1000", "500", ""}
	for i := range wantNames {
		assert.Equal(t, wantNames[i], out.Get(i, "Org Name").Value, "row %d", i)
		assert.Equal(t, wantRevenue[i], out.Get(i, "revenue_amt").String(), "row %d", i)
	}
	for i := 0; i < 4; i++ {
		assert.Equal(t, "123456789", out.Get(i, "EIN").Value)
	}
	assert.False(t, out.Get(4, "EIN").Valid, "unmatched row should have null EIN")
	assert.Equal(t, "x", out.Get(4, "Notes").Value)
}

func TestJoin_NormalizationInsensitive(t *testing.T) {
	ds := dataset(t, []string{"111111111", "Habitat For Humanity", "10"})

	for _, name := range []string{"habitat for humanity", "  HABITAT FOR HUMANITY ", "Habitat For Humanity"} {
		res := Join(upload(t, name), "Org Name", ds)
		require.Equal(t, 1, res.Table.Len())
		assert.Equal(t, "111111111", res.Table.Get(0, "EIN").Value, "name %q", name)
	}
}

func TestJoin_ExactOnly(t *testing.T) {
	ds := dataset(t, []string{"111111111", "red cross", "10"})

	res := Join(upload(t, "American Red Cross", "red  cross"), "Org Name", ds)

	assert.Equal(t, 0, res.MatchedRows)
	assert.Equal(t, 2, res.Table.Len())
}

func TestJoin_NullNameNeverMatches(t *testing.T) {
	ds := dataset(t, []string{"111111111", "", "10"})

	res := Join(upload(t, "", "y"), "Org Name", ds)

	assert.Equal(t, 0, res.MatchedRows)
}

func TestJoin_ExistingEINColumnPassesThrough(t *testing.T) {
	ds := dataset(t, []string{"123456789", "red cross", "10"})
	in, err := table.FromRecords([]string{"Name", "EIN"}, [][]string{{"Red Cross", "mine"}})
	require.NoError(t, err)

	res := Join(in, "Name", ds)

	assert.Equal(t, "EIN.1", res.EINColumn)
	assert.Equal(t, "mine", res.Table.Get(0, "EIN").Value)
	assert.Equal(t, "123456789", res.Table.Get(0, "EIN.1").Value)
	assert.Equal(t, []string{"Name", "EIN"}, in.Columns, "input must not be modified")
}

func TestJoin_NilDataset(t *testing.T) {
	res := Join(upload(t, "Red Cross"), "Org Name", nil)

	require.Equal(t, 1, res.Table.Len())
	assert.False(t, res.Table.Get(0, "EIN").Valid)
}
