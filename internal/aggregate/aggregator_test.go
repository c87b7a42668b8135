package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spending/internal/core"
	"spending/internal/engine"
	"spending/internal/storage"
)

func newAggregator(t *testing.T, size int) *Aggregator {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "engine.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return New(engine.New(repo.DB()), size)
}

func TestAggregateWorkedExample(t *testing.T) {
	a := newAggregator(t, 10)
	recs := []core.Record{
		{"name": "Acme Corp, LLC", "amount": "100"},
		{"name": "Acme Corp, Inc", "amount": "50"},
		{"name": "Zeta", "amount": "0"},
		{"name": "Beta", "amount": nil},
	}

	got, err := a.AggregateRecords(context.Background(), recs)
	require.NoError(t, err)

	assert.Equal(t, []core.Entry{{Name: "Acme Corp", Total: 150}, {Name: "Zeta", Total: 0}}, got.Top)
	assert.Empty(t, got.Bottom)
	assert.Equal(t, 3, got.Rows)
	assert.Equal(t, 1, got.Dropped)
	assert.Equal(t, 2, got.Groups)
}

func TestAggregateDropsRowsWithAnyMissingField(t *testing.T) {
	a := newAggregator(t, 10)
	recs := []core.Record{
		{"name": "Keep", "amount": json.Number("10"), "code": "001"},
		{"name": "NoCode", "amount": json.Number("20")},
		{"name": "NullCode", "amount": json.Number("30"), "code": nil},
		{"amount": json.Number("40"), "code": "004"},
	}

	got, err := a.AggregateRecords(context.Background(), recs)
	require.NoError(t, err)
	assert.Equal(t, []core.Entry{{Name: "Keep", Total: 10}}, got.Top)
	assert.Equal(t, 3, got.Dropped)
}

func TestAggregateDropsMalformedAmounts(t *testing.T) {
	a := newAggregator(t, 10)
	recs := []core.Record{
		{"name": "Good", "amount": "12.5"},
		{"name": "Bad", "amount": "twelve"},
		{"name": "Good", "amount": json.Number("7.5")},
	}

	got, err := a.AggregateRecords(context.Background(), recs)
	require.NoError(t, err)
	assert.Equal(t, []core.Entry{{Name: "Good", Total: 20}}, got.Top)
	assert.Equal(t, 1, got.Dropped)
}

func TestAggregateDropsOutOfRangeAmounts(t *testing.T) {
	a := newAggregator(t, 10)
	recs := []core.Record{
		{"name": "Big", "amount": "1e400"},
		{"name": "Big", "amount": json.Number("-1e400")},
		{"name": "Ok", "amount": "5"},
		{"name": "Other", "amount": json.Number("3")},
	}

	got, err := a.AggregateRecords(context.Background(), recs)
	require.NoError(t, err)
	assert.Equal(t, []core.Entry{{Name: "Ok", Total: 5}, {Name: "Other", Total: 3}}, got.Top)
	assert.Equal(t, []core.Entry{{Name: "Other", Total: 3}, {Name: "Ok", Total: 5}}, got.Bottom)
	assert.Equal(t, 2, got.Dropped)
	assert.Equal(t, 2, got.Groups)
}

func TestAggregateOrderingAndLimits(t *testing.T) {
	a := newAggregator(t, 10)
	var recs []core.Record
	for i := 1; i <= 15; i++ {
		recs = append(recs, core.Record{"name": fmt.Sprintf("R%02d, Agency", i), "amount": json.Number(fmt.Sprint(i * 10))})
	}
	recs = append(recs,
		core.Record{"name": "Neg", "amount": json.Number("-5")},
		core.Record{"name": "Nil", "amount": json.Number("0")},
	)

	got, err := a.AggregateRecords(context.Background(), recs)
	require.NoError(t, err)

	require.Len(t, got.Top, 10)
	require.Len(t, got.Bottom, 10)
	assert.Equal(t, 10, got.Size)
	assert.Equal(t, core.Entry{Name: "R15", Total: 150}, got.Top[0])
	assert.Equal(t, core.Entry{Name: "R01", Total: 10}, got.Bottom[0])
	assert.True(t, sort.SliceIsSorted(got.Top, func(i, j int) bool { return got.Top[i].Total > got.Top[j].Total }))
	assert.True(t, sort.SliceIsSorted(got.Bottom, func(i, j int) bool { return got.Bottom[i].Total < got.Bottom[j].Total }))
	for _, e := range got.Bottom {
		assert.Greater(t, e.Total, 0.0)
	}
}

func TestAggregateTiesKeepEncounterOrder(t *testing.T) {
	a := newAggregator(t, 10)
	recs := []core.Record{
		{"name": "Charlie", "amount": "5"},
		{"name": "Alpha", "amount": "5"},
		{"name": "Bravo", "amount": "5"},
	}

	got, err := a.AggregateRecords(context.Background(), recs)
	require.NoError(t, err)
	names := func(es []core.Entry) []string {
		out := make([]string, len(es))
		for i, e := range es {
			out[i] = e.Name
		}
		return out
	}
	assert.Equal(t, []string{"Charlie", "Alpha", "Bravo"}, names(got.Top))
	assert.Equal(t, []string{"Charlie", "Alpha", "Bravo"}, names(got.Bottom))
}

func TestAggregateNoPadding(t *testing.T) {
	a := newAggregator(t, 10)
	recs := []core.Record{
		{"name": "One", "amount": "1"},
		{"name": "Two", "amount": "2"},
		{"name": "Zero", "amount": "0"},
	}

	got, err := a.AggregateRecords(context.Background(), recs)
	require.NoError(t, err)
	assert.Len(t, got.Top, 3)
	assert.Len(t, got.Bottom, 2)
}

func TestAggregateAllZero(t *testing.T) {
	a := newAggregator(t, 10)
	recs := []core.Record{
		{"name": "A", "amount": "0"},
		{"name": "B", "amount": "0.00"},
	}

	got, err := a.AggregateRecords(context.Background(), recs)
	require.NoError(t, err)
	assert.Len(t, got.Top, 2)
	assert.Empty(t, got.Bottom)
}

func TestAggregateEmpty(t *testing.T) {
	a := newAggregator(t, 10)
	got, err := a.AggregateRecords(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, got.Empty())
	assert.Zero(t, got.Groups)
}

func TestAggregateConservesTotal(t *testing.T) {
	a := newAggregator(t, 100000)
	f := gofakeit.New(42)

	companies := make([]string, 25)
	for i := range companies {
		companies[i] = f.Company()
		if f.Bool() {
			companies[i] += ", " + f.CompanySuffix()
		}
	}

	var (
		recs []core.Record
		want float64
	)
	for i := 0; i < 500; i++ {
		amount := fmt.Sprintf("%.2f", f.Float64Range(-1000, 100000))
		rec := core.Record{"name": companies[f.IntRange(0, len(companies)-1)], "amount": amount}
		if f.IntRange(0, 9) == 0 {
			rec["amount"] = nil
		} else {
			v, err := core.ParseAmount(amount)
			require.NoError(t, err)
			want += v
		}
		recs = append(recs, rec)
	}

	got, err := a.AggregateRecords(context.Background(), recs)
	require.NoError(t, err)
	assert.Equal(t, got.Groups, len(got.Top))
	assert.InDelta(t, want, core.TotalOf(got.Top), 1e-6*(1+abs(want)))
	for _, e := range got.Top {
		assert.Equal(t, e.Name, core.CleanName(e.Name))
	}
}

func TestAggregateIsDeterministic(t *testing.T) {
	a := newAggregator(t, 10)
	recs := []core.Record{
		{"name": "A, x", "amount": "3"},
		{"name": "B", "amount": "3"},
		{"name": "A, y", "amount": "1"},
		{"name": "C", "amount": "4"},
	}

	first, err := a.AggregateRecords(context.Background(), recs)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := a.AggregateRecords(context.Background(), recs)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestAggregateSchemaMismatch(t *testing.T) {
	a := newAggregator(t, 10)
	cases := map[string]string{
		"empty table":    "",
		"missing amount": "name,code\nAcme,1\n",
		"missing both":   "id\n1\n",
	}
	for name, table := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := a.Aggregate(context.Background(), strings.NewReader(table))
			var se *core.SchemaError
			require.True(t, errors.As(err, &se), "got %v", err)
			assert.Contains(t, se.Missing, core.ColumnAmount)
		})
	}
}

func TestLoadDropsRaggedRows(t *testing.T) {
	table := "amount,name\n1,A\n2\n3,B,extra\n4,C\n"
	rows, dropped, err := Load(context.Background(), strings.NewReader(table))
	require.NoError(t, err)
	assert.Equal(t, []engine.Row{{Name: "A", Amount: 1}, {Name: "C", Amount: 4}}, rows)
	assert.Equal(t, 2, dropped)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
