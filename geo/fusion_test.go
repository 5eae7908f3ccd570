package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeNis(t *testing.T) {
	n, ok := NormalizeNis("11007")
	assert.True(t, ok)
	assert.Equal(t, "11002", n)

	n, _ = NormalizeNis("44045")
	assert.Equal(t, "46029", n)

	n, _ = NormalizeNis("71002")
	assert.Equal(t, "71002", n)

	n, _ = NormalizeNis("1001")
	assert.Equal(t, "01001", n)

	_, ok = NormalizeNis("  ")
	assert.False(t, ok)
}

func TestFusionLookups(t *testing.T) {
	assert.True(t, WasFused("37012"))
	assert.False(t, WasFused("37021"))

	f, ok := FusionInfo("37021")
	assert.True(t, ok)
	assert.Equal(t, "Wingene", f.NewName)

	f, ok = FusionInfo("23024")
	assert.True(t, ok)
	assert.Equal(t, "23106", f.NewCode)

	assert.Equal(t, []string{"46003", "46013", "11056"}, Constituents("46030"))
	assert.Nil(t, Constituents("11001"))
}

type nisRow struct {
	code  string
	value any
}

func TestAggregateByNormalizedNis(t *testing.T) {
	rows := []nisRow{
		{"23023", 1.0},
		{"23024", 2.0},
		{"23032", 4.0},
		{"11001", 5.0},
		{"11001", "bad"},
		{"", 9.0},
	}
	code := func(r nisRow) (string, bool) { return r.code, r.code != "" }
	value := func(r nisRow) (float64, bool) {
		v, ok := r.value.(float64)
		return v, ok
	}

	tests := []struct {
		reduce Reducer
		want   float64
	}{
		{Sum, 7},
		{Avg, 7.0 / 3},
		{Max, 4},
		{Min, 1},
	}
	for _, tt := range tests {
		t.Run(string(tt.reduce), func(t *testing.T) {
			got := AggregateByNormalizedNis(rows, code, value, tt.reduce)
			assert.Len(t, got, 2)
			assert.InDelta(t, tt.want, got["23106"], 1e-9)
			assert.Equal(t, 5.0, got["11001"])
		})
	}
}
