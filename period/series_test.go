package period

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShare(t *testing.T) {
	assert.Equal(t, 25.0, Share(1, 4))
	assert.Equal(t, 0.0, Share(5, 0))
	assert.Equal(t, 0.0, Share(0, 0))
	assert.Equal(t, 0.0, Share(1, math.Inf(1)))
	assert.False(t, math.IsNaN(Share(math.NaN(), 3)))
}

func TestChange(t *testing.T) {
	c, ok := Change(120, 100)
	assert.True(t, ok)
	assert.InDelta(t, 0.2, c, 1e-9)

	_, ok = Change(5, 0)
	assert.False(t, ok)
	_, ok = Change(math.NaN(), 1)
	assert.False(t, ok)
}

func brokenDown() []Point {
	return []Point{
		{Sort: 2020, Label: "2020", Value: 2, Breakdown: "M"},
		{Sort: 2020, Label: "2020", Value: 6, Breakdown: "F"},
		{Sort: 2021, Label: "2021", Value: 5, Breakdown: "F"},
	}
}

func TestTotalsAndShares(t *testing.T) {
	assert.Equal(t, []Point{
		{Sort: 2020, Label: "2020", Value: 8},
		{Sort: 2021, Label: "2021", Value: 5},
	}, Totals(brokenDown()))

	shares := Shares(brokenDown())
	assert.Equal(t, 25.0, shares[0].Value)
	assert.Equal(t, 75.0, shares[1].Value)
	assert.Equal(t, 100.0, shares[2].Value)

	zero := Shares([]Point{{Sort: 1, Value: 0, Breakdown: "a"}})
	assert.Equal(t, 0.0, zero[0].Value)
}

func TestBreakdownHelpers(t *testing.T) {
	pts := brokenDown()
	assert.Equal(t, []string{"M", "F"}, Breakdowns(pts))
	assert.Len(t, Filter(pts, "F"), 2)
	assert.Empty(t, Filter(pts, "X"))
	assert.Equal(t, []string{"2020", "2021"}, Labels(pts))

	last, ok := Latest(pts)
	assert.True(t, ok)
	assert.Equal(t, 2021.0, last.Sort)
	_, ok = Latest(nil)
	assert.False(t, ok)
}

func TestMatrix(t *testing.T) {
	labels, keys, values := Matrix(brokenDown())
	assert.Equal(t, []string{"2020", "2021"}, labels)
	assert.Equal(t, []string{"M", "F"}, keys)
	assert.Equal(t, [][]float64{{2, 0}, {6, 5}}, values)

	labels, keys, values = Matrix(nil)
	assert.Empty(t, labels)
	assert.Empty(t, keys)
	assert.Empty(t, values)
}
