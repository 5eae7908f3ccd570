package geo

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScope(t *testing.T) {
	t.Run("Belgium sentinel is no filter", func(t *testing.T) {
		s, err := ParseScope("1000", "", "")
		require.NoError(t, err)
		assert.True(t, s.IsZero())
		assert.Empty(t, s.Query())
	})

	t.Run("province fills in its region", func(t *testing.T) {
		s, err := ParseScope("", "70000", "")
		require.NoError(t, err)
		assert.Equal(t, Flanders, s.Region)
		assert.Equal(t, LevelProvince, s.Level())
	})

	t.Run("municipality wins", func(t *testing.T) {
		s, err := ParseScope("2000", "70000", "71002")
		require.NoError(t, err)
		assert.Equal(t, LevelMunicipality, s.Level())
	})

	t.Run("province outside the region is rejected", func(t *testing.T) {
		_, err := ParseScope("3000", "10000", "")
		assert.ErrorIs(t, err, ErrInvalidScope)
		s, err := ParseScope("2000", "10000", "")
		require.NoError(t, err)
		assert.Equal(t, Antwerpen, s.Province)
	})

	t.Run("unknown codes are rejected", func(t *testing.T) {
		_, err := ParseScope("5000", "", "")
		assert.ErrorIs(t, err, ErrInvalidScope)
		_, err = ParseScope("", "12345", "")
		assert.ErrorIs(t, err, ErrInvalidScope)
		_, err = ParseScope("", "", "Hasselt")
		assert.ErrorIs(t, err, ErrInvalidScope)
	})

	t.Run("round trip through the query", func(t *testing.T) {
		s, err := ScopeFromQuery(url.Values{"province": {"40000"}, "municipality": {"44021"}})
		require.NoError(t, err)
		back, err := ScopeFromQuery(s.Query())
		require.NoError(t, err)
		assert.Equal(t, s, back)
	})
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, LevelMunicipality, l)

	l, err = ParseLevel("Province")
	require.NoError(t, err)
	assert.Equal(t, LevelProvince, l)

	_, err = ParseLevel("arrondissement")
	assert.Error(t, err)
}

func TestScopeMatches(t *testing.T) {
	all := Scope{}
	flanders := Scope{Region: Flanders}
	limburg := Scope{Region: Flanders, Province: Limburg}
	hasselt := Scope{Region: Flanders, Province: Limburg, Municipality: "71072"}

	t.Run("municipality rows", func(t *testing.T) {
		assert.True(t, all.Matches(LevelMunicipality, "81001"))
		assert.True(t, flanders.Matches(LevelMunicipality, "71002"))
		assert.False(t, flanders.Matches(LevelMunicipality, "81001"))
		assert.True(t, limburg.Matches(LevelMunicipality, "71002"))
		assert.False(t, limburg.Matches(LevelMunicipality, "11001"))
		assert.True(t, hasselt.Matches(LevelMunicipality, "71072"))
		// pre-merger Hasselt code reports under the new one
		assert.True(t, hasselt.Matches(LevelMunicipality, "71022"))
		assert.False(t, hasselt.Matches(LevelMunicipality, "71002"))
	})

	t.Run("merger across a province border", func(t *testing.T) {
		// Zwijndrecht (11056) became part of Beveren-Kruibeke-Zwijndrecht (46030)
		bkz := Scope{Municipality: "46030"}
		oostVlaanderen := Scope{Region: Flanders, Province: OostVlaanderen}
		antwerpen := Scope{Region: Flanders, Province: Antwerpen}
		assert.True(t, bkz.Matches(LevelMunicipality, "11056"))
		assert.True(t, oostVlaanderen.Matches(LevelMunicipality, "11056"))
		assert.False(t, antwerpen.Matches(LevelMunicipality, "11056"))
		assert.True(t, flanders.Matches(LevelMunicipality, "11056"))
	})

	t.Run("province rows", func(t *testing.T) {
		assert.True(t, all.Matches(LevelProvince, "70000"))
		assert.True(t, flanders.Matches(LevelProvince, "70000"))
		assert.False(t, flanders.Matches(LevelProvince, "50000"))
		assert.True(t, limburg.Matches(LevelProvince, "70000"))
		assert.False(t, hasselt.Matches(LevelProvince, "70000"))
	})

	t.Run("region rows", func(t *testing.T) {
		assert.True(t, all.Matches(LevelRegion, "2000"))
		assert.False(t, all.Matches(LevelRegion, "1000"))
		assert.True(t, flanders.Matches(LevelRegion, "2000"))
		assert.False(t, flanders.Matches(LevelRegion, "3000"))
		assert.False(t, limburg.Matches(LevelRegion, "2000"))
	})

	t.Run("national rows", func(t *testing.T) {
		assert.True(t, all.Matches(LevelBelgium, ""))
		assert.False(t, flanders.Matches(LevelBelgium, ""))
	})
}

func TestScopeLabel(t *testing.T) {
	dir := NewDirectory([]Municipality{{Code: "71072", Name: "HASSELT"}})
	assert.Equal(t, "België", Scope{}.Label(dir))
	assert.Equal(t, "Wallonië", Scope{Region: Wallonia}.Label(dir))
	assert.Equal(t, "Limburg", Scope{Province: Limburg}.Label(dir))
	assert.Equal(t, "Hasselt", Scope{Municipality: "71072"}.Label(dir))
	assert.Equal(t, "99999", Scope{Municipality: "99999"}.Label(nil))
}
