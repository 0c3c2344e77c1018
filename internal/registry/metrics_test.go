package registry

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const accountsPayload = `{
	"resultatregnskap": {
		"sumDriftsinntekter": 123,
		"arsresultat": 45,
		"driftsresultatFoerFinans": 40
	},
	"balanse": {
		"sumEiendeler": 1000,
		"egenkapitalOgGjeld": {
			"sumEgenkapital": 400,
			"sumGjeld": 600
		},
		"poster": [
			{"sumGjeld": 50},
			{"sumGjeld": 70}
		]
	}
}`

func TestFindNumbers(t *testing.T) {
	leaves, err := FindNumbers([]byte(`{"a": {"b": 1.5, "flag": true, "name": "x"}, "list": [2, {"c": -3}], "e": 1e3}`))
	require.NoError(t, err)

	var paths []string
	for _, leaf := range leaves {
		paths = append(paths, leaf.Path)
	}
	assert.Equal(t, []string{"a.b", "list[0]", "list[1].c", "e"}, paths, "document order, booleans skipped")
	assert.True(t, leaves[3].Value.Equal(decimal.NewFromInt(1000)))

	_, err = FindNumbers([]byte(`{"a": `))
	assert.Error(t, err)

	empty, err := FindNumbers(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestFindByKey(t *testing.T) {
	leaves, err := FindNumbers([]byte(accountsPayload))
	require.NoError(t, err)

	hit, ok := FindByKey(leaves, []string{"sumDriftsinntekter"})
	require.True(t, ok)
	assert.Equal(t, "resultatregnskap.sumDriftsinntekter", hit.Path)

	hit, ok = FindByKey(leaves, []string{"sumGjeld"})
	require.True(t, ok)
	assert.Equal(t, "balanse.egenkapitalOgGjeld.sumGjeld", hit.Path, "first in document order")

	hit, ok = FindByKey(leaves, []string{"poster"})
	require.True(t, ok)
	assert.Equal(t, "balanse.poster[0].sumGjeld", hit.Path, "substring fallback")

	_, ok = FindByKey(leaves, []string{"varelager"})
	assert.False(t, ok)
}

func TestFindByKey_Exclude(t *testing.T) {
	leaves, err := FindNumbers([]byte(`{"balanse": {"egenkapitalOgGjeld": {"sumEgenkapital": 400}, "egenkapital": {"sumEgenkapital": 380}}}`))
	require.NoError(t, err)

	hit, ok := FindByKey(leaves, []string{"sumEgenkapital"}, "egenkapitaloggjeld")
	require.True(t, ok)
	assert.Equal(t, "balanse.egenkapital.sumEgenkapital", hit.Path)
	assert.True(t, hit.Value.Equal(decimal.NewFromInt(380)))
}

func TestMapMetrics(t *testing.T) {
	m, err := MapMetrics([]byte(accountsPayload))
	require.NoError(t, err)

	check := func(name string, want int64, got decimal.NullDecimal) {
		t.Helper()
		require.True(t, got.Valid, name)
		assert.True(t, got.Decimal.Equal(decimal.NewFromInt(want)), "%s: got %s", name, got.Decimal)
	}
	check("assets", 1000, m.Assets)
	check("equity falls back to the combined section", 400, m.Equity)
	check("liabilities", 600, m.Liabilities)
	check("revenue", 123, m.Revenue)
	check("ebit", 40, m.EBIT)
	check("net result", 45, m.NetResult)
}

func TestMapMetrics_FallbacksAndGaps(t *testing.T) {
	m, err := MapMetrics([]byte(`[{"eiendeler": {}, "egenkapitalGjeld": {"sumEgenkapitalOgGjeld": 900}}]`))
	require.NoError(t, err)

	require.True(t, m.Assets.Valid)
	assert.True(t, m.Assets.Decimal.Equal(decimal.NewFromInt(900)), "assets fall back to total equity and liabilities")
	assert.False(t, m.Liabilities.Valid)
	assert.False(t, m.Revenue.Valid)
	assert.False(t, m.NetResult.Valid)

	_, err = MapMetrics([]byte(`not json`))
	assert.Error(t, err)
}
