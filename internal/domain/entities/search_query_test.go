package entities

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/zatekoja/propertymap/backend/pkg/errors"
	"github.com/zatekoja/propertymap/backend/pkg/geo"
)

func decodeParams(t *testing.T, raw string) map[string]any {
	t.Helper()
	var params map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &params))
	return params
}

func TestSearchQueryHash_IgnoresKeyOrder(t *testing.T) {
	pairs := [][2]string{
		{
			`{"west": -93.3, "south": 36.4, "east": -93.1, "north": 36.6, "radius": 5}`,
			`{"radius": 5, "north": 36.6, "east": -93.1, "south": 36.4, "west": -93.3}`,
		},
		{
			`{"city": "Branson", "state": "mo"}`,
			`{"state": "MO", "city": " branson "}`,
		},
		{
			`{"bbox": [-93.3, 36.4, -93.1, 36.6]}`,
			`{"north": "36.6", "west": "-93.3", "east": -93.1, "south": 36.4}`,
		},
	}

	for _, pair := range pairs {
		a, err := ParseSearchQuery(decodeParams(t, pair[0]))
		require.NoError(t, err)
		b, err := ParseSearchQuery(decodeParams(t, pair[1]))
		require.NoError(t, err)

		hashA, err := a.Hash()
		require.NoError(t, err)
		hashB, err := b.Hash()
		require.NoError(t, err)

		assert.Equal(t, hashA, hashB, "%s vs %s", pair[0], pair[1])
		assert.Len(t, hashA, 64)
	}
}

func TestSearchQueryHash_DistinguishesQueries(t *testing.T) {
	a, err := ParseSearchQuery(map[string]any{"zip": "65616"})
	require.NoError(t, err)
	b, err := ParseSearchQuery(map[string]any{"zip": "65616", "radius": 3.0})
	require.NoError(t, err)

	hashA, _ := a.Hash()
	hashB, _ := b.Hash()
	assert.NotEqual(t, hashA, hashB)
}

func TestParseSearchQuery_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]any
	}{
		{name: "empty", params: map[string]any{}},
		{name: "unknown key", params: map[string]any{"zip": "65616", "beds": 3}},
		{name: "bbox wrong arity", params: map[string]any{"bbox": []any{1.0, 2.0, 3.0}}},
		{name: "bbox non numeric", params: map[string]any{"bbox": []any{"a", 36.4, -93.1, 36.6}}},
		{name: "bbox inverted", params: map[string]any{"bbox": []any{-93.1, 36.4, -93.3, 36.6}}},
		{name: "bbox out of range", params: map[string]any{"bbox": []any{-193.3, 36.4, -93.1, 36.6}}},
		{name: "partial edges", params: map[string]any{"west": -93.3, "south": 36.4}},
		{name: "polygon too short", params: map[string]any{"polygon": []any{[]any{0.0, 0.0}, []any{1.0, 1.0}}}},
		{name: "polygon bad pair", params: map[string]any{"polygon": []any{[]any{0.0}, []any{1.0, 1.0}, []any{2.0, 0.0}}}},
		{name: "city without state", params: map[string]any{"city": "Branson"}},
		{name: "zip not digits", params: map[string]any{"zip": "6561A"}},
		{name: "two localities", params: map[string]any{"zip": "65616", "city": "Branson", "state": "MO"}},
		{name: "radius non numeric", params: map[string]any{"zip": "65616", "radius": "far"}},
		{name: "radius too large", params: map[string]any{"zip": "65616", "radius": 500.0}},
		{name: "city not a string", params: map[string]any{"city": 12.0, "state": "MO"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSearchQuery(tt.params)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation), "got %v", err)
		})
	}
}

func TestParseSearchQuery_Accepts(t *testing.T) {
	q, err := ParseSearchQuery(map[string]any{"bbox": "-93.3, 36.4, -93.1, 36.6"})
	require.NoError(t, err)
	assert.Equal(t, LocalityBBox, q.Locality())

	q, err = ParseSearchQuery(map[string]any{"zip": 5001.0})
	require.NoError(t, err)
	assert.Equal(t, "05001", q.Zip)

	q, err = ParseSearchQuery(map[string]any{"polygon": `[[0,0],[1,0],[1,1],[0,1]]`})
	require.NoError(t, err)
	assert.Equal(t, LocalityPolygon, q.Locality())
	assert.Len(t, q.Polygon, 4)
}

func TestUpstreamTarget(t *testing.T) {
	bbox, err := ParseSearchQuery(map[string]any{"bbox": []any{-93.3, 36.4, -93.1, 36.6}})
	require.NoError(t, err)
	target := bbox.UpstreamTarget(10)
	assert.Equal(t, UpstreamCoordinates, target.Kind)
	assert.InDelta(t, -93.2, target.Center.Lon, 1e-9)
	assert.InDelta(t, 36.5, target.Center.Lat, 1e-9)
	assert.Greater(t, target.RadiusMiles, 0.0)
	assert.Less(t, target.RadiusMiles, 10.0)

	city, err := ParseSearchQuery(map[string]any{"city": "Branson", "state": "mo"})
	require.NoError(t, err)
	assert.Equal(t, Target{Kind: UpstreamCity, City: "Branson", State: "MO", RadiusMiles: 10}, city.UpstreamTarget(10))

	zip, err := ParseSearchQuery(map[string]any{"zip": "65616", "radius": "2.5"})
	require.NoError(t, err)
	assert.Equal(t, Target{Kind: UpstreamZip, Zip: "65616", RadiusMiles: 2.5}, zip.UpstreamTarget(10))
}

func TestSearchQueryContains(t *testing.T) {
	poly, err := ParseSearchQuery(map[string]any{"polygon": []any{
		[]any{0.0, 0.0}, []any{10.0, 0.0}, []any{10.0, 10.0}, []any{0.0, 10.0},
	}})
	require.NoError(t, err)
	assert.True(t, poly.Contains(geo.Point{Lon: 5, Lat: 5}))
	assert.False(t, poly.Contains(geo.Point{Lon: 11, Lat: 5}))

	zip, err := ParseSearchQuery(map[string]any{"zip": "65616"})
	require.NoError(t, err)
	assert.True(t, zip.Contains(geo.Point{Lon: 170, Lat: -80}))
}
