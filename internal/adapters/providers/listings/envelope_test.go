package listings

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvelope(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		wantListings  int
		wantTotalPage int
	}{
		{name: "explicit total pages", body: `{"properties":[{"id":1}],"total_pages":3}`, wantListings: 1, wantTotalPage: 3},
		{name: "camel total pages", body: `{"listings":[{"id":1},{"id":2}],"totalPages":"2"}`, wantListings: 2, wantTotalPage: 2},
		{name: "derived from total", body: `{"results":[{"id":1}],"total":81}`, wantListings: 1, wantTotalPage: 3},
		{name: "no paging info", body: `{"homes":[{"id":1}]}`, wantListings: 1, wantTotalPage: 1},
		{name: "first non-empty key wins", body: `{"properties":[],"listings":[{"id":1}],"data":[{"id":2},{"id":3}]}`, wantListings: 1, wantTotalPage: 1},
		{name: "nested data wrapper", body: `{"data":{"home_search":{"results":[{"id":1},{"id":2}],"total":120}}}`, wantListings: 2, wantTotalPage: 3},
		{name: "empty page", body: `{"properties":[],"total_pages":4}`, wantListings: 0, wantTotalPage: 4},
		{name: "non array candidate ignored", body: `{"properties":"none","results":[{"id":1}]}`, wantListings: 1, wantTotalPage: 1},
		{name: "huge total pages capped", body: `{"properties":[{"id":1}],"total_pages":1e300}`, wantListings: 1, wantTotalPage: math.MaxInt32},
		{name: "huge total capped", body: `{"properties":[{"id":1}],"total":9.3e18}`, wantListings: 1, wantTotalPage: math.MaxInt32},
		{name: "fractional total pages", body: `{"properties":[{"id":1}],"total_pages":0.5}`, wantListings: 1, wantTotalPage: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := ParseEnvelope([]byte(tt.body), 40)
			require.NoError(t, err)
			assert.Len(t, env.Listings, tt.wantListings)
			assert.Equal(t, tt.wantTotalPage, env.TotalPages)
		})
	}
}

func TestParseEnvelope_InvalidJSON(t *testing.T) {
	_, err := ParseEnvelope([]byte(`<html>bad gateway</html>`), 40)
	assert.Error(t, err)
}
