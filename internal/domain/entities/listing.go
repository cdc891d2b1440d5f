package entities

import (
	"fmt"

	"github.com/zatekoja/propertymap/backend/pkg/geo"
)

// PointEpsilon is the half-width in degrees of the square drawn around a
// listing's coordinate.
const PointEpsilon = 0.0001

// Canonical property keys present on every normalized listing.
const (
	PropListingID = "listing_id"
	PropPrice     = "price"
	PropBeds      = "beds"
	PropBaths     = "baths"
	PropSource    = "source"
)

// Geometry is a GeoJSON polygon. Coordinates hold rings of [lon, lat] pairs.
type Geometry struct {
	Type        string         `json:"type"`
	Coordinates [][][2]float64 `json:"coordinates"`
}

// NormalizedListing is a GeoJSON Feature describing one property for sale.
type NormalizedListing struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// PointGeometry approximates a point with a closed five-vertex square of
// half-width PointEpsilon. The first and last vertices are identical.
func PointGeometry(lon, lat float64) Geometry {
	ring := [][2]float64{
		{lon - PointEpsilon, lat - PointEpsilon},
		{lon + PointEpsilon, lat - PointEpsilon},
		{lon + PointEpsilon, lat + PointEpsilon},
		{lon - PointEpsilon, lat + PointEpsilon},
		{lon - PointEpsilon, lat - PointEpsilon},
	}
	return Geometry{Type: "Polygon", Coordinates: [][][2]float64{ring}}
}

// Center returns the point the geometry was built around.
func (l NormalizedListing) Center() (geo.Point, bool) {
	if len(l.Geometry.Coordinates) == 0 || len(l.Geometry.Coordinates[0]) < 3 {
		return geo.Point{}, false
	}
	ring := l.Geometry.Coordinates[0]
	return geo.Point{
		Lon: (ring[0][0] + ring[2][0]) / 2,
		Lat: (ring[0][1] + ring[2][1]) / 2,
	}, true
}

// HasCoordinates reports whether the listing was placed from upstream
// coordinates. Listings without them sit at exactly (0,0).
func (l NormalizedListing) HasCoordinates() bool {
	center, ok := l.Center()
	return ok && (center.Lon != 0 || center.Lat != 0)
}

// ListingID returns the canonical listing id.
func (l NormalizedListing) ListingID() string {
	return stringProp(l.Properties, PropListingID)
}

// Source returns the provider tag.
func (l NormalizedListing) Source() string {
	return stringProp(l.Properties, PropSource)
}

// Price returns the canonical price. Listings decoded from a cache payload
// carry float64 numbers, freshly normalized ones carry int64.
func (l NormalizedListing) Price() int64 {
	switch v := l.Properties[PropPrice].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func stringProp(props map[string]any, key string) string {
	v, ok := props[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
