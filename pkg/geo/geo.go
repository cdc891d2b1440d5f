// Package geo holds the small amount of spherical geometry the listing search
// needs: distances, bounding box ↔ center/radius conversion and point in
// polygon tests. Coordinates are WGS84 degrees.
package geo

import "math"

const (
	earthRadiusKm    = 6371.0
	earthRadiusMiles = 3958.8
)

// Point is a longitude/latitude pair.
type Point struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// BBox is an axis-aligned rectangle in degrees.
type BBox struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// Center returns the midpoint of the box.
func (b BBox) Center() Point {
	return Point{Lon: (b.West + b.East) / 2, Lat: (b.South + b.North) / 2}
}

// Contains reports whether p lies inside the box, edges included.
func (b BBox) Contains(p Point) bool {
	return p.Lon >= b.West && p.Lon <= b.East && p.Lat >= b.South && p.Lat <= b.North
}

// DistanceKm returns the great circle distance between two points.
func DistanceKm(a, b Point) float64 {
	return haversine(a, b) * earthRadiusKm
}

// DistanceMiles returns the great circle distance between two points.
func DistanceMiles(a, b Point) float64 {
	return haversine(a, b) * earthRadiusMiles
}

func haversine(p1, p2 Point) float64 {
	dLat := degreesToRadians(p2.Lat - p1.Lat)
	dLon := degreesToRadians(p2.Lon - p1.Lon)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(degreesToRadians(p1.Lat))*math.Cos(degreesToRadians(p2.Lat))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// BBoxToCenterRadius returns the center of b and the radius in miles of the
// smallest circle around it that covers every corner.
func BBoxToCenterRadius(b BBox) (Point, float64) {
	center := b.Center()
	radius := 0.0
	for _, corner := range []Point{
		{Lon: b.West, Lat: b.South},
		{Lon: b.West, Lat: b.North},
		{Lon: b.East, Lat: b.South},
		{Lon: b.East, Lat: b.North},
	} {
		radius = math.Max(radius, DistanceMiles(center, corner))
	}
	return center, radius
}

// CenterRadiusToBBox returns the box enclosing a circle of radiusMiles.
func CenterRadiusToBBox(center Point, radiusMiles float64) BBox {
	dLat := radiansToDegrees(radiusMiles / earthRadiusMiles)
	cosLat := math.Cos(degreesToRadians(center.Lat))
	dLon := 180.0
	if cosLat > 1e-12 {
		dLon = math.Min(180, dLat/cosLat)
	}
	return BBox{
		West:  center.Lon - dLon,
		South: math.Max(-90, center.Lat-dLat),
		East:  center.Lon + dLon,
		North: math.Min(90, center.Lat+dLat),
	}
}

// PolygonBounds returns the bounding box of a ring.
func PolygonBounds(ring []Point) BBox {
	if len(ring) == 0 {
		return BBox{}
	}
	b := BBox{West: ring[0].Lon, East: ring[0].Lon, South: ring[0].Lat, North: ring[0].Lat}
	for _, p := range ring[1:] {
		b.West = math.Min(b.West, p.Lon)
		b.East = math.Max(b.East, p.Lon)
		b.South = math.Min(b.South, p.Lat)
		b.North = math.Max(b.North, p.Lat)
	}
	return b
}

// PointInPolygon is an even-odd ray casting test. The ring may be open or
// closed.
func PointInPolygon(pt Point, ring []Point) bool {
	n := len(ring)
	if n < 3 {
		return false
	}
	if !PolygonBounds(ring).Contains(pt) {
		return false
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i].Lon, ring[i].Lat
		xj, yj := ring[j].Lon, ring[j].Lat
		if (yi > pt.Lat) != (yj > pt.Lat) && pt.Lon < (xj-xi)*(pt.Lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

func radiansToDegrees(rad float64) float64 {
	return rad * 180.0 / math.Pi
}
