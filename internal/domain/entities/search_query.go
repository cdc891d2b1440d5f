package entities

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	apperrors "github.com/zatekoja/propertymap/backend/pkg/errors"
	"github.com/zatekoja/propertymap/backend/pkg/geo"
)

// LocalityKind identifies which filter drives a search.
type LocalityKind string

const (
	LocalityBBox    LocalityKind = "bbox"
	LocalityPolygon LocalityKind = "polygon"
	LocalityCity    LocalityKind = "city"
	LocalityZip     LocalityKind = "zip"
)

// UpstreamKind is the endpoint shape a search is sent to.
type UpstreamKind string

const (
	UpstreamCoordinates UpstreamKind = "coordinates"
	UpstreamCity        UpstreamKind = "city"
	UpstreamZip         UpstreamKind = "zip"
)

// BoundingBox is a west/south/east/north rectangle in degrees.
type BoundingBox struct {
	West  float64 `json:"west" validate:"gte=-180,lte=180"`
	South float64 `json:"south" validate:"gte=-90,lte=90"`
	East  float64 `json:"east" validate:"gte=-180,lte=180"`
	North float64 `json:"north" validate:"gte=-90,lte=90"`
}

// Geo converts the box for use with the geometry helpers.
func (b BoundingBox) Geo() geo.BBox {
	return geo.BBox{West: b.West, South: b.South, East: b.East, North: b.North}
}

// Coordinate is a single polygon vertex.
type Coordinate struct {
	Lon float64 `json:"lon" validate:"gte=-180,lte=180"`
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
}

// SearchQuery is a spatial listing search. Exactly one of BBox, Polygon,
// City/State or Zip is set.
type SearchQuery struct {
	BBox        *BoundingBox `json:"bbox,omitempty"`
	Polygon     []Coordinate `json:"polygon,omitempty" validate:"omitempty,min=3,dive"`
	City        string       `json:"city,omitempty" validate:"omitempty,max=100"`
	State       string       `json:"state,omitempty" validate:"omitempty,max=50"`
	Zip         string       `json:"zip,omitempty" validate:"omitempty,numeric,len=5"`
	RadiusMiles *float64     `json:"radius,omitempty" validate:"omitempty,gt=0,lte=200"`
}

// Target is the upstream request a query resolves to.
type Target struct {
	Kind        UpstreamKind
	Center      geo.Point
	City        string
	State       string
	Zip         string
	RadiusMiles float64
}

var queryValidator = validator.New(validator.WithRequiredStructEnabled())

// ParseSearchQuery builds a SearchQuery from loosely typed request parameters.
// Only recognised keys are accepted; numeric fields may be numbers or numeric
// strings. The result is validated.
func ParseSearchQuery(params map[string]any) (SearchQuery, error) {
	var q SearchQuery

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var edges [4]*float64
	for _, key := range keys {
		value := params[key]
		switch key {
		case "bbox":
			box, err := parseBBox(value)
			if err != nil {
				return SearchQuery{}, err
			}
			q.BBox = &box
		case "west", "south", "east", "north":
			f, err := toFloat(key, value)
			if err != nil {
				return SearchQuery{}, err
			}
			edges[edgeIndex(key)] = &f
		case "polygon":
			ring, err := parsePolygon(value)
			if err != nil {
				return SearchQuery{}, err
			}
			q.Polygon = ring
		case "city":
			s, err := toString(key, value)
			if err != nil {
				return SearchQuery{}, err
			}
			q.City = s
		case "state":
			s, err := toString(key, value)
			if err != nil {
				return SearchQuery{}, err
			}
			q.State = s
		case "zip":
			s, err := toZip(value)
			if err != nil {
				return SearchQuery{}, err
			}
			q.Zip = s
		case "radius":
			f, err := toFloat(key, value)
			if err != nil {
				return SearchQuery{}, err
			}
			q.RadiusMiles = &f
		default:
			return SearchQuery{}, newQueryError("unrecognised parameter %q", key)
		}
	}

	if edges[0] != nil || edges[1] != nil || edges[2] != nil || edges[3] != nil {
		if q.BBox != nil {
			return SearchQuery{}, newQueryError("bbox given both as a tuple and as separate edges")
		}
		for i, name := range []string{"west", "south", "east", "north"} {
			if edges[i] == nil {
				return SearchQuery{}, newQueryError("bounding box is missing %q", name)
			}
		}
		q.BBox = &BoundingBox{West: *edges[0], South: *edges[1], East: *edges[2], North: *edges[3]}
	}

	if err := q.Validate(); err != nil {
		return SearchQuery{}, err
	}
	return q, nil
}

// Validate checks field ranges and that exactly one locality filter is set.
func (q SearchQuery) Validate() error {
	if err := queryValidator.Struct(q); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return newQueryError("%s failed %q validation", fe.Namespace(), fe.Tag())
		}
		return newQueryError("%v", err)
	}

	kinds := q.localities()
	switch {
	case len(kinds) == 0:
		return newQueryError("one of bbox, polygon, city/state or zip is required")
	case len(kinds) > 1:
		return newQueryError("only one locality filter may be given, got %v", kinds)
	}

	if q.BBox != nil {
		if q.BBox.West >= q.BBox.East {
			return newQueryError("bbox west must be less than east")
		}
		if q.BBox.South >= q.BBox.North {
			return newQueryError("bbox south must be less than north")
		}
	}
	if strings.TrimSpace(q.City) != "" && strings.TrimSpace(q.State) == "" {
		return newQueryError("city search requires a state")
	}
	if strings.TrimSpace(q.State) != "" && strings.TrimSpace(q.City) == "" {
		return newQueryError("state search requires a city")
	}
	return nil
}

// Locality returns the primary filter kind. Call on validated queries only.
func (q SearchQuery) Locality() LocalityKind {
	kinds := q.localities()
	if len(kinds) == 0 {
		return ""
	}
	return kinds[0]
}

func (q SearchQuery) localities() []LocalityKind {
	var kinds []LocalityKind
	if q.BBox != nil {
		kinds = append(kinds, LocalityBBox)
	}
	if len(q.Polygon) > 0 {
		kinds = append(kinds, LocalityPolygon)
	}
	if strings.TrimSpace(q.City) != "" || strings.TrimSpace(q.State) != "" {
		kinds = append(kinds, LocalityCity)
	}
	if strings.TrimSpace(q.Zip) != "" {
		kinds = append(kinds, LocalityZip)
	}
	return kinds
}

// CanonicalParams returns the query as a plain map with unset fields omitted
// and text normalised, suitable for hashing.
func (q SearchQuery) CanonicalParams() map[string]any {
	params := map[string]any{}
	if q.BBox != nil {
		params["bbox"] = []float64{q.BBox.West, q.BBox.South, q.BBox.East, q.BBox.North}
	}
	if len(q.Polygon) > 0 {
		ring := make([][]float64, 0, len(q.Polygon))
		for _, c := range q.Polygon {
			ring = append(ring, []float64{c.Lon, c.Lat})
		}
		params["polygon"] = ring
	}
	if city := strings.TrimSpace(q.City); city != "" {
		params["city"] = strings.ToLower(city)
	}
	if state := strings.TrimSpace(q.State); state != "" {
		params["state"] = strings.ToUpper(state)
	}
	if zip := strings.TrimSpace(q.Zip); zip != "" {
		params["zip"] = zip
	}
	if q.RadiusMiles != nil {
		params["radius"] = *q.RadiusMiles
	}
	return params
}

// Hash is the sha256 hex digest of the canonical parameters. encoding/json
// writes map keys in sorted order, so key insertion order never matters.
func (q SearchQuery) Hash() (string, error) {
	payload, err := json.Marshal(q.CanonicalParams())
	if err != nil {
		return "", fmt.Errorf("failed to serialise search query: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// UpstreamTarget resolves the query to an endpoint shape. Bounding boxes and
// polygons become the smallest covering circle; defaultRadius applies to
// city and zip searches without an explicit radius.
func (q SearchQuery) UpstreamTarget(defaultRadius float64) Target {
	radius := defaultRadius
	if q.RadiusMiles != nil {
		radius = *q.RadiusMiles
	}

	switch q.Locality() {
	case LocalityBBox, LocalityPolygon:
		var box geo.BBox
		if q.BBox != nil {
			box = q.BBox.Geo()
		} else {
			box = geo.PolygonBounds(q.PolygonPoints())
		}
		center, covering := geo.BBoxToCenterRadius(box)
		if q.RadiusMiles == nil {
			radius = roundUp(covering, 2)
		}
		return Target{Kind: UpstreamCoordinates, Center: center, RadiusMiles: radius}
	case LocalityZip:
		return Target{Kind: UpstreamZip, Zip: strings.TrimSpace(q.Zip), RadiusMiles: radius}
	default:
		return Target{
			Kind:        UpstreamCity,
			City:        strings.TrimSpace(q.City),
			State:       strings.ToUpper(strings.TrimSpace(q.State)),
			RadiusMiles: radius,
		}
	}
}

// PolygonPoints converts the polygon for the geometry helpers.
func (q SearchQuery) PolygonPoints() []geo.Point {
	ring := make([]geo.Point, 0, len(q.Polygon))
	for _, c := range q.Polygon {
		ring = append(ring, geo.Point{Lon: c.Lon, Lat: c.Lat})
	}
	return ring
}

// Contains reports whether p lies inside the query area. City and zip
// searches have no geometry and contain every point.
func (q SearchQuery) Contains(p geo.Point) bool {
	switch q.Locality() {
	case LocalityBBox:
		return q.BBox.Geo().Contains(p)
	case LocalityPolygon:
		return geo.PointInPolygon(p, q.PolygonPoints())
	default:
		return true
	}
}

func roundUp(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Ceil(v*scale) / scale
}

func edgeIndex(name string) int {
	switch name {
	case "west":
		return 0
	case "south":
		return 1
	case "east":
		return 2
	default:
		return 3
	}
}

func parseBBox(value any) (BoundingBox, error) {
	var parts []any
	switch v := value.(type) {
	case string:
		for _, p := range strings.Split(v, ",") {
			parts = append(parts, strings.TrimSpace(p))
		}
	case []any:
		parts = v
	case []float64:
		for _, f := range v {
			parts = append(parts, f)
		}
	default:
		return BoundingBox{}, newQueryError("bbox must be a [west, south, east, north] tuple")
	}
	if len(parts) != 4 {
		return BoundingBox{}, newQueryError("bbox must have exactly 4 values, got %d", len(parts))
	}
	var edges [4]float64
	for i, p := range parts {
		f, err := toFloat("bbox", p)
		if err != nil {
			return BoundingBox{}, err
		}
		edges[i] = f
	}
	return BoundingBox{West: edges[0], South: edges[1], East: edges[2], North: edges[3]}, nil
}

func parsePolygon(value any) ([]Coordinate, error) {
	if s, ok := value.(string); ok {
		var decoded any
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			return nil, newQueryError("polygon must be a JSON array of [lon, lat] pairs")
		}
		value = decoded
	}
	pairs, ok := value.([]any)
	if !ok {
		return nil, newQueryError("polygon must be an array of [lon, lat] pairs")
	}
	ring := make([]Coordinate, 0, len(pairs))
	for i, raw := range pairs {
		pair, ok := raw.([]any)
		if !ok || len(pair) != 2 {
			return nil, newQueryError("polygon vertex %d must be a [lon, lat] pair", i)
		}
		lon, err := toFloat("polygon", pair[0])
		if err != nil {
			return nil, err
		}
		lat, err := toFloat("polygon", pair[1])
		if err != nil {
			return nil, err
		}
		ring = append(ring, Coordinate{Lon: lon, Lat: lat})
	}
	return ring, nil
}

func toFloat(name string, value any) (float64, error) {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, newQueryError("%s must be numeric", name)
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, newQueryError("%s must be numeric, got %q", name, v)
		}
		f = parsed
	default:
		return 0, newQueryError("%s must be numeric", name)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, newQueryError("%s must be a finite number", name)
	}
	return f, nil
}

func toString(name string, value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", newQueryError("%s must be a string", name)
	}
	return strings.TrimSpace(s), nil
}

func toZip(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v), nil
	case float64:
		if v != math.Trunc(v) || v < 0 {
			return "", newQueryError("zip must be a 5 digit code")
		}
		return fmt.Sprintf("%05d", int64(v)), nil
	default:
		return "", newQueryError("zip must be a 5 digit code")
	}
}

func newQueryError(format string, args ...any) error {
	return apperrors.NewValidationError(fmt.Sprintf(format, args...))
}
