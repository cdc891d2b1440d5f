// Package listings translates upstream listing payloads into the normalized
// GeoJSON Feature shape used throughout the service.
package listings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/propertymap/backend/internal/domain/entities"
)

// ErrNotAnObject is returned for listing items that are not JSON objects.
var ErrNotAnObject = errors.New("listing is not a JSON object")

type coordinatePair struct {
	Lat flexNumber `json:"lat"`
	Lon flexNumber `json:"lon"`
}

// rawListing lists every key spelling we understand. Resolution order for
// each concept is fixed in Transform.
type rawListing struct {
	ListingID  flexString `json:"listing_id"`
	PropertyID flexString `json:"property_id"`
	ID         flexString `json:"id"`

	Latitude  flexNumber `json:"latitude"`
	Longitude flexNumber `json:"longitude"`
	Lat       flexNumber `json:"lat"`
	Lon       flexNumber `json:"lon"`
	Lng       flexNumber `json:"lng"`
	Location  *struct {
		Address *struct {
			Coordinate *coordinatePair `json:"coordinate"`
		} `json:"address"`
	} `json:"location"`

	Price          currencyAmount `json:"price"`
	ListPrice      currencyAmount `json:"list_price"`
	ListPriceCamel currencyAmount `json:"listPrice"`

	Beds        flexNumber `json:"beds"`
	Bedrooms    flexNumber `json:"bedrooms"`
	Baths       flexNumber `json:"baths"`
	Bathrooms   flexNumber `json:"bathrooms"`
	Description *struct {
		Beds              flexNumber `json:"beds"`
		Baths             flexNumber `json:"baths"`
		BathsConsolidated flexNumber `json:"baths_consolidated"`
	} `json:"description"`
}

// Normalizer converts raw upstream items for one provider.
type Normalizer struct {
	source string
	newID  func() string
	logger zerolog.Logger
}

// NewNormalizer creates a normalizer tagging listings with source.
func NewNormalizer(source string) *Normalizer {
	return &Normalizer{
		source: source,
		newID:  uuid.NewString,
		logger: log.Logger,
	}
}

// WithIDGenerator overrides listing id generation (used for tests).
func (n *Normalizer) WithIDGenerator(fn func() string) *Normalizer {
	n.newID = fn
	return n
}

// WithLogger sets the logger used for data quality warnings.
func (n *Normalizer) WithLogger(logger zerolog.Logger) *Normalizer {
	n.logger = logger
	return n
}

// Transform maps one upstream item. Missing or odd fields fall back to
// defaults; the only error is an item that is not an object.
func (n *Normalizer) Transform(raw json.RawMessage) (entities.NormalizedListing, error) {
	original, err := decodeObject(raw)
	if err != nil {
		return entities.NormalizedListing{}, err
	}

	var fields rawListing
	if err := json.Unmarshal(raw, &fields); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return entities.NormalizedListing{}, fmt.Errorf("failed to decode listing: %w", err)
		}
	}

	listingID := firstString(fields.ListingID, fields.PropertyID, fields.ID)
	if listingID == "" {
		listingID = n.newID()
	}

	lon, lat, ok := fields.coordinates()
	if !ok {
		n.logger.Warn().
			Str("source", n.source).
			Str("listing_id", listingID).
			Msg("listing has no usable coordinates, placing it at 0,0")
	}

	properties := make(map[string]any, len(original)+5)
	for k, v := range original {
		properties[k] = v
	}
	properties[entities.PropListingID] = listingID
	properties[entities.PropPrice] = fields.price()
	properties[entities.PropBeds] = fields.beds()
	properties[entities.PropBaths] = fields.baths()
	properties[entities.PropSource] = n.source

	return entities.NormalizedListing{
		Type:       "Feature",
		Geometry:   entities.PointGeometry(lon, lat),
		Properties: properties,
	}, nil
}

// coordinates resolves latitude/longitude, then lat/lon (or lng), then
// location.address.coordinate.
func (r rawListing) coordinates() (lon, lat float64, ok bool) {
	if r.Latitude.set && r.Longitude.set {
		return r.Longitude.value, r.Latitude.value, true
	}
	if r.Lat.set {
		if lonValue, found := firstNumber(r.Lon, r.Lng); found {
			return lonValue, r.Lat.value, true
		}
	}
	if r.Location != nil && r.Location.Address != nil && r.Location.Address.Coordinate != nil {
		c := r.Location.Address.Coordinate
		if c.Lat.set && c.Lon.set {
			return c.Lon.value, c.Lat.value, true
		}
	}
	return 0, 0, false
}

func (r rawListing) price() int64 {
	amount, ok := firstAmount(r.Price, r.ListPrice, r.ListPriceCamel)
	if !ok || amount <= 0 {
		return 0
	}
	if amount >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(math.Floor(amount))
}

func (r rawListing) beds() float64 {
	candidates := []flexNumber{r.Beds, r.Bedrooms}
	if r.Description != nil {
		candidates = append(candidates, r.Description.Beds)
	}
	v, _ := firstNumber(candidates...)
	return v
}

func (r rawListing) baths() float64 {
	candidates := []flexNumber{r.Baths, r.Bathrooms}
	if r.Description != nil {
		candidates = append(candidates, r.Description.Baths, r.Description.BathsConsolidated)
	}
	v, _ := firstNumber(candidates...)
	return v
}

func decodeObject(raw json.RawMessage) (map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrNotAnObject
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("failed to decode listing: %w", err)
	}
	return obj, nil
}
