package listings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// ListingArrayKeys are tried in order; the first non-empty array wins.
var ListingArrayKeys = []string{"properties", "listings", "results", "data", "homes"}

var (
	totalPagesKeys = []string{"total_pages", "totalPages"}
	totalCountKeys = []string{"total", "total_count", "totalCount", "matching_rows"}
)

// Envelope is one decoded upstream page.
type Envelope struct {
	Listings   []json.RawMessage
	TotalPages int
}

// ParseEnvelope extracts the listing array and the page count from a page
// body. pageSize is used when only a total listing count is reported.
func ParseEnvelope(body []byte, pageSize int) (*Envelope, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, fmt.Errorf("failed to decode listings page: %w", err)
	}

	scopes := []map[string]json.RawMessage{top}
	if nested := objectField(top, "data"); nested != nil {
		scopes = append(scopes, nested)
		if search := objectField(nested, "home_search"); search != nil {
			scopes = append(scopes, search)
		}
	}

	env := &Envelope{}
	for _, scope := range scopes {
		if items := firstArray(scope, ListingArrayKeys); len(items) > 0 {
			env.Listings = items
			break
		}
	}
	env.TotalPages = totalPages(scopes, pageSize)
	return env, nil
}

func totalPages(scopes []map[string]json.RawMessage, pageSize int) int {
	for _, scope := range scopes {
		if n, ok := firstCount(scope, totalPagesKeys); ok && n > 0 {
			return clampPages(n)
		}
	}
	if pageSize > 0 {
		for _, scope := range scopes {
			if n, ok := firstCount(scope, totalCountKeys); ok && n > 0 {
				return clampPages(math.Ceil(n / float64(pageSize)))
			}
		}
	}
	return 1
}

// clampPages converts a reported page count, capping absurd values at
// MaxInt32 so the conversion cannot wrap.
func clampPages(n float64) int {
	if n >= math.MaxInt32 {
		return math.MaxInt32
	}
	if n < 1 {
		return 1
	}
	return int(n)
}

func firstArray(scope map[string]json.RawMessage, keys []string) []json.RawMessage {
	for _, key := range keys {
		raw, ok := scope[key]
		if !ok {
			continue
		}
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 || trimmed[0] != '[' {
			continue
		}
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			continue
		}
		if len(items) > 0 {
			return items
		}
	}
	return nil
}

func firstCount(scope map[string]json.RawMessage, keys []string) (float64, bool) {
	for _, key := range keys {
		raw, ok := scope[key]
		if !ok {
			continue
		}
		var n flexNumber
		_ = n.UnmarshalJSON(raw)
		if n.set {
			return n.value, true
		}
	}
	return 0, false
}

func objectField(scope map[string]json.RawMessage, key string) map[string]json.RawMessage {
	raw, ok := scope[key]
	if !ok {
		return nil
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil
	}
	return obj
}
