package entities

import (
	"encoding/json"
	"time"
)

// CacheEntry is a stored search result keyed by query hash.
type CacheEntry struct {
	Hash      string          `json:"hash" db:"hash"`
	Payload   json.RawMessage `json:"payload" db:"payload"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// IsFresh reports whether the entry is younger than ttl at now.
func (e CacheEntry) IsFresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.CreatedAt) < ttl
}
