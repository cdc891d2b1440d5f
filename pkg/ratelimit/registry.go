package ratelimit

import (
	"sync"

	"github.com/zatekoja/propertymap/backend/pkg/clock"
)

// Registry hands out one TokenBucket per upstream provider so every search
// against the same provider draws from a single budget.
type Registry struct {
	mu             sync.Mutex
	clock          clock.Clock
	callsPerMinute int
	buckets        map[string]*TokenBucket
}

// NewRegistry creates a registry whose buckets allow callsPerMinute calls.
func NewRegistry(callsPerMinute int, clk clock.Clock) *Registry {
	if clk == nil {
		clk = clock.New()
	}
	return &Registry{
		clock:          clk,
		callsPerMinute: callsPerMinute,
		buckets:        make(map[string]*TokenBucket),
	}
}

// Get returns the bucket for provider, creating it on first use.
func (r *Registry) Get(provider string) *TokenBucket {
	r.mu.Lock()
	defer r.mu.Unlock()

	if bucket, ok := r.buckets[provider]; ok {
		return bucket
	}
	bucket := NewPerMinute(r.callsPerMinute, r.clock)
	r.buckets[provider] = bucket
	return bucket
}

// Reset drops every bucket. Subsequent Get calls start from full buckets.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buckets = make(map[string]*TokenBucket)
}

// Len returns the number of providers with a bucket.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buckets)
}
