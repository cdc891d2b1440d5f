package ratelimit

import (
	"context"
	"math"
	"time"

	"github.com/zatekoja/propertymap/backend/pkg/clock"
	"golang.org/x/time/rate"
)

// TokenBucket is a continuously refilling token bucket backed by a
// rate.Limiter. Every call passes the injected clock's time, so refill is
// computed lazily from elapsed clock time and there is no background timer.
type TokenBucket struct {
	limiter *rate.Limiter
	clock   clock.Clock
}

// NewTokenBucket creates a full bucket holding capacity tokens that refills
// at refillRatePerMs tokens per millisecond.
func NewTokenBucket(capacity, refillRatePerMs float64, clk clock.Clock) *TokenBucket {
	if clk == nil {
		clk = clock.New()
	}
	if capacity < 1 {
		capacity = 1
	}
	if refillRatePerMs <= 0 {
		refillRatePerMs = capacity / float64(time.Minute/time.Millisecond)
	}
	perSecond := rate.Limit(refillRatePerMs * float64(time.Second/time.Millisecond))
	return &TokenBucket{
		limiter: rate.NewLimiter(perSecond, int(capacity)),
		clock:   clk,
	}
}

// NewPerMinute creates a bucket allowing callsPerMinute calls per minute with
// a burst of the same size.
func NewPerMinute(callsPerMinute int, clk clock.Clock) *TokenBucket {
	if callsPerMinute <= 0 {
		callsPerMinute = 1
	}
	perMinute := float64(callsPerMinute)
	return NewTokenBucket(perMinute, perMinute/float64(time.Minute/time.Millisecond), clk)
}

// Wait suspends the caller until one whole token is available and consumes it.
// AllowN never reserves ahead, so the token count never goes negative and no
// lock is held while sleeping.
func (b *TokenBucket) Wait(ctx context.Context) error {
	for {
		now := b.clock.Now()
		if b.limiter.AllowN(now, 1) {
			return nil
		}
		if err := b.clock.Sleep(ctx, b.waitDuration(now)); err != nil {
			return err
		}
	}
}

// TryTake consumes a token if one is available without waiting.
func (b *TokenBucket) TryTake() bool {
	return b.limiter.AllowN(b.clock.Now(), 1)
}

// Tokens returns the refilled token count.
func (b *TokenBucket) Tokens() float64 {
	return b.limiter.TokensAt(b.clock.Now())
}

// Capacity returns the maximum number of banked tokens.
func (b *TokenBucket) Capacity() float64 {
	return float64(b.limiter.Burst())
}

// waitDuration is (1 - tokens) / rate, rounded up to the next millisecond so
// the following refill reaches one token.
func (b *TokenBucket) waitDuration(now time.Time) time.Duration {
	missing := 1 - b.limiter.TokensAt(now)
	ms := math.Ceil(missing / float64(b.limiter.Limit()) * float64(time.Second/time.Millisecond))
	if ms < 1 {
		ms = 1
	}
	return time.Duration(ms) * time.Millisecond
}
