package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	RequestCount     metric.Int64Counter
	RequestDuration  metric.Float64Histogram
	CacheHitCount    metric.Int64Counter
	CacheMissCount   metric.Int64Counter
	UpstreamRequests metric.Int64Counter
	UpstreamRetries  metric.Int64Counter
	RateLimitWait    metric.Float64Histogram
	DroppedListings  metric.Int64Counter
}

// InitMetrics initializes application metrics on the global meter provider
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	requestCount, err := meter.Int64Counter(
		"http.server.request.count",
		metric.WithDescription("Number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	cacheHitCount, err := meter.Int64Counter(
		"listings.cache.hit.count",
		metric.WithDescription("Number of listing search cache hits"),
	)
	if err != nil {
		return nil, err
	}

	cacheMissCount, err := meter.Int64Counter(
		"listings.cache.miss.count",
		metric.WithDescription("Number of listing search cache misses"),
	)
	if err != nil {
		return nil, err
	}

	upstreamRequests, err := meter.Int64Counter(
		"listings.upstream.request.count",
		metric.WithDescription("Upstream page requests by provider and status"),
	)
	if err != nil {
		return nil, err
	}

	upstreamRetries, err := meter.Int64Counter(
		"listings.upstream.retry.count",
		metric.WithDescription("Upstream page retries by provider and reason"),
	)
	if err != nil {
		return nil, err
	}

	rateLimitWait, err := meter.Float64Histogram(
		"listings.ratelimit.wait.duration",
		metric.WithDescription("Time spent waiting for a rate limit token"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	droppedListings, err := meter.Int64Counter(
		"listings.normalize.dropped.count",
		metric.WithDescription("Listings dropped because they could not be normalized"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCount:     requestCount,
		RequestDuration:  requestDuration,
		CacheHitCount:    cacheHitCount,
		CacheMissCount:   cacheMissCount,
		UpstreamRequests: upstreamRequests,
		UpstreamRetries:  upstreamRetries,
		RateLimitWait:    rateLimitWait,
		DroppedListings:  droppedListings,
	}, nil
}

// RecordRequestMetric records an HTTP request
func RecordRequestMetric(ctx context.Context, metrics *Metrics, method, path string, statusCode int, duration time.Duration) {
	if metrics == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.route", path),
		attribute.Int("http.status_code", statusCode),
	}

	metrics.RequestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	metrics.RequestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordCacheHit records a cache hit
func RecordCacheHit(ctx context.Context, metrics *Metrics, provider string) {
	if metrics == nil {
		return
	}
	metrics.CacheHitCount.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", provider)))
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss(ctx context.Context, metrics *Metrics, provider string) {
	if metrics == nil {
		return
	}
	metrics.CacheMissCount.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", provider)))
}

// RecordUpstreamRequest records one upstream attempt. statusCode is 0 for
// transport failures.
func RecordUpstreamRequest(ctx context.Context, metrics *Metrics, provider string, statusCode int) {
	if metrics == nil {
		return
	}
	metrics.UpstreamRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.Int("http.status_code", statusCode),
	))
}

// RecordUpstreamRetry records a scheduled retry
func RecordUpstreamRetry(ctx context.Context, metrics *Metrics, provider, reason string) {
	if metrics == nil {
		return
	}
	metrics.UpstreamRetries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("reason", reason),
	))
}

// RecordRateLimitWait records time blocked on the token bucket
func RecordRateLimitWait(ctx context.Context, metrics *Metrics, provider string, waited time.Duration) {
	if metrics == nil {
		return
	}
	metrics.RateLimitWait.Record(ctx, float64(waited.Milliseconds()), metric.WithAttributes(attribute.String("provider", provider)))
}

// RecordDroppedListings records listings discarded during normalization
func RecordDroppedListings(ctx context.Context, metrics *Metrics, provider string, count int) {
	if metrics == nil || count <= 0 {
		return
	}
	metrics.DroppedListings.Add(ctx, int64(count), metric.WithAttributes(attribute.String("provider", provider)))
}
