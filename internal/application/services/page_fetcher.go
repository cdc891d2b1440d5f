package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/zatekoja/propertymap/backend/internal/domain/entities"
	"github.com/zatekoja/propertymap/backend/internal/infrastructure/clients/listingsapi"
	"github.com/zatekoja/propertymap/backend/internal/infrastructure/observability"
	"github.com/zatekoja/propertymap/backend/pkg/clock"
	apperrors "github.com/zatekoja/propertymap/backend/pkg/errors"
	"github.com/zatekoja/propertymap/backend/pkg/ratelimit"
	"github.com/zatekoja/propertymap/backend/pkg/retry"
)

// FetchState is a step of the page retry loop.
type FetchState int

const (
	StateAttempting FetchState = iota
	StateBackoff
	StateExhausted
	StateSucceeded
)

func (s FetchState) String() string {
	switch s {
	case StateAttempting:
		return "attempting"
	case StateBackoff:
		return "backoff"
	case StateExhausted:
		return "exhausted"
	case StateSucceeded:
		return "succeeded"
	default:
		return fmt.Sprintf("FetchState(%d)", int(s))
	}
}

// DefaultMaxJitter bounds the random delay added to 429 backoff without a
// Retry-After header.
const DefaultMaxJitter = 200 * time.Millisecond

// PageFetcherConfig holds retry settings for one provider
type PageFetcherConfig struct {
	Provider       string
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxJitter      time.Duration
}

// DefaultPageFetcherConfig returns the default retry budget for provider
func DefaultPageFetcherConfig(provider string) PageFetcherConfig {
	return PageFetcherConfig{
		Provider:       provider,
		MaxRetries:     5,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     retry.MaxBackoff,
		MaxJitter:      DefaultMaxJitter,
	}
}

// RetryingFetcher fetches one upstream page, drawing a rate limit token
// before every attempt and retrying 429s and transport failures.
type RetryingFetcher struct {
	cfg      PageFetcherConfig
	client   listingsapi.Client
	limiter  *ratelimit.TokenBucket
	clock    clock.Clock
	jitter   func(max time.Duration) time.Duration
	observer func(FetchState)
	metrics  *observability.Metrics
}

// NewRetryingFetcher creates a fetcher. limiter is shared by every fetcher of
// the same provider.
func NewRetryingFetcher(
	cfg PageFetcherConfig,
	client listingsapi.Client,
	limiter *ratelimit.TokenBucket,
	clk clock.Clock,
	metrics *observability.Metrics,
) *RetryingFetcher {
	if clk == nil {
		clk = clock.New()
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = retry.MaxBackoff
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &RetryingFetcher{
		cfg:     cfg,
		client:  client,
		limiter: limiter,
		clock:   clk,
		jitter:  randomJitter,
		metrics: metrics,
	}
}

// WithJitter replaces the jitter source.
func (f *RetryingFetcher) WithJitter(fn func(max time.Duration) time.Duration) *RetryingFetcher {
	f.jitter = fn
	return f
}

// WithStateObserver registers fn to be called on every state entered.
func (f *RetryingFetcher) WithStateObserver(fn func(FetchState)) *RetryingFetcher {
	f.observer = fn
	return f
}

// FetchPage returns the body of one page of target. Attempts run from 0 to
// MaxRetries inclusive.
func (f *RetryingFetcher) FetchPage(ctx context.Context, target entities.Target, page int) ([]byte, error) {
	req := pageRequest(target, page)
	logger := observability.LoggerFromContext(ctx).With().
		Str("provider", f.cfg.Provider).
		Int("page", page).
		Logger()

	var (
		attempt int
		delay   time.Duration
		reason  string
		body    []byte
		failure error
	)

	state := StateAttempting
	for {
		if f.observer != nil {
			f.observer(state)
		}

		switch state {
		case StateAttempting:
			if err := f.acquire(ctx); err != nil {
				return nil, err
			}

			resp, err := f.client.FetchPage(ctx, req)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				if listingsapi.IsPermanent(err) {
					logger.Error().Err(err).Msg("upstream request cannot be retried")
					return nil, permanentFailure(f.cfg.Provider, err)
				}
				observability.RecordUpstreamRequest(ctx, f.metrics, f.cfg.Provider, 0)
				failure = apperrors.NewExternalError(
					fmt.Sprintf("%s request failed after %d attempts", f.cfg.Provider, attempt+1), err)
				delay = retry.ExponentialDelay(f.cfg.InitialBackoff, attempt, f.cfg.MaxBackoff)
				reason = "transport"
				logger.Warn().Err(err).Int("attempt", attempt).Msg("upstream request failed")
				state = f.next(attempt)
				continue
			}

			observability.RecordUpstreamRequest(ctx, f.metrics, f.cfg.Provider, resp.StatusCode)
			if remaining := resp.Header.Get(listingsapi.HeaderQuotaRemaining); remaining != "" {
				logger.Info().Str("requests_remaining", remaining).Msg("upstream quota")
			}

			switch {
			case resp.OK():
				body = resp.Body
				state = StateSucceeded
			case resp.StatusCode == http.StatusTooManyRequests:
				failure = apperrors.NewRateLimitError(f.cfg.Provider, attempt+1)
				delay = f.rateLimitDelay(resp.Header.Get(listingsapi.HeaderRetryAfter), attempt)
				reason = "rate_limited"
				logger.Warn().Int("attempt", attempt).Dur("retry_in", delay).Msg("upstream rate limited")
				state = f.next(attempt)
			default:
				logger.Error().Int("status", resp.StatusCode).Msg("upstream returned error status")
				return nil, apperrors.NewUpstreamStatusError(f.cfg.Provider, resp.StatusCode)
			}

		case StateBackoff:
			observability.RecordUpstreamRetry(ctx, f.metrics, f.cfg.Provider, reason)
			if err := f.clock.Sleep(ctx, delay); err != nil {
				return nil, err
			}
			attempt++
			state = StateAttempting

		case StateExhausted:
			logger.Error().Err(failure).Int("attempts", attempt+1).Msg("upstream retries exhausted")
			return nil, failure

		case StateSucceeded:
			return body, nil
		}
	}
}

func (f *RetryingFetcher) next(attempt int) FetchState {
	if attempt >= f.cfg.MaxRetries {
		return StateExhausted
	}
	return StateBackoff
}

func (f *RetryingFetcher) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.limiter == nil {
		return nil
	}
	start := f.clock.Now()
	if err := f.limiter.Wait(ctx); err != nil {
		return err
	}
	observability.RecordRateLimitWait(ctx, f.metrics, f.cfg.Provider, f.clock.Now().Sub(start))
	return nil
}

// rateLimitDelay honours Retry-After when present, otherwise backs off
// exponentially with jitter.
func (f *RetryingFetcher) rateLimitDelay(retryAfter string, attempt int) time.Duration {
	if wait, ok := retry.ParseRetryAfter(retryAfter, f.clock.Now()); ok {
		return wait
	}
	delay := retry.ExponentialDelay(f.cfg.InitialBackoff, attempt, f.cfg.MaxBackoff)
	if f.jitter != nil && f.cfg.MaxJitter > 0 {
		delay += f.jitter(f.cfg.MaxJitter)
	}
	return delay
}

func permanentFailure(provider string, err error) error {
	if errors.Is(err, listingsapi.ErrInvalidRequest) {
		return apperrors.NewInternalError(fmt.Sprintf("could not build %s request", provider), err)
	}
	return apperrors.NewExternalError(fmt.Sprintf("%s response rejected", provider), err)
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(max)))
}

func pageRequest(target entities.Target, page int) listingsapi.PageRequest {
	req := listingsapi.PageRequest{
		RadiusMiles: target.RadiusMiles,
		Page:        page,
		Limit:       listingsapi.PageSize,
	}
	switch target.Kind {
	case entities.UpstreamCoordinates:
		req.Kind = listingsapi.SearchByCoordinates
		req.Latitude = target.Center.Lat
		req.Longitude = target.Center.Lon
	case entities.UpstreamZip:
		req.Kind = listingsapi.SearchByZip
		req.PostalCode = target.Zip
	default:
		req.Kind = listingsapi.SearchByCity
		req.City = target.City
		req.StateCode = target.State
	}
	return req
}
