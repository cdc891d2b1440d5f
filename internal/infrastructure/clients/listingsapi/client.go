package listingsapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// PageSize is the fixed number of listings requested per page.
const PageSize = 40

// DefaultMaxBodyBytes caps how much of one upstream response is read.
const DefaultMaxBodyBytes int64 = 16 << 20

var (
	// ErrInvalidRequest marks a request that could not be built. Retrying it
	// cannot succeed.
	ErrInvalidRequest = errors.New("invalid listings request")

	// ErrResponseTooLarge is returned when a response body exceeds the cap.
	ErrResponseTooLarge = errors.New("listings response too large")
)

// IsPermanent reports whether err will recur on every retry of the same request.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrInvalidRequest) || errors.Is(err, ErrResponseTooLarge)
}

// Header names used by the upstream gateway.
const (
	HeaderAPIKey         = "X-RapidAPI-Key"
	HeaderAPIHost        = "X-RapidAPI-Host"
	HeaderQuotaRemaining = "X-RateLimit-Requests-Remaining"
	HeaderRetryAfter     = "Retry-After"
)

// Endpoint paths, one per search shape.
const (
	PathCoordinates = "/properties/search/coordinates"
	PathCity        = "/properties/search/city"
	PathZip         = "/properties/search/zip"
)

// SearchKind selects the endpoint shape.
type SearchKind string

const (
	SearchByCoordinates SearchKind = "coordinates"
	SearchByCity        SearchKind = "city"
	SearchByZip         SearchKind = "zip"
)

type Client interface {
	FetchPage(ctx context.Context, req PageRequest) (*Page, error)
}

// PageRequest is one page of one search.
type PageRequest struct {
	Kind        SearchKind
	Latitude    float64
	Longitude   float64
	City        string
	StateCode   string
	PostalCode  string
	RadiusMiles float64
	Page        int
	Limit       int
}

// Page is the raw upstream answer. Non-2xx statuses are returned as pages,
// not errors; callers decide what a status means.
type Page struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (p *Page) OK() bool {
	return p.StatusCode >= 200 && p.StatusCode < 300
}

type HTTPClient struct {
	baseURL      string
	apiKey       string
	apiHost      string
	httpClient   *http.Client
	maxBodyBytes int64
}

func NewClient(baseURL, apiKey, apiHost string) *HTTPClient {
	return NewClientWithHTTP(baseURL, apiKey, apiHost, nil)
}

// NewClientWithHTTP allows overriding the HTTP client (used for tests).
func NewClientWithHTTP(baseURL, apiKey, apiHost string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	trimmed := strings.TrimRight(baseURL, "/")
	if apiHost == "" {
		if parsed, err := url.Parse(trimmed); err == nil {
			apiHost = parsed.Host
		}
	}
	return &HTTPClient{
		baseURL:      trimmed,
		apiKey:       apiKey,
		apiHost:      apiHost,
		httpClient:   httpClient,
		maxBodyBytes: DefaultMaxBodyBytes,
	}
}

// WithMaxBodyBytes overrides the response size cap.
func (c *HTTPClient) WithMaxBodyBytes(n int64) *HTTPClient {
	if n > 0 {
		c.maxBodyBytes = n
	}
	return c
}

// FetchPage issues a single GET. Only transport failures, requests that
// cannot be built and oversized bodies are returned as errors.
func (c *HTTPClient) FetchPage(ctx context.Context, req PageRequest) (*Page, error) {
	endpoint, err := c.buildURL(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set(HeaderAPIKey, c.apiKey)
	}
	if c.apiHost != "" {
		httpReq.Header.Set(HeaderAPIHost, c.apiHost)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read listings response: %w", err)
	}
	if int64(len(body)) > c.maxBodyBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrResponseTooLarge, c.maxBodyBytes)
	}

	return &Page{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

func (c *HTTPClient) buildURL(req PageRequest) (string, error) {
	var path string
	query := url.Values{}

	switch req.Kind {
	case SearchByCoordinates:
		path = PathCoordinates
		query.Set("latitude", formatFloat(req.Latitude))
		query.Set("longitude", formatFloat(req.Longitude))
	case SearchByCity:
		if strings.TrimSpace(req.City) == "" || strings.TrimSpace(req.StateCode) == "" {
			return "", fmt.Errorf("city and state code are required")
		}
		path = PathCity
		query.Set("city", req.City)
		query.Set("state_code", req.StateCode)
	case SearchByZip:
		if strings.TrimSpace(req.PostalCode) == "" {
			return "", fmt.Errorf("postal code is required")
		}
		path = PathZip
		query.Set("postal_code", req.PostalCode)
	default:
		return "", fmt.Errorf("unknown search kind %q", req.Kind)
	}

	if req.RadiusMiles > 0 {
		query.Set("radius", formatFloat(req.RadiusMiles))
	}
	page := req.Page
	if page < 1 {
		page = 1
	}
	limit := req.Limit
	if limit <= 0 {
		limit = PageSize
	}
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(limit))

	parsed, err := url.Parse(c.baseURL + path)
	if err != nil {
		return "", err
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
