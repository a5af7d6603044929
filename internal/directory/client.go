package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wolfman30/barber-agent/internal/observability/metrics"
	"github.com/wolfman30/barber-agent/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultBaseURL = "http://localhost:8080"
	defaultTimeout = 10 * time.Second
)

// ErrCityRequired is returned when a lookup is attempted without a city.
var ErrCityRequired = errors.New("directory: city is required")

// Client queries the tenant backend for barbershops by location.
// Every call is a single bounded request: no retries and no caching.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *logging.Logger
	metrics    *metrics.ConversationMetrics
	tracer     trace.Tracer
}

// Option customizes a Client.
type Option func(*Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithMetrics records request outcomes.
func WithMetrics(m *metrics.ConversationMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient constructs a directory client for the given backend base URL.
func NewClient(baseURL string, logger *logging.Logger, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = logging.Default()
	}
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
		tracer:     otel.Tracer("barber.internal.directory"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListByLocation returns the barbershops registered in city (and district, if given),
// in the order the backend returned them.
func (c *Client) ListByLocation(ctx context.Context, city string, district *string) ([]Listing, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return nil, ErrCityRequired
	}
	q := url.Values{}
	q.Set("city", city)
	if district != nil && strings.TrimSpace(*district) != "" {
		q.Set("district", strings.TrimSpace(*district))
	}

	ctx, span := c.tracer.Start(ctx, "directory.list_by_location")
	defer span.End()
	span.SetAttributes(attribute.String("barber.directory.city", city))

	var records []tenantRecord
	err := c.getJSON(ctx, "/api/tenants/by-location?"+q.Encode(), &records)
	c.metrics.ObserveDirectoryRequest("by_location", err != nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("list by location: %w", err)
	}

	listings := make([]Listing, 0, len(records))
	for _, rec := range records {
		listings = append(listings, rec.listing())
	}
	span.SetAttributes(attribute.Int("barber.directory.results", len(listings)))
	return listings, nil
}

// ListCities returns the cities known to the backend.
func (c *Client) ListCities(ctx context.Context) ([]string, error) {
	ctx, span := c.tracer.Start(ctx, "directory.list_cities")
	defer span.End()

	var cities []string
	err := c.getJSON(ctx, "/api/locations/cities", &cities)
	c.metrics.ObserveDirectoryRequest("cities", err != nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("list cities: %w", err)
	}
	return cities, nil
}

// ListDistricts returns the districts of a city.
func (c *Client) ListDistricts(ctx context.Context, city string) ([]string, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return nil, ErrCityRequired
	}
	ctx, span := c.tracer.Start(ctx, "directory.list_districts")
	defer span.End()

	var districts []string
	err := c.getJSON(ctx, "/api/locations/cities/"+url.PathEscape(city)+"/districts", &districts)
	c.metrics.ObserveDirectoryRequest("districts", err != nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("list districts: %w", err)
	}
	return districts, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	endpoint := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := string(body)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		c.logger.Warn("directory non-200 response", "status", resp.StatusCode, "path", path, "body", msg)
		return fmt.Errorf("backend error: %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
