package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/farm-survey-etl/internal/domain"
	"github.com/couchcryptid/farm-survey-etl/internal/observability"
)

const (
	defaultBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"
	methodReverse  = "reverse"
)

// Client implements domain.Geocoder using the Mapbox Geocoding API. Lookups
// are restricted to municipality-level places in El Salvador.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	country    string
	language   string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox geocoding client.
func NewClient(token string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    defaultBaseURL,
		country:    "sv",
		language:   "es",
		metrics:    metrics,
		logger:     logger,
	}
}

// ReverseGeocode returns the place (municipality) that contains the point.
// An empty result with a nil error means Mapbox found nothing.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	// Mapbox uses lon,lat order.
	coord := fmt.Sprintf("%.6f,%.6f", lon, lat)
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
		"types":        {"place"},
	}
	if c.country != "" {
		params.Set("country", c.country)
	}
	if c.language != "" {
		params.Set("language", c.language)
	}
	u := fmt.Sprintf("%s/%s.json?%s", c.baseURL, coord, params.Encode())

	start := time.Now()
	result, err := c.fetchPlace(ctx, u)
	c.metrics.GeocodeAPIDuration.WithLabelValues(methodReverse).Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		c.metrics.GeocodeRequests.WithLabelValues(methodReverse, "error").Inc()
	case result.PlaceName == "":
		c.metrics.GeocodeRequests.WithLabelValues(methodReverse, "empty").Inc()
		c.logger.Debug("no place found", "lat", lat, "lon", lon)
	default:
		c.metrics.GeocodeRequests.WithLabelValues(methodReverse, "success").Inc()
	}
	return result, err
}

func (c *Client) fetchPlace(ctx context.Context, fullURL string) (domain.GeocodingResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("reverse geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.GeocodingResult{}, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var places placesResponse
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("decode response: %w", err)
	}
	if len(places.Features) == 0 {
		return domain.GeocodingResult{}, nil
	}

	f := places.Features[0]
	result := domain.GeocodingResult{
		FormattedAddress: f.PlaceName,
		PlaceName:        f.Text,
		Confidence:       f.Relevance,
	}
	if len(f.Center) == 2 {
		result.Lon, result.Lat = f.Center[0], f.Center[1]
	}
	return result, nil
}

// Mapbox API response types.

type placesResponse struct {
	Features []placeFeature `json:"features"`
}

type placeFeature struct {
	Center    []float64 `json:"center"` // [lon, lat]
	PlaceName string    `json:"place_name"`
	Text      string    `json:"text"`
	Relevance float64   `json:"relevance"`
}
