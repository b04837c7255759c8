package domain

import "context"

// GeocodingResult contains location data returned by a geocoding provider.
type GeocodingResult struct {
	Lat              float64
	Lon              float64
	FormattedAddress string
	PlaceName        string
	Confidence       float64 // 0.0–1.0 provider confidence score
}

// Geocoder resolves coordinates to place details.
type Geocoder interface {
	// ReverseGeocode converts coordinates to the enclosing place, at
	// municipality level.
	ReverseGeocode(ctx context.Context, lat, lon float64) (GeocodingResult, error)
}
