package domain

import (
	"context"
	"log/slog"
	"slices"
	"strings"
)

// BackfillStats counts the outcome of FillMunicipalities.
type BackfillStats struct {
	Filled int
	Empty  int
	Failed int
}

// FillMunicipalities reverse-geocodes records that have coordinates but no
// municipality and fills the field with the returned place name. If geocoder
// is nil or a lookup fails, the record keeps its absent municipality
// (graceful degradation).
func FillMunicipalities(ctx context.Context, b Batch, geocoder Geocoder, logger *slog.Logger) (Batch, BackfillStats) {
	var stats BackfillStats
	if geocoder == nil {
		return b, stats
	}

	records := b.cloneRecords()
	for i := range records {
		r := &records[i]
		if !r.HasCoordinates() || (r.Municipality != nil && strings.TrimSpace(*r.Municipality) != "") {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		result, err := geocoder.ReverseGeocode(ctx, *r.Latitude, *r.Longitude)
		if err != nil {
			logger.Warn("reverse geocoding failed",
				"index", i,
				"lat", *r.Latitude,
				"lon", *r.Longitude,
				"error", err,
			)
			stats.Failed++
			continue
		}
		if result.PlaceName == "" {
			stats.Empty++
			continue
		}
		r.Municipality = ptr(result.PlaceName)
		stats.Filled++
	}

	out := b.withRecords(records)
	if stats.Filled > 0 && !out.Schema.Has(FieldMunicipality) {
		out.Schema = append(out.Schema, FieldMunicipality)
		slices.SortFunc(out.Schema, func(a, b Field) int {
			return slices.Index(canonicalOrder, a) - slices.Index(canonicalOrder, b)
		})
	}
	return out, stats
}
