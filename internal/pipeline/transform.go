package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/farm-survey-etl/internal/domain"
)

// Options configures the transform stages.
type Options struct {
	Bounds  domain.Bounds
	Text    domain.TextOptions
	Aliases map[string]domain.Field // nil uses domain.DefaultAliases
}

// DefaultOptions validates against El Salvador with the built-in repair table.
func DefaultOptions() Options {
	return Options{Bounds: domain.ElSalvador}
}

// TransformStats counts what each stage did to a batch.
type TransformStats struct {
	Extracted     int
	Swapped       int
	SignCorrected int
	Dropped       int
	Backfilled    int
}

// Transformer runs the record stages in order: column mapping, text
// cleanup, coordinate repair, bounds validation and, when a geocoder is
// set, municipality backfill.
type Transformer struct {
	opts     Options
	geocoder domain.Geocoder
	logger   *slog.Logger
}

// NewTransformer creates a Transformer. Pass a nil geocoder to disable
// municipality backfill.
func NewTransformer(opts Options, geocoder domain.Geocoder, logger *slog.Logger) *Transformer {
	return &Transformer{opts: opts, geocoder: geocoder, logger: logger}
}

// Transform turns extracted rows into a validated batch. The only error it
// returns is a structural one from validation.
func (t *Transformer) Transform(ctx context.Context, rows []domain.RawRecord) (domain.Batch, TransformStats, error) {
	stats := TransformStats{Extracted: len(rows)}

	batch := domain.FromRawRecords(rows, t.opts.Aliases)
	batch = domain.NormalizeText(batch, domain.TextFields, t.opts.Text)

	batch, repaired := domain.RepairCoordinates(batch)
	stats.Swapped = repaired.Swapped
	stats.SignCorrected = repaired.SignCorrected

	batch, dropped, err := domain.FilterInBounds(batch, t.opts.Bounds)
	if err != nil {
		return domain.Batch{}, stats, fmt.Errorf("validate: %w", err)
	}
	stats.Dropped = dropped
	if dropped > 0 {
		t.logger.Warn("records outside bounds dropped", "dropped", dropped, "kept", batch.Len())
	}

	if t.geocoder != nil {
		var backfill domain.BackfillStats
		batch, backfill = domain.FillMunicipalities(ctx, batch, t.geocoder, t.logger)
		stats.Backfilled = backfill.Filled
		if backfill.Failed > 0 {
			t.logger.Warn("municipality backfill incomplete", "failed", backfill.Failed, "filled", backfill.Filled)
		}
	}

	return batch, stats, nil
}
