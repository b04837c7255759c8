package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/farm-survey-etl/internal/domain"
	"github.com/couchcryptid/farm-survey-etl/internal/observability"
)

// Extractor reads raw rows from a source file.
type Extractor interface {
	Extract(ctx context.Context, path string) ([]domain.RawRecord, error)
}

// Persister writes validated records to the relational store.
type Persister interface {
	Persist(ctx context.Context, records []domain.FarmRecord) (domain.StoreResult, error)
}

// Publisher writes validated records to a message broker and returns how
// many were acknowledged.
type Publisher interface {
	Publish(ctx context.Context, runID string, processedAt time.Time, records []domain.FarmRecord) (int, error)
}

// Exporter writes the final FeatureCollection.
type Exporter interface {
	Export(ctx context.Context, path string, fc domain.FeatureCollection) error
}

// Stages are the pipeline's collaborators. Persister and Publisher are
// optional; a nil value skips that output.
type Stages struct {
	Extractor   Extractor
	Transformer *Transformer
	Persister   Persister
	Publisher   Publisher
	Exporter    Exporter
}

// Pipeline orchestrates one extract-transform-load run.
type Pipeline struct {
	stages  Stages
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock
}

// New creates a Pipeline with the given stages and observability. A nil
// clock uses the real clock.
func New(stages Stages, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) *Pipeline {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Pipeline{stages: stages, logger: logger, metrics: metrics, clock: clock}
}

// Run extracts input, transforms and validates it, sends the result to the
// best-effort outputs (store and broker) and writes the GeoJSON export to
// output.
//
// Extraction errors, structural validation errors and export errors fail
// the run. Store and broker failures are reported in the returned Report
// and do not prevent the export.
func (p *Pipeline) Run(ctx context.Context, input, output string) (Report, error) {
	report := Report{
		RunID:     uuid.NewString(),
		Input:     input,
		Output:    output,
		StartedAt: p.clock.Now(),
	}
	logger := p.logger.With("run_id", report.RunID)
	logger.Info("run started", "input", input, "output", output)

	rows, err := p.stages.Extractor.Extract(ctx, input)
	if err != nil {
		logger.Error("extract failed", "error", err)
		return p.finish(report), fmt.Errorf("extract %s: %w", input, err)
	}
	p.metrics.RecordsExtracted.Add(float64(len(rows)))

	batch, stats, err := p.stages.Transformer.Transform(ctx, rows)
	report.Stats = stats
	p.metrics.CoordinatesRepaired.WithLabelValues("swap").Add(float64(stats.Swapped))
	p.metrics.CoordinatesRepaired.WithLabelValues("sign").Add(float64(stats.SignCorrected))
	if err != nil {
		logger.Error("structural validation failed", "error", err)
		return p.finish(report), err
	}
	p.metrics.RecordsDropped.Add(float64(stats.Dropped))

	report.Persist, report.Publish = p.sideChannels(ctx, report.RunID, report.StartedAt, batch.Records)
	p.recordOutcomes(logger, report)

	fc := domain.ToFeatureCollection(batch)
	if err := p.stages.Exporter.Export(ctx, output, fc); err != nil {
		logger.Error("export failed", "error", err)
		return p.finish(report), fmt.Errorf("export %s: %w", output, err)
	}
	report.Exported = len(fc.Features)
	p.metrics.FeaturesExported.Add(float64(report.Exported))

	report = p.finish(report)
	p.metrics.LastSuccess.Set(float64(p.clock.Now().Unix()))
	logger.Info("run complete", report.LogAttrs()...)
	return report, nil
}

// sideChannels runs persistence and publishing concurrently. Each returns
// its outcome as a value; neither can fail the run, and a panic in either is
// reported as its error.
func (p *Pipeline) sideChannels(ctx context.Context, runID string, at time.Time, records []domain.FarmRecord) (PersistOutcome, PublishOutcome) {
	var (
		persist PersistOutcome
		publish PublishOutcome
		g       errgroup.Group
	)

	g.Go(func() error {
		if p.stages.Persister == nil {
			persist.Skipped = true
			return nil
		}
		defer recoverInto(&persist.Err, "persist")
		persist.Result, persist.Err = p.stages.Persister.Persist(ctx, records)
		return nil
	})
	g.Go(func() error {
		if p.stages.Publisher == nil {
			publish.Skipped = true
			return nil
		}
		defer recoverInto(&publish.Err, "publish")
		publish.Published, publish.Err = p.stages.Publisher.Publish(ctx, runID, at, records)
		return nil
	})
	_ = g.Wait() // both goroutines always return nil

	return persist, publish
}

func recoverInto(err *error, channel string) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%s panicked: %v", channel, r)
	}
}

func (p *Pipeline) recordOutcomes(logger *slog.Logger, r Report) {
	switch {
	case r.Persist.Skipped:
	case r.Persist.Err != nil:
		p.metrics.SideChannelFailures.WithLabelValues("persist").Inc()
		logger.Warn("persistence failed, continuing with export", "error", r.Persist.Err)
	default:
		p.metrics.RecordsPersisted.Add(float64(len(r.Persist.Result.FarmIDs)))
	}

	switch {
	case r.Publish.Skipped:
	case r.Publish.Err != nil:
		p.metrics.SideChannelFailures.WithLabelValues("publish").Inc()
		p.metrics.RecordsPublished.Add(float64(r.Publish.Published))
		logger.Warn("publishing failed, continuing with export", "error", r.Publish.Err, "published", r.Publish.Published)
	default:
		p.metrics.RecordsPublished.Add(float64(r.Publish.Published))
	}
}

func (p *Pipeline) finish(r Report) Report {
	r.Duration = p.clock.Since(r.StartedAt)
	p.metrics.RunDuration.Observe(r.Duration.Seconds())
	return r
}
