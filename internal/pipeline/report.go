package pipeline

import (
	"time"

	"github.com/couchcryptid/farm-survey-etl/internal/domain"
)

// PersistOutcome is the result of the relational store output.
type PersistOutcome struct {
	Skipped bool
	Result  domain.StoreResult
	Err     error
}

// PublishOutcome is the result of the broker output.
type PublishOutcome struct {
	Skipped   bool
	Published int
	Err       error
}

// Report summarises a run.
type Report struct {
	RunID     string
	Input     string
	Output    string
	StartedAt time.Time
	Duration  time.Duration
	Stats     TransformStats
	Exported  int
	Persist   PersistOutcome
	Publish   PublishOutcome
}

// LogAttrs flattens the report into slog key/value pairs.
func (r Report) LogAttrs() []any {
	return []any{
		"extracted", r.Stats.Extracted,
		"swapped", r.Stats.Swapped,
		"sign_corrected", r.Stats.SignCorrected,
		"dropped", r.Stats.Dropped,
		"backfilled", r.Stats.Backfilled,
		"exported", r.Exported,
		"persist", outcomeStatus(r.Persist.Skipped, r.Persist.Err),
		"farms_persisted", len(r.Persist.Result.FarmIDs),
		"publish", outcomeStatus(r.Publish.Skipped, r.Publish.Err),
		"published", r.Publish.Published,
		"duration", r.Duration,
	}
}

func outcomeStatus(skipped bool, err error) string {
	switch {
	case skipped:
		return "skipped"
	case err != nil:
		return "failed"
	default:
		return "ok"
	}
}
