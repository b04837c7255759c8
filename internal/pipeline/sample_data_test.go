package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/farm-survey-etl/internal/adapter/geojson"
	"github.com/couchcryptid/farm-survey-etl/internal/adapter/spreadsheet"
	"github.com/couchcryptid/farm-survey-etl/internal/adapter/sqlstore"
	"github.com/couchcryptid/farm-survey-etl/internal/pipeline"
)

// TestPipeline_SampleSurvey runs the real file adapters over a semicolon
// separated survey export containing every kind of bad row seen in the field.
func TestPipeline_SampleSurvey(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	output := filepath.Join(dir, "export", "fincas.geojson")

	store, err := sqlstore.Open(ctx, "sqlite", filepath.Join(dir, "fincas.db"), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.EnsureSchema(ctx))

	metrics := newTestMetrics()
	p := pipeline.New(pipeline.Stages{
		Extractor:   spreadsheet.NewReader(discardLogger()),
		Transformer: pipeline.NewTransformer(pipeline.DefaultOptions(), nil, discardLogger()),
		Persister:   store,
		Exporter:    geojson.NewFileWriter(),
	}, discardLogger(), metrics, nil)

	report, err := p.Run(ctx, filepath.Join("testdata", "fincas_sample.csv"), output)
	require.NoError(t, err)

	assert.Equal(t, pipeline.TransformStats{Extracted: 7, Swapped: 1, SignCorrected: 1, Dropped: 2}, report.Stats)
	assert.Equal(t, 5, report.Exported)
	require.NoError(t, report.Persist.Err)
	assert.Len(t, report.Persist.Result.FarmIDs, 5)
	assert.Equal(t, 5, report.Persist.Result.Municipalities)
	assert.True(t, report.Publish.Skipped)

	fc, err := geojson.ReadFile(output)
	require.NoError(t, err)
	require.Len(t, fc.Features, 5)

	names := make([]string, len(fc.Features))
	for i, f := range fc.Features {
		require.NotNil(t, f.Properties.Municipality)
		names[i] = *f.Properties.Municipality
	}
	assert.Equal(t, []string{"Juayúa", "Cabañas", "Apaneca", "MERCEDES UMAÑA", "Ataco"}, names)

	juayua := fc.Features[0].Properties
	assert.Equal(t, "broca del café", *juayua.PestObservation)
	assert.Nil(t, juayua.FinalObservation)
	assert.Equal(t, "2023-05-17", *juayua.DiagnosisDate)
	assert.Equal(t, 1200.0, *juayua.TreeDensity)

	assert.Equal(t, [2]float64{-88.7833, 13.8667}, fc.Features[1].Geometry.Coordinates, "sign restored")
	assert.Equal(t, [2]float64{-89.8036, 13.8592}, fc.Features[2].Geometry.Coordinates, "columns swapped back")
	assert.Nil(t, fc.Features[4].Properties.TreeDensity, "unparseable density is absent")
	assert.Equal(t, 1250.0, *fc.Features[4].Properties.Altitude)

	for _, f := range fc.Features {
		lon, lat := f.Geometry.Coordinates[0], f.Geometry.Coordinates[1]
		assert.True(t, pipeline.DefaultOptions().Bounds.Contains(lat, lon), "feature %v in bounds", f.Geometry.Coordinates)
	}
}

func TestPipeline_SampleSurvey_RerunIsStable(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	first := filepath.Join(dir, "first.geojson")
	second := filepath.Join(dir, "second.geojson")

	p := pipeline.New(pipeline.Stages{
		Extractor:   spreadsheet.NewReader(discardLogger()),
		Transformer: pipeline.NewTransformer(pipeline.DefaultOptions(), nil, discardLogger()),
		Exporter:    geojson.NewFileWriter(),
	}, discardLogger(), newTestMetrics(), nil)

	input := filepath.Join("testdata", "fincas_sample.csv")
	_, err := p.Run(ctx, input, first)
	require.NoError(t, err)
	_, err = p.Run(ctx, input, second)
	require.NoError(t, err)

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestPipeline_UnsupportedInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fincas.ods")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	p := pipeline.New(pipeline.Stages{
		Extractor:   spreadsheet.NewReader(discardLogger()),
		Transformer: pipeline.NewTransformer(pipeline.DefaultOptions(), nil, discardLogger()),
		Exporter:    geojson.NewFileWriter(),
	}, discardLogger(), newTestMetrics(), nil)

	_, err := p.Run(context.Background(), path, filepath.Join(t.TempDir(), "out.geojson"))
	require.ErrorIs(t, err, spreadsheet.ErrUnsupportedFormat)
}
