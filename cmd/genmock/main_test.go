package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/farm-survey-etl/internal/adapter/spreadsheet"
	"github.com/couchcryptid/farm-survey-etl/internal/domain"
)

func TestCellValue(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		header bool
		want   any
	}{
		{name: "header kept", raw: "Latitud", header: true, want: "Latitud"},
		{name: "comma decimal", raw: "13,8431", want: 13.8431},
		{name: "negative", raw: "-89,7456", want: -89.7456},
		{name: "integer", raw: "1200", want: 1200.0},
		{name: "blank", raw: "  ", want: nil},
		{name: "date", raw: "2023-05-17", want: time.Date(2023, time.May, 17, 0, 0, 0, 0, time.UTC)},
		{name: "text untouched", raw: "  Ataco  ", want: "  Ataco  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cellValue(tt.raw, tt.header))
		})
	}
}

func TestWriteWorkbook_ReadsBackLikeCSV(t *testing.T) {
	rows, err := readCSV(filepath.Join("..", "..", "internal", "pipeline", "testdata", "fincas_sample.csv"))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "mock", "fincas_sample.xlsx")

	require.NoError(t, writeWorkbook(path, rows))

	reader := spreadsheet.NewReader(slog.New(slog.NewTextHandler(io.Discard, nil)))
	got, err := reader.Extract(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, got, 7, "blank row skipped")

	first := domain.FromRawRecords(got[:1], nil).Records[0]
	require.NotNil(t, first.Latitude)
	assert.InDelta(t, 13.8431, *first.Latitude, 1e-9)
	require.NotNil(t, first.DiagnosisDate)
	assert.Equal(t, "2023-05-17", *first.DiagnosisDate)
}
