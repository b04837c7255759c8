package spreadsheet

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"github.com/couchcryptid/farm-survey-etl/internal/domain"
)

func testReader() *Reader {
	return NewReader(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func writeWorkbook(t *testing.T, sheets map[string][][]any, order []string) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, name := range order {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}

	path := filepath.Join(t.TempDir(), "fincas.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestReader_Workbook(t *testing.T) {
	diag := time.Date(2023, 5, 17, 0, 0, 0, 0, time.UTC)
	path := writeWorkbook(t, map[string][][]any{
		"Ahuachapán": {
			{"Municipio", "Latitud", "Longitud", "Arboles x mz", "Fecha_Realizacion_del_Diagnostico"},
			{"Ataco", 13.87, -89.85, 1200, diag},
			{nil, nil, nil, nil, nil},
			{"Apaneca", "13,86", 89.86},
		},
		"Sonsonate": {
			{"municipio", "latitud", "longitud"},
			{"Juayúa", 13.84, -89.74},
		},
	}, []string{"Ahuachapán", "Sonsonate"})

	rows, err := testReader().Extract(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rows, 3, "blank row skipped, sheets concatenated")

	first := rows[0]
	assert.Equal(t, "Ataco", first["municipio"])
	assert.Equal(t, "13.87", first["latitud"])
	assert.Equal(t, "-89.85", first["longitud"])
	assert.Equal(t, "1200", first["arboles_x_mz"])
	date, ok := first["fecha_realizacion_del_diagnostico"].(time.Time)
	require.True(t, ok, "date cell should be a time.Time, got %T", first["fecha_realizacion_del_diagnostico"])
	assert.Equal(t, "2023-05-17", date.Format(time.DateOnly))

	second := rows[1]
	assert.Equal(t, "13,86", second["latitud"])
	assert.Nil(t, second["arboles_x_mz"], "short rows pad with nil")
	assert.Nil(t, second["fecha_realizacion_del_diagnostico"])

	assert.Equal(t, "Juayúa", rows[2]["municipio"])
}

func TestReader_WorkbookFeedsDomain(t *testing.T) {
	path := writeWorkbook(t, map[string][][]any{
		"Hoja1": {
			{"Municipio", "Latitud", "Longitud"},
			{"CabaÃ±as", 13.7, 88.9},
		},
	}, []string{"Hoja1"})

	rows, err := testReader().Extract(context.Background(), path)
	require.NoError(t, err)

	b := domain.FromRawRecords(rows, nil)
	require.Equal(t, 1, b.Len())
	assert.Equal(t, 13.7, *b.Records[0].Latitude)
	assert.Equal(t, 88.9, *b.Records[0].Longitude)
}

func TestReader_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fincas.csv")
	content := "\uFEFFMunicipio,Latitud,Longitud,Municipio\n" +
		"Ataco,13.87,-89.85,ignored\n" +
		",,,\n" +
		"\"Santa Ana, centro\",13.99,-89.56\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	rows, err := testReader().Extract(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "Ataco", rows[0]["municipio"], "first duplicate header wins")
	assert.Equal(t, "13.87", rows[0]["latitud"])
	assert.Equal(t, "Santa Ana, centro", rows[1]["municipio"])
}

func TestReader_CSVSemicolonAndWindows1252(t *testing.T) {
	utf8Text := "Municipio;Latitud;Longitud\nAhuachapán;13,92;-89,84\n"
	encoded, err := charmap.Windows1252.NewEncoder().String(utf8Text)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "fincas.csv")
	require.NoError(t, os.WriteFile(path, []byte(encoded), 0o600))

	rows, err := testReader().Extract(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, "Ahuachapán", rows[0]["municipio"])
	assert.Equal(t, "13,92", rows[0]["latitud"])
}

func TestReader_EmptyCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	rows, err := testReader().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReader_Errors(t *testing.T) {
	t.Run("unsupported extension", func(t *testing.T) {
		_, err := testReader().Extract(context.Background(), "fincas.ods")
		require.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := testReader().Extract(context.Background(), filepath.Join(t.TempDir(), "nope.xlsx"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "open workbook")
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := testReader().Extract(ctx, "fincas.csv")
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestWorkbookCell(t *testing.T) {
	tests := []struct {
		name           string
		formatted, raw string
		want           any
	}{
		{"blank", "", "", nil},
		{"text", "Ataco", "Ataco", "Ataco"},
		{"plain number", "13.7", "13.7", "13.7"},
		{"thousands separator", "1,200", "1200", "1200"},
		{"rounded display", "13.70", "13.7012", "13.7012"},
		{"currency", "$5.00", "5", "5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, workbookCell(tt.formatted, tt.raw))
		})
	}
}

func TestSniffDelimiter(t *testing.T) {
	assert.Equal(t, ';', sniffDelimiter([]byte("a;b;c\n1,5;2;3")))
	assert.Equal(t, ',', sniffDelimiter([]byte("a,b,c\n1;2;3")))
}
