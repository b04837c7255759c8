package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func coordBatch(pairs ...[2]*float64) Batch {
	records := make([]FarmRecord, len(pairs))
	for i, p := range pairs {
		records[i] = FarmRecord{Latitude: p[0], Longitude: p[1]}
	}
	return Batch{Schema: Schema{FieldLatitude, FieldLongitude}, Records: records}
}

func pair(lat, lon *float64) [2]*float64 { return [2]*float64{lat, lon} }

func TestRepairCoordinates(t *testing.T) {
	tests := []struct {
		name          string
		lat, lon      *float64
		wantLat       *float64
		wantLon       *float64
		wantSwapped   int
		wantSignFixed int
	}{
		{"valid pair unchanged", ptr(13.7), ptr(-88.9), ptr(13.7), ptr(-88.9), 0, 0},
		{"positive longitude negated", ptr(13.7), ptr(89.0), ptr(13.7), ptr(-89.0), 0, 1},
		{"transposed pair swapped", ptr(-88.9), ptr(13.7), ptr(13.7), ptr(-88.9), 1, 0},
		{"latitude far out of range not swapped", ptr(-120.0), ptr(13.7), ptr(-120.0), ptr(-13.7), 0, 1},
		{"positive out-of-band latitude not swapped", ptr(45.0), ptr(-88.9), ptr(45.0), ptr(-88.9), 0, 0},
		{"missing longitude", ptr(-88.9), nil, ptr(-88.9), nil, 0, 0},
		{"missing latitude with positive longitude", nil, ptr(88.0), nil, ptr(-88.0), 0, 1},
		{"both missing", nil, nil, nil, nil, 0, 0},
		{"zero longitude left alone", ptr(13.7), ptr(0.0), ptr(13.7), ptr(0.0), 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, stats := RepairCoordinates(coordBatch(pair(tt.lat, tt.lon)))
			require.Len(t, out.Records, 1)
			assert.Equal(t, tt.wantLat, out.Records[0].Latitude)
			assert.Equal(t, tt.wantLon, out.Records[0].Longitude)
			assert.Equal(t, tt.wantSwapped, stats.Swapped)
			assert.Equal(t, tt.wantSignFixed, stats.SignCorrected)
		})
	}
}

func TestRepairCoordinates_PreservesOrderAndInput(t *testing.T) {
	in := coordBatch(
		pair(ptr(13.1), ptr(89.0)),
		pair(ptr(-88.0), ptr(14.0)),
		pair(ptr(13.3), ptr(-89.3)),
	)

	out, stats := RepairCoordinates(in)

	require.Len(t, out.Records, 3)
	assert.Equal(t, -89.0, *out.Records[0].Longitude)
	assert.Equal(t, 14.0, *out.Records[1].Latitude)
	assert.Equal(t, 13.3, *out.Records[2].Latitude)
	assert.Equal(t, RepairStats{Swapped: 1, SignCorrected: 1}, stats)

	assert.Equal(t, 89.0, *in.Records[0].Longitude, "input must not be modified")
	assert.Equal(t, -88.0, *in.Records[1].Latitude, "input must not be modified")
}
