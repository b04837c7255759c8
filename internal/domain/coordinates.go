package domain

const (
	// swapLatMin and swapLatMax bound the latitude band used by swap detection.
	swapLatMin = 10.0
	swapLatMax = 20.0
	// swapLonFloor is looser than the validation box; a swapped pair may
	// still be dropped by FilterInBounds.
	swapLonFloor = -100.0
)

// RepairStats counts the corrections applied by RepairCoordinates.
type RepairStats struct {
	Swapped       int
	SignCorrected int
}

// RepairCoordinates salvages common data-entry errors in coordinate pairs.
//
// Swap detection: when both values are present, the latitude lies outside
// [10, 20] and that latitude value reads as a western-hemisphere longitude
// (inside (-100, 0)), the two columns were transposed and are swapped back.
// (lat=-88.9, lon=13.7) becomes (lat=13.7, lon=-88.9).
//
// Sign correction: a positive longitude is negated. The survey region lies
// entirely west of Greenwich, so a positive value is a dropped minus sign.
//
// Absent values are never filled in.
func RepairCoordinates(b Batch) (Batch, RepairStats) {
	var stats RepairStats
	records := b.cloneRecords()
	for i := range records {
		r := &records[i]

		if r.HasCoordinates() && looksSwapped(*r.Latitude) {
			r.Latitude, r.Longitude = r.Longitude, r.Latitude
			stats.Swapped++
		}

		if r.Longitude != nil && *r.Longitude > 0 {
			r.Longitude = ptr(-*r.Longitude)
			stats.SignCorrected++
		}
	}
	return b.withRecords(records), stats
}

// looksSwapped reports whether a latitude value is out of the latitude band
// and would be a plausible longitude.
func looksSwapped(lat float64) bool {
	outOfBand := lat < swapLatMin || lat > swapLatMax
	return outOfBand && lat < 0 && lat > swapLonFloor
}
