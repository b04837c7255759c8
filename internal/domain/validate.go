package domain

// requiredFields must be part of the batch schema for validation to run.
var requiredFields = []Field{FieldLatitude, FieldLongitude}

// FilterInBounds keeps the records whose latitude and longitude are both
// present and inside bounds, preserving order. It also returns how many
// records were dropped; losing some rows to bad source data is expected.
//
// An empty batch yields EmptyInputError and a schema without latitude or
// longitude yields *MissingColumnsError. Both match ErrStructural.
func FilterInBounds(b Batch, bounds Bounds) (Batch, int, error) {
	if b.Len() == 0 {
		return Batch{}, 0, EmptyInputError{}
	}

	var missing []Field
	for _, f := range requiredFields {
		if !b.Schema.Has(f) {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return Batch{}, 0, &MissingColumnsError{Columns: missing}
	}

	kept := make([]FarmRecord, 0, b.Len())
	for _, r := range b.Records {
		if r.HasCoordinates() && bounds.Contains(*r.Latitude, *r.Longitude) {
			kept = append(kept, r)
		}
	}
	return b.withRecords(kept), b.Len() - len(kept), nil
}
