package domain

import "slices"

// Field names a canonical FarmRecord column.
type Field string

const (
	FieldMunicipality           Field = "municipality"
	FieldLatitude               Field = "latitude"
	FieldLongitude              Field = "longitude"
	FieldAltitude               Field = "altitude"
	FieldTreeDensity            Field = "tree_density"
	FieldPestObservation        Field = "pest_observation"
	FieldPestControlObservation Field = "pest_control_observation"
	FieldFinalObservation       Field = "final_observation"
	FieldDiagnosisDate          Field = "diagnosis_date"
)

// TextFields are the free-text fields cleaned by NormalizeText by default.
var TextFields = []Field{
	FieldPestObservation,
	FieldPestControlObservation,
	FieldFinalObservation,
	FieldMunicipality,
}

// RawRecord is one spreadsheet row keyed by normalised column name.
// Values are whatever the extractor produced: string, number, time.Time or nil.
type RawRecord map[string]any

// FarmRecord is the canonical in-pipeline representation of a survey row.
// A nil pointer means the value is absent.
type FarmRecord struct {
	Municipality           *string  `json:"municipality,omitempty"`
	Latitude               *float64 `json:"latitude,omitempty"`
	Longitude              *float64 `json:"longitude,omitempty"`
	Altitude               *float64 `json:"altitude,omitempty"`
	TreeDensity            *float64 `json:"tree_density,omitempty"`
	PestObservation        *string  `json:"pest_observation,omitempty"`
	PestControlObservation *string  `json:"pest_control_observation,omitempty"`
	FinalObservation       *string  `json:"final_observation,omitempty"`
	DiagnosisDate          *string  `json:"diagnosis_date,omitempty"`
}

// HasCoordinates reports whether both latitude and longitude are present.
func (r FarmRecord) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// HasObservations reports whether any of the three observation strings is present.
func (r FarmRecord) HasObservations() bool {
	return r.PestObservation != nil || r.PestControlObservation != nil || r.FinalObservation != nil
}

// text returns a pointer to the string field named by f, or nil for
// non-text fields.
func (r *FarmRecord) text(f Field) **string {
	switch f {
	case FieldMunicipality:
		return &r.Municipality
	case FieldPestObservation:
		return &r.PestObservation
	case FieldPestControlObservation:
		return &r.PestControlObservation
	case FieldFinalObservation:
		return &r.FinalObservation
	case FieldDiagnosisDate:
		return &r.DiagnosisDate
	default:
		return nil
	}
}

// Schema is the set of canonical fields present in the source spreadsheet,
// independent of whether individual rows carry a value.
type Schema []Field

// Has reports whether f is part of the schema.
func (s Schema) Has(f Field) bool {
	return slices.Contains(s, f)
}

// Batch is an ordered set of records sharing one schema.
type Batch struct {
	Schema  Schema
	Records []FarmRecord
}

// Len returns the number of records in the batch.
func (b Batch) Len() int { return len(b.Records) }

// withRecords returns a batch with the same schema and the given records.
func (b Batch) withRecords(records []FarmRecord) Batch {
	return Batch{Schema: slices.Clone(b.Schema), Records: records}
}

// cloneRecords copies the record slice. Pointer fields are shared; stages
// replace pointers rather than writing through them.
func (b Batch) cloneRecords() []FarmRecord {
	return slices.Clone(b.Records)
}

// Bounds is an inclusive latitude/longitude rectangle.
type Bounds struct {
	LatMin float64
	LatMax float64
	LonMin float64
	LonMax float64
}

// ElSalvador is the approximate extent of El Salvador.
var ElSalvador = Bounds{
	LatMin: 10.0,
	LatMax: 20.0,
	LonMin: -90.5,
	LonMax: -87.5,
}

// Contains reports whether the point lies inside the box, edges included.
func (b Bounds) Contains(lat, lon float64) bool {
	return lat >= b.LatMin && lat <= b.LatMax && lon >= b.LonMin && lon <= b.LonMax
}

func ptr[T any](v T) *T { return &v }
