package domain

import (
	"fmt"
	"strings"
	"time"
)

// DefaultAliases maps normalised spreadsheet headers onto canonical fields.
// The Spanish names are the ones used in the survey workbooks.
var DefaultAliases = map[string]Field{
	"municipio":                         FieldMunicipality,
	"municipality":                      FieldMunicipality,
	"latitud":                           FieldLatitude,
	"latitude":                          FieldLatitude,
	"lat":                               FieldLatitude,
	"longitud":                          FieldLongitude,
	"longitude":                         FieldLongitude,
	"lon":                               FieldLongitude,
	"altitud":                           FieldAltitude,
	"altitude":                          FieldAltitude,
	"arboles_x_mz":                      FieldTreeDensity,
	"tree_density":                      FieldTreeDensity,
	"observaciones_sobre_plagas":        FieldPestObservation,
	"observaciones_control_plagas":      FieldPestControlObservation,
	"observaciones_finales":             FieldFinalObservation,
	"fecha_realizacion_del_diagnostico": FieldDiagnosisDate,
	"fecha_diagnostico":                 FieldDiagnosisDate,
}

// canonicalOrder fixes the order of Schema so batches built from the same
// columns compare equal.
var canonicalOrder = []Field{
	FieldMunicipality,
	FieldLatitude,
	FieldLongitude,
	FieldAltitude,
	FieldTreeDensity,
	FieldPestObservation,
	FieldPestControlObservation,
	FieldFinalObservation,
	FieldDiagnosisDate,
}

// NormalizeHeader puts a spreadsheet header in the lowercase/underscore form
// expected by the alias table: "Arboles x mz" → "arboles_x_mz".
func NormalizeHeader(h string) string {
	h = strings.TrimSpace(h)
	h = strings.ReplaceAll(h, " ", "_")
	h = strings.ReplaceAll(h, "-", "_")
	return strings.ToLower(h)
}

// FromRawRecords converts extracted rows into a typed batch. Columns not in
// aliases are ignored. When two source columns map to the same field the
// non-empty value from the lexicographically smallest column name wins.
//
// Numeric fields go through ParseNumeric; unparseable cells become absent.
func FromRawRecords(rows []RawRecord, aliases map[string]Field) Batch {
	if aliases == nil {
		aliases = DefaultAliases
	}

	present := make(map[Field]bool)
	records := make([]FarmRecord, 0, len(rows))
	for _, row := range rows {
		cells := make(map[Field]aliasedValue)
		for col, v := range row {
			f, ok := aliases[NormalizeHeader(col)]
			if !ok {
				continue
			}
			present[f] = true
			if isBlank(v) {
				continue
			}
			if prev, ok := cells[f]; ok && prev.col < col {
				continue
			}
			cells[f] = aliasedValue{col: col, v: v}
		}
		records = append(records, recordFromCells(cells))
	}

	schema := make(Schema, 0, len(present))
	for _, f := range canonicalOrder {
		if present[f] {
			schema = append(schema, f)
		}
	}
	return Batch{Schema: schema, Records: records}
}

type aliasedValue struct {
	col string
	v   any
}

func recordFromCells(cells map[Field]aliasedValue) FarmRecord {
	val := func(f Field) any {
		return cells[f].v
	}
	return FarmRecord{
		Municipality:           textValue(val(FieldMunicipality)),
		Latitude:               parseNumericPtr(val(FieldLatitude)),
		Longitude:              parseNumericPtr(val(FieldLongitude)),
		Altitude:               parseNumericPtr(val(FieldAltitude)),
		TreeDensity:            parseNumericPtr(val(FieldTreeDensity)),
		PestObservation:        textValue(val(FieldPestObservation)),
		PestControlObservation: textValue(val(FieldPestControlObservation)),
		FinalObservation:       textValue(val(FieldFinalObservation)),
		DiagnosisDate:          textValue(val(FieldDiagnosisDate)),
	}
}

func isBlank(v any) bool {
	switch s := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(s) == ""
	default:
		return false
	}
}

func textValue(v any) *string {
	switch s := v.(type) {
	case nil:
		return nil
	case string:
		return &s
	case time.Time:
		return ptr(formatDate(s))
	default:
		return ptr(fmt.Sprint(s))
	}
}

// formatDate renders a spreadsheet date cell as text, dropping a midnight
// time-of-day.
func formatDate(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(time.DateOnly)
	}
	return t.Format(time.DateTime)
}
