package domain

// FeatureCollection is a GeoJSON FeatureCollection of farm points.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is a single GeoJSON Point feature.
type Feature struct {
	Type       string     `json:"type"`
	Geometry   Geometry   `json:"geometry"`
	Properties Properties `json:"properties"`
}

// Geometry is a GeoJSON Point. Coordinates are [lon, lat].
type Geometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// Properties is the fixed whitelist of fields exported per farm. Keys keep
// the survey workbook names so existing map layers keep working; absent
// values are emitted as null.
type Properties struct {
	Municipality           *string  `json:"Municipio"`
	Altitude               *float64 `json:"altitud"`
	TreeDensity            *float64 `json:"Arboles x mz"`
	PestObservation        *string  `json:"Observaciones_sobre_plagas"`
	PestControlObservation *string  `json:"Observaciones_control_plagas"`
	FinalObservation       *string  `json:"Observaciones_Finales"`
	DiagnosisDate          *string  `json:"Fecha_Realizacion_del_Diagnostico"`
}

// ToFeatureCollection converts a validated batch into point features in
// record order. A record without both coordinates is skipped rather than
// emitted with empty geometry.
func ToFeatureCollection(b Batch) FeatureCollection {
	features := make([]Feature, 0, b.Len())
	for _, r := range b.Records {
		if !r.HasCoordinates() {
			continue
		}
		features = append(features, Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: [2]float64{*r.Longitude, *r.Latitude},
			},
			Properties: Properties{
				Municipality:           r.Municipality,
				Altitude:               r.Altitude,
				TreeDensity:            r.TreeDensity,
				PestObservation:        r.PestObservation,
				PestControlObservation: r.PestControlObservation,
				FinalObservation:       r.FinalObservation,
				DiagnosisDate:          r.DiagnosisDate,
			},
		})
	}
	return FeatureCollection{Type: "FeatureCollection", Features: features}
}
