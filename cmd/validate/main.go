// Command validate checks a GeoJSON export produced by the etl command. It
// verifies the document structure, that every point lies inside the
// configured bounds, and that each feature carries exactly the exported
// property set. Given the source workbook it also re-runs the transform and
// checks that the export matches it feature for feature.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -export data/fincas.geojson \
//	  -excel data/fincas.xlsx
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"slices"

	"github.com/couchcryptid/farm-survey-etl/internal/adapter/geojson"
	"github.com/couchcryptid/farm-survey-etl/internal/adapter/spreadsheet"
	"github.com/couchcryptid/farm-survey-etl/internal/config"
	"github.com/couchcryptid/farm-survey-etl/internal/domain"
	"github.com/couchcryptid/farm-survey-etl/internal/pipeline"
)

// propertyKeys is the exact key set of every feature's properties.
var propertyKeys = []string{
	"Arboles x mz",
	"Fecha_Realizacion_del_Diagnostico",
	"Municipio",
	"Observaciones_Finales",
	"Observaciones_control_plagas",
	"Observaciones_sobre_plagas",
	"altitud",
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	exportPath := flag.String("export", "", "GeoJSON export to validate")
	sourcePath := flag.String("excel", "", "optional source workbook or CSV to compare against")
	flag.Parse()

	if *exportPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		os.Exit(1)
	}

	opts := pipeline.DefaultOptions()
	opts.Bounds = cfg.Bounds
	opts.Text = domain.TextOptions{RepairLatin1: cfg.RepairLatin1}
	os.Exit(run(*exportPath, *sourcePath, opts, os.Stdout))
}

// run validates the export. opts must match the settings the export was
// produced with for the source parity phase to be meaningful.
func run(exportPath, sourcePath string, opts pipeline.Options, out io.Writer) int {
	fmt.Fprintln(out, "=== Farm Survey Export Validation ===")
	fmt.Fprintln(out)

	raw, err := os.ReadFile(exportPath)
	if err != nil {
		fmt.Fprintf(out, "FATAL: read export: %v\n", err)
		return 1
	}
	fc, err := geojson.ReadFile(exportPath)
	if err != nil {
		fmt.Fprintf(out, "FATAL: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateStructure(fc),
		validateBounds(fc, opts.Bounds),
		validateProperties(raw),
	}
	if sourcePath != "" {
		phases = append(phases, validateSourceParity(fc, sourcePath, opts))
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Features: %d\n", len(fc.Features))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

// ── Phase 1: Structure ──

func validateStructure(fc domain.FeatureCollection) *phase {
	p := &phase{name: "Phase 1: Structure (GeoJSON)"}

	if fc.Type != "FeatureCollection" {
		p.errorf("type is %q (expected \"FeatureCollection\")", fc.Type)
	}
	if fc.Features == nil {
		p.errorf("features is missing or null")
	}
	for i, f := range fc.Features {
		if f.Type != "Feature" {
			p.errorf("feature %d: type is %q", i, f.Type)
		}
		if f.Geometry.Type != "Point" {
			p.errorf("feature %d: geometry type is %q", i, f.Geometry.Type)
		}
	}
	return p
}

// ── Phase 2: Bounds ──

func validateBounds(fc domain.FeatureCollection, bounds domain.Bounds) *phase {
	p := &phase{name: "Phase 2: Bounds (coordinates)"}
	for i, f := range fc.Features {
		lon, lat := f.Geometry.Coordinates[0], f.Geometry.Coordinates[1]
		if !bounds.Contains(lat, lon) {
			p.errorf("feature %d: point (lon=%g, lat=%g) outside bounds", i, lon, lat)
		}
	}
	return p
}

// ── Phase 3: Properties ──
// Decodes the raw document so missing and extra keys are both visible.

func validateProperties(raw []byte) *phase {
	p := &phase{name: "Phase 3: Properties (whitelist)"}

	var doc struct {
		Features []struct {
			Properties map[string]json.RawMessage `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		p.errorf("decode: %v", err)
		return p
	}

	for i, f := range doc.Features {
		keys := make([]string, 0, len(f.Properties))
		for k := range f.Properties {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		if !slices.Equal(keys, propertyKeys) {
			p.errorf("feature %d: properties %v (expected %v)", i, keys, propertyKeys)
		}
	}
	return p
}

// ── Phase 4: Source Parity ──
// Re-runs the transform on the source file and compares it with the export.

func validateSourceParity(fc domain.FeatureCollection, sourcePath string, opts pipeline.Options) *phase {
	p := &phase{name: "Phase 4: Source Parity (re-run transform)"}

	_, want, err := transformFile(context.Background(), sourcePath, opts)
	if err != nil {
		p.errorf("%v", err)
		return p
	}

	if len(want.Features) != len(fc.Features) {
		p.errorf("feature count: expected %d, got %d", len(want.Features), len(fc.Features))
		return p
	}
	for i := range want.Features {
		compareFeatures(p, i, want.Features[i], fc.Features[i])
	}
	return p
}

// transformFile runs the extract and transform stages without geocoding.
func transformFile(ctx context.Context, path string, opts pipeline.Options) ([]domain.RawRecord, domain.FeatureCollection, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rows, err := spreadsheet.NewReader(logger).Extract(ctx, path)
	if err != nil {
		return nil, domain.FeatureCollection{}, fmt.Errorf("extract %s: %w", path, err)
	}
	batch, _, err := pipeline.NewTransformer(opts, nil, logger).Transform(ctx, rows)
	if err != nil {
		return rows, domain.FeatureCollection{}, fmt.Errorf("transform: %w", err)
	}
	return rows, domain.ToFeatureCollection(batch), nil
}

// compareFeatures checks position and the fields the transform repairs.
// Municipality may legitimately differ when the export run backfilled it.
func compareFeatures(p *phase, i int, want, got domain.Feature) {
	for axis, name := range []string{"lon", "lat"} {
		if !floatEq(want.Geometry.Coordinates[axis], got.Geometry.Coordinates[axis]) {
			p.errorf("feature %d: %s: expected %g, got %g", i, name, want.Geometry.Coordinates[axis], got.Geometry.Coordinates[axis])
		}
	}
	if want.Properties.Municipality != nil && !ptrStrEq(want.Properties.Municipality, got.Properties.Municipality) {
		p.errorf("feature %d: Municipio: expected %s, got %s", i, ptrStr(want.Properties.Municipality), ptrStr(got.Properties.Municipality))
	}
	if !ptrFloatEq(want.Properties.Altitude, got.Properties.Altitude) {
		p.errorf("feature %d: altitud mismatch", i)
	}
	if !ptrFloatEq(want.Properties.TreeDensity, got.Properties.TreeDensity) {
		p.errorf("feature %d: Arboles x mz mismatch", i)
	}
}

// ── Helpers ──

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func ptrStrEq(a, b *string) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}

func ptrFloatEq(a, b *float64) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return floatEq(*a, *b)
}

func ptrStr(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}
