package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// RecordID produces a deterministic ID from a record's identifying fields.
// Republishing the same survey row yields the same ID, so downstream
// consumers can deduplicate.
func RecordID(r FarmRecord) string {
	input := fmt.Sprintf("%s|%s|%s|%s",
		deref(r.Municipality), fmtCoord(r.Latitude), fmtCoord(r.Longitude), deref(r.DiagnosisDate))
	hash := sha256.Sum256([]byte(input))
	return "farm-" + hex.EncodeToString(hash[:8])
}

func fmtCoord(f *float64) string {
	if f == nil {
		return ""
	}
	return fmt.Sprintf("%.6f", *f)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
