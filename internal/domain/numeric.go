package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseNumeric converts a spreadsheet cell into a float. The second return
// value is false when the cell is blank or cannot be read as a number; a bad
// cell never aborts the batch.
//
// Strings are trimmed and a comma decimal separator is accepted ("10,5" → 10.5).
// NaN and infinities are treated as absent.
func ParseNumeric(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case *float64:
		if n == nil {
			return 0, false
		}
		f = *n
	case json.Number:
		return parseNumericString(string(n))
	case string:
		return parseNumericString(n)
	default:
		return parseNumericString(fmt.Sprint(n))
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseNumericString(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// parseNumericPtr is ParseNumeric in pointer form for optional record fields.
func parseNumericPtr(v any) *float64 {
	f, ok := ParseNumeric(v)
	if !ok {
		return nil
	}
	return &f
}
