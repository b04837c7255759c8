package domain

import (
	"maps"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"
)

// DefaultMojibake maps corrupted values seen in survey workbooks to their
// correct spelling. Matches are exact, after whitespace cleanup.
var DefaultMojibake = map[string]string{
	"CabaÃ±as":            "Cabañas",
	"MERCEDES UMA�A": "MERCEDES UMAÑA",
	"AhuachapÃ¡n":         "Ahuachapán",
}

// TextOptions controls NormalizeText.
type TextOptions struct {
	// Mojibake is the exact-match repair table. Nil uses DefaultMojibake.
	Mojibake map[string]string
	// RepairLatin1 additionally undoes UTF-8 text that was decoded as
	// Windows-1252 ("AhuachapÃ¡n" → "Ahuachapán") for values not in the table.
	RepairLatin1 bool
}

// NormalizeText trims and collapses whitespace in the given text fields and
// repairs known mojibake. Absent fields stay absent. Applying it twice gives
// the same result as applying it once.
func NormalizeText(b Batch, fields []Field, opts TextOptions) Batch {
	table := opts.Mojibake
	if table == nil {
		table = DefaultMojibake
	}
	table = maps.Clone(table)

	records := b.cloneRecords()
	for i := range records {
		for _, f := range fields {
			p := records[i].text(f)
			if p == nil || *p == nil {
				continue
			}
			s := cleanText(**p, table, opts.RepairLatin1)
			*p = &s
		}
	}
	return b.withRecords(records)
}

func cleanText(s string, table map[string]string, repairLatin1 bool) string {
	s = norm.NFC.String(s)
	s = strings.Join(strings.Fields(s), " ")
	if fixed, ok := table[s]; ok {
		return fixed
	}
	if repairLatin1 {
		s = repairLatin1Layers(s)
		if fixed, ok := table[s]; ok {
			return fixed
		}
	}
	return s
}

// maxLatin1Passes bounds how many layers of mis-decoding are undone.
const maxLatin1Passes = 4

// repairLatin1Layers applies undoLatin1 until the value stops changing, so
// text that went through the wrong decoder more than once comes back in a
// single call.
func repairLatin1Layers(s string) string {
	for range maxLatin1Passes {
		fixed := undoLatin1(s)
		if fixed == s {
			break
		}
		s = fixed
	}
	return s
}

// undoLatin1 re-encodes s as Windows-1252 and keeps the result only when the
// bytes form valid UTF-8 that differs from the input. Correct text with
// accents fails the UTF-8 check and is returned unchanged.
func undoLatin1(s string) string {
	if isASCII(s) {
		return s
	}
	encoded, err := charmap.Windows1252.NewEncoder().String(s)
	if err != nil || encoded == s || !utf8.ValidString(encoded) {
		return s
	}
	return norm.NFC.String(encoded)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
