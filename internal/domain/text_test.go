package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textBatch(values ...*string) Batch {
	records := make([]FarmRecord, len(values))
	for i, v := range values {
		records[i] = FarmRecord{Municipality: v, PestObservation: v}
	}
	return Batch{Schema: Schema{FieldMunicipality, FieldPestObservation}, Records: records}
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"trims", "  Ahuachapán  ", "Ahuachapán"},
		{"collapses internal whitespace", "broca   del\tcafé\n presente", "broca del café presente"},
		{"mojibake Cabañas", "CabaÃ±as", "Cabañas"},
		{"mojibake with padding", "  CabaÃ±as ", "Cabañas"},
		{"replacement character", "MERCEDES UMA�A", "MERCEDES UMAÑA"},
		{"mojibake Ahuachapán", "AhuachapÃ¡n", "Ahuachapán"},
		{"unknown value untouched", "Santa Ana", "Santa Ana"},
		{"decomposed accent composed", "Ahuachapán", "Ahuachapán"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tt.input
			out := NormalizeText(textBatch(&in), TextFields, TextOptions{})
			require.Len(t, out.Records, 1)
			assert.Equal(t, tt.want, *out.Records[0].Municipality)
			assert.Equal(t, tt.want, *out.Records[0].PestObservation)
		})
	}
}

func TestNormalizeText_AbsentStaysAbsent(t *testing.T) {
	out := NormalizeText(textBatch(nil), TextFields, TextOptions{})
	assert.Nil(t, out.Records[0].Municipality)
	assert.Nil(t, out.Records[0].PestObservation)
}

func TestNormalizeText_Idempotent(t *testing.T) {
	inputs := []string{
		"  CabaÃ±as ", "a  b   c", "MERCEDES UMA�A", "Ahuachapán", "Nueva  Concepción ",
		"CabaÃƒÂ±as", "AhuachapÃƒÂ¡n", "UsulutÃƒÆ’Ã‚Â¡n",
	}
	for _, in := range inputs {
		s := in
		once := NormalizeText(textBatch(&s), TextFields, TextOptions{RepairLatin1: true})
		twice := NormalizeText(once, TextFields, TextOptions{RepairLatin1: true})
		assert.Equal(t, once, twice, "input %q", in)
	}
}

func TestNormalizeText_RepairsRepeatedMisdecoding(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"CabaÃƒÂ±as", "Cabañas"},
		{"AhuachapÃƒÂ¡n", "Ahuachapán"},
		{"UsulutÃƒÆ’Ã‚Â¡n", "Usulután"},
		{"La UniÃ³n", "La Unión"},
	}
	for _, tt := range tests {
		s := tt.in
		out := NormalizeText(textBatch(&s), TextFields, TextOptions{RepairLatin1: true})
		assert.Equal(t, tt.want, *out.Records[0].Municipality, "input %q", tt.in)
	}
}

func TestNormalizeText_DoesNotMutateInput(t *testing.T) {
	s := "  CabaÃ±as "
	in := textBatch(&s)
	_ = NormalizeText(in, TextFields, TextOptions{})
	assert.Equal(t, "  CabaÃ±as ", *in.Records[0].Municipality)
}

func TestNormalizeText_OnlyListedFields(t *testing.T) {
	s := "  x  "
	in := textBatch(&s)
	out := NormalizeText(in, []Field{FieldMunicipality}, TextOptions{})
	assert.Equal(t, "x", *out.Records[0].Municipality)
	assert.Equal(t, "  x  ", *out.Records[0].PestObservation)
}

func TestNormalizeText_CustomTable(t *testing.T) {
	s := "San Salv"
	out := NormalizeText(textBatch(&s), TextFields, TextOptions{
		Mojibake: map[string]string{"San Salv": "San Salvador"},
	})
	assert.Equal(t, "San Salvador", *out.Records[0].Municipality)
}

func TestNormalizeText_RepairLatin1(t *testing.T) {
	t.Run("repairs double-decoded UTF-8", func(t *testing.T) {
		s := "ConcepciÃ³n de Ataco"
		out := NormalizeText(textBatch(&s), TextFields, TextOptions{RepairLatin1: true})
		assert.Equal(t, "Concepción de Ataco", *out.Records[0].Municipality)
	})

	t.Run("leaves correct text alone", func(t *testing.T) {
		s := "Concepción de Ataco"
		out := NormalizeText(textBatch(&s), TextFields, TextOptions{RepairLatin1: true})
		assert.Equal(t, "Concepción de Ataco", *out.Records[0].Municipality)
	})

	t.Run("disabled by default", func(t *testing.T) {
		s := "ConcepciÃ³n de Ataco"
		out := NormalizeText(textBatch(&s), TextFields, TextOptions{})
		assert.Equal(t, "ConcepciÃ³n de Ataco", *out.Records[0].Municipality)
	})
}
