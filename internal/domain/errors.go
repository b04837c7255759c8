package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrStructural matches every batch-level validation failure. Structural
// errors abort a run before anything is written.
var ErrStructural = errors.New("structural validation failed")

// EmptyInputError is returned when a batch has no records.
type EmptyInputError struct{}

func (EmptyInputError) Error() string { return "input batch is empty" }

func (EmptyInputError) Is(target error) bool { return target == ErrStructural }

// MissingColumnsError is returned when the batch schema lacks required columns.
type MissingColumnsError struct {
	Columns []Field
}

func (e *MissingColumnsError) Error() string {
	names := make([]string, len(e.Columns))
	for i, c := range e.Columns {
		names[i] = string(c)
	}
	return fmt.Sprintf("missing required columns: %s", strings.Join(names, ", "))
}

func (e *MissingColumnsError) Is(target error) bool { return target == ErrStructural }
