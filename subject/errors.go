package subject

import (
	"fmt"
	"strings"
)

// InvalidPatternError is returned when a pattern contains a malformed placeholder.
type InvalidPatternError struct {
	Pattern string
	Reason  string
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid subject pattern %q: %s", e.Pattern, e.Reason)
}

// MissingPlaceholderError is returned when a subject cannot be rendered because
// some placeholders did not receive a value. Names are listed in pattern order.
type MissingPlaceholderError struct {
	Names []string
}

func (e *MissingPlaceholderError) Error() string {
	return fmt.Sprintf("cannot render subject, missing placeholders: [%s]", strings.Join(e.Names, ", "))
}

// SubjectTooShortError is returned when a concrete subject has fewer tokens than
// the pattern it is extracted against.
type SubjectTooShortError struct {
	Subject     string
	Placeholder string
	Index       int
}

func (e *SubjectTooShortError) Error() string {
	return fmt.Sprintf("invalid subject %q, missing placeholder: %s (index: %d)", e.Subject, e.Placeholder, e.Index)
}
