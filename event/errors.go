package event

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyName          = errors.New("event name cannot be empty")
	ErrEmptySubject       = errors.New("event subject cannot be empty")
	ErrAmbiguousSource    = errors.New("flow cannot declare both an event and a command")
	ErrScopeWithoutSource = errors.New("flow scope requires an event or a command")
)

// ScopeMismatchError reports a disagreement between the placeholders of a subject
// and the fields of a scope.
type ScopeMismatchError struct {
	Event string
	// Missing are scope fields without a placeholder.
	Missing []string
	// Unexpected are placeholders, or scope keys, without a matching field.
	Unexpected []string
}

func (e *ScopeMismatchError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing placeholders: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, "unexpected placeholders: "+strings.Join(e.Unexpected, ", "))
	}
	return fmt.Sprintf("scope mismatch for %q: %s", e.Event, strings.Join(parts, "; "))
}
