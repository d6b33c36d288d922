package event

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/casualjim/synopsys/codec"
	"github.com/casualjim/synopsys/subject"
)

// Options are the optional parts of an event declaration. Every shape is
// independent; a nil shape means the event carries no such value.
type Options struct {
	Title       string
	Description string

	// Schema is the payload shape.
	Schema reflect.Type
	// ScopeSchema is the shape of the values carried by subject placeholders.
	ScopeSchema reflect.Type
	// MetadataSchema is the headers shape.
	MetadataSchema reflect.Type
	// ReplySchema is the reply payload shape of a request event.
	ReplySchema reflect.Type
	// ReplyMetadataSchema is the reply headers shape of a request event.
	ReplyMetadataSchema reflect.Type

	// Syntax overrides the subject syntax. Defaults to subject.DefaultSyntax.
	Syntax *subject.Syntax
}

// Event is an immutable event declaration. Events are compared by identity: two
// declarations sharing a subject are still different events.
type Event struct {
	name    string
	opts    Options
	pattern *subject.Pattern
	syntax  subject.Syntax
}

// New declares an event for a subject pattern.
func New(name, pattern string, opts Options) (*Event, error) {
	return newEvent(name, pattern, opts, false)
}

// MustNew is like New but panics on error.
func MustNew(name, pattern string, opts Options) *Event {
	evt, err := New(name, pattern, opts)
	if err != nil {
		panic(err)
	}
	return evt
}

// newFilter declares an event whose placeholders may be a subset of the scope fields.
func newFilter(name, pattern string, opts Options) (*Event, error) {
	return newEvent(name, pattern, opts, true)
}

func newEvent(name, pattern string, opts Options, filter bool) (*Event, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyName
	}
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("%w: event %q", ErrEmptySubject, name)
	}

	syntax := subject.DefaultSyntax()
	if opts.Syntax != nil {
		syntax = *opts.Syntax
	}
	compiled, err := subject.Compile(pattern, syntax)
	if err != nil {
		return nil, fmt.Errorf("event %q: %w", name, err)
	}

	if fields, ok := codec.Fields(opts.ScopeSchema); ok {
		if err := checkScope(name, compiled.Names(), fields, filter); err != nil {
			return nil, err
		}
	}

	return &Event{name: name, opts: opts, pattern: compiled, syntax: syntax}, nil
}

func checkScope(name string, placeholders, fields []string, filter bool) error {
	var missing, unexpected []string
	for _, f := range fields {
		if !slices.Contains(placeholders, f) {
			missing = append(missing, f)
		}
	}
	for _, p := range placeholders {
		if !slices.Contains(fields, p) {
			unexpected = append(unexpected, p)
		}
	}
	if filter {
		missing = nil
	}
	if len(missing) == 0 && len(unexpected) == 0 {
		return nil
	}
	slices.Sort(missing)
	slices.Sort(unexpected)
	return &ScopeMismatchError{Event: name, Missing: missing, Unexpected: unexpected}
}

// Name returns the unique event name.
func (e *Event) Name() string { return e.name }

// Subject returns the subject pattern as declared, placeholders included.
func (e *Event) Subject() string { return e.pattern.Raw }

// Title returns the human readable title, if any.
func (e *Event) Title() string { return e.opts.Title }

// Description returns the free-form description, if any.
func (e *Event) Description() string { return e.opts.Description }

// Schema returns the payload shape.
func (e *Event) Schema() reflect.Type { return e.opts.Schema }

// ScopeSchema returns the shape of the values extracted from the subject.
func (e *Event) ScopeSchema() reflect.Type { return e.opts.ScopeSchema }

// MetadataSchema returns the shape carried in message headers.
func (e *Event) MetadataSchema() reflect.Type { return e.opts.MetadataSchema }

// ReplySchema returns the shape of a reply payload. Nil for events that are
// never requested.
func (e *Event) ReplySchema() reflect.Type { return e.opts.ReplySchema }

// ReplyMetadataSchema returns the shape of reply headers.
func (e *Event) ReplyMetadataSchema() reflect.Type { return e.opts.ReplyMetadataSchema }

// Syntax returns the subject syntax the event was compiled with.
func (e *Event) Syntax() subject.Syntax { return e.syntax }

// Pattern returns the compiled subject pattern.
func (e *Event) Pattern() *subject.Pattern { return e.pattern }

// Compiled returns the subject with placeholders replaced by wildcards. This is
// the subject to subscribe to.
func (e *Event) Compiled() string { return e.pattern.Compiled }

// Placeholders returns the placeholder names in subject order.
func (e *Event) Placeholders() []string { return e.pattern.Names() }

// Matches reports whether a concrete subject belongs to this event.
func (e *Event) Matches(subj string) bool {
	return e.pattern.Match(subj)
}

// RenderSubject encodes a scope value and substitutes it into the subject. Every
// placeholder must receive a value.
func (e *Event) RenderSubject(c codec.Codec, scope any) (string, error) {
	values, err := c.EncodeHeaders(scope)
	if err != nil {
		return "", fmt.Errorf("event %q: encode scope: %w", e.name, err)
	}
	subj, err := e.pattern.Render(values, false)
	if err != nil {
		return "", fmt.Errorf("event %q: %w", e.name, err)
	}
	return subj, nil
}

// ParseScope reads the placeholder values of a concrete subject and decodes them
// into the scope shape. Without a scope shape the raw values are returned, or nil
// when the subject has no placeholders.
func (e *Event) ParseScope(c codec.Codec, subj string) (any, error) {
	values, err := e.pattern.Extract(subj)
	if err != nil {
		return nil, fmt.Errorf("event %q: %w", e.name, err)
	}
	if e.opts.ScopeSchema == nil {
		if len(values) == 0 {
			return nil, nil
		}
		return values, nil
	}
	scope, err := c.DecodeHeaders(values, e.opts.ScopeSchema)
	if err != nil {
		return nil, fmt.Errorf("event %q: decode scope: %w", e.name, err)
	}
	return scope, nil
}

func (e *Event) String() string {
	return e.name + "(" + e.pattern.Raw + ")"
}
