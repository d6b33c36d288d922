package event

import (
	"fmt"
	"slices"
	"strings"

	"github.com/casualjim/synopsys/subject"
)

// FlowKind tells which inbound event, if any, a flow declares.
type FlowKind int

const (
	// ProducerFlow has no inbound event.
	ProducerFlow FlowKind = iota
	// SubscriptionFlow receives a plain event.
	SubscriptionFlow
	// ServiceFlow receives a command and replies to it.
	ServiceFlow
)

func (k FlowKind) String() string {
	switch k {
	case ProducerFlow:
		return "producer"
	case SubscriptionFlow:
		return "subscription"
	case ServiceFlow:
		return "service"
	}
	return fmt.Sprintf("FlowKind(%d)", int(k))
}

// FlowOptions declare a flow. Event and Command are mutually exclusive.
type FlowOptions struct {
	Event    *Event
	Command  *Event
	Emits    []*Event
	Requests []*Event
	// Scope binds some placeholders of the inbound event to literal values.
	Scope map[string]string
}

// Flow is an immutable permission set.
type Flow struct {
	name     string
	kind     FlowKind
	source   *Event
	filter   *Event
	emits    []*Event
	requests []*Event
}

// NewFlow declares a flow.
func NewFlow(name string, opts FlowOptions) (*Flow, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("flow: %w", ErrEmptyName)
	}
	if opts.Event != nil && opts.Command != nil {
		return nil, fmt.Errorf("flow %q: %w", name, ErrAmbiguousSource)
	}

	f := &Flow{
		name:     name,
		emits:    slices.Clone(opts.Emits),
		requests: slices.Clone(opts.Requests),
	}
	switch {
	case opts.Event != nil:
		f.kind, f.source = SubscriptionFlow, opts.Event
	case opts.Command != nil:
		f.kind, f.source = ServiceFlow, opts.Command
	default:
		if len(opts.Scope) > 0 {
			return nil, fmt.Errorf("flow %q: %w", name, ErrScopeWithoutSource)
		}
		return f, nil
	}

	f.filter = f.source
	if len(opts.Scope) > 0 {
		filter, err := narrow(name, f.source, opts.Scope)
		if err != nil {
			return nil, err
		}
		f.filter = filter
	}
	return f, nil
}

// MustNewFlow is like NewFlow but panics on error.
func MustNewFlow(name string, opts FlowOptions) *Flow {
	f, err := NewFlow(name, opts)
	if err != nil {
		panic(err)
	}
	return f
}

// narrow derives the filter event of source with the scope values bound. Unbound
// placeholders stay placeholders.
func narrow(flow string, source *Event, scope map[string]string) (*Event, error) {
	placeholders := source.Placeholders()
	var unknown []string
	for k := range scope {
		if !slices.Contains(placeholders, k) {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		return nil, fmt.Errorf("flow %q: %w", flow, &ScopeMismatchError{Event: source.Name(), Unexpected: unknown})
	}

	syntax := source.Syntax()
	tokens := strings.Split(source.Subject(), syntax.Separator)
	raw, err := subject.Render(tokens, source.Pattern().Placeholders, scope, true, syntax)
	if err != nil {
		return nil, fmt.Errorf("flow %q: %w", flow, err)
	}

	opts := source.opts
	opts.Syntax = &syntax
	return newFilter(source.Name(), raw, opts)
}

// Name returns the flow name.
func (f *Flow) Name() string { return f.name }

// Kind returns whether the flow is a producer, subscription or service flow.
func (f *Flow) Kind() FlowKind { return f.kind }

// Source returns the inbound event, or nil for producer flows.
func (f *Flow) Source() *Event { return f.source }

// Filter returns the scope-narrowed inbound event, which is Source when the flow
// has no scope.
func (f *Flow) Filter() *Event { return f.filter }

// Emits returns the events the flow may publish.
func (f *Flow) Emits() []*Event { return slices.Clone(f.emits) }

// Requests returns the events the flow may request.
func (f *Flow) Requests() []*Event { return slices.Clone(f.requests) }

// CanEmit reports whether the flow may publish evt.
func (f *Flow) CanEmit(evt *Event) bool { return slices.Contains(f.emits, evt) }

// CanRequest reports whether the flow may request evt.
func (f *Flow) CanRequest(evt *Event) bool { return slices.Contains(f.requests, evt) }

// String describes the flow by kind and name.
func (f *Flow) String() string {
	return f.kind.String() + " flow " + f.name
}
