// Package event declares the domain events exchanged over a bus and the flows
// that bound what an actor may do with them.
//
// An Event names a subject pattern and the shapes of the values it carries:
//
//	measured := event.MustNew("sensor-measured", "sensors.{location}.{device}.measure", event.Options{
//		Schema:      codec.TypeOf[Measurement](),
//		ScopeSchema: codec.TypeOf[SensorScope](),
//	})
//
// The scope is the set of values embedded in the subject placeholders. When the
// scope shape is a struct its JSON field names must match the placeholders.
//
// A Flow is an immutable permission set: at most one inbound event (a plain event
// for subscribers or a command for services) and the events the flow may emit or
// request. A flow with a scope narrows its inbound event to a filter event whose
// placeholders are partially bound:
//
//	west, _ := event.NewFlow("west-sensors", event.FlowOptions{
//		Event: measured,
//		Scope: map[string]string{"location": "west"},
//	})
//	west.Filter().Compiled() // "sensors.west.*.measure"
package event
