/*
Package synopsys runs actors on a typed event bus.

Events describe a subject pattern and the shapes of the messages sent on it.
Flows describe what a participant consumes, emits and requests. The bus
package enforces those declarations on every publish, request and subscribe,
and the broker package moves the encoded messages over an in-memory, NATS or
Redis backend.

A Play supervises a fixed set of actors:

  - Producer runs a task once with a bus bound to its flow
  - Subscriber handles every occurrence of the inbound event of its flow
  - Service answers every request on the command of its flow

# Basic Usage

	measured := event.MustNew("sensor-measured", "sensors.{location}.{device}.measure", event.Options{
		Schema:      codec.TypeOf[Measurement](),
		ScopeSchema: codec.TypeOf[SensorScope](),
	})

	readings := event.MustNewFlow("readings", event.FlowOptions{Emits: []*event.Event{measured}})
	recorder := event.MustNewFlow("recorder", event.FlowOptions{Event: measured})

	play := synopsys.NewPlay(bus.New(broker.Local()),
		synopsys.WithAutoConnect(true),
		synopsys.WithActors(
			&synopsys.Subscriber{Flow: recorder, Handler: record},
			&synopsys.Producer{Flow: readings, Task: sample},
		),
	)

	if err := play.Main(); err != nil {
		// Handle error
	}

# Lifecycle

Start opens every subscription before it returns, so a producer can publish
right away and nothing it sends is missed by a subscriber of the same Play.
Messages that fail to decode or to be handled are reported to the Hook and
skipped. A failing producer task or a broken subscription stops every actor
and the failure is returned by RunForever.

Hooks observe the lifecycle. LoggingHook is the default; NewPrometheusHook
and NewTelemetryHook export counters, and CompositeHook combines them.
*/
package synopsys
