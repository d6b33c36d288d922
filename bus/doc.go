// Package bus turns typed publish, request and subscribe calls on declared events
// into raw broker operations.
//
// An EventBus renders subjects from scope values, encodes payloads and headers
// with its codec and forwards them to a broker.Backend. Inbound messages are
// decoded back into event.Message values.
//
// A bus bound to a flow only allows what the flow declares: publishing events it
// emits, requesting events it requests and subscribing to its inbound event.
// Binding several flows restricts further, never widens.
//
//	b := bus.New(broker.Local())
//	sensors := b.BindFlow(sensorFlow)
//	err := sensors.Publish(ctx, measured, Measurement{Value: 21.5},
//		bus.Scope(SensorScope{Location: "west", Device: "42"}),
//		bus.Timeout(time.Second),
//	)
//
// Waiters resolve a single message or reply in the background:
//
//	w, _ := b.WaitInBackground(ctx, measured)
//	msg, err := w.Wait(ctx, 5*time.Second)
package bus
