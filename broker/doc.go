// Package broker defines the transport contract used by the event bus and
// provides in-memory, NATS and Redis implementations of it.
//
// A Backend only moves raw subjects, payload bytes and string headers around. It
// knows nothing about events, codecs or flows.
//
// Design decisions:
//   - Context-first: every blocking operation accepts a context; an expired
//     deadline is reported as ErrTimeout joined with the context error
//   - Pull subscriptions: a Subscription is read with Next, so consumers decide
//     their own concurrency
//   - Queue groups: a non-empty queue name delivers each message to exactly one
//     member of the group
//   - Request/reply: requests wait on a private, unguessable reply subject that is
//     released whether or not an answer arrives
//
// Example usage:
//
//	b := broker.Local()
//	sub, err := b.Subscribe(ctx, "sensors.*.measure", "")
//	if err != nil {
//	    return err
//	}
//	defer sub.Close()
//
//	_ = b.Publish(ctx, "sensors.west.measure", []byte(`{"value":21.5}`), nil)
//	msg, err := sub.Next(ctx)
package broker
