package bus

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"

	"github.com/casualjim/synopsys/broker"
	"github.com/casualjim/synopsys/codec"
	"github.com/casualjim/synopsys/event"
	"github.com/casualjim/synopsys/pkg/slogx"
	"github.com/fogfish/opts"
)

// EventBus publishes, requests and subscribes to events over a backend.
type EventBus struct {
	backend broker.Backend
	codec   codec.Codec
	logger  *slog.Logger
	flows   []*event.Flow
}

// New creates an unbound bus on top of backend. The codec defaults to codec.JSON.
func New(backend broker.Backend, options ...opts.Option[EventBus]) *EventBus {
	b := &EventBus{
		backend: backend,
		logger:  slog.Default(),
	}
	if err := opts.Apply(b, options); err != nil {
		panic(err)
	}
	if b.codec == nil {
		b.codec = codec.JSON()
	}
	b.logger = b.logger.With(slogx.LoggerName("bus"))
	return b
}

// Backend returns the transport the bus publishes on.
func (b *EventBus) Backend() broker.Backend { return b.backend }

// Codec returns the codec used for payloads and headers.
func (b *EventBus) Codec() codec.Codec { return b.codec }

// Logger returns the bus logger, annotated with the bound flow if any.
func (b *EventBus) Logger() *slog.Logger { return b.logger }

// Flows returns the bound flows, outermost first.
func (b *EventBus) Flows() []*event.Flow { return slices.Clone(b.flows) }

// Flow returns the innermost bound flow, or nil for an unbound bus.
func (b *EventBus) Flow() *event.Flow {
	if len(b.flows) == 0 {
		return nil
	}
	return b.flows[len(b.flows)-1]
}

// BindFlow returns a bus sharing the backend and codec, restricted to flow on top
// of the flows already bound.
func (b *EventBus) BindFlow(flow *event.Flow) *EventBus {
	bound := *b
	bound.flows = append(slices.Clone(b.flows), flow)
	bound.logger = b.logger.With(slogx.Flow(flow.Name()))
	return &bound
}

// Connect connects the backend.
func (b *EventBus) Connect(ctx context.Context) error { return b.backend.Connect(ctx) }

// Disconnect disconnects the backend. Open subscriptions fail with
// broker.ErrBusDisconnected.
func (b *EventBus) Disconnect(ctx context.Context) error { return b.backend.Disconnect(ctx) }

// Use connects the bus, runs fn and disconnects on every exit path.
func Use(ctx context.Context, b *EventBus, fn func(context.Context, *EventBus) error) (err error) {
	if err := b.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() {
		if derr := b.Disconnect(context.WithoutCancel(ctx)); derr != nil {
			err = errors.Join(err, fmt.Errorf("disconnect: %w", derr))
		}
	}()
	return fn(ctx, b)
}

// Publish sends data as an occurrence of evt.
func (b *EventBus) Publish(ctx context.Context, evt *event.Event, data any, options ...CallOption) error {
	for _, f := range b.flows {
		if !f.CanEmit(evt) {
			return &PermissionError{Flow: f.Name(), Event: evt.Name(), Operation: "publish"}
		}
	}
	o := callOptions(options)

	subj, payload, headers, err := b.encode(evt, o.scope, data, o.metadata)
	if err != nil {
		return err
	}

	ctx, cancel := o.context(ctx)
	defer cancel()
	if err := b.backend.Publish(ctx, subj, payload, headers); err != nil {
		return transportError(ctx, fmt.Errorf("publish %s: %w", subj, err))
	}
	b.logger.Debug("published", slogx.Event(evt.Name()), slogx.Subject(subj))
	return nil
}

// Request sends data as a request for evt and decodes the reply with the reply
// shapes of evt.
func (b *EventBus) Request(ctx context.Context, evt *event.Event, data any, options ...CallOption) (event.Reply, error) {
	for _, f := range b.flows {
		if !f.CanRequest(evt) {
			return event.Reply{}, &PermissionError{Flow: f.Name(), Event: evt.Name(), Operation: "request"}
		}
	}
	o := callOptions(options)

	subj, payload, headers, err := b.encode(evt, o.scope, data, o.metadata)
	if err != nil {
		return event.Reply{}, err
	}

	ctx, cancel := o.context(ctx)
	defer cancel()
	msg, err := b.backend.Request(ctx, subj, payload, headers)
	if err != nil {
		return event.Reply{}, transportError(ctx, fmt.Errorf("request %s: %w", subj, err))
	}

	replyData, err := b.codec.DecodePayload(msg.Payload(), evt.ReplySchema())
	if err != nil {
		return event.Reply{}, &DecodeError{Subject: msg.Subject(), Event: evt.Name(), Err: err}
	}
	replyMeta, err := b.codec.DecodeHeaders(msg.Headers(), evt.ReplyMetadataSchema())
	if err != nil {
		return event.Reply{}, &DecodeError{Subject: msg.Subject(), Event: evt.Name(), Err: err}
	}
	return event.Reply{Data: replyData, Metadata: replyMeta}, nil
}

// Reply answers a request message. Replying to a message that is not a request
// does nothing, so handlers can reply unconditionally.
func (b *EventBus) Reply(ctx context.Context, msg event.Message, data any, options ...CallOption) error {
	if !msg.IsRequest() {
		return nil
	}
	o := callOptions(options)

	payload, err := b.codec.EncodePayload(data)
	if err != nil {
		return err
	}
	headers, err := b.codec.EncodeHeaders(o.metadata)
	if err != nil {
		return err
	}

	ctx, cancel := o.context(ctx)
	defer cancel()
	if err := b.backend.Publish(ctx, msg.ReplySubject(), payload, headers); err != nil {
		return transportError(ctx, fmt.Errorf("reply to %s: %w", msg.Subject, err))
	}
	return nil
}

func (b *EventBus) encode(evt *event.Event, scope, data, metadata any) (string, []byte, map[string]string, error) {
	subj, err := evt.RenderSubject(b.codec, scope)
	if err != nil {
		return "", nil, nil, err
	}
	payload, err := b.codec.EncodePayload(data)
	if err != nil {
		return "", nil, nil, fmt.Errorf("event %q: %w", evt.Name(), err)
	}
	headers, err := b.codec.EncodeHeaders(metadata)
	if err != nil {
		return "", nil, nil, fmt.Errorf("event %q: encode metadata: %w", evt.Name(), err)
	}
	return subj, payload, headers, nil
}

// Subscribe opens a subscription to evt. On a flow-bound bus, evt must be the
// inbound event of every bound flow and the subscription only receives subjects
// matching the innermost flow filter.
func (b *EventBus) Subscribe(ctx context.Context, evt *event.Event, options ...CallOption) (*Subscription, error) {
	filter := evt
	for _, f := range b.flows {
		if f.Kind() == event.ProducerFlow || f.Source() != evt {
			return nil, &FlowMismatchError{Flow: f.Name(), Event: evt.Name()}
		}
		filter = f.Filter()
	}
	o := callOptions(options)

	sub, err := b.backend.Subscribe(ctx, filter.Compiled(), o.queue)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", filter.Compiled(), err)
	}
	b.logger.Debug("subscribed", slogx.Event(evt.Name()), slogx.Subject(filter.Compiled()), slog.String("queue", o.queue))
	return &Subscription{sub: sub, evt: evt, codec: b.codec}, nil
}

// NextEvent waits for the next decodable occurrence of evt.
func (b *EventBus) NextEvent(ctx context.Context, evt *event.Event, options ...CallOption) (event.Message, error) {
	sub, err := b.Subscribe(ctx, evt, options...)
	if err != nil {
		return event.Message{}, err
	}
	defer sub.Close()
	return sub.nextDecodable(ctx)
}

// Subscription is an open subscription to an event.
type Subscription struct {
	sub   broker.Subscription
	evt   *event.Event
	codec codec.Codec
}

// Event returns the event the subscription decodes with.
func (s *Subscription) Event() *event.Event { return s.evt }

// Next waits for the next message. A *DecodeError reports a single message that
// could not be decoded; the subscription can still be read after it.
func (s *Subscription) Next(ctx context.Context) (event.Message, error) {
	raw, err := s.sub.Next(ctx)
	if err != nil {
		return event.Message{}, err
	}
	return s.decode(raw)
}

func (s *Subscription) nextDecodable(ctx context.Context) (event.Message, error) {
	for {
		msg, err := s.Next(ctx)
		var derr *DecodeError
		if errors.As(err, &derr) {
			continue
		}
		return msg, err
	}
}

// Messages iterates over the subscription until ctx is done or the subscription
// fails. Decode errors are yielded and iteration continues.
func (s *Subscription) Messages(ctx context.Context) iter.Seq2[event.Message, error] {
	return func(yield func(event.Message, error) bool) {
		for {
			msg, err := s.Next(ctx)
			var derr *DecodeError
			if err != nil && !errors.As(err, &derr) {
				yield(event.Message{}, err)
				return
			}
			if !yield(msg, err) {
				return
			}
		}
	}
}

// Close releases the backend subscription.
func (s *Subscription) Close() error { return s.sub.Close() }

func (s *Subscription) decode(raw broker.Msg) (event.Message, error) {
	fail := func(err error) (event.Message, error) {
		return event.Message{}, &DecodeError{Subject: raw.Subject(), Event: s.evt.Name(), Err: err}
	}

	scope, err := s.evt.ParseScope(s.codec, raw.Subject())
	if err != nil {
		return fail(err)
	}
	data, err := s.codec.DecodePayload(raw.Payload(), s.evt.Schema())
	if err != nil {
		return fail(err)
	}
	metadata, err := s.codec.DecodeHeaders(raw.Headers(), s.evt.MetadataSchema())
	if err != nil {
		return fail(err)
	}

	msg := event.Message{Subject: raw.Subject(), Scope: scope, Data: data, Metadata: metadata, Event: s.evt}
	if reply := raw.ReplySubject(); reply != "" {
		msg = event.NewRequest(msg, reply)
	}
	return msg, nil
}

// transportError reports an expired call deadline as ErrTimeout.
func transportError(ctx context.Context, err error) error {
	if errors.Is(err, broker.ErrTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Join(broker.ErrTimeout, err)
	}
	return err
}
