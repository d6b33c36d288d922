package bus

import (
	"context"
	"log/slog"
	"time"

	"github.com/casualjim/synopsys/codec"
	"github.com/fogfish/opts"
)

// WithCodec sets the codec used for subjects, payloads and headers.
func WithCodec(c codec.Codec) opts.Option[EventBus] {
	return opts.Type[EventBus](func(b *EventBus) error {
		b.codec = c
		return nil
	})
}

// WithLogger sets the bus logger.
var WithLogger = opts.ForName[EventBus, *slog.Logger]("logger")

// CallOptions are the per-call settings of publish, request, reply and subscribe.
type CallOptions struct {
	scope    any
	metadata any
	timeout  time.Duration
	queue    string
}

// CallOption configures a single bus call.
type CallOption = opts.Option[CallOptions]

// Scope sets the value rendered into the subject placeholders.
func Scope(scope any) CallOption {
	return opts.Type[CallOptions](func(o *CallOptions) error {
		o.scope = scope
		return nil
	})
}

// Metadata sets the value encoded into headers.
func Metadata(metadata any) CallOption {
	return opts.Type[CallOptions](func(o *CallOptions) error {
		o.metadata = metadata
		return nil
	})
}

var (
	// Timeout bounds the call. Zero leaves the context deadline untouched.
	Timeout = opts.ForName[CallOptions, time.Duration]("timeout")
	// Queue sets the queue group of a subscription.
	Queue = opts.ForName[CallOptions, string]("queue")
)

func callOptions(options []CallOption) CallOptions {
	var o CallOptions
	if err := opts.Apply(&o, options); err != nil {
		panic(err)
	}
	return o
}

func (o CallOptions) context(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.timeout > 0 {
		return context.WithTimeout(ctx, o.timeout)
	}
	return ctx, func() {}
}
