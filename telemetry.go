package synopsys

import (
	"context"

	"github.com/casualjim/synopsys/event"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// TelemetryHook records the same counters as PrometheusHook through an
// OpenTelemetry meter.
type TelemetryHook struct {
	playStarts   metric.Int64Counter
	playStops    metric.Int64Counter
	playFailures metric.Int64Counter
	actorStarts  metric.Int64Counter
	received     metric.Int64Counter
	processed    metric.Int64Counter
	failed       metric.Int64Counter
}

// NewTelemetryHook creates the hook's instruments on meter, nil means the
// global meter provider.
func NewTelemetryHook(meter metric.Meter) (*TelemetryHook, error) {
	if meter == nil {
		meter = otel.Meter("synopsys")
	}

	h := &TelemetryHook{}
	for _, c := range []struct {
		dst         *metric.Int64Counter
		name, descr string
	}{
		{&h.playStarts, "synopsys.play.starts", "Number of plays that started"},
		{&h.playStops, "synopsys.play.stops", "Number of plays that stopped without errors"},
		{&h.playFailures, "synopsys.play.failures", "Number of plays that failed"},
		{&h.actorStarts, "synopsys.actor.starts", "Number of actors started"},
		{&h.received, "synopsys.events.received", "Number of messages delivered to actors"},
		{&h.processed, "synopsys.events.processed", "Number of messages handled without error"},
		{&h.failed, "synopsys.events.failed", "Number of messages that failed to decode or to be handled"},
	} {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.descr))
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}
	return h, nil
}

func (h *TelemetryHook) PlayStarting(context.Context) {}

func (h *TelemetryHook) PlayStarted(ctx context.Context) {
	h.playStarts.Add(ctx, 1)
}

func (h *TelemetryHook) PlayStopping(context.Context) {}

func (h *TelemetryHook) PlayStopped(ctx context.Context) {
	h.playStops.Add(ctx, 1)
}

func (h *TelemetryHook) PlayFailed(ctx context.Context, _ []error) {
	h.playFailures.Add(ctx, 1)
}

func (h *TelemetryHook) ActorStarting(context.Context, Actor) {}

func (h *TelemetryHook) ActorStarted(ctx context.Context, actor Actor) {
	h.actorStarts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", actor.Kind()),
		attribute.String("flow", actor.FlowName()),
	))
}

func (h *TelemetryHook) EventReceived(ctx context.Context, actor Actor, msg event.Message) {
	h.received.Add(ctx, 1, messageAttributes(actor, msg))
}

func (h *TelemetryHook) EventProcessed(ctx context.Context, actor Actor, msg event.Message) {
	h.processed.Add(ctx, 1, messageAttributes(actor, msg))
}

func (h *TelemetryHook) EventProcessingFailed(ctx context.Context, actor Actor, msg event.Message, _ error) {
	h.failed.Add(ctx, 1, messageAttributes(actor, msg))
}

func messageAttributes(actor Actor, msg event.Message) metric.AddOption {
	labels := messageLabels(actor, msg)
	return metric.WithAttributes(
		attribute.String("kind", labels[0]),
		attribute.String("flow", labels[1]),
		attribute.String("event", labels[2]),
	)
}

var _ Hook = (*TelemetryHook)(nil)
