package synopsys

import (
	"context"

	"github.com/casualjim/synopsys/event"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "synopsys"

// PrometheusHook counts Play lifecycle transitions and handled messages.
// Message counters are labelled by actor kind, flow and event name.
type PrometheusHook struct {
	playStarts   prometheus.Counter
	playFailures prometheus.Counter
	playStops    prometheus.Counter
	actorStarts  *prometheus.CounterVec

	received  *prometheus.CounterVec
	processed *prometheus.CounterVec
	failed    *prometheus.CounterVec
}

// NewPrometheusHook registers the hook's collectors with reg, nil means the
// default registerer. It panics when a collector is already registered.
func NewPrometheusHook(reg prometheus.Registerer) *PrometheusHook {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	labels := []string{"kind", "flow", "event"}

	return &PrometheusHook{
		playStarts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "play_starts_total",
			Help:      "Total number of plays that started.",
		}),
		playFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "play_failures_total",
			Help:      "Total number of plays that failed to start or stopped with errors.",
		}),
		playStops: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "play_stops_total",
			Help:      "Total number of plays that stopped without errors.",
		}),
		actorStarts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "actor_starts_total",
			Help:      "Total number of actors started, by kind and flow.",
		}, []string{"kind", "flow"}),
		received: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_received_total",
			Help:      "Total number of messages delivered to actors.",
		}, labels),
		processed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_processed_total",
			Help:      "Total number of messages handled without error.",
		}, labels),
		failed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_failed_total",
			Help:      "Total number of messages that failed to decode or to be handled.",
		}, labels),
	}
}

func (h *PrometheusHook) PlayStarting(context.Context) {}

func (h *PrometheusHook) PlayStarted(context.Context) {
	h.playStarts.Inc()
}

func (h *PrometheusHook) PlayStopping(context.Context) {}

func (h *PrometheusHook) PlayStopped(context.Context) {
	h.playStops.Inc()
}

func (h *PrometheusHook) PlayFailed(context.Context, []error) {
	h.playFailures.Inc()
}

func (h *PrometheusHook) ActorStarting(context.Context, Actor) {}

func (h *PrometheusHook) ActorStarted(_ context.Context, actor Actor) {
	h.actorStarts.WithLabelValues(actor.Kind(), actor.FlowName()).Inc()
}

func (h *PrometheusHook) EventReceived(_ context.Context, actor Actor, msg event.Message) {
	h.received.WithLabelValues(messageLabels(actor, msg)...).Inc()
}

func (h *PrometheusHook) EventProcessed(_ context.Context, actor Actor, msg event.Message) {
	h.processed.WithLabelValues(messageLabels(actor, msg)...).Inc()
}

func (h *PrometheusHook) EventProcessingFailed(_ context.Context, actor Actor, msg event.Message, _ error) {
	h.failed.WithLabelValues(messageLabels(actor, msg)...).Inc()
}

func messageLabels(actor Actor, msg event.Message) []string {
	name := ""
	if msg.Event != nil {
		name = msg.Event.Name()
	}
	return []string{actor.Kind(), actor.FlowName(), name}
}

var _ Hook = (*PrometheusHook)(nil)
