package synopsys

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/casualjim/synopsys/event"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

var (
	recorderActor = &Subscriber{Flow: event.MustNewFlow("recorder", event.FlowOptions{Event: measured})}
	westMessage   = event.Message{Subject: "sensors.west.42.measure", Event: measured}
)

func exerciseHook(h Hook) {
	ctx := context.Background()
	h.PlayStarting(ctx)
	h.ActorStarting(ctx, recorderActor)
	h.ActorStarted(ctx, recorderActor)
	h.PlayStarted(ctx)
	h.EventReceived(ctx, recorderActor, westMessage)
	h.EventProcessed(ctx, recorderActor, westMessage)
	h.EventReceived(ctx, recorderActor, westMessage)
	h.EventProcessingFailed(ctx, recorderActor, westMessage, errors.New("boom"))
	h.PlayStopping(ctx)
	h.PlayStopped(ctx)
	h.PlayFailed(ctx, []error{errors.New("broken")})
}

func TestLoggingHook(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	exerciseHook(LoggingHook(logger))

	out := buf.String()
	assert.Contains(t, out, `msg="play started"`)
	assert.Contains(t, out, `msg="actor started" actor="subscriber recorder"`)
	assert.Contains(t, out, `msg="event processing failed" actor="subscriber recorder" subject=sensors.west.42.measure error=boom`)
	assert.Contains(t, out, `msg="play failed" error=broken`)
}

func TestCompositeHook(t *testing.T) {
	first, second := newRecordingHook(), newRecordingHook()
	exerciseHook(CompositeHook(first, second))

	assert.Equal(t, first.Calls(), second.Calls())
	assert.Len(t, first.Calls(), 11)
	assert.Equal(t, "boom", (<-second.failed).Error())
}

func TestPrometheusHook(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := NewPrometheusHook(reg)
	exerciseHook(h)

	assert.InDelta(t, 1, testutil.ToFloat64(h.playStarts), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(h.playStops), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(h.playFailures), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(h.actorStarts.WithLabelValues("subscriber", "recorder")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(h.received.WithLabelValues("subscriber", "recorder", "sensor-measured")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(h.processed.WithLabelValues("subscriber", "recorder", "sensor-measured")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(h.failed.WithLabelValues("subscriber", "recorder", "sensor-measured")), 0)

	count, err := testutil.GatherAndCount(reg, "synopsys_events_received_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.Panics(t, func() { NewPrometheusHook(reg) })
}

func TestTelemetryHook(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	h, err := NewTelemetryHook(provider.Meter("synopsys-test"))
	require.NoError(t, err)
	exerciseHook(h)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			data, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, m.Name)
			for _, dp := range data.DataPoints {
				sums[m.Name] += dp.Value
				if m.Name == "synopsys.events.received" {
					flow, _ := dp.Attributes.Value("flow")
					assert.Equal(t, "recorder", flow.AsString())
					name, _ := dp.Attributes.Value("event")
					assert.Equal(t, "sensor-measured", name.AsString())
				}
			}
		}
	}

	assert.Equal(t, map[string]int64{
		"synopsys.play.starts":      1,
		"synopsys.play.stops":       1,
		"synopsys.play.failures":    1,
		"synopsys.actor.starts":     1,
		"synopsys.events.received":  2,
		"synopsys.events.processed": 1,
		"synopsys.events.failed":    1,
	}, sums)
}
