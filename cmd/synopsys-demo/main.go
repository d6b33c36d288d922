// Command synopsys-demo runs a small sensor network on the configured backend:
// a sampler publishes readings after asking a calibration service for the
// device offset, a threshold watcher raises alarms and two subscribers print
// what they see.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"time"

	"github.com/casualjim/synopsys"
	"github.com/casualjim/synopsys/bus"
	"github.com/casualjim/synopsys/codec"
	"github.com/casualjim/synopsys/event"
	"github.com/casualjim/synopsys/internal/config"
	"github.com/casualjim/synopsys/pkg/slogx"
	"github.com/fatih/color"
	"github.com/phsym/zeroslog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type SensorScope struct {
	Location string `json:"location"`
	Device   string `json:"device"`
}

type Measurement struct {
	Celsius float64   `json:"celsius"`
	TakenAt time.Time `json:"taken_at"`
}

type Alarm struct {
	Device  string  `json:"device"`
	Celsius float64 `json:"celsius"`
}

type Calibration struct {
	Offset float64 `json:"offset"`
}

var (
	measured = event.MustNew("sensor-measured", "sensors.{location}.{device}.measure", event.Options{
		Title:       "Sensor measured",
		Description: "A temperature reading of one device.",
		Schema:      codec.TypeOf[Measurement](),
		ScopeSchema: codec.TypeOf[SensorScope](),
	})
	alarmRaised = event.MustNew("alarm-raised", "alarms.{location}", event.Options{
		Schema:      codec.TypeOf[Alarm](),
		ScopeSchema: codec.TypeOf[map[string]string](),
	})
	calibrate = event.MustNew("calibrate", "devices.{device}.calibration", event.Options{
		ScopeSchema: codec.TypeOf[map[string]string](),
		ReplySchema: codec.TypeOf[Calibration](),
	})
)

var devices = []SensorScope{
	{Location: "west", Device: "t-100"},
	{Location: "west", Device: "t-101"},
	{Location: "east", Device: "t-200"},
}

const alarmThreshold = 30.0

func setupLogging(level slog.Level) {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Stamp}
	log := zerolog.New(output).With().Timestamp().Logger()
	slog.SetDefault(slog.New(
		zeroslog.NewHandler(log, &zeroslog.HandlerOptions{Level: level}),
	))
}

func sample(ctx context.Context, b *bus.EventBus) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		dev := devices[rand.IntN(len(devices))]
		reply, err := b.Request(ctx, calibrate, nil,
			bus.Scope(map[string]string{"device": dev.Device}),
			bus.Timeout(time.Second),
		)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("calibrate %s: %w", dev.Device, err)
		}
		cal, _ := event.As[Calibration](reply.Data)

		reading := Measurement{Celsius: 18 + rand.Float64()*16 + cal.Offset, TakenAt: time.Now()}
		if err := b.Publish(ctx, measured, reading, bus.Scope(dev)); err != nil {
			return err
		}
	}
}

func calibration(_ context.Context, msg event.Message) (event.Reply, error) {
	scope, _ := event.As[map[string]string](msg.Scope)
	offset := 0.0
	if scope["device"] == "t-200" {
		offset = -1.5
	}
	return event.Reply{Data: Calibration{Offset: offset}}, nil
}

func watchThresholds(ctx context.Context, msg event.Message) error {
	reading, _ := event.As[Measurement](msg.Data)
	if reading.Celsius < alarmThreshold {
		return nil
	}
	scope, _ := event.As[SensorScope](msg.Scope)

	b, ok := synopsys.BusFromContext(ctx)
	if !ok {
		return errors.New("no bus in context")
	}
	return b.Publish(ctx, alarmRaised, Alarm{Device: scope.Device, Celsius: reading.Celsius},
		bus.Scope(map[string]string{"location": scope.Location}),
	)
}

func printReading(_ context.Context, msg event.Message) error {
	reading, _ := event.As[Measurement](msg.Data)
	scope, _ := event.As[SensorScope](msg.Scope)
	fmt.Printf("%s %s %.1f°C\n", color.GreenString(scope.Location), color.CyanString(scope.Device), reading.Celsius)
	return nil
}

func printAlarm(_ context.Context, msg event.Message) error {
	alarm, _ := event.As[Alarm](msg.Data)
	fmt.Println(color.RedString("ALARM %s at %.1f°C", alarm.Device, alarm.Celsius))
	return nil
}

func serveMetrics(addr string, reg *prometheus.Registry) func() {
	srv := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slogx.Error(err))
		}
	}()
	slog.Info("serving metrics", slog.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.LogLevel)

	backend, release, err := cfg.Broker(context.Background())
	if err != nil {
		return err
	}
	defer release()

	reg := prometheus.NewRegistry()
	hook := synopsys.CompositeHook(synopsys.LoggingHook(slog.Default()), synopsys.NewPrometheusHook(reg))
	if cfg.MetricsAddr != "" {
		defer serveMetrics(cfg.MetricsAddr, reg)()
	}

	play := synopsys.NewPlay(bus.New(backend),
		synopsys.WithAutoConnect(true),
		synopsys.WithHook(hook),
		synopsys.WithActors(
			&synopsys.Service{
				Flow:    event.MustNewFlow("calibration", event.FlowOptions{Command: calibrate}),
				Handler: calibration,
				Queue:   "calibration",
			},
			&synopsys.Subscriber{
				Flow:    event.MustNewFlow("thresholds", event.FlowOptions{Event: measured, Emits: []*event.Event{alarmRaised}}),
				Handler: watchThresholds,
			},
			&synopsys.Subscriber{
				Flow:    event.MustNewFlow("west-console", event.FlowOptions{Event: measured, Scope: map[string]string{"location": "west"}}),
				Handler: printReading,
			},
			&synopsys.Subscriber{
				Flow:    event.MustNewFlow("alarm-console", event.FlowOptions{Event: alarmRaised}),
				Handler: printAlarm,
			},
			&synopsys.Producer{
				Flow: event.MustNewFlow("sampler", event.FlowOptions{
					Emits:    []*event.Event{measured},
					Requests: []*event.Event{calibrate},
				}),
				Task: sample,
			},
		),
	)

	slog.Info("running sensor demo", slog.String("backend", string(cfg.Backend)))
	return play.Main()
}

func main() {
	if err := run(); err != nil {
		slog.Error("demo failed", slogx.Error(err))
		os.Exit(1)
	}
}
