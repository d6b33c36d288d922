package slogx

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

type named string

func (n named) String() string { return string(n) }

func TestAttrs(t *testing.T) {
	tests := []struct {
		name  string
		attr  slog.Attr
		key   string
		value string
	}{
		{"error", Error(errors.New("boom")), KeyError, "boom"},
		{"nil error", Error(nil), KeyError, "<nil>"},
		{"logger", LoggerName("broker.local"), KeyLoggerName, "broker.local"},
		{"subject", Subject("sensors.west.42.measure"), KeySubject, "sensors.west.42.measure"},
		{"event", Event("sensor-measured"), KeyEvent, "sensor-measured"},
		{"flow", Flow("west-console"), KeyFlow, "west-console"},
		{"actor", Actor(named("subscriber west")), KeyActor, "subscriber west"},
		{"stringer", Stringer("k", named("v")), "k", "v"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.key, tt.attr.Key)
			assert.Equal(t, tt.value, tt.attr.Value.String())
		})
	}
}
