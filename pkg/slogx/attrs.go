// Package slogx holds the slog attribute keys and constructors shared by the
// synopsys packages.
package slogx

import (
	"fmt"
	"log/slog"
)

// Attribute keys used across the synopsys packages.
const (
	KeyError      = "error"
	KeyLoggerName = "logger"
	KeySubject    = "subject"
	KeyEvent      = "event"
	KeyActor      = "actor"
	KeyFlow       = "flow"
)

// Error returns the message of err under KeyError. A nil error is logged as "<nil>".
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "<nil>")
	}
	return slog.String(KeyError, err.Error())
}

// Stringer logs value by its String method.
func Stringer(key string, value fmt.Stringer) slog.Attr {
	return slog.String(key, value.String())
}

// LoggerName names the component a logger belongs to.
func LoggerName(name string) slog.Attr { return slog.String(KeyLoggerName, name) }

// Subject is a concrete message subject.
func Subject(subject string) slog.Attr { return slog.String(KeySubject, subject) }

// Event is an event name.
func Event(name string) slog.Attr { return slog.String(KeyEvent, name) }

// Flow is a flow name.
func Flow(name string) slog.Attr { return slog.String(KeyFlow, name) }

// Actor logs an actor by its kind and flow name.
func Actor(actor fmt.Stringer) slog.Attr { return Stringer(KeyActor, actor) }
