package bus

import (
	"fmt"

	"github.com/casualjim/synopsys/broker"
)

// Transport errors, re-exported for callers that only import bus.
var (
	ErrTimeout            = broker.ErrTimeout
	ErrBusDisconnected    = broker.ErrBusDisconnected
	ErrSubscriptionClosed = broker.ErrSubscriptionClosed
)

// PermissionError is returned when a bound flow does not allow an operation.
type PermissionError struct {
	Flow      string
	Event     string
	Operation string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("flow %q is not allowed to %s event %q", e.Flow, e.Operation, e.Event)
}

// FlowMismatchError is returned when subscribing to an event that is not the
// inbound event of a bound flow.
type FlowMismatchError struct {
	Flow  string
	Event string
}

func (e *FlowMismatchError) Error() string {
	return fmt.Sprintf("flow %q does not receive event %q", e.Flow, e.Event)
}

// DecodeError is returned by Subscription.Next for a message that could not be
// decoded. The subscription stays usable.
type DecodeError struct {
	Subject string
	Event   string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q from %s: %v", e.Event, e.Subject, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
