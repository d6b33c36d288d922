package broker

import "errors"

var (
	// ErrBusDisconnected is returned by every operation on a disconnected backend.
	ErrBusDisconnected = errors.New("bus disconnected")
	// ErrSubscriptionClosed is returned by Next once the subscription is closed.
	ErrSubscriptionClosed = errors.New("subscription closed")
	// ErrTimeout is returned when an operation does not complete in time.
	ErrTimeout = errors.New("timeout")
)
