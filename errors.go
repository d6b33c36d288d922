package synopsys

import (
	"errors"
	"fmt"
)

var (
	// ErrPlayCancelled is returned by Start after Cancel.
	ErrPlayCancelled = errors.New("play cancelled")
	// ErrPlayNotStarted is returned by RunForever on a play that never started.
	ErrPlayNotStarted = errors.New("play not started")
	// ErrFlowKind is wrapped by an ActorError when an actor is bound to the wrong kind of flow.
	ErrFlowKind = errors.New("actor bound to the wrong kind of flow")
)

// ActorError is an error that stopped an actor.
type ActorError struct {
	Actor string
	Err   error
}

func (e *ActorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Actor, e.Err)
}

func (e *ActorError) Unwrap() error { return e.Err }

// PanicError is a recovered panic of a handler or task.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
