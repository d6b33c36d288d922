package bus

import (
	"context"
	"sync"
	"time"

	"github.com/casualjim/synopsys/broker"
	"github.com/casualjim/synopsys/event"
)

// Waiter is the pending result of a background subscription or request.
type Waiter[T any] struct {
	done   chan struct{}
	value  T
	err    error
	cancel context.CancelFunc
	once   sync.Once
}

func newWaiter[T any](cancel context.CancelFunc) *Waiter[T] {
	return &Waiter[T]{done: make(chan struct{}), cancel: cancel}
}

func (w *Waiter[T]) resolve(value T, err error) {
	w.once.Do(func() {
		w.value, w.err = value, err
		close(w.done)
	})
}

// Done is closed once the result is available.
func (w *Waiter[T]) Done() <-chan struct{} { return w.done }

// Wait blocks until the result is available. A positive timeout that expires
// first cancels the background work and returns ErrTimeout.
func (w *Waiter[T]) Wait(ctx context.Context, timeout time.Duration) (T, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	var zero T
	select {
	case <-w.done:
		return w.value, w.err
	case <-expired:
		w.Cancel()
		return zero, broker.ErrTimeout
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Cancel stops the background work and releases its subscription.
func (w *Waiter[T]) Cancel() {
	w.cancel()
}

// WaitInBackground subscribes to evt and resolves with the first message that
// decodes. The subscription is open when WaitInBackground returns.
func (b *EventBus) WaitInBackground(ctx context.Context, evt *event.Event, options ...CallOption) (*Waiter[event.Message], error) {
	ctx, cancel := context.WithCancel(ctx)
	sub, err := b.Subscribe(ctx, evt, options...)
	if err != nil {
		cancel()
		return nil, err
	}

	w := newWaiter[event.Message](cancel)
	go func() {
		defer cancel()
		defer sub.Close()
		w.resolve(sub.nextDecodable(ctx))
	}()
	return w, nil
}

// RequestInBackground sends a request for evt and resolves with its reply or its error.
func (b *EventBus) RequestInBackground(ctx context.Context, evt *event.Event, data any, options ...CallOption) *Waiter[event.Reply] {
	ctx, cancel := context.WithCancel(ctx)
	w := newWaiter[event.Reply](cancel)
	go func() {
		defer cancel()
		w.resolve(b.Request(ctx, evt, data, options...))
	}()
	return w
}
