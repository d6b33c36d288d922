package synopsys

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/casualjim/synopsys/bus"
	"github.com/casualjim/synopsys/event"
	"github.com/fogfish/opts"
	"golang.org/x/sync/errgroup"
)

// State is the lifecycle state of a Play.
type State int32

const (
	Idle State = iota
	Starting
	Running
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Play supervises a fixed set of actors within one cancellation scope.
//
// Start opens every subscription before returning, so a failing actor aborts the
// start. Once running, a message that fails to decode or to be handled is
// reported to the hook and the actor moves on to the next message. A producer
// task error or a broken subscription stops the whole Play.
type Play struct {
	bus         *bus.EventBus
	actors      []Actor
	hook        Hook
	autoConnect bool

	lifecycle sync.Mutex
	state     atomic.Int32
	cancelled atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	errs   []error
}

// NewPlay creates a Play running actors on b. The hook defaults to a LoggingHook
// on slog.Default.
func NewPlay(b *bus.EventBus, options ...opts.Option[Play]) *Play {
	p := &Play{bus: b}
	if err := opts.Apply(p, options); err != nil {
		panic(err)
	}
	if p.hook == nil {
		p.hook = LoggingHook(slog.Default())
	}
	return p
}

// State returns the current lifecycle state.
func (p *Play) State() State { return State(p.state.Load()) }

// Actors returns the supervised actors.
func (p *Play) Actors() []Actor { return append([]Actor(nil), p.actors...) }

// Done is closed when the current run has fully stopped. It is nil before the
// first start.
func (p *Play) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Err returns the errors that failed the last run, joined.
func (p *Play) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Join(p.errs...)
}

func (p *Play) fail(err error) {
	p.mu.Lock()
	p.errs = append(p.errs, err)
	p.mu.Unlock()
}

// Start connects the bus when auto-connect is on and starts every actor. It is a
// no-op on a running Play and fails with ErrPlayCancelled after Cancel.
func (p *Play) Start(ctx context.Context) error {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	if p.cancelled.Load() {
		return ErrPlayCancelled
	}
	if p.State() == Running {
		return nil
	}

	p.state.Store(int32(Starting))
	p.mu.Lock()
	p.errs = nil
	p.mu.Unlock()
	p.hook.PlayStarting(ctx)

	if p.autoConnect {
		if err := p.bus.Connect(ctx); err != nil {
			err = fmt.Errorf("connect: %w", err)
			p.state.Store(int32(Stopped))
			p.fail(err)
			p.hook.PlayFailed(ctx, []error{err})
			return err
		}
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	g, gctx := errgroup.WithContext(runCtx)
	for _, actor := range p.actors {
		p.hook.ActorStarting(gctx, actor)
		run, err := p.prepare(gctx, actor)
		if err != nil {
			cancel()
			_ = g.Wait()
			p.teardown(ctx)
			p.state.Store(int32(Stopped))
			p.fail(err)
			p.hook.PlayFailed(ctx, p.errors())
			return err
		}
		g.Go(run)
		p.hook.ActorStarted(gctx, actor)
	}

	done := make(chan struct{})
	p.mu.Lock()
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	p.state.Store(int32(Running))
	p.hook.PlayStarted(ctx)

	go p.supervise(runCtx, g, cancel, done)
	// Cancel may have run before cancel was published.
	if p.cancelled.Load() {
		p.Cancel()
	}
	return nil
}

func (p *Play) supervise(ctx context.Context, g *errgroup.Group, cancel context.CancelFunc, done chan struct{}) {
	_ = g.Wait()
	cancel()
	p.teardown(ctx)

	p.state.Store(int32(Stopped))
	if errs := p.errors(); len(errs) > 0 {
		p.hook.PlayFailed(ctx, errs)
	} else {
		p.hook.PlayStopped(ctx)
	}
	close(done)
}

func (p *Play) teardown(ctx context.Context) {
	if !p.autoConnect {
		return
	}
	if err := p.bus.Disconnect(context.WithoutCancel(ctx)); err != nil {
		p.fail(fmt.Errorf("disconnect: %w", err))
	}
}

func (p *Play) errors() []error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]error(nil), p.errs...)
}

// Stop cancels every actor and waits until the Play has stopped, bus disconnect
// included. It is a no-op unless the Play is running.
func (p *Play) Stop(ctx context.Context) error {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()
	if done == nil {
		return nil
	}

	if p.state.CompareAndSwap(int32(Running), int32(Stopping)) {
		p.hook.PlayStopping(ctx)
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel marks the Play as cancelled by its owner and cancels the running actors
// without waiting. A cancelled Play cannot be started again.
func (p *Play) Cancel() {
	p.cancelled.Store(true)
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		p.state.CompareAndSwap(int32(Running), int32(Stopping))
		cancel()
	}
}

// Cancelled reports whether Cancel was called.
func (p *Play) Cancelled() bool { return p.cancelled.Load() }

// RunForever blocks until the Play stops. When ctx is cancelled first the Play is
// stopped and the context error returned, unless the Play was cancelled with Cancel.
func (p *Play) RunForever(ctx context.Context) error {
	done := p.Done()
	if done == nil {
		return ErrPlayNotStarted
	}

	select {
	case <-done:
		if p.cancelled.Load() {
			return nil
		}
		return p.Err()
	case <-ctx.Done():
		if err := p.Stop(context.WithoutCancel(ctx)); err != nil {
			return errors.Join(ctx.Err(), err)
		}
		if p.cancelled.Load() {
			return nil
		}
		return ctx.Err()
	}
}

// Run starts the Play and blocks until it stops.
func (p *Play) Run(ctx context.Context) error {
	if err := p.Start(ctx); err != nil {
		return err
	}
	return p.RunForever(ctx)
}

// Main runs the Play until it stops or the process receives SIGINT or SIGTERM.
// The interruption itself is not reported as an error.
func (p *Play) Main() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := p.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// prepare validates an actor and opens its subscription. The returned function
// is the actor loop.
func (p *Play) prepare(ctx context.Context, actor Actor) (func() error, error) {
	f := actor.flow()
	if f == nil {
		return nil, &ActorError{Actor: actor.String(), Err: fmt.Errorf("%w: no flow", ErrFlowKind)}
	}
	b := p.bus.BindFlow(f)

	switch a := actor.(type) {
	case *Producer:
		if f.Kind() != event.ProducerFlow {
			return nil, &ActorError{Actor: a.String(), Err: fmt.Errorf("%w: producer needs a producer flow, got %s", ErrFlowKind, f.Kind())}
		}
		return func() error { return p.runProducer(withBus(ctx, b), a, b) }, nil

	case *Subscriber:
		if f.Kind() != event.SubscriptionFlow {
			return nil, &ActorError{Actor: a.String(), Err: fmt.Errorf("%w: subscriber needs a subscription flow, got %s", ErrFlowKind, f.Kind())}
		}
		sub, err := b.Subscribe(ctx, f.Source(), bus.Queue(a.Queue))
		if err != nil {
			return nil, &ActorError{Actor: a.String(), Err: err}
		}
		return func() error {
			return p.consume(withBus(ctx, b), a, sub, func(ctx context.Context, msg event.Message) error {
				return a.Handler(ctx, msg)
			})
		}, nil

	case *Service:
		if f.Kind() != event.ServiceFlow {
			return nil, &ActorError{Actor: a.String(), Err: fmt.Errorf("%w: service needs a service flow, got %s", ErrFlowKind, f.Kind())}
		}
		sub, err := b.Subscribe(ctx, f.Source(), bus.Queue(a.Queue))
		if err != nil {
			return nil, &ActorError{Actor: a.String(), Err: err}
		}
		return func() error {
			return p.consume(withBus(ctx, b), a, sub, func(ctx context.Context, msg event.Message) error {
				reply, err := a.Handler(ctx, msg)
				if err != nil {
					return err
				}
				if err := b.Reply(ctx, msg, reply.Data, bus.Metadata(reply.Metadata)); err != nil {
					return fmt.Errorf("reply: %w", err)
				}
				return nil
			})
		}, nil

	default:
		panic(fmt.Sprintf("unknown actor type: %T", actor))
	}
}

func (p *Play) runProducer(ctx context.Context, a *Producer, b *bus.EventBus) error {
	err := recovered(func() error { return a.Task(ctx, b) })
	if err == nil || (ctx.Err() != nil && errors.Is(err, ctx.Err())) {
		return nil
	}
	err = &ActorError{Actor: a.String(), Err: err}
	p.fail(err)
	return err
}

func (p *Play) consume(ctx context.Context, actor Actor, sub *bus.Subscription, handle func(context.Context, event.Message) error) error {
	defer sub.Close()
	for {
		msg, err := sub.Next(ctx)
		if err != nil {
			var derr *bus.DecodeError
			if errors.As(err, &derr) {
				p.hook.EventProcessingFailed(ctx, actor, event.Message{Subject: derr.Subject, Event: sub.Event()}, err)
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			err = &ActorError{Actor: actor.String(), Err: err}
			p.fail(err)
			return err
		}

		p.hook.EventReceived(ctx, actor, msg)
		if err := recovered(func() error { return handle(ctx, msg) }); err != nil {
			p.hook.EventProcessingFailed(ctx, actor, msg, err)
			continue
		}
		p.hook.EventProcessed(ctx, actor, msg)
	}
}

func recovered(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}
