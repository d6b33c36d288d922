package synopsys

import (
	"context"

	"github.com/casualjim/synopsys/bus"
	"github.com/casualjim/synopsys/event"
)

// Actor is a participant of a Play. It is one of Producer, Subscriber or Service.
type Actor interface {
	// Kind is "producer", "subscriber" or "service".
	Kind() string
	// FlowName is the name of the flow the actor is bound to.
	FlowName() string
	String() string

	flow() *event.Flow
}

// Producer runs Task once with a bus bound to Flow. The actor ends when Task
// returns; a non-nil error fails the whole Play.
type Producer struct {
	Flow *event.Flow
	Task func(ctx context.Context, b *bus.EventBus) error
}

// Subscriber calls Handler for every occurrence of the inbound event of Flow.
type Subscriber struct {
	Flow    *event.Flow
	Handler func(ctx context.Context, msg event.Message) error
	// Queue makes the subscriber a member of a queue group.
	Queue string
}

// Service calls Handler for every request on the command of Flow and sends the
// returned Reply back to the requester.
type Service struct {
	Flow    *event.Flow
	Handler func(ctx context.Context, msg event.Message) (event.Reply, error)
	// Queue makes the service a member of a queue group.
	Queue string
}

func (a *Producer) Kind() string   { return "producer" }
func (a *Subscriber) Kind() string { return "subscriber" }
func (a *Service) Kind() string    { return "service" }

func (a *Producer) FlowName() string   { return flowName(a.Flow) }
func (a *Subscriber) FlowName() string { return flowName(a.Flow) }
func (a *Service) FlowName() string    { return flowName(a.Flow) }

func (a *Producer) String() string   { return a.Kind() + " " + a.FlowName() }
func (a *Subscriber) String() string { return a.Kind() + " " + a.FlowName() }
func (a *Service) String() string    { return a.Kind() + " " + a.FlowName() }

func (a *Producer) flow() *event.Flow   { return a.Flow }
func (a *Subscriber) flow() *event.Flow { return a.Flow }
func (a *Service) flow() *event.Flow    { return a.Flow }

func flowName(f *event.Flow) string {
	if f == nil {
		return "<nil>"
	}
	return f.Name()
}

type busKey struct{}

// BusFromContext returns the flow-bound bus of the actor handling the current
// message or running the current task.
func BusFromContext(ctx context.Context) (*bus.EventBus, bool) {
	b, ok := ctx.Value(busKey{}).(*bus.EventBus)
	return b, ok
}

func withBus(ctx context.Context, b *bus.EventBus) context.Context {
	return context.WithValue(ctx, busKey{}, b)
}
