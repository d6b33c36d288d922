package broker

import (
	"context"
	"errors"
	"maps"
	"time"
)

const (
	// InboxPrefix prefixes generated reply subjects.
	InboxPrefix = "_INBOX."

	defaultRequestTimeout = 5 * time.Second
)

// Backend is a pub/sub transport.
type Backend interface {
	// Publish sends a message without waiting for receivers.
	Publish(ctx context.Context, subject string, payload []byte, headers map[string]string) error
	// Request publishes a message with a reply subject and waits for the first answer.
	Request(ctx context.Context, subject string, payload []byte, headers map[string]string) (Msg, error)
	// Subscribe opens a subscription on a subject pattern. An empty queue means
	// every subscriber gets its own copy.
	Subscribe(ctx context.Context, subject, queue string) (Subscription, error)
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
}

// Msg is a message as received from a Backend.
type Msg interface {
	Subject() string
	Payload() []byte
	Headers() map[string]string
	// ReplySubject is empty unless the sender waits for an answer.
	ReplySubject() string
}

// Subscription is an open subscription.
type Subscription interface {
	// Next blocks until a message arrives, the subscription is closed or ctx is done.
	Next(ctx context.Context) (Msg, error)
	Close() error
}

// NewMsg returns a Msg holding the given values.
func NewMsg(subject string, payload []byte, headers map[string]string, reply string) Msg {
	return &message{subject: subject, payload: payload, headers: headers, reply: reply}
}

type message struct {
	subject string
	payload []byte
	headers map[string]string
	reply   string
}

func (m *message) Subject() string      { return m.subject }
func (m *message) Payload() []byte      { return m.payload }
func (m *message) ReplySubject() string { return m.reply }

func (m *message) Headers() map[string]string {
	if m.headers == nil {
		return map[string]string{}
	}
	return maps.Clone(m.headers)
}

// contextError maps a finished context to the broker error taxonomy.
func contextError(ctx context.Context) error {
	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrTimeout, err)
	}
	return err
}

// withRequestTimeout bounds ctx by the default request timeout unless it already
// carries a deadline.
func withRequestTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
