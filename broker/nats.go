package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alphadose/haxmap"
	"github.com/casualjim/synopsys/pkg/natsx"
	"github.com/casualjim/synopsys/pkg/slogx"
	"github.com/casualjim/synopsys/pkg/uuidx"
	"github.com/nats-io/nats.go"
)

// NATSBroker is a Backend on top of a NATS connection. Queue groups and
// request/reply map directly onto the NATS primitives.
type NATSBroker struct {
	mu      sync.RWMutex
	conn    *nats.Conn
	url     string
	options []nats.Option
	closed  bool

	subscriptions *haxmap.Map[string, *natsSubscription]
	logger        *slog.Logger
}

// NATS wraps an established connection. After Disconnect, Connect dials the
// server the connection was attached to.
func NATS(conn *nats.Conn) *NATSBroker {
	return &NATSBroker{
		conn:          conn,
		url:           conn.ConnectedUrl(),
		subscriptions: haxmap.New[string, *natsSubscription](),
		logger:        slog.Default().With(slogx.LoggerName("broker.nats")),
	}
}

// NATSURL returns a broker that dials url on Connect. An empty url falls back to
// the NATS_URL environment variable.
func NATSURL(url string, options ...nats.Option) *NATSBroker {
	return &NATSBroker{
		url:           url,
		options:       options,
		closed:        true,
		subscriptions: haxmap.New[string, *natsSubscription](),
		logger:        slog.Default().With(slogx.LoggerName("broker.nats")),
	}
}

func (b *NATSBroker) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil && !b.conn.IsClosed() && !b.closed {
		return nil
	}

	var (
		conn *nats.Conn
		err  error
	)
	if b.url == "" {
		conn, err = natsx.NewClient(b.options...)
	} else {
		conn, err = nats.Connect(b.url, b.options...)
	}
	if err != nil {
		return fmt.Errorf("connect to nats: %w", err)
	}
	b.conn = conn
	b.closed = false
	return nil
}

func (b *NATSBroker) Disconnect(ctx context.Context) error {
	b.mu.Lock()
	conn := b.conn
	b.closed = true
	b.mu.Unlock()

	b.subscriptions.ForEach(func(_ string, sub *natsSubscription) bool {
		sub.close(ErrBusDisconnected)
		return true
	})
	if conn == nil || conn.IsClosed() {
		return nil
	}
	conn.Close()
	return nil
}

func (b *NATSBroker) client() (*nats.Conn, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed || b.conn == nil || b.conn.IsClosed() {
		return nil, ErrBusDisconnected
	}
	return b.conn, nil
}

func (b *NATSBroker) Publish(ctx context.Context, subj string, payload []byte, headers map[string]string) error {
	conn, err := b.client()
	if err != nil {
		return err
	}
	if err := conn.PublishMsg(newNATSMsg(subj, payload, headers)); err != nil {
		return natsError(err)
	}
	// only a caller with a deadline waits for the server to acknowledge
	if _, ok := ctx.Deadline(); ok {
		if err := conn.FlushWithContext(ctx); err != nil {
			return natsError(err)
		}
	}
	return nil
}

func (b *NATSBroker) Request(ctx context.Context, subj string, payload []byte, headers map[string]string) (Msg, error) {
	conn, err := b.client()
	if err != nil {
		return nil, err
	}
	ctx, cancel := withRequestTimeout(ctx, defaultRequestTimeout)
	defer cancel()

	reply, err := conn.RequestMsgWithContext(ctx, newNATSMsg(subj, payload, headers))
	if err != nil {
		return nil, natsError(err)
	}
	return fromNATSMsg(reply), nil
}

func (b *NATSBroker) Subscribe(ctx context.Context, subj, queue string) (Subscription, error) {
	conn, err := b.client()
	if err != nil {
		return nil, err
	}

	var nsub *nats.Subscription
	if queue == "" {
		nsub, err = conn.SubscribeSync(subj)
	} else {
		nsub, err = conn.QueueSubscribeSync(subj, queue)
	}
	if err != nil {
		return nil, natsError(err)
	}

	id := uuidx.NewString()
	sub := &natsSubscription{
		id:      id,
		sub:     nsub,
		done:    make(chan struct{}),
		logger:  b.logger,
		onClose: func() { b.subscriptions.Del(id) },
	}
	b.subscriptions.Set(id, sub)
	return sub, nil
}

type natsSubscription struct {
	id        string
	sub       *nats.Subscription
	done      chan struct{}
	closeOnce sync.Once
	err       error
	onClose   func()
	logger    *slog.Logger
}

func (s *natsSubscription) Next(ctx context.Context) (Msg, error) {
	select {
	case <-s.done:
		return nil, s.err
	default:
	}

	// NextMsgWithContext does not observe Unsubscribe, so done is merged into ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	msg, err := s.sub.NextMsgWithContext(ctx)
	if err != nil {
		select {
		case <-s.done:
			return nil, s.err
		default:
		}
		if errors.Is(err, nats.ErrBadSubscription) {
			return nil, ErrSubscriptionClosed
		}
		return nil, natsError(err)
	}
	return fromNATSMsg(msg), nil
}

func (s *natsSubscription) Close() error {
	s.close(ErrSubscriptionClosed)
	return nil
}

func (s *natsSubscription) close(reason error) {
	s.closeOnce.Do(func() {
		s.err = reason
		if s.onClose != nil {
			s.onClose()
		}
		if err := s.sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) && !errors.Is(err, nats.ErrBadSubscription) {
			s.logger.Error("failed to unsubscribe", slogx.Error(err), slog.String("subscription", s.id))
		}
		close(s.done)
	})
}

func newNATSMsg(subj string, payload []byte, headers map[string]string) *nats.Msg {
	msg := nats.NewMsg(subj)
	msg.Data = payload
	for k, v := range headers {
		msg.Header.Set(k, v)
	}
	return msg
}

func fromNATSMsg(msg *nats.Msg) Msg {
	headers := make(map[string]string, len(msg.Header))
	for k := range msg.Header {
		headers[k] = msg.Header.Get(k)
	}
	return &message{subject: msg.Subject, payload: msg.Data, headers: headers, reply: msg.Reply}
}

func natsError(err error) error {
	switch {
	case errors.Is(err, nats.ErrConnectionClosed), errors.Is(err, nats.ErrConnectionDraining):
		return errors.Join(ErrBusDisconnected, err)
	case errors.Is(err, nats.ErrTimeout), errors.Is(err, nats.ErrNoResponders), isTimeout(err):
		return errors.Join(ErrTimeout, err)
	}
	return err
}

var _ Backend = (*NATSBroker)(nil)
