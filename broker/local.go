package broker

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/casualjim/synopsys/pkg/slogx"
	"github.com/casualjim/synopsys/pkg/uuidx"
	"github.com/casualjim/synopsys/subject"
	"github.com/fogfish/opts"
)

const (
	defaultBufferSize            = 64
	defaultSlowSubscriberTimeout = 100 * time.Millisecond
)

var (
	// WithBufferSize sets the number of messages buffered per subscription.
	WithBufferSize = opts.ForName[LocalBroker, int]("bufferSize")
	// WithSlowSubscriberTimeout sets how long a publish waits on a full
	// subscription buffer before the message is dropped for that subscriber.
	WithSlowSubscriberTimeout = opts.ForName[LocalBroker, time.Duration]("slowSubscriberTimeout")
	// WithRequestTimeout bounds requests whose context has no deadline.
	WithRequestTimeout = opts.ForName[LocalBroker, time.Duration]("requestTimeout")
	// WithLogger sets the logger used to report dropped messages.
	WithLogger = opts.ForName[LocalBroker, *slog.Logger]("logger")
	// WithSyntax sets the subject syntax used for routing.
	WithSyntax = opts.ForName[LocalBroker, subject.Syntax]("syntax")
)

// LocalBroker is an in-process Backend.
//
// Messages go to every matching subscription without a queue group and to one
// member, chosen round-robin, of every matching queue group. A queue group is
// identified by its subject pattern and its queue name. Each subscription
// has a bounded buffer; a publish never waits more than the slow subscriber
// timeout for a subscriber before dropping the message for it.
type LocalBroker struct {
	bufferSize            int
	slowSubscriberTimeout time.Duration
	requestTimeout        time.Duration
	logger                *slog.Logger
	syntax                subject.Syntax

	subscriptions *haxmap.Map[string, *localSubscription]
	seq           atomic.Uint64

	mu     sync.Mutex
	closed bool
	groups map[string]uint64
}

// Local creates a connected in-memory broker.
func Local(options ...opts.Option[LocalBroker]) *LocalBroker {
	b := &LocalBroker{
		bufferSize:            defaultBufferSize,
		slowSubscriberTimeout: defaultSlowSubscriberTimeout,
		requestTimeout:        defaultRequestTimeout,
		logger:                slog.Default(),
		syntax:                subject.DefaultSyntax(),
		subscriptions:         haxmap.New[string, *localSubscription](),
		groups:                make(map[string]uint64),
	}
	if err := opts.Apply(b, options); err != nil {
		panic(err)
	}
	if b.bufferSize < 0 {
		b.bufferSize = 0
	}
	b.logger = b.logger.With(slogx.LoggerName("broker.local"))
	return b
}

// Connect reopens a disconnected broker. It is a no-op on a connected one.
func (b *LocalBroker) Connect(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = false
	return nil
}

// Disconnect closes every subscription. Pending and later calls fail with
// ErrBusDisconnected until Connect is called again.
func (b *LocalBroker) Disconnect(context.Context) error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	b.subscriptions.ForEach(func(_ string, sub *localSubscription) bool {
		sub.close(ErrBusDisconnected)
		return true
	})
	return nil
}

func (b *LocalBroker) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// SubscriptionCount returns the number of open subscriptions, ephemeral reply
// subscriptions included.
func (b *LocalBroker) SubscriptionCount() int {
	return int(b.subscriptions.Len())
}

// Publish delivers payload to every matching subscription and to one member of
// each matching queue group.
func (b *LocalBroker) Publish(ctx context.Context, subj string, payload []byte, headers map[string]string) error {
	return b.publish(ctx, subj, payload, headers, "")
}

func (b *LocalBroker) publish(ctx context.Context, subj string, payload []byte, headers map[string]string, reply string) error {
	if b.isClosed() {
		return ErrBusDisconnected
	}
	if err := ctx.Err(); err != nil {
		return contextError(ctx)
	}

	msg := &message{subject: subj, payload: slices.Clone(payload), headers: maps.Clone(headers), reply: reply}
	for _, sub := range b.recipients(subj) {
		if err := b.deliver(ctx, sub, msg); err != nil {
			return err
		}
	}
	return nil
}

// recipients takes a snapshot of the matching subscriptions and picks one member
// per queue group. Groups are keyed by pattern and queue name, as on NATS.
func (b *LocalBroker) recipients(subj string) []*localSubscription {
	var matched []*localSubscription
	b.subscriptions.ForEach(func(_ string, sub *localSubscription) bool {
		if subject.Match(sub.pattern, subj, b.syntax) {
			matched = append(matched, sub)
		}
		return true
	})
	slices.SortFunc(matched, func(a, c *localSubscription) int {
		switch {
		case a.seq < c.seq:
			return -1
		case a.seq > c.seq:
			return 1
		}
		return 0
	})

	var out []*localSubscription
	grouped := make(map[string][]*localSubscription)
	var order []string
	for _, sub := range matched {
		if sub.queue == "" {
			out = append(out, sub)
			continue
		}
		key := sub.groupKey()
		if _, ok := grouped[key]; !ok {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], sub)
	}

	b.mu.Lock()
	for _, key := range order {
		members := grouped[key]
		n := b.groups[key]
		b.groups[key] = n + 1
		out = append(out, members[n%uint64(len(members))])
	}
	b.mu.Unlock()
	return out
}

func (b *LocalBroker) deliver(ctx context.Context, sub *localSubscription, msg *message) error {
	select {
	case sub.ch <- msg:
		return nil
	case <-sub.done:
		return nil
	default:
	}

	timer := time.NewTimer(b.slowSubscriberTimeout)
	defer timer.Stop()
	select {
	case sub.ch <- msg:
	case <-sub.done:
	case <-ctx.Done():
		return contextError(ctx)
	case <-timer.C:
		b.logger.Warn("dropping message for slow subscriber",
			slogx.Subject(msg.subject),
			slog.String("subscription", sub.id),
			slog.String("pattern", sub.pattern),
		)
	}
	return nil
}

// Request publishes with a fresh inbox as reply subject and waits for the first
// reply.
func (b *LocalBroker) Request(ctx context.Context, subj string, payload []byte, headers map[string]string) (Msg, error) {
	if b.isClosed() {
		return nil, ErrBusDisconnected
	}
	ctx, cancel := withRequestTimeout(ctx, b.requestTimeout)
	defer cancel()

	inbox := b.subscribe(InboxPrefix+uuidx.Token(), "")
	defer inbox.Close()

	if err := b.publish(ctx, subj, payload, headers, inbox.pattern); err != nil {
		return nil, err
	}
	return inbox.Next(ctx)
}

// Subscribe registers a subscription on a subject pattern. A non-empty queue
// joins the queue group for that pattern.
func (b *LocalBroker) Subscribe(ctx context.Context, subj, queue string) (Subscription, error) {
	if b.isClosed() {
		return nil, ErrBusDisconnected
	}
	if err := ctx.Err(); err != nil {
		return nil, contextError(ctx)
	}
	return b.subscribe(subj, queue), nil
}

func (b *LocalBroker) subscribe(pattern, queue string) *localSubscription {
	id := uuidx.NewString()
	sub := &localSubscription{
		id:      id,
		seq:     b.seq.Add(1),
		pattern: pattern,
		queue:   queue,
		ch:      make(chan *message, b.bufferSize),
		done:    make(chan struct{}),
		onClose: func() { b.subscriptions.Del(id) },
	}
	b.subscriptions.Set(id, sub)
	return sub
}

type localSubscription struct {
	id      string
	seq     uint64
	pattern string
	queue   string

	// ch is never closed; done signals the end of the subscription.
	ch        chan *message
	done      chan struct{}
	closeOnce sync.Once
	err       error
	onClose   func()
}

// groupKey identifies the queue group: one group per pattern and queue name.
func (s *localSubscription) groupKey() string {
	return s.pattern + "\x00" + s.queue
}

func (s *localSubscription) Next(ctx context.Context) (Msg, error) {
	select {
	case <-s.done:
		return nil, s.err
	default:
	}

	select {
	case msg := <-s.ch:
		return msg, nil
	case <-s.done:
		return nil, s.err
	case <-ctx.Done():
		return nil, contextError(ctx)
	}
}

func (s *localSubscription) Close() error {
	s.close(ErrSubscriptionClosed)
	return nil
}

func (s *localSubscription) close(err error) {
	s.closeOnce.Do(func() {
		s.err = err
		if s.onClose != nil {
			s.onClose()
		}
		close(s.done)
	})
}

var _ Backend = (*LocalBroker)(nil)

// isTimeout reports whether err was caused by an expired deadline.
func isTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
