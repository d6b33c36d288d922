package broker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/alphadose/haxmap"
	"github.com/casualjim/synopsys/pkg/slogx"
	"github.com/casualjim/synopsys/pkg/uuidx"
	"github.com/casualjim/synopsys/subject"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// envelope is the wire format of a message on a Redis channel. Redis pub/sub
// carries a single string, so headers and the reply subject travel inside it.
type envelope struct {
	Subject string            `json:"subject"`
	Payload []byte            `json:"payload,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Reply   string            `json:"reply,omitempty"`
}

// RedisBroker is a Backend on top of Redis pub/sub.
//
// Subscriptions use PSUBSCRIBE with a glob derived from the subject pattern and
// re-check every message against the pattern. Redis has no queue groups: a
// queue name is accepted but every subscriber receives every message.
type RedisBroker struct {
	client redis.UniversalClient
	syntax subject.Syntax
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool

	subscriptions *haxmap.Map[string, *redisSubscription]
	queueWarning  sync.Once
}

// Redis returns a broker using client. The client stays owned by the caller.
func Redis(client redis.UniversalClient) *RedisBroker {
	return &RedisBroker{
		client:        client,
		syntax:        subject.DefaultSyntax(),
		logger:        slog.Default().With(slogx.LoggerName("broker.redis")),
		subscriptions: haxmap.New[string, *redisSubscription](),
	}
}

// Connect checks the server is reachable and reopens a disconnected broker.
func (b *RedisBroker) Connect(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	b.mu.Lock()
	b.closed = false
	b.mu.Unlock()
	return nil
}

// Disconnect closes every subscription opened through the broker.
func (b *RedisBroker) Disconnect(context.Context) error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	b.subscriptions.ForEach(func(_ string, sub *redisSubscription) bool {
		sub.close(ErrBusDisconnected)
		return true
	})
	return nil
}

func (b *RedisBroker) isClosed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}

func (b *RedisBroker) Publish(ctx context.Context, subj string, payload []byte, headers map[string]string) error {
	return b.publish(ctx, envelope{Subject: subj, Payload: payload, Headers: headers})
}

func (b *RedisBroker) publish(ctx context.Context, env envelope) error {
	if b.isClosed() {
		return ErrBusDisconnected
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode redis envelope: %w", err)
	}
	if err := b.client.Publish(ctx, env.Subject, data).Err(); err != nil {
		if ctx.Err() != nil {
			return contextError(ctx)
		}
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (b *RedisBroker) Request(ctx context.Context, subj string, payload []byte, headers map[string]string) (Msg, error) {
	if b.isClosed() {
		return nil, ErrBusDisconnected
	}
	ctx, cancel := withRequestTimeout(ctx, defaultRequestTimeout)
	defer cancel()

	inbox := InboxPrefix + uuidx.Token()
	sub, err := b.open(ctx, b.client.Subscribe(ctx, inbox), inbox)
	if err != nil {
		return nil, err
	}
	defer sub.Close()

	if err := b.publish(ctx, envelope{Subject: subj, Payload: payload, Headers: headers, Reply: inbox}); err != nil {
		return nil, err
	}
	return sub.Next(ctx)
}

func (b *RedisBroker) Subscribe(ctx context.Context, subj, queue string) (Subscription, error) {
	if b.isClosed() {
		return nil, ErrBusDisconnected
	}
	if queue != "" {
		b.queueWarning.Do(func() {
			b.logger.Warn("redis has no queue groups, messages are broadcast to every member", slog.String("queue", queue))
		})
	}
	return b.open(ctx, b.client.PSubscribe(ctx, Glob(subj, b.syntax)), subj)
}

// open waits for the subscription to be confirmed so that no message published
// after it returns can be missed.
func (b *RedisBroker) open(ctx context.Context, pubsub *redis.PubSub, pattern string) (*redisSubscription, error) {
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		if ctx.Err() != nil {
			return nil, contextError(ctx)
		}
		return nil, fmt.Errorf("redis subscribe %q: %w", pattern, err)
	}

	id := uuidx.NewString()
	sub := &redisSubscription{
		id:      id,
		pattern: pattern,
		syntax:  b.syntax,
		pubsub:  pubsub,
		ch:      pubsub.Channel(),
		done:    make(chan struct{}),
		logger:  b.logger,
		onClose: func() { b.subscriptions.Del(id) },
	}
	b.subscriptions.Set(id, sub)
	return sub, nil
}

type redisSubscription struct {
	id      string
	pattern string
	syntax  subject.Syntax
	pubsub  *redis.PubSub
	ch      <-chan *redis.Message

	done      chan struct{}
	closeOnce sync.Once
	err       error
	onClose   func()
	logger    *slog.Logger
}

func (s *redisSubscription) Next(ctx context.Context) (Msg, error) {
	for {
		select {
		case <-s.done:
			return nil, s.err
		default:
		}

		select {
		case <-s.done:
			return nil, s.err
		case <-ctx.Done():
			return nil, contextError(ctx)
		case rm, ok := <-s.ch:
			if !ok {
				s.close(ErrSubscriptionClosed)
				return nil, s.err
			}
			var env envelope
			if err := json.Unmarshal([]byte(rm.Payload), &env); err != nil {
				s.logger.Warn("skipping malformed redis message", slogx.Error(err), slog.String("channel", rm.Channel))
				continue
			}
			if !subject.Match(s.pattern, env.Subject, s.syntax) {
				continue
			}
			return &message{subject: env.Subject, payload: env.Payload, headers: env.Headers, reply: env.Reply}, nil
		}
	}
}

func (s *redisSubscription) Close() error {
	s.close(ErrSubscriptionClosed)
	return nil
}

func (s *redisSubscription) close(reason error) {
	s.closeOnce.Do(func() {
		s.err = reason
		if s.onClose != nil {
			s.onClose()
		}
		if err := s.pubsub.Close(); err != nil {
			s.logger.Error("failed to close redis subscription", slogx.Error(err), slog.String("subscription", s.id))
		}
		close(s.done)
	})
}

// Glob translates a subject pattern to a Redis glob. Both wildcards become "*",
// which in a glob also matches separators, so matches must be re-checked with
// subject.Match.
func Glob(pattern string, syntax subject.Syntax) string {
	tokens := strings.Split(pattern, syntax.Separator)
	for i, token := range tokens {
		if token == syntax.MatchOne || token == syntax.MatchAll {
			tokens[i] = "*"
			continue
		}
		tokens[i] = globEscaper.Replace(token)
	}
	return strings.Join(tokens, globEscaper.Replace(syntax.Separator))
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

var _ Backend = (*RedisBroker)(nil)
