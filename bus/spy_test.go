package bus

import (
	"context"
	"sync"

	"github.com/casualjim/synopsys/broker"
)

// spyBackend records every call and delegates to an in-memory broker
type spyBackend struct {
	*broker.LocalBroker

	mu    sync.Mutex
	calls []string
}

func newSpy() *spyBackend {
	return &spyBackend{LocalBroker: broker.Local()}
}

func (s *spyBackend) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *spyBackend) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *spyBackend) Publish(ctx context.Context, subject string, payload []byte, headers map[string]string) error {
	s.record("publish " + subject)
	return s.LocalBroker.Publish(ctx, subject, payload, headers)
}

func (s *spyBackend) Request(ctx context.Context, subject string, payload []byte, headers map[string]string) (broker.Msg, error) {
	s.record("request " + subject)
	return s.LocalBroker.Request(ctx, subject, payload, headers)
}

func (s *spyBackend) Subscribe(ctx context.Context, subject, queue string) (broker.Subscription, error) {
	s.record("subscribe " + subject)
	return s.LocalBroker.Subscribe(ctx, subject, queue)
}
