package broker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backendFactory creates a connected backend for one test
type backendFactory func(t *testing.T) Backend

type capabilities struct {
	queueGroups bool
}

type acceptanceTest struct {
	name string
	test func(t *testing.T, create backendFactory, caps capabilities)
}

// runAcceptanceTests runs the shared contract tests against a backend implementation
func runAcceptanceTests(t *testing.T, create backendFactory, caps capabilities) {
	tests := []acceptanceTest{
		{"publishes to every subscriber", testPublishToAllSubscribers},
		{"routes wildcard subscriptions", testWildcardRouting},
		{"carries headers", testHeaders},
		{"delivers once per queue group", testQueueGroups},
		{"keys queue groups by pattern", testQueueGroupsPerPattern},
		{"answers requests", testRequestReply},
		{"times out requests without responders", testRequestTimeout},
		{"fails pending receives on close", testSubscriptionClose},
		{"honours context cancellation", testContextCancellation},
		{"fails calls after disconnect", testDisconnect},
		{"reconnects", testReconnect},
		{"handles concurrent publishers", testConcurrentPublishers},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.test(t, create, caps)
		})
	}
}

var subjectSeq atomic.Int64

func uniqueSubject(suffix string) string {
	return fmt.Sprintf("test.%d.%d.%s", time.Now().UnixNano(), subjectSeq.Add(1), suffix)
}

func receive(t *testing.T, sub Subscription) Msg {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg, err := sub.Next(ctx)
	require.NoError(t, err)
	return msg
}

func subscribe(t *testing.T, b Backend, subj, queue string) Subscription {
	t.Helper()
	sub, err := b.Subscribe(context.Background(), subj, queue)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })
	return sub
}

func testPublishToAllSubscribers(t *testing.T, create backendFactory, _ capabilities) {
	b := create(t)
	subj := uniqueSubject("all")

	sub1 := subscribe(t, b, subj, "")
	sub2 := subscribe(t, b, subj, "")

	require.NoError(t, b.Publish(context.Background(), subj, []byte("hello"), nil))

	for _, sub := range []Subscription{sub1, sub2} {
		msg := receive(t, sub)
		assert.Equal(t, subj, msg.Subject())
		assert.Equal(t, []byte("hello"), msg.Payload())
		assert.Empty(t, msg.ReplySubject())
	}
}

func testWildcardRouting(t *testing.T, create backendFactory, _ capabilities) {
	b := create(t)
	prefix := uniqueSubject("sensors")

	one := subscribe(t, b, prefix+".*.measure", "")
	all := subscribe(t, b, prefix+".>", "")

	ctx := context.Background()
	require.NoError(t, b.Publish(ctx, prefix+".west.status.extra", []byte("1"), nil))
	require.NoError(t, b.Publish(ctx, prefix+".west.measure", []byte("2"), nil))

	assert.Equal(t, []byte("1"), receive(t, all).Payload())
	assert.Equal(t, []byte("2"), receive(t, all).Payload())

	msg := receive(t, one)
	assert.Equal(t, prefix+".west.measure", msg.Subject())
	assert.Equal(t, []byte("2"), msg.Payload())
}

func testHeaders(t *testing.T, create backendFactory, _ capabilities) {
	b := create(t)
	subj := uniqueSubject("headers")
	sub := subscribe(t, b, subj, "")

	headers := map[string]string{"trace": "abc", "retries": "3"}
	require.NoError(t, b.Publish(context.Background(), subj, nil, headers))

	msg := receive(t, sub)
	assert.Equal(t, headers, msg.Headers())
	assert.Empty(t, msg.Payload())
}

func testQueueGroups(t *testing.T, create backendFactory, caps capabilities) {
	if !caps.queueGroups {
		t.Skip("backend has no queue groups")
	}
	b := create(t)
	subj := uniqueSubject("queue")
	const n = 20

	grouped := []Subscription{subscribe(t, b, subj, "workers"), subscribe(t, b, subj, "workers")}
	other := subscribe(t, b, subj, "auditors")
	plain := subscribe(t, b, subj, "")

	var counts [4]atomic.Int64
	seen := make([]sync.Map, 4)
	var wg sync.WaitGroup
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for i, sub := range []Subscription{grouped[0], grouped[1], other, plain} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				msg, err := sub.Next(ctx)
				if err != nil {
					return
				}
				_, dup := seen[i].LoadOrStore(string(msg.Payload()), struct{}{})
				assert.False(t, dup, "subscriber %d received %s twice", i, msg.Payload())
				counts[i].Add(1)
			}
		}()
	}

	for i := range n {
		require.NoError(t, b.Publish(context.Background(), subj, []byte(fmt.Sprint(i)), nil))
	}

	assert.Eventually(t, func() bool {
		return counts[0].Load()+counts[1].Load() == n && counts[2].Load() == n && counts[3].Load() == n
	}, 2*time.Second, 10*time.Millisecond)

	// nothing more arrives
	time.Sleep(50 * time.Millisecond)
	cancel()
	wg.Wait()
	assert.Equal(t, int64(n), counts[0].Load()+counts[1].Load())
	assert.Equal(t, int64(n), counts[2].Load())
	assert.Equal(t, int64(n), counts[3].Load())
}

func testQueueGroupsPerPattern(t *testing.T, create backendFactory, caps capabilities) {
	if !caps.queueGroups {
		t.Skip("backend has no queue groups")
	}
	b := create(t)
	prefix := uniqueSubject("sensors")

	wide := subscribe(t, b, prefix+".*", "workers")
	narrow := subscribe(t, b, prefix+".west", "workers")

	require.NoError(t, b.Publish(context.Background(), prefix+".west", []byte("west"), nil))
	assert.Equal(t, []byte("west"), receive(t, wide).Payload())
	assert.Equal(t, []byte("west"), receive(t, narrow).Payload())

	require.NoError(t, b.Publish(context.Background(), prefix+".east", []byte("east"), nil))
	assert.Equal(t, []byte("east"), receive(t, wide).Payload())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := narrow.Next(ctx)
	assert.Error(t, err)
}

func testRequestReply(t *testing.T, create backendFactory, _ capabilities) {
	b := create(t)
	subj := uniqueSubject("echo")
	sub := subscribe(t, b, subj, "")

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		msg, err := sub.Next(ctx)
		if err != nil {
			return
		}
		_ = b.Publish(ctx, msg.ReplySubject(), append([]byte("re:"), msg.Payload()...), map[string]string{"status": "ok"})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	reply, err := b.Request(ctx, subj, []byte("ping"), nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("re:ping"), reply.Payload())
	assert.Equal(t, "ok", reply.Headers()["status"])
}

func testRequestTimeout(t *testing.T, create backendFactory, _ capabilities) {
	b := create(t)
	subj := uniqueSubject("nobody")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := b.Request(ctx, subj, []byte("ping"), nil)
	require.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func testSubscriptionClose(t *testing.T, create backendFactory, _ capabilities) {
	b := create(t)
	sub, err := b.Subscribe(context.Background(), uniqueSubject("close"), "")
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() {
		_, err := sub.Next(context.Background())
		errc <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, sub.Close())
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrSubscriptionClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("pending receive was not released")
	}

	_, err = sub.Next(context.Background())
	assert.ErrorIs(t, err, ErrSubscriptionClosed)
	assert.NoError(t, sub.Close(), "close is idempotent")
}

func testContextCancellation(t *testing.T, create backendFactory, _ capabilities) {
	b := create(t)
	sub := subscribe(t, b, uniqueSubject("cancel"), "")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := sub.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	ctx, cancel = context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = sub.Next(ctx)
	assert.ErrorIs(t, err, ErrTimeout)
}

func testDisconnect(t *testing.T, create backendFactory, _ capabilities) {
	b := create(t)
	subj := uniqueSubject("disconnect")
	sub, err := b.Subscribe(context.Background(), subj, "")
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() {
		_, err := sub.Next(context.Background())
		errc <- err
	}()
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, b.Disconnect(context.Background()))
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrBusDisconnected)
	case <-time.After(2 * time.Second):
		t.Fatal("blocked receive was not released by disconnect")
	}

	ctx := context.Background()
	assert.ErrorIs(t, b.Publish(ctx, subj, nil, nil), ErrBusDisconnected)
	_, err = b.Request(ctx, subj, nil, nil)
	assert.ErrorIs(t, err, ErrBusDisconnected)
	_, err = b.Subscribe(ctx, subj, "")
	assert.ErrorIs(t, err, ErrBusDisconnected)
}

func testReconnect(t *testing.T, create backendFactory, _ capabilities) {
	b := create(t)
	ctx := context.Background()
	require.NoError(t, b.Disconnect(ctx))
	require.NoError(t, b.Connect(ctx))

	subj := uniqueSubject("reconnect")
	sub := subscribe(t, b, subj, "")
	require.NoError(t, b.Publish(ctx, subj, []byte("back"), nil))
	assert.Equal(t, []byte("back"), receive(t, sub).Payload())
}

func testConcurrentPublishers(t *testing.T, create backendFactory, _ capabilities) {
	b := create(t)
	subj := uniqueSubject("concurrent")
	sub := subscribe(t, b, subj, "")

	const publishers, each = 4, 10
	var wg sync.WaitGroup
	for p := range publishers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range each {
				assert.NoError(t, b.Publish(context.Background(), subj, []byte(fmt.Sprintf("%d-%d", p, i)), nil))
			}
		}()
	}
	wg.Wait()

	got := make(map[string]struct{})
	for range publishers * each {
		got[string(receive(t, sub).Payload())] = struct{}{}
	}
	assert.Len(t, got, publishers*each)
}
